package domain

import (
	"time"

	"github.com/google/uuid"
)

type ConsultationStatus string

const (
	ConsultationStatusRinging ConsultationStatus = "ringing"
	ConsultationStatusActive  ConsultationStatus = "active"
	ConsultationStatusEnded   ConsultationStatus = "ended"
)

// Consultation is the persisted record of one 1:1 call between a client and
// an astrologer. The live negotiation state lives in the call controller;
// this only tracks lifecycle timestamps for history and billing.
type Consultation struct {
	ID         uuid.UUID
	CallerID   string
	CalleeID   string
	Kind       CallKind
	Status     ConsultationStatus
	StartedAt  time.Time
	AnsweredAt *time.Time
	EndedAt    *time.Time
}

func NewConsultation(callerID, calleeID string, kind CallKind) *Consultation {
	return &Consultation{
		ID:        uuid.New(),
		CallerID:  callerID,
		CalleeID:  calleeID,
		Kind:      kind,
		Status:    ConsultationStatusRinging,
		StartedAt: time.Now().UTC(),
	}
}

func (c *Consultation) MarkAnswered() {
	now := time.Now().UTC()
	c.Status = ConsultationStatusActive
	c.AnsweredAt = &now
}

func (c *Consultation) MarkEnded() {
	if c.Status == ConsultationStatusEnded {
		return
	}
	now := time.Now().UTC()
	c.Status = ConsultationStatusEnded
	c.EndedAt = &now
}

// Duration reports the answered-to-ended span, zero if never answered.
func (c *Consultation) Duration() time.Duration {
	if c.AnsweredAt == nil || c.EndedAt == nil {
		return 0
	}
	return c.EndedAt.Sub(*c.AnsweredAt)
}
