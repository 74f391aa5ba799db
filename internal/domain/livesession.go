package domain

import (
	"time"

	"github.com/google/uuid"
)

type LiveSessionStatus string

const (
	LiveSessionStatusLive  LiveSessionStatus = "live"
	LiveSessionStatusEnded LiveSessionStatus = "ended"
)

// LiveSession is the persisted record of one broadcast: a host streaming to a
// changing set of viewers. The room key on the relay is the host identity.
type LiveSession struct {
	ID          uuid.UUID
	HostID      string
	Title       string
	Status      LiveSessionStatus
	PeakViewers int
	StartedAt   time.Time
	EndedAt     *time.Time
}

func NewLiveSession(hostID, title string) *LiveSession {
	return &LiveSession{
		ID:        uuid.New(),
		HostID:    hostID,
		Title:     title,
		Status:    LiveSessionStatusLive,
		StartedAt: time.Now().UTC(),
	}
}

func (s *LiveSession) ObserveViewers(count int) {
	if count > s.PeakViewers {
		s.PeakViewers = count
	}
}

func (s *LiveSession) MarkEnded() {
	if s.Status == LiveSessionStatusEnded {
		return
	}
	now := time.Now().UTC()
	s.Status = LiveSessionStatusEnded
	s.EndedAt = &now
}
