package converter

import (
	"time"

	"github.com/astrolink/consult-rtc/internal/domain"
)

type ConsultationResponse struct {
	ID         string     `json:"id"`
	CallerID   string     `json:"caller_id"`
	CalleeID   string     `json:"callee_id"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	DurationS  float64    `json:"duration_seconds"`
}

func ToConsultationResponse(c *domain.Consultation) ConsultationResponse {
	return ConsultationResponse{
		ID:         c.ID.String(),
		CallerID:   c.CallerID,
		CalleeID:   c.CalleeID,
		Kind:       string(c.Kind),
		Status:     string(c.Status),
		StartedAt:  c.StartedAt,
		AnsweredAt: c.AnsweredAt,
		EndedAt:    c.EndedAt,
		DurationS:  c.Duration().Seconds(),
	}
}

func ToConsultationResponses(list []*domain.Consultation) []ConsultationResponse {
	out := make([]ConsultationResponse, 0, len(list))
	for _, c := range list {
		out = append(out, ToConsultationResponse(c))
	}
	return out
}

type LiveSessionResponse struct {
	ID          string     `json:"id"`
	HostID      string     `json:"host_id"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	PeakViewers int        `json:"peak_viewers"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

func ToLiveSessionResponse(s *domain.LiveSession) LiveSessionResponse {
	return LiveSessionResponse{
		ID:          s.ID.String(),
		HostID:      s.HostID,
		Title:       s.Title,
		Status:      string(s.Status),
		PeakViewers: s.PeakViewers,
		StartedAt:   s.StartedAt,
		EndedAt:     s.EndedAt,
	}
}

func ToLiveSessionResponses(list []*domain.LiveSession) []LiveSessionResponse {
	out := make([]LiveSessionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, ToLiveSessionResponse(s))
	}
	return out
}

type ChatMessageResponse struct {
	ID          string    `json:"id"`
	Room        string    `json:"room"`
	SenderID    string    `json:"sender_id"`
	DisplayName string    `json:"display_name"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

func ToChatMessageResponses(list []*domain.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(list))
	for _, m := range list {
		out = append(out, ChatMessageResponse{
			ID:          m.ID.String(),
			Room:        m.Room,
			SenderID:    m.SenderID,
			DisplayName: m.DisplayName,
			Content:     m.Content,
			CreatedAt:   m.CreatedAt,
		})
	}
	return out
}
