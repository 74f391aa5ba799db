package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/astrolink/consult-rtc/internal/domain"
)

type ConsultationRepository interface {
	Create(ctx context.Context, consultation *domain.Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Consultation, error)
	Update(ctx context.Context, consultation *domain.Consultation) error
	ListByParticipant(ctx context.Context, participantID string) ([]*domain.Consultation, error)
}

type LiveSessionRepository interface {
	Create(ctx context.Context, session *domain.LiveSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LiveSession, error)
	GetActiveByHost(ctx context.Context, hostID string) (*domain.LiveSession, error)
	Update(ctx context.Context, session *domain.LiveSession) error
	ListActive(ctx context.Context) ([]*domain.LiveSession, error)
}

type ChatRepository interface {
	Save(ctx context.Context, message *domain.ChatMessage) error
	ListByRoom(ctx context.Context, room string, limit int) ([]*domain.ChatMessage, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

// PresenceStore tracks who is watching which live room. Backed by redis in
// deployments, by memory locally.
type PresenceStore interface {
	AddViewer(ctx context.Context, room, viewerID string) (int, error)
	RemoveViewer(ctx context.Context, room, viewerID string) (int, error)
	ViewerCount(ctx context.Context, room string) (int, error)
	ClearRoom(ctx context.Context, room string) error
}
