package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/astrolink/consult-rtc/internal/domain"
)

type UserInteractor interface {
	CreateUser(ctx context.Context, name, email string, isAstrologer bool) (*domain.User, error)
	CreateGuest(ctx context.Context, name string) (*domain.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type SessionInteractor interface {
	GetConsultation(ctx context.Context, id uuid.UUID) (*domain.Consultation, error)
	ListConsultations(ctx context.Context, participantID string) ([]*domain.Consultation, error)
	GetLiveSession(ctx context.Context, id uuid.UUID) (*domain.LiveSession, error)
	ListActiveLiveSessions(ctx context.Context) ([]*domain.LiveSession, error)
	ChatHistory(ctx context.Context, room string, limit int) ([]*domain.ChatMessage, error)
	LiveViewerCount(ctx context.Context, room string) (int, error)
}
