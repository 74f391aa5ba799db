package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/astrolink/consult-rtc/internal/domain"
	"github.com/astrolink/consult-rtc/internal/repository"
)

const defaultChatHistoryLimit = 100

// SessionService is the read side for consultation and live-session records
// the relay writes while routing.
type SessionService struct {
	consultations repository.ConsultationRepository
	sessions      repository.LiveSessionRepository
	chats         repository.ChatRepository
	presence      repository.PresenceStore
	log           *slog.Logger
}

func NewSessionService(
	consultations repository.ConsultationRepository,
	sessions repository.LiveSessionRepository,
	chats repository.ChatRepository,
	presence repository.PresenceStore,
	log *slog.Logger,
) *SessionService {
	if log == nil {
		log = slog.Default()
	}
	return &SessionService{
		consultations: consultations,
		sessions:      sessions,
		chats:         chats,
		presence:      presence,
		log:           log,
	}
}

func (s *SessionService) GetConsultation(ctx context.Context, id uuid.UUID) (*domain.Consultation, error) {
	return s.consultations.GetByID(ctx, id)
}

func (s *SessionService) ListConsultations(ctx context.Context, participantID string) ([]*domain.Consultation, error) {
	return s.consultations.ListByParticipant(ctx, participantID)
}

func (s *SessionService) GetLiveSession(ctx context.Context, id uuid.UUID) (*domain.LiveSession, error) {
	return s.sessions.GetByID(ctx, id)
}

func (s *SessionService) ListActiveLiveSessions(ctx context.Context) ([]*domain.LiveSession, error) {
	return s.sessions.ListActive(ctx)
}

func (s *SessionService) ChatHistory(ctx context.Context, room string, limit int) ([]*domain.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultChatHistoryLimit
	}
	return s.chats.ListByRoom(ctx, room, limit)
}

func (s *SessionService) LiveViewerCount(ctx context.Context, room string) (int, error) {
	return s.presence.ViewerCount(ctx, room)
}
