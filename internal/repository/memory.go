package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/astrolink/consult-rtc/internal/domain"
)

var (
	ErrConsultationNotFound = errors.New("consultation not found")
	ErrLiveSessionNotFound  = errors.New("live session not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserEmailExists      = errors.New("user with email already exists")
)

type InMemoryConsultationRepository struct {
	mu            sync.RWMutex
	consultations map[uuid.UUID]*domain.Consultation
}

func NewInMemoryConsultationRepository() *InMemoryConsultationRepository {
	return &InMemoryConsultationRepository{
		consultations: make(map[uuid.UUID]*domain.Consultation),
	}
}

func (r *InMemoryConsultationRepository) Create(ctx context.Context, consultation *domain.Consultation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.consultations[consultation.ID] = consultation
	return nil
}

func (r *InMemoryConsultationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Consultation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	consultation, ok := r.consultations[id]
	if !ok {
		return nil, ErrConsultationNotFound
	}

	return consultation, nil
}

func (r *InMemoryConsultationRepository) Update(ctx context.Context, consultation *domain.Consultation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.consultations[consultation.ID]; !ok {
		return ErrConsultationNotFound
	}

	r.consultations[consultation.ID] = consultation
	return nil
}

func (r *InMemoryConsultationRepository) ListByParticipant(ctx context.Context, participantID string) ([]*domain.Consultation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Consultation, 0)
	for _, c := range r.consultations {
		if c.CallerID == participantID || c.CalleeID == participantID {
			result = append(result, c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result, nil
}

type InMemoryLiveSessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*domain.LiveSession
}

func NewInMemoryLiveSessionRepository() *InMemoryLiveSessionRepository {
	return &InMemoryLiveSessionRepository{
		sessions: make(map[uuid.UUID]*domain.LiveSession),
	}
}

func (r *InMemoryLiveSessionRepository) Create(ctx context.Context, session *domain.LiveSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = session
	return nil
}

func (r *InMemoryLiveSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.LiveSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrLiveSessionNotFound
	}

	return session, nil
}

func (r *InMemoryLiveSessionRepository) GetActiveByHost(ctx context.Context, hostID string) (*domain.LiveSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, session := range r.sessions {
		if session.HostID == hostID && session.Status == domain.LiveSessionStatusLive {
			return session, nil
		}
	}

	return nil, ErrLiveSessionNotFound
}

func (r *InMemoryLiveSessionRepository) Update(ctx context.Context, session *domain.LiveSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; !ok {
		return ErrLiveSessionNotFound
	}

	r.sessions[session.ID] = session
	return nil
}

func (r *InMemoryLiveSessionRepository) ListActive(ctx context.Context) ([]*domain.LiveSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.LiveSession, 0)
	for _, session := range r.sessions {
		if session.Status == domain.LiveSessionStatusLive {
			result = append(result, session)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result, nil
}

type InMemoryChatRepository struct {
	mu       sync.RWMutex
	messages map[string][]*domain.ChatMessage
}

func NewInMemoryChatRepository() *InMemoryChatRepository {
	return &InMemoryChatRepository{
		messages: make(map[string][]*domain.ChatMessage),
	}
}

func (r *InMemoryChatRepository) Save(ctx context.Context, message *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages[message.Room] = append(r.messages[message.Room], message)
	return nil
}

func (r *InMemoryChatRepository) ListByRoom(ctx context.Context, room string, limit int) ([]*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	messages := r.messages[room]
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	result := make([]*domain.ChatMessage, len(messages))
	copy(result, messages)
	return result, nil
}

type InMemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]*domain.User
	emails map[string]uuid.UUID
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:  make(map[uuid.UUID]*domain.User),
		emails: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if user.Email != "" {
		if _, ok := r.emails[user.Email]; ok {
			return ErrUserEmailExists
		}
		r.emails[user.Email] = user.ID
	}

	r.users[user.ID] = user
	return nil
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	return user, nil
}

func (r *InMemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return ErrUserNotFound
	}

	r.users[user.ID] = user
	if user.Email != "" {
		r.emails[user.Email] = user.ID
	}
	return nil
}

// InMemoryPresenceStore is the no-redis presence fallback for local runs and
// tests.
type InMemoryPresenceStore struct {
	mu    sync.Mutex
	rooms map[string]map[string]struct{}
}

func NewInMemoryPresenceStore() *InMemoryPresenceStore {
	return &InMemoryPresenceStore{rooms: make(map[string]map[string]struct{})}
}

func (s *InMemoryPresenceStore) AddViewer(ctx context.Context, room, viewerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	viewers, ok := s.rooms[room]
	if !ok {
		viewers = make(map[string]struct{})
		s.rooms[room] = viewers
	}
	viewers[viewerID] = struct{}{}
	return len(viewers), nil
}

func (s *InMemoryPresenceStore) RemoveViewer(ctx context.Context, room, viewerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	viewers := s.rooms[room]
	delete(viewers, viewerID)
	return len(viewers), nil
}

func (s *InMemoryPresenceStore) ViewerCount(ctx context.Context, room string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms[room]), nil
}

func (s *InMemoryPresenceStore) ClearRoom(ctx context.Context, room string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.rooms, room)
	s.mu.Unlock()
	return nil
}
