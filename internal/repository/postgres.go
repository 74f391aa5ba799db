package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/astrolink/consult-rtc/internal/domain"
	"github.com/astrolink/consult-rtc/internal/repository/model"
)

type PostgresConsultationRepository struct {
	db *gorm.DB
}

func NewPostgresConsultationRepository(db *gorm.DB) *PostgresConsultationRepository {
	return &PostgresConsultationRepository{db: db}
}

func (r *PostgresConsultationRepository) Create(ctx context.Context, consultation *domain.Consultation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if consultation == nil {
		return errors.New("consultation is nil")
	}

	return r.db.WithContext(ctx).Create(toModelConsultation(consultation)).Error
}

func (r *PostgresConsultationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Consultation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var consultation model.Consultation
	err := r.db.WithContext(ctx).First(&consultation, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConsultationNotFound
		}
		return nil, err
	}

	return toDomainConsultation(&consultation), nil
}

func (r *PostgresConsultationRepository) Update(ctx context.Context, consultation *domain.Consultation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if consultation == nil {
		return errors.New("consultation is nil")
	}

	res := r.db.WithContext(ctx).
		Model(&model.Consultation{}).
		Where("id = ?", consultation.ID).
		Updates(map[string]any{
			"status":      string(consultation.Status),
			"answered_at": consultation.AnsweredAt,
			"ended_at":    consultation.EndedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConsultationNotFound
	}
	return nil
}

func (r *PostgresConsultationRepository) ListByParticipant(ctx context.Context, participantID string) ([]*domain.Consultation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var consultations []model.Consultation
	err := r.db.WithContext(ctx).
		Where("caller_id = ? OR callee_id = ?", participantID, participantID).
		Order("started_at DESC").
		Find(&consultations).Error
	if err != nil {
		return nil, err
	}

	result := make([]*domain.Consultation, 0, len(consultations))
	for i := range consultations {
		result = append(result, toDomainConsultation(&consultations[i]))
	}
	return result, nil
}

type PostgresLiveSessionRepository struct {
	db *gorm.DB
}

func NewPostgresLiveSessionRepository(db *gorm.DB) *PostgresLiveSessionRepository {
	return &PostgresLiveSessionRepository{db: db}
}

func (r *PostgresLiveSessionRepository) Create(ctx context.Context, session *domain.LiveSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == nil {
		return errors.New("live session is nil")
	}

	return r.db.WithContext(ctx).Create(toModelLiveSession(session)).Error
}

func (r *PostgresLiveSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.LiveSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var session model.LiveSession
	err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLiveSessionNotFound
		}
		return nil, err
	}

	return toDomainLiveSession(&session), nil
}

func (r *PostgresLiveSessionRepository) GetActiveByHost(ctx context.Context, hostID string) (*domain.LiveSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var session model.LiveSession
	err := r.db.WithContext(ctx).
		First(&session, "host_id = ? AND status = ?", hostID, string(domain.LiveSessionStatusLive)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLiveSessionNotFound
		}
		return nil, err
	}

	return toDomainLiveSession(&session), nil
}

func (r *PostgresLiveSessionRepository) Update(ctx context.Context, session *domain.LiveSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == nil {
		return errors.New("live session is nil")
	}

	res := r.db.WithContext(ctx).
		Model(&model.LiveSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]any{
			"status":       string(session.Status),
			"peak_viewers": session.PeakViewers,
			"ended_at":     session.EndedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrLiveSessionNotFound
	}
	return nil
}

func (r *PostgresLiveSessionRepository) ListActive(ctx context.Context) ([]*domain.LiveSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sessions []model.LiveSession
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.LiveSessionStatusLive)).
		Order("started_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	result := make([]*domain.LiveSession, 0, len(sessions))
	for i := range sessions {
		result = append(result, toDomainLiveSession(&sessions[i]))
	}
	return result, nil
}

type PostgresChatRepository struct {
	db *gorm.DB
}

func NewPostgresChatRepository(db *gorm.DB) *PostgresChatRepository {
	return &PostgresChatRepository{db: db}
}

func (r *PostgresChatRepository) Save(ctx context.Context, message *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if message == nil {
		return errors.New("chat message is nil")
	}

	return r.db.WithContext(ctx).Create(toModelChatMessage(message)).Error
}

func (r *PostgresChatRepository) ListByRoom(ctx context.Context, room string, limit int) ([]*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Where("room = ?", room).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []model.ChatMessage
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.ChatMessage, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		result = append(result, toDomainChatMessage(&messages[i]))
	}
	return result, nil
}

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	if err := r.db.WithContext(ctx).Create(toModelUser(user)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserEmailExists
		}
		return err
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user model.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return toDomainUser(&user), nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"name":          user.Name,
			"email":         user.Email,
			"is_astrologer": user.IsAstrologer,
			"is_guest":      user.IsGuest,
			"updated_at":    user.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func toModelConsultation(c *domain.Consultation) *model.Consultation {
	return &model.Consultation{
		ID:         c.ID,
		CallerID:   c.CallerID,
		CalleeID:   c.CalleeID,
		Kind:       string(c.Kind),
		Status:     string(c.Status),
		StartedAt:  c.StartedAt,
		AnsweredAt: c.AnsweredAt,
		EndedAt:    c.EndedAt,
	}
}

func toDomainConsultation(c *model.Consultation) *domain.Consultation {
	return &domain.Consultation{
		ID:         c.ID,
		CallerID:   c.CallerID,
		CalleeID:   c.CalleeID,
		Kind:       domain.CallKind(c.Kind),
		Status:     domain.ConsultationStatus(c.Status),
		StartedAt:  c.StartedAt,
		AnsweredAt: c.AnsweredAt,
		EndedAt:    c.EndedAt,
	}
}

func toModelLiveSession(s *domain.LiveSession) *model.LiveSession {
	return &model.LiveSession{
		ID:          s.ID,
		HostID:      s.HostID,
		Title:       s.Title,
		Status:      string(s.Status),
		PeakViewers: s.PeakViewers,
		StartedAt:   s.StartedAt,
		EndedAt:     s.EndedAt,
	}
}

func toDomainLiveSession(s *model.LiveSession) *domain.LiveSession {
	return &domain.LiveSession{
		ID:          s.ID,
		HostID:      s.HostID,
		Title:       s.Title,
		Status:      domain.LiveSessionStatus(s.Status),
		PeakViewers: s.PeakViewers,
		StartedAt:   s.StartedAt,
		EndedAt:     s.EndedAt,
	}
}

func toModelChatMessage(m *domain.ChatMessage) *model.ChatMessage {
	return &model.ChatMessage{
		ID:          m.ID,
		Room:        m.Room,
		SenderID:    m.SenderID,
		DisplayName: m.DisplayName,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
	}
}

func toDomainChatMessage(m *model.ChatMessage) *domain.ChatMessage {
	return &domain.ChatMessage{
		ID:          m.ID,
		Room:        m.Room,
		SenderID:    m.SenderID,
		DisplayName: m.DisplayName,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
	}
}

func toModelUser(u *domain.User) *model.User {
	return &model.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		IsAstrologer: u.IsAstrologer,
		IsGuest:      u.IsGuest,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func toDomainUser(u *model.User) *domain.User {
	return &domain.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		IsAstrologer: u.IsAstrologer,
		IsGuest:      u.IsGuest,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
