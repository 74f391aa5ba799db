package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a participant profile: a client or an astrologer. The
// user ID doubles as the routing identity on the relay.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	IsAstrologer bool      `json:"is_astrologer"`
	IsGuest      bool      `json:"is_guest"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewGuestUser(name string) *User {
	now := time.Now().UTC()
	return &User{
		ID:        uuid.New(),
		Name:      name,
		IsGuest:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewUser(name string, email string, isAstrologer bool) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		IsAstrologer: isAstrologer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
