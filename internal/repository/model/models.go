package model

import (
	"time"

	"github.com/google/uuid"
)

type Consultation struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CallerID   string     `gorm:"size:64;index;not null"`
	CalleeID   string     `gorm:"size:64;index;not null"`
	Kind       string     `gorm:"size:16;not null"`
	Status     string     `gorm:"size:32;not null"`
	StartedAt  time.Time  `gorm:"not null"`
	AnsweredAt *time.Time
	EndedAt    *time.Time
}

type LiveSession struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	HostID      string    `gorm:"size:64;index;not null"`
	Title       string    `gorm:"size:255"`
	Status      string    `gorm:"size:32;index;not null"`
	PeakViewers int       `gorm:"not null"`
	StartedAt   time.Time `gorm:"not null"`
	EndedAt     *time.Time
}

type ChatMessage struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Room        string    `gorm:"size:64;index;not null"`
	SenderID    string    `gorm:"size:64;not null"`
	DisplayName string    `gorm:"size:255"`
	Content     string    `gorm:"size:4000;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"size:255;not null"`
	Email        string    `gorm:"size:255"`
	IsAstrologer bool      `gorm:"not null"`
	IsGuest      bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}
