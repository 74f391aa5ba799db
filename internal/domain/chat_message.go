package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	ID          uuid.UUID
	Room        string
	SenderID    string
	DisplayName string
	Content     string
	CreatedAt   time.Time
}

func NewChatMessage(room, senderID, displayName, content string) *ChatMessage {
	return &ChatMessage{
		ID:          uuid.New(),
		Room:        room,
		SenderID:    senderID,
		DisplayName: displayName,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}
}
