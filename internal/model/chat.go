package model

import (
	"errors"
	"github.com/google/uuid"
	"strings"
	"time"
)

const (
	ChatTitleMaxRunes = 30
	ChatTitleDefault  = "New Chat"
)

var (
	ErrChatDoesNotExist = errors.New("chat does not exist")
)

type Chat struct {
	ChatID    string
	UserID    string
	Title     string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewChatID returns a time-ordered random identifier.
func NewChatID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ChatTitle derives a title from the first user message.
func ChatTitle(messages []Message) string {
	for _, message := range messages {
		if message.Role != MessageRoleUser {
			continue
		}
		runes := []rune(message.Content)
		if len(runes) > ChatTitleMaxRunes {
			runes = runes[:ChatTitleMaxRunes]
		}
		return strings.TrimSpace(string(runes)) + "..."
	}
	return ChatTitleDefault
}

func CopyMessages(messages []Message) []Message {
	copied := make([]Message, len(messages))
	copy(copied, messages)
	return copied
}
