package supabase

import (
	"context"
	"fmt"
	"github.com/iamvkosarev/vedai/internal/model"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"time"
)

const chatsTable = "chats"

type chatRow struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Title     string          `json:"title"`
	Messages  []model.Message `json:"messages"`
	CreatedAt *time.Time      `json:"created_at,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ChatStorage keeps chat sessions in the "chats" table.
type ChatStorage struct {
	client *supabase.Client
}

// NewChatStorage queries through client. Rows are visible according to the
// session the client carries, see Auth.
func NewChatStorage(client *supabase.Client) *ChatStorage {
	return &ChatStorage{
		client: client,
	}
}

func (s *ChatStorage) ListUserChats(_ context.Context, userID string) ([]model.Chat, error) {
	var rows []chatRow
	_, err := s.client.From(chatsTable).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats of user %s: %w", userID, err)
	}
	chats := make([]model.Chat, 0, len(rows))
	for _, row := range rows {
		chats = append(chats, row.toChat())
	}
	return chats, nil
}

func (s *ChatStorage) UpsertChat(_ context.Context, chat model.Chat) error {
	messages := chat.Messages
	if messages == nil {
		messages = []model.Message{}
	}
	row := chatRow{
		ID:        chat.ChatID,
		UserID:    chat.UserID,
		Title:     chat.Title,
		Messages:  messages,
		UpdatedAt: time.Now().UTC(),
	}
	_, _, err := s.client.From(chatsTable).
		Upsert(row, "id", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to upsert chat %s: %w", chat.ChatID, err)
	}
	return nil
}

func (s *ChatStorage) GetChat(_ context.Context, chatID string) (model.Chat, error) {
	var rows []chatRow
	_, err := s.client.From(chatsTable).
		Select("*", "", false).
		Eq("id", chatID).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return model.Chat{}, fmt.Errorf("failed to get chat %s: %w", chatID, err)
	}
	if len(rows) == 0 {
		return model.Chat{}, fmt.Errorf("failed to get chat %s: %w", chatID, model.ErrChatDoesNotExist)
	}
	return rows[0].toChat(), nil
}

func (s *ChatStorage) DeleteChat(_ context.Context, chatID string) error {
	_, _, err := s.client.From(chatsTable).
		Delete("minimal", "").
		Eq("id", chatID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete chat %s: %w", chatID, err)
	}
	return nil
}

func (s *ChatStorage) DeleteUserChats(_ context.Context, userID string) error {
	_, _, err := s.client.From(chatsTable).
		Delete("minimal", "").
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete chats of user %s: %w", userID, err)
	}
	return nil
}

func (r chatRow) toChat() model.Chat {
	chat := model.Chat{
		ChatID:    r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Messages:  r.Messages,
		UpdatedAt: r.UpdatedAt,
	}
	if chat.Messages == nil {
		chat.Messages = []model.Message{}
	}
	if r.CreatedAt != nil {
		chat.CreatedAt = *r.CreatedAt
	}
	return chat
}
