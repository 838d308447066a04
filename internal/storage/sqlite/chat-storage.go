package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/iamvkosarev/vedai/internal/model"
	_ "modernc.org/sqlite"
	"time"
)

const createChatsTable = `
CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	messages TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

const createChatsIndex = `
CREATE INDEX IF NOT EXISTS chats_user_id_created_at ON chats (user_id, created_at)`

const upsertChat = `
INSERT INTO chats (id, user_id, title, messages, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	user_id = excluded.user_id,
	title = excluded.title,
	messages = excluded.messages,
	updated_at = excluded.updated_at`

type ChatStorage struct {
	db *sql.DB
}

// Open opens the database at path and creates the schema when missing.
func Open(path string) (*ChatStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{createChatsTable, createChatsIndex} {
		if _, err = db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create chats schema: %w", err)
		}
	}
	return &ChatStorage{
		db: db,
	}, nil
}

func (s *ChatStorage) Close() error {
	return s.db.Close()
}

func (s *ChatStorage) ListUserChats(ctx context.Context, userID string) ([]model.Chat, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, user_id, title, messages, created_at, updated_at FROM chats
		WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats of user %s: %w", userID, err)
	}
	defer rows.Close()

	chats := make([]model.Chat, 0)
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list chats of user %s: %w", userID, err)
	}
	return chats, nil
}

func (s *ChatStorage) UpsertChat(ctx context.Context, chat model.Chat) error {
	messages := chat.Messages
	if messages == nil {
		messages = []model.Message{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages of chat %s: %w", chat.ChatID, err)
	}
	now := time.Now()
	createdAt := chat.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err = s.db.ExecContext(
		ctx, upsertChat,
		chat.ChatID, chat.UserID, chat.Title, string(messagesJSON), createdAt.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chat %s: %w", chat.ChatID, err)
	}
	return nil
}

func (s *ChatStorage) GetChat(ctx context.Context, chatID string) (model.Chat, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, title, messages, created_at, updated_at FROM chats WHERE id = ?`,
		chatID,
	)
	chat, err := scanChat(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Chat{}, fmt.Errorf("failed to get chat %s: %w", chatID, model.ErrChatDoesNotExist)
		}
		return model.Chat{}, err
	}
	return chat, nil
}

func (s *ChatStorage) DeleteChat(ctx context.Context, chatID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID); err != nil {
		return fmt.Errorf("failed to delete chat %s: %w", chatID, err)
	}
	return nil
}

func (s *ChatStorage) DeleteUserChats(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete chats of user %s: %w", userID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChat(row scanner) (model.Chat, error) {
	var (
		chat         model.Chat
		messagesJSON string
		createdAt    int64
		updatedAt    int64
	)
	if err := row.Scan(&chat.ChatID, &chat.UserID, &chat.Title, &messagesJSON, &createdAt, &updatedAt); err != nil {
		return model.Chat{}, err
	}
	if err := json.Unmarshal([]byte(messagesJSON), &chat.Messages); err != nil {
		return model.Chat{}, fmt.Errorf("failed to unmarshal messages of chat %s: %w", chat.ChatID, err)
	}
	chat.CreatedAt = time.Unix(0, createdAt)
	chat.UpdatedAt = time.Unix(0, updatedAt)
	return chat, nil
}
