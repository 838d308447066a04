package usecase

import (
	"context"
	"errors"
	"fmt"
	"github.com/iamvkosarev/vedai/internal/model"
	"log/slog"
)

const (
	MessageFailedToSaveFormat   = "Failed to save: %s"
	MessageFailedToDeleteFormat = "Failed to delete chat: %s"
	MessageFailedToClearFormat  = "Failed to clear chats: %s"
	MessageUnknownError         = "Unknown error"
)

type ChatStorage interface {
	ListUserChats(ctx context.Context, userID string) ([]model.Chat, error)
	UpsertChat(ctx context.Context, chat model.Chat) error
	GetChat(ctx context.Context, chatID string) (model.Chat, error)
	DeleteChat(ctx context.Context, chatID string) error
	DeleteUserChats(ctx context.Context, userID string) error
}

type NotificationLevel string

const (
	NotificationInfo    = NotificationLevel("info")
	NotificationSuccess = NotificationLevel("success")
	NotificationError   = NotificationLevel("error")
)

type Notifier interface {
	Notify(level NotificationLevel, message string)
}

type ChatUsecaseDeps struct {
	ChatStorage ChatStorage
	Notifier    Notifier
}

// ChatUsecase is the remote chat store. Failures are logged and swallowed;
// callers get empty results instead of errors.
type ChatUsecase struct {
	ChatUsecaseDeps
}

func NewChatUsecase(deps ChatUsecaseDeps) *ChatUsecase {
	return &ChatUsecase{
		ChatUsecaseDeps: deps,
	}
}

func (c *ChatUsecase) List(ctx context.Context, userID string) []model.Chat {
	if userID == "" {
		return []model.Chat{}
	}
	chats, err := c.ChatStorage.ListUserChats(ctx, userID)
	if err != nil {
		slog.Error("failed to fetch history", "user_id", userID, "error", err)
		return []model.Chat{}
	}
	return chats
}

func (c *ChatUsecase) Save(ctx context.Context, userID string, chat model.Chat) {
	if userID == "" {
		return
	}
	chat.UserID = userID
	if err := c.ChatStorage.UpsertChat(ctx, chat); err != nil {
		slog.Error("failed to save chat", "chat_id", chat.ChatID, "error", err)
		c.notify(NotificationError, MessageFailedToSaveFormat, err)
	}
}

// Get returns the chat by id regardless of its owner.
func (c *ChatUsecase) Get(ctx context.Context, chatID string) (model.Chat, bool) {
	chat, err := c.ChatStorage.GetChat(ctx, chatID)
	if err != nil {
		if !errors.Is(err, model.ErrChatDoesNotExist) {
			slog.Error("failed to load chat", "chat_id", chatID, "error", err)
		}
		return model.Chat{}, false
	}
	return chat, true
}

func (c *ChatUsecase) Delete(ctx context.Context, chatID string) {
	if chatID == "" {
		return
	}
	if err := c.ChatStorage.DeleteChat(ctx, chatID); err != nil {
		slog.Error("failed to delete chat", "chat_id", chatID, "error", err)
		c.notify(NotificationError, MessageFailedToDeleteFormat, err)
	}
}

// DeleteAll removes every chat of the user and reports whether it succeeded.
func (c *ChatUsecase) DeleteAll(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}
	if err := c.ChatStorage.DeleteUserChats(ctx, userID); err != nil {
		slog.Error("failed to clear chats", "user_id", userID, "error", err)
		c.notify(NotificationError, MessageFailedToClearFormat, err)
		return false
	}
	slog.Info("all chats cleared", "user_id", userID)
	return true
}

func (c *ChatUsecase) notify(level NotificationLevel, format string, err error) {
	if c.Notifier == nil {
		return
	}
	detail := MessageUnknownError
	if err != nil && err.Error() != "" {
		detail = err.Error()
	}
	c.Notifier.Notify(level, fmt.Sprintf(format, detail))
}
