package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/iamvkosarev/vedai/internal/model"
	in_memory "github.com/iamvkosarev/vedai/internal/storage/in-memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notification struct {
	level   NotificationLevel
	message string
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []notification
}

func (r *recordingNotifier) Notify(level NotificationLevel, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, notification{level: level, message: message})
}

func (r *recordingNotifier) all() []notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification(nil), r.notifications...)
}

type failingChatStorage struct {
	err error
}

func (f failingChatStorage) ListUserChats(context.Context, string) ([]model.Chat, error) {
	return nil, f.err
}

func (f failingChatStorage) UpsertChat(context.Context, model.Chat) error {
	return f.err
}

func (f failingChatStorage) GetChat(context.Context, string) (model.Chat, error) {
	return model.Chat{}, f.err
}

func (f failingChatStorage) DeleteChat(context.Context, string) error {
	return f.err
}

func (f failingChatStorage) DeleteUserChats(context.Context, string) error {
	return f.err
}

func TestChatUsecase_SaveListGetDelete(t *testing.T) {
	ctx := context.Background()
	chats := NewChatUsecase(ChatUsecaseDeps{ChatStorage: in_memory.NewChatStorage()})

	chats.Save(
		ctx, "user-1", model.Chat{
			ChatID:   "chat-1",
			Title:    "Hello...",
			Messages: []model.Message{{Role: model.MessageRoleUser, Content: "Hello"}},
		},
	)

	list := chats.List(ctx, "user-1")
	require.Len(t, list, 1)
	assert.Equal(t, "user-1", list[0].UserID)

	chat, ok := chats.Get(ctx, "chat-1")
	require.True(t, ok)
	assert.Equal(t, "Hello", chat.Messages[0].Content)

	chats.Delete(ctx, "chat-1")
	_, ok = chats.Get(ctx, "chat-1")
	assert.False(t, ok)
}

func TestChatUsecase_NoUserIsNoop(t *testing.T) {
	ctx := context.Background()
	storage := in_memory.NewChatStorage()
	chats := NewChatUsecase(ChatUsecaseDeps{ChatStorage: storage})

	chats.Save(ctx, "", model.Chat{ChatID: "chat-1"})
	assert.Empty(t, chats.List(ctx, ""))
	_, err := storage.GetChat(ctx, "chat-1")
	assert.ErrorIs(t, err, model.ErrChatDoesNotExist)
}

func TestChatUsecase_FailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	chats := NewChatUsecase(
		ChatUsecaseDeps{
			ChatStorage: failingChatStorage{err: errors.New("permission denied")},
			Notifier:    notifier,
		},
	)

	assert.Empty(t, chats.List(ctx, "user-1"))
	_, ok := chats.Get(ctx, "chat-1")
	assert.False(t, ok)
	chats.Save(ctx, "user-1", model.Chat{ChatID: "chat-1"})
	chats.Delete(ctx, "chat-1")
	assert.False(t, chats.DeleteAll(ctx, "user-1"))

	assert.Equal(
		t, []notification{
			{level: NotificationError, message: "Failed to save: permission denied"},
			{level: NotificationError, message: "Failed to delete chat: permission denied"},
			{level: NotificationError, message: "Failed to clear chats: permission denied"},
		}, notifier.all(),
	)
}

func TestChatUsecase_DeleteAllKeepsOtherUsers(t *testing.T) {
	ctx := context.Background()
	chats := NewChatUsecase(ChatUsecaseDeps{ChatStorage: in_memory.NewChatStorage()})
	chats.Save(ctx, "user-1", model.Chat{ChatID: "a"})
	chats.Save(ctx, "user-2", model.Chat{ChatID: "b"})

	assert.True(t, chats.DeleteAll(ctx, "user-1"))
	assert.False(t, chats.DeleteAll(ctx, ""))

	assert.Empty(t, chats.List(ctx, "user-1"))
	assert.Len(t, chats.List(ctx, "user-2"), 1)
}
