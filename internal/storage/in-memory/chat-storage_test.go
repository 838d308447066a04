package in_memory

import (
	"context"
	"testing"
	"time"

	"github.com/iamvkosarev/vedai/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := NewChatStorage()

	messages := []model.Message{
		{Role: model.MessageRoleUser, Content: "hi"},
		{Role: model.MessageRoleAssistant, Content: "hello"},
	}
	require.NoError(
		t, storage.UpsertChat(
			ctx, model.Chat{ChatID: "c1", UserID: "u1", Title: "hi...", Messages: messages},
		),
	)

	chat, err := storage.GetChat(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, messages, chat.Messages)
	assert.Equal(t, "u1", chat.UserID)
	assert.False(t, chat.CreatedAt.IsZero())

	_, err = storage.GetChat(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrChatDoesNotExist)
}

func TestChatStorage_UpsertKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	storage := NewChatStorage()
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	storage.now = func() time.Time { return first }

	require.NoError(t, storage.UpsertChat(ctx, model.Chat{ChatID: "c1", UserID: "u1"}))
	storage.now = func() time.Time { return first.Add(time.Hour) }
	require.NoError(t, storage.UpsertChat(ctx, model.Chat{ChatID: "c1", UserID: "u1", Title: "new"}))

	chat, err := storage.GetChat(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, first, chat.CreatedAt)
	assert.Equal(t, first.Add(time.Hour), chat.UpdatedAt)
	assert.Equal(t, "new", chat.Title)
}

func TestChatStorage_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	storage := NewChatStorage()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		created := base.Add(time.Duration(i) * time.Minute)
		storage.now = func() time.Time { return created }
		require.NoError(t, storage.UpsertChat(ctx, model.Chat{ChatID: id, UserID: "u1"}))
	}
	require.NoError(t, storage.UpsertChat(ctx, model.Chat{ChatID: "other", UserID: "u2"}))

	chats, err := storage.ListUserChats(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, chats, 3)
	assert.Equal(t, "new", chats[0].ChatID)
	assert.Equal(t, "old", chats[2].ChatID)

	require.NoError(t, storage.DeleteChat(ctx, "mid"))
	chats, err = storage.ListUserChats(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, chats, 2)

	require.NoError(t, storage.DeleteUserChats(ctx, "u1"))
	chats, err = storage.ListUserChats(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, chats)

	_, err = storage.GetChat(ctx, "other")
	assert.NoError(t, err)
}
