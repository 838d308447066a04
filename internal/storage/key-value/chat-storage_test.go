package key_value

import (
	"context"
	"os"
	"testing"

	"github.com/iamvkosarev/vedai/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "chat_abc", getChatIDKey("abc"))
	assert.Equal(t, "user_chats_u1", getUserChatsKey("u1"))
}

// Runs against a live server when REDIS_TEST_ENDPOINT is set.
func TestChatStorage_Redis(t *testing.T) {
	endpoint := os.Getenv("REDIS_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("REDIS_TEST_ENDPOINT is not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = rdb.Close() })

	storage := NewChatStorage(rdb)
	userID := "redis-test-" + model.NewChatID()
	t.Cleanup(func() { _ = storage.DeleteUserChats(ctx, userID) })

	messages := []model.Message{
		{Role: model.MessageRoleUser, Content: "ping"},
		{Role: model.MessageRoleAssistant, Content: "pong"},
	}
	chatID := model.NewChatID()
	require.NoError(t, storage.UpsertChat(ctx, model.Chat{ChatID: chatID, UserID: userID, Messages: messages}))
	require.NoError(t, storage.UpsertChat(ctx, model.Chat{ChatID: chatID, UserID: userID, Messages: messages}))

	chat, err := storage.GetChat(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, messages, chat.Messages)

	chats, err := storage.ListUserChats(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	require.NoError(t, storage.DeleteChat(ctx, chatID))
	_, err = storage.GetChat(ctx, chatID)
	assert.ErrorIs(t, err, model.ErrChatDoesNotExist)
}
