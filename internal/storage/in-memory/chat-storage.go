package in_memory

import (
	"context"
	"github.com/iamvkosarev/vedai/internal/model"
	"sort"
	"sync"
	"time"
)

type ChatStorage struct {
	mu    sync.RWMutex
	chats map[string]*model.Chat
	now   func() time.Time
}

func NewChatStorage() *ChatStorage {
	return &ChatStorage{
		chats: make(map[string]*model.Chat),
		now:   time.Now,
	}
}

func (a *ChatStorage) ListUserChats(_ context.Context, userID string) ([]model.Chat, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	chats := make([]model.Chat, 0)
	for _, chat := range a.chats {
		if chat.UserID == userID {
			chats = append(chats, copyChat(*chat))
		}
	}
	sort.SliceStable(
		chats, func(i, j int) bool {
			return chats[i].CreatedAt.After(chats[j].CreatedAt)
		},
	)
	return chats, nil
}

func (a *ChatStorage) UpsertChat(_ context.Context, chat model.Chat) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	stored := copyChat(chat)
	stored.UpdatedAt = now
	if existing, ok := a.chats[chat.ChatID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	a.chats[chat.ChatID] = &stored
	return nil
}

func (a *ChatStorage) GetChat(_ context.Context, chatID string) (model.Chat, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	chat, ok := a.chats[chatID]
	if !ok {
		return model.Chat{}, model.ErrChatDoesNotExist
	}
	return copyChat(*chat), nil
}

func (a *ChatStorage) DeleteChat(_ context.Context, chatID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.chats, chatID)
	return nil
}

func (a *ChatStorage) DeleteUserChats(_ context.Context, userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for chatID, chat := range a.chats {
		if chat.UserID == userID {
			delete(a.chats, chatID)
		}
	}
	return nil
}

func copyChat(chat model.Chat) model.Chat {
	chat.Messages = model.CopyMessages(chat.Messages)
	return chat
}
