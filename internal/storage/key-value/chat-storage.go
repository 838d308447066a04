package key_value

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/iamvkosarev/vedai/internal/model"
	"github.com/redis/go-redis/v9"
	"slices"
	"sort"
	"time"
)

var (
	ErrUserChatsIDsDoNotExist = errors.New("user chat ids does not exist")
)

type messageInternal struct {
	Role    model.MessageRole `json:"role"`
	Content string            `json:"content"`
}

type chatInternal struct {
	ChatID    string            `json:"chat_id"`
	UserID    string            `json:"user_id"`
	Title     string            `json:"title"`
	Messages  []messageInternal `json:"messages"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type userChatsIDs struct {
	Chats []string `json:"chats"`
}

type ChatStorage struct {
	rdb *redis.Client
}

func NewChatStorage(rdb *redis.Client) *ChatStorage {
	return &ChatStorage{
		rdb: rdb,
	}
}

func (a *ChatStorage) UpsertChat(ctx context.Context, chat model.Chat) error {
	now := time.Now()
	chatInt := toChatInternal(chat)
	chatInt.UpdatedAt = now

	stored, err := a.getChatInt(ctx, chat.ChatID)
	switch {
	case err == nil:
		chatInt.CreatedAt = stored.CreatedAt
		if stored.UserID != chat.UserID {
			if err = a.removeFromUserChats(ctx, stored.UserID, chat.ChatID); err != nil {
				return err
			}
		}
	case errors.Is(err, model.ErrChatDoesNotExist):
		if chatInt.CreatedAt.IsZero() {
			chatInt.CreatedAt = now
		}
	default:
		return err
	}

	if err = a.setChatInt(ctx, chatInt); err != nil {
		return fmt.Errorf("failed to set chat internal %s: %w", chat.ChatID, err)
	}

	userChatsIDsInt, err := a.getUserChatsIDs(ctx, chat.UserID)
	if err != nil {
		if !errors.Is(err, ErrUserChatsIDsDoNotExist) {
			return fmt.Errorf("failed to get user chats ids: %w", err)
		}
		userChatsIDsInt = userChatsIDs{
			Chats: make([]string, 0),
		}
	}
	if slices.Contains(userChatsIDsInt.Chats, chat.ChatID) {
		return nil
	}
	userChatsIDsInt.Chats = append(userChatsIDsInt.Chats, chat.ChatID)
	if err = a.setUserChatsIDs(ctx, chat.UserID, userChatsIDsInt); err != nil {
		return fmt.Errorf("failed to set user chats ids: %w", err)
	}
	return nil
}

func (a *ChatStorage) ListUserChats(ctx context.Context, userID string) ([]model.Chat, error) {
	userChatsIDsInt, err := a.getUserChatsIDs(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserChatsIDsDoNotExist) {
			return []model.Chat{}, nil
		}
		return nil, fmt.Errorf("failed to get user chats ids: %w", err)
	}
	chats := make([]model.Chat, 0, len(userChatsIDsInt.Chats))
	for _, chatID := range userChatsIDsInt.Chats {
		chat, err := a.GetChat(ctx, chatID)
		if err != nil {
			if errors.Is(err, model.ErrChatDoesNotExist) {
				continue
			}
			return nil, err
		}
		chats = append(chats, chat)
	}
	sort.SliceStable(
		chats, func(i, j int) bool {
			return chats[i].CreatedAt.After(chats[j].CreatedAt)
		},
	)
	return chats, nil
}

func (a *ChatStorage) GetChat(ctx context.Context, chatID string) (model.Chat, error) {
	chatInt, err := a.getChatInt(ctx, chatID)
	if err != nil {
		return model.Chat{}, fmt.Errorf("failed to get chat %s: %w", chatID, err)
	}
	return fromChatInternal(chatInt), nil
}

func (a *ChatStorage) DeleteChat(ctx context.Context, chatID string) error {
	chatInt, err := a.getChatInt(ctx, chatID)
	if err != nil {
		if errors.Is(err, model.ErrChatDoesNotExist) {
			return nil
		}
		return err
	}
	if err = a.rdb.Del(ctx, getChatIDKey(chatID)).Err(); err != nil {
		return fmt.Errorf("failed to delete chat %s: %w", chatID, err)
	}
	return a.removeFromUserChats(ctx, chatInt.UserID, chatID)
}

func (a *ChatStorage) DeleteUserChats(ctx context.Context, userID string) error {
	userChatsIDsInt, err := a.getUserChatsIDs(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserChatsIDsDoNotExist) {
			return nil
		}
		return fmt.Errorf("failed to get user chats ids: %w", err)
	}
	keys := make([]string, 0, len(userChatsIDsInt.Chats)+1)
	for _, chatID := range userChatsIDsInt.Chats {
		keys = append(keys, getChatIDKey(chatID))
	}
	keys = append(keys, getUserChatsKey(userID))
	if err = a.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete user chats %s: %w", userID, err)
	}
	return nil
}

func (a *ChatStorage) removeFromUserChats(ctx context.Context, userID, chatID string) error {
	userChatsIDsInt, err := a.getUserChatsIDs(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserChatsIDsDoNotExist) {
			return nil
		}
		return fmt.Errorf("failed to get user chats ids: %w", err)
	}
	userChatsIDsInt.Chats = slices.DeleteFunc(
		userChatsIDsInt.Chats, func(id string) bool {
			return id == chatID
		},
	)
	if err = a.setUserChatsIDs(ctx, userID, userChatsIDsInt); err != nil {
		return fmt.Errorf("failed to set user chats ids: %w", err)
	}
	return nil
}

func (a *ChatStorage) getChatInt(ctx context.Context, chatID string) (chatInternal, error) {
	chatIDKey := getChatIDKey(chatID)
	chatIntRaw, err := a.rdb.Get(ctx, chatIDKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return chatInternal{}, model.ErrChatDoesNotExist
		}
		return chatInternal{}, fmt.Errorf("failed to get chat %s: %w", chatID, err)
	}
	var chatInt chatInternal
	if err = json.Unmarshal([]byte(chatIntRaw), &chatInt); err != nil {
		return chatInternal{}, fmt.Errorf("failed to unmarshal chat %s: %w", chatID, err)
	}
	return chatInt, nil
}

func (a *ChatStorage) setChatInt(ctx context.Context, chatInt chatInternal) error {
	chatIDKey := getChatIDKey(chatInt.ChatID)
	chatIntJSON, err := json.Marshal(chatInt)
	if err != nil {
		return fmt.Errorf("failed to marshal internal chat: %w", err)
	}
	if err = a.rdb.Set(ctx, chatIDKey, chatIntJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to save chatInternal %s: %w", chatIDKey, err)
	}
	return nil
}

func (a *ChatStorage) getUserChatsIDs(ctx context.Context, userID string) (userChatsIDs, error) {
	userChatsKey := getUserChatsKey(userID)
	userChatsRaw, err := a.rdb.Get(ctx, userChatsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return userChatsIDs{}, ErrUserChatsIDsDoNotExist
		}
		return userChatsIDs{}, fmt.Errorf("failed to get userChatsIDs %s: %w", userID, err)
	}
	var userChats userChatsIDs
	if err = json.Unmarshal([]byte(userChatsRaw), &userChats); err != nil {
		return userChatsIDs{}, fmt.Errorf("failed to unmarshal userChatsIDs %s: %w", userID, err)
	}
	return userChats, nil
}

func (a *ChatStorage) setUserChatsIDs(ctx context.Context, userID string, userChatsIDsInt userChatsIDs) error {
	userChatsIDsIntJSON, err := json.Marshal(userChatsIDsInt)
	if err != nil {
		return fmt.Errorf("failed to marshal user chats ids: %w", err)
	}
	userChatsKey := getUserChatsKey(userID)
	if err = a.rdb.Set(ctx, userChatsKey, userChatsIDsIntJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to save user chats ids %s: %w", userChatsKey, err)
	}
	return nil
}

func toChatInternal(chat model.Chat) chatInternal {
	messages := make([]messageInternal, 0, len(chat.Messages))
	for _, msg := range chat.Messages {
		messages = append(
			messages, messageInternal{
				Role:    msg.Role,
				Content: msg.Content,
			},
		)
	}
	return chatInternal{
		ChatID:    chat.ChatID,
		UserID:    chat.UserID,
		Title:     chat.Title,
		Messages:  messages,
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
	}
}

func fromChatInternal(chatInt chatInternal) model.Chat {
	messages := make([]model.Message, 0, len(chatInt.Messages))
	for _, msg := range chatInt.Messages {
		messages = append(
			messages, model.Message{
				Role:    msg.Role,
				Content: msg.Content,
			},
		)
	}
	return model.Chat{
		ChatID:    chatInt.ChatID,
		UserID:    chatInt.UserID,
		Title:     chatInt.Title,
		Messages:  messages,
		CreatedAt: chatInt.CreatedAt,
		UpdatedAt: chatInt.UpdatedAt,
	}
}

func getChatIDKey(chatID string) string {
	return fmt.Sprintf("chat_%v", chatID)
}

func getUserChatsKey(userID string) string {
	return fmt.Sprintf("user_chats_%v", userID)
}
