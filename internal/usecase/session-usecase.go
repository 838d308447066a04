package usecase

import (
	"context"
	"errors"
	"fmt"
	"github.com/iamvkosarev/vedai/config"
	"github.com/iamvkosarev/vedai/internal/model"
	"github.com/iamvkosarev/vedai/pkg/local"
	"github.com/sourcegraph/conc"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultRevealChunk         = 2
	defaultRevealInterval      = 10 * time.Millisecond
	exportSeparator            = "\n\n"
	exportLineFormat           = "[%s]: %s"
	connectionErrorDetailLimit = 200
)

var (
	ErrGuestLimitReached      = errors.New("guest message limit reached")
	ErrMessageIndexOutOfRange = errors.New("message index out of range")
	ErrMessageNotEditable     = errors.New("only user messages can be edited")
	ErrNothingToExport        = errors.New("nothing to export")
	ErrEmptyReply             = errors.New("relay returned an empty reply")
)

var (
	MessageThinking    = local.NewSet("Thinking...", local.NewTrans(local.Spanish, "Pensando..."), local.NewTrans(local.French, "Réflexion..."))
	MessageLoadingChat = local.NewSet("Loading chat...", local.NewTrans(local.Spanish, "Cargando chat..."), local.NewTrans(local.French, "Chargement du chat..."))
	MessageStopped     = local.NewSet(
		"Generation stopped by user.",
		local.NewTrans(local.Spanish, "Generación detenida por el usuario."),
		local.NewTrans(local.French, "Génération arrêtée par l'utilisateur."),
	)
	MessageErrorFormat           = local.NewSet("Error: %s")
	MessageConnectionErrorFormat = local.NewSet("Connection error (%s). Please check the server logs.")
	MessageGuestLimitReached     = local.NewSet(
		"Free limit reached! Please Sign In to continue.",
		local.NewTrans(local.Spanish, "¡Límite gratuito alcanzado! Inicia sesión para continuar."),
		local.NewTrans(local.French, "Limite gratuite atteinte ! Connectez-vous pour continuer."),
	)
	MessageChatDeleted = local.NewSet("Chat deleted", local.NewTrans(local.Spanish, "Chat eliminado"), local.NewTrans(local.French, "Chat supprimé"))
	MessageChatsClear  = local.NewSet(
		"All chat history cleared!",
		local.NewTrans(local.Spanish, "¡Historial de chats borrado!"),
		local.NewTrans(local.French, "Historique des chats effacé !"),
	)
)

type RelayClient interface {
	Complete(ctx context.Context, history []model.Message, aiModel string) (string, error)
}

// ChatView renders the current conversation. Placeholder shows a transient
// line until dismiss is called. Append adds a message whose content can be
// replaced later through update; Commit marks the last appended message as
// complete.
type ChatView interface {
	Reset()
	Placeholder(text string) (dismiss func())
	Append(message model.Message) (update func(content string))
	Commit(message model.Message)
}

type SessionUsecaseDeps struct {
	Chats    *ChatUsecase
	Relay    RelayClient
	Settings *SettingsUsecase
	Guest    *GuestUsecase
	User     *UserUsecase
	View     ChatView
	Notifier Notifier
}

// SessionUsecase owns the conversation shown to the user. Its methods are
// meant to be called from a single goroutine; StopTyping may be called from
// any goroutine.
type SessionUsecase struct {
	SessionUsecaseDeps
	cfg config.Client

	chatID   string
	messages []model.Message
	aiModel  string

	revealMu     sync.Mutex
	revealCancel context.CancelFunc

	persistWG     conc.WaitGroup
	persistSeq    atomic.Uint64
	persistMu     sync.Mutex
	persistedSeqs map[string]uint64
}

func NewSessionUsecase(deps SessionUsecaseDeps, cfg config.Client) *SessionUsecase {
	if cfg.RevealChunk <= 0 {
		cfg.RevealChunk = defaultRevealChunk
	}
	if cfg.RevealInterval < 0 {
		cfg.RevealInterval = defaultRevealInterval
	}
	return &SessionUsecase{
		SessionUsecaseDeps: deps,
		cfg:                cfg,
		chatID:             model.NewChatID(),
		messages:           []model.Message{},
		aiModel:            cfg.Model,
		persistedSeqs:      make(map[string]uint64),
	}
}

func (s *SessionUsecase) ChatID() string {
	return s.chatID
}

func (s *SessionUsecase) Messages() []model.Message {
	return model.CopyMessages(s.messages)
}

// Model is the model requested from the relay. Empty means the relay default.
func (s *SessionUsecase) Model() string {
	return s.aiModel
}

func (s *SessionUsecase) SetModel(aiModel string) {
	s.aiModel = strings.TrimSpace(aiModel)
	slog.Debug("model selected", "model", s.aiModel)
}

func (s *SessionUsecase) StartNewChat() {
	s.StopTyping()
	s.chatID = model.NewChatID()
	s.messages = []model.Message{}
	s.View.Reset()
	slog.Debug("new chat started", "chat_id", s.chatID)
}

// LoadChat replaces the session with the stored chat. Unknown ids or a
// signed-out user leave an empty conversation under that id.
func (s *SessionUsecase) LoadChat(ctx context.Context, chatID string) {
	s.StopTyping()
	s.chatID = chatID
	s.messages = []model.Message{}
	s.View.Reset()

	dismiss := s.View.Placeholder(MessageLoadingChat.Text(s.language()))
	user := s.User.CurrentUser()
	if user.Authenticated() {
		if chat, ok := s.Chats.Get(ctx, chatID); ok {
			s.messages = model.CopyMessages(chat.Messages)
			slog.Info("chat loaded", "chat_id", chatID, "messages", len(s.messages))
		} else {
			slog.Info("new chat initialized", "chat_id", chatID)
		}
	} else {
		slog.Info("new chat initialized without user", "chat_id", chatID)
	}
	dismiss()
	s.renderAll()
}

// AddMessage appends a message, renders it and persists the chat.
func (s *SessionUsecase) AddMessage(ctx context.Context, text string, role model.MessageRole) {
	message := model.Message{Role: role, Content: text}
	s.messages = append(s.messages, message)
	s.View.Append(message)
	s.persist(ctx)
}

// TypeMessage appends a message and reveals it progressively. The message is
// committed before the reveal starts; cancelling ctx or calling StopTyping
// shows the remaining text at once.
func (s *SessionUsecase) TypeMessage(ctx context.Context, text string, role model.MessageRole) {
	s.messages = append(s.messages, model.Message{Role: role, Content: text})
	s.persist(ctx)

	update := s.View.Append(model.Message{Role: role})
	revealCtx, cancel := context.WithCancel(ctx)
	s.setRevealCancel(cancel)
	defer func() {
		s.setRevealCancel(nil)
		cancel()
	}()

	runes := []rune(text)
	for shown := 0; shown < len(runes); {
		shown = min(shown+s.cfg.RevealChunk, len(runes))
		update(string(runes[:shown]))
		if shown == len(runes) || !s.waitReveal(revealCtx) {
			break
		}
	}
	update(text)
	s.View.Commit(model.Message{Role: role, Content: text})
}

// StopTyping finishes the running reveal, if any.
func (s *SessionUsecase) StopTyping() {
	s.revealMu.Lock()
	defer s.revealMu.Unlock()
	if s.revealCancel != nil {
		s.revealCancel()
	}
}

// EditMessage replaces the user message at index, drops everything after it
// and regenerates the reply once. Blank text is ignored.
func (s *SessionUsecase) EditMessage(ctx context.Context, index int, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if index < 0 || index >= len(s.messages) {
		return fmt.Errorf("failed to edit message %d: %w", index, ErrMessageIndexOutOfRange)
	}
	if s.messages[index].Role != model.MessageRoleUser {
		return fmt.Errorf("failed to edit message %d: %w", index, ErrMessageNotEditable)
	}
	s.messages[index].Content = text
	s.messages = s.messages[:index+1]
	s.renderAll()
	s.persist(ctx)
	s.Generate(ctx)
	return nil
}

// Send records the user's message and requests a reply. Guests are limited
// to GuestLimit messages; over the limit nothing is sent.
func (s *SessionUsecase) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !s.User.CurrentUser().Authenticated() && !s.Guest.TryConsume() {
		s.notify(NotificationInfo, MessageGuestLimitReached.Text(s.language()))
		return ErrGuestLimitReached
	}
	s.AddMessage(ctx, text, model.MessageRoleUser)
	s.Generate(ctx)
	return nil
}

// Generate asks the relay for a reply to the current conversation. Failures
// are shown as assistant notices that are not part of the conversation.
func (s *SessionUsecase) Generate(ctx context.Context) {
	language := s.language()
	dismiss := s.View.Placeholder(MessageThinking.Text(language))

	history := make([]model.Message, 0, len(s.messages)+1)
	if systemMessage, ok := s.Settings.SystemMessage(); ok {
		history = append(history, systemMessage)
	}
	history = append(history, s.messages...)

	reply, err := s.Relay.Complete(ctx, history, s.aiModel)
	if err == nil && reply == "" {
		err = ErrEmptyReply
	}
	dismiss()
	if err != nil {
		slog.Warn("failed to generate reply", "chat_id", s.chatID, "error", err)
		s.View.Append(
			model.Message{
				Role:    model.MessageRoleAssistant,
				Content: failureNotice(err, language),
			},
		)
		return
	}
	s.TypeMessage(ctx, reply, model.MessageRoleAssistant)
}

func (s *SessionUsecase) History(ctx context.Context) []model.Chat {
	return s.Chats.List(ctx, s.User.CurrentUser().UserID)
}

// DeleteChat removes a stored chat. Deleting the open chat starts a new one.
func (s *SessionUsecase) DeleteChat(ctx context.Context, chatID string) {
	s.Wait()
	s.Chats.Delete(ctx, chatID)
	s.notify(NotificationSuccess, MessageChatDeleted.Text(s.language()))
	if chatID == s.chatID {
		s.StartNewChat()
	}
}

func (s *SessionUsecase) ClearAll(ctx context.Context) {
	user := s.User.CurrentUser()
	if !user.Authenticated() {
		return
	}
	s.Wait()
	if !s.Chats.DeleteAll(ctx, user.UserID) {
		return
	}
	s.StartNewChat()
	s.notify(NotificationSuccess, MessageChatsClear.Text(s.language()))
}

// Export renders the conversation as "[ROLE]: content" blocks.
func (s *SessionUsecase) Export() (string, error) {
	if len(s.messages) == 0 {
		return "", ErrNothingToExport
	}
	lines := make([]string, 0, len(s.messages))
	for _, message := range s.messages {
		lines = append(lines, fmt.Sprintf(exportLineFormat, strings.ToUpper(string(message.Role)), message.Content))
	}
	return strings.Join(lines, exportSeparator), nil
}

// Wait blocks until pending background saves finish.
func (s *SessionUsecase) Wait() {
	s.persistWG.Wait()
}

// persist stores a snapshot of the chat in the background. A snapshot older
// than one already written for the same chat is skipped.
func (s *SessionUsecase) persist(ctx context.Context) {
	user := s.User.CurrentUser()
	if !user.Authenticated() {
		slog.Debug("user not signed in, chat not saved", "chat_id", s.chatID)
		return
	}
	chat := model.Chat{
		ChatID:   s.chatID,
		UserID:   user.UserID,
		Title:    model.ChatTitle(s.messages),
		Messages: model.CopyMessages(s.messages),
	}

	seq := s.persistSeq.Add(1)
	persistCtx := context.WithoutCancel(ctx)
	s.persistWG.Go(
		func() {
			s.persistMu.Lock()
			defer s.persistMu.Unlock()
			if seq < s.persistedSeqs[chat.ChatID] {
				slog.Debug("stale chat snapshot skipped", "chat_id", chat.ChatID)
				return
			}
			s.Chats.Save(persistCtx, user.UserID, chat)
			s.persistedSeqs[chat.ChatID] = seq
		},
	)
}

func (s *SessionUsecase) renderAll() {
	s.View.Reset()
	for _, message := range s.messages {
		s.View.Append(message)
	}
}

func (s *SessionUsecase) setRevealCancel(cancel context.CancelFunc) {
	s.revealMu.Lock()
	defer s.revealMu.Unlock()
	s.revealCancel = cancel
}

func (s *SessionUsecase) waitReveal(ctx context.Context) bool {
	if s.cfg.RevealInterval <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.cfg.RevealInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *SessionUsecase) language() local.Language {
	if s.Settings == nil {
		return local.Eng
	}
	return s.Settings.Language()
}

func (s *SessionUsecase) notify(level NotificationLevel, message string) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Notify(level, message)
}

func failureNotice(err error, language local.Language) string {
	if errors.Is(err, context.Canceled) {
		return MessageStopped.Text(language)
	}
	var relayErr *model.RelayError
	if errors.As(err, &relayErr) {
		return MessageErrorFormat.Format(language, relayErr.Error())
	}
	if errors.Is(err, ErrEmptyReply) {
		return MessageErrorFormat.Format(language, err.Error())
	}
	detail := err.Error()
	if runes := []rune(detail); len(runes) > connectionErrorDetailLimit {
		detail = string(runes[:connectionErrorDetailLimit]) + "..."
	}
	return MessageConnectionErrorFormat.Format(language, detail)
}
