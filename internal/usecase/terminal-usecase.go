package usecase

import (
	"context"
	"errors"
	"fmt"
	"github.com/atotto/clipboard"
	"github.com/iamvkosarev/vedai/internal/model"
	"github.com/iamvkosarev/vedai/internal/render"
	"github.com/peterh/liner"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
)

const (
	MessageCommandHelp = `Commands:
  /new                    start a new chat
  /chats                  list saved chats
  /load <n|id>            open a saved chat
  /delete <n|id>          delete a saved chat
  /clear                  delete all saved chats
  /edit <n> <text>        replace message n and regenerate the reply
  /copy [n]               copy message n (default: last reply) to the clipboard
  /share [n]              share message n (default: last reply)
  /export [file]          export the chat as text, or HTML for .html files
  /model [n|id|default]   show or pick the model
  /settings [key value]   show or change instruction, theme, language, notifications
  /signin <email|user-id> sign in
  /signup <email> <name>  create an account
  /reset <email>          send a password reset link
  /profile [name]         show or change your display name
  /signout                sign out
  /quit                   exit`
	MessageCommandUnknown      = "I don't know that command. Type /help."
	MessageNoChats             = "No chats yet."
	MessageChatsFormat         = "Now you have %d chats.\n"
	MessageChatNotFound        = "No such chat."
	MessageConfirmDelete       = "Delete this chat? (y/N) "
	MessageConfirmClear        = "Are you sure you want to delete ALL chat history? (y/N) "
	MessageNothingToExport     = "Nothing to export."
	MessageNothingToCopy       = "Nothing to copy."
	MessageCopied              = "Copied to clipboard."
	MessageExportedFormat      = "Exported to %s"
	MessageSignedInFormat      = "Signed in as %s"
	MessageSignedOut           = "Signed out."
	MessageSignInRequired      = "Sign in to see saved chats."
	MessageSharedFormat        = "Shared as %s"
	MessageShareTitle          = "VedAI Chat"
	MessageModelDefault        = "relay default"
	MessageModelSelectedFormat = "Model set to %s"
	MessagePasswordPrompt      = "Password: "
	MessageConfirmPassword     = "Confirm password: "
	MessagePasswordMismatch    = "Passwords do not match!"
	MessagePasswordTooShort    = "Password must be at least 6 characters."
	MessageUsernameRequired    = "Username is required."
	MessageUsernameEmpty       = "Username cannot be empty"
	MessageEmailRequired       = "Please enter your email address first."
	MessageAccountExists       = "Account exists. Please Sign In."
	MessageAccountCreated      = "Account created! You can now log in."
	MessageResetSentFormat     = "Password reset link sent to %s"
	MessageProfileUpdated      = "Profile updated successfully!"
	MessageProfileFormat       = "%s <%s>"
	MessageAccountsUnavailable = "Accounts need the supabase chat store. Use /signin <user-id>."
	MessageAuthErrorFormat     = "Authentication failed: %s"
	MessageUsageFormat         = "Usage: %s"
	MessageSettingsSaved       = "Settings saved."
	MessageUnknownSettingKey   = "Unknown setting. Use instruction, theme, language or notifications."
	MessageInvalidMessageIndex = "No message with that number."
	MessageNotEditable         = "Only your own messages can be edited."

	CommandNew      = "new"
	CommandChats    = "chats"
	CommandLoad     = "load"
	CommandDelete   = "delete"
	CommandClear    = "clear"
	CommandEdit     = "edit"
	CommandCopy     = "copy"
	CommandShare    = "share"
	CommandExport   = "export"
	CommandModel    = "model"
	CommandSettings = "settings"
	CommandSignIn   = "signin"
	CommandSignUp   = "signup"
	CommandReset    = "reset"
	CommandProfile  = "profile"
	CommandSignOut  = "signout"
	CommandHelp     = "help"
	CommandQuit     = "quit"

	promptInput  = "> "
	modelDefault = "default"
)

var errQuit = errors.New("quit")

// KnownModels are offered by /model. Any other model id is passed through.
var KnownModels = []string{
	"llama-3.3-70b-versatile",
	"llama-3.1-8b-instant",
	"mixtral-8x7b-32768",
	"gemma2-9b-it",
}

// LineReader is satisfied by *liner.State.
type LineReader interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
	AppendHistory(item string)
}

type themedView interface {
	SetTheme(theme string)
}

type TerminalUsecaseDeps struct {
	Session  *SessionUsecase
	Settings *SettingsUsecase
	User     *UserUsecase
	Input    LineReader
	Output   io.Writer
	// Clipboard defaults to the system clipboard.
	Clipboard func(text string) error
	// Share publishes one message and returns where it went. It defaults to
	// a standalone HTML page in the temp directory. On failure the message is
	// copied to the clipboard instead.
	Share func(title string, message model.Message) (string, error)
	// Interrupt derives the context of one generation. It defaults to
	// cancelling on SIGINT.
	Interrupt func(ctx context.Context) (context.Context, context.CancelFunc)
}

type TerminalUsecase struct {
	TerminalUsecaseDeps
	listed []model.Chat
}

func NewTerminalUsecase(deps TerminalUsecaseDeps) *TerminalUsecase {
	if deps.Clipboard == nil {
		deps.Clipboard = clipboard.WriteAll
	}
	if deps.Share == nil {
		deps.Share = shareAsFile
	}
	if deps.Interrupt == nil {
		deps.Interrupt = func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		}
	}
	return &TerminalUsecase{
		TerminalUsecaseDeps: deps,
	}
}

func (t *TerminalUsecase) Run(ctx context.Context) error {
	defer t.Session.Wait()
	for {
		input, err := t.Input.Prompt(promptInput)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				t.println("")
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		t.Input.AppendHistory(input)
		t.keepSessionAlive(ctx)

		if strings.HasPrefix(input, "/") {
			if err = t.handleCommand(ctx, input); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				slog.Error("failed to handle command", "command", input, "error", err)
			}
			continue
		}
		t.handleMessage(ctx, input)
	}
}

func (t *TerminalUsecase) handleMessage(ctx context.Context, text string) {
	generationCtx, stop := t.Interrupt(ctx)
	defer stop()
	if err := t.Session.Send(generationCtx, text); err != nil && !errors.Is(err, ErrGuestLimitReached) {
		slog.Error("failed to send message", "error", err)
	}
}

func (t *TerminalUsecase) handleCommand(ctx context.Context, input string) error {
	command, args, _ := strings.Cut(strings.TrimPrefix(input, "/"), " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(command) {
	case CommandNew:
		t.Session.StartNewChat()
	case CommandChats:
		t.listChats(ctx)
	case CommandLoad:
		chatID, ok := t.resolveChat(args)
		if !ok {
			t.println(MessageChatNotFound)
			return nil
		}
		t.Session.LoadChat(ctx, chatID)
	case CommandDelete:
		chatID, ok := t.resolveChat(args)
		if !ok {
			t.println(MessageChatNotFound)
			return nil
		}
		if t.confirm(MessageConfirmDelete) {
			t.Session.DeleteChat(ctx, chatID)
			t.listed = nil
		}
	case CommandClear:
		if !t.User.CurrentUser().Authenticated() {
			t.println(MessageSignInRequired)
			return nil
		}
		if t.confirm(MessageConfirmClear) {
			t.Session.ClearAll(ctx)
			t.listed = nil
		}
	case CommandEdit:
		return t.editMessage(ctx, args)
	case CommandCopy:
		return t.copyMessage(args)
	case CommandShare:
		return t.shareMessage(args)
	case CommandExport:
		return t.export(args)
	case CommandModel:
		t.selectModel(args)
	case CommandSettings:
		t.settings(args)
	case CommandSignIn:
		t.signIn(ctx, args)
	case CommandSignUp:
		t.signUp(ctx, args)
	case CommandReset:
		t.resetPassword(ctx, args)
	case CommandProfile:
		t.profile(ctx, args)
	case CommandSignOut:
		t.Session.Wait()
		t.User.SignOut(ctx)
		t.listed = nil
		t.println(MessageSignedOut)
	case CommandHelp:
		t.println(MessageCommandHelp)
	case CommandQuit, "exit":
		return errQuit
	default:
		t.println(MessageCommandUnknown)
	}
	return nil
}

func (t *TerminalUsecase) listChats(ctx context.Context) {
	if !t.User.CurrentUser().Authenticated() {
		t.println(MessageSignInRequired)
		return
	}
	t.listed = t.Session.History(ctx)
	t.print(prepareUsersChats(t.listed, t.Session.ChatID()))
}

func prepareUsersChats(chats []model.Chat, activeChatID string) string {
	if len(chats) == 0 {
		return MessageNoChats + "\n"
	}
	result := strings.Builder{}
	result.WriteString(fmt.Sprintf(MessageChatsFormat, len(chats)))
	for i, chat := range chats {
		marker := " "
		if chat.ChatID == activeChatID {
			marker = "*"
		}
		title := chat.Title
		if title == "" {
			title = model.ChatTitleDefault
		}
		result.WriteString(
			fmt.Sprintf(
				"%s%d) %s  %s  [%s]\n", marker, i+1, title, chat.CreatedAt.Local().Format("2006-01-02"), chat.ChatID,
			),
		)
	}
	return result.String()
}

// resolveChat accepts a number from the last /chats listing or a chat id.
func (t *TerminalUsecase) resolveChat(arg string) (string, bool) {
	if arg == "" {
		return "", false
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(t.listed) {
			return "", false
		}
		return t.listed[n-1].ChatID, true
	}
	return arg, true
}

func (t *TerminalUsecase) confirm(question string) bool {
	answer, err := t.Input.Prompt(question)
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func (t *TerminalUsecase) editMessage(ctx context.Context, args string) error {
	rawIndex, text, _ := strings.Cut(args, " ")
	text = strings.TrimSpace(text)
	n, err := strconv.Atoi(rawIndex)
	if err != nil || text == "" {
		t.printf(MessageUsageFormat+"\n", "/edit <n> <text>")
		return nil
	}
	generationCtx, stop := t.Interrupt(ctx)
	defer stop()
	if err = t.Session.EditMessage(generationCtx, n-1, text); err != nil {
		if errors.Is(err, ErrMessageIndexOutOfRange) {
			t.println(MessageInvalidMessageIndex)
			return nil
		}
		if errors.Is(err, ErrMessageNotEditable) {
			t.println(MessageNotEditable)
			return nil
		}
		return err
	}
	return nil
}

// pickMessage selects message n, or the last assistant reply when args is
// empty.
func (t *TerminalUsecase) pickMessage(args string) (model.Message, bool) {
	messages := t.Session.Messages()
	var message model.Message
	if args == "" {
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == model.MessageRoleAssistant {
				message = messages[i]
				break
			}
		}
	} else {
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 || n > len(messages) {
			t.println(MessageInvalidMessageIndex)
			return model.Message{}, false
		}
		message = messages[n-1]
	}
	if message.Content == "" {
		t.println(MessageNothingToCopy)
		return model.Message{}, false
	}
	return message, true
}

func (t *TerminalUsecase) copyMessage(args string) error {
	message, ok := t.pickMessage(args)
	if !ok {
		return nil
	}
	return t.copyText(message.Content)
}

func (t *TerminalUsecase) copyText(text string) error {
	if err := t.Clipboard(text); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	t.println(MessageCopied)
	return nil
}

func (t *TerminalUsecase) shareMessage(args string) error {
	message, ok := t.pickMessage(args)
	if !ok {
		return nil
	}
	location, err := t.Share(MessageShareTitle, message)
	if err != nil {
		slog.Warn("failed to share message, copying instead", "error", err)
		return t.copyText(message.Content)
	}
	t.printf(MessageSharedFormat+"\n", location)
	return nil
}

func shareAsFile(title string, message model.Message) (string, error) {
	file, err := os.CreateTemp("", "vedai-share-*.html")
	if err != nil {
		return "", fmt.Errorf("failed to create share file: %w", err)
	}
	defer file.Close()
	if _, err = file.WriteString(render.Transcript(title, []model.Message{message})); err != nil {
		return "", fmt.Errorf("failed to write share file: %w", err)
	}
	return file.Name(), nil
}

func (t *TerminalUsecase) selectModel(args string) {
	if args != "" {
		selected := args
		if n, err := strconv.Atoi(args); err == nil {
			if n < 1 || n > len(KnownModels) {
				t.printf(MessageUsageFormat+"\n", "/model [n|id|default]")
				return
			}
			selected = KnownModels[n-1]
		}
		if strings.EqualFold(selected, modelDefault) {
			selected = ""
		}
		t.Session.SetModel(selected)
	}
	current := t.Session.Model()
	if args != "" {
		if current == "" {
			current = MessageModelDefault
		}
		t.printf(MessageModelSelectedFormat+"\n", current)
		return
	}
	for i, id := range KnownModels {
		marker := " "
		if id == current {
			marker = "*"
		}
		t.printf("%s%d) %s\n", marker, i+1, id)
	}
	if current == "" {
		t.printf(MessageModelSelectedFormat+"\n", MessageModelDefault)
	} else if !slices.Contains(KnownModels, current) {
		t.printf(MessageModelSelectedFormat+"\n", current)
	}
}

func (t *TerminalUsecase) signIn(ctx context.Context, login string) {
	if login == "" {
		t.printf(MessageUsageFormat+"\n", "/signin <email|user-id>")
		return
	}
	var password string
	if t.User.AccountsEnabled() {
		var ok bool
		if password, ok = t.readPassword(MessagePasswordPrompt); !ok {
			return
		}
	}
	t.Session.Wait()
	if err := t.User.SignIn(ctx, login, password); err != nil {
		t.printAuthError(err)
		return
	}
	t.listed = nil
	t.printf(MessageSignedInFormat+"\n", t.User.CurrentUser().Name())
}

func (t *TerminalUsecase) signUp(ctx context.Context, args string) {
	if !t.User.AccountsEnabled() {
		t.println(MessageAccountsUnavailable)
		return
	}
	email, displayName, _ := strings.Cut(args, " ")
	if email == "" {
		t.println(MessageEmailRequired)
		return
	}
	password, ok := t.readPassword(MessagePasswordPrompt)
	if !ok {
		return
	}
	confirmPassword, ok := t.readPassword(MessageConfirmPassword)
	if !ok {
		return
	}
	if err := t.User.SignUp(ctx, email, password, confirmPassword, displayName); err != nil {
		t.printAuthError(err)
		return
	}
	t.println(MessageAccountCreated)
}

func (t *TerminalUsecase) resetPassword(ctx context.Context, email string) {
	if err := t.User.ResetPassword(ctx, email); err != nil {
		t.printAuthError(err)
		return
	}
	t.printf(MessageResetSentFormat+"\n", email)
}

func (t *TerminalUsecase) profile(ctx context.Context, name string) {
	user := t.User.CurrentUser()
	if !user.Authenticated() {
		t.println(MessageSignInRequired)
		return
	}
	if name == "" {
		t.printf(MessageProfileFormat+"\n", user.Name(), user.Email)
		return
	}
	if err := t.User.UpdateDisplayName(ctx, name); err != nil {
		t.printAuthError(err)
		return
	}
	t.println(MessageProfileUpdated)
}

func (t *TerminalUsecase) readPassword(prompt string) (string, bool) {
	password, err := t.Input.PasswordPrompt(prompt)
	if err != nil {
		if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
			slog.Error("failed to read password", "error", err)
		}
		return "", false
	}
	return password, true
}

func (t *TerminalUsecase) printAuthError(err error) {
	switch {
	case errors.Is(err, ErrPasswordMismatch):
		t.println(MessagePasswordMismatch)
	case errors.Is(err, ErrPasswordTooShort):
		t.println(MessagePasswordTooShort)
	case errors.Is(err, ErrDisplayNameRequired):
		if t.User.CurrentUser().Authenticated() {
			t.println(MessageUsernameEmpty)
		} else {
			t.println(MessageUsernameRequired)
		}
	case errors.Is(err, ErrEmailRequired):
		t.println(MessageEmailRequired)
	case errors.Is(err, model.ErrAccountExists):
		t.println(MessageAccountExists)
	case errors.Is(err, ErrAccountsUnavailable):
		t.println(MessageAccountsUnavailable)
	case errors.Is(err, ErrNotSignedIn):
		t.println(MessageSignInRequired)
	default:
		slog.Warn("authentication failed", "error", err)
		t.printf(MessageAuthErrorFormat+"\n", err)
	}
}

// keepSessionAlive refreshes an expiring account session before the next
// remote call. Pending saves finish first since they share the session.
func (t *TerminalUsecase) keepSessionAlive(ctx context.Context) {
	if !t.User.SessionExpiring() {
		return
	}
	t.Session.Wait()
	if err := t.User.RefreshSession(ctx); err != nil {
		slog.Warn("failed to keep account session alive", "error", err)
	}
}

func (t *TerminalUsecase) export(path string) error {
	text, err := t.Session.Export()
	if err != nil {
		if errors.Is(err, ErrNothingToExport) {
			t.println(MessageNothingToExport)
			return nil
		}
		return err
	}
	if path == "" {
		t.println(text)
		return nil
	}
	if strings.EqualFold(filepath.Ext(path), ".html") {
		messages := t.Session.Messages()
		text = render.Transcript(model.ChatTitle(messages), messages)
	}
	if err = os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	t.printf(MessageExportedFormat+"\n", path)
	return nil
}

func (t *TerminalUsecase) settings(args string) {
	if args == "" {
		settings := t.Settings.Get()
		t.printf(
			"instruction: %s\ntheme: %s\nlanguage: %s\nnotifications: %t\n",
			settings.SystemInstruction, settings.Theme, settings.Language, settings.Notifications,
		)
		return
	}
	key, value, _ := strings.Cut(args, " ")
	value = strings.TrimSpace(value)

	var apply func(settings *model.Settings)
	switch strings.ToLower(key) {
	case "instruction":
		apply = func(settings *model.Settings) { settings.SystemInstruction = value }
	case "theme":
		apply = func(settings *model.Settings) { settings.Theme = value }
	case "language":
		apply = func(settings *model.Settings) { settings.Language = value }
	case "notifications":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			t.printf(MessageUsageFormat+"\n", "/settings notifications true|false")
			return
		}
		apply = func(settings *model.Settings) { settings.Notifications = enabled }
	default:
		t.println(MessageUnknownSettingKey)
		return
	}
	settings := t.Settings.Update(apply)
	if view, ok := t.Session.View.(themedView); ok {
		view.SetTheme(settings.Theme)
	}
	t.println(MessageSettingsSaved)
}

func (t *TerminalUsecase) print(s string) {
	_, _ = fmt.Fprint(t.Output, s)
}

func (t *TerminalUsecase) println(s string) {
	_, _ = fmt.Fprintln(t.Output, s)
}

func (t *TerminalUsecase) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(t.Output, format, a...)
}

// TerminalNotifier prints notifications. Info and success messages are
// hidden when the user turned notifications off.
type TerminalNotifier struct {
	Output   io.Writer
	Settings *SettingsUsecase
	mu       sync.Mutex
}

func (n *TerminalNotifier) Notify(level NotificationLevel, message string) {
	if level != NotificationError && n.Settings != nil && !n.Settings.Get().Notifications {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintf(n.Output, "[%s] %s\n", level, message)
}
