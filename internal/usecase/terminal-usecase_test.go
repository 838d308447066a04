package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iamvkosarev/vedai/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedInput struct {
	lines   []string
	history []string
	prompts []string
}

func (s *scriptedInput) Prompt(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedInput) PasswordPrompt(prompt string) (string, error) {
	return s.Prompt(prompt)
}

func (s *scriptedInput) AppendHistory(item string) {
	s.history = append(s.history, item)
}

type terminalFixture struct {
	*sessionFixture
	terminal *TerminalUsecase
	input    *scriptedInput
	out      *bytes.Buffer
	copied   []string
}

func newTerminalFixture(t *testing.T, userID string, lines ...string) *terminalFixture {
	t.Helper()
	f := &terminalFixture{
		sessionFixture: newSessionFixture(t, userID),
		input:          &scriptedInput{lines: lines},
		out:            &bytes.Buffer{},
	}
	f.terminal = NewTerminalUsecase(
		TerminalUsecaseDeps{
			Session:  f.session,
			Settings: f.session.Settings,
			User:     f.user,
			Input:    f.input,
			Output:   f.out,
			Clipboard: func(text string) error {
				f.copied = append(f.copied, text)
				return nil
			},
			Interrupt: context.WithCancel,
		},
	)
	return f
}

// withAccounts switches the fixture to account sign-in backed by auth.
func (f *terminalFixture) withAccounts(auth *fakeAuthenticator) *UserUsecase {
	user := NewUserUsecase(UserUsecaseDeps{LocalStorage: f.local, Auth: auth}, "")
	f.user = user
	f.session.User = user
	f.terminal.User = user
	return user
}

func (f *terminalFixture) run(t *testing.T) {
	t.Helper()
	require.NoError(t, f.terminal.Run(context.Background()))
}

func TestTerminal_SendsMessagesAndQuits(t *testing.T) {
	f := newTerminalFixture(t, "user-1", "hello", "", "/quit", "never read")
	f.run(t)

	assert.Equal(t, conversation("hello", "Hi there"), f.session.Messages())
	assert.Equal(t, []string{"hello", "/quit"}, f.input.history)
	assert.Equal(t, []string{"never read"}, f.input.lines)
}

func TestTerminal_ListLoadAndDelete(t *testing.T) {
	f := newTerminalFixture(t, "user-1", "/chats", "/load 1", "/delete 1", "y", "/chats")
	ctx := context.Background()
	require.NoError(
		t, f.chats.UpsertChat(
			ctx, model.Chat{ChatID: "chat-1", UserID: "user-1", Title: "Saved...", Messages: conversation("q", "a")},
		),
	)

	f.run(t)

	out := f.out.String()
	assert.Contains(t, out, "Now you have 1 chats.")
	assert.Contains(t, out, "Saved...")
	assert.Contains(t, out, "[chat-1]")
	assert.Contains(t, out, MessageNoChats)
	assert.Contains(t, f.input.prompts, MessageConfirmDelete)
	_, err := f.chats.GetChat(ctx, "chat-1")
	assert.ErrorIs(t, err, model.ErrChatDoesNotExist)
	assert.NotEqual(t, "chat-1", f.session.ChatID())
}

func TestTerminal_DeclinedDeleteKeepsChat(t *testing.T) {
	f := newTerminalFixture(t, "user-1", "/delete chat-1", "n")
	ctx := context.Background()
	require.NoError(t, f.chats.UpsertChat(ctx, model.Chat{ChatID: "chat-1", UserID: "user-1"}))

	f.run(t)

	_, err := f.chats.GetChat(ctx, "chat-1")
	assert.NoError(t, err)
}

func TestTerminal_GuestCannotListChats(t *testing.T) {
	f := newTerminalFixture(t, "", "/chats", "/clear")
	f.run(t)

	assert.Equal(t, 2, strings.Count(f.out.String(), MessageSignInRequired))
}

func TestTerminal_SignInAndOut(t *testing.T) {
	f := newTerminalFixture(t, "", "/signin user-7", "/signout", "/signin")
	f.run(t)

	assert.False(t, f.user.CurrentUser().Authenticated())
	assert.Contains(t, f.out.String(), "Signed in as user-7")
	assert.Contains(t, f.out.String(), MessageSignedOut)
	assert.Contains(t, f.out.String(), "Usage: /signin <email|user-id>")
	assert.NotContains(t, f.input.prompts, MessagePasswordPrompt)
}

func TestTerminal_AccountCommands(t *testing.T) {
	f := newTerminalFixture(
		t, "",
		"/signup new@example.com Newbie", "secret", "secret",
		"/signup taken@example.com Taken", "secret", "secret",
		"/signup a@example.com A", "secret", "other",
		"/signup a@example.com A", "12345", "12345",
		"/signup a@example.com", "secret", "secret",
		"/reset ada@example.com",
		"/reset",
		"/profile",
		"/signin ada@example.com", "wrong",
		"/signin ada@example.com", "secret",
		"/profile",
		"/profile Countess",
		"/signout",
	)
	auth := &fakeAuthenticator{expiresAt: time.Now().Add(time.Hour)}
	f.withAccounts(auth)
	f.run(t)

	out := f.out.String()
	assert.Contains(t, out, MessageAccountCreated)
	assert.Contains(t, out, MessageAccountExists)
	assert.Contains(t, out, MessagePasswordMismatch)
	assert.Contains(t, out, MessagePasswordTooShort)
	assert.Contains(t, out, MessageUsernameRequired)
	assert.Contains(t, out, "Password reset link sent to ada@example.com")
	assert.Contains(t, out, MessageEmailRequired)
	assert.Contains(t, out, MessageSignInRequired)
	assert.Contains(t, out, "Authentication failed: invalid login credentials")
	assert.Contains(t, out, "Signed in as Ada")
	assert.Contains(t, out, "Ada <ada@example.com>")
	assert.Contains(t, out, MessageProfileUpdated)
	assert.Contains(t, out, MessageSignedOut)

	assert.Equal(t, []string{"new@example.com"}, auth.signUps)
	assert.Equal(t, []string{"ada@example.com"}, auth.resets)
	assert.Equal(t, 1, auth.signOuts)
	assert.Contains(t, f.input.prompts, MessageConfirmPassword)
	assert.NotContains(t, f.input.history, "secret")
	assert.False(t, f.user.CurrentUser().Authenticated())
}

func TestTerminal_AccountCommandsNeedAccounts(t *testing.T) {
	f := newTerminalFixture(t, "user-1", "/signup a@example.com A", "/reset a@example.com")
	f.run(t)

	assert.Equal(t, 2, strings.Count(f.out.String(), MessageAccountsUnavailable))
	assert.Empty(t, f.input.lines)
}

func TestTerminal_RefreshesExpiringSession(t *testing.T) {
	f := newTerminalFixture(t, "", "hello")
	auth := &fakeAuthenticator{expiresAt: time.Now().Add(30 * time.Second)}
	user := f.withAccounts(auth)
	require.NoError(t, user.SignIn(context.Background(), "ada@example.com", "secret"))
	require.True(t, user.SessionExpiring())

	auth.expiresAt = time.Now().Add(time.Hour)
	f.run(t)

	assert.Equal(t, 1, auth.refreshes)
	assert.False(t, user.SessionExpiring())
	assert.Equal(t, conversation("hello", "Hi there"), f.session.Messages())
}

func TestTerminal_Model(t *testing.T) {
	f := newTerminalFixture(
		t, "user-1",
		"/model",
		"/model 1",
		"hi",
		"/model my-finetune",
		"/model 9",
		"/model default",
	)
	f.run(t)

	out := f.out.String()
	assert.Contains(t, out, "*2) llama-3.1-8b-instant")
	assert.Contains(t, out, " 1) llama-3.3-70b-versatile")
	assert.Contains(t, out, "Model set to llama-3.3-70b-versatile")
	assert.Contains(t, out, "Model set to my-finetune")
	assert.Contains(t, out, "Usage: /model [n|id|default]")
	assert.Contains(t, out, "Model set to "+MessageModelDefault)
	assert.Equal(t, []string{"llama-3.3-70b-versatile"}, f.relay.models)
	assert.Empty(t, f.session.Model())
}

func TestTerminal_Share(t *testing.T) {
	f := newTerminalFixture(t, "user-1", "/share", "hi", "/share", "/share 1", "/share 7")
	var titles []string
	var shared []model.Message
	f.terminal.Share = func(title string, message model.Message) (string, error) {
		titles = append(titles, title)
		shared = append(shared, message)
		return "https://share.example/1", nil
	}
	f.run(t)

	out := f.out.String()
	assert.Contains(t, out, MessageNothingToCopy)
	assert.Contains(t, out, MessageInvalidMessageIndex)
	assert.Equal(t, 2, strings.Count(out, "Shared as https://share.example/1"))
	assert.Equal(t, []string{MessageShareTitle, MessageShareTitle}, titles)
	assert.Equal(t, "Hi there", shared[0].Content)
	assert.Equal(t, model.MessageRoleUser, shared[1].Role)
	assert.Empty(t, f.copied)
}

func TestTerminal_ShareFallsBackToClipboard(t *testing.T) {
	f := newTerminalFixture(t, "user-1", "hi", "/share")
	f.terminal.Share = func(string, model.Message) (string, error) {
		return "", errors.New("no share target")
	}
	f.run(t)

	assert.Equal(t, []string{"Hi there"}, f.copied)
	assert.Contains(t, f.out.String(), MessageCopied)
}

func TestTerminal_ShareWritesPage(t *testing.T) {
	f := newTerminalFixture(t, "user-1", "hi", "/share")
	f.run(t)

	_, path, found := strings.Cut(f.out.String(), "Shared as ")
	require.True(t, found)
	path = strings.TrimSpace(path)
	t.Cleanup(func() { _ = os.Remove(path) })

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<title>VedAI Chat</title>")
	assert.Contains(t, string(raw), "Hi there")
}

func TestTerminal_EditRegenerates(t *testing.T) {
	f := newTerminalFixture(t, "user-1", "first", "/edit 1 changed", "/edit 9 nope", "/edit x")
	f.run(t)

	assert.Equal(t, conversation("changed", "Hi there"), f.session.Messages())
	assert.Len(t, f.relay.histories, 2)
	assert.Contains(t, f.out.String(), MessageInvalidMessageIndex)
	assert.Contains(t, f.out.String(), "Usage: /edit <n> <text>")
}

func TestTerminal_CopyUsesRawText(t *testing.T) {
	f := newTerminalFixture(t, "user-1", "/copy", "**bold**", "/copy", "/copy 1", "/copy 5")
	f.relay.reply = "# Reply"
	f.run(t)

	assert.Equal(t, []string{"# Reply", "**bold**"}, f.copied)
	assert.Contains(t, f.out.String(), MessageNothingToCopy)
	assert.Contains(t, f.out.String(), MessageInvalidMessageIndex)
}

func TestTerminal_ClipboardFailureIsLogged(t *testing.T) {
	f := newTerminalFixture(t, "user-1", "hi", "/copy")
	f.terminal.Clipboard = func(string) error { return errors.New("no clipboard") }
	f.run(t)

	assert.NotContains(t, f.out.String(), MessageCopied)
}

func TestTerminal_Export(t *testing.T) {
	dir := t.TempDir()
	textPath := filepath.Join(dir, "chat.txt")
	htmlPath := filepath.Join(dir, "chat.html")
	f := newTerminalFixture(t, "user-1", "/export", "Hi", "/export", "/export "+textPath, "/export "+htmlPath)
	f.run(t)

	out := f.out.String()
	assert.Contains(t, out, MessageNothingToExport)
	assert.Contains(t, out, "[USER]: Hi\n\n[ASSISTANT]: Hi there")

	raw, err := os.ReadFile(textPath)
	require.NoError(t, err)
	assert.Equal(t, "[USER]: Hi\n\n[ASSISTANT]: Hi there", string(raw))

	raw, err = os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<title>Hi...</title>")
	assert.Contains(t, string(raw), "<p>Hi there</p>")
}

func TestTerminal_Settings(t *testing.T) {
	f := newTerminalFixture(
		t, "user-1",
		"/settings language fr",
		"/settings notifications off",
		"/settings notifications false",
		"/settings theme dark",
		"/settings instruction Be terse.",
		"/settings colour red",
		"/settings",
	)
	f.run(t)

	settings := f.session.Settings.Get()
	assert.Equal(t, "fr", settings.Language)
	assert.Equal(t, model.ThemeDark, settings.Theme)
	assert.Equal(t, "Be terse.", settings.SystemInstruction)
	assert.False(t, settings.Notifications)
	out := f.out.String()
	assert.Contains(t, out, "Usage: /settings notifications true|false")
	assert.Contains(t, out, MessageUnknownSettingKey)
	assert.Contains(t, out, "language: fr")
}

func TestTerminal_UnknownCommandAndHelp(t *testing.T) {
	f := newTerminalFixture(t, "user-1", "/dance", "/help", "/new")
	f.run(t)

	assert.Contains(t, f.out.String(), MessageCommandUnknown)
	assert.Contains(t, f.out.String(), "/export [file]")
	assert.Contains(t, f.out.String(), "/share [n]")
}

func TestTerminalNotifier_RespectsSetting(t *testing.T) {
	var out bytes.Buffer
	f := newSessionFixture(t, "user-1")
	notifier := &TerminalNotifier{Output: &out, Settings: f.session.Settings}

	notifier.Notify(NotificationSuccess, "Chat deleted")
	f.session.Settings.Update(func(s *model.Settings) { s.Notifications = false })
	notifier.Notify(NotificationInfo, "hidden")
	notifier.Notify(NotificationError, "Failed to save: boom")

	assert.Equal(t, "[success] Chat deleted\n[error] Failed to save: boom\n", out.String())
}
