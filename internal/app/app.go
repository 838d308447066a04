package app

import (
	"context"
	"errors"
	"fmt"
	"github.com/iamvkosarev/vedai/config"
	"github.com/iamvkosarev/vedai/internal/client"
	"github.com/iamvkosarev/vedai/internal/render"
	in_memory "github.com/iamvkosarev/vedai/internal/storage/in-memory"
	key_value "github.com/iamvkosarev/vedai/internal/storage/key-value"
	"github.com/iamvkosarev/vedai/internal/storage/local"
	"github.com/iamvkosarev/vedai/internal/storage/sqlite"
	"github.com/iamvkosarev/vedai/internal/storage/supabase"
	http_server "github.com/iamvkosarev/vedai/internal/transport/http-server"
	"github.com/iamvkosarev/vedai/internal/usecase"
	openai_tools "github.com/iamvkosarev/vedai/pkg/openai-tools"
	"github.com/iamvkosarev/vedai/pkg/tavily"
	"github.com/peterh/liner"
	"github.com/redis/go-redis/v9"
	"github.com/sashabaranov/go-openai"
	"log/slog"
	"net/http"
	"os"
	"time"
)

const shutdownTimeout = 10 * time.Second

var ErrUnknownStoreDriver = errors.New("unknown store driver")

// Run serves the relay until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	server := http_server.NewServer(
		http_server.ServerDeps{
			Relay:    NewRelayUsecase(cfg),
			Presence: cfg.Presence(),
		},
		cfg.Server,
		cfg.Hosted,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return <-errCh
}

// NewHandler builds the relay routes without starting a listener.
func NewHandler(cfg *config.Config) http.Handler {
	return http_server.NewServer(
		http_server.ServerDeps{
			Relay:    NewRelayUsecase(cfg),
			Presence: cfg.Presence(),
		},
		cfg.Server,
		cfg.Hosted,
	).Handler()
}

func NewRelayUsecase(cfg *config.Config) *usecase.RelayUsecase {
	deps := usecase.RelayUsecaseDeps{
		CountTokens: openai_tools.CountToken,
	}
	if cfg.Groq.APIKey != "" {
		openAIConfig := openai.DefaultConfig(cfg.Groq.APIKey)
		openAIConfig.BaseURL = cfg.Groq.BaseURL
		deps.Completion = openai.NewClientWithConfig(openAIConfig)
	} else {
		slog.Warn("GROQ_API_KEY is not set, chat requests will get a configuration notice")
	}
	if cfg.Search.TavilyAPIKey != "" {
		deps.Search = tavily.NewClient(
			tavily.Config{
				APIKey:     cfg.Search.TavilyAPIKey,
				BaseURL:    cfg.Search.BaseURL,
				MaxResults: cfg.Search.MaxResults,
			},
		)
	}
	return usecase.NewRelayUsecase(deps, cfg.Groq)
}

// ChatStore is the chat store driver picked by configuration.
type ChatStore struct {
	Storage usecase.ChatStorage
	// Auth is set for drivers with accounts. Other drivers take a plain user id.
	Auth usecase.Authenticator
	// Close releases the store's resources.
	Close func() error
}

func NewChatStore(cfg *config.Config) (ChatStore, error) {
	noop := func() error { return nil }
	switch cfg.Store.Driver {
	case config.StoreDriverSupabase:
		client, err := supabase.NewClient(
			supabase.Config{
				URL:     cfg.Supabase.URL,
				AnonKey: cfg.Supabase.AnonKey,
			},
		)
		if err != nil {
			return ChatStore{}, fmt.Errorf("failed to create supabase storage: %w", err)
		}
		return ChatStore{
			Storage: supabase.NewChatStorage(client),
			Auth:    supabase.NewAuth(client, cfg.Supabase.AnonKey),
			Close:   noop,
		}, nil
	case config.StoreDriverRedis:
		rdb := redis.NewClient(
			&redis.Options{
				Addr: cfg.Redis.Endpoint,
			},
		)
		return ChatStore{Storage: key_value.NewChatStorage(rdb), Close: rdb.Close}, nil
	case config.StoreDriverSQLite:
		storage, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return ChatStore{}, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return ChatStore{Storage: storage, Close: storage.Close}, nil
	case config.StoreDriverMemory:
		return ChatStore{Storage: in_memory.NewChatStorage(), Close: noop}, nil
	default:
		return ChatStore{}, fmt.Errorf("%w: %q", ErrUnknownStoreDriver, cfg.Store.Driver)
	}
}

// RunClient runs the interactive terminal client until the user quits.
func RunClient(ctx context.Context, cfg *config.Config) error {
	store, err := NewChatStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close chat storage", "error", err)
		}
	}()

	var localStorage usecase.LocalStorage = in_memory.NewLocalStorage()
	if cfg.Client.StateFile != "" {
		localStorage = local.NewLocalStorage(cfg.Client.StateFile)
	}
	settingsUsecase := usecase.NewSettingsUsecase(usecase.SettingsUsecaseDeps{LocalStorage: localStorage})
	guestUsecase := usecase.NewGuestUsecase(usecase.GuestUsecaseDeps{LocalStorage: localStorage})
	userUsecase := usecase.NewUserUsecase(
		usecase.UserUsecaseDeps{
			LocalStorage: localStorage,
			Auth:         store.Auth,
		}, cfg.Client.UserID,
	)
	userUsecase.Restore(ctx)

	var relay usecase.RelayClient
	if cfg.Client.Embedded {
		relay = NewRelayUsecase(cfg)
	} else {
		relay = client.NewRelayClient(cfg.Client, nil)
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	view := render.NewTerminalView(
		os.Stdout, render.TerminalViewConfig{
			Styled: liner.TerminalSupported(),
			Theme:  settingsUsecase.Get().Theme,
		},
	)
	notifier := &usecase.TerminalNotifier{
		Output:   os.Stdout,
		Settings: settingsUsecase,
	}

	chatUsecase := usecase.NewChatUsecase(
		usecase.ChatUsecaseDeps{
			ChatStorage: store.Storage,
			Notifier:    notifier,
		},
	)

	sessionUsecase := usecase.NewSessionUsecase(
		usecase.SessionUsecaseDeps{
			Chats:    chatUsecase,
			Relay:    relay,
			Settings: settingsUsecase,
			Guest:    guestUsecase,
			User:     userUsecase,
			View:     view,
			Notifier: notifier,
		}, cfg.Client,
	)

	terminalUsecase := usecase.NewTerminalUsecase(
		usecase.TerminalUsecaseDeps{
			Session:  sessionUsecase,
			Settings: settingsUsecase,
			User:     userUsecase,
			Input:    line,
			Output:   os.Stdout,
		},
	)
	return terminalUsecase.Run(ctx)
}
