package http_server

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/iamvkosarev/vedai/config"
	"github.com/iamvkosarev/vedai/internal/model"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

type Relay interface {
	Complete(ctx context.Context, history []model.Message, aiModel string) (string, error)
}

type ServerDeps struct {
	Relay    Relay
	Presence config.CredentialPresence
}

type Server struct {
	ServerDeps
	cfg    config.Server
	hosted bool
	mux    *http.ServeMux
	server *http.Server
}

func NewServer(deps ServerDeps, cfg config.Server, hosted bool) *Server {
	s := &Server{
		ServerDeps: deps,
		cfg:        cfg,
		hosted:     hosted,
		mux:        http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	if !s.hosted {
		s.mux.Handle("/", newSPAHandler(s.cfg.DistDir))
	}
}

// Handler returns the routes wrapped with the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(),
		LoggingMiddleware(),
		CORSMiddleware(),
	)(s.mux)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              net.JoinHostPort("", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	slog.Info("relay listening", "port", s.cfg.Port, "static", !s.hosted)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	slog.Info("relay shutting down")
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
