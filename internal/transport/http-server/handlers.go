package http_server

import (
	"bytes"
	"encoding/json"
	"errors"
	"github.com/iamvkosarev/vedai/config"
	"github.com/iamvkosarev/vedai/internal/model"
	"github.com/iamvkosarev/vedai/internal/usecase"
	"log/slog"
	"net/http"
)

const (
	MessageHistoryRequired = "Conversation history is required"
	MessageInvalidBody     = "Invalid request body"
	MessageBodyTooLarge    = "Request body too large"

	healthStatusOK = "ok"
)

type chatRequest struct {
	History json.RawMessage `json:"history"`
	Model   string          `json:"model"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string                    `json:"status"`
	Env    config.CredentialPresence `json:"env"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(
		w, http.StatusOK, healthResponse{
			Status: healthStatusOK,
			Env:    s.Presence,
		},
	)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.cfg.BodyLimit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.BodyLimit)
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, MessageBodyTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, MessageInvalidBody)
		return
	}

	history, ok := parseHistory(req.History)
	if !ok {
		writeError(w, http.StatusBadRequest, MessageHistoryRequired)
		return
	}

	reply, err := s.Relay.Complete(r.Context(), history, req.Model)
	if err != nil {
		if errors.Is(err, usecase.ErrHistoryRequired) {
			writeError(w, http.StatusBadRequest, MessageHistoryRequired)
			return
		}
		slog.Error("failed to complete chat", "model", req.Model, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

// parseHistory accepts only a non-empty JSON array of messages.
func parseHistory(raw json.RawMessage) ([]model.Message, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var history []model.Message
	if err := json.Unmarshal(raw, &history); err != nil || len(history) == 0 {
		return nil, false
	}
	return history, true
}
