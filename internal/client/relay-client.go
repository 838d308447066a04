package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/iamvkosarev/vedai/config"
	"github.com/iamvkosarev/vedai/internal/model"
	"io"
	"net/http"
	"strings"
)

const chatPath = "/api/chat"

type chatRequest struct {
	History []model.Message `json:"history"`
	Model   string          `json:"model,omitempty"`
}

type chatResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error"`
}

// RelayClient talks to a relay over HTTP.
type RelayClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRelayClient(cfg config.Client, httpClient *http.Client) *RelayClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &RelayClient{
		baseURL:    strings.TrimRight(cfg.RelayURL, "/"),
		httpClient: httpClient,
	}
}

// Complete posts the conversation and returns the reply. A response other
// than 2xx yields *model.RelayError with the relay's error text.
func (c *RelayClient) Complete(ctx context.Context, history []model.Message, aiModel string) (string, error) {
	body, err := json.Marshal(chatRequest{History: history, Model: aiModel})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send chat request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}
	var chatResp chatResponse
	decodeErr := json.Unmarshal(raw, &chatResp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &model.RelayError{
			StatusCode: resp.StatusCode,
			Detail:     chatResp.Error,
		}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to unmarshal chat response: %w", decodeErr)
	}
	return chatResp.Reply, nil
}
