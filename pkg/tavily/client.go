// Package tavily is a minimal client for the Tavily web search API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultBaseURL = "https://api.tavily.com"

type Config struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	HTTPClient *http.Client
}

type Client struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results,omitempty"`
}

type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type Response struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer"`
	Results []Result `json:"results"`
}

type errorResponse struct {
	Detail any `json:"detail"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		maxResults: cfg.MaxResults,
		httpClient: httpClient,
	}
}

// Search runs a basic-depth search asking for a synthesized answer.
func (c *Client) Search(ctx context.Context, query string) (Response, error) {
	body, err := json.Marshal(
		searchRequest{
			APIKey:        c.apiKey,
			Query:         query,
			SearchDepth:   "basic",
			IncludeAnswer: true,
			MaxResults:    c.maxResults,
		},
	)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to send search request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		if json.Unmarshal(raw, &errResp) == nil && errResp.Detail != nil {
			return Response{}, fmt.Errorf("search failed with status %d: %v", resp.StatusCode, errResp.Detail)
		}
		return Response{}, fmt.Errorf("search failed with status %d", resp.StatusCode)
	}

	var searchResp Response
	if err = json.Unmarshal(raw, &searchResp); err != nil {
		return Response{}, fmt.Errorf("failed to unmarshal search response: %w", err)
	}
	return searchResp, nil
}
