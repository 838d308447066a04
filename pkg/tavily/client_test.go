package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/search", r.URL.Path)
				assert.Equal(t, "Bearer tvly-key", r.Header.Get("Authorization"))

				var req searchRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "weather in Paris", req.Query)
				assert.True(t, req.IncludeAnswer)
				assert.Equal(t, 3, req.MaxResults)

				_ = json.NewEncoder(w).Encode(
					Response{
						Answer:  "Sunny, 21C",
						Results: []Result{{Title: "Forecast", URL: "https://example.com/paris"}},
					},
				)
			},
		),
	)
	defer server.Close()

	client := NewClient(Config{APIKey: "tvly-key", BaseURL: server.URL + "/", MaxResults: 3})
	resp, err := client.Search(context.Background(), "weather in Paris")
	require.NoError(t, err)
	assert.Equal(t, "Sunny, 21C", resp.Answer)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://example.com/paris", resp.Results[0].URL)
}

func TestClient_SearchErrorStatus(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":{"error":"invalid api key"}}`))
			},
		),
	)
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL})
	_, err := client.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
