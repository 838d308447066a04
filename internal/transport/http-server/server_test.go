package http_server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iamvkosarev/vedai/config"
	"github.com/iamvkosarev/vedai/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	reply     string
	err       error
	panics    bool
	histories [][]model.Message
	models    []string
}

func (f *fakeRelay) Complete(_ context.Context, history []model.Message, aiModel string) (string, error) {
	if f.panics {
		panic("boom")
	}
	f.histories = append(f.histories, history)
	f.models = append(f.models, aiModel)
	return f.reply, f.err
}

func newTestServer(t *testing.T, relay *fakeRelay, hosted bool) http.Handler {
	t.Helper()
	dist := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dist, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dist, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	server := NewServer(
		ServerDeps{
			Relay:    relay,
			Presence: config.CredentialPresence{Groq: true, SupabaseURL: true},
		},
		config.Server{BodyLimit: 1024, DistDir: dist},
		hosted,
	)
	return server.Handler()
}

func do(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t, &fakeRelay{}, false), http.MethodGet, "/api/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(
		t,
		`{"status":"ok","env":{"GROQ":true,"TAVILY":false,"SUPABASE_URL":true,"SUPABASE_KEY":false,"VERCEL":false}}`,
		rec.Body.String(),
	)
}

func TestChat_ReturnsReply(t *testing.T) {
	for _, path := range []string{"/api/chat", "/chat"} {
		t.Run(
			path, func(t *testing.T) {
				relay := &fakeRelay{reply: "Hello!"}
				rec := do(
					t, newTestServer(t, relay, false), http.MethodPost, path,
					`{"history":[{"role":"user","content":"Hi"}],"model":"llama-3.1-8b-instant"}`,
				)

				require.Equal(t, http.StatusOK, rec.Code)
				assert.Equal(t, "Hello!", decodeBody(t, rec)["reply"])
				require.Len(t, relay.histories, 1)
				assert.Equal(t, []model.Message{{Role: model.MessageRoleUser, Content: "Hi"}}, relay.histories[0])
				assert.Equal(t, []string{"llama-3.1-8b-instant"}, relay.models)
			},
		)
	}
}

func TestChat_RejectsMissingHistory(t *testing.T) {
	for name, body := range map[string]string{
		"missing":   `{}`,
		"null":      `{"history":null}`,
		"empty":     `{"history":[]}`,
		"object":    `{"history":{"role":"user"}}`,
		"string":    `{"history":"hi"}`,
		"malformed": `{"history":[1,2]}`,
	} {
		t.Run(
			name, func(t *testing.T) {
				relay := &fakeRelay{}
				rec := do(t, newTestServer(t, relay, false), http.MethodPost, "/api/chat", body)

				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, MessageHistoryRequired, decodeBody(t, rec)["error"])
				assert.Empty(t, relay.histories)
			},
		)
	}
}

func TestChat_InvalidJSON(t *testing.T) {
	rec := do(t, newTestServer(t, &fakeRelay{}, false), http.MethodPost, "/api/chat", `{"history":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MessageInvalidBody, decodeBody(t, rec)["error"])
}

func TestChat_BodyLimit(t *testing.T) {
	body := `{"history":[{"role":"user","content":"` + strings.Repeat("a", 2048) + `"}]}`
	rec := do(t, newTestServer(t, &fakeRelay{}, false), http.MethodPost, "/api/chat", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestChat_ProviderErrorIs500(t *testing.T) {
	relay := &fakeRelay{err: errors.New("invalid api key")}
	rec := do(t, newTestServer(t, relay, false), http.MethodPost, "/api/chat", `{"history":[{"role":"user","content":"Hi"}]}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "invalid api key", decodeBody(t, rec)["error"])
}

func TestChat_PanicIsRecovered(t *testing.T) {
	rec := do(t, newTestServer(t, &fakeRelay{panics: true}, false), http.MethodPost, "/api/chat", `{"history":[{"role":"user","content":"Hi"}]}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORS(t *testing.T) {
	handler := newTestServer(t, &fakeRelay{}, false)

	preflight := do(t, handler, http.MethodOptions, "/api/chat", "")
	assert.Equal(t, http.StatusNoContent, preflight.Code)
	assert.Equal(t, "*", preflight.Header().Get("Access-Control-Allow-Origin"))

	health := do(t, handler, http.MethodGet, "/api/health", "")
	assert.Equal(t, "*", health.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatic_ServesFilesAndFallsBack(t *testing.T) {
	handler := newTestServer(t, &fakeRelay{}, false)

	asset := do(t, handler, http.MethodGet, "/assets/app.js", "")
	assert.Equal(t, http.StatusOK, asset.Code)
	assert.Equal(t, "console.log(1)", asset.Body.String())

	for _, path := range []string{"/", "/c/some-chat", "/assets/missing.js"} {
		rec := do(t, handler, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "<html>app</html>", rec.Body.String(), path)
	}
}

func TestStatic_DisabledWhenHosted(t *testing.T) {
	handler := newTestServer(t, &fakeRelay{reply: "ok"}, true)

	assert.Equal(t, http.StatusNotFound, do(t, handler, http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusOK, do(t, handler, http.MethodGet, "/api/health", "").Code)
}
