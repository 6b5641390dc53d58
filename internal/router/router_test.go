package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"knowledgegpt-backend/internal/handlers"
	"knowledgegpt-backend/internal/middleware"
	"knowledgegpt-backend/internal/models"
	"knowledgegpt-backend/internal/session"
	"knowledgegpt-backend/internal/websocket"
)

type echoAuth struct{}

func (echoAuth) CreateUser(_ context.Context, email, _ string) (string, error) { return "uid-" + email, nil }
func (echoAuth) SignIn(_ context.Context, email, _ string) (string, error)     { return "uid-" + email, nil }

type memStore struct{}

func (memStore) PutUserProfile(context.Context, string, models.Profile) error { return nil }
func (memStore) GetUserProfile(context.Context, string) (models.Profile, error) {
	return models.Profile{}, models.ErrNotFound
}
func (memStore) PutChatRecord(context.Context, models.ChatRecord) error { return nil }

type echoChat struct{}

func (echoChat) Converse(_ context.Context, _ []models.Message, prompt string) (string, error) {
	return "echo: " + prompt, nil
}

type echoSummarizer struct{}

func (echoSummarizer) Summarize(_ context.Context, text string, _, _ int) (string, error) {
	return text, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	registry := session.NewRegistry(rdb, session.Deps{
		Auth:       echoAuth{},
		Store:      memStore{},
		Chat:       echoChat{},
		Summarizer: echoSummarizer{},
		Events:     websocket.NewPublisher(rdb),
	}, time.Hour)

	jwtAuth := middleware.NewJWTAuth("router-test-secret", time.Hour)
	hub := websocket.NewHub(rdb, jwtAuth, registry, zap.NewNop())
	t.Cleanup(hub.Close)

	return New(
		jwtAuth,
		handlers.NewAuthHandler(registry, jwtAuth, zap.NewNop()),
		handlers.NewSessionHandler(registry, 1<<20, zap.NewNop()),
		hub,
		"http://localhost:5173",
		zap.NewNop(),
	)
}

func request(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestSessionLifecycle(t *testing.T) {
	h := newTestRouter(t)

	rr := request(t, h, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{Email: "ada@example.com", Password: "pw"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var auth models.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &auth))
	assert.Equal(t, "User", auth.User.Name)

	rr = request(t, h, http.MethodPost, "/api/v1/session/messages", auth.Token, models.PostMessageRequest{Text: "ping"})
	require.Equal(t, http.StatusOK, rr.Code)
	var reply models.PostMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &reply))
	assert.Equal(t, "echo: ping", reply.Reply.Content)

	rr = request(t, h, http.MethodPost, "/api/v1/session/chats", auth.Token, models.SaveChatRequest{Name: "first"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = request(t, h, http.MethodGet, "/api/v1/session/chats/first", auth.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = request(t, h, http.MethodPost, "/api/v1/session/summaries", auth.Token, models.SummarizeRequest{Text: "short text"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = request(t, h, http.MethodGet, "/api/v1/session", auth.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = request(t, h, http.MethodPost, "/api/v1/auth/logout", auth.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = request(t, h, http.MethodGet, "/api/v1/session", auth.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestWebSocketRequiresToken(t *testing.T) {
	h := newTestRouter(t)

	rr := request(t, h, http.MethodGet, "/api/v1/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthRateLimit(t *testing.T) {
	h := newTestRouter(t)

	var last int
	for i := 0; i < 11; i++ {
		last = request(t, h, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{}).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
