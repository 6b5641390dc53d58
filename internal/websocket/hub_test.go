package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"knowledgegpt-backend/internal/middleware"
	"knowledgegpt-backend/internal/models"
	"knowledgegpt-backend/internal/session"
)

type fakeLookup struct {
	live map[uuid.UUID]bool
}

func (f fakeLookup) Get(_ context.Context, id uuid.UUID) (*session.Controller, error) {
	if !f.live[id] {
		return nil, session.ErrSessionNotFound
	}
	return nil, nil
}

type hubFixture struct {
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	jwt    *middleware.JWTAuth
	hub    *Hub
	server *httptest.Server
	live   uuid.UUID
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	live := uuid.New()
	jwt := middleware.NewJWTAuth("test-secret", time.Hour)
	hub := NewHub(rdb, jwt, fakeLookup{live: map[uuid.UUID]bool{live: true}}, zap.NewNop())
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})

	return &hubFixture{mr: mr, rdb: rdb, jwt: jwt, hub: hub, server: server, live: live}
}

func (f *hubFixture) wsURL(token string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
}

func TestHub_RejectsMissingOrBadToken(t *testing.T) {
	f := newHubFixture(t)

	_, resp, err := gorillaws.DefaultDialer.Dial(f.wsURL(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = gorillaws.DefaultDialer.Dial(f.wsURL("not-a-jwt"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_RejectsEndedSession(t *testing.T) {
	f := newHubFixture(t)

	token, err := f.jwt.GenerateSessionToken(uuid.New(), "uid-1", "ada@example.com")
	require.NoError(t, err)

	_, resp, err := gorillaws.DefaultDialer.Dial(f.wsURL(token), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_ForwardsPublishedEvents(t *testing.T) {
	f := newHubFixture(t)

	token, err := f.jwt.GenerateSessionToken(f.live, "uid-1", "ada@example.com")
	require.NoError(t, err)

	conn, _, err := gorillaws.DefaultDialer.Dial(f.wsURL(token), nil)
	require.NoError(t, err)
	defer conn.Close()

	channel := Channel(f.live)
	require.Eventually(t, func() bool {
		return f.mr.PubSubNumSub(channel)[channel] == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, f.hub.Connections(f.live))

	pub := NewPublisher(f.rdb)
	event := models.Event{
		Type:      models.EventMessageAppended,
		SessionID: f.live,
		Payload:   map[string]string{"role": "assistant"},
	}
	require.NoError(t, pub.Publish(context.Background(), event))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type      string    `json:"type"`
		SessionID uuid.UUID `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, models.EventMessageAppended, got.Type)
	assert.Equal(t, f.live, got.SessionID)
}

func TestHub_UnsubscribesAfterLastDisconnect(t *testing.T) {
	f := newHubFixture(t)

	token, err := f.jwt.GenerateSessionToken(f.live, "uid-1", "ada@example.com")
	require.NoError(t, err)

	conn, _, err := gorillaws.DefaultDialer.Dial(f.wsURL(token), nil)
	require.NoError(t, err)

	channel := Channel(f.live)
	require.Eventually(t, func() bool {
		return f.mr.PubSubNumSub(channel)[channel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return f.hub.Connections(f.live) == 0 && f.mr.PubSubNumSub(channel)[channel] == 0
	}, 2*time.Second, 10*time.Millisecond)
}
