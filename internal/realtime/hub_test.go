package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarencepanto/stockflow-api-backend/internal/auth"
	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine"
	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine/event"
	"github.com/clarencepanto/stockflow-api-backend/internal/middlewares"
)

type testEnv struct {
	engine eventengine.SubscribeRegisterPublisher
	hub    *Hub
	server *httptest.Server
	tokens *auth.TokenService
	doneCh chan struct{}
	wg     *sync.WaitGroup
	once   sync.Once
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	doneCh := make(chan struct{})
	wg := &sync.WaitGroup{}

	engine, err := eventengine.NewEventEngine(&eventengine.EventEngineConfig{
		DoneCh:        doneCh,
		InternalSrvWG: wg,
	})
	require.NoError(t, err)
	engine.RegisterEvents(event.BroadcastEventNames...)

	hub, err := NewHub(&HubConfig{
		DoneCh:        doneCh,
		InternalSrvWG: wg,
		EventEngine:   engine,
	})
	require.NoError(t, err)

	tokens := auth.NewTokenService("test-secret", 60)
	mw := middlewares.NewMiddleware(tokens)
	server := httptest.NewServer(mw.ErrorHandler(mw.AuthWithContext(hub.ServeWS)))

	env := &testEnv{engine: engine, hub: hub, server: server, tokens: tokens, doneCh: doneCh, wg: wg}
	t.Cleanup(func() {
		env.shutdown()
		server.Close()
	})

	return env
}

func (e *testEnv) shutdown() {
	e.once.Do(func() {
		close(e.doneCh)
		e.wg.Wait()
	})
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	token, err := e.tokens.GenerateAccessToken(auth.Identity{ID: uuid.New(), Role: auth.RoleStaff})
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	url := "ws" + strings.TrimPrefix(e.server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubDeliversBroadcastEvents(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	productID := uuid.New()
	err := env.engine.Publish(&event.Event{
		Name:    event.StockUpdatedEventName,
		Payload: &event.StockUpdatedEvent{ProductID: productID, OldStock: 3, NewStock: 23, Change: 20, Type: "IN"},
	})
	require.NoError(t, err)

	var frame struct {
		Event string `json:"event"`
		Data  struct {
			ProductID uuid.UUID `json:"productId"`
			NewStock  int       `json:"newStock"`
		} `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&frame))

	assert.Equal(t, "stock:updated", frame.Event)
	assert.Equal(t, productID, frame.Data.ProductID)
	assert.Equal(t, 23, frame.Data.NewStock)
}

func TestHubRejectsAnonymousListeners(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHubReleasesDisconnectedListeners(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	assert.Eventually(t, func() bool { return env.hub.Active() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return env.hub.Active() == 0 }, 5*time.Second, 10*time.Millisecond)

	// publishing after the listener left must not fail or block.
	err := env.engine.Publish(&event.Event{
		Name:    event.OrderCreatedEventName,
		Payload: &event.OrderCreatedEvent{OrderID: uuid.New()},
	})
	assert.NoError(t, err)
}

func TestHubClosesListenersOnShutdown(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	assert.Eventually(t, func() bool { return env.hub.Active() == 1 }, 2*time.Second, 10*time.Millisecond)

	env.shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
