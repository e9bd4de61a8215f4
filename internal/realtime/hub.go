package realtime

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine"
	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine/event"
	"github.com/clarencepanto/stockflow-api-backend/internal/middlewares"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type HubConfig struct {
	DoneCh         <-chan struct{}
	InternalSrvWG  *sync.WaitGroup
	EventEngine    eventengine.Subscriber
	ListenerBuffer int
}

// Hub streams broadcast events to websocket listeners. Every connection is
// its own event engine subscriber for as long as it stays open.
type Hub struct {
	*HubConfig

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	active   atomic.Int64
}

// message is the frame written for every event.
type message struct {
	Event event.EventName `json:"event"`
	Data  event.Payload   `json:"data"`
}

func NewHub(cfg *HubConfig) (*Hub, error) {
	if cfg == nil || cfg.DoneCh == nil || cfg.InternalSrvWG == nil || cfg.EventEngine == nil {
		return nil, errors.New("either DoneCh, InternalSrvWG or EventEngine is nil in realtime hub")
	}

	if cfg.ListenerBuffer <= 0 {
		cfg.ListenerBuffer = 32
	}

	return &Hub{
		HubConfig: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}, nil
}

// Active is the number of connected listeners.
func (h *Hub) Active() int64 {
	return h.active.Load()
}

// ServeWS upgrades the request and blocks until the listener goes away or
// the server shuts down.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	identity, err := middlewares.IdentityFromRequest(r)
	if err != nil {
		return err
	}

	addressCh := make(chan event.Payload, h.ListenerBuffer)
	sub := &event.Subscriber{
		Name:      event.SubscriberName(fmt.Sprintf("realtime.ws.%d", h.nextID.Add(1))),
		AddressCh: addressCh,
	}

	// subscribe before the handshake so nothing published after it is missed.
	for _, name := range event.BroadcastEventNames {
		if err := h.EventEngine.Subscribe(name, sub); err != nil {
			h.EventEngine.Unsubscribe(sub)
			return fmt.Errorf("failed to subscribe listener to %s: %w", name, err)
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.EventEngine.Unsubscribe(sub)
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return nil
	}

	h.InternalSrvWG.Add(1)
	defer h.InternalSrvWG.Done()

	h.active.Add(1)
	defer h.active.Add(-1)

	log.Info().
		Str("listener", string(sub.Name)).
		Str("userId", identity.ID.String()).
		Msg("realtime listener connected")

	closedCh := make(chan struct{})
	go h.readPump(conn, closedCh)

	h.writePump(conn, addressCh, closedCh)

	h.EventEngine.Unsubscribe(sub)
	_ = conn.Close()

	log.Info().Str("listener", string(sub.Name)).Msg("realtime listener disconnected")

	return nil
}

// readPump only exists to process control frames; listeners send nothing
// we act on. closedCh is closed once the connection is unreadable.
func (h *Hub) readPump(conn *websocket.Conn, closedCh chan<- struct{}) {
	defer close(closedCh)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, addressCh <-chan event.Payload, closedCh <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-addressCh:
			if !ok {
				// the engine shut down.
				h.writeClose(conn, websocket.CloseGoingAway, "server shutting down")
				return
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteJSON(message{
				Event: payload.EventName(),
				Data:  payload,
			})
			if err != nil {
				log.Debug().Err(err).Msg("failed to write event to listener")
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-h.DoneCh:
			h.writeClose(conn, websocket.CloseGoingAway, "server shutting down")
			return

		case <-closedCh:
			return
		}
	}
}

func (h *Hub) writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(writeWait),
	)
}
