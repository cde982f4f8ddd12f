package rpc

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tolelom/degenchain/events"
)

const (
	wsSendBuffer   = 256
	wsWriteTimeout = 5 * time.Second
	wsReadTimeout  = 60 * time.Second
)

type wsClient struct {
	id    uint64
	types map[events.EventType]bool // empty means every type
	out   chan []byte
}

func (c *wsClient) wants(typ events.EventType) bool {
	return len(c.types) == 0 || c.types[typ]
}

// Hub fans committed chain events out to websocket subscribers. Slow
// clients lose events rather than stalling block production.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint64]*wsClient
	nextID  atomic.Uint64
	dropped atomic.Uint64

	readTimeout atomic.Int64 // nanoseconds
	upgrader    websocket.Upgrader
}

// NewHub creates a Hub and subscribes it to every event type on emitter.
func NewHub(emitter *events.Emitter) *Hub {
	h := &Hub{
		clients: make(map[uint64]*wsClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	h.readTimeout.Store(int64(wsReadTimeout))
	if emitter != nil {
		emitter.SubscribeAll(h.Publish)
	}
	return h
}

// SetReadTimeout changes how long a subscriber may stay silent, pongs
// included, before it is dropped. Pings go out at 9/10 of d. Call it before
// serving.
func (h *Hub) SetReadTimeout(d time.Duration) {
	if d > 0 {
		h.readTimeout.Store(int64(d))
	}
}

// Publish encodes ev once and offers it to every interested client.
func (h *Hub) Publish(ev events.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[ws] encode %s: %v", ev.Type, err)
		return
	}
	for _, c := range h.clients {
		if !c.wants(ev.Type) {
			continue
		}
		select {
		case c.out <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) add(types map[events.EventType]bool) *wsClient {
	c := &wsClient{id: h.nextID.Add(1), types: types, out: make(chan []byte, wsSendBuffer)}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
}

// parseTypes reads a comma separated ?types= filter.
func parseTypes(raw string) map[events.EventType]bool {
	types := make(map[events.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			types[events.EventType(t)] = true
		}
	}
	return types
}

// ServeHTTP upgrades the connection and streams events until the client
// disconnects. The server pings the client to keep the connection alive;
// inbound data messages are ignored.
func (h *Hub) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := h.add(parseTypes(r.URL.Query().Get("types")))
	defer h.remove(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	readTimeout := time.Duration(h.readTimeout.Load())
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	writeErr := make(chan error, 1)
	go func() {
		ping := time.NewTicker(readTimeout * 9 / 10)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					writeErr <- err
					return
				}
			case b := <-c.out:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	}

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}
}
