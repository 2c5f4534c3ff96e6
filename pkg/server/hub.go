package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/odvcencio/spyglass/pkg/logging"
)

// Event is one message pushed to stream clients.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	clientSendBuffer = 64
	writeTimeout     = 10 * time.Second
	pongTimeout      = 60 * time.Second
	pingInterval     = 54 * time.Second
)

// Hub fans events out to connected WebSocket clients. Clients are
// listen-only; a slow client's events are dropped, not queued unboundedly.
type Hub struct {
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	closed  bool
}

type streamClient struct {
	conn    *websocket.Conn
	send    chan Event
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// NewHub creates an empty hub.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*streamClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Loopback-only surface; the bind address is the access control.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Broadcast queues an event for every connected client, dropping it for
// clients whose send buffer is full.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			metricStreamDrops.Inc()
			_ = h.log.Warn(logging.CategoryServer, "stream_backpressure", "dropping event for slow stream client", map[string]any{
				"event": event.Type,
			})
		}
	}
}

// ClientCount reports the number of connected stream clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and serves the client until it
// disconnects or the hub shuts down.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		_ = h.log.Warn(logging.CategoryServer, "stream_upgrade_failed", "websocket upgrade failed", map[string]any{
			"error": err.Error(),
		})
		return
	}

	c := &streamClient{
		conn: conn,
		send: make(chan Event, clientSendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metricStreamClients.Inc()
	_ = h.log.Debug(logging.CategoryServer, "stream_connected", "stream client connected", map[string]any{
		"remote": r.RemoteAddr,
	})

	go c.writePump()
	h.readPump(c)
}

// readPump consumes control frames until the client goes away. Incoming
// data frames are discarded; the stream is one-way.
func (h *Hub) readPump(c *streamClient) {
	defer h.remove(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				c.writeControl(websocket.CloseMessage)
				return
			}
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.conn.WriteJSON(event)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *streamClient) writeControl(messageType int) {
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.conn.WriteMessage(messageType, nil)
	c.writeMu.Unlock()
}

func (c *streamClient) stop() {
	c.once.Do(func() { close(c.done) })
}

func (h *Hub) remove(c *streamClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	c.stop()
	_ = c.conn.Close()
	metricStreamClients.Dec()
	_ = h.log.Debug(logging.CategoryServer, "stream_disconnected", "stream client disconnected", nil)
}

// Shutdown disconnects every client and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*streamClient]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.stop()
		_ = c.conn.Close()
		metricStreamClients.Dec()
	}
}
