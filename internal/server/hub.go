package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeRedaction is emitted for every sanitize call that produced traces
	EventTypeRedaction EventType = "redaction"
	// EventTypeProfileSwap is emitted when the active profile is reloaded
	EventTypeProfileSwap EventType = "profile_swap"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// RedactionEvent summarizes a sanitize call for the event feed. It carries
// counts and rule names only; original values stay out of the feed.
type RedactionEvent struct {
	RequestID  string   `json:"request_id"`
	Source     string   `json:"source"`
	Profile    string   `json:"profile"`
	TraceCount int      `json:"trace_count"`
	Rules      []string `json:"rules,omitempty"`
	CacheHit   bool     `json:"cache_hit"`
	DurationMS float64  `json:"duration_ms"`
	Structured bool     `json:"structured"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
}

// ProfileSwapEvent announces a profile reload to connected clients
type ProfileSwapEvent struct {
	Profile string `json:"profile"`
	Version uint64 `json:"version"`
}

// hubClient represents a WebSocket client connection
type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan Event
}

// Hub maintains the set of active clients and broadcasts events to them
type Hub struct {
	clients    map[*hubClient]bool
	broadcast  chan Event
	register   chan *hubClient
	unregister chan *hubClient
	upgrader   websocket.Upgrader
	writeWait  time.Duration
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(readBuf, writeBuf int, writeWait time.Duration, allowedOrigins []string, logger *zap.Logger) *Hub {
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	return &Hub{
		clients:    make(map[*hubClient]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		writeWait: writeWait,
		logger:    logger,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Run starts the hub and handles client registration/unregistration and broadcasting
func (h *Hub) Run() {
	h.logger.Info("Starting WebSocket hub", zap.String("component", "websocket"))

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("Client connected",
				zap.String("component", "websocket"),
				zap.String("client_id", client.id),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client disconnected",
				zap.String("component", "websocket"),
				zap.String("client_id", client.id),
			)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// broadcastEvent delivers an event to every registered client
func (h *Hub) broadcastEvent(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- event:
		default:
			// Client's send channel is full, close it
			h.logger.Warn("Client send channel full, closing connection",
				zap.String("component", "websocket"),
				zap.String("client_id", client.id),
			)
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// BroadcastEvent queues an event for delivery to all connected clients.
// Events are dropped rather than blocking the caller.
func (h *Hub) BroadcastEvent(event Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping event",
			zap.String("component", "websocket"),
			zap.String("event_type", string(event.Type)),
		)
	}
}

// HandleWebSocket handles WebSocket connections
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection",
			zap.String("component", "websocket"),
			zap.Error(err),
		)
		return
	}

	client := &hubClient{
		id:   fmt.Sprintf("client_%d", time.Now().UnixNano()),
		conn: conn,
		send: make(chan Event, 256),
	}

	h.register <- client

	go h.writePump(client)
	go h.readPump(client)
}

// writePump pushes events and pings to the client
func (h *Hub) writePump(client *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(event); err != nil {
				h.logger.Error("Failed to write WebSocket message",
					zap.String("component", "websocket"),
					zap.String("client_id", client.id),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client messages; the feed is one-way, so reads only serve
// pong handling and disconnect detection.
func (h *Hub) readPump(client *hubClient) {
	defer func() {
		h.unregister <- client
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error",
					zap.String("component", "websocket"),
					zap.String("client_id", client.id),
					zap.Error(err),
				)
			}
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
