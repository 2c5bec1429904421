// Package live pushes dashboard snapshots to WebSocket clients.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dvloznov/wealthwisdom/internal/aggregate"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// MessageTypeDashboard tags dashboard snapshots on the wire.
const MessageTypeDashboard = "dashboard"

const (
	broadcastBuffer = 16
	writeTimeout    = 10 * time.Second
)

// Message is the envelope sent to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub tracks connected clients and broadcasts dashboards to them.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.Mutex

	snapshot func() aggregate.Dashboard
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHub creates a hub. snapshot is sent to every newly connected client.
func NewHub(snapshot func() aggregate.Dashboard, log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		snapshot:   snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log.With().Str("component", "live").Logger(),
	}
}

// Run drives the hub until ctx ends, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return nil

		case client := <-h.register:
			// The snapshot goes out from this loop so that every broadcast
			// handled afterwards reaches the client after it.
			data, err := encode(h.snapshot())
			if err != nil {
				h.log.Error().Err(err).Msg("Failed to marshal dashboard")
				client.Close()
				continue
			}
			h.mu.Lock()
			if err := write(client, data); err != nil {
				h.mu.Unlock()
				h.log.Warn().Err(err).Msg("Failed to send snapshot to WebSocket client")
				client.Close()
				continue
			}
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info().Int("clients", total).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info().Int("clients", total).Msg("WebSocket client disconnected")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if err := write(client, message); err != nil {
					h.log.Warn().Err(err).Msg("Dropping WebSocket client after failed write")
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish implements assistant.Notifier. If the hub is backed up the update
// is dropped; the next mutation carries a complete snapshot anyway.
func (h *Hub) Publish(d aggregate.Dashboard) {
	data, err := encode(d)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal dashboard")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.log.Warn().Msg("Broadcast queue full, dropping dashboard update")
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and hands it to Run, which sends the
// current snapshot before registering the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to upgrade to WebSocket")
		return
	}
	// Clear any deadline the HTTP server left on the hijacked connection.
	_ = conn.SetReadDeadline(time.Time{})

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	// Clients only listen; reading detects disconnection.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				select {
				case h.unregister <- conn:
				case <-h.done:
				}
				return
			}
		}
	}()
}

func write(conn *websocket.Conn, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func encode(d aggregate.Dashboard) ([]byte, error) {
	return json.Marshal(Message{Type: MessageTypeDashboard, Data: d})
}
