package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/boardsight/internal/cups"
)

const (
	clientBuffer = 32
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventHub broadcasts cups run events to WebSocket clients. It implements
// cups.EventSink; slow clients drop events instead of blocking the run.
type EventHub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

// NewEventHub creates an empty hub.
func NewEventHub(logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHub{
		log:     logger.With("component", "events"),
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// Publish queues ev for every connected client.
func (h *EventHub) Publish(ev cups.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Warn("failed to encode event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.log.Debug("dropping event for slow client", "remote", conn.RemoteAddr().String())
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Reads only detect the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case msg := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
