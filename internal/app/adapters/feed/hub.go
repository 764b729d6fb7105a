package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
	"twitchtts/internal/app/adapters/metrics"
	"twitchtts/internal/app/infrastructure/storage"
	"twitchtts/internal/app/ports"
	"twitchtts/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	EventChat   = "chat"
	EventSpoken = "spoken"
)

// Event is one JSON frame sent to feed clients.
type Event struct {
	Type     string `json:"type"`
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
	Line     string `json:"line,omitempty"`
	Time     int64  `json:"time"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // browser sources (OBS) connect from anywhere
	},
}

// Hub fans chat messages and spoken lines out to websocket clients and keeps
// a short per-channel history for clients that connect late.
type Hub struct {
	log     logger.Logger
	clock   clockwork.Clock
	history *storage.History[ports.ChatMessage]

	mu      sync.Mutex
	clients map[*client]struct{}
}

func New(log logger.Logger, clock clockwork.Clock, history *storage.History[ports.ChatMessage]) *Hub {
	return &Hub{
		log:     log,
		clock:   clock,
		history: history,
		clients: make(map[*client]struct{}),
	}
}

// Pump forwards messages from a session subscription until it closes or
// ctx is done.
func (h *Hub) Pump(ctx context.Context, sub <-chan ports.ChatMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub:
			if !ok {
				return
			}
			h.history.Push(msg.Channel, msg)
			h.Broadcast(Event{Type: EventChat, Channel: msg.Channel, Username: msg.Username, Message: msg.Text})
		}
	}
}

// Speak publishes a line that was read aloud, so the hub can sit next to
// the transcript as a speech sink.
func (h *Hub) Speak(line string) error {
	h.Broadcast(Event{Type: EventSpoken, Line: line})
	return nil
}

func (h *Hub) History(channel string) []ports.ChatMessage {
	return h.history.Get(channel)
}

func (h *Hub) Broadcast(ev Event) {
	if ev.Time == 0 {
		ev.Time = h.clock.Now().UnixMilli()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("Failed to encode feed event", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.offer(data) {
			h.log.Debug("Feed client is slow, event dropped")
		}
	}
}

// ServeWS upgrades the request and blocks until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade websocket", slog.String("error", err.Error()))
		return
	}

	c := newClient(conn, h.clock)
	h.register(c)
	defer h.unregister(c)

	// read pump: control frames only, ends on close or missed pongs
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.FeedClients.Set(float64(n))
	h.log.Debug("Feed client connected", slog.Int("clients", n))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.stop()
		metrics.FeedClients.Set(float64(n))
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.stop()
	}
	metrics.FeedClients.Set(0)
}

// CleanupEvery drops expired history entries until ctx is done.
func (h *Hub) CleanupEvery(ctx context.Context, interval time.Duration) {
	h.history.Run(ctx, interval)
}
