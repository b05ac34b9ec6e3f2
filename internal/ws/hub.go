package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"TableWatch/entity"
	"TableWatch/internal/lib/sl"
)

// Event represents a WebSocket event sent to admin clients.
type Event struct {
	Type string      `json:"type"` // "subscription"
	Data interface{} `json:"data"`
}

// Hub maintains the set of active WebSocket clients and broadcasts subscription events.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan broadcastEvent
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	log        *slog.Logger
}

type broadcastEvent struct {
	provider string
	data     []byte
}

// NewHub creates a new Hub instance.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan broadcastEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.With(sl.Module("ws.hub")),
	}
}

// Run starts the hub's event loop. Should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("client connected", slog.String("username", client.username))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(event.provider) {
					continue
				}
				select {
				case client.send <- event.data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues a subscription event for every interested client.
// Events are dropped when the queue is full so callers never block.
func (h *Hub) Broadcast(event entity.SubscriptionEvent) {
	data, err := json.Marshal(&Event{Type: "subscription", Data: event})
	if err != nil {
		h.log.Error("marshal event", sl.Err(err))
		return
	}
	select {
	case h.broadcast <- broadcastEvent{provider: event.Subscription.Provider, data: data}:
	default:
		h.log.Warn("event queue full, event dropped",
			slog.String("type", string(event.Type)),
			slog.String("subscription_id", event.Subscription.ID),
		)
	}
}

// clientEvent represents an incoming WebSocket message from a client.
type clientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleClientMessage parses and applies a message from a client.
// The only message is {"type":"filter","data":{"provider":"resy"}}; an empty provider means all.
func (h *Hub) HandleClientMessage(c *Client, raw []byte) {
	var event clientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.log.Warn("failed to parse client ws message", sl.Err(err))
		return
	}

	switch event.Type {
	case "filter":
		var data struct {
			Provider string `json:"provider"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil {
			h.log.Warn("failed to parse filter data", sl.Err(err))
			return
		}
		c.setProvider(data.Provider)
		h.log.Debug("client filter set",
			slog.String("username", c.username),
			slog.String("provider", data.Provider),
		)
	}
}
