package hub

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HichuYamichu/goelearn-sub000/internal/config"
	"github.com/HichuYamichu/goelearn-sub000/internal/domain"
	"github.com/HichuYamichu/goelearn-sub000/internal/metrics"
	"github.com/HichuYamichu/goelearn-sub000/pkg/log"
	"github.com/HichuYamichu/goelearn-sub000/pkg/pubsub"
)

// Handler is the meeting logic a Client drives.
type Handler interface {
	HandleCommand(ctx context.Context, id domain.Identity, cmd domain.Command) error
	HandleEvent(ctx context.Context, id domain.Identity, ev *pubsub.Event) (interface{}, bool, error)
	Teardown(ctx context.Context, id domain.Identity)
}

// Hub tracks the authenticated sessions on this instance.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	config  config.WebSocketConfig
}

// NewHub creates a new Hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		config:  cfg,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	metrics.ActiveSessions.Inc()

	l := log.L()
	l.Info().
		Str(log.FieldSessionID, c.ID).
		Str(log.FieldUserID, c.Identity.UserID).
		Str(log.FieldClassID, c.Identity.ClassID).
		Msg("client registered")
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	delete(h.clients, c.ID)
	h.mu.Unlock()
	if !ok {
		return
	}
	metrics.ActiveSessions.Dec()

	l := log.L()
	l.Info().Str(log.FieldSessionID, c.ID).Msg("client unregistered")
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll sends a going-away close frame to every client and closes its
// connection. Each session then tears itself down.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close(websocket.CloseGoingAway, "server shutting down")
	}
}

// Wait blocks until every client has unregistered or ctx ends.
func (h *Hub) Wait(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for h.Count() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
