// Package live pushes score events to connected websocket clients.
//
// The hub owns the client set and serializes register, unregister and
// broadcast through channels. Slow clients whose send buffer fills are
// evicted rather than allowed to stall the broadcast loop.
package live

import (
	"context"
	"encoding/json"

	"github.com/ekurt/bottlederby/internal/domain/model"
	"github.com/ekurt/bottlederby/pkg/logger"
	"github.com/ekurt/bottlederby/pkg/metrics"
)

const defaultSendBuffer = 16

// Hub fans score events out to websocket clients.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan model.ScoreEvent
	sendBuffer int
	log        logger.Logger
}

// NewHub creates a hub. Run must be called before clients connect.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan model.ScoreEvent, 64),
		sendBuffer: defaultSendBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.Named("live")
	}
	return h
}

// Run processes hub events until the context is cancelled. On exit every
// connected client is closed.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.UpdateLiveClients(len(h.clients))
			h.log.Debug(ctx, "client connected", logger.Int("clients", len(h.clients)))
		case c := <-h.unregister:
			h.drop(c)
		case ev := <-h.broadcast:
			h.fanOut(ev)
		}
	}
}

// Broadcast queues a score event for delivery to all connected clients.
// It never blocks the caller; under extreme load events are dropped.
func (h *Hub) Broadcast(ev model.ScoreEvent) {
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn(context.Background(), "broadcast queue full, dropping event", logger.String("event_id", ev.ID))
	}
}

// message is the wire shape pushed to clients: the score event plus a goal
// flag so clients can trigger their notification without re-deriving it.
type message struct {
	model.ScoreEvent
	Goal bool `json:"goal"`
}

func (h *Hub) fanOut(ev model.ScoreEvent) {
	payload, err := json.Marshal(message{ScoreEvent: ev, Goal: ev.Goal()})
	if err != nil {
		h.log.Error(context.Background(), "marshal score event", logger.Error(err))
		return
	}
	metrics.RecordLiveBroadcast()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// The client is not keeping up; cut it loose.
			h.drop(c)
			metrics.RecordLiveDroppedClient()
			h.log.Warn(context.Background(), "evicted slow client")
		}
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.UpdateLiveClients(len(h.clients))
}

func (h *Hub) closeAll() {
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	metrics.UpdateLiveClients(0)
}
