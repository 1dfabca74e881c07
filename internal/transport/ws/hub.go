package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/vedran77/reviewhub/pkg/logger"
)

// Hub tracks connected clients and routes server events to users.
type Hub struct {
	// clients maps userID → that user's connections (one per tab).
	clients map[uuid.UUID]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg
	done       chan struct{}

	deps *Deps
}

type broadcastMsg struct {
	userID *uuid.UUID // nil: everyone
	data   []byte
}

func NewHub(deps *Deps) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
		done:       make(chan struct{}),
		deps:       deps,
	}
}

func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Run starts the Hub's main event loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	log := logger.Component("ws-hub")
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.clients {
				for client := range conns {
					client.shutdown()
				}
			}
			h.clients = make(map[uuid.UUID]map[*Client]struct{})
			return

		case client := <-h.register:
			conns := h.clients[client.userID]
			first := len(conns) == 0
			if conns == nil {
				conns = make(map[*Client]struct{})
				h.clients[client.userID] = conns
			}
			conns[client] = struct{}{}
			log.Info().Str("user_id", client.userID.String()).Int("users", len(h.clients)).Msg("client connected")

			if first {
				h.broadcastPresence(client.userID, "online")
			}

		case client := <-h.unregister:
			conns, ok := h.clients[client.userID]
			if !ok {
				continue
			}
			if _, ok := conns[client]; !ok {
				continue
			}
			delete(conns, client)
			client.shutdown()
			log.Info().Str("user_id", client.userID.String()).Int("users", len(h.clients)).Msg("client disconnected")

			if len(conns) == 0 {
				delete(h.clients, client.userID)
				h.broadcastPresence(client.userID, "offline")
			}

		case msg := <-h.broadcast:
			for userID, conns := range h.clients {
				if msg.userID != nil && userID != *msg.userID {
					continue
				}
				for client := range conns {
					if !client.enqueue(msg.data) {
						// buffer full: drop the connection
						delete(conns, client)
						client.shutdown()
					}
				}
				if len(conns) == 0 {
					delete(h.clients, userID)
				}
			}
		}
	}
}

// BroadcastToUser sends an event to every connection of userID.
func (h *Hub) BroadcastToUser(userID uuid.UUID, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Str("type", event.Type).Msg("ws hub: marshal error")
		return
	}
	select {
	case h.broadcast <- &broadcastMsg{userID: &userID, data: data}:
	case <-h.done:
	}
}

// broadcastPresence sends online/offline to all other connected users.
// It runs on the hub loop and writes to client queues directly.
func (h *Hub) broadcastPresence(userID uuid.UUID, status string) {
	evt, err := NewEvent(EventTypePresence, PresencePayload{
		UserID: userID,
		Status: status,
	})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	for id, conns := range h.clients {
		if id == userID {
			continue
		}
		for client := range conns {
			client.enqueue(data)
		}
	}
}
