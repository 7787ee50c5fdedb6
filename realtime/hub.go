package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Hub fans committed engine events out to websocket subscribers. Every
// tournament has its own room; a client joins exactly one room for the
// lifetime of its connection.
type Hub struct {
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	rooms  map[string]map[*Client]bool
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

func roomKey(tournamentID uuid.UUID) string {
	return "tournament_" + tournamentID.String()
}

// Run owns room membership. Start it once, before the first subscriber
// connects.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.logger.Debug("websocket client joined", "room", client.room, "clients", len(h.rooms[client.room]))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if _, joined := clients[client]; joined {
					delete(clients, client)
					client.closeSend()
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
					h.logger.Debug("websocket client left", "room", client.room, "clients", len(clients))
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToTournament delivers the event to every subscriber of the
// tournament's room. Clients with a full buffer miss the message instead
// of stalling the caller.
func (h *Hub) BroadcastToTournament(tournamentID uuid.UUID, event Event) {
	room := roomKey(tournamentID)
	event.RoomID = room

	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", "room", room, "type", event.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[room] {
		client.enqueue(payload)
	}
}
