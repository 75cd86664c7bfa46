package ws

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

type Hub struct {
	clients            map[string]*UserClient
	broadcast          chan []byte
	Register           chan *UserClient
	Unregister         chan *UserClient
	mu                 sync.RWMutex
	log                *zap.Logger
	OnClientRegister   func(client *UserClient)
	OnClientUnregister func(client *UserClient) error
	OnPresenceChange   func(online []string)
}

func NewHub(log *zap.Logger) Registry {
	return &Hub{
		clients:    make(map[string]*UserClient),
		broadcast:  make(chan []byte, 256),
		Register:   make(chan *UserClient),
		Unregister: make(chan *UserClient),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if prev, ok := h.clients[client.UserId]; ok && prev != client {
				// Last writer wins: the old channel is evicted
				// silently, no event is pushed to it.
				close(prev.send)
			}
			h.clients[client.UserId] = client
			h.mu.Unlock()
			h.log.Info("client connected", zap.String("userId", client.UserId))

			if h.OnPresenceChange != nil {
				h.OnPresenceChange(h.OnlineUsers())
			}
			if h.OnClientRegister != nil {
				h.OnClientRegister(client)
			}

		case client := <-h.Unregister:
			h.mu.Lock()
			// Identity check, not userId-only: a disconnect racing a
			// reconnect must not delete the fresher connection.
			current, ok := h.clients[client.UserId]
			if ok && current == client {
				delete(h.clients, client.UserId)
				close(client.send)
				h.log.Info("client disconnected", zap.String("userId", client.UserId))
			}
			h.mu.Unlock()

			if !ok || current != client {
				continue
			}

			if h.OnPresenceChange != nil {
				h.OnPresenceChange(h.OnlineUsers())
			}
			if h.OnClientUnregister != nil {
				if err := h.OnClientUnregister(client); err != nil {
					h.log.Warn("OnClientUnregister error", zap.Error(err))
				}
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			for userId, client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.log.Warn("dropping broadcast for slow client", zap.String("userId", userId))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast enqueues message for every connected client. Non-blocking:
// the Run loop itself broadcasts from its presence callbacks, so a
// blocking send here could deadlock the loop against its own queue. A
// full queue drops the message.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.log.Warn("dropping broadcast, queue full")
	}
}

// SendToClient delivers message to the user's channel if one is live.
// Fire-and-forget: a full or absent channel drops the message and
// returns false.
func (h *Hub) SendToClient(userID string, message []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[userID]
	if !exists {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		h.log.Warn("failed to send to client", zap.String("userId", userID))
		return false
	}
}

func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	online := make([]string, 0, len(h.clients))
	for userId := range h.clients {
		online = append(online, userId)
	}
	sort.Strings(online)
	return online
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(client *UserClient) {
	h.Register <- client
}

func (h *Hub) UnregisterClient(client *UserClient) {
	h.Unregister <- client
}

func (h *Hub) SetOnClientRegister(callback func(client *UserClient)) {
	h.OnClientRegister = callback
}

func (h *Hub) SetOnClientUnregister(callback func(client *UserClient) error) {
	h.OnClientUnregister = callback
}

func (h *Hub) SetOnPresenceChange(callback func(online []string)) {
	h.OnPresenceChange = callback
}
