package websocket

import (
	"encoding/json"

	"wichat/infrastructure/ws"
	"wichat/internal/entity"

	"go.uber.org/zap"
)

// Pusher marshals delivery events into the wire envelope and hands them
// to the presence registry. Sends are fire-and-forget.
type Pusher struct {
	registry ws.Registry
	log      *zap.Logger
}

func NewPusher(registry ws.Registry, log *zap.Logger) *Pusher {
	return &Pusher{
		registry: registry,
		log:      log,
	}
}

func (p *Pusher) push(userId, event string, data any) bool {
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		p.log.Error("marshal event", zap.String("event", event), zap.Error(err))
		return false
	}

	return p.registry.SendToClient(userId, payload)
}

func (p *Pusher) PushNewMessage(userId string, message entity.Message) bool {
	return p.push(userId, EventNewMessage, message)
}

func (p *Pusher) PushUnreadCount(userId, from string, count int) bool {
	return p.push(userId, EventUpdateUnreadCount, UnreadCountUpdate{From: from, Count: count})
}

func (p *Pusher) PushInitialState(userId string, counts map[string]int, online []string) bool {
	sent := p.push(userId, EventInitialUnreadCounts, counts)
	return p.push(userId, EventOnlineUsers, online) && sent
}

func (p *Pusher) BroadcastOnlineUsers(online []string) {
	payload, err := json.Marshal(Envelope{Event: EventOnlineUsers, Data: online})
	if err != nil {
		p.log.Error("marshal online users", zap.Error(err))
		return
	}

	p.registry.Broadcast(payload)
}
