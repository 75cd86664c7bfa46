package usecase

import (
	"context"

	"wichat/internal/entity"
	"wichat/internal/repository"

	"go.uber.org/zap"
)

// PresenceRegistry is the live user -> channel mapping the router
// resolves recipients against.
type PresenceRegistry interface {
	IsOnline(userID string) bool
	OnlineUsers() []string
}

// EventPusher writes events to a user's channel. Every push is
// at-most-once: a false return means the event was dropped and the
// client will recover it on its next fetch or reconnect.
type EventPusher interface {
	PushNewMessage(userId string, message entity.Message) bool
	PushUnreadCount(userId, from string, count int) bool
	PushInitialState(userId string, counts map[string]int, online []string) bool
	BroadcastOnlineUsers(online []string)
}

// DeliveryRouter fans ledger changes out to the recipient's channel.
// Offline recipients are a silent no-op: the message is already durable
// and surfaces through the next counts or history fetch.
type DeliveryRouter struct {
	presence PresenceRegistry
	pusher   EventPusher
	messages repository.MessageRepository
	log      *zap.Logger
}

func NewDeliveryRouter(
	presence PresenceRegistry,
	pusher EventPusher,
	messages repository.MessageRepository,
	log *zap.Logger,
) *DeliveryRouter {
	return &DeliveryRouter{
		presence: presence,
		pusher:   pusher,
		messages: messages,
		log:      log,
	}
}

// NotifyNewMessage pushes the message to its receiver followed by the
// sender's current unread count at that receiver.
func (r *DeliveryRouter) NotifyNewMessage(ctx context.Context, message entity.Message) {
	if !r.presence.IsOnline(message.ReceiverId) {
		return
	}

	r.pusher.PushNewMessage(message.ReceiverId, message)

	count, err := r.messages.CountUnreadFrom(ctx, message.SenderId, message.ReceiverId)
	if err != nil {
		r.log.Warn("unread count lookup failed",
			zap.String("senderId", message.SenderId),
			zap.String("receiverId", message.ReceiverId),
			zap.Error(err))
		return
	}

	r.pusher.PushUnreadCount(message.ReceiverId, message.SenderId, count)
}

// NotifyReadAck tells the original sender that the reader's unread
// count for them is now zero.
func (r *DeliveryRouter) NotifyReadAck(ctx context.Context, readerId, originalSenderId string) {
	if !r.presence.IsOnline(originalSenderId) {
		return
	}

	r.pusher.PushUnreadCount(originalSenderId, readerId, 0)
}

// NotifyInitialState sends the unread and presence snapshots to a newly
// registered connection, so the client never renders stale state.
// Called exactly once per connection, synchronously after registration.
func (r *DeliveryRouter) NotifyInitialState(ctx context.Context, userId string) {
	counts, err := r.messages.UnreadCounts(ctx, userId)
	if err != nil {
		r.log.Warn("initial unread counts failed", zap.String("userId", userId), zap.Error(err))
		counts = map[string]int{}
	}

	r.pusher.PushInitialState(userId, counts, r.presence.OnlineUsers())
}

// BroadcastPresence pushes the full online set to every connected
// channel. Full-state, not a diff: the presence set is small.
func (r *DeliveryRouter) BroadcastPresence(online []string) {
	r.pusher.BroadcastOnlineUsers(online)
}
