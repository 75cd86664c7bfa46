package websocket

// Server -> client event names. getOnlineUsers is broadcast to every
// channel; the rest are unicast.
const (
	EventOnlineUsers         = "getOnlineUsers"
	EventInitialUnreadCounts = "initialUnreadCounts"
	EventNewMessage          = "newMessage"
	EventUpdateUnreadCount   = "updateUnreadCount"
)

type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type UnreadCountUpdate struct {
	From  string `json:"from"`
	Count int    `json:"count"`
}
