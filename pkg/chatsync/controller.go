// Package chatsync reconciles REST-fetched history, paginated backfill
// and live pushed events into one ordered, de-duplicated conversation
// timeline. The Controller is a pure state machine: callers feed it
// events and execute the commands it returns (page fetches, read
// acknowledgements) against the server.
package chatsync

import (
	"sort"

	"wichat/internal/entity"
)

type State int

const (
	StateIdle State = iota
	StateLoadingHistory
	StateReady
	StateLoadingOlder
)

// Event is an input to the controller: a user action, a completed
// fetch, or a pushed server event.
type Event interface{ isEvent() }

// EvOpen switches the active conversation to Peer.
type EvOpen struct{ Peer string }

// EvClose leaves the active conversation.
type EvClose struct{}

// EvHistoryLoaded carries the page-1 response for Peer. Epoch echoes
// the value from the CmdFetchPage that requested it.
type EvHistoryLoaded struct {
	Peer       string
	Epoch      uint64
	Messages   []entity.Message
	Pagination entity.Pagination
}

// EvOlderLoaded carries a backfill page response.
type EvOlderLoaded struct {
	Peer       string
	Epoch      uint64
	Messages   []entity.Message
	Pagination entity.Pagination
}

// EvFetchFailed reports a failed page fetch so the state machine can
// leave its loading state.
type EvFetchFailed struct {
	Peer  string
	Epoch uint64
}

// EvLiveMessage is a pushed newMessage event.
type EvLiveMessage struct{ Message entity.Message }

// EvSent is the caller's own message, confirmed by the server.
type EvSent struct{ Message entity.Message }

// EvUnreadSnapshot is the initialUnreadCounts push on connect.
type EvUnreadSnapshot struct{ Counts map[string]int }

// EvUnreadUpdate is an updateUnreadCount push.
type EvUnreadUpdate struct {
	From  string
	Count int
}

func (EvOpen) isEvent()           {}
func (EvClose) isEvent()          {}
func (EvHistoryLoaded) isEvent()  {}
func (EvOlderLoaded) isEvent()    {}
func (EvFetchFailed) isEvent()    {}
func (EvLiveMessage) isEvent()    {}
func (EvSent) isEvent()           {}
func (EvUnreadSnapshot) isEvent() {}
func (EvUnreadUpdate) isEvent()   {}

// Command is an effect for the embedder to execute.
type Command interface{ isCommand() }

// CmdFetchPage asks for one conversation page. The response event must
// carry back Epoch so stale responses can be discarded.
type CmdFetchPage struct {
	Peer  string
	Page  int
	Limit int
	Epoch uint64
}

// CmdMarkRead acknowledges everything Peer sent as read.
type CmdMarkRead struct{ Peer string }

func (CmdFetchPage) isCommand() {}
func (CmdMarkRead) isCommand()  {}

type Controller struct {
	selfId string
	limit  int

	state State
	peer  string
	epoch uint64

	messages []entity.Message
	seen     map[string]struct{}

	page    int
	hasNext bool

	unread map[string]int
}

func NewController(selfId string, pageLimit int) *Controller {
	if pageLimit <= 0 {
		pageLimit = 20
	}
	return &Controller{
		selfId: selfId,
		limit:  pageLimit,
		state:  StateIdle,
		seen:   make(map[string]struct{}),
		unread: make(map[string]int),
	}
}

// Apply advances the state machine and returns the commands to run.
func (c *Controller) Apply(event Event) []Command {
	switch ev := event.(type) {
	case EvOpen:
		return c.open(ev.Peer)
	case EvClose:
		c.reset()
		c.state = StateIdle
		c.peer = ""
		return nil
	case EvHistoryLoaded:
		if c.stale(ev.Peer, ev.Epoch) || c.state != StateLoadingHistory {
			return nil
		}
		c.merge(ev.Messages)
		c.page = ev.Pagination.CurrentPage
		c.hasNext = ev.Pagination.HasNextPage
		c.state = StateReady
		return nil
	case EvOlderLoaded:
		if c.stale(ev.Peer, ev.Epoch) || c.state != StateLoadingOlder {
			return nil
		}
		c.merge(ev.Messages)
		c.page = ev.Pagination.CurrentPage
		c.hasNext = ev.Pagination.HasNextPage
		c.state = StateReady
		return nil
	case EvFetchFailed:
		if c.stale(ev.Peer, ev.Epoch) {
			return nil
		}
		switch c.state {
		case StateLoadingHistory:
			c.state = StateIdle
		case StateLoadingOlder:
			c.state = StateReady
		}
		return nil
	case EvLiveMessage:
		return c.liveMessage(ev.Message)
	case EvSent:
		if c.peer != "" && ev.Message.ReceiverId == c.peer {
			c.merge([]entity.Message{ev.Message})
		}
		return nil
	case EvUnreadSnapshot:
		c.unread = make(map[string]int, len(ev.Counts))
		for senderId, count := range ev.Counts {
			c.unread[senderId] = count
		}
		return nil
	case EvUnreadUpdate:
		c.unread[ev.From] = ev.Count
		return nil
	}
	return nil
}

// LoadOlder requests the next backfill page. Only valid from Ready with
// more pages remaining.
func (c *Controller) LoadOlder() []Command {
	if c.state != StateReady || !c.hasNext {
		return nil
	}

	c.state = StateLoadingOlder
	return []Command{CmdFetchPage{
		Peer:  c.peer,
		Page:  c.page + 1,
		Limit: c.limit,
		Epoch: c.epoch,
	}}
}

func (c *Controller) open(peer string) []Command {
	// Switching conversations invalidates everything in flight for the
	// old one: the epoch bump makes late responses no-ops.
	c.reset()
	c.peer = peer
	c.state = StateLoadingHistory

	// The read acknowledgement below durably zeroes this peer's unread
	// count, so the local badge must not resurface the old value after
	// the next switch.
	delete(c.unread, peer)

	// The read acknowledgement goes out immediately; it may complete
	// before or after the history load, both are fine.
	return []Command{
		CmdMarkRead{Peer: peer},
		CmdFetchPage{Peer: peer, Page: 1, Limit: c.limit, Epoch: c.epoch},
	}
}

func (c *Controller) liveMessage(message entity.Message) []Command {
	if c.peer != "" && message.SenderId == c.peer {
		// Message belongs to the open thread: show it and acknowledge
		// it straight away so the sender's badge clears. Any count push
		// that raced the acknowledgement is cleared too.
		c.merge([]entity.Message{message})
		delete(c.unread, message.SenderId)
		return []Command{CmdMarkRead{Peer: c.peer}}
	}

	// Background sender: only the unread accounting moves. The
	// server's updateUnreadCount push will overwrite this shortly.
	if message.ReceiverId == c.selfId {
		c.unread[message.SenderId]++
	}
	return nil
}

// merge de-duplicates by id and re-sorts ascending by createdAt, which
// makes the timeline idempotent under re-delivery and out-of-order
// page arrival.
func (c *Controller) merge(incoming []entity.Message) {
	for _, message := range incoming {
		if _, dup := c.seen[message.Id]; dup {
			continue
		}
		c.seen[message.Id] = struct{}{}
		c.messages = append(c.messages, message)
	}

	sort.SliceStable(c.messages, func(i, j int) bool {
		return c.messages[i].CreatedAt.Before(c.messages[j].CreatedAt)
	})
}

func (c *Controller) reset() {
	c.epoch++
	c.messages = nil
	c.seen = make(map[string]struct{})
	c.page = 0
	c.hasNext = false
}

func (c *Controller) stale(peer string, epoch uint64) bool {
	return peer != c.peer || epoch != c.epoch
}

func (c *Controller) State() State { return c.state }

func (c *Controller) ActivePeer() string { return c.peer }

func (c *Controller) HasOlderPages() bool { return c.hasNext }

// Timeline returns a copy of the merged conversation, oldest first.
func (c *Controller) Timeline() []entity.Message {
	timeline := make([]entity.Message, len(c.messages))
	copy(timeline, c.messages)
	return timeline
}

// UnreadCount reports the badge value for a sender. The open thread is
// always zero: its messages are acknowledged as they arrive.
func (c *Controller) UnreadCount(senderId string) int {
	if senderId == c.peer {
		return 0
	}
	return c.unread[senderId]
}

// UnreadCounts returns the badge values for every tracked sender, with
// the open thread suppressed to zero.
func (c *Controller) UnreadCounts() map[string]int {
	counts := make(map[string]int, len(c.unread))
	for senderId, count := range c.unread {
		if senderId == c.peer {
			counts[senderId] = 0
			continue
		}
		counts[senderId] = count
	}
	return counts
}
