package entity

import "time"

const (
	MessageStatusUnread = "unread"
	MessageStatusRead   = "read"
)

// Message is a single direct message between two users. Either Text or
// Image (a durable media URL) may be empty. Status only ever moves
// unread -> read.
type Message struct {
	Id         string    `bson:"_id" json:"id"`
	SenderId   string    `bson:"senderId" json:"senderId"`
	ReceiverId string    `bson:"receiverId" json:"receiverId"`
	Text       string    `bson:"text,omitempty" json:"text,omitempty"`
	Image      string    `bson:"image,omitempty" json:"image,omitempty"`
	Status     string    `bson:"status" json:"status"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

// Pagination describes one page of a conversation. Page 1 holds the
// newest messages, higher pages walk back in time. Each page's contents
// are sorted oldest-first.
type Pagination struct {
	CurrentPage   int   `json:"currentPage"`
	TotalPages    int   `json:"totalPages"`
	TotalMessages int64 `json:"totalMessages"`
	HasNextPage   bool  `json:"hasNextPage"`
	Limit         int   `json:"limit"`
}

// ConversationPage is a derived view, recomputed on every fetch and
// never stored.
type ConversationPage struct {
	Messages   []Message  `json:"messages"`
	Pagination Pagination `json:"pagination"`
}
