package domain

import "time"

// ChatType distinguishes 1:1 rooms from group rooms.
type ChatType string

const (
	ChatDirect ChatType = "DIRECT"
	ChatGroup  ChatType = "GROUP"
)

// ChatRoom is an immutable snapshot from the room listing endpoint. The
// client never mutates it; the whole set is replaced on each list refresh.
type ChatRoom struct {
	ChatID             string     `json:"chatId"`
	Type               ChatType   `json:"type"`
	Title              string     `json:"title,omitempty"`
	LastMessagePreview string     `json:"lastMessagePreview,omitempty"`
	LastMessageAt      *time.Time `json:"lastMessageAt,omitempty"`
	MemberCount        int        `json:"memberCount,omitempty"`
	UnreadCount        int64      `json:"unreadCount,omitempty"`
}

// MessageOrigin marks which side of the wire a message came from.
type MessageOrigin string

const (
	// OriginRemote marks a settled message delivered by the server, either
	// from a history fetch or a live push.
	OriginRemote MessageOrigin = "REMOTE"
	// OriginLocalPending marks an optimistic local echo that has not yet
	// been confirmed by the server.
	OriginLocalPending MessageOrigin = "LOCAL_PENDING"
)

// Message is one entry in a room's visible sequence.
//
// A settled message has a server-assigned ID. A pending message has an empty
// ID and carries the client-generated CorrelationID instead, until the
// reconciliation store collapses it with its settled counterpart.
type Message struct {
	ID            string        `json:"id,omitempty"`
	ChatID        string        `json:"chatId"`
	SenderID      string        `json:"senderId"`
	Content       string        `json:"content"`
	ContentType   string        `json:"contentType,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	Origin        MessageOrigin `json:"origin"`
	CorrelationID string        `json:"-"`
	// Failed is set on a pending message whose send was rejected. The entry
	// stays visible so the typed content is not lost without feedback.
	Failed bool `json:"-"`
}

// Settled reports whether the server has assigned this message an ID.
func (m Message) Settled() bool {
	return m.ID != ""
}
