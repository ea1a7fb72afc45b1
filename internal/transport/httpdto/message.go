package httpdto

import "time"

// SendMessageRequest is the body of POST /messages and also the payload of
// an outbound websocket publish. ClientMsgID is the client-generated
// correlation token; backends that echo it back let the client reconcile the
// optimistic entry without the content heuristic.
type SendMessageRequest struct {
	ChatID      string `json:"chatId"`
	Content     string `json:"content"`
	ContentType string `json:"contentType,omitempty"`
	ClientMsgID string `json:"clientMessageId,omitempty"`
}

// MessageResponse is a settled message as the backend serializes it, both in
// REST responses and in live broadcasts.
type MessageResponse struct {
	ID          string    `json:"id"`
	ChatID      string    `json:"chatId"`
	SenderID    string    `json:"senderId"`
	ContentType string    `json:"contentType,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
	SeenCount   int64     `json:"seenCount,omitempty"`
	ClientMsgID string    `json:"clientMessageId,omitempty"`
}

// ReadUpToRequest marks every message up to and including the given one as
// read for the calling user.
type ReadUpToRequest struct {
	LastReadMessageID string `json:"lastReadMessageId"`
}
