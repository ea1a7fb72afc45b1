package httpdto

import "time"

// PageResponse mirrors the backend's paged envelope: the slice of results
// plus paging metadata. Only Content is consumed by the client.
type PageResponse[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page,omitempty"`
	Size          int   `json:"size,omitempty"`
	TotalElements int64 `json:"totalElements,omitempty"`
}

// ChatSummary is one card in the room list.
type ChatSummary struct {
	ChatID             string     `json:"chatId"`
	Type               string     `json:"type"`
	Title              string     `json:"title,omitempty"`
	LastMessagePreview string     `json:"lastMessagePreview,omitempty"`
	LastMessageAt      *time.Time `json:"lastMessageAt,omitempty"`
	MemberCount        int        `json:"memberCount"`
	UnreadCount        int64      `json:"unreadCount"`
}
