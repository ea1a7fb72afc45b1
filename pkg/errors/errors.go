package minichat_errors

import "errors"

// Common errors
var (
	ErrNotConnected   = errors.New("transport not connected")
	ErrEmptyMessage   = errors.New("message content is empty")
	ErrNoActiveRoom   = errors.New("no active room selected")
	ErrRoomMismatch   = errors.New("room is not the active room")
	ErrDecodeFailed   = errors.New("failed to decode payload")
	ErrUnknownPending = errors.New("unknown pending send")
	ErrAlreadyClosed  = errors.New("client already closed")
	ErrNoDeliveryPath = errors.New("no delivery path available")
)
