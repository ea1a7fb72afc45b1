package ws

// Control frame types for the per-room subscription shape.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
)

// ControlFrame registers or drops interest in one room's event stream on
// servers that support per-room topics. Servers that broadcast the user's
// whole stream ignore these frames.
type ControlFrame struct {
	Type   string `json:"type"`
	ChatID string `json:"chatId"`
}
