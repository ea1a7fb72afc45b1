package chat

import (
	"context"
	"sync"

	"minichat/config"
	"minichat/internal/domain"
	"minichat/internal/transport/rest"
	"minichat/internal/transport/ws"
	"minichat/pkg/logger"
)

// Client is the facade the UI talks to. It wires the transport connection,
// the subscription controller, the history loader, the reconciliation store
// and the send coordinator together, and exposes the store as the single
// source of truth for the room in view.
type Client struct {
	cfg        *config.Config
	log        *logger.Logger
	api        *rest.Client
	conn       *ws.Conn
	store      *Store
	controller *Controller
	sender     *Sender

	mu     sync.Mutex
	rooms  []domain.ChatRoom
	closed bool
}

func New(cfg *config.Config, log *logger.Logger) *Client {
	api := rest.NewClient(cfg.APIBaseURL, cfg.UserID)
	conn := ws.NewConn(cfg.WSURL, cfg.UserID, log, cfg.AutoReconnect)
	store := NewStore()
	controller := NewController(conn, store, cfg.SubscriptionMode, log)
	sender := NewSender(conn, api, store, cfg.DeliveryMode, cfg.UserID, log)

	conn.OnStateChange(controller.HandleConnectionState)
	conn.OnMessage(controller.HandleFrame)

	return &Client{
		cfg:        cfg,
		log:        log,
		api:        api,
		conn:       conn,
		store:      store,
		controller: controller,
		sender:     sender,
	}
}

// Connect establishes the live channel. Room selection works without it;
// sends over the publish path do not.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// Close cancels the active subscription and deactivates the transport. The
// store receives no further mutations once teardown begins.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.controller.Close()
	c.conn.Close()
}

// OnUpdate registers a callback fired whenever the visible message sequence
// changes. Must be called before Connect.
func (c *Client) OnUpdate(fn func()) {
	c.store.OnChange(fn)
}

// RefreshRooms reloads the room list, replacing the previous snapshot
// wholesale.
func (c *Client) RefreshRooms(ctx context.Context) ([]domain.ChatRoom, error) {
	rooms, err := c.api.ListChats(ctx, 0, c.cfg.RoomPageSize)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.rooms = rooms
	c.mu.Unlock()
	return rooms, nil
}

// Rooms returns the last fetched room list.
func (c *Client) Rooms() []domain.ChatRoom {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatRoom, len(c.rooms))
	copy(out, c.rooms)
	return out
}

// SelectRoom makes roomID the room in view: the previous subscription is
// torn down, the most recent history page replaces the store's contents, and
// a new subscription is established (immediately if connected, otherwise on
// the next Connected transition). The room is also marked read up to its
// newest message, best effort.
func (c *Client) SelectRoom(ctx context.Context, roomID string) ([]domain.Message, error) {
	// Clear the stale room's sequence before the fetch so the view never
	// shows another room's messages, then switch the subscription.
	c.store.ReplaceAll(roomID, nil)
	c.controller.SetActiveRoom(roomID)

	messages, err := c.api.ListMessages(ctx, roomID, 0, c.cfg.MessagePageSize)
	if err != nil {
		return nil, err
	}
	c.store.ReplaceAll(roomID, messages)

	if len(messages) > 0 {
		if err := c.api.MarkReadUpTo(ctx, roomID, messages[0].ID); err != nil {
			c.log.Warnf("mark read failed for room %s: %v", roomID, err)
		}
	}
	return messages, nil
}

// LeaveRoom deselects the current room and cancels its subscription.
func (c *Client) LeaveRoom() {
	c.controller.SetActiveRoom("")
	c.store.ReplaceAll("", nil)
}

// Send dispatches content to the active room.
func (c *Client) Send(ctx context.Context, content string) (domain.Message, error) {
	return c.sender.Send(ctx, c.controller.ActiveRoom(), content)
}

// Messages returns the visible sequence for the room in view, newest first.
func (c *Client) Messages() []domain.Message {
	return c.store.Messages()
}

// ActiveRoom returns the currently selected room id, or "".
func (c *Client) ActiveRoom() string {
	return c.controller.ActiveRoom()
}

// ConnectionState reports the live channel's connectivity.
func (c *Client) ConnectionState() domain.ConnectionState {
	return c.conn.State()
}
