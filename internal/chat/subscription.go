package chat

import (
	"encoding/json"
	"sync"

	"minichat/config"
	"minichat/internal/domain"
	"minichat/internal/transport/httpdto"
	"minichat/internal/transport/rest"
	"minichat/internal/transport/ws"
	"minichat/pkg/logger"
)

// Transport is the slice of the live connection the subscription controller
// and send coordinator depend on. Only the transport itself mutates the
// state it reports.
type Transport interface {
	State() domain.ConnectionState
	Publish(payload []byte) error
}

// subscription is the cancelable handle for one live room registration. At
// most one exists at any instant.
type subscription struct {
	roomID string
	cancel func()
}

// Controller maintains at most one active room subscription, tears the
// previous one down on every room switch, and re-establishes the desired
// subscription on every transition into Connected.
//
// Two live-channel shapes are supported. In broadcast mode the connection
// delivers all of the user's messages and the controller filters by the
// active room at delivery time. In per-room mode the controller sends
// subscribe/unsubscribe control frames so only the active room's events
// arrive; the delivery-time filter still applies to catch frames racing a
// cancellation.
type Controller struct {
	transport Transport
	store     *Store
	log       *logger.Logger
	perRoom   bool

	mu          sync.Mutex
	desiredRoom string
	active      *subscription
}

func NewController(transport Transport, store *Store, mode string, log *logger.Logger) *Controller {
	return &Controller{
		transport: transport,
		store:     store,
		log:       log,
		perRoom:   mode == config.SubscriptionPerRoom,
	}
}

// SetActiveRoom switches the live subscription to roomID. Passing the
// already-active room is a no-op; passing "" cancels the subscription
// without establishing a new one. While the transport is not connected the
// desired room is remembered and subscribed on the next Connected
// transition.
func (c *Controller) SetActiveRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.desiredRoom == roomID && (roomID == "" || c.active != nil) {
		return
	}
	c.desiredRoom = roomID

	c.teardownLocked()
	if roomID != "" && c.transport.State() == domain.Connected {
		c.establishLocked(roomID)
	}
}

// ActiveRoom returns the desired room, which bounds the lifetime of the
// subscription.
func (c *Controller) ActiveRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desiredRoom
}

// Subscribed reports whether a live subscription handle currently exists.
func (c *Controller) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// HandleConnectionState reacts to transport transitions. A subscription made
// before a disconnect is not valid after reconnection, so every transition
// into Connected recomputes the subscription for the desired room.
func (c *Controller) HandleConnectionState(state domain.ConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch state {
	case domain.Connected:
		// Drop the stale handle without signaling the server; the old
		// connection is gone.
		c.active = nil
		if c.desiredRoom != "" {
			c.establishLocked(c.desiredRoom)
		}
	case domain.Disconnected:
		c.active = nil
	}
}

// HandleFrame decodes one inbound live-channel frame and forwards it to the
// store tagged with its room. Malformed payloads are dropped silently, as
// are events whose room is not the active room at delivery time.
func (c *Controller) HandleFrame(payload []byte) {
	var resp httpdto.MessageResponse
	if err := json.Unmarshal(payload, &resp); err != nil || resp.ID == "" || resp.ChatID == "" {
		c.log.Debugf("dropping undecodable frame: %q", payload)
		return
	}

	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if active == nil || active.roomID != resp.ChatID {
		return
	}

	c.store.IngestRemote(resp.ChatID, rest.MessageFromResponse(resp))
}

// Close cancels the active subscription and forgets the desired room. Frames
// delivered after Close are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.desiredRoom = ""
	c.teardownLocked()
}

func (c *Controller) teardownLocked() {
	if c.active == nil {
		return
	}
	c.active.cancel()
	c.active = nil
}

func (c *Controller) establishLocked(roomID string) {
	if c.perRoom {
		if err := c.publishControl(ws.FrameSubscribe, roomID); err != nil {
			c.log.Warnf("subscribe to room %s failed: %v", roomID, err)
			return
		}
	}
	sub := &subscription{roomID: roomID}
	sub.cancel = func() {
		if c.perRoom {
			// Best effort; the server drops the registration anyway when
			// the connection goes.
			if err := c.publishControl(ws.FrameUnsubscribe, roomID); err != nil {
				c.log.Debugf("unsubscribe from room %s failed: %v", roomID, err)
			}
		}
	}
	c.active = sub
}

func (c *Controller) publishControl(frameType, roomID string) error {
	payload, err := json.Marshal(ws.ControlFrame{Type: frameType, ChatID: roomID})
	if err != nil {
		return err
	}
	return c.transport.Publish(payload)
}
