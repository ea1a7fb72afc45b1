// Package ws owns the live channel: a websocket connection to the chat
// backend with an explicit connectivity state machine.
package ws

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"minichat/internal/domain"
	minichat_errors "minichat/pkg/errors"
	"minichat/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 65536
	reconnectWait  = 3 * time.Second
)

// StateListener observes ConnectionState transitions. Listeners are invoked
// synchronously, in registration order, on every transition.
type StateListener func(domain.ConnectionState)

// MessageHandler receives every inbound frame from the live channel.
type MessageHandler func(payload []byte)

// Conn is the transport connection. It is the only writer of the
// ConnectionState it exposes; everything else reads the state through
// State() or a registered listener.
type Conn struct {
	rawURL string
	userID string
	log    *logger.Logger

	autoReconnect bool
	dialer        *websocket.Dialer

	mu        sync.RWMutex
	conn      *websocket.Conn
	state     domain.ConnectionState
	listeners []StateListener
	onMessage MessageHandler
	send      chan []byte
	stop      chan struct{}
	closed    bool
}

func NewConn(rawURL, userID string, log *logger.Logger, autoReconnect bool) *Conn {
	return &Conn{
		rawURL:        rawURL,
		userID:        userID,
		log:           log,
		autoReconnect: autoReconnect,
		dialer:        websocket.DefaultDialer,
		state:         domain.Disconnected,
	}
}

// OnStateChange registers a listener for connectivity transitions. Must be
// called before Connect.
func (c *Conn) OnStateChange(fn StateListener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// OnMessage registers the handler for inbound frames. Must be called before
// Connect. Frames arriving with no handler registered are dropped.
func (c *Conn) OnMessage(fn MessageHandler) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

// State returns the current connectivity state.
func (c *Conn) State() domain.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Connect dials the live channel, passing the user id as a connection
// parameter. A handshake failure leaves the connection Disconnected; when
// auto-reconnect is on, retries continue in the background until Close.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return minichat_errors.ErrAlreadyClosed
	}
	if c.state != domain.Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		if c.autoReconnect {
			go c.reconnectLoop()
		}
		return err
	}
	return nil
}

// Close tears the connection down for good. No listener or message handler
// is invoked after Close returns, beyond the final Disconnected transition.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	stop := c.stop
	c.conn = nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		_ = conn.Close()
	}
	c.setState(domain.Disconnected)
}

// Publish sends a payload over the live channel. It fails with
// ErrNotConnected unless the connection is Connected.
func (c *Conn) Publish(payload []byte) error {
	c.mu.RLock()
	state := c.state
	send := c.send
	stop := c.stop
	c.mu.RUnlock()

	if state != domain.Connected || send == nil {
		return minichat_errors.ErrNotConnected
	}
	select {
	case send <- payload:
		return nil
	case <-stop:
		return minichat_errors.ErrNotConnected
	}
}

func (c *Conn) dial(ctx context.Context) error {
	c.setState(domain.Connecting)

	u, err := url.Parse(c.rawURL)
	if err != nil {
		c.setState(domain.Disconnected)
		return err
	}
	q := u.Query()
	q.Set("userId", c.userID)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		c.log.Warnf("websocket dial failed: %v", err)
		c.setState(domain.Disconnected)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return minichat_errors.ErrAlreadyClosed
	}
	c.conn = conn
	c.send = make(chan []byte, 256)
	c.stop = make(chan struct{})
	send, stop := c.send, c.stop
	c.mu.Unlock()

	go c.writePump(conn, send, stop)
	go c.readPump(conn, stop)

	c.log.Infof("websocket connected: %s", c.rawURL)
	c.setState(domain.Connected)
	return nil
}

func (c *Conn) readPump(conn *websocket.Conn, stop chan struct{}) {
	defer c.dropConnection(conn, stop)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warnf("websocket read error: %v", err)
			}
			return
		}

		c.mu.RLock()
		handler := c.onMessage
		c.mu.RUnlock()
		if handler != nil {
			handler(payload)
		}
	}
}

func (c *Conn) writePump(conn *websocket.Conn, send chan []byte, stop chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case payload := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dropConnection handles an underlying close or error: it transitions to
// Disconnected and, when auto-reconnect is on, keeps redialing until Close.
func (c *Conn) dropConnection(conn *websocket.Conn, stop chan struct{}) {
	c.mu.Lock()
	if c.conn != conn {
		// A newer connection already replaced this one, or Close ran.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.send = nil
	c.stop = nil
	closed := c.closed
	c.mu.Unlock()

	select {
	case <-stop:
	default:
		close(stop)
	}
	_ = conn.Close()

	if closed {
		return
	}
	c.setState(domain.Disconnected)
	if c.autoReconnect {
		go c.reconnectLoop()
	}
}

func (c *Conn) reconnectLoop() {
	for {
		time.Sleep(reconnectWait)

		c.mu.RLock()
		closed := c.closed
		state := c.state
		c.mu.RUnlock()
		if closed || state != domain.Disconnected {
			return
		}
		if err := c.dial(context.Background()); err == nil {
			return
		}
	}
}

func (c *Conn) setState(next domain.ConnectionState) {
	c.mu.Lock()
	if c.state == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	listeners := make([]StateListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}
