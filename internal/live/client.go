package live

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/imageforge/internal/model"
)

// State names the client's connection lifecycle phase.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

const (
	defaultBaseDelay = time.Second
	defaultHeartbeat = 15 * time.Second

	// maxAttempts caps consecutive automatic reconnection attempts.
	// After the cap the client gives up until Reconnect is called.
	maxAttempts = 5
)

// Handler consumes one application-level live message.
type Handler func(model.LiveMessage)

// Options tune a Client. Zero values fall back to defaults.
type Options struct {
	BaseDelay time.Duration // first reconnect delay
	Heartbeat time.Duration // ping interval while connected
	Dialer    *websocket.Dialer
}

// Client is the dashboard side of the live subscription protocol: a
// duplex, reconnect-capable websocket channel. On an unclean closure it
// schedules reconnection with exponential backoff; a deliberate Close
// (or a server close with code 1000/1001) suppresses reconnection.
type Client struct {
	url       string
	dialer    *websocket.Dialer
	baseDelay time.Duration
	heartbeat time.Duration

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	token          string
	attempts       int
	gaveUp         bool
	suppress       bool
	reconnectTimer *time.Timer
	stopHeartbeat  chan struct{}
	handlers       map[string][]Handler
}

// NewClient creates a Client for the given websocket URL.
func NewClient(url string, opts Options) *Client {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}

	return &Client{
		url:       url,
		dialer:    opts.Dialer,
		baseDelay: opts.BaseDelay,
		heartbeat: opts.Heartbeat,
		state:     StateDisconnected,
		handlers:  make(map[string][]Handler),
	}
}

// OnMessage registers a handler for one message type. Pong messages are
// never forwarded to handlers. Registration is not safe once the client
// is connected.
func (c *Client) OnMessage(msgType string, h Handler) {
	c.handlers[msgType] = append(c.handlers[msgType], h)
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Token returns the reconnect token issued by the server, if any.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Connect dials the server and starts the read and heartbeat loops. A
// dial failure is returned to the caller; automatic reconnection only
// covers drops of an established channel.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.suppress = false
	c.gaveUp = false
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return err
	}

	c.attach(conn)
	return nil
}

// Close terminates the channel deliberately: both timers are cancelled
// together and no reconnection is scheduled.
func (c *Client) Close() error {
	c.mu.Lock()
	c.suppress = true
	c.cancelTimersLocked()
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

// Reconnect resets the attempt budget and dials again. It is the manual
// escape hatch once automatic reconnection has given up.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	c.attempts = 0
	c.gaveUp = false
	c.cancelTimersLocked()
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	return c.Connect(ctx)
}

// attach installs an established connection and starts its loops. If a
// reconnect token is held, it is presented before anything else.
func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	stop := make(chan struct{})
	c.stopHeartbeat = stop
	token := c.token
	c.mu.Unlock()

	if token != "" {
		if err := conn.WriteJSON(model.LiveMessage{Type: model.LiveReconnect, Token: token}); err != nil {
			zlog.Logger.Err(err).Msg("failed to present reconnect token")
		}
	}

	go c.readLoop(conn)
	go c.heartbeatLoop(conn, stop)
}

// readLoop dispatches incoming messages until the connection fails.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var msg model.LiveMessage
		if err := conn.ReadJSON(&msg); err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		switch msg.Type {
		case model.LivePong:
			// heartbeat reply, not an application message
			continue
		case model.LiveConnected:
			c.mu.Lock()
			c.token = msg.Token
			c.attempts = 0
			c.mu.Unlock()
		case model.LiveReconnected:
			// session resumed: reset the budget and drop any reconnect
			// attempt still scheduled
			c.mu.Lock()
			c.attempts = 0
			if c.reconnectTimer != nil {
				c.reconnectTimer.Stop()
				c.reconnectTimer = nil
			}
			c.mu.Unlock()
		}

		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg model.LiveMessage) {
	for _, h := range c.handlers[msg.Type] {
		h(msg)
	}
}

// heartbeatLoop sends a ping every heartbeat interval while connected.
func (c *Client) heartbeatLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(model.LiveMessage{Type: model.LivePing}); err != nil {
				return
			}
		}
	}
}

// handleDisconnect decides whether the closure warrants automatic
// reconnection. Close codes 1000 and 1001 are clean closures.
func (c *Client) handleDisconnect(conn *websocket.Conn, err error) {
	_ = conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != conn {
		// an intentional Close or Reconnect already took over
		return
	}

	c.stopHeartbeatLocked()
	c.conn = nil

	if c.suppress || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.state = StateDisconnected
		return
	}

	zlog.Logger.Err(err).Msg("live channel dropped")
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked books the next reconnection attempt, giving up
// permanently once the budget is exhausted.
func (c *Client) scheduleReconnectLocked() {
	c.attempts++
	if c.attempts > maxAttempts {
		c.gaveUp = true
		c.state = StateDisconnected
		zlog.Logger.Warn().Int("attempts", maxAttempts).Msg("reconnect budget exhausted")
		return
	}

	c.state = StateReconnecting
	delay := Backoff(c.baseDelay, c.attempts)
	c.reconnectTimer = time.AfterFunc(delay, c.redial)
}

// redial performs one automatic reconnection attempt.
func (c *Client) redial() {
	c.mu.Lock()
	if c.suppress || c.gaveUp {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(context.Background(), c.url, nil)
	if err != nil {
		zlog.Logger.Err(err).Msg("reconnect attempt failed")
		c.mu.Lock()
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}

	c.attach(conn)
}

// cancelTimersLocked stops the reconnect timer and the heartbeat
// together, as an intentional close must leak neither.
func (c *Client) cancelTimersLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.stopHeartbeatLocked()
}

func (c *Client) stopHeartbeatLocked() {
	if c.stopHeartbeat != nil {
		close(c.stopHeartbeat)
		c.stopHeartbeat = nil
	}
}

// Backoff returns the delay before the given reconnection attempt
// (1-based): baseDelay * 1.5^(attempt-1).
func Backoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(baseDelay) * math.Pow(1.5, float64(attempt-1)))
}
