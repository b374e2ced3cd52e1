package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"boardcast/internal/logging"
	"boardcast/pkg/domain"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"
)

// State is the connection state of the client
type State int32

// Client connection states
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// String implements fmt.Stringer
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// EventHandler handles one inbound push event's payload
type EventHandler func(data json.RawMessage)

// Options represents client options
type Options struct {
	Logger *logging.Logger

	// Token is the bearer credential presented during the handshake
	Token string

	// Dialer establishes transport connections; defaults to gorilla/websocket
	Dialer Dialer

	// BaseReconnectWait is the first reconnect delay; doubles per attempt
	BaseReconnectWait time.Duration

	// MaxReconnectWait caps the reconnect delay
	MaxReconnectWait time.Duration

	// InvokeTimeout bounds the transport write of a single invoke
	InvokeTimeout time.Duration

	// HandshakeTimeout bounds the websocket dial
	HandshakeTimeout time.Duration
}

// DefaultOptions returns default client options
func DefaultOptions() Options {
	return Options{
		BaseReconnectWait: time.Second,
		MaxReconnectWait:  16 * time.Second,
		InvokeTimeout:     30 * time.Second,
		HandshakeTimeout:  10 * time.Second,
	}
}

// Client owns one logical connection to the hub. It reconnects on
// unexpected transport drops with exponential backoff and re-joins the
// last-known board once the transport is back, so the consumer only ever
// calls Connect once per board.
type Client struct {
	url     string
	options Options
	logger  *logging.Logger
	dialer  Dialer

	mu       sync.Mutex
	state    State
	conn     Conn
	boardID  string
	lastErr  string
	closing  bool
	sessCtx  context.Context
	sessStop context.CancelFunc

	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   map[domain.MessageType]EventHandler

	presenceMu sync.RWMutex
	presence   []domain.PresenceEntry
	typing     []domain.TypingEvent
}

// New creates a new hub client for the given websocket URL
func New(url string, options Options) *Client {
	if options.Logger == nil {
		options.Logger = logging.New(logging.Config{Level: "info", Format: "text"})
	}
	if options.BaseReconnectWait <= 0 {
		options.BaseReconnectWait = time.Second
	}
	if options.MaxReconnectWait <= 0 {
		options.MaxReconnectWait = 16 * time.Second
	}
	if options.InvokeTimeout <= 0 {
		options.InvokeTimeout = 30 * time.Second
	}
	dialer := options.Dialer
	if dialer == nil {
		dialer = gorillaDialer{handshakeTimeout: options.HandshakeTimeout}
	}

	return &Client{
		url:      url,
		options:  options,
		logger:   options.Logger,
		dialer:   dialer,
		handlers: make(map[domain.MessageType]EventHandler),
	}
}

// On registers the handler for an event type. At most one handler per type;
// registering again replaces the previous one. Handlers run on the read
// loop goroutine, in the order events arrive.
func (c *Client) On(eventType domain.MessageType, handler EventHandler) {
	c.handlersMu.Lock()
	c.handlers[eventType] = handler
	c.handlersMu.Unlock()
}

// Connect establishes the transport connection if needed and joins the
// board. Connecting to the board the client is already on is a no-op;
// connecting to a different board leaves the old one first.
func (c *Client) Connect(ctx context.Context, boardID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateConnected {
		if c.boardID == boardID {
			return nil
		}
		if c.boardID != "" {
			// Best effort; the server cleans up on disconnect anyway.
			if err := c.invoke(domain.MessageTypeLeaveBoard, domain.LeaveBoardRequest{BoardID: c.boardID}); err != nil {
				c.logger.Warn("failed to leave previous board", "board_id", c.boardID, "error", err)
			}
		}
		if err := c.invoke(domain.MessageTypeJoinBoard, domain.JoinBoardRequest{BoardID: boardID}); err != nil {
			return err
		}
		c.boardID = boardID
		return nil
	}

	if c.state != StateDisconnected {
		return domain.NewDomainError(domain.ErrCodeConnection, "connection attempt already in progress", nil)
	}

	c.state = StateConnecting
	c.closing = false
	c.lastErr = ""
	c.sessCtx, c.sessStop = context.WithCancel(context.Background())

	conn, err := c.dial(ctx)
	if err != nil {
		c.state = StateDisconnected
		c.lastErr = err.Error()
		c.sessStop()
		return domain.NewDomainError(domain.ErrCodeConnection, "failed to connect to hub", err)
	}

	c.conn = conn
	c.state = StateConnected
	c.boardID = boardID

	if err := c.invoke(domain.MessageTypeJoinBoard, domain.JoinBoardRequest{BoardID: boardID}); err != nil {
		conn.Close()
		c.conn = nil
		c.state = StateDisconnected
		c.lastErr = err.Error()
		c.sessStop()
		return domain.NewDomainError(domain.ErrCodeConnection, "failed to join board", err)
	}

	go c.readLoop(conn)

	c.logger.Info("connected to hub", "board_id", boardID)
	return nil
}

// Disconnect leaves the current board and tears the transport down. Local
// state (connected flag, presence, typing) is reset regardless of whether
// the teardown itself succeeds.
func (c *Client) Disconnect() {
	c.mu.Lock()

	c.closing = true
	if c.sessStop != nil {
		c.sessStop()
	}

	if c.state == StateConnected && c.boardID != "" {
		if err := c.invoke(domain.MessageTypeLeaveBoard, domain.LeaveBoardRequest{BoardID: c.boardID}); err != nil {
			c.logger.Debug("failed to leave board during disconnect", "error", err)
		}
	}

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	c.state = StateDisconnected
	c.boardID = ""
	c.mu.Unlock()

	c.resetLocalState()
	c.logger.Info("disconnected from hub")
}

// SendTyping signals that the user started typing in the current board
func (c *Client) SendTyping(typingContext string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected || c.boardID == "" {
		return domain.ErrNotConnected
	}
	return c.invoke(domain.MessageTypeSendTyping, domain.TypingRequest{
		BoardID: c.boardID,
		Context: typingContext,
	})
}

// StopTyping signals that the user stopped typing in the current board
func (c *Client) StopTyping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected || c.boardID == "" {
		return domain.ErrNotConnected
	}
	return c.invoke(domain.MessageTypeStopTyping, domain.StopTypingRequest{BoardID: c.boardID})
}

// Ping asks the hub for a Pong push
func (c *Client) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected {
		return domain.ErrNotConnected
	}
	return c.invoke(domain.MessageTypePing, struct{}{})
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the client is currently connected
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Board returns the board the client is (or will be, post-reconnect) joined to
func (c *Client) Board() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boardID
}

// ConnectionError returns the message of the last connection failure
func (c *Client) ConnectionError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// OnlineUsers returns the last presence list received from the hub
func (c *Client) OnlineUsers() []domain.PresenceEntry {
	c.presenceMu.RLock()
	defer c.presenceMu.RUnlock()
	out := make([]domain.PresenceEntry, len(c.presence))
	copy(out, c.presence)
	return out
}

// TypingUsers returns the users currently marked as typing
func (c *Client) TypingUsers() []domain.TypingEvent {
	c.presenceMu.RLock()
	defer c.presenceMu.RUnlock()
	out := make([]domain.TypingEvent, len(c.typing))
	copy(out, c.typing)
	return out
}

// dial opens the transport with the bearer credential attached
func (c *Client) dial(ctx context.Context) (Conn, error) {
	header := http.Header{}
	if c.options.Token != "" {
		header.Set("Authorization", "Bearer "+c.options.Token)
	}
	return c.dialer.Dial(ctx, c.url, header)
}

// invoke writes one envelope to the transport. Callers hold c.mu.
func (c *Client) invoke(messageType domain.MessageType, payload any) error {
	if c.conn == nil {
		return domain.ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(domain.Message{
		ID:        xid.New().String(),
		Type:      messageType,
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.options.InvokeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

// readLoop reads pushes until the transport drops, dispatching each one
// synchronously so handlers observe events in arrival order.
func (c *Client) readLoop(conn Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.onTransportDrop(conn, err)
			return
		}

		var msg domain.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("failed to unmarshal push", "error", err)
			continue
		}

		c.dispatch(&msg)
	}
}

// dispatch updates the local presence/typing mirrors and invokes the
// registered handler, if any.
func (c *Client) dispatch(msg *domain.Message) {
	switch msg.Type {
	case domain.MessageTypePresenceUpdated:
		var entries []domain.PresenceEntry
		if err := json.Unmarshal(msg.Data, &entries); err == nil {
			c.presenceMu.Lock()
			c.presence = entries
			c.presenceMu.Unlock()
		}

	case domain.MessageTypeUserTyping:
		var ev domain.TypingEvent
		if err := json.Unmarshal(msg.Data, &ev); err == nil {
			c.presenceMu.Lock()
			c.typing = upsertTyping(c.typing, ev)
			c.presenceMu.Unlock()
		}

	case domain.MessageTypeUserStoppedTyping:
		var ev domain.StoppedTypingEvent
		if err := json.Unmarshal(msg.Data, &ev); err == nil {
			c.presenceMu.Lock()
			c.typing = removeTyping(c.typing, ev.UserID)
			c.presenceMu.Unlock()
		}
	}

	c.handlersMu.RLock()
	handler := c.handlers[msg.Type]
	c.handlersMu.RUnlock()

	if handler != nil {
		handler(msg.Data)
	}
}

// onTransportDrop decides between a clean shutdown and a reconnect cycle
func (c *Client) onTransportDrop(conn Conn, err error) {
	c.mu.Lock()

	if c.conn != conn {
		// A newer connection already replaced this one.
		c.mu.Unlock()
		return
	}
	c.conn = nil

	if c.closing {
		c.state = StateDisconnected
		c.mu.Unlock()
		c.resetLocalState()
		return
	}

	c.logger.Warn("connection lost, reconnecting", "error", err)
	c.state = StateReconnecting
	sessCtx := c.sessCtx
	c.mu.Unlock()

	c.resetLocalState()
	go c.reconnectLoop(sessCtx)
}

// reconnectLoop retries the transport with exponential backoff
// (1s, 2s, 4s, 8s, then 16s flat) until it succeeds or the session is
// cancelled by Disconnect. After a successful dial it re-joins the
// last-known board, since server-side membership died with the transport.
func (c *Client) reconnectLoop(sessCtx context.Context) {
	for attempt := 0; ; attempt++ {
		wait := c.backoff(attempt)

		select {
		case <-sessCtx.Done():
			c.mu.Lock()
			c.state = StateDisconnected
			c.mu.Unlock()
			return
		case <-time.After(wait):
		}

		conn, err := c.dial(sessCtx)
		if err != nil {
			c.logger.Warn("reconnect attempt failed",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		c.mu.Lock()
		if c.closing {
			c.mu.Unlock()
			conn.Close()
			return
		}

		c.conn = conn
		c.state = StateConnected
		boardID := c.boardID

		if boardID != "" {
			if err := c.invoke(domain.MessageTypeJoinBoard, domain.JoinBoardRequest{BoardID: boardID}); err != nil {
				c.logger.Warn("failed to re-join board after reconnect", "error", err)
				c.conn = nil
				c.state = StateReconnecting
				c.mu.Unlock()
				conn.Close()
				continue
			}
		}
		c.mu.Unlock()

		go c.readLoop(conn)

		c.logger.Info("reconnected to hub", "board_id", boardID, "attempts", attempt+1)
		return
	}
}

// backoff returns min(base × 2^attempt, max)
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.options.BaseReconnectWait
	for i := 0; i < attempt; i++ {
		wait *= 2
		if wait >= c.options.MaxReconnectWait {
			return c.options.MaxReconnectWait
		}
	}
	if wait > c.options.MaxReconnectWait {
		return c.options.MaxReconnectWait
	}
	return wait
}

func (c *Client) resetLocalState() {
	c.presenceMu.Lock()
	c.presence = nil
	c.typing = nil
	c.presenceMu.Unlock()
}

func upsertTyping(list []domain.TypingEvent, ev domain.TypingEvent) []domain.TypingEvent {
	for i, t := range list {
		if t.UserID == ev.UserID {
			list[i] = ev
			return list
		}
	}
	return append(list, ev)
}

func removeTyping(list []domain.TypingEvent, userID string) []domain.TypingEvent {
	out := list[:0]
	for _, t := range list {
		if t.UserID != userID {
			out = append(out, t)
		}
	}
	return out
}
