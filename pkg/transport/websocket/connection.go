package websocket

import (
	"context"
	"sync"
	"time"

	"boardcast/internal/logging"
	"boardcast/pkg/domain"

	"github.com/gorilla/websocket"
)

// ConnectionOptions represents websocket connection options
type ConnectionOptions struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendQueueSize  int
}

// DefaultConnectionOptions returns default connection options
func DefaultConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 512 * 1024, // 512KB
		SendQueueSize:  256,
	}
}

// Connection implements domain.Connection over a websocket. Outbound
// messages go through a bounded queue drained by a single write pump, so a
// send never blocks the caller; when the queue is full the message is
// dropped (the client's next full-board reload is the recovery path).
type Connection struct {
	id       string
	identity domain.Identity
	conn     *websocket.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *logging.Logger
	options  ConnectionOptions
	sendChan chan []byte
	handler  domain.MessageHandler
	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
}

// NewConnection creates a new connection wrapper
func NewConnection(id string, identity domain.Identity, conn *websocket.Conn, logger *logging.Logger, options ConnectionOptions) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		id:       id,
		identity: identity,
		conn:     conn,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.WithFields(map[string]any{"connection_id": id}),
		options:  options,
		sendChan: make(chan []byte, options.SendQueueSize),
	}
}

// ID implements domain.Connection
func (c *Connection) ID() string {
	return c.id
}

// Identity implements domain.Connection
func (c *Connection) Identity() domain.Identity {
	return c.identity
}

// Send implements domain.Connection
func (c *Connection) Send(ctx context.Context, message []byte) error {
	// The read lock is held across the channel send so Close cannot close
	// sendChan from under us. The send itself never blocks.
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return domain.ErrConnectionClosed
	}

	select {
	case c.sendChan <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return domain.ErrConnectionClosed
	default:
		return domain.ErrSendQueueFull
	}
}

// Receive sets the handler for incoming messages. Must be called before Start.
func (c *Connection) Receive(handler domain.MessageHandler) {
	c.handler = handler
}

// Close implements domain.Connection
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.logger.Debug("closing connection")

	c.cancel()
	close(c.sendChan)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug("error closing websocket", "error", err)
	}

	return nil
}

// Context implements domain.Connection
func (c *Connection) Context() context.Context {
	return c.ctx
}

// Start starts the read and write pumps
func (c *Connection) Start() {
	c.wg.Add(2)
	go c.readPump()
	go c.writePump()
}

// Wait blocks until both pumps have stopped
func (c *Connection) Wait() {
	c.wg.Wait()
}

func (c *Connection) readPump() {
	defer c.wg.Done()
	defer c.Close()

	c.conn.SetReadLimit(c.options.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.options.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.options.ReadTimeout))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			messageType, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
					c.logger.Warn("websocket read error", "error", err)
				}
				return
			}

			if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
				continue
			}

			if c.handler != nil {
				if err := c.handler(message); err != nil {
					c.logger.Warn("message handler error", "error", err)
				}
			}
		}
	}
}

func (c *Connection) writePump() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return

		case message, ok := <-c.sendChan:
			c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))

			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("websocket write error", "error", err)
				return
			}

			// Drain any queued messages
			n := len(c.sendChan)
			for i := 0; i < n; i++ {
				select {
				case msg := <-c.sendChan:
					if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						c.logger.Warn("websocket write error", "error", err)
						return
					}
				default:
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("websocket ping error", "error", err)
				return
			}
		}
	}
}
