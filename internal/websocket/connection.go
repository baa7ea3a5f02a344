package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"careerforge/internal/logger"
	"careerforge/pkg/types"
)

// Client is the view of a live connection shared by the registry, router and hub
// ARCHITECTURAL DISCOVERY: Routing and fan-out only need identity plus a non-blocking send,
// so they never touch the underlying transport
type Client interface {
	ID() string
	Principal() types.Principal
	Send(payload []byte) error
}

// SendBufferSize is the outbound queue depth per connection
// FUNCTIONAL DISCOVERY: 100 buffer absorbs room bursts without blocking the fan-out path
const SendBufferSize = 100

const writeTimeout = 5 * time.Second

// Connection wraps an authenticated gorilla connection
// ARCHITECTURAL DISCOVERY: WebSocket writes must be serialized to prevent race conditions,
// so every frame goes through writeCh to a single writer goroutine
type Connection struct {
	id        string
	conn      *websocket.Conn
	principal types.Principal
	writeCh   chan []byte
	log       *logger.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// NewConnection creates a connection for a principal that has already been verified
func NewConnection(conn *websocket.Conn, principal types.Principal, log *logger.Logger) *Connection {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	c := &Connection{
		id:        id,
		conn:      conn,
		principal: principal,
		writeCh:   make(chan []byte, SendBufferSize),
		log:       log.With("connection_id", id, "user_id", principal.UserID),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go c.writeLoop()

	return c
}

// writeLoop is the only goroutine that writes data frames
// TECHNICAL DISCOVERY: writeCh is never closed; senders select on ctx.Done() instead,
// so a concurrent Send after Close cannot panic
func (c *Connection) writeLoop() {
	defer close(c.done)

	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("write failed", "error", err)
				c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) Principal() types.Principal {
	return c.principal
}

// Send queues a pre-encoded frame without blocking
// FUNCTIONAL DISCOVERY: A consumer that cannot keep up would stall every room it is in,
// so a full buffer drops the connection instead
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- payload:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.log.Warn("slow consumer dropped", "buffered", len(c.writeCh))
		c.Close()
		return ErrSlowConsumer
	}
}

// Close stops the writer and closes the socket; safe to call more than once
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// Done is closed once the writer goroutine has exited
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Context is cancelled when the connection closes
func (c *Connection) Context() context.Context {
	return c.ctx
}
