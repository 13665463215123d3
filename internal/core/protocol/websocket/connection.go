package websocket

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/netecs/internal/core/protocol"
)

var _ protocol.Connection = (*Connection)(nil)

// Connection carries envelopes as websocket text messages
type Connection struct {
	id     string
	conn   *websocket.Conn
	config protocol.Config
	closed atomic.Bool
	done   chan struct{}

	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
	bytesSent        atomic.Uint64
	bytesReceived    atomic.Uint64

	// Write mutex to ensure thread-safe writes
	writeMu sync.Mutex
}

// NewConnection wraps an established websocket and starts its pinger when
// config.KeepAlive is set.
func NewConnection(conn *websocket.Conn, config protocol.Config) *Connection {
	c := &Connection{
		id:     uuid.NewString(),
		conn:   conn,
		config: config,
		done:   make(chan struct{}),
	}
	if config.MaxMessageSize > 0 {
		conn.SetReadLimit(int64(config.MaxMessageSize))
	}
	if config.KeepAlive > 0 {
		go c.keepAlive(config.KeepAlive)
	}
	return c
}

func (c *Connection) ID() string                        { return c.id }
func (c *Connection) RemoteAddr() net.Addr              { return c.conn.RemoteAddr() }
func (c *Connection) Transport() protocol.TransportType { return protocol.TransportWebSocket }

// Send writes env as one text message
func (c *Connection) Send(ctx context.Context, env protocol.Envelope) error {
	if c.closed.Load() {
		return protocol.ErrConnectionClosed
	}
	data, err := protocol.Marshal(env)
	if err != nil {
		return err
	}
	if c.config.MaxMessageSize > 0 && uint32(len(data)) > c.config.MaxMessageSize {
		return errors.Wrapf(protocol.ErrMessageTooLarge, "message size %d exceeds limit %d", len(data), c.config.MaxMessageSize)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(c.deadline(ctx, c.config.WriteTimeout))
	if err = c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}

	c.messagesSent.Add(1)
	c.bytesSent.Add(uint64(len(data)))
	return nil
}

// Receive blocks until the next envelope arrives or the connection fails.
// Cancelling ctx aborts the read and leaves the connection unusable.
func (c *Connection) Receive(ctx context.Context) (protocol.Envelope, error) {
	if c.closed.Load() {
		return protocol.Envelope{}, protocol.ErrConnectionClosed
	}
	if c.config.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return protocol.Envelope{}, ctx.Err()
		}
		if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return protocol.Envelope{}, protocol.ErrConnectionClosed
		}
		return protocol.Envelope{}, errors.Wrap(err, "failed to read message")
	}
	if messageType != websocket.TextMessage {
		return protocol.Envelope{}, errors.Wrap(protocol.ErrInvalidMessage, "expected text message")
	}

	c.messagesReceived.Add(1)
	c.bytesReceived.Add(uint64(len(data)))
	return protocol.Unmarshal(data)
}

func (c *Connection) Metrics() protocol.Metrics {
	return protocol.Metrics{
		MessagesSent:     c.messagesSent.Load(),
		MessagesReceived: c.messagesReceived.Load(),
		BytesSent:        c.bytesSent.Load(),
		BytesReceived:    c.bytesReceived.Load(),
	}
}

func (c *Connection) Close() error {
	return c.CloseWithReason("connection closed")
}

// CloseWithReason closes the connection with a specific reason
func (c *Connection) CloseWithReason(reason string) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	c.writeMu.Lock()
	closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	return c.conn.Close()
}

func (c *Connection) keepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(interval))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// deadline picks the earlier of the context deadline and now+timeout. The
// zero time means no deadline.
func (c *Connection) deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if cd, ok := ctx.Deadline(); ok && (d.IsZero() || cd.Before(d)) {
		d = cd
	}
	return d
}
