package quic

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/netecs/internal/core/protocol"
	"github.com/zeusync/netecs/pkg/generic"
)

var _ protocol.Connection = (*Connection)(nil)

const frameHeaderSize = 4

var framePool = generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

// Connection implements protocol.Connection over one QUIC stream. On the
// accepting side the stream is opened by the peer's first write, so Send
// waits until the first Receive has accepted it.
type Connection struct {
	id     string
	conn   *quic.Conn
	config protocol.Config

	mu     sync.Mutex
	stream *quic.Stream
	ready  chan struct{}
	closed atomic.Bool

	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
	bytesSent        atomic.Uint64
	bytesReceived    atomic.Uint64

	writeMu sync.Mutex
}

func newConnection(conn *quic.Conn, stream *quic.Stream, config protocol.Config) *Connection {
	c := &Connection{
		id:     uuid.NewString(),
		conn:   conn,
		config: config,
		ready:  make(chan struct{}),
	}
	if stream != nil {
		c.stream = stream
		close(c.ready)
	}
	return c
}

func (c *Connection) ID() string                        { return c.id }
func (c *Connection) RemoteAddr() net.Addr              { return c.conn.RemoteAddr() }
func (c *Connection) Transport() protocol.TransportType { return protocol.TransportQUIC }

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

	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	frame := framePool.Get()
	defer framePool.Put(frame)
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	frame.Write(header[:])
	frame.Write(data)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.config.WriteTimeout > 0 {
		_ = c.stream.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if _, err = c.stream.Write(frame.Bytes()); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}

	c.messagesSent.Add(1)
	c.bytesSent.Add(uint64(frame.Len()))
	return nil
}

// Receive reads the next frame. Cancelling ctx aborts the read and leaves
// the connection unusable.
func (c *Connection) Receive(ctx context.Context) (protocol.Envelope, error) {
	if c.closed.Load() {
		return protocol.Envelope{}, protocol.ErrConnectionClosed
	}
	stream, err := c.acceptStream(ctx)
	if err != nil {
		return protocol.Envelope{}, err
	}

	if c.config.ReadTimeout > 0 {
		_ = stream.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = stream.SetReadDeadline(time.Now())
	})
	defer stop()

	var header [frameHeaderSize]byte
	if _, err = io.ReadFull(stream, header[:]); err != nil {
		return protocol.Envelope{}, c.readError(ctx, err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if c.config.MaxMessageSize > 0 && size > c.config.MaxMessageSize {
		return protocol.Envelope{}, errors.Wrapf(protocol.ErrMessageTooLarge, "frame size %d exceeds limit %d", size, c.config.MaxMessageSize)
	}
	data := make([]byte, size)
	if _, err = io.ReadFull(stream, data); err != nil {
		return protocol.Envelope{}, c.readError(ctx, err)
	}

	c.messagesReceived.Add(1)
	c.bytesReceived.Add(uint64(frameHeaderSize + len(data)))
	return protocol.Unmarshal(data)
}

func (c *Connection) acceptStream(ctx context.Context) (*quic.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return c.stream, nil
	}
	stream, err := c.conn.AcceptStream(ctx)
	if err != nil {
		return nil, c.readError(ctx, err)
	}
	c.stream = stream
	close(c.ready)
	return stream, nil
}

func (c *Connection) readError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var appErr *quic.ApplicationError
	if c.closed.Load() || errors.Is(err, io.EOF) || errors.As(err, &appErr) {
		return protocol.ErrConnectionClosed
	}
	return errors.Wrap(err, "failed to read frame")
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
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream != nil {
		_ = stream.Close()
	}
	return c.conn.CloseWithError(0, "connection closed")
}
