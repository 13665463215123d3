// Package client connects a peer engine to a host: it performs the hello
// handshake, feeds received actions into the engine and publishes the
// engine's outgoing actions.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/protocol"
	"github.com/zeusync/netecs/internal/core/protocol/quic"
	"github.com/zeusync/netecs/internal/core/protocol/websocket"
)

// Inbox receives the actions the host relays to this peer. *bus.Bus
// implements it.
type Inbox interface {
	Receive(actions ...bus.Action)
}

// Config holds configuration for the client
type Config struct {
	// URL is a ws:// URL for websocket or host:port for QUIC.
	URL       string
	Transport protocol.TransportType
	Token     string
	Name      string

	ConnectTimeout time.Duration
	Protocol       protocol.Config
	// TLS is used by the QUIC transport.
	TLS *tls.Config
}

func DefaultConfig() Config {
	return Config{
		URL:            "ws://127.0.0.1:7400/ws",
		Transport:      protocol.TransportWebSocket,
		ConnectTimeout: 10 * time.Second,
		Protocol:       protocol.DefaultConfig(),
	}
}

// EventHandler defines a function type for handling client events
type EventHandler func(event Event)

// EventType represents different types of client events
type EventType string

const (
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"
)

// Event represents a client event
type Event struct {
	Type      EventType
	Timestamp time.Time
	Peer      string
	Host      string
	Error     error
}

// Client is one peer's session with the host.
type Client struct {
	config Config
	logger log.Log
	dialer protocol.Dialer

	conn   protocol.Connection
	peerID string
	hostID string

	eventHandlers map[EventType][]EventHandler
	handlerMutex  sync.RWMutex

	connected atomic.Bool
	closed    atomic.Bool
}

func New(config Config, logger log.Log) (*Client, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = log.Nop()
	}
	c := &Client{
		config:        config,
		logger:        logger.With(log.String("component", "client")),
		eventHandlers: make(map[EventType][]EventHandler),
	}
	switch config.Transport {
	case protocol.TransportWebSocket, "":
		c.dialer = websocket.NewDialer(config.Protocol)
	case protocol.TransportQUIC:
		c.dialer = quic.NewDialer(config.TLS, config.Protocol)
	default:
		return nil, fmt.Errorf("%w: %s", protocol.ErrTransportNotSupported, config.Transport)
	}
	return c, nil
}

// Connect dials the host and completes the handshake. The assigned peer id
// and the host id are available afterwards.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if c.connected.Load() {
		return ErrAlreadyConnected
	}

	c.logger.Info("connecting", log.String("url", c.config.URL), log.String("transport", string(c.config.Transport)))
	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	conn, err := c.dialer.Dial(ctx, c.config.URL)
	if err != nil {
		c.emitEvent(Event{Type: EventTypeError, Error: err})
		return err
	}

	hello := protocol.Envelope{Kind: protocol.KindHello, Token: c.config.Token, Name: c.config.Name}
	if err := conn.Send(ctx, hello); err != nil {
		_ = conn.Close()
		return err
	}
	reply, err := conn.Receive(ctx)
	if err != nil {
		_ = conn.Close()
		return err
	}
	switch reply.Kind {
	case protocol.KindWelcome:
	case protocol.KindError:
		_ = conn.Close()
		err := fmt.Errorf("%w: %s", ErrRejected, reply.Error)
		if reply.Code == protocol.ErrorCodeAuthenticationFailed {
			err = fmt.Errorf("%w: %w", err, protocol.ErrAuthenticationFailed)
		}
		c.emitEvent(Event{Type: EventTypeError, Error: err})
		return err
	default:
		_ = conn.Close()
		return fmt.Errorf("%w: %s", ErrUnexpectedReply, reply.Kind)
	}

	c.conn = conn
	c.peerID = reply.Peer
	c.hostID = reply.Host
	c.connected.Store(true)

	c.logger.Info("connected", log.String("peer", c.peerID), log.String("host", c.hostID))
	c.emitEvent(Event{Type: EventTypeConnected, Peer: c.peerID, Host: c.hostID})
	return nil
}

// Run feeds received actions into inbox until ctx is done or the host goes
// away. A closed connection ends Run without error.
func (c *Client) Run(ctx context.Context, inbox Inbox) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	defer c.disconnected()

	for {
		env, err := c.conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, protocol.ErrConnectionClosed) {
				return nil
			}
			c.emitEvent(Event{Type: EventTypeError, Error: err})
			return err
		}
		switch env.Kind {
		case protocol.KindActions:
			if len(env.Actions) > 0 {
				inbox.Receive(env.Actions...)
			}
		case protocol.KindError:
			err := fmt.Errorf("%w: %s", ErrRejected, env.Error)
			c.emitEvent(Event{Type: EventTypeError, Error: err})
			return err
		default:
			c.logger.Debug("ignoring envelope", log.String("kind", string(env.Kind)))
		}
	}
}

// Publish sends actions to the host. It satisfies the node link.
func (c *Client) Publish(ctx context.Context, actions []bus.Action) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	if len(actions) == 0 {
		return nil
	}
	return c.conn.Send(ctx, protocol.Actions(actions...))
}

func (c *Client) PeerID() string { return c.peerID }
func (c *Client) HostID() string { return c.hostID }

func (c *Client) IsConnected() bool { return c.connected.Load() }

// Metrics returns the connection counters, zero before Connect.
func (c *Client) Metrics() protocol.Metrics {
	if c.conn == nil {
		return protocol.Metrics{}
	}
	return c.conn.Metrics()
}

// OnEvent registers an event handler
func (c *Client) OnEvent(eventType EventType, handler EventHandler) {
	c.handlerMutex.Lock()
	c.eventHandlers[eventType] = append(c.eventHandlers[eventType], handler)
	c.handlerMutex.Unlock()
}

// Close closes the connection and releases the client.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.disconnected()
	return err
}

func (c *Client) disconnected() {
	if c.connected.CompareAndSwap(true, false) {
		c.logger.Info("disconnected", log.String("peer", c.peerID))
		c.emitEvent(Event{Type: EventTypeDisconnected, Peer: c.peerID, Host: c.hostID})
	}
}

// emitEvent calls the registered handlers in registration order.
func (c *Client) emitEvent(event Event) {
	event.Timestamp = time.Now()
	c.handlerMutex.RLock()
	handlers := c.eventHandlers[event.Type]
	c.handlerMutex.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
