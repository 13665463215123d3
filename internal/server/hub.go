// Package server is the host side of a session: it accepts peer
// connections, hands their actions to the host engine and relays actions
// between peers.
package server

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/network"
	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/protocol"
)

// Inbox receives the actions addressed to the host engine. *bus.Bus
// implements it; both methods are safe to call from connection goroutines.
// Submit takes actions the hub issues in the host's name; the host engine
// dispatches them and hands them back through Publish with its own actions.
type Inbox interface {
	Receive(actions ...bus.Action)
	Submit(actions ...bus.Action)
}

// Config holds hub settings
type Config struct {
	HostID string
	// Token is the shared session secret; empty disables the check.
	Token            string
	HandshakeTimeout time.Duration
	// RateLimit caps actions per peer per RateWindow; zero disables it.
	RateLimit  int
	RateWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		HostID:           "host",
		HandshakeTimeout: 10 * time.Second,
		RateLimit:        600,
		RateWindow:       time.Second,
	}
}

type session struct {
	info PeerInfo
	conn protocol.Connection
}

// Hub owns every peer session of the host. Peers only ever talk to the hub:
// actions for the host are put in the host inbox, actions for other peers
// are forwarded. Actions the host receives are never re-published by its
// engine, so the hub is also the one announcing joins and leaves.
type Hub struct {
	config Config
	inbox  Inbox
	logger log.Log

	middlewares []Middleware
	counter     *ActionCounter

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool
}

func NewHub(config Config, inbox Inbox, logger log.Log) (*Hub, error) {
	if config.HostID == "" {
		return nil, fmt.Errorf("%w: host id is required", ErrInvalidConfig)
	}
	if inbox == nil {
		return nil, fmt.Errorf("%w: inbox is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.With(log.String("component", "hub"))

	h := &Hub{
		config:   config,
		inbox:    inbox,
		logger:   logger,
		counter:  NewActionCounter(),
		sessions: make(map[string]*session),
	}
	h.Use(NewLogging(logger), TokenAuth{Token: config.Token}, h.counter)
	if config.RateLimit > 0 {
		h.Use(NewRateLimit(config.RateLimit, config.RateWindow, logger))
	}
	return h, nil
}

// Use adds middlewares. It must be called before Serve.
func (h *Hub) Use(ms ...Middleware) {
	h.middlewares = append(h.middlewares, ms...)
	sortMiddlewares(h.middlewares)
}

// Serve accepts connections from ln until ctx is done or the listener is
// closed. Every session runs in its own goroutine and ends with ctx.
func (h *Hub) Serve(ctx context.Context, ln protocol.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			conn, err := ln.Accept(gctx)
			if err != nil {
				if gctx.Err() != nil || errors.Is(err, protocol.ErrTransportClosed) {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			g.Go(func() error {
				h.handle(gctx, conn)
				return nil
			})
		}
	})
	return g.Wait()
}

// Sessions lists the connected peers ordered by connection time.
func (h *Hub) Sessions() []PeerInfo {
	h.mu.RLock()
	out := make([]PeerInfo, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s.info)
	}
	h.mu.RUnlock()
	slices.SortFunc(out, func(a, b PeerInfo) int { return a.ConnectedAt.Compare(b.ConnectedAt) })
	return out
}

// ActionCounts returns how many actions of each type peers have sent.
func (h *Hub) ActionCounts() map[string]uint64 { return h.counter.Counts() }

// Publish routes actions dispatched by the host engine to the peers they
// address. Delivery failures are logged; the session's read loop notices
// the broken connection and tears it down.
func (h *Hub) Publish(ctx context.Context, actions []bus.Action) error {
	batches := make(map[string][]bus.Action)
	h.mu.RLock()
	for _, a := range actions {
		h.collect(batches, a, "")
	}
	h.mu.RUnlock()
	h.deliver(ctx, batches)
	return nil
}

// Close disconnects every session and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		errs = append(errs, s.conn.Close())
	}
	return errors.Join(errs...)
}

func (h *Hub) handle(ctx context.Context, conn protocol.Connection) {
	defer conn.Close()

	s, err := h.handshake(ctx, conn)
	if err != nil {
		h.logger.Warn("handshake failed",
			log.String("remote_addr", conn.RemoteAddr().String()),
			log.Error(err),
		)
		return
	}

	reason := "closed"
	defer func() { h.leave(s, reason) }()

	for {
		env, err := conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				reason = "shutdown"
			} else if !errors.Is(err, protocol.ErrConnectionClosed) {
				reason = err.Error()
			}
			return
		}
		if env.Kind != protocol.KindActions {
			h.logger.Warn("unexpected envelope",
				log.String("peer", s.info.ID),
				log.String("kind", string(env.Kind)),
			)
			continue
		}
		h.route(ctx, s, env.Actions)
	}
}

func (h *Hub) handshake(ctx context.Context, conn protocol.Connection) (*session, error) {
	hctx, cancel := context.WithTimeout(ctx, h.config.HandshakeTimeout)
	defer cancel()

	hello, err := conn.Receive(hctx)
	if err != nil {
		return nil, err
	}
	if hello.Kind != protocol.KindHello {
		h.reject(ctx, conn, protocol.ErrorCodeProtocolViolation, ErrHandshake)
		return nil, ErrHandshake
	}

	s := &session{
		conn: conn,
		info: PeerInfo{
			ID:          uuid.NewString(),
			Name:        hello.Name,
			RemoteAddr:  conn.RemoteAddr().String(),
			Transport:   conn.Transport(),
			ConnectedAt: time.Now(),
			token:       hello.Token,
		},
	}
	for _, m := range h.middlewares {
		if err := m.OnConnect(ctx, s.info); err != nil {
			code := protocol.ErrorCodeProtocolViolation
			if errors.Is(err, ErrUnauthorized) {
				code = protocol.ErrorCodeAuthenticationFailed
			}
			h.reject(ctx, conn, code, err)
			return nil, fmt.Errorf("%s: %w", m.Name(), err)
		}
	}

	welcome := protocol.Envelope{Kind: protocol.KindWelcome, Peer: s.info.ID, Host: h.config.HostID}
	if err := conn.Send(ctx, welcome); err != nil {
		return nil, err
	}

	// registered only after the welcome so it is always the first envelope
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrServerClosed
	}
	h.sessions[s.info.ID] = s
	h.mu.Unlock()

	announce(h, network.CreatePeerAction, network.CreatePeer{PeerID: s.info.ID, Name: s.info.Name})
	return s, nil
}

func (h *Hub) reject(ctx context.Context, conn protocol.Connection, code protocol.ErrorCode, err error) {
	env := protocol.Envelope{Kind: protocol.KindError, Code: code, Error: err.Error()}
	if sendErr := conn.Send(ctx, env); sendErr != nil {
		h.logger.Debug("reject not delivered", log.Error(sendErr))
	}
}

func (h *Hub) leave(s *session, reason string) {
	h.mu.Lock()
	delete(h.sessions, s.info.ID)
	h.mu.Unlock()

	for _, m := range h.middlewares {
		m.OnDisconnect(context.Background(), s.info, reason)
	}
	announce(h, network.DestroyPeerAction, network.DestroyPeer{PeerID: s.info.ID})
}

// announce issues a host action on behalf of the hub. Peers get it when the
// host engine publishes it, after every host action dispatched before it.
func announce[P any](h *Hub, def bus.Definition[P], payload P) {
	a, err := def.New(payload, bus.From(h.config.HostID), bus.To(bus.ToAll), bus.Topics(bus.TopicWorld))
	if err != nil {
		h.logger.Error("build announcement", log.String("action", def.Type()), log.Error(err))
		return
	}
	a.ID = ulid.Make()
	h.inbox.Submit(a)
}

func (h *Hub) route(ctx context.Context, from *session, actions []bus.Action) {
	var local []bus.Action
	batches := make(map[string][]bus.Action)

	h.mu.RLock()
	for _, a := range actions {
		if a.From == "" {
			a.From = from.info.ID
		}
		if a.From != from.info.ID {
			h.logger.Warn("dropping action with spoofed sender",
				log.String("peer", from.info.ID),
				log.String("claimed", a.From),
				log.String("action", a.Type),
				log.Error(protocol.ErrSpoofedSender),
			)
			continue
		}
		if a.Type == "" {
			continue
		}
		if err := h.before(ctx, from.info, a); err != nil {
			continue
		}
		if a.To == "" || a.To == bus.ToAll || a.To == h.config.HostID {
			local = append(local, a)
		}
		h.collect(batches, a, from.info.ID)
	}
	h.mu.RUnlock()

	if len(local) > 0 {
		h.inbox.Receive(local...)
	}
	h.deliver(ctx, batches)
}

func (h *Hub) before(ctx context.Context, peer PeerInfo, a bus.Action) error {
	for _, m := range h.middlewares {
		if err := m.BeforeHandle(ctx, peer, a); err != nil {
			return err
		}
	}
	return nil
}

// collect groups a into per session batches. The sender is skipped and
// actions for the host stay local. Must be called with h.mu held.
func (h *Hub) collect(batches map[string][]bus.Action, a bus.Action, sender string) {
	switch a.To {
	case "", bus.ToAll:
		for id := range h.sessions {
			if id != sender {
				batches[id] = append(batches[id], a)
			}
		}
	case h.config.HostID:
	default:
		if _, ok := h.sessions[a.To]; ok {
			batches[a.To] = append(batches[a.To], a)
			return
		}
		h.logger.Debug("action for unknown peer",
			log.String("to", a.To),
			log.String("action", a.Type),
			log.Error(ErrUnknownPeer),
		)
	}
}

func (h *Hub) deliver(ctx context.Context, batches map[string][]bus.Action) {
	for id, actions := range batches {
		h.mu.RLock()
		s, ok := h.sessions[id]
		h.mu.RUnlock()
		if !ok {
			continue
		}
		if err := s.conn.Send(ctx, protocol.Actions(actions...)); err != nil {
			h.logger.Warn("deliver failed",
				log.String("peer", id),
				log.Int("actions", len(actions)),
				log.Error(err),
			)
		}
	}
}
