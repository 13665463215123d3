package server

import (
	"context"
	"crypto/subtle"
	"slices"
	"sync"
	"time"

	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/protocol"
)

// PeerInfo describes a connected session.
type PeerInfo struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name,omitempty"`
	RemoteAddr  string                 `json:"remoteAddr"`
	Transport   protocol.TransportType `json:"transport"`
	ConnectedAt time.Time              `json:"connectedAt"`

	token string
}

// Middleware observes sessions and the actions they send. An error from
// OnConnect rejects the session; an error from BeforeHandle drops the action.
type Middleware interface {
	Name() string
	Priority() uint16

	OnConnect(ctx context.Context, peer PeerInfo) error
	BeforeHandle(ctx context.Context, peer PeerInfo, action bus.Action) error
	OnDisconnect(ctx context.Context, peer PeerInfo, reason string)
}

// sortMiddlewares orders by descending priority.
func sortMiddlewares(ms []Middleware) {
	slices.SortStableFunc(ms, func(a, b Middleware) int {
		return int(b.Priority()) - int(a.Priority())
	})
}

// TokenAuth rejects sessions whose hello does not carry the shared token.
// An empty token accepts everyone.
type TokenAuth struct {
	Token string
}

func (m TokenAuth) Name() string     { return "auth" }
func (m TokenAuth) Priority() uint16 { return 900 }

func (m TokenAuth) OnConnect(_ context.Context, peer PeerInfo) error {
	if m.Token == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(peer.token), []byte(m.Token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

func (m TokenAuth) BeforeHandle(context.Context, PeerInfo, bus.Action) error { return nil }
func (m TokenAuth) OnDisconnect(context.Context, PeerInfo, string)           {}

// RateLimit drops actions from a peer beyond Limit per Window.
type RateLimit struct {
	logger log.Log
	limit  int
	window time.Duration

	clients sync.Map // peer id -> *clientRate
}

type clientRate struct {
	mu     sync.Mutex
	count  int
	window time.Time
}

func NewRateLimit(limit int, window time.Duration, logger log.Log) *RateLimit {
	if logger == nil {
		logger = log.Nop()
	}
	return &RateLimit{logger: logger, limit: limit, window: window}
}

func (m *RateLimit) Name() string     { return "rate_limit" }
func (m *RateLimit) Priority() uint16 { return 800 }

func (m *RateLimit) OnConnect(_ context.Context, peer PeerInfo) error {
	m.clients.Store(peer.ID, &clientRate{window: time.Now()})
	return nil
}

func (m *RateLimit) BeforeHandle(_ context.Context, peer PeerInfo, action bus.Action) error {
	v, ok := m.clients.Load(peer.ID)
	if !ok {
		v, _ = m.clients.LoadOrStore(peer.ID, &clientRate{window: time.Now()})
	}
	rate := v.(*clientRate)

	now := time.Now()
	rate.mu.Lock()
	defer rate.mu.Unlock()
	if now.Sub(rate.window) > m.window {
		rate.count = 0
		rate.window = now
	}
	if rate.count >= m.limit {
		m.logger.Warn("rate limit exceeded",
			log.String("peer", peer.ID),
			log.String("action", action.Type),
			log.Int("limit", m.limit),
		)
		return ErrRateLimited
	}
	rate.count++
	return nil
}

func (m *RateLimit) OnDisconnect(_ context.Context, peer PeerInfo, _ string) {
	m.clients.Delete(peer.ID)
}

// Logging logs session lifecycle and, at debug level, every action.
type Logging struct {
	logger log.Log
}

func NewLogging(logger log.Log) *Logging {
	if logger == nil {
		logger = log.Nop()
	}
	return &Logging{logger: logger}
}

func (m *Logging) Name() string     { return "logging" }
func (m *Logging) Priority() uint16 { return 1000 }

func (m *Logging) OnConnect(_ context.Context, peer PeerInfo) error {
	m.logger.Info("peer connected",
		log.String("peer", peer.ID),
		log.String("name", peer.Name),
		log.String("remote_addr", peer.RemoteAddr),
		log.String("transport", string(peer.Transport)),
	)
	return nil
}

func (m *Logging) BeforeHandle(_ context.Context, peer PeerInfo, action bus.Action) error {
	m.logger.Debug("action received",
		log.String("peer", peer.ID),
		log.String("action", action.Type),
		log.String("to", action.To),
	)
	return nil
}

func (m *Logging) OnDisconnect(_ context.Context, peer PeerInfo, reason string) {
	m.logger.Info("peer disconnected",
		log.String("peer", peer.ID),
		log.String("reason", reason),
		log.Duration("duration", time.Since(peer.ConnectedAt)),
	)
}

// ActionCounter counts relayed actions per type for the status endpoint.
type ActionCounter struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func NewActionCounter() *ActionCounter {
	return &ActionCounter{counts: make(map[string]uint64)}
}

func (m *ActionCounter) Name() string     { return "metrics" }
func (m *ActionCounter) Priority() uint16 { return 100 }

func (m *ActionCounter) OnConnect(context.Context, PeerInfo) error { return nil }

func (m *ActionCounter) BeforeHandle(_ context.Context, _ PeerInfo, action bus.Action) error {
	m.mu.Lock()
	m.counts[action.Type]++
	m.mu.Unlock()
	return nil
}

func (m *ActionCounter) OnDisconnect(context.Context, PeerInfo, string) {}

// Counts returns a copy of the per type counters.
func (m *ActionCounter) Counts() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}
