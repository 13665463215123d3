// Package node drives an engine at a fixed tick rate and hands the actions
// it publishes to the transport.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zeusync/netecs/internal/core/engine"
	"github.com/zeusync/netecs/internal/core/events/bus"
	"github.com/zeusync/netecs/internal/core/observability/log"
)

// Link carries the actions a process publishes to the rest of the session.
type Link interface {
	Publish(ctx context.Context, actions []bus.Action) error
}

// Status is a snapshot of the engine taken at the end of a tick.
type Status struct {
	Peer      string        `json:"peer"`
	Host      string        `json:"host"`
	Tick      uint64        `json:"tick"`
	Elapsed   time.Duration `json:"elapsed"`
	Peers     []string      `json:"peers"`
	Objects   int           `json:"objects"`
	LogLength int           `json:"logLength"`
	Digest    string        `json:"digest"`
	Bus       bus.Metrics   `json:"bus"`
}

// Node owns the engine goroutine. Only Status may be called concurrently
// with Run.
type Node struct {
	logger   log.Log
	eng      *engine.Engine
	link     Link
	interval time.Duration

	mu     sync.RWMutex
	status Status
}

// New creates a node ticking eng every interval. A nil link keeps the
// published actions local.
func New(eng *engine.Engine, link Link, interval time.Duration, logger log.Log) *Node {
	if logger == nil {
		logger = log.Nop()
	}
	return &Node{
		logger:   logger.With(log.String("component", "node")),
		eng:      eng,
		link:     link,
		interval: interval,
	}
}

func (n *Node) Engine() *engine.Engine { return n.eng }

// Run ticks until ctx is done. Ticks use a fixed delta so every peer
// integrates the same steps regardless of scheduling jitter.
func (n *Node) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	dt := n.interval.Seconds()

	n.logger.Info("node running", log.Duration("interval", n.interval))
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("node stopped", log.Uint64("tick", n.eng.TickNumber()))
			return nil
		case <-ticker.C:
			if err := n.Tick(ctx, dt); err != nil {
				return err
			}
		}
	}
}

// Tick steps the engine once, publishes its outgoing actions and refreshes
// the status snapshot. System errors are logged; only a failing link stops
// the node.
func (n *Node) Tick(ctx context.Context, dt float64) error {
	if err := n.eng.Step(dt); err != nil {
		n.logger.Warn("tick finished with errors",
			log.Uint64("tick", n.eng.TickNumber()),
			log.Error(err),
		)
	}

	if out := n.eng.Bus.TakeOutgoing(); len(out) > 0 && n.link != nil {
		if err := n.link.Publish(ctx, out); err != nil {
			return fmt.Errorf("publish %d actions: %w", len(out), err)
		}
	}
	n.eng.Bus.Compact()
	n.snapshot()
	return nil
}

func (n *Node) snapshot() {
	s := Status{
		Peer:      n.eng.PeerID(),
		Host:      n.eng.HostID(),
		Tick:      n.eng.TickNumber(),
		Elapsed:   n.eng.Elapsed(),
		Peers:     n.eng.Network.Peers(),
		Objects:   n.eng.Network.Len(),
		LogLength: len(n.eng.Bus.Log()),
		Digest:    fmt.Sprintf("%016x", n.eng.Network.Digest()),
		Bus:       n.eng.Bus.GetMetrics(),
	}
	n.mu.Lock()
	n.status = s
	n.mu.Unlock()
}

func (n *Node) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}
