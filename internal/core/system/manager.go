// Package system orders and runs the per-tick systems of an engine.
package system

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/zeusync/netecs/internal/core/observability/log"
)

var (
	ErrSystemExists   = errors.New("system already registered")
	ErrSystemNotFound = errors.New("system not found")
	ErrInitialized    = errors.New("systems already initialized")
)

type entry struct {
	system  System
	order   int
	enabled bool
	metrics Metrics
}

// Manager orchestrates the systems of one engine: execution order, lifecycle
// and per-system metrics. Update runs every enabled system to completion, in
// phase order and then registration order. A failing system does not stop
// the tick; errors are joined and reported to OnSystemError callbacks.
type Manager struct {
	logger log.Log

	mu          sync.RWMutex
	entries     []*entry
	byName      map[string]*entry
	nextOrder   int
	initialized bool
	metrics     ManagerMetrics

	onError []func(name string, err error)
}

func NewManager(logger log.Log) *Manager {
	if logger == nil {
		logger = log.Nop()
	}
	return &Manager{
		logger: logger.With(log.String("component", "systems")),
		byName: make(map[string]*entry),
	}
}

// RegisterSystem adds s. Systems registered after InitializeAll are
// initialized by the caller.
func (m *Manager) RegisterSystem(s System) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[s.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrSystemExists, s.Name())
	}
	e := &entry{system: s, order: m.nextOrder, enabled: true}
	m.nextOrder++
	m.byName[s.Name()] = e
	m.entries = append(m.entries, e)
	slices.SortStableFunc(m.entries, func(a, b *entry) int {
		if a.system.Phase() != b.system.Phase() {
			return int(a.system.Phase()) - int(b.system.Phase())
		}
		return a.order - b.order
	})
	m.metrics.RegisteredSystems = uint32(len(m.entries))
	return nil
}

func (m *Manager) UnregisterSystem(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSystemNotFound, name)
	}
	delete(m.byName, name)
	m.entries = slices.DeleteFunc(m.entries, func(x *entry) bool { return x == e })
	m.metrics.RegisteredSystems = uint32(len(m.entries))
	return nil
}

func (m *Manager) GetSystem(name string) (System, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return e.system, true
}

func (m *Manager) HasSystem(name string) bool {
	_, ok := m.GetSystem(name)
	return ok
}

// GetExecutionOrder returns system names in the order Update runs them.
func (m *Manager) GetExecutionOrder() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		names = append(names, e.system.Name())
	}
	return names
}

func (m *Manager) EnableSystem(name string) error  { return m.setEnabled(name, true) }
func (m *Manager) DisableSystem(name string) error { return m.setEnabled(name, false) }

func (m *Manager) setEnabled(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSystemNotFound, name)
	}
	e.enabled = enabled
	return nil
}

// InitializeAll initializes systems in execution order. On failure the
// systems already initialized are shut down again.
func (m *Manager) InitializeAll(ctx context.Context) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return ErrInitialized
	}
	entries := slices.Clone(m.entries)
	m.mu.Unlock()

	for i, e := range entries {
		if err := e.system.Initialize(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = entries[j].system.Shutdown(ctx)
			}
			return fmt.Errorf("initialize %s: %w", e.system.Name(), err)
		}
	}

	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()
	return nil
}

// ShutdownAll shuts systems down in reverse execution order.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	m.mu.Lock()
	entries := slices.Clone(m.entries)
	m.initialized = false
	m.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		if err := entries[i].system.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", entries[i].system.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Update runs one tick.
func (m *Manager) Update(tick Tick) error {
	start := time.Now()
	m.mu.RLock()
	entries := slices.Clone(m.entries)
	callbacks := slices.Clone(m.onError)
	m.mu.RUnlock()

	var errs []error
	enabled := uint32(0)
	for _, e := range entries {
		if !e.enabled {
			continue
		}
		enabled++
		began := time.Now()
		err := e.system.Update(tick)
		took := time.Since(began)

		m.mu.Lock()
		e.metrics.ExecutionCount++
		e.metrics.TotalExecutionTime += took
		e.metrics.AverageExecutionTime = e.metrics.TotalExecutionTime / time.Duration(e.metrics.ExecutionCount)
		e.metrics.MaxExecutionTime = max(e.metrics.MaxExecutionTime, took)
		e.metrics.LastExecutionTime = began
		if err != nil {
			e.metrics.ErrorCount++
			e.metrics.LastError = err
		}
		m.mu.Unlock()

		if err != nil {
			name := e.system.Name()
			m.logger.Warn("system update failed",
				log.String("system", name),
				log.Uint64("tick", tick.Number),
				log.Error(err),
			)
			for _, cb := range callbacks {
				cb(name, err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	m.mu.Lock()
	m.metrics.Ticks++
	m.metrics.EnabledSystems = enabled
	m.metrics.TotalUpdateTime += time.Since(start)
	m.metrics.AverageUpdateTime = m.metrics.TotalUpdateTime / time.Duration(m.metrics.Ticks)
	m.metrics.LastUpdateTime = start
	m.mu.Unlock()

	return errors.Join(errs...)
}

func (m *Manager) GetMetrics() ManagerMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

func (m *Manager) GetSystemMetrics(name string) (Metrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byName[name]
	if !ok {
		return Metrics{}, false
	}
	return e.metrics, true
}

// OnSystemError registers a callback invoked for every failed system update.
func (m *Manager) OnSystemError(fn func(name string, err error)) {
	m.mu.Lock()
	m.onError = append(m.onError, fn)
	m.mu.Unlock()
}
