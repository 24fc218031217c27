// Package netmon provides a probe-based network monitor. It dials a
// well-known endpoint on an interval and reports connectivity
// transitions to subscribers.
package netmon

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
	"github.com/baisethomas/tabletnotes-sync/internal/logger"
)

// Ensure Monitor implements the interface.
var _ driven.NetworkMonitor = (*Monitor)(nil)

// Default configuration values.
const (
	DefaultProbeAddr     = "1.1.1.1:443"
	DefaultProbeInterval = 15 * time.Second
	DefaultProbeTimeout  = 3 * time.Second
)

// Config holds configuration for the network monitor.
type Config struct {
	// ProbeAddr is the host:port dialled to test connectivity.
	ProbeAddr string

	// ProbeInterval is the time between probes.
	ProbeInterval time.Duration

	// ProbeTimeout bounds a single probe attempt.
	ProbeTimeout time.Duration

	// Metered marks the path as expensive. Desktop hosts cannot
	// detect metering, so this comes from configuration (e.g. when
	// tethered to a phone).
	Metered bool
}

// dialFunc matches net.Dialer.DialContext, swappable in tests.
type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Monitor probes connectivity on an interval and publishes state
// transitions. Identical consecutive states are de-duplicated.
type Monitor struct {
	cfg  Config
	dial dialFunc

	mu      sync.Mutex
	current domain.NetworkState
	subs    []chan domain.NetworkState
	stopped bool
}

// New creates a network monitor. The initial state is disconnected
// until the first probe completes.
func New(cfg Config) *Monitor {
	if cfg.ProbeAddr == "" {
		cfg.ProbeAddr = DefaultProbeAddr
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}

	d := &net.Dialer{}
	return &Monitor{
		cfg:     cfg,
		dial:    d.DialContext,
		current: domain.NetworkDisconnected,
	}
}

// Current returns the last observed state.
func (m *Monitor) Current() domain.NetworkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe returns a channel receiving state transitions. The channel
// is closed when the monitor stops.
func (m *Monitor) Subscribe() <-chan domain.NetworkState {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan domain.NetworkState, 8)
	m.subs = append(m.subs, ch)
	return ch
}

// Start probes until the context is cancelled, then closes all
// subscriber channels.
func (m *Monitor) Start(ctx context.Context) error {
	m.observe(m.probe(ctx))

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return ctx.Err()
		case <-ticker.C:
			m.observe(m.probe(ctx))
		}
	}
}

// probe tests connectivity with a single dial.
func (m *Monitor) probe(ctx context.Context) domain.NetworkState {
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	conn, err := m.dial(dialCtx, "tcp", m.cfg.ProbeAddr)
	if err != nil {
		return domain.NetworkDisconnected
	}
	conn.Close()

	if m.cfg.Metered {
		return domain.NetworkExpensive
	}
	return domain.NetworkConnected
}

// observe records a probe result and notifies subscribers on change.
func (m *Monitor) observe(state domain.NetworkState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped || state == m.current {
		return
	}

	logger.Debug("Network transition: %s -> %s", m.current, state)
	m.current = state

	for _, ch := range m.subs {
		select {
		case ch <- state:
		default:
			// Subscriber fell behind; it can read Current() to catch up.
		}
	}
}

func (m *Monitor) shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.stopped = true
	for _, ch := range m.subs {
		close(ch)
	}
	m.subs = nil
}
