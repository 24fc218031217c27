package netmon

import (
	"context"
	"errors"
	"net"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
)

// fakeDialer fails or succeeds on demand.
type fakeDialer struct {
	mu   stdsync.Mutex
	fail bool
}

func (f *fakeDialer) set(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *fakeDialer) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("no route to host")
	}
	c, s := net.Pipe()
	go s.Close()
	return c, nil
}

func newTestMonitor(metered bool) (*Monitor, *fakeDialer) {
	d := &fakeDialer{}
	m := New(Config{
		ProbeAddr:     "probe.test:443",
		ProbeInterval: 5 * time.Millisecond,
		ProbeTimeout:  time.Second,
		Metered:       metered,
	})
	m.dial = d.dial
	return m, d
}

func TestMonitor_InitialStateIsDisconnected(t *testing.T) {
	m, _ := newTestMonitor(false)
	assert.Equal(t, domain.NetworkDisconnected, m.Current())
}

func TestMonitor_DetectsConnectivity(t *testing.T) {
	m, _ := newTestMonitor(false)
	sub := m.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	select {
	case state := <-sub:
		assert.Equal(t, domain.NetworkConnected, state)
	case <-time.After(time.Second):
		t.Fatal("no transition observed")
	}
	assert.Equal(t, domain.NetworkConnected, m.Current())
}

func TestMonitor_MeteredPathIsExpensive(t *testing.T) {
	m, _ := newTestMonitor(true)
	sub := m.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	select {
	case state := <-sub:
		assert.Equal(t, domain.NetworkExpensive, state)
	case <-time.After(time.Second):
		t.Fatal("no transition observed")
	}
}

func TestMonitor_DeduplicatesIdenticalStates(t *testing.T) {
	m, _ := newTestMonitor(false)
	sub := m.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	// First probe transitions to connected.
	require.Equal(t, domain.NetworkConnected, <-sub)

	// Subsequent identical probes must not emit.
	select {
	case state, ok := <-sub:
		if ok {
			t.Fatalf("unexpected duplicate transition: %s", state)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitor_EmitsOfflineTransition(t *testing.T) {
	m, d := newTestMonitor(false)
	sub := m.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	require.Equal(t, domain.NetworkConnected, <-sub)

	d.set(true)
	select {
	case state := <-sub:
		assert.Equal(t, domain.NetworkDisconnected, state)
	case <-time.After(time.Second):
		t.Fatal("offline transition not observed")
	}
}

func TestMonitor_StopClosesSubscribers(t *testing.T) {
	m, _ := newTestMonitor(false)
	sub := m.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	require.Equal(t, domain.NetworkConnected, <-sub)
	cancel()

	require.ErrorIs(t, <-done, context.Canceled)

	_, ok := <-sub
	assert.False(t, ok, "subscriber channel should be closed")
}
