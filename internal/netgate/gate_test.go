package netgate

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAttacher struct {
	mu       sync.Mutex
	calls    int
	failures int
}

func (f *fakeAttacher) Attach(ctx context.Context, report func(State)) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()

	report(Scanning)
	if fail {
		report(Disconnected)
		return errors.New("access point not found")
	}
	report(Connecting)
	report(ObtainingAddress)
	return nil
}

func (f *fakeAttacher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var fastBackoff = Config{InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

func TestState_String(t *testing.T) {
	assert.Equal(t, "DISCONNECTED", Disconnected.String())
	assert.Equal(t, "OBTAINING_ADDRESS", ObtainingAddress.String())
	assert.Equal(t, "CONNECTED", Connected.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestGate_ObserveTransitions(t *testing.T) {
	g := New(&fakeAttacher{}, fastBackoff)
	assert.Equal(t, Disconnected, g.State())
	assert.False(t, g.Ready())

	done := g.Done()
	g.Observe(Scanning)
	g.Observe(Connecting)
	g.Observe(ObtainingAddress)
	assert.False(t, g.Ready())
	select {
	case <-done:
		t.Fatal("done closed before Connected")
	default:
	}

	g.Observe(Connected)
	assert.True(t, g.Ready())
	select {
	case <-done:
	default:
		t.Fatal("done not closed on Connected")
	}

	// repeated Connected must not close twice
	g.Observe(Connected)

	g.Observe(Disconnected)
	assert.False(t, g.Ready())
	select {
	case <-g.Done():
		t.Fatal("new done channel should be open after disconnect")
	default:
	}
}

func TestGate_WaitReady(t *testing.T) {
	g := New(&fakeAttacher{}, fastBackoff)

	err := g.WaitReady(context.Background(), 20*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "DISCONNECTED")

	go func() {
		time.Sleep(10 * time.Millisecond)
		g.Observe(Connected)
	}()
	assert.NoError(t, g.WaitReady(context.Background(), 2*time.Second))
	assert.NoError(t, g.WaitReady(context.Background(), 0))
}

func TestGate_RunRetriesAndReattaches(t *testing.T) {
	att := &fakeAttacher{failures: 2}
	g := New(att, fastBackoff)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- g.Run(ctx) }()

	require.NoError(t, g.WaitReady(ctx, 2*time.Second))
	assert.Equal(t, 3, att.Calls())

	g.Observe(Disconnected)
	assert.Eventually(t, func() bool { return att.Calls() == 4 && g.Ready() }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestGate_RunGivesUpAfterMaxElapsed(t *testing.T) {
	cfg := fastBackoff
	cfg.MaxElapsed = 20 * time.Millisecond
	g := New(&fakeAttacher{failures: 1 << 20}, cfg)

	err := g.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access point not found")
	assert.False(t, g.Ready())
}

func TestAlwaysReady(t *testing.T) {
	var r Readiness = AlwaysReady{}
	assert.True(t, r.Ready())
}

func TestInterfaceAttacher(t *testing.T) {
	withAddr := []net.Addr{&net.IPNet{IP: net.IPv4(192, 168, 4, 2), Mask: net.CIDRMask(24, 32)}}
	linkLocal6 := []net.Addr{&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)}}

	t.Run("address arrives", func(t *testing.T) {
		var mu sync.Mutex
		polls := 0
		a := InterfaceAttacher{
			Name: "wlan0",
			Poll: time.Millisecond,
			Lookup: func(name string) (LinkInfo, error) {
				mu.Lock()
				defer mu.Unlock()
				polls++
				if polls < 3 {
					return LinkInfo{Up: true, Addrs: linkLocal6}, nil
				}
				return LinkInfo{Up: true, Addrs: withAddr}, nil
			},
		}
		var states []State
		require.NoError(t, a.Attach(context.Background(), func(s State) { states = append(states, s) }))
		assert.Equal(t, []State{Scanning, Connecting, ObtainingAddress}, states)
	})

	t.Run("interface missing", func(t *testing.T) {
		a := InterfaceAttacher{
			Name:   "wlan9",
			Lookup: func(string) (LinkInfo, error) { return LinkInfo{}, errors.New("no such network interface") },
		}
		var last State
		err := a.Attach(context.Background(), func(s State) { last = s })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wlan9")
		assert.Equal(t, Disconnected, last)
	})

	t.Run("interface down", func(t *testing.T) {
		a := InterfaceAttacher{
			Name:   "wlan0",
			Lookup: func(string) (LinkInfo, error) { return LinkInfo{Up: false}, nil },
		}
		err := a.Attach(context.Background(), func(State) {})
		assert.EqualError(t, err, "interface wlan0 is down")
	})

	t.Run("cancelled while waiting for address", func(t *testing.T) {
		a := InterfaceAttacher{
			Name:   "wlan0",
			Poll:   time.Millisecond,
			Lookup: func(string) (LinkInfo, error) { return LinkInfo{Up: true}, nil },
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, a.Attach(ctx, func(State) {}), context.DeadlineExceeded)
	})
}

func TestGate_RunDetectsLinkLoss(t *testing.T) {
	withAddr := []net.Addr{&net.IPNet{IP: net.IPv4(192, 168, 4, 2), Mask: net.CIDRMask(24, 32)}}
	var gone atomic.Bool
	a := InterfaceAttacher{
		Name: "wlan0",
		Poll: time.Millisecond,
		Lookup: func(string) (LinkInfo, error) {
			if gone.Load() {
				return LinkInfo{}, errors.New("no such network interface")
			}
			return LinkInfo{Up: true, Addrs: withAddr}, nil
		},
	}
	g := New(a, fastBackoff)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- g.Run(ctx) }()

	require.NoError(t, g.WaitReady(ctx, 2*time.Second))

	gone.Store(true)
	assert.Eventually(t, func() bool { return !g.Ready() }, 2*time.Second, time.Millisecond)

	gone.Store(false)
	require.NoError(t, g.WaitReady(ctx, 2*time.Second))

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestInterfaceAttacher_Watch(t *testing.T) {
	withAddr := []net.Addr{&net.IPNet{IP: net.IPv4(192, 168, 4, 2), Mask: net.CIDRMask(24, 32)}}

	tests := map[string]struct {
		link LinkInfo
		err  error
		want string
	}{
		"vanished": {err: errors.New("no such network interface"), want: "interface wlan0 lost: no such network interface"},
		"down":     {link: LinkInfo{Up: false, Addrs: withAddr}, want: "interface wlan0 went down"},
		"no addr":  {link: LinkInfo{Up: true}, want: "interface wlan0 lost its address"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			a := InterfaceAttacher{
				Name:   "wlan0",
				Poll:   time.Millisecond,
				Lookup: func(string) (LinkInfo, error) { return tc.link, tc.err },
			}
			assert.EqualError(t, a.Watch(context.Background()), tc.want)
		})
	}

	t.Run("healthy until cancelled", func(t *testing.T) {
		a := InterfaceAttacher{
			Name:   "wlan0",
			Poll:   time.Millisecond,
			Lookup: func(string) (LinkInfo, error) { return LinkInfo{Up: true, Addrs: withAddr}, nil },
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.NoError(t, a.Watch(ctx))
	})
}
