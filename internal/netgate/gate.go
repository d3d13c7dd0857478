// Package netgate tracks attachment to the vehicle's network and exposes a
// single readiness signal to the command pipeline.
package netgate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"IotCarRC/internal/util"
)

// State of the network attachment.
type State int

// Attachment states, in the order a successful attachment walks through them.
const (
	Disconnected State = iota
	Scanning
	Connecting
	ObtainingAddress
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Scanning:
		return "SCANNING"
	case Connecting:
		return "CONNECTING"
	case ObtainingAddress:
		return "OBTAINING_ADDRESS"
	case Connected:
		return "CONNECTED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Readiness is the only thing the command pipeline needs from the gate.
type Readiness interface {
	Ready() bool
}

// AlwaysReady is used on hosts that have no attachment procedure.
type AlwaysReady struct{}

// Ready always reports true.
func (AlwaysReady) Ready() bool { return true }

// Attacher performs the host's network attachment, reporting progress through report.
type Attacher interface {
	Attach(ctx context.Context, report func(State)) error
}

// Watcher is implemented by attachers that can tell when an established link
// goes away. Watch blocks while the link is healthy and returns an error
// describing the loss; it returns nil when ctx ends.
type Watcher interface {
	Watch(ctx context.Context) error
}

// Config holds the re-attachment backoff settings.
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxElapsed     time.Duration // 0 retries until the context ends
}

// Gate is the attachment state machine.
type Gate struct {
	attacher Attacher
	cfg      Config

	mu    sync.Mutex
	state State
	ready chan struct{} // closed while Connected
	lost  chan struct{}
}

// New creates a Gate in the Disconnected state.
func New(a Attacher, cfg Config) *Gate {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return &Gate{
		attacher: a,
		cfg:      cfg,
		state:    Disconnected,
		ready:    make(chan struct{}),
		lost:     make(chan struct{}, 1),
	}
}

// State returns the current attachment state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Ready reports whether the vehicle network is attached.
func (g *Gate) Ready() bool {
	return g.State() == Connected
}

// Done returns a channel that is closed once the gate is Connected.
func (g *Gate) Done() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

// Observe feeds a network-stack event into the state machine.
func (g *Gate) Observe(s State) {
	g.mu.Lock()
	prev := g.state
	if prev == s {
		g.mu.Unlock()
		return
	}
	g.state = s
	switch {
	case s == Connected:
		close(g.ready)
	case prev == Connected:
		g.ready = make(chan struct{})
	}
	if s == Disconnected {
		select {
		case g.lost <- struct{}{}:
		default:
		}
	}
	g.mu.Unlock()

	util.Info("[gate] %s -> %s", prev, s)
}

// WaitReady blocks until the gate is Connected, ctx ends or timeout elapses.
// A zero timeout waits on ctx alone.
func (g *Gate) WaitReady(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case <-g.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("netgate: not attached (state %s): %w", g.State(), ctx.Err())
	}
}

// Run attaches and re-attaches after every observed disconnect until ctx ends.
func (g *Gate) Run(ctx context.Context) error {
	for {
		if err := g.attach(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		stopWatch := g.watch(ctx)
		select {
		case <-ctx.Done():
			stopWatch()
			return ctx.Err()
		case <-g.lost:
			stopWatch()
			util.Info("[gate] link lost, re-attaching")
		}
	}
}

// watch monitors the established link when the attacher supports it and
// reports Disconnected on loss. The returned func stops the monitor and waits for it.
func (g *Gate) watch(ctx context.Context) func() {
	w, ok := g.attacher.(Watcher)
	if !ok {
		return func() {}
	}
	wctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Watch(wctx); err != nil && wctx.Err() == nil {
			util.Error("[gate] %v", err)
			g.Observe(Disconnected)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (g *Gate) attach(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.cfg.InitialBackoff
	b.MaxInterval = g.cfg.MaxBackoff
	b.MaxElapsedTime = g.cfg.MaxElapsed

	op := func() error {
		if g.Ready() {
			return nil
		}
		if err := g.attacher.Attach(ctx, g.Observe); err != nil {
			return err
		}
		// disconnects reported by failed attempts are already handled
		select {
		case <-g.lost:
		default:
		}
		g.Observe(Connected)
		return nil
	}
	notify := func(err error, next time.Duration) {
		util.Error("[gate] attach failed: %v (retry in %s)", err, next)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("netgate: attach: %w", err)
	}
	return nil
}
