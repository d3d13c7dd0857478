// Package transmitter sends encoded commands to the vehicle as fire-and-forget
// UDP datagrams. It owns a single socket for its lifetime; writes happen on
// background workers so the input path never waits on the network.
package transmitter

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"IotCarRC/internal/util"
)

// Config contains the transmitter settings.
type Config struct {
	Port      int // destination port, 4210 on the vehicle
	QueueSize int
	Workers   int
}

// Stats counts datagram outcomes since construction.
type Stats struct {
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

// Option customizes a Transmitter.
type Option func(*Transmitter)

// WithSocketFactory overrides how the socket is created (tests).
func WithSocketFactory(f SocketFactory) Option {
	return func(t *Transmitter) { t.factory = f }
}

// WithResolver overrides destination resolution (tests).
func WithResolver(r Resolver) Option {
	return func(t *Transmitter) { t.resolve = r }
}

// WithErrorHandler registers a callback for transport errors. It runs on a
// worker goroutine.
func WithErrorHandler(fn func(error)) Option {
	return func(t *Transmitter) { t.onError = fn }
}

type datagram struct {
	payload []byte
	dest    *net.UDPAddr
}

// Transmitter owns the outbound socket and the configured destination.
type Transmitter struct {
	conn    net.PacketConn
	port    int
	workers int
	factory SocketFactory
	resolve Resolver
	onError func(error)

	mu   sync.RWMutex
	dest *net.UDPAddr

	queue     chan datagram
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// New opens the socket. A socket that cannot be created makes the transmitter
// unusable, so the error must be treated as fatal by the caller.
func New(cfg Config, opts ...Option) (*Transmitter, error) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("transmitter: invalid port %d", cfg.Port)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	t := &Transmitter{
		port:    cfg.Port,
		workers: cfg.Workers,
		factory: UDPSocketFactory{},
		resolve: net.ResolveUDPAddr,
		queue:   make(chan datagram, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	conn, err := t.factory.ListenPacket("udp", ":0")
	if err != nil {
		return nil, fmt.Errorf("transmitter: open socket: %w", err)
	}
	t.conn = conn
	util.Info("[transmitter] socket open on %s", conn.LocalAddr())
	return t, nil
}

// SetDestination resolves host and makes it the target of subsequent sends.
// On failure the previous destination is kept. An empty host clears it.
func (t *Transmitter) SetDestination(host string) error {
	if host == "" {
		t.mu.Lock()
		t.dest = nil
		t.mu.Unlock()
		util.Info("[transmitter] destination cleared")
		return nil
	}

	addr, err := t.resolve("udp", net.JoinHostPort(host, strconv.Itoa(t.port)))
	if err != nil {
		return &ConfigurationError{Host: host, Err: err}
	}

	t.mu.Lock()
	t.dest = addr
	t.mu.Unlock()
	util.Info("[transmitter] destination set to %s", addr)
	return nil
}

// Destination returns the resolved destination, or "" when unset.
func (t *Transmitter) Destination() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.dest == nil {
		return ""
	}
	return t.dest.String()
}

// Send copies payload and queues it for one datagram write to the current
// destination. It never waits for the network and never reports delivery.
func (t *Transmitter) Send(payload []byte) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}

	t.mu.RLock()
	dest := t.dest
	t.mu.RUnlock()
	if dest == nil {
		return ErrNotConfigured
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)

	select {
	case t.queue <- datagram{payload: buf, dest: dest}:
		return nil
	case <-t.done:
		return ErrClosed
	default:
		t.dropped.Add(1)
		return ErrQueueFull
	}
}

// Start launches the send workers. Later calls are no-ops. Workers stop when
// ctx is cancelled or Close is called.
func (t *Transmitter) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		for i := 0; i < t.workers; i++ {
			t.wg.Add(1)
			go t.worker(ctx, i)
		}
		util.Debug("[transmitter] %d send worker(s) started", t.workers)
	})
}

func (t *Transmitter) worker(ctx context.Context, id int) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case d := <-t.queue:
			t.write(id, d)
		}
	}
}

func (t *Transmitter) write(id int, d datagram) {
	if _, err := t.conn.WriteTo(d.payload, d.dest); err != nil {
		t.failed.Add(1)
		terr := &TransportError{Dest: d.dest.String(), Err: err}
		util.Error("[transmitter] worker %d: %v", id, terr)
		if t.onError != nil {
			t.onError(terr)
		}
		return
	}
	t.sent.Add(1)
}

// Stats returns a snapshot of the counters.
func (t *Transmitter) Stats() Stats {
	return Stats{
		Sent:    t.sent.Load(),
		Failed:  t.failed.Load(),
		Dropped: t.dropped.Load(),
	}
}

// Close stops the workers, writes out whatever is still queued and closes the
// socket. Later calls are no-ops.
func (t *Transmitter) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.wg.Wait()
		t.flush()
		err = t.conn.Close()
		util.Info("[transmitter] closed (%+v)", t.Stats())
	})
	return err
}

func (t *Transmitter) flush() {
	for {
		select {
		case d := <-t.queue:
			t.write(-1, d)
		default:
			return
		}
	}
}
