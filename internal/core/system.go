package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"IotCarRC/internal/model"
	"IotCarRC/internal/netgate"
	"IotCarRC/internal/parser"
	"IotCarRC/internal/transmitter"
	"IotCarRC/internal/util"
)

// System manages the lifecycle of the controller side: transmitter, network gate
// and the Controller that ties them together.
type System struct {
	cfg         model.Config
	Protocol    parser.Protocol
	Transmitter *transmitter.Transmitter
	Gate        *netgate.Gate // nil when gating is disabled
	Controller  *Controller

	started   bool
	startLock sync.Mutex
}

// NewSystem reads the YAML configuration at cfgPath and creates a System instance.
// An empty path uses the defaults.
func NewSystem(cfgPath string, opts ...transmitter.Option) (*System, error) {
	cfg := model.DefaultConfig()
	if cfgPath != "" {
		var err error
		if cfg, err = model.LoadConfig(cfgPath); err != nil {
			return nil, err
		}
	}
	return NewSystemFromConfig(cfg, opts...)
}

// NewSystemFromConfig constructs the components described by cfg. The socket is
// opened and the configured destination resolved; either failing is fatal.
func NewSystemFromConfig(cfg model.Config, opts ...transmitter.Option) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tx, err := transmitter.New(transmitter.Config{
		Port:      cfg.Transmitter.Port,
		QueueSize: cfg.Transmitter.QueueSize,
		Workers:   cfg.Transmitter.Workers,
	}, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Transmitter.Host != "" {
		if err := tx.SetDestination(cfg.Transmitter.Host); err != nil {
			return nil, multierr.Append(err, tx.Close())
		}
	}

	s := &System{
		cfg:         cfg,
		Protocol:    parser.ProtocolFromConfig(cfg.Protocol),
		Transmitter: tx,
	}

	var ready netgate.Readiness = netgate.AlwaysReady{}
	if cfg.Gate.Enabled {
		s.Gate = netgate.New(netgate.InterfaceAttacher{Name: cfg.Gate.Interface}, netgate.Config{
			InitialBackoff: time.Duration(cfg.Gate.InitialBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Gate.MaxBackoffMs) * time.Millisecond,
		})
		ready = s.Gate
	}

	s.Controller = NewController(ControllerConfig{
		Protocol:       s.Protocol,
		MaxSpeed:       cfg.Drive.MaxSpeed,
		DropUntilReady: cfg.Gate.DropUntilReady,
	}, tx, ready)

	util.Info("[system] protocol %s, destination %q", s.Protocol.Revision(), tx.Destination())
	return s, nil
}

// Config returns the configuration the system was built from.
func (s *System) Config() model.Config { return s.cfg }

// GateState reports the attachment state; hosts without a gate are always Connected.
func (s *System) GateState() netgate.State {
	if s.Gate == nil {
		return netgate.Connected
	}
	return s.Gate.State()
}

// Run starts the transmitter workers and the gate, then blocks until ctx ends
// or the gate gives up.
func (s *System) Run(ctx context.Context) error {
	s.startLock.Lock()
	if s.started {
		s.startLock.Unlock()
		return errors.New("system already running")
	}
	s.started = true
	s.startLock.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	s.Transmitter.Start(ctx)

	if s.Gate != nil {
		g.Go(func() error { return s.Gate.Run(ctx) })
		g.Go(func() error {
			timeout := time.Duration(s.cfg.Gate.TimeoutMs) * time.Millisecond
			if err := s.Gate.WaitReady(ctx, timeout); err != nil && ctx.Err() == nil {
				// sends stay best-effort, so a slow attachment is only reported
				util.Error("[system] %v", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close stops the car and releases the socket.
func (s *System) Close() error {
	var err error
	if s.Transmitter.Destination() != "" {
		if serr := s.Controller.Stop(); serr != nil && !errors.Is(serr, transmitter.ErrClosed) {
			err = multierr.Append(err, serr)
		}
	}
	return multierr.Append(err, s.Transmitter.Close())
}
