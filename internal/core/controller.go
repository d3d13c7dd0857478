// Package core contains the runtime pieces of IotCarRC: the Controller that turns
// operator input into datagrams, the Vehicle that receives them, and the System
// that wires the controller side from configuration.
package core

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/golang/geo/r2"

	"IotCarRC/internal/drive"
	"IotCarRC/internal/joystick"
	"IotCarRC/internal/model"
	"IotCarRC/internal/netgate"
	"IotCarRC/internal/parser"
	"IotCarRC/internal/transmitter"
	"IotCarRC/internal/util"
)

var (
	// ErrProtocolDisabled is returned when an operation needs a wire format the
	// deployment has turned off.
	ErrProtocolDisabled = errors.New("protocol disabled")
	// ErrNotSized is returned by Touch before the first Resize.
	ErrNotSized = errors.New("joystick surface not sized")
)

// Sender is the outbound side of the pipeline. *transmitter.Transmitter implements it.
type Sender interface {
	Send(payload []byte) error
}

// ControllerConfig holds the pipeline settings.
type ControllerConfig struct {
	Protocol       parser.Protocol
	MaxSpeed       int
	DropUntilReady bool // drop commands while the network gate is not ready
}

// TouchResult is what the UI needs to render after a touch.
type TouchResult struct {
	Knob         r2.Point
	Displacement joystick.Displacement
	Command      model.MotorCommand
	Handled      bool // false when the joystick is disabled (autonomous mode)
}

// ControllerStatus is a snapshot for the status endpoint.
type ControllerStatus struct {
	Mode      string `json:"mode"`
	Algorithm string `json:"algorithm"`
	Sized     bool   `json:"sized"`
	Gated     uint64 `json:"gated"`
	Revision  string `json:"revision"`
}

// Controller runs geometry, mapping and encoding for every operator input and
// hands the bytes to a Sender. Each input produces at most one datagram.
type Controller struct {
	sender         Sender
	gate           netgate.Readiness
	proto          parser.Protocol
	codec          parser.StructuredCodec
	mapper         drive.Mapper
	dropUntilReady bool

	// mu also orders sends from concurrent sessions
	mu    sync.Mutex
	dim   joystick.Dimensions
	sized bool
	mode  model.DrivingMode
	alg   model.DrivingAlgorithm

	gated atomic.Uint64
}

// NewController creates a Controller in remote mode with the simple algorithm.
// A nil gate means always ready.
func NewController(cfg ControllerConfig, sender Sender, gate netgate.Readiness) *Controller {
	if gate == nil {
		gate = netgate.AlwaysReady{}
	}
	return &Controller{
		sender:         sender,
		gate:           gate,
		proto:          cfg.Protocol,
		codec:          cfg.Protocol.StructuredCodec(),
		mapper:         drive.NewMapper(cfg.MaxSpeed),
		dropUntilReady: cfg.DropUntilReady,
		mode:           model.Remote,
		alg:            model.Simple,
	}
}

// Resize recomputes the joystick dimensions for a surface of width x height.
func (c *Controller) Resize(width, height float64) error {
	dim, err := joystick.NewDimensions(width, height)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.dim = dim
	c.sized = true
	c.mu.Unlock()
	util.Debug("[controller] surface %gx%g base=%g knob=%g", width, height, dim.BaseRadius, dim.KnobRadius)
	return nil
}

// Touch handles a drag or release on the joystick surface.
func (c *Controller) Touch(s joystick.TouchSample) (TouchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sized {
		return TouchResult{}, ErrNotSized
	}
	if c.mode == model.Autonomous {
		return TouchResult{Knob: c.dim.Center}, nil
	}
	if !c.proto.Structured {
		return TouchResult{}, ErrProtocolDisabled
	}

	res := joystick.Resolve(c.dim, s)
	cmd := c.mapper.Command(res.Displacement, c.mode, c.alg)
	payload, err := c.codec.Encode(cmd)
	if err != nil {
		return TouchResult{}, fmt.Errorf("encode drive command: %w", err)
	}
	if err := c.send(payload); err != nil {
		return TouchResult{}, err
	}
	return TouchResult{Knob: res.Knob, Displacement: res.Displacement, Command: cmd, Handled: true}, nil
}

// Press handles a discrete button. Direction buttons are ignored in autonomous mode.
func (c *Controller) Press(op model.Opcode) error {
	if op != model.OpStop && !op.IsDirectional() {
		return fmt.Errorf("%s is not a button command", op)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if op.IsDirectional() && c.mode == model.Autonomous {
		util.Debug("[controller] %s ignored in autonomous mode", op)
		return nil
	}
	if !c.proto.Opcode {
		return ErrProtocolDisabled
	}
	return c.sendOpcode(op)
}

// Release handles a direction button being let go, which stops the car.
func (c *Controller) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == model.Autonomous {
		return nil
	}
	return c.stopLocked()
}

// Stop halts the car in any mode.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

// SetMode switches between remote and autonomous driving and tells the car.
func (c *Controller) SetMode(mode model.DrivingMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid driving mode %d", int(mode))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	util.Info("[controller] driving mode %s", mode)

	if c.proto.Opcode {
		op := model.OpSetRemote
		if mode == model.Autonomous {
			op = model.OpSetAutonomous
		}
		return c.sendOpcode(op)
	}
	return c.sendStructured(model.StopCommand(mode, c.alg))
}

// SetAlgorithm selects the algorithm carried by following structured commands.
func (c *Controller) SetAlgorithm(alg model.DrivingAlgorithm) error {
	if !alg.Valid() {
		return fmt.Errorf("invalid driving algorithm %d", int(alg))
	}
	c.mu.Lock()
	c.alg = alg
	c.mu.Unlock()
	util.Info("[controller] driving algorithm %s", alg)
	return nil
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() ControllerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ControllerStatus{
		Mode:      c.mode.String(),
		Algorithm: c.alg.String(),
		Sized:     c.sized,
		Gated:     c.gated.Load(),
		Revision:  c.proto.Revision(),
	}
}

func (c *Controller) stopLocked() error {
	if c.proto.Opcode {
		return c.sendOpcode(model.OpStop)
	}
	if c.proto.Structured {
		return c.sendStructured(model.StopCommand(c.mode, c.alg))
	}
	return ErrProtocolDisabled
}

func (c *Controller) sendOpcode(op model.Opcode) error {
	payload, err := parser.OpcodeCodec{}.Encode(op)
	if err != nil {
		return err
	}
	util.Debug("[controller] opcode %s", op)
	return c.send(payload)
}

func (c *Controller) sendStructured(cmd model.MotorCommand) error {
	payload, err := c.codec.Encode(cmd)
	if err != nil {
		return fmt.Errorf("encode drive command: %w", err)
	}
	return c.send(payload)
}

// send applies the gating policy. Only configuration errors and a closed
// transmitter reach the caller; a full queue is logged and dropped.
func (c *Controller) send(payload []byte) error {
	if c.dropUntilReady && !c.gate.Ready() {
		n := c.gated.Add(1)
		util.Debug("[controller] network not ready, command dropped (%d so far)", n)
		return nil
	}
	err := c.sender.Send(payload)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, transmitter.ErrQueueFull):
		util.Error("[controller] %v", err)
		return nil
	default:
		return err
	}
}
