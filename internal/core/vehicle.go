package core

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"IotCarRC/internal/drive"
	"IotCarRC/internal/joystick"
	"IotCarRC/internal/model"
	"IotCarRC/internal/parser"
	"IotCarRC/internal/util"
)

// Motor applies a motor command. *device.MotorController implements it.
type Motor interface {
	Apply(cmd model.MotorCommand) error
}

// opcodeStick is the stick position a button stands for.
var opcodeStick = map[model.Opcode]joystick.Displacement{
	model.OpForward:  {X: 0, Y: joystick.DisplacementRange},
	model.OpBackward: {X: 0, Y: -joystick.DisplacementRange},
	model.OpLeft:     {X: -joystick.DisplacementRange, Y: 0},
	model.OpRight:    {X: joystick.DisplacementRange, Y: 0},
}

// VehicleStats counts received datagrams.
type VehicleStats struct {
	Received uint64 `json:"received"`
	Rejected uint64 `json:"rejected"`
}

// Vehicle represents the car-side agent that receives datagrams on UDP and
// drives the motor board. Without a Motor, commands are only logged.
type Vehicle struct {
	ID       string
	Listen   string
	Protocol parser.Protocol
	Motor    Motor

	mapper drive.Mapper
	conn   net.PacketConn
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu   sync.Mutex
	mode model.DrivingMode
	alg  model.DrivingAlgorithm
	last model.MotorCommand

	received atomic.Uint64
	rejected atomic.Uint64
}

// NewVehicle constructs a Vehicle listening on listen (e.g. ":4210").
func NewVehicle(id, listen string, proto parser.Protocol, motor Motor) *Vehicle {
	return &Vehicle{
		ID:       id,
		Listen:   listen,
		Protocol: proto,
		Motor:    motor,
		mapper:   drive.NewMapper(model.MaxMotorSpeed),
		stop:     make(chan struct{}),
	}
}

// Start opens the UDP socket and begins the receive loop.
func (v *Vehicle) Start() error {
	conn, err := net.ListenPacket("udp", v.Listen)
	if err != nil {
		return fmt.Errorf("vehicle %s: listen %s: %w", v.ID, v.Listen, err)
	}
	v.conn = conn
	util.Info("[vehicle %s] listening on %s (%s)", v.ID, conn.LocalAddr(), v.Protocol.Revision())

	v.wg.Add(1)
	go v.receive()
	return nil
}

// Addr returns the bound address once started.
func (v *Vehicle) Addr() net.Addr {
	if v.conn == nil {
		return nil
	}
	return v.conn.LocalAddr()
}

func (v *Vehicle) receive() {
	defer v.wg.Done()
	buf := make([]byte, 512)
	for {
		n, from, err := v.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-v.stop:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			util.Error("[vehicle %s] read: %v", v.ID, err)
			continue
		}
		v.received.Add(1)
		if _, err := v.Handle(buf[:n]); err != nil {
			v.rejected.Add(1)
			util.Error("[vehicle %s] datagram from %s rejected: %v", v.ID, from, err)
		}
	}
}

// Handle decodes one datagram and applies the resulting command.
func (v *Vehicle) Handle(b []byte) (model.MotorCommand, error) {
	frame, err := v.Protocol.Sniff(b)
	if err != nil {
		return model.MotorCommand{}, err
	}

	v.mu.Lock()
	var cmd model.MotorCommand
	if frame.Motor != nil {
		cmd = *frame.Motor
		v.mode, v.alg = cmd.Mode, cmd.Algorithm
	} else {
		cmd = v.opcodeCommand(frame.Opcode)
	}
	v.last = cmd
	v.mu.Unlock()

	if v.Motor == nil {
		util.Info("[vehicle %s] %s", v.ID, parser.MotorLineToCSV(cmd))
		return cmd, nil
	}
	if err := v.Motor.Apply(cmd); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// opcodeCommand resolves a discrete command under the current mode. Caller holds mu.
func (v *Vehicle) opcodeCommand(op model.Opcode) model.MotorCommand {
	switch op {
	case model.OpSetRemote:
		v.mode = model.Remote
	case model.OpSetAutonomous:
		v.mode = model.Autonomous
	}
	if d, ok := opcodeStick[op]; ok {
		return v.mapper.Command(d, v.mode, v.alg)
	}
	return model.StopCommand(v.mode, v.alg)
}

// Last returns the most recently applied command.
func (v *Vehicle) Last() model.MotorCommand {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

// Stats returns the datagram counters.
func (v *Vehicle) Stats() VehicleStats {
	return VehicleStats{Received: v.received.Load(), Rejected: v.rejected.Load()}
}

// Stop closes the socket, waits for the receive loop and closes the motor link.
// Only the first call does the work; later calls return nil.
func (v *Vehicle) Stop() error {
	var err error
	v.stopOnce.Do(func() { err = v.shutdown() })
	return err
}

func (v *Vehicle) shutdown() error {
	close(v.stop)

	var err error
	if v.conn != nil {
		err = multierr.Append(err, v.conn.Close())
	}
	v.wg.Wait()
	if c, ok := v.Motor.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	util.Info("[vehicle %s] stopped (%+v)", v.ID, v.Stats())
	return err
}
