package device

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"IotCarRC/internal/model"
	"IotCarRC/internal/parser"
	"IotCarRC/internal/util"
)

// MotorAck is the line the motor board answers each control line with.
const MotorAck = "ACK,CTRL"

// ErrNoAck is returned by Apply when the board does not acknowledge in time.
var ErrNoAck = errors.New("motor board did not acknowledge")

const defaultAckTimeout = 100 * time.Millisecond

// MotorController represents the serial-connected motor board of the car.
// It receives one CTRL line per applied command.
type MotorController struct {
	ID     string
	Device string
	Baud   int
	// AckTimeout bounds the wait for MotorAck after each line. Zero means 100ms.
	AckTimeout time.Duration

	mu   sync.Mutex
	link Device
	last model.MotorCommand
}

// NewMotorController creates a motor board handler for the serial device at path.
// The port is opened lazily by Open.
func NewMotorController(id, path string, baud int) *MotorController {
	return &MotorController{ID: id, Device: path, Baud: baud}
}

// NewMotorControllerOn wraps an already open link.
func NewMotorControllerOn(id string, link Device) *MotorController {
	return &MotorController{ID: id, link: link}
}

// Open initializes the serial connection.
func (m *MotorController) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.link != nil {
		return nil
	}
	sd, err := NewSerialDevice(m.Device, m.Baud)
	if err != nil {
		return fmt.Errorf("open motor serial failed: %w", err)
	}
	m.link = sd
	return nil
}

// Close terminates the serial connection safely.
func (m *MotorController) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.link == nil {
		return nil
	}
	err := m.link.Close()
	m.link = nil
	return err
}

// Apply validates cmd, writes it to the board as a CTRL line and waits for
// MotorAck. Reading the ack keeps the board's replies from backing up the link.
func (m *MotorController) Apply(cmd model.MotorCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("motor %s: %w", m.ID, err)
	}
	line := parser.MotorLineToCSV(cmd)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.link == nil {
		return errors.New("motor serial not open")
	}
	if err := m.link.WriteLine(line); err != nil {
		return fmt.Errorf("motor %s write: %w", m.ID, err)
	}
	if err := m.awaitAck(); err != nil {
		return fmt.Errorf("motor %s: %w", m.ID, err)
	}
	m.last = cmd
	util.Debug("[motor %s] applied %s", m.ID, line)
	return nil
}

// awaitAck reads lines until MotorAck arrives, skipping anything else the board
// prints. Callers hold m.mu.
func (m *MotorController) awaitAck() error {
	timeout := m.AckTimeout
	if timeout <= 0 {
		timeout = defaultAckTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrNoAck
		}
		line, err := m.link.ReadLine(remaining)
		if errors.Is(err, ErrReadTimeout) {
			return ErrNoAck
		}
		if err != nil {
			return fmt.Errorf("read ack: %w", err)
		}
		if line = strings.TrimSpace(line); line == MotorAck {
			return nil
		}
		util.Debug("[motor %s] skipped board output %q", m.ID, line)
	}
}

// Last returns the most recently acknowledged command.
func (m *MotorController) Last() model.MotorCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// StartSimulation plays the motor board on the far end of a virtual serial pair.
// Every CTRL line read from link is parsed, passed to applied and acknowledged
// with MotorAck. It returns when stop is closed.
func StartSimulation(id string, link Device, stop <-chan struct{}, applied func(model.MotorCommand)) error {
	util.Info("[motor-sim %s] simulator started", id)
	for {
		select {
		case <-stop:
			util.Info("[motor-sim %s] simulation stopped", id)
			return nil
		default:
		}

		line, err := link.ReadLine(200 * time.Millisecond)
		if errors.Is(err, ErrReadTimeout) {
			continue
		}
		if err != nil {
			return fmt.Errorf("motor-sim %s read: %w", id, err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cmd, err := parser.ParseMotorLineCSV(line)
		if err != nil {
			util.Error("[motor-sim %s] bad line %q: %v", id, line, err)
			continue
		}
		util.Info("[motor-sim %s] left=%d right=%d dir=%s mode=%s",
			id, cmd.LeftSpeed, cmd.RightSpeed, cmd.Direction, cmd.Mode)
		if applied != nil {
			applied(cmd)
		}
		if err := link.WriteLine(MotorAck); err != nil {
			util.Error("[motor-sim %s] ack write error: %v", id, err)
		}
	}
}
