package device

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	serial "go.bug.st/serial"
)

// SerialDevice implements Device using go.bug.st/serial.
type SerialDevice struct {
	dev  string
	baud int

	rmu     sync.Mutex
	wmu     sync.Mutex
	port    serial.Port
	pending []byte
	closed  atomic.Bool
}

// NewSerialDevice opens the serial device at dev with the given baudrate (8N1).
func NewSerialDevice(dev string, baud int) (*SerialDevice, error) {
	p, err := serial.Open(dev, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial %s: %w", dev, err)
	}
	return &SerialDevice{port: p, dev: dev, baud: baud}, nil
}

// ListPorts returns the serial ports present on the host, for diagnostics.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// String returns the device path and baudrate.
func (s *SerialDevice) String() string {
	return fmt.Sprintf("%s@%d", s.dev, s.baud)
}

// ReadLine reads one line from the port. The port's own read timeout is used, so
// no goroutine is left blocked on the port when the deadline passes.
func (s *SerialDevice) ReadLine(timeout time.Duration) (string, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	chunk := make([]byte, 128)
	for {
		if i := bytes.IndexByte(s.pending, '\n'); i >= 0 {
			line := string(s.pending[:i])
			s.pending = s.pending[i+1:]
			return strings.TrimRight(line, "\r"), nil
		}
		if s.closed.Load() {
			return "", errors.New("serial port not open")
		}

		wait := serial.NoTimeout
		if timeout > 0 {
			wait = time.Until(deadline)
			if wait <= 0 {
				return "", ErrReadTimeout
			}
		}
		if err := s.port.SetReadTimeout(wait); err != nil {
			return "", fmt.Errorf("serial %s: set read timeout: %w", s.dev, err)
		}
		n, err := s.port.Read(chunk)
		if err != nil {
			return "", fmt.Errorf("serial %s: read: %w", s.dev, err)
		}
		s.pending = append(s.pending, chunk[:n]...)
	}
}

// WriteLine writes a single line followed by '\n' to the serial port.
func (s *SerialDevice) WriteLine(line string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.closed.Load() {
		return errors.New("serial port not open")
	}
	if _, err := s.port.Write(append([]byte(line), '\n')); err != nil {
		return fmt.Errorf("serial %s: write: %w", s.dev, err)
	}
	return nil
}

// Close closes the underlying serial connection. Later calls are no-ops.
func (s *SerialDevice) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	// closing the port unblocks a pending Read
	return s.port.Close()
}
