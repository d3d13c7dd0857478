// Package device defines the line-oriented link between the vehicle receiver
// and its motor controller board.
package device

import (
	"errors"
	"time"
)

// ErrReadTimeout is returned by ReadLine when no full line arrived in time.
var ErrReadTimeout = errors.New("read timeout")

// Device defines an abstract interface for line-based links (serial port, virtual pty).
type Device interface {
	// ReadLine reads a single line terminated by '\n', without the terminator.
	// If timeout > 0, it must return ErrReadTimeout after timeout even if no data is available.
	ReadLine(timeout time.Duration) (string, error)

	// WriteLine writes s followed by '\n' to the device.
	WriteLine(s string) error

	// Close closes the device and releases underlying resources.
	Close() error
}
