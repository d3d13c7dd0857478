package transmitter

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned by Send before a destination is set.
	ErrNotConfigured = errors.New("transmitter: destination not configured")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("transmitter: closed")
	// ErrQueueFull is returned when the outbound queue cannot take another datagram.
	// The datagram is dropped.
	ErrQueueFull = errors.New("transmitter: send queue full, datagram dropped")
)

// ConfigurationError reports a destination that could not be resolved.
type ConfigurationError struct {
	Host string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("transmitter: resolve destination %q: %v", e.Host, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransportError reports a failed datagram write. It is logged and dropped,
// never retried.
type TransportError struct {
	Dest string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transmitter: send to %s: %v", e.Dest, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
