// Package parser encodes commands into the wire formats understood by the vehicle
// and decodes them on the receiving side.
//
// Opcode wire format (buttons, mode switches): exactly one byte.
//
// Structured wire format (joystick drive):
//
//	{"left_motor_speed":L,"right_motor_speed":R,"direction":D,"driving_mode":M[,"driving_algorithm":A]}
//
// Motor line format (vehicle -> motor controller over serial):
//
//	CTRL,LEFT,RIGHT,DIRECTION,MODE
//
// There is no version byte; sender and receiver must be configured with the same
// revision.
package parser

import (
	"errors"

	"IotCarRC/internal/model"
)

// ErrFieldMismatch is returned when a structured payload does not carry exactly
// the configured field set.
var ErrFieldMismatch = errors.New("structured payload field set mismatch")

// Protocol describes which wire revisions a deployment speaks.
type Protocol struct {
	Structured     bool
	Opcode         bool
	AlgorithmField bool
}

// ProtocolFromConfig converts the YAML section into a Protocol.
func ProtocolFromConfig(c model.ProtocolConfig) Protocol {
	return Protocol{Structured: c.Structured, Opcode: c.Opcode, AlgorithmField: c.AlgorithmField}
}

// Revision names the enabled wire revisions for logs and the status endpoint.
func (p Protocol) Revision() string {
	s := ""
	if p.Opcode {
		s = "opcode"
	}
	if p.Structured {
		if s != "" {
			s += "+"
		}
		if p.AlgorithmField {
			s += "structured-v2"
		} else {
			s += "structured-v1"
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// StructuredCodec returns the structured codec for this revision.
func (p Protocol) StructuredCodec() StructuredCodec {
	return StructuredCodec{WithAlgorithm: p.AlgorithmField}
}

// Frame is a decoded datagram: exactly one of Opcode or Motor is set.
type Frame struct {
	Opcode model.Opcode
	Motor  *model.MotorCommand
}

// Sniff decodes a datagram of either format. A single byte is an opcode,
// anything longer is a structured payload.
func (p Protocol) Sniff(b []byte) (Frame, error) {
	if len(b) == 1 {
		if !p.Opcode {
			return Frame{}, errors.New("opcode protocol disabled")
		}
		op, err := OpcodeCodec{}.Decode(b)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Opcode: op}, nil
	}
	if !p.Structured {
		return Frame{}, errors.New("structured protocol disabled")
	}
	cmd, err := p.StructuredCodec().Decode(b)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Motor: &cmd}, nil
}
