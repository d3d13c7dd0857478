package model

import (
	"errors"
	"fmt"
	"strings"
)

// Opcode is a discrete action sent as a single byte. The zero value is not a
// valid opcode, so a forgotten assignment can never go out as BACKWARD.
type Opcode int

// Discrete commands understood by the vehicle.
const (
	OpForward Opcode = iota + 1
	OpBackward
	OpLeft
	OpRight
	OpStop
	OpSetRemote
	OpSetAutonomous
)

// ErrUnknownOpcode is returned when an opcode or wire byte has no mapping.
var ErrUnknownOpcode = errors.New("unknown opcode")

// Code returns the 3-bit wire value of op.
func (op Opcode) Code() (byte, error) {
	switch op {
	case OpForward:
		return 0b011, nil
	case OpBackward:
		return 0b000, nil
	case OpLeft:
		return 0b010, nil
	case OpRight:
		return 0b001, nil
	case OpStop:
		return 0b101, nil
	case OpSetRemote:
		return 0b110, nil
	case OpSetAutonomous:
		return 0b111, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownOpcode, int(op))
}

// OpcodeFromCode is the inverse of Opcode.Code.
func OpcodeFromCode(b byte) (Opcode, error) {
	switch b {
	case 0b011:
		return OpForward, nil
	case 0b000:
		return OpBackward, nil
	case 0b010:
		return OpLeft, nil
	case 0b001:
		return OpRight, nil
	case 0b101:
		return OpStop, nil
	case 0b110:
		return OpSetRemote, nil
	case 0b111:
		return OpSetAutonomous, nil
	}
	return 0, fmt.Errorf("%w: wire byte 0x%02x", ErrUnknownOpcode, b)
}

var opcodeNames = map[Opcode]string{
	OpForward:       "FORWARD",
	OpBackward:      "BACKWARD",
	OpLeft:          "LEFT",
	OpRight:         "RIGHT",
	OpStop:          "STOP",
	OpSetRemote:     "SET_REMOTE_MODE",
	OpSetAutonomous: "SET_AUTONOMOUS_MODE",
}

func (op Opcode) String() string {
	if n, ok := opcodeNames[op]; ok {
		return n
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// ParseOpcode maps a UI button name to an Opcode.
func ParseOpcode(s string) (Opcode, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for op, n := range opcodeNames {
		if n == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOpcode, s)
}

// IsDirectional reports whether op is one of the steering buttons.
func (op Opcode) IsDirectional() bool {
	switch op {
	case OpForward, OpBackward, OpLeft, OpRight:
		return true
	}
	return false
}
