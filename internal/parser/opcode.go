package parser

import (
	"fmt"

	"IotCarRC/internal/model"
)

// OpcodeCodec implements the single-byte discrete command format.
type OpcodeCodec struct{}

// Encode converts op into its one-byte wire form.
func (OpcodeCodec) Encode(op model.Opcode) ([]byte, error) {
	code, err := op.Code()
	if err != nil {
		return nil, err
	}
	return []byte{code}, nil
}

// Decode parses a one-byte datagram.
func (OpcodeCodec) Decode(b []byte) (model.Opcode, error) {
	if len(b) != 1 {
		return 0, fmt.Errorf("opcode frame must be 1 byte, got %d", len(b))
	}
	return model.OpcodeFromCode(b[0])
}
