package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"IotCarRC/internal/model"
)

// structuredPayload fixes the field order of the encoded object.
type structuredPayload struct {
	LeftMotorSpeed   *int `json:"left_motor_speed"`
	RightMotorSpeed  *int `json:"right_motor_speed"`
	Direction        *int `json:"direction"`
	DrivingMode      *int `json:"driving_mode"`
	DrivingAlgorithm *int `json:"driving_algorithm,omitempty"`
}

// StructuredCodec implements the key/value drive payload. WithAlgorithm selects
// the revision that carries driving_algorithm.
type StructuredCodec struct {
	WithAlgorithm bool
}

// Encode serializes a MotorCommand.
func (c StructuredCodec) Encode(cmd model.MotorCommand) ([]byte, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("encode motor command: %w", err)
	}
	dir, mode := int(cmd.Direction), int(cmd.Mode)
	p := structuredPayload{
		LeftMotorSpeed:  &cmd.LeftSpeed,
		RightMotorSpeed: &cmd.RightSpeed,
		Direction:       &dir,
		DrivingMode:     &mode,
	}
	if c.WithAlgorithm {
		alg := int(cmd.Algorithm)
		p.DrivingAlgorithm = &alg
	}
	return json.Marshal(p)
}

// Decode parses a payload that must carry exactly the configured fields.
func (c StructuredCodec) Decode(b []byte) (model.MotorCommand, error) {
	var p structuredPayload
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return model.MotorCommand{}, fmt.Errorf("decode structured payload: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return model.MotorCommand{}, errors.New("decode structured payload: trailing data")
	}

	if p.LeftMotorSpeed == nil || p.RightMotorSpeed == nil || p.Direction == nil || p.DrivingMode == nil {
		return model.MotorCommand{}, fmt.Errorf("%w: missing required field", ErrFieldMismatch)
	}
	if c.WithAlgorithm != (p.DrivingAlgorithm != nil) {
		return model.MotorCommand{}, fmt.Errorf("%w: driving_algorithm presence %t, expected %t",
			ErrFieldMismatch, p.DrivingAlgorithm != nil, c.WithAlgorithm)
	}

	cmd := model.MotorCommand{
		LeftSpeed:  *p.LeftMotorSpeed,
		RightSpeed: *p.RightMotorSpeed,
		Direction:  model.DrivingDirection(*p.Direction),
		Mode:       model.DrivingMode(*p.DrivingMode),
	}
	if p.DrivingAlgorithm != nil {
		cmd.Algorithm = model.DrivingAlgorithm(*p.DrivingAlgorithm)
	}
	if err := cmd.Validate(); err != nil {
		return model.MotorCommand{}, fmt.Errorf("decode structured payload: %w", err)
	}
	return cmd, nil
}
