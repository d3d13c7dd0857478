// Package model defines the shared command structures exchanged between the
// operator controller and the vehicle.
package model

import (
	"fmt"
	"strings"
)

// DrivingDirection is the wheel rotation direction carried by a MotorCommand.
type DrivingDirection int

// Wire values of DrivingDirection.
const (
	Backward DrivingDirection = 0
	Forward  DrivingDirection = 1
)

func (d DrivingDirection) String() string {
	switch d {
	case Backward:
		return "BACKWARD"
	case Forward:
		return "FORWARD"
	}
	return fmt.Sprintf("DrivingDirection(%d)", int(d))
}

// Valid reports whether d is a known direction.
func (d DrivingDirection) Valid() bool { return d == Backward || d == Forward }

// DrivingMode selects who drives the vehicle.
type DrivingMode int

// Wire values of DrivingMode.
const (
	Remote     DrivingMode = 0
	Autonomous DrivingMode = 1
)

func (m DrivingMode) String() string {
	switch m {
	case Remote:
		return "REMOTE"
	case Autonomous:
		return "AUTONOMOUS"
	}
	return fmt.Sprintf("DrivingMode(%d)", int(m))
}

// Valid reports whether m is a known mode.
func (m DrivingMode) Valid() bool { return m == Remote || m == Autonomous }

// ParseDrivingMode accepts the names used by the UI and config files.
func ParseDrivingMode(s string) (DrivingMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "REMOTE":
		return Remote, nil
	case "AUTONOMOUS":
		return Autonomous, nil
	}
	return 0, fmt.Errorf("unknown driving mode %q", s)
}

// DrivingAlgorithm is a selector evaluated on the vehicle; the controller only forwards it.
type DrivingAlgorithm int

// Wire values of DrivingAlgorithm.
const (
	Simple   DrivingAlgorithm = 0
	Advanced DrivingAlgorithm = 1
	Complex  DrivingAlgorithm = 2
)

func (a DrivingAlgorithm) String() string {
	switch a {
	case Simple:
		return "SIMPLE"
	case Advanced:
		return "ADVANCED"
	case Complex:
		return "COMPLEX"
	}
	return fmt.Sprintf("DrivingAlgorithm(%d)", int(a))
}

// Valid reports whether a is a known algorithm.
func (a DrivingAlgorithm) Valid() bool { return a >= Simple && a <= Complex }

// ParseDrivingAlgorithm accepts the names used by the UI and config files.
func ParseDrivingAlgorithm(s string) (DrivingAlgorithm, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SIMPLE":
		return Simple, nil
	case "ADVANCED":
		return Advanced, nil
	case "COMPLEX":
		return Complex, nil
	}
	return 0, fmt.Errorf("unknown driving algorithm %q", s)
}

// MaxMotorSpeed is the upper bound of a wheel speed on the wire.
const MaxMotorSpeed = 255

// MotorCommand is a fully resolved continuous drive intent.
type MotorCommand struct {
	LeftSpeed  int
	RightSpeed int
	Direction  DrivingDirection
	Mode       DrivingMode
	Algorithm  DrivingAlgorithm
}

// Validate checks speed ranges and enum values.
func (c MotorCommand) Validate() error {
	if c.LeftSpeed < 0 || c.LeftSpeed > MaxMotorSpeed {
		return fmt.Errorf("left speed %d out of range [0,%d]", c.LeftSpeed, MaxMotorSpeed)
	}
	if c.RightSpeed < 0 || c.RightSpeed > MaxMotorSpeed {
		return fmt.Errorf("right speed %d out of range [0,%d]", c.RightSpeed, MaxMotorSpeed)
	}
	if !c.Direction.Valid() {
		return fmt.Errorf("invalid direction %d", int(c.Direction))
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("invalid driving mode %d", int(c.Mode))
	}
	if !c.Algorithm.Valid() {
		return fmt.Errorf("invalid driving algorithm %d", int(c.Algorithm))
	}
	return nil
}

// StopCommand returns a zero-speed command that keeps mode and algorithm.
func StopCommand(mode DrivingMode, alg DrivingAlgorithm) MotorCommand {
	return MotorCommand{Direction: Forward, Mode: mode, Algorithm: alg}
}
