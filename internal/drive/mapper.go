// Package drive turns a stick displacement into differential (tank) wheel speeds.
package drive

import (
	"math"

	"IotCarRC/internal/joystick"
	"IotCarRC/internal/model"
)

// Map linearly re-maps v from [inLo,inHi] to [outLo,outHi], rounding half away from zero.
// A degenerate input range maps everything to outLo.
func Map(v, inLo, inHi, outLo, outHi int) int {
	if inHi == inLo {
		return outLo
	}
	f := float64(v-inLo)*float64(outHi-outLo)/float64(inHi-inLo) + float64(outLo)
	return int(math.Round(f))
}

// Clamp saturates v into [lo,hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Output is the per-wheel result of the mapping.
type Output struct {
	Left      int
	Right     int
	Direction model.DrivingDirection
}

// Mapper applies differential steering with a linear speed scale.
type Mapper struct {
	MaxSpeed int
}

// NewMapper returns a Mapper scaling full deflection to maxSpeed.
// Values outside (0,255] fall back to 255.
func NewMapper(maxSpeed int) Mapper {
	if maxSpeed <= 0 || maxSpeed > model.MaxMotorSpeed {
		maxSpeed = model.MaxMotorSpeed
	}
	return Mapper{MaxSpeed: maxSpeed}
}

// Differential maps a displacement to wheel speeds. The vertical axis sets the
// common speed and direction; the horizontal axis is added to the outer wheel and
// subtracted from the inner one, so full side deflection spins in place.
func (m Mapper) Differential(d joystick.Displacement) Output {
	maxSpeed := m.MaxSpeed
	if maxSpeed <= 0 {
		maxSpeed = model.MaxMotorSpeed
	}

	dir := model.Forward
	if d.Y < 0 {
		dir = model.Backward
	}

	speed := Map(abs(d.Y), 0, joystick.DisplacementRange, 0, maxSpeed)
	offset := Map(abs(d.X), 0, joystick.DisplacementRange, 0, maxSpeed)

	outer := Clamp(speed+offset, 0, maxSpeed)
	inner := Clamp(speed-offset, 0, maxSpeed)
	if d.X < 0 {
		return Output{Left: inner, Right: outer, Direction: dir}
	}
	return Output{Left: outer, Right: inner, Direction: dir}
}

// Command builds the MotorCommand for d under the given mode and algorithm.
func (m Mapper) Command(d joystick.Displacement, mode model.DrivingMode, alg model.DrivingAlgorithm) model.MotorCommand {
	out := m.Differential(d)
	return model.MotorCommand{
		LeftSpeed:  out.Left,
		RightSpeed: out.Right,
		Direction:  out.Direction,
		Mode:       mode,
		Algorithm:  alg,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
