// Package joystick converts raw touch coordinates on the input surface into a
// clamped knob position and a normalized stick displacement.
package joystick

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// NearBaseMargin is how far outside the base circle a touch may land and still
// move the stick.
const NearBaseMargin = 300.0

// DisplacementRange is the magnitude of a fully deflected axis.
const DisplacementRange = 100

// ErrInvalidSurface is returned for a surface without positive width and height.
var ErrInvalidSurface = errors.New("joystick: invalid surface size")

// Dimensions of the joystick on its surface.
type Dimensions struct {
	Center     r2.Point
	BaseRadius float64
	KnobRadius float64
}

// NewDimensions derives the joystick geometry from the surface size.
func NewDimensions(width, height float64) (Dimensions, error) {
	if width <= 0 || height <= 0 {
		return Dimensions{}, fmt.Errorf("%w: %gx%g", ErrInvalidSurface, width, height)
	}
	side := math.Min(width, height)
	return Dimensions{
		Center:     r2.Point{X: width / 2, Y: height / 2},
		BaseRadius: side / 4,
		KnobRadius: side / 6,
	}, nil
}

// TouchSample is a single input observation in surface coordinates.
type TouchSample struct {
	X, Y    float64
	Release bool
}

// Displacement is the stick offset from center, each axis in [-100,100].
// Positive Y is "up" on the surface.
type Displacement struct {
	X, Y int
}

// Neutral reports whether the stick is centered.
func (d Displacement) Neutral() bool { return d.X == 0 && d.Y == 0 }

// Result is what the renderer and the drive mapper need from one sample.
type Result struct {
	Knob         r2.Point
	Displacement Displacement
	// Active is false when the sample left the stick centered (release or far touch).
	Active bool
}

// NearBase reports whether p is close enough to the base to move the stick.
func (d Dimensions) NearBase(p r2.Point) bool {
	return p.Sub(d.Center).Norm() <= d.BaseRadius+NearBaseMargin
}

// Resolve clamps the sample onto the base circle and computes the displacement.
func Resolve(dim Dimensions, s TouchSample) Result {
	touch := r2.Point{X: s.X, Y: s.Y}
	if s.Release || !dim.NearBase(touch) {
		return Result{Knob: dim.Center}
	}

	v := touch.Sub(dim.Center)
	dist := v.Norm()
	if dist == 0 {
		return Result{Knob: dim.Center, Active: true}
	}

	knob := touch
	if dist >= dim.BaseRadius {
		knob = dim.Center.Add(v.Mul(dim.BaseRadius / dist))
	}

	off := knob.Sub(dim.Center)
	return Result{
		Knob: knob,
		Displacement: Displacement{
			X: normalize(off.X, dim.BaseRadius),
			Y: -normalize(off.Y, dim.BaseRadius),
		},
		Active: true,
	}
}

// normalize scales an offset to [-100,100]; the clamp only absorbs float error at the rim.
func normalize(offset, radius float64) int {
	v := int(math.Round(offset / radius * DisplacementRange))
	if v > DisplacementRange {
		return DisplacementRange
	}
	if v < -DisplacementRange {
		return -DisplacementRange
	}
	return v
}
