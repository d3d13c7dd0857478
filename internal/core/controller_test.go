package core

import (
	"sync"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IotCarRC/internal/joystick"
	"IotCarRC/internal/model"
	"IotCarRC/internal/parser"
	"IotCarRC/internal/transmitter"
)

type fakeSender struct {
	mu   sync.Mutex
	sent [][]byte
	err  error
}

func (s *fakeSender) Send(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, append([]byte(nil), p...))
	return nil
}

func (s *fakeSender) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

func (s *fakeSender) Strings() []string {
	var out []string
	for _, p := range s.Sent() {
		out = append(out, string(p))
	}
	return out
}

type fakeGate struct{ ready bool }

func (g *fakeGate) Ready() bool { return g.ready }

var allProtocols = parser.Protocol{Structured: true, Opcode: true, AlgorithmField: true}

func newTestController(t *testing.T, proto parser.Protocol) (*Controller, *fakeSender) {
	t.Helper()
	s := &fakeSender{}
	c := NewController(ControllerConfig{Protocol: proto, MaxSpeed: 255}, s, nil)
	require.NoError(t, c.Resize(800, 400))
	return c, s
}

func TestController_TouchBeforeResize(t *testing.T) {
	c := NewController(ControllerConfig{Protocol: allProtocols}, &fakeSender{}, nil)
	_, err := c.Touch(joystick.TouchSample{X: 1, Y: 1})
	assert.ErrorIs(t, err, ErrNotSized)

	assert.ErrorIs(t, c.Resize(0, 400), joystick.ErrInvalidSurface)
}

func TestController_TouchSendsStructured(t *testing.T) {
	c, s := newTestController(t, allProtocols)

	res, err := c.Touch(joystick.TouchSample{X: 420, Y: 140})
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, r2.Point{X: 420, Y: 140}, res.Knob)
	assert.Equal(t, joystick.Displacement{X: 20, Y: 60}, res.Displacement)
	assert.Equal(t, 204, res.Command.LeftSpeed)
	assert.Equal(t, 102, res.Command.RightSpeed)

	res, err = c.Touch(joystick.TouchSample{X: 400, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, r2.Point{X: 400, Y: 100}, res.Knob)

	assert.Equal(t, []string{
		`{"left_motor_speed":204,"right_motor_speed":102,"direction":1,"driving_mode":0,"driving_algorithm":0}`,
		`{"left_motor_speed":255,"right_motor_speed":255,"direction":1,"driving_mode":0,"driving_algorithm":0}`,
	}, s.Strings())
}

func TestController_TouchRelease(t *testing.T) {
	c, s := newTestController(t, allProtocols)

	res, err := c.Touch(joystick.TouchSample{X: 450, Y: 150, Release: true})
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, r2.Point{X: 400, Y: 200}, res.Knob)
	assert.Equal(t, []string{
		`{"left_motor_speed":0,"right_motor_speed":0,"direction":1,"driving_mode":0,"driving_algorithm":0}`,
	}, s.Strings())
}

func TestController_AlgorithmCarried(t *testing.T) {
	c, s := newTestController(t, allProtocols)
	require.NoError(t, c.SetAlgorithm(model.Complex))
	assert.Error(t, c.SetAlgorithm(model.DrivingAlgorithm(7)))

	_, err := c.Touch(joystick.TouchSample{X: 350, Y: 250})
	require.NoError(t, err)
	require.Len(t, s.Sent(), 1)

	cmd, err := parser.StructuredCodec{WithAlgorithm: true}.Decode(s.Sent()[0])
	require.NoError(t, err)
	assert.Equal(t, model.Complex, cmd.Algorithm)
	assert.Equal(t, model.Backward, cmd.Direction)
}

func TestController_ButtonsAndRelease(t *testing.T) {
	c, s := newTestController(t, allProtocols)

	require.NoError(t, c.Press(model.OpForward))
	require.NoError(t, c.Press(model.OpLeft))
	require.NoError(t, c.Release())
	require.NoError(t, c.Stop())

	assert.Equal(t, [][]byte{{0b011}, {0b010}, {0b101}, {0b101}}, s.Sent())

	assert.Error(t, c.Press(model.OpSetAutonomous))
	assert.Error(t, c.Press(model.Opcode(0)))
	assert.Len(t, s.Sent(), 4)
}

func TestController_AutonomousDisablesSteering(t *testing.T) {
	c, s := newTestController(t, allProtocols)

	require.NoError(t, c.SetMode(model.Autonomous))
	assert.Equal(t, [][]byte{{0b111}}, s.Sent())

	res, err := c.Touch(joystick.TouchSample{X: 420, Y: 140})
	require.NoError(t, err)
	assert.False(t, res.Handled)
	assert.Equal(t, r2.Point{X: 400, Y: 200}, res.Knob)

	require.NoError(t, c.Press(model.OpRight))
	require.NoError(t, c.Release())
	assert.Len(t, s.Sent(), 1)

	// stop always goes out
	require.NoError(t, c.Press(model.OpStop))
	require.NoError(t, c.SetMode(model.Remote))
	assert.Equal(t, [][]byte{{0b111}, {0b101}, {0b110}}, s.Sent())

	assert.Error(t, c.SetMode(model.DrivingMode(5)))
}

func TestController_StructuredOnly(t *testing.T) {
	c, s := newTestController(t, parser.Protocol{Structured: true})

	assert.ErrorIs(t, c.Press(model.OpForward), ErrProtocolDisabled)
	require.NoError(t, c.SetMode(model.Autonomous))
	require.NoError(t, c.Stop())

	assert.Equal(t, []string{
		`{"left_motor_speed":0,"right_motor_speed":0,"direction":1,"driving_mode":1}`,
		`{"left_motor_speed":0,"right_motor_speed":0,"direction":1,"driving_mode":1}`,
	}, s.Strings())
}

func TestController_OpcodeOnly(t *testing.T) {
	c, s := newTestController(t, parser.Protocol{Opcode: true})

	_, err := c.Touch(joystick.TouchSample{X: 420, Y: 140})
	assert.ErrorIs(t, err, ErrProtocolDisabled)
	require.NoError(t, c.Press(model.OpBackward))
	assert.Equal(t, [][]byte{{0b000}}, s.Sent())
}

func TestController_DropUntilReady(t *testing.T) {
	s := &fakeSender{}
	gate := &fakeGate{}
	c := NewController(ControllerConfig{Protocol: allProtocols, DropUntilReady: true}, s, gate)

	require.NoError(t, c.Press(model.OpForward))
	assert.Empty(t, s.Sent())
	assert.Equal(t, uint64(1), c.Status().Gated)

	gate.ready = true
	require.NoError(t, c.Press(model.OpForward))
	assert.Len(t, s.Sent(), 1)
}

func TestController_BestEffortWhenNotReady(t *testing.T) {
	s := &fakeSender{}
	c := NewController(ControllerConfig{Protocol: allProtocols}, s, &fakeGate{})

	require.NoError(t, c.Press(model.OpForward))
	assert.Len(t, s.Sent(), 1)
	assert.Zero(t, c.Status().Gated)
}

func TestController_SendErrors(t *testing.T) {
	c, s := newTestController(t, allProtocols)

	s.err = transmitter.ErrNotConfigured
	_, err := c.Touch(joystick.TouchSample{X: 420, Y: 140})
	assert.ErrorIs(t, err, transmitter.ErrNotConfigured)
	assert.ErrorIs(t, c.Press(model.OpForward), transmitter.ErrNotConfigured)

	s.err = transmitter.ErrQueueFull
	assert.NoError(t, c.Press(model.OpForward))

	s.err = transmitter.ErrClosed
	assert.ErrorIs(t, c.Stop(), transmitter.ErrClosed)
}

func TestController_Status(t *testing.T) {
	c, _ := newTestController(t, allProtocols)
	require.NoError(t, c.SetMode(model.Autonomous))
	require.NoError(t, c.SetAlgorithm(model.Advanced))

	assert.Equal(t, ControllerStatus{
		Mode:      "AUTONOMOUS",
		Algorithm: "ADVANCED",
		Sized:     true,
		Revision:  "opcode+structured-v2",
	}, c.Status())
}
