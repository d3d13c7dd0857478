package core

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IotCarRC/internal/joystick"
	"IotCarRC/internal/model"
	"IotCarRC/internal/transmitter"
)

type fakeMotor struct {
	mu      sync.Mutex
	applied []model.MotorCommand
	err     error
	closed  bool
	closes  int
	notify  chan model.MotorCommand
}

func newFakeMotor() *fakeMotor { return &fakeMotor{notify: make(chan model.MotorCommand, 16)} }

func (m *fakeMotor) Apply(cmd model.MotorCommand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.applied = append(m.applied, cmd)
	m.notify <- cmd
	return nil
}

func (m *fakeMotor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closes++
	return nil
}

func TestVehicle_HandleOpcodes(t *testing.T) {
	v := NewVehicle("car", "127.0.0.1:0", allProtocols, nil)

	tests := []struct {
		name string
		in   byte
		want model.MotorCommand
	}{
		{"forward", 0b011, model.MotorCommand{LeftSpeed: 255, RightSpeed: 255, Direction: model.Forward}},
		{"backward", 0b000, model.MotorCommand{LeftSpeed: 255, RightSpeed: 255, Direction: model.Backward}},
		{"left pivots on the left wheel", 0b010, model.MotorCommand{LeftSpeed: 0, RightSpeed: 255, Direction: model.Forward}},
		{"right pivots on the right wheel", 0b001, model.MotorCommand{LeftSpeed: 255, RightSpeed: 0, Direction: model.Forward}},
		{"stop", 0b101, model.MotorCommand{Direction: model.Forward}},
		{"autonomous", 0b111, model.MotorCommand{Direction: model.Forward, Mode: model.Autonomous}},
		{"forward keeps autonomous mode", 0b011, model.MotorCommand{LeftSpeed: 255, RightSpeed: 255, Direction: model.Forward, Mode: model.Autonomous}},
		{"remote", 0b110, model.MotorCommand{Direction: model.Forward, Mode: model.Remote}},
	}
	for _, tt := range tests {
		got, err := v.Handle([]byte{tt.in})
		require.NoError(t, err, tt.name)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%s: mismatch (-want +got):\n%s", tt.name, diff)
		}
	}
	assert.Equal(t, model.Remote, v.Last().Mode)
}

func TestVehicle_HandleStructured(t *testing.T) {
	motor := newFakeMotor()
	v := NewVehicle("car", "127.0.0.1:0", allProtocols, motor)

	got, err := v.Handle([]byte(`{"left_motor_speed":204,"right_motor_speed":102,"direction":1,"driving_mode":1,"driving_algorithm":2}`))
	require.NoError(t, err)
	want := model.MotorCommand{LeftSpeed: 204, RightSpeed: 102, Direction: model.Forward, Mode: model.Autonomous, Algorithm: model.Complex}
	assert.Equal(t, want, got)
	assert.Equal(t, []model.MotorCommand{want}, motor.applied)

	// later opcodes keep the mode and algorithm from the structured command
	got, err = v.Handle([]byte{0b101})
	require.NoError(t, err)
	assert.Equal(t, model.StopCommand(model.Autonomous, model.Complex), got)
}

func TestVehicle_HandleRejects(t *testing.T) {
	motor := newFakeMotor()
	v := NewVehicle("car", "127.0.0.1:0", allProtocols, motor)

	for _, in := range [][]byte{
		{0b100},
		[]byte(`{"left_motor_speed":1}`),
		[]byte(`not json`),
	} {
		_, err := v.Handle(in)
		assert.Error(t, err, "%q", in)
	}
	assert.Empty(t, motor.applied)

	motor.err = errors.New("serial gone")
	_, err := v.Handle([]byte{0b101})
	assert.EqualError(t, err, "serial gone")
}

func TestVehicle_StopClosesMotor(t *testing.T) {
	motor := newFakeMotor()
	v := NewVehicle("car", "127.0.0.1:0", allProtocols, motor)
	require.NoError(t, v.Start())
	require.NotNil(t, v.Addr())

	require.NoError(t, v.Stop())
	require.NoError(t, v.Stop())
	assert.True(t, motor.closed)
}

func TestVehicle_ConcurrentStop(t *testing.T) {
	motor := newFakeMotor()
	v := NewVehicle("car", "127.0.0.1:0", allProtocols, motor)
	require.NoError(t, v.Start())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, v.Stop())
		}()
	}
	wg.Wait()

	motor.mu.Lock()
	defer motor.mu.Unlock()
	assert.Equal(t, 1, motor.closes)
}

func TestVehicle_ReceivesFromController(t *testing.T) {
	motor := newFakeMotor()
	v := NewVehicle("car", "127.0.0.1:0", allProtocols, motor)
	require.NoError(t, v.Start())
	defer v.Stop()

	tx, err := transmitter.New(transmitter.Config{Port: v.Addr().(*net.UDPAddr).Port})
	require.NoError(t, err)
	defer tx.Close()
	require.NoError(t, tx.SetDestination("127.0.0.1"))
	tx.Start(context.Background())

	c := NewController(ControllerConfig{Protocol: allProtocols}, tx, nil)
	require.NoError(t, c.Resize(800, 400))
	_, err = c.Touch(joystick.TouchSample{X: 420, Y: 140})
	require.NoError(t, err)

	select {
	case got := <-motor.notify:
		assert.Equal(t, model.MotorCommand{LeftSpeed: 204, RightSpeed: 102, Direction: model.Forward}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("vehicle did not receive the drive command")
	}

	require.NoError(t, c.Release())
	select {
	case got := <-motor.notify:
		assert.Equal(t, model.StopCommand(model.Remote, model.Simple), got)
	case <-time.After(2 * time.Second):
		t.Fatal("vehicle did not receive STOP")
	}
	assert.Equal(t, uint64(2), v.Stats().Received)
}
