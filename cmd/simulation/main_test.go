package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IotCarRC/internal/model"
)

// carListener stands in for the vehicle and returns a config file aimed at it.
func carListener(t *testing.T) (net.PacketConn, string) {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	port := conn.LocalAddr().(*net.UDPAddr).Port
	path := filepath.Join(t.TempDir(), "config.yml")
	yml := fmt.Sprintf("transmitter:\n  host: 127.0.0.1\n  port: %d\n", port)
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	return conn, path
}

func drain(t *testing.T, conn net.PacketConn) [][]byte {
	t.Helper()
	var got [][]byte
	buf := make([]byte, 256)
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return got
		}
		got = append(got, append([]byte(nil), buf[:n]...))
	}
}

func TestRun_EndsWithStop(t *testing.T) {
	conn, cfg := carListener(t)

	err := run(context.Background(), options{cfgPath: cfg, host: "127.0.0.1", interval: time.Millisecond, loops: 1})
	require.NoError(t, err)

	got := drain(t, conn)
	require.NotEmpty(t, got)
	stop, err := model.OpStop.Code()
	require.NoError(t, err)
	assert.Equal(t, []byte{stop}, got[len(got)-1])
}

func TestRun_InterruptedStillStops(t *testing.T) {
	conn, cfg := carListener(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, run(ctx, options{cfgPath: cfg, host: "127.0.0.1", interval: time.Millisecond, loops: 0}))

	got := drain(t, conn)
	require.NotEmpty(t, got)
	stop, err := model.OpStop.Code()
	require.NoError(t, err)
	assert.Equal(t, []byte{stop}, got[len(got)-1])
}

func TestRun_Errors(t *testing.T) {
	err := run(context.Background(), options{cfgPath: filepath.Join(t.TempDir(), "missing.yml"), interval: time.Millisecond})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, cfg := carListener(t)
	err = run(context.Background(), options{cfgPath: cfg, host: "bad host!", interval: time.Millisecond, loops: 1})
	require.Error(t, err)
}
