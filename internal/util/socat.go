package util

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// SocatManager manages lifecycle of socat-created virtual serial pairs, used to
// run the vehicle without a motor board attached.
type SocatManager struct {
	mu     sync.Mutex
	cmds   []*exec.Cmd
	links  []string
	closed bool
}

// NewSocatManager initializes an empty manager.
func NewSocatManager() *SocatManager {
	return &SocatManager{}
}

// CreatePair starts a socat process that links two PTYs (bidirectional) and
// waits up to timeout for both links to appear.
func (m *SocatManager) CreatePair(left, right string, timeout time.Duration) error {
	if _, err := exec.LookPath("socat"); err != nil {
		return fmt.Errorf("socat not available: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("socat manager already cleaned up")
	}
	cmd := exec.Command(
		"socat", "-d", "-d",
		fmt.Sprintf("pty,raw,echo=0,link=%s", left),
		fmt.Sprintf("pty,raw,echo=0,link=%s", right),
	)
	if err := cmd.Start(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to start socat: %w", err)
	}
	m.cmds = append(m.cmds, cmd)
	m.links = append(m.links, left, right)
	m.mu.Unlock()

	Info("[virt-serial] started socat (pid=%d): %s <-> %s", cmd.Process.Pid, left, right)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return waitForLinks(ctx, left, right)
}

func waitForLinks(ctx context.Context, paths ...string) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		missing := ""
		for _, p := range paths {
			if _, err := os.Lstat(p); err != nil {
				missing = p
				break
			}
		}
		if missing == "" {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("virtual serial link %s not created: %w", missing, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Cleanup stops all socat processes and removes created links.
func (m *SocatManager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true

	for _, cmd := range m.cmds {
		if cmd.Process != nil {
			Debug("[virt-serial] killing socat pid=%d", cmd.Process.Pid)
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
	}

	for _, path := range m.links {
		if _, err := os.Lstat(path); err == nil {
			_ = os.Remove(path)
			Debug("[virt-serial] removed link: %s", path)
		}
	}

	Info("[virt-serial] cleanup complete (%d pairs)", len(m.links)/2)
}
