//go:build !windows

package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"
)

func TestIsolateProcess_Unix(t *testing.T) {
	cmd := exec.Command("echo", "hello")
	isolateProcess(cmd)

	if cmd.SysProcAttr == nil || !cmd.SysProcAttr.Setpgid {
		t.Fatal("expected the command in its own process group")
	}
	if cmd.Cancel == nil {
		t.Error("Cancel function should be set")
	}
}

func TestIsolateProcess_CancelKillsGroup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "sh", "-c", "sleep 30 & wait")
	isolateProcess(cmd)
	if err := cmd.Start(); err != nil {
		t.Skipf("sh unavailable: %v", err)
	}

	cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected the cancelled command to report an error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("process group survived cancellation")
	}

	// A second cancel on an exited group is not an error.
	if err := cmd.Cancel(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		t.Errorf("unexpected error cancelling an exited group: %v", err)
	}
}
