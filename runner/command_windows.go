//go:build windows

package runner

import (
	"os/exec"
	"syscall"
)

// isolateProcess detaches the test command from the console's Ctrl+C group.
// Cancelling a run kills the process itself.
func isolateProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
	cmd.Cancel = func() error {
		return cmd.Process.Kill()
	}
}
