//go:build windows

package harness

import (
	"os"
	"os/exec"
)

func setProcGroup(cmd *exec.Cmd) {}

// terminate has no graceful equivalent on Windows; the caller falls
// through to kill after the grace period.
func terminate(cmd *exec.Cmd) error {
	return nil
}

func kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func exitStatus(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	return state.ExitCode()
}
