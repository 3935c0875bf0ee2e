//go:build windows

package jobs

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

// Windows has no process groups with signal semantics; both paths are a
// hard kill of the direct child.
func signalProcessGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
