//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// Isolate starts cmd in its own process group so that a timeout can take
// down texfot, xelatex and any helpers they spawn in one signal.
func Isolate(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// KillProcessGroup sends SIGKILL to the process group led by pid.
// Errors are ignored: the group may already be gone.
func KillProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
