package process

// Notes:
// - KillProcessGroup: only invalid and non-positive PIDs are exercised. Real
//   group kills are covered by the runner timeout test in the root package.
// - PID 0 must be a no-op: syscall.Kill(-0, SIGKILL) would hit our own group.

import (
	"os/exec"
	"testing"
)

// ---------------------------------------------------------------------------
// TestKillProcessGroup - Invalid PID Handling
// ---------------------------------------------------------------------------

func TestKillProcessGroup_InvalidPID(t *testing.T) {
	t.Parallel()

	KillProcessGroup(999999999)
}

func TestKillProcessGroup_NonPositivePID(t *testing.T) {
	t.Parallel()

	// Must return without signalling anything.
	KillProcessGroup(0)
	KillProcessGroup(-1)
}

// ---------------------------------------------------------------------------
// TestIsolate - SysProcAttr setup
// ---------------------------------------------------------------------------

func TestIsolate_Idempotent(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("true")
	Isolate(cmd)
	Isolate(cmd)
}
