package texbot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/alnah/go-texbot/internal/process"
)

// CommandRunner abstracts command execution to enable testing without real
// subprocesses. Arguments are passed as a list and never through a shell.
type CommandRunner interface {
	// Run executes name with args in dir and returns combined stdout/stderr.
	// A non-zero exit yields an error implementing ExitCode() int.
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

// waitDelay bounds how long Run waits for output pipes after a kill.
const waitDelay = 2 * time.Second

// ExecRunner implements CommandRunner using os/exec.
// Each child runs in its own process group; when ctx is done the whole group
// is killed, so a wedged xelatex cannot outlive its request.
type ExecRunner struct{}

// Compile-time interface check.
var _ CommandRunner = (*ExecRunner)(nil)

// Run implements CommandRunner.
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- binary names come from operator config
	cmd.Dir = dir
	// No stdin: TeX reads EOF instead of waiting on a prompt.
	cmd.Stdin = nil

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	process.Isolate(cmd)
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			process.KillProcessGroup(cmd.Process.Pid)
		}
		return nil
	}
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return out.String(), fmt.Errorf("%w: %s", ErrTimeout, name)
		}
		return out.String(), ctxErr
	}
	return out.String(), err
}

// absPath makes path absolute against the process working directory. Children
// run inside the work dir, so any path handed to them as an argument must not
// be relative to the parent's cwd. On failure path is returned unchanged.
func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// exitCode extracts the exit status from a runner error.
func exitCode(err error) (int, bool) {
	var ec interface{ ExitCode() int }
	if errors.As(err, &ec) {
		return ec.ExitCode(), true
	}
	return 0, false
}

// runStage applies the stage timeout and runs one external command.
func runStage(ctx context.Context, r CommandRunner, timeout time.Duration, dir, name string, args ...string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.Run(ctx, dir, name, args...)
}
