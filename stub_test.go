package texbot

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// exitError mimics *exec.ExitError for stub runners.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e *exitError) ExitCode() int { return e.code }

type stubCall struct {
	Dir  string
	Name string
	Args []string
}

// stubHandler runs in place of a binary. It may write files under dir.
type stubHandler func(ctx context.Context, dir string, args []string) (string, error)

// stubRunner records calls and dispatches them by binary name. Unknown
// binaries behave as if missing from PATH.
type stubRunner struct {
	mu       sync.Mutex
	calls    []stubCall
	handlers map[string]stubHandler
}

var _ CommandRunner = (*stubRunner)(nil)

func newStubRunner(handlers map[string]stubHandler) *stubRunner {
	return &stubRunner{handlers: handlers}
}

func (s *stubRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, stubCall{Dir: dir, Name: name, Args: append([]string(nil), args...)})
	h := s.handlers[name]
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if h == nil {
		return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
	}
	return h(ctx, dir, args)
}

func (s *stubRunner) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

func (s *stubRunner) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubRunner) last(name string) (stubCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].Name == name {
			return s.calls[i], true
		}
	}
	return stubCall{}, false
}

// writeOut writes content to path, resolving it against dir when relative.
func writeOut(dir, path, content string) error {
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// okXelatex writes {stem}.pdf next to the .tex argument.
func okXelatex(_ context.Context, dir string, args []string) (string, error) {
	src := args[len(args)-1]
	return "This is XeTeX\nOutput written on x.pdf\n", writeOut(dir, strings.TrimSuffix(src, ".tex")+".pdf", "%PDF-1.5 stub")
}

// failXelatex behaves like xelatex on an unmatched brace.
func failXelatex(log string) stubHandler {
	return func(context.Context, string, []string) (string, error) {
		return log, &exitError{code: 1}
	}
}

// okPdfcrop writes the output argument.
func okPdfcrop(_ context.Context, dir string, args []string) (string, error) {
	return "", writeOut(dir, args[len(args)-1], "%PDF-1.5 cropped")
}

// okConvert writes a non-empty image to the output argument.
func okConvert(_ context.Context, dir string, args []string) (string, error) {
	return "", writeOut(dir, args[len(args)-1], "\x89PNG stub")
}

// emptyConvert exits cleanly but writes a zero-byte image.
func emptyConvert(_ context.Context, dir string, args []string) (string, error) {
	return "", writeOut(dir, args[len(args)-1], "")
}

// okToolchain returns handlers for a fully working toolchain.
func okToolchain() map[string]stubHandler {
	return map[string]stubHandler{
		"xelatex": okXelatex,
		"pdfcrop": okPdfcrop,
		"convert": okConvert,
	}
}

// stubUploader records uploads and returns a fixed link or error.
type stubUploader struct {
	mu    sync.Mutex
	texts []string
	link  string
	err   error
}

func (u *stubUploader) Upload(_ context.Context, text string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.texts = append(u.texts, text)
	return u.link, u.err
}

func (u *stubUploader) calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.texts)
}
