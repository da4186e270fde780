package texbot

import (
	"errors"
	"fmt"
)

// Sentinel errors for library operations.
var (
	// ErrToolchain covers toolchain failures that carry no useful diagnostics
	// for the user: missing binaries, I/O errors, unexpected process faults.
	ErrToolchain = errors.New("toolchain invocation failed")

	// ErrRasterize indicates pdfcrop or convert failed or produced no image.
	ErrRasterize = errors.New("rasterization failed")

	// ErrEmptyOutput indicates a stage exited cleanly but left a missing or
	// zero-byte file behind.
	ErrEmptyOutput = errors.New("output file missing or empty")

	// ErrTimeout indicates an external invocation exceeded its deadline.
	ErrTimeout = errors.New("render timed out")

	// ErrPasteUpload indicates the paste service could not store a log.
	ErrPasteUpload = errors.New("paste upload failed")

	// ErrRemoteRender indicates the remote renderer returned no usable image.
	ErrRemoteRender = errors.New("remote render failed")

	// Browser renderer errors.
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageLoad       = errors.New("failed to load page")

	// Template errors.
	ErrTemplatePlaceholder = errors.New("template has no placeholder")

	// ErrInvalidWorkDir indicates an empty artifact directory.
	ErrInvalidWorkDir = errors.New("work directory cannot be empty")
)

// CompileError is returned when the LaTeX compiler exits with a non-zero
// status. Log holds the captured output, normalized but otherwise verbatim.
type CompileError struct {
	ExitCode int
	Log      string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("latex compile failed (exit %d)", e.ExitCode)
}

// IsCompileError reports whether err wraps a *CompileError and returns it.
func IsCompileError(err error) (*CompileError, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
