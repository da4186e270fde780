package texbot

import (
	"fmt"
	"strings"
)

// Mode selects how the markup is placed into the document template.
type Mode int

const (
	// ModeInline uses the markup as written; the user supplies their own
	// math delimiters ("$x = 7$", "\[ ... \]").
	ModeInline Mode = iota

	// ModeDisplayed wraps the markup in a display-style math environment.
	ModeDisplayed
)

// String returns the lowercase mode name used in config, flags and logs.
func (m Mode) String() string {
	switch m {
	case ModeInline:
		return "inline"
	case ModeDisplayed:
		return "displayed"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "inline"/"tex" and "displayed"/"display"/"eqn".
// The empty string maps to ModeInline.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inline", "tex":
		return ModeInline, nil
	case "displayed", "display", "eqn":
		return ModeDisplayed, nil
	default:
		return ModeInline, fmt.Errorf("invalid mode %q (must be inline or displayed)", s)
	}
}

// Request is a single render request. It is immutable once built.
type Request struct {
	Markup string
	Mode   Mode
}

// Body returns the text substituted into the document template.
func (r Request) Body() string {
	if r.Mode == ModeDisplayed {
		return "$\\displaystyle\n" + r.Markup + "\n$"
	}
	return r.Markup
}

// ArtifactSet holds the on-disk outputs for one cache key.
// Document and Source are empty for direct renderers, which only write Image.
type ArtifactSet struct {
	Key      CacheKey
	Source   string // {workdir}/{key}.tex
	Document string // {workdir}/{key}.pdf
	Image    string // {workdir}/{key}.png
}

// State is a pipeline state. Deliver and ReportError are terminal.
type State int

const (
	StateReceived State = iota
	StateCacheCheck
	StateCompiling
	StateRasterizing
	StateRendering
	StateDeliver
	StateReportError
)

var stateNames = [...]string{
	StateReceived:    "received",
	StateCacheCheck:  "cache_check",
	StateCompiling:   "compiling",
	StateRasterizing: "rasterizing",
	StateRendering:   "rendering",
	StateDeliver:     "deliver",
	StateReportError: "report_error",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Outcome is what the pipeline hands to the delivery collaborator.
// Exactly one of Image or Report is set. Err carries the full failure detail
// for operator logs and must never be shown to chat users.
type Outcome struct {
	Key      CacheKey
	State    State
	Image    string
	Report   *Report
	CacheHit bool
	// Shared is true when this request waited on an identical in-flight render.
	Shared bool
	Err    error
}

// Delivered reports whether the outcome carries an image.
func (o Outcome) Delivered() bool {
	return o.State == StateDeliver && o.Image != ""
}
