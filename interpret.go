package texbot

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// ReportThreshold is the longest sanitized log, in characters, shown inline.
const ReportThreshold = 300

// User-facing texts for failures that carry no diagnostics.
const (
	GenericMessage = "!!! Error! Sadly, I can't tell you exactly what went wrong..."
	TimeoutMessage = "!!! Error! Rendering took too long and was stopped."
	NothingMessage = "!!! Error! There was nothing to render."
)

const truncatedMarker = "\n[... log truncated]"

// ReportKind says how a failure is presented.
type ReportKind int

const (
	// ReportInline carries the whole sanitized log.
	ReportInline ReportKind = iota
	// ReportPaste carries a link to the uploaded log.
	ReportPaste
	// ReportTruncated carries the head of a long log whose upload failed.
	ReportTruncated
	// ReportGeneric carries a fixed, non-diagnostic message.
	ReportGeneric
)

func (k ReportKind) String() string {
	switch k {
	case ReportInline:
		return "inline"
	case ReportPaste:
		return "paste"
	case ReportTruncated:
		return "truncated"
	case ReportGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// Report is the user-visible side of a failed render.
type Report struct {
	Kind ReportKind
	Text string
	Link string
}

// Message formats the report for a chat channel.
func (r Report) Message() string {
	switch r.Kind {
	case ReportInline, ReportTruncated:
		return "```Error:\n" + r.Text + "```"
	case ReportPaste:
		return "Error log: " + r.Link
	default:
		return r.Text
	}
}

// GenericReport maps a non-compile failure to a fixed message. The error
// itself is never shown.
func GenericReport(err error) Report {
	switch {
	case errors.Is(err, ErrTimeout):
		return Report{Kind: ReportGeneric, Text: TimeoutMessage}
	case errors.Is(err, ErrEmptyOutput) && !errors.Is(err, ErrRasterize):
		return Report{Kind: ReportGeneric, Text: NothingMessage}
	default:
		return Report{Kind: ReportGeneric, Text: GenericMessage}
	}
}

// Uploader stores a long text and returns a link to it.
type Uploader interface {
	Upload(ctx context.Context, text string) (string, error)
}

// Sanitize strips the engine banner (first line, when there is more than
// one) and every line mentioning key, which only carries file-name noise.
// Trailing blank lines are removed.
func Sanitize(log string, key CacheKey) string {
	lines := strings.Split(log, "\n")
	if len(lines) > 1 {
		lines = lines[1:]
	}

	k := key.String()
	kept := lines[:0]
	for _, line := range lines {
		if k != "" && strings.Contains(line, k) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimRight(strings.Join(kept, "\n"), " \t\n")
}

// Interpreter turns compiler logs into reports, offloading long ones.
type Interpreter struct {
	// Uploader may be nil, in which case long logs are always truncated.
	Uploader  Uploader
	Threshold int
	Logger    logrus.FieldLogger
}

// NewInterpreter creates an Interpreter with the default threshold.
func NewInterpreter(u Uploader, logger logrus.FieldLogger) *Interpreter {
	if logger == nil {
		logger = discardLogger()
	}
	return &Interpreter{Uploader: u, Threshold: ReportThreshold, Logger: logger}
}

// Interpret sanitizes log and picks a presentation. A log of exactly
// Threshold characters is inlined; one more goes to the paste service, and a
// failed upload falls back to truncated inline text. It never fails.
func (i *Interpreter) Interpret(ctx context.Context, log string, key CacheKey) Report {
	text := Sanitize(log, key)
	if text == "" {
		return Report{Kind: ReportGeneric, Text: GenericMessage}
	}

	limit := i.Threshold
	if limit <= 0 {
		limit = ReportThreshold
	}
	if utf8.RuneCountInString(text) <= limit {
		return Report{Kind: ReportInline, Text: text}
	}

	if i.Uploader != nil {
		link, err := i.Uploader.Upload(ctx, text)
		if err == nil {
			return Report{Kind: ReportPaste, Link: link}
		}
		i.Logger.WithFields(logrus.Fields{"key": key.String(), "error": err}).Warn("paste upload failed, truncating log")
	}
	return Report{Kind: ReportTruncated, Text: truncateRunes(text, limit) + truncatedMarker}
}

func truncateRunes(s string, n int) string {
	count := 0
	for idx := range s {
		if count == n {
			return s[:idx]
		}
		count++
	}
	return s
}
