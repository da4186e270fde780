package texbot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-texbot/internal/assets"
	"github.com/alnah/go-texbot/internal/fileutil"
)

// Compiler turns a template body into a PDF for key and returns its path.
type Compiler interface {
	Compile(ctx context.Context, body string, key CacheKey) (string, error)
}

// Default toolchain settings.
const (
	DefaultCompilerBinary = "xelatex"
	DefaultTexfotBinary   = "texfot"
	DefaultStageTimeout   = 30 * time.Second
)

// texfotFilters drops the noise texfot would otherwise pass through, leaving
// only the lines that explain a failure.
var texfotFilters = []string{
	"--ignore", "Warning",
	"--ignore", "Output written",
	"--ignore", "This is XeTeX",
	"--ignore", "No pages",
	"--no-stderr",
}

// LatexCompiler compiles documents by invoking a TeX engine in the work dir.
// The user body only ever reaches the generated .tex file; it is never part
// of a command line.
type LatexCompiler struct {
	Runner    CommandRunner
	Templates assets.TemplateLoader
	Template  string
	Dir       string
	Binary    string
	ExtraArgs []string
	// Texfot wraps the engine in texfot to keep the log short.
	Texfot       bool
	TexfotBinary string
	Timeout      time.Duration
}

var _ Compiler = (*LatexCompiler)(nil)

// NewLatexCompiler creates a compiler writing into dir, using the embedded
// default template and the real process runner.
func NewLatexCompiler(dir string) *LatexCompiler {
	return &LatexCompiler{
		Runner:       &ExecRunner{},
		Templates:    assets.NewEmbeddedLoader(),
		Template:     assets.DefaultTemplateName,
		Dir:          absPath(dir),
		Binary:       DefaultCompilerBinary,
		TexfotBinary: DefaultTexfotBinary,
		Timeout:      DefaultStageTimeout,
	}
}

// Compile writes {key}.tex and runs the engine on it.
//
// A non-zero exit yields *CompileError carrying the log. A missing binary or
// I/O failure yields ErrToolchain, an expired deadline ErrTimeout, and a clean
// exit that produced no PDF ErrEmptyOutput.
func (c *LatexCompiler) Compile(ctx context.Context, body string, key CacheKey) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Loaded per compile so template edits apply without a restart.
	tmpl, err := c.Templates.LoadTemplate(c.Template)
	if err != nil {
		return "", fmt.Errorf("%w: loading template %q: %w", ErrToolchain, c.Template, err)
	}
	doc, err := assets.Fill(tmpl, body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTemplatePlaceholder, err)
	}

	srcName := key.String() + ".tex"
	if err := os.WriteFile(filepath.Join(c.Dir, srcName), []byte(doc), 0o640); err != nil { // #nosec G306 -- artifacts are served read-only
		return "", fmt.Errorf("%w: writing source: %w", ErrToolchain, err)
	}

	name, args := c.command(srcName)
	out, err := runStage(ctx, c.Runner, c.Timeout, c.Dir, name, args...)
	if err != nil {
		if errors.Is(err, ErrTimeout) || ctx.Err() != nil {
			return "", err
		}
		if code, ok := exitCode(err); ok && code > 0 {
			return "", &CompileError{ExitCode: code, Log: normalizeLog(out)}
		}
		return "", fmt.Errorf("%w: %s: %w", ErrToolchain, name, err)
	}

	pdf := filepath.Join(c.Dir, key.String()+".pdf")
	if !fileutil.NonEmptyFile(pdf) {
		return "", fmt.Errorf("%w: %s produced no document", ErrEmptyOutput, name)
	}
	return pdf, nil
}

// command builds the argument list for one compile.
func (c *LatexCompiler) command(src string) (string, []string) {
	binary := c.Binary
	if binary == "" {
		binary = DefaultCompilerBinary
	}
	engine := []string{binary, "-interaction=nonstopmode", "-halt-on-error", "-no-shell-escape"}
	engine = append(engine, c.ExtraArgs...)
	engine = append(engine, src)

	if !c.Texfot {
		return engine[0], engine[1:]
	}
	texfot := c.TexfotBinary
	if texfot == "" {
		texfot = DefaultTexfotBinary
	}
	args := make([]string, 0, len(texfotFilters)+len(engine))
	args = append(args, texfotFilters...)
	args = append(args, engine...)
	return texfot, args
}

// normalizeLog drops carriage returns. Output captured through a layer that
// escaped it (no real newline, literal "\n" sequences) is unescaped.
func normalizeLog(log string) string {
	log = strings.ReplaceAll(log, "\r", "")
	if !strings.Contains(log, "\n") && strings.Contains(log, `\n`) {
		log = strings.ReplaceAll(log, `\n`, "\n")
	}
	return log
}
