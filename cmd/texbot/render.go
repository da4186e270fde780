package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	texbot "github.com/alnah/go-texbot"
	"github.com/alnah/go-texbot/internal/fileutil"
	"github.com/alnah/go-texbot/internal/hints"
)

// ErrWriteImage indicates the rendered image could not be copied to --output.
var ErrWriteImage = errors.New("failed to write image")

// maxStdinMarkup bounds markup read from stdin.
const maxStdinMarkup = 1 << 20

// runRender renders one expression and prints the image path.
func runRender(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parseRenderFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	markup, err := readMarkup(positional, env.Stdin)
	if err != nil {
		return err
	}
	mode, err := texbot.ParseMode(flags.mode)
	if err != nil {
		return errors.Join(ErrUsage, err)
	}

	cfg, err := loadConfig(flags.common.config, loadEnvConfig(env.Getenv))
	if err != nil {
		return err
	}
	if flags.renderer != "" {
		cfg.Render.Renderer = flags.renderer
	}
	if flags.workDir != "" {
		cfg.Render.WorkDir = flags.workDir
	}
	if flags.timeout > 0 {
		cfg.Render.StageTimeout = flags.timeout
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cfg, flags.common, env)
	if err != nil {
		return errors.Join(ErrUsage, err)
	}
	p, err := buildPipeline(cfg, log, nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	out := p.Render(ctx, texbot.Request{Markup: markup, Mode: mode})
	if !out.Delivered() {
		if out.Report != nil {
			fmt.Fprintln(env.Stderr, out.Report.Message())
		}
		if out.Err == nil {
			return fmt.Errorf("render %s failed", out.Key)
		}
		return fmt.Errorf("render %s: %w%s", out.Key, out.Err, hintFor(out.Err))
	}

	path := out.Image
	if flags.output != "" {
		if err := copyImage(out.Image, flags.output); err != nil {
			return err
		}
		path = flags.output
	}
	fmt.Fprintln(env.Stdout, path)
	return nil
}

// readMarkup joins positional args, or reads stdin when the only arg is "-".
func readMarkup(args []string, stdin io.Reader) (string, error) {
	if len(args) == 0 {
		return "", errors.Join(ErrUsage, errors.New("render needs markup (use - to read stdin)"))
	}
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, maxStdinMarkup))
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.Join(args, " "), nil
}

func copyImage(src, dst string) error {
	data, err := os.ReadFile(src) // #nosec G304 -- path comes from the artifact cache
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteImage, err)
	}
	if err := fileutil.WriteFileAtomic(dst, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteImage, err)
	}
	return nil
}

// hintFor returns operator advice for a render failure, if any.
func hintFor(err error) string {
	var execErr *exec.Error
	switch {
	case errors.As(err, &execErr):
		return hints.ForMissingBinary(execErr.Name)
	case errors.Is(err, texbot.ErrTimeout):
		return hints.ForTimeout()
	case errors.Is(err, texbot.ErrBrowserConnect):
		return hints.ForBrowserConnect()
	default:
		return ""
	}
}
