package main

import (
	"errors"
	"io"
	"time"

	flag "github.com/spf13/pflag"
)

// ErrUsage marks invalid command-line usage.
var ErrUsage = errors.New("invalid usage")

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// renderFlags holds flags for the render command.
type renderFlags struct {
	common   commonFlags
	mode     string
	output   string
	renderer string
	workDir  string
	timeout  time.Duration
}

// serveFlags holds flags for the serve command.
type serveFlags struct {
	common commonFlags
	addr   string
	noChat bool
	noHTTP bool
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
}

// newRenderFlagSet registers the render flags into f. Shared with completion.
func newRenderFlagSet(f *renderFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	addCommonFlags(fs, &f.common)
	fs.StringVarP(&f.mode, "mode", "m", "inline", "inline or displayed")
	fs.StringVarP(&f.output, "output", "o", "", "copy the image to this path")
	fs.StringVar(&f.renderer, "renderer", "", "local, remote or browser")
	fs.StringVar(&f.workDir, "work-dir", "", "artifact directory")
	fs.DurationVarP(&f.timeout, "timeout", "t", 0, "per-stage timeout (e.g., 30s, 1m)")
	return fs
}

// newServeFlagSet registers the serve flags into f.
func newServeFlagSet(f *serveFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addCommonFlags(fs, &f.common)
	fs.StringVar(&f.addr, "addr", "", "HTTP listen address (overrides http.addr)")
	fs.BoolVar(&f.noChat, "no-chat", false, "do not connect to chat")
	fs.BoolVar(&f.noHTTP, "no-http", false, "do not start the HTTP server")
	return fs
}

// parseRenderFlags parses render command flags and returns positional args.
func parseRenderFlags(args []string, stderr io.Writer) (*renderFlags, []string, error) {
	f := &renderFlags{}
	fs := newRenderFlagSet(f)
	fs.SetOutput(stderr)
	fs.Usage = func() { printRenderUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, errors.Join(ErrUsage, err)
	}
	return f, fs.Args(), nil
}

// parseServeFlags parses serve command flags.
func parseServeFlags(args []string, stderr io.Writer) (*serveFlags, error) {
	f := &serveFlags{}
	fs := newServeFlagSet(f)
	fs.SetOutput(stderr)
	fs.Usage = func() { printServeUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, errors.Join(ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, errors.Join(ErrUsage, errors.New("serve takes no arguments"))
	}
	return f, nil
}
