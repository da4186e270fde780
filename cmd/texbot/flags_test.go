package main

// Notes:
// - parseRenderFlags / parseServeFlags: defaults, short and long forms, and
//   the ErrUsage wrapping that drives exit code 2.

import (
	"errors"
	"io"
	"testing"
	"time"

	flag "github.com/spf13/pflag"
)

// ---------------------------------------------------------------------------
// TestParseRenderFlags
// ---------------------------------------------------------------------------

func TestParseRenderFlags(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		f, rest, err := parseRenderFlags([]string{"$x$"}, io.Discard)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.mode != "inline" || f.output != "" || f.timeout != 0 {
			t.Errorf("defaults = %+v", f)
		}
		if len(rest) != 1 || rest[0] != "$x$" {
			t.Errorf("positional = %v", rest)
		}
	})

	t.Run("all flags", func(t *testing.T) {
		t.Parallel()

		args := []string{
			"-m", "eqn", "-o", "out.png", "--renderer", "remote",
			"--work-dir", "/tmp/r", "-t", "5s", "-c", "bot.yaml", "-v",
			"a", "+", "b",
		}
		f, rest, err := parseRenderFlags(args, io.Discard)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.mode != "eqn" || f.output != "out.png" || f.renderer != "remote" ||
			f.workDir != "/tmp/r" || f.timeout != 5*time.Second {
			t.Errorf("flags = %+v", f)
		}
		if f.common.config != "bot.yaml" || !f.common.verbose || f.common.quiet {
			t.Errorf("common = %+v", f.common)
		}
		if len(rest) != 3 {
			t.Errorf("positional = %v, want 3 args", rest)
		}
	})

	t.Run("stdin marker stays positional", func(t *testing.T) {
		t.Parallel()

		_, rest, err := parseRenderFlags([]string{"-q", "-"}, io.Discard)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rest) != 1 || rest[0] != "-" {
			t.Errorf("positional = %v", rest)
		}
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Parallel()

		_, _, err := parseRenderFlags([]string{"-t", "soon", "x"}, io.Discard)
		if !errors.Is(err, ErrUsage) {
			t.Errorf("error = %v, want ErrUsage", err)
		}
	})

	t.Run("help", func(t *testing.T) {
		t.Parallel()

		_, _, err := parseRenderFlags([]string{"-h"}, io.Discard)
		if !errors.Is(err, flag.ErrHelp) {
			t.Errorf("error = %v, want ErrHelp", err)
		}
	})
}

// ---------------------------------------------------------------------------
// TestParseServeFlags
// ---------------------------------------------------------------------------

func TestParseServeFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(*testing.T, *serveFlags)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, f *serveFlags) {
				if f.addr != "" || f.noChat || f.noHTTP {
					t.Errorf("defaults = %+v", f)
				}
			},
		},
		{
			name: "overrides",
			args: []string{"--addr", ":9000", "--no-chat", "-q"},
			check: func(t *testing.T, f *serveFlags) {
				if f.addr != ":9000" || !f.noChat || f.noHTTP || !f.common.quiet {
					t.Errorf("flags = %+v", f)
				}
			},
		},
		{name: "positional rejected", args: []string{"extra"}, wantErr: true},
		{name: "unknown flag", args: []string{"--daemon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := parseServeFlags(tt.args, io.Discard)
			if tt.wantErr {
				if !errors.Is(err, ErrUsage) {
					t.Errorf("error = %v, want ErrUsage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, f)
		})
	}
}
