package main

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// TestRunHelp
// ---------------------------------------------------------------------------

func TestRunHelp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		wantStdout string
		wantStderr string
	}{
		{"overview", nil, "Commands:", ""},
		{"render", []string{"render"}, "--output", ""},
		{"serve", []string{"serve"}, "--no-chat", ""},
		{"doctor", []string{"doctor"}, "--json", ""},
		{"version", []string{"version"}, "texbot version", ""},
		{"help", []string{"help"}, "texbot help [command]", ""},
		{"unknown", []string{"frobnicate"}, "", "Unknown command: frobnicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, stdout, stderr := testEnv(nil)
			runHelp(tt.args, env)

			if !strings.Contains(stdout.String(), tt.wantStdout) {
				t.Errorf("stdout = %q, want %q", stdout.String(), tt.wantStdout)
			}
			if !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}
