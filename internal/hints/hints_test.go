package hints

// Notes:
// - ForBrowserConnect tests cannot use t.Parallel() because they use
//   t.Setenv() and modify the package-level IsInContainer variable.

import (
	"path/filepath"
	"strings"
	"testing"
)

func withContainer(t *testing.T, in bool) {
	t.Helper()
	orig := IsInContainer
	t.Cleanup(func() { IsInContainer = orig })
	IsInContainer = func() bool { return in }
}

// ---------------------------------------------------------------------------
// TestForBrowserConnect - Environment-aware hints
// ---------------------------------------------------------------------------

func TestForBrowserConnect_InCI(t *testing.T) {
	withContainer(t, false)
	t.Setenv("CI", "true")
	t.Setenv("ROD_BROWSER_BIN", "")

	hint := ForBrowserConnect()
	if !strings.Contains(hint, "hint:") {
		t.Error("expected hint prefix")
	}
	if !strings.Contains(hint, "noSandbox") {
		t.Error("expected sandbox suggestion in CI")
	}
	if !strings.Contains(hint, "ROD_BROWSER_BIN") {
		t.Error("expected browser binary suggestion")
	}
}

func TestForBrowserConnect_InDocker(t *testing.T) {
	withContainer(t, true)
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	t.Setenv("GITLAB_CI", "")
	t.Setenv("ROD_BROWSER_BIN", "")

	if hint := ForBrowserConnect(); !strings.Contains(hint, "noSandbox") {
		t.Errorf("hint = %q, want sandbox suggestion in Docker", hint)
	}
}

func TestForBrowserConnect_NothingToSuggest(t *testing.T) {
	withContainer(t, false)
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	t.Setenv("GITLAB_CI", "")
	t.Setenv("ROD_BROWSER_BIN", "/usr/bin/chromium")

	if hint := ForBrowserConnect(); hint != "" {
		t.Errorf("hint = %q, want empty", hint)
	}
}

// ---------------------------------------------------------------------------
// TestForMissingBinary - Install advice
// ---------------------------------------------------------------------------

func TestForMissingBinary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"xelatex", "texlive-xetex"},
		{"/usr/local/texlive/bin/xelatex", "texlive-xetex"},
		{"texfot", "texlive-extra-utils"},
		{"pdfcrop", "texlive-extra-utils"},
		{"convert", "ImageMagick"},
		{"magick", "policy.xml"},
		{"dvipng", "dvipng is installed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hint := ForMissingBinary(tt.name)
			if !strings.HasPrefix(hint, "\n  hint: ") {
				t.Errorf("hint %q missing prefix", hint)
			}
			if !strings.Contains(hint, tt.want) {
				t.Errorf("ForMissingBinary(%q) = %q, want mention of %q", tt.name, hint, tt.want)
			}
		})
	}

	if ForMissingBinary("") != "" {
		t.Error("empty name should give no hint")
	}
}

// ---------------------------------------------------------------------------
// TestStaticHints
// ---------------------------------------------------------------------------

func TestForConfigNotFound(t *testing.T) {
	t.Parallel()

	userPath := filepath.Join("home", "u", ".config", "go-texbot", "texbot.yaml")
	hint := ForConfigNotFound([]string{"texbot.yaml", userPath})
	if !strings.Contains(hint, "--config") {
		t.Error("expected --config suggestion")
	}
	if !strings.Contains(hint, "create "+userPath) {
		t.Errorf("hint = %q, want user config suggestion", hint)
	}

	if hint := ForConfigNotFound([]string{"texbot.yaml"}); strings.Contains(hint, "create") {
		t.Errorf("hint = %q, want no create suggestion", hint)
	}
}

func TestForTemplateNotFound(t *testing.T) {
	t.Parallel()

	if got := ForTemplateNotFound(nil); got != "" {
		t.Errorf("ForTemplateNotFound(nil) = %q, want empty", got)
	}
	if got := ForTemplateNotFound([]string{"default", "plain"}); !strings.Contains(got, "default, plain") {
		t.Errorf("ForTemplateNotFound() = %q", got)
	}
}

func TestSimpleHints(t *testing.T) {
	t.Parallel()

	for name, hint := range map[string]string{
		"timeout": ForTimeout(),
		"workdir": ForWorkDir(),
	} {
		if !strings.HasPrefix(hint, "\n  hint: ") {
			t.Errorf("%s hint %q missing prefix", name, hint)
		}
	}
}
