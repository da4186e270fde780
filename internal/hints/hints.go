// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-texbot/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForBrowserConnect returns hints for browser renderer launch errors.
func ForBrowserConnect() string {
	var hints []string

	inCI := os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != ""

	if inCI || IsInContainer() {
		hints = append(hints, "set browser.noSandbox: true for Docker/CI")
	}
	if os.Getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set browser.bin or ROD_BROWSER_BIN to use a custom Chrome")
	}

	return format(hints...)
}

// ForTimeout returns a hint about raising the stage timeout.
func ForTimeout() string {
	return format("raise render.stageTimeout or pass --timeout")
}

// ForConfigNotFound returns hints for config file not found errors.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	sep := string(filepath.Separator)
	for _, p := range searchedPaths {
		if strings.Contains(p, sep+"go-texbot"+sep) {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForMissingBinary returns install advice for a toolchain binary.
func ForMissingBinary(name string) string {
	switch filepath.Base(name) {
	case "xelatex", "pdflatex", "lualatex":
		return format("install TeX Live with XeTeX (Debian: texlive-xetex) or set toolchain.compiler")
	case "texfot", "pdfcrop":
		return format("install TeX Live extra utilities (Debian: texlive-extra-utils), or disable with toolchain.texfot: false / toolchain.margins: \"\"")
	case "convert", "magick":
		return format("install ImageMagick and allow PDF input in its policy.xml; use toolchain.convert: magick for ImageMagick 7")
	case "":
		return ""
	default:
		return format("check that " + name + " is installed and on PATH")
	}
}

// ForWorkDir returns hints for work directory errors.
func ForWorkDir() string {
	return format("check render.workDir exists or can be created, and is writable")
}

// ForTemplateNotFound lists the available templates.
func ForTemplateNotFound(available []string) string {
	if len(available) == 0 {
		return ""
	}
	return format("available: " + strings.Join(available, ", "))
}

// format joins hints into one "\n  hint: a; b" suffix. No hints, no suffix.
func format(hints ...string) string {
	if len(hints) == 0 || (len(hints) == 1 && hints[0] == "") {
		return ""
	}
	return "\n  hint: " + strings.Join(hints, "; ")
}
