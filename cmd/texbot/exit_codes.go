package main

import (
	"errors"
	"os"
	"os/exec"

	texbot "github.com/alnah/go-texbot"
	"github.com/alnah/go-texbot/internal/assets"
	"github.com/alnah/go-texbot/internal/config"
)

// Exit codes for the texbot CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess   = 0 // Rendered or served cleanly
	ExitGeneral   = 1 // General/unexpected error
	ExitUsage     = 2 // Invalid flags, config, or validation
	ExitIO        = 3 // File not found, permission denied
	ExitToolchain = 4 // TeX, ImageMagick, browser or remote renderer failure
	ExitCompile   = 5 // The markup did not compile
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if _, ok := texbot.IsCompileError(err); ok {
		return ExitCompile
	}

	if errors.Is(err, texbot.ErrToolchain) ||
		errors.Is(err, texbot.ErrRasterize) ||
		errors.Is(err, texbot.ErrTimeout) ||
		errors.Is(err, texbot.ErrEmptyOutput) ||
		errors.Is(err, texbot.ErrRemoteRender) ||
		errors.Is(err, texbot.ErrBrowserConnect) ||
		errors.Is(err, texbot.ErrPageLoad) ||
		errors.Is(err, exec.ErrNotFound) {
		return ExitToolchain
	}

	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrWriteImage) ||
		errors.Is(err, assets.ErrTemplateRead) ||
		errors.Is(err, texbot.ErrInvalidWorkDir) {
		return ExitIO
	}

	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, assets.ErrTemplateNotFound) ||
		errors.Is(err, assets.ErrInvalidAssetName) ||
		errors.Is(err, assets.ErrInvalidBasePath) ||
		errors.Is(err, texbot.ErrTemplatePlaceholder) ||
		errors.Is(err, ErrUsage) {
		return ExitUsage
	}

	return ExitGeneral
}
