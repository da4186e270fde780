package assets

import "errors"

var (
	ErrTemplateNotFound   = errors.New("template not found")
	ErrMissingPlaceholder = errors.New("template missing placeholder")

	// ErrInvalidAssetName rejects template names that are not plain
	// identifiers. Names come from operator config and end up in file paths.
	ErrInvalidAssetName = errors.New("invalid template name")

	// ErrInvalidBasePath means render.templateDir is not a readable directory.
	ErrInvalidBasePath = errors.New("invalid template directory")

	// ErrTemplateRead covers I/O failures, including symlinks that point
	// outside the template directory.
	ErrTemplateRead = errors.New("failed to read template")
)
