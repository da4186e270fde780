package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
)

// templateExt is the file extension of template files.
const templateExt = ".tex"

// FilesystemLoader reads {dir}/{name}.tex from an operator directory.
// Reads go through os.Root, so neither names nor symlinks can reach files
// outside dir.
type FilesystemLoader struct {
	dir string
}

var _ TemplateLoader = (*FilesystemLoader)(nil)

// NewFilesystemLoader checks that dir is a readable directory.
func NewFilesystemLoader(dir string) (*FilesystemLoader, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidBasePath)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	}
	defer root.Close()

	if _, err := fs.ReadDir(root.FS(), "."); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	}
	return &FilesystemLoader{dir: dir}, nil
}

// LoadTemplate reads the named template. The file is opened on every call so
// edits take effect without a restart.
func (f *FilesystemLoader) LoadTemplate(name string) (string, error) {
	if err := ValidateAssetName(name); err != nil {
		return "", err
	}

	root, err := os.OpenRoot(f.dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRead, err)
	}
	defer root.Close()

	data, err := root.ReadFile(name + templateExt)
	switch {
	case err == nil:
		return string(data), nil
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%w: %q in %s", ErrTemplateNotFound, name, f.dir)
	default:
		return "", fmt.Errorf("%w: %v", ErrTemplateRead, err)
	}
}

// Names lists the templates in the directory, sorted. Unreadable
// directories yield nil.
func (f *FilesystemLoader) Names() []string {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), templateExt)
		if ok && !e.IsDir() && ValidateAssetName(name) == nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
