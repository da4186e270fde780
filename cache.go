package texbot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alnah/go-texbot/internal/fileutil"
)

// FileCache maps cache keys to artifact paths under a single work directory.
// Presence on disk is the only cache state; there is no index and no expiry.
type FileCache struct {
	dir string
	// imageOnly is set for direct renderers, which never write a document.
	imageOnly bool
}

// NewFileCache returns a cache rooted at dir. The directory is not created;
// call EnsureDir before the first render.
func NewFileCache(dir string, imageOnly bool) *FileCache {
	return &FileCache{dir: dir, imageOnly: imageOnly}
}

// Dir returns the work directory.
func (c *FileCache) Dir() string { return c.dir }

// EnsureDir creates the work directory if needed.
func (c *FileCache) EnsureDir() error {
	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}
	return nil
}

// Paths returns the artifact layout for key. Nothing is checked on disk.
func (c *FileCache) Paths(key CacheKey) ArtifactSet {
	set := ArtifactSet{
		Key:   key,
		Image: filepath.Join(c.dir, key.String()+".png"),
	}
	if !c.imageOnly {
		set.Source = filepath.Join(c.dir, key.String()+".tex")
		set.Document = filepath.Join(c.dir, key.String()+".pdf")
	}
	return set
}

// Lookup reports a hit when every artifact a successful render leaves behind
// is present: the document, and a non-empty image. A zero-byte image from an
// interrupted run is a miss.
func (c *FileCache) Lookup(key CacheKey) (ArtifactSet, bool) {
	set := c.Paths(key)
	if !fileutil.NonEmptyFile(set.Image) {
		return set, false
	}
	if !c.imageOnly && !fileutil.FileExists(set.Document) {
		return set, false
	}
	return set, true
}
