package texbot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alnah/go-texbot/internal/fileutil"
)

// Rasterizer turns the compiled document for key into an image and returns
// its path.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, key CacheKey) (string, error)
}

// Default rasterizer settings.
const (
	DefaultCropBinary    = "pdfcrop"
	DefaultConvertBinary = "convert"
	DefaultCropMargins   = "5 0 5 0"
	DefaultDensity       = 300
	DefaultQuality       = 90
	DefaultBackground    = "white"
)

// CropRasterizer trims the document to its content with pdfcrop, then
// renders the first page with ImageMagick.
type CropRasterizer struct {
	Runner        CommandRunner
	Dir           string
	CropBinary    string
	Margins       string
	ConvertBinary string // "convert" for ImageMagick 6, "magick" for 7
	Density       int
	Quality       int
	Background    string
	Timeout       time.Duration
}

var _ Rasterizer = (*CropRasterizer)(nil)

// NewCropRasterizer creates a rasterizer writing into dir with the default
// settings and the real process runner.
func NewCropRasterizer(dir string) *CropRasterizer {
	return &CropRasterizer{
		Runner:        &ExecRunner{},
		Dir:           absPath(dir),
		CropBinary:    DefaultCropBinary,
		Margins:       DefaultCropMargins,
		ConvertBinary: DefaultConvertBinary,
		Density:       DefaultDensity,
		Quality:       DefaultQuality,
		Background:    DefaultBackground,
		Timeout:       DefaultStageTimeout,
	}
}

// Rasterize crops pdfPath in place and writes {key}.png. The image only
// appears under its final name once it is known to be non-empty. Every
// failure wraps ErrRasterize; timeouts also wrap ErrTimeout.
func (r *CropRasterizer) Rasterize(ctx context.Context, pdfPath string, key CacheKey) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := r.crop(ctx, pdfPath, key); err != nil {
		return "", err
	}

	tmp := filepath.Join(r.Dir, key.String()+".tmp.png")
	out := filepath.Join(r.Dir, key.String()+".png")

	args := []string{
		"-density", strconv.Itoa(r.Density),
		absPath(pdfPath) + "[0]",
		"-quality", strconv.Itoa(r.Quality),
		"-background", r.Background,
		"-alpha", "remove",
		"-alpha", "off",
		absPath(tmp),
	}
	if _, err := runStage(ctx, r.Runner, r.Timeout, r.Dir, r.ConvertBinary, args...); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: %s: %w", ErrRasterize, r.ConvertBinary, err)
	}

	if !fileutil.NonEmptyFile(tmp) {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: %w: %s", ErrRasterize, ErrEmptyOutput, filepath.Base(out))
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: %w", ErrRasterize, err)
	}
	return out, nil
}

// crop replaces pdfPath with its cropped version. An empty margins string
// skips cropping.
func (r *CropRasterizer) crop(ctx context.Context, pdfPath string, key CacheKey) error {
	if r.Margins == "" || r.CropBinary == "" {
		return nil
	}
	cropped := filepath.Join(r.Dir, key.String()+".crop.pdf")
	if _, err := runStage(ctx, r.Runner, r.Timeout, r.Dir, r.CropBinary, "--margins", r.Margins, absPath(pdfPath), absPath(cropped)); err != nil {
		_ = os.Remove(cropped)
		return fmt.Errorf("%w: %s: %w", ErrRasterize, r.CropBinary, err)
	}
	if !fileutil.NonEmptyFile(cropped) {
		_ = os.Remove(cropped)
		return fmt.Errorf("%w: %w: %s", ErrRasterize, ErrEmptyOutput, filepath.Base(cropped))
	}
	if err := os.Rename(cropped, pdfPath); err != nil {
		_ = os.Remove(cropped)
		return fmt.Errorf("%w: %w", ErrRasterize, err)
	}
	return nil
}
