package texbot

import (
	"context"
	"fmt"
	"html"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-texbot/internal/fileutil"
)

// DefaultMathJaxURL is the MathJax build loaded by the browser renderer.
const DefaultMathJaxURL = "https://cdn.jsdelivr.net/npm/mathjax@3/es5/tex-svg.js"

const defaultBrowserTimeout = 30 * time.Second

// BrowserRenderer typesets markup with MathJax in headless Chrome and
// screenshots the result. Chrome is launched on first use and shared by all
// renders; each render gets its own page.
type BrowserRenderer struct {
	// Bin is the Chrome binary. Empty uses ROD_BROWSER_BIN or rod's lookup.
	Bin        string
	NoSandbox  bool
	MathJaxURL string
	Timeout    time.Duration

	mu      sync.Mutex
	browser *rod.Browser
}

var _ DirectRenderer = (*BrowserRenderer)(nil)

// NewBrowserRenderer creates a renderer with the default MathJax build.
func NewBrowserRenderer() *BrowserRenderer {
	return &BrowserRenderer{
		MathJaxURL: DefaultMathJaxURL,
		Timeout:    defaultBrowserTimeout,
	}
}

// ensureBrowser lazily launches and connects to the browser.
func (b *BrowserRenderer) ensureBrowser() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New()
	bin := b.Bin
	if bin == "" {
		bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if bin != "" {
		l = l.Bin(bin)
	}
	// Containers and CI run Chrome as root, which requires no sandbox.
	if b.NoSandbox || os.Getenv("CI") == "true" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	b.browser = browser
	return browser, nil
}

// Close releases browser resources.
func (b *BrowserRenderer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		err := b.browser.Close()
		b.browser = nil
		return err
	}
	return nil
}

// Render typesets body and writes a PNG of the math element to dst.
func (b *BrowserRenderer) Render(ctx context.Context, body string, key CacheKey, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	browser, err := b.ensureBrowser()
	if err != nil {
		return err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	defer page.Close()

	timeout := b.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return fmt.Errorf("%w: browser", ErrTimeout)
		}
	}
	page = page.Context(ctx).Timeout(timeout)

	if err := page.SetDocumentContent(mathPage(body, b.MathJaxURL)); err != nil {
		return fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if _, err := page.Eval(`() => MathJax.startup.promise.then(() => true)`); err != nil {
		return fmt.Errorf("%w: typesetting: %v", ErrPageLoad, err)
	}

	el, err := page.Element("#math")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	png, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return fmt.Errorf("%w: screenshot: %v", ErrPageLoad, err)
	}

	if err := fileutil.WriteFileAtomic(dst, png, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// mathPage builds the document MathJax typesets. The body is HTML-escaped;
// MathJax reads the text content, so escaping does not change the math.
func mathPage(body, mathJaxURL string) string {
	if mathJaxURL == "" {
		mathJaxURL = DefaultMathJaxURL
	}
	return `<!DOCTYPE html>
<html><head><meta charset="utf-8">
<script>window.MathJax = {tex: {inlineMath: [['$', '$'], ['\\(', '\\)']]}, svg: {fontCache: 'global'}};</script>
<script src="` + html.EscapeString(mathJaxURL) + `"></script>
<style>body{margin:0;background:#fff}#math{display:inline-block;padding:4px 8px;font-size:24px}</style>
</head><body><div id="math">` + html.EscapeString(body) + `</div></body></html>`
}
