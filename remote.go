package texbot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alnah/go-texbot/internal/fileutil"
)

// DirectRenderer produces the image for key in one step, without a local
// TeX toolchain. dst is the final image path.
type DirectRenderer interface {
	Render(ctx context.Context, body string, key CacheKey, dst string) error
}

const (
	defaultRemoteTimeout = 20 * time.Second
	maxRemoteImage       = 10 << 20
)

// RemoteRenderer fetches a PNG from a tex2png-style HTTP service that takes
// the markup as its query string.
type RemoteRenderer struct {
	// URL is the service prefix; the escaped body is appended to it.
	URL    string
	Client *http.Client
}

var _ DirectRenderer = (*RemoteRenderer)(nil)

// NewRemoteRenderer creates a renderer for the given service prefix.
func NewRemoteRenderer(serviceURL string) *RemoteRenderer {
	return &RemoteRenderer{
		URL:    serviceURL,
		Client: &http.Client{Timeout: defaultRemoteTimeout},
	}
}

var remoteClient = &http.Client{Timeout: defaultRemoteTimeout}

func (r *RemoteRenderer) httpClient() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return remoteClient
}

// Render downloads the image for body and writes it to dst atomically.
// Non-2xx responses, non-image bodies and empty bodies wrap ErrRemoteRender.
func (r *RemoteRenderer) Render(ctx context.Context, body string, key CacheKey, dst string) error {
	target := r.URL + escapeQuery(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteRender, err)
	}

	resp, err := r.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteRender, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrRemoteRender, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteImage+1))
	if err != nil {
		return fmt.Errorf("%w: reading body: %w", ErrRemoteRender, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: %w", ErrRemoteRender, ErrEmptyOutput)
	}
	if len(data) > maxRemoteImage {
		return fmt.Errorf("%w: image exceeds %d bytes", ErrRemoteRender, maxRemoteImage)
	}
	if ct := http.DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("%w: unexpected content type %q", ErrRemoteRender, ct)
	}

	if err := fileutil.WriteFileAtomic(dst, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrRemoteRender, key, err)
	}
	return nil
}

// escapeQuery percent-encodes every reserved character, spaces included.
func escapeQuery(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
