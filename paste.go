package texbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default paste service endpoints.
const (
	DefaultPasteEndpoint = "https://hastebin.com/documents"
	DefaultPasteRawBase  = "https://hastebin.com/raw/"
	defaultPasteTimeout  = 10 * time.Second
	maxPasteResponse     = 64 << 10
)

// HastebinUploader posts text to a hastebin-compatible service.
type HastebinUploader struct {
	Endpoint string
	RawBase  string
	// Token, when set, is sent as a bearer token.
	Token  string
	Client *http.Client
}

var _ Uploader = (*HastebinUploader)(nil)

// NewHastebinUploader creates an uploader for the given endpoints. Empty
// values fall back to the public hastebin instance.
func NewHastebinUploader(endpoint, rawBase string) *HastebinUploader {
	if endpoint == "" {
		endpoint = DefaultPasteEndpoint
	}
	if rawBase == "" {
		rawBase = DefaultPasteRawBase
	}
	return &HastebinUploader{
		Endpoint: endpoint,
		RawBase:  rawBase,
		Client:   &http.Client{Timeout: defaultPasteTimeout},
	}
}

// pasteClient serves uploaders built without a Client. Interpret runs with
// no stage deadline, so the client timeout is the only bound.
var pasteClient = &http.Client{Timeout: defaultPasteTimeout}

func (u *HastebinUploader) httpClient() *http.Client {
	if u.Client != nil {
		return u.Client
	}
	return pasteClient
}

type pasteResponse struct {
	Key string `json:"key"`
}

// Upload performs one POST of text and returns the raw-content link.
// Every failure wraps ErrPasteUpload.
func (u *HastebinUploader) Upload(ctx context.Context, text string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint, bytes.NewBufferString(text))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPasteUpload, err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if u.Token != "" {
		req.Header.Set("Authorization", "Bearer "+u.Token)
	}

	resp, err := u.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPasteUpload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrPasteUpload, resp.StatusCode)
	}

	var pr pasteResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPasteResponse)).Decode(&pr); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", ErrPasteUpload, err)
	}
	if strings.TrimSpace(pr.Key) == "" {
		return "", fmt.Errorf("%w: empty key in response", ErrPasteUpload)
	}
	return u.RawBase + pr.Key, nil
}
