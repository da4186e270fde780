// Package publish turns rendered images into links that chat users can open.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	texbot "github.com/alnah/go-texbot"
	"github.com/alnah/go-texbot/internal/config"
)

// ErrPublish indicates an image could not be made reachable.
var ErrPublish = errors.New("publish failed")

// Publisher makes a delivered image reachable and returns its link.
type Publisher interface {
	Publish(ctx context.Context, set texbot.ArtifactSet) (string, error)
}

// URLPublisher links images served by the built-in HTTP server.
type URLPublisher struct {
	BaseURL string
}

var _ Publisher = (*URLPublisher)(nil)

// NewURLPublisher creates a publisher for images served under baseURL.
func NewURLPublisher(baseURL string) *URLPublisher {
	return &URLPublisher{BaseURL: strings.TrimRight(baseURL, "/")}
}

// Publish implements Publisher. Nothing is copied: the server reads the
// image straight out of the work directory.
func (p *URLPublisher) Publish(_ context.Context, set texbot.ArtifactSet) (string, error) {
	if !texbot.ValidKey(set.Key.String()) {
		return "", fmt.Errorf("%w: invalid key %q", ErrPublish, set.Key)
	}
	return p.BaseURL + "/renders/" + set.Key.String() + ".png", nil
}

// New selects the publisher configured in cfg.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (Publisher, error) {
	switch cfg.Publish.Backend {
	case config.PublishS3:
		p, err := NewS3Publisher(ctx, cfg.Publish.S3)
		if err != nil {
			return nil, err
		}
		p.SetLogger(log)
		if idx := cfg.Publish.Index; idx.RedisAddr != "" {
			p.SetIndex(NewRedisIndex(idx.RedisAddr, idx.Prefix, idx.TTL))
		}
		return p, nil
	case config.PublishURL, "":
		return NewURLPublisher(cfg.HTTP.PublicURL), nil
	default:
		return nil, fmt.Errorf("unknown publish backend %q", cfg.Publish.Backend)
	}
}
