package publish

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	texbot "github.com/alnah/go-texbot"
	"github.com/alnah/go-texbot/internal/config"
)

// ObjectPutter is the subset of *s3.Client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads images to a bucket. Keys are content fingerprints, so
// an image already recorded in the index is never uploaded again.
type S3Publisher struct {
	client    ObjectPutter
	bucket    string
	prefix    string
	publicURL string
	index     Index
	log       logrus.FieldLogger
}

var _ Publisher = (*S3Publisher)(nil)

// NewS3Publisher loads the default AWS credential chain and creates a
// publisher for cfg.Bucket. A custom endpoint switches to path-style
// addressing for S3-compatible stores.
func NewS3Publisher(ctx context.Context, cfg config.S3Config) (*S3Publisher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3PublisherWithClient(client, cfg), nil
}

// NewS3PublisherWithClient creates a publisher around an existing client,
// with a process-local index.
func NewS3PublisherWithClient(client ObjectPutter, cfg config.S3Config) *S3Publisher {
	return &S3Publisher{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		index:     NewMemoryIndex(),
		log:       logrus.StandardLogger(),
	}
}

// SetIndex replaces the upload index.
func (p *S3Publisher) SetIndex(idx Index) { p.index = idx }

// SetLogger sets the logger used for index failures.
func (p *S3Publisher) SetLogger(log logrus.FieldLogger) { p.log = log }

// Publish implements Publisher.
func (p *S3Publisher) Publish(ctx context.Context, set texbot.ArtifactSet) (string, error) {
	if !texbot.ValidKey(set.Key.String()) {
		return "", fmt.Errorf("%w: invalid key %q", ErrPublish, set.Key)
	}
	key := p.objectKey(set.Key)

	// An unreachable index costs a redundant upload, not a failed reply.
	done, err := p.index.Published(ctx, set.Key)
	if err != nil {
		p.log.WithError(err).WithField("key", set.Key).Warn("publish index lookup failed")
	}

	if !done {
		data, err := os.ReadFile(set.Image)
		if err != nil {
			return "", fmt.Errorf("%w: reading image: %w", ErrPublish, err)
		}
		_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:       aws.String(p.bucket),
			Key:          aws.String(key),
			Body:         bytes.NewReader(data),
			ContentType:  aws.String("image/png"),
			CacheControl: aws.String("public, max-age=31536000, immutable"),
		})
		if err != nil {
			return "", fmt.Errorf("%w: uploading %s: %w", ErrPublish, key, err)
		}

		if err := p.index.MarkPublished(ctx, set.Key); err != nil {
			p.log.WithError(err).WithField("key", set.Key).Warn("publish index update failed")
		}
	}

	if p.publicURL == "" {
		return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
	}
	return p.publicURL + "/" + key, nil
}

func (p *S3Publisher) objectKey(k texbot.CacheKey) string {
	return path.Join(p.prefix, k.String()+".png")
}
