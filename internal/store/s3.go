/*
PURPOSE:
  Publishes the files of a comparison report to an S3-compatible bucket
  under <prefix>/<report>/.

REQUIREMENTS:
  User-specified:
  - Publishing is opt-in and needs a bucket.
  - Static keys are optional; the default AWS credential chain applies
    otherwise.

  Implementation-discovered:
  - MinIO and other S3-compatible stores need a custom endpoint and
    path-style addressing.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (compare --publish)
  - Uses: internal/config (S3Config), aws-sdk-go-v2, errgroup

ERROR HANDLING:
  - The first failed upload cancels the rest and is returned with its key.

IMPLEMENTATION RULES:
  - Uploads run concurrently, bounded by maxUploads.
  - Keys are built with path.Join so they use "/" on every OS.

USAGE:
  pub, err := store.NewPublisher(ctx, cfg.S3)
  keys, err := pub.Publish(ctx, "report-2025-01-01", files)

SELF-HEALING INSTRUCTIONS:
  - Tests inject an ObjectPutter through NewPublisherWithClient; keep
    the interface minimal.

RELATED FILES:
  - internal/config/config.go
  - internal/render/render.go

MAINTENANCE:
  - None.
*/

package store

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/daryltucker/forest-compare/internal/config"
	"github.com/daryltucker/forest-compare/internal/output"
)

// maxUploads bounds concurrent PutObject calls.
const maxUploads = 4

// ObjectPutter is the subset of the S3 client used for publishing.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads report files to an S3-compatible bucket.
type Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewPublisher builds an S3 client from cfg. Without static keys the
// default AWS credential chain is used.
func NewPublisher(ctx context.Context, cfg config.S3Config) (*Publisher, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewPublisherWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewPublisherWithClient wraps an existing client.
func NewPublisherWithClient(client ObjectPutter, bucket, prefix string) *Publisher {
	return &Publisher{
		client: client,
		bucket: strings.TrimSpace(bucket),
		prefix: strings.Trim(prefix, "/"),
	}
}

// Key returns the object key of a file published under report.
func (p *Publisher) Key(report, file string) string {
	return path.Join(p.prefix, report, filepath.Base(file))
}

// Publish uploads files under <prefix>/<report>/ and returns the keys in
// the order of files.
func (p *Publisher) Publish(ctx context.Context, report string, files []string) ([]string, error) {
	keys := make([]string, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxUploads)

	for i, f := range files {
		g.Go(func() error {
			body, err := os.ReadFile(f)
			if err != nil {
				return err
			}
			key := p.Key(report, f)
			contentType := mime.TypeByExtension(filepath.Ext(f))
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket:      &p.bucket,
				Key:         &key,
				Body:        bytes.NewReader(body),
				ContentType: &contentType,
			})
			if err != nil {
				return fmt.Errorf("put object %s failed: %w", key, err)
			}
			output.Logger.Debug("Published report file", "bucket", p.bucket, "key", key)
			keys[i] = key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}
