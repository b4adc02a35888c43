package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds configuration for the S3 archive backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// s3PutAPI is the slice of the S3 client the publisher uses.
type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher archives run reports as JSON objects in S3.
type S3Publisher struct {
	cfg    S3Config
	client s3PutAPI
	now    func() time.Time
}

// NewS3Publisher creates a publisher over the AWS SDK default credential
// chain (env vars, shared config, IAM role).
func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Publisher{
		cfg:    cfg,
		client: s3.NewFromConfig(awsConfig, s3Opts...),
		now:    time.Now,
	}, nil
}

// NewS3PublisherWithClient wraps an existing client. For tests.
func NewS3PublisherWithClient(cfg S3Config, client s3PutAPI) (*S3Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &S3Publisher{cfg: cfg, client: client, now: time.Now}, nil
}

// Publish implements Publisher.
func (p *S3Publisher) Publish(ctx context.Context, report Report) error {
	if report.WrittenAt.IsZero() {
		report.WrittenAt = p.now().UTC()
	}
	body, err := Encode(report)
	if err != nil {
		return err
	}

	key := path.Join(p.cfg.Prefix, Key(report.Run))
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("snapshot: put %s: %w", key, err)
	}
	return nil
}

var _ Publisher = (*S3Publisher)(nil)
