// Package s3storage stores uploads in Amazon S3 or an S3-compatible service.
package s3storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/target/campus-portal/internal/core"
)

var (
	// ErrInvalidConfig is returned when bucket or region is missing.
	ErrInvalidConfig = errors.New("s3storage: bucket and region are required")
	// ErrAccessDenied is returned when the credentials may not write the bucket.
	ErrAccessDenied = errors.New("s3storage: access denied")
	// ErrBucketNotFound is returned when the bucket does not exist.
	ErrBucketNotFound = errors.New("s3storage: bucket not found")
	// ErrUnavailable is returned when S3 throttles or is down.
	ErrUnavailable = errors.New("s3storage: service unavailable")
)

// S3Client is the subset of *s3.Client used by Storage.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config contains configuration for S3 storage.
type Config struct {
	Bucket         string
	Region         string
	AccessKeyID    string
	SecretKey      string
	Endpoint       string // optional, for S3-compatible services
	PublicBaseURL  string // public URL prefix for stored objects
	ForcePathStyle bool   // for MinIO and similar
	UploadTimeout  time.Duration
}

// Storage implements core.ObjectStorage. It is safe for concurrent use.
type Storage struct {
	client        S3Client
	bucket        string
	baseURL       string
	uploadTimeout time.Duration
}

var _ core.ObjectStorage = (*Storage)(nil)

// Option configures Storage construction.
type Option func(*options)

type options struct {
	client        S3Client
	configOptions []func(*config.LoadOptions) error
}

// WithClient uses a pre-configured client instead of loading AWS config.
func WithClient(c S3Client) Option { return func(o *options) { o.client = c } }

// WithConfigOption adds an AWS config load option.
func WithConfigOption(fn func(*config.LoadOptions) error) Option {
	return func(o *options) { o.configOptions = append(o.configOptions, fn) }
}

// New creates a Storage.
func New(ctx context.Context, cfg Config, opts ...Option) (*Storage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
			))
		}
		loadOpts = append(loadOpts, o.configOptions...)
		awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client = s3.NewFromConfig(awsCfg, func(so *s3.Options) {
			if cfg.Endpoint != "" {
				so.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			so.UsePathStyle = cfg.ForcePathStyle
		})
	}

	return &Storage{
		client:        client,
		bucket:        cfg.Bucket,
		baseURL:       publicBaseURL(cfg),
		uploadTimeout: cfg.UploadTimeout,
	}, nil
}

func publicBaseURL(cfg Config) string {
	base := cfg.PublicBaseURL
	if base == "" {
		if cfg.Endpoint != "" {
			base = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return strings.TrimSuffix(base, "/") + "/"
}

// URL returns the public URL for key.
func (s *Storage) URL(key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.baseURL + strings.Join(segs, "/")
}

// Put uploads the object and returns its public URL.
func (s *Storage) Put(ctx context.Context, p core.PutObjectParams) (string, error) {
	if p.Key == "" || p.Body == nil {
		return "", errors.New("s3storage: key and body are required")
	}
	if s.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.uploadTimeout)
		defer cancel()
	}
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(p.Key),
		Body:        p.Body,
		ContentType: aws.String(p.ContentType),
	}
	if p.Size > 0 {
		in.ContentLength = aws.Int64(p.Size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", classifyError(err, "put")
	}
	return s.URL(p.Key), nil
}

// Delete removes the object. Deleting a missing key succeeds.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("s3storage: key is required")
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return classifyError(err, "delete")
}

// classifyError converts S3 errors into package errors.
func classifyError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("s3 %s: %w", operation, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied":
			return fmt.Errorf("%w: %s", ErrAccessDenied, operation)
		case "NoSuchBucket":
			return ErrBucketNotFound
		case "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return fmt.Errorf("%w: %s", ErrUnavailable, operation)
		case "NoSuchKey":
			if operation == "delete" {
				return nil
			}
		}
		return fmt.Errorf("s3 %s failed (code: %s): %w", operation, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("s3 %s failed: %w", operation, err)
}
