// Package media stores campaign creatives in S3-compatible object storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// MaxUploadSize caps a single creative.
const MaxUploadSize = 50 << 20

var (
	ErrNotConfigured   = errors.New("media storage not configured")
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrTooLarge        = errors.New("media too large")
)

type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds S3-compatible storage configuration.
type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// PublicURL is the base URL objects are served from. Defaults to
	// Endpoint/Bucket.
	PublicURL string
}

func (c Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Uploader struct {
	cfg    Config
	client s3Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Uploader {
	u := &Uploader{cfg: cfg, logger: logger.With("component", "media")}
	if cfg.complete() {
		u.client = newS3Client(cfg)
	}
	return u
}

func newS3Client(cfg Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (u *Uploader) Enabled() bool {
	return u != nil && u.client != nil
}

// Upload stores body under campaigns/<campaignID>/ and returns the object's
// public URL.
func (u *Uploader) Upload(ctx context.Context, campaignID, filename, contentType string, body io.Reader, size int64) (string, error) {
	if !u.Enabled() {
		return "", ErrNotConfigured
	}
	if size > MaxUploadSize {
		return "", ErrTooLarge
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !(strings.HasPrefix(mediaType, "image/") || strings.HasPrefix(mediaType, "video/")) {
		return "", ErrUnsupportedType
	}

	key := objectKey(campaignID, filename, mediaType)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(mediaType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := u.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}

	u.logger.Info("media uploaded", "campaign_id", campaignID, "key", key, "size", size)
	return u.URL(key), nil
}

// Delete removes the object behind a URL previously returned by Upload.
// URLs outside the bucket are ignored.
func (u *Uploader) Delete(ctx context.Context, url string) error {
	if !u.Enabled() {
		return ErrNotConfigured
	}
	key, ok := strings.CutPrefix(url, u.base()+"/")
	if !ok {
		return nil
	}
	if _, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	return nil
}

// URL returns the public URL for key.
func (u *Uploader) URL(key string) string {
	return u.base() + "/" + key
}

func (u *Uploader) base() string {
	if u.cfg.PublicURL != "" {
		return strings.TrimRight(u.cfg.PublicURL, "/")
	}
	return strings.TrimRight(u.cfg.Endpoint, "/") + "/" + u.cfg.Bucket
}

func objectKey(campaignID, filename, mediaType string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return path.Join("campaigns", campaignID, uuid.NewString()+ext)
}
