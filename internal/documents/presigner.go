package documents

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/config"
)

// Presigner issues time-limited download URLs for uploaded documents.
type Presigner struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewPresigner(cfg *config.StorageConfig) (*Presigner, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &Presigner{client: client, bucket: cfg.Bucket, expiry: expiry}, nil
}

// ParseS3URL splits s3://bucket/key. A bare key is returned with an empty bucket.
func ParseS3URL(raw string) (bucket, key string, err error) {
	if !strings.Contains(raw, "://") {
		key = strings.TrimLeft(raw, "/")
		if key == "" {
			return "", "", fmt.Errorf("empty document key")
		}
		return "", key, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid document url %q: %w", raw, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("unsupported document url scheme %q", u.Scheme)
	}
	key = strings.TrimLeft(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("document url %q must name a bucket and key", raw)
	}
	return u.Host, key, nil
}

// DownloadURL presigns a GET for the document's s3 URL.
func (p *Presigner) DownloadURL(ctx context.Context, s3URL string) (string, error) {
	bucket, key, err := ParseS3URL(s3URL)
	if err != nil {
		return "", err
	}
	if bucket == "" {
		bucket = p.bucket
	}
	u, err := p.client.PresignedGetObject(ctx, bucket, key, p.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u.String(), nil
}

// Ping checks that the default bucket is reachable.
func (p *Presigner) Ping(ctx context.Context) error {
	ok, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", p.bucket)
	}
	return nil
}
