package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/SAP-F-2025/exam-attempt-service/internal/config"
)

// MediaResolver turns a stored media key into a time-limited fetch URL
type MediaResolver interface {
	Resolve(ctx context.Context, key string) (string, error)
}

// MinioMediaResolver signs GET URLs against a MinIO/S3 bucket
type MinioMediaResolver struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

func NewMinioMediaResolver(cfg config.MinioConfig) (*MinioMediaResolver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		// a fixed region keeps presigning offline
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &MinioMediaResolver{client: client, bucket: cfg.Bucket, ttl: ttl}, nil
}

func (r *MinioMediaResolver) Resolve(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if isAbsoluteURL(key) {
		return key, nil
	}

	signed, err := r.client.PresignedGetObject(ctx, r.bucket, strings.TrimPrefix(key, "/"), r.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to sign media url: %w", err)
	}
	return signed.String(), nil
}

// StaticMediaResolver joins keys onto a base URL. Used when no object store is configured.
type StaticMediaResolver struct {
	BaseURL string
}

func (r StaticMediaResolver) Resolve(_ context.Context, key string) (string, error) {
	if key == "" || isAbsoluteURL(key) {
		return key, nil
	}
	return strings.TrimRight(r.BaseURL, "/") + "/" + strings.TrimLeft(key, "/"), nil
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
