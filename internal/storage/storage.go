package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/RMahshie/tracelab/internal/config"
)

// Pre-signed URL lifetimes
const (
	UploadURLExpiry   = 15 * time.Minute
	DownloadURLExpiry = 24 * time.Hour
)

// ObjectStore handles file storage operations for uploaded exports
type ObjectStore interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	UploadFile(ctx context.Context, key string, body []byte, contentType string) error
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	DeleteFile(ctx context.Context, key string) error
}

// New builds the object store selected by cfg.Backend
func New(cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case "", "s3":
		return NewS3Service(S3Config{
			Bucket:    cfg.Bucket,
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKeyID,
			SecretKey: cfg.SecretAccessKey,
		})
	case "minio":
		return NewMinioService(context.Background(), MinioConfig{
			Bucket:    cfg.Bucket,
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKeyID,
			SecretKey: cfg.SecretAccessKey,
			UseSSL:    cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// ValidateContentType validates that the content type is supported
func ValidateContentType(contentType string) error {
	validTypes := map[string]bool{
		"text/csv":                 true,
		"text/plain":               true,
		"application/octet-stream": true, // Browsers often send vcsv files untyped
	}

	if !validTypes[contentType] {
		return fmt.Errorf("invalid content type: %s. Supported types: text/csv, text/plain, application/octet-stream", contentType)
	}

	return nil
}
