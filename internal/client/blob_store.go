package client

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/retrocast/api/internal/config"
)

// BlobStore moves media between object storage and the local workspace.
type BlobStore interface {
	Download(ctx context.Context, key, localPath string) error
	Upload(ctx context.Context, localPath, key string) (string, error)
	Delete(ctx context.Context, key string) error
	GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	GetPublicURL(key string) string
}

// NewBlobStore picks the driver named by cfg.Driver.
func NewBlobStore(ctx context.Context, cfg *config.StorageConfig) (BlobStore, error) {
	switch cfg.Driver {
	case "", "s3":
		c, err := NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "minio":
		c, err := NewMinioClient(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

func contentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func publicURL(base, fallbackHost, bucket, key string) string {
	if base != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), key)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(fallbackHost, "/"), bucket, key)
}
