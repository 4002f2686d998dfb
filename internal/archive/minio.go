// Package archive stores copies of solved images in object storage.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/skyanchor/skyanchor/internal/config"
)

// MinIOArchiver uploads solved images to a MinIO bucket, keyed per user.
type MinIOArchiver struct {
	client *minio.Client
	bucket string
}

// NewMinIOArchiver connects to MinIO and ensures the bucket exists.
func NewMinIOArchiver(ctx context.Context, cfg config.ArchiveConfig) (*MinIOArchiver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &MinIOArchiver{client: client, bucket: cfg.Bucket}, nil
}

// Archive uploads the image at imagePath under the user's prefix.
func (a *MinIOArchiver) Archive(ctx context.Context, imagePath string, userID uuid.UUID) error {
	file, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat image: %w", err)
	}

	objectName := fmt.Sprintf("users/%s/solved/%s", userID, filepath.Base(imagePath))
	_, err = a.client.PutObject(ctx, a.bucket, objectName, file, stat.Size(), minio.PutObjectOptions{
		ContentType: contentTypeFor(imagePath),
	})
	if err != nil {
		return fmt.Errorf("upload to minio: %w", err)
	}
	return nil
}

func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".png":
		return "image/png"
	case ".fits", ".fit":
		return "application/fits"
	default:
		return "image/jpeg"
	}
}
