package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"captions/pkg/client/s3"

	"github.com/minio/minio-go/v7"
)

type S3Repo struct {
	StorageS3 *s3.StorageS3
}

func NewS3Repo(storageS3 *s3.StorageS3) *S3Repo {
	return &S3Repo{
		StorageS3: storageS3,
	}
}

// PresignedPutURL signs a PUT for key. The uploader must send the same
// Content-Type that was signed.
func (s *S3Repo) PresignedPutURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if s.StorageS3 == nil || s.StorageS3.Client == nil {
		return "", fmt.Errorf("s3 client not initialized")
	}

	headers := http.Header{}
	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}

	u, err := s.StorageS3.Client.PresignHeader(ctx, http.MethodPut, s.StorageS3.Bucket, key, expiry, nil, headers)
	if err != nil {
		return "", fmt.Errorf("presign put object: %w", err)
	}
	return u.String(), nil
}

func (s *S3Repo) GetFileReader(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.StorageS3 == nil || s.StorageS3.Client == nil {
		return nil, fmt.Errorf("s3 client not initialized")
	}

	obj, err := s.StorageS3.Client.GetObject(ctx, s.StorageS3.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	return obj, nil
}

// Download copies the object at key to destPath, creating parent
// directories as needed.
func (s *S3Repo) Download(ctx context.Context, key, destPath string) error {
	r, err := s.GetFileReader(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(destPath)
		return fmt.Errorf("s3 download %s: %w", key, err)
	}
	return f.Close()
}
