package s3

import (
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type StorageS3 struct {
	Endpoint string
	Bucket   string
	Client   *minio.Client
}

// NewS3Client builds a client without contacting the server. Region must be
// set for presigning to work offline.
func NewS3Client(cfg Config) (*StorageS3, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &StorageS3{
		Endpoint: cfg.Endpoint,
		Bucket:   cfg.Bucket,
		Client:   client,
	}, nil
}
