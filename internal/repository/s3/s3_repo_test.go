package s3

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"captions/internal/domain/usecase"
	"captions/pkg/client/s3"
)

var (
	_ usecase.Presigner = (*S3Repo)(nil)
	_ usecase.Storage   = (*S3Repo)(nil)
)

func TestPresignedPutURL(t *testing.T) {
	client, err := s3.NewS3Client(s3.Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "captions",
	})
	if err != nil {
		t.Fatalf("NewS3Client: %v", err)
	}
	repo := NewS3Repo(client)

	raw, err := repo.PresignedPutURL(context.Background(), "inputs/j1/1-clip.mp4", "video/mp4", time.Minute)
	if err != nil {
		t.Fatalf("PresignedPutURL: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Host != "localhost:9000" || u.Path != "/captions/inputs/j1/1-clip.mp4" {
		t.Fatalf("unexpected url %s", raw)
	}
	q := u.Query()
	if q.Get("X-Amz-Expires") != "60" {
		t.Fatalf("X-Amz-Expires = %q, want 60", q.Get("X-Amz-Expires"))
	}
	if !strings.Contains(q.Get("X-Amz-SignedHeaders"), "content-type") {
		t.Fatalf("content-type not signed: %s", q.Get("X-Amz-SignedHeaders"))
	}
}

func TestUninitializedRepo(t *testing.T) {
	repo := NewS3Repo(nil)
	if _, err := repo.PresignedPutURL(context.Background(), "k", "", time.Minute); err == nil {
		t.Fatal("expected error from uninitialized repo")
	}
	if err := repo.Download(context.Background(), "k", t.TempDir()+"/x"); err == nil {
		t.Fatal("expected error from uninitialized repo")
	}
}
