package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"captions/internal/domain/entity"
)

const defaultUploadExpiry = 60 * time.Second

var ErrInvalidRequest = errors.New("invalid request")

type Presigner interface {
	PresignedPutURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
}

type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*entity.Job, error)
}

type PresignRequest struct {
	JobID       string `json:"jobId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type PresignResult struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

type UploadUseCase struct {
	Jobs      JobReader
	Presigner Presigner
	Expiry    time.Duration
	Clock     func() time.Time
}

func NewUploadUseCase(jobs JobReader, p Presigner, expiry time.Duration) *UploadUseCase {
	if expiry <= 0 {
		expiry = defaultUploadExpiry
	}
	return &UploadUseCase{
		Jobs:      jobs,
		Presigner: p,
		Expiry:    expiry,
		Clock:     time.Now,
	}
}

// Presign returns a short-lived URL the client can PUT the source video to.
// Recording the returned key on the job is left to the client.
func (u *UploadUseCase) Presign(ctx context.Context, req PresignRequest) (*PresignResult, error) {
	if req.JobID == "" || req.FileName == "" || req.ContentType == "" {
		return nil, fmt.Errorf("%w: jobId, fileName and contentType are required", ErrInvalidRequest)
	}
	if _, err := u.Jobs.GetJob(ctx, req.JobID); err != nil {
		return nil, err
	}

	key := InputKey(req.JobID, req.FileName, u.Clock())
	url, err := u.Presigner.PresignedPutURL(ctx, key, req.ContentType, u.Expiry)
	if err != nil {
		return nil, err
	}
	return &PresignResult{URL: url, Key: key}, nil
}

// InputKey builds the object key for an uploaded source file.
func InputKey(jobID, fileName string, now time.Time) string {
	return fmt.Sprintf("inputs/%s/%d-%s", jobID, now.UnixMilli(), SafeFileName(fileName))
}

// OutputKey builds the object key of the captions produced for a job.
func OutputKey(jobID string) string {
	return "outputs/" + jobID + "/captions.vtt"
}

func SafeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}
