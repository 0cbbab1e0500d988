package entity

import (
	"time"

	"github.com/google/uuid"
)

type Job struct {
	JobID        string    `gorm:"primaryKey;type:text" json:"jobId"`
	Status       Status    `gorm:"not null;type:text" json:"status"`
	Stage        Stage     `gorm:"not null;type:text" json:"stage"`
	InputRef     string    `gorm:"not null;default:''" json:"inputKey,omitempty"`
	OutputRef    string    `gorm:"not null;default:''" json:"outputKey,omitempty"`
	ErrorMessage string    `gorm:"not null;default:''" json:"error,omitempty"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime:false" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime:false" json:"updatedAt"`
}

func (Job) TableName() string { return "caption_jobs" }

// NewJob returns a job in its initial state: QUEUED at the UPLOAD stage.
func NewJob(now time.Time) *Job {
	now = Timestamp(now)
	return &Job{
		JobID:     uuid.New().String(),
		Status:    StatusQueued,
		Stage:     StageUpload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DispatchMessage is the body handed to a worker over a message broker.
type DispatchMessage struct {
	JobID string `json:"jobId"`
}

// Timestamp normalizes t to the precision every store can hold.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// NextUpdatedAt returns the updatedAt for a write committed at now on a
// record last written at prev. The result is always after prev, even when
// the clock did not advance.
func NextUpdatedAt(prev, now time.Time) time.Time {
	next := Timestamp(now)
	if !next.After(prev) {
		next = Timestamp(prev).Add(time.Microsecond)
	}
	return next
}
