package captions

import "captions/internal/domain/entity"

// Wire types of the API. They are aliases, so callers outside this module
// can name them without importing the service's internal packages.
type (
	Job          = entity.Job
	Status       = entity.Status
	Stage        = entity.Stage
	PatchRequest = entity.PatchRequest
)

const (
	StatusQueued     = entity.StatusQueued
	StatusProcessing = entity.StatusProcessing
	StatusCompleted  = entity.StatusCompleted
	StatusFailed     = entity.StatusFailed
)

const (
	StageUpload       = entity.StageUpload
	StageDispatch     = entity.StageDispatch
	StageExtractAudio = entity.StageExtractAudio
	StageTranscribe   = entity.StageTranscribe
	StageEmbed        = entity.StageEmbed
	StageDone         = entity.StageDone
)

// ErrNotFound matches a 404 from the API with errors.Is.
var ErrNotFound = entity.ErrNotFound
