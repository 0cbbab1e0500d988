package entity

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Status is the coarse lifecycle phase of a job.
type Status uint8

const (
	StatusQueued Status = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

var statusNames = [...]string{
	StatusQueued:     "QUEUED",
	StatusProcessing: "PROCESSING",
	StatusCompleted:  "COMPLETED",
	StatusFailed:     "FAILED",
}

// Statuses lists every recognized status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed}
}

func ParseStatus(s string) (Status, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return 0, &InvalidTransitionError{Field: "status", Value: s, Reason: "unknown status"}
}

func (s Status) Valid() bool { return int(s) < len(statusNames) }

// Terminal reports whether no further transitions are allowed out of s.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
	return statusNames[s]
}

// rank orders statuses for the forward-only rule. Both terminal
// statuses share a rank.
func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusProcessing:
		return 1
	default:
		return 2
	}
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("entity: invalid status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("entity: invalid status %d", uint8(s))
	}
	return s.String(), nil
}

func (s *Status) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("entity: cannot scan %T into Status", src)
	}
}

// Stage is the fine-grained pipeline position of a job. Stages are
// declared in pipeline order.
type Stage uint8

const (
	StageUpload Stage = iota
	StageDispatch
	StageExtractAudio
	StageTranscribe
	StageEmbed
	StageDone
)

var stageNames = [...]string{
	StageUpload:       "UPLOAD",
	StageDispatch:     "DISPATCH",
	StageExtractAudio: "EXTRACT_AUDIO",
	StageTranscribe:   "TRANSCRIBE",
	StageEmbed:        "EMBED",
	StageDone:         "DONE",
}

// Stages lists every recognized stage in pipeline order.
func Stages() []Stage {
	return []Stage{StageUpload, StageDispatch, StageExtractAudio, StageTranscribe, StageEmbed, StageDone}
}

func ParseStage(s string) (Stage, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, &InvalidTransitionError{Field: "stage", Value: s, Reason: "unknown stage"}
}

func (s Stage) Valid() bool { return int(s) < len(stageNames) }

// Before reports whether s comes strictly earlier in the pipeline than other.
func (s Stage) Before(other Stage) bool { return s < other }

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
	return stageNames[s]
}

func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("entity: invalid stage %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(b []byte) error {
	parsed, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Stage) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("entity: invalid stage %d", uint8(s))
	}
	return s.String(), nil
}

func (s *Stage) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("entity: cannot scan %T into Stage", src)
	}
}
