package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrAlreadyExists     = errors.New("job already exists")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrDispatchFailed    = errors.New("dispatch failed")
)

// InvalidTransitionError names the patch field that was rejected.
type InvalidTransitionError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid transition: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid transition: %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// DispatchFailedError carries the worker's response, or the transport
// error when no response arrived.
type DispatchFailedError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *DispatchFailedError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("dispatch failed: worker returned %d %s", e.StatusCode, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("dispatch failed: %v", e.Err)
	default:
		return fmt.Sprintf("dispatch failed: %s", e.Reason)
	}
}

func (e *DispatchFailedError) Is(target error) bool { return target == ErrDispatchFailed }

func (e *DispatchFailedError) Unwrap() error { return e.Err }
