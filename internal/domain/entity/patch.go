package entity

import "time"

// Patch is a sparse set of changes to a job. Only the fields below can be
// changed after creation; a nil field is left as is.
type Patch struct {
	Status       *Status
	Stage        *Stage
	InputRef     *string
	OutputRef    *string
	ErrorMessage *string
}

func (p Patch) Empty() bool {
	return p.Status == nil && p.Stage == nil && p.InputRef == nil &&
		p.OutputRef == nil && p.ErrorMessage == nil
}

// Apply merges p into current and checks the result against the job
// lifecycle rules. The returned job carries updatedAt derived from now.
// Stores call Apply while holding the record, so the check and the write
// commit together.
func (p Patch) Apply(current Job, now time.Time) (Job, error) {
	next := current
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.Stage != nil {
		next.Stage = *p.Stage
	}
	if p.InputRef != nil {
		next.InputRef = *p.InputRef
	}
	if p.OutputRef != nil {
		next.OutputRef = *p.OutputRef
	}
	if p.ErrorMessage != nil {
		next.ErrorMessage = *p.ErrorMessage
	}

	if !next.Status.Valid() {
		return current, &InvalidTransitionError{Field: "status", Value: next.Status.String(), Reason: "unknown status"}
	}
	if !next.Stage.Valid() {
		return current, &InvalidTransitionError{Field: "stage", Value: next.Stage.String(), Reason: "unknown stage"}
	}

	if current.Status.Terminal() {
		if !sameState(current, next) {
			return current, &InvalidTransitionError{
				Field:  "status",
				Value:  next.Status.String(),
				Reason: "job is " + current.Status.String() + " and can no longer change",
			}
		}
		next.UpdatedAt = NextUpdatedAt(current.UpdatedAt, now)
		return next, nil
	}

	if next.Status.rank() < current.Status.rank() {
		return current, &InvalidTransitionError{
			Field:  "status",
			Value:  next.Status.String(),
			Reason: "cannot move back from " + current.Status.String(),
		}
	}
	if next.Stage.Before(current.Stage) {
		return current, &InvalidTransitionError{
			Field:  "stage",
			Value:  next.Stage.String(),
			Reason: "cannot move back from " + current.Stage.String(),
		}
	}
	if current.InputRef != "" && next.InputRef != current.InputRef {
		return current, &InvalidTransitionError{Field: "inputKey", Value: next.InputRef, Reason: "input already recorded"}
	}
	if current.OutputRef != "" && next.OutputRef != current.OutputRef {
		return current, &InvalidTransitionError{Field: "outputKey", Value: next.OutputRef, Reason: "output already recorded"}
	}

	switch next.Status {
	case StatusCompleted:
		if next.OutputRef == "" {
			return current, &InvalidTransitionError{Field: "outputKey", Reason: "COMPLETED requires an output"}
		}
		if p.ErrorMessage != nil && *p.ErrorMessage != "" {
			return current, &InvalidTransitionError{Field: "error", Value: *p.ErrorMessage, Reason: "error is only allowed on FAILED"}
		}
		next.ErrorMessage = ""
	case StatusFailed:
		if next.ErrorMessage == "" {
			return current, &InvalidTransitionError{Field: "error", Reason: "FAILED requires an error message"}
		}
		if next.OutputRef != current.OutputRef {
			return current, &InvalidTransitionError{Field: "outputKey", Value: next.OutputRef, Reason: "output is only set on COMPLETED"}
		}
	default:
		if p.ErrorMessage != nil && *p.ErrorMessage != "" {
			return current, &InvalidTransitionError{Field: "error", Value: *p.ErrorMessage, Reason: "error is only allowed on FAILED"}
		}
		if next.OutputRef != "" {
			return current, &InvalidTransitionError{Field: "outputKey", Value: next.OutputRef, Reason: "output is only set on COMPLETED"}
		}
		next.ErrorMessage = ""
	}

	next.UpdatedAt = NextUpdatedAt(current.UpdatedAt, now)
	return next, nil
}

func sameState(a, b Job) bool {
	return a.Status == b.Status && a.Stage == b.Stage && a.InputRef == b.InputRef &&
		a.OutputRef == b.OutputRef && a.ErrorMessage == b.ErrorMessage
}

// PatchRequest is a patch as received from a caller, before the status
// and stage values have been checked. Unknown JSON fields are dropped on
// decode.
type PatchRequest struct {
	Status       *string `json:"status,omitempty"`
	Stage        *string `json:"stage,omitempty"`
	InputRef     *string `json:"inputKey,omitempty"`
	OutputRef    *string `json:"outputKey,omitempty"`
	ErrorMessage *string `json:"error,omitempty"`
}

// Patch validates the enumerated fields and returns the typed patch.
func (r PatchRequest) Patch() (Patch, error) {
	p := Patch{
		InputRef:     r.InputRef,
		OutputRef:    r.OutputRef,
		ErrorMessage: r.ErrorMessage,
	}
	if r.Status != nil {
		s, err := ParseStatus(*r.Status)
		if err != nil {
			return Patch{}, err
		}
		p.Status = &s
	}
	if r.Stage != nil {
		s, err := ParseStage(*r.Stage)
		if err != nil {
			return Patch{}, err
		}
		p.Stage = &s
	}
	return p, nil
}
