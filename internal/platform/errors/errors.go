package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrNoActiveSession     = errors.New("no active session")
	ErrActiveSessionExists = errors.New("active session already exists")
	ErrSessionFinished     = errors.New("session already finished")
)

// Kind classifies a backend failure. Callers branch on it; nothing retries on it.
type Kind string

const (
	KindUnknown    Kind = "unknown"
	KindNetwork    Kind = "network"
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindTimeout    Kind = "timeout"
	KindNotFound   Kind = "not_found"
)

// BackendError is returned by SessionAPI implementations.
type BackendError struct {
	Op     string
	Kind   Kind
	Status int
	Err    error
}

func (e *BackendError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is lets errors.Is match backend kinds against the domain sentinels.
func (e *BackendError) Is(target error) bool {
	switch target {
	case ErrActiveSessionExists, ErrSessionFinished:
		return e.Kind == KindConflict && (e.Err == nil || errors.Is(e.Err, target))
	case ErrInvalidInput:
		return e.Kind == KindValidation
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// Backend wraps err with op and kind.
func Backend(op string, kind Kind, err error) error {
	return &BackendError{Op: op, Kind: kind, Err: err}
}

// KindOf reports the backend kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	switch {
	case errors.Is(err, ErrActiveSessionExists), errors.Is(err, ErrSessionFinished):
		return KindConflict
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	return KindUnknown
}
