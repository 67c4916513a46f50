package model

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when a sync trigger presents a missing or
// incorrect shared secret.
var ErrUnauthorized = errors.New("unauthorized")

// ValidationError reports malformed input. It maps to a client error and is
// never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// BatchError reports a failure of the enrichment fan-out itself, as opposed
// to a single lookup (which degrades to a sentinel record instead).
type BatchError struct {
	Err error
}

func (e *BatchError) Error() string {
	return "failed to process names batch: " + e.Err.Error()
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// PersistenceError reports that the lead store was unreachable or rejected
// a write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err (or anything it wraps) is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPersistence reports whether err (or anything it wraps) is a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsBatch reports whether err (or anything it wraps) is a BatchError.
func IsBatch(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}
