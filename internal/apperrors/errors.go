package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data was rejected by the receiving system.
var ErrValidation = errors.New("validation error")

// ErrAuth indicates that an access or refresh token was rejected by the provider.
// A refresh token is single-use; callers must never retry an exchange with the
// same token value after seeing this error.
var ErrAuth = errors.New("authentication failed")

// ErrRateLimited indicates the remote API asked us to slow down. Retryable with
// backoff at the client boundary, bounded attempts.
var ErrRateLimited = errors.New("rate limited")

// ErrRange indicates a requested activity window exceeds the provider's maximum span.
var ErrRange = errors.New("date range exceeds provider limit")

// ErrConflict indicates the credential store changed between read and write.
var ErrConflict = errors.New("store version conflict")

// MappingError reports a single activity that could not be normalized because a
// required field was missing. The affected activity is skipped; the rest of the
// account's activities continue to be processed.
type MappingError struct {
	Field string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("activity missing required field %q", e.Field)
}

// NewMappingError creates a MappingError naming the missing field.
func NewMappingError(field string) *MappingError {
	return &MappingError{Field: field}
}

// PersistError reports a failure to read or write the credential store after
// tokens were rotated in memory. This is the most severe error class the sync
// can produce: an unwritten rotation means the next run will present a token
// the provider has already invalidated.
type PersistError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("credential store %s failed: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
