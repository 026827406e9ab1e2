package aicontext

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("message must be a non-empty string")
	ErrProfileNotFound     = errors.New("basic health profile not found")
	ErrUpstreamTimeout     = errors.New("ai upstream request timed out")
	ErrUpstreamUnreachable = errors.New("ai upstream unreachable")
)

// StorageError wraps a failed store query.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// UpstreamError is returned when the AI upstream answers with a 5xx status.
// Body holds the upstream payload for relaying to the caller.
type UpstreamError struct {
	StatusCode int
	Body       any
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ai upstream responded with status %d", e.StatusCode)
}
