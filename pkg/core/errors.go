package core

import (
	"errors"
	"fmt"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

// Sentinel errors for errors.Is checks. Both may arrive wrapped in a
// PipelineError.
var (
	// ErrNotFound reports that an article ID has no matching row. It is
	// the storage sentinel re-exported so callers need not import the
	// storage package.
	ErrNotFound = storage.ErrNotFound

	// ErrInvalidConfig reports a configuration rejected by Validate.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// PipelineError wraps an error with the pipeline operation that produced
// it, so callers can log a stable operation name while still unwrapping
// the cause.
type PipelineError struct {
	// Op is the operation that failed, e.g. "ingest" or "retrieve".
	Op string

	// Err is the underlying error.
	Err error
}

// NewPipelineError creates a PipelineError.
func NewPipelineError(op string, err error) *PipelineError {
	return &PipelineError{Op: op, Err: err}
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	return e.Err
}
