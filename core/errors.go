package core

import (
	"errors"
	"fmt"
)

// ErrMissingIdentifier is returned when an operation needs the identifier
// of a document and it has none.
var ErrMissingIdentifier = errors.New("core: document has no identifier")

// ExecutionError wraps every error returned by the driver. The driver error
// is kept as the cause.
type ExecutionError struct {
	Op         string
	Collection string
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("core: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
