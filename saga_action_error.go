package onboard

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyCompleted is returned by every step once the manager has been
	// marked completed or rolled back.
	ErrAlreadyCompleted = errors.New("transaction already completed")

	// ErrBusy is returned when a step is invoked while another call is still
	// running on the same manager.
	ErrBusy = errors.New("transaction has a call in flight")

	// ErrPanicked marks a step whose operation panicked.
	ErrPanicked = errors.New("operation panicked")
)

// ValidationError is returned when a step's preconditions are not met. It
// is not retryable without changing the input or the session.
type ValidationError struct {
	error
}

func (e *ValidationError) Unwrap() error { return e.error }

// ValidationFailed builds a ValidationError for op.
func ValidationFailed(op OperationType, format string, args ...any) error {
	return &ValidationError{fmt.Errorf("%s: validation failed: %s", op, fmt.Sprintf(format, args...))}
}

// StorageError is returned when the underlying store failed for a reason
// other than a unique-constraint collision.
type StorageError struct {
	error
}

func (e *StorageError) Unwrap() error { return e.error }

// StorageFailed wraps a storage error for op.
func StorageFailed(op OperationType, err error) error {
	return &StorageError{fmt.Errorf("%s: storage failure: %w", op, err)}
}

// CompensationError describes a compensation that could not be applied.
// Compensation errors are logged, never returned from Rollback.
type CompensationError struct {
	OperationID string
	Type        OperationType
	error
}

func (e *CompensationError) Unwrap() error { return e.error }

// CompensationFailed wraps err for the compensation of operationID.
func CompensationFailed(op OperationType, operationID string, err error) error {
	return &CompensationError{
		OperationID: operationID,
		Type:        op,
		error:       fmt.Errorf("%s: compensation of %s failed: %w", op, operationID, err),
	}
}

func panicError(op OperationType, recovered any) error {
	return fmt.Errorf("%s: %w: %v", op, ErrPanicked, recovered)
}
