/*
errors.go - Error types for the accounting engine

ERROR CATEGORIES:
  1. Validation errors - bad input, rejected before any write
  2. Storage errors    - persistence failed; carries the cause
  3. Missing data      - statement asked for a week without sales
  4. Not found         - referenced week/film/room/row does not exist

Configuration errors (unparsable stored settings) never surface: the
settings layer resets them to their default. See settings.go.

USAGE:
  if errors.Is(err, accounting.ErrValidation) { ... 400 ... }
  if errors.Is(err, accounting.ErrStorage)    { ... 500 ... }
*/
package accounting

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation marks input rejected before persistence.
	ErrValidation = errors.New("validation failed")

	// ErrStorage marks a failed persistence call.
	ErrStorage = errors.New("storage failed")

	// ErrNoData is returned when a statement has no daily sales rows.
	ErrNoData = errors.New("no sales data")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned by stores when a unique key already exists.
	ErrDuplicate = errors.New("duplicate key")

	// ErrWeekNumberTaken is returned when a manual week number collides with
	// another speelweek of the same year.
	ErrWeekNumberTaken = errors.New("week number already in use")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError describes rejected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StorageError wraps a persistence failure with the operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failed (%s): %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// wrapStorage classifies an error coming back from a Store call. Errors that
// already carry a category pass through unchanged.
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNoData) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrWeekNumberTaken) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrWeekNumberTaken)
}

// IsNotFound returns true if the error indicates missing data.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoData)
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
}
