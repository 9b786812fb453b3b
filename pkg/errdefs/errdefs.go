package errdefs

import (
	"errors"
	"fmt"
)

// ErrDependencyUnresolved is returned when a dimension that references another
// dimension is resolved before the referenced key is known. It always points
// at a bug in resolution order, never at bad data.
var ErrDependencyUnresolved = errors.New("dependency unresolved")

// ErrUniqueViolation is returned by warehouse stores when an insert collides
// with a unique constraint. Resolvers treat it as a lost insert race.
var ErrUniqueViolation = errors.New("unique constraint violated")

// ValidationError reports a single malformed source record. The record is
// skipped and the run continues.
type ValidationError struct {
	// Record is the source identifier of the record, if it could be read
	Record string
	// Field names the offending field
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid record %q: %v", e.Record, e.Err)
	}
	return fmt.Sprintf("invalid record %q: field %s: %v", e.Record, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validation builds a ValidationError
func Validation(record, field string, err error) error {
	return &ValidationError{Record: record, Field: field, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// StorageError wraps a failure from the source or warehouse connection. It is
// fatal for a run.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Storage wraps err as a StorageError for op. Errors that already are storage
// errors are returned unchanged.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var serr *StorageError
	if errors.As(err, &serr) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// ConfigurationError is a startup failure: nothing has been loaded yet.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Configuration formats a ConfigurationError
func Configuration(format string, args ...interface{}) error {
	return &ConfigurationError{Err: fmt.Errorf(format, args...)}
}
