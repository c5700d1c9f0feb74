package db

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a session or entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInconsistent is returned when a write would leave the store in a
	// state that breaks its ownership rules. The write is rolled back.
	ErrInconsistent = errors.New("inconsistent store state")

	// ErrInvalidSort is returned for sort descriptors naming unknown fields.
	ErrInvalidSort = errors.New("invalid sort descriptor")
)

// StorageError is a failure from the underlying database. Op names the store
// operation; Err is the driver's error. Operations are never retried.
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

// storageErr wraps err for op. ErrNotFound, ErrInconsistent and
// ErrInvalidSort pass through unwrapped so callers can match them directly.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInconsistent) ||
		errors.Is(err, ErrInvalidSort) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
