package db

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateJob is returned by CreateJob when the id is taken.
	ErrDuplicateJob = errors.New("job already exists")
	// ErrJobNotWritable is returned by UpdateJob for unknown or terminal jobs.
	ErrJobNotWritable = errors.New("job not found or already finished")
)

// StoreUnavailableError means the persistence layer could not serve a request.
// Callers must not interpret it as "not found".
type StoreUnavailableError struct {
	Op    string
	Cause error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Cause)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Cause
}

// unavailable wraps err unless it already is a StoreUnavailableError.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var sue *StoreUnavailableError
	if errors.As(err, &sue) {
		return err
	}
	return &StoreUnavailableError{Op: op, Cause: err}
}
