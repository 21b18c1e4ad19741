package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured indicates the storage handle was not initialised.
	ErrNotConfigured = errors.New("storage: not configured")
	// ErrItemNotFound is returned when deleting an id that is not present.
	ErrItemNotFound = errors.New("storage: tracked item not found")
)

// ConnectionError reports a failure to reach or query the backing database.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func connErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ConnectionError{Op: op, Err: err}
}
