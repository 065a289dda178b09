package manager

import (
	"errors"
	"fmt"
)

// ErrConfigNotFound is returned when no profile has the requested id
var ErrConfigNotFound = errors.New("connection config not found")

// PersistenceError wraps failures of the config file or the credential store
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
