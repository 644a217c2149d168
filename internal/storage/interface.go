package storage

import "fmt"

// StorageInterface defines the contract for blob storage operations
type StorageInterface interface {
	Store(filename string, data []byte) error
	Retrieve(filename string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(filename string) error
}

// PersistenceError wraps a storage failure so callers can distinguish it from
// pipeline errors. Persistence failures are not retried at the pipeline level.
type PersistenceError struct {
	Operation string
	Key       string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s failed for %s: %v", e.Operation, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = fmt.Errorf("record not found")
