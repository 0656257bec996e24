package visitor

import "errors"

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("visitor: record not found")
	// ErrAlreadyCheckedOut is returned when checkout targets a record with an exit time.
	ErrAlreadyCheckedOut = errors.New("visitor: already checked out")
	// ErrExitBeforeEntry is returned when a checkout time precedes the entry time.
	ErrExitBeforeEntry = errors.New("visitor: exit time before entry time")
)

// StoreError is a failure reported by the record store. The operation is
// abandoned; callers surface Err's message verbatim.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }
