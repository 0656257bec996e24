package registration

import (
	"errors"
	"fmt"
)

var (
	// ErrSubmitInFlight is returned while a submit of the same form is running.
	ErrSubmitInFlight = errors.New("registration: submit already in progress")
	// ErrTooManyDrafts is returned when AddDraft would exceed the form's cap.
	ErrTooManyDrafts = errors.New("registration: too many visitors in one registration")
	// ErrUnknownField is returned for field names a draft does not have.
	ErrUnknownField = errors.New("registration: unknown field")
	// ErrFormNotFound is returned for unknown, closed or foreign forms.
	ErrFormNotFound = errors.New("registration: form not found")
	// ErrFormClosed is returned by operations on a closed form.
	ErrFormClosed = errors.New("registration: form closed")
)

// ValidationError reports the first draft, by 1-based position, missing a
// required field. It is user-fixable input, not a fault.
type ValidationError struct {
	Field    Field
	Position int
}

func (e *ValidationError) Error() string {
	if e.Field == FieldPhoto {
		return fmt.Sprintf("all visitors must have a photo (visitor %d has none)", e.Position)
	}
	return fmt.Sprintf("all visitors must have %s filled", e.Field.Label())
}

// UploadError records a photo that could not be stored. The visitor is still
// registered, without a photo URL.
type UploadError struct {
	DraftID  string
	Position int
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("photo upload failed for visitor %d: %v", e.Position, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// SubmitError wraps a record store failure. The drafts are left as they were.
type SubmitError struct {
	Cause error
}

func (e *SubmitError) Error() string { return e.Cause.Error() }

func (e *SubmitError) Unwrap() error { return e.Cause }
