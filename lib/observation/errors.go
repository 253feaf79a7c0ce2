package observation

import (
	"errors"
	"fmt"
)

// Error kinds returned by the Store. Use errors.Is to match them:
//
//	if errors.Is(err, observation.ErrStorageUnavailable) { ... }
var (
	// ErrValidation is returned by Add for an empty species id or a date that can't be parsed.
	ErrValidation = errors.New("invalid observation")
	// ErrStorageUnavailable is returned when the medium refuses a read or write, e.g. because it is full.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrBusy is returned when the writer lock could not be acquired.
	ErrBusy = errors.New("store is busy")
)

// Error is the error type returned by the Store.
// Kind is one of the package level sentinel errors, Err the underlying cause (if any).
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

func storageError(msg string, err error) *Error {
	return &Error{Kind: ErrStorageUnavailable, Msg: msg, Err: err}
}
