package persister

import "errors"

// Error is the failure of a backend call, tagged with the backend that
// produced it. The wrapped error is kept as returned by the backend and its
// text is reported unchanged.
type Error struct {
	Backend Backend
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Backend.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError tags err with b. A nil err stays nil so callers can wrap
// unconditionally.
func newError(b Backend, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Backend: b, Err: err}
}

// memoryError converts a memory backend failure.
func memoryError(err error) error {
	return newError(BackendMemory, err)
}

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// IsBackend reports whether err is an *Error produced by backend b.
func IsBackend(err error, b Backend) bool {
	perr, ok := AsError(err)
	return ok && perr.Backend == b
}
