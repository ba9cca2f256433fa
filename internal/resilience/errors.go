package resilience

import (
	"errors"
	"io/fs"
	"syscall"
)

// TransientError marks an error as safe to retry.
type TransientError struct {
	Err error
	Op  string
}

func (e *TransientError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as transient. op names the failed operation.
func NewTransientError(err error, op string) *TransientError {
	return &TransientError{Err: err, Op: op}
}

// IsTransient reports whether err, or any error it wraps, is a
// TransientError or a filesystem condition that clears on its own: a file
// briefly locked or missing while a game rewrites it.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.ETXTBSY) ||
		errors.Is(err, fs.ErrNotExist)
}
