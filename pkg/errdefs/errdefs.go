// Package errdefs defines general error types and error operations.
package errdefs

import (
	"errors"
	"fmt"
)

// Newf wraps the base error and a formatted error created by fmt.Errorf,
// returns the error joined.
func Newf(base error, format string, args ...any) error {
	return errors.Join(base, fmt.Errorf(format, args...))
}

// NewE wraps the base error and the input error, returns the error joined.
func NewE(base error, err error) error {
	if err == nil || errors.Is(err, base) {
		return err
	}
	return errors.Join(base, err)
}

// IsErrNotFound returns true if the error is caused by ErrNotFound.
func IsErrNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsErrTombstone returns true if the error is caused by ErrTombstone.
func IsErrTombstone(err error) bool {
	return errors.Is(err, ErrTombstone)
}

// IsErrStorage returns true if the error is caused by ErrStorage.
func IsErrStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsErrClosed returns true if the error is caused by ErrClosed.
func IsErrClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsErrInvalidParameter returns true if the error is caused by
// ErrInvalidParameter.
func IsErrInvalidParameter(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

// IsErrUnsupported returns true if the error is caused by ErrUnsupported.
func IsErrUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// IsErrBusy returns true if the error is caused by ErrBusy.
func IsErrBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}
