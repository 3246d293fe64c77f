package errdefs

import "errors"

var (
	// ErrNotFound signals that the requested content doesn't exist, either in
	// the local cache or in the persistent backend. Callers may recover from
	// it, for example by treating the digest as never uploaded.
	ErrNotFound = errors.New("not found")

	// ErrTombstone signals that the requested content existed once but has
	// been deliberately discarded to save space. It is distinct from
	// ErrNotFound so that callers don't retry the access as if it were a bug.
	ErrTombstone = errors.New("content intentionally discarded")

	// ErrStorage signals a failure of the underlying storage engine (disk
	// full, connection lost, unexpected engine state). It always wraps the
	// original cause but callers never see engine-specific error types.
	ErrStorage = errors.New("storage failure")

	// ErrConfig signals that a required directory or resource could not be
	// set up at startup. It is fatal and should abort startup, not be retried.
	ErrConfig = errors.New("configuration error")

	// ErrClosed signals an operation on a stream or handle that has already
	// been closed.
	ErrClosed = errors.New("already closed")

	// ErrInvalidParameter signals that the user input is invalid.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotImplemented signals that the requested action is not implemented
	// on the system as configured.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupported indicates that the action is not supported on the
	// current platform.
	ErrUnsupported = errors.New("unsupported")

	// ErrBusy signals that an exclusive resource, such as the precache
	// lock, is currently held by someone else.
	ErrBusy = errors.New("resource busy")
)
