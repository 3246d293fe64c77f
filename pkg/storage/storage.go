// Package storage defines the pluggable persistent backends that hold
// digest-addressed file content.
package storage

import (
	"context"
	"io"

	"github.com/wuxler/filecache/pkg/digest"
	"github.com/wuxler/filecache/pkg/errdefs"
)

// FileInfo describes one stored file.
type FileInfo struct {
	Digest      digest.Digest
	Description string
}

// WriteHandle is the writable handle returned by Backend.CreateFile. The
// caller writes the full content to it and then passes it back to
// Backend.CommitFile, which closes it. A handle whose content is never
// committed leaves no visible trace in the store.
//
// Write is allowed to consume fewer bytes than given without an error;
// callers should copy through xio.Copy which retries the remainder.
type WriteHandle interface {
	io.Writer
	io.Closer
}

// Backend is a content-addressed persistent store keyed by digest.
//
// Content under a digest is immutable: it is either absent or present in
// full. Two concurrent committers of the same digest are resolved by the
// backend itself; exactly one CommitFile call returns true.
type Backend interface {
	// GetFile returns a readable stream of the content stored under dgst.
	// It fails with ErrNotFound if the digest is absent.
	GetFile(ctx context.Context, dgst digest.Digest) (io.ReadCloser, error)

	// CreateFile returns a fresh writable handle for content to be stored
	// under dgst, or nil if the digest is already stored and the caller need
	// not write anything.
	CreateFile(ctx context.Context, dgst digest.Digest) (WriteHandle, error)

	// CommitFile closes handle and makes its content durably visible under
	// dgst. It returns true if this call caused the record to exist and
	// false if a concurrent committer won the race, in which case the local
	// writer's work is discarded by the backend.
	CommitFile(ctx context.Context, handle WriteHandle, dgst digest.Digest, description string) (bool, error)

	// Describe returns the human-readable description stored with dgst.
	// It fails with ErrNotFound if the digest is absent.
	Describe(ctx context.Context, dgst digest.Digest) (string, error)

	// GetSize returns the size in bytes of the content stored under dgst.
	// It fails with ErrNotFound if the digest is absent.
	GetSize(ctx context.Context, dgst digest.Digest) (int64, error)

	// Delete removes the content stored under dgst. Deleting an absent
	// digest is not an error.
	Delete(ctx context.Context, dgst digest.Digest) error

	// List returns the stored files in no particular order.
	List(ctx context.Context) ([]FileInfo, error)
}

// UnimplementedBackend fails every operation with ErrNotImplemented. Embed
// it to build partial backends.
type UnimplementedBackend struct{}

var _ Backend = UnimplementedBackend{}

func (UnimplementedBackend) GetFile(context.Context, digest.Digest) (io.ReadCloser, error) {
	return nil, errdefs.Newf(errdefs.ErrNotImplemented, "GetFile")
}

func (UnimplementedBackend) CreateFile(context.Context, digest.Digest) (WriteHandle, error) {
	return nil, errdefs.Newf(errdefs.ErrNotImplemented, "CreateFile")
}

func (UnimplementedBackend) CommitFile(context.Context, WriteHandle, digest.Digest, string) (bool, error) {
	return false, errdefs.Newf(errdefs.ErrNotImplemented, "CommitFile")
}

func (UnimplementedBackend) Describe(context.Context, digest.Digest) (string, error) {
	return "", errdefs.Newf(errdefs.ErrNotImplemented, "Describe")
}

func (UnimplementedBackend) GetSize(context.Context, digest.Digest) (int64, error) {
	return 0, errdefs.Newf(errdefs.ErrNotImplemented, "GetSize")
}

func (UnimplementedBackend) Delete(context.Context, digest.Digest) error {
	return errdefs.Newf(errdefs.ErrNotImplemented, "Delete")
}

func (UnimplementedBackend) List(context.Context) ([]FileInfo, error) {
	return nil, errdefs.Newf(errdefs.ErrNotImplemented, "List")
}
