package storage

import (
	"context"
	"io"

	"github.com/wuxler/filecache/pkg/digest"
	"github.com/wuxler/filecache/pkg/errdefs"
)

// NullBackend discards everything written to it and holds nothing. It is
// useful when content must flow through the caching layer without being
// retained, for example in throwaway test environments.
type NullBackend struct{}

var _ Backend = NullBackend{}

// NewNullBackend creates a backend that stores nothing.
func NewNullBackend() NullBackend {
	return NullBackend{}
}

// GetFile implements Backend. Nothing is ever found.
func (NullBackend) GetFile(_ context.Context, dgst digest.Digest) (io.ReadCloser, error) {
	return nil, errdefs.Newf(errdefs.ErrNotFound, "file %s", dgst)
}

// CreateFile implements Backend. The nil handle tells the caller there is
// nothing to write.
func (NullBackend) CreateFile(context.Context, digest.Digest) (WriteHandle, error) {
	return nil, nil
}

// CommitFile implements Backend. The commit never takes effect.
func (NullBackend) CommitFile(context.Context, WriteHandle, digest.Digest, string) (bool, error) {
	return false, nil
}

// Describe implements Backend.
func (NullBackend) Describe(_ context.Context, dgst digest.Digest) (string, error) {
	return "", errdefs.Newf(errdefs.ErrNotFound, "file %s", dgst)
}

// GetSize implements Backend.
func (NullBackend) GetSize(_ context.Context, dgst digest.Digest) (int64, error) {
	return 0, errdefs.Newf(errdefs.ErrNotFound, "file %s", dgst)
}

// Delete implements Backend.
func (NullBackend) Delete(context.Context, digest.Digest) error {
	return nil
}

// List implements Backend.
func (NullBackend) List(context.Context) ([]FileInfo, error) {
	return nil, nil
}
