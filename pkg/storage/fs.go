package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	godigest "github.com/opencontainers/go-digest"
	"github.com/spf13/afero"

	"github.com/wuxler/filecache/pkg/digest"
	"github.com/wuxler/filecache/pkg/errdefs"
	"github.com/wuxler/filecache/pkg/xlog"
)

// tempPrefix marks in-flight files in the store directory so List can skip
// them and operators can recognize leftovers after a crash.
const tempPrefix = ".tmp."

// FSBackendOption configures a FSBackend.
type FSBackendOption func(*FSBackend)

// WithFS overrides the filesystem used by the backend. Intended for tests.
func WithFS(fs afero.Fs) FSBackendOption {
	return func(b *FSBackend) {
		b.fs = fs
	}
}

// FSBackend stores each file flat under a root directory, named by the
// encoded form of its digest. It does not persist descriptions.
type FSBackend struct {
	fs   afero.Fs
	root string

	// serializes the exists-check-then-rename in CommitFile so that of
	// concurrent committers of one digest exactly one reports true
	mu sync.Mutex
}

var _ Backend = (*FSBackend)(nil)

// NewFSBackend creates a backend rooted at path, creating the directory if
// needed.
func NewFSBackend(path string, opts ...FSBackendOption) (*FSBackend, error) {
	b := &FSBackend{
		fs:   afero.NewOsFs(),
		root: path,
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := b.fs.MkdirAll(path, 0o700); err != nil {
		return nil, errdefs.NewE(errdefs.ErrStorage, err)
	}
	return b, nil
}

func (b *FSBackend) path(dgst digest.Digest) (string, error) {
	if err := digest.Validate(dgst); err != nil {
		return "", err
	}
	return filepath.Join(b.root, dgst.Encoded()), nil
}

// GetFile implements Backend.
func (b *FSBackend) GetFile(_ context.Context, dgst digest.Digest) (io.ReadCloser, error) {
	path, err := b.path(dgst)
	if err != nil {
		return nil, err
	}
	f, err := b.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errdefs.Newf(errdefs.ErrNotFound, "file %s", dgst)
		}
		return nil, errdefs.NewE(errdefs.ErrStorage, err)
	}
	return f, nil
}

type fsWriteHandle struct {
	afero.File
	fs   afero.Fs
	name string
}

// CreateFile implements Backend. An already stored digest returns the nil
// handle so the caller can skip the write entirely. Otherwise the returned
// handle writes to a temp file in the store directory so the final rename
// stays on one filesystem.
func (b *FSBackend) CreateFile(_ context.Context, dgst digest.Digest) (WriteHandle, error) {
	path, err := b.path(dgst)
	if err != nil {
		return nil, err
	}
	exists, err := afero.Exists(b.fs, path)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrStorage, err)
	}
	if exists {
		return nil, nil
	}
	f, err := afero.TempFile(b.fs, b.root, tempPrefix+"*"+dgst.Encoded())
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrStorage, err)
	}
	return &fsWriteHandle{File: f, fs: b.fs, name: f.Name()}, nil
}

// CommitFile implements Backend. The temp file becomes visible with a
// rename, which on a POSIX filesystem is atomic. If the digest appeared in
// the meantime the temp file is discarded and the stored copy is kept, so a
// reader never observes partial content.
func (b *FSBackend) CommitFile(ctx context.Context, handle WriteHandle, dgst digest.Digest, _ string) (bool, error) {
	h, ok := handle.(*fsWriteHandle)
	if !ok {
		return false, errdefs.Newf(errdefs.ErrInvalidParameter, "handle %T is not from this backend", handle)
	}
	if err := h.File.Close(); err != nil {
		return false, errdefs.NewE(errdefs.ErrStorage, err)
	}
	path, err := b.path(dgst)
	if err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	exists, err := afero.Exists(b.fs, path)
	if err != nil {
		return false, errdefs.NewE(errdefs.ErrStorage, err)
	}
	if exists {
		if err := b.fs.Remove(h.name); err != nil {
			xlog.C(ctx).Warnf("failed to remove discarded temp file %s: %v", h.name, err)
		}
		return false, nil
	}
	if err := b.fs.Rename(h.name, path); err != nil {
		return false, errdefs.NewE(errdefs.ErrStorage, err)
	}
	return true, nil
}

// Describe implements Backend. The filesystem keeps no descriptions, so
// every stored digest describes as the empty string.
func (b *FSBackend) Describe(_ context.Context, dgst digest.Digest) (string, error) {
	path, err := b.path(dgst)
	if err != nil {
		return "", err
	}
	exists, err := afero.Exists(b.fs, path)
	if err != nil {
		return "", errdefs.NewE(errdefs.ErrStorage, err)
	}
	if !exists {
		return "", errdefs.Newf(errdefs.ErrNotFound, "file %s", dgst)
	}
	return "", nil
}

// GetSize implements Backend.
func (b *FSBackend) GetSize(_ context.Context, dgst digest.Digest) (int64, error) {
	path, err := b.path(dgst)
	if err != nil {
		return 0, err
	}
	fi, err := b.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errdefs.Newf(errdefs.ErrNotFound, "file %s", dgst)
		}
		return 0, errdefs.NewE(errdefs.ErrStorage, err)
	}
	return fi.Size(), nil
}

// Delete implements Backend.
func (b *FSBackend) Delete(_ context.Context, dgst digest.Digest) error {
	path, err := b.path(dgst)
	if err != nil {
		return err
	}
	if err := b.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return errdefs.NewE(errdefs.ErrStorage, err)
	}
	return nil
}

// List implements Backend. Temp files and foreign names in the store
// directory are skipped.
func (b *FSBackend) List(_ context.Context) ([]FileInfo, error) {
	entries, err := afero.ReadDir(b.fs, b.root)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrStorage, err)
	}
	var infos []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		dgst := godigest.NewDigestFromEncoded(digest.Algorithm, entry.Name())
		if err := dgst.Validate(); err != nil {
			continue
		}
		infos = append(infos, FileInfo{Digest: dgst})
	}
	return infos, nil
}
