// Package filecache keeps local copies of digest-addressed files on disk in
// front of a pluggable persistent backend. Content is immutable once
// stored, so the cache never needs invalidation; a digest either resolves
// to full content, or to nothing, or to a tombstone left by a deliberate
// cleanup.
package filecache

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"github.com/wuxler/filecache/pkg/digest"
	"github.com/wuxler/filecache/pkg/errdefs"
	"github.com/wuxler/filecache/pkg/storage"
	"github.com/wuxler/filecache/pkg/util/xio"
	"github.com/wuxler/filecache/pkg/util/xos"
	"github.com/wuxler/filecache/pkg/xlog"
)

// ChunkSize is the buffer size for all streaming copies through the cache.
const ChunkSize = 16 * xio.KiB

// tempDirName is the staging subdirectory inside the cache directory. Files
// land here first and move into the cache with a same-filesystem rename, so
// a cached file is never observable half written.
const tempDirName = "_temp"

// Option configures a FileCache.
type Option func(*FileCache)

// WithSharedCacheDir places the cache at dir, which may be shared with
// other processes storing the same content and is kept across Close. The
// default is a private directory removed by Close.
func WithSharedCacheDir(dir string) Option {
	return func(c *FileCache) {
		c.dir = dir
		c.shared = true
	}
}

// WithTempDir sets where a private cache directory is created. The default
// is the system temp directory. Shared caches ignore it.
func WithTempDir(dir string) Option {
	return func(c *FileCache) {
		c.tempRoot = dir
	}
}

// FileCache is the local disk cache in front of a storage backend. All
// methods are safe for concurrent use, and concurrent fetches of the same
// digest are collapsed into one backend read.
type FileCache struct {
	backend storage.Backend
	closer  io.Closer

	dir      string
	tempRoot string
	shared   bool
	temper   xos.Temper
	group    singleflight.Group
}

// New creates a cache over backend. Without options the cache directory is
// a fresh private one under the system temp directory.
func New(backend storage.Backend, opts ...Option) (*FileCache, error) {
	c := &FileCache{backend: backend}
	for _, opt := range opts {
		opt(c)
	}
	if c.dir == "" {
		if c.tempRoot != "" {
			if err := xos.MkdirOrErr(c.tempRoot); err != nil {
				return nil, err
			}
		}
		dir, err := os.MkdirTemp(c.tempRoot, "fs-cache-")
		if err != nil {
			return nil, errdefs.NewE(errdefs.ErrConfig, err)
		}
		c.dir = dir
	} else if err := xos.MkdirOrErr(c.dir); err != nil {
		return nil, err
	}
	c.temper = xos.NewTemper(filepath.Join(c.dir, tempDirName), "fc-*")
	xlog.Debugf("file cache at %s (shared=%v)", c.dir, c.shared)
	return c, nil
}

// Backend returns the persistent backend behind the cache.
func (c *FileCache) Backend() storage.Backend {
	return c.backend
}

// IsShared reports whether the cache directory is shared with other
// processes.
func (c *FileCache) IsShared() bool {
	return c.shared
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string {
	return c.dir
}

func (c *FileCache) cachePath(dgst digest.Digest) string {
	return filepath.Join(c.dir, dgst.Encoded())
}

func (c *FileCache) checkDigest(dgst digest.Digest) error {
	if digest.IsTombstone(dgst) {
		return errdefs.Newf(errdefs.ErrTombstone, "file %s", dgst)
	}
	return digest.Validate(dgst)
}

// Load makes sure the content of dgst is present in the cache directory,
// fetching it from the backend when needed. Concurrent loads of the same
// digest share one fetch.
func (c *FileCache) Load(ctx context.Context, dgst digest.Digest) error {
	if err := c.checkDigest(dgst); err != nil {
		return err
	}
	if _, err := os.Stat(c.cachePath(dgst)); err == nil {
		return nil
	}
	_, err, _ := c.group.Do(dgst.String(), func() (any, error) {
		return nil, c.fetch(ctx, dgst)
	})
	return err
}

func (c *FileCache) fetch(ctx context.Context, dgst digest.Digest) error {
	rc, err := c.backend.GetFile(ctx, dgst)
	if err != nil {
		return err
	}
	defer xio.CloseAndSkipError(rc)

	tmp, err := c.temper.CreateTemp("load-*")
	if err != nil {
		return err
	}
	_, err = xio.CopyContext(ctx, tmp, rc, ChunkSize)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck // the copy error takes precedence
		return errdefs.NewE(errdefs.ErrStorage, err)
	}
	// a concurrent process sharing the directory may have landed the same
	// content already; the rename then replaces identical bytes
	if err := os.Rename(tmp.Name(), c.cachePath(dgst)); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return errdefs.NewE(errdefs.ErrStorage, err)
	}
	return nil
}

// GetFile returns a seekable reader over the content of dgst, loading it
// into the cache first if needed.
func (c *FileCache) GetFile(ctx context.Context, dgst digest.Digest) (io.ReadSeekCloser, error) {
	if err := c.Load(ctx, dgst); err != nil {
		return nil, err
	}
	f, err := os.Open(c.cachePath(dgst))
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrStorage, err)
	}
	return f, nil
}

// GetFileContent returns the whole content of dgst in memory.
func (c *FileCache) GetFileContent(ctx context.Context, dgst digest.Digest) ([]byte, error) {
	if err := c.Load(ctx, dgst); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.cachePath(dgst))
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrStorage, err)
	}
	return data, nil
}

// GetFileToWriter streams the content of dgst into w.
func (c *FileCache) GetFileToWriter(ctx context.Context, dgst digest.Digest, w io.Writer) error {
	rc, err := c.GetFile(ctx, dgst)
	if err != nil {
		return err
	}
	defer xio.CloseAndSkipError(rc)
	_, err = xio.CopyContext(ctx, w, rc, ChunkSize)
	return err
}

// GetFileToPath copies the content of dgst to path, overwriting it.
func (c *FileCache) GetFileToPath(ctx context.Context, dgst digest.Digest, path string) error {
	f, err := xos.Create(path)
	if err != nil {
		return err
	}
	err = c.GetFileToWriter(ctx, dgst, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// PutFileFromReader stores the content read from r and returns its digest.
// The content is digested and staged to disk in a single pass, then handed
// to the backend, then moved into the cache.
//
// The backend is offered the content even when the digest is already in the
// local cache: cache and backend may disagree after a backend swap, and the
// backend itself deduplicates a digest it already holds.
func (c *FileCache) PutFileFromReader(ctx context.Context, r io.Reader, description string) (digest.Digest, error) {
	tmp, err := c.temper.CreateTemp("put-*")
	if err != nil {
		return "", err
	}
	digester := digest.NewDigester()
	_, err = xio.CopyContext(ctx, io.MultiWriter(tmp, digester), r, ChunkSize)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", errdefs.NewE(errdefs.ErrStorage, err)
	}
	dgst := digester.Digest()

	if err := c.saveFromPath(ctx, tmp.Name(), dgst, description); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", err
	}

	if _, err := os.Stat(c.cachePath(dgst)); err == nil {
		os.Remove(tmp.Name()) //nolint:errcheck // identical content is already cached
	} else if err := os.Rename(tmp.Name(), c.cachePath(dgst)); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", errdefs.NewE(errdefs.ErrStorage, err)
	}
	return dgst, nil
}

// PutFileContent stores content and returns its digest.
func (c *FileCache) PutFileContent(ctx context.Context, content []byte, description string) (digest.Digest, error) {
	return c.PutFileFromReader(ctx, bytes.NewReader(content), description)
}

// PutFileFromPath stores the file at path and returns its digest.
func (c *FileCache) PutFileFromPath(ctx context.Context, path string, description string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errdefs.NewE(errdefs.ErrStorage, err)
	}
	defer xio.CloseAndSkipError(f)
	return c.PutFileFromReader(ctx, f, description)
}

// Save offers the locally cached content of dgst to the backend again.
// This is how a cached file survives a backend that lost it, for example
// after the persistent store was recreated.
func (c *FileCache) Save(ctx context.Context, dgst digest.Digest, description string) error {
	if err := c.checkDigest(dgst); err != nil {
		return err
	}
	path := c.cachePath(dgst)
	if _, err := os.Stat(path); err != nil {
		return errdefs.Newf(errdefs.ErrNotFound, "file %s is not cached", dgst)
	}
	return c.saveFromPath(ctx, path, dgst, description)
}

// saveFromPath offers the staged file to the backend. A nil handle means
// the backend already holds the digest or retains nothing.
func (c *FileCache) saveFromPath(ctx context.Context, path string, dgst digest.Digest, description string) error {
	handle, err := c.backend.CreateFile(ctx, dgst)
	if err != nil {
		return err
	}
	if handle == nil {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		xio.CloseAndSkipError(handle)
		return errdefs.NewE(errdefs.ErrStorage, err)
	}
	_, err = xio.CopyContext(ctx, handle, f, ChunkSize)
	xio.CloseAndSkipError(f)
	if err != nil {
		xio.CloseAndSkipError(handle)
		return errdefs.NewE(errdefs.ErrStorage, err)
	}
	created, err := c.backend.CommitFile(ctx, handle, dgst, description)
	if err != nil {
		return err
	}
	if !created {
		xlog.C(ctx).Debugf("file %s was stored concurrently by someone else", dgst)
	}
	return nil
}

// Describe returns the description stored with dgst.
func (c *FileCache) Describe(ctx context.Context, dgst digest.Digest) (string, error) {
	if err := c.checkDigest(dgst); err != nil {
		return "", err
	}
	return c.backend.Describe(ctx, dgst)
}

// GetSize returns the size in bytes of the content of dgst.
func (c *FileCache) GetSize(ctx context.Context, dgst digest.Digest) (int64, error) {
	if err := c.checkDigest(dgst); err != nil {
		return 0, err
	}
	return c.backend.GetSize(ctx, dgst)
}

// Delete removes dgst from the backend and from the local cache.
func (c *FileCache) Delete(ctx context.Context, dgst digest.Digest) error {
	if err := c.checkDigest(dgst); err != nil {
		return err
	}
	if err := c.Drop(dgst); err != nil {
		return err
	}
	return c.backend.Delete(ctx, dgst)
}

// Drop removes dgst from the local cache only. The backend copy, if any,
// stays.
func (c *FileCache) Drop(dgst digest.Digest) error {
	if err := c.checkDigest(dgst); err != nil {
		return err
	}
	if err := os.Remove(c.cachePath(dgst)); err != nil && !os.IsNotExist(err) {
		return errdefs.NewE(errdefs.ErrStorage, err)
	}
	return nil
}

// List returns the files the backend holds.
func (c *FileCache) List(ctx context.Context) ([]storage.FileInfo, error) {
	return c.backend.List(ctx)
}

// PurgeCache empties the cache directory without touching the backend. The
// directory itself and the staging area survive.
func (c *FileCache) PurgeCache() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return errdefs.NewE(errdefs.ErrStorage, err)
	}
	for _, entry := range entries {
		if entry.Name() == tempDirName || entry.Name() == lockFileName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(c.dir, entry.Name())); err != nil {
			return errdefs.NewE(errdefs.ErrStorage, err)
		}
	}
	return nil
}

// DestroyCache removes the cache directory entirely. A shared directory is
// refused, other processes may be using it.
func (c *FileCache) DestroyCache() error {
	if c.shared {
		return errdefs.Newf(errdefs.ErrInvalidParameter, "cannot destroy the shared cache directory %s", c.dir)
	}
	if err := os.RemoveAll(c.dir); err != nil {
		return errdefs.NewE(errdefs.ErrStorage, err)
	}
	return nil
}

// CheckBackendIntegrity re-digests every file the backend holds and reports
// whether all of them still match their key. With remove set, corrupted
// files are deleted from the backend as they are found.
func (c *FileCache) CheckBackendIntegrity(ctx context.Context, remove bool) (bool, error) {
	infos, err := c.backend.List(ctx)
	if err != nil {
		return false, err
	}
	clean := true
	for _, info := range infos {
		rc, err := c.backend.GetFile(ctx, info.Digest)
		if err != nil {
			return false, err
		}
		digester := digest.NewDigester()
		_, err = xio.CopyContext(ctx, digester, rc, ChunkSize)
		xio.CloseAndSkipError(rc)
		if err != nil {
			return false, errdefs.NewE(errdefs.ErrStorage, err)
		}
		if actual := digester.Digest(); actual != info.Digest {
			clean = false
			xlog.C(ctx).Errorf("file %s is corrupted, content digests to %s", info.Digest, actual)
			if remove {
				if err := c.backend.Delete(ctx, info.Digest); err != nil {
					return false, err
				}
				if err := c.Drop(info.Digest); err != nil {
					return false, err
				}
			}
		}
	}
	return clean, nil
}

// Close releases a backend opened by Open and the staging area. A private
// cache directory is removed, a shared one is left for the other users.
func (c *FileCache) Close() error {
	var err error
	if c.shared {
		err = c.temper.Cleanup()
	} else {
		err = c.DestroyCache()
	}
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
