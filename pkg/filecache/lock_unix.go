//go:build unix

package filecache

import (
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/wuxler/filecache/pkg/errdefs"
)

// PrecacheLock takes an exclusive advisory lock on the cache directory so
// that of several workers sharing it exactly one runs an expensive warm-up.
// It does not block: when another process holds the lock the call fails
// with ErrBusy and the caller should wait for the warmed cache instead.
// Closing the returned handle releases the lock.
func (c *FileCache) PrecacheLock() (io.Closer, error) {
	path := filepath.Join(c.dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrStorage, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close() //nolint:errcheck // the flock error takes precedence
		if err == unix.EWOULDBLOCK {
			return nil, errdefs.Newf(errdefs.ErrBusy, "precache lock on %s is held elsewhere", c.dir)
		}
		return nil, errdefs.NewE(errdefs.ErrStorage, err)
	}
	return &precacheLock{file: f}, nil
}

type precacheLock struct {
	file *os.File
}

// Close releases the lock. The kernel drops the flock with the last open
// descriptor, so closing the file is enough.
func (l *precacheLock) Close() error {
	return l.file.Close()
}
