//go:build !unix

package filecache

import (
	"io"

	"github.com/wuxler/filecache/pkg/errdefs"
)

// PrecacheLock needs flock, which this platform does not provide.
func (c *FileCache) PrecacheLock() (io.Closer, error) {
	return nil, errdefs.Newf(errdefs.ErrUnsupported, "precache lock is not supported on this platform")
}
