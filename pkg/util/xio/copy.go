package xio

import (
	"context"
	"io"

	"github.com/wuxler/filecache/pkg/errdefs"
)

// DefaultChunkSize is the buffer size used by Copy when chunkSize is not
// positive.
const DefaultChunkSize = 16 * KiB

// ShortWriter is an io.Writer that is allowed to consume fewer bytes than it
// was given without reporting an error. Plain io.Writer implementations
// satisfy it trivially; stream types backed by bounded out-of-band calls
// return short counts on purpose and the copy loop must retry the rest.
type ShortWriter interface {
	Write(p []byte) (int, error)
}

// Copy reads all content from src and writes it to dst, never holding more
// than chunkSize bytes in memory. A zero-length read terminates the copy.
// Unlike io.Copy, dst may accept fewer bytes than requested per call and
// Copy keeps writing the remainder of the chunk until it is fully consumed.
func Copy(dst ShortWriter, src io.Reader, chunkSize int) (int64, error) {
	return CopyContext(context.Background(), dst, src, chunkSize)
}

// CopyContext is like Copy but checks ctx between buffer operations so that
// a large copy can be abandoned early. Each chunk boundary is a scheduling
// point: goroutine preemption plus the context check keep one huge copy from
// monopolizing anything.
func CopyContext(ctx context.Context, dst ShortWriter, src io.Reader, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := make([]byte, chunkSize)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, rerr := src.Read(buf)
		if nr > 0 {
			chunk := buf[:nr]
			for len(chunk) > 0 {
				if err := ctx.Err(); err != nil {
					return written, err
				}
				nw, werr := dst.Write(chunk)
				if nw < 0 || nw > len(chunk) {
					return written, errdefs.Newf(errdefs.ErrStorage, "invalid write count %d", nw)
				}
				written += int64(nw)
				chunk = chunk[nw:]
				if werr != nil {
					return written, werr
				}
				if nw == 0 {
					return written, errdefs.Newf(errdefs.ErrStorage, "writer made no progress")
				}
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return written, nil
			}
			return written, rerr
		}
		if nr == 0 {
			// a zero-length read without io.EOF still means exhausted input
			return written, nil
		}
	}
}
