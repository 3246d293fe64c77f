package badgerstore

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v3"

	"github.com/wuxler/filecache/pkg/errdefs"
	"github.com/wuxler/filecache/pkg/util/xio"
)

// PageSize is how many content bytes one key-value entry holds. Reads and
// writes never cross a page boundary in a single call, so a Write may
// consume fewer bytes than offered.
const PageSize = 16 * xio.KiB

// Mode selects the operations an open large object supports.
type Mode int

const (
	// ModeRead allows Read.
	ModeRead Mode = 1 << iota
	// ModeWrite allows Write and Truncate.
	ModeWrite
)

func loMetaKey(oid uint64) []byte {
	key := make([]byte, 0, 11)
	key = append(key, "lo/"...)
	return binary.BigEndian.AppendUint64(key, oid)
}

func loPageKey(oid uint64, page int64) []byte {
	key := append(loMetaKey(oid), "/p/"...)
	return binary.BigEndian.AppendUint64(key, uint64(page))
}

func loPagePrefix(oid uint64) []byte {
	return append(loMetaKey(oid), "/p/"...)
}

// LargeObject is a seekable binary stream stored in pages inside the
// database. Each Read, Write and Truncate runs in its own transaction, so a
// stream stays usable across the transactions of its caller. A single
// LargeObject must not be shared between goroutines.
type LargeObject struct {
	store  *Store
	oid    uint64
	mode   Mode
	pos    int64
	size   int64
	closed bool
}

var _ io.ReadWriteSeeker = (*LargeObject)(nil)
var _ io.Closer = (*LargeObject)(nil)

// OpenLargeObject opens the large object identified by oid. Passing oid
// zero allocates a fresh empty object, which requires ModeWrite. Opening a
// nonzero oid that does not exist fails.
func (s *Store) OpenLargeObject(oid uint64, mode Mode) (*LargeObject, error) {
	if mode&(ModeRead|ModeWrite) == 0 {
		return nil, errdefs.Newf(errdefs.ErrInvalidParameter, "invalid large object mode %d", mode)
	}
	o := &LargeObject{store: s, oid: oid, mode: mode}
	if oid == 0 {
		if mode&ModeWrite == 0 {
			return nil, errdefs.Newf(errdefs.ErrInvalidParameter, "cannot allocate a large object without write mode")
		}
		allocated, err := s.AllocateOID()
		if err != nil {
			return nil, err
		}
		o.oid = allocated
		err = s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(loMetaKey(o.oid), encodeSize(0))
		})
		if err != nil {
			return nil, errdefs.NewE(errdefs.ErrStorage, err)
		}
		return o, nil
	}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(loMetaKey(oid))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			o.size = decodeSize(val)
			return nil
		})
	})
	if err != nil {
		return nil, errdefs.Newf(errdefs.ErrStorage, "open large object %d: %v", oid, err)
	}
	return o, nil
}

// UnlinkLargeObject removes the object's pages and metadata. The object
// need not be open, matching how an orphan left by a lost commit race is
// cleaned up.
func (s *Store) UnlinkLargeObject(oid uint64) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = loPagePrefix(oid)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return errdefs.NewE(errdefs.ErrStorage, err)
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return errdefs.NewE(errdefs.ErrStorage, err)
		}
	}
	if err := wb.Delete(loMetaKey(oid)); err != nil {
		return errdefs.NewE(errdefs.ErrStorage, err)
	}
	if err := wb.Flush(); err != nil {
		return errdefs.NewE(errdefs.ErrStorage, err)
	}
	return nil
}

// OID returns the object's identifier.
func (o *LargeObject) OID() uint64 {
	return o.oid
}

// Size returns the object's length in bytes as seen by this handle.
func (o *LargeObject) Size() int64 {
	return o.size
}

func (o *LargeObject) check(need Mode, op string) error {
	if o.closed {
		return errdefs.Newf(errdefs.ErrClosed, "large object %d", o.oid)
	}
	if o.mode&need == 0 {
		return errdefs.Newf(errdefs.ErrUnsupported, "large object %d not open for %s", o.oid, op)
	}
	return nil
}

// Read implements io.Reader. A single call never reads past the page
// containing the current position. Pages skipped over by Seek read as
// zeros.
func (o *LargeObject) Read(p []byte) (int, error) {
	if err := o.check(ModeRead, "reading"); err != nil {
		return 0, err
	}
	if o.pos >= o.size {
		return 0, io.EOF
	}
	page := o.pos / PageSize
	off := o.pos % PageSize
	n := int64(len(p))
	if rest := o.size - o.pos; n > rest {
		n = rest
	}
	if rest := int64(PageSize) - off; n > rest {
		n = rest
	}
	if n == 0 {
		return 0, nil
	}
	err := o.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(loPageKey(o.oid, page))
		if err == badger.ErrKeyNotFound {
			// a hole, reads as zeros
			zero(p[:n])
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			copied := 0
			if off < int64(len(val)) {
				copied = copy(p[:n], val[off:])
			}
			zero(p[copied:n])
			return nil
		})
	})
	if err != nil {
		return 0, errdefs.Newf(errdefs.ErrStorage, "read large object %d: %v", o.oid, err)
	}
	o.pos += n
	return int(n), nil
}

// Write implements io.Writer, except that a call consumes at most the
// bytes fitting in the page containing the current position and reports how
// many it took. Copy through xio.Copy to write everything.
func (o *LargeObject) Write(p []byte) (int, error) {
	if err := o.check(ModeWrite, "writing"); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	page := o.pos / PageSize
	off := o.pos % PageSize
	n := int64(len(p))
	if rest := int64(PageSize) - off; n > rest {
		n = rest
	}
	err := o.store.db.Update(func(txn *badger.Txn) error {
		var existing []byte
		item, err := txn.Get(loPageKey(o.oid, page))
		if err == nil {
			existing, err = item.ValueCopy(nil)
		}
		if err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		length := off + n
		if int64(len(existing)) > length {
			length = int64(len(existing))
		}
		buf := make([]byte, length)
		copy(buf, existing)
		copy(buf[off:], p[:n])
		if err := txn.Set(loPageKey(o.oid, page), buf); err != nil {
			return err
		}
		if o.pos+n > o.size {
			return txn.Set(loMetaKey(o.oid), encodeSize(o.pos+n))
		}
		return nil
	})
	if err != nil {
		return 0, errdefs.Newf(errdefs.ErrStorage, "write large object %d: %v", o.oid, err)
	}
	o.pos += n
	if o.pos > o.size {
		o.size = o.pos
	}
	return int(n), nil
}

// Seek implements io.Seeker. Seeking past the end is allowed; the gap reads
// as zeros once something is written beyond it.
func (o *LargeObject) Seek(offset int64, whence int) (int64, error) {
	if o.closed {
		return 0, errdefs.Newf(errdefs.ErrClosed, "large object %d", o.oid)
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = o.pos + offset
	case io.SeekEnd:
		pos = o.size + offset
	default:
		return 0, errdefs.Newf(errdefs.ErrInvalidParameter, "invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, errdefs.Newf(errdefs.ErrInvalidParameter, "negative position %d", pos)
	}
	o.pos = pos
	return pos, nil
}

// Tell returns the current position.
func (o *LargeObject) Tell() (int64, error) {
	if o.closed {
		return 0, errdefs.Newf(errdefs.ErrClosed, "large object %d", o.oid)
	}
	return o.pos, nil
}

// Truncate sets the object's length. Shrinking drops the pages beyond the
// new end; growing leaves a hole. The position is left where it was, even
// if that is now past the end.
func (o *LargeObject) Truncate(size int64) error {
	if err := o.check(ModeWrite, "truncating"); err != nil {
		return err
	}
	if size < 0 {
		return errdefs.Newf(errdefs.ErrInvalidParameter, "negative size %d", size)
	}
	err := o.store.db.Update(func(txn *badger.Txn) error {
		if size < o.size {
			firstDead := (size + PageSize - 1) / PageSize
			lastPage := (o.size - 1) / PageSize
			for page := firstDead; page <= lastPage; page++ {
				if err := txn.Delete(loPageKey(o.oid, page)); err != nil {
					return err
				}
			}
			if off := size % PageSize; off > 0 {
				page := size / PageSize
				item, err := txn.Get(loPageKey(o.oid, page))
				if err == nil {
					val, err := item.ValueCopy(nil)
					if err != nil {
						return err
					}
					if int64(len(val)) > off {
						if err := txn.Set(loPageKey(o.oid, page), val[:off]); err != nil {
							return err
						}
					}
				} else if err != badger.ErrKeyNotFound {
					return err
				}
			}
		}
		return txn.Set(loMetaKey(o.oid), encodeSize(size))
	})
	if err != nil {
		return errdefs.Newf(errdefs.ErrStorage, "truncate large object %d: %v", o.oid, err)
	}
	o.size = size
	return nil
}

// Close marks the handle unusable. Closing twice is fine.
func (o *LargeObject) Close() error {
	o.closed = true
	return nil
}

func encodeSize(size int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(size))
}

func decodeSize(val []byte) int64 {
	if len(val) < 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(val))
}

func zero(p []byte) {
	for i := range p {
		p[i] = 0
	}
}

// String identifies the object in log messages.
func (o *LargeObject) String() string {
	return fmt.Sprintf("largeobject(%d)", o.oid)
}
