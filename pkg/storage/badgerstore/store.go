// Package badgerstore implements the database-backed storage on top of an
// embedded badger key-value store. File content lives in paged large
// objects, with a small metadata record per stored digest.
package badgerstore

import (
	"github.com/dgraph-io/badger/v3"

	"github.com/wuxler/filecache/pkg/errdefs"
)

// oidSequenceKey holds the monotonic allocator for large object ids.
var oidSequenceKey = []byte("seq/oid")

// oidSequenceBandwidth is how many ids a Store leases from the allocator at
// a time. Ids leased but never used are lost, which is harmless.
const oidSequenceBandwidth = 64

// Store is an open badger database with a large object id allocator.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	return open(opts)
}

// OpenInMemory opens a database that lives only in memory. Intended for
// tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrStorage, err)
	}
	seq, err := db.GetSequence(oidSequenceKey, oidSequenceBandwidth)
	if err != nil {
		db.Close() //nolint:errcheck // the open error takes precedence
		return nil, errdefs.NewE(errdefs.ErrStorage, err)
	}
	return &Store{db: db, seq: seq}, nil
}

// DB exposes the underlying database for transactional callers.
func (s *Store) DB() *badger.DB {
	return s.db
}

// AllocateOID returns a fresh large object id. Ids are never zero and never
// reused within one database.
func (s *Store) AllocateOID() (uint64, error) {
	oid, err := s.seq.Next()
	if err != nil {
		return 0, errdefs.NewE(errdefs.ErrStorage, err)
	}
	if oid == 0 {
		// the sequence starts at zero, which is reserved to mean
		// "allocate a new id"; a second zero would be an allocator bug
		oid, err = s.seq.Next()
		if err != nil {
			return 0, errdefs.NewE(errdefs.ErrStorage, err)
		}
		if oid == 0 {
			return 0, errdefs.Newf(errdefs.ErrStorage, "id allocator returned zero twice")
		}
	}
	return oid, nil
}

// Close releases the id allocator and closes the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		return errdefs.NewE(errdefs.ErrStorage, err)
	}
	if err := s.db.Close(); err != nil {
		return errdefs.NewE(errdefs.ErrStorage, err)
	}
	return nil
}
