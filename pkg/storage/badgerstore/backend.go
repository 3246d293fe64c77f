package badgerstore

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"github.com/wuxler/filecache/pkg/digest"
	"github.com/wuxler/filecache/pkg/errdefs"
	"github.com/wuxler/filecache/pkg/storage"
	"github.com/wuxler/filecache/pkg/xlog"
)

const fileKeyPrefix = "file/"

func fileKey(dgst digest.Digest) []byte {
	return []byte(fileKeyPrefix + dgst.String())
}

// fileRecord is the metadata stored per digest.
type fileRecord struct {
	OID         uint64 `json:"oid"`
	Description string `json:"description"`
}

// Backend stores file content as large objects in a badger database, with
// one metadata record per digest. Unlike the filesystem backend it keeps
// the description given at commit time.
type Backend struct {
	store *Store
}

var _ storage.Backend = (*Backend)(nil)

// NewBackend creates a backend over an open store. The caller keeps
// ownership of the store and closes it when done.
func NewBackend(store *Store) *Backend {
	return &Backend{store: store}
}

func (b *Backend) record(dgst digest.Digest) (*fileRecord, error) {
	var rec fileRecord
	err := b.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fileKey(dgst))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, errdefs.Newf(errdefs.ErrNotFound, "file %s", dgst)
	}
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrStorage, err)
	}
	return &rec, nil
}

// GetFile implements storage.Backend.
func (b *Backend) GetFile(_ context.Context, dgst digest.Digest) (io.ReadCloser, error) {
	if err := digest.Validate(dgst); err != nil {
		return nil, err
	}
	rec, err := b.record(dgst)
	if err != nil {
		return nil, err
	}
	return b.store.OpenLargeObject(rec.OID, ModeRead)
}

type writeHandle struct {
	*LargeObject
}

// CreateFile implements storage.Backend. The content goes into a fresh
// large object that stays invisible until CommitFile links a metadata
// record to it.
func (b *Backend) CreateFile(_ context.Context, dgst digest.Digest) (storage.WriteHandle, error) {
	if err := digest.Validate(dgst); err != nil {
		return nil, err
	}
	if _, err := b.record(dgst); err == nil {
		return nil, nil
	} else if !errdefs.IsErrNotFound(err) {
		return nil, err
	}
	lo, err := b.store.OpenLargeObject(0, ModeWrite)
	if err != nil {
		return nil, err
	}
	return &writeHandle{LargeObject: lo}, nil
}

// CommitFile implements storage.Backend. The metadata record is inserted in
// a serializable transaction, so when two writers race to commit the same
// digest exactly one insert goes through. The loser's large object is
// unlinked and its commit reports false.
func (b *Backend) CommitFile(ctx context.Context, handle storage.WriteHandle, dgst digest.Digest, description string) (bool, error) {
	h, ok := handle.(*writeHandle)
	if !ok {
		return false, errdefs.Newf(errdefs.ErrInvalidParameter, "handle %T is not from this backend", handle)
	}
	if err := h.LargeObject.Close(); err != nil {
		return false, err
	}
	if err := digest.Validate(dgst); err != nil {
		return false, err
	}
	rec, err := json.Marshal(fileRecord{OID: h.OID(), Description: description})
	if err != nil {
		return false, errdefs.NewE(errdefs.ErrStorage, err)
	}

	txn := b.store.db.NewTransaction(true)
	defer txn.Discard()
	_, err = txn.Get(fileKey(dgst))
	switch {
	case err == nil:
		// someone else got there first
	case err == badger.ErrKeyNotFound:
		if err := txn.Set(fileKey(dgst), rec); err != nil {
			return false, errdefs.NewE(errdefs.ErrStorage, err)
		}
		switch err := txn.Commit(); err {
		case nil:
			return true, nil
		case badger.ErrConflict:
			// lost the race after our existence check
		default:
			return false, errdefs.NewE(errdefs.ErrStorage, err)
		}
	default:
		return false, errdefs.NewE(errdefs.ErrStorage, err)
	}

	if err := b.store.UnlinkLargeObject(h.OID()); err != nil {
		xlog.C(ctx).Warnf("failed to unlink orphan large object %d: %v", h.OID(), err)
	}
	return false, nil
}

// Describe implements storage.Backend.
func (b *Backend) Describe(_ context.Context, dgst digest.Digest) (string, error) {
	if err := digest.Validate(dgst); err != nil {
		return "", err
	}
	rec, err := b.record(dgst)
	if err != nil {
		return "", err
	}
	return rec.Description, nil
}

// GetSize implements storage.Backend.
func (b *Backend) GetSize(_ context.Context, dgst digest.Digest) (int64, error) {
	if err := digest.Validate(dgst); err != nil {
		return 0, err
	}
	rec, err := b.record(dgst)
	if err != nil {
		return 0, err
	}
	lo, err := b.store.OpenLargeObject(rec.OID, ModeRead)
	if err != nil {
		return 0, err
	}
	defer lo.Close() //nolint:errcheck // read-only handle
	return lo.Size(), nil
}

// Delete implements storage.Backend. The metadata record and the content go
// away together.
func (b *Backend) Delete(_ context.Context, dgst digest.Digest) error {
	if err := digest.Validate(dgst); err != nil {
		return err
	}
	rec, err := b.record(dgst)
	if err != nil {
		if errdefs.IsErrNotFound(err) {
			return nil
		}
		return err
	}
	err = b.store.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(fileKey(dgst))
	})
	if err != nil {
		return errdefs.NewE(errdefs.ErrStorage, err)
	}
	return b.store.UnlinkLargeObject(rec.OID)
}

// List implements storage.Backend.
func (b *Backend) List(_ context.Context) ([]storage.FileInfo, error) {
	var infos []storage.FileInfo
	err := b.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(fileKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			dgst := digest.Digest(strings.TrimPrefix(string(item.Key()), fileKeyPrefix))
			if err := digest.Validate(dgst); err != nil {
				continue
			}
			var rec fileRecord
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			infos = append(infos, storage.FileInfo{Digest: dgst, Description: rec.Description})
		}
		return nil
	})
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrStorage, err)
	}
	return infos, nil
}
