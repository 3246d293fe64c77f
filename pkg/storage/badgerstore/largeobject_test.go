package badgerstore_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/filecache/pkg/errdefs"
	"github.com/wuxler/filecache/pkg/storage/badgerstore"
	"github.com/wuxler/filecache/pkg/util/xio"
)

func newTestStore(t *testing.T) *badgerstore.Store {
	t.Helper()
	store, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func writeAll(t *testing.T, w xio.ShortWriter, data []byte) {
	t.Helper()
	n, err := xio.Copy(w, bytes.NewReader(data), 0)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
}

func TestLargeObjectRoundTrip(t *testing.T) {
	store := newTestStore(t)

	lo, err := store.OpenLargeObject(0, badgerstore.ModeWrite)
	require.NoError(t, err)
	oid := lo.OID()
	require.NotZero(t, oid)

	// spans several pages to exercise the paging
	data := bytes.Repeat([]byte("0123456789abcdef"), 3*badgerstore.PageSize/16)
	data = append(data, []byte("tail")...)
	writeAll(t, lo, data)
	require.NoError(t, lo.Close())

	reader, err := store.OpenLargeObject(oid, badgerstore.ModeRead)
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, int64(len(data)), reader.Size())

	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestLargeObjectOpenMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.OpenLargeObject(12345, badgerstore.ModeRead)
	assert.ErrorIs(t, err, errdefs.ErrStorage)
}

func TestLargeObjectAllocateNeedsWrite(t *testing.T) {
	store := newTestStore(t)

	_, err := store.OpenLargeObject(0, badgerstore.ModeRead)
	assert.ErrorIs(t, err, errdefs.ErrInvalidParameter)
}

func TestLargeObjectModeEnforced(t *testing.T) {
	store := newTestStore(t)

	lo, err := store.OpenLargeObject(0, badgerstore.ModeWrite)
	require.NoError(t, err)
	writeAll(t, lo, []byte("content"))
	require.NoError(t, lo.Close())

	reader, err := store.OpenLargeObject(lo.OID(), badgerstore.ModeRead)
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.Write([]byte("nope"))
	assert.ErrorIs(t, err, errdefs.ErrUnsupported)
	err = reader.Truncate(0)
	assert.ErrorIs(t, err, errdefs.ErrUnsupported)

	_, err = lo.Read(make([]byte, 1))
	assert.ErrorIs(t, err, errdefs.ErrClosed)
}

func TestLargeObjectSeekAndTell(t *testing.T) {
	store := newTestStore(t)

	lo, err := store.OpenLargeObject(0, badgerstore.ModeRead|badgerstore.ModeWrite)
	require.NoError(t, err)
	defer lo.Close()
	writeAll(t, lo, []byte("hello large object"))

	pos, err := lo.Seek(6, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)

	got, err := io.ReadAll(lo)
	require.NoError(t, err)
	assert.Equal(t, "large object", string(got))

	pos, err = lo.Seek(-6, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(12), pos)
	told, err := lo.Tell()
	require.NoError(t, err)
	assert.Equal(t, pos, told)

	_, err = lo.Seek(-1, io.SeekStart)
	assert.ErrorIs(t, err, errdefs.ErrInvalidParameter)
	_, err = lo.Seek(0, 42)
	assert.ErrorIs(t, err, errdefs.ErrInvalidParameter)
}

func TestLargeObjectOverwriteKeepsTail(t *testing.T) {
	store := newTestStore(t)

	lo, err := store.OpenLargeObject(0, badgerstore.ModeRead|badgerstore.ModeWrite)
	require.NoError(t, err)
	defer lo.Close()
	writeAll(t, lo, []byte("aaaaaaaaaa"))

	_, err = lo.Seek(2, io.SeekStart)
	require.NoError(t, err)
	writeAll(t, lo, []byte("BB"))

	_, err = lo.Seek(0, io.SeekStart)
	require.NoError(t, err)
	got, err := io.ReadAll(lo)
	require.NoError(t, err)
	assert.Equal(t, "aaBBaaaaaa", string(got))
}

func TestLargeObjectHolesReadAsZeros(t *testing.T) {
	store := newTestStore(t)

	lo, err := store.OpenLargeObject(0, badgerstore.ModeRead|badgerstore.ModeWrite)
	require.NoError(t, err)
	defer lo.Close()

	// skip a whole page, then write
	_, err = lo.Seek(badgerstore.PageSize+4, io.SeekStart)
	require.NoError(t, err)
	writeAll(t, lo, []byte("data"))

	_, err = lo.Seek(0, io.SeekStart)
	require.NoError(t, err)
	got, err := io.ReadAll(lo)
	require.NoError(t, err)
	require.Len(t, got, badgerstore.PageSize+8)
	assert.Equal(t, make([]byte, badgerstore.PageSize+4), got[:badgerstore.PageSize+4])
	assert.Equal(t, "data", string(got[badgerstore.PageSize+4:]))
}

func TestLargeObjectTruncate(t *testing.T) {
	store := newTestStore(t)

	lo, err := store.OpenLargeObject(0, badgerstore.ModeRead|badgerstore.ModeWrite)
	require.NoError(t, err)
	defer lo.Close()
	data := bytes.Repeat([]byte("x"), badgerstore.PageSize+100)
	writeAll(t, lo, data)

	require.NoError(t, lo.Truncate(10))
	assert.Equal(t, int64(10), lo.Size())

	_, err = lo.Seek(0, io.SeekStart)
	require.NoError(t, err)
	got, err := io.ReadAll(lo)
	require.NoError(t, err)
	assert.Equal(t, data[:10], got)

	err = lo.Truncate(-1)
	assert.ErrorIs(t, err, errdefs.ErrInvalidParameter)

	// growing leaves a zero-filled gap
	require.NoError(t, lo.Truncate(20))
	_, err = lo.Seek(0, io.SeekStart)
	require.NoError(t, err)
	got, err = io.ReadAll(lo)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, data[:10]...), make([]byte, 10)...), got)
}

func TestLargeObjectCloseIdempotent(t *testing.T) {
	store := newTestStore(t)

	lo, err := store.OpenLargeObject(0, badgerstore.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, lo.Close())
	require.NoError(t, lo.Close())

	_, err = lo.Tell()
	assert.ErrorIs(t, err, errdefs.ErrClosed)
}

func TestLargeObjectUnlink(t *testing.T) {
	store := newTestStore(t)

	lo, err := store.OpenLargeObject(0, badgerstore.ModeWrite)
	require.NoError(t, err)
	writeAll(t, lo, bytes.Repeat([]byte("y"), 2*badgerstore.PageSize))
	require.NoError(t, lo.Close())

	require.NoError(t, store.UnlinkLargeObject(lo.OID()))

	_, err = store.OpenLargeObject(lo.OID(), badgerstore.ModeRead)
	assert.ErrorIs(t, err, errdefs.ErrStorage)

	// unlinking again does not fail
	assert.NoError(t, store.UnlinkLargeObject(lo.OID()))
}

func TestAllocateOIDUnique(t *testing.T) {
	store := newTestStore(t)

	seen := map[uint64]bool{}
	for i := 0; i < 100; i++ {
		oid, err := store.AllocateOID()
		require.NoError(t, err)
		require.NotZero(t, oid)
		require.False(t, seen[oid], "oid %d allocated twice", oid)
		seen[oid] = true
	}
}
