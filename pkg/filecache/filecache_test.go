package filecache_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/filecache/pkg/digest"
	"github.com/wuxler/filecache/pkg/errdefs"
	"github.com/wuxler/filecache/pkg/filecache"
	"github.com/wuxler/filecache/pkg/storage"
	"github.com/wuxler/filecache/pkg/storage/badgerstore"
	"github.com/wuxler/filecache/pkg/util/xio"
)

func newBadgerCache(t *testing.T) *filecache.FileCache {
	t.Helper()
	store, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	cache, err := filecache.New(badgerstore.NewBackend(store))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, cache.Close())
		require.NoError(t, cache.DestroyCache())
	})
	return cache
}

func newFSCache(t *testing.T) (*filecache.FileCache, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	backend, err := storage.NewFSBackend("/store", storage.WithFS(fs))
	require.NoError(t, err)
	cache, err := filecache.New(backend)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, cache.Close())
		require.NoError(t, cache.DestroyCache())
	})
	return cache, fs
}

func TestPutAndGetRoundTrip(t *testing.T) {
	cache := newBadgerCache(t)
	ctx := context.Background()

	content := []byte("cached content")
	dgst, err := cache.PutFileContent(ctx, content, "round trip file")
	require.NoError(t, err)
	assert.Equal(t, digest.FromBytes(content), dgst)

	t.Run("content", func(t *testing.T) {
		got, err := cache.GetFileContent(ctx, dgst)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})
	t.Run("reader", func(t *testing.T) {
		rc, err := cache.GetFile(ctx, dgst)
		require.NoError(t, err)
		defer rc.Close()
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})
	t.Run("writer", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, cache.GetFileToWriter(ctx, dgst, &buf))
		assert.Equal(t, content, buf.Bytes())
	})
	t.Run("path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out", "file.bin")
		require.NoError(t, cache.GetFileToPath(ctx, dgst, path))
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})
	t.Run("metadata", func(t *testing.T) {
		size, err := cache.GetSize(ctx, dgst)
		require.NoError(t, err)
		assert.Equal(t, int64(len(content)), size)
		desc, err := cache.Describe(ctx, dgst)
		require.NoError(t, err)
		assert.Equal(t, "round trip file", desc)
	})
}

func TestPutVariantsAgree(t *testing.T) {
	cache := newBadgerCache(t)
	ctx := context.Background()

	content := []byte("the same bytes every way")
	want := digest.FromBytes(content)

	dgst, err := cache.PutFileContent(ctx, content, "")
	require.NoError(t, err)
	assert.Equal(t, want, dgst)

	dgst, err = cache.PutFileFromReader(ctx, bytes.NewReader(content), "")
	require.NoError(t, err)
	assert.Equal(t, want, dgst)

	path := filepath.Join(t.TempDir(), "input")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	dgst, err = cache.PutFileFromPath(ctx, path, "")
	require.NoError(t, err)
	assert.Equal(t, want, dgst)
}

func TestGetMissing(t *testing.T) {
	cache := newBadgerCache(t)
	ctx := context.Background()

	dgst := digest.FromBytes([]byte("never put"))
	_, err := cache.GetFile(ctx, dgst)
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
	_, err = cache.GetFileContent(ctx, dgst)
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
	err = cache.GetFileToWriter(ctx, dgst, io.Discard)
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestTombstoneRejectedEverywhere(t *testing.T) {
	cache := newBadgerCache(t)
	ctx := context.Background()

	_, err := cache.GetFile(ctx, digest.Tombstone)
	assert.ErrorIs(t, err, errdefs.ErrTombstone)
	_, err = cache.GetFileContent(ctx, digest.Tombstone)
	assert.ErrorIs(t, err, errdefs.ErrTombstone)
	_, err = cache.GetSize(ctx, digest.Tombstone)
	assert.ErrorIs(t, err, errdefs.ErrTombstone)
	_, err = cache.Describe(ctx, digest.Tombstone)
	assert.ErrorIs(t, err, errdefs.ErrTombstone)
	err = cache.Delete(ctx, digest.Tombstone)
	assert.ErrorIs(t, err, errdefs.ErrTombstone)
	err = cache.Drop(digest.Tombstone)
	assert.ErrorIs(t, err, errdefs.ErrTombstone)
	err = cache.Load(ctx, digest.Tombstone)
	assert.ErrorIs(t, err, errdefs.ErrTombstone)

	// a tombstone error is not a not-found error
	_, err = cache.GetFile(ctx, digest.Tombstone)
	assert.NotErrorIs(t, err, errdefs.ErrNotFound)
}

func TestDropKeepsBackendCopy(t *testing.T) {
	cache := newBadgerCache(t)
	ctx := context.Background()

	content := []byte("dropped then reloaded")
	dgst, err := cache.PutFileContent(ctx, content, "")
	require.NoError(t, err)

	require.NoError(t, cache.Drop(dgst))
	// a second drop is a no-op
	require.NoError(t, cache.Drop(dgst))

	got, err := cache.GetFileContent(ctx, dgst)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDeleteRemovesEverywhere(t *testing.T) {
	cache := newBadgerCache(t)
	ctx := context.Background()

	dgst, err := cache.PutFileContent(ctx, []byte("short lived"), "")
	require.NoError(t, err)

	require.NoError(t, cache.Delete(ctx, dgst))
	_, err = cache.GetFileContent(ctx, dgst)
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestPurgeCacheKeepsBackend(t *testing.T) {
	cache := newBadgerCache(t)
	ctx := context.Background()

	content := []byte("survives a purge")
	dgst, err := cache.PutFileContent(ctx, content, "")
	require.NoError(t, err)

	require.NoError(t, cache.PurgeCache())

	entries, err := os.ReadDir(cache.Dir())
	require.NoError(t, err)
	for _, entry := range entries {
		assert.Equal(t, "_temp", entry.Name())
	}

	got, err := cache.GetFileContent(ctx, dgst)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDestroySharedCacheRefused(t *testing.T) {
	store, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	dir := filepath.Join(t.TempDir(), "shared-cache")
	cache, err := filecache.New(badgerstore.NewBackend(store), filecache.WithSharedCacheDir(dir))
	require.NoError(t, err)
	defer cache.Close()

	assert.True(t, cache.IsShared())
	err = cache.DestroyCache()
	assert.ErrorIs(t, err, errdefs.ErrInvalidParameter)
	_, statErr := os.Stat(dir)
	assert.NoError(t, statErr)
}

func TestPutAlwaysOffersToBackend(t *testing.T) {
	cache := newBadgerCache(t)
	ctx := context.Background()

	content := []byte("restored to the backend")
	dgst, err := cache.PutFileContent(ctx, content, "")
	require.NoError(t, err)

	// lose the backend copy but keep the cached one
	require.NoError(t, cache.Backend().Delete(ctx, dgst))

	// the second put must restore the backend even though the cache is warm
	_, err = cache.PutFileContent(ctx, content, "")
	require.NoError(t, err)
	_, err = cache.Backend().GetSize(ctx, dgst)
	assert.NoError(t, err)
}

func TestSaveRestoresBackendCopy(t *testing.T) {
	cache := newBadgerCache(t)
	ctx := context.Background()

	content := []byte("saved again")
	dgst, err := cache.PutFileContent(ctx, content, "")
	require.NoError(t, err)
	require.NoError(t, cache.Backend().Delete(ctx, dgst))

	require.NoError(t, cache.Save(ctx, dgst, "second life"))
	desc, err := cache.Backend().Describe(ctx, dgst)
	require.NoError(t, err)
	assert.Equal(t, "second life", desc)

	// saving something never cached has nothing to offer
	err = cache.Save(ctx, digest.FromBytes([]byte("unknown")), "")
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestWithTempDir(t *testing.T) {
	store, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	root := filepath.Join(t.TempDir(), "tmproot")
	cache, err := filecache.New(badgerstore.NewBackend(store), filecache.WithTempDir(root))
	require.NoError(t, err)

	assert.False(t, cache.IsShared())
	assert.Equal(t, root, filepath.Dir(cache.Dir()))

	// Close removes the private cache directory
	require.NoError(t, cache.Close())
	_, err = os.Stat(cache.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestNullBackendCache(t *testing.T) {
	cache, err := filecache.New(storage.NewNullBackend())
	require.NoError(t, err)
	defer func() {
		require.NoError(t, cache.Close())
		require.NoError(t, cache.DestroyCache())
	}()
	ctx := context.Background()

	content := []byte("gone the moment it is dropped")
	dgst, err := cache.PutFileContent(ctx, content, "")
	require.NoError(t, err)
	assert.Equal(t, digest.FromBytes(content), dgst)

	// served from the local cache even though the backend holds nothing
	got, err := cache.GetFileContent(ctx, dgst)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NoError(t, cache.Drop(dgst))
	_, err = cache.GetFileContent(ctx, dgst)
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestConcurrentGets(t *testing.T) {
	cache := newBadgerCache(t)
	ctx := context.Background()

	content := bytes.Repeat([]byte("c"), 4*filecache.ChunkSize)
	dgst, err := cache.PutFileContent(ctx, content, "")
	require.NoError(t, err)
	require.NoError(t, cache.Drop(dgst))

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := cache.GetFileContent(ctx, dgst)
			if err == nil && !bytes.Equal(got, content) {
				err = assert.AnError
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestCheckBackendIntegrity(t *testing.T) {
	cache, fs := newFSCache(t)
	ctx := context.Background()

	good, err := cache.PutFileContent(ctx, []byte("intact"), "")
	require.NoError(t, err)
	bad, err := cache.PutFileContent(ctx, []byte("doomed"), "")
	require.NoError(t, err)

	clean, err := cache.CheckBackendIntegrity(ctx, false)
	require.NoError(t, err)
	assert.True(t, clean)

	// corrupt one stored file behind the cache's back
	require.NoError(t, afero.WriteFile(fs, filepath.Join("/store", bad.Encoded()), []byte("flipped"), 0o600))

	clean, err = cache.CheckBackendIntegrity(ctx, false)
	require.NoError(t, err)
	assert.False(t, clean)

	clean, err = cache.CheckBackendIntegrity(ctx, true)
	require.NoError(t, err)
	assert.False(t, clean)

	// the corrupted file is gone, the intact one stays
	infos, err := cache.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, good, infos[0].Digest)
}

func TestList(t *testing.T) {
	cache := newBadgerCache(t)
	ctx := context.Background()

	first, err := cache.PutFileContent(ctx, []byte("first"), "one")
	require.NoError(t, err)
	second, err := cache.PutFileContent(ctx, []byte("second"), "two")
	require.NoError(t, err)

	infos, err := cache.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	got := map[digest.Digest]string{}
	for _, info := range infos {
		got[info.Digest] = info.Description
	}
	assert.Equal(t, map[digest.Digest]string{first: "one", second: "two"}, got)
}

func TestLargeContentRoundTrip(t *testing.T) {
	cache := newBadgerCache(t)
	ctx := context.Background()

	// spans many copy chunks and several large object pages
	content := bytes.Repeat([]byte("0123456789abcdef"), xio.MiB/16)
	dgst, err := cache.PutFileFromReader(ctx, bytes.NewReader(content), "big one")
	require.NoError(t, err)

	require.NoError(t, cache.Drop(dgst))
	got, err := cache.GetFileContent(ctx, dgst)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestCanceledContextStopsPut(t *testing.T) {
	cache := newBadgerCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cache.PutFileContent(ctx, bytes.Repeat([]byte("x"), 4*filecache.ChunkSize), "")
	assert.ErrorIs(t, err, context.Canceled)
}
