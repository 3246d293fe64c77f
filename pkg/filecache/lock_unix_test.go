//go:build unix

package filecache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/filecache/pkg/errdefs"
)

func TestPrecacheLock(t *testing.T) {
	cache := newBadgerCache(t)

	lock, err := cache.PrecacheLock()
	require.NoError(t, err)

	// held, so a second taker is turned away
	_, err = cache.PrecacheLock()
	assert.ErrorIs(t, err, errdefs.ErrBusy)

	require.NoError(t, lock.Close())

	lock, err = cache.PrecacheLock()
	require.NoError(t, err)
	require.NoError(t, lock.Close())
}
