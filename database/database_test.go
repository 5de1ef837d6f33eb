package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoctoVision/labelT/types"
)

func testInfo(modTime time.Time) types.ImageInfo {
	return types.ImageInfo{
		Path:       "/data/images/frame.png",
		Width:      640,
		Height:     480,
		Size:       12345,
		ModifiedAt: modTime.Format(time.RFC3339),
		Algorithm:  "ahash",
		Hash:       0xdeadbeefcafebabe,
	}
}

func TestStoreAndLookupHash(t *testing.T) {
	db, err := InitDatabase(filepath.Join(t.TempDir(), "hashes.db"))
	require.NoError(t, err)
	defer db.Close()

	modTime := time.Now().Truncate(time.Second)
	require.NoError(t, StoreHash(db, testInfo(modTime)))

	cached, err := LookupHash(db, "/data/images/frame.png", "ahash")
	require.NoError(t, err)
	require.NotNil(t, cached)

	assert.Equal(t, uint64(0xdeadbeefcafebabe), cached.Hash)
	assert.Equal(t, 640, cached.Width)
	assert.Equal(t, 480, cached.Height)
	assert.Equal(t, int64(12345), cached.Size)
}

func TestLookupHashMissIsNotAnError(t *testing.T) {
	db, err := InitDatabase(filepath.Join(t.TempDir(), "hashes.db"))
	require.NoError(t, err)
	defer db.Close()

	cached, err := LookupHash(db, "/data/images/absent.png", "ahash")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestLookupHashIsPerAlgorithm(t *testing.T) {
	db, err := InitDatabase(filepath.Join(t.TempDir(), "hashes.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, StoreHash(db, testInfo(time.Now())))

	cached, err := LookupHash(db, "/data/images/frame.png", "phash")
	require.NoError(t, err)
	assert.Nil(t, cached, "a hash cached for one algorithm must not serve another")
}

func TestIsFreshInvalidatesOnModification(t *testing.T) {
	stored := time.Now().Truncate(time.Second)
	info := testInfo(stored)

	assert.True(t, IsFresh(&info, stored))
	assert.True(t, IsFresh(&info, stored.Add(-time.Hour)), "older files keep their cache entry")
	assert.False(t, IsFresh(&info, stored.Add(time.Hour)), "a modified file invalidates its cache entry")
	assert.False(t, IsFresh(nil, stored))
}

func TestIsFreshToleratesSubSecondModTimes(t *testing.T) {
	// ext4/xfs mtimes carry nanoseconds; the stored timestamp does not
	modTime := time.Date(2026, 3, 14, 10, 0, 0, 123456789, time.UTC)
	info := testInfo(modTime)

	assert.True(t, IsFresh(&info, modTime), "an unchanged file with a fractional mtime keeps its cache entry")
	assert.True(t, IsFresh(&info, modTime.Add(500*time.Millisecond)))
	assert.False(t, IsFresh(&info, modTime.Add(time.Second)))
}

func TestStoreHashReplacesExistingEntry(t *testing.T) {
	db, err := InitDatabase(filepath.Join(t.TempDir(), "hashes.db"))
	require.NoError(t, err)
	defer db.Close()

	info := testInfo(time.Now())
	require.NoError(t, StoreHash(db, info))

	info.Hash = 0x1111111111111111
	require.NoError(t, StoreHash(db, info))

	cached, err := LookupHash(db, info.Path, info.Algorithm)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, uint64(0x1111111111111111), cached.Hash)

	stats, err := GetCacheStats(db, "ahash")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 1, stats.UniqueHashes)
}
