package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnapshotCache_Expiry(t *testing.T) {
	cache := NewSnapshotCache(20 * time.Millisecond)
	cache.Set(&PlaybackSnapshot{DeviceID: "d1"})

	snap, ok := cache.Get()
	require.True(t, ok)
	require.Equal(t, "d1", snap.DeviceID)

	time.Sleep(40 * time.Millisecond)
	_, ok = cache.Get()
	require.False(t, ok)
}

func TestSnapshotCache_CachesNilSnapshot(t *testing.T) {
	cache := NewSnapshotCache(time.Minute)
	calls := 0
	fetch := func() (*PlaybackSnapshot, error) {
		calls++
		return nil, nil
	}

	for i := 0; i < 2; i++ {
		snap, err := cache.GetOrFetch(fetch)
		require.NoError(t, err)
		require.Nil(t, snap)
	}
	require.Equal(t, 1, calls)

	stats := cache.Stats()
	require.True(t, stats.HasData)
	require.True(t, stats.IsFresh)
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
}

func TestSnapshotCache_ErrorsNotCached(t *testing.T) {
	cache := NewSnapshotCache(time.Minute)
	boom := errors.New("boom")

	_, err := cache.GetOrFetch(func() (*PlaybackSnapshot, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	require.False(t, cache.Stats().HasData)
}

func TestSnapshotCache_ZeroTTLAlwaysFetches(t *testing.T) {
	cache := NewSnapshotCache(0)
	calls := 0
	for i := 0; i < 3; i++ {
		_, err := cache.GetOrFetch(func() (*PlaybackSnapshot, error) {
			calls++
			return &PlaybackSnapshot{}, nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, 3, calls)
}

func TestSnapshotCache_Invalidate(t *testing.T) {
	cache := NewSnapshotCache(time.Minute)
	cache.Set(&PlaybackSnapshot{DeviceID: "d1"})
	cache.Invalidate()

	_, ok := cache.Get()
	require.False(t, ok)
}
