package fetchcache

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"clubops-backend/lib/telemetry"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openTestCache(t *testing.T) Cache {
	sqlite, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlite.Close() })
	_, err = sqlite.Exec(Schema)
	if err != nil {
		t.Fatal(err)
	}
	return New(sqlite)
}

func TestCacheRoundtrip(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:fetchcache")
	defer cleanup()

	cache := openTestCache(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	err = cache.Set(ctx, "activities", []byte(`{"nodes":[]}`), "billing", time.Hour)
	require.NoError(t, err)

	value, ok, err := cache.Get(ctx, "activities")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`{"nodes":[]}`), value)
}

func TestCacheExpiry(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:fetchcache")
	defer cleanup()

	cache := openTestCache(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := cache.Set(ctx, "stale", []byte("old"), "billing", -time.Minute)
	require.NoError(t, err)

	_, ok, err := cache.Get(ctx, "stale")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Expire(ctx))
}

func TestCachePurgeTag(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:fetchcache")
	defer cleanup()

	cache := openTestCache(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	require.NoError(t, cache.Set(ctx, "a", []byte("1"), "billing", time.Hour))
	require.NoError(t, cache.Set(ctx, "b", []byte("2"), "geo", time.Hour))

	require.NoError(t, cache.PurgeTag(ctx, "billing"))

	_, ok, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = cache.Get(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
}
