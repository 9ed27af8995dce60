package index

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"blog-image-server/internal/platform/storage"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := storage.Open(dsn)
	require.NoError(t, err)
	s, err := NewSQLite(db)
	require.NoError(t, err)
	return s
}

func newTestRedisStore(t *testing.T) Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s, err := NewRedis(Config{Redis: &RedisConfig{Addr: mr.Addr(), Prefix: "test"}})
	require.NoError(t, err)
	return s
}

func runStoreLifecycle(t *testing.T, s Store) {
	ctx := context.Background()
	t.Cleanup(func() { _ = s.Close(ctx) })

	entries := []Entry{
		{Path: "/o/photo-medium.webp", Source: "photo.jpg", Variant: "medium", Format: "webp", URL: "/uploads/optimized/photo-medium.webp", Size: 100, Width: 600, Height: 400},
		{Path: "/o/photo-medium.jpeg", Source: "photo.jpg", Variant: "medium", Format: "jpeg", Size: 150, Width: 600, Height: 400,
			Metadata: map[string]any{"on_demand": true}},
		{Path: "/o/other-thumbnail.webp", Source: "other.png", Variant: "thumbnail", Format: "webp", Size: 10},
	}
	for _, e := range entries {
		require.NoError(t, s.Record(ctx, e))
	}

	got, err := s.Get(ctx, "/o/photo-medium.webp")
	require.NoError(t, err)
	assert.Equal(t, "medium", got.Variant)
	assert.Equal(t, int64(100), got.Size)
	assert.False(t, got.CreatedAt.IsZero())

	withMeta, err := s.Get(ctx, "/o/photo-medium.jpeg")
	require.NoError(t, err)
	assert.Equal(t, true, withMeta.Metadata["on_demand"])

	list, err := s.ListBySource(ctx, "photo.jpg")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "/o/photo-medium.jpeg", list[0].Path)
	assert.Equal(t, "/o/photo-medium.webp", list[1].Path)

	// re-recording the same path overwrites
	require.NoError(t, s.Record(ctx, Entry{Path: "/o/photo-medium.webp", Source: "photo.jpg", Variant: "medium", Format: "webp", Size: 120}))
	got, err = s.Get(ctx, "/o/photo-medium.webp")
	require.NoError(t, err)
	assert.Equal(t, int64(120), got.Size)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats["total"])

	require.NoError(t, s.Remove(ctx, "/o/photo-medium.webp"))
	_, err = s.Get(ctx, "/o/photo-medium.webp")
	assert.True(t, errors.Is(err, ErrNotFound))

	list, err = s.ListBySource(ctx, "photo.jpg")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Remove(ctx, "/o/never-recorded.webp"))

	empty, err := s.ListBySource(ctx, "missing.jpg")
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.Error(t, s.Record(ctx, Entry{}))
}

func TestMemoryStoreLifecycle(t *testing.T) {
	runStoreLifecycle(t, NewMemory())
}

func TestSQLiteStoreLifecycle(t *testing.T) {
	runStoreLifecycle(t, newTestSQLiteStore(t))
}

func TestRedisStoreLifecycle(t *testing.T) {
	runStoreLifecycle(t, newTestRedisStore(t))
}

func TestNewFactory(t *testing.T) {
	s, err := New(Config{}, Dependencies{})
	require.NoError(t, err)
	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, stats["type"])

	dsn := fmt.Sprintf("file:factory-%d?mode=memory&cache=shared", time.Now().UnixNano())
	s, err = New(Config{Driver: DriverSQLite, SQLite: &SQLiteConfig{DSN: dsn}}, Dependencies{})
	require.NoError(t, err)
	stats, err = s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, stats["type"])
	require.NoError(t, s.Close(context.Background()))

	_, err = New(Config{Driver: DriverSQLite}, Dependencies{})
	assert.Error(t, err)

	_, err = New(Config{Driver: DriverRedis}, Dependencies{})
	assert.Error(t, err)

	_, err = New(Config{Driver: "etcd"}, Dependencies{})
	assert.Error(t, err)
}
