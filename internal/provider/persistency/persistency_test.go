package persistency

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNoopIsInert(t *testing.T) {
	n := NewNoop()
	entries, err := n.ReadCachedParameterSets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.NoError(t, n.CacheParameterSet(context.Background(), Entry{Name: "x", JSON: "{}"}, true))
	require.NoError(t, n.SyncToStorage(context.Background()))
	require.NoError(t, n.Close())
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := NewSQLite(ctx, path, testLogger())
	require.NoError(t, err)
	defer store.Close()

	initial, err := store.ReadCachedParameterSets(ctx)
	require.NoError(t, err)
	assert.Empty(t, initial)

	require.NoError(t, store.CacheParameterSet(ctx, Entry{Name: "setA", JSON: `{"parameters":{"foo":1},"qualifier":0}`}, true))
	require.NoError(t, store.CacheParameterSet(ctx, Entry{Name: "setB", JSON: `{"parameters":{},"qualifier":0}`}, false))
	require.NoError(t, store.SyncToStorage(ctx))

	entries, err := store.ReadCachedParameterSets(ctx)
	require.NoError(t, err)
	names := namesOf(entries)
	sort.Strings(names)
	assert.Equal(t, []string{"setA", "setB"}, names)
}

func TestSQLiteUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := NewSQLite(ctx, path, testLogger())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.CacheParameterSet(ctx, Entry{Name: "setA", JSON: `{"v":1}`}, true))
	require.NoError(t, store.CacheParameterSet(ctx, Entry{Name: "setA", JSON: `{"v":2}`}, true))

	entries, err := store.ReadCachedParameterSets(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, `{"v":2}`, entries[0].JSON)
}

func TestRedisRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisWithClient(client, time.Hour, true, testLogger())

	require.NoError(t, store.CacheParameterSet(context.Background(), Entry{Name: "setA", JSON: `{"parameters":{"foo":1},"qualifier":0}`}, true))

	entries, err := store.ReadCachedParameterSets(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "setA", entries[0].Name)
	assert.JSONEq(t, `{"parameters":{"foo":1},"qualifier":0}`, entries[0].JSON)
}

func namesOf(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}
