package syncstate

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(storeSchema)
	require.NoError(t, err)

	return NewStore(db)
}

func TestStorePutGetRoundTrip(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.Put("positions:1", []string{"PETR4", "VALE3"}, time.Hour))

	data, err := store.Get("positions:1")
	require.NoError(t, err)
	require.NotNil(t, data)

	var decoded []string
	require.NoError(t, msgpack.Unmarshal(data, &decoded))
	assert.Equal(t, []string{"PETR4", "VALE3"}, decoded)
}

func TestStoreGetMissingKey(t *testing.T) {
	store := testStore(t)

	data, err := store.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestStoreReplaceExistingKey(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.Put("k", "old", time.Hour))
	require.NoError(t, store.Put("k", "new", time.Hour))

	data, err := store.Get("k")
	require.NoError(t, err)

	var decoded string
	require.NoError(t, msgpack.Unmarshal(data, &decoded))
	assert.Equal(t, "new", decoded)
}

func TestStoreGetIgnoresExpiration(t *testing.T) {
	store := testStore(t)

	// Expired rows still serve warm starts until the cleanup job prunes them.
	require.NoError(t, store.Put("k", "stale", -time.Hour))

	data, err := store.Get("k")
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestStoreDelete(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.Put("k", "v", time.Hour))
	require.NoError(t, store.Delete("k"))

	data, err := store.Get("k")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestStoreDeleteExpired(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.Put("expired1", "v", -time.Hour))
	require.NoError(t, store.Put("expired2", "v", -time.Minute))
	require.NoError(t, store.Put("live", "v", time.Hour))

	deleted, err := store.DeleteExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	data, err := store.Get("live")
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestCacheWarmStartsFromStore(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Put("k", []string{"persisted"}, time.Hour))

	cache := New(time.Minute, store, zerolog.Nop())
	cache.Register("k",
		func(ctx context.Context) (interface{}, error) { return []string{"fetched"}, nil },
		func(data []byte) (interface{}, error) {
			var v []string
			err := msgpack.Unmarshal(data, &v)
			return v, err
		},
	)

	// The persisted value is visible before any fetch runs, marked stale so
	// the next read or poll cycle replaces it.
	value, state, ok := cache.Peek("k")
	assert.True(t, ok)
	assert.Equal(t, StateStale, state)
	assert.Equal(t, []string{"persisted"}, value)
}

func TestFetchResultIsPersisted(t *testing.T) {
	store := testStore(t)
	cache := New(time.Minute, store, zerolog.Nop())

	cache.Register("k",
		func(ctx context.Context) (interface{}, error) { return []string{"fetched"}, nil },
		nil,
	)

	_, err := cache.Get(context.Background(), "k")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		data, err := store.Get("k")
		return err == nil && data != nil
	}, time.Second, 5*time.Millisecond)
}

func TestCleanupJob(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Put("expired", "v", -time.Hour))
	require.NoError(t, store.Put("live", "v", time.Hour))

	job := NewCleanupJob(store, zerolog.Nop())
	assert.Equal(t, "cache_cleanup", job.Name())
	require.NoError(t, job.Run())

	data, err := store.Get("expired")
	require.NoError(t, err)
	assert.Nil(t, data)
}
