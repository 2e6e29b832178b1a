package pgstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitsmind/graphsql/internal/store"
	"github.com/bitsmind/graphsql/internal/testutil"
)

// openTestStore connects to GRAPHSQL_TEST_POSTGRES_DSN inside a throwaway
// schema. Tests skip when the variable is unset.
func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	dsn := os.Getenv("GRAPHSQL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GRAPHSQL_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	schema := "graphsql_test_" + uuid.NewString()[:8]
	config, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	config.ConnConfig.RuntimeParams["search_path"] = schema

	pool, err := pgxpool.NewWithConfig(ctx, config)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		pool.Close()
	})

	s, err := New(ctx, pool, opts...)
	require.NoError(t, err)
	return s
}

func TestOpen_BadDSN(t *testing.T) {
	_, err := Open(context.Background(), "postgres://%zz")
	assert.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	clock := testutil.NewFakeClock(time.Time{})
	s := openTestStore(t, WithClock(clock))
	ctx := context.Background()

	k, err := s.PutKey(ctx, "category_list", "{id,name}")
	require.NoError(t, err)
	assert.Equal(t, "category_list", k.Key)
	assert.True(t, k.CreatedAt.Equal(clock.Now()))

	clock.Advance(time.Minute)
	k2, err := s.PutKey(ctx, "category_list", "{id}")
	require.NoError(t, err)
	assert.Equal(t, k.ID, k2.ID)
	assert.Equal(t, "{id}", k2.Graph)
	assert.True(t, k2.CreatedAt.Equal(k.CreatedAt))
	assert.True(t, k2.UpdatedAt.Equal(clock.Now()))

	graph, found, err := s.LookupGraph(ctx, "category_list")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "{id}", graph)

	_, found, err = s.LookupGraph(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_ListAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"b", "a", "C"} {
		_, err := s.PutKey(ctx, k, "{id}")
		require.NoError(t, err)
	}

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.Equal(t, "C", keys[0].Key)
	assert.Equal(t, "a", keys[1].Key)

	require.NoError(t, s.DeleteKey(ctx, "a"))
	assert.ErrorIs(t, s.DeleteKey(ctx, "a"), store.ErrKeyNotFound)

	_, err = s.GetKey(ctx, "a")
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
}

func TestStore_RejectsBlank(t *testing.T) {
	s := openTestStore(t)

	_, err := s.PutKey(context.Background(), "", "{id}")
	assert.ErrorIs(t, err, store.ErrEmptyKey)
}
