package store

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitsmind/graphsql/internal/testutil"
)

func TestPutKey_InsertAndGet(t *testing.T) {
	clock := testutil.NewFakeClock(time.Time{})
	s := createTestStore(t, WithClock(clock))
	ctx := context.Background()

	k, err := s.PutKey(ctx, "category_list", "{id,name,children{id}}")
	require.NoError(t, err)

	assert.Positive(t, k.ID)
	assert.Equal(t, "category_list", k.Key)
	assert.Equal(t, "{id,name,children{id}}", k.Graph)
	assert.True(t, k.CreatedAt.Equal(clock.Now()))
	assert.True(t, k.UpdatedAt.Equal(clock.Now()))

	got, err := s.GetKey(ctx, "category_list")
	require.NoError(t, err)
	assert.Equal(t, k, got)
}

func TestPutKey_UpsertKeepsIdentity(t *testing.T) {
	clock := testutil.NewFakeClock(time.Time{})
	s := createTestStore(t, WithClock(clock))
	ctx := context.Background()

	first, err := s.PutKey(ctx, "k", "{id}")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	second, err := s.PutKey(ctx, "k", "{id,name}")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "{id,name}", second.Graph)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
	assert.Equal(t, time.Hour, second.UpdatedAt.Sub(first.UpdatedAt))

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestPutKey_TrimsAndRejectsBlank(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	k, err := s.PutKey(ctx, "  spaced  ", "  {id}  ")
	require.NoError(t, err)
	assert.Equal(t, "spaced", k.Key)
	assert.Equal(t, "{id}", k.Graph)

	_, err = s.PutKey(ctx, " ", "{id}")
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = s.PutKey(ctx, "k", "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestGetKey_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetKey(context.Background(), "missing")
	require.ErrorIs(t, err, ErrKeyNotFound)
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestListKeys_OrderedByKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"b", "a", "C", "c"} {
		_, err := s.PutKey(ctx, k, "{id}")
		require.NoError(t, err)
	}

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)

	var names []string
	for _, k := range keys {
		names = append(names, k.Key)
	}
	// BINARY collation: upper case sorts before lower case.
	assert.Equal(t, []string{"C", "a", "b", "c"}, names)
}

func TestListKeys_Empty(t *testing.T) {
	s := createTestStore(t)

	keys, err := s.ListKeys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDeleteKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.PutKey(ctx, "k", "{id}")
	require.NoError(t, err)

	require.NoError(t, s.DeleteKey(ctx, "k"))

	_, err = s.GetKey(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	assert.ErrorIs(t, s.DeleteKey(ctx, "k"), ErrKeyNotFound)
}

func TestLookupGraph(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.PutKey(ctx, "product_list", "{id,name,category{name}}")
	require.NoError(t, err)

	graph, found, err := s.LookupGraph(ctx, "product_list")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "{id,name,category{name}}", graph)

	graph, found, err = s.LookupGraph(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, graph)
}

func TestKeys_SurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	_, err = s1.PutKey(ctx, "k", "{id}")
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	graph, found, err := s2.LookupGraph(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "{id}", graph)
}

func TestLookupGraph_ContextCancelled(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.LookupGraph(ctx, "k")
	assert.Error(t, err)
}

var uuidV7 = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestUUIDv7Generator(t *testing.T) {
	var gen KeyGenerator = UUIDv7Generator{}

	a := gen.Generate()
	b := gen.Generate()
	assert.Regexp(t, uuidV7, a)
	assert.NotEqual(t, a, b)
}

func TestSequenceKeyGenerator_SatisfiesKeyGenerator(t *testing.T) {
	var gen KeyGenerator = testutil.NewSequenceKeyGenerator("graph")
	assert.Equal(t, "graph-1", gen.Generate())
	assert.Equal(t, "graph-2", gen.Generate())
}
