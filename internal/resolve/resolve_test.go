package resolve

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitsmind/graphsql/internal/cache"
	"github.com/bitsmind/graphsql/internal/cipher"
	"github.com/bitsmind/graphsql/internal/graph"
	"github.com/bitsmind/graphsql/internal/metrics"
	"github.com/bitsmind/graphsql/internal/plan"
	gtestutil "github.com/bitsmind/graphsql/internal/testutil"
)

type fakeKeys struct {
	mu      sync.Mutex
	graphs  map[string]string
	err     error
	lookups atomic.Int64
}

func (f *fakeKeys) LookupGraph(_ context.Context, key string) (string, bool, error) {
	f.lookups.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	g, ok := f.graphs[key]
	return g, ok, nil
}

func (f *fakeKeys) set(key, graph string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graphs[key] = graph
}

func newKeys() *fakeKeys {
	return &fakeKeys{graphs: map[string]string{
		"category_list": "{id,name,children{id}}",
	}}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newResolver(keys KeySource, opts ...Option) (*Resolver, *cache.Cache) {
	c := cache.New(cache.NewMemory(), cache.WithLogger(discard()))
	opts = append([]Option{WithLogger(discard())}, opts...)
	return New(keys, c, opts...), c
}

func TestResolve_Priority(t *testing.T) {
	payload, err := cipher.Encrypt("{id,slug}", "7.3")
	require.NoError(t, err)

	r, _ := newResolver(newKeys(), WithSecret("7.3"))

	tests := []struct {
		name     string
		req      map[string]string
		graph    string
		strategy Strategy
	}{
		{"nothing", map[string]string{}, DefaultGraph, StrategyDefault},
		{"nil request", nil, DefaultGraph, StrategyDefault},
		{"literal", map[string]string{"graph": "{id}"}, "{id}", StrategyLiteral},
		{"literal wins over key", map[string]string{"graph": "{id}", "graph_key": "category_list"}, "{id}", StrategyLiteral},
		{"key", map[string]string{"graph_key": "category_list"}, "{id,name,children{id}}", StrategyKey},
		{"key wins over cipher", map[string]string{"graph_key": "category_list", "graph_cipher": payload}, "{id,name,children{id}}", StrategyKey},
		{"cipher", map[string]string{"graph_cipher": payload}, "{id,slug}", StrategyCipher},
		{"blank literal is absent", map[string]string{"graph": "  ", "graph_key": "category_list"}, "{id,name,children{id}}", StrategyKey},
		{"unrelated fields", map[string]string{"page": "2"}, DefaultGraph, StrategyDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, s, err := r.ResolveStrategy(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.graph, g)
			assert.Equal(t, tt.strategy, s)
		})
	}
}

func TestResolve_UnknownKey(t *testing.T) {
	keys := newKeys()
	r, _ := newResolver(keys)
	ctx := context.Background()

	_, err := r.Resolve(ctx, map[string]string{"graph_key": "nope"})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeUnknownGraphKey))
	assert.Contains(t, err.Error(), `"nope"`)

	// misses are not cached: a key added later resolves
	keys.set("nope", "{id}")
	g, err := r.Resolve(ctx, map[string]string{"graph_key": "nope"})
	require.NoError(t, err)
	assert.Equal(t, "{id}", g)
}

func TestResolve_KeyLookupCached(t *testing.T) {
	keys := newKeys()
	r, _ := newResolver(keys)
	ctx := context.Background()
	req := map[string]string{"graph_key": "category_list"}

	for i := 0; i < 5; i++ {
		_, err := r.Resolve(ctx, req)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), keys.lookups.Load())

	// stale until invalidated
	keys.set("category_list", "{id}")
	g, err := r.Resolve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "{id,name,children{id}}", g)

	require.NoError(t, r.Invalidate(ctx))
	g, err = r.Resolve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "{id}", g)
	assert.Equal(t, int64(2), keys.lookups.Load())
}

func TestResolve_KeyTTL(t *testing.T) {
	keys := newKeys()
	clock := gtestutil.NewFakeClock(time.Time{})
	c := cache.New(cache.NewMemory(), cache.WithClock(clock), cache.WithLogger(discard()))
	r := New(keys, c, WithTTL(time.Minute), WithLogger(discard()))
	ctx := context.Background()
	req := map[string]string{"graph_key": "category_list"}

	_, err := r.Resolve(ctx, req)
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	_, err = r.Resolve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), keys.lookups.Load())

	clock.Advance(time.Minute)
	_, err = r.Resolve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), keys.lookups.Load())
}

func TestResolve_ConcurrentColdKey(t *testing.T) {
	keys := newKeys()
	r, _ := newResolver(keys)
	req := map[string]string{"graph_key": "category_list"}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := r.Resolve(context.Background(), req)
			assert.NoError(t, err)
			assert.Equal(t, "{id,name,children{id}}", g)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), keys.lookups.Load())
}

func TestResolve_KeySourceError(t *testing.T) {
	keys := newKeys()
	keys.err = errors.New("database is locked")
	r, _ := newResolver(keys)

	_, err := r.Resolve(context.Background(), map[string]string{"graph_key": "category_list"})
	require.Error(t, err)
	assert.ErrorIs(t, err, keys.err)
	assert.False(t, IsCode(err, ErrCodeUnknownGraphKey))
}

func TestResolve_NoKeySource(t *testing.T) {
	r, _ := newResolver(nil)

	_, err := r.Resolve(context.Background(), map[string]string{"graph_key": "k"})
	assert.True(t, IsCode(err, ErrCodeKeysNotConfigured))
}

func TestResolve_CipherNotConfigured(t *testing.T) {
	r, _ := newResolver(nil)

	_, err := r.Resolve(context.Background(), map[string]string{"graph_cipher": "}je["})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeCipherNotConfigured))
}

func TestResolve_CipherCacheKeyHidesSecret(t *testing.T) {
	mem := cache.NewMemory()
	c := cache.New(mem, cache.WithLogger(discard()))
	r := New(nil, c, WithSecret("s3cr3t.k"), WithLogger(discard()))

	payload, err := cipher.Encrypt("{id}", "s3cr3t.k")
	require.NoError(t, err)

	g, err := r.Resolve(context.Background(), map[string]string{"graph_cipher": payload})
	require.NoError(t, err)
	assert.Equal(t, "{id}", g)

	snap := mem.Snapshot()
	require.Len(t, snap, 1)
	for k := range snap {
		assert.NotContains(t, k, "s3cr3t")
		assert.NotContains(t, k, payload)
		assert.Contains(t, k, "graph_cipher:")
	}
}

func TestResolve_WithoutCache(t *testing.T) {
	keys := newKeys()
	r := New(keys, nil, WithLogger(discard()))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(ctx, map[string]string{"graph_key": "category_list"})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), keys.lookups.Load())
	assert.NoError(t, r.Invalidate(ctx))
}

func TestResolveAndCompile(t *testing.T) {
	compiler := plan.NewCompiler(gtestutil.Shop(t))
	m := metrics.New()
	r, _ := newResolver(newKeys(), WithMetrics(m))
	ctx := context.Background()

	p, err := r.ResolveAndCompile(ctx, map[string]string{"graph_key": "category_list"}, "categories", compiler)
	require.NoError(t, err)
	assert.Equal(t, "categories", p.Entity)
	assert.Contains(t, p.LoadNames(), "children")

	_, err = r.ResolveAndCompile(ctx, map[string]string{"graph": "{id,"}, "categories", compiler)
	require.Error(t, err)
	assert.True(t, graph.IsCode(err, graph.ErrCodeMalformedExpression))

	_, err = r.ResolveAndCompile(ctx, map[string]string{"graph": "{id,ghosts{id}}"}, "categories", compiler)
	assert.True(t, plan.IsCode(err, plan.ErrCodeUnknownRelation))

	_, err = r.ResolveAndCompile(ctx, map[string]string{"graph_key": "missing"}, "categories", compiler)
	assert.True(t, IsCode(err, ErrCodeUnknownGraphKey))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Compilations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Compilations.WithLabelValues(string(graph.ErrCodeMalformedExpression))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Compilations.WithLabelValues(string(plan.ErrCodeUnknownRelation))))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Resolutions.WithLabelValues(string(StrategyLiteral))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues(string(StrategyKey))))
}

func TestResolveAndCompile_SelectFilter(t *testing.T) {
	compiler := plan.NewCompiler(gtestutil.Shop(t))
	r, _ := newResolver(nil)

	drop := plan.WithSelectFilter(func(cols []string) []string {
		var out []string
		for _, c := range cols {
			if c != "slug" {
				out = append(out, c)
			}
		}
		return out
	})
	p, err := r.ResolveAndCompile(context.Background(), map[string]string{"graph": "{name,slug}"}, "categories", compiler, drop)
	require.NoError(t, err)
	assert.NotContains(t, p.Select, "slug")
	assert.Contains(t, p.Select, "name")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "error", outcome(errors.New("boom")))
	assert.Equal(t, "UNKNOWN_GRAPH_KEY", outcome(&ResolveError{Code: ErrCodeUnknownGraphKey}))
}
