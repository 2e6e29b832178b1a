package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/bitsmind/graphsql/internal/assist"
	"github.com/bitsmind/graphsql/internal/cache"
	"github.com/bitsmind/graphsql/internal/entity"
	"github.com/bitsmind/graphsql/internal/plan"
	"github.com/bitsmind/graphsql/internal/querysql"
	"github.com/bitsmind/graphsql/internal/resolve"
	"github.com/bitsmind/graphsql/internal/store"
	"github.com/bitsmind/graphsql/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenario cases against a deterministic resolver stack.
type Harness struct {
	entities *entity.Registry
	resolver *resolve.Resolver
	compiler *plan.Compiler
	sql      *querysql.SQLCompiler
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load entity declarations
// 2. Open an in-memory key store and seed scenario keys
// 3. Run each case through resolve, compile and render
// 4. Check each case against its expectations
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	reg, err := entity.LoadPath(scenario.Entities)
	if err != nil {
		return nil, fmt.Errorf("failed to load entities: %w", err)
	}

	clock := testutil.NewFakeClock(time.Time{})
	st, err := store.Open(":memory:", store.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	keys := make([]string, 0, len(scenario.Keys))
	for k := range scenario.Keys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if _, err := st.PutKey(ctx, k, scenario.Keys[k]); err != nil {
			return nil, fmt.Errorf("failed to seed key %q: %w", k, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	c := cache.New(cache.NewMemory(), cache.WithClock(clock), cache.WithLogger(logger))
	opts := []resolve.Option{resolve.WithLogger(logger)}
	if scenario.Secret != "" {
		opts = append(opts, resolve.WithSecret(scenario.Secret))
	}

	h := &Harness{
		entities: reg,
		resolver: resolve.New(st, c, opts...),
		compiler: plan.NewCompiler(reg),
		sql:      querysql.NewSQLCompiler(reg),
	}

	result := NewResult()
	for _, tc := range scenario.Cases {
		cr := h.runCase(ctx, tc)
		result.AddCase(cr)
		for _, err := range checkCase(cr, tc.Expect) {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

// runCase resolves, compiles and renders one case. Failures are recorded
// on the result rather than returned.
func (h *Harness) runCase(ctx context.Context, tc Case) CaseResult {
	cr := CaseResult{Name: tc.Name, Entity: tc.Entity}

	graph, strategy, err := h.resolver.ResolveStrategy(ctx, tc.Request)
	if err != nil {
		return cr.fail(err)
	}
	cr.Graph, cr.Strategy = graph, string(strategy)

	p, err := h.resolver.Compile(graph, tc.Entity, h.compiler)
	if err != nil {
		return cr.fail(err)
	}
	cr.Plan = p
	if cr.Fingerprint, err = p.Fingerprint(); err != nil {
		return cr.fail(err)
	}

	ent, err := h.entities.Entity(tc.Entity)
	if err != nil {
		return cr.fail(err)
	}
	scope, err := assist.ForEntity(ent).Scope(tc.Request)
	if err != nil {
		return cr.fail(err)
	}
	if cr.SQL, cr.Args, err = h.sql.CompileRoot(p, scope); err != nil {
		return cr.fail(err)
	}
	return cr
}

func (cr CaseResult) fail(err error) CaseResult {
	cr.Error = errorCode(err)
	cr.Message = err.Error()
	return cr
}

func errorCode(err error) string {
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return "ERROR"
}
