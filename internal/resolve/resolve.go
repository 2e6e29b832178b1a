// Package resolve decides which graph expression a request asks for.
//
// A request is a flat map of string fields. The expression comes from the
// first of these that is present and non-blank:
//
//	graph         the expression itself
//	graph_key     a name looked up through a KeySource
//	graph_cipher  an expression obfuscated with internal/cipher
//
// With none of them the resolver returns DefaultGraph. Key lookups and
// decoded payloads go through an injected cache.Cache.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bitsmind/graphsql/internal/cache"
	"github.com/bitsmind/graphsql/internal/cipher"
	"github.com/bitsmind/graphsql/internal/ir"
	"github.com/bitsmind/graphsql/internal/metrics"
	"github.com/bitsmind/graphsql/internal/plan"
)

// Request field names.
const (
	FieldGraph       = "graph"
	FieldGraphKey    = "graph_key"
	FieldGraphCipher = "graph_cipher"
)

// DefaultGraph selects every readable column and loads nothing.
const DefaultGraph = "{*}"

// DefaultTTL is how long looked-up and decoded expressions stay cached.
const DefaultTTL = time.Hour

// Strategy names the request field an expression was resolved from.
type Strategy string

const (
	StrategyLiteral Strategy = "literal"
	StrategyKey     Strategy = "key"
	StrategyCipher  Strategy = "cipher"
	StrategyDefault Strategy = "default"
)

// KeySource looks up stored graph expressions by key. found is false, with
// a nil error, for a key that does not exist.
//
// Implemented by store.Store and pgstore.Store.
type KeySource interface {
	LookupGraph(ctx context.Context, key string) (graph string, found bool, err error)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSecret sets the shared secret for graph_cipher payloads.
func WithSecret(secret string) Option {
	return func(r *Resolver) { r.secret = secret }
}

// WithTTL sets the cache lifetime for resolved expressions. A ttl <= 0
// caches without expiry.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithLogger sets the logger used for resolution events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithMetrics records resolutions and compilations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// Resolver turns requests into graph expressions.
//
// Resolver is safe for concurrent use; its only shared state is the cache.
type Resolver struct {
	keys    KeySource
	cache   *cache.Cache
	secret  string
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New returns a resolver. keys may be nil when graph_key is not offered;
// c may be nil to disable caching.
func New(keys KeySource, c *cache.Cache, opts ...Option) *Resolver {
	r := &Resolver{
		keys:   keys,
		cache:  c,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the graph expression req asks for.
func (r *Resolver) Resolve(ctx context.Context, req map[string]string) (string, error) {
	graph, _, err := r.resolve(ctx, req)
	return graph, err
}

// ResolveStrategy is Resolve that also reports which field was used.
func (r *Resolver) ResolveStrategy(ctx context.Context, req map[string]string) (string, Strategy, error) {
	return r.resolve(ctx, req)
}

func (r *Resolver) resolve(ctx context.Context, req map[string]string) (string, Strategy, error) {
	var (
		graph    string
		strategy Strategy
		err      error
	)
	switch {
	case field(req, FieldGraph) != "":
		graph, strategy = field(req, FieldGraph), StrategyLiteral
	case field(req, FieldGraphKey) != "":
		strategy = StrategyKey
		graph, err = r.lookupKey(ctx, field(req, FieldGraphKey))
	case field(req, FieldGraphCipher) != "":
		strategy = StrategyCipher
		graph, err = r.decrypt(ctx, field(req, FieldGraphCipher))
	default:
		graph, strategy = DefaultGraph, StrategyDefault
	}
	if err != nil {
		r.logger.Debug("graph resolution failed", "strategy", strategy, "error", err)
		return "", strategy, err
	}

	r.metrics.Resolved(string(strategy))
	r.logger.Debug("graph resolved", "strategy", strategy, "graph", graph)
	return graph, strategy, nil
}

func field(req map[string]string, name string) string {
	return strings.TrimSpace(req[name])
}

func (r *Resolver) lookupKey(ctx context.Context, key string) (string, error) {
	if r.keys == nil {
		return "", &ResolveError{
			Code:    ErrCodeKeysNotConfigured,
			Message: fmt.Sprintf("cannot resolve graph_key %q: no key source configured", key),
		}
	}

	v, err := r.remember(ctx, "graph_key:"+key, func(ctx context.Context) ([]byte, error) {
		graph, found, err := r.keys.LookupGraph(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("lookup graph_key %q: %w", key, err)
		}
		if !found {
			return nil, &ResolveError{
				Code:    ErrCodeUnknownGraphKey,
				Message: fmt.Sprintf("invalid graph_key %q", key),
			}
		}
		return []byte(graph), nil
	})
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (r *Resolver) decrypt(ctx context.Context, payload string) (string, error) {
	if r.secret == "" {
		return "", &ResolveError{
			Code:    ErrCodeCipherNotConfigured,
			Message: "cannot decode graph_cipher: no secret configured",
		}
	}

	key := "graph_cipher:" + ir.HashStrings(ir.DomainCipher, payload, r.secret)
	v, err := r.remember(ctx, key, func(context.Context) ([]byte, error) {
		plain, err := cipher.Decrypt(payload, r.secret)
		if err != nil {
			return nil, fmt.Errorf("decode graph_cipher: %w", err)
		}
		return []byte(plain), nil
	})
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (r *Resolver) remember(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if r.cache == nil {
		return load(ctx)
	}
	return r.cache.Remember(ctx, key, r.ttl, load)
}

// ResolveAndCompile resolves req and compiles the expression against
// entityName.
func (r *Resolver) ResolveAndCompile(ctx context.Context, req map[string]string, entityName string, compiler *plan.Compiler, opts ...plan.Option) (*plan.Plan, error) {
	graph, err := r.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.Compile(graph, entityName, compiler, opts...)
}

// Compile compiles an already resolved expression, recording the outcome
// and duration.
func (r *Resolver) Compile(graph, entityName string, compiler *plan.Compiler, opts ...plan.Option) (*plan.Plan, error) {
	start := time.Now()
	p, err := compiler.Compile(graph, entityName, opts...)
	r.metrics.Compiled(outcome(err), time.Since(start))
	if err != nil {
		r.logger.Debug("graph compilation failed", "entity", entityName, "error", err)
		return nil, err
	}
	return p, nil
}

// outcome labels a compilation result for metrics.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return "error"
}

// Invalidate drops every cached key lookup and decoded payload.
func (r *Resolver) Invalidate(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	if err := r.cache.Flush(ctx); err != nil {
		return fmt.Errorf("invalidate: %w", err)
	}
	return nil
}
