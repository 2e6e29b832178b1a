package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheHit("memory")
		m.CacheMiss("memory")
		m.Resolved("key")
		m.Compiled("ok", time.Millisecond)
	})
}

func TestRecording(t *testing.T) {
	m := New()

	m.CacheHit("memory")
	m.CacheHit("memory")
	m.CacheMiss("pebble")
	m.Resolved("cipher")
	m.Compiled("ok", time.Millisecond)
	m.Compiled("UNQUERYABLE_COLUMN", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("memory", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("pebble", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("cipher")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Compilations.WithLabelValues("UNQUERYABLE_COLUMN")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CompileDuration))
}

func TestRegisterTwiceIsTolerated(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()

	require.NoError(t, m.Register(reg))
	require.NoError(t, m.Register(reg))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg, m := NewRegistry()
	m.Resolved("literal")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `graphsql_resolver_resolutions_total{strategy="literal"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
