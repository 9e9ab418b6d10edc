// ABOUTME: Tests for the Prometheus-instrumented store decorator
// ABOUTME: Checks operation counters, outcomes, purge counts and the metrics handler

package docstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrument_RecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	s := Instrument(NewMemoryStore(), c)
	require.NoError(t, s.EnsureTables(ctx, thingsTable()))

	_, err := s.Create(ctx, thingsTable(), Item{"id": "a"})
	require.NoError(t, err)
	_, err = s.Create(ctx, thingsTable(), Item{"id": "a"})
	require.ErrorIs(t, err, ErrAlreadyExists)
	_, err = s.GetByHashKey(ctx, thingsTable(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Put(ctx, thingsTable(), Item{"id": "b", "bogus": true})
	require.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("things", "create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("things", "create", "exists")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("things", "get", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("things", "put", "invalid")))
	assert.Positive(t, testutil.CollectAndCount(c.latency, "authstore_docstore_operation_seconds"))
}

func TestInstrument_PreservesExpirer(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	_, ok := Instrument(NewMemoryStore(), c).(Expirer)
	assert.True(t, ok)

	redisLike := &RedisStore{}
	_, ok = Instrument(redisLike, c).(Expirer)
	assert.False(t, ok)
}

func TestInstrument_CountsPurged(t *testing.T) {
	ctx := context.Background()
	c := NewCollector(prometheus.NewRegistry())
	s := Instrument(NewMemoryStore(), c)
	require.NoError(t, s.EnsureTables(ctx, thingsTable()))

	_, err := s.Create(ctx, thingsTable(), Item{"expires": int64(10)})
	require.NoError(t, err)

	n, err := s.(Expirer).PurgeExpired(ctx, thingsTable(), time.Unix(100, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.purged.WithLabelValues("things")))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordPurged("sessions", 2)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `authstore_docstore_purged_total{table="sessions"} 2`))
}
