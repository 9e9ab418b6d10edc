// ABOUTME: Prometheus metrics for document store operations
// ABOUTME: Instrument wraps any Store and records counts, outcomes and latency per table

package docstore

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the docstore metrics.
type Collector struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	purged     *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authstore_docstore_operations_total",
			Help: "Document store operations by table, operation and outcome",
		}, []string{"table", "op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authstore_docstore_operation_seconds",
			Help:    "Document store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"table", "op"}),
		purged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authstore_docstore_purged_total",
			Help: "Expired documents removed by the janitor",
		}, []string{"table"}),
	}

	reg.MustRegister(c.operations, c.latency, c.purged)
	return c
}

func (c *Collector) observe(table, op string, start time.Time, err error) {
	c.operations.WithLabelValues(table, op, outcome(err)).Inc()
	c.latency.WithLabelValues(table, op).Observe(time.Since(start).Seconds())
}

// RecordPurged adds n to the purged counter for table.
func (c *Collector) RecordPurged(table string, n int) {
	c.purged.WithLabelValues(table).Add(float64(n))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "exists"
	case errors.Is(err, ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

// Handler returns the HTTP handler Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Instrument wraps s so every operation is recorded by c. The result
// implements Expirer when s does.
func Instrument(s Store, c *Collector) Store {
	in := &instrumentedStore{inner: s, metrics: c}
	if e, ok := s.(Expirer); ok {
		return &instrumentedExpirer{instrumentedStore: in, expirer: e}
	}
	return in
}

type instrumentedStore struct {
	inner   Store
	metrics *Collector
}

func tableName(t *Table) string {
	if t == nil {
		return ""
	}
	return t.Name
}

func (s *instrumentedStore) EnsureTables(ctx context.Context, tables ...*Table) error {
	start := time.Now()
	err := s.inner.EnsureTables(ctx, tables...)
	for _, t := range tables {
		s.metrics.observe(tableName(t), "ensure_tables", start, err)
	}
	return err
}

func (s *instrumentedStore) Create(ctx context.Context, t *Table, item Item) (Item, error) {
	start := time.Now()
	out, err := s.inner.Create(ctx, t, item)
	s.metrics.observe(tableName(t), "create", start, err)
	return out, err
}

func (s *instrumentedStore) Put(ctx context.Context, t *Table, item Item) (Item, error) {
	start := time.Now()
	out, err := s.inner.Put(ctx, t, item)
	s.metrics.observe(tableName(t), "put", start, err)
	return out, err
}

func (s *instrumentedStore) GetByHashKey(ctx context.Context, t *Table, hashKey string) (Item, error) {
	start := time.Now()
	out, err := s.inner.GetByHashKey(ctx, t, hashKey)
	s.metrics.observe(tableName(t), "get", start, err)
	return out, err
}

func (s *instrumentedStore) GetByHashAndRangeKey(ctx context.Context, t *Table, hashKey, rangeKey string) (Item, error) {
	start := time.Now()
	out, err := s.inner.GetByHashAndRangeKey(ctx, t, hashKey, rangeKey)
	s.metrics.observe(tableName(t), "get", start, err)
	return out, err
}

func (s *instrumentedStore) GetByIndex(ctx context.Context, t *Table, indexName, value string) (Item, error) {
	start := time.Now()
	out, err := s.inner.GetByIndex(ctx, t, indexName, value)
	s.metrics.observe(tableName(t), "get_by_index", start, err)
	return out, err
}

func (s *instrumentedStore) Close() error {
	return s.inner.Close()
}

type instrumentedExpirer struct {
	*instrumentedStore
	expirer Expirer
}

func (s *instrumentedExpirer) PurgeExpired(ctx context.Context, t *Table, now time.Time) (int, error) {
	start := time.Now()
	n, err := s.expirer.PurgeExpired(ctx, t, now)
	s.metrics.observe(tableName(t), "purge_expired", start, err)
	if err == nil && n > 0 {
		s.metrics.RecordPurged(tableName(t), n)
	}
	return n, err
}
