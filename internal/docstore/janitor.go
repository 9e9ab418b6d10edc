// ABOUTME: Background sweeper that purges documents past their TTL attribute
// ABOUTME: Only does work for stores implementing Expirer; Redis expires keys itself

package docstore

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultJanitorInterval is used when NewJanitor is given a non-positive interval.
const DefaultJanitorInterval = 5 * time.Minute

// Janitor periodically removes expired documents from a set of tables.
type Janitor struct {
	store    Store
	tables   []*Table
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewJanitor creates a janitor for the given tables. Tables without a TTL
// attribute are skipped.
func NewJanitor(store Store, interval time.Duration, tables ...*Table) *Janitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	var ttlTables []*Table
	for _, t := range tables {
		if t != nil && t.TTLAttribute != "" {
			ttlTables = append(ttlTables, t)
		}
	}
	return &Janitor{
		store:    store,
		tables:   ttlTables,
		interval: interval,
		now:      time.Now,
		logger:   slog.Default().With("component", "janitor"),
	}
}

// WithClock replaces the time source used to decide what has expired.
func (j *Janitor) WithClock(now func() time.Time) *Janitor {
	j.now = now
	return j
}

// Sweep runs a single purge pass and returns the number of documents removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	expirer, ok := j.store.(Expirer)
	if !ok {
		return 0, nil
	}

	now := j.now()
	total := 0
	var errs []error
	for _, t := range j.tables {
		n, err := expirer.PurgeExpired(ctx, t, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}

// Run sweeps every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	if _, ok := j.store.(Expirer); !ok {
		j.logger.Info("store expires documents natively, janitor idle")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("janitor started", "interval", j.interval, "tables", len(j.tables))
	for {
		select {
		case <-ticker.C:
			n, err := j.Sweep(ctx)
			if err != nil {
				j.logger.Error("sweep failed", "error", err)
				continue
			}
			if n > 0 {
				j.logger.Info("purged expired documents", "count", n)
			}
		case <-ctx.Done():
			j.logger.Info("janitor stopped")
			return nil
		}
	}
}
