package cmor

import (
	"context"
	"sync"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"golang.org/x/sync/singleflight"
)

// tableFetcher is satisfied by *Client.
type tableFetcher interface {
	Table(ctx context.Context, frequency string) (Table, error)
}

// Catalog answers variable lookups from per-frequency tables, fetching each
// table once. Concurrent lookups of an uncached frequency share one fetch.
// It implements cmdfile.Catalog.
type Catalog struct {
	inner  tableFetcher
	flight singleflight.Group

	mu     sync.RWMutex
	tables map[string]Table
}

// NewCatalog creates a caching catalog around a table source.
func NewCatalog(inner tableFetcher) *Catalog {
	return &Catalog{inner: inner, tables: make(map[string]Table)}
}

// Lookup returns the entry of variable in the table of frequency.
func (c *Catalog) Lookup(ctx context.Context, variable string, frequency domain.Frequency) (VariableEntry, bool, error) {
	t, err := c.table(ctx, string(frequency))
	if err != nil {
		return VariableEntry{}, false, err
	}
	e, ok := t[variable]
	return e, ok, nil
}

// Statistic derives the time statistic of variable at frequency from its
// cell_methods. ok is false when the table lacks the variable; the
// statistic is empty when cell_methods names no time method.
func (c *Catalog) Statistic(ctx context.Context, variable string, frequency domain.Frequency) (domain.TimeStatistic, bool, error) {
	e, ok, err := c.Lookup(ctx, variable, frequency)
	if err != nil || !ok {
		return "", false, err
	}
	st, _ := domain.StatisticFromCellMethods(e.CellMethods)
	return st, true, nil
}

func (c *Catalog) table(ctx context.Context, frequency string) (Table, error) {
	c.mu.RLock()
	t, ok := c.tables[frequency]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	v, err, _ := c.flight.Do(frequency, func() (any, error) {
		c.mu.RLock()
		t, ok := c.tables[frequency]
		c.mu.RUnlock()
		if ok {
			return t, nil
		}
		t, err := c.inner.Table(ctx, frequency)
		if err != nil {
			// Failures are not cached.
			return nil, err
		}
		c.mu.Lock()
		c.tables[frequency] = t
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Table), nil
}
