package cmor

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dayTable = `{
  "Header": {"table_id": "Table day"},
  "variable_entry": {
    "tasmax": {
      "frequency": "day",
      "units": "K",
      "cell_methods": "area: mean time: maximum",
      "long_name": "Daily Maximum Near-Surface Air Temperature",
      "standard_name": "air_temperature",
      "positive": ""
    },
    "pr": {
      "frequency": "day",
      "units": "kg m-2 s-1",
      "cell_methods": "area: time: mean",
      "long_name": "Precipitation",
      "standard_name": "precipitation_flux",
      "positive": ""
    }
  }
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_FetchTable(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(dayTable))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/Tables/", 5*time.Second, discardLogger())
	table, err := c.Table(context.Background(), "day")
	require.NoError(t, err)

	assert.Equal(t, "/Tables/CORDEX-CMIP6_day.json", gotPath)
	require.Contains(t, table, "tasmax")
	assert.Equal(t, "K", table["tasmax"].Units)
	assert.Equal(t, "area: mean time: maximum", table["tasmax"].CellMethods)
	assert.Equal(t, "precipitation_flux", table["pr"].StandardName)
}

func TestClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, discardLogger())
	_, err := c.Table(context.Background(), "mon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestClient_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, discardLogger())
	_, err := c.Table(context.Background(), "day")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode cmor table")
}

func TestClient_LocalDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TableName("day")), []byte(dayTable), 0o644))

	c := NewClient(dir, time.Second, discardLogger())
	table, err := c.Table(context.Background(), "day")
	require.NoError(t, err)
	assert.Len(t, table, 2)

	_, err = c.Table(context.Background(), "mon")
	assert.Error(t, err)
}

type countingFetcher struct {
	calls atomic.Int32
	table Table
	err   error
}

func (f *countingFetcher) Table(context.Context, string) (Table, error) {
	f.calls.Add(1)
	return f.table, f.err
}

func TestCatalog_CachesTables(t *testing.T) {
	inner := &countingFetcher{table: Table{"tasmax": {CellMethods: "area: mean time: maximum"}}}
	cat := NewCatalog(inner)
	ctx := context.Background()

	e, ok, err := cat.Lookup(ctx, "tasmax", domain.FreqDay)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "area: mean time: maximum", e.CellMethods)

	_, ok, err = cat.Lookup(ctx, "zg500", domain.FreqDay)
	require.NoError(t, err)
	assert.False(t, ok)

	st, ok, err := cat.Statistic(ctx, "tasmax", domain.FreqDay)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.StatMax, st)

	_, ok, err = cat.Statistic(ctx, "zg500", domain.FreqDay)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.EqualValues(t, 1, inner.calls.Load(), "table fetched once per frequency")
}

func TestCatalog_ErrorsNotCached(t *testing.T) {
	inner := &countingFetcher{err: assert.AnError}
	cat := NewCatalog(inner)

	_, _, err := cat.Lookup(context.Background(), "pr", domain.FreqMonth)
	require.ErrorIs(t, err, assert.AnError)
	_, _, err = cat.Lookup(context.Background(), "pr", domain.FreqMonth)
	require.Error(t, err)
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestCatalog_ConcurrentLookupsShareFetch(t *testing.T) {
	inner := &countingFetcher{table: Table{"pr": {CellMethods: "area: time: mean"}}}
	cat := NewCatalog(inner)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, ok, err := cat.Statistic(context.Background(), "pr", domain.FreqDay)
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, domain.StatMean, st)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, inner.calls.Load())
}
