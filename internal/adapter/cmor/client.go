// Package cmor reads CORDEX-CMIP6 CMOR variable tables.
package cmor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTablesURL is the upstream location of the CORDEX-CMIP6 tables.
const DefaultTablesURL = "https://raw.githubusercontent.com/WCRP-CORDEX/cordex-cmip6-cmor-tables/main/Tables"

// VariableEntry is one variable of a CMOR table.
type VariableEntry struct {
	Frequency    string `json:"frequency"`
	Units        string `json:"units"`
	CellMethods  string `json:"cell_methods"`
	LongName     string `json:"long_name"`
	StandardName string `json:"standard_name"`
	Positive     string `json:"positive"`
}

// Table maps variable names to their entries.
type Table map[string]VariableEntry

// Client fetches tables over HTTP, or from a local directory when the base
// is not an http(s) URL.
type Client struct {
	base       string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a CMOR table client.
func NewClient(base string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// TableName is the file name of the table for a frequency.
func TableName(frequency string) string {
	return "CORDEX-CMIP6_" + frequency + ".json"
}

// Table loads the table of one frequency ("1hr", "day", "mon", "fx").
func (c *Client) Table(ctx context.Context, frequency string) (Table, error) {
	if isRemote(c.base) {
		return c.fetch(ctx, c.base+"/"+TableName(frequency))
	}
	f, err := os.Open(filepath.Join(c.base, TableName(frequency)))
	if err != nil {
		return nil, fmt.Errorf("open cmor table: %w", err)
	}
	defer f.Close()
	return decode(f)
}

func (c *Client) fetch(ctx context.Context, u string) (Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cmor table request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("cmor table %s: status %d: %s", u, resp.StatusCode, body)
	}

	t, err := decode(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetched cmor table", "url", u, "variables", len(t), "duration", time.Since(start))
	return t, nil
}

func decode(r io.Reader) (Table, error) {
	var doc struct {
		VariableEntry Table `json:"variable_entry"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode cmor table: %w", err)
	}
	if doc.VariableEntry == nil {
		return Table{}, nil
	}
	return doc.VariableEntry, nil
}

func isRemote(base string) bool {
	return strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://")
}
