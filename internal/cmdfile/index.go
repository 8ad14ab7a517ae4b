package cmdfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
)

// yearly labels annual index output in file names and metrics.
const yearly = "yr"

// IndexRequest is one climate index computed from one daily variable.
type IndexRequest struct {
	Index    string
	Variable string
	// Operator is the cdo operator, e.g. "eca_su" or "eca_rx1day".
	Operator string
}

// LoadIndexTable reads an index table from path. A missing table is a
// configuration error.
func LoadIndexTable(path string) ([]IndexRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ConfigError{Path: path, Reason: "cannot read index table", Err: err}
	}
	defer f.Close()

	idx, err := ReadIndexTable(f)
	if err != nil {
		return nil, &domain.ConfigError{Path: path, Reason: "invalid index table", Err: err}
	}
	return idx, nil
}

// ReadIndexTable parses rows of "index,variable,operator". A header row
// whose first cell is "index" is skipped. Index names must be unique since
// each names its own command file.
func ReadIndexTable(r io.Reader) ([]IndexRequest, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}
	var out []IndexRequest
	seen := make(map[string]int)
	for i, row := range rows {
		if i == 0 && strings.EqualFold(row.cells[0], "index") {
			continue
		}
		if len(row.cells) != 3 {
			return nil, fmt.Errorf("line %d: want 3 columns, got %d", row.line, len(row.cells))
		}
		req := IndexRequest{Index: row.cells[0], Variable: row.cells[1], Operator: row.cells[2]}
		if req.Index == "" || req.Variable == "" || req.Operator == "" {
			return nil, fmt.Errorf("line %d: empty cell", row.line)
		}
		if prev, ok := seen[req.Index]; ok {
			return nil, fmt.Errorf("line %d: index %q already defined on line %d", row.line, req.Index, prev)
		}
		seen[req.Index] = row.line
		out = append(out, req)
	}
	if len(out) == 0 {
		return nil, errors.New("no indices")
	}
	return out, nil
}

// PlanIndices emits one command per index and input year into
// "cmdfile.index.<index>". Existing outputs follow the same skip, fail and
// force rules as aggregation.
func (a *Aggregator) PlanIndices(indices []IndexRequest, inputs Inputs) ([]File, Summary, error) {
	var (
		files []File
		sum   Summary
	)
	for _, idx := range indices {
		years, ok := inputs.Years(idx.Variable)
		if !ok {
			a.logger.Warn("no inputs for index variable", "index", idx.Index, "variable", idx.Variable)
			continue
		}
		file := File{Name: FileName("index", idx.Index)}
		for y := years.Start; y <= years.End; y++ {
			in := inputs.Within(idx.Variable, domain.YearRange{Start: y, End: y})
			if len(in) == 0 {
				continue
			}
			g := Group{
				Variable:  idx.Variable,
				Range:     domain.YearRange{Start: y, End: y},
				Inputs:    in,
				Output:    filepath.Join(a.opts.OutputDir, indexOutputName(idx.Index, a.opts.Label, y)),
				Operators: []string{idx.Operator},
			}
			emit, err := a.admit(g.Output, yearly)
			if err != nil {
				return nil, sum, err
			}
			if !emit {
				sum.Skipped++
				continue
			}
			file.Lines = append(file.Lines, g.Command())
			sum.Emitted++
			a.metrics.CommandsEmitted.WithLabelValues(yearly).Inc()
		}
		files = append(files, file)
	}
	return files, sum, nil
}

func indexOutputName(index, label string, year int) string {
	parts := []string{index}
	if label != "" {
		parts = append(parts, label)
	}
	parts = append(parts, yearly, strconv.Itoa(year))
	return strings.Join(parts, "_") + ".nc"
}
