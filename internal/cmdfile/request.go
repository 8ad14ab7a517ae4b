// Package cmdfile generates command files: text files of shell commands,
// one per line, that an external batch launcher runs in parallel.
package cmdfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
)

// Request is one row of the data-request table: a variable and the
// frequencies it must be delivered at.
type Request struct {
	Variable    string
	Frequencies []domain.Frequency
	// Statistic overrides the time statistic derived from the CMOR table.
	Statistic domain.TimeStatistic
}

// LoadRequests reads a data-request table from path. A missing table is a
// configuration error.
func LoadRequests(path string) ([]Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ConfigError{Path: path, Reason: "cannot read data-request table", Err: err}
	}
	defer f.Close()

	reqs, err := ReadRequests(f)
	if err != nil {
		return nil, &domain.ConfigError{Path: path, Reason: "invalid data-request table", Err: err}
	}
	return reqs, nil
}

// ReadRequests parses rows of "variable,frequencies[,statistic]". The
// frequencies cell holds one or more names separated by spaces or
// semicolons. Blank lines, "#" comments and a leading header row whose
// first cell is "variable" are skipped. Repeated variables merge.
func ReadRequests(r io.Reader) ([]Request, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}

	var out []Request
	index := make(map[string]int)
	for i, row := range rows {
		if i == 0 && strings.EqualFold(row.cells[0], "variable") {
			continue
		}
		if len(row.cells) < 2 || len(row.cells) > 3 {
			return nil, fmt.Errorf("line %d: want 2 or 3 columns, got %d", row.line, len(row.cells))
		}
		variable := row.cells[0]
		if variable == "" {
			return nil, fmt.Errorf("line %d: empty variable", row.line)
		}
		freqs, err := parseFrequencies(row.cells[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.line, err)
		}
		var stat domain.TimeStatistic
		if len(row.cells) == 3 && row.cells[2] != "" {
			if stat, err = domain.ParseTimeStatistic(row.cells[2]); err != nil {
				return nil, fmt.Errorf("line %d: %w", row.line, err)
			}
		}

		if j, ok := index[variable]; ok {
			out[j].Frequencies = mergeFrequencies(out[j].Frequencies, freqs)
			if stat != "" {
				out[j].Statistic = stat
			}
			continue
		}
		index[variable] = len(out)
		out = append(out, Request{Variable: variable, Frequencies: freqs, Statistic: stat})
	}
	if len(out) == 0 {
		return nil, errors.New("no requests")
	}
	return out, nil
}

type row struct {
	line  int
	cells []string
}

// readRows returns the trimmed, non-comment CSV rows of r.
func readRows(r io.Reader) ([]row, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		cells := make([]string, len(rec))
		blank := true
		for i, c := range rec {
			cells[i] = strings.TrimSpace(c)
			if cells[i] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		rows = append(rows, row{line: line, cells: cells})
	}
}

func parseFrequencies(cell string) ([]domain.Frequency, error) {
	fields := strings.FieldsFunc(cell, func(r rune) bool { return r == ' ' || r == ';' || r == '\t' })
	if len(fields) == 0 {
		return nil, errors.New("no frequencies")
	}
	var out []domain.Frequency
	for _, f := range fields {
		freq, err := domain.ParseFrequency(f)
		if err != nil {
			return nil, err
		}
		out = mergeFrequencies(out, []domain.Frequency{freq})
	}
	return out, nil
}

func mergeFrequencies(have, add []domain.Frequency) []domain.Frequency {
	for _, f := range add {
		if !slices.Contains(have, f) {
			have = append(have, f)
		}
	}
	return have
}
