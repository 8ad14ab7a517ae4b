package cmdfile

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
)

// DefaultInputTemplate matches the monthly files written by the
// post-processing collaborator, e.g.
// tas_NAM-12_ERA5_evaluation_r1i1p1f1_NCAR_WRF461_v1-r1_hr_1980-01.nc.
const DefaultInputTemplate = "${VARIABLE}_*_${YEAR}-${MONTH}.nc"

// Input is one post-processed file.
type Input struct {
	Path     string
	Variable string
	Year     int
	// Month is 0 for yearly files.
	Month int
}

// Inputs indexes discovered files by variable.
type Inputs map[string][]Input

// Years returns the first and last year held for variable.
func (in Inputs) Years(variable string) (domain.YearRange, bool) {
	files := in[variable]
	if len(files) == 0 {
		return domain.YearRange{}, false
	}
	return domain.YearRange{Start: files[0].Year, End: files[len(files)-1].Year}, true
}

// Within returns the paths of variable's files whose year lies in r.
func (in Inputs) Within(variable string, r domain.YearRange) []string {
	var out []string
	for _, f := range in[variable] {
		if r.Contains(f.Year) {
			out = append(out, f.Path)
		}
	}
	return out
}

// DiscoverInputs lists dir and, for every variable, each of its
// subdirectories named after a variable, keeping names that match tmpl.
// The template must capture ${YEAR}; ${VARIABLE} falls back to the
// subdirectory name. A missing dir is a configuration error.
func DiscoverInputs(l domain.Lister, dir string, tmpl *domain.Template, variables []string) (Inputs, error) {
	names, err := l.ListNames(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.ConfigError{Path: dir, Reason: "input directory does not exist", Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("discover inputs: %w", err)
	}

	in := make(Inputs)
	collect(in, dir, names, tmpl, "")
	for _, v := range variables {
		sub := filepath.Join(dir, v)
		names, err := l.ListNames(sub)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("discover inputs: %w", err)
		}
		collect(in, sub, names, tmpl, v)
	}

	for v, files := range in {
		sort.Slice(files, func(i, j int) bool {
			if files[i].Year != files[j].Year {
				return files[i].Year < files[j].Year
			}
			if files[i].Month != files[j].Month {
				return files[i].Month < files[j].Month
			}
			return files[i].Path < files[j].Path
		})
		in[v] = dedupe(files)
	}
	return in, nil
}

func collect(in Inputs, dir string, names []string, tmpl *domain.Template, variable string) {
	for _, name := range names {
		m, ok := tmpl.Match(name)
		if !ok {
			continue
		}
		v, ok := m.Field(domain.PlaceholderVariable)
		if !ok {
			v = variable
		}
		if v == "" || (variable != "" && v != variable) {
			continue
		}
		month, _ := m.Int(domain.PlaceholderMonth)
		in[v] = append(in[v], Input{
			Path:     filepath.Join(dir, name),
			Variable: v,
			Year:     m.Year(),
			Month:    month,
		})
	}
}

// dedupe drops repeated paths from a sorted slice.
func dedupe(files []Input) []Input {
	out := files[:0]
	for i, f := range files {
		if i > 0 && f.Path == files[i-1].Path {
			continue
		}
		out = append(out, f)
	}
	return out
}
