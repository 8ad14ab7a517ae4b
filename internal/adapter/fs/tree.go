package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
)

// leadInStart is the day WRF output of a lead-in year starts.
var leadInStart = time.June

// Drop removes the last N daily files of one kind in one year.
type Drop struct {
	Kind domain.PatternKind
	Year int
}

// TreeWriter creates empty raw output files laid out like a real chunk
// tree. It backs cmd/genmock and end-to-end tests.
type TreeWriter struct {
	Root    string
	Matcher *domain.Matcher
	// Suffix is appended to every name, e.g. ".nc".
	Suffix string
}

// WriteChunk writes the files of every kind for the chunk starting at
// chunkStart: lead-in years from June 1, the span's final year on January 1
// only, and every other year in full less the dropped days. It returns the
// number of files written.
func (w TreeWriter) WriteChunk(span domain.SimulationSpan, chunkStart int, kinds []domain.PatternKind, drops map[Drop]int) (int, error) {
	dir := domain.ChunkDirectory{Root: w.Root, StartYear: chunkStart}.Path()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create chunk dir: %w", err)
	}

	written := 0
	for _, ob := range domain.ChunkObligations(span, chunkStart) {
		from := time.Date(ob.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		days := domain.DaysInYear(ob.Year)
		switch ob.Rule {
		case domain.RuleLeadIn:
			from = time.Date(ob.Year, leadInStart, 1, 0, 0, 0, 0, time.UTC)
			days = int(time.Date(ob.Year+1, time.January, 1, 0, 0, 0, 0, time.UTC).Sub(from).Hours() / 24)
		case domain.RuleSpanFinal:
			days = 1
		}
		for _, kind := range kinds {
			n := days - drops[Drop{Kind: kind, Year: ob.Year}]
			for d := 0; d < n; d++ {
				name := w.Matcher.Filename(kind, from.AddDate(0, 0, d)) + w.Suffix
				if err := touch(filepath.Join(dir, name)); err != nil {
					return written, err
				}
				written++
			}
		}
	}
	return written, nil
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("touch %s: %w", path, err)
	}
	return f.Close()
}
