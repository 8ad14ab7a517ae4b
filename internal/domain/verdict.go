package domain

import (
	"sort"
	"time"
)

// Gap records one deficient (kind, year) pair of a chunk.
type Gap struct {
	Kind     PatternKind `json:"kind"`
	Year     int         `json:"year"`
	Observed int         `json:"observed"`
	Expected int         `json:"expected"`
	// MissingDates lists the absent daily timestamps, ascending.
	MissingDates []time.Time `json:"missing_dates,omitempty"`
}

// CompletenessVerdict is the outcome of evaluating one chunk directory.
type CompletenessVerdict struct {
	Chunk       ChunkDirectory
	Obligations []YearObligation
	// MissingYears is ascending and unique.
	MissingYears []int
	// Counts holds the observed files per eligible kind and year.
	Counts map[PatternKind]map[int]int
	Gaps   []Gap
}

// Complete reports whether no counted year is missing.
func (v CompletenessVerdict) Complete() bool { return len(v.MissingYears) == 0 }

// CompleteYears lists the counted years that are not missing, ascending.
func (v CompletenessVerdict) CompleteYears() []int {
	missing := make(map[int]bool, len(v.MissingYears))
	for _, y := range v.MissingYears {
		missing[y] = true
	}
	var out []int
	for _, y := range CountedYears(v.Obligations) {
		if !missing[y] {
			out = append(out, y)
		}
	}
	return out
}

// ChunkState classifies a chunk after a scan.
type ChunkState string

const (
	ChunkReady      ChunkState = "ready"
	ChunkIncomplete ChunkState = "incomplete"
	ChunkMissing    ChunkState = "missing"
)

// ChunkStatus is the per-chunk scan result published to downstream
// consumers.
type ChunkStatus struct {
	RunID         string     `json:"run_id"`
	Chunk         string     `json:"chunk"`
	Path          string     `json:"path"`
	StartYear     int        `json:"start_year"`
	State         ChunkState `json:"state"`
	MissingYears  []int      `json:"missing_years,omitempty"`
	CompleteYears []int      `json:"complete_years,omitempty"`
	ScannedAt     time.Time  `json:"scanned_at"`
}

// NewChunkStatus builds the status of a chunk. A nil verdict means the
// directory does not exist.
func NewChunkStatus(runID string, chunk ChunkDirectory, v *CompletenessVerdict) ChunkStatus {
	s := ChunkStatus{
		RunID:     runID,
		Chunk:     chunk.Name(),
		Path:      chunk.Path(),
		StartYear: chunk.StartYear,
		State:     ChunkMissing,
		ScannedAt: Now(),
	}
	if v == nil {
		return s
	}
	s.MissingYears = v.MissingYears
	s.CompleteYears = v.CompleteYears()
	if v.Complete() {
		s.State = ChunkReady
	} else {
		s.State = ChunkIncomplete
	}
	return s
}

// ReadinessReport maps a ready chunk's path to its verified-complete years.
type ReadinessReport map[string][]int

// Paths returns the chunk paths in ascending order.
func (r ReadinessReport) Paths() []string {
	out := make([]string, 0, len(r))
	for p := range r {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
