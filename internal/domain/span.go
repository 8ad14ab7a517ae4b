package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// SimulationSpan describes how a multi-decade simulation is cut into chunks.
// It is built once from configuration and never mutated.
type SimulationSpan struct {
	StartYear     int
	TotalYears    int
	YearIncrement int
	// DecadeAligned starts a chunk at every year ending in DecadeOffset
	// instead of stepping by YearIncrement.
	DecadeAligned    bool
	DecadeOffset     int
	YearsPerChunk    int
	OrdinalStartYear int
}

// Validate reports the first inconsistent setting.
func (s SimulationSpan) Validate() error {
	switch {
	case s.StartYear <= 0:
		return fmt.Errorf("start year must be positive, got %d", s.StartYear)
	case s.TotalYears <= 0:
		return fmt.Errorf("total years must be positive, got %d", s.TotalYears)
	case !s.DecadeAligned && s.YearIncrement <= 0:
		return fmt.Errorf("year increment must be positive, got %d", s.YearIncrement)
	case s.DecadeAligned && (s.DecadeOffset < 0 || s.DecadeOffset > 9):
		return fmt.Errorf("decade offset must be 0-9, got %d", s.DecadeOffset)
	case s.YearsPerChunk <= 0:
		return fmt.Errorf("years per chunk must be positive, got %d", s.YearsPerChunk)
	case s.OrdinalStartYear < 1:
		return fmt.Errorf("ordinal start year must be at least 1, got %d", s.OrdinalStartYear)
	}
	return nil
}

// FinalYear is the last year of the span. It only holds January 1.
func (s SimulationSpan) FinalYear() int { return s.StartYear + s.TotalYears }

// ChunkStartYears lists the first year of every chunk the span expects,
// ascending. A start with no counted year, such as one falling on the
// span's final year, is left out.
func (s SimulationSpan) ChunkStartYears() []int {
	var out []int
	add := func(y int) {
		if s.hasCountedYears(y) {
			out = append(out, y)
		}
	}
	if s.DecadeAligned {
		for y := s.StartYear; y <= s.FinalYear(); y++ {
			if mod(y, 10) == s.DecadeOffset {
				add(y)
			}
		}
		return out
	}
	if s.YearIncrement <= 0 {
		return nil
	}
	for y := s.StartYear; y <= s.FinalYear(); y += s.YearIncrement {
		add(y)
	}
	return out
}

// hasCountedYears reports whether the chunk starting at start checks at
// least one year. The final year of the span is never counted.
func (s SimulationSpan) hasCountedYears(start int) bool {
	first := s.FirstCountedYear(start)
	return first <= s.ChunkYears(start).End && first < s.FinalYear()
}

// ChunkYears returns the nominal year range of the chunk starting at start,
// inclusive and clipped to the final year of the span.
func (s SimulationSpan) ChunkYears(start int) YearRange {
	end := start + s.YearsPerChunk
	if end > s.FinalYear() {
		end = s.FinalYear()
	}
	return YearRange{Start: start, End: end}
}

// FirstCountedYear is the ORDINAL_START_YEAR-th year of the chunk: the first
// year with a full year of data.
func (s SimulationSpan) FirstCountedYear(start int) int {
	return start + s.OrdinalStartYear - 1
}

// ChunkFor returns the earliest chunk whose counted years include year.
func (s SimulationSpan) ChunkFor(year int) (int, bool) {
	for _, start := range s.ChunkStartYears() {
		r := s.ChunkYears(start)
		if year >= s.FirstCountedYear(start) && year <= r.End && year != s.FinalYear() {
			return start, true
		}
	}
	return 0, false
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

const chunkDirSuffix = "_chunk"

var chunkDirPattern = regexp.MustCompile(`^(\d{4})_chunk$`)

// ChunkDirectory is one chunk's raw output directory.
type ChunkDirectory struct {
	Root      string
	StartYear int
}

// Name is the directory base name, e.g. "1977_chunk".
func (c ChunkDirectory) Name() string { return ChunkDirName(c.StartYear) }

// Path joins Root and Name.
func (c ChunkDirectory) Path() string { return filepath.Join(c.Root, c.Name()) }

func (c ChunkDirectory) String() string { return c.Path() }

// ChunkDirName formats the directory name of the chunk starting at year.
func ChunkDirName(year int) string {
	return fmt.Sprintf("%04d%s", year, chunkDirSuffix)
}

// ParseChunkDirName extracts the start year from a name like "1977_chunk".
func ParseChunkDirName(name string) (int, bool) {
	m := chunkDirPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return y, true
}
