package domain

import (
	"fmt"
	"strings"
)

// YearRange is an inclusive range of years.
type YearRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether year lies in the range.
func (r YearRange) Contains(year int) bool { return year >= r.Start && year <= r.End }

// Len is the number of years in the range.
func (r YearRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

func (r YearRange) String() string { return fmt.Sprintf("%d-%d", r.Start, r.End) }

// Frequency is a CORDEX output frequency.
type Frequency string

const (
	Freq1Hour   Frequency = "1hr"
	Freq3Hour   Frequency = "3hr"
	Freq6Hour   Frequency = "6hr"
	FreqDay     Frequency = "day"
	FreqMonth   Frequency = "mon"
	freqUnknown Frequency = ""
)

var frequencyHours = map[Frequency]int{
	Freq1Hour: 1,
	Freq3Hour: 3,
	Freq6Hour: 6,
}

// ParseFrequency accepts the CORDEX frequency names, case-insensitively.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case Freq1Hour, Freq3Hour, Freq6Hour, FreqDay, FreqMonth:
		return f, nil
	}
	return freqUnknown, fmt.Errorf("unknown frequency %q", s)
}

// SubDaily reports whether f is finer than daily.
func (f Frequency) SubDaily() bool {
	_, ok := frequencyHours[f]
	return ok
}

// RangeWidth is the number of years merged into one aggregated file.
func (f Frequency) RangeWidth() int {
	switch f {
	case FreqMonth:
		return 10
	case FreqDay:
		return 5
	default:
		return 1
	}
}

// AggregationRanges splits [minYear, maxYear] into the windows used for f.
// Windows start at years congruent to 1 modulo the width, so ten-year
// windows run 2011-2020, 2021-2030. The first and last windows are clipped
// to the available years.
func AggregationRanges(f Frequency, minYear, maxYear int) []YearRange {
	if maxYear < minYear {
		return nil
	}
	w := f.RangeWidth()
	var out []YearRange
	for anchor := minYear - mod(minYear-1, w); anchor <= maxYear; anchor += w {
		r := YearRange{Start: max(anchor, minYear), End: min(anchor+w-1, maxYear)}
		out = append(out, r)
	}
	return out
}

// TimeRangeSuffix renders the CORDEX filename time range covering r at
// frequency f: YYYYMM-YYYYMM for monthly, YYYYMMDD-YYYYMMDD for daily and
// YYYYMMDDhhmm-YYYYMMDDhhmm for sub-daily output.
func TimeRangeSuffix(f Frequency, r YearRange) string {
	switch {
	case f == FreqMonth:
		return fmt.Sprintf("%04d01-%04d12", r.Start, r.End)
	case f == FreqDay:
		return fmt.Sprintf("%04d0101-%04d1231", r.Start, r.End)
	case f.SubDaily():
		last := 24 - frequencyHours[f]
		return fmt.Sprintf("%04d01010000-%04d1231%02d00", r.Start, r.End, last)
	default:
		return r.String()
	}
}
