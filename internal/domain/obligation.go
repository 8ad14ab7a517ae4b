package domain

// ObligationRule names the rule that set a year's expected file count.
type ObligationRule string

const (
	// RuleFull is an interior year: one file per day.
	RuleFull ObligationRule = "full"
	// RuleLeadIn covers chunk years before the ordinal start year. Data
	// starts mid-year so they are not counted.
	RuleLeadIn ObligationRule = "lead_in"
	// RuleSpanFinal covers the last year of the whole span, which holds only
	// January 1 and is not counted.
	RuleSpanFinal ObligationRule = "span_final"
)

// YearObligation is what one pattern kind must hold for one year of a chunk.
type YearObligation struct {
	Year          int            `json:"year"`
	Leap          bool           `json:"leap"`
	ExpectedFiles int            `json:"expected_files"`
	Rule          ObligationRule `json:"rule"`
}

// Counted reports whether the year takes part in the completeness check.
func (o YearObligation) Counted() bool { return o.Rule == RuleFull }

// leadInObligation applies the chunk-keyed rule. It reports false for years
// at or after the chunk's first counted year.
func leadInObligation(span SimulationSpan, chunkStart, year int) (YearObligation, bool) {
	if year >= span.FirstCountedYear(chunkStart) {
		return YearObligation{}, false
	}
	return YearObligation{Year: year, Leap: IsLeapYear(year), Rule: RuleLeadIn}, true
}

// spanFinalObligation applies the span-keyed rule. It reports false for any
// year other than the span's final year.
func spanFinalObligation(span SimulationSpan, year int) (YearObligation, bool) {
	if year != span.FinalYear() {
		return YearObligation{}, false
	}
	return YearObligation{Year: year, Leap: IsLeapYear(year), ExpectedFiles: 1, Rule: RuleSpanFinal}, true
}

// ObligationFor resolves the obligation of one year of the chunk starting at
// chunkStart. The span-final rule wins when both partial-year rules apply.
func ObligationFor(span SimulationSpan, chunkStart, year int) YearObligation {
	if o, ok := spanFinalObligation(span, year); ok {
		return o
	}
	if o, ok := leadInObligation(span, chunkStart, year); ok {
		return o
	}
	return YearObligation{Year: year, Leap: IsLeapYear(year), ExpectedFiles: DaysInYear(year), Rule: RuleFull}
}

// ChunkObligations lists the obligation of every year in the chunk's nominal
// range, ascending.
func ChunkObligations(span SimulationSpan, chunkStart int) []YearObligation {
	r := span.ChunkYears(chunkStart)
	out := make([]YearObligation, 0, r.Len())
	for y := r.Start; y <= r.End; y++ {
		out = append(out, ObligationFor(span, chunkStart, y))
	}
	return out
}

// CountedYears filters obligations down to the years that are checked.
func CountedYears(obligations []YearObligation) []int {
	var out []int
	for _, o := range obligations {
		if o.Counted() {
			out = append(out, o.Year)
		}
	}
	return out
}
