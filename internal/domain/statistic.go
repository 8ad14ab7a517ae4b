package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// TimeStatistic is how values are reduced over a time window.
type TimeStatistic string

const (
	StatMean  TimeStatistic = "mean"
	StatMax   TimeStatistic = "max"
	StatMin   TimeStatistic = "min"
	StatSum   TimeStatistic = "sum"
	StatPoint TimeStatistic = "point"
)

var cellMethodStats = map[string]TimeStatistic{
	"mean":    StatMean,
	"maximum": StatMax,
	"minimum": StatMin,
	"sum":     StatSum,
	"point":   StatPoint,
}

// ParseTimeStatistic accepts both the short names and the CF cell method
// words (maximum, minimum).
func ParseTimeStatistic(s string) (TimeStatistic, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if st, ok := cellMethodStats[s]; ok {
		return st, nil
	}
	switch st := TimeStatistic(s); st {
	case StatMean, StatMax, StatMin, StatSum, StatPoint:
		return st, nil
	}
	return "", fmt.Errorf("unknown time statistic %q", s)
}

var timeMethodPattern = regexp.MustCompile(`time:\s*([a-z]+)`)

// StatisticFromCellMethods derives the outermost time statistic of a CF
// cell_methods string. "area: mean time: maximum within days time: mean over
// days" yields mean; "area: time: mean" yields mean.
func StatisticFromCellMethods(cellMethods string) (TimeStatistic, bool) {
	matches := timeMethodPattern.FindAllStringSubmatch(strings.ToLower(cellMethods), -1)
	for i := len(matches) - 1; i >= 0; i-- {
		if st, ok := cellMethodStats[matches[i][1]]; ok {
			return st, true
		}
	}
	return "", false
}
