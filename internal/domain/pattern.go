package domain

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

// DefaultWRFDomain is the WRF nest id used when none is configured.
const DefaultWRFDomain = "d01"

// PatternKind identifies one raw WRF output stream.
type PatternKind int

const (
	KindPrimary PatternKind = iota
	KindHourly
	KindPressureLevel
	KindHeightLevel
	KindDerivedFields
	KindFiveDayMean
	KindRestart
)

var patternKinds = []struct {
	name     string
	prefix   string
	eligible bool
}{
	KindPrimary:       {"primary", "wrfout", true},
	KindHourly:        {"hourly", "wrfout_hour", true},
	KindPressureLevel: {"pressure_level", "wrfout_pres", true},
	KindHeightLevel:   {"height_level", "wrfout_zlev", true},
	KindDerivedFields: {"derived_fields", "wrfout_afwa", true},
	KindFiveDayMean:   {"five_day_mean", "wrfout_5day", false},
	KindRestart:       {"restart", "wrfrst", false},
}

// AllPatternKinds lists every known stream in declaration order.
func AllPatternKinds() []PatternKind {
	out := make([]PatternKind, len(patternKinds))
	for i := range patternKinds {
		out[i] = PatternKind(i)
	}
	return out
}

// EligiblePatternKinds lists the streams counted toward completeness.
func EligiblePatternKinds() []PatternKind {
	var out []PatternKind
	for _, k := range AllPatternKinds() {
		if k.Eligible() {
			out = append(out, k)
		}
	}
	return out
}

// ParsePatternKind maps a kind name such as "hourly" back to its value.
func ParsePatternKind(s string) (PatternKind, error) {
	for i, k := range patternKinds {
		if k.name == s {
			return PatternKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown pattern kind %q", s)
}

func (k PatternKind) valid() bool { return k >= 0 && int(k) < len(patternKinds) }

func (k PatternKind) String() string {
	if !k.valid() {
		return fmt.Sprintf("PatternKind(%d)", int(k))
	}
	return patternKinds[k].name
}

// Prefix is the filename prefix written by WRF for this stream.
func (k PatternKind) Prefix() string {
	if !k.valid() {
		return ""
	}
	return patternKinds[k].prefix
}

// Eligible reports whether files of this kind count toward completeness.
func (k PatternKind) Eligible() bool {
	return k.valid() && patternKinds[k].eligible
}

// MarshalText lets kinds key JSON maps by name.
func (k PatternKind) MarshalText() ([]byte, error) {
	if !k.valid() {
		return nil, fmt.Errorf("invalid pattern kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (k *PatternKind) UnmarshalText(b []byte) error {
	v, err := ParsePatternKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Stamp is one raw file recognized by the Matcher.
type Stamp struct {
	Kind PatternKind
	Time time.Time
	Name string
}

// wrfTimestampLayout is the Go layout of the timestamp WRF appends to names.
const wrfTimestampLayout = "2006-01-02_15:04:05"

var wrfDomainPattern = regexp.MustCompile(`^d\d{2}$`)

// Matcher recognizes raw output filenames of one WRF domain.
type Matcher struct {
	domain    string
	templates []*Template
}

// NewMatcher compiles the filename templates of every pattern kind for the
// given WRF domain id (e.g. "d01").
func NewMatcher(wrfDomain string) (*Matcher, error) {
	if !wrfDomainPattern.MatchString(wrfDomain) {
		return nil, fmt.Errorf("invalid WRF domain %q: want dNN", wrfDomain)
	}
	m := &Matcher{domain: wrfDomain, templates: make([]*Template, len(patternKinds))}
	for _, k := range AllPatternKinds() {
		tmpl, err := CompileTemplate(
			k.Prefix()+"_"+wrfDomain+"_${YEAR}-${MONTH}-${DAY}_${HOUR}:${MINUTE}:${SECOND}",
			WithOptionalSuffix(".nc"),
		)
		if err != nil {
			return nil, fmt.Errorf("compile %s template: %w", k, err)
		}
		m.templates[k] = tmpl
	}
	return m, nil
}

// Domain returns the WRF domain id the matcher was built for.
func (m *Matcher) Domain() string { return m.domain }

// Match returns the stamps of names that belong to kind, sorted by time and
// deduplicated by timestamp. A file present both with and without ".nc"
// counts once. Non-matching names are dropped.
func (m *Matcher) Match(names []string, kind PatternKind) []Stamp {
	if !kind.valid() {
		return nil
	}
	tmpl := m.templates[kind]
	seen := make(map[time.Time]bool)
	var out []Stamp
	for _, name := range names {
		match, ok := tmpl.Match(name)
		if !ok {
			continue
		}
		ts := match.Time()
		if seen[ts] {
			continue
		}
		seen[ts] = true
		out = append(out, Stamp{Kind: kind, Time: ts, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Filename renders the canonical name of kind at t, without suffix.
func (m *Matcher) Filename(kind PatternKind, t time.Time) string {
	return kind.Prefix() + "_" + m.domain + "_" + t.UTC().Format(wrfTimestampLayout)
}
