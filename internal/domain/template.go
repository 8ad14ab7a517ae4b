package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Placeholder names recognized in filename templates, written as ${NAME}.
const (
	PlaceholderYear      = "YEAR"
	PlaceholderMonth     = "MONTH"
	PlaceholderDay       = "DAY"
	PlaceholderHour      = "HOUR"
	PlaceholderMinute    = "MINUTE"
	PlaceholderSecond    = "SECOND"
	PlaceholderVariable  = "VARIABLE"
	PlaceholderFrequency = "FREQUENCY"
)

var placeholderPatterns = map[string]string{
	PlaceholderYear:      `\d{4}`,
	PlaceholderMonth:     `\d{2}`,
	PlaceholderDay:       `\d{2}`,
	PlaceholderHour:      `\d{2}`,
	PlaceholderMinute:    `\d{2}`,
	PlaceholderSecond:    `\d{2}`,
	PlaceholderVariable:  `[A-Za-z0-9]+`,
	PlaceholderFrequency: `[A-Za-z0-9]+`,
}

// Template is a filename template compiled into an anchored regular
// expression. Placeholders capture fields, "*" matches any run of characters
// and everything else is literal.
type Template struct {
	raw string
	re  *regexp.Regexp
}

// TemplateOption customizes template compilation.
type TemplateOption func(*templateOptions)

type templateOptions struct {
	suffixes []string
}

// WithOptionalSuffix lets a name carry one of the given suffixes (e.g. ".nc")
// after the templated part.
func WithOptionalSuffix(suffixes ...string) TemplateOption {
	return func(o *templateOptions) {
		o.suffixes = append(o.suffixes, suffixes...)
	}
}

// CompileTemplate compiles tmpl. Unknown, unterminated or repeated
// placeholders are rejected.
func CompileTemplate(tmpl string, opts ...TemplateOption) (*Template, error) {
	var o templateOptions
	for _, opt := range opts {
		opt(&o)
	}

	var b strings.Builder
	b.WriteString("^")
	seen := make(map[string]bool)
	for i := 0; i < len(tmpl); {
		switch {
		case strings.HasPrefix(tmpl[i:], "${"):
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("template %q: unterminated placeholder at offset %d", tmpl, i)
			}
			name := tmpl[i+2 : i+end]
			pattern, ok := placeholderPatterns[name]
			if !ok {
				return nil, fmt.Errorf("template %q: unknown placeholder ${%s}", tmpl, name)
			}
			if seen[name] {
				return nil, fmt.Errorf("template %q: placeholder ${%s} repeated", tmpl, name)
			}
			seen[name] = true
			fmt.Fprintf(&b, "(?P<%s>%s)", name, pattern)
			i += end + 1
		case tmpl[i] == '*':
			b.WriteString(".*?")
			i++
		default:
			j := i
			for j < len(tmpl) && tmpl[j] != '*' && !strings.HasPrefix(tmpl[j:], "${") {
				j++
			}
			b.WriteString(regexp.QuoteMeta(tmpl[i:j]))
			i = j
		}
	}
	if len(o.suffixes) > 0 {
		quoted := make([]string, len(o.suffixes))
		for i, s := range o.suffixes {
			quoted[i] = regexp.QuoteMeta(s)
		}
		b.WriteString("(?:" + strings.Join(quoted, "|") + ")?")
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", tmpl, err)
	}
	return &Template{raw: tmpl, re: re}, nil
}

// MustCompileTemplate is CompileTemplate for package-level templates.
func MustCompileTemplate(tmpl string, opts ...TemplateOption) *Template {
	t, err := CompileTemplate(tmpl, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) String() string { return t.raw }

// Expand substitutes the given placeholder values into the raw template.
func (t *Template) Expand(vars map[string]string) string {
	return Substitute(t.raw, vars)
}

// Match parses name against the template. Names that do not match, or whose
// date and time fields are out of range, report false.
func (t *Template) Match(name string) (TemplateMatch, bool) {
	sub := t.re.FindStringSubmatch(name)
	if sub == nil {
		return TemplateMatch{}, false
	}
	m := TemplateMatch{fields: make(map[string]string, len(sub))}
	for i, n := range t.re.SubexpNames() {
		if i == 0 || n == "" {
			continue
		}
		m.fields[n] = sub[i]
	}
	if !m.valid() {
		return TemplateMatch{}, false
	}
	return m, true
}

// TemplateMatch holds the fields captured from one filename.
type TemplateMatch struct {
	fields map[string]string
}

// Field returns the raw captured text of a placeholder.
func (m TemplateMatch) Field(name string) (string, bool) {
	v, ok := m.fields[name]
	return v, ok
}

// Int returns a numeric placeholder value.
func (m TemplateMatch) Int(name string) (int, bool) {
	v, ok := m.fields[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Year returns the captured year, or 0 when the template has none.
func (m TemplateMatch) Year() int {
	y, _ := m.Int(PlaceholderYear)
	return y
}

// Time assembles the captured date and time fields. Absent fields default to
// the start of their period.
func (m TemplateMatch) Time() time.Time {
	get := func(name string, def int) int {
		if v, ok := m.Int(name); ok {
			return v
		}
		return def
	}
	return time.Date(
		get(PlaceholderYear, 0), time.Month(get(PlaceholderMonth, 1)), get(PlaceholderDay, 1),
		get(PlaceholderHour, 0), get(PlaceholderMinute, 0), get(PlaceholderSecond, 0),
		0, time.UTC,
	)
}

func (m TemplateMatch) valid() bool {
	month, hasMonth := m.Int(PlaceholderMonth)
	if hasMonth && (month < 1 || month > 12) {
		return false
	}
	if day, ok := m.Int(PlaceholderDay); ok {
		limit := 31
		if hasMonth {
			if year, ok := m.Int(PlaceholderYear); ok {
				limit = DaysInMonth(year, month)
			} else if month == 2 {
				limit = 29
			} else {
				limit = DaysInMonth(2001, month)
			}
		}
		if day < 1 || day > limit {
			return false
		}
	}
	if h, ok := m.Int(PlaceholderHour); ok && h > 23 {
		return false
	}
	if mi, ok := m.Int(PlaceholderMinute); ok && mi > 59 {
		return false
	}
	if s, ok := m.Int(PlaceholderSecond); ok && s > 59 {
		return false
	}
	return true
}

// Substitute replaces ${NAME} placeholders in tmpl with the given values.
// Placeholders without a value are left in place.
func Substitute(tmpl string, vars map[string]string) string {
	for k, v := range vars {
		tmpl = strings.ReplaceAll(tmpl, "${"+k+"}", v)
	}
	return tmpl
}

// HasPlaceholder reports whether tmpl references ${name}.
func HasPlaceholder(tmpl, name string) bool {
	return strings.Contains(tmpl, "${"+name+"}")
}

// DataVariable returns the variable name that leads a post-processed
// filename template, e.g. "tas" for "tas_NAM-12_..._${YEAR}-${MONTH}".
func DataVariable(tmpl string) string {
	name, _, _ := strings.Cut(tmpl, "_")
	if strings.Contains(name, "${") {
		return ""
	}
	return name
}
