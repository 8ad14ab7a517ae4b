package domain

import (
	"fmt"
	"strconv"
)

// PlotOverrides are the plotting settings derived from a ready chunk. They
// replace the same keys of the static plot configuration and nothing else.
type PlotOverrides struct {
	InputDir               string   `yaml:"input_dir"`
	InputFilenameTemplate  string   `yaml:"input_filename_template"`
	OutputFilenameTemplate string   `yaml:"output_filename_template"`
	OutputDir              string   `yaml:"output_dir"`
	DataVar                string   `yaml:"data_var"`
	YearsByList            bool     `yaml:"years_by_list"`
	MonthsByList           bool     `yaml:"months_by_list"`
	Years                  []string `yaml:"years"`
	MonthsList             []string `yaml:"months_list"`
}

// Keys returns the override key/value pairs in a fixed order.
func (p PlotOverrides) Keys() []KeyValue {
	return []KeyValue{
		{"input_dir", p.InputDir},
		{"input_filename_template", p.InputFilenameTemplate},
		{"output_filename_template", p.OutputFilenameTemplate},
		{"output_dir", p.OutputDir},
		{"data_var", p.DataVar},
		{"years_by_list", p.YearsByList},
		{"months_by_list", p.MonthsByList},
		{"years", p.Years},
		{"months_list", p.MonthsList},
	}
}

// KeyValue is one settings entry.
type KeyValue struct {
	Key   string
	Value any
}

// AllMonths lists "01" through "12".
func AllMonths() []string {
	out := make([]string, 12)
	for m := 1; m <= 12; m++ {
		out[m-1] = MonthString(m)
	}
	return out
}

// MonthString zero-pads a month number.
func MonthString(m int) string { return fmt.Sprintf("%02d", m) }

// YearStrings formats years as the plotting settings expect them.
func YearStrings(years []int) []string {
	out := make([]string, len(years))
	for i, y := range years {
		out[i] = strconv.Itoa(y)
	}
	return out
}
