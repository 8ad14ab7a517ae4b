// Command genmock writes a synthetic raw WRF output tree of empty files for
// local runs of the watcher and the scan command. Every expected chunk of
// the span is written unless -chunk names one.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -root /tmp/wrf/ERA5 -start 1977 -total 13 \
//	  -drop hourly:1985:10 -drop primary:1986:1
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	wrffs "github.com/couchcryptid/wrf-postprocess/internal/adapter/fs"
	"github.com/couchcryptid/wrf-postprocess/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	root := flag.String("root", "", "directory that receives the YYYY_chunk directories")
	start := flag.Int("start", 1977, "first year of the simulation")
	total := flag.Int("total", 40, "total years in the simulation")
	ypc := flag.Int("years-per-chunk", 12, "years covered by one chunk")
	ordinal := flag.Int("ordinal-start-year", 2, "ordinal of the first fully counted year in a chunk")
	increment := flag.Int("increment", 10, "years between chunk starts when not decade aligned")
	aligned := flag.Bool("seventh-year-of-decade", true, "start chunks on years ending in 7")
	wrfDomain := flag.String("domain", domain.DefaultWRFDomain, "WRF domain in file names")
	suffix := flag.String("suffix", "", "suffix appended to every file, e.g. .nc")
	chunk := flag.Int("chunk", 0, "write only the chunk starting in this year")
	drops := map[wrffs.Drop]int{}
	flag.Func("drop", "kind:year:days, drop the last days of one kind in one year (repeatable)", func(s string) error {
		d, n, err := parseDrop(s)
		if err != nil {
			return err
		}
		drops[d] = n
		return nil
	})
	flag.Parse()

	if *root == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -root")
	}

	span := domain.SimulationSpan{
		StartYear:        *start,
		TotalYears:       *total,
		YearIncrement:    *increment,
		DecadeAligned:    *aligned,
		DecadeOffset:     7,
		YearsPerChunk:    *ypc,
		OrdinalStartYear: *ordinal,
	}
	if err := span.Validate(); err != nil {
		return err
	}
	matcher, err := domain.NewMatcher(*wrfDomain)
	if err != nil {
		return err
	}

	chunks := span.ChunkStartYears()
	if *chunk != 0 {
		chunks = []int{*chunk}
	}

	w := wrffs.TreeWriter{Root: *root, Matcher: matcher, Suffix: *suffix}
	written := 0
	for _, c := range chunks {
		n, err := w.WriteChunk(span, c, domain.AllPatternKinds(), drops)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", c, err)
		}
		log.Printf("%s: %d files", domain.ChunkDirName(c), n)
		written += n
	}
	log.Printf("total: %d files in %d chunks", written, len(chunks))
	return nil
}

func parseDrop(s string) (wrffs.Drop, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return wrffs.Drop{}, 0, fmt.Errorf("drop %q: want kind:year:days", s)
	}
	kind, err := domain.ParsePatternKind(parts[0])
	if err != nil {
		return wrffs.Drop{}, 0, err
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return wrffs.Drop{}, 0, fmt.Errorf("drop %q: bad year: %w", s, err)
	}
	days, err := strconv.Atoi(parts[2])
	if err != nil || days < 0 {
		return wrffs.Drop{}, 0, fmt.Errorf("drop %q: bad day count", s)
	}
	return wrffs.Drop{Kind: kind, Year: year}, days, nil
}
