package pipeline_test

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/couchcryptid/wrf-postprocess/internal/observability"
)

// --- fakes ---

// fakeLister is an in-memory directory tree keyed by directory path.
type fakeLister struct {
	dirs map[string]map[string]bool
	errs map[string]error
}

func newFakeLister() *fakeLister {
	return &fakeLister{dirs: make(map[string]map[string]bool), errs: make(map[string]error)}
}

func (f *fakeLister) ListNames(dir string) ([]string, error) {
	dir = filepath.Clean(dir)
	if err, ok := f.errs[dir]; ok {
		return nil, err
	}
	entries, ok := f.dirs[dir]
	if !ok {
		return nil, fmt.Errorf("list %s: %w", dir, fs.ErrNotExist)
	}
	names := make([]string, 0, len(entries))
	for n := range entries {
		names = append(names, n)
	}
	slices.Sort(names)
	return names, nil
}

// mkdir registers dir and its ancestors.
func (f *fakeLister) mkdir(dir string) {
	dir = filepath.Clean(dir)
	for {
		if _, ok := f.dirs[dir]; !ok {
			f.dirs[dir] = make(map[string]bool)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		if _, ok := f.dirs[parent]; !ok {
			f.dirs[parent] = make(map[string]bool)
		}
		f.dirs[parent][filepath.Base(dir)] = true
		dir = parent
	}
}

func (f *fakeLister) touch(paths ...string) {
	for _, p := range paths {
		dir := filepath.Dir(filepath.Clean(p))
		if _, ok := f.dirs[dir]; !ok {
			f.mkdir(dir)
		}
		f.dirs[dir][filepath.Base(p)] = true
	}
}

// fakeRunner records invocations. create makes the expected output appear
// in lister, the way a working collaborator would.
type fakeRunner struct {
	calls  []domain.Invocation
	lister *fakeLister
	create bool
	fail   map[string]bool
}

func (r *fakeRunner) Run(_ context.Context, inv domain.Invocation) error {
	r.calls = append(r.calls, inv)
	if r.fail[inv.Output] {
		return &domain.InvocationError{Invocation: inv, ExitCode: 1, Err: fmt.Errorf("exit status 1")}
	}
	if r.create && r.lister != nil && inv.Collaborator == domain.CollaboratorPostprocess {
		r.lister.touch(inv.Output)
	}
	return nil
}

func (r *fakeRunner) count(c domain.Collaborator) int {
	n := 0
	for _, inv := range r.calls {
		if inv.Collaborator == c {
			n++
		}
	}
	return n
}

type fakeSettings struct {
	written  map[string]domain.PlotOverrides
	checkErr error
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{written: make(map[string]domain.PlotOverrides)}
}

func (s *fakeSettings) Check() error { return s.checkErr }

func (s *fakeSettings) WriteSettings(path string, o domain.PlotOverrides) error {
	s.written[path] = o
	return nil
}

type recordingSink struct {
	statuses []domain.ChunkStatus
	err      error
}

func (s *recordingSink) Publish(_ context.Context, statuses []domain.ChunkStatus) error {
	s.statuses = append(s.statuses, statuses...)
	return s.err
}

// --- builders ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	m, _ := observability.NewMetricsForTesting()
	return m
}

func mustMatcher() *domain.Matcher {
	m, err := domain.NewMatcher(domain.DefaultWRFDomain)
	if err != nil {
		panic(err)
	}
	return m
}

// yearNames lists the first n daily files of kind in year.
func yearNames(m *domain.Matcher, kind domain.PatternKind, year, n int) []string {
	day := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, m.Filename(kind, day.AddDate(0, 0, i)))
	}
	return out
}

// fullChunk lists every counted year of the chunk in full for every
// eligible kind.
func fullChunk(m *domain.Matcher, span domain.SimulationSpan, start int) []string {
	var names []string
	for _, o := range domain.ChunkObligations(span, start) {
		if !o.Counted() {
			continue
		}
		for _, kind := range domain.EligiblePatternKinds() {
			names = append(names, yearNames(m, kind, o.Year, o.ExpectedFiles)...)
		}
	}
	return names
}

func without(names []string, drop ...string) []string {
	return slices.DeleteFunc(slices.Clone(names), func(n string) bool { return slices.Contains(drop, n) })
}
