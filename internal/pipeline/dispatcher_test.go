package pipeline_test

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/wrf-postprocess/internal/config"
	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/couchcryptid/wrf-postprocess/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ppScript     = "/opt/postprocess/postprocess.core.variables.py"
	cmorScript   = "/opt/postprocess/cmorize.compress.sh"
	plotScript   = "/opt/visualization/plot.py"
	plotConfig   = "/opt/visualization/config.yaml"
	ppDir        = "/pp/tas"
	plotDir      = "/plots"
	chunk1977    = "/raw/wrf_d01/1977_chunk"
	chunk1987    = "/raw/wrf_d01/1987_chunk"
	tasTemplate  = "tas_NAM-12_ERA5_evaluation_r1i1p1f1_NCAR_WRF461_v1-r1_hr_${YEAR}-${MONTH}"
	plotTemplate = "hourly_tas_NAM-12_${YEAR}"
)

// dispatchSpan starts chunks at years ending in 7, twelve years each, so
// 1977_chunk and 1987_chunk both count 1988 and 1989.
func dispatchSpan() domain.SimulationSpan {
	return domain.SimulationSpan{
		StartYear:        1977,
		TotalYears:       40,
		YearIncrement:    10,
		DecadeAligned:    true,
		DecadeOffset:     7,
		YearsPerChunk:    12,
		OrdinalStartYear: 2,
	}
}

func dispatchConfig() config.Dispatch {
	return config.Dispatch{
		Mode:                 config.ModeExecute,
		Python:               "python3",
		PostprocessScript:    ppScript,
		CmorizeScript:        cmorScript,
		PostprocessOutputDir: ppDir,
		InputFnameTemplate:   tasTemplate,
		InputFnameExtension:  ".nc",
		PlotScript:           plotScript,
		PlotConfig:           plotConfig,
		PlotInputDir:         ppDir,
		PlotFnameTemplate:    plotTemplate,
		PlotOutputDir:        plotDir,
	}
}

type dispatchFixture struct {
	lister   *fakeLister
	runner   *fakeRunner
	settings *fakeSettings
	out      *bytes.Buffer
	d        *pipeline.Dispatcher
}

func newDispatchFixture(cfg config.Dispatch) *dispatchFixture {
	l := newFakeLister()
	l.touch(ppScript, cmorScript, plotScript, plotConfig)
	l.mkdir(ppDir)
	l.mkdir(plotDir)
	f := &dispatchFixture{
		lister:   l,
		runner:   &fakeRunner{lister: l, create: true, fail: map[string]bool{}},
		settings: newFakeSettings(),
		out:      &bytes.Buffer{},
	}
	f.d = pipeline.NewDispatcher(cfg, dispatchSpan(), l, f.runner, f.settings, f.out, discardLogger(), newTestMetrics())
	return f
}

func ppOutput(year, month int) string {
	name := strings.NewReplacer("${YEAR}", fmt.Sprint(year), "${MONTH}", fmt.Sprintf("%02d", month)).Replace(tasTemplate)
	return filepath.Join(ppDir, name+".nc")
}

func plotOutput(year int) string {
	return filepath.Join(plotDir, strings.ReplaceAll(plotTemplate, "${YEAR}", fmt.Sprint(year))+".png")
}

func TestCheckCollaborators(t *testing.T) {
	f := newDispatchFixture(dispatchConfig())
	require.NoError(t, f.d.CheckCollaborators())
}

func TestCheckCollaborators_Failures(t *testing.T) {
	var cfgErr *domain.ConfigError

	cfg := dispatchConfig()
	cfg.CmorizeScript = "/opt/postprocess/missing.sh"
	err := newDispatchFixture(cfg).d.CheckCollaborators()
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "/opt/postprocess/missing.sh", cfgErr.Path)

	cfg = dispatchConfig()
	cfg.CmorizeScript = "/opt/elsewhere/cmorize.compress.sh"
	f := newDispatchFixture(cfg)
	f.lister.touch(cfg.CmorizeScript)
	err = f.d.CheckCollaborators()
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "same directory")

	cfg = dispatchConfig()
	cfg.PlotScript = "/opt/visualization/absent.py"
	err = newDispatchFixture(cfg).d.CheckCollaborators()
	require.ErrorAs(t, err, &cfgErr)

	f = newDispatchFixture(dispatchConfig())
	f.settings.checkErr = domain.NewConfigError(plotConfig, "cannot read plot configuration")
	err = f.d.CheckCollaborators()
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, plotConfig, cfgErr.Path)
}

func TestDispatch_PostprocessesOnlyAbsentOutputs(t *testing.T) {
	f := newDispatchFixture(dispatchConfig())
	for m := 1; m <= 12; m++ {
		f.lister.touch(ppOutput(1978, m))
	}
	f.lister.touch(ppOutput(1979, 5))

	err := f.d.Dispatch(context.Background(), domain.ReadinessReport{chunk1977: {1978, 1979}})
	require.NoError(t, err)

	require.Equal(t, 11, f.runner.count(domain.CollaboratorPostprocess))
	first := f.runner.calls[0]
	assert.Equal(t, "python3", first.Program)
	assert.Equal(t, []string{ppScript, chunk1977, "1979", "01", "tas", ppOutput(1979, 1)}, first.Args)
	assert.Equal(t, "/opt/postprocess", first.Dir)
	for _, inv := range f.runner.calls {
		assert.NotEqual(t, ppOutput(1979, 5), inv.Output)
	}
}

func TestDispatch_NeverTwiceForOneOutput(t *testing.T) {
	cfg := dispatchConfig()
	cfg.PlotScript = ""
	f := newDispatchFixture(cfg)
	// Failing collaborators leave no output behind, so only the run's own
	// bookkeeping prevents a second attempt.
	f.runner.create = false

	// Overlapping chunks both report 1988 and 1989; only 1977_chunk takes them.
	report := domain.ReadinessReport{
		chunk1977: {1988, 1989},
		chunk1987: {1988, 1989, 1990},
	}
	require.NoError(t, f.d.Dispatch(context.Background(), report))

	seen := map[string]int{}
	for _, inv := range f.runner.calls {
		seen[inv.Output]++
	}
	assert.Len(t, seen, 36)
	for out, n := range seen {
		assert.Equal(t, 1, n, out)
	}
}

func TestDispatch_SharedYearsBelongToEarlierChunk(t *testing.T) {
	f := newDispatchFixture(dispatchConfig())

	require.NoError(t, f.d.Dispatch(context.Background(), domain.ReadinessReport{chunk1987: {1988, 1989, 1990}}))

	require.Equal(t, 12, f.runner.count(domain.CollaboratorPostprocess))
	for _, inv := range f.runner.calls {
		if inv.Collaborator == domain.CollaboratorPostprocess {
			assert.Equal(t, []string{chunk1987, "1990"}, inv.Args[1:3])
		}
	}
	o, ok := f.settings.written[filepath.Join(plotDir, ".settings", "1987_chunk.yaml")]
	require.True(t, ok)
	assert.Equal(t, []string{"1990"}, o.Years)

	// Once 1977_chunk is ready it takes its shared years.
	require.NoError(t, f.d.Dispatch(context.Background(), domain.ReadinessReport{chunk1977: {1988, 1989}}))
	assert.Equal(t, 36, f.runner.count(domain.CollaboratorPostprocess))
	assert.Equal(t, chunk1977, f.runner.calls[len(f.runner.calls)-2].Args[1])
}

func TestDispatch_MultipleVariables(t *testing.T) {
	cfg := dispatchConfig()
	cfg.PlotScript = ""
	cfg.PostprocessVariables = []string{"tas", "pr"}
	cfg.InputFnameTemplate = "${VARIABLE}_NAM-12_${YEAR}-${MONTH}"
	f := newDispatchFixture(cfg)

	require.NoError(t, f.d.Dispatch(context.Background(), domain.ReadinessReport{chunk1977: {1980}}))
	assert.Equal(t, 24, f.runner.count(domain.CollaboratorPostprocess))
	assert.Equal(t, filepath.Join(ppDir, "pr_NAM-12_1980-01.nc"), f.runner.calls[1].Output)
}

func TestDispatch_PlotsWholeChunk(t *testing.T) {
	f := newDispatchFixture(dispatchConfig())
	f.lister.touch(plotOutput(1978)) // partial plots still mean a full re-plot

	require.NoError(t, f.d.Dispatch(context.Background(), domain.ReadinessReport{chunk1977: {1978, 1979}}))

	require.Equal(t, 1, f.runner.count(domain.CollaboratorPlot))
	plot := f.runner.calls[len(f.runner.calls)-1]
	settingsPath := filepath.Join(plotDir, ".settings", "1977_chunk.yaml")
	assert.Equal(t, []string{plotScript, settingsPath}, plot.Args)

	o, ok := f.settings.written[settingsPath]
	require.True(t, ok)
	assert.Equal(t, "tas", o.DataVar)
	assert.Equal(t, ppDir, o.InputDir)
	assert.Equal(t, tasTemplate, o.InputFilenameTemplate)
	assert.Equal(t, plotTemplate, o.OutputFilenameTemplate)
	assert.Equal(t, []string{"1978", "1979"}, o.Years)
	assert.Equal(t, domain.AllMonths(), o.MonthsList)
	assert.True(t, o.YearsByList)
	assert.True(t, o.MonthsByList)
}

func TestDispatch_SkipsPlotWhenAllExist(t *testing.T) {
	f := newDispatchFixture(dispatchConfig())
	f.lister.touch(plotOutput(1978), plotOutput(1979))

	require.NoError(t, f.d.Dispatch(context.Background(), domain.ReadinessReport{chunk1977: {1978, 1979}}))
	assert.Zero(t, f.runner.count(domain.CollaboratorPlot))
	assert.Empty(t, f.settings.written)
}

func TestDispatch_InconsistencyListsMissingInputs(t *testing.T) {
	f := newDispatchFixture(dispatchConfig())
	f.runner.create = false

	err := f.d.Dispatch(context.Background(), domain.ReadinessReport{chunk1977: {1978}})

	var incErr *domain.InconsistencyError
	require.ErrorAs(t, err, &incErr)
	assert.Equal(t, "1977_chunk", incErr.Chunk)
	assert.Len(t, incErr.Missing, 12)
	assert.Contains(t, f.out.String(), ppOutput(1978, 7))
	assert.Zero(t, f.runner.count(domain.CollaboratorPlot))
	assert.Empty(t, f.settings.written)
}

func TestDispatch_InvocationFailureContinues(t *testing.T) {
	cfg := dispatchConfig()
	cfg.PlotScript = ""
	f := newDispatchFixture(cfg)
	f.runner.fail[ppOutput(1978, 3)] = true

	err := f.d.Dispatch(context.Background(), domain.ReadinessReport{chunk1977: {1978}})

	var invErr *domain.InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, ppOutput(1978, 3), invErr.Invocation.Output)
	assert.Equal(t, 12, f.runner.count(domain.CollaboratorPostprocess), "later months still run")
}

func TestDispatch_PlanMode(t *testing.T) {
	cfg := dispatchConfig()
	cfg.Mode = config.ModePlan
	f := newDispatchFixture(cfg)

	require.NoError(t, f.d.Dispatch(context.Background(), domain.ReadinessReport{chunk1977: {1978}}))

	assert.Empty(t, f.runner.calls)
	assert.Empty(t, f.settings.written)
	lines := strings.Split(strings.TrimSpace(f.out.String()), "\n")
	require.Len(t, lines, 13)
	assert.Equal(t, "python3 "+ppScript+" "+chunk1977+" 1978 01 tas "+ppOutput(1978, 1), lines[0])
	assert.Equal(t, "python3 "+plotScript+" "+filepath.Join(plotDir, ".settings", "1977_chunk.yaml"), lines[12])
}
