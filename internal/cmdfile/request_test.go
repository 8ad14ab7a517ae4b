package cmdfile_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/wrf-postprocess/internal/cmdfile"
	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRequests(t *testing.T) {
	const table = `variable,frequencies,statistic
# surface temperature
tas,1hr day mon
pr,"day;mon",sum

tasmax,day,maximum
tas,6hr
`
	reqs, err := cmdfile.ReadRequests(strings.NewReader(table))
	require.NoError(t, err)
	require.Len(t, reqs, 3)

	assert.Equal(t, "tas", reqs[0].Variable)
	assert.Equal(t, []domain.Frequency{domain.Freq1Hour, domain.FreqDay, domain.FreqMonth, domain.Freq6Hour}, reqs[0].Frequencies)
	assert.Empty(t, reqs[0].Statistic)
	assert.Equal(t, domain.StatSum, reqs[1].Statistic)
	assert.Equal(t, domain.StatMax, reqs[2].Statistic)
}

func TestReadRequests_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":             "# nothing\n",
		"unknown frequency": "tas,weekly\n",
		"bad statistic":     "tas,day,median\n",
		"too many columns":  "tas,day,mean,extra\n",
		"no frequencies":    "tas, \n",
	}
	for name, table := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := cmdfile.ReadRequests(strings.NewReader(table))
			assert.Error(t, err)
		})
	}
}

func TestLoadRequests_Missing(t *testing.T) {
	_, err := cmdfile.LoadRequests(filepath.Join(t.TempDir(), "request.csv"))
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Path, "request.csv")
}

func TestIndexTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indices.csv")
	require.NoError(t, os.WriteFile(path, []byte("index,variable,operator\nsu,tasmax,eca_su\nrx1day,pr,eca_rx1day\n"), 0o644))

	idx, err := cmdfile.LoadIndexTable(path)
	require.NoError(t, err)
	assert.Equal(t, []cmdfile.IndexRequest{
		{Index: "su", Variable: "tasmax", Operator: "eca_su"},
		{Index: "rx1day", Variable: "pr", Operator: "eca_rx1day"},
	}, idx)

	_, err = cmdfile.ReadIndexTable(strings.NewReader("su,tasmax\n"))
	assert.Error(t, err)
}

func TestIndexTable_DuplicateIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indices.csv")
	require.NoError(t, os.WriteFile(path, []byte("tg,tas,eca_tg\nsu,tasmax,eca_su\ntg,tas,eca_tg\n"), 0o644))

	_, err := cmdfile.LoadIndexTable(path)
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorContains(t, err, `index "tg" already defined on line 1`)
}

func TestPlanIndices(t *testing.T) {
	w := newWorkspace(t)
	idx := []cmdfile.IndexRequest{
		{Index: "tg", Variable: "tas", Operator: "eca_tg"},
		{Index: "su", Variable: "tasmax", Operator: "eca_su"},
	}
	existing := filepath.Join(w.output, "tg_"+label+"_yr_2011.nc")
	require.NoError(t, os.WriteFile(existing, nil, 0o644))

	files, sum, err := w.aggregator(cmdfile.Options{}, nil).PlanIndices(idx, w.inputs(t, "tas"))
	require.NoError(t, err)
	require.Len(t, files, 1, "tasmax has no inputs")
	assert.Equal(t, "cmdfile.index.tg", files[0].Name)
	assert.Equal(t, 14, sum.Emitted)
	assert.Equal(t, 1, sum.Skipped)

	fields := strings.Fields(files[0].Lines[0])
	assert.Equal(t, []string{"cdo", "-O", "eca_tg", "-mergetime"}, fields[:4])
	assert.Len(t, fields, 4+12+1)
	assert.Equal(t, filepath.Join(w.output, "tg_"+label+"_yr_2012.nc"), fields[len(fields)-1])
}

func TestPostprocessFile(t *testing.T) {
	span := domain.SimulationSpan{
		StartYear:        1977,
		TotalYears:       40,
		YearIncrement:    10,
		DecadeAligned:    true,
		DecadeOffset:     7,
		YearsPerChunk:    12,
		OrdinalStartYear: 2,
	}
	f, skipped, err := cmdfile.PostprocessFile(cmdfile.PostprocessOptions{
		Python:    "python",
		Script:    "/work/postprocess.core.variables.py",
		Root:      "/raw/ERA5/eval",
		Span:      span,
		Years:     domain.YearRange{Start: 1977, End: 1990},
		Variables: []string{"tas", "pr"},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1977}, skipped, "the first lead-in year belongs to no chunk")
	require.Len(t, f.Lines, 2*13)
	assert.Equal(t, "cmdfile", f.Name)
	assert.Equal(t,
		"python /work/postprocess.core.variables.py /raw/ERA5/eval/1977_chunk/ 1978 tas > tas/out.${step}.log 2>&1",
		f.Lines[0])
	assert.Contains(t, f.Lines[11], "/1977_chunk/ 1989 tas")
	assert.Contains(t, f.Lines[12], "/1987_chunk/ 1990 tas")
	assert.Contains(t, f.Lines[13], " 1978 pr > pr/out.${step}.log")

	assert.Equal(t, []string{"tas", "tasmax", "tasmin", "pr", "sfcWind", "uas", "vas"},
		cmdfile.LogDirs([]string{"tas", "pr", "sfcWind"}))
}
