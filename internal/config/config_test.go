package config

import (
	"testing"
	"time"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inputTemplate = "tas_NAM-12_ERA5_evaluation_r1i1p1f1_NCAR_WRF461_v1-r1_hr_${YEAR}-${MONTH}"

// setRequired sets the minimum environment Load accepts.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BASEDIR", "/raw/wrf_d01")
	t.Setenv("POSTPROCESS_SCRIPT", "/opt/pp/postprocess.core.variables.py")
	t.Setenv("CMORIZE_SCRIPT", "/opt/pp/cmorize.compress.sh")
	t.Setenv("POSTPROCESS_OUTPUT_DIR", "/pp/tas")
	t.Setenv("INPUT_FNAME_TEMPLATE", inputTemplate)
}

func setPlotting(t *testing.T) {
	t.Helper()
	t.Setenv("PLOT_SCRIPT", "/opt/pp/plot.py")
	t.Setenv("PLOT_CONFIG", "/opt/pp/config.yaml")
	t.Setenv("PLOT_INPUT_DIR", "/pp/tas")
	t.Setenv("PLOT_FNAME_TEMPLATE", "hourly_tas_${YEAR}")
	t.Setenv("PLOT_OUTPUT_DIR", "/plots")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/raw/wrf_d01", cfg.BaseDir)
	assert.Equal(t, 40, cfg.TotalYears)
	assert.True(t, cfg.SeventhYearOfDecade)
	assert.Equal(t, 10, cfg.YearIncrement)
	assert.Equal(t, 2, cfg.OrdinalStartYear)
	assert.Equal(t, 12, cfg.YearsPerChunk)
	assert.Equal(t, 0, cfg.StartYear)
	assert.Equal(t, "d01", cfg.WRFDomain)
	assert.Equal(t, ModeExecute, cfg.Mode)
	assert.Equal(t, "python3", cfg.Python)
	assert.Equal(t, ".nc", cfg.InputFnameExtension)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 256, cfg.ListingCacheSize)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "wrf-chunk-readiness", cfg.KafkaReadinessTopic)
	assert.False(t, cfg.PlottingEnabled())
	assert.Equal(t, []string{"tas"}, cfg.Variables())
	assert.Equal(t, "tas", cfg.PlotVariable())
}

func TestLoad_CustomEnv(t *testing.T) {
	setRequired(t)
	setPlotting(t)
	t.Setenv("TOTAL_YEARS_IN_SIMULATION", "13")
	t.Setenv("SEVENTH_YEAR_OF_DECADE", "false")
	t.Setenv("YEAR_INCREMENT", "12")
	t.Setenv("ORDINAL_START_YEAR", "3")
	t.Setenv("YEARS_PER_CHUNK", "11")
	t.Setenv("START_YEAR", "1977")
	t.Setenv("WRF_DOMAIN", "d02")
	t.Setenv("DISPATCH_MODE", "PLAN")
	t.Setenv("PYTHON", "/usr/bin/python3.12")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("RUN_LOCK_FILE", "/tmp/watcher.lock")
	t.Setenv("METRICS_PUSHGATEWAY_URL", "http://pushgateway:9091")
	t.Setenv("METRICS_TEXTFILE", "/var/lib/node_exporter/wrf.prom")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_READINESS_TOPIC", "custom-readiness")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 13, cfg.TotalYears)
	assert.False(t, cfg.SeventhYearOfDecade)
	assert.Equal(t, 12, cfg.YearIncrement)
	assert.Equal(t, 3, cfg.OrdinalStartYear)
	assert.Equal(t, 11, cfg.YearsPerChunk)
	assert.Equal(t, 1977, cfg.StartYear)
	assert.Equal(t, "d02", cfg.WRFDomain)
	assert.Equal(t, ModePlan, cfg.Mode)
	assert.Equal(t, "/usr/bin/python3.12", cfg.Python)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/tmp/watcher.lock", cfg.RunLockFile)
	assert.Equal(t, "http://pushgateway:9091", cfg.MetricsPushgatewayURL)
	assert.Equal(t, "/var/lib/node_exporter/wrf.prom", cfg.MetricsTextfile)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-readiness", cfg.KafkaReadinessTopic)
	assert.True(t, cfg.PlottingEnabled())
}

func TestLoad_PostprocessOutputDirDefaultsToPlotInput(t *testing.T) {
	setRequired(t)
	setPlotting(t)
	t.Setenv("POSTPROCESS_OUTPUT_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/pp/tas", cfg.PostprocessOutputDir)
}

func TestScan_Span(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	require.NoError(t, err)

	span := cfg.Span(1977)
	assert.Equal(t, domain.SimulationSpan{
		StartYear: 1977, TotalYears: 40, YearIncrement: 10,
		DecadeAligned: true, DecadeOffset: 7, YearsPerChunk: 12, OrdinalStartYear: 2,
	}, span)
	assert.NoError(t, span.Validate())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing basedir", map[string]string{"BASEDIR": ""}, "BASEDIR is required"},
		{"missing postprocess script", map[string]string{"POSTPROCESS_SCRIPT": ""}, "POSTPROCESS_SCRIPT is required"},
		{"missing cmorize script", map[string]string{"CMORIZE_SCRIPT": ""}, "CMORIZE_SCRIPT is required"},
		{"bad integer", map[string]string{"TOTAL_YEARS_IN_SIMULATION": "forty"}, "TOTAL_YEARS_IN_SIMULATION"},
		{"zero total years", map[string]string{"TOTAL_YEARS_IN_SIMULATION": "0"}, "TOTAL_YEARS_IN_SIMULATION"},
		{"zero ordinal", map[string]string{"ORDINAL_START_YEAR": "0"}, "ORDINAL_START_YEAR"},
		{"bad bool", map[string]string{"SEVENTH_YEAR_OF_DECADE": "maybe"}, "SEVENTH_YEAR_OF_DECADE"},
		{"bad mode", map[string]string{"DISPATCH_MODE": "yolo"}, "DISPATCH_MODE"},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"bad shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "soon"}, "SHUTDOWN_TIMEOUT"},
		{"bad pushgateway", map[string]string{"METRICS_PUSHGATEWAY_URL": "not a url"}, "METRICS_PUSHGATEWAY_URL"},
		{"kafka without topic", map[string]string{"KAFKA_ENABLED": "true", "KAFKA_READINESS_TOPIC": "", "KAFKA_BROKERS": "b:9092"}, "KAFKA_READINESS_TOPIC"},
		{"kafka without brokers", map[string]string{"KAFKA_ENABLED": "true", "KAFKA_BROKERS": " , "}, "KAFKA_BROKERS"},
		{"template without month", map[string]string{"INPUT_FNAME_TEMPLATE": "tas_${YEAR}"}, "${MONTH}"},
		{"template with unknown placeholder", map[string]string{"INPUT_FNAME_TEMPLATE": "tas_${YEAR}-${MONTH}_${WEEK}"}, "INPUT_FNAME_TEMPLATE"},
		{"many variables without placeholder", map[string]string{"POSTPROCESS_VARIABLES": "tas,pr"}, "${VARIABLE}"},
		{"no variable at all", map[string]string{"INPUT_FNAME_TEMPLATE": "${VARIABLE}_${YEAR}-${MONTH}"}, "POSTPROCESS_VARIABLES"},
		{"plot script without config", map[string]string{"PLOT_SCRIPT": "/opt/pp/plot.py"}, "PLOT_CONFIG is required when PLOT_SCRIPT is set"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_EmptyTopicIsNotDefaulted(t *testing.T) {
	setRequired(t)
	t.Setenv("KAFKA_READINESS_TOPIC", "")

	cfg, err := Load()
	require.NoError(t, err, "the topic is only required with KAFKA_ENABLED")
	assert.Empty(t, cfg.KafkaReadinessTopic)
}

func TestLoad_PlotTemplateNeedsYear(t *testing.T) {
	setRequired(t)
	setPlotting(t)
	t.Setenv("PLOT_FNAME_TEMPLATE", "hourly_tas")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PLOT_FNAME_TEMPLATE must contain ${YEAR}")
}

func TestLoad_MultipleVariables(t *testing.T) {
	setRequired(t)
	t.Setenv("INPUT_FNAME_TEMPLATE", "${VARIABLE}_NAM-12_${YEAR}-${MONTH}")
	t.Setenv("POSTPROCESS_VARIABLES", "tas, pr,huss")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"tas", "pr", "huss"}, cfg.Variables())
	assert.Equal(t, "tas", cfg.PlotVariable())
}

func TestLoadScan_IgnoresCollaborators(t *testing.T) {
	t.Setenv("BASEDIR", "/raw/wrf_d01")

	cfg, err := LoadScan()
	require.NoError(t, err)
	assert.Equal(t, "/raw/wrf_d01", cfg.BaseDir)

	_, err = Load()
	require.Error(t, err)
}

func TestLoadScan_StillValidatesSpan(t *testing.T) {
	t.Setenv("BASEDIR", "/raw/wrf_d01")
	t.Setenv("YEARS_PER_CHUNK", "0")

	_, err := LoadScan()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YEARS_PER_CHUNK")
}
