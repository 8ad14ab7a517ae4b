package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Dispatch modes.
const (
	ModeExecute = "execute"
	ModePlan    = "plan"
)

// Config holds all watcher settings, populated from environment variables.
// It is built once at start and passed by pointer; nothing mutates it.
type Config struct {
	Scan
	Dispatch
	Runtime
}

// Scan locates and measures the raw output tree.
type Scan struct {
	BaseDir             string `env:"BASEDIR" validate:"required"`
	TotalYears          int    `env:"TOTAL_YEARS_IN_SIMULATION" validate:"gt=0"`
	SeventhYearOfDecade bool   `env:"SEVENTH_YEAR_OF_DECADE"`
	YearIncrement       int    `env:"YEAR_INCREMENT" validate:"gt=0"`
	OrdinalStartYear    int    `env:"ORDINAL_START_YEAR" validate:"gte=1"`
	YearsPerChunk       int    `env:"YEARS_PER_CHUNK" validate:"gt=0"`
	// StartYear of 0 means the earliest chunk directory found under BaseDir.
	StartYear int    `env:"START_YEAR" validate:"gte=0"`
	WRFDomain string `env:"WRF_DOMAIN" validate:"required"`
}

// Dispatch drives the post-processing and plotting collaborators.
type Dispatch struct {
	Mode                 string   `env:"DISPATCH_MODE" validate:"oneof=execute plan"`
	Python               string   `env:"PYTHON" validate:"required"`
	PostprocessScript    string   `env:"POSTPROCESS_SCRIPT" validate:"required"`
	CmorizeScript        string   `env:"CMORIZE_SCRIPT" validate:"required"`
	PostprocessVariables []string `env:"POSTPROCESS_VARIABLES"`
	PostprocessOutputDir string   `env:"POSTPROCESS_OUTPUT_DIR" validate:"required"`
	InputFnameTemplate   string   `env:"INPUT_FNAME_TEMPLATE" validate:"required"`
	InputFnameExtension  string   `env:"INPUT_FNAME_EXTENSION"`

	// Plotting is skipped entirely when PlotScript is empty.
	PlotScript        string `env:"PLOT_SCRIPT"`
	PlotConfig        string `env:"PLOT_CONFIG" validate:"required_with=PlotScript"`
	PlotInputDir      string `env:"PLOT_INPUT_DIR" validate:"required_with=PlotScript"`
	PlotFnameTemplate string `env:"PLOT_FNAME_TEMPLATE" validate:"required_with=PlotScript"`
	PlotOutputDir     string `env:"PLOT_OUTPUT_DIR" validate:"required_with=PlotScript"`
}

// Runtime covers logging, run serialization and telemetry export.
type Runtime struct {
	RunLockFile           string        `env:"RUN_LOCK_FILE"`
	LogLevel              string        `env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFormat             string        `env:"LOG_FORMAT" validate:"oneof=json text"`
	ShutdownTimeout       time.Duration `env:"SHUTDOWN_TIMEOUT"`
	MetricsPushgatewayURL string        `env:"METRICS_PUSHGATEWAY_URL" validate:"omitempty,url"`
	MetricsTextfile       string        `env:"METRICS_TEXTFILE"`
	ListingCacheSize      int           `env:"LISTING_CACHE_SIZE" validate:"gt=0"`

	KafkaEnabled        bool     `env:"KAFKA_ENABLED"`
	KafkaBrokers        []string `env:"KAFKA_BROKERS" validate:"required_if=KafkaEnabled true,dive,hostname_port"`
	KafkaReadinessTopic string   `env:"KAFKA_READINESS_TOPIC" validate:"required_if=KafkaEnabled true"`
}

// Span builds the simulation span. startYear overrides StartYear, which lets
// the caller pass the detected earliest chunk when START_YEAR is unset.
func (s Scan) Span(startYear int) domain.SimulationSpan {
	return domain.SimulationSpan{
		StartYear:        startYear,
		TotalYears:       s.TotalYears,
		YearIncrement:    s.YearIncrement,
		DecadeAligned:    s.SeventhYearOfDecade,
		DecadeOffset:     7,
		YearsPerChunk:    s.YearsPerChunk,
		OrdinalStartYear: s.OrdinalStartYear,
	}
}

// Variables returns the variables to post-process. Without an explicit list
// the variable leading INPUT_FNAME_TEMPLATE is used.
func (d Dispatch) Variables() []string {
	if len(d.PostprocessVariables) > 0 {
		return d.PostprocessVariables
	}
	if v := domain.DataVariable(d.InputFnameTemplate); v != "" {
		return []string{v}
	}
	return nil
}

// PlotVariable is the variable handed to the plotting collaborator.
func (d Dispatch) PlotVariable() string {
	if v := domain.DataVariable(d.InputFnameTemplate); v != "" {
		return v
	}
	if vars := d.Variables(); len(vars) > 0 {
		return vars[0]
	}
	return ""
}

// PlottingEnabled reports whether a plot collaborator is configured.
func (d Dispatch) PlottingEnabled() bool { return d.PlotScript != "" }

// Load reads the full watcher configuration from environment variables,
// applying defaults where unset.
func Load() (*Config, error) {
	cfg, err := parse()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if err := checkDispatch(cfg.Dispatch); err != nil {
		return nil, err
	}
	if err := checkRuntime(cfg.Runtime); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadScan reads only what a read-only scan needs. Collaborator settings are
// parsed but not validated.
func LoadScan() (*Config, error) {
	cfg, err := parse()
	if err != nil {
		return nil, err
	}
	if err := validate(&cfg.Scan); err != nil {
		return nil, err
	}
	if err := validate(&cfg.Runtime); err != nil {
		return nil, err
	}
	if err := checkRuntime(cfg.Runtime); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	var p envParser
	cfg := &Config{
		Scan: Scan{
			BaseDir:             sharedcfg.EnvOrDefault("BASEDIR", ""),
			TotalYears:          p.int("TOTAL_YEARS_IN_SIMULATION", 40),
			SeventhYearOfDecade: p.bool("SEVENTH_YEAR_OF_DECADE", true),
			YearIncrement:       p.int("YEAR_INCREMENT", 10),
			OrdinalStartYear:    p.int("ORDINAL_START_YEAR", 2),
			YearsPerChunk:       p.int("YEARS_PER_CHUNK", 12),
			StartYear:           p.int("START_YEAR", 0),
			WRFDomain:           sharedcfg.EnvOrDefault("WRF_DOMAIN", domain.DefaultWRFDomain),
		},
		Dispatch: Dispatch{
			Mode:                 strings.ToLower(sharedcfg.EnvOrDefault("DISPATCH_MODE", ModeExecute)),
			Python:               sharedcfg.EnvOrDefault("PYTHON", "python3"),
			PostprocessScript:    sharedcfg.EnvOrDefault("POSTPROCESS_SCRIPT", ""),
			CmorizeScript:        sharedcfg.EnvOrDefault("CMORIZE_SCRIPT", ""),
			PostprocessVariables: parseList(sharedcfg.EnvOrDefault("POSTPROCESS_VARIABLES", "")),
			InputFnameTemplate:   sharedcfg.EnvOrDefault("INPUT_FNAME_TEMPLATE", ""),
			InputFnameExtension:  sharedcfg.EnvOrDefault("INPUT_FNAME_EXTENSION", ".nc"),
			PlotScript:           sharedcfg.EnvOrDefault("PLOT_SCRIPT", ""),
			PlotConfig:           sharedcfg.EnvOrDefault("PLOT_CONFIG", ""),
			PlotInputDir:         sharedcfg.EnvOrDefault("PLOT_INPUT_DIR", ""),
			PlotFnameTemplate:    sharedcfg.EnvOrDefault("PLOT_FNAME_TEMPLATE", ""),
			PlotOutputDir:        sharedcfg.EnvOrDefault("PLOT_OUTPUT_DIR", ""),
		},
		Runtime: Runtime{
			RunLockFile:           sharedcfg.EnvOrDefault("RUN_LOCK_FILE", ""),
			LogLevel:              strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
			LogFormat:             strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json")),
			ShutdownTimeout:       shutdownTimeout,
			MetricsPushgatewayURL: sharedcfg.EnvOrDefault("METRICS_PUSHGATEWAY_URL", ""),
			MetricsTextfile:       sharedcfg.EnvOrDefault("METRICS_TEXTFILE", ""),
			ListingCacheSize:      p.int("LISTING_CACHE_SIZE", 256),
			KafkaEnabled:          p.bool("KAFKA_ENABLED", false),
			KafkaBrokers:          sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
			KafkaReadinessTopic:   envOrDefaultKeepEmpty("KAFKA_READINESS_TOPIC", "wrf-chunk-readiness"),
		},
	}
	// Post-processed files are what the plotter reads unless told otherwise.
	cfg.PostprocessOutputDir = sharedcfg.EnvOrDefault("POSTPROCESS_OUTPUT_DIR", cfg.PlotInputDir)

	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

// checkDispatch covers the cross-field rules struct tags cannot express.
func checkDispatch(d Dispatch) error {
	vars := d.Variables()
	if len(vars) == 0 {
		return errors.New("POSTPROCESS_VARIABLES is required when INPUT_FNAME_TEMPLATE does not start with a variable name")
	}
	if len(vars) > 1 && !domain.HasPlaceholder(d.InputFnameTemplate, domain.PlaceholderVariable) {
		return errors.New("INPUT_FNAME_TEMPLATE must contain ${VARIABLE} when POSTPROCESS_VARIABLES lists more than one variable")
	}
	for _, ph := range []string{domain.PlaceholderYear, domain.PlaceholderMonth} {
		if !domain.HasPlaceholder(d.InputFnameTemplate, ph) {
			return fmt.Errorf("INPUT_FNAME_TEMPLATE must contain ${%s}", ph)
		}
	}
	if _, err := domain.CompileTemplate(d.InputFnameTemplate); err != nil {
		return fmt.Errorf("invalid INPUT_FNAME_TEMPLATE: %w", err)
	}
	if d.PlottingEnabled() {
		if !domain.HasPlaceholder(d.PlotFnameTemplate, domain.PlaceholderYear) {
			return errors.New("PLOT_FNAME_TEMPLATE must contain ${YEAR}")
		}
		if _, err := domain.CompileTemplate(d.PlotFnameTemplate); err != nil {
			return fmt.Errorf("invalid PLOT_FNAME_TEMPLATE: %w", err)
		}
	}
	return nil
}

func checkRuntime(r Runtime) error {
	if r.KafkaEnabled && len(r.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	return nil
}

var validate = newValidator()

// newValidator reports failures by environment variable name.
func newValidator() func(any) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if tag := fld.Tag.Get("env"); tag != "" {
			return tag
		}
		return fld.Name
	})
	return func(s any) error {
		err := v.Struct(s)
		if err == nil {
			return nil
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describe(fe))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
}

func describe(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", name, envName(fe.Param()))
	case "required_if":
		return fmt.Sprintf("%s is required when %s", name, strings.Replace(envName(fe.Param()), " ", " is ", 1))
	case "oneof":
		return fmt.Sprintf("invalid %s: must be one of %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt", "gte":
		return fmt.Sprintf("invalid %s: must be %s %s", name, map[string]string{"gt": ">", "gte": ">="}[fe.Tag()], fe.Param())
	default:
		return fmt.Sprintf("invalid %s: failed %s validation", name, fe.Tag())
	}
}

// envName maps a Go field name in a validator param back to its variable.
func envName(param string) string {
	field, rest, _ := strings.Cut(param, " ")
	for _, t := range []reflect.Type{reflect.TypeOf(Scan{}), reflect.TypeOf(Dispatch{}), reflect.TypeOf(Runtime{})} {
		if f, ok := t.FieldByName(field); ok {
			if tag := f.Tag.Get("env"); tag != "" {
				field = tag
			}
			break
		}
	}
	if rest == "" {
		return field
	}
	return field + " " + rest
}

// envParser accumulates the first parse failure so Load can read every
// variable in one pass.
type envParser struct {
	err error
}

func (p *envParser) int(key string, def int) int {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		p.fail(fmt.Errorf("invalid %s: %q is not an integer", key, s))
		return def
	}
	return n
}

func (p *envParser) bool(key string, def bool) bool {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		p.fail(fmt.Errorf("invalid %s: %q is not a boolean", key, s))
		return def
	}
	return b
}

func (p *envParser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

// envOrDefaultKeepEmpty falls back to def only when key is unset. A
// variable explicitly set to "" stays empty so validation can reject it.
func envOrDefaultKeepEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
