package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/torosent/repeater/internal/feeder"
	"github.com/torosent/repeater/internal/har"
	"github.com/torosent/repeater/internal/repetition"
)

// Config is the resolved command line and config file input for one run.
type Config struct {
	Collection  string `mapstructure:"collection"`
	HARFile     string `mapstructure:"har"`
	HARFilter   string `mapstructure:"har_filter"`
	Environment string `mapstructure:"environment"`
	Request     string `mapstructure:"request"`

	Mode           string `mapstructure:"mode"`
	Repetitions    *int   `mapstructure:"repetitions"`
	MaxConcurrency *int   `mapstructure:"max_concurrency"`
	DelayMs        int    `mapstructure:"delay_ms"`
	InputData      string `mapstructure:"input_data"`
	InputFile      string `mapstructure:"input_file"`
	// Variables override collection and environment variables for the run.
	Variables map[string]string `mapstructure:"variables"`

	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`

	OutputDir    string `mapstructure:"output_dir"`
	ExportBodies bool   `mapstructure:"export_bodies"`
	ExportLogs   bool   `mapstructure:"export_logs"`
	Report       bool   `mapstructure:"report"`
	JSONOutput   bool   `mapstructure:"json_output"`
	Dashboard    bool   `mapstructure:"dashboard"`
	Progress     bool   `mapstructure:"progress"`

	LogErrors   bool     `mapstructure:"log_errors"`
	LogLevel    string   `mapstructure:"log_level"`
	LogFormat   string   `mapstructure:"log_format"`
	Thresholds  []string `mapstructure:"thresholds"`
	MetricsAddr string   `mapstructure:"metrics_addr"`

	Tracing    TracingConfig `mapstructure:"tracing"`
	ConfigFile string        `mapstructure:"-"`
}

// TracingConfig configures OTLP span export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" (default) or "http"
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	// Propagate controls W3C trace header injection. Nil follows Enabled.
	Propagate *bool `mapstructure:"propagate"`
}

// Enabled reports whether an exporter endpoint is configured, either here or
// through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")) != ""
}

// ShouldPropagate reports whether trace context is injected into requests.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks the ambient settings. Repetition rules (counts, delay,
// input data contents) are left to repetition.Validate so they surface with
// their error codes.
func (c Config) Validate() error {
	var issues []string

	hasCollection := strings.TrimSpace(c.Collection) != ""
	hasHAR := strings.TrimSpace(c.HARFile) != ""
	switch {
	case hasCollection && hasHAR:
		issues = append(issues, "collection and har are mutually exclusive")
	case !hasCollection && !hasHAR:
		issues = append(issues, "collection or har is required (use --help for usage information)")
	}
	if hasHAR && strings.TrimSpace(c.Environment) != "" {
		issues = append(issues, "environment is not supported with har")
	}

	if strings.TrimSpace(c.Mode) != "" {
		if _, err := repetition.ParseMode(c.Mode); err != nil {
			issues = append(issues, err.Error())
		}
	}
	if strings.TrimSpace(c.InputData) != "" && strings.TrimSpace(c.InputFile) != "" {
		issues = append(issues, "input_data and input_file are mutually exclusive")
	}

	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}
	if (c.Report || c.ExportBodies || c.ExportLogs) && strings.TrimSpace(c.OutputDir) == "" {
		issues = append(issues, "output_dir is required for reports and exports")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", c.Tracing.SampleRate))
	}
	switch strings.ToLower(strings.TrimSpace(c.Tracing.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", c.Tracing.Protocol))
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Repetition converts the run settings. Unset counts stay nil so the
// repetition validator reports them with its own codes.
func (c Config) Repetition() repetition.Config {
	mode := repetition.Mode(strings.ToLower(strings.TrimSpace(c.Mode)))
	if parsed, err := repetition.ParseMode(c.Mode); err == nil {
		mode = parsed
	}

	input := feeder.None()
	switch {
	case strings.TrimSpace(c.InputFile) != "":
		input = feeder.File(strings.TrimSpace(c.InputFile))
	case strings.TrimSpace(c.InputData) != "":
		input = feeder.RawJSON(c.InputData)
	}

	return repetition.Config{
		BaseRequestRef:  c.Request,
		Mode:            mode,
		RepetitionCount: copyInt(c.Repetitions),
		MaxConcurrency:  copyInt(c.MaxConcurrency),
		DelayMs:         c.DelayMs,
		InputData:       input,
	}
}

// HAROptions converts HARFilter into conversion options. Recorded headers are
// kept and static assets dropped unless the filter says otherwise.
func (c Config) HAROptions() har.ConvertOptions {
	opts := har.DefaultOptions()
	filter := parseHARFilter(c.HARFilter)
	opts.IncludeHosts = filter["hosts"]
	opts.ExcludeHosts = filter["exclude_hosts"]
	opts.IncludeMethods = filter["methods"]
	if v, ok := filter["static"]; ok && len(v) == 1 && strings.EqualFold(v[0], "true") {
		opts.ExcludeStatic = false
	}
	return opts
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
