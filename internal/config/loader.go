package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrHelpRequested is returned after usage has been printed.
var ErrHelpRequested = errors.New("help requested")

// Loader builds a Config from a config file and command line flags. Flags
// win over file settings.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// Load parses args and reads the --config file when one is given. The result
// is not validated.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	fs := cmd.Flags()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	configPath := fs.Lookup("config").Value.String()
	if helpRequested(fs) || (len(args) == 0 && configPath == "") {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	settings := map[string]interface{}{}
	if configPath != "" {
		v := viper.New()
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
		settings = v.AllSettings()
	}

	cfg := defaultConfig()
	cfg.ConfigFile = configPath
	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, fs); err != nil {
		return nil, err
	}
	normalize(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Mode:      "simple",
		Timeout:   30 * time.Second,
		OutputDir: ".",
		Progress:  true,
		LogLevel:  "warn",
		LogFormat: "console",
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}
}

func helpRequested(fs *pflag.FlagSet) bool {
	f := fs.Lookup("help")
	if f == nil {
		return false
	}
	on, err := strconv.ParseBool(f.Value.String())
	return err == nil && on
}

func normalize(cfg *Config) {
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.Request = strings.TrimSpace(cfg.Request)
	if cfg.Variables == nil {
		cfg.Variables = map[string]string{}
	}
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	stringSettings := []struct {
		dst  *string
		keys []string
	}{
		{&cfg.Collection, []string{"collection"}},
		{&cfg.HARFile, []string{"har", "har_file", "har-file"}},
		{&cfg.HARFilter, []string{"harfilter", "har_filter", "har-filter"}},
		{&cfg.Environment, []string{"environment", "env"}},
		{&cfg.Request, []string{"request"}},
		{&cfg.Mode, []string{"mode"}},
		{&cfg.InputData, []string{"inputdata", "input_data", "input-data"}},
		{&cfg.InputFile, []string{"inputfile", "input_file", "input-file"}},
		{&cfg.OutputDir, []string{"outputdir", "output_dir", "output-dir"}},
		{&cfg.LogLevel, []string{"loglevel", "log_level", "log-level"}},
		{&cfg.LogFormat, []string{"logformat", "log_format", "log-format"}},
		{&cfg.MetricsAddr, []string{"metricsaddr", "metrics_addr", "metrics-addr"}},
	}
	for _, s := range stringSettings {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = strings.TrimSpace(val)
	}

	boolSettings := []struct {
		dst  *bool
		keys []string
	}{
		{&cfg.Report, []string{"report"}},
		{&cfg.ExportBodies, []string{"exportbodies", "export_bodies", "export-bodies"}},
		{&cfg.ExportLogs, []string{"exportlogs", "export_logs", "export-logs"}},
		{&cfg.JSONOutput, []string{"jsonoutput", "json_output", "json-output"}},
		{&cfg.Dashboard, []string{"dashboard"}},
		{&cfg.Progress, []string{"progress"}},
		{&cfg.LogErrors, []string{"logerrors", "log_errors", "log-errors"}},
	}
	for _, s := range boolSettings {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = val
	}

	if raw, ok := lookupSetting(settings, "repetitions"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("repetitions: %w", err)
		}
		cfg.Repetitions = &val
	}
	if raw, ok := lookupSetting(settings, "maxconcurrency", "max_concurrency", "max-concurrency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("max_concurrency: %w", err)
		}
		cfg.MaxConcurrency = &val
	}
	if raw, ok := lookupSetting(settings, "delayms", "delay_ms", "delay-ms"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("delay_ms: %w", err)
		}
		cfg.DelayMs = val
	}
	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}
	if raw, ok := lookupSetting(settings, "retries"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("retries: %w", err)
		}
		cfg.Retries = val
	}
	if raw, ok := lookupSetting(settings, "variables", "vars"); ok {
		vars, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("variables: %w", err)
		}
		cfg.Variables = vars
	}
	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}
	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applyTracingSettings(tc *TracingConfig, value interface{}) error {
	if value == nil {
		return nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		tc.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		tc.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		tc.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		tc.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		tc.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		tc.Propagate = &val
	}
	return nil
}

// parseHARFilter parses a HAR filter string and returns a map representation.
// Format examples:
//   - "host:example.com"
//   - "host:api.example.com,cdn.example.com"
//   - "exclude-host:cdn.example.com"
//   - "method:GET,POST"
//   - "static:true" keeps static assets
//   - "host:example.com;method:GET,POST"
func parseHARFilter(filter string) map[string][]string {
	opts := make(map[string][]string)

	if filter == "" {
		return opts
	}

	for _, part := range strings.Split(filter, ";") {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(strings.ToLower(kv[0]))
		values := splitList(kv[1])

		switch key {
		case "host":
			opts["hosts"] = values
		case "exclude-host", "exclude_host":
			opts["exclude_hosts"] = values
		case "method":
			for i := range values {
				values[i] = strings.ToUpper(values[i])
			}
			opts["methods"] = values
		case "static":
			opts["static"] = values
		}
	}

	return opts
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
