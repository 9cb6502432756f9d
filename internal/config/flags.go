package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "repeater --collection FILE --request PATH [flags]",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Request source
	flags.String("collection", "", "Path to a collection file (YAML or JSON)")
	flags.String("har", "", "Path to a HAR file to use as the collection")
	flags.String("har-filter", "", "Filter HAR entries (e.g. 'host:example.com;method:GET,POST')")
	flags.StringP("environment", "e", "", "Collection environment to resolve variables from")
	flags.StringP("request", "R", "", "Base request path inside the collection (e.g. 'Users/Get user')")
	flags.StringToString("var", nil, "Variable override in key=value form (repeatable)")

	// Repetition
	flags.StringP("mode", "m", "simple", "Repetition mode: simple, sequential or random")
	flags.IntP("repetitions", "n", 0, "Number of repetitions (simple and random modes)")
	flags.IntP("max-concurrency", "c", 0, "Maximum iterations in flight (simple and random modes)")
	flags.Int("delay-ms", 0, "Minimum delay in milliseconds between iteration starts")
	flags.String("input-data", "", "Inline JSON array of objects used as per-iteration variables")
	flags.String("input-file", "", "Path to a JSON or CSV file of per-iteration variables")

	// Transport
	flags.Duration("timeout", 30*time.Second, "Per-request timeout")
	flags.Int("retries", 0, "Number of retries per iteration for transport errors, 5xx and 429")

	// Output
	flags.String("output-dir", ".", "Directory for the CSV report and exports")
	flags.Bool("report", false, "Write a CSV report of every iteration")
	flags.Bool("export-bodies", false, "Write each response body to iteration<N><ext>")
	flags.Bool("export-logs", false, "Write each HTTP transaction to iteration<N>.log")
	flags.Bool("json-output", false, "Emit JSON formatted summary")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.Bool("progress", true, "Show a progress bar on stderr")
	flags.StringSlice("threshold", nil, "Pass/fail thresholds (repeatable, e.g. 'duration:p95 < 500')")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Logging and telemetry
	flags.Bool("log-errors", false, "Log each failed iteration")
	flags.String("log-level", "warn", "Log level: trace, debug, info, warn, error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. ':9090')")
	flags.String("tracing-endpoint", "", "OTLP endpoint for iteration spans (e.g. 'localhost:4317')")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of iterations to trace (0.0-1.0)")
	flags.Bool("tracing-propagate", false, "Inject W3C trace context headers into requests")
}

func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	stringFlags := []struct {
		name string
		dst  *string
		trim bool
	}{
		{"collection", &cfg.Collection, true},
		{"har", &cfg.HARFile, true},
		{"har-filter", &cfg.HARFilter, true},
		{"environment", &cfg.Environment, true},
		{"request", &cfg.Request, false},
		{"mode", &cfg.Mode, true},
		{"input-data", &cfg.InputData, false},
		{"input-file", &cfg.InputFile, true},
		{"output-dir", &cfg.OutputDir, true},
		{"log-level", &cfg.LogLevel, true},
		{"log-format", &cfg.LogFormat, true},
		{"metrics-addr", &cfg.MetricsAddr, true},
		{"tracing-endpoint", &cfg.Tracing.Endpoint, true},
		{"tracing-protocol", &cfg.Tracing.Protocol, true},
		{"tracing-service-name", &cfg.Tracing.ServiceName, true},
	}
	for _, f := range stringFlags {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetString(f.name)
		if err != nil {
			return err
		}
		if f.trim {
			val = strings.TrimSpace(val)
		}
		*f.dst = val
	}

	boolFlags := []struct {
		name string
		dst  *bool
	}{
		{"report", &cfg.Report},
		{"export-bodies", &cfg.ExportBodies},
		{"export-logs", &cfg.ExportLogs},
		{"json-output", &cfg.JSONOutput},
		{"dashboard", &cfg.Dashboard},
		{"progress", &cfg.Progress},
		{"log-errors", &cfg.LogErrors},
		{"tracing-insecure", &cfg.Tracing.Insecure},
	}
	for _, f := range boolFlags {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetBool(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	if fs.Changed("repetitions") {
		val, err := fs.GetInt("repetitions")
		if err != nil {
			return err
		}
		cfg.Repetitions = &val
	}
	if fs.Changed("max-concurrency") {
		val, err := fs.GetInt("max-concurrency")
		if err != nil {
			return err
		}
		cfg.MaxConcurrency = &val
	}
	if fs.Changed("delay-ms") {
		val, err := fs.GetInt("delay-ms")
		if err != nil {
			return err
		}
		cfg.DelayMs = val
	}
	if fs.Changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("var") {
		val, err := fs.GetStringToString("var")
		if err != nil {
			return err
		}
		if cfg.Variables == nil {
			cfg.Variables = map[string]string{}
		}
		for k, v := range val {
			cfg.Variables[strings.TrimSpace(k)] = v
		}
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}

	// Inline input replaces a file from the config file and vice versa.
	if fs.Changed("input-data") && !fs.Changed("input-file") {
		cfg.InputFile = ""
	}
	if fs.Changed("input-file") && !fs.Changed("input-data") {
		cfg.InputData = ""
	}
	return nil
}
