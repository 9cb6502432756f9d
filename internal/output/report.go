package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/torosent/repeater/internal/metrics"
	"github.com/torosent/repeater/internal/runner"
	"github.com/torosent/repeater/internal/threshold"
)

// RunReport is the machine readable summary of a run.
type RunReport struct {
	RunID      string             `json:"run_id"`
	Request    string             `json:"request"`
	Mode       string             `json:"mode"`
	Planned    int                `json:"planned"`
	Dispatched int                `json:"dispatched"`
	Completed  int                `json:"completed"`
	Successful int                `json:"successful"`
	Cancelled  bool               `json:"cancelled"`
	Stats      metrics.Stats      `json:"stats"`
	Thresholds []threshold.Result `json:"thresholds,omitempty"`
	Exports    []string           `json:"exports,omitempty"`
}

// NewRunReport combines a run summary with its aggregated statistics.
func NewRunReport(requestName, mode string, summary runner.Summary, stats metrics.Stats, thresholds []threshold.Result) RunReport {
	return RunReport{
		RunID:      summary.RunID,
		Request:    requestName,
		Mode:       mode,
		Planned:    summary.Planned,
		Dispatched: summary.Dispatched,
		Completed:  summary.Completed,
		Successful: summary.Successful,
		Cancelled:  summary.Cancelled,
		Stats:      stats,
		Thresholds: thresholds,
	}
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, report RunReport) {
	stats := report.Stats
	fmt.Fprintln(w, "\n--- Repetition Results ---")
	fmt.Fprintf(w, "Run:               %s\n", report.RunID)
	fmt.Fprintf(w, "Request:           %s\n", report.Request)
	fmt.Fprintf(w, "Mode:              %s\n", report.Mode)
	fmt.Fprintf(w, "Planned:           %d\n", report.Planned)
	fmt.Fprintf(w, "Completed:         %d\n", report.Completed)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	if stats.Cancelled > 0 {
		fmt.Fprintf(w, "Cancelled:         %d\n", stats.Cancelled)
	}
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Iterations/sec:    %.2f\n", stats.RequestsPerSec)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", stats.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if len(stats.StatusBuckets) > 0 {
		fmt.Fprintln(w, "\nOutcomes:")
		for _, row := range metrics.FlattenStatusBuckets(stats.StatusBuckets) {
			fmt.Fprintf(w, "  %s %s: %d\n", strings.ToUpper(row.Protocol), row.Code, row.Count)
		}
	}

	if len(report.Thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, r := range report.Thresholds {
			fmt.Fprintf(w, "  %s\n", r.Message)
		}
	}

	if len(report.Exports) > 0 {
		fmt.Fprintln(w, "\nExports:")
		for _, path := range report.Exports {
			fmt.Fprintf(w, "  %s\n", path)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// StatusLine is the closing line printed after every run.
func StatusLine(completed, successful int) string {
	return fmt.Sprintf("Finished %d repetitions. %d successful.", completed, successful)
}

// PrintStatus writes the cancellation notice, if any, followed by the status line.
func PrintStatus(w io.Writer, summary runner.Summary) {
	if summary.Cancelled {
		fmt.Fprintf(w, "Run cancelled after %d of %d repetitions.\n", summary.Completed, summary.Planned)
	}
	fmt.Fprintln(w, StatusLine(summary.Completed, summary.Successful))
}
