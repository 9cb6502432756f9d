package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/torosent/repeater/internal/repetition"
)

// reportTimeLayout is the UTC timestamp used in report file names.
const reportTimeLayout = "20060102T150405Z"

// ReportFileName returns report_<name>_<environment>_<timestamp>.csv with
// characters unsafe for file names replaced.
func ReportFileName(requestName, environment string, at time.Time) string {
	if strings.TrimSpace(environment) == "" {
		environment = "none"
	}
	return fmt.Sprintf("report_%s_%s_%s.csv",
		sanitizeFileName(requestName),
		sanitizeFileName(environment),
		at.UTC().Format(reportTimeLayout))
}

// WriteCSVReport writes one row per result in completion order. Columns are
// ordinal, iteration, one column per input key, outcome, successful and
// elapsed_ms. inputKeys normally come from the first input record.
func WriteCSVReport(w io.Writer, inputKeys []string, results []repetition.Result) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(inputKeys)+5)
	header = append(header, "ordinal", "iteration")
	header = append(header, inputKeys...)
	header = append(header, "outcome", "successful", "elapsed_ms")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, r := range sortedByCompletion(results) {
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(r.CompletionOrdinal), strconv.Itoa(r.Iteration.Ordinal))
		for _, key := range inputKeys {
			value := ""
			if r.Iteration.Record != nil {
				value, _ = r.Iteration.Record.Get(key)
			}
			row = append(row, value)
		}
		row = append(row,
			r.Outcome(),
			strconv.FormatBool(r.Successful),
			strconv.FormatInt(r.Elapsed().Milliseconds(), 10),
		)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write CSV row %d: %w", r.CompletionOrdinal, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSVReport writes the report into dir and returns its path.
func SaveCSVReport(dir, requestName, environment string, at time.Time, inputKeys []string, results []repetition.Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	path := filepath.Join(dir, ReportFileName(requestName, environment, at))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	if err := WriteCSVReport(f, inputKeys, results); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}
	return path, nil
}

func sanitizeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "request"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}
