// Package feeder turns repetition input data (inline JSON or a data file) into
// the ordered records that drive Sequential and Random runs.
package feeder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/torosent/repeater/internal/variables"
)

// Record is one row of input data. Field order follows the source object or
// CSV header.
type Record = variables.Set

var (
	// ErrFileNotFound is returned when an input data file does not exist.
	ErrFileNotFound = errors.New("input data file not found")
	// ErrInvalid is returned when input data cannot be parsed into records.
	ErrInvalid = errors.New("input data is invalid")
	// ErrAtLeastOneLine is returned when records are required but none were found.
	ErrAtLeastOneLine = errors.New("input data must contain at least one line")
)

// InputKind tags the variant held by InputData.
type InputKind uint8

const (
	InputNone InputKind = iota
	InputRawJSON
	InputFile
)

func (k InputKind) String() string {
	switch k {
	case InputNone:
		return "none"
	case InputRawJSON:
		return "raw_json"
	case InputFile:
		return "file"
	default:
		return fmt.Sprintf("InputKind(%d)", uint8(k))
	}
}

// InputData is the source of per-iteration records.
type InputData struct {
	Kind InputKind
	// Text holds the JSON document for InputRawJSON.
	Text string
	// Path holds the file location for InputFile.
	Path string
}

// None returns input data with no records.
func None() InputData { return InputData{Kind: InputNone} }

// RawJSON wraps an inline JSON array of objects.
func RawJSON(text string) InputData { return InputData{Kind: InputRawJSON, Text: text} }

// File refers to a JSON (or .csv) file on disk.
func File(path string) InputData { return InputData{Kind: InputFile, Path: path} }

// Resolve parses data into records. When requireRecords is set an empty
// result fails with ErrAtLeastOneLine. File paths must already have their
// placeholders substituted.
func Resolve(data InputData, requireRecords bool) ([]Record, error) {
	var (
		records []Record
		err     error
	)
	switch data.Kind {
	case InputNone:
	case InputRawJSON:
		records, err = parseJSONRecords([]byte(data.Text))
	case InputFile:
		records, err = readFile(data.Path)
	default:
		return nil, fmt.Errorf("%w: unknown input kind %s", ErrInvalid, data.Kind)
	}
	if err != nil {
		return nil, err
	}
	if requireRecords && len(records) == 0 {
		return nil, ErrAtLeastOneLine
	}
	return records, nil
}

func readFile(path string) ([]Record, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrFileNotFound)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return parseCSVRecords(raw)
	}
	return parseJSONRecords(raw)
}
