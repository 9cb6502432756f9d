// Package har reads HTTP Archive files and turns their entries into request
// templates.
package har

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tidwall/gjson"
)

// maxArchiveBytes bounds how much of an archive is read. Browser captures
// with embedded response bodies rarely come close.
const maxArchiveBytes = 256 << 20

// ErrNoLog is returned for JSON documents without a "log" object.
var ErrNoLog = errors.New("har: archive has no log object")

// ParseFile parses the archive at path.
func ParseFile(path string) (*HAR, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("har: open archive: %w", err)
	}
	defer f.Close()

	archive, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return archive, nil
}

// Parse decodes an archive. The document must be JSON with a "log" object;
// "log.entries", when present, must be an array.
func Parse(r io.Reader) (*HAR, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxArchiveBytes+1))
	if err != nil {
		return nil, fmt.Errorf("har: read archive: %w", err)
	}
	switch {
	case len(data) == 0:
		return nil, errors.New("har: archive is empty")
	case len(data) > maxArchiveBytes:
		return nil, fmt.Errorf("har: archive exceeds %d bytes", maxArchiveBytes)
	case !gjson.ValidBytes(data):
		return nil, errors.New("har: archive is not valid JSON")
	}

	log := gjson.GetBytes(data, "log")
	if !log.IsObject() {
		return nil, ErrNoLog
	}
	if entries := log.Get("entries"); entries.Exists() && !entries.IsArray() {
		return nil, fmt.Errorf("har: log.entries is %s, want an array", entries.Type)
	}

	var archive HAR
	if err := json.Unmarshal(data, &archive); err != nil {
		return nil, fmt.Errorf("har: decode archive: %w", err)
	}
	return &archive, nil
}
