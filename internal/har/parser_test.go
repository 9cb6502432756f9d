package har

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleHAR = `{
  "log": {
    "version": "1.2",
    "creator": {"name": "Firefox", "version": "120"},
    "entries": [
      {
        "startedDateTime": "2024-01-01T10:00:00.000Z",
        "request": {
          "method": "GET",
          "url": "https://api.example.com/users?page=1",
          "httpVersion": "HTTP/2",
          "headers": [{"name": "Accept", "value": "application/json"}]
        },
        "response": {"status": 200, "statusText": "OK"}
      }
    ]
  }
}`

func writeHAR(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.har")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseFile_ValidHAR(t *testing.T) {
	archive, err := ParseFile(writeHAR(t, sampleHAR))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if archive.Log.Version != "1.2" {
		t.Errorf("expected version 1.2, got %s", archive.Log.Version)
	}
	if archive.Log.Creator == nil || archive.Log.Creator.Name != "Firefox" {
		t.Errorf("unexpected creator %+v", archive.Log.Creator)
	}
	if len(archive.Log.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(archive.Log.Entries))
	}

	entry := archive.Log.Entries[0]
	if entry.Request.Method != "GET" || entry.Request.URL != "https://api.example.com/users?page=1" {
		t.Errorf("unexpected request %+v", entry.Request)
	}
	if entry.Response == nil || entry.Response.Status != 200 {
		t.Errorf("unexpected response %+v", entry.Response)
	}
}

func TestParseFile_FileNotFound(t *testing.T) {
	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.har")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		reader io.Reader
	}{
		{"invalid json", bytes.NewReader([]byte(`{invalid json`))},
		{"empty", bytes.NewReader(nil)},
		{"missing log", bytes.NewReader([]byte(`{"version": "1.2"}`))},
		{"log is not an object", bytes.NewReader([]byte(`{"log": "1.2"}`))},
		{"entries is not an array", bytes.NewReader([]byte(`{"log": {"entries": {"request": {}}}}`))},
		{"reader error", &erroringReader{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive, err := Parse(tt.reader)
			if err == nil {
				t.Fatal("expected error")
			}
			if archive != nil {
				t.Error("expected HAR to be nil on error")
			}
		})
	}
}

func TestParse_MissingLogIsErrNoLog(t *testing.T) {
	for _, doc := range []string{`{}`, `{"log": null}`, `[1, 2]`} {
		if _, err := Parse(strings.NewReader(doc)); !errors.Is(err, ErrNoLog) {
			t.Errorf("Parse(%s) error = %v, want ErrNoLog", doc, err)
		}
	}
}

func TestParseFile_ErrorNamesFile(t *testing.T) {
	path := writeHAR(t, `{"log": []}`)
	_, err := ParseFile(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Fatalf("ParseFile() error = %v, want it to mention %s", err, path)
	}
}

type erroringReader struct{}

func (er *erroringReader) Read(p []byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}
