package httpclient

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestNewBodySource(t *testing.T) {
	t.Run("both body and body file", func(t *testing.T) {
		if _, err := NewBodySource("inline", "file.txt"); err == nil {
			t.Error("NewBodySource(both) error = nil, want error")
		}
	})

	t.Run("inline body", func(t *testing.T) {
		source, err := NewBodySource("hello", "")
		if err != nil {
			t.Fatalf("NewBodySource error = %v", err)
		}
		if n, ok := source.ContentLength(); !ok || n != 5 {
			t.Errorf("ContentLength = %d, %v", n, ok)
		}
		assertReads(t, source, "hello")
	})

	t.Run("empty body", func(t *testing.T) {
		source, err := NewBodySource("", "  ")
		if err != nil {
			t.Fatalf("NewBodySource error = %v", err)
		}
		if n, ok := source.ContentLength(); !ok || n != 0 {
			t.Errorf("ContentLength = %d, %v", n, ok)
		}
		assertReads(t, source, "")
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := NewBodySource("", filepath.Join(t.TempDir(), "nope.json")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("directory", func(t *testing.T) {
		if _, err := NewBodySource("", t.TempDir()); err == nil {
			t.Error("expected error for directory")
		}
	})
}

func TestBodySourceFromFile(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "body.txt")
	content := "file body {{payload}}"

	if err := os.WriteFile(filePath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	source, err := NewBodySource("", filePath)
	if err != nil {
		t.Fatalf("expected body source, got error: %v", err)
	}
	if n, ok := source.ContentLength(); !ok || n != int64(len(content)) {
		t.Errorf("ContentLength = %d, %v", n, ok)
	}

	// Each reader starts from the beginning and placeholders are sent verbatim.
	for i := 0; i < 2; i++ {
		assertReads(t, source, content)
	}
}

func TestFileBodySource_OpenError(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "gone.txt")
	if err := os.WriteFile(filePath, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	source, err := NewBodySource("", filePath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filePath); err != nil {
		t.Fatal(err)
	}
	if _, err := source.NewReader(); err == nil {
		t.Fatal("expected error opening removed file")
	}
}

func assertReads(t *testing.T, source BodySource, want string) {
	t.Helper()
	reader, err := source.NewReader()
	if err != nil {
		t.Fatalf("NewReader error = %v", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	if err := reader.Close(); err != nil {
		t.Fatalf("close body failed: %v", err)
	}
	if string(data) != want {
		t.Fatalf("body = %q, want %q", data, want)
	}
}
