package output

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"github.com/torosent/repeater/internal/repetition"
)

const lockFileName = ".repeater.lock"

// knownExtensions covers content types whose system mapping is missing or
// ambiguous.
var knownExtensions = map[string]string{
	"application/json":         ".json",
	"application/problem+json": ".json",
	"application/xml":          ".xml",
	"text/xml":                 ".xml",
	"text/html":                ".html",
	"text/plain":               ".txt",
	"text/csv":                 ".csv",
	"application/javascript":   ".js",
	"image/png":                ".png",
	"image/jpeg":               ".jpg",
	"image/gif":                ".gif",
	"application/pdf":          ".pdf",
	"application/octet-stream": ".bin",
}

// Exporter writes per-iteration files into Dir. A lock file in Dir keeps two
// runs from interleaving their exports.
type Exporter struct {
	Dir string
}

// ExportBodies writes each response body to iteration<N><ext> where N is the
// completion ordinal. Results without a body are skipped.
func (e Exporter) ExportBodies(results []repetition.Result) ([]string, error) {
	return e.export(results, func(r repetition.Result) (string, []byte, bool) {
		if r.Response == nil || len(r.Response.Body) == 0 {
			return "", nil, false
		}
		name := fmt.Sprintf("iteration%d%s", r.CompletionOrdinal, ExtensionFor(r.Response.ContentType()))
		return name, r.Response.Body, true
	})
}

// ExportLogs writes the request and response of each iteration to
// iteration<N>.log, N being the completion ordinal. Results without a response are skipped.
func (e Exporter) ExportLogs(results []repetition.Result) ([]string, error) {
	return e.export(results, func(r repetition.Result) (string, []byte, bool) {
		if r.Response == nil {
			return "", nil, false
		}
		return fmt.Sprintf("iteration%d.log", r.CompletionOrdinal), TransactionLog(r), true
	})
}

func (e Exporter) export(results []repetition.Result, render func(repetition.Result) (string, []byte, bool)) ([]string, error) {
	if strings.TrimSpace(e.Dir) == "" {
		return nil, fmt.Errorf("export directory is required")
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	lock := flock.New(filepath.Join(e.Dir, lockFileName))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock export directory: %w", err)
	}
	defer lock.Unlock()

	var written []string
	for _, r := range sortedByCompletion(results) {
		name, data, ok := render(r)
		if !ok {
			continue
		}
		path := filepath.Join(e.Dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// ExtensionFor maps a media type to a file extension, falling back to .bin.
func ExtensionFor(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType == "" {
		return ".bin"
	}
	if ext, ok := knownExtensions[contentType]; ok {
		return ext
	}
	if strings.HasSuffix(contentType, "+json") {
		return ".json"
	}
	if strings.HasSuffix(contentType, "+xml") {
		return ".xml"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// TransactionLog renders the request and response of r as HTTP text.
func TransactionLog(r repetition.Result) []byte {
	var buf bytes.Buffer
	req := r.Request
	fmt.Fprintf(&buf, "%s %s\n", req.Method, req.URL)
	writeHeaders(&buf, req.Header())
	if len(req.Body) > 0 {
		buf.WriteString("\n")
		buf.WriteString(req.Body)
		buf.WriteString("\n")
	} else if req.BodyFile != "" {
		fmt.Fprintf(&buf, "\n<file %s>\n", req.BodyFile)
	}

	if resp := r.Response; resp != nil {
		buf.WriteString("\n")
		proto := resp.Proto
		if proto == "" {
			proto = "HTTP/1.1"
		}
		fmt.Fprintf(&buf, "%s %s\n", proto, r.Outcome())
		writeHeaders(&buf, resp.Headers)
		if len(resp.Body) > 0 {
			buf.WriteString("\n")
			buf.Write(resp.Body)
			buf.WriteString("\n")
		}
		if len(resp.Trailers) > 0 {
			buf.WriteString("\n")
			writeHeaders(&buf, resp.Trailers)
		}
	}
	return buf.Bytes()
}

func writeHeaders(buf *bytes.Buffer, h http.Header) {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range h[name] {
			fmt.Fprintf(buf, "%s: %s\n", name, v)
		}
	}
}

func sortedByCompletion(results []repetition.Result) []repetition.Result {
	out := make([]repetition.Result, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletionOrdinal < out[j].CompletionOrdinal
	})
	return out
}
