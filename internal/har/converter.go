package har

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/torosent/repeater/internal/request"
)

// hopByHopHeaders are dropped from recorded requests, along with HTTP/2
// pseudo headers and lengths the client recomputes.
var hopByHopHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailers":            true,
	"transfer-encoding":   true,
	"upgrade":             true,
	"content-length":      true,
	"host":                true,
}

// Convert turns the archive entries that pass opts into request templates.
// Each template is named "<METHOD> <path>"; repeated names get a " (n)"
// suffix so every template stays addressable.
func Convert(archive *HAR, opts ConvertOptions) ([]request.Template, error) {
	if archive == nil || archive.Log == nil {
		return nil, ErrNoLog
	}

	var templates []request.Template
	seen := make(map[string]int)

	for _, entry := range archive.Log.Entries {
		if !shouldIncludeEntry(entry, opts) {
			continue
		}

		tmpl := entryToTemplate(entry, opts)
		seen[tmpl.Name]++
		if n := seen[tmpl.Name]; n > 1 {
			tmpl.Name = fmt.Sprintf("%s (%d)", tmpl.Name, n)
		}
		templates = append(templates, tmpl)
	}

	return templates, nil
}

// shouldIncludeEntry drops entries without a request or with an unparsable
// URL, then applies opts.
func shouldIncludeEntry(entry *Entry, opts ConvertOptions) bool {
	if entry == nil || entry.Request == nil {
		return false
	}
	u, err := url.Parse(entry.Request.URL)
	if err != nil {
		return false
	}
	return opts.admits(entry.Request.Method, u)
}

func entryToTemplate(entry *Entry, opts ConvertOptions) request.Template {
	req := entry.Request
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = "GET"
	}

	tmpl := request.Template{
		Method:   method,
		URL:      req.URL,
		Protocol: request.ProtocolHTTP,
	}

	path := "/"
	if parsedURL, err := url.Parse(req.URL); err == nil {
		if parsedURL.Path != "" {
			path = parsedURL.Path
		}
		if parsedURL.Scheme == "ws" || parsedURL.Scheme == "wss" {
			tmpl.Protocol = request.ProtocolWebSocket
		}
	}
	tmpl.Name = method + " " + path

	if opts.IncludeHeaders {
		tmpl.Headers = extractHeaders(req.Headers)
	}

	if pd := req.PostData; pd != nil {
		switch {
		case pd.Text != "":
			tmpl.Body = pd.Text
		case len(pd.Params) > 0:
			form := url.Values{}
			for _, p := range pd.Params {
				if p != nil {
					form.Add(p.Name, p.Value)
				}
			}
			tmpl.Body = form.Encode()
		}
		if tmpl.Body != "" && pd.MimeType != "" && !hasHeader(tmpl.Headers, "Content-Type") {
			tmpl.Headers = append(tmpl.Headers, request.Header{Name: "Content-Type", Value: pd.MimeType})
		}
	}

	return tmpl
}

// extractHeaders keeps recorded headers in order, minus hop-by-hop and
// pseudo headers.
func extractHeaders(headers []*Header) []request.Header {
	var result []request.Header
	for _, header := range headers {
		if header == nil {
			continue
		}
		lowerName := strings.ToLower(strings.TrimSpace(header.Name))
		if lowerName == "" || strings.HasPrefix(lowerName, ":") || hopByHopHeaders[lowerName] {
			continue
		}
		result = append(result, request.Header{Name: header.Name, Value: header.Value})
	}
	return result
}

func hasHeader(headers []request.Header, name string) bool {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}
