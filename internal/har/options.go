package har

import (
	"net/url"
	"path"
	"strings"
)

// ConvertOptions selects which archive entries become request templates.
// Empty include lists admit everything; host and method matching ignores
// case.
type ConvertOptions struct {
	IncludeHosts   []string
	ExcludeHosts   []string
	IncludeMethods []string
	// ExcludeStatic skips scripts, stylesheets, images and fonts.
	ExcludeStatic bool
	// IncludeHeaders copies recorded request headers onto the templates.
	IncludeHeaders bool
}

// DefaultOptions keeps recorded headers and skips static assets, which is
// what a browser capture of an API session usually needs.
func DefaultOptions() ConvertOptions {
	return ConvertOptions{ExcludeStatic: true, IncludeHeaders: true}
}

var staticExtensions = map[string]bool{
	".js": true, ".css": true, ".map": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
}

// admits reports whether a request with method and URL u passes the filters.
// A host filter matches either host:port or the bare host name.
func (o ConvertOptions) admits(method string, u *url.URL) bool {
	hostMatches := func(list []string) bool {
		return containsFold(list, u.Host) || containsFold(list, u.Hostname())
	}
	switch {
	case len(o.IncludeHosts) > 0 && !hostMatches(o.IncludeHosts):
		return false
	case hostMatches(o.ExcludeHosts):
		return false
	case len(o.IncludeMethods) > 0 && !containsFold(o.IncludeMethods, method):
		return false
	case o.ExcludeStatic && isStaticAsset(u.Path):
		return false
	}
	return true
}

func isStaticAsset(p string) bool {
	return staticExtensions[strings.ToLower(path.Ext(p))]
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), value) {
			return true
		}
	}
	return false
}
