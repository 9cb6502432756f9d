package metrics

import (
	"strings"
	"unicode"
)

var errorKindAliases = map[string]string{
	"runner.HTTPError":                 "http_status",
	"url.Error":                        "url",
	"net.OpError":                      "network",
	"net.DNSError":                     "dns",
	"tls.CertificateVerificationError": "tls_certificate",
	"websocket.CloseError":             "websocket_closed",
	"context.deadlineExceededError":    "timeout",
	"errors.errorString":               "error",
	"fmt.wrapError":                    "error",
	"fmt.wrapErrors":                   "error",
}

// ErrorKind turns a Go error type name such as "*net.OpError" into a short
// snake_case failure kind. Unknown types become "<pkg>_<type words>".
func ErrorKind(typeName string) string {
	name := strings.TrimPrefix(strings.TrimSpace(typeName), "*")
	if name == "" {
		return "unknown"
	}
	if idx := strings.LastIndex(name, "/"); idx != -1 {
		name = name[idx+1:]
	}
	if kind, ok := errorKindAliases[name]; ok {
		return kind
	}

	pkg, typ := "", name
	if idx := strings.Index(name, "."); idx != -1 {
		pkg, typ = name[:idx], name[idx+1:]
	}
	words := splitWords(typ)
	if len(words) > 1 && words[len(words)-1] == "error" {
		words = words[:len(words)-1]
	}
	if pkg != "" && pkg != "main" {
		words = append([]string{strings.ToLower(pkg)}, words...)
	}
	if len(words) == 0 {
		return "unknown"
	}
	return strings.Join(words, "_")
}

// splitWords breaks a Go identifier into lowercase words, keeping acronyms
// together: "HTTPStatusError" -> http, status, error.
func splitWords(ident string) []string {
	runes := []rune(ident)
	var words []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		boundary := unicode.IsUpper(cur) && (unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower))
		if boundary || (unicode.IsDigit(cur) && !unicode.IsDigit(prev)) || cur == '_' {
			if w := strings.Trim(string(runes[start:i]), "_"); w != "" {
				words = append(words, strings.ToLower(w))
			}
			start = i
		}
	}
	if w := strings.Trim(string(runes[start:]), "_"); w != "" {
		words = append(words, strings.ToLower(w))
	}
	return words
}
