package variables

import (
	"regexp"
	"strings"
)

// placeholderPattern matches {{key}} and {{key|default}}.
var placeholderPattern = regexp.MustCompile(`\{\{([^}|]+)(?:\|([^}]*))?\}\}`)

// Apply substitutes every {{key}} in text with its value from vars.
// {{key|default}} falls back to default when key is unset. Unknown
// placeholders without a default are left untouched.
func Apply(text string, vars Set) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		parts := placeholderPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		key := strings.TrimSpace(parts[1])
		if val, ok := vars.Get(key); ok {
			return val
		}
		// parts[2] is empty both for {{key|}} and {{key}}; the pipe decides.
		if strings.Contains(match, "|") {
			return parts[2]
		}
		return match
	})
}

// Placeholders lists the distinct keys referenced by text, in order of appearance.
func Placeholders(text string) []string {
	var keys []string
	seen := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		key := strings.TrimSpace(m[1])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
