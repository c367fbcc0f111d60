package utils

import (
	"strings"
)

// Dedup removes repeated entries while keeping the first occurrence order.
func Dedup(in []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, e := range in {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

// NormalizeHex lowercases a 0x-prefixed identifier so lookups against the index are case-insensitive.
func NormalizeHex(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0X") {
		s = "0x" + s[2:]
	}
	return strings.ToLower(s)
}
