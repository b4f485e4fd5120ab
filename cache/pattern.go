package cache

import (
	"strings"
)

// MatchPattern reports whether key matches a glob pattern where `*` matches
// any substring, including the empty one. This mirrors the MATCH semantics
// the primary store applies during SCAN, so both tiers purge the same key
// families.
func MatchPattern(pattern, key string) bool {
	if pattern == "" {
		return key == ""
	}
	if pattern == "*" {
		return true
	}

	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == key
	}

	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	key = key[len(parts[0]):]

	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(key, part)
		if idx < 0 {
			return false
		}
		key = key[idx+len(part):]
	}

	return strings.HasSuffix(key, last)
}
