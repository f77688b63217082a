// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// SplitList splits a comma-separated setting into trimmed, non-empty,
// unique values. Order is preserved; the first occurrence wins.
//
// Example:
//
//	SplitList(" https://a/ ,https://b/,,https://a/")
//	// Returns: []string{"https://a/", "https://b/"}
func SplitList(raw string) []string {
	var result []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
