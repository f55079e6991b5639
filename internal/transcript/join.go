// Package transcript composes committed and live transcript text.
package transcript

import "strings"

// Join concatenates parts with single spaces, normalizing inner whitespace
// and skipping parts that are empty after trimming.
func Join(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if normalized := Normalize(part); normalized != "" {
			kept = append(kept, normalized)
		}
	}
	return strings.Join(kept, " ")
}

// Normalize collapses runs of whitespace and trims the ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
