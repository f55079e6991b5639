package lecture

import (
	"fmt"
	"strings"
)

// DefaultThemeColor is used when a course is created without a color.
const DefaultThemeColor = "#0A84FF"

// NormalizeHex accepts "RRGGBB" or "#RRGGBB" in any case and returns "#RRGGBB".
func NormalizeHex(value string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(trimmed) != 6 {
		return "", fmt.Errorf("color %q must have six hex digits", value)
	}
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return "", fmt.Errorf("color %q has non-hex digit %q", value, r)
		}
	}
	return "#" + strings.ToUpper(trimmed), nil
}
