package analytics

import (
	"math"
	"unicode/utf8"

	"github.com/rankpulse/tracker/internal/model"
)

// Truncate shortens s to at most maxLen bytes without splitting a UTF-8 rune.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ClampCoordinate clamps a pointer coordinate into [0, 10000] and drops
// any fractional part.
func ClampCoordinate(v float64) int {
	switch {
	case v < model.MinClickCoordinate:
		return model.MinClickCoordinate
	case v > model.MaxClickCoordinate:
		return model.MaxClickCoordinate
	default:
		return int(math.Trunc(v))
	}
}
