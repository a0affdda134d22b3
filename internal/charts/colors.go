package charts

import (
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// parseColor understands "#rrggbb", "rgb(r, g, b)", "rgba(r, g, b, a)" and
// "transparent". Anything else yields fallback.
func parseColor(s string, fallback drawing.Color) drawing.Color {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case s == "":
		return fallback
	case s == "transparent":
		return drawing.ColorTransparent
	case strings.HasPrefix(s, "#"):
		if len(s) != 7 {
			return fallback
		}
		if _, err := strconv.ParseUint(s[1:], 16, 32); err != nil {
			return fallback
		}
		return drawing.ColorFromHex(s[1:])
	case strings.HasPrefix(s, "rgb"):
		open, end := strings.Index(s, "("), strings.LastIndex(s, ")")
		if open < 0 || end < open {
			return fallback
		}
		parts := strings.Split(s[open+1:end], ",")
		if len(parts) != 3 && len(parts) != 4 {
			return fallback
		}
		var rgb [3]uint8
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
			if err != nil {
				return fallback
			}
			rgb[i] = clampByte(v)
		}
		alpha := uint8(255)
		if len(parts) == 4 {
			a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
			if err != nil {
				return fallback
			}
			alpha = clampByte(a * 255)
		}
		return drawing.Color{R: rgb[0], G: rgb[1], B: rgb[2], A: alpha}
	}
	return fallback
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}
