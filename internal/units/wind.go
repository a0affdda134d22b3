package units

import (
	"math"

	"weatherchart/internal/models"
)

// UnknownSector is returned by WindSector for labels it does not recognise.
const UnknownSector = 9

var labelSectors = map[string]int{
	"N":   0,
	"NNE": 1,
	"NE":  1,
	"ENE": 2,
	"E":   2,
	"ESE": 3,
	"SE":  3,
	"SSE": 4,
	"S":   4,
	"SSW": 5,
	"SW":  5,
	"WSW": 6,
	"W":   6,
	"NW":  7,
	"NNW": 7,
	"WNW": 8,
}

// WindDirection maps a numeric bearing onto a 16-point compass table.
// The table is expected to carry 17 entries with north repeated at the end.
// String bearings are returned as given.
func WindDirection(b models.Bearing, table []string) string {
	if b.Degrees == nil {
		return b.Label
	}
	idx := int(math.Trunc((*b.Degrees + 11.25) / 22.5))
	if idx < 0 || idx >= len(table) {
		return ""
	}
	return table[idx]
}

// WindSector returns the eighth of the compass (0 = north, 8 = north again)
// a bearing points to, for arrow icons.
func WindSector(b models.Bearing) int {
	if b.Degrees != nil {
		return int(math.Trunc((*b.Degrees + 22.5) / 45.0))
	}
	if s, ok := labelSectors[b.Label]; ok {
		return s
	}
	return UnknownSector
}
