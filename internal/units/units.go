// Package units converts display values between speed, pressure and
// distance units and classifies wind speed on the Beaufort scale.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"weatherchart/internal/logger"
)

// Unit tags accepted by the converters.
const (
	KilometersPerHour = "km/h"
	MetersPerSecond   = "m/s"
	MilesPerHour      = "mph"
	Beaufort          = "Bft"

	Hectopascal        = "hPa"
	MillimetersMercury = "mmHg"
	InchesMercury      = "inHg"
)

// ErrUnknownUnit is returned when a Beaufort classification is requested for
// a speed unit without a km/h factor.
var ErrUnknownUnit = errors.New("unknown wind speed unit")

// speedToKmh is shared by ConvertSpeed and CalculateBeaufortScale.
var speedToKmh = map[string]float64{
	KilometersPerHour: 1,
	MetersPerSecond:   3.6,
	MilesPerHour:      1.60934,
}

var beaufortThresholds = []float64{1, 6, 12, 20, 29, 39, 50, 62, 75, 89, 103, 118}

const (
	hPaToMmHg  = 0.75006
	inHgToMmHg = 25.4
	inHgToHPa  = 33.8639
)

var log = logger.Component("units")

// Value is a converted number together with its display precision.
type Value struct {
	Number    float64
	Precision int32
}

// String renders the value with exactly Precision decimals, rounding half
// away from zero.
func (v Value) String() string {
	if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v.Number).StringFixed(v.Precision)
}

// ConvertSpeed converts value from one speed unit to another. A Bft target
// classifies the speed instead; that path is the only one that can fail.
func ConvertSpeed(value float64, from, to string) (Value, error) {
	out := Value{Number: value}

	switch {
	case from == "":
		log.Warn("Unable to convert because the input unit is undefined", map[string]interface{}{"kind": "speed"})
	case from == to:
	case to == Beaufort:
		scale, err := CalculateBeaufortScale(value, from)
		if err != nil {
			return Value{}, err
		}
		out.Number = float64(scale)
	default:
		fromFactor, okFrom := speedToKmh[from]
		toFactor, okTo := speedToKmh[to]
		if !okTo {
			log.Warn("Unable to convert speed to unknown unit", map[string]interface{}{"unit": to})
			break
		}
		if !okFrom {
			log.Warn("Unable to convert speed from unknown unit", map[string]interface{}{"unit": from})
			break
		}
		out.Number = value * fromFactor / toFactor
	}
	return out, nil
}

// ConvertPressure converts value between hPa, mmHg and inHg. Results targeting
// inHg carry two decimals, everything else none.
func ConvertPressure(value float64, from, to string) Value {
	out := Value{Number: value}
	if to == InchesMercury {
		out.Precision = 2
	}

	if from == "" {
		log.Warn("Unable to convert because the input unit is undefined", map[string]interface{}{"kind": "pressure"})
		return out
	}
	if from == to {
		return out
	}

	switch to {
	case MillimetersMercury:
		switch from {
		case Hectopascal:
			out.Number = math.Round(value * hPaToMmHg)
		case InchesMercury:
			out.Number = math.Round(value * inHgToMmHg)
		default:
			log.Warn("Unable to convert pressure from unknown unit", map[string]interface{}{"unit": from})
		}
	case Hectopascal:
		switch from {
		case MillimetersMercury:
			out.Number = math.Round(value / hPaToMmHg)
		case InchesMercury:
			out.Number = math.Round(value * inHgToHPa)
		default:
			log.Warn("Unable to convert pressure from unknown unit", map[string]interface{}{"unit": from})
		}
	case InchesMercury:
		switch from {
		case MillimetersMercury:
			out.Number = value / inHgToMmHg
		case Hectopascal:
			out.Number = value / inHgToHPa
		default:
			log.Warn("Unable to convert pressure from unknown unit", map[string]interface{}{"unit": from})
		}
	default:
		log.Warn("Unable to convert pressure to unknown unit", map[string]interface{}{"unit": to})
	}
	return out
}

// ConvertDistance only knows the identity conversion. Anything else is
// passed through unchanged with a warning.
func ConvertDistance(value float64, from, to string) Value {
	out := Value{Number: value, Precision: 1}
	switch {
	case from == "":
		log.Warn("Unable to convert because the input unit is undefined", map[string]interface{}{"kind": "distance"})
	case from != to:
		log.Warn("Unable to convert distance", map[string]interface{}{"from": from, "to": to})
	}
	return out
}

// CalculateBeaufortScale classifies a wind speed given in km/h, m/s or mph
// into a Beaufort force between 0 and 12.
func CalculateBeaufortScale(speed float64, unit string) (int, error) {
	factor, ok := speedToKmh[unit]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}
	kmh := speed * factor
	for force, limit := range beaufortThresholds {
		if kmh < limit {
			return force, nil
		}
	}
	return len(beaufortThresholds), nil
}
