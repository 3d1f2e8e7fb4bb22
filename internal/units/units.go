package units

import "math"

// KgInLb is the number of pounds in one kilogram.
const KgInLb = 2.2046226218

// DefaultPrecision is the number of decimal digits loads are rounded to.
const DefaultPrecision = 1

// Convert converts a load between kilograms and pounds and rounds the result
// to precision decimal digits. With toImperial the value is taken as kg and
// returned in lb; otherwise it is taken as lb and returned in kg.
func Convert(value float64, toImperial bool, precision int) float64 {
	if toImperial {
		return Round(value*KgInLb, precision)
	}
	return Round(value/KgInLb, precision)
}

// LbToKg converts pounds to kilograms with the default precision.
func LbToKg(v float64) float64 {
	return Convert(v, false, DefaultPrecision)
}

// KgToLb converts kilograms to pounds with the default precision.
func KgToLb(v float64) float64 {
	return Convert(v, true, DefaultPrecision)
}

// Round rounds v half away from zero to the given number of decimal digits.
func Round(v float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}
