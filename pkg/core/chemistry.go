package core

import "math"

// Proton mass for charge calculations
const ProtonMass = 1.00727646688

// NeutralMass converts an observed m/z at the given charge into a neutral
// monoisotopic mass. Unknown charge (0) is treated as singly charged; the
// sign of the charge selects positive or negative mode.
func NeutralMass(mz float64, charge int) float64 {
	z := charge
	if z == 0 {
		z = 1
	}
	abs := z
	if abs < 0 {
		abs = -abs
	}
	if z > 0 {
		return mz*float64(abs) - float64(abs)*ProtonMass
	}
	return mz*float64(abs) + float64(abs)*ProtonMass
}

// MZFromMass computes the m/z of a neutral mass at the given charge.
func MZFromMass(mass float64, charge int) float64 {
	z := charge
	if z == 0 {
		z = 1
	}
	abs := z
	if abs < 0 {
		abs = -abs
	}
	if z > 0 {
		return (mass + float64(abs)*ProtonMass) / float64(abs)
	}
	return (mass - float64(abs)*ProtonMass) / float64(abs)
}

// RoundFloat rounds a float to n decimal places
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
