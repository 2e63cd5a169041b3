package diffusion

import (
	"math"
)

const (
	// GasConstant is R in kJ/(mol·K).
	GasConstant = 0.008314
	// DefaultActivationEnergy is Q in kJ/mol used when none is tabulated.
	DefaultActivationEnergy = 7.5
	// ReferenceTemperatureC is the temperature of the tabulated literature values.
	ReferenceTemperatureC = 25.0

	kelvinOffset = 273.15
)

// EstimateDiffusionCoefficient converts the slope of a rate vs 1/√t fit into
// a diffusion coefficient using the semi-infinite solid relation
//
//	D = π·(slope·L)² / (4·ΔC²)
//
// with L the sample thickness in cm and ΔC the normalised concentration
// difference (1 for the usual call). The result is only meaningful for
// RateVsInverseSqrtTime fits.
//
// The formula is a simplified, normalised form. It is not unit-calibrated:
// the rate column must already be expressed in units consistent with the
// thickness and the seconds-based time axis, otherwise D is only useful for
// relative comparison between runs. The sign of the slope carries no
// physical meaning, so |D| is returned.
func EstimateDiffusionCoefficient(slope, thicknessCM, concentrationRatio float64) float64 {
	if slope == 0 {
		return 0
	}
	d := math.Pi * math.Pow(slope*thicknessCM, 2) / (4 * concentrationRatio * concentrationRatio)
	return math.Abs(d)
}

// TemperatureCorrect moves a diffusion coefficient measured at measuredC to
// targetC using the Arrhenius relation
//
//	D(T₂) = D(T₁)·exp((Q/R)·(1/T₁ − 1/T₂))
//
// Temperatures are in °C and must lie above absolute zero.
func TemperatureCorrect(dMeasured, measuredC, targetC, activationEnergy float64) float64 {
	tMeas := measuredC + kelvinOffset
	tTarget := targetC + kelvinOffset
	exponent := (activationEnergy / GasConstant) * (1/tMeas - 1/tTarget)
	return dMeasured * math.Exp(exponent)
}
