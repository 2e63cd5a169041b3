package diffusion

import (
	"fmt"
	"sort"
	"strings"

	"tdadiffusion/domain/diffusion"
)

type materialConstants struct {
	baseD25C         float64 // cm²/s
	activationEnergy float64 // kJ/mol
}

// materials holds hydrogen diffusion constants at 25 °C. Read-only.
var materials = map[string]materialConstants{
	"steel":            {baseD25C: 1.0e-7, activationEnergy: 7.5},
	"iron":             {baseD25C: 1.0e-8, activationEnergy: 8.0},
	"austenitic_steel": {baseD25C: 1.0e-7, activationEnergy: 7.5},
	"ferritic_steel":   {baseD25C: 5.0e-8, activationEnergy: 10.0},
}

type literatureRange struct {
	min, max, typical float64
	source            string
}

// literatureRanges holds room-temperature ranges used for plausibility checks. Read-only.
var literatureRanges = map[string]literatureRange{
	"steel": {min: 1e-8, max: 1e-6, typical: 1e-7, source: "Typical for austenitic stainless steel at RT"},
	"iron":  {min: 1e-9, max: 1e-7, typical: 1e-8, source: "Pure iron at room temperature"},
}

const (
	AgreementGood    = "Good agreement"
	AgreementLow     = "Lower than expected"
	AgreementHigh    = "Higher than expected"
	AgreementUnknown = "No literature data available"
)

// Materials lists the tabulated material keys in sorted order.
func Materials() []string {
	keys := make([]string, 0, len(materials))
	for k := range materials {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LiteratureReference returns the tabulated diffusion coefficient for
// material corrected to temperatureC. Unknown materials fall back to steel
// and set FellBack; an unrecognised material should reduce precision, not
// abort an analysis.
func LiteratureReference(material string, temperatureC float64) diffusion.LiteratureReference {
	key := normalizeMaterial(material)
	consts, ok := materials[key]
	if !ok {
		key = diffusion.DefaultMaterial
		consts = materials[key]
	}
	return diffusion.LiteratureReference{
		Material:         key,
		DLiterature:      TemperatureCorrect(consts.baseD25C, ReferenceTemperatureC, temperatureC, consts.activationEnergy),
		ActivationEnergy: consts.activationEnergy,
		BaseD25C:         consts.baseD25C,
		TemperatureC:     temperatureC,
		FellBack:         !ok,
	}
}

// ActivationEnergy returns Q for material, falling back to steel.
func ActivationEnergy(material string) float64 {
	if c, ok := materials[normalizeMaterial(material)]; ok {
		return c.activationEnergy
	}
	return materials[diffusion.DefaultMaterial].activationEnergy
}

// CompareWithLiterature places a room-temperature coefficient against the
// published range for material. Materials without a range are reported as
// unknown rather than compared against steel.
func CompareWithLiterature(calculated float64, material string) diffusion.LiteratureComparison {
	key := normalizeMaterial(material)
	lit, ok := literatureRanges[key]
	if !ok {
		return diffusion.LiteratureComparison{
			Material:   key,
			Calculated: calculated,
			Agreement:  AgreementUnknown,
			Source:     fmt.Sprintf("Unknown material: %s", material),
		}
	}

	agreement := AgreementGood
	switch {
	case calculated < lit.min:
		agreement = AgreementLow
	case calculated > lit.max:
		agreement = AgreementHigh
	}

	return diffusion.LiteratureComparison{
		Material:   key,
		Known:      true,
		RangeMin:   lit.min,
		RangeMax:   lit.max,
		Typical:    lit.typical,
		Calculated: calculated,
		Ratio:      calculated / lit.typical,
		Agreement:  agreement,
		Source:     lit.source,
	}
}

func normalizeMaterial(material string) string {
	return strings.ToLower(strings.TrimSpace(material))
}
