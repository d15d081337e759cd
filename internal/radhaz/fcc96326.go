package radhaz

import "math"

// Registry identifiers for the FCC 96-326 limit sets. The order's
// "controlled" environments are referred to as occupational and the
// "uncontrolled" environments as general public.
//
// Reference: https://transition.fcc.gov/Bureaus/Engineering_Technology/Orders/1996/fcc96326.pdf
const (
	FCC96326Occupational  = "fcc96326-occupational"
	FCC96326GeneralPublic = "fcc96326-general-public"
)

// freeSpaceImpedance converts between power density and field strength
// under the plane-wave approximation: E = sqrt(S*377), H = sqrt(S/377).
const freeSpaceImpedance = 377.0 // ohms

func constantLimit(eVm, hAm float64) func(float64) Limit {
	return func(float64) Limit {
		return Limit{EFieldVm: eVm, HFieldAm: hAm}
	}
}

func planeWaveLimit(powerDensity func(freqMHz float64) float64) func(float64) Limit {
	return func(freqMHz float64) Limit {
		s := powerDensity(freqMHz)
		return Limit{
			EFieldVm: math.Sqrt(s * freeSpaceImpedance),
			HFieldAm: math.Sqrt(s / freeSpaceImpedance),
		}
	}
}

// newFCC96326Occupational builds the controlled-environment limit table.
// Bands above 300 MHz derive field limits from power density S = f/300,
// plateauing at S = 10 from 3 GHz up; the plateau is continuous with the
// f-proportional band at the crossover.
func newFCC96326Occupational() *Standard {
	return &Standard{
		id:         FCC96326Occupational,
		name:       "FCC 96-326 Controlled Environments (Occupational)",
		vendorTags: []string{"FCC 96-326", "Occupational"},
		bands: []band{
			{0.003, 0.1, constantLimit(614, 163)},
			{0.1, 3, func(f float64) Limit {
				return Limit{EFieldVm: 614, HFieldAm: 16.3 / f}
			}},
			{3, 30, func(f float64) Limit {
				return Limit{EFieldVm: 1842 / f, HFieldAm: 16.3 / f}
			}},
			{30, 100, func(f float64) Limit {
				return Limit{EFieldVm: 61.4, HFieldAm: 16.3 / f}
			}},
			{100, 300, constantLimit(61.4, 0.163)},
			{300, 3000, planeWaveLimit(func(f float64) float64 { return f / 300 })},
			{3000, 300000, planeWaveLimit(func(float64) float64 { return 10 })},
		},
	}
}

// newFCC96326GeneralPublic builds the uncontrolled-environment limit table
// (FCC 96-326 Table 1B), power density expressed in the same convention as
// the occupational table: S = f/1500 above 300 MHz, plateauing at S = 1
// from 1.5 GHz up.
func newFCC96326GeneralPublic() *Standard {
	return &Standard{
		id:         FCC96326GeneralPublic,
		name:       "FCC 96-326 Uncontrolled Environments (General Public)",
		vendorTags: []string{"FCC 96-326", "General Public"},
		bands: []band{
			{0.3, 1.34, constantLimit(614, 1.63)},
			{1.34, 30, func(f float64) Limit {
				return Limit{EFieldVm: 824 / f, HFieldAm: 2.19 / f}
			}},
			{30, 300, constantLimit(27.5, 0.073)},
			{300, 1500, planeWaveLimit(func(f float64) float64 { return f / 1500 })},
			{1500, 100000, planeWaveLimit(func(float64) float64 { return 1 })},
		},
	}
}
