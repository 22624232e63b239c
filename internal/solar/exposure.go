package solar

import "math"

// Facades are the compass orientations a blind can be tagged with.
// The abbreviations follow the controller's installation sheets
// (SV/V/NV are south-west/west/north-west).
var Facades = []string{"N", "NE", "E", "SE", "S", "SV", "V", "NV"}

var facadeAngles = map[string]float64{
	"N":  0,
	"NE": 45,
	"E":  90,
	"SE": 135,
	"S":  180,
	"SV": 225,
	"V":  270,
	"NV": 315,
}

func FacadeAngle(facade string) (float64, bool) {
	a, ok := facadeAngles[facade]
	return a, ok
}

// Exposure estimates how much direct sun a facade receives, in percent.
// Full exposure when the sun is perpendicular to the facade, none when
// parallel or behind it, scaled down for low sun elevation with the
// maximum effect reached at 45 degrees.
func Exposure(facadeAngle, azimuth, elevation float64) int {
	if elevation <= 0 {
		return 0
	}

	angleDiff := math.Abs(azimuth - facadeAngle)
	if angleDiff > 180 {
		angleDiff = 360 - angleDiff
	}
	if angleDiff >= 90 {
		return 0
	}

	base := 100 - angleDiff/90*100
	elevationFactor := math.Min(1, elevation/45)

	return int(math.Round(base * elevationFactor))
}

// SavingsIncrement estimates cooling energy saved over one reporting
// interval by a single blind, in kWh. A fully closed blind on a fully
// exposed facade saves about 0.1 kWh per 15 minutes; everything scales
// linearly from there.
func SavingsIncrement(position, exposure int, interval float64) float64 {
	closureFactor := float64(100-position) / 100
	exposureFactor := float64(exposure) / 100

	return 0.1 * closureFactor * exposureFactor * interval / (15 * 60)
}
