package analysis

import (
	"fmt"
	"math"
)

// Calibration points of the period table. The values are empirical and
// must not be rounded or merged.
const (
	ICMonoalphabetic = 0.066
	ICTooLarge       = 0.041
)

// periodRange is one row of the IC -> period table. A row matches values in
// [lower, upper); a point row matches lower exactly.
type periodRange struct {
	lower, upper             float64
	lowerPeriod, upperPeriod int
	point                    bool
}

var periodTable = []periodRange{
	{lower: ICMonoalphabetic, upper: ICMonoalphabetic, lowerPeriod: 1, upperPeriod: 1, point: true},
	{lower: 0.052, upper: 0.066, lowerPeriod: 2, upperPeriod: 1},
	{lower: 0.047, upper: 0.052, lowerPeriod: 3, upperPeriod: 2},
	{lower: 0.045, upper: 0.047, lowerPeriod: 4, upperPeriod: 3},
	{lower: 0.044, upper: 0.044, lowerPeriod: 5, upperPeriod: 5, point: true},
	{lower: 0.0425, upper: 0.044, lowerPeriod: 6, upperPeriod: 5},
	{lower: ICTooLarge, upper: 0.0425, lowerPeriod: 10, upperPeriod: 6},
}

func (r periodRange) matches(ic float64) bool {
	if r.point {
		return ic == r.lower
	}
	return ic >= r.lower && ic < r.upper
}

// resolve picks the period of the nearer boundary. The upper boundary wins
// only when strictly nearer.
func (r periodRange) resolve(ic float64) int {
	if math.Abs(r.upper-ic) < math.Abs(r.lower-ic) {
		return r.upperPeriod
	}
	return r.lowerPeriod
}

// EstimatePeriod maps an index of coincidence to a probable Vigenère key
// period. Values below 0.041 fail with ErrKeyPeriodTooLarge; values the
// table does not cover fail with ErrUnhandledIC.
func EstimatePeriod(ic float64) (int, error) {
	if math.IsNaN(ic) || math.IsInf(ic, 0) {
		return 0, fmt.Errorf("%w: %v", ErrUnhandledIC, ic)
	}

	for _, r := range periodTable {
		if r.matches(ic) {
			return r.resolve(ic), nil
		}
	}

	if ic < ICTooLarge {
		return 0, fmt.Errorf("%w: index of coincidence %.5f", ErrKeyPeriodTooLarge, ic)
	}
	return 0, fmt.Errorf("%w: %.5f", ErrUnhandledIC, ic)
}
