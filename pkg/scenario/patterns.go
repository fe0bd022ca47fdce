package scenario

import "math/rand"

// Fuel burn and anomaly rates in gauge units per second.
const (
	asymLeftRate  = 0.05
	asymRightRate = 0.15
)

// AsymmetricFuel returns both tank quantities while the asymmetric precursor
// is active. The left tank drains at the normal rate and the right tank at
// three times that, so the needles split over the window. Tanks never go
// below zero.
func AsymmetricFuel(baseLeft, baseRight, elapsed float64) (left, right float64) {
	left = baseLeft - asymLeftRate*elapsed
	right = baseRight - asymRightRate*elapsed
	if left < 0 {
		left = 0
	}
	if right < 0 {
		right = 0
	}
	return left, right
}

// PrecursorValue computes a single-gauge anomaly value for the given pattern
// at elapsed seconds since precursor start. The rand source belongs to the
// simulation loop so runs are reproducible under a fixed seed.
func PrecursorValue(pattern Pattern, baseline, elapsed float64, rng *rand.Rand) float64 {
	switch pattern {
	case PatternFluctuateDown:
		v := baseline - (elapsed/15)*20 + uniform(rng, -5, 5)
		if v < 30 {
			v = 30
		}
		return v
	case PatternGradualDrop:
		dropRate := 100.0 / 15.0
		v := baseline - (elapsed*dropRate)/15 + uniform(rng, -1, 1)
		if floor := baseline - 100; v < floor {
			v = floor
		}
		return v
	case PatternDischarge:
		v := -5 - (elapsed/15)*10 + uniform(rng, -1, 1)
		if v < -20 {
			v = -20
		}
		return v
	default:
		return baseline
	}
}

// alertHold is the value a gauge pins to once its event's alert has fired.
// Asymmetric fuel keeps draining instead of pinning; see AsymmetricFuel.
var alertHold = map[string]float64{
	"oil_p":   10,
	"rpm":     2100,
	"vacuum":  3.0,
	"ammeter": -12,
}

// AlertValue returns the pinned gauge value for the alert phase of an event,
// and whether the gauge pins at all.
func AlertValue(gauge string) (float64, bool) {
	v, ok := alertHold[gauge]
	return v, ok
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
