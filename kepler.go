package skycore

import (
	"math"

	"github.com/soniakeys/meeus/v3/kepler"
	"github.com/soniakeys/unit"
)

const (
	keplerε        = 1e-14
	keplerMaxIters = 50
	// GaussK is the Gaussian gravitational constant (AU^1.5/day).
	GaussK = 0.01720209895
)

// SolveKepler solves M = E - e*sin(E) for the eccentric anomaly E for 0 <= e < 1.
// It returns the number of Newton iterations used, or -1 when the Meeus fallback was needed.
func SolveKepler(e, M float64) (E float64, iters int) {
	M = math.Remainder(M, twoπ)
	E = M
	if e > 0.8 {
		E = math.Pi * sign(M)
	}
	for iters = 1; iters <= keplerMaxIters; iters++ {
		sE, cE := math.Sincos(E)
		δ := (E - e*sE - M) / (1 - e*cE)
		E -= δ
		if math.Abs(δ) < keplerε {
			return E, iters
		}
	}
	return kepler.Kepler3(e, unit.Angle(M)).Rad(), -1
}

// SolveHyperbolic solves M = e*sinh(H) - H for the hyperbolic anomaly H with e > 1.
func SolveHyperbolic(e, M float64) (H float64) {
	H = math.Asinh(M / e)
	for i := 0; i < keplerMaxIters; i++ {
		δ := (e*math.Sinh(H) - H - M) / (e*math.Cosh(H) - 1)
		H -= δ
		if math.Abs(δ) < keplerε*math.Max(1, math.Abs(H)) {
			break
		}
	}
	return
}

// SolveParabolic solves Barker's equation s + s³/3 = W for s = tan(ν/2), where
// W = k·(t-T)/sqrt(2q³). It returns the true anomaly and s.
func SolveParabolic(W float64) (ν, s float64) {
	w := 1.5 * W
	y := math.Sqrt(w*w + 1)
	s = math.Cbrt(w+y) + math.Cbrt(w-y)
	ν = 2 * math.Atan(s)
	return
}

// MeanMotion returns the Gaussian mean motion in radians per day of a heliocentric orbit with the
// provided pericenter distance (AU) and eccentricity.
func MeanMotion(q, e float64) float64 {
	if e == 1 {
		return GaussK * (1.5 / q) * math.Sqrt(0.5/q)
	}
	a := q / (1 - e)
	return GaussK / math.Pow(math.Abs(a), 1.5)
}

// conicPosition returns the position in the orbital plane for the pericenter distance q,
// eccentricity e and mean anomaly M (elapsed mean motion times time since pericenter).
func conicPosition(q, e, M float64) []float64 {
	switch {
	case e < 1:
		a := q / (1 - e)
		E, _ := SolveKepler(e, M)
		sE, cE := math.Sincos(E)
		return []float64{a * (cE - e), a * math.Sqrt(1-e*e) * sE, 0}
	case e > 1:
		a := q / (e - 1)
		H := SolveHyperbolic(e, M)
		return []float64{a * (e - math.Cosh(H)), a * math.Sqrt(e*e-1) * math.Sinh(H), 0}
	default:
		// The parabolic mean motion is 1.5·k/sqrt(2q³), so W = M/1.5.
		ν, s := SolveParabolic(M / 1.5)
		r := q * (1 + s*s)
		sν, cν := math.Sincos(ν)
		return []float64{r * cν, r * sν, 0}
	}
}
