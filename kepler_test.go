package skycore

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestSolveKepler(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		e := rng.Float64() * 0.99
		M := (rng.Float64() - 0.5) * 20
		E, iters := SolveKepler(e, M)
		if iters == 0 || iters > keplerMaxIters {
			t.Fatalf("e=%f M=%f: invalid iteration count %d", e, M, iters)
		}
		if res := math.Remainder(E-e*math.Sin(E)-M, twoπ); math.Abs(res) > 1e-12 {
			t.Fatalf("e=%f M=%f: residual %e", e, M, res)
		}
	}
	if E, _ := SolveKepler(0, 1.2); !scalar.EqualWithinAbs(E, 1.2, 1e-15) {
		t.Fatal("circular orbits should have E = M")
	}
	if E, _ := SolveKepler(0.5, 0); E != 0 {
		t.Fatalf("E should be zero at pericenter, got %f", E)
	}
}

func TestSolveHyperbolic(t *testing.T) {
	for _, e := range []float64{1.001, 1.2, 3, 10} {
		for _, M := range []float64{-50, -1, 0, 0.3, 5, 200} {
			H := SolveHyperbolic(e, M)
			if res := e*math.Sinh(H) - H - M; math.Abs(res) > 1e-9*math.Max(1, math.Abs(M)) {
				t.Fatalf("e=%f M=%f: residual %e", e, M, res)
			}
		}
	}
}

func TestSolveParabolic(t *testing.T) {
	for _, W := range []float64{-100, -2, -0.01, 0, 0.5, 3, 1e4} {
		ν, s := SolveParabolic(W)
		if res := s + s*s*s/3 - W; math.Abs(res) > 1e-9*math.Max(1, math.Abs(W)) {
			t.Fatalf("W=%f: residual %e", W, res)
		}
		if !scalar.EqualWithinAbs(math.Tan(ν/2), s, 1e-9*math.Max(1, math.Abs(s))) {
			t.Fatalf("W=%f: ν and s disagree", W)
		}
	}
}

func TestMeanMotion(t *testing.T) {
	if period := twoπ / MeanMotion(1, 0); !scalar.EqualWithinAbs(period, 365.2569, 1e-3) {
		t.Fatalf("a 1 AU orbit should have a sidereal year, got %f days", period)
	}
	// Earth-like orbit defined by its perihelion
	if period := twoπ / MeanMotion(0.98329, 0.016710); !scalar.EqualWithinAbs(period, 365.2569, 1e-3) {
		t.Fatalf("incorrect period %f days", period)
	}
	if n := MeanMotion(2, 1); !scalar.EqualWithinAbs(n, GaussK*0.75*0.5, 1e-15) {
		t.Fatalf("incorrect parabolic mean motion %f", n)
	}
}

func TestConicContinuity(t *testing.T) {
	q := 0.3
	for _, dt := range []float64{-25, 10} {
		parabola := conicPosition(q, 1, MeanMotion(q, 1)*dt)
		if !scalar.EqualWithinAbs(Norm(parabola), q*(1+math.Pow(math.Tan(math.Atan2(parabola[1], parabola[0])/2), 2)), 1e-12) {
			t.Fatal("parabolic radius inconsistent with the true anomaly")
		}
		for _, e := range []float64{0.9999, 1.0001} {
			p := conicPosition(q, e, MeanMotion(q, e)*dt)
			if d := Norm(Sub(p, parabola)); d > 1e-4 {
				t.Fatalf("e=%f dt=%f: %e AU away from the parabola", e, dt, d)
			}
		}
	}
	if !vectorsEqual(conicPosition(q, 0.5, 0), []float64{q, 0, 0}) || !vectorsEqual(conicPosition(q, 1, 0), []float64{q, 0, 0}) || !vectorsEqual(conicPosition(q, 2, 0), []float64{q, 0, 0}) {
		t.Fatal("all conics should be at the pericenter at M=0")
	}
}
