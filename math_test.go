package skycore

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestCross(t *testing.T) {
	i := []float64{1, 0, 0}
	j := []float64{0, 1, 0}
	k := []float64{0, 0, 1}
	if !vectorsEqual(Cross(i, j), k) {
		t.Fatal("i x j != k")
	}
	if !vectorsEqual(Cross(j, k), i) {
		t.Fatal("j x k != i")
	}
	if !vectorsEqual(Cross([]float64{2, 3, 4}, []float64{5, 6, 7}), []float64{-3, 6, -3}) {
		t.Fatal("cross fail")
	}
	// From Vallado
	if !vectorsEqual(Cross([]float64{6524.834, 6862.875, 6448.296}, []float64{4.901327, 5.533756, -1.976341}), []float64{-4.924667792015100e4, 4.450050424118601e4, 0.246964476137900e4}) {
		t.Fatal("cross fail")
	}
}

func TestAngles(t *testing.T) {
	for i := 0.0; i < 360; i += 0.5 {
		if !scalar.EqualWithinAbs(Rad2deg(i*deg2rad), i, 1e-10) {
			t.Fatalf("incorrect conversion for %3.2f", i)
		}
	}
	if !scalar.EqualWithinAbs(Rad2deg(-359*deg2rad), 1, 1e-10) {
		t.Fatal("incorrect conversion for -359")
	}
	for _, a := range []float64{-7 * math.Pi, -math.Pi / 2, 0, 3 * math.Pi, 100} {
		n := normalizeAngle(a)
		if n < 0 || n >= 2*math.Pi {
			t.Fatalf("normalizeAngle(%f) = %f", a, n)
		}
		if ok, err := anglesEqual(a, n); !ok {
			t.Fatalf("normalizeAngle(%f) changed the angle: %s", a, err)
		}
	}
}

func TestSpherical2Cartesian(t *testing.T) {
	incr := math.Pi / 10
	for r := 100.0; r < 1000; r += 100 {
		for λ := incr; λ < 2*math.Pi; λ += incr {
			for β := -math.Pi/2 + incr; β < math.Pi/2-incr/2; β += incr {
				b := Spherical2Cartesian([]float64{r, λ, β})
				if !scalar.EqualWithinAbs(Norm(b), r, 1e-9) {
					t.Fatalf("r incorrect (%f != %f)", Norm(b), r)
				}
				if ok, err := anglesEqual(math.Atan2(b[1], b[0]), λ); !ok {
					t.Fatalf("λ incorrect %s", err)
				}
				if ok, err := anglesEqual(math.Asin(b[2]/r), β); !ok {
					t.Fatalf("β incorrect %s", err)
				}
			}
		}
	}
	if !vectorsEqual(Spherical2Cartesian([]float64{0, 1, 1}), []float64{0, 0, 0}) {
		t.Fatal("zero norm should return zero vector")
	}
}

func TestMisc(t *testing.T) {
	if vectorsEqual([]float64{1, 0}, []float64{1, 0, 0}) {
		t.Fatal("vectors of different sizes should not be equal")
	}
	if sign(10) != 1 || sign(-10) != -1 || sign(0) != 1 {
		t.Fatal("incorrect sign")
	}
	nilVec := []float64{0, 0, 0}
	if Norm(nilVec) != 0 {
		t.Fatal("norm of a nil vector was not nil")
	}
	five0 := []float64{5, 6, 7}
	five1 := []float64{7, 6, 5}
	if Norm(five0) != math.Sqrt(110) || Norm(five0) != Norm(five1) {
		t.Fatal("norm of the [5, 6, 7] and permutations is invalid")
	}
	if !vectorsEqual(Unit(nilVec), nilVec) {
		t.Fatal("unit of a nil vector should be nil")
	}
	if !scalar.EqualWithinAbs(Norm(Unit(five0)), 1, 1e-15) {
		t.Fatal("unit vector is not unit")
	}
	if Dot(five0, five1) != 5*7+6*6+7*5 {
		t.Fatal("incorrect dot product")
	}
	if !vectorsEqual(Sub(Add(five0, five1), five1), five0) || !vectorsEqual(Scale(2, five0), Add(five0, five0)) {
		t.Fatal("incorrect vector arithmetic")
	}
	if !scalar.EqualWithinAbs(Angle([]float64{1, 0, 0}, []float64{0, 3, 0}), math.Pi/2, 1e-15) {
		t.Fatal("incorrect angle")
	}
	if Angle([]float64{1, 0, 0}, []float64{-2, 0, 0}) != math.Pi || Angle(nilVec, five0) != 0 {
		t.Fatal("incorrect angle for colinear or null vectors")
	}
}
