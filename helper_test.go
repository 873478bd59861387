package skycore

import (
	"fmt"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

const eps = 1e-10

func floatEqual(a, b float64) (bool, error) {
	if !scalar.EqualWithinAbsOrRel(a, b, eps, eps) {
		return false, fmt.Errorf("difference of %3.10f", math.Abs(a-b))
	}
	return true, nil
}

func vectorsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := len(a) - 1; i >= 0; i-- {
		if ok, _ := floatEqual(a[i], b[i]); !ok {
			return false
		}
	}
	return true
}

// anglesEqual returns whether two angles in radians are equal.
func anglesEqual(a, b float64) (bool, error) {
	diff := math.Abs(math.Remainder(a-b, 2*math.Pi))
	if diff < eps {
		return true, nil
	}
	return false, fmt.Errorf("difference of %3.10fπ", diff/math.Pi)
}

func assertPanic(t *testing.T, f func()) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("The code did not panic")
		}
	}()
	f()
}
