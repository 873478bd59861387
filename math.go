package skycore

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

const (
	deg2rad = math.Pi / 180
	r2d     = 180 / math.Pi
	twoπ    = 2 * math.Pi
)

// Norm returns the norm of a given vector which is supposed to be 3x1.
func Norm(v []float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Unit returns the unit vector of a given vector.
func Unit(a []float64) (b []float64) {
	n := Norm(a)
	if scalar.EqualWithinAbs(n, 0, 1e-12) {
		return []float64{0, 0, 0}
	}
	b = make([]float64, len(a))
	for i, val := range a {
		b[i] = val / n
	}
	return
}

// sign returns the sign of a given number.
func sign(v float64) float64 {
	if scalar.EqualWithinAbs(v, 0, 1e-12) {
		return 1
	}
	return v / math.Abs(v)
}

// Dot performs the inner product via gonum/BLAS.
func Dot(a, b []float64) float64 {
	return mat.Dot(mat.NewVecDense(len(a), a), mat.NewVecDense(len(b), b))
}

// Cross performs the cross product.
func Cross(a, b []float64) []float64 {
	return []float64{a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0]}
}

// Sub returns a-b.
func Sub(a, b []float64) []float64 {
	return []float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// Add returns a+b.
func Add(a, b []float64) []float64 {
	return []float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// Scale returns s*a.
func Scale(s float64, a []float64) []float64 {
	return []float64{s * a[0], s * a[1], s * a[2]}
}

// Angle returns the angle between two vectors in radians, or zero if either is null.
func Angle(a, b []float64) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	c := Dot(a, b) / (na * nb)
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// Spherical2Cartesian returns the (r, longitude, latitude) vector in Cartesian.
func Spherical2Cartesian(a []float64) (b []float64) {
	b = make([]float64, 3)
	sλ, cλ := math.Sincos(a[1])
	sβ, cβ := math.Sincos(a[2])
	b[0] = a[0] * cβ * cλ
	b[1] = a[0] * cβ * sλ
	b[2] = a[0] * sβ
	return
}

// Rad2deg converts radians to degrees, and enforced only positive numbers.
func Rad2deg(a float64) float64 {
	if a < 0 {
		a += 2 * math.Pi
	}
	return math.Mod(a/deg2rad, 360)
}

// normalizeAngle wraps any angle into [0, 2π).
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, twoπ)
	if a < 0 {
		a += twoπ
	}
	return a
}
