package skycore

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// EarthRotationRate is the average Earth rotation rate in radians per second.
	EarthRotationRate = 7.2921158553e-5
)

// Rot313Vec converts a given vector from the orbital plane (PQW) to the reference frame
// of the orbit, i.e. R3(-Ω)·R1(-i)·R3(-ω)·v.
func Rot313Vec(Ω, i, ω float64, v []float64) []float64 {
	return MxV33(R3R1R3(Ω, i, ω), v)
}

// R3R1R3 performs a 3-1-3 Euler rotation from the orbital plane to the reference frame.
func R3R1R3(Ω, i, ω float64) *mat.Dense {
	var tmp, rslt mat.Dense
	tmp.Mul(R1(-i), R3(-ω))
	rslt.Mul(R3(-Ω), &tmp)
	return &rslt
}

// R1 rotation about the 1st axis.
func R1(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R2 rotation about the 2nd axis.
func R2(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, 0, -s, 0, 1, 0, s, 0, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// MxV33 multiplies a matrix with a vector. Note that there is no dimension check!
func MxV33(m mat.Matrix, v []float64) (o []float64) {
	vVec := mat.NewVecDense(len(v), v)
	var rVec mat.VecDense
	rVec.MulVec(m, vVec)
	return []float64{rVec.AtVec(0), rVec.AtVec(1), rVec.AtVec(2)}
}

// Transform is a 4x4 homogeneous transform from a body frame to the heliocentric frame.
type Transform struct {
	m *mat.Dense
}

// IdentityTransform returns the identity transform.
func IdentityTransform() Transform {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return Transform{m}
}

// Translation4 returns a pure translation by v.
func Translation4(v []float64) Transform {
	t := IdentityTransform()
	for i := 0; i < 3; i++ {
		t.m.Set(i, 3, v[i])
	}
	return t
}

// Rotation4 embeds a 3x3 rotation into a homogeneous transform.
func Rotation4(r mat.Matrix) Transform {
	t := IdentityTransform()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t.m.Set(i, j, r.At(i, j))
		}
	}
	return t
}

// Mul returns t·o.
func (t Transform) Mul(o Transform) Transform {
	var rslt mat.Dense
	rslt.Mul(t.matrix(), o.matrix())
	return Transform{&rslt}
}

// Apply transforms a point.
func (t Transform) Apply(v []float64) []float64 {
	m := t.matrix()
	var rVec mat.VecDense
	rVec.MulVec(m, mat.NewVecDense(4, []float64{v[0], v[1], v[2], 1}))
	return []float64{rVec.AtVec(0), rVec.AtVec(1), rVec.AtVec(2)}
}

// Rotate applies only the rotation part of the transform.
func (t Transform) Rotate(v []float64) []float64 {
	return MxV33(t.matrix().Slice(0, 3, 0, 3), v)
}

// Origin returns the translation part of the transform.
func (t Transform) Origin() []float64 {
	m := t.matrix()
	return []float64{m.At(0, 3), m.At(1, 3), m.At(2, 3)}
}

// At returns the matrix element (i, j).
func (t Transform) At(i, j int) float64 {
	return t.matrix().At(i, j)
}

func (t Transform) matrix() *mat.Dense {
	if t.m == nil {
		return IdentityTransform().m
	}
	return t.m
}
