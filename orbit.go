package skycore

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	// parabolicε is the eccentricity band around 1 where comets use Barker's equation.
	parabolicε = 1e-4
	// DefaultValidWindow is the comet validity window in days when none is declared.
	DefaultValidWindow = 1000.0
)

var (
	// J2000Pole is the north pole of the J2000 equator in the VSOP87 frame.
	J2000Pole = []float64{0, math.Sin(J2000Obliquity), math.Cos(J2000Obliquity)}
)

// Orbit is the contract between an orbit model and the body tree.
type Orbit interface {
	// PositionAtDate returns the position in AU relative to the parent, in the VSOP87 frame.
	PositionAtDate(jd float64) []float64
}

// ParentFrame rotates a position from the equatorial frame of the parent into the VSOP87 frame.
// The zero value is the identity and is used for bodies orbiting the Sun.
type ParentFrame struct {
	Obliquity, AscendingNode, J2000Longitude float64 // radians
}

// NewParentFrame returns the frame of a parent whose equator has the provided obliquity and
// ascending node (radians, VSOP87 frame). The J2000 longitude aligns the reference direction with
// the ascending node of the parent equator on the J2000 Earth equator.
func NewParentFrame(obliquity, ascendingNode float64) ParentFrame {
	f := ParentFrame{Obliquity: obliquity, AscendingNode: ascendingNode}
	m := R3R1R3(ascendingNode, obliquity, 0)
	pole := MxV33(m, []float64{0, 0, 1})
	axis0 := MxV33(m, []float64{1, 0, 0})
	axis1 := MxV33(m, []float64{0, 1, 0})
	N := Cross(J2000Pole, pole)
	if Norm(N) > 1e-12 {
		f.J2000Longitude = math.Atan2(Dot(N, axis1), Dot(N, axis0))
	}
	return f
}

// PoleToObliquityNode converts the J2000 equatorial right ascension and declination (radians) of a
// body's north pole into the obliquity and ascending node of its equator in the VSOP87 frame.
func PoleToObliquityNode(ra, dec float64) (obliquity, node float64) {
	sα, cα := math.Sincos(ra)
	sδ, cδ := math.Sincos(dec)
	p := EquatorialJ2000ToEcliptic([]float64{cδ * cα, cδ * sα, sδ})
	obliquity = math.Acos(math.Max(-1, math.Min(1, p[2])))
	node = normalizeAngle(math.Atan2(p[0], -p[1]))
	return
}

// IsZero returns whether this frame is the identity.
func (f ParentFrame) IsZero() bool {
	return f.Obliquity == 0 && f.AscendingNode == 0 && f.J2000Longitude == 0
}

// Matrix returns R3(-Ω)·R1(-ε)·R3(-j).
func (f ParentFrame) Matrix() *mat.Dense {
	return R3R1R3(f.AscendingNode, f.Obliquity, f.J2000Longitude)
}

// Rotate expresses v in the VSOP87 frame.
func (f ParentFrame) Rotate(v []float64) []float64 {
	if f.IsZero() {
		return v
	}
	return MxV33(f.Matrix(), v)
}

// EllipticalOrbit is a Keplerian orbit defined by its pericenter distance. All angles are in radians.
// Orbits with an eccentricity of one or more are evaluated as open conics.
type EllipticalOrbit struct {
	PericenterDistance float64 // AU
	Eccentricity       float64
	Inclination        float64
	AscendingNode      float64
	ArgOfPericenter    float64
	MeanAnomalyAtEpoch float64
	Period             float64 // days
	Epoch              float64 // JD
	Parent             ParentFrame
}

// NewEllipticalOrbit returns a new elliptical orbit, or an error if the elements are not physical.
func NewEllipticalOrbit(q, e, i, Ω, ω, M0, period, epoch float64, parent ParentFrame) (*EllipticalOrbit, error) {
	if q <= 0 || math.IsNaN(q) {
		return nil, errors.Errorf("pericenter distance must be positive, got %f", q)
	}
	if e < 0 || math.IsNaN(e) {
		return nil, errors.Errorf("eccentricity must be non-negative, got %f", e)
	}
	if period <= 0 || math.IsNaN(period) || math.IsInf(period, 0) {
		return nil, errors.Errorf("period must be positive, got %f", period)
	}
	return &EllipticalOrbit{q, e, i, Ω, ω, M0, period, epoch, parent}, nil
}

// Closed returns whether the orbit is bound (e < 1).
func (o EllipticalOrbit) Closed() bool {
	return o.Eccentricity < 1
}

// SemiMajorAxis returns the semi-major axis in AU, or NaN for orbits which are not closed.
func (o EllipticalOrbit) SemiMajorAxis() float64 {
	if !o.Closed() {
		return math.NaN()
	}
	return o.PericenterDistance / (1 - o.Eccentricity)
}

// MeanMotion returns the mean motion in radians per day.
func (o EllipticalOrbit) MeanMotion() float64 {
	return twoπ / o.Period
}

// PositionAtDate implements the Orbit interface.
func (o EllipticalOrbit) PositionAtDate(jd float64) []float64 {
	M := o.MeanAnomalyAtEpoch + o.MeanMotion()*(jd-o.Epoch)
	pqw := conicPosition(o.PericenterDistance, o.Eccentricity, M)
	return o.Parent.Rotate(Rot313Vec(o.AscendingNode, o.Inclination, o.ArgOfPericenter, pqw))
}

func (o EllipticalOrbit) String() string {
	return fmt.Sprintf("q=%.6f AU e=%.6f i=%.3f Ω=%.3f ω=%.3f M0=%.3f P=%.3f d", o.PericenterDistance, o.Eccentricity, Rad2deg(o.Inclination), Rad2deg(o.AscendingNode), Rad2deg(o.ArgOfPericenter), Rad2deg(o.MeanAnomalyAtEpoch), o.Period)
}

// CometOrbit is an orbit parameterized by its time of pericenter passage, suited to near-parabolic
// and parabolic comets. All angles are in radians.
type CometOrbit struct {
	PericenterDistance float64 // AU
	Eccentricity       float64
	Inclination        float64
	AscendingNode      float64
	ArgOfPericenter    float64
	TimeAtPericenter   float64 // JD
	MeanMotion         float64 // radians per day
	ValidWindow        float64 // days around Epoch
	Epoch              float64 // JD
	Parent             ParentFrame
}

// Closed returns whether the orbit is bound.
func (o CometOrbit) Closed() bool {
	return o.Eccentricity < 1
}

// WithinValidWindow returns whether the elements can be trusted at the provided date. Positions are
// computed regardless.
func (o CometOrbit) WithinValidWindow(jd float64) bool {
	return math.Abs(jd-o.Epoch) <= o.ValidWindow
}

// PositionAtDate implements the Orbit interface.
func (o CometOrbit) PositionAtDate(jd float64) []float64 {
	e := o.Eccentricity
	if math.Abs(e-1) < parabolicε {
		e = 1
	}
	M := o.MeanMotion * (jd - o.TimeAtPericenter)
	pqw := conicPosition(o.PericenterDistance, e, M)
	return o.Parent.Rotate(Rot313Vec(o.AscendingNode, o.Inclination, o.ArgOfPericenter, pqw))
}

func (o CometOrbit) String() string {
	return fmt.Sprintf("q=%.6f AU e=%.6f i=%.3f Ω=%.3f ω=%.3f T=%.4f n=%.6f°/d", o.PericenterDistance, o.Eccentricity, Rad2deg(o.Inclination), Rad2deg(o.AscendingNode), Rad2deg(o.ArgOfPericenter), o.TimeAtPericenter, o.MeanMotion*r2d)
}
