package satellite

import (
	"math"

	gosat "github.com/joshuaferrara/go-satellite"
	"github.com/pkg/errors"
	"github.com/soniakeys/meeus/v3/julian"
)

// Gravity selects the geopotential constants of the SGP4 kernel.
type Gravity uint8

const (
	// WGS72 is the standard set used to generate the published element sets.
	WGS72 Gravity = iota
	// WGS84 is the more recent set, occasionally preferred for comparisons with other tools.
	WGS84
)

// ParseGravity returns the gravity set named "wgs72" or "wgs84".
func ParseGravity(name string) (Gravity, error) {
	switch name {
	case "wgs72", "":
		return WGS72, nil
	case "wgs84":
		return WGS84, nil
	}
	return WGS72, errors.Errorf("unknown gravity model %q", name)
}

func (g Gravity) String() string {
	if g == WGS84 {
		return "wgs84"
	}
	return "wgs72"
}

// Kernel is an SGP4 implementation. Propagate returns the position (km) and velocity (km/s) in the
// TEME frame at the provided Julian day.
type Kernel interface {
	Propagate(jd float64) (pos, vel []float64, err error)
}

// KernelFactory builds a kernel from the two lines of an element set.
type KernelFactory func(line1, line2 string, g Gravity) (Kernel, error)

// valladoKernel wraps the go-satellite port of the Vallado SGP4 code.
type valladoKernel struct {
	sat gosat.Satellite
}

// NewValladoKernel parses the element set with go-satellite.
func NewValladoKernel(line1, line2 string, g Gravity) (k Kernel, err error) {
	if err = ValidateTLE(line1, line2); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			k, err = nil, errors.Wrapf(ErrInvalidTLE, "%v", r)
		}
	}()
	grav := gosat.GravityWGS72
	if g == WGS84 {
		grav = gosat.GravityWGS84
	}
	return &valladoKernel{sat: gosat.TLEToSat(line1, line2, grav)}, nil
}

func (k *valladoKernel) Propagate(jd float64) ([]float64, []float64, error) {
	t := julian.JDToTime(jd).UTC()
	frac := float64(t.Nanosecond()) / 1e9
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	p, v := gosat.Propagate(k.sat, year, int(month), day, hour, min, sec)
	pos := []float64{p.X + v.X*frac, p.Y + v.Y*frac, p.Z + v.Z*frac}
	vel := []float64{v.X, v.Y, v.Z}
	for _, c := range pos {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, nil, errors.Wrapf(ErrNoPropagation, "non finite position at JD %f", jd)
		}
	}
	// The kernel reports decayed or invalid orbits with a null state.
	if pos[0] == 0 && pos[1] == 0 && pos[2] == 0 {
		return nil, nil, errors.Wrapf(ErrNoPropagation, "null state at JD %f", jd)
	}
	return pos, vel, nil
}
