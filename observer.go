package skycore

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/soniakeys/meeus/v3/globe"
)

// Observer is a location on the surface of a body. Angles are in degrees, the altitude in meters.
type Observer struct {
	Latitude, Longitude float64
	Altitude            float64
	Planet              string
}

// NewObserver returns an Earth observer.
func NewObserver(latitude, longitude, altitude float64) Observer {
	return Observer{Latitude: latitude, Longitude: longitude, Altitude: altitude, Planet: "Earth"}
}

// LocationID returns the default location identifier reported to the host application.
func (o Observer) LocationID() string {
	return fmt.Sprintf("%s,%.4f,%.4f,%.0f", o.Planet, o.Latitude, o.Longitude, o.Altitude)
}

func (o Observer) String() string {
	return fmt.Sprintf("%s (%f,%f); alt = %f m", o.Planet, o.Latitude, o.Longitude, o.Altitude)
}

// ellipsoid returns the reference surface of the observer's planet.
func (o Observer) ellipsoid(b *Body) globe.Ellipsoid {
	if b == nil || b.Func == FuncEarth {
		return WGS84
	}
	return globe.Ellipsoid{Er: b.Radius * AU, Fl: b.Oblateness}
}

// ECEF returns the body-fixed position of an Earth observer in km.
func (o Observer) ECEF() []float64 {
	return GeodeticToECEF(o.Latitude*deg2rad, o.Longitude*deg2rad, o.Altitude, WGS84)
}

// RangeElAz returns the range vector (in the body-fixed frame), the range, and the elevation and
// azimuth (in degrees) of a given body-fixed position in km.
func (o Observer) RangeElAz(rECEF []float64) (ρECEF []float64, ρ, el, az float64) {
	ρECEF = Sub(rECEF, o.ECEF())
	ρ = Norm(ρECEF)
	rSEZ := MxV33(R3(o.Longitude*deg2rad), ρECEF)
	rSEZ = MxV33(R2(math.Pi/2-o.Latitude*deg2rad), rSEZ)
	elR, azR := AltAz(rSEZ)
	return ρECEF, ρ, elR * r2d, azR * r2d
}

// observerHeliocentric returns the heliocentric position in AU of the observer standing on the
// provided body at the provided date.
func (s *System) observerHeliocentric(cat *catalogue, planet BodyID, o Observer, jd float64) []float64 {
	b := &cat.bodies[planet]
	center := s.helioAt(cat, planet, jd)
	surface := GeodeticToECEF(o.Latitude*deg2rad, o.Longitude*deg2rad, o.Altitude, o.ellipsoid(b))
	return Add(center, Scale(1/AU, MxV33(s.bodyRotation(b, jd), surface)))
}

// ObserverPosition returns the heliocentric position of the observer computed by the last tick.
func (s *System) ObserverPosition() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.observerPos...)
}

// AltAz returns the topocentric altitude and azimuth in radians of a body, as seen by the observer
// of the last tick. The azimuth is measured from the north through the east.
func (s *System) AltAz(id BodyID) (alt, az float64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.observerPos == nil {
		return 0, 0, errors.New("no tick computed yet")
	}
	b, err := s.body(id)
	if err != nil {
		return 0, 0, err
	}
	o := s.observer
	rel := Sub(b.HelioPos, s.observerPos)
	equ := EclipticToEquatorialOfDate(rel, s.lastJD)
	lst := normalizeAngle(GreenwichApparentSiderealTime(s.lastJD) + o.Longitude*deg2rad)
	alt, az = AltAz(EquatorialToHorizontal(equ, o.Latitude*deg2rad, lst))
	return
}
