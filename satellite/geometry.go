package satellite

import (
	"math"

	"github.com/chengxinlun/skycore"
	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/globe"
	"github.com/soniakeys/meeus/v3/solar"
)

// WGS72 Earth used for the observer, consistent with the element sets.
var wgs72Earth = globe.Ellipsoid{Er: 6378.135, Fl: 1 / 298.26}

// ObserverECI returns the position (km) and velocity (km/s) of an Earth observer in the inertial
// frame at the provided Julian day.
func ObserverECI(o skycore.Observer, jd float64) (pos, vel []float64) {
	θ := skycore.LocalSiderealTime(jd, o.Longitude*d2r)
	ρsφ, ρcφ := skycore.GeocentricObserver(o.Latitude*d2r, o.Altitude, wgs72Earth)
	sθ, cθ := math.Sincos(θ)
	pos = []float64{wgs72Earth.Er * ρcφ * cθ, wgs72Earth.Er * ρcφ * sθ, wgs72Earth.Er * ρsφ}
	vel = []float64{-skycore.EarthRotationRate * pos[1], skycore.EarthRotationRate * pos[0], 0}
	return
}

// toSEZ rotates an inertial vector into the horizon frame of the observer.
func toSEZ(v []float64, o skycore.Observer, jd float64) []float64 {
	return skycore.EquatorialToHorizontal(v, o.Latitude*d2r, skycore.LocalSiderealTime(jd, o.Longitude*d2r))
}

// Topocentric returns the slant range vector in km in the SEZ frame (south, east, zenith) of the
// observer, at the cached epoch.
func (s *Satellite) Topocentric(o skycore.Observer) ([]float64, error) {
	jd, pos, _, err := s.state()
	if err != nil {
		return nil, err
	}
	obs, _ := ObserverECI(o, jd)
	return toSEZ(skycore.Sub(pos, obs), o, jd), nil
}

// AltAz returns the altitude and azimuth (from north through east) in degrees.
func (s *Satellite) AltAz(o skycore.Observer) (alt, az float64, err error) {
	sez, err := s.Topocentric(o)
	if err != nil {
		return 0, 0, err
	}
	alt, az = skycore.AltAz(sez)
	return alt * r2d, az * r2d, nil
}

// SlantRange returns the distance (km) between the observer and the satellite and its rate of
// change (km/s), positive when receding.
func (s *Satellite) SlantRange(o skycore.Observer) (ρ, ρdot float64, err error) {
	jd, pos, vel, err := s.state()
	if err != nil {
		return 0, 0, err
	}
	obsPos, obsVel := ObserverECI(o, jd)
	r := skycore.Sub(pos, obsPos)
	v := skycore.Sub(vel, obsVel)
	ρ = skycore.Norm(r)
	return ρ, skycore.Dot(r, v) / ρ, nil
}

// SunLocator returns the geocentric position of the Sun in km in an Earth equatorial frame.
type SunLocator interface {
	SunECI(jd float64) []float64
}

// MeeusSun locates the Sun with the low precision solar theory.
type MeeusSun struct{}

// SunECI returns the apparent geocentric position of the Sun in km.
func (MeeusSun) SunECI(jd float64) []float64 {
	α, δ := solar.ApparentEquatorial(jd)
	r := solar.Radius(base.J2000Century(jd)) * skycore.AU
	sα, cα := math.Sincos(α.Rad())
	sδ, cδ := math.Sincos(δ.Rad())
	return []float64{r * cδ * cα, r * cδ * sα, r * sδ}
}

// PhaseAngle returns the angle in degrees between the directions from the Sun and from the Earth
// to the satellite.
func (s *Satellite) PhaseAngle(sun SunLocator) (float64, error) {
	jd, pos, _, err := s.state()
	if err != nil {
		return 0, err
	}
	return skycore.Angle(skycore.Sub(pos, sun.SunECI(jd)), pos) * r2d, nil
}
