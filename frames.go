package skycore

import (
	"math"

	"github.com/soniakeys/meeus/v3/globe"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/mat"
)

const (
	// J2000 is the Julian day of the J2000.0 epoch.
	J2000 = 2451545.0
	// DaysPerCentury is a Julian century.
	DaysPerCentury = 36525.0
	// J2000Obliquity is the obliquity of the ecliptic at J2000 in radians,
	// i.e. the tilt between the VSOP87 frame and the J2000 equator.
	J2000Obliquity = 23.4392803055555555556 * deg2rad
)

var (
	// WGS84 is the ellipsoid used for terrestrial observers.
	WGS84 = globe.Ellipsoid{Er: 6378.137, Fl: 1 / 298.257223563}

	eclToEqu = R1(-J2000Obliquity)
	equToEcl = R1(J2000Obliquity)
)

// EclipticToEquatorialJ2000 rotates a VSOP87 (J2000 ecliptic) vector into the J2000 equatorial frame.
func EclipticToEquatorialJ2000(v []float64) []float64 {
	return MxV33(eclToEqu, v)
}

// EquatorialJ2000ToEcliptic rotates a J2000 equatorial vector into the VSOP87 frame.
func EquatorialJ2000ToEcliptic(v []float64) []float64 {
	return MxV33(equToEcl, v)
}

// PrecessionMatrix returns the IAU 1976 precession matrix from the J2000 mean equator to the mean
// equator of date.
func PrecessionMatrix(jd float64) *mat.Dense {
	T := (jd - J2000) / DaysPerCentury
	arcsec := deg2rad / 3600
	ζ := (2306.2181*T + 0.30188*T*T + 0.017998*T*T*T) * arcsec
	z := (2306.2181*T + 1.09468*T*T + 0.018203*T*T*T) * arcsec
	θ := (2004.3109*T - 0.42665*T*T - 0.041833*T*T*T) * arcsec
	var tmp, rslt mat.Dense
	tmp.Mul(R2(θ), R3(-ζ))
	rslt.Mul(R3(-z), &tmp)
	return &rslt
}

// EquatorialJ2000ToDate precesses a J2000 equatorial vector to the mean equator of date.
func EquatorialJ2000ToDate(v []float64, jd float64) []float64 {
	return MxV33(PrecessionMatrix(jd), v)
}

// EclipticToEquatorialOfDate rotates a VSOP87 vector to the mean equator of date.
func EclipticToEquatorialOfDate(v []float64, jd float64) []float64 {
	return EquatorialJ2000ToDate(EclipticToEquatorialJ2000(v), jd)
}

// GreenwichMeanSiderealTime returns the mean sidereal time at Greenwich in radians.
func GreenwichMeanSiderealTime(jd float64) float64 {
	return normalizeAngle(sidereal.Mean(jd).Angle().Rad())
}

// GreenwichApparentSiderealTime returns the apparent sidereal time at Greenwich in radians.
func GreenwichApparentSiderealTime(jd float64) float64 {
	return normalizeAngle(sidereal.Apparent(jd).Angle().Rad())
}

// LocalSiderealTime returns the local mean sidereal time in radians for an east-positive
// longitude in radians.
func LocalSiderealTime(jd, longitude float64) float64 {
	return normalizeAngle(GreenwichMeanSiderealTime(jd) + longitude)
}

// EquatorialToHorizontal rotates an equatorial-of-date vector into the topocentric
// SEZ frame (south, east, zenith) of an observer at the given latitude and local sidereal time.
func EquatorialToHorizontal(v []float64, latitude, lst float64) []float64 {
	sφ, cφ := math.Sincos(latitude)
	sθ, cθ := math.Sincos(lst)
	return []float64{
		sφ*cθ*v[0] + sφ*sθ*v[1] - cφ*v[2],
		-sθ*v[0] + cθ*v[1],
		cφ*cθ*v[0] + cφ*sθ*v[1] + sφ*v[2],
	}
}

// AltAz returns the altitude and the azimuth (from north through east) of an SEZ vector, in radians.
func AltAz(sez []float64) (alt, az float64) {
	ρ := Norm(sez)
	if ρ == 0 {
		return 0, 0
	}
	alt = math.Asin(sez[2] / ρ)
	az = normalizeAngle(math.Atan2(sez[1], -sez[0]))
	return
}

// GeocentricObserver returns ρ·sinφ′ and ρ·cosφ′ (in units of the equatorial radius) for a
// geodetic latitude in radians and an altitude in meters.
func GeocentricObserver(latitude, altitude float64, e globe.Ellipsoid) (ρsφ, ρcφ float64) {
	return e.ParallaxConstants(unit.Angle(latitude), altitude)
}

// GeodeticToECEF returns the body-fixed position in km of a point at the geodetic latitude and
// longitude (radians) and altitude (meters) on the provided ellipsoid.
func GeodeticToECEF(latitude, longitude, altitude float64, e globe.Ellipsoid) []float64 {
	ρsφ, ρcφ := GeocentricObserver(latitude, altitude, e)
	sλ, cλ := math.Sincos(longitude)
	return []float64{e.Er * ρcφ * cλ, e.Er * ρcφ * sλ, e.Er * ρsφ}
}
