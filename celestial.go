package skycore

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/planetposition"
	"github.com/soniakeys/meeus/v3/pluto"
)

const (
	// AU is one astronomical unit in kilometers.
	AU = 1.49597870700e8
	// SpeedOfLight in km/s.
	SpeedOfLight = 299792.458
	// generalPrecession is the general precession in longitude in arcseconds per century.
	generalPrecession = 5029.0966
)

// ErrUnknownPositionFunc is returned when a position function selector matches nothing.
var ErrUnknownPositionFunc = errors.New("unknown position function")

// PositionFunc selects how a body's position relative to its parent is computed.
type PositionFunc uint8

// Position function selectors.
const (
	FuncEllipticalOrbit PositionFunc = iota
	FuncCometOrbit
	FuncSun
	FuncMercury
	FuncVenus
	FuncEarth
	FuncMoon
	FuncMars
	FuncPhobos
	FuncDeimos
	FuncJupiter
	FuncIo
	FuncEuropa
	FuncGanymede
	FuncCallisto
	FuncSaturn
	FuncMimas
	FuncEnceladus
	FuncTethys
	FuncDione
	FuncRhea
	FuncTitan
	FuncHyperion
	FuncIapetus
	FuncUranus
	FuncMiranda
	FuncAriel
	FuncUmbriel
	FuncTitania
	FuncOberon
	FuncNeptune
	FuncPluto
)

var positionFuncNames = map[string]PositionFunc{
	"ell_orbit":         FuncEllipticalOrbit,
	"comet_orbit":       FuncCometOrbit,
	"sun_special":       FuncSun,
	"mercury_special":   FuncMercury,
	"venus_special":     FuncVenus,
	"earth_special":     FuncEarth,
	"lunar_special":     FuncMoon,
	"mars_special":      FuncMars,
	"phobos_special":    FuncPhobos,
	"deimos_special":    FuncDeimos,
	"jupiter_special":   FuncJupiter,
	"io_special":        FuncIo,
	"europa_special":    FuncEuropa,
	"ganymede_special":  FuncGanymede,
	"calisto_special":   FuncCallisto,
	"saturn_special":    FuncSaturn,
	"mimas_special":     FuncMimas,
	"enceladus_special": FuncEnceladus,
	"tethys_special":    FuncTethys,
	"dione_special":     FuncDione,
	"rhea_special":      FuncRhea,
	"titan_special":     FuncTitan,
	"hyperion_special":  FuncHyperion,
	"iapetus_special":   FuncIapetus,
	"uranus_special":    FuncUranus,
	"miranda_special":   FuncMiranda,
	"ariel_special":     FuncAriel,
	"umbriel_special":   FuncUmbriel,
	"titania_special":   FuncTitania,
	"oberon_special":    FuncOberon,
	"neptune_special":   FuncNeptune,
	"pluto_special":     FuncPluto,
}

// vsop87Index maps planets to their VSOP87 file index (Mercury is 0).
var vsop87Index = map[PositionFunc]int{
	FuncMercury: 0,
	FuncVenus:   1,
	FuncEarth:   2,
	FuncMars:    3,
	FuncJupiter: 4,
	FuncSaturn:  5,
	FuncUranus:  6,
	FuncNeptune: 7,
}

// ParsePositionFunc returns the selector for the exact catalogue string.
func ParsePositionFunc(name string) (PositionFunc, error) {
	if f, ok := positionFuncNames[name]; ok {
		return f, nil
	}
	return 0, errors.Wrapf(ErrUnknownPositionFunc, "%q", name)
}

// Analytic returns whether this selector is a built-in function rather than a generic orbit.
func (f PositionFunc) Analytic() bool {
	return f != FuncEllipticalOrbit && f != FuncCometOrbit
}

// String implements the Stringer interface.
func (f PositionFunc) String() string {
	for name, sel := range positionFuncNames {
		if sel == f {
			return name
		}
	}
	return fmt.Sprintf("PositionFunc(%d)", uint8(f))
}

// PositionFunction returns the position in AU relative to the parent, in the VSOP87 frame.
type PositionFunction func(jd float64) []float64

// Ephemeris resolves analytic position functions. When a VSOP87 directory is provided, the major
// planets are computed from the full VSOP87 series, otherwise from mean elements.
type Ephemeris struct {
	vsop87 map[PositionFunc]*planetposition.V87Planet
	mu     sync.Mutex // guards moon cache
	moon   struct {
		jd  float64
		pos []float64
	}
}

// NewEphemeris returns an ephemeris. Note that all the VSOP87 files are loaded at once: this is
// slow but allows all the bodies to share the same series.
func NewEphemeris(vsop87Dir string) (*Ephemeris, error) {
	e := &Ephemeris{}
	if vsop87Dir == "" {
		return e, nil
	}
	e.vsop87 = make(map[PositionFunc]*planetposition.V87Planet, len(vsop87Index))
	for f, idx := range vsop87Index {
		planet, err := planetposition.LoadPlanetPath(idx, vsop87Dir)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load VSOP87 planet %s", f)
		}
		e.vsop87[f] = planet
	}
	return e, nil
}

// VSOP87 returns whether the full planetary theory is in use.
func (e *Ephemeris) VSOP87() bool {
	return e != nil && e.vsop87 != nil
}

// Resolve returns the closure for an analytic position function. It panics on generic orbit
// selectors since those need their elements.
func (e *Ephemeris) Resolve(f PositionFunc) PositionFunction {
	switch f {
	case FuncEllipticalOrbit, FuncCometOrbit:
		panic(fmt.Errorf("%s requires orbital elements", f))
	case FuncSun:
		return func(float64) []float64 { return []float64{0, 0, 0} }
	case FuncMoon:
		return e.moonPosition
	case FuncPluto:
		return plutoPosition
	}
	if planet, ok := e.vsop87[f]; ok {
		return func(jd float64) []float64 {
			l, b, r := planet.Position2000(jd)
			return Spherical2Cartesian([]float64{r, l.Rad(), b.Rad()})
		}
	}
	if elements, ok := planetTable[f]; ok {
		return elements.position
	}
	if elements, ok := satelliteTable[f]; ok {
		return elements.orbit().PositionAtDate
	}
	panic(fmt.Errorf("no analytic function for %s", f))
}

// moonPosition returns the geocentric position of the Moon. The Meeus series are referred to the
// mean equinox of date, so the general precession since J2000 is removed from the longitude.
func (e *Ephemeris) moonPosition(jd float64) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.moon.pos != nil && e.moon.jd == jd {
		return append([]float64(nil), e.moon.pos...)
	}
	λ, β, Δ := moonposition.Position(jd)
	T := (jd - J2000) / DaysPerCentury
	p := generalPrecession * T * deg2rad / 3600
	pos := Spherical2Cartesian([]float64{Δ / AU, λ.Rad() - p, β.Rad()})
	e.moon.jd, e.moon.pos = jd, pos
	return append([]float64(nil), pos...)
}

func plutoPosition(jd float64) []float64 {
	l, b, r := pluto.Heliocentric(jd)
	return Spherical2Cartesian([]float64{r, l.Rad(), b.Rad()})
}

// satelliteParent returns the planet a built-in satellite function orbits, if any.
func satelliteParent(f PositionFunc) (PositionFunc, bool) {
	if f == FuncMoon {
		return FuncEarth, true
	}
	s, ok := satelliteTable[f]
	return s.parent, ok
}
