package skycore

import (
	"fmt"
	"math"
	"strings"
)

// BodyID is the stable index of a body in the catalogue arena.
type BodyID int

// NoParent is the parent of the root bodies.
const NoParent BodyID = -1

// BodyKind classifies bodies.
type BodyKind uint8

// Body kinds.
const (
	Planet BodyKind = iota
	MinorPlanet
	Comet
	Star
)

func (k BodyKind) String() string {
	switch k {
	case Planet:
		return "planet"
	case MinorPlanet:
		return "minor-planet"
	case Comet:
		return "comet"
	case Star:
		return "star"
	default:
		return fmt.Sprintf("BodyKind(%d)", uint8(k))
	}
}

// parseBodyKind follows the catalogue "type" field.
func parseBodyKind(name, kind string) BodyKind {
	switch strings.ToLower(kind) {
	case "asteroid", "plutoid", "dwarf planet", "cubewano", "scattered disc object", "sednoid":
		return MinorPlanet
	case "comet":
		return Comet
	case "star":
		return Star
	}
	if strings.EqualFold(name, "Sun") {
		return Star
	}
	return Planet
}

// RotationElements define the orientation of a body's equator and its spin.
type RotationElements struct {
	Period         float64 // sidereal rotation period in days
	Offset         float64 // rotation at Epoch in degrees
	Epoch          float64 // JD
	Obliquity      float64 // radians, VSOP87 frame (relative to the parent frame for moons)
	AscendingNode  float64 // radians
	PrecessionRate float64 // radians per day
	// OrbitVisualizationPeriod is used by renderers to draw one orbit, in days.
	OrbitVisualizationPeriod float64
}

// SiderealAngle returns the rotation of the prime meridian in radians at the provided date.
func (r RotationElements) SiderealAngle(jd float64) float64 {
	if r.Period == 0 {
		return r.Offset * deg2rad
	}
	turns := (jd - r.Epoch) / r.Period
	return normalizeAngle((turns-math.Floor(turns))*twoπ + r.Offset*deg2rad)
}

// Rings define a planetary ring system (radii in AU).
type Rings struct {
	Inner, Outer float64
}

// MinorPlanetData holds the minor-planet and comet specific catalogue fields.
type MinorPlanetData struct {
	Number                 int
	ProvisionalDesignation string
	AbsoluteMagnitude      float64 // H, or the comet absolute magnitude
	SlopeParameter         float64 // G, or the comet slope parameter
}

// Body is one member of the hierarchical system. Bodies are owned by the System arena and refer
// to each other through their BodyID.
type Body struct {
	ID         BodyID
	Name       string // English name, unique in a catalogue
	Section    string // catalogue section identifier
	Kind       BodyKind
	Radius     float64 // AU
	Oblateness float64
	Color      [3]float64
	Albedo     float64
	Hidden     bool
	Lighting   bool
	Atmosphere bool
	Func       PositionFunc
	Orbit      Orbit // nil for analytic functions
	Rotation   RotationElements
	Rings      *Rings
	MinorData  *MinorPlanetData

	Parent   BodyID
	Children []BodyID

	// Computed state, updated by each tick.
	HelioPos      []float64 // AU, VSOP87 frame
	RelPos        []float64 // AU, relative to the parent
	Transform     Transform
	Distance      float64 // AU from the observer
	LightTimeDate float64 // JD at which the light left the body

	position PositionFunction
	depth    int
}

// String implements the Stringer interface.
func (b Body) String() string {
	return fmt.Sprintf("%s (%s, %s)", b.Name, b.Kind, b.Func)
}

// HasParent returns whether this body is not a root.
func (b Body) HasParent() bool {
	return b.Parent != NoParent
}

// Depth returns the number of parent hops to a root body.
func (b Body) Depth() int {
	return b.depth
}

// clone returns a deep copy of the computed state, safe to hand out of the arena.
func (b Body) clone() Body {
	c := b
	c.Children = append([]BodyID(nil), b.Children...)
	c.HelioPos = append([]float64(nil), b.HelioPos...)
	c.RelPos = append([]float64(nil), b.RelPos...)
	if b.Rings != nil {
		r := *b.Rings
		c.Rings = &r
	}
	if b.MinorData != nil {
		m := *b.MinorData
		c.MinorData = &m
	}
	return c
}
