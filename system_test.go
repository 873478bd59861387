package skycore

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/soniakeys/meeus/v3/solar"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

const ringsLayer = `
[sun]
name = Sun
parent = none
coord_func = sun_special
radius = 696000

[three]
name = Three
coord_func = ell_orbit
orbit_SemiMajorAxis = 448793612.1

[one]
name = One
coord_func = ell_orbit
orbit_SemiMajorAxis = 149597870.7

[four]
name = Four
coord_func = ell_orbit
orbit_SemiMajorAxis = 598391482.8

[two]
name = Two
coord_func = ell_orbit
orbit_SemiMajorAxis = 299195741.4
`

// loadedSystem returns a system with the catalogue shipped in data/.
func loadedSystem(t *testing.T, opts ...Option) *System {
	s := NewSystem(opts...)
	report, err := s.Load(FileLayers("data"))
	if err != nil {
		t.Fatal(err)
	}
	if report.Partial() || len(report.Skipped) != 0 {
		t.Fatalf("incomplete catalogue: %+v", report)
	}
	return s
}

func bodyID(t *testing.T, s *System, name string) BodyID {
	b, ok := s.Lookup(name)
	if !ok {
		t.Fatalf("%s not found", name)
	}
	return b.ID
}

func TestSortByDistance(t *testing.T) {
	s := NewSystem(WithLightTime(false, 1))
	if _, err := s.Load([]Layer{StringLayer("rings", ringsLayer)}); err != nil {
		t.Fatal(err)
	}
	origin := []float64{0, 0, 0}
	s.ComputePositions(J2000, origin)
	one, _ := s.Lookup("one")
	if !vectorsEqual(one.HelioPos, []float64{1, 0, 0}) {
		t.Fatalf("incorrect position of One: %v", one.HelioPos)
	}
	s.ComputeDistances(origin)
	var names []string
	for _, id := range s.SortByDistance() {
		b, _ := s.Body(id)
		names = append(names, b.Name)
	}
	exp := []string{"Four", "Three", "Two", "One", "Sun"}
	for i := range exp {
		if names[i] != exp[i] {
			t.Fatalf("incorrect order %v", names)
		}
	}
	four, _ := s.Lookup("Four")
	if !scalar.EqualWithinAbs(four.Distance, 4, 1e-12) {
		t.Fatalf("incorrect distance %f", four.Distance)
	}
}

func TestLightTime(t *testing.T) {
	origin := []float64{0, 0, 0}
	delay := AU / (SpeedOfLight * secondsPerDay)
	for _, iterations := range []int{1, 3} {
		s := NewSystem(WithLightTime(true, iterations))
		if _, err := s.Load([]Layer{StringLayer("rings", ringsLayer)}); err != nil {
			t.Fatal(err)
		}
		s.ComputePositions(J2000, origin)
		one, _ := s.Lookup("One")
		if !scalar.EqualWithinAbs(one.LightTimeDate, J2000-delay, 1e-12) {
			t.Fatalf("incorrect light time date: %f instead of %f", one.LightTimeDate, J2000-delay)
		}
		two, _ := s.Lookup("Two")
		if !scalar.EqualWithinAbs(two.LightTimeDate, J2000-2*delay, 1e-12) {
			t.Fatal("incorrect light time date for Two")
		}
		// The body has moved back along its orbit.
		if one.HelioPos[1] >= 0 || !scalar.EqualWithinAbs(Norm(one.HelioPos), 1, 1e-12) {
			t.Fatalf("position not retarded: %v", one.HelioPos)
		}
		sun, _ := s.Lookup("Sun")
		if sun.LightTimeDate != J2000 {
			t.Fatal("the observer is at the Sun")
		}
	}

	s := NewSystem(WithLightTime(false, 1))
	s.Load([]Layer{StringLayer("rings", ringsLayer)})
	s.ComputePositions(J2000, origin)
	if one, _ := s.Lookup("One"); one.LightTimeDate != J2000 {
		t.Fatal("light time applied while disabled")
	}
}

func TestEvaluationOrder(t *testing.T) {
	layer := StringLayer("shuffled", `
[moonlet]
name = Moonlet
parent = Planet X
coord_func = ell_orbit
orbit_SemiMajorAxis = 100000
orbit_Period = 3

[speck]
name = Speck
parent = Moonlet
coord_func = ell_orbit
orbit_SemiMajorAxis = 100
orbit_Period = 0.1

[planet x]
name = Planet X
coord_func = ell_orbit
orbit_SemiMajorAxis = 300000000

[sun]
name = Sun
parent = none
coord_func = sun_special
`)
	evaluated := make(map[BodyID]int)
	calls := 0
	var s *System
	s = NewSystem(WithLightTime(true, 2), withEvaluationHook(func(id BodyID, jd float64) {
		calls++
		b := s.cat.bodies[id]
		if b.HasParent() && evaluated[b.Parent] != evaluated[id]+1 {
			t.Fatalf("%s evaluated before its parent", b.Name)
		}
		evaluated[id]++
	}))
	if _, err := s.Load([]Layer{layer}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 4 {
		t.Fatalf("expected 4 bodies, got %d", s.Len())
	}
	s.ComputePositions(J2000, []float64{0.5, 0.5, 0})
	if calls != 3*4 {
		t.Fatalf("expected three passes, got %d evaluations", calls)
	}
	speck, _ := s.Lookup("Speck")
	moonlet, _ := s.Lookup("moonlet")
	if speck.Depth() != 3 || speck.Parent != moonlet.ID {
		t.Fatalf("incorrect hierarchy: depth %d", speck.Depth())
	}
	if !vectorsEqual(speck.HelioPos, Add(moonlet.HelioPos, speck.RelPos)) {
		t.Fatal("heliocentric position is not the sum of the relative positions")
	}
	order := s.Order()
	seen := make(map[BodyID]bool)
	for _, id := range order {
		b, _ := s.Body(id)
		if b.HasParent() && !seen[b.Parent] {
			t.Fatalf("%s is before its parent in the evaluation order", b.Name)
		}
		seen[id] = true
	}
}

func TestComputeTransMatrices(t *testing.T) {
	s := loadedSystem(t)
	obs := NewObserver(45, 7, 300)
	res, err := s.Tick(J2000, obs)
	if err != nil {
		t.Fatal(err)
	}
	before := s.Bodies()
	s.ComputeTransMatrices(J2000+10, res.ObserverPos)
	after := s.Bodies()
	for i := range before {
		if !vectorsEqual(before[i].HelioPos, after[i].HelioPos) || before[i].LightTimeDate != after[i].LightTimeDate {
			t.Fatalf("%s moved", before[i].Name)
		}
		if !vectorsEqual(after[i].Transform.Origin(), after[i].HelioPos) {
			t.Fatalf("%s transform not centered on the body", before[i].Name)
		}
	}
	// At J2000 the Earth's axis is the J2000 pole.
	earth, _ := s.Lookup("Earth")
	if !floats.EqualApprox(earth.Transform.Rotate([]float64{0, 0, 1}), J2000Pole, 1e-12) {
		t.Fatalf("incorrect Earth axis: %v", earth.Transform.Rotate([]float64{0, 0, 1}))
	}
	mars, _ := s.Lookup("Mars")
	obl, node := PoleToObliquityNode(317.681*deg2rad, 52.887*deg2rad)
	if !floats.EqualApprox(mars.Transform.Rotate([]float64{0, 0, 1}), NewParentFrame(obl, node).Rotate([]float64{0, 0, 1}), 1e-12) {
		t.Fatal("incorrect Mars axis")
	}
	// The prime meridian starts on the ascending node of the equator.
	r := mars.Rotation
	date := mars.LightTimeDate
	node = r.AscendingNode - r.PrecessionRate*(date-r.Epoch)
	W := r.SiderealAngle(date)
	for _, v := range [][]float64{{1, 0, 0}, {0, 1, 0}} {
		want := MxV33(R3(-node), MxV33(R1(-r.Obliquity), MxV33(R3(-W), v)))
		if !floats.EqualApprox(mars.Transform.Rotate(v), want, 1e-12) {
			t.Fatalf("incorrect Mars rotation of %v: %v != %v", v, mars.Transform.Rotate(v), want)
		}
	}
}

func TestTick(t *testing.T) {
	s := loadedSystem(t)
	if _, err := s.Tick(J2000, Observer{Planet: "Vulcan"}); err == nil {
		t.Fatal("observer on an unknown planet")
	}
	if _, _, err := s.AltAz(0); err == nil {
		t.Fatal("AltAz before the first tick")
	}
	// Equinox noon at the Gulf of Guinea: the Sun is near the zenith, slightly east.
	jd := 2451624.0
	res, err := s.Tick(jd, NewObserver(0, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if res.JD != jd || len(res.DrawOrder) != s.Len() {
		t.Fatal("incomplete tick result")
	}
	for i := 1; i < len(res.DrawOrder); i++ {
		prev, _ := s.Body(res.DrawOrder[i-1])
		cur, _ := s.Body(res.DrawOrder[i])
		if prev.Distance < cur.Distance {
			t.Fatalf("%s drawn before %s", prev.Name, cur.Name)
		}
	}
	earth, _ := s.Lookup("Earth")
	if res.DrawOrder[len(res.DrawOrder)-1] != earth.ID {
		t.Fatal("the Earth should be the closest body")
	}
	if !scalar.EqualWithinAbs(earth.Distance*AU, 6378.137, 1) {
		t.Fatalf("observer is %f km from the center of the Earth", earth.Distance*AU)
	}
	sunID := bodyID(t, s, "Sun")
	alt, az, err := s.AltAz(sunID)
	if err != nil {
		t.Fatal(err)
	}
	if alt < 87*deg2rad || alt > 89.5*deg2rad || az < math.Pi/4 || az > 3*math.Pi/4 {
		t.Fatalf("incorrect Sun position: alt=%f az=%f", alt*r2d, az*r2d)
	}
	if !vectorsEqual(s.ObserverPosition(), res.ObserverPos) {
		t.Fatal("observer position not kept")
	}
	// Full Sun
	if p, err := s.Phase(sunID, res.ObserverPos); err != nil || !scalar.EqualWithinAbs(p, 1, 1e-12) {
		t.Fatalf("Sun phase %f (%v)", p, err)
	}
	if e, err := s.Elongation(sunID, res.ObserverPos); err != nil || e > 1e-7 {
		t.Fatalf("Sun elongation %f (%v)", e, err)
	}
}

func TestPhase(t *testing.T) {
	s := NewSystem(WithLightTime(false, 1))
	s.Load([]Layer{StringLayer("rings", ringsLayer)})
	s.ComputePositions(J2000, []float64{0, 0, 0})
	id := bodyID(t, s, "One")
	for _, tc := range []struct {
		obs   []float64
		phase float64
	}{
		{[]float64{0, 0, 0}, 1},
		{[]float64{1, 1, 0}, 0.5},
		{[]float64{2, 0, 0}, 0},
	} {
		p, err := s.Phase(id, tc.obs)
		if err != nil {
			t.Fatal(err)
		}
		if !scalar.EqualWithinAbs(p, tc.phase, 1e-12) {
			t.Fatalf("phase from %v = %f, expected %f", tc.obs, p, tc.phase)
		}
	}
	if e, err := s.Elongation(id, []float64{1, 1, 0}); err != nil || !scalar.EqualWithinAbs(e, math.Pi/4, 1e-12) {
		t.Fatalf("incorrect elongation %f (%v)", e, err)
	}
}

func TestPhaseUnknownBody(t *testing.T) {
	s := NewSystem(WithLightTime(false, 1))
	s.Load([]Layer{StringLayer("rings", ringsLayer)})
	s.ComputePositions(J2000, []float64{0, 0, 0})
	for _, id := range []BodyID{BodyID(s.Len()), 999, -1} {
		if _, err := s.Elongation(id, []float64{1, 0, 0}); !errors.Is(err, ErrUnknownBody) {
			t.Fatalf("elongation of %d: expected ErrUnknownBody, got %v", id, err)
		}
		if _, err := s.PhaseAngle(id, []float64{1, 0, 0}); !errors.Is(err, ErrUnknownBody) {
			t.Fatalf("phase angle of %d: expected ErrUnknownBody, got %v", id, err)
		}
		if _, err := s.Phase(id, []float64{1, 0, 0}); !errors.Is(err, ErrUnknownBody) {
			t.Fatalf("phase of %d: expected ErrUnknownBody, got %v", id, err)
		}
	}
}

func TestLookupSearch(t *testing.T) {
	s := loadedSystem(t)
	if s.Len() != 36 {
		t.Fatalf("expected 36 bodies, got %d", s.Len())
	}
	b, ok := s.Lookup("c/2020 F3 (neowise)")
	if !ok || b.Kind != Comet || b.MinorData == nil {
		t.Fatal("NEOWISE not found")
	}
	if _, ok = s.Lookup("Vulcan"); ok {
		t.Fatal("found a body which does not exist")
	}
	names := s.Search("m", 0)
	exp := []string{"Mars", "Mercury", "Mimas", "Miranda", "Moon"}
	if len(names) != len(exp) {
		t.Fatalf("incorrect search %v", names)
	}
	for i := range exp {
		if names[i] != exp[i] {
			t.Fatalf("incorrect search %v", names)
		}
	}
	if names = s.Search("M", 2); len(names) != 2 || names[1] != "Mercury" {
		t.Fatalf("incorrect limited search %v", names)
	}
	moon, _ := s.Lookup("Moon")
	earth, _ := s.Lookup("Earth")
	if moon.Parent != earth.ID {
		t.Fatal("the Moon should orbit the Earth")
	}
	found := false
	for _, c := range earth.Children {
		found = found || c == moon.ID
	}
	if !found {
		t.Fatal("the Moon is not a child of the Earth")
	}
	if _, ok = s.Body(BodyID(s.Len())); ok {
		t.Fatal("out of range ID")
	}
}

func TestNearLunarEclipse(t *testing.T) {
	s := loadedSystem(t)
	if s.NearLunarEclipse() {
		t.Fatal("no positions computed yet")
	}
	// Total lunar eclipse of 2022 November 8
	if _, err := s.Tick(2459891.958, NewObserver(0, -150, 0)); err != nil {
		t.Fatal(err)
	}
	if !s.NearLunarEclipse() {
		t.Fatal("missed the eclipse")
	}
	// New Moon of 2022 November 23
	if _, err := s.Tick(2459907.456, NewObserver(0, -150, 0)); err != nil {
		t.Fatal(err)
	}
	if s.NearLunarEclipse() {
		t.Fatal("eclipse at new Moon")
	}
}

func TestSunECI(t *testing.T) {
	jd := 2460700.75
	ra, dec := solar.ApparentEquatorial(jd)
	sδ, cδ := math.Sincos(dec.Rad())
	sα, cα := math.Sincos(ra.Rad())
	exp := []float64{cδ * cα, cδ * sα, sδ}
	for _, s := range []*System{NewSystem(), loadedSystem(t)} {
		sun := s.SunECI(jd)
		if r := Norm(sun) / AU; r < 0.983 || r > 0.986 {
			t.Fatalf("incorrect Sun distance %f AU", r)
		}
		if a := Angle(sun, exp); a > 0.03*deg2rad {
			t.Fatalf("Sun direction off by %f degrees", a*r2d)
		}
	}
}
