package skycore

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/mat"
)

const (
	// earthPrecessionRate is the forced precession rate of the Earth's rotation elements in degrees
	// per century, used only when the Earth rotation override is enabled.
	earthPrecessionRate = 1.39639
	secondsPerDay       = 86400.0
)

// ErrUnknownBody is returned when a body name is not in the catalogue.
var ErrUnknownBody = errors.New("unknown body")

// catalogue is an immutable-shape arena of bodies. Only the computed state of the bodies changes
// once a catalogue is published.
type catalogue struct {
	bodies []Body
	order  []BodyID // parent before child
	byName map[string]BodyID
}

func newCatalogue() *catalogue {
	return &catalogue{byName: make(map[string]BodyID)}
}

func (c *catalogue) lookup(name string) (BodyID, bool) {
	id, ok := c.byName[strings.ToLower(name)]
	return id, ok
}

// sortOrder sorts the evaluation order by ascending depth, ties broken by arena index.
func (c *catalogue) sortOrder() {
	c.order = c.order[:0]
	for i := range c.bodies {
		c.order = append(c.order, BodyID(i))
	}
	sort.SliceStable(c.order, func(i, j int) bool {
		return c.bodies[c.order[i]].depth < c.bodies[c.order[j]].depth
	})
}

// System is the simulation state: the body catalogue and the settings of the position pipeline.
// Position computations, queries and reloads may be called from several goroutines: reloads build
// a new catalogue and swap it in, and every tick is serialized with the other ticks.
type System struct {
	mu  sync.RWMutex
	cat *catalogue

	eph                 *Ephemeris
	lightTime           bool
	lightTimeIterations int
	earthOverride       bool

	lastJD      float64
	observerPos []float64
	observer    Observer
	base        log.Logger
	logger      log.Logger
	metrics     *Metrics
	onEvaluate  func(id BodyID, jd float64)
}

// Option configures a System.
type Option func(*System)

// WithLightTime enables or disables the light time correction. The number of iterations is at
// least one: the first uses the delay of the uncorrected positions.
func WithLightTime(enabled bool, iterations int) Option {
	return func(s *System) {
		s.lightTime = enabled
		if iterations < 1 {
			iterations = 1
		}
		s.lightTimeIterations = iterations
	}
}

// WithEphemeris sets the ephemeris used by the analytic position functions.
func WithEphemeris(e *Ephemeris) Option {
	return func(s *System) {
		if e != nil {
			s.eph = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *System) {
		if l != nil {
			s.base = l
			s.logger = log.With(l, "subsys", "system")
		}
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *System) {
		s.metrics = m
	}
}

// WithEarthRotationOverride reproduces the legacy Earth rotation elements: a forced precession rate
// and no pole coordinates.
func WithEarthRotationOverride(enabled bool) Option {
	return func(s *System) {
		s.earthOverride = enabled
	}
}

// withEvaluationHook calls fn after each body position evaluation.
func withEvaluationHook(fn func(id BodyID, jd float64)) Option {
	return func(s *System) {
		s.onEvaluate = fn
	}
}

// NewSystem returns an empty system. Use Load to populate its catalogue.
func NewSystem(opts ...Option) *System {
	eph, _ := NewEphemeris("")
	s := &System{cat: newCatalogue(), eph: eph, lightTime: true, lightTimeIterations: 1, base: log.NewNopLogger(), logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of bodies in the catalogue.
func (s *System) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cat.bodies)
}

// Body returns a copy of the body with the provided ID.
func (s *System) Body(id BodyID) (Body, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || int(id) >= len(s.cat.bodies) {
		return Body{}, false
	}
	return s.cat.bodies[id].clone(), true
}

// Lookup returns a copy of the body with the provided English name (case insensitive).
func (s *System) Lookup(name string) (Body, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.cat.lookup(name)
	if !ok {
		return Body{}, false
	}
	return s.cat.bodies[id].clone(), true
}

// Search returns up to max body names starting with the provided prefix (case insensitive), sorted.
func (s *System) Search(prefix string, max int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix = strings.ToLower(prefix)
	var names []string
	for _, b := range s.cat.bodies {
		if strings.HasPrefix(strings.ToLower(b.Name), prefix) {
			names = append(names, b.Name)
		}
	}
	sort.Strings(names)
	if max > 0 && len(names) > max {
		names = names[:max]
	}
	return names
}

// Bodies returns a copy of all the bodies, in arena order.
func (s *System) Bodies() []Body {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bodies := make([]Body, len(s.cat.bodies))
	for i, b := range s.cat.bodies {
		bodies[i] = b.clone()
	}
	return bodies
}

// Order returns the evaluation order (parents before their children).
func (s *System) Order() []BodyID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]BodyID(nil), s.cat.order...)
}

// TickResult summarizes one update.
type TickResult struct {
	JD          float64
	ObserverPos []float64 // heliocentric, AU
	DrawOrder   []BodyID  // farthest first
}

// Tick runs one full update for the observer: observer position, body positions, transforms and
// distances.
func (s *System) Tick(jd float64, obs Observer) (TickResult, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.cat.lookup(obs.Planet)
	if !ok {
		return TickResult{}, errors.Wrapf(ErrUnknownBody, "observer planet %q", obs.Planet)
	}
	obsPos := s.observerHeliocentric(s.cat, id, obs, jd)
	s.computePositions(jd, obsPos)
	s.computeTransMatrices(jd)
	s.computeDistances(obsPos)
	s.lastJD, s.observerPos, s.observer = jd, obsPos, obs
	for i := range s.cat.bodies {
		if c, ok := s.cat.bodies[i].Orbit.(*CometOrbit); ok && !c.WithinValidWindow(jd) {
			level.Debug(s.logger).Log("msg", "orbit elements outside of their valid window", "body", s.cat.bodies[i].Name, "epoch", c.Epoch, "window", c.ValidWindow)
		}
	}
	order := s.sortByDistance()
	s.metrics.observeTick(time.Since(start), len(s.cat.bodies))
	return TickResult{JD: jd, ObserverPos: append([]float64(nil), obsPos...), DrawOrder: order}, nil
}

// ComputePositions updates the heliocentric position of every body, parents before children.
func (s *System) ComputePositions(jd float64, observerPos []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.computePositions(jd, observerPos)
}

// ComputeTransMatrices updates the transform of every body from the positions already computed.
// It never recomputes positions.
func (s *System) ComputeTransMatrices(jd float64, observerPos []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.computeTransMatrices(jd)
}

// ComputeDistances updates the distance of every body to the observer.
func (s *System) ComputeDistances(observerPos []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.computeDistances(observerPos)
}

// SortByDistance returns the body IDs sorted by descending distance (farthest first), as computed
// by the last call to ComputeDistances.
func (s *System) SortByDistance() []BodyID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortByDistance()
}

func (s *System) computePositions(jd float64, observerPos []float64) {
	cat := s.cat
	for _, id := range cat.order {
		s.evaluate(cat, id, jd)
	}
	if !s.lightTime {
		return
	}
	delays := make([]float64, len(cat.bodies))
	for iter := 0; iter < s.lightTimeIterations; iter++ {
		for _, id := range cat.order {
			delays[id] = lightDelay(cat.bodies[id].HelioPos, observerPos)
		}
		for _, id := range cat.order {
			s.evaluate(cat, id, jd-delays[id])
		}
	}
}

// evaluate computes the position of a body at the provided date. Its parent must already be up to date.
func (s *System) evaluate(cat *catalogue, id BodyID, jd float64) {
	b := &cat.bodies[id]
	b.RelPos = b.position(jd)
	if b.HasParent() {
		b.HelioPos = Add(cat.bodies[b.Parent].HelioPos, b.RelPos)
	} else {
		b.HelioPos = append([]float64(nil), b.RelPos...)
	}
	b.LightTimeDate = jd
	if s.onEvaluate != nil {
		s.onEvaluate(id, jd)
	}
}

// helioAt returns the heliocentric position of a body at the provided date without touching the
// computed state.
func (s *System) helioAt(cat *catalogue, id BodyID, jd float64) []float64 {
	pos := []float64{0, 0, 0}
	for id != NoParent {
		pos = Add(pos, cat.bodies[id].position(jd))
		id = cat.bodies[id].Parent
	}
	return pos
}

// lightDelay returns the light travel time in days between two heliocentric positions in AU.
func lightDelay(pos, observerPos []float64) float64 {
	return Norm(Sub(pos, observerPos)) * AU / (SpeedOfLight * secondsPerDay)
}

func (s *System) computeTransMatrices(jd float64) {
	for _, id := range s.cat.order {
		b := &s.cat.bodies[id]
		date := jd
		if s.lightTime && b.LightTimeDate != 0 {
			date = b.LightTimeDate
		}
		b.Transform = Translation4(b.HelioPos).Mul(Rotation4(s.bodyRotation(b, date)))
	}
}

// bodyRotation returns the rotation from the body-fixed frame to the VSOP87 frame.
func (s *System) bodyRotation(b *Body, jd float64) *mat.Dense {
	r := b.Rotation
	if b.Func == FuncEarth && !s.earthOverride {
		var tmp, rslt mat.Dense
		tmp.Mul(PrecessionMatrix(jd).T(), R3(-GreenwichApparentSiderealTime(jd)))
		rslt.Mul(equToEcl, &tmp)
		return &rslt
	}
	W := r.SiderealAngle(jd)
	if b.Func == FuncEarth {
		W = GreenwichApparentSiderealTime(jd)
	}
	// The prime meridian is measured from the ascending node of the body equator.
	return R3R1R3(r.AscendingNode-r.PrecessionRate*(jd-r.Epoch), r.Obliquity, W)
}

func (s *System) computeDistances(observerPos []float64) {
	for i := range s.cat.bodies {
		b := &s.cat.bodies[i]
		b.Distance = Norm(Sub(b.HelioPos, observerPos))
	}
}

func (s *System) sortByDistance() []BodyID {
	ids := make([]BodyID, len(s.cat.bodies))
	for i := range ids {
		ids[i] = BodyID(i)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return s.cat.bodies[ids[i]].Distance > s.cat.bodies[ids[j]].Distance
	})
	return ids
}

// body returns the body with the provided ID. The caller must hold the lock.
func (s *System) body(id BodyID) (*Body, error) {
	if id < 0 || int(id) >= len(s.cat.bodies) {
		return nil, errors.Wrapf(ErrUnknownBody, "body ID %d", id)
	}
	return &s.cat.bodies[id], nil
}

// Elongation returns the angle between the Sun and the body as seen from the observer, in radians.
func (s *System) Elongation(id BodyID, observerPos []float64) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := s.body(id)
	if err != nil {
		return 0, err
	}
	return Angle(Scale(-1, observerPos), Sub(b.HelioPos, observerPos)), nil
}

// PhaseAngle returns the Sun-body-observer angle in radians.
func (s *System) PhaseAngle(id BodyID, observerPos []float64) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := s.body(id)
	if err != nil {
		return 0, err
	}
	return Angle(Scale(-1, b.HelioPos), Sub(observerPos, b.HelioPos)), nil
}

// Phase returns the illuminated fraction of the disk of the body.
func (s *System) Phase(id BodyID, observerPos []float64) (float64, error) {
	i, err := s.PhaseAngle(id, observerPos)
	if err != nil {
		return 0, err
	}
	return base.Illuminated(unit.Angle(i)), nil
}

// NearLunarEclipse returns whether the Moon is close enough to the Earth's penumbra for an eclipse
// to be possible, from the last computed positions.
func (s *System) NearLunarEclipse() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var earth, moon *Body
	for i := range s.cat.bodies {
		switch s.cat.bodies[i].Func {
		case FuncEarth:
			earth = &s.cat.bodies[i]
		case FuncMoon:
			moon = &s.cat.bodies[i]
		}
	}
	if earth == nil || moon == nil || earth.HelioPos == nil || moon.HelioPos == nil {
		return false
	}
	e := earth.HelioPos
	shadow := Scale(Norm(e)+Norm(moon.RelPos), Unit(e))
	rPenumbra := Norm(shadow)*702378.1/AU/Norm(e) - 696000/AU
	return Norm(Sub(shadow, moon.HelioPos)) <= rPenumbra+2000/AU
}

// SunECI returns the geocentric position of the Sun in km, referred to the mean equator of date.
func (s *System) SunECI(jd float64) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var earth BodyID = NoParent
	for i := range s.cat.bodies {
		if s.cat.bodies[i].Func == FuncEarth {
			earth = BodyID(i)
			break
		}
	}
	var e []float64
	if earth == NoParent {
		e = planetTable[FuncEarth].position(jd)
	} else {
		e = s.helioAt(s.cat, earth, jd)
	}
	return Scale(AU, EclipticToEquatorialOfDate(Scale(-1, e), jd))
}

func (s *System) baseLogger() log.Logger {
	return s.base
}

// clamp01 bounds a value to [0, 1].
func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
