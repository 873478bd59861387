package skycore

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// StandardLayers are the catalogue layers, in load order.
var StandardLayers = []string{"ssystem_major", "ssystem_minor", "ssystem_1000comets", "ssystem_user"}

var (
	// ErrRequiredLayer is returned when the first (required) layer could not be loaded.
	ErrRequiredLayer = errors.New("required catalogue layer failed")
	// ErrEmptyLayer is the cause of a layer failure when no body could be created from it.
	ErrEmptyLayer = errors.New("no body loaded from layer")
)

// Layer is one catalogue definition source.
type Layer struct {
	Name     string
	Required bool
	Open     func() (io.ReadCloser, error)
}

// FileLayers returns the layers stored as <dir>/<name>.ini, the first one being required.
func FileLayers(dir string, names ...string) []Layer {
	if len(names) == 0 {
		names = StandardLayers
	}
	layers := make([]Layer, len(names))
	for i, name := range names {
		path := filepath.Join(dir, name+".ini")
		layers[i] = Layer{Name: name, Required: i == 0, Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		}}
	}
	return layers
}

// StringLayer returns a layer reading the provided INI document.
func StringLayer(name, content string) Layer {
	return Layer{Name: name, Open: func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(content)), nil
	}}
}

// LayerError reports a discarded layer.
type LayerError struct {
	Layer string
	Err   error
}

func (e LayerError) Error() string {
	return fmt.Sprintf("layer %s: %s", e.Layer, e.Err)
}

// Cause returns the underlying error.
func (e LayerError) Cause() error { return e.Err }

// Unwrap returns the underlying error.
func (e LayerError) Unwrap() error { return e.Err }

// SkippedRecord is a body definition which was not loaded.
type SkippedRecord struct {
	Layer, Section, Name, Reason string
}

// LoadReport is the outcome of a catalogue load.
type LoadReport struct {
	Applied []string
	Missing []string
	Failed  []LayerError
	Skipped []SkippedRecord
	Bodies  int
}

// Partial returns whether some layer was discarded.
func (r LoadReport) Partial() bool {
	return len(r.Failed) > 0
}

// Load builds a new catalogue from the layers and swaps it in. The current catalogue is kept when
// the load fails: when the first layer cannot be loaded, or when a body selects an unknown
// position function.
func (s *System) Load(layers []Layer) (LoadReport, error) {
	s.mu.RLock()
	b := &builder{
		cat:           newCatalogue(),
		eph:           s.eph,
		earthOverride: s.earthOverride,
		logger:        log.With(s.baseLogger(), "subsys", "loader"),
	}
	s.mu.RUnlock()

	var report LoadReport
	for i, layer := range layers {
		err := b.loadLayer(layer, &report)
		switch {
		case err == nil:
			report.Applied = append(report.Applied, layer.Name)
		case errors.Is(err, ErrUnknownPositionFunc):
			level.Error(b.logger).Log("msg", "aborting catalogue load", "layer", layer.Name, "err", err)
			return report, err
		case os.IsNotExist(errors.Cause(err)) && !layer.Required && i > 0:
			level.Debug(b.logger).Log("msg", "layer not found", "layer", layer.Name)
			report.Missing = append(report.Missing, layer.Name)
		case layer.Required || i == 0:
			level.Error(b.logger).Log("msg", "required layer failed", "layer", layer.Name, "err", err)
			return report, errors.Wrapf(ErrRequiredLayer, "%s: %s", layer.Name, err)
		default:
			level.Warn(b.logger).Log("msg", "discarding layer", "layer", layer.Name, "err", err)
			report.Failed = append(report.Failed, LayerError{Layer: layer.Name, Err: err})
			s.metrics.layerFailed(layer.Name)
		}
	}
	b.cat.sortOrder()
	report.Bodies = len(b.cat.bodies)
	s.metrics.catalogueLoaded(report.Bodies, len(report.Skipped))

	s.mu.Lock()
	s.cat = b.cat
	s.observerPos = nil
	s.mu.Unlock()
	level.Info(b.logger).Log("msg", "catalogue loaded", "bodies", report.Bodies, "applied", len(report.Applied), "failed", len(report.Failed), "skipped", len(report.Skipped))
	return report, nil
}

// builder creates the bodies of a new catalogue.
type builder struct {
	cat           *catalogue
	eph           *Ephemeris
	earthOverride bool
	logger        log.Logger
}

// record is one section of a layer.
type record struct {
	section string
	name    string
	parent  string // lower case, empty for roots
	fields  map[string]interface{}
}

func (r record) has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

func (r record) str(key, def string) string {
	if v, ok := r.fields[key]; ok {
		return strings.TrimSpace(cast.ToString(v))
	}
	return def
}

func (r record) float(key string, def float64) (float64, error) {
	v, ok := r.fields[key]
	if !ok || strings.TrimSpace(cast.ToString(v)) == "" {
		return def, nil
	}
	f, err := cast.ToFloat64E(strings.TrimSpace(cast.ToString(v)))
	if err != nil {
		return 0, errors.Wrapf(err, "section %s: field %s", r.section, key)
	}
	return f, nil
}

func (r record) boolean(key string, def bool) (bool, error) {
	v, ok := r.fields[key]
	if !ok || strings.TrimSpace(cast.ToString(v)) == "" {
		return def, nil
	}
	b, err := cast.ToBoolE(strings.TrimSpace(cast.ToString(v)))
	if err != nil {
		return false, errors.Wrapf(err, "section %s: field %s", r.section, key)
	}
	return b, nil
}

// skip is returned by the body constructors when a record must be skipped without failing the layer.
type skip struct{ reason string }

func (s skip) Error() string { return s.reason }

// readRecords parses an INI layer.
func readRecords(rd io.Reader) ([]record, error) {
	v := viper.New()
	v.SetConfigType("ini")
	if err := v.ReadConfig(rd); err != nil {
		return nil, errors.Wrap(err, "could not parse")
	}
	var records []record
	for section, raw := range v.AllSettings() {
		fields, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("key %q is outside of any section", section)
		}
		for key, val := range fields {
			if _, nested := val.(map[string]interface{}); nested {
				return nil, errors.Errorf("section %s.%s: section names must not contain dots", section, key)
			}
		}
		if section == "default" {
			continue
		}
		r := record{section: section, fields: fields}
		r.name = r.str("name", section)
		r.parent = strings.ToLower(r.str("parent", "Sun"))
		if r.parent == "none" || strings.EqualFold(r.name, r.parent) {
			r.parent = ""
		}
		records = append(records, r)
	}
	return records, nil
}

// loadLayer adds the bodies of one layer. On error, the catalogue is restored to its state before
// the layer.
func (b *builder) loadLayer(layer Layer, report *LoadReport) (err error) {
	rc, err := layer.Open()
	if err != nil {
		return errors.Wrap(err, "could not open")
	}
	defer rc.Close()
	records, err := readRecords(rc)
	if err != nil {
		return err
	}

	snapshot := len(b.cat.bodies)
	var skipped []SkippedRecord
	defer func() {
		if err != nil {
			b.rollback(snapshot)
			return
		}
		report.Skipped = append(report.Skipped, skipped...)
	}()
	skipRecord := func(r record, reason string) {
		level.Warn(b.logger).Log("msg", "skipping body", "layer", layer.Name, "body", r.name, "reason", reason)
		skipped = append(skipped, SkippedRecord{Layer: layer.Name, Section: r.section, Name: r.name, Reason: reason})
	}

	// Bodies may reference parents defined later in the file: create them by ascending depth.
	byName := make(map[string]*record, len(records))
	var ordered []*record
	for i := range records {
		r := &records[i]
		key := strings.ToLower(r.name)
		if _, dup := byName[key]; dup {
			skipRecord(*r, "duplicate name in layer")
			continue
		}
		if _, exists := b.cat.lookup(key); exists {
			skipRecord(*r, "already defined by a previous layer")
			continue
		}
		byName[key] = r
		ordered = append(ordered, r)
	}
	depths := make(map[string]int, len(byName))
	var depthOf func(name string, visiting map[string]bool) int
	depthOf = func(name string, visiting map[string]bool) int {
		if d, ok := depths[name]; ok {
			return d
		}
		r, ok := byName[name]
		if !ok {
			if id, ok := b.cat.lookup(name); ok {
				return b.cat.bodies[id].depth
			}
			return -1
		}
		d := 0
		if r.parent != "" {
			if visiting[name] {
				return -1
			}
			visiting[name] = true
			if pd := depthOf(r.parent, visiting); pd < 0 {
				d = -1
			} else {
				d = pd + 1
			}
			delete(visiting, name)
		}
		depths[name] = d
		return d
	}
	for _, r := range ordered {
		depthOf(strings.ToLower(r.name), map[string]bool{})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		di, dj := depths[strings.ToLower(ordered[i].name)], depths[strings.ToLower(ordered[j].name)]
		if di != dj {
			return di < dj
		}
		return ordered[i].name < ordered[j].name
	})

	loaded := 0
	for _, r := range ordered {
		if depths[strings.ToLower(r.name)] < 0 {
			skipRecord(*r, fmt.Sprintf("parent %q cannot be resolved", r.parent))
			continue
		}
		parent := NoParent
		if r.parent != "" {
			id, ok := b.cat.lookup(r.parent)
			if !ok {
				skipRecord(*r, fmt.Sprintf("parent %q was not loaded", r.parent))
				continue
			}
			parent = id
		}
		body, err := b.newBody(*r, parent)
		if err != nil {
			var s skip
			if errors.As(err, &s) {
				skipRecord(*r, s.reason)
				continue
			}
			return err
		}
		b.add(body)
		loaded++
	}
	if loaded == 0 {
		return ErrEmptyLayer
	}
	return nil
}

// add appends a body to the arena and links it to its parent.
func (b *builder) add(body Body) {
	id := BodyID(len(b.cat.bodies))
	body.ID = id
	body.depth = 0
	if body.Parent != NoParent {
		p := &b.cat.bodies[body.Parent]
		body.depth = p.depth + 1
		p.Children = append(p.Children, id)
	}
	b.cat.bodies = append(b.cat.bodies, body)
	b.cat.byName[strings.ToLower(body.Name)] = id
}

// rollback removes every body created after the snapshot.
func (b *builder) rollback(snapshot int) {
	for _, body := range b.cat.bodies[snapshot:] {
		delete(b.cat.byName, strings.ToLower(body.Name))
	}
	b.cat.bodies = b.cat.bodies[:snapshot]
	for i := range b.cat.bodies {
		kept := b.cat.bodies[i].Children[:0]
		for _, c := range b.cat.bodies[i].Children {
			if int(c) < snapshot {
				kept = append(kept, c)
			}
		}
		b.cat.bodies[i].Children = kept
	}
}

// newBody creates a body from its record. It returns a skip error for records which cannot be
// loaded on their own, ErrUnknownPositionFunc for an unknown selector, and any other error for a
// malformed record.
func (b *builder) newBody(r record, parent BodyID) (Body, error) {
	f, err := ParsePositionFunc(r.str("coord_func", ""))
	if err != nil {
		return Body{}, errors.Wrapf(err, "section %s", r.section)
	}
	body := Body{
		Name:     r.name,
		Section:  r.section,
		Kind:     parseBodyKind(r.name, r.str("type", "")),
		Func:     f,
		Parent:   parent,
		Color:    [3]float64{1, 1, 1},
		Lighting: true,
	}
	var radius float64
	if radius, err = r.float("radius", 0); err != nil {
		return Body{}, err
	}
	body.Radius = radius / AU
	if body.Oblateness, err = r.float("oblateness", 0); err != nil {
		return Body{}, err
	}
	if body.Albedo, err = r.float("albedo", 0); err != nil {
		return Body{}, err
	}
	if body.Hidden, err = r.boolean("hidden", false); err != nil {
		return Body{}, err
	}
	if body.Lighting, err = r.boolean("lighting", true); err != nil {
		return Body{}, err
	}
	if body.Atmosphere, err = r.boolean("atmosphere", false); err != nil {
		return Body{}, err
	}
	if body.Color, err = parseColor(r); err != nil {
		return Body{}, err
	}
	if body.Rings, err = parseRings(r); err != nil {
		return Body{}, err
	}
	if body.MinorData, err = parseMinorData(r, body.Kind); err != nil {
		return Body{}, err
	}

	var orbitPeriod float64
	var p *Body
	if parent != NoParent {
		p = &b.cat.bodies[parent]
	}
	switch f {
	case FuncEllipticalOrbit:
		o, err := ellipticalOrbit(r, p)
		if err != nil {
			return Body{}, err
		}
		body.Orbit, body.position, orbitPeriod = o, o.PositionAtDate, o.Period
	case FuncCometOrbit:
		o, err := cometOrbit(r, p)
		if err != nil {
			return Body{}, err
		}
		body.Orbit, body.position = o, o.PositionAtDate
		if o.Closed() {
			orbitPeriod = twoπ / o.MeanMotion
		}
	default:
		if planet, ok := satelliteParent(f); ok && (p == nil || p.Func != planet) {
			level.Warn(b.logger).Log("msg", "built-in satellite attached to an unexpected parent", "body", r.name, "func", f)
		}
		body.position = b.eph.Resolve(f)
		if period, ok := r.fields["orbit_period"]; ok {
			orbitPeriod = cast.ToFloat64(period)
		}
	}
	if body.Rotation, err = b.parseRotation(r, f, orbitPeriod); err != nil {
		return Body{}, err
	}
	return body, nil
}

func parseColor(r record) (c [3]float64, err error) {
	c = [3]float64{1, 1, 1}
	raw := r.str("color", "")
	if raw == "" {
		return c, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return c, errors.Errorf("section %s: color must have three components, got %q", r.section, raw)
	}
	for i, part := range parts {
		if c[i], err = cast.ToFloat64E(strings.TrimSpace(part)); err != nil {
			return c, errors.Wrapf(err, "section %s: color", r.section)
		}
	}
	return c, nil
}

func parseRings(r record) (*Rings, error) {
	rings, err := r.boolean("rings", false)
	if err != nil || !rings {
		return nil, err
	}
	inner, err := r.float("ring_inner_size", 0)
	if err != nil {
		return nil, err
	}
	outer, err := r.float("ring_outer_size", 0)
	if err != nil {
		return nil, err
	}
	return &Rings{Inner: inner / AU, Outer: outer / AU}, nil
}

func parseMinorData(r record, kind BodyKind) (*MinorPlanetData, error) {
	if kind != MinorPlanet && kind != Comet {
		return nil, nil
	}
	m := &MinorPlanetData{ProvisionalDesignation: r.str("provisional_designation", "")}
	if raw := r.str("minor_planet_number", ""); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "section %s: minor_planet_number", r.section)
		}
		m.Number = n
	}
	var err error
	if m.AbsoluteMagnitude, err = r.float("absolute_magnitude", -99); err != nil {
		return nil, err
	}
	if kind == Comet {
		if m.SlopeParameter, err = r.float("slope_parameter", 4.0); err != nil {
			return nil, err
		}
		m.SlopeParameter = math.Max(0, math.Min(20, m.SlopeParameter))
		return m, nil
	}
	if m.SlopeParameter, err = r.float("slope_parameter", 0.15); err != nil {
		return nil, err
	}
	m.SlopeParameter = clamp01(m.SlopeParameter)
	return m, nil
}

// parentFrame returns the frame in which the elements of a body orbiting p are expressed.
func parentFrame(p *Body) ParentFrame {
	if p == nil || !p.HasParent() {
		return ParentFrame{}
	}
	return NewParentFrame(p.Rotation.Obliquity, p.Rotation.AscendingNode)
}

// orbitAngles reads the inclination, node, argument of pericenter and mean anomaly (radians).
func orbitAngles(r record) (i, Ω, ω, M float64, hasM bool, err error) {
	if i, err = r.float("orbit_inclination", 0); err != nil {
		return
	}
	if Ω, err = r.float("orbit_ascendingnode", 0); err != nil {
		return
	}
	if r.has("orbit_argofpericenter") {
		if ω, err = r.float("orbit_argofpericenter", 0); err != nil {
			return
		}
	} else {
		var ϖ float64
		if ϖ, err = r.float("orbit_longofpericenter", 0); err != nil {
			return
		}
		ω = ϖ - Ω
	}
	switch {
	case r.has("orbit_meananomaly"):
		hasM = true
		M, err = r.float("orbit_meananomaly", 0)
	case r.has("orbit_meanlongitude"):
		hasM = true
		var L float64
		if L, err = r.float("orbit_meanlongitude", 0); err == nil {
			M = L - (ω + Ω)
		}
	}
	return i * deg2rad, Ω * deg2rad, ω * deg2rad, M * deg2rad, hasM, err
}

// meanMotion reads the mean motion (deg/day) or period (days) and returns radians per day, or zero.
func meanMotion(r record) (float64, error) {
	if r.has("orbit_meanmotion") {
		n, err := r.float("orbit_meanmotion", 0)
		return n * deg2rad, err
	}
	if r.has("orbit_period") {
		P, err := r.float("orbit_period", 0)
		if err != nil || P == 0 {
			return 0, err
		}
		return twoπ / P, nil
	}
	return 0, nil
}

// ellipticalOrbit reads an "ell_orbit" record. Distances are in km.
func ellipticalOrbit(r record, p *Body) (*EllipticalOrbit, error) {
	epoch, err := r.float("orbit_epoch", J2000)
	if err != nil {
		return nil, err
	}
	e, err := r.float("orbit_eccentricity", 0)
	if err != nil {
		return nil, err
	}
	var q, a float64
	switch {
	case r.has("orbit_pericenterdistance"):
		if q, err = r.float("orbit_pericenterdistance", 0); err != nil {
			return nil, err
		}
		q /= AU
		if e != 1 {
			a = q / (1 - e)
		}
	case r.has("orbit_semimajoraxis"):
		if a, err = r.float("orbit_semimajoraxis", 0); err != nil {
			return nil, err
		}
		a /= AU
		q = a * (1 - e)
	default:
		return nil, skip{"neither orbit_PericenterDistance nor orbit_SemiMajorAxis"}
	}
	n, err := meanMotion(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if p != nil && p.HasParent() {
			return nil, skip{"orbit_MeanMotion or orbit_Period required around a planet"}
		}
		if e == 1 {
			n = MeanMotion(q, 1)
		} else {
			n = GaussK / math.Pow(math.Abs(a), 1.5)
		}
	}
	i, Ω, ω, M, _, err := orbitAngles(r)
	if err != nil {
		return nil, err
	}
	o, err := NewEllipticalOrbit(q, e, i, Ω, ω, M, twoπ/n, epoch, parentFrame(p))
	if err != nil {
		return nil, skip{err.Error()}
	}
	return o, nil
}

// cometOrbit reads a "comet_orbit" record. Distances are in AU.
// When the pericenter distance is missing, it is derived from the semi-major axis.
func cometOrbit(r record, p *Body) (*CometOrbit, error) {
	e, err := r.float("orbit_eccentricity", 0)
	if err != nil {
		return nil, err
	}
	var q float64
	switch {
	case r.has("orbit_pericenterdistance"):
		if q, err = r.float("orbit_pericenterdistance", 0); err != nil {
			return nil, err
		}
	case r.has("orbit_semimajoraxis"):
		var a float64
		if a, err = r.float("orbit_semimajoraxis", 0); err != nil {
			return nil, err
		}
		q = a * (1 - e)
	default:
		return nil, skip{"neither orbit_PericenterDistance nor orbit_SemiMajorAxis"}
	}
	if q <= 0 {
		return nil, skip{"pericenter distance must be positive"}
	}
	epoch, err := r.float("orbit_epoch", J2000)
	if err != nil {
		return nil, err
	}
	n, err := meanMotion(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if p != nil && p.HasParent() {
			return nil, skip{"orbit_MeanMotion or orbit_Period required around a planet"}
		}
		if math.Abs(e-1) < parabolicε {
			n = MeanMotion(q, 1)
		} else {
			n = MeanMotion(q, e)
		}
	}
	i, Ω, ω, M, hasM, err := orbitAngles(r)
	if err != nil {
		return nil, err
	}
	var T float64
	switch {
	case r.has("orbit_timeatpericenter"):
		if T, err = r.float("orbit_timeatpericenter", 0); err != nil {
			return nil, err
		}
	case hasM:
		T = epoch - M/n
	default:
		return nil, skip{"neither orbit_TimeAtPericenter nor orbit_MeanAnomaly"}
	}
	window, err := r.float("orbit_good", DefaultValidWindow)
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		window = DefaultValidWindow
	}
	return &CometOrbit{
		PericenterDistance: q,
		Eccentricity:       e,
		Inclination:        i,
		AscendingNode:      Ω,
		ArgOfPericenter:    ω,
		TimeAtPericenter:   T,
		MeanMotion:         n,
		ValidWindow:        window,
		Epoch:              epoch,
		Parent:             parentFrame(p),
	}, nil
}

// parseRotation reads the rotation elements. The orbital period (days) is the default rotation period.
func (b *builder) parseRotation(r record, f PositionFunc, orbitPeriod float64) (RotationElements, error) {
	var rot RotationElements
	var err error
	var obl, node float64
	if obl, err = r.float("rot_obliquity", 0); err != nil {
		return rot, err
	}
	if node, err = r.float("rot_equator_ascending_node", 0); err != nil {
		return rot, err
	}
	rot.Obliquity, rot.AscendingNode = obl*deg2rad, node*deg2rad
	earth := f == FuncEarth
	if r.has("rot_pole_ra") && r.has("rot_pole_de") && !(earth && b.earthOverride) {
		ra, err := r.float("rot_pole_ra", 0)
		if err != nil {
			return rot, err
		}
		de, err := r.float("rot_pole_de", 0)
		if err != nil {
			return rot, err
		}
		rot.Obliquity, rot.AscendingNode = PoleToObliquityNode(ra*deg2rad, de*deg2rad)
	}
	rate, err := r.float("rot_precession_rate", 0)
	if err != nil {
		return rot, err
	}
	if earth && b.earthOverride {
		level.Warn(b.logger).Log("msg", "data quality: Earth rotation elements overridden", "precession_rate", earthPrecessionRate)
		rate = earthPrecessionRate
	}
	rot.PrecessionRate = rate * math.Pi / (180 * DaysPerCentury)
	hours, err := r.float("rot_periode", orbitPeriod*24)
	if err != nil {
		return rot, err
	}
	rot.Period = hours / 24
	if rot.Offset, err = r.float("rot_rotation_offset", 0); err != nil {
		return rot, err
	}
	if rot.Epoch, err = r.float("rot_epoch", J2000); err != nil {
		return rot, err
	}
	if rot.OrbitVisualizationPeriod, err = r.float("orbit_visualization_period", orbitPeriod); err != nil {
		return rot, err
	}
	return rot, nil
}
