// Package satellite wraps an SGP4 propagator and computes the geometry of Earth satellites as seen
// by a ground observer: topocentric position, slant range and range rate, visibility and phase.
package satellite

import (
	"fmt"
	"math"
	"sync"

	gosat "github.com/joshuaferrara/go-satellite"
	"github.com/pkg/errors"
)

const (
	// maxTLELength is the longest line handed to the kernel.
	maxTLELength  = 130
	tleLineLength = 69

	r2d = 180 / math.Pi
	d2r = math.Pi / 180
)

var (
	// ErrInvalidTLE is returned when the kernel cannot parse an element set.
	ErrInvalidTLE = errors.New("invalid element set")
	// ErrNoPropagation is returned when the kernel cannot evaluate the orbit at a date.
	ErrNoPropagation = errors.New("propagation failed")
)

// Option configures a Satellite.
type Option func(*config)

type config struct {
	gravity Gravity
	factory KernelFactory
}

// WithGravity selects the gravity set handed to the kernel.
func WithGravity(g Gravity) Option {
	return func(c *config) {
		c.gravity = g
	}
}

// WithKernel replaces the default go-satellite kernel.
func WithKernel(f KernelFactory) Option {
	return func(c *config) {
		if f != nil {
			c.factory = f
		}
	}
}

// Satellite is an element set and the state computed at its last epoch.
// A Satellite is safe for concurrent use.
type Satellite struct {
	Designation  string
	Line1, Line2 string
	gravity      Gravity

	mu     sync.RWMutex
	kernel Kernel
	epoch  float64
	pos    []float64
	vel    []float64
}

// New returns a satellite from the two lines of its element set. The lines are kept unmodified and
// a copy, truncated to 130 characters, is handed to the kernel.
func New(designation, line1, line2 string, opts ...Option) (*Satellite, error) {
	cfg := config{gravity: WGS72, factory: NewValladoKernel}
	for _, opt := range opts {
		opt(&cfg)
	}
	k, err := cfg.factory(truncate(line1), truncate(line2), cfg.gravity)
	if err != nil {
		return nil, errors.Wrapf(err, "satellite %s", designation)
	}
	return &Satellite{Designation: designation, Line1: line1, Line2: line2, gravity: cfg.gravity, kernel: k}, nil
}

func truncate(line string) string {
	b := []byte(line)
	if len(b) > maxTLELength {
		b = b[:maxTLELength]
	}
	return string(b)
}

func (s *Satellite) String() string {
	return fmt.Sprintf("%s (%s)", s.Designation, s.gravity)
}

// SetEpoch propagates the satellite to the provided Julian day and caches its state. On error, the
// previous state is kept.
func (s *Satellite) SetEpoch(jd float64) error {
	pos, vel, err := s.kernel.Propagate(jd)
	if err != nil {
		return errors.Wrapf(err, "satellite %s", s.Designation)
	}
	s.mu.Lock()
	s.epoch, s.pos, s.vel = jd, pos, vel
	s.mu.Unlock()
	return nil
}

// Epoch returns the Julian day of the cached state, zero if SetEpoch never succeeded.
func (s *Satellite) Epoch() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Position returns the cached TEME position in km.
func (s *Satellite) Position() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.pos...)
}

// Velocity returns the cached TEME velocity in km/s.
func (s *Satellite) Velocity() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.vel...)
}

func (s *Satellite) state() (jd float64, pos, vel []float64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pos == nil {
		return 0, nil, nil, errors.Wrapf(ErrNoPropagation, "satellite %s has no epoch", s.Designation)
	}
	return s.epoch, s.pos, s.vel, nil
}

// SubPoint returns the geodetic latitude and longitude in degrees (longitude in [-180, 180)) and the
// altitude in km of the point below the satellite at the cached epoch.
func (s *Satellite) SubPoint() (lat, lon, alt float64, err error) {
	jd, pos, _, err := s.state()
	if err != nil {
		return 0, 0, 0, err
	}
	alt, _, ll := gosat.ECIToLLA(gosat.Vector3{X: pos[0], Y: pos[1], Z: pos[2]}, gosat.ThetaG_JD(jd))
	lat = ll.Latitude * r2d
	lon = math.Remainder(ll.Longitude*r2d, 360)
	if lon == 180 {
		lon = -180
	}
	return lat, lon, alt, nil
}
