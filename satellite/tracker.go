package satellite

import (
	"bufio"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/chengxinlun/skycore"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Tracker holds a set of satellites keyed by designation and propagates them together.
type Tracker struct {
	mu      sync.RWMutex
	sats    map[string]*Satellite
	opts    []Option
	logger  log.Logger
	metrics *skycore.Metrics
}

// NewTracker returns an empty tracker. The options are applied to every satellite added.
func NewTracker(logger log.Logger, metrics *skycore.Metrics, opts ...Option) *Tracker {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Tracker{
		sats:    make(map[string]*Satellite),
		opts:    opts,
		logger:  log.With(logger, "subsys", "satellite"),
		metrics: metrics,
	}
}

// Add creates a satellite, replacing any satellite with the same designation.
func (t *Tracker) Add(designation, line1, line2 string) error {
	sat, err := New(designation, line1, line2, t.opts...)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sats[designation] = sat
	return nil
}

// Load reads element sets in the three line format (name, line 1, line 2) and adds them. Invalid
// element sets are logged and skipped. It returns the number of satellites added.
func (t *Tracker) Load(r io.Reader) (int, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), " \r"); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.Wrap(err, "could not read element sets")
	}
	added := 0
	for i := 0; i+2 < len(lines); i += 3 {
		name := strings.TrimSpace(lines[i])
		if err := t.Add(name, lines[i+1], lines[i+2]); err != nil {
			level.Warn(t.logger).Log("msg", "skipping element set", "satellite", name, "err", err)
			continue
		}
		added++
	}
	return added, nil
}

// Remove deletes a satellite, and returns whether it was present.
func (t *Tracker) Remove(designation string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sats[designation]
	delete(t.sats, designation)
	return ok
}

// Get returns the satellite with the provided designation.
func (t *Tracker) Get(designation string) (*Satellite, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sat, ok := t.sats[designation]
	return sat, ok
}

// Len returns the number of satellites.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sats)
}

// Update propagates every satellite to the provided Julian day. Failures are returned per
// designation and the failed satellites keep their previous state.
func (t *Tracker) Update(jd float64) map[string]error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var failed map[string]error
	for name, sat := range t.sats {
		if err := sat.SetEpoch(jd); err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[name] = err
			t.metrics.PropagationFailed(name)
			level.Debug(t.logger).Log("msg", "propagation failed", "satellite", name, "jd", jd, "err", err)
		}
	}
	return failed
}

// Each calls fn for every satellite in designation order, stopping at the first false.
func (t *Tracker) Each(fn func(*Satellite) bool) {
	t.mu.RLock()
	sats := make([]*Satellite, 0, len(t.sats))
	for _, sat := range t.sats {
		sats = append(sats, sat)
	}
	t.mu.RUnlock()
	sort.Slice(sats, func(i, j int) bool { return sats[i].Designation < sats[j].Designation })
	for _, sat := range sats {
		if !fn(sat) {
			return
		}
	}
}
