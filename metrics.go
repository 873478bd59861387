package skycore

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors of the position pipeline. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	TickDuration      prometheus.Histogram
	Bodies            prometheus.Gauge
	LayerFailures     *prometheus.CounterVec
	SkippedRecords    prometheus.Counter
	PropagationErrors *prometheus.CounterVec
}

// NewMetrics registers the collectors against the provided registerer. Collectors which are
// already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}
	m := &Metrics{}
	var err error
	if m.TickDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skycore_tick_duration_seconds",
		Help:    "Duration of a full position update in seconds.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})); err != nil {
		return nil, err
	}
	if m.Bodies, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skycore_catalogue_bodies",
		Help: "Current number of bodies in the catalogue.",
	})); err != nil {
		return nil, err
	}
	if m.LayerFailures, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skycore_catalogue_layer_failures_total",
		Help: "Catalogue layers discarded during a load, labeled by layer.",
	}, []string{"layer"})); err != nil {
		return nil, err
	}
	if m.SkippedRecords, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skycore_catalogue_skipped_records_total",
		Help: "Catalogue records skipped during a load.",
	})); err != nil {
		return nil, err
	}
	if m.PropagationErrors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skycore_satellite_propagation_errors_total",
		Help: "Satellite propagations which failed, labeled by satellite.",
	}, []string{"satellite"})); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers c or returns the collector already registered under the same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			return c, errors.Errorf("collector already registered with incompatible type: %T", are.ExistingCollector)
		}
		return c, errors.Wrap(err, "could not register collector")
	}
	return c, nil
}

func (m *Metrics) observeTick(d time.Duration, bodies int) {
	if m == nil {
		return
	}
	m.TickDuration.Observe(d.Seconds())
	m.Bodies.Set(float64(bodies))
}

func (m *Metrics) layerFailed(layer string) {
	if m == nil {
		return
	}
	m.LayerFailures.WithLabelValues(layer).Inc()
}

func (m *Metrics) catalogueLoaded(bodies, skipped int) {
	if m == nil {
		return
	}
	m.Bodies.Set(float64(bodies))
	m.SkippedRecords.Add(float64(skipped))
}

// PropagationFailed counts a failed satellite propagation.
func (m *Metrics) PropagationFailed(satellite string) {
	if m == nil {
		return
	}
	m.PropagationErrors.WithLabelValues(satellite).Inc()
}
