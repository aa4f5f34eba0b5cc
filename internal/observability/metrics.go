package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AcquisitionCollector bundles Prometheus metrics for location acquisition
// sessions. It satisfies core.AcquisitionMetricsRecorder.
type AcquisitionCollector struct {
	gatherer prometheus.Gatherer

	SessionsStarted  *prometheus.CounterVec
	SessionsFinished *prometheus.CounterVec
	Samples          *prometheus.CounterVec
	BestAccuracy     prometheus.Gauge
	TimeToFix        prometheus.Histogram
}

// NewAcquisitionCollector registers acquisition metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewAcquisitionCollector(reg prometheus.Registerer) (*AcquisitionCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	started, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locator_sessions_started_total",
		Help: "Acquisition sessions started, labeled by mode (single or continuous).",
	}, []string{"mode"}), "locator_sessions_started_total")
	if err != nil {
		return nil, err
	}

	finished, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locator_sessions_finished_total",
		Help: "Acquisition sessions that ended, labeled by outcome.",
	}, []string{"outcome"}), "locator_sessions_finished_total")
	if err != nil {
		return nil, err
	}

	samples, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locator_samples_total",
		Help: "Sensor samples evaluated, labeled by the evaluator decision.",
	}, []string{"decision"}), "locator_samples_total")
	if err != nil {
		return nil, err
	}

	best, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "locator_best_accuracy_meters",
		Help: "Accuracy radius of the best sample in the current session.",
	}), "locator_best_accuracy_meters")
	if err != nil {
		return nil, err
	}

	ttf, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "locator_time_to_fix_seconds",
		Help:    "Time from session start to the first accepted sample.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30, 60},
	}), "locator_time_to_fix_seconds")
	if err != nil {
		return nil, err
	}

	return &AcquisitionCollector{
		gatherer:         gatherer,
		SessionsStarted:  started,
		SessionsFinished: finished,
		Samples:          samples,
		BestAccuracy:     best,
		TimeToFix:        ttf,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *AcquisitionCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SessionStarted counts a session opened in the given mode (single or continuous).
func (c *AcquisitionCollector) SessionStarted(mode string) {
	if c == nil || c.SessionsStarted == nil {
		return
	}
	c.SessionsStarted.WithLabelValues(mode).Inc()
}

// SessionFinished counts a session ending with the given outcome.
func (c *AcquisitionCollector) SessionFinished(outcome string) {
	if c == nil || c.SessionsFinished == nil {
		return
	}
	c.SessionsFinished.WithLabelValues(outcome).Inc()
}

// SampleEvaluated counts one sample by its evaluator decision.
func (c *AcquisitionCollector) SampleEvaluated(decision string) {
	if c == nil || c.Samples == nil {
		return
	}
	c.Samples.WithLabelValues(decision).Inc()
}

// SetBestAccuracy records the accuracy radius of the current best sample.
func (c *AcquisitionCollector) SetBestAccuracy(meters float64) {
	if c == nil || c.BestAccuracy == nil {
		return
	}
	c.BestAccuracy.Set(meters)
}

// ObserveTimeToFix records the time from session start to the first accepted sample.
func (c *AcquisitionCollector) ObserveTimeToFix(d time.Duration) {
	if c == nil || c.TimeToFix == nil {
		return
	}
	c.TimeToFix.Observe(d.Seconds())
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
