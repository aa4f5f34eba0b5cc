package replay

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/geolocator/internal/logging"
	"github.com/signalsfoundry/geolocator/internal/scheduler"
	"github.com/signalsfoundry/geolocator/model"
	"github.com/signalsfoundry/geolocator/sensor"
)

// Sensor plays a Trace back on an EventScheduler. Steps are consumed in
// order across subscriptions: a second request continues where the
// previous one stopped.
type Sensor struct {
	sched scheduler.EventScheduler
	trace *Trace
	log   logging.Logger

	mu     sync.Mutex
	cursor int
	cached *model.Sample
}

// Option customises a replay Sensor.
type Option func(*Sensor)

// WithLogger attaches a logger for delivery diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(s *Sensor) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a replay sensor.
func New(sched scheduler.EventScheduler, trace *Trace, opts ...Option) *Sensor {
	s := &Sensor{
		sched: sched,
		trace: trace,
		log:   logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Supported reports false for traces marked unsupported.
func (s *Sensor) Supported() bool {
	return !s.trace.Unsupported
}

// Current delivers the next scripted step, or a cached reading when one is
// younger than opts.MaxAge.
func (s *Sensor) Current(opts sensor.Options, onSample func(model.Sample), onError func(error)) (sensor.Cancel, error) {
	return s.open(opts, true, onSample, onError)
}

// Watch delivers the remaining scripted steps until cancelled or an error
// step is reached.
func (s *Sensor) Watch(opts sensor.Options, onSample func(model.Sample), onError func(error)) (sensor.Cancel, error) {
	return s.open(opts, false, onSample, onError)
}

// Remaining returns how many steps have not been delivered yet.
func (s *Sensor) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trace.Steps) - s.cursor
}

func (s *Sensor) open(opts sensor.Options, once bool, onSample func(model.Sample), onError func(error)) (sensor.Cancel, error) {
	if !s.Supported() {
		return nil, sensor.ErrUnsupported
	}

	sub := sensor.NewSubscription(s.sched.Cancel)
	now := s.sched.Now()

	if once && opts.MaxAge > 0 {
		if cached, ok := s.freshCached(opts.MaxAge, now); ok {
			sub.Add(s.sched.Schedule(now, func() {
				if !sub.Deliver(true) {
					return
				}
				onSample(cached)
			}))
			return sub.Close, nil
		}
	}

	s.mu.Lock()
	steps := append([]Step(nil), s.trace.Steps[s.cursor:]...)
	s.mu.Unlock()

	at := now
	for _, step := range steps {
		at = at.Add(step.After)
		sub.Add(s.sched.Schedule(at, func() {
			if step.Error != "" {
				if !sub.Fail() {
					return
				}
				s.advance()
				onError(stepError(step))
				return
			}
			if !sub.Deliver(once) {
				return
			}
			s.advance()
			sample := s.trace.sample(step, s.sched.Now())
			s.setCached(sample)
			onSample(sample)
		}))
		if once {
			break
		}
	}

	if opts.Timeout > 0 {
		sub.SetTimeout(s.sched.Schedule(now.Add(opts.Timeout), func() {
			if !sub.Timeout() {
				return
			}
			s.log.Debug(context.Background(), "replay sensor timed out",
				logging.String("trace", s.trace.Name),
				logging.String("timeout", opts.Timeout.String()),
			)
			onError(&sensor.PositionError{Code: sensor.CodeTimeout, Message: "no reading within " + opts.Timeout.String()})
		}))
	}

	return sub.Close, nil
}

func (s *Sensor) freshCached(maxAge time.Duration, now time.Time) (model.Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil || now.Sub(s.cached.CapturedAt) > maxAge {
		return model.Sample{}, false
	}
	return *s.cached, true
}

func (s *Sensor) advance() {
	s.mu.Lock()
	if s.cursor < len(s.trace.Steps) {
		s.cursor++
	}
	s.mu.Unlock()
}

func (s *Sensor) setCached(sample model.Sample) {
	s.mu.Lock()
	s.cached = &sample
	s.mu.Unlock()
}
