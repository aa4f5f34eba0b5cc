package gnss

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/signalsfoundry/geolocator/geo"
	"github.com/signalsfoundry/geolocator/internal/logging"
	"github.com/signalsfoundry/geolocator/internal/scheduler"
	"github.com/signalsfoundry/geolocator/model"
	"github.com/signalsfoundry/geolocator/sensor"
)

const (
	minSatellites   = 4
	metersPerDegree = 111320.0
	accuracyJitter  = 0.1
	maxJitterSigmas = 2.0
)

// ReceiverConfig describes the simulated receiver. Zero fields take the
// defaults from ApplyDefaults.
type ReceiverConfig struct {
	// Position is the true location of the device.
	Position model.Coordinates

	FixInterval   time.Duration
	ElevationMask float64 // degrees

	// UERE is the user equivalent range error in metres. The reported
	// accuracy is UERE times a dilution term times a warm-up factor that
	// decays from ColdStartFactor towards 1 with time constant Convergence.
	UERE            float64
	ColdStartFactor float64
	Convergence     time.Duration

	// NetworkAccuracy and NetworkLatency describe the coarse fix returned
	// when high accuracy is not requested.
	NetworkAccuracy float64
	NetworkLatency  time.Duration

	// WarmRetention is how long the receiver stays warm after its last use.
	WarmRetention time.Duration

	Seed int64
}

// ApplyDefaults fills zero-valued fields.
func (c ReceiverConfig) ApplyDefaults() ReceiverConfig {
	if c.FixInterval == 0 {
		c.FixInterval = time.Second
	}
	if c.ElevationMask == 0 {
		c.ElevationMask = 10
	}
	if c.UERE == 0 {
		c.UERE = 5
	}
	if c.ColdStartFactor == 0 {
		c.ColdStartFactor = 40
	}
	if c.Convergence == 0 {
		c.Convergence = 8 * time.Second
	}
	if c.NetworkAccuracy == 0 {
		c.NetworkAccuracy = 1500
	}
	if c.NetworkLatency == 0 {
		c.NetworkLatency = 500 * time.Millisecond
	}
	if c.WarmRetention == 0 {
		c.WarmRetention = 10 * time.Minute
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
	return c
}

// Receiver is a sensor.Sensor backed by a simulated constellation.
type Receiver struct {
	sched   scheduler.EventScheduler
	constel *Constellation
	cfg     ReceiverConfig
	log     logging.Logger

	mu         sync.Mutex
	rng        *rand.Rand
	coldStart  time.Time
	lastActive time.Time
	lastFix    *model.Sample
}

// Option customises a Receiver.
type Option func(*Receiver)

// WithLogger attaches a logger for fix diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(r *Receiver) {
		if l != nil {
			r.log = l
		}
	}
}

// NewReceiver creates a receiver that schedules its fixes on sched.
func NewReceiver(sched scheduler.EventScheduler, constel *Constellation, cfg ReceiverConfig, opts ...Option) *Receiver {
	cfg = cfg.ApplyDefaults()
	r := &Receiver{
		sched:   sched,
		constel: constel,
		cfg:     cfg,
		log:     logging.Noop(),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Supported always reports true.
func (r *Receiver) Supported() bool { return true }

// Current delivers the first fix, or the last fix when it is younger than
// opts.MaxAge.
func (r *Receiver) Current(opts sensor.Options, onSample func(model.Sample), onError func(error)) (sensor.Cancel, error) {
	return r.open(opts, true, onSample, onError)
}

// Watch delivers a fix every FixInterval while the receiver has one.
func (r *Receiver) Watch(opts sensor.Options, onSample func(model.Sample), onError func(error)) (sensor.Cancel, error) {
	return r.open(opts, false, onSample, onError)
}

func (r *Receiver) open(opts sensor.Options, once bool, onSample func(model.Sample), onError func(error)) (sensor.Cancel, error) {
	sub := sensor.NewSubscription(r.sched.Cancel)
	now := r.sched.Now()
	r.powerOn(now)

	if once && opts.MaxAge > 0 {
		if cached, ok := r.freshFix(opts.MaxAge, now); ok {
			sub.Track(r.at(now), func() {
				if sub.Deliver(true) {
					onSample(cached)
				}
			})
			return sub.Close, nil
		}
	}

	interval := r.cfg.FixInterval
	first := interval
	if !opts.HighAccuracy {
		first = r.cfg.NetworkLatency
	}

	var tick func()
	tick = func() {
		at := r.sched.Now()
		sample, sats, ok := r.fix(at, opts.HighAccuracy)
		if ok {
			if !sub.Deliver(once) {
				return
			}
			onSample(sample)
			if once {
				return
			}
		} else {
			r.log.Debug(context.Background(), "gnss receiver has no fix",
				logging.Int("visible_satellites", sats),
			)
		}
		if !sub.Closed() {
			sub.Track(r.at(at.Add(interval)), tick)
		}
	}
	sub.Track(r.at(now.Add(first)), tick)

	if opts.Timeout > 0 {
		sub.SetTimeout(r.sched.Schedule(now.Add(opts.Timeout), func() {
			if !sub.Timeout() {
				return
			}
			onError(&sensor.PositionError{Code: sensor.CodeTimeout, Message: "no fix within " + opts.Timeout.String()})
		}))
	}

	return sub.Close, nil
}

func (r *Receiver) at(t time.Time) func(func()) string {
	return func(f func()) string { return r.sched.Schedule(t, f) }
}

// powerOn restarts the warm-up clock when the receiver has been idle for
// longer than WarmRetention.
func (r *Receiver) powerOn(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastActive.IsZero() || now.Sub(r.lastActive) > r.cfg.WarmRetention {
		r.coldStart = now
	}
	r.lastActive = now
}

func (r *Receiver) freshFix(maxAge time.Duration, now time.Time) (model.Sample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastFix == nil || now.Sub(r.lastFix.CapturedAt) > maxAge {
		return model.Sample{}, false
	}
	return *r.lastFix, true
}

// fix computes a reading at now. It reports the visible satellite count
// and false when there are too few satellites for a position.
func (r *Receiver) fix(now time.Time, highAccuracy bool) (model.Sample, int, bool) {
	pos := r.cfg.Position
	sats := 0
	accuracy := r.cfg.NetworkAccuracy

	if highAccuracy {
		observer := geo.ECEF(pos.Latitude, pos.Longitude, 0)
		sats = r.constel.Visible(observer, now, r.cfg.ElevationMask)
		if sats < minSatellites {
			return model.Sample{}, sats, false
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if highAccuracy {
		dilution := 1 + 4/float64(sats)
		elapsed := now.Sub(r.coldStart).Seconds()
		warm := 1 + (r.cfg.ColdStartFactor-1)*math.Exp(-elapsed/r.cfg.Convergence.Seconds())
		accuracy = r.cfg.UERE * dilution * warm * (1 + accuracyJitter*r.gaussian())
	}

	north := r.gaussian() * accuracy / 2
	east := r.gaussian() * accuracy / 2
	lat := pos.Latitude + north/metersPerDegree
	lng := pos.Longitude + east/(metersPerDegree*math.Cos(pos.Latitude*math.Pi/180))

	sample := model.Sample{
		Latitude:       lat,
		Longitude:      lng,
		AccuracyMeters: math.Round(accuracy*10) / 10,
		CapturedAt:     now,
	}
	r.lastFix = &sample
	r.lastActive = now
	return sample, sats, true
}

// gaussian draws a standard normal value clamped to maxJitterSigmas.
// Callers hold r.mu.
func (r *Receiver) gaussian() float64 {
	v := r.rng.NormFloat64()
	return math.Max(-maxJitterSigmas, math.Min(maxJitterSigmas, v))
}
