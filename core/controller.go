// Package core runs location acquisition sessions: it subscribes to a
// sensor, keeps the most accurate sample, classifies it and publishes the
// session state to a store.
package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/geolocator/geo"
	"github.com/signalsfoundry/geolocator/internal/logging"
	"github.com/signalsfoundry/geolocator/model"
	"github.com/signalsfoundry/geolocator/sensor"
	"github.com/signalsfoundry/geolocator/store"
	"github.com/signalsfoundry/geolocator/timectrl"
)

const tracerName = "github.com/signalsfoundry/geolocator/core"

// Session outcomes reported to metrics and spans besides error kinds.
const (
	OutcomeCompleted = "completed"
	OutcomeStopped   = "stopped"
	OutcomeReplaced  = "replaced"
	OutcomeReset     = "reset"
)

// AcquisitionMetricsRecorder receives acquisition lifecycle events.
// observability.AcquisitionCollector implements it.
type AcquisitionMetricsRecorder interface {
	SessionStarted(mode string)
	SessionFinished(outcome string)
	SampleEvaluated(decision string)
	SetBestAccuracy(meters float64)
	ObserveTimeToFix(d time.Duration)
}

// ControllerOption customises an AcquisitionController.
type ControllerOption func(*AcquisitionController)

// WithLogger sets the base logger; each session adds its session_id.
func WithLogger(l logging.Logger) ControllerOption {
	return func(c *AcquisitionController) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics wires a metrics recorder.
func WithMetrics(m AcquisitionMetricsRecorder) ControllerOption {
	return func(c *AcquisitionController) {
		c.metrics = m
	}
}

// WithClock sets the clock used for time-to-fix measurements.
func WithClock(clock timectrl.SimClock) ControllerOption {
	return func(c *AcquisitionController) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithTracer overrides the tracer, which otherwise comes from the global
// OpenTelemetry provider.
func WithTracer(t trace.Tracer) ControllerOption {
	return func(c *AcquisitionController) {
		if t != nil {
			c.tracer = t
		}
	}
}

// session is the single mutable record behind the published snapshots.
type session struct {
	id        string
	cfg       model.AcquisitionConfig
	status    model.Status
	attempts  int
	best      *model.Sample
	class     *model.Classification
	lastErr   *model.ErrorKind
	startedAt time.Time

	ctx       context.Context
	log       logging.Logger
	span      trace.Span
	stopWatch func() bool
}

// AcquisitionController owns one acquisition session at a time. All public
// methods are safe for concurrent use and never block on the sensor.
//
// Every sensor subscription is tagged with the epoch current when it was
// opened; callbacks carrying an older epoch, or arriving after the session
// left a live status, are dropped.
type AcquisitionController struct {
	sensor     sensor.Sensor
	classifier *geo.Classifier
	store      *store.Store
	log        logging.Logger
	metrics    AcquisitionMetricsRecorder
	clock      timectrl.SimClock
	tracer     trace.Tracer

	mu     sync.Mutex
	epoch  uint64
	sess   session
	cancel sensor.Cancel
}

// NewAcquisitionController wires a controller. The store receives an idle
// snapshot immediately.
func NewAcquisitionController(s sensor.Sensor, classifier *geo.Classifier, st *store.Store, opts ...ControllerOption) *AcquisitionController {
	if s == nil {
		s = sensor.Unavailable{}
	}
	if classifier == nil {
		classifier = geo.NewDefaultClassifier()
	}
	if st == nil {
		st = store.New()
	}
	c := &AcquisitionController{
		sensor:     s,
		classifier: classifier,
		store:      st,
		log:        logging.Noop(),
		clock:      timectrl.WallClock{},
		tracer:     otel.Tracer(tracerName),
		sess:       session{status: model.StatusIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sess.log = c.log

	c.mu.Lock()
	c.publishLocked()
	c.mu.Unlock()
	return c
}

// Store returns the store snapshots are published to.
func (c *AcquisitionController) Store() *store.Store { return c.store }

// Supported reports whether the sensor is available.
func (c *AcquisitionController) Supported() bool { return c.sensor.Supported() }

// Snapshot returns the latest published snapshot.
func (c *AcquisitionController) Snapshot() model.Snapshot { return c.store.Current() }

// Start begins a new session, replacing any live one. Zero-valued config
// fields take their defaults. Results are published to the store; a
// failure to start is reported as a Failed snapshot. Cancelling ctx stops
// the session it started.
func (c *AcquisitionController) Start(ctx context.Context, cfg model.AcquisitionConfig) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.ApplyDefaults()
	supported := c.sensor.Supported()

	c.mu.Lock()
	prev := c.releaseLocked(OutcomeReplaced)
	c.epoch++
	epoch := c.epoch

	sctx, log, id := logging.WithSessionLogger(ctx, c.log)
	sctx, span := c.tracer.Start(sctx, "locator.acquire", trace.WithAttributes(
		attribute.String("locator.session_id", id),
		attribute.Bool("locator.continuous", cfg.Continuous),
		attribute.Bool("locator.high_accuracy", cfg.HighAccuracy),
		attribute.Float64("locator.desired_accuracy_m", cfg.DesiredAccuracyMeters),
	))
	c.sess = session{
		id:        id,
		cfg:       cfg,
		status:    model.StatusAcquiring,
		startedAt: c.clock.Now(),
		ctx:       sctx,
		log:       log,
		span:      span,
	}
	if cfg.Continuous {
		c.sess.status = model.StatusWatching
	}
	c.recordStart(cfg)
	log.Info(sctx, "acquisition started",
		logging.Bool("continuous", cfg.Continuous),
		logging.Bool("high_accuracy", cfg.HighAccuracy),
		logging.Duration("timeout", cfg.Timeout),
		logging.Float64("desired_accuracy_m", cfg.DesiredAccuracyMeters),
		logging.Int("max_attempts", cfg.MaxAttempts),
	)

	var failure error
	switch {
	case !supported:
		failure = sensor.ErrUnsupported
	default:
		failure = cfg.Validate()
	}
	if failure != nil {
		c.failLocked(failure)
		c.mu.Unlock()
		release(prev)
		return
	}
	c.sess.stopWatch = context.AfterFunc(ctx, func() { c.stopEpoch(epoch) })
	c.publishLocked()
	c.mu.Unlock()
	release(prev)

	opts := sensor.OptionsFor(cfg)
	onSample := func(s model.Sample) { c.handleSample(epoch, s) }
	onError := func(err error) { c.handleError(epoch, err) }

	var (
		cancel sensor.Cancel
		err    error
	)
	if cfg.Continuous {
		cancel, err = c.sensor.Watch(opts, onSample, onError)
	} else {
		cancel, err = c.sensor.Current(opts, onSample, onError)
	}
	if err != nil {
		release(cancel)
		c.handleError(epoch, err)
		return
	}

	c.mu.Lock()
	if c.epoch != epoch || !c.sess.status.Live() {
		// The session ended while the sensor was being opened.
		c.mu.Unlock()
		release(cancel)
		return
	}
	c.cancel = cancel
	c.mu.Unlock()
}

// Stop releases a live subscription. The session becomes Completed, or
// Idle if no sample was accepted. Stop is a no-op when nothing is live.
func (c *AcquisitionController) Stop() {
	c.mu.Lock()
	cancel := c.stopLocked()
	c.mu.Unlock()
	release(cancel)
}

// Reset stops any live session and returns to an empty Idle snapshot.
func (c *AcquisitionController) Reset() {
	c.mu.Lock()
	cancel := c.releaseLocked(OutcomeReset)
	c.epoch++
	c.sess = session{status: model.StatusIdle, log: c.log}
	c.publishLocked()
	c.mu.Unlock()
	release(cancel)
}

// ClearError drops the error from the current snapshot without changing
// its status.
func (c *AcquisitionController) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.lastErr == nil {
		return
	}
	c.sess.lastErr = nil
	c.publishLocked()
}

func (c *AcquisitionController) stopEpoch(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	cancel := c.stopLocked()
	c.mu.Unlock()
	release(cancel)
}

func (c *AcquisitionController) stopLocked() sensor.Cancel {
	if !c.sess.status.Live() {
		return nil
	}
	if c.sess.best == nil {
		c.sess.status = model.StatusIdle
	} else {
		c.sess.status = model.StatusCompleted
	}
	cancel := c.takeCancelLocked()
	c.finishLocked(OutcomeStopped)
	c.publishLocked()
	return cancel
}

func (c *AcquisitionController) handleSample(epoch uint64, s model.Sample) {
	c.mu.Lock()
	if epoch != c.epoch || !c.sess.status.Live() {
		c.mu.Unlock()
		return
	}

	sess := &c.sess
	sess.attempts++
	d := Evaluate(sess.best, s, sess.cfg.DesiredAccuracyMeters)
	if c.metrics != nil {
		c.metrics.SampleEvaluated(d.Reason)
	}
	sess.log.Debug(sess.ctx, "sample evaluated",
		logging.Int("attempt", sess.attempts),
		logging.Float64("accuracy_m", s.AccuracyMeters),
		logging.String("decision", d.Reason),
	)
	if sess.span != nil {
		sess.span.AddEvent("sample", trace.WithAttributes(
			attribute.Int("locator.attempt", sess.attempts),
			attribute.Float64("locator.accuracy_m", s.AccuracyMeters),
			attribute.String("locator.decision", d.Reason),
		))
	}

	if d.Accept {
		if sess.best == nil && c.metrics != nil {
			c.metrics.ObserveTimeToFix(c.clock.Now().Sub(sess.startedAt))
		}
		best := s
		sess.best = &best
		class := c.classifier.Classify(s.Latitude, s.Longitude)
		sess.class = &class
		if c.metrics != nil {
			c.metrics.SetBestAccuracy(s.AccuracyMeters)
		}
	}

	var cancel sensor.Cancel
	if c.convergedLocked() {
		sess.status = model.StatusCompleted
		cancel = c.takeCancelLocked()
		c.finishLocked(OutcomeCompleted)
	}
	c.publishLocked()
	c.mu.Unlock()
	release(cancel)
}

// convergedLocked reports whether the session should stop listening. A
// single reading always completes the session.
func (c *AcquisitionController) convergedLocked() bool {
	sess := &c.sess
	if !sess.cfg.Continuous {
		return true
	}
	if sess.best != nil && sess.best.AccuracyMeters <= sess.cfg.DesiredAccuracyMeters {
		return true
	}
	return sess.attempts >= sess.cfg.MaxAttempts
}

func (c *AcquisitionController) handleError(epoch uint64, err error) {
	c.mu.Lock()
	if epoch != c.epoch || !c.sess.status.Live() {
		c.mu.Unlock()
		return
	}
	cancel := c.takeCancelLocked()
	c.failLocked(err)
	c.mu.Unlock()
	release(cancel)
}

// failLocked moves the session to Failed with err mapped to an ErrorKind.
func (c *AcquisitionController) failLocked(err error) {
	kind := classifyError(err)
	c.sess.status = model.StatusFailed
	c.sess.lastErr = &kind
	c.sess.log.Warn(c.sess.ctx, "acquisition failed",
		logging.String("kind", kind.String()),
		logging.Err(err),
	)
	if c.sess.span != nil {
		c.sess.span.RecordError(err)
		c.sess.span.SetStatus(codes.Error, kind.String())
	}
	c.finishLocked(kind.String())
	c.publishLocked()
}

// releaseLocked ends a live session with outcome and returns its cancel.
func (c *AcquisitionController) releaseLocked(outcome string) sensor.Cancel {
	if !c.sess.status.Live() {
		return nil
	}
	cancel := c.takeCancelLocked()
	c.finishLocked(outcome)
	return cancel
}

func (c *AcquisitionController) takeCancelLocked() sensor.Cancel {
	cancel := c.cancel
	c.cancel = nil
	return cancel
}

// finishLocked closes the session's span and context watch and records the
// outcome. It runs at most once per session.
func (c *AcquisitionController) finishLocked(outcome string) {
	sess := &c.sess
	if sess.stopWatch != nil {
		sess.stopWatch()
		sess.stopWatch = nil
	}
	if sess.span == nil {
		return
	}
	if c.metrics != nil {
		c.metrics.SessionFinished(outcome)
	}
	fields := []logging.Field{
		logging.String("outcome", outcome),
		logging.Int("attempts", sess.attempts),
	}
	if sess.best != nil {
		fields = append(fields, logging.Float64("best_accuracy_m", sess.best.AccuracyMeters))
	}
	sess.log.Info(sess.ctx, "acquisition finished", fields...)

	sess.span.SetAttributes(
		attribute.String("locator.outcome", outcome),
		attribute.Int("locator.attempts", sess.attempts),
	)
	sess.span.End()
	sess.span = nil
}

func (c *AcquisitionController) recordStart(cfg model.AcquisitionConfig) {
	if c.metrics == nil {
		return
	}
	mode := "single"
	if cfg.Continuous {
		mode = "continuous"
	}
	c.metrics.SessionStarted(mode)
}

func (c *AcquisitionController) publishLocked() {
	sess := &c.sess
	snap := model.Snapshot{
		SessionID:      sess.id,
		Status:         sess.status,
		Attempts:       sess.attempts,
		Classification: sess.class,
		Error:          sess.lastErr,
		Loading:        sess.status.Live(),
		Watching:       sess.status == model.StatusWatching,
	}
	if sess.best != nil {
		coords := sess.best.Coordinates()
		accuracy := sess.best.AccuracyMeters
		capturedAt := sess.best.CapturedAt
		snap.Coordinates = &coords
		snap.AccuracyMeters = &accuracy
		snap.CapturedAt = &capturedAt
	}
	c.store.Publish(snap)
}

// classifyError maps sensor errors onto the engine's error taxonomy.
func classifyError(err error) model.ErrorKind {
	var perr *sensor.PositionError
	switch {
	case errors.Is(err, sensor.ErrUnsupported):
		return model.ErrorUnsupported
	case errors.As(err, &perr):
		switch perr.Code {
		case sensor.CodePermissionDenied:
			return model.ErrorPermissionDenied
		case sensor.CodePositionUnavailable:
			return model.ErrorPositionUnavailable
		case sensor.CodeTimeout:
			return model.ErrorTimeout
		}
	}
	return model.ErrorUnknown
}

func release(cancel sensor.Cancel) {
	if cancel != nil {
		cancel()
	}
}
