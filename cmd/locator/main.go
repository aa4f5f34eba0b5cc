package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/geolocator/core"
	"github.com/signalsfoundry/geolocator/geo"
	"github.com/signalsfoundry/geolocator/internal/config"
	"github.com/signalsfoundry/geolocator/internal/logging"
	"github.com/signalsfoundry/geolocator/internal/observability"
	"github.com/signalsfoundry/geolocator/internal/scheduler"
	"github.com/signalsfoundry/geolocator/model"
	"github.com/signalsfoundry/geolocator/sensor"
	"github.com/signalsfoundry/geolocator/sensor/gnss"
	"github.com/signalsfoundry/geolocator/sensor/replay"
	"github.com/signalsfoundry/geolocator/store"
	"github.com/signalsfoundry/geolocator/timectrl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, logging.NewFromEnv()))
}

// run executes one acquisition session and streams every published
// snapshot to out as JSON lines. It returns the process exit code.
func run(ctx context.Context, args []string, out io.Writer, log logging.Logger) int {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.Err(err))
		return 2
	}
	if cfg, err = parseFlags(cfg, args); err != nil {
		log.Error(ctx, "invalid arguments", logging.Err(err))
		return 2
	}

	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.Sensor = cfg.Sensor
	tracingCfg.TimeMode = cfg.TimeMode
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		return 1
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewAcquisitionCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		return 1
	}
	if metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log); metricsSrv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	classifier, err := loadClassifier(cfg.ReferencePath)
	if err != nil {
		log.Error(ctx, "failed to load reference data", logging.String("path", cfg.ReferencePath), logging.Err(err))
		return 1
	}
	where, err := classifier.Resolve(cfg.Location)
	if err != nil {
		log.Error(ctx, "failed to resolve location", logging.String("location", cfg.Location), logging.Err(err))
		return 1
	}
	if where.Fallback && cfg.Location != "" {
		log.Warn(ctx, "unknown location; using default place",
			logging.String("location", cfg.Location),
			logging.String("place", where.Place),
		)
	}

	mode := timectrl.RealTime
	if cfg.TimeMode == "accelerated" {
		mode = timectrl.Accelerated
	}
	start := time.Now().UTC()
	tc := timectrl.NewTimeController(start, cfg.Tick, mode)
	sched := scheduler.New(tc)
	tc.AddListener(func(time.Time) { sched.RunDue() })

	sens, err := buildSensor(cfg, sched, where.Coordinates, start, log)
	if err != nil {
		log.Error(ctx, "failed to build sensor", logging.String("sensor", cfg.Sensor), logging.Err(err))
		return 1
	}

	st := store.New()
	defer st.Close()
	ctrl := core.NewAcquisitionController(sens, classifier, st,
		core.WithLogger(log),
		core.WithMetrics(collector),
		core.WithClock(tc),
		core.WithTracer(observability.Tracer()),
	)

	snapshots, unsubscribe := st.Subscribe(64)
	defer unsubscribe()

	log.Info(ctx, "starting acquisition",
		logging.String("sensor", cfg.Sensor),
		logging.String("location", where.Coordinates.String()),
		logging.String("time_mode", mode.String()),
		logging.Duration("run_for", cfg.RunFor),
	)
	ctrl.Start(ctx, cfg.Acquisition)

	halt := make(chan struct{})
	done := tc.Start(cfg.RunFor, halt)
	defer func() {
		close(halt)
		<-done
	}()

	final := stream(ctx, snapshots, done, ctrl, out, log)
	report(ctx, final, log)
	if final.Status == model.StatusFailed {
		return 1
	}
	return 0
}

// stream writes snapshots until the session leaves a live status, the
// simulated run ends or ctx is cancelled, and returns the last snapshot.
func stream(ctx context.Context, snapshots <-chan model.Snapshot, done <-chan struct{}, ctrl *core.AcquisitionController, out io.Writer, log logging.Logger) model.Snapshot {
	enc := json.NewEncoder(out)
	started := false
	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return ctrl.Snapshot()
			}
			if err := enc.Encode(snap); err != nil {
				log.Warn(ctx, "failed to write snapshot", logging.Err(err))
			}
			if snap.Status.Live() {
				started = true
				continue
			}
			if started || snap.Status.Terminal() {
				return snap
			}
		case <-done:
			log.Info(ctx, "simulated run finished before the session ended")
			ctrl.Stop()
			return drain(snapshots, enc, ctrl)
		case <-ctx.Done():
			ctrl.Stop()
			return drain(snapshots, enc, ctrl)
		}
	}
}

func drain(snapshots <-chan model.Snapshot, enc *json.Encoder, ctrl *core.AcquisitionController) model.Snapshot {
	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return ctrl.Snapshot()
			}
			_ = enc.Encode(snap)
		default:
			return ctrl.Snapshot()
		}
	}
}

func report(ctx context.Context, snap model.Snapshot, log logging.Logger) {
	fields := []logging.Field{
		logging.String("status", snap.Status.String()),
		logging.Int("attempts", snap.Attempts),
	}
	if snap.Error != nil {
		fields = append(fields, logging.String("error", snap.Error.String()))
	}
	if snap.Coordinates != nil {
		fields = append(fields,
			logging.String("location", snap.LocationString()),
			logging.Float64("accuracy_m", *snap.AccuracyMeters),
			logging.String("accuracy_grade", string(snap.AccuracyGrade())),
		)
	}
	if c := snap.Classification; c != nil && c.InTerritory {
		fields = append(fields,
			logging.String("region", string(*c.Region)),
			logging.String("nearest_place", *c.NearestPlace),
			logging.Float64("distance_km", *c.DistanceToNearestKm),
		)
	}
	log.Info(ctx, "acquisition result", fields...)
}

func parseFlags(cfg config.Config, args []string) (config.Config, error) {
	fs := flag.NewFlagSet("locator", flag.ContinueOnError)
	acq := &cfg.Acquisition

	fs.StringVar(&cfg.Sensor, "sensor", cfg.Sensor, "simulated sensor: gnss, replay or none")
	fs.StringVar(&cfg.TracePath, "trace", cfg.TracePath, "replay trace file (YAML or JSON)")
	fs.StringVar(&cfg.Location, "location", cfg.Location, `device location: gazetteer name or "lat,lng"`)
	fs.StringVar(&cfg.ReferencePath, "reference", cfg.ReferencePath, "reference geography YAML overriding the embedded data")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "HTTP address for Prometheus /metrics; empty disables")
	fs.StringVar(&cfg.TimeMode, "time-mode", cfg.TimeMode, "realtime or accelerated")
	fs.DurationVar(&cfg.Tick, "tick", cfg.Tick, "simulation tick")
	fs.DurationVar(&cfg.RunFor, "run-for", cfg.RunFor, "maximum simulated run time; 0 runs until the session ends")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for the GNSS receiver")

	fs.BoolVar(&acq.HighAccuracy, "high-accuracy", acq.HighAccuracy, "request the most precise sensor mode")
	fs.BoolVar(&acq.Continuous, "continuous", acq.Continuous, "watch until convergence instead of a single reading")
	fs.DurationVar(&acq.Timeout, "timeout", acq.Timeout, "sensor timeout")
	fs.DurationVar(&acq.MaxSampleAge, "max-age", acq.MaxSampleAge, "maximum age of a cached reading")
	fs.Float64Var(&acq.DesiredAccuracyMeters, "desired-accuracy", acq.DesiredAccuracyMeters, "target accuracy radius in metres")
	fs.IntVar(&acq.MaxAttempts, "max-attempts", acq.MaxAttempts, "maximum samples in continuous mode")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if err := acq.Validate(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func loadClassifier(path string) (*geo.Classifier, error) {
	if path == "" {
		return geo.NewDefaultClassifier(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := geo.LoadReferenceData(f)
	if err != nil {
		return nil, err
	}
	return geo.NewClassifier(data)
}

func buildSensor(cfg config.Config, sched scheduler.EventScheduler, where model.Coordinates, start time.Time, log logging.Logger) (sensor.Sensor, error) {
	switch cfg.Sensor {
	case config.SensorReplay:
		trace, err := replay.LoadTraceFile(cfg.TracePath)
		if err != nil {
			return nil, err
		}
		if trace.Origin == (model.Coordinates{}) {
			trace.Origin = where
		}
		return replay.New(sched, trace, replay.WithLogger(log)), nil
	case config.SensorNone:
		return sensor.Unavailable{}, nil
	case config.SensorGNSS:
		rx := gnss.NewReceiver(sched, gnss.NewConstellation(start), gnss.ReceiverConfig{
			Position: where,
			Seed:     cfg.Seed,
		}, gnss.WithLogger(log))
		return rx, nil
	default:
		return nil, fmt.Errorf("unknown sensor %q", cfg.Sensor)
	}
}

func serveMetrics(addr string, collector *observability.AcquisitionCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
