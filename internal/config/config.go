// Package config loads runtime settings for the locator from the
// environment, optionally seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/signalsfoundry/geolocator/model"
)

// ErrInvalidSetting wraps malformed environment values.
var ErrInvalidSetting = errors.New("invalid setting")

// Sensor kinds selectable with LOCATOR_SENSOR.
const (
	SensorGNSS   = "gnss"
	SensorReplay = "replay"
	SensorNone   = "none"
)

// Config is the full runtime configuration of the locator command.
type Config struct {
	Acquisition model.AcquisitionConfig

	// Sensor selects the simulated sensor: gnss, replay or none.
	Sensor string
	// TracePath is the replay trace file, required for the replay sensor.
	TracePath string
	// Location is where the simulated receiver sits: a gazetteer name or
	// "lat,lng". Empty means the gazetteer default.
	Location string
	// ReferencePath overrides the embedded reference geography.
	ReferencePath string

	MetricsAddr string
	// TimeMode is realtime or accelerated.
	TimeMode string
	Tick     time.Duration
	// RunFor bounds the simulated run; zero runs until the session ends.
	RunFor time.Duration
	Seed   int64
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Acquisition: model.DefaultAcquisitionConfig(),
		Sensor:      SensorGNSS,
		TimeMode:    "accelerated",
		Tick:        100 * time.Millisecond,
		RunFor:      2 * time.Minute,
		Seed:        1,
	}
}

// Load reads the given .env files, ignoring missing ones, and then builds
// the configuration from the environment. Variables already set in the
// environment take precedence over .env values.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds the configuration from LOCATOR_* environment variables
// on top of Default.
func FromEnv() (Config, error) {
	cfg := Default()
	acq := &cfg.Acquisition

	var err error
	if acq.HighAccuracy, err = envBool("LOCATOR_HIGH_ACCURACY", acq.HighAccuracy); err != nil {
		return Config{}, err
	}
	if acq.Continuous, err = envBool("LOCATOR_CONTINUOUS", acq.Continuous); err != nil {
		return Config{}, err
	}
	if acq.Timeout, err = envDuration("LOCATOR_TIMEOUT", acq.Timeout); err != nil {
		return Config{}, err
	}
	if acq.MaxSampleAge, err = envDuration("LOCATOR_MAX_AGE", acq.MaxSampleAge); err != nil {
		return Config{}, err
	}
	if acq.DesiredAccuracyMeters, err = envFloat("LOCATOR_DESIRED_ACCURACY", acq.DesiredAccuracyMeters); err != nil {
		return Config{}, err
	}
	if acq.MaxAttempts, err = envInt("LOCATOR_MAX_ATTEMPTS", acq.MaxAttempts); err != nil {
		return Config{}, err
	}
	if err := acq.Validate(); err != nil {
		return Config{}, err
	}

	cfg.Sensor = strings.ToLower(envString("LOCATOR_SENSOR", cfg.Sensor))
	cfg.TracePath = envString("LOCATOR_TRACE", cfg.TracePath)
	cfg.Location = envString("LOCATOR_LOCATION", cfg.Location)
	cfg.ReferencePath = envString("LOCATOR_REFERENCE", cfg.ReferencePath)
	cfg.MetricsAddr = envString("LOCATOR_METRICS_ADDR", cfg.MetricsAddr)
	cfg.TimeMode = strings.ToLower(envString("LOCATOR_TIME_MODE", cfg.TimeMode))
	if cfg.Tick, err = envDuration("LOCATOR_TICK", cfg.Tick); err != nil {
		return Config{}, err
	}
	if cfg.RunFor, err = envDuration("LOCATOR_RUN_FOR", cfg.RunFor); err != nil {
		return Config{}, err
	}
	seed, err := envInt("LOCATOR_SEED", int(cfg.Seed))
	if err != nil {
		return Config{}, err
	}
	cfg.Seed = int64(seed)

	return cfg, cfg.Validate()
}

// Validate checks the settings that are not part of the acquisition config.
func (c Config) Validate() error {
	switch c.Sensor {
	case SensorGNSS, SensorNone:
	case SensorReplay:
		if c.TracePath == "" {
			return fmt.Errorf("%w: replay sensor needs a trace path", ErrInvalidSetting)
		}
	default:
		return fmt.Errorf("%w: unknown sensor %q", ErrInvalidSetting, c.Sensor)
	}
	switch c.TimeMode {
	case "realtime", "accelerated":
	default:
		return fmt.Errorf("%w: unknown time mode %q", ErrInvalidSetting, c.TimeMode)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("%w: tick must be positive", ErrInvalidSetting)
	}
	if c.RunFor < 0 {
		return fmt.Errorf("%w: run duration is negative", ErrInvalidSetting)
	}
	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envBool(key string, def bool) (bool, error) {
	raw := envString(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q: %v", ErrInvalidSetting, key, raw, err)
	}
	return v, nil
}

func envInt(key string, def int) (int, error) {
	raw := envString(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q: %v", ErrInvalidSetting, key, raw, err)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := envString(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q: %v", ErrInvalidSetting, key, raw, err)
	}
	return v, nil
}

// envDuration accepts Go duration strings or a bare number of milliseconds.
func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := envString(key, "")
	if raw == "" {
		return def, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q: %v", ErrInvalidSetting, key, raw, err)
	}
	return v, nil
}
