package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by AcquisitionConfig.Validate.
var ErrInvalidConfig = errors.New("invalid acquisition config")

// Defaults used when an AcquisitionConfig field is left at its zero value.
const (
	DefaultTimeout               = 15 * time.Second
	DefaultMaxSampleAge          = 60 * time.Second
	DefaultDesiredAccuracyMeters = 100.0
	DefaultMaxAttempts           = 3
)

// AcquisitionConfig holds the options recognised by a single acquisition.
type AcquisitionConfig struct {
	// HighAccuracy asks the sensor for its most precise mode (GPS rather
	// than network positioning). ApplyDefaults leaves it untouched; start
	// from DefaultAcquisitionConfig to get it enabled.
	HighAccuracy bool

	// Timeout is handed to the sensor; no reading within it fails the
	// session with ErrorTimeout.
	Timeout time.Duration
	// MaxSampleAge lets the sensor answer with a cached reading no older
	// than this.
	MaxSampleAge time.Duration

	DesiredAccuracyMeters float64
	// MaxAttempts caps the samples observed in continuous mode. It has no
	// effect on a single reading.
	MaxAttempts int

	// Continuous opens a standing watch instead of a single reading.
	Continuous bool
}

// DefaultAcquisitionConfig returns the configuration used by the emergency
// form: high accuracy, 15 s timeout, 60 s cache, 100 m target, 3 attempts.
func DefaultAcquisitionConfig() AcquisitionConfig {
	return AcquisitionConfig{
		HighAccuracy:          true,
		Timeout:               DefaultTimeout,
		MaxSampleAge:          DefaultMaxSampleAge,
		DesiredAccuracyMeters: DefaultDesiredAccuracyMeters,
		MaxAttempts:           DefaultMaxAttempts,
	}
}

// ApplyDefaults fills zero-valued durations, threshold and attempt cap.
func (c AcquisitionConfig) ApplyDefaults() AcquisitionConfig {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxSampleAge == 0 {
		c.MaxSampleAge = DefaultMaxSampleAge
	}
	if c.DesiredAccuracyMeters == 0 {
		c.DesiredAccuracyMeters = DefaultDesiredAccuracyMeters
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// Validate rejects negative durations, thresholds and attempt caps.
func (c AcquisitionConfig) Validate() error {
	switch {
	case c.Timeout < 0:
		return fmt.Errorf("%w: timeout %s is negative", ErrInvalidConfig, c.Timeout)
	case c.MaxSampleAge < 0:
		return fmt.Errorf("%w: max sample age %s is negative", ErrInvalidConfig, c.MaxSampleAge)
	case c.DesiredAccuracyMeters < 0:
		return fmt.Errorf("%w: desired accuracy %.1f m is negative", ErrInvalidConfig, c.DesiredAccuracyMeters)
	case c.MaxAttempts < 0:
		return fmt.Errorf("%w: max attempts %d is negative", ErrInvalidConfig, c.MaxAttempts)
	}
	return nil
}
