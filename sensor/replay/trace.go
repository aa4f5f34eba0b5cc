// Package replay implements a sensor that plays back a scripted trace of
// readings and errors over simulated time.
package replay

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/geolocator/model"
	"github.com/signalsfoundry/geolocator/sensor"
)

// ErrInvalidTrace wraps trace decoding and validation failures.
var ErrInvalidTrace = errors.New("invalid replay trace")

// Step is one scripted event. After is measured from the previous step (or
// from the request for the first step of a subscription).
type Step struct {
	After    time.Duration `yaml:"after" json:"after"`
	Lat      *float64      `yaml:"lat,omitempty" json:"lat,omitempty"`
	Lng      *float64      `yaml:"lng,omitempty" json:"lng,omitempty"`
	Accuracy float64       `yaml:"accuracy,omitempty" json:"accuracy,omitempty"`
	// Error, when set, makes the step an error callback. Recognised values
	// are permission_denied, position_unavailable and timeout; anything
	// else is delivered as an opaque platform error.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

// Trace is a scripted sequence of sensor events.
type Trace struct {
	Name string `yaml:"name" json:"name"`
	// Origin supplies coordinates for steps that omit them.
	Origin model.Coordinates `yaml:"origin" json:"origin"`
	// Unsupported makes the sensor fail its capability check.
	Unsupported bool   `yaml:"unsupported,omitempty" json:"unsupported,omitempty"`
	Steps       []Step `yaml:"steps" json:"steps"`
}

// LoadTrace decodes a YAML (or JSON) trace and validates it.
func LoadTrace(r io.Reader) (*Trace, error) {
	var tr Trace
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidTrace, err)
	}
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	return &tr, nil
}

// LoadTraceFile reads a trace from disk.
func LoadTraceFile(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace %q: %w", path, err)
	}
	defer f.Close()
	return LoadTrace(f)
}

// Validate rejects negative delays and reading steps without a usable accuracy.
func (t *Trace) Validate() error {
	for i, s := range t.Steps {
		if s.After < 0 {
			return fmt.Errorf("%w: step %d has negative delay %s", ErrInvalidTrace, i, s.After)
		}
		if s.Error != "" {
			continue
		}
		if s.Accuracy <= 0 {
			return fmt.Errorf("%w: step %d needs a positive accuracy", ErrInvalidTrace, i)
		}
		lat, lng := t.coordinates(s)
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			return fmt.Errorf("%w: step %d coordinates out of range", ErrInvalidTrace, i)
		}
	}
	return nil
}

func (t *Trace) coordinates(s Step) (float64, float64) {
	lat, lng := t.Origin.Latitude, t.Origin.Longitude
	if s.Lat != nil {
		lat = *s.Lat
	}
	if s.Lng != nil {
		lng = *s.Lng
	}
	return lat, lng
}

func (t *Trace) sample(s Step, at time.Time) model.Sample {
	lat, lng := t.coordinates(s)
	return model.Sample{
		Latitude:       lat,
		Longitude:      lng,
		AccuracyMeters: s.Accuracy,
		CapturedAt:     at,
	}
}

func stepError(s Step) error {
	switch strings.ToLower(s.Error) {
	case "permission_denied":
		return &sensor.PositionError{Code: sensor.CodePermissionDenied, Message: "user denied location access"}
	case "position_unavailable":
		return &sensor.PositionError{Code: sensor.CodePositionUnavailable, Message: "no position fix"}
	case "timeout":
		return &sensor.PositionError{Code: sensor.CodeTimeout, Message: "scripted timeout"}
	default:
		return fmt.Errorf("platform error: %s", s.Error)
	}
}
