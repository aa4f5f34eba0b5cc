// Package sensor defines the platform location-sensor primitive the
// acquisition controller consumes, modelled on the browser Geolocation API:
// a single reading, a standing watch with a cancel handle, and
// success/error callbacks.
package sensor

import (
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/geolocator/model"
)

// ErrUnsupported is returned when the runtime has no location sensor.
var ErrUnsupported = errors.New("location sensor not supported")

// Code is a platform position error code. Values match the W3C
// GeolocationPositionError codes.
type Code int

const (
	CodePermissionDenied    Code = 1
	CodePositionUnavailable Code = 2
	CodeTimeout             Code = 3
)

func (c Code) String() string {
	switch c {
	case CodePermissionDenied:
		return "PERMISSION_DENIED"
	case CodePositionUnavailable:
		return "POSITION_UNAVAILABLE"
	case CodeTimeout:
		return "TIMEOUT"
	default:
		return fmt.Sprintf("CODE_%d", int(c))
	}
}

// PositionError is delivered through the error callback.
type PositionError struct {
	Code    Code
	Message string
}

func (e *PositionError) Error() string {
	if e.Message == "" {
		return "position error: " + e.Code.String()
	}
	return fmt.Sprintf("position error: %s: %s", e.Code, e.Message)
}

// Options are handed to the sensor on every request.
type Options struct {
	HighAccuracy bool
	// Timeout bounds the wait for a reading; zero means no timeout.
	Timeout time.Duration
	// MaxAge allows a cached reading no older than this.
	MaxAge time.Duration
}

// OptionsFor derives sensor options from an acquisition config.
func OptionsFor(cfg model.AcquisitionConfig) Options {
	return Options{
		HighAccuracy: cfg.HighAccuracy,
		Timeout:      cfg.Timeout,
		MaxAge:       cfg.MaxSampleAge,
	}
}

// Cancel releases a subscription. Implementations must tolerate repeated
// calls; callbacks already in flight may still arrive afterwards.
type Cancel func()

// Sensor is the platform location primitive.
type Sensor interface {
	// Supported is the capability check.
	Supported() bool

	// Current requests a single reading. Exactly one of onSample or
	// onError is eventually called unless the request is cancelled.
	Current(opts Options, onSample func(model.Sample), onError func(error)) (Cancel, error)

	// Watch opens a standing subscription delivering readings until
	// cancelled or until onError is called.
	Watch(opts Options, onSample func(model.Sample), onError func(error)) (Cancel, error)
}

// Unavailable is a Sensor for runtimes without location support.
type Unavailable struct{}

func (Unavailable) Supported() bool { return false }

func (Unavailable) Current(Options, func(model.Sample), func(error)) (Cancel, error) {
	return nil, ErrUnsupported
}

func (Unavailable) Watch(Options, func(model.Sample), func(error)) (Cancel, error) {
	return nil, ErrUnsupported
}
