package model

import (
	"fmt"
	"time"
)

// Coordinates is a WGS84 latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"lat" yaml:"lat"`
	Longitude float64 `json:"lng" yaml:"lng"`
}

// String renders the coordinates as "lat,lng" with six decimals, the form
// the emergency report uses for a precise location.
func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// Sample is one reading delivered by a location sensor. Samples are values
// and are never mutated after the sensor produces them.
type Sample struct {
	Latitude  float64
	Longitude float64
	// AccuracyMeters is the sensor-reported uncertainty radius; smaller is better.
	AccuracyMeters float64
	CapturedAt     time.Time
}

// Coordinates returns the sample position.
func (s Sample) Coordinates() Coordinates {
	return Coordinates{Latitude: s.Latitude, Longitude: s.Longitude}
}

// CapturedAtEpochMs returns the capture time as Unix epoch milliseconds.
func (s Sample) CapturedAtEpochMs() int64 {
	return s.CapturedAt.UnixMilli()
}
