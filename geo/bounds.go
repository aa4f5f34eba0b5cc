package geo

import "fmt"

// Bounds is an axis-aligned latitude/longitude box. Edges are inclusive.
type Bounds struct {
	North float64 `yaml:"north"`
	South float64 `yaml:"south"`
	East  float64 `yaml:"east"`
	West  float64 `yaml:"west"`
}

// Contains reports whether the point lies inside or on the box.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.South && lat <= b.North && lng >= b.West && lng <= b.East
}

func (b Bounds) validate() error {
	if b.South > b.North {
		return fmt.Errorf("south %.4f is above north %.4f", b.South, b.North)
	}
	if b.West > b.East {
		return fmt.Errorf("west %.4f is east of %.4f", b.West, b.East)
	}
	if b.North > 90 || b.South < -90 || b.East > 180 || b.West < -180 {
		return fmt.Errorf("bounds %+v exceed WGS84 range", b)
	}
	return nil
}

// Region is a named sub-region box.
type Region struct {
	Tag    string `yaml:"tag"`
	Name   string `yaml:"name"`
	Bounds Bounds `yaml:"bounds"`
}
