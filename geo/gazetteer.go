package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrPlaceNotFound is returned when a name resolves to no gazetteer entry
// and no default entry is configured.
var ErrPlaceNotFound = errors.New("place not found")

// Place is a named reference location.
type Place struct {
	Name string `yaml:"name"`
	// LocalName is the name in the territory's own language, if any.
	LocalName string  `yaml:"local_name,omitempty"`
	Longitude float64 `yaml:"lng"`
	Latitude  float64 `yaml:"lat"`
}

// Gazetteer is an immutable, ordered list of places. Iteration order is
// the order the places were loaded in and decides nearest-place ties.
type Gazetteer struct {
	places   []Place
	byName   map[string]int
	fallback int
}

// NewGazetteer builds a gazetteer from places. defaultName selects the
// entry used when a lookup fails; it may be empty for no fallback.
func NewGazetteer(places []Place, defaultName string) (*Gazetteer, error) {
	g := &Gazetteer{
		places:   append([]Place(nil), places...),
		byName:   make(map[string]int, len(places)*2),
		fallback: -1,
	}
	for i, p := range g.places {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("%w: gazetteer entry %d has no name", ErrInvalidReferenceData, i)
		}
		if math.Abs(p.Latitude) > 90 || math.Abs(p.Longitude) > 180 {
			return nil, fmt.Errorf("%w: place %q has out-of-range coordinates", ErrInvalidReferenceData, p.Name)
		}
		key := normalizeName(p.Name)
		if _, dup := g.byName[key]; dup {
			return nil, fmt.Errorf("%w: duplicate place %q", ErrInvalidReferenceData, p.Name)
		}
		g.byName[key] = i
		if p.LocalName != "" {
			if _, taken := g.byName[normalizeName(p.LocalName)]; !taken {
				g.byName[normalizeName(p.LocalName)] = i
			}
		}
	}
	if defaultName != "" {
		idx, ok := g.byName[normalizeName(defaultName)]
		if !ok {
			return nil, fmt.Errorf("%w: default place %q is not in the gazetteer", ErrInvalidReferenceData, defaultName)
		}
		g.fallback = idx
	}
	return g, nil
}

// Len returns the number of places.
func (g *Gazetteer) Len() int {
	return len(g.places)
}

// Places returns a copy of the places in load order.
func (g *Gazetteer) Places() []Place {
	return append([]Place(nil), g.places...)
}

// Lookup finds a place by its name or local name, ignoring case and
// surrounding whitespace.
func (g *Gazetteer) Lookup(name string) (Place, bool) {
	idx, ok := g.byName[normalizeName(name)]
	if !ok {
		return Place{}, false
	}
	return g.places[idx], true
}

// Default returns the configured fallback place.
func (g *Gazetteer) Default() (Place, bool) {
	if g.fallback < 0 {
		return Place{}, false
	}
	return g.places[g.fallback], true
}

// Nearest scans every place and returns the closest one to the point with
// its haversine distance in kilometres. The first place at the minimum
// distance wins.
func (g *Gazetteer) Nearest(lat, lng float64) (Place, float64, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range g.places {
		d := Distance(lat, lng, p.Latitude, p.Longitude)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 {
		return Place{}, 0, false
	}
	return g.places[best], bestDist, true
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
