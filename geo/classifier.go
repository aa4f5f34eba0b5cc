// Package geo classifies coordinates against static reference geography:
// a territory box, ordered sub-region boxes and a gazetteer of named places.
package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/signalsfoundry/geolocator/model"
)

// Classifier is stateless after construction and safe for concurrent use.
type Classifier struct {
	territory Territory
	regions   []Region
	gazetteer *Gazetteer
}

// NewClassifier builds a classifier from validated reference data.
func NewClassifier(data *ReferenceData) (*Classifier, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: nil reference data", ErrInvalidReferenceData)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	gz, err := NewGazetteer(data.Places, data.DefaultPlace)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		territory: data.Territory,
		regions:   append([]Region(nil), data.Regions...),
		gazetteer: gz,
	}, nil
}

// NewDefaultClassifier builds a classifier over the embedded reference data.
func NewDefaultClassifier() *Classifier {
	c, err := NewClassifier(DefaultReferenceData())
	if err != nil {
		panic(fmt.Sprintf("embedded reference data: %v", err))
	}
	return c
}

// Gazetteer exposes the classifier's places.
func (c *Classifier) Gazetteer() *Gazetteer {
	return c.gazetteer
}

// InTerritory reports whether the point lies within the territory box.
func (c *Classifier) InTerritory(lat, lng float64) bool {
	return c.territory.Bounds.Contains(lat, lng)
}

// Region returns the tag of the first region containing the point, or
// RegionUnclassified. It does not check the territory.
func (c *Classifier) Region(lat, lng float64) model.RegionTag {
	for _, r := range c.regions {
		if r.Bounds.Contains(lat, lng) {
			return model.RegionTag(r.Tag)
		}
	}
	return model.RegionUnclassified
}

// Classify places a point. Outside the territory only InTerritory is set.
func (c *Classifier) Classify(lat, lng float64) model.Classification {
	if !c.InTerritory(lat, lng) {
		return model.Classification{}
	}

	region := c.Region(lat, lng)
	out := model.Classification{
		InTerritory: true,
		Region:      &region,
	}
	if place, dist, ok := c.gazetteer.Nearest(lat, lng); ok {
		name := place.Name
		out.NearestPlace = &name
		if place.LocalName != "" {
			local := place.LocalName
			out.NearestPlaceLocal = &local
		}
		out.DistanceToNearestKm = &dist
	}
	return out
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Coordinates model.Coordinates
	// Place is the gazetteer name that matched, or the default place when
	// Fallback is set. Empty for literal coordinates.
	Place    string
	Fallback bool
}

// Resolve turns a report location into coordinates. It accepts a literal
// "lat,lng" pair or a gazetteer name; anything else resolves to the default
// place, or ErrPlaceNotFound when none is configured.
func (c *Classifier) Resolve(location string) (Resolution, error) {
	if coords, ok := parseCoordinates(location); ok {
		return Resolution{Coordinates: coords}, nil
	}
	if p, ok := c.gazetteer.Lookup(location); ok {
		return Resolution{
			Coordinates: model.Coordinates{Latitude: p.Latitude, Longitude: p.Longitude},
			Place:       p.Name,
		}, nil
	}
	if p, ok := c.gazetteer.Default(); ok {
		return Resolution{
			Coordinates: model.Coordinates{Latitude: p.Latitude, Longitude: p.Longitude},
			Place:       p.Name,
			Fallback:    true,
		}, nil
	}
	return Resolution{}, fmt.Errorf("%w: %q", ErrPlaceNotFound, location)
}

func parseCoordinates(s string) (model.Coordinates, bool) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return model.Coordinates{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return model.Coordinates{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil || lng < -180 || lng > 180 {
		return model.Coordinates{}, false
	}
	return model.Coordinates{Latitude: lat, Longitude: lng}, true
}
