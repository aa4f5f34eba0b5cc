package model

// RegionTag names a sub-region of the territory.
type RegionTag string

// RegionUnclassified is reported for points inside the territory that match
// no configured sub-region box.
const RegionUnclassified RegionTag = "territory"

// Classification is derived from a Sample and is never stored on its own.
// Region, NearestPlace and DistanceToNearestKm are nil outside the territory.
// NearestPlaceLocal is the same place in the territory's own language, nil
// when the gazetteer has no local name for it.
type Classification struct {
	InTerritory         bool       `json:"in_territory"`
	Region              *RegionTag `json:"region,omitempty"`
	NearestPlace        *string    `json:"nearest_place,omitempty"`
	NearestPlaceLocal   *string    `json:"nearest_place_local,omitempty"`
	DistanceToNearestKm *float64   `json:"distance_to_nearest_km,omitempty"`
}
