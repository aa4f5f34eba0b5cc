package geo

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ErrInvalidReferenceData wraps every validation failure of reference data.
var ErrInvalidReferenceData = errors.New("invalid reference data")

//go:embed data/reference.yaml
var defaultReferenceYAML []byte

// Territory is the single box that decides whether a point is in scope.
type Territory struct {
	Name   string `yaml:"name"`
	Bounds Bounds `yaml:"bounds"`
}

// ReferenceData is the static geography a Classifier is built from.
type ReferenceData struct {
	Territory    Territory `yaml:"territory"`
	Regions      []Region  `yaml:"regions"`
	DefaultPlace string    `yaml:"default_place"`
	Places       []Place   `yaml:"places"`
}

// LoadReferenceData decodes YAML reference data and validates it.
func LoadReferenceData(r io.Reader) (*ReferenceData, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var data ReferenceData
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidReferenceData, err)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &data, nil
}

// DefaultReferenceData returns the embedded reference geography.
func DefaultReferenceData() *ReferenceData {
	data, err := LoadReferenceData(bytes.NewReader(defaultReferenceYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded reference data: %v", err))
	}
	return data
}

// Validate checks every box and that region tags are unique.
func (d *ReferenceData) Validate() error {
	if err := d.Territory.Bounds.validate(); err != nil {
		return fmt.Errorf("%w: territory: %v", ErrInvalidReferenceData, err)
	}
	seen := make(map[string]struct{}, len(d.Regions))
	for i, r := range d.Regions {
		if r.Tag == "" {
			return fmt.Errorf("%w: region %d has no tag", ErrInvalidReferenceData, i)
		}
		if _, dup := seen[r.Tag]; dup {
			return fmt.Errorf("%w: duplicate region tag %q", ErrInvalidReferenceData, r.Tag)
		}
		seen[r.Tag] = struct{}{}
		if err := r.Bounds.validate(); err != nil {
			return fmt.Errorf("%w: region %q: %v", ErrInvalidReferenceData, r.Tag, err)
		}
	}
	return nil
}
