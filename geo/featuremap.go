/*
Copyright © 2024 the StaRMap authors.
This file is part of StaRMap.

StaRMap is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

StaRMap is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with StaRMap.  If not, see <http://www.gnu.org/licenses/>.
*/

package geo

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/ctessum/geom/proj"
	"github.com/spatialstat/starmap/internal/hash"
	"golang.org/x/exp/rand"
)

// FeatureMap is an ordered collection of typed features sharing one
// projection origin and one coordinate frame.
type FeatureMap struct {
	// Origin is the projection origin, always in the global frame.
	Origin *Location

	// Width and Height are the mission-area extent in meters.
	Width, Height float64

	// Frame is the frame all features are expressed in.
	Frame Frame

	Features []*Feature
}

// NewFeatureMap returns an empty map about the given global-frame origin.
func NewFeatureMap(origin *Location, width, height float64) *FeatureMap {
	return &FeatureMap{Origin: origin, Width: width, Height: height, Frame: Global}
}

// FilterType returns a new map holding only the features with the given
// location-type tag. The origin and frame are shared.
func (m *FeatureMap) FilterType(typ string) *FeatureMap {
	o := &FeatureMap{Origin: m.Origin, Width: m.Width, Height: m.Height, Frame: m.Frame}
	for _, f := range m.Features {
		if f.Type == typ {
			o.Features = append(o.Features, f)
		}
	}
	return o
}

// Types returns the distinct location-type tags in insertion order.
func (m *FeatureMap) Types() []string {
	seen := make(map[string]bool)
	var o []string
	for _, f := range m.Features {
		if !seen[f.Type] {
			seen[f.Type] = true
			o = append(o, f.Type)
		}
	}
	return o
}

// ApplyCovariance assigns one covariance to every feature in the map.
func (m *FeatureMap) ApplyCovariance(c *Covariance) {
	for _, f := range m.Features {
		f.Shape.SetCovariance(c)
	}
}

// ApplyCovarianceByType assigns covariances per location-type tag. Features
// with a tag missing from the mapping are left unchanged.
func (m *FeatureMap) ApplyCovarianceByType(byType map[string]*Covariance) {
	for _, f := range m.Features {
		if c, ok := byType[f.Type]; ok {
			f.Shape.SetCovariance(c)
		}
	}
}

// Sample draws k independent realizations of the map, resampling every
// feature from its own perturbation distribution.
func (m *FeatureMap) Sample(k int, src rand.Source) ([]*FeatureMap, error) {
	o := make([]*FeatureMap, k)
	for i := range o {
		s := &FeatureMap{Origin: m.Origin, Width: m.Width, Height: m.Height, Frame: m.Frame}
		s.Features = make([]*Feature, len(m.Features))
		for j, f := range m.Features {
			sf, err := f.Sample(src)
			if err != nil {
				return nil, fmt.Errorf("geo: sampling feature %q: %w", f.Name, err)
			}
			s.Features[j] = sf
		}
		o[i] = s
	}
	return o, nil
}

// transforms builds the projection transformers between the global geodetic
// frame and a transverse-Mercator tangent plane centered on origin.
func transforms(origin *Location) (toLocal, toGlobal proj.Transformer, err error) {
	longLat, err := proj.Parse("+proj=longlat +datum=WGS84 +no_defs")
	if err != nil {
		return nil, nil, fmt.Errorf("geo: parsing longlat projection: %w", err)
	}
	tangent, err := proj.Parse(fmt.Sprintf(
		"+proj=tmerc +lat_0=%v +lon_0=%v +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs",
		origin.Y, origin.X))
	if err != nil {
		return nil, nil, fmt.Errorf("geo: parsing tangent projection: %w", err)
	}
	if toLocal, err = longLat.NewTransform(tangent); err != nil {
		return nil, nil, err
	}
	if toGlobal, err = tangent.NewTransform(longLat); err != nil {
		return nil, nil, err
	}
	return toLocal, toGlobal, nil
}

// ToLocal returns the map converted onto the tangent plane at its origin.
// A map already in the local frame is returned unchanged.
func (m *FeatureMap) ToLocal() (*FeatureMap, error) {
	if m.Frame == Local {
		return m, nil
	}
	t, _, err := transforms(m.Origin)
	if err != nil {
		return nil, err
	}
	return m.convert(t, Local)
}

// ToGlobal returns the map converted back to geodetic coordinates.
// A map already in the global frame is returned unchanged.
func (m *FeatureMap) ToGlobal() (*FeatureMap, error) {
	if m.Frame == Global {
		return m, nil
	}
	_, t, err := transforms(m.Origin)
	if err != nil {
		return nil, err
	}
	return m.convert(t, Global)
}

func (m *FeatureMap) convert(t proj.Transformer, to Frame) (*FeatureMap, error) {
	o := &FeatureMap{Origin: m.Origin, Width: m.Width, Height: m.Height, Frame: to}
	o.Features = make([]*Feature, len(m.Features))
	for i, f := range m.Features {
		cf, err := f.transform(t, to)
		if err != nil {
			return nil, fmt.Errorf("geo: converting feature %q to %v frame: %w", f.Name, to, err)
		}
		o.Features[i] = cf
	}
	return o, nil
}

// Fingerprint returns a stable content hash of the map, including feature
// geometry and covariance assignments.
func (m *FeatureMap) Fingerprint() string { return hash.Hash(m) }

// Save serializes the map to w.
func (m *FeatureMap) Save(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return fmt.Errorf("geo: encoding feature map: %w", err)
	}
	return nil
}

// LoadFeatureMap deserializes a map written by Save.
func LoadFeatureMap(r io.Reader) (*FeatureMap, error) {
	m := new(FeatureMap)
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return nil, fmt.Errorf("geo: decoding feature map: %w", err)
	}
	return m, nil
}
