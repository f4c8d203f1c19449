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
	"math/rand"

	"github.com/ctessum/geom/proj"
	xrand "golang.org/x/exp/rand"
)

// Feature is a typed map geometry. The identifier is a non-negative 63-bit
// integer; identifiers are collision-tolerant and generated randomly when
// absent.
type Feature struct {
	ID   int64
	Name string

	// Type is the location-type tag, e.g. "land" or "building".
	Type string

	// Elevation is a signed elevation in meters attached to the feature;
	// negative values lie below the zero reference.
	Elevation float64

	Shape Shape
}

// NewFeature returns a Feature with a randomly generated identifier.
func NewFeature(typ, name string, s Shape) *Feature {
	return &Feature{ID: rand.Int63(), Name: name, Type: typ, Shape: s}
}

// Sample draws one realization of the feature. A feature whose shape has no
// covariance samples to itself.
func (f *Feature) Sample(src xrand.Source) (*Feature, error) {
	s, err := f.Shape.Sample(src)
	if err != nil {
		return nil, err
	}
	o := *f
	o.Shape = s
	return &o, nil
}

// transform returns a copy of the feature converted into frame to.
func (f *Feature) transform(t proj.Transformer, to Frame) (*Feature, error) {
	s, err := f.Shape.Transform(t, to)
	if err != nil {
		return nil, err
	}
	o := *f
	o.Shape = s
	return &o, nil
}
