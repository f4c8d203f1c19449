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

package relation

import (
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultVarianceFloor is the minimum variance stored in a Gaussian
// relation. Variances below the floor are clipped up at construction so
// that degenerate zero-width distributions cannot blow up later
// probability queries.
const DefaultVarianceFloor = 0.001

// ScalarRelation is a Gaussian-parameterized relation: its collection holds
// exactly [mean, variance] per support point.
type ScalarRelation struct {
	Kind        Kind
	FeatureType string
	Collection  Collection
	Floor       float64
}

// NewScalarRelation returns a Gaussian relation over c, clipping every
// stored variance up to floor. A floor ≤ 0 uses DefaultVarianceFloor.
func NewScalarRelation(k Kind, typ string, c Collection, floor float64) *ScalarRelation {
	if floor <= 0 {
		floor = DefaultVarianceFloor
	}
	r := &ScalarRelation{Kind: k, FeatureType: typ, Collection: c, Floor: floor}
	r.clip()
	return r
}

// clip enforces the variance floor over the whole collection.
func (r *ScalarRelation) clip() {
	for i := 0; i < r.Collection.Len(); i++ {
		v := r.Collection.Values(i)
		if len(v) == 2 && v[1] < r.Floor {
			r.Collection.SetValues(i, []float64{v[0], r.Floor})
		}
	}
}

// Append adds estimated parameters to the relation, keeping the variance
// floor. A raster-backed relation is first flattened into a point
// collection so that support can keep growing.
func (r *ScalarRelation) Append(c Collection) error {
	if rc, ok := r.Collection.(*RasterCollection); ok {
		if r.Collection.Len() == 0 {
			r.Collection = c.Copy()
			r.clip()
			return nil
		}
		r.Collection = rc.Points()
	}
	for i := 0; i < c.Len(); i++ {
		x, y := c.XY(i)
		v := append([]float64(nil), c.Values(i)...)
		if len(v) == 2 && v[1] < r.Floor {
			v[1] = r.Floor
		}
		if err := r.Collection.Append(x, y, v); err != nil {
			return err
		}
	}
	return nil
}

// Copy returns a deep copy of the relation.
func (r *ScalarRelation) Copy() *ScalarRelation {
	return &ScalarRelation{
		Kind:        r.Kind,
		FeatureType: r.FeatureType,
		Collection:  r.Collection.Copy(),
		Floor:       r.Floor,
	}
}

// Less returns a single-column collection holding, per support point, the
// probability that the relation value is below v under the point's Normal
// distribution.
func (r *ScalarRelation) Less(v float64) Collection {
	o := r.Collection.Empty(1)
	for i := 0; i < r.Collection.Len(); i++ {
		p := r.Collection.Values(i)
		d := distuv.Normal{Mu: p[0], Sigma: math.Sqrt(p[1])}
		setOrAppend(o, r.Collection, i, []float64{d.CDF(v)})
	}
	return o
}

// Greater is the complement of Less.
func (r *ScalarRelation) Greater(v float64) Collection {
	o := r.Less(v)
	for i := 0; i < o.Len(); i++ {
		p := o.Values(i)
		o.SetValues(i, []float64{1 - p[0]})
	}
	return o
}

// Program serializes the relation for the downstream inference engine, one
// statement per support point:
//
//	distance(x_0, land) ~ normal(12.5, 3.1).
func (r *ScalarRelation) Program() string {
	var b strings.Builder
	for i := 0; i < r.Collection.Len(); i++ {
		p := r.Collection.Values(i)
		fmt.Fprintf(&b, "%s(x_%d, %s) ~ normal(%g, %g).\n",
			string(r.Kind), i, r.FeatureType, p[0], math.Sqrt(p[1]))
	}
	return b.String()
}

// Save serializes the relation to w.
func (r *ScalarRelation) Save(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(r); err != nil {
		return fmt.Errorf("relation: encoding %s/%s: %w", r.Kind, r.FeatureType, err)
	}
	return nil
}

// LoadScalarRelation deserializes a relation written by Save.
func LoadScalarRelation(r io.Reader) (*ScalarRelation, error) {
	o := new(ScalarRelation)
	if err := gob.NewDecoder(r).Decode(o); err != nil {
		return nil, fmt.Errorf("relation: decoding relation: %w", err)
	}
	return o, nil
}
