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
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/spatialstat/starmap/geo"
)

// Index wraps one map realization's geometries in a
// nearest-neighbor-queryable spatial index.
type Index struct {
	features []*geo.Feature
	tree     *rtree.Rtree
}

// indexEntry ties an indexed geometry back to its feature.
type indexEntry struct {
	geom.Geom
	feature *geo.Feature
}

// NewIndex indexes the features of one realization.
func NewIndex(features []*geo.Feature) *Index {
	ix := &Index{features: features, tree: rtree.NewTree(25, 50)}
	for _, f := range features {
		ix.tree.Insert(&indexEntry{Geom: f.Shape.Geom(), feature: f})
	}
	return ix
}

// Len returns the number of indexed features.
func (ix *Index) Len() int { return len(ix.features) }

// Empty reports whether the index holds no geometries.
func (ix *Index) Empty() bool { return ix == nil || len(ix.features) == 0 }

// Nearest returns the feature nearest to p, or nil for an empty index.
func (ix *Index) Nearest(p geom.Point) *geo.Feature {
	if ix.Empty() {
		return nil
	}
	return ix.tree.NearestNeighbor(p).(*indexEntry).feature
}
