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

package interpolate

import (
	"fmt"
	"math"

	"github.com/spatialstat/starmap/relation"
)

// Prune bounds an ever-growing support-point collection: points are
// hierarchically clustered by proximity (single linkage cut at the distance
// threshold) and one representative per cluster is kept, the first point
// encountered in original order.
func Prune(c relation.Collection, threshold float64) (relation.Collection, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("interpolate: pruning threshold %g must be positive", threshold)
	}
	n := c.Len()
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	// Single-linkage clusters cut at the threshold are the connected
	// components of the proximity graph.
	for i := 0; i < n; i++ {
		xi, yi := c.XY(i)
		for j := i + 1; j < n; j++ {
			xj, yj := c.XY(j)
			if math.Hypot(xj-xi, yj-yi) <= threshold {
				parent[find(j)] = find(i)
			}
		}
	}

	o := relation.NewPointCollection(c.Columns())
	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		root := find(i)
		if seen[root] {
			continue
		}
		seen[root] = true
		x, y := c.XY(i)
		if err := o.Append(x, y, append([]float64(nil), c.Values(i)...)); err != nil {
			return nil, err
		}
	}
	return o, nil
}
