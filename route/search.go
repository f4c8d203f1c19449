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

package route

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	gograph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
)

// SearchPath finds the cost-optimal path between the graph cells nearest to
// start and goal using A*. minCost is a lower bound on any single edge
// weight: the heuristic is the Manhattan distance measured in pixel units
// multiplied by minCost, which keeps it admissible as long as minCost is a
// true lower bound. minCost must lie strictly between 0 and 1.
func SearchPath(g *Graph, start, goal geom.Point, minCost float64) ([]geom.Point, float64, error) {
	if !(minCost > 0 && minCost < 1) {
		return nil, 0, fmt.Errorf("route: minCost %g must be in (0, 1)", minCost)
	}
	s := g.Nearest(start)
	t := g.Nearest(goal)

	h := func(x, y gograph.Node) float64 {
		u := x.(*Node)
		v := y.(*Node)
		return (math.Abs(u.X-v.X)/g.Dx + math.Abs(u.Y-v.Y)/g.Dy) * minCost
	}
	shortest, _ := path.AStar(s, t, g.G, h)
	nodes, weight := shortest.To(t.ID())
	if len(nodes) == 0 || math.IsInf(weight, 1) {
		return nil, 0, fmt.Errorf("route: no path from (%g, %g) to (%g, %g)", s.X, s.Y, t.X, t.Y)
	}
	pts := make([]geom.Point, len(nodes))
	for i, nd := range nodes {
		n := nd.(*Node)
		pts[i] = geom.Point{X: n.X, Y: n.Y}
	}
	return pts, weight, nil
}
