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

// Package route converts scored rasters into weighted graphs and finds
// cost-optimal paths over them.
package route

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/spatialstat/starmap/relation"
	"gonum.org/v1/gonum/graph/simple"
)

// neighborQuery is the fixed nearest-neighbor count used when connecting
// raster cells: the cell itself plus its four axis-aligned neighbors.
const neighborQuery = 5

// spacingFactor rejects diagonal and edge artifacts: an edge is accepted
// only if the cell separation is within this factor of the larger axis
// pixel spacing.
const spacingFactor = 1.1

// CostFunc computes an edge weight from the source and destination
// coordinates and their scored values.
type CostFunc func(sx, sy, dx, dy, sourceValue, destValue float64) float64

// DefaultCost treats the scored value as an inverse cost, e.g. a
// probability of mission validity.
func DefaultCost(sx, sy, dx, dy, sourceValue, destValue float64) float64 {
	return 1 - sourceValue
}

// FilterFunc gates whether a cell may be used as a neighbor at all.
type FilterFunc func(x, y, value float64) bool

// acceptAll is the default filter.
func acceptAll(x, y, value float64) bool { return true }

// Node is one raster cell in a routing graph.
type Node struct {
	id    int64
	X, Y  float64
	Value float64

	// Label identifies the layer in a stacked graph; empty for 2D graphs.
	Label string
}

// ID implements graph.Node.
func (n *Node) ID() int64 { return n.id }

// nodeHolder indexes a node's center for nearest-cell queries.
type nodeHolder struct {
	geom.Point
	node *Node
}

// Graph is a weighted directed graph over raster cells.
type Graph struct {
	G     *simple.WeightedDirectedGraph
	Nodes []*Node

	// Dx, Dy are the axis pixel spacings of the source raster.
	Dx, Dy float64

	tree *rtree.Rtree
}

// ToGraph converts a scored raster into a weighted graph. Every cell
// becomes a node; edges connect cells found by a fixed k=5 nearest-neighbor
// query whose separation stays within 1.1× the larger axis spacing, which
// keeps axis-aligned neighbors and rejects diagonals. A nil cost uses
// DefaultCost; a nil filter accepts every neighbor.
func ToGraph(r *relation.RasterCollection, column int, cost CostFunc, filter FilterFunc) (*Graph, error) {
	if column < 0 || column >= r.Columns() {
		return nil, fmt.Errorf("route: value column %d out of range [0, %d)", column, r.Columns())
	}
	if cost == nil {
		cost = DefaultCost
	}
	if filter == nil {
		filter = acceptAll
	}
	dx, dy := r.PixelSize()
	g := &Graph{
		G:    simple.NewWeightedDirectedGraph(0, math.Inf(1)),
		Dx:   dx,
		Dy:   dy,
		tree: rtree.NewTree(25, 50),
	}
	g.Nodes = make([]*Node, r.Len())
	for i := 0; i < r.Len(); i++ {
		x, y := r.XY(i)
		n := &Node{id: int64(i), X: x, Y: y, Value: r.Values(i)[column]}
		g.Nodes[i] = n
		g.G.AddNode(n)
		g.tree.Insert(&nodeHolder{Point: geom.Point{X: x, Y: y}, node: n})
	}

	maxSep := spacingFactor * math.Max(dx, dy)
	for _, n := range g.Nodes {
		for _, hI := range g.tree.NearestNeighbors(neighborQuery, geom.Point{X: n.X, Y: n.Y}) {
			if hI == nil {
				continue
			}
			nb := hI.(*nodeHolder).node
			if nb.id == n.id {
				continue
			}
			if math.Hypot(nb.X-n.X, nb.Y-n.Y) > maxSep {
				continue
			}
			if !filter(nb.X, nb.Y, nb.Value) {
				continue
			}
			w := cost(n.X, n.Y, nb.X, nb.Y, n.Value, nb.Value)
			g.G.SetWeightedEdge(g.G.NewWeightedEdge(n, nb, w))
		}
	}
	return g, nil
}

// Nearest returns the graph node whose cell center is closest to p.
func (g *Graph) Nearest(p geom.Point) *Node {
	return g.tree.NearestNeighbor(p).(*nodeHolder).node
}

// Layer names one 2D graph inside a stacked graph.
type Layer struct {
	Label string
	Graph *Graph
}

// Stack merges several labeled 2D graphs into one graph whose nodes are
// (x, y, label), adding bidirectional vertical edges of the given weight
// between same-(x, y) nodes of adjacent labels in order. Supports, e.g.,
// stacking flight-altitude layers.
func Stack(layers []Layer, verticalWeight float64) (*Graph, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("route: stacking needs at least one layer")
	}
	o := &Graph{
		G:    simple.NewWeightedDirectedGraph(0, math.Inf(1)),
		Dx:   layers[0].Graph.Dx,
		Dy:   layers[0].Graph.Dy,
		tree: rtree.NewTree(25, 50),
	}
	type xy struct{ x, y float64 }
	byCoord := make([]map[xy]*Node, len(layers))

	var id int64
	for li, layer := range layers {
		byCoord[li] = make(map[xy]*Node, len(layer.Graph.Nodes))
		for _, n := range layer.Graph.Nodes {
			nn := &Node{id: id, X: n.X, Y: n.Y, Value: n.Value, Label: layer.Label}
			id++
			o.Nodes = append(o.Nodes, nn)
			o.G.AddNode(nn)
			o.tree.Insert(&nodeHolder{Point: geom.Point{X: nn.X, Y: nn.Y}, node: nn})
			byCoord[li][xy{n.X, n.Y}] = nn
		}
	}
	// Horizontal edges, remapped onto the new nodes.
	for li, layer := range layers {
		edges := layer.Graph.G.WeightedEdges()
		for edges.Next() {
			e := edges.WeightedEdge()
			u := e.From().(*Node)
			v := e.To().(*Node)
			nu := byCoord[li][xy{u.X, u.Y}]
			nv := byCoord[li][xy{v.X, v.Y}]
			o.G.SetWeightedEdge(o.G.NewWeightedEdge(nu, nv, e.Weight()))
		}
	}
	// Vertical edges between adjacent layers.
	for li := 0; li+1 < len(layers); li++ {
		for c, u := range byCoord[li] {
			if v, ok := byCoord[li+1][c]; ok {
				o.G.SetWeightedEdge(o.G.NewWeightedEdge(u, v, verticalWeight))
				o.G.SetWeightedEdge(o.G.NewWeightedEdge(v, u, verticalWeight))
			}
		}
	}
	return o, nil
}
