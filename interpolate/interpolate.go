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

// Package interpolate converts sparse support-point collections into dense
// grids and resamples grids onto one another.
package interpolate

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/spatialstat/starmap/relation"
)

// Method names an interpolation strategy.
type Method string

const (
	// Linear interpolates barycentrically over a triangulation of the
	// source points; it is undefined (NaN) outside their convex hull.
	Linear Method = "linear"
	// Nearest copies the value of the nearest source point; always defined.
	Nearest Method = "nearest"
	// Hybrid is Linear with a Nearest fallback exactly at the points
	// where Linear is undefined.
	Hybrid Method = "hybrid"
	// Surrogate predicts with a Gaussian-process model fitted to the
	// source points. Always defined, expensive.
	Surrogate Method = "surrogate"
)

// interpolator evaluates a vector-valued surface at a coordinate.
type interpolator interface {
	at(x, y float64) []float64
}

// NewRaster returns an nx×ny evaluation grid over a width×height area
// centered on the local origin.
func NewRaster(nx, ny int, width, height float64, columns int) (*relation.RasterCollection, error) {
	return relation.NewRasterCollection(nx, ny, width, height, columns)
}

// Into builds an interpolator over the source collection and overwrites the
// target's values by evaluating it at the target's coordinates. The
// target's column count is adjusted to match the source's.
func Into(src, dst relation.Collection, method Method) error {
	if src.Len() == 0 {
		return fmt.Errorf("interpolate: empty source collection")
	}
	if dst.Columns() != src.Columns() {
		dst.SetColumns(src.Columns())
	}
	itp, err := build(src, method)
	if err != nil {
		return err
	}

	n := dst.Len()
	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for procnum := 0; procnum < nprocs; procnum++ {
		go func(procnum int) {
			defer wg.Done()
			for i := procnum; i < n; i += nprocs {
				x, y := dst.XY(i)
				dst.SetValues(i, itp.at(x, y))
			}
		}(procnum)
	}
	wg.Wait()
	return nil
}

// build constructs the interpolator for a method. Unknown method names are
// a configuration error, never silently defaulted.
func build(src relation.Collection, method Method) (interpolator, error) {
	switch method {
	case Linear:
		return newLinear(src), nil
	case Nearest:
		return newNearest(src), nil
	case Hybrid:
		return &hybrid{linear: newLinear(src), nearest: newNearest(src)}, nil
	case Surrogate:
		return newSurrogate(src)
	}
	return nil, fmt.Errorf("interpolate: unknown method %q", string(method))
}

// sourcePoint ties an indexed coordinate back to its source row.
type sourcePoint struct {
	geom.Point
	row int
}

// nearestItp is total: every query maps to the closest source point.
type nearestItp struct {
	src  relation.Collection
	tree *rtree.Rtree
}

func newNearest(src relation.Collection) *nearestItp {
	t := rtree.NewTree(25, 50)
	for i := 0; i < src.Len(); i++ {
		x, y := src.XY(i)
		t.Insert(&sourcePoint{Point: geom.Point{X: x, Y: y}, row: i})
	}
	return &nearestItp{src: src, tree: t}
}

func (n *nearestItp) at(x, y float64) []float64 {
	p := n.tree.NearestNeighbor(geom.Point{X: x, Y: y}).(*sourcePoint)
	return append([]float64(nil), n.src.Values(p.row)...)
}

// linearItp interpolates barycentrically over a triangulation. Queries
// outside the convex hull, or any query when the source is degenerate
// (fewer than three non-collinear points), evaluate to NaN.
type linearItp struct {
	src relation.Collection
	tri *triangulation
}

func newLinear(src relation.Collection) *linearItp {
	xs := make([]float64, src.Len())
	ys := make([]float64, src.Len())
	for i := 0; i < src.Len(); i++ {
		xs[i], ys[i] = src.XY(i)
	}
	tri, err := newTriangulation(xs, ys)
	if err != nil {
		tri = nil
	}
	return &linearItp{src: src, tri: tri}
}

func (l *linearItp) at(x, y float64) []float64 {
	cols := l.src.Columns()
	if l.tri == nil {
		return nanVector(cols)
	}
	i0, i1, i2, w0, w1, w2, ok := l.tri.barycentric(x, y)
	if !ok {
		return nanVector(cols)
	}
	v0, v1, v2 := l.src.Values(i0), l.src.Values(i1), l.src.Values(i2)
	o := make([]float64, cols)
	for c := 0; c < cols; c++ {
		o[c] = w0*v0[c] + w1*v1[c] + w2*v2[c]
	}
	return o
}

// hybrid applies the nearest-neighbor fallback exactly at points where
// linear interpolation is undefined; it never blends the two.
type hybrid struct {
	linear  *linearItp
	nearest *nearestItp
}

func (h *hybrid) at(x, y float64) []float64 {
	v := h.linear.at(x, y)
	for _, c := range v {
		if math.IsNaN(c) {
			return h.nearest.at(x, y)
		}
	}
	return v
}

// surrogateItp fits one Gaussian process per value column and predicts the
// posterior mean.
type surrogateItp struct {
	gps []*GP
}

func newSurrogate(src relation.Collection) (*surrogateItp, error) {
	xs := make([]float64, src.Len())
	ys := make([]float64, src.Len())
	for i := 0; i < src.Len(); i++ {
		xs[i], ys[i] = src.XY(i)
	}
	o := &surrogateItp{gps: make([]*GP, src.Columns())}
	for c := range o.gps {
		vs := make([]float64, src.Len())
		for i := 0; i < src.Len(); i++ {
			vs[i] = src.Values(i)[c]
		}
		gp, err := FitGP(xs, ys, vs)
		if err != nil {
			return nil, err
		}
		o.gps[c] = gp
	}
	return o, nil
}

func (s *surrogateItp) at(x, y float64) []float64 {
	o := make([]float64, len(s.gps))
	for c, gp := range s.gps {
		o[c], _ = gp.Predict(x, y)
	}
	return o
}

func nanVector(n int) []float64 {
	o := make([]float64, n)
	for i := range o {
		o[i] = math.NaN()
	}
	return o
}
