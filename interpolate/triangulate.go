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
)

// triangulation is a Bowyer–Watson Delaunay triangulation of a point set,
// used for barycentric (piecewise-linear) interpolation.
type triangulation struct {
	xs, ys []float64
	tris   [][3]int
}

// insideEpsilon tolerates queries on triangle edges.
const insideEpsilon = 1e-9

// newTriangulation triangulates the given points. Fewer than three points,
// or a fully collinear set, is an error.
func newTriangulation(xs, ys []float64) (*triangulation, error) {
	n := len(xs)
	if n < 3 {
		return nil, fmt.Errorf("interpolate: triangulation needs ≥3 points, got %d", n)
	}

	// Super-triangle enclosing the bounding box with generous margin.
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i < n; i++ {
		minX = math.Min(minX, xs[i])
		maxX = math.Max(maxX, xs[i])
		minY = math.Min(minY, ys[i])
		maxY = math.Max(maxY, ys[i])
	}
	d := math.Max(maxX-minX, maxY-minY)
	if d == 0 {
		d = 1
	}
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	px := append(append([]float64(nil), xs...), cx-20*d, cx+20*d, cx)
	py := append(append([]float64(nil), ys...), cy-d, cy-d, cy+20*d)

	tris := [][3]int{{n, n + 1, n + 2}}
	for p := 0; p < n; p++ {
		var bad []int
		for ti, t := range tris {
			if inCircumcircle(px, py, t, px[p], py[p]) {
				bad = append(bad, ti)
			}
		}
		// Boundary edges appear in exactly one bad triangle.
		edgeCount := make(map[[2]int]int)
		for _, ti := range bad {
			t := tris[ti]
			for _, e := range [][2]int{{t[0], t[1]}, {t[1], t[2]}, {t[2], t[0]}} {
				edgeCount[normEdge(e)]++
			}
		}
		kept := tris[:0]
		badSet := make(map[int]bool, len(bad))
		for _, ti := range bad {
			badSet[ti] = true
		}
		for ti, t := range tris {
			if !badSet[ti] {
				kept = append(kept, t)
			}
		}
		tris = kept
		for e, c := range edgeCount {
			if c == 1 {
				tris = append(tris, orient(px, py, [3]int{e[0], e[1], p}))
			}
		}
	}

	// Drop triangles touching the super vertices.
	var final [][3]int
	for _, t := range tris {
		if t[0] < n && t[1] < n && t[2] < n {
			final = append(final, t)
		}
	}
	if len(final) == 0 {
		return nil, fmt.Errorf("interpolate: degenerate (collinear) point set")
	}
	return &triangulation{xs: xs, ys: ys, tris: final}, nil
}

// barycentric locates the triangle containing (x, y) and returns its vertex
// indices and weights. ok is false outside the convex hull.
func (t *triangulation) barycentric(x, y float64) (i0, i1, i2 int, w0, w1, w2 float64, ok bool) {
	for _, tr := range t.tris {
		ax, ay := t.xs[tr[0]], t.ys[tr[0]]
		bx, by := t.xs[tr[1]], t.ys[tr[1]]
		cx, cy := t.xs[tr[2]], t.ys[tr[2]]
		den := (by-cy)*(ax-cx) + (cx-bx)*(ay-cy)
		if den == 0 {
			continue
		}
		l0 := ((by-cy)*(x-cx) + (cx-bx)*(y-cy)) / den
		l1 := ((cy-ay)*(x-cx) + (ax-cx)*(y-cy)) / den
		l2 := 1 - l0 - l1
		if l0 >= -insideEpsilon && l1 >= -insideEpsilon && l2 >= -insideEpsilon {
			return tr[0], tr[1], tr[2], l0, l1, l2, true
		}
	}
	return 0, 0, 0, 0, 0, 0, false
}

// inCircumcircle reports whether (x, y) lies strictly inside the
// circumcircle of triangle t (vertices counterclockwise).
func inCircumcircle(px, py []float64, t [3]int, x, y float64) bool {
	ax, ay := px[t[0]]-x, py[t[0]]-y
	bx, by := px[t[1]]-x, py[t[1]]-y
	cx, cy := px[t[2]]-x, py[t[2]]-y
	det := (ax*ax+ay*ay)*(bx*cy-cx*by) -
		(bx*bx+by*by)*(ax*cy-cx*ay) +
		(cx*cx+cy*cy)*(ax*by-bx*ay)
	return det > 0
}

// orient returns t with counterclockwise vertex order.
func orient(px, py []float64, t [3]int) [3]int {
	area := (px[t[1]]-px[t[0]])*(py[t[2]]-py[t[0]]) -
		(px[t[2]]-px[t[0]])*(py[t[1]]-py[t[0]])
	if area < 0 {
		t[1], t[2] = t[2], t[1]
	}
	return t
}

func normEdge(e [2]int) [2]int {
	if e[0] > e[1] {
		e[0], e[1] = e[1], e[0]
	}
	return e
}
