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
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"golang.org/x/exp/rand"
)

// Shape is the closed set of geometry variants a Feature may carry:
// Location, PolyLine, or Polygon.
type Shape interface {
	// Geom returns the underlying planar geometry.
	Geom() geom.Geom

	// Covariance returns the positional covariance, or nil.
	Covariance() *Covariance

	// SetCovariance reassigns the positional covariance.
	SetCovariance(*Covariance)

	// Translate returns a copy rigidly shifted by (dx, dy).
	Translate(dx, dy float64) Shape

	// Sample draws one realization from the perturbation distribution.
	// The covariance applies as a single rigid translation shared by
	// all vertices.
	Sample(src rand.Source) (Shape, error)

	// Transform converts the shape coordinates with t into frame to.
	Transform(t proj.Transformer, to Frame) (Shape, error)

	// Distance returns the planar distance from p to the shape
	// (zero if p is inside a polygonal shape).
	Distance(p geom.Point) float64

	// Contains reports whether p lies within the shape.
	Contains(p geom.Point) bool
}

// PolyLine is an ordered open sequence of at least two vertices sharing
// one covariance.
type PolyLine struct {
	Frame Frame
	Verts geom.LineString
	Cov   *Covariance
}

// NewPolyLine returns a PolyLine through the given vertices.
func NewPolyLine(f Frame, verts []geom.Point) (*PolyLine, error) {
	if len(verts) < 2 {
		return nil, fmt.Errorf("geo: polyline needs ≥2 vertices, got %d", len(verts))
	}
	return &PolyLine{Frame: f, Verts: geom.LineString(verts)}, nil
}

// Geom implements Shape.
func (l *PolyLine) Geom() geom.Geom { return l.Verts }

// Covariance implements Shape.
func (l *PolyLine) Covariance() *Covariance { return l.Cov }

// SetCovariance implements Shape.
func (l *PolyLine) SetCovariance(c *Covariance) { l.Cov = c }

// Translate implements Shape.
func (l *PolyLine) Translate(dx, dy float64) Shape {
	verts := make(geom.LineString, len(l.Verts))
	for i, v := range l.Verts {
		verts[i] = geom.Point{X: v.X + dx, Y: v.Y + dy}
	}
	return &PolyLine{Frame: l.Frame, Verts: verts, Cov: l.Cov}
}

// Sample implements Shape.
func (l *PolyLine) Sample(src rand.Source) (Shape, error) {
	dx, dy, err := l.Cov.sampleOffset(src)
	if err != nil {
		return nil, err
	}
	return l.Translate(dx, dy), nil
}

// Transform implements Shape.
func (l *PolyLine) Transform(t proj.Transformer, to Frame) (Shape, error) {
	g, err := l.Verts.Transform(t)
	if err != nil {
		return nil, err
	}
	return &PolyLine{Frame: to, Verts: g.(geom.LineString), Cov: l.Cov}, nil
}

// Distance implements Shape.
func (l *PolyLine) Distance(p geom.Point) float64 {
	d := math.Inf(1)
	for i := 0; i+1 < len(l.Verts); i++ {
		d = math.Min(d, segmentDistance(p, l.Verts[i], l.Verts[i+1]))
	}
	return d
}

// Contains implements Shape; a line has no interior.
func (l *PolyLine) Contains(geom.Point) bool { return false }

// Polygon is a closed ring of at least three vertices, optionally with
// interior holes, sharing one covariance.
type Polygon struct {
	Frame Frame
	Rings geom.Polygon // first path is the shell, the rest are holes
	Cov   *Covariance
}

// NewPolygon returns a Polygon with the given shell and holes.
func NewPolygon(f Frame, shell []geom.Point, holes ...[]geom.Point) (*Polygon, error) {
	if len(shell) < 3 {
		return nil, fmt.Errorf("geo: polygon needs ≥3 vertices, got %d", len(shell))
	}
	rings := geom.Polygon{geom.Path(shell)}
	for _, h := range holes {
		rings = append(rings, geom.Path(h))
	}
	return &Polygon{Frame: f, Rings: rings}, nil
}

// Geom implements Shape.
func (pg *Polygon) Geom() geom.Geom { return pg.Rings }

// Covariance implements Shape.
func (pg *Polygon) Covariance() *Covariance { return pg.Cov }

// SetCovariance implements Shape.
func (pg *Polygon) SetCovariance(c *Covariance) { pg.Cov = c }

// Translate implements Shape.
func (pg *Polygon) Translate(dx, dy float64) Shape {
	rings := make(geom.Polygon, len(pg.Rings))
	for i, ring := range pg.Rings {
		r := make(geom.Path, len(ring))
		for j, v := range ring {
			r[j] = geom.Point{X: v.X + dx, Y: v.Y + dy}
		}
		rings[i] = r
	}
	return &Polygon{Frame: pg.Frame, Rings: rings, Cov: pg.Cov}
}

// Sample implements Shape.
func (pg *Polygon) Sample(src rand.Source) (Shape, error) {
	dx, dy, err := pg.Cov.sampleOffset(src)
	if err != nil {
		return nil, err
	}
	return pg.Translate(dx, dy), nil
}

// Transform implements Shape.
func (pg *Polygon) Transform(t proj.Transformer, to Frame) (Shape, error) {
	g, err := pg.Rings.Transform(t)
	if err != nil {
		return nil, err
	}
	return &Polygon{Frame: to, Rings: g.(geom.Polygon), Cov: pg.Cov}, nil
}

// Distance implements Shape. Points inside the polygon are at distance zero.
func (pg *Polygon) Distance(p geom.Point) float64 {
	if pg.Contains(p) {
		return 0
	}
	d := math.Inf(1)
	for _, ring := range pg.Rings {
		n := len(ring)
		for i := 0; i < n; i++ {
			d = math.Min(d, segmentDistance(p, ring[i], ring[(i+1)%n]))
		}
	}
	return d
}

// Contains implements Shape. Edge points count as inside.
func (pg *Polygon) Contains(p geom.Point) bool {
	return p.Within(pg.Rings) != geom.Outside
}

// segmentDistance returns the distance from p to the segment ab.
func segmentDistance(p, a, b geom.Point) float64 {
	abx, aby := b.X-a.X, b.Y-a.Y
	apx, apy := p.X-a.X, p.Y-a.Y
	den := abx*abx + aby*aby
	if den == 0 {
		return math.Hypot(apx, apy)
	}
	t := (apx*abx + apy*aby) / den
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(p.X-(a.X+t*abx), p.Y-(a.Y+t*aby))
}
