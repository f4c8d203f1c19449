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

// Package geo holds geographic features with positional uncertainty and
// the maps that collect them.
package geo

import (
	"encoding/gob"
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/golang/geo/s2"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// EarthRadius is the radius of the Earth at the equator.
const EarthRadius = 6.3781e6 // meters

func init() {
	gob.Register(&Location{})
	gob.Register(&PolyLine{})
	gob.Register(&Polygon{})
}

// Frame identifies the coordinate frame a geometry is expressed in.
type Frame int

const (
	// Global coordinates are geodetic WGS84 degrees (X=longitude, Y=latitude).
	Global Frame = iota
	// Local coordinates are planar meters on a tangent plane at a map origin.
	Local
)

func (f Frame) String() string {
	if f == Global {
		return "global"
	}
	return "local"
}

// Covariance is a 2×2 symmetric positive semi-definite matrix describing
// the positional uncertainty of a geometry. The zero value means the
// position is known exactly.
type Covariance struct {
	XX, XY, YY float64
}

// Sym returns the covariance as a gonum symmetric matrix.
func (c *Covariance) Sym() *mat.SymDense {
	s := mat.NewSymDense(2, nil)
	s.SetSym(0, 0, c.XX)
	s.SetSym(0, 1, c.XY)
	s.SetSym(1, 1, c.YY)
	return s
}

// IsZero reports whether the covariance describes an exactly known position.
func (c *Covariance) IsZero() bool {
	return c == nil || (c.XX == 0 && c.XY == 0 && c.YY == 0)
}

// sampleOffset draws one zero-mean perturbation from the covariance.
// Diagonal covariances are sampled componentwise so that semi-definite
// (zero-variance) axes remain valid.
func (c *Covariance) sampleOffset(src rand.Source) (dx, dy float64, err error) {
	if c.IsZero() {
		return 0, 0, nil
	}
	if c.XY == 0 {
		nx := distuv.Normal{Mu: 0, Sigma: math.Sqrt(c.XX), Src: src}
		ny := distuv.Normal{Mu: 0, Sigma: math.Sqrt(c.YY), Src: src}
		return nx.Rand(), ny.Rand(), nil
	}
	n, ok := distmv.NewNormal([]float64{0, 0}, c.Sym(), src)
	if !ok {
		return 0, 0, fmt.Errorf("geo: covariance {%g %g %g} is not positive definite",
			c.XX, c.XY, c.YY)
	}
	v := n.Rand(nil)
	return v[0], v[1], nil
}

// Location is a 2D point in one of the two coordinate frames, optionally
// carrying a positional covariance. Coordinates are fixed at construction;
// only the covariance may be reassigned afterwards.
type Location struct {
	Frame Frame
	X, Y  float64
	Cov   *Covariance
}

// NewLocation returns a Location in the given frame.
func NewLocation(f Frame, x, y float64) *Location {
	return &Location{Frame: f, X: x, Y: y}
}

// Point returns the location as a planar geometry point.
func (l *Location) Point() geom.Point { return geom.Point{X: l.X, Y: l.Y} }

// Geom implements Shape.
func (l *Location) Geom() geom.Geom { return l.Point() }

// Covariance implements Shape.
func (l *Location) Covariance() *Covariance { return l.Cov }

// SetCovariance implements Shape.
func (l *Location) SetCovariance(c *Covariance) { l.Cov = c }

// Translate returns a copy of the location shifted by (dx, dy) in its own
// frame units.
func (l *Location) Translate(dx, dy float64) Shape {
	return &Location{Frame: l.Frame, X: l.X + dx, Y: l.Y + dy, Cov: l.Cov}
}

// Sample draws one location from the perturbation distribution. A location
// without covariance samples to itself.
func (l *Location) Sample(src rand.Source) (Shape, error) {
	dx, dy, err := l.Cov.sampleOffset(src)
	if err != nil {
		return nil, err
	}
	return &Location{Frame: l.Frame, X: l.X + dx, Y: l.Y + dy, Cov: l.Cov}, nil
}

// Transform returns the location converted by t into frame to.
func (l *Location) Transform(t proj.Transformer, to Frame) (Shape, error) {
	g, err := l.Point().Transform(t)
	if err != nil {
		return nil, err
	}
	p := g.(geom.Point)
	return &Location{Frame: to, X: p.X, Y: p.Y, Cov: l.Cov}, nil
}

// Distance returns the planar distance from p to the location.
func (l *Location) Distance(p geom.Point) float64 {
	return math.Hypot(p.X-l.X, p.Y-l.Y)
}

// Contains implements Shape; a point contains nothing.
func (l *Location) Contains(geom.Point) bool { return false }

// DistanceTo returns the distance in meters between two locations in the
// same frame: geodesic on the sphere for global coordinates, Euclidean
// for local ones.
func (l *Location) DistanceTo(o *Location) (float64, error) {
	if l.Frame != o.Frame {
		return 0, fmt.Errorf("geo: distance between %v and %v frames", l.Frame, o.Frame)
	}
	if l.Frame == Local {
		return math.Hypot(o.X-l.X, o.Y-l.Y), nil
	}
	a := s2.LatLngFromDegrees(l.Y, l.X)
	b := s2.LatLngFromDegrees(o.Y, o.X)
	return a.Distance(b).Radians() * EarthRadius, nil
}
