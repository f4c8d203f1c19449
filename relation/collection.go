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

// Package relation estimates the statistical parameters of probabilistic
// spatial relations between an agent and typed geographic features.
package relation

import (
	"encoding/gob"
	"fmt"

	"github.com/ctessum/sparse"
)

func init() {
	gob.Register(&PointCollection{})
	gob.Register(&RasterCollection{})
}

// Collection is a tabular mapping from 2D coordinates to value vectors.
// Coordinate uniqueness is not enforced; appends preserve insertion order.
type Collection interface {
	// Len returns the number of coordinates.
	Len() int

	// Columns returns the width of the value vectors.
	Columns() int

	// SetColumns resizes the value vectors, discarding stored values.
	SetColumns(n int)

	// XY returns the i'th coordinate.
	XY(i int) (x, y float64)

	// Values returns the value vector at index i.
	Values(i int) []float64

	// SetValues overwrites the value vector at index i.
	SetValues(i int, v []float64)

	// Append adds a coordinate with its value vector.
	Append(x, y float64, v []float64) error

	// Copy returns a deep copy.
	Copy() Collection

	// Empty returns an empty collection of the same kind and geometry
	// with the given number of value columns. An empty raster keeps its
	// grid and zeroes the values.
	Empty(columns int) Collection
}

// PointCollection is an append-only unordered set of support points.
type PointCollection struct {
	Xs, Ys []float64
	Vals   [][]float64
	Cols   int
}

// NewPointCollection returns an empty point collection with the given
// number of value columns.
func NewPointCollection(columns int) *PointCollection {
	return &PointCollection{Cols: columns}
}

// Len implements Collection.
func (c *PointCollection) Len() int { return len(c.Xs) }

// Columns implements Collection.
func (c *PointCollection) Columns() int { return c.Cols }

// SetColumns implements Collection.
func (c *PointCollection) SetColumns(n int) {
	c.Cols = n
	for i := range c.Vals {
		c.Vals[i] = make([]float64, n)
	}
}

// XY implements Collection.
func (c *PointCollection) XY(i int) (float64, float64) { return c.Xs[i], c.Ys[i] }

// Values implements Collection.
func (c *PointCollection) Values(i int) []float64 { return c.Vals[i] }

// SetValues implements Collection.
func (c *PointCollection) SetValues(i int, v []float64) {
	if len(v) != c.Cols {
		panic(fmt.Errorf("relation: value width %d != %d columns", len(v), c.Cols))
	}
	c.Vals[i] = v
}

// Append implements Collection.
func (c *PointCollection) Append(x, y float64, v []float64) error {
	if len(v) != c.Cols {
		return fmt.Errorf("relation: value width %d != %d columns", len(v), c.Cols)
	}
	c.Xs = append(c.Xs, x)
	c.Ys = append(c.Ys, y)
	c.Vals = append(c.Vals, v)
	return nil
}

// Copy implements Collection.
func (c *PointCollection) Copy() Collection {
	o := &PointCollection{
		Xs:   append([]float64(nil), c.Xs...),
		Ys:   append([]float64(nil), c.Ys...),
		Vals: make([][]float64, len(c.Vals)),
		Cols: c.Cols,
	}
	for i, v := range c.Vals {
		o.Vals[i] = append([]float64(nil), v...)
	}
	return o
}

// Empty implements Collection.
func (c *PointCollection) Empty(columns int) Collection {
	return NewPointCollection(columns)
}

// RasterCollection is a fixed regular grid of evaluation points. The
// coordinates are the Cartesian product of two evenly spaced axes spanning
// [-Width/2, Width/2] × [-Height/2, Height/2] in the local frame; values are
// stored per column in dense arrays.
type RasterCollection struct {
	Nx, Ny        int
	Width, Height float64
	Data          []*sparse.DenseArray
}

// NewRasterCollection returns an nx×ny raster over a width×height area
// centered on the local origin, with every value vector initialized to zero.
func NewRasterCollection(nx, ny int, width, height float64, columns int) (*RasterCollection, error) {
	if nx < 2 || ny < 2 {
		return nil, fmt.Errorf("relation: raster resolution %d×%d must be ≥2 on each axis", nx, ny)
	}
	r := &RasterCollection{Nx: nx, Ny: ny, Width: width, Height: height}
	r.SetColumns(columns)
	return r, nil
}

// PixelSize returns the axis spacing of the grid.
func (r *RasterCollection) PixelSize() (dx, dy float64) {
	return r.Width / float64(r.Nx-1), r.Height / float64(r.Ny-1)
}

// Len implements Collection.
func (r *RasterCollection) Len() int { return r.Nx * r.Ny }

// Columns implements Collection.
func (r *RasterCollection) Columns() int { return len(r.Data) }

// SetColumns implements Collection.
func (r *RasterCollection) SetColumns(n int) {
	r.Data = make([]*sparse.DenseArray, n)
	for i := range r.Data {
		r.Data[i] = sparse.ZerosDense(r.Ny, r.Nx)
	}
}

// XY implements Collection. Index i enumerates rows first, matching the
// dense-array layout.
func (r *RasterCollection) XY(i int) (float64, float64) {
	ix, iy := i%r.Nx, i/r.Nx
	dx, dy := r.PixelSize()
	return -r.Width/2 + float64(ix)*dx, -r.Height/2 + float64(iy)*dy
}

// Values implements Collection.
func (r *RasterCollection) Values(i int) []float64 {
	ix, iy := i%r.Nx, i/r.Nx
	v := make([]float64, len(r.Data))
	for j, d := range r.Data {
		v[j] = d.Get(iy, ix)
	}
	return v
}

// SetValues implements Collection.
func (r *RasterCollection) SetValues(i int, v []float64) {
	if len(v) != len(r.Data) {
		panic(fmt.Errorf("relation: value width %d != %d columns", len(v), len(r.Data)))
	}
	ix, iy := i%r.Nx, i/r.Nx
	for j, d := range r.Data {
		d.Set(v[j], iy, ix)
	}
}

// Append implements Collection. Raster geometry is fixed, so appending is a
// caller contract violation.
func (r *RasterCollection) Append(x, y float64, v []float64) error {
	return fmt.Errorf("relation: cannot append (%g, %g) to a fixed raster", x, y)
}

// Copy implements Collection.
func (r *RasterCollection) Copy() Collection {
	o := &RasterCollection{Nx: r.Nx, Ny: r.Ny, Width: r.Width, Height: r.Height}
	o.Data = make([]*sparse.DenseArray, len(r.Data))
	for i, d := range r.Data {
		o.Data[i] = d.Copy()
	}
	return o
}

// Empty implements Collection.
func (r *RasterCollection) Empty(columns int) Collection {
	o := &RasterCollection{Nx: r.Nx, Ny: r.Ny, Width: r.Width, Height: r.Height}
	o.SetColumns(columns)
	return o
}

// Points returns the raster flattened into a point collection, preserving
// the row-first coordinate order.
func (r *RasterCollection) Points() *PointCollection {
	o := NewPointCollection(len(r.Data))
	for i := 0; i < r.Len(); i++ {
		x, y := r.XY(i)
		o.Append(x, y, r.Values(i))
	}
	return o
}
