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
	"fmt"
	"runtime"
	"sync"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/ctessum/geom"
)

// Kind identifies a spatial relation between the agent and a feature type.
type Kind string

const (
	// Distance is the Euclidean distance to the nearest feature geometry.
	Distance Kind = "distance"
	// Over is 1 if the point lies within the nearest feature's geometry.
	Over Kind = "over"
	// Depth is the signed elevation attached to the nearest feature.
	Depth Kind = "depth"
)

// Kinds lists the supported relation kinds.
var Kinds = []Kind{Distance, Over, Depth}

// ParseKind validates a relation name.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case Distance, Over, Depth:
		return Kind(name), nil
	}
	return "", fmt.Errorf("relation: unsupported relation %q", name)
}

// Arity returns the number of arguments the relation takes: the agent
// position and a feature type.
func (k Kind) Arity() int { return 2 }

// Compute evaluates the relation scalar at p against one realization index.
//
// Over tests containment against the nearest feature only, not against every
// feature: a point outside all features but nearer one still receives that
// feature's containment result. Downstream numeric expectations are
// calibrated against this behavior.
func (k Kind) Compute(p geom.Point, ix *Index) (float64, error) {
	switch k {
	case Distance:
		f := ix.Nearest(p)
		if f == nil {
			return 0, fmt.Errorf("relation: distance query against an empty index")
		}
		return f.Shape.Distance(p), nil
	case Over:
		f := ix.Nearest(p)
		if f == nil {
			return 0, fmt.Errorf("relation: over query against an empty index")
		}
		if f.Shape.Contains(p) {
			return 1, nil
		}
		return 0, nil
	case Depth:
		f := ix.Nearest(p)
		if f == nil {
			return 0, nil
		}
		return f.Elevation, nil
	}
	return 0, fmt.Errorf("relation: unsupported relation %q", string(k))
}

// EmptyMapParameters returns the (mean, variance) defaults used when the
// referenced feature type is entirely absent from the map.
func (k Kind) EmptyMapParameters() (mean, variance float64) {
	switch k {
	case Distance:
		return 1e6, 1e-6
	case Over:
		return 0, 0
	case Depth:
		return 0, 0.25
	}
	panic(fmt.Errorf("relation: unsupported relation %q", string(k)))
}

// ComputeParameters evaluates the relation at p once per realization and
// reduces the draws to a sample mean and population variance (divisor N).
func (k Kind) ComputeParameters(p geom.Point, indices []*Index) (mean, variance float64, err error) {
	if len(indices) == 0 {
		return 0, 0, fmt.Errorf("relation: no realizations to estimate %q", string(k))
	}
	var d stats.Stats
	for _, ix := range indices {
		v, err := k.Compute(p, ix)
		if err != nil {
			return 0, 0, err
		}
		d.Update(v)
	}
	return d.Mean(), d.PopulationVariance(), nil
}

// FromIndices estimates relation parameters at every point of the support
// collection across the realization indices and returns a Gaussian relation
// over the results. A raster support collection keeps its regular-grid
// structure in the resulting relation. A nil or empty index slice means the
// feature type is absent and every point receives the empty-map defaults.
//
// Estimation is data-parallel across support points; results are merged
// after all workers complete.
func FromIndices(support Collection, indices []*Index, k Kind, typ string, floor float64) (*ScalarRelation, error) {
	n := support.Len()
	out := support.Empty(2)

	if len(indices) == 0 {
		m, v := k.EmptyMapParameters()
		for i := 0; i < n; i++ {
			setOrAppend(out, support, i, []float64{m, v})
		}
		return NewScalarRelation(k, typ, out, floor), nil
	}

	params := make([][]float64, n)
	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	errchan := make(chan error, nprocs)
	wg.Add(nprocs)
	for procnum := 0; procnum < nprocs; procnum++ {
		go func(procnum int) {
			defer wg.Done()
			// Panics from the geometry engine must surface as errors on
			// this goroutine; they cannot be recovered by the caller.
			defer func() {
				if r := recover(); r != nil {
					errchan <- fmt.Errorf("relation: estimating %s/%s: %v", string(k), typ, r)
				}
			}()
			for i := procnum; i < n; i += nprocs {
				x, y := support.XY(i)
				m, v, err := k.ComputeParameters(geom.Point{X: x, Y: y}, indices)
				if err != nil {
					errchan <- err
					return
				}
				params[i] = []float64{m, v}
			}
			errchan <- nil
		}(procnum)
	}
	wg.Wait()
	close(errchan)
	for err := range errchan {
		if err != nil {
			return nil, err
		}
	}

	for i, p := range params {
		setOrAppend(out, support, i, p)
	}
	return NewScalarRelation(k, typ, out, floor), nil
}

// setOrAppend writes v at index i for fixed-geometry collections and
// appends for growable ones.
func setOrAppend(dst, src Collection, i int, v []float64) {
	if _, ok := dst.(*RasterCollection); ok {
		dst.SetValues(i, v)
		return
	}
	x, y := src.XY(i)
	if err := dst.Append(x, y, v); err != nil {
		panic(err)
	}
}
