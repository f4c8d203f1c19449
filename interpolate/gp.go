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
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// gpNoise is the diagonal jitter keeping the kernel matrix positive
// definite in the presence of duplicate or near-duplicate points.
const gpNoise = 1e-6

// GP is a Gaussian-process regression surrogate with a squared-exponential
// kernel, used both as an interpolation method and as the predictive-
// variance source for surrogate acquisition.
type GP struct {
	xs, ys []float64
	mean   float64
	scale  float64 // kernel length scale
	signal float64 // kernel signal variance

	chol  mat.Cholesky
	alpha *mat.VecDense
}

// FitGP fits the surrogate to observations vs at coordinates (xs, ys).
// The kernel length scale is set to the median pairwise distance of the
// training points.
func FitGP(xs, ys, vs []float64) (*GP, error) {
	n := len(xs)
	if n == 0 || len(ys) != n || len(vs) != n {
		return nil, fmt.Errorf("interpolate: surrogate needs equal-length nonempty inputs")
	}
	g := &GP{
		xs:    append([]float64(nil), xs...),
		ys:    append([]float64(nil), ys...),
		mean:  stat.Mean(vs, nil),
		scale: medianPairwiseDistance(xs, ys),
	}
	g.signal = stat.Variance(vs, nil)
	if g.signal < gpNoise {
		g.signal = gpNoise
	}

	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := g.kernel(xs[i], ys[i], xs[j], ys[j])
			if i == j {
				v += gpNoise
			}
			k.SetSym(i, j, v)
		}
	}
	if ok := g.chol.Factorize(k); !ok {
		return nil, fmt.Errorf("interpolate: surrogate kernel matrix is not positive definite")
	}

	b := mat.NewVecDense(n, nil)
	for i, v := range vs {
		b.SetVec(i, v-g.mean)
	}
	g.alpha = mat.NewVecDense(n, nil)
	if err := g.chol.SolveVecTo(g.alpha, b); err != nil {
		return nil, fmt.Errorf("interpolate: solving surrogate system: %w", err)
	}
	return g, nil
}

// Predict returns the posterior mean and standard deviation at (x, y).
func (g *GP) Predict(x, y float64) (mean, std float64) {
	n := len(g.xs)
	ks := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		ks.SetVec(i, g.kernel(x, y, g.xs[i], g.ys[i]))
	}
	mean = g.mean + mat.Dot(ks, g.alpha)

	v := mat.NewVecDense(n, nil)
	if err := g.chol.SolveVecTo(v, ks); err != nil {
		return mean, math.Sqrt(g.signal)
	}
	variance := g.signal + gpNoise - mat.Dot(ks, v)
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

func (g *GP) kernel(x0, y0, x1, y1 float64) float64 {
	dx, dy := x1-x0, y1-y0
	return g.signal * math.Exp(-(dx*dx+dy*dy)/(2*g.scale*g.scale))
}

// medianPairwiseDistance is the length-scale heuristic. Coincident point
// sets fall back to unit scale.
func medianPairwiseDistance(xs, ys []float64) float64 {
	var d []float64
	for i := range xs {
		for j := i + 1; j < len(xs); j++ {
			d = append(d, math.Hypot(xs[j]-xs[i], ys[j]-ys[i]))
		}
	}
	if len(d) == 0 {
		return 1
	}
	sort.Float64s(d)
	m := d[len(d)/2]
	if m == 0 {
		return 1
	}
	return m
}
