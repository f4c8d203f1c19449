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

package starmap

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/sirupsen/logrus"
	"github.com/spatialstat/starmap/interpolate"
	"github.com/spatialstat/starmap/relation"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Acquisition names the scoring rule used to select new support points.
type Acquisition string

const (
	// AcquireEntropy scores candidates by local neighborhood entropy of
	// the estimated values around the nearest existing support point.
	AcquireEntropy Acquisition = "entropy"
	// AcquireSurrogate scores candidates by the predictive standard
	// deviation of a Gaussian-process surrogate fitted to the existing
	// support points.
	AcquireSurrogate Acquisition = "surrogate"
)

// normEpsilon guards min/max normalization against zero-width ranges.
const normEpsilon = 1e-12

// CandidateSampler supplies a batch of candidate coordinates, typically a
// space-filling design over the mission area.
type CandidateSampler func() []geom.Point

// UniformSampler returns a sampler drawing n uniform candidates over a
// width×height area centered on the local origin.
func UniformSampler(width, height float64, n int, src rand.Source) CandidateSampler {
	rnd := rand.New(src)
	return func() []geom.Point {
		o := make([]geom.Point, n)
		for i := range o {
			o[i] = geom.Point{
				X: (rnd.Float64() - 0.5) * width,
				Y: (rnd.Float64() - 0.5) * height,
			}
		}
		return o
	}
}

// AdaptiveOptions configures adaptive support-point refinement.
type AdaptiveOptions struct {
	// Sampler supplies candidate coordinates each iteration.
	Sampler CandidateSampler

	// Realizations is the realization count for evaluating chosen points;
	// zero uses the map default.
	Realizations int

	// Iterations is the number of refinement rounds per pair.
	Iterations int

	// PerIteration is the number of support points added per round.
	PerIteration int

	// Requested restricts refinement to these pairs; nil refines every
	// pair already present.
	Requested map[relation.Kind][]string

	// DistanceScaler weighs the uncertainty term against the distance
	// term in the acquisition score.
	DistanceScaler float64

	// ValueColumn selects which stored column the uncertainty term reads
	// (0 = mean, 1 = variance).
	ValueColumn int

	// Method selects the acquisition scoring rule.
	Method Acquisition

	// Bins is the histogram bin count for entropy scoring (default 10).
	Bins int

	// Neighbors is the neighborhood size for entropy scoring (default 5).
	Neighbors int
}

// AdaptiveSample iteratively adds support points where the acquisition
// score is highest, balancing exploration (distance to existing support)
// against regions of uncertain outcome. Realization indices are built once
// per feature type and reused across all relations referencing that type.
// The iteration boundary is the only safe cancellation point.
func (s *StaRMap) AdaptiveSample(ctx context.Context, opt AdaptiveOptions) error {
	if opt.Sampler == nil {
		return fmt.Errorf("starmap: adaptive sampling needs a candidate sampler")
	}
	if opt.Iterations < 1 || opt.PerIteration < 1 {
		return fmt.Errorf("starmap: adaptive sampling needs ≥1 iterations and points per iteration")
	}
	switch opt.Method {
	case AcquireEntropy, AcquireSurrogate:
	default:
		return fmt.Errorf("starmap: unknown acquisition method %q", string(opt.Method))
	}
	if opt.Bins == 0 {
		opt.Bins = 10
	}
	if opt.Neighbors == 0 {
		opt.Neighbors = 5
	}
	n := opt.Realizations
	if n <= 0 {
		n = s.Realizations
	}
	requested := opt.Requested
	if requested == nil {
		requested = s.presentPairs()
	}

	types := make(map[string]bool)
	for kind, ts := range requested {
		if _, err := relation.ParseKind(string(kind)); err != nil {
			return err
		}
		for _, t := range ts {
			types[t] = true
		}
	}
	indicesByType := make(map[string][]*relation.Index)
	for typ := range types {
		ixs, err := s.typeIndices(typ, n)
		if err != nil {
			return err
		}
		indicesByType[typ] = ixs
	}

	mapFP := s.Map.Fingerprint()
	for _, kind := range sortedKinds(requested) {
		for _, typ := range sortedStrings(requested[kind]) {
			if err := s.refinePair(ctx, kind, typ, indicesByType[typ], n, mapFP, opt); err != nil {
				return err
			}
		}
	}
	return nil
}

// refinePair runs the acquisition loop for one (relation, type) pair.
func (s *StaRMap) refinePair(ctx context.Context, kind relation.Kind, typ string,
	indices []*relation.Index, n int, mapFP string, opt AdaptiveOptions) error {
	rel, ok := s.Relations[kind][typ]
	if !ok || rel.Collection.Len() == 0 {
		return fmt.Errorf("starmap: cannot refine %s/%s before sampling it", kind, typ)
	}
	for iter := 0; iter < opt.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		candidates := opt.Sampler()
		if len(candidates) == 0 {
			return fmt.Errorf("starmap: candidate sampler returned no points")
		}
		scores, err := s.scoreCandidates(rel, candidates, opt)
		if err != nil {
			return err
		}

		order := make([]int, len(candidates))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return scores[order[a]] > scores[order[b]]
		})
		take := opt.PerIteration
		if take > len(order) {
			take = len(order)
		}
		chosen := relation.NewPointCollection(2)
		for _, i := range order[:take] {
			chosen.Append(candidates[i].X, candidates[i].Y, []float64{0, 0})
		}

		result := s.estimatePair(ctx, kind, typ, chosen, indices, n, mapFP)
		if err := rel.Append(result); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"relation":  string(kind),
			"type":      typ,
			"iteration": iter,
			"support":   rel.Collection.Len(),
		}).Debug("starmap: adaptive refinement")
	}
	return nil
}

// supportPoint ties an indexed support coordinate back to its row.
type supportPoint struct {
	geom.Point
	row int
}

// scoreCandidates combines normalized distance-to-existing-support with a
// normalized local uncertainty term: dist * (1 + scaler * uncertainty).
func (s *StaRMap) scoreCandidates(rel *relation.ScalarRelation, candidates []geom.Point,
	opt AdaptiveOptions) ([]float64, error) {
	support := rel.Collection
	tree := rtree.NewTree(25, 50)
	pts := make([]*supportPoint, support.Len())
	for i := 0; i < support.Len(); i++ {
		x, y := support.XY(i)
		pts[i] = &supportPoint{Point: geom.Point{X: x, Y: y}, row: i}
		tree.Insert(pts[i])
	}

	dists := make([]float64, len(candidates))
	nearest := make([]int, len(candidates))
	for i, c := range candidates {
		p := tree.NearestNeighbor(c).(*supportPoint)
		nearest[i] = p.row
		dists[i] = math.Hypot(c.X-p.X, c.Y-p.Y)
	}

	var uncertainty []float64 // per candidate, already normalized
	switch opt.Method {
	case AcquireEntropy:
		entropies := supportEntropies(support, tree, opt.ValueColumn, opt.Neighbors, opt.Bins)
		normalize(entropies)
		uncertainty = make([]float64, len(candidates))
		for i := range candidates {
			uncertainty[i] = entropies[nearest[i]]
		}
	case AcquireSurrogate:
		gp, err := fitSurrogate(support, opt.ValueColumn)
		if err != nil {
			return nil, err
		}
		uncertainty = make([]float64, len(candidates))
		for i, c := range candidates {
			_, std := gp.Predict(c.X, c.Y)
			uncertainty[i] = std
		}
		normalize(uncertainty)
	}

	normalize(dists)
	scores := make([]float64, len(candidates))
	for i := range scores {
		scores[i] = dists[i] * (1 + opt.DistanceScaler*uncertainty[i])
	}
	return scores, nil
}

// supportEntropies computes, per existing support point, the Shannon
// entropy of the chosen value column over its k nearest existing
// neighbors, discretized into a fixed bin count.
func supportEntropies(support relation.Collection, tree *rtree.Rtree, column, k, bins int) []float64 {
	o := make([]float64, support.Len())
	for i := 0; i < support.Len(); i++ {
		x, y := support.XY(i)
		nb := tree.NearestNeighbors(k+1, geom.Point{X: x, Y: y}) // includes the point itself
		vals := make([]float64, 0, len(nb))
		for _, g := range nb {
			if g == nil {
				continue
			}
			vals = append(vals, support.Values(g.(*supportPoint).row)[column])
		}
		o[i] = histogramEntropy(vals, bins)
	}
	return o
}

// histogramEntropy discretizes vals into bins and returns the Shannon
// entropy of the resulting distribution. A zero-width value range carries
// no information and scores zero.
func histogramEntropy(vals []float64, bins int) float64 {
	if len(vals) == 0 {
		return 0
	}
	lo, hi := floats.Min(vals), floats.Max(vals)
	if hi-lo < normEpsilon {
		return 0
	}
	p := make([]float64, bins)
	for _, v := range vals {
		b := int((v - lo) / (hi - lo) * float64(bins))
		if b == bins {
			b = bins - 1
		}
		p[b]++
	}
	floats.Scale(1/float64(len(vals)), p)
	return stat.Entropy(p)
}

// normalize rescales v to [0, 1] in place, guarding degenerate ranges with
// a small additive epsilon.
func normalize(v []float64) {
	if len(v) == 0 {
		return
	}
	lo, hi := floats.Min(v), floats.Max(v)
	den := hi - lo + normEpsilon
	for i := range v {
		v[i] = (v[i] - lo) / den
	}
}

// fitSurrogate fits the Gaussian-process surrogate to one value column of
// the support collection.
func fitSurrogate(support relation.Collection, column int) (*interpolate.GP, error) {
	xs := make([]float64, support.Len())
	ys := make([]float64, support.Len())
	vs := make([]float64, support.Len())
	for i := 0; i < support.Len(); i++ {
		xs[i], ys[i] = support.XY(i)
		vs[i] = support.Values(i)[column]
	}
	return interpolate.FitGP(xs, ys, vs)
}
