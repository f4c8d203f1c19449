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
	"bytes"
	"context"
	"encoding/gob"
	"math"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/spatialstat/starmap/geo"
	"github.com/spatialstat/starmap/relation"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
)

// testMap builds a local-frame map over a 20×20 m area with one uncertain
// polygon of type "spot" centered at (-4, 6) and one exactly known beacon
// at (3, -2) with elevation -12.
func testMap(t *testing.T) *geo.FeatureMap {
	t.Helper()
	m := geo.NewFeatureMap(geo.NewLocation(geo.Global, -30, 45), 20, 20)
	m.Frame = geo.Local
	spot, err := geo.NewPolygon(geo.Local, []geom.Point{
		{X: -5, Y: 5}, {X: -3, Y: 5}, {X: -3, Y: 7}, {X: -5, Y: 7},
	})
	if err != nil {
		t.Fatal(err)
	}
	m.Features = []*geo.Feature{
		{ID: 1, Name: "s0", Type: "spot", Shape: spot},
		{ID: 2, Name: "b0", Type: "beacon", Elevation: -12, Shape: geo.NewLocation(geo.Local, 3, -2)},
	}
	m.ApplyCovarianceByType(map[string]*geo.Covariance{"spot": {XX: 1, YY: 1}})
	return m
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RealizationCount = 25
	cfg.Seed = 1
	return cfg
}

// nearestCell returns the raster index whose coordinate is closest to (x, y).
func nearestCell(r *relation.RasterCollection, x, y float64) int {
	best, bestD := 0, math.Inf(1)
	for i := 0; i < r.Len(); i++ {
		cx, cy := r.XY(i)
		if d := math.Hypot(cx-x, cy-y); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

func TestInitialize(t *testing.T) {
	s, err := New(testMap(t), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	raster, err := relation.NewRasterCollection(75, 75, 20, 20, 2)
	if err != nil {
		t.Fatal(err)
	}
	program := `valid(X) :- distance(X, spot) < 5, depth(X, beacon) > -20.`
	if err := s.Initialize(context.Background(), raster, 0, program); err != nil {
		t.Fatal(err)
	}

	dist, err := s.Get(relation.Distance, "spot")
	if err != nil {
		t.Fatal(err)
	}
	if dist.Collection.Len() != 75*75 {
		t.Fatalf("support length %d, want %d", dist.Collection.Len(), 75*75)
	}
	radii := make([]float64, dist.Collection.Len())
	means := make([]float64, dist.Collection.Len())
	for i := 0; i < dist.Collection.Len(); i++ {
		v := dist.Collection.Values(i)
		if v[0] < 0 {
			t.Fatalf("negative mean distance %g at point %d", v[0], i)
		}
		if v[1] < s.Floor {
			t.Fatalf("variance %g below floor at point %d", v[1], i)
		}
		x, y := dist.Collection.XY(i)
		radii[i] = math.Hypot(x-(-4), y-6)
		means[i] = v[0]
	}
	// Mean distance is monotone in the distance from the polygon center in
	// expectation.
	if r := stat.Correlation(radii, means, nil); r < 0.95 {
		t.Errorf("radius/mean-distance correlation %g, want ≈1", r)
	}
	rc := dist.Collection.(*relation.RasterCollection)
	near := dist.Collection.Values(nearestCell(rc, -4, 6))[0]
	far := dist.Collection.Values(nearestCell(rc, 8, -8))[0]
	if near >= far {
		t.Errorf("mean distance near polygon (%g) not below far corner (%g)", near, far)
	}

	// The exactly known beacon yields a constant depth whose zero variance
	// clips up to the floor.
	depth, err := s.Get(relation.Depth, "beacon")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < depth.Collection.Len(); i++ {
		v := depth.Collection.Values(i)
		if v[0] != -12 || v[1] != s.Floor {
			t.Fatalf("depth parameters %v at point %d, want [-12 %g]", v, i, s.Floor)
		}
	}

	// Pairs the program never referenced were not estimated.
	if _, err := s.Get(relation.Over, "spot"); err == nil {
		t.Error("want error for a pair the program does not reference")
	}
}

func TestInitializeNoRelations(t *testing.T) {
	s, err := New(testMap(t), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	pts := relation.NewPointCollection(2)
	pts.Append(0, 0, []float64{0, 0})
	if err := s.Initialize(context.Background(), pts, 0, `valid(X) :- reachable(X, Y).`); err == nil {
		t.Error("want error for a program referencing no relations")
	}
}

func TestSampleSupportGrowsMonotonically(t *testing.T) {
	s, err := New(testMap(t), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	initial := relation.NewPointCollection(2)
	for _, p := range [][2]float64{{0, 0}, {-4, 6}, {5, 5}} {
		initial.Append(p[0], p[1], []float64{0, 0})
	}
	requested := map[relation.Kind][]string{relation.Distance: {"spot"}}
	if err := s.Sample(ctx, initial, 10, requested); err != nil {
		t.Fatal(err)
	}
	rel, err := s.Get(relation.Distance, "spot")
	if err != nil {
		t.Fatal(err)
	}
	if rel.Collection.Len() != 3 {
		t.Fatalf("support length %d, want 3", rel.Collection.Len())
	}
	before := append([]float64(nil), rel.Collection.Values(0)...)

	// A second round with a nil request set resamples the present pairs and
	// appends, never replaces.
	more := relation.NewPointCollection(2)
	more.Append(-8, -8, []float64{0, 0})
	if err := s.Sample(ctx, more, 10, nil); err != nil {
		t.Fatal(err)
	}
	rel, err = s.Get(relation.Distance, "spot")
	if err != nil {
		t.Fatal(err)
	}
	if rel.Collection.Len() != 4 {
		t.Fatalf("support length %d after growth, want 4", rel.Collection.Len())
	}
	after := rel.Collection.Values(0)
	if before[0] != after[0] || before[1] != after[1] {
		t.Errorf("growth disturbed existing support: %v -> %v", before, after)
	}
}

func TestSampleAbsentTypeUsesDefaults(t *testing.T) {
	s, err := New(testMap(t), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	pts := relation.NewPointCollection(2)
	pts.Append(0, 0, []float64{0, 0})
	requested := map[relation.Kind][]string{relation.Over: {"ghost"}}
	if err := s.Sample(context.Background(), pts, 5, requested); err != nil {
		t.Fatal(err)
	}
	rel, err := s.Get(relation.Over, "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if v := rel.Collection.Values(0); v[0] != 0 || v[1] != s.Floor {
		t.Errorf("absent-type parameters %v, want [0 %g]", v, s.Floor)
	}
}

func TestSampleUnsupportedKind(t *testing.T) {
	s, err := New(testMap(t), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	pts := relation.NewPointCollection(2)
	pts.Append(0, 0, []float64{0, 0})
	requested := map[relation.Kind][]string{relation.Kind("adjacency"): {"spot"}}
	if err := s.Sample(context.Background(), pts, 5, requested); err == nil {
		t.Error("want error for an unsupported requested relation")
	}
}

func TestGetReturnsDeepCopies(t *testing.T) {
	s, err := New(testMap(t), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	pts := relation.NewPointCollection(2)
	pts.Append(0, 0, []float64{0, 0})
	requested := map[relation.Kind][]string{relation.Depth: {"beacon"}}
	if err := s.Sample(context.Background(), pts, 5, requested); err != nil {
		t.Fatal(err)
	}

	rel, err := s.Get(relation.Depth, "beacon")
	if err != nil {
		t.Fatal(err)
	}
	want := append([]float64(nil), rel.Collection.Values(0)...)
	rel.Collection.SetValues(0, []float64{99, 99})

	again, err := s.Get(relation.Depth, "beacon")
	if err != nil {
		t.Fatal(err)
	}
	if v := again.Collection.Values(0); v[0] != want[0] || v[1] != want[1] {
		t.Errorf("mutating a Get result changed coordinator state: %v", v)
	}
}

func TestGetAll(t *testing.T) {
	s, err := New(testMap(t), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	pts := relation.NewPointCollection(2)
	pts.Append(0, 0, []float64{0, 0})
	program := `valid(X) :- distance(X, spot) < 5.`
	if err := s.Initialize(context.Background(), pts, 5, program); err != nil {
		t.Fatal(err)
	}

	all, err := s.GetAll("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[relation.Distance]["spot"] == nil {
		t.Errorf("GetAll(\"\") = %v", all)
	}

	some, err := s.GetAll(program)
	if err != nil {
		t.Fatal(err)
	}
	if some[relation.Distance]["spot"] == nil {
		t.Error("GetAll missing the referenced pair")
	}

	if _, err := s.GetAll(`valid(X) :- over(X, spot) == 1.`); err == nil {
		t.Error("want error for a referenced pair that was never sampled")
	}
}

func TestProgramOutput(t *testing.T) {
	s, err := New(testMap(t), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	pts := relation.NewPointCollection(2)
	pts.Append(-4, 6, []float64{0, 0})
	requested := map[relation.Kind][]string{relation.Distance: {"spot"}}
	if err := s.Sample(context.Background(), pts, 10, requested); err != nil {
		t.Fatal(err)
	}
	got := s.Program()
	if !strings.Contains(got, "distance(x_0, spot) ~ normal(") {
		t.Errorf("Program() = %q", got)
	}
}

// brokenShape fails its distance computation the way a degenerate geometry
// makes the spatial index fail numerically. Sampling returns the shape
// itself so every realization stays broken.
type brokenShape struct{ *geo.Location }

func init() { gob.Register(&brokenShape{}) }

func (s *brokenShape) Distance(geom.Point) float64 {
	panic("numerical failure in the spatial index")
}

func (s *brokenShape) Sample(rand.Source) (geo.Shape, error) { return s, nil }

func TestSampleQuarantinesFailingPair(t *testing.T) {
	m := testMap(t)
	m.Features = append(m.Features, &geo.Feature{
		ID: 3, Name: "m0", Type: "mine",
		Shape: &brokenShape{geo.NewLocation(geo.Local, 2, 2)},
	})
	s, err := New(m, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	pts := relation.NewPointCollection(2)
	pts.Append(0, 0, []float64{0, 0})
	requested := map[relation.Kind][]string{relation.Distance: {"mine", "spot"}}

	// The failing pair must not abort the call.
	if err := s.Sample(context.Background(), pts, 10, requested); err != nil {
		t.Fatal(err)
	}

	// The failed pair receives empty-map parameters (variance clipped up
	// to the floor).
	mine, err := s.Get(relation.Distance, "mine")
	if err != nil {
		t.Fatal(err)
	}
	if v := mine.Collection.Values(0); v[0] != 1e6 || v[1] != s.Floor {
		t.Errorf("failed pair parameters %v, want [1e6 %g]", v, s.Floor)
	}

	// The healthy pair in the same request is still estimated.
	spot, err := s.Get(relation.Distance, "spot")
	if err != nil {
		t.Fatal(err)
	}
	if v := spot.Collection.Values(0); v[0] <= 0 || v[0] > 100 {
		t.Errorf("healthy pair parameters %v look unestimated", v)
	}
}

func TestSaveLoad(t *testing.T) {
	s, err := New(testMap(t), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	pts := relation.NewPointCollection(2)
	pts.Append(0, 0, []float64{0, 0})
	requested := map[relation.Kind][]string{
		relation.Distance: {"spot"},
		relation.Depth:    {"beacon"},
	}
	if err := s.Sample(context.Background(), pts, 5, requested); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		t.Fatal(err)
	}
	got, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Map.Fingerprint() != s.Map.Fingerprint() {
		t.Error("map fingerprint changed across serialization")
	}
	if got.Floor != s.Floor || got.Realizations != s.Realizations {
		t.Errorf("metadata mismatch: %+v", got)
	}
	for kind, byType := range s.Relations {
		for typ, rel := range byType {
			lr := got.Relations[kind][typ]
			if lr == nil {
				t.Fatalf("relation %s/%s lost", kind, typ)
			}
			if lr.Collection.Len() != rel.Collection.Len() {
				t.Errorf("relation %s/%s support %d, want %d",
					kind, typ, lr.Collection.Len(), rel.Collection.Len())
			}
		}
	}
}
