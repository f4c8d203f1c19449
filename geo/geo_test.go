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
	"bytes"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/ctessum/geom"
	"golang.org/x/exp/rand"
)

func TestLocationDistanceTo(t *testing.T) {
	t.Run("global", func(t *testing.T) {
		// One degree along the equator is R * π/180 meters.
		a := NewLocation(Global, 0, 0)
		b := NewLocation(Global, 1, 0)
		d, err := a.DistanceTo(b)
		if err != nil {
			t.Fatal(err)
		}
		want := EarthRadius * math.Pi / 180
		if math.Abs(d-want) > 1e-3 {
			t.Errorf("distance = %g, want %g", d, want)
		}
	})
	t.Run("local", func(t *testing.T) {
		a := NewLocation(Local, 0, 0)
		b := NewLocation(Local, 3, 4)
		d, err := a.DistanceTo(b)
		if err != nil {
			t.Fatal(err)
		}
		if d != 5 {
			t.Errorf("distance = %g, want 5", d)
		}
	})
	t.Run("frame mismatch", func(t *testing.T) {
		a := NewLocation(Local, 0, 0)
		b := NewLocation(Global, 0, 0)
		if _, err := a.DistanceTo(b); err == nil {
			t.Error("want error for mixed-frame distance")
		}
	})
}

func TestCovarianceSampling(t *testing.T) {
	src := rand.NewSource(1)

	t.Run("zero covariance samples to itself", func(t *testing.T) {
		l := NewLocation(Local, 2, 3)
		s, err := l.Sample(src)
		if err != nil {
			t.Fatal(err)
		}
		sl := s.(*Location)
		if sl.X != 2 || sl.Y != 3 {
			t.Errorf("sampled to (%g, %g), want (2, 3)", sl.X, sl.Y)
		}
	})
	t.Run("zero-variance axis stays fixed", func(t *testing.T) {
		l := NewLocation(Local, 0, 0)
		l.SetCovariance(&Covariance{XX: 1, YY: 0})
		moved := false
		for i := 0; i < 10; i++ {
			s, err := l.Sample(src)
			if err != nil {
				t.Fatal(err)
			}
			sl := s.(*Location)
			if sl.Y != 0 {
				t.Fatalf("zero-variance Y axis moved to %g", sl.Y)
			}
			if sl.X != 0 {
				moved = true
			}
		}
		if !moved {
			t.Error("X axis with unit variance never moved")
		}
	})
	t.Run("indefinite covariance is an error", func(t *testing.T) {
		l := NewLocation(Local, 0, 0)
		l.SetCovariance(&Covariance{XX: 1, XY: 2, YY: 1})
		if _, err := l.Sample(src); err == nil {
			t.Error("want error for non-positive-definite covariance")
		}
	})
	t.Run("rigid translation for polygons", func(t *testing.T) {
		pg, err := NewPolygon(Local, []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}})
		if err != nil {
			t.Fatal(err)
		}
		pg.SetCovariance(&Covariance{XX: 4, YY: 4})
		s, err := pg.Sample(src)
		if err != nil {
			t.Fatal(err)
		}
		ring := s.(*Polygon).Rings[0]
		// All vertices share one offset.
		dx, dy := ring[0].X, ring[0].Y
		if math.Abs(ring[1].X-1-dx) > 1e-12 || math.Abs(ring[2].Y-1-dy) > 1e-12 {
			t.Errorf("vertices perturbed independently: %v", ring)
		}
	})
}

func TestShapeDistanceContains(t *testing.T) {
	pg, err := NewPolygon(Local, []geom.Point{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	ln, err := NewPolyLine(Local, []geom.Point{{X: 0, Y: 0}, {X: 2, Y: 0}})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		s        Shape
		p        geom.Point
		dist     float64
		contains bool
	}{
		{pg, geom.Point{X: 0.5, Y: 0.5}, 0, true},
		{pg, geom.Point{X: 2, Y: 0.5}, 1, false},
		{pg, geom.Point{X: 0.5, Y: -2}, 2, false},
		{ln, geom.Point{X: 1, Y: 3}, 3, false},
		{ln, geom.Point{X: -1, Y: 0}, 1, false},
		{NewLocation(Local, 1, 1), geom.Point{X: 4, Y: 5}, 5, false},
	}
	for i, c := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			if d := c.s.Distance(c.p); math.Abs(d-c.dist) > 1e-12 {
				t.Errorf("distance = %g, want %g", d, c.dist)
			}
			if got := c.s.Contains(c.p); got != c.contains {
				t.Errorf("contains = %v, want %v", got, c.contains)
			}
		})
	}
}

func TestFeatureMapFrameRoundTrip(t *testing.T) {
	origin := NewLocation(Global, -30, 45)
	m := NewFeatureMap(origin, 20000, 20000)
	m.Features = []*Feature{
		NewFeature("beacon", "b0", NewLocation(Global, -30+0.01, 45)),
	}

	local, err := m.ToLocal()
	if err != nil {
		t.Fatal(err)
	}
	if local.Frame != Local {
		t.Fatalf("frame = %v, want local", local.Frame)
	}
	l := local.Features[0].Shape.(*Location)
	// 0.01° east at 45°N is roughly cos(45°) of an equatorial hundredth-degree.
	want := EarthRadius * math.Pi / 180 * 0.01 * math.Cos(45*math.Pi/180)
	if math.Abs(l.X-want) > want*0.01 {
		t.Errorf("local X = %g, want ≈%g", l.X, want)
	}
	if math.Abs(l.Y) > 50 {
		t.Errorf("local Y = %g, want ≈0", l.Y)
	}

	global, err := local.ToGlobal()
	if err != nil {
		t.Fatal(err)
	}
	g := global.Features[0].Shape.(*Location)
	if math.Abs(g.X-(-30+0.01)) > 1e-6 || math.Abs(g.Y-45) > 1e-6 {
		t.Errorf("round trip landed at (%g, %g)", g.X, g.Y)
	}

	// Maps already in the target frame convert to themselves.
	if again, err := global.ToGlobal(); err != nil || again != global {
		t.Errorf("ToGlobal on a global map should be a no-op (err %v)", err)
	}
}

func TestFeatureMapTypes(t *testing.T) {
	m := NewFeatureMap(NewLocation(Global, 0, 0), 100, 100)
	m.Frame = Local
	m.Features = []*Feature{
		NewFeature("land", "a", NewLocation(Local, 0, 0)),
		NewFeature("water", "b", NewLocation(Local, 1, 1)),
		NewFeature("land", "c", NewLocation(Local, 2, 2)),
	}
	if got, want := m.Types(), []string{"land", "water"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Types() = %v, want %v", got, want)
	}
	if got := m.FilterType("land"); len(got.Features) != 2 {
		t.Errorf("FilterType(land) kept %d features, want 2", len(got.Features))
	}
	if got := m.FilterType("road"); len(got.Features) != 0 {
		t.Errorf("FilterType(road) kept %d features, want 0", len(got.Features))
	}

	cov := &Covariance{XX: 1, YY: 1}
	m.ApplyCovarianceByType(map[string]*Covariance{"water": cov})
	if m.Features[0].Shape.Covariance() != nil {
		t.Error("land covariance assigned by a water-only mapping")
	}
	if m.Features[1].Shape.Covariance() != cov {
		t.Error("water covariance not assigned")
	}
	m.ApplyCovariance(cov)
	for i, f := range m.Features {
		if f.Shape.Covariance() != cov {
			t.Errorf("feature %d missing map-wide covariance", i)
		}
	}
}

func TestFeatureMapSampleIndependence(t *testing.T) {
	m := NewFeatureMap(NewLocation(Global, 0, 0), 100, 100)
	m.Frame = Local
	m.Features = []*Feature{NewFeature("spot", "s", NewLocation(Local, 0, 0))}
	m.ApplyCovariance(&Covariance{XX: 1, YY: 1})

	maps, err := m.Sample(3, rand.NewSource(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(maps) != 3 {
		t.Fatalf("got %d realizations, want 3", len(maps))
	}
	// The source map is untouched.
	if l := m.Features[0].Shape.(*Location); l.X != 0 || l.Y != 0 {
		t.Errorf("sampling moved the source map to (%g, %g)", l.X, l.Y)
	}
	a := maps[0].Features[0].Shape.(*Location)
	b := maps[1].Features[0].Shape.(*Location)
	if a.X == b.X && a.Y == b.Y {
		t.Error("realizations are not independent draws")
	}
}

func TestFeatureMapSaveLoad(t *testing.T) {
	pg, err := NewPolygon(Local, []geom.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 1, Y: 2}})
	if err != nil {
		t.Fatal(err)
	}
	ln, err := NewPolyLine(Local, []geom.Point{{X: -1, Y: 0}, {X: 1, Y: 0}})
	if err != nil {
		t.Fatal(err)
	}
	m := NewFeatureMap(NewLocation(Global, -30, 45), 1000, 1000)
	m.Frame = Local
	m.Features = []*Feature{
		{ID: 1, Name: "a", Type: "land", Shape: pg},
		{ID: 2, Name: "b", Type: "road", Shape: ln},
		{ID: 3, Name: "c", Type: "beacon", Elevation: -12, Shape: NewLocation(Local, 5, 5)},
	}
	m.ApplyCovarianceByType(map[string]*Covariance{"land": {XX: 1, XY: 0.5, YY: 2}})

	var buf bytes.Buffer
	if err := m.Save(&buf); err != nil {
		t.Fatal(err)
	}
	got, err := LoadFeatureMap(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, m) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, m)
	}
	if got.Fingerprint() != m.Fingerprint() {
		t.Error("fingerprint changed across serialization")
	}
}

func TestFingerprintTracksCovariance(t *testing.T) {
	m := NewFeatureMap(NewLocation(Global, 0, 0), 100, 100)
	m.Frame = Local
	m.Features = []*Feature{{ID: 1, Type: "spot", Shape: NewLocation(Local, 0, 0)}}
	before := m.Fingerprint()
	m.ApplyCovariance(&Covariance{XX: 1, YY: 1})
	if m.Fingerprint() == before {
		t.Error("fingerprint ignores covariance assignment")
	}
}

func TestShapeConstructors(t *testing.T) {
	if _, err := NewPolyLine(Local, []geom.Point{{X: 0, Y: 0}}); err == nil {
		t.Error("want error for one-vertex polyline")
	}
	if _, err := NewPolygon(Local, []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}); err == nil {
		t.Error("want error for two-vertex polygon")
	}
}
