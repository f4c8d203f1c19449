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
	"encoding/gob"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"github.com/spatialstat/starmap/geo"
	"github.com/spatialstat/starmap/internal/hash"
	"github.com/spatialstat/starmap/relation"
	"golang.org/x/exp/rand"
)

// StaRMap owns an uncertainty-annotated feature map and, per
// (relation, feature type) pair, a growing collection of support points
// with estimated Gaussian parameters. Support grows monotonically: new
// points are appended, never removed. Relations are created lazily on the
// first estimate for a pair.
//
// Sample calls against the same (relation, type) pair must not interleave;
// the nested relation mapping is mutated only between parallel phases.
type StaRMap struct {
	// Map is the uncertainty-annotated feature map in the local frame.
	Map *geo.FeatureMap

	// Relations maps relation kind → feature type → estimated relation.
	Relations map[relation.Kind]map[string]*relation.ScalarRelation

	// Floor is the variance floor applied to every relation.
	Floor float64

	// Realizations is the default realization count per estimate.
	Realizations int

	cacheDir string
	src      rand.Source
	loadOnce sync.Once
	cache    *requestcache.Cache
}

// New returns a StaRMap over m, converting it to the local frame if needed.
// A nil config uses DefaultConfig.
func New(m *geo.FeatureMap, cfg *Config) (*StaRMap, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	local, err := m.ToLocal()
	if err != nil {
		return nil, err
	}
	s := &StaRMap{
		Map:          local,
		Relations:    make(map[relation.Kind]map[string]*relation.ScalarRelation),
		Floor:        cfg.VarianceFloor,
		Realizations: cfg.RealizationCount,
		cacheDir:     cfg.CacheDir,
	}
	if cfg.Seed != 0 {
		s.src = rand.NewSource(cfg.Seed)
	}
	return s, nil
}

// Initialize parses the constraint program for referenced
// (relation, feature type) pairs and samples exactly that set at the given
// evaluation points.
func (s *StaRMap) Initialize(ctx context.Context, points relation.Collection, n int, program string) error {
	pairs, err := ReferencedRelations(program)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return fmt.Errorf("starmap: constraint program references no spatial relations")
	}
	requested := make(map[relation.Kind][]string)
	for kind, types := range pairs {
		for typ := range types {
			requested[kind] = append(requested[kind], typ)
		}
	}
	return s.Sample(ctx, points, n, requested)
}

// Sample estimates relation parameters at the evaluation points over n map
// realizations and appends them to the per-pair support collections. A nil
// requested set defaults to every pair already present in the map. A
// failure inside one pair's estimate is logged and replaced with empty-map
// defaults for every affected point; other pairs proceed unaffected.
func (s *StaRMap) Sample(ctx context.Context, points relation.Collection, n int, requested map[relation.Kind][]string) error {
	if n <= 0 {
		n = s.Realizations
	}
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

	mapFP := s.Map.Fingerprint()
	indicesByType := make(map[string][]*relation.Index)
	for typ := range types {
		ixs, err := s.typeIndices(typ, n)
		if err != nil {
			return err
		}
		indicesByType[typ] = ixs
	}

	for _, kind := range sortedKinds(requested) {
		for _, typ := range sortedStrings(requested[kind]) {
			result := s.estimatePair(ctx, kind, typ, points, indicesByType[typ], n, mapFP)
			if err := s.appendPair(kind, typ, result); err != nil {
				return err
			}
		}
	}
	return nil
}

// typeIndices filters the map to one feature type and builds one spatial
// index per sampled realization. A type absent from the map returns nil,
// the marker for empty-map defaults downstream. Index construction is
// independent across realizations and runs in parallel.
func (s *StaRMap) typeIndices(typ string, n int) ([]*relation.Index, error) {
	filtered := s.Map.FilterType(typ)
	if len(filtered.Features) == 0 {
		return nil, nil
	}
	maps, err := filtered.Sample(n, s.src)
	if err != nil {
		return nil, fmt.Errorf("starmap: sampling %d realizations of %q: %w", n, typ, err)
	}
	indices := make([]*relation.Index, n)
	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for procnum := 0; procnum < nprocs; procnum++ {
		go func(procnum int) {
			defer wg.Done()
			for i := procnum; i < n; i += nprocs {
				indices[i] = relation.NewIndex(maps[i].Features)
			}
		}(procnum)
	}
	wg.Wait()
	return indices, nil
}

// estimateRequest is the payload handed to the estimation cache.
type estimateRequest struct {
	kind    relation.Kind
	typ     string
	support relation.Collection
	indices []*relation.Index
	floor   float64
}

// estimateWorker runs one (relation, type) estimate. Estimation panics on
// the estimation goroutines are converted to errors inside FromIndices;
// the recover here covers the merge phase, so one pair cannot abort the
// whole Sample call.
func (s *StaRMap) estimateWorker(_ context.Context, reqI interface{}) (result interface{}, err error) {
	req := reqI.(*estimateRequest)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("starmap: estimating %s/%s: %v", req.kind, req.typ, r)
		}
	}()
	rel, err := relation.FromIndices(req.support, req.indices, req.kind, req.typ, req.floor)
	if err != nil {
		return nil, err
	}
	return rel.Collection, nil
}

// estimatePair returns the estimated [mean, variance] collection for one
// pair, consulting the content-addressed cache. Failures are logged and
// substituted with empty-map parameters for every point.
func (s *StaRMap) estimatePair(ctx context.Context, kind relation.Kind, typ string,
	points relation.Collection, indices []*relation.Index, n int, mapFP string) relation.Collection {
	s.loadOnce.Do(func() {
		s.cache = loadCacheOnce(s.estimateWorker, 1, 100, s.cacheDir,
			requestcache.MarshalGob, requestcache.UnmarshalGob)
	})
	key := fmt.Sprintf("estimate_%s_%s_%d_%.16s_%.16s",
		kind, typ, n, mapFP, hash.Hash(points))
	r := s.cache.NewRequest(ctx, &estimateRequest{
		kind: kind, typ: typ, support: points, indices: indices, floor: s.Floor,
	}, key)
	resultI, err := r.Result()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"relation": string(kind),
			"type":     typ,
			"points":   points.Len(),
		}).WithError(err).Warn("starmap: relation estimate failed; substituting empty-map parameters")
		fallback, ferr := relation.FromIndices(points, nil, kind, typ, s.Floor)
		if ferr != nil {
			panic(ferr) // cannot happen: the empty-map path has no failure mode
		}
		return fallback.Collection
	}
	return resultI.(relation.Collection)
}

// appendPair merges one estimate into the lazily created relation.
func (s *StaRMap) appendPair(kind relation.Kind, typ string, result relation.Collection) error {
	if s.Relations[kind] == nil {
		s.Relations[kind] = make(map[string]*relation.ScalarRelation)
	}
	rel, ok := s.Relations[kind][typ]
	if !ok {
		s.Relations[kind][typ] = relation.NewScalarRelation(kind, typ, result.Copy(), s.Floor)
		return nil
	}
	return rel.Append(result)
}

// presentPairs returns every (relation, type) pair already in the map.
func (s *StaRMap) presentPairs() map[relation.Kind][]string {
	o := make(map[relation.Kind][]string)
	for kind, byType := range s.Relations {
		for typ := range byType {
			o[kind] = append(o[kind], typ)
		}
	}
	return o
}

// Get returns a deep copy of the relation for one pair. Callers cannot
// mutate coordinator state through the returned value.
func (s *StaRMap) Get(kind relation.Kind, typ string) (*relation.ScalarRelation, error) {
	rel, ok := s.Relations[kind][typ]
	if !ok {
		return nil, fmt.Errorf("starmap: relation %s/%s has not been sampled", kind, typ)
	}
	return rel.Copy(), nil
}

// GetAll returns deep copies of the sampled relations. With a nonempty
// constraint program, the result is restricted to exactly the referenced
// pairs, and a referenced pair that was never sampled is an error.
func (s *StaRMap) GetAll(program string) (map[relation.Kind]map[string]*relation.ScalarRelation, error) {
	o := make(map[relation.Kind]map[string]*relation.ScalarRelation)
	if program == "" {
		for kind, byType := range s.Relations {
			o[kind] = make(map[string]*relation.ScalarRelation)
			for typ, rel := range byType {
				o[kind][typ] = rel.Copy()
			}
		}
		return o, nil
	}
	pairs, err := ReferencedRelations(program)
	if err != nil {
		return nil, err
	}
	for kind, types := range pairs {
		for typ := range types {
			rel, err := s.Get(kind, typ)
			if err != nil {
				return nil, err
			}
			if o[kind] == nil {
				o[kind] = make(map[string]*relation.ScalarRelation)
			}
			o[kind][typ] = rel
		}
	}
	return o, nil
}

// Program serializes every sampled relation as Gaussian statements for the
// downstream inference engine.
func (s *StaRMap) Program() string {
	var b strings.Builder
	pairs := s.presentPairs()
	for _, kind := range sortedKinds(pairs) {
		for _, typ := range sortedStrings(pairs[kind]) {
			b.WriteString(s.Relations[kind][typ].Program())
		}
	}
	return b.String()
}

// Save serializes the map and all sampled relations to w.
func (s *StaRMap) Save(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(saved{
		Map: s.Map, Relations: s.Relations, Floor: s.Floor, Realizations: s.Realizations,
	}); err != nil {
		return fmt.Errorf("starmap: encoding: %w", err)
	}
	return nil
}

// Load deserializes a StaRMap written by Save.
func Load(r io.Reader) (*StaRMap, error) {
	var v saved
	if err := gob.NewDecoder(r).Decode(&v); err != nil {
		return nil, fmt.Errorf("starmap: decoding: %w", err)
	}
	return &StaRMap{
		Map: v.Map, Relations: v.Relations, Floor: v.Floor, Realizations: v.Realizations,
	}, nil
}

// saved is the serialized form of a StaRMap.
type saved struct {
	Map          *geo.FeatureMap
	Relations    map[relation.Kind]map[string]*relation.ScalarRelation
	Floor        float64
	Realizations int
}

func sortedKinds(m map[relation.Kind][]string) []relation.Kind {
	o := make([]relation.Kind, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	sort.Slice(o, func(i, j int) bool { return o[i] < o[j] })
	return o
}

func sortedStrings(s []string) []string {
	o := append([]string(nil), s...)
	sort.Strings(o)
	return o
}
