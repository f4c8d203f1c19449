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
	"reflect"
	"testing"

	"github.com/spatialstat/starmap/relation"
)

func TestReferencedRelations(t *testing.T) {
	cases := []struct {
		name    string
		program string
		want    map[relation.Kind]map[string]bool
		wantErr bool
	}{
		{
			name:    "rule body",
			program: `valid(X) :- distance(X, land) > 10, over(X, "water") == 0.`,
			want: map[relation.Kind]map[string]bool{
				relation.Distance: {"land": true},
				relation.Over:     {"water": true},
			},
		},
		{
			name:    "repeated pairs deduplicate",
			program: `a(X) :- distance(X, land) > 1. b(X) :- distance(X, land) < 9.`,
			want: map[relation.Kind]map[string]bool{
				relation.Distance: {"land": true},
			},
		},
		{
			name:    "solver predicates are ignored",
			program: `valid(X) :- reachable(X, Y, Z), depth(X, seafloor) > -30.`,
			want: map[relation.Kind]map[string]bool{
				relation.Depth: {"seafloor": true},
			},
		},
		{
			name:    "no relations",
			program: `valid(X) :- reachable(X, Y).`,
			want:    map[relation.Kind]map[string]bool{},
		},
		{
			name:    "wrong arity",
			program: `valid(X) :- distance(X) > 10.`,
			wantErr: true,
		},
		{
			name:    "empty feature type",
			program: `valid(X) :- over(X, "") == 0.`,
			wantErr: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ReferencedRelations(c.program)
			if c.wantErr {
				if err == nil {
					t.Fatal("want error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}
