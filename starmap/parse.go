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
	"fmt"
	"regexp"
	"strings"

	"github.com/spatialstat/starmap/relation"
)

// atomPattern matches an applied predicate, e.g. `distance(X, land)` or
// `over(X, "water")`. Arguments are inspected separately so that wrong
// arities can be rejected rather than silently unmatched.
var atomPattern = regexp.MustCompile(`([A-Za-z_]\w*)\s*\(([^()]*)\)`)

// ReferencedRelations parses a constraint program and returns the
// (relation, feature type) pairs it references. A relation name applied to
// anything other than exactly two arguments (the agent variable and a
// feature type, optionally quoted) is an error. Predicates that are not
// relation names belong to the downstream solver and are ignored.
func ReferencedRelations(program string) (map[relation.Kind]map[string]bool, error) {
	o := make(map[relation.Kind]map[string]bool)
	for _, m := range atomPattern.FindAllStringSubmatch(program, -1) {
		kind, err := relation.ParseKind(m[1])
		if err != nil {
			continue
		}
		args := splitArgs(m[2])
		if len(args) != kind.Arity() {
			return nil, fmt.Errorf("starmap: %s takes %d arguments (agent, feature type), got %d in %q",
				m[1], kind.Arity(), len(args), strings.TrimSpace(m[0]))
		}
		typ := strings.Trim(args[1], `"'`)
		if typ == "" {
			return nil, fmt.Errorf("starmap: empty feature type in %q", strings.TrimSpace(m[0]))
		}
		if o[kind] == nil {
			o[kind] = make(map[string]bool)
		}
		o[kind][typ] = true
	}
	return o, nil
}

// splitArgs splits a predicate argument list on commas and trims the
// entries. Empty entries are kept so that trailing commas fail the arity
// or feature-type checks rather than pass silently.
func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
