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

// Package hash creates stable fingerprints of arbitrary objects.
package hash

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"fmt"
)

// Hash returns a hexadecimal sha256 fingerprint of the gob encoding of o.
// Objects that encode identically hash identically.
func Hash(o interface{}) string {
	w := bytes.NewBuffer(nil)
	e := gob.NewEncoder(w)
	if err := e.Encode(o); err != nil {
		panic(fmt.Errorf("hash: encoding %T: %v", o, err))
	}
	return fmt.Sprintf("%x", sha256.Sum256(w.Bytes()))
}
