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
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starmap.toml")
	err := os.WriteFile(path, []byte(`
RealizationCount = 10
VarianceFloor = 0.01
Acquisition = "surrogate"
Seed = 42
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.RealizationCount != 10 || c.VarianceFloor != 0.01 ||
		c.Acquisition != AcquireSurrogate || c.Seed != 42 {
		t.Errorf("config = %+v", c)
	}
}

func TestConfigValid(t *testing.T) {
	if err := DefaultConfig().Valid(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	c := DefaultConfig()
	c.RealizationCount = 0
	if err := c.Valid(); err == nil {
		t.Error("want error for zero realizations")
	}
	c = DefaultConfig()
	c.Acquisition = "oracle"
	if err := c.Valid(); err == nil {
		t.Error("want error for unknown acquisition method")
	}
}
