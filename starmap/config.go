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

// Package starmap coordinates Monte-Carlo estimation of spatial relation
// statistics over an uncertainty-annotated feature map.
package starmap

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spatialstat/starmap/relation"
)

// Config holds the engine configuration.
type Config struct {
	// RealizationCount is the default number of sampled map realizations
	// per estimate.
	RealizationCount int

	// VarianceFloor is the minimum stored variance of Gaussian relations.
	VarianceFloor float64

	// CacheDir, if nonempty, enables the on-disk layer of the estimation
	// cache.
	CacheDir string

	// Acquisition selects the active-sampling scoring method.
	Acquisition Acquisition

	// Seed initializes the sampling random source. Zero seeds from the
	// global source.
	Seed uint64
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() *Config {
	return &Config{
		RealizationCount: 50,
		VarianceFloor:    relation.DefaultVarianceFloor,
		Acquisition:      AcquireEntropy,
	}
}

// LoadConfig reads a TOML configuration file.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, fmt.Errorf("starmap: decoding config %s: %w", path, err)
	}
	if err := c.Valid(); err != nil {
		return nil, err
	}
	return c, nil
}

// Valid checks the configuration for fatal errors.
func (c *Config) Valid() error {
	if c.RealizationCount < 1 {
		return fmt.Errorf("starmap: realization count %d must be ≥1", c.RealizationCount)
	}
	switch c.Acquisition {
	case AcquireEntropy, AcquireSurrogate:
	default:
		return fmt.Errorf("starmap: unknown acquisition method %q", string(c.Acquisition))
	}
	return nil
}
