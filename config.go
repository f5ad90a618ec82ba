/*
Copyright © 2026 the vparcel authors.
This file is part of vparcel.

vparcel is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

vparcel is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with vparcel.  If not, see <http://www.gnu.org/licenses/>.
*/

package vparcel

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Config holds the settings of an Engine.
type Config struct {
	// Epsilon is the size of the grid that all coordinates are snapped to
	// before clipping, in working coordinate units. Vertices closer
	// together than Epsilon are treated as coincident. Use something like
	// 1e-9 for geographic degrees and 1e-6 for projected meters.
	Epsilon float64

	// EpsilonGrowth is the factor Epsilon is multiplied by each time a
	// clipping attempt produces an inconsistent result.
	EpsilonGrowth float64

	// MaxAttempts is the number of clipping attempts before giving up
	// with a NumericInstability error.
	MaxAttempts int

	// MinRingArea is the area at or below which a ring is considered a
	// sliver and dropped. Rings narrower than Epsilon are always dropped.
	MinRingArea float64

	// MaxVertices is the maximum total number of input vertices
	// (field block plus obstructions). Zero means no limit.
	MaxVertices int

	// MaxObstructions is the maximum number of obstructions. Zero means
	// no limit.
	MaxObstructions int

	// InputSR and WorkingSR are optional spatial reference definitions in
	// proj4 format. When both are set, inputs are transformed from InputSR
	// to WorkingSR for the calculation and the result is transformed back,
	// so the net area is reported in WorkingSR units.
	InputSR, WorkingSR string

	// Clipper performs the boolean operations. If nil, PolyClip is used.
	Clipper Clipper

	// Log receives debugging information. If nil, the standard logrus
	// logger is used.
	Log logrus.FieldLogger
}

// DefaultConfig returns the default engine settings.
func DefaultConfig() *Config {
	return &Config{
		Epsilon:         1e-9,
		EpsilonGrowth:   10,
		MaxAttempts:     3,
		MaxVertices:     200000,
		MaxObstructions: 10000,
	}
}

func (c *Config) check() error {
	if !(c.Epsilon > 0) || math.IsInf(c.Epsilon, 0) {
		return fmt.Errorf("vparcel: Epsilon=%g but should be >0", c.Epsilon)
	}
	if !(c.EpsilonGrowth > 1) || math.IsInf(c.EpsilonGrowth, 0) {
		return fmt.Errorf("vparcel: EpsilonGrowth=%g but should be >1", c.EpsilonGrowth)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("vparcel: MaxAttempts=%d but should be >=1", c.MaxAttempts)
	}
	if c.MinRingArea < 0 || math.IsNaN(c.MinRingArea) {
		return fmt.Errorf("vparcel: MinRingArea=%g but should be >=0", c.MinRingArea)
	}
	if c.MaxVertices < 0 {
		return fmt.Errorf("vparcel: MaxVertices=%d but should be >=0", c.MaxVertices)
	}
	if c.MaxObstructions < 0 {
		return fmt.Errorf("vparcel: MaxObstructions=%d but should be >=0", c.MaxObstructions)
	}
	if (c.InputSR == "") != (c.WorkingSR == "") {
		return fmt.Errorf("vparcel: InputSR and WorkingSR must either both be set or both be empty")
	}
	return nil
}
