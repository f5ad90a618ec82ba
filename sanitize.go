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
	"math"

	"github.com/ctessum/geom"
)

// cleanPolygon checks that every coordinate in p is finite and that every
// ring has at least three distinct vertices. It returns a copy of p where
// each ring is closed and has no consecutive duplicate vertices.
func cleanPolygon(p geom.Polygon, ref inputRef) (geom.Polygon, error) {
	if len(p) == 0 {
		return nil, ref.invalid(-1, "polygon has no rings")
	}
	o := make(geom.Polygon, len(p))
	for i, r := range p {
		for _, pt := range r {
			if !finite(pt) {
				return nil, ref.invalid(i, "non-finite coordinate (%g, %g)", pt.X, pt.Y)
			}
		}
		c := cleanRing(r)
		if n := distinctPoints(c); n < 3 {
			return nil, ref.invalid(i, "ring has %d distinct vertices but needs at least 3", n)
		}
		o[i] = c
	}
	return o, nil
}

func finite(p geom.Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// cleanRing returns a copy of r without consecutive duplicate vertices,
// closed so that the first and last vertices are equal.
func cleanRing(r geom.Path) geom.Path {
	o := make(geom.Path, 0, len(r)+1)
	for _, p := range r {
		if len(o) > 0 && o[len(o)-1].Equals(p) {
			continue
		}
		o = append(o, p)
	}
	// The closing vertex may have been given explicitly and also
	// repeated, e.g. [a b c a a].
	for len(o) > 1 && o[len(o)-1].Equals(o[0]) {
		o = o[:len(o)-1]
	}
	if len(o) > 0 {
		o = append(o, o[0])
	}
	return o
}

func distinctPoints(r geom.Path) int {
	seen := make(map[geom.Point]struct{}, len(r))
	for _, p := range r {
		seen[p] = struct{}{}
	}
	return len(seen)
}

func numVertices(p geom.Polygon) int {
	n := 0
	for _, r := range p {
		n += len(r)
	}
	return n
}

// snapper moves coordinates onto a regular grid with spacing eps whose
// origin is at o, so that vertices closer together than eps coincide
// exactly. Working relative to o also keeps the magnitude of projected
// coordinates small during clipping.
type snapper struct {
	o     geom.Point
	scale float64 // grid points per unit, or 0 to divide by eps
	eps   float64
}

func newSnapper(o geom.Point, eps float64) snapper {
	// 1/1e-9 is not exactly 1e9, and rounding with an inexact scale
	// would move points that are already on the grid.
	if inv := 1 / eps; inv >= 1 && math.Abs(inv-math.Round(inv)) <= 1e-6*inv {
		return snapper{o: o, scale: math.Round(inv), eps: eps}
	}
	return snapper{o: o, eps: eps}
}

func (s snapper) round(v float64) float64 {
	if s.scale > 0 {
		return math.Round(v*s.scale) / s.scale
	}
	return math.Round(v/s.eps) * s.eps
}

func (s snapper) snap(p geom.Point) geom.Point {
	return geom.Point{X: s.round(p.X - s.o.X), Y: s.round(p.Y - s.o.Y)}
}

// snapRelative rounds p, which is already relative to the grid origin,
// to the nearest grid point.
func (s snapper) snapRelative(p geom.Point) geom.Point {
	return geom.Point{X: s.round(p.X), Y: s.round(p.Y)}
}

// snapRing snaps the vertices of r and removes vertices that became
// duplicates. It returns nil if fewer than three distinct vertices remain.
func (s snapper) snapRing(r geom.Path) geom.Path {
	o := make(geom.Path, len(r))
	for i, p := range r {
		o[i] = s.snap(p)
	}
	o = cleanRing(o)
	if distinctPoints(o) < 3 {
		return nil
	}
	return o
}

// restore undoes the translation (but not the rounding) of snap.
func (s snapper) restore(mp geom.MultiPolygon) geom.MultiPolygon {
	o := make(geom.MultiPolygon, len(mp))
	for i, p := range mp {
		o[i] = make(geom.Polygon, len(p))
		for j, r := range p {
			o[i][j] = make(geom.Path, len(r))
			for k, pt := range r {
				o[i][j][k] = geom.Point{X: pt.X + s.o.X, Y: pt.Y + s.o.Y}
			}
		}
	}
	return o
}
