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
	"sort"

	"github.com/ctessum/geom"
)

// assemble converts the unordered rings of a clipping result into a
// MultiPolygon. Rings are nested by containment: a ring inside an even
// number of other rings is an exterior and a ring inside an odd number is
// a hole of the smallest ring containing it. Slivers are dropped, exteriors
// are made counter-clockwise and holes clockwise, and polygons are ordered
// from largest to smallest.
func assemble(g geom.Polygonal, eps, minArea float64) geom.MultiPolygon {
	if g == nil {
		return geom.MultiPolygon{}
	}
	type ring struct {
		path   geom.Path
		area   float64
		bounds *geom.Bounds
		depth  int
		poly   int // index of the output polygon, for exteriors
	}
	var rings []*ring
	for _, p := range g.Polygons() {
		for _, r := range p {
			c := cleanRing(r)
			if len(c) < 4 || isSliver(c, eps, minArea) {
				continue
			}
			rings = append(rings, &ring{
				path:   c,
				area:   math.Abs(signedArea(c)),
				bounds: geom.Polygon{c}.Bounds(),
			})
		}
	}
	sort.SliceStable(rings, func(i, j int) bool { return rings[i].area > rings[j].area })

	o := geom.MultiPolygon{}
	for i, r := range rings {
		parent := -1
		// Rings are sorted by decreasing area, so the first container
		// found walking backwards is the smallest one.
		for j := i - 1; j >= 0; j-- {
			if ringContains(rings[j].path, rings[j].bounds, r.path, r.bounds) {
				parent = j
				break
			}
		}
		if parent >= 0 {
			r.depth = rings[parent].depth + 1
		}
		if r.depth%2 == 0 {
			r.poly = len(o)
			o = append(o, geom.Polygon{orient(r.path, true)})
		} else {
			pi := rings[parent].poly
			o[pi] = append(o[pi], orient(r.path, false))
		}
	}
	return o
}

// orient returns r wound counter-clockwise if ccw is true and clockwise
// otherwise.
func orient(r geom.Path, ccw bool) geom.Path {
	if (signedArea(r) > 0) == ccw {
		return r
	}
	o := make(geom.Path, len(r))
	for i, p := range r {
		o[len(r)-1-i] = p
	}
	return o
}

// ringContains reports whether the area enclosed by inner lies within the
// area enclosed by outer. Rings may touch. Two rings that coincide are not
// considered to contain each other.
func ringContains(outer geom.Path, outerB *geom.Bounds, inner geom.Path, innerB *geom.Bounds) bool {
	if innerB.Min.X < outerB.Min.X || innerB.Min.Y < outerB.Min.Y ||
		innerB.Max.X > outerB.Max.X || innerB.Max.Y > outerB.Max.Y {
		return false
	}
	op := geom.Polygon{outer}
	for _, p := range inner {
		switch p.Within(op) {
		case geom.Inside:
			return true
		case geom.Outside:
			return false
		}
	}
	// Every vertex is on the boundary of outer, so check the middle of
	// each edge instead.
	for i := 1; i < len(inner); i++ {
		m := geom.Point{X: (inner[i-1].X + inner[i].X) / 2, Y: (inner[i-1].Y + inner[i].Y) / 2}
		switch m.Within(op) {
		case geom.Inside:
			return true
		case geom.Outside:
			return false
		}
	}
	return false
}
