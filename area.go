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
	"gonum.org/v1/gonum/floats"
)

// signedArea calculates the area of ring r with the shoelace formula.
// The result is positive for counter-clockwise rings. r may or may not
// be closed.
func signedArea(r geom.Path) float64 {
	if len(r) < 3 {
		return 0
	}
	// Shift to the first vertex to limit cancellation for large coordinates.
	o := r[0]
	a := 0.
	for i := 1; i < len(r)-1; i++ {
		x1, y1 := r[i].X-o.X, r[i].Y-o.Y
		x2, y2 := r[i+1].X-o.X, r[i+1].Y-o.Y
		a += x1*y2 - x2*y1
	}
	return a / 2
}

// perimeter returns the length of ring r, including the closing segment.
func perimeter(r geom.Path) float64 {
	if len(r) < 2 {
		return 0
	}
	l := 0.
	for i := 1; i < len(r); i++ {
		l += math.Hypot(r[i].X-r[i-1].X, r[i].Y-r[i-1].Y)
	}
	if !r[0].Equals(r[len(r)-1]) {
		l += math.Hypot(r[0].X-r[len(r)-1].X, r[0].Y-r[len(r)-1].Y)
	}
	return l
}

// PolygonArea returns the net area of p: the area of its exterior ring
// minus the areas of its holes, regardless of winding order.
func PolygonArea(p geom.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	a := make([]float64, len(p))
	a[0] = math.Abs(signedArea(p[0]))
	for i, h := range p[1:] {
		a[i+1] = -math.Abs(signedArea(h))
	}
	return floats.Sum(a)
}

// NetArea returns the sum of the net areas of the polygons in mp.
func NetArea(mp geom.MultiPolygon) float64 {
	if len(mp) == 0 {
		return 0
	}
	a := make([]float64, len(mp))
	for i, p := range mp {
		a[i] = PolygonArea(p)
	}
	return floats.Sum(a)
}

// isSliver reports whether ring r should be discarded as numerical
// debris: its area is at or below minArea, or its mean width
// (area over half the perimeter) is at or below eps.
func isSliver(r geom.Path, eps, minArea float64) bool {
	a := math.Abs(signedArea(r))
	if a == 0 || a <= minArea {
		return true
	}
	return a <= eps*perimeter(r)/2
}
