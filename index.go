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
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// indexedObstruction is an obstruction stored in a spatial index.
type indexedObstruction struct {
	geom.Polygonal
	index int
}

// nearbyObstructions returns the indices (in ascending order) of the
// obstructions whose bounding boxes come within buffer of b. The others
// cannot overlap the field block and are left out of the calculation.
func nearbyObstructions(b *geom.Bounds, obstructions []geom.Polygon, buffer float64) []int {
	if len(obstructions) == 0 {
		return nil
	}
	tree := rtree.NewTree(25, 50)
	for i, o := range obstructions {
		tree.Insert(&indexedObstruction{Polygonal: o, index: i})
	}
	search := &geom.Bounds{
		Min: geom.Point{X: b.Min.X - buffer, Y: b.Min.Y - buffer},
		Max: geom.Point{X: b.Max.X + buffer, Y: b.Max.Y + buffer},
	}
	var o []int
	for _, gI := range tree.SearchIntersect(search) {
		o = append(o, gI.(*indexedObstruction).index)
	}
	sort.Ints(o)
	return o
}
