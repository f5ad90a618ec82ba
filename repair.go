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

// segment is the edge of a ring from vertex i to vertex i+1.
type segment struct {
	a, b geom.Point
	i    int
}

func (s segment) minX() float64 { return math.Min(s.a.X, s.b.X) }
func (s segment) maxX() float64 { return math.Max(s.a.X, s.b.X) }
func (s segment) minY() float64 { return math.Min(s.a.Y, s.b.Y) }
func (s segment) maxY() float64 { return math.Max(s.a.Y, s.b.Y) }

// cross returns twice the signed area of triangle abc.
func cross(a, b, c geom.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// onSegment reports whether p, known to be collinear with s, lies
// strictly between its endpoints.
func onSegment(s segment, p geom.Point) bool {
	if p.Equals(s.a) || p.Equals(s.b) {
		return false
	}
	return p.X >= s.minX() && p.X <= s.maxX() && p.Y >= s.minY() && p.Y <= s.maxY()
}

// param returns the position of p along s, from 0 at a to 1 at b.
func param(s segment, p geom.Point) float64 {
	dx, dy := s.b.X-s.a.X, s.b.Y-s.a.Y
	if math.Abs(dx) >= math.Abs(dy) {
		return (p.X - s.a.X) / dx
	}
	return (p.Y - s.a.Y) / dy
}

// node is a vertex to be inserted into segment seg.
type node struct {
	seg int
	t   float64
	p   geom.Point
}

// selfIntersections finds the points where the closed ring r touches or
// crosses itself away from its own vertices. The returned nodes are the
// points that have to be inserted into the ring so that every
// self-intersection becomes a shared vertex. The intersection points are
// snapped with s.
func selfIntersections(r geom.Path, s snapper) []node {
	n := len(r) - 1
	segs := make([]segment, n)
	for i := 0; i < n; i++ {
		segs[i] = segment{a: r[i], b: r[i+1], i: i}
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return segs[order[i]].minX() < segs[order[j]].minX() })

	var nodes []node
	add := func(seg int, p geom.Point) {
		nodes = append(nodes, node{seg: seg, t: param(segs[seg], p), p: p})
	}
	for oi, i := range order {
		si := segs[i]
		for _, j := range order[oi+1:] {
			sj := segs[j]
			if sj.minX() > si.maxX() {
				break
			}
			if sj.minY() > si.maxY() || sj.maxY() < si.minY() {
				continue
			}
			adjacent := j == i+1 || i == j+1 || (i == 0 && j == n-1) || (j == 0 && i == n-1)
			d1, d2 := cross(sj.a, sj.b, si.a), cross(sj.a, sj.b, si.b)
			d3, d4 := cross(si.a, si.b, sj.a), cross(si.a, si.b, sj.b)
			if !adjacent && ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
				((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
				// Proper crossing.
				t := d1 / (d1 - d2)
				p := s.snapRelative(geom.Point{
					X: si.a.X + t*(si.b.X-si.a.X),
					Y: si.a.Y + t*(si.b.Y-si.a.Y),
				})
				if !p.Equals(si.a) && !p.Equals(si.b) {
					add(i, p)
				}
				if !p.Equals(sj.a) && !p.Equals(sj.b) {
					add(j, p)
				}
				continue
			}
			// Endpoints touching the interior of the other segment,
			// which also covers collinear overlaps and spikes.
			if d1 == 0 && onSegment(sj, si.a) {
				add(j, si.a)
			}
			if d2 == 0 && onSegment(sj, si.b) {
				add(j, si.b)
			}
			if d3 == 0 && onSegment(si, sj.a) {
				add(i, sj.a)
			}
			if d4 == 0 && onSegment(si, sj.b) {
				add(i, sj.b)
			}
		}
	}
	return nodes
}

// hasRepeatedVertex reports whether the closed ring r passes through the
// same vertex more than once.
func hasRepeatedVertex(r geom.Path) bool {
	seen := make(map[geom.Point]struct{}, len(r))
	for _, p := range r[:len(r)-1] {
		if _, ok := seen[p]; ok {
			return true
		}
		seen[p] = struct{}{}
	}
	return false
}

// insertNodes returns r with the given nodes inserted in order along
// their segments.
func insertNodes(r geom.Path, nodes []node) geom.Path {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].seg != nodes[j].seg {
			return nodes[i].seg < nodes[j].seg
		}
		return nodes[i].t < nodes[j].t
	})
	o := make(geom.Path, 0, len(r)+len(nodes))
	k := 0
	for i := 0; i < len(r)-1; i++ {
		o = append(o, r[i])
		for ; k < len(nodes) && nodes[k].seg == i; k++ {
			o = append(o, nodes[k].p)
		}
	}
	return cleanRing(o)
}

// splitLoops breaks a noded ring at its repeated vertices into closed
// loops that each visit every vertex at most once.
func splitLoops(r geom.Path) []geom.Path {
	var loops []geom.Path
	stack := make(geom.Path, 0, len(r))
	pos := make(map[geom.Point]int, len(r))
	for _, p := range r[:len(r)-1] {
		j, ok := pos[p]
		if !ok {
			pos[p] = len(stack)
			stack = append(stack, p)
			continue
		}
		loop := make(geom.Path, 0, len(stack)-j+1)
		loop = append(loop, stack[j:]...)
		loop = append(loop, p)
		loops = append(loops, loop)
		for _, q := range stack[j+1:] {
			delete(pos, q)
		}
		stack = stack[:j+1]
	}
	loop := make(geom.Path, 0, len(stack)+1)
	loop = append(loop, stack...)
	loops = append(loops, append(loop, stack[0]))
	return loops
}

// repairRing converts a snapped, closed ring into the region it encloses.
// Simple rings are returned as they are. Rings that touch or cross
// themselves are split into simple loops; slivers are discarded and the
// remaining loops are recombined: loops wound like the largest loop are
// merged, and oppositely wound loops become holes where they lie inside
// those and separate parts where they do not. The result is empty if
// nothing of measurable size remains.
func (c *computation) repairRing(r geom.Path) (geom.MultiPolygon, bool, error) {
	nodes := selfIntersections(r, c.snap)
	if len(nodes) == 0 && !hasRepeatedVertex(r) {
		if isSliver(r, c.eps, c.cfg.MinRingArea) {
			return nil, false, nil
		}
		return geom.MultiPolygon{{orient(r, true)}}, false, nil
	}

	var loops []geom.Path
	for _, l := range splitLoops(insertNodes(r, nodes)) {
		if len(l) < 4 || distinctPoints(l) < 3 || isSliver(l, c.eps, c.cfg.MinRingArea) {
			continue
		}
		loops = append(loops, l)
	}
	if len(loops) == 0 {
		return nil, true, nil
	}
	if len(loops) == 1 {
		return geom.MultiPolygon{{orient(loops[0], true)}}, true, nil
	}
	// Loops of a noded ring cannot cross, so unless one is nested in
	// another they are separate parts.
	if !anyNested(loops) {
		parts := make(geom.MultiPolygon, len(loops))
		for i, l := range loops {
			parts[i] = geom.Polygon{l}
		}
		return assemble(parts, c.eps, c.cfg.MinRingArea), true, nil
	}

	dominant := 0
	for i, l := range loops {
		if math.Abs(signedArea(l)) > math.Abs(signedArea(loops[dominant])) {
			dominant = i
		}
	}
	sign := signedArea(loops[dominant]) > 0
	var pos, neg []geom.Path
	for _, l := range loops {
		if (signedArea(l) > 0) == sign {
			pos = append(pos, orient(l, true))
		} else {
			neg = append(neg, orient(l, true))
		}
	}

	var region geom.Polygonal = geom.Polygon{pos[0]}
	var err error
	for _, l := range pos[1:] {
		if region, err = c.clip.Union(region, geom.Polygon{l}); err != nil {
			return nil, true, &clipFailure{stage: "ring repair", err: err}
		}
	}
	for _, l := range neg {
		if loopInside(l, pos) {
			region, err = c.clip.Difference(region, geom.Polygon{l})
		} else {
			region, err = c.clip.Union(region, geom.Polygon{l})
		}
		if err != nil {
			return nil, true, &clipFailure{stage: "ring repair", err: err}
		}
	}
	return assemble(region, c.eps, c.cfg.MinRingArea), true, nil
}

func anyNested(loops []geom.Path) bool {
	b := make([]*geom.Bounds, len(loops))
	for i, l := range loops {
		b[i] = geom.Polygon{l}.Bounds()
	}
	for i := range loops {
		for j := range loops {
			if i != j && ringContains(loops[i], b[i], loops[j], b[j]) {
				return true
			}
		}
	}
	return false
}

// loopInside reports whether loop l lies within any of the loops in pos.
func loopInside(l geom.Path, pos []geom.Path) bool {
	lb := geom.Polygon{l}.Bounds()
	for _, p := range pos {
		if ringContains(p, geom.Polygon{p}.Bounds(), l, lb) {
			return true
		}
	}
	return false
}
