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

//go:build geos

package vparcel

import (
	"encoding/json"
	"fmt"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-geos"
)

// GEOS is a Clipper backed by the GEOS library. It requires cgo and is
// only built with the geos build tag.
type GEOS struct{}

// Union implements Clipper.
func (GEOS) Union(a, b geom.Polygonal) (geom.Polygonal, error) {
	return geosOp("union", a, b, (*geos.Geom).Union)
}

// Difference implements Clipper.
func (GEOS) Difference(a, b geom.Polygonal) (geom.Polygonal, error) {
	return geosOp("difference", a, b, (*geos.Geom).Difference)
}

func geosOp(op string, a, b geom.Polygonal, f func(*geos.Geom, *geos.Geom) *geos.Geom) (o geom.Polygonal, err error) {
	defer recoverClip(op, &err)
	ga, err := toGEOS(a)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	defer ga.Destroy()
	gb, err := toGEOS(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	defer gb.Destroy()
	r := f(ga, gb)
	if r == nil {
		return nil, fmt.Errorf("%s: GEOS returned no result", op)
	}
	defer r.Destroy()
	g, err := geojson.UnmarshalGeometry([]byte(r.ToGeoJSON(-1)))
	if err != nil {
		return nil, fmt.Errorf("%s: decoding GEOS result: %v", op, err)
	}
	var mp geom.MultiPolygon
	switch t := g.Geometry().(type) {
	case orb.Collection:
		for _, m := range t {
			if p, err := fromOrb(m); err == nil {
				mp = append(mp, p...)
			}
		}
	default:
		p, err := fromOrb(t)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
		mp = append(mp, p...)
	}
	return mp, nil
}

func toGEOS(p geom.Polygonal) (*geos.Geom, error) {
	var mp orb.MultiPolygon
	for _, pp := range p.Polygons() {
		mp = append(mp, polygonToOrb(pp))
	}
	b, err := json.Marshal(geojson.NewGeometry(mp))
	if err != nil {
		return nil, err
	}
	return geos.NewGeomFromGeoJSON(string(b))
}
