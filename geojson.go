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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/xeipuuv/gojsonschema"
)

// Request is the serialized input of ComputeJSON. Geometries are GeoJSON
// Polygons, MultiPolygons or Features holding one of those, given either
// as JSON objects or as strings containing JSON.
// FieldBlockGeoJSON and BuildingGeoJSONs are alternative names for
// FieldBlockGeometry and BuildingGeometries.
type Request struct {
	FieldBlockGeometry json.RawMessage   `json:"field_block_geometry,omitempty"`
	BuildingGeometries []json.RawMessage `json:"building_geometries,omitempty"`
	FieldBlockGeoJSON  json.RawMessage   `json:"field_block_geojson,omitempty"`
	BuildingGeoJSONs   []json.RawMessage `json:"building_geojsons,omitempty"`
}

// Response is the serialized output of ComputeJSON.
type Response struct {
	// VirtualParcelGeoJSON is a GeoJSON Feature whose geometry is a
	// Polygon when there is exactly one resulting polygon and a
	// MultiPolygon otherwise.
	VirtualParcelGeoJSON string  `json:"virtual_parcel_geojson"`
	NetAreaM2            float64 `json:"net_area_m2"`
	NetAreaSqm           float64 `json:"net_area_sqm"` // Same as NetAreaM2.
	IsEmpty              bool    `json:"is_empty"`
	PolygonCount         int     `json:"polygon_count"`
	EngineVersion        string  `json:"engine_version"`
}

// ErrorResponse is the serialized form of a failed computation.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure. Index and Ring are -1 when they do not
// apply.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Role    string `json:"role,omitempty"`
	Index   int    `json:"index"`
	Ring    int    `json:"ring"`
}

const requestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"field_block_geometry": {"$ref": "#/definitions/geometry"},
		"field_block_geojson": {"$ref": "#/definitions/geometry"},
		"building_geometries": {
			"type": ["array", "null"],
			"items": {"$ref": "#/definitions/geometry"}
		},
		"building_geojsons": {
			"type": ["array", "null"],
			"items": {"$ref": "#/definitions/geometry"}
		}
	},
	"oneOf": [
		{"required": ["field_block_geometry"]},
		{"required": ["field_block_geojson"]}
	],
	"definitions": {
		"geometry": {
			"oneOf": [
				{"type": "string", "minLength": 2},
				{
					"type": "object",
					"required": ["type"],
					"properties": {
						"type": {"enum": ["Polygon", "MultiPolygon", "Feature"]}
					}
				}
			]
		}
	}
}`

// ComputeJSON decodes a Request, computes the virtual parcel and returns
// the encoded Response. On failure it returns a *GeometryError and no
// output.
func (e *Engine) ComputeJSON(request []byte) ([]byte, error) {
	field, buildings, owners, err := e.DecodeRequest(request)
	if err != nil {
		return nil, err
	}
	vp, err := e.Compute(field, buildings)
	if err != nil {
		var ge *GeometryError
		if errors.As(err, &ge) && ge.Role == RoleObstruction && ge.Index >= 0 {
			ge.Index = owners[ge.Index]
		}
		return nil, err
	}
	r, err := NewResponse(vp)
	if err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

// DecodeRequest validates and decodes a serialized Request. Each member of
// a MultiPolygon building becomes a separate obstruction; owners gives the
// index of the building each obstruction came from.
func (e *Engine) DecodeRequest(request []byte) (field geom.Polygon, obstructions []geom.Polygon, owners []int, err error) {
	result, err := e.schema.Validate(gojsonschema.NewBytesLoader(request))
	if err != nil {
		return nil, nil, nil, invalidRequest(err, "malformed JSON")
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, nil, nil, invalidRequest(nil, "%s", strings.Join(msgs, "; "))
	}
	var r Request
	if err := json.Unmarshal(request, &r); err != nil {
		return nil, nil, nil, invalidRequest(err, "decoding request")
	}
	rawField, rawBuildings := r.FieldBlockGeometry, r.BuildingGeometries
	if len(rawField) == 0 {
		rawField = r.FieldBlockGeoJSON
	}
	if len(rawBuildings) == 0 {
		rawBuildings = r.BuildingGeoJSONs
	}

	fp, err := decodePolygons(rawField)
	if err != nil {
		return nil, nil, nil, &GeometryError{Kind: InvalidGeometry, Role: RoleField, Index: -1, Ring: -1,
			Reason: "decoding field block", Err: err}
	}
	if len(fp) != 1 {
		return nil, nil, nil, invalidGeometry(RoleField, -1, -1,
			"field block must be a single polygon but has %d", len(fp))
	}
	for i, raw := range rawBuildings {
		bp, err := decodePolygons(raw)
		if err != nil {
			return nil, nil, nil, &GeometryError{Kind: InvalidGeometry, Role: RoleObstruction, Index: i, Ring: -1,
				Reason: "decoding building", Err: err}
		}
		for _, p := range bp {
			obstructions = append(obstructions, p)
			owners = append(owners, i)
		}
	}
	return fp[0], obstructions, owners, nil
}

// decodePolygons decodes a GeoJSON Polygon, MultiPolygon or Feature,
// which may be wrapped in a JSON string.
func decodePolygons(raw json.RawMessage) ([]geom.Polygon, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		raw = json.RawMessage(s)
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	var g orb.Geometry
	switch head.Type {
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, err
		}
		if f.Geometry == nil {
			return nil, fmt.Errorf("feature has no geometry")
		}
		g = f.Geometry
	case "Polygon", "MultiPolygon":
		gg, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, err
		}
		g = gg.Geometry()
	default:
		return nil, fmt.Errorf("unsupported GeoJSON type %q; must be Polygon, MultiPolygon or Feature", head.Type)
	}
	return fromOrb(g)
}

func fromOrb(g orb.Geometry) ([]geom.Polygon, error) {
	switch t := g.(type) {
	case orb.Polygon:
		return []geom.Polygon{polygonFromOrb(t)}, nil
	case orb.MultiPolygon:
		o := make([]geom.Polygon, len(t))
		for i, p := range t {
			o[i] = polygonFromOrb(p)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %s; must be Polygon or MultiPolygon", g.GeoJSONType())
	}
}

func polygonFromOrb(p orb.Polygon) geom.Polygon {
	o := make(geom.Polygon, len(p))
	for i, r := range p {
		o[i] = make(geom.Path, len(r))
		for j, pt := range r {
			o[i][j] = geom.Point{X: pt[0], Y: pt[1]}
		}
	}
	return o
}

func polygonToOrb(p geom.Polygon) orb.Polygon {
	o := make(orb.Polygon, len(p))
	for i, r := range p {
		o[i] = make(orb.Ring, len(r))
		for j, pt := range r {
			o[i][j] = orb.Point{pt.X, pt.Y}
		}
	}
	return o
}

// Feature converts vp into a GeoJSON feature.
func Feature(vp *VirtualParcel) *geojson.Feature {
	var g orb.Geometry
	if len(vp.Geometry) == 1 {
		g = polygonToOrb(vp.Geometry[0])
	} else {
		mp := make(orb.MultiPolygon, len(vp.Geometry))
		for i, p := range vp.Geometry {
			mp[i] = polygonToOrb(p)
		}
		g = mp
	}
	f := geojson.NewFeature(g)
	f.Properties["net_area_m2"] = vp.NetArea
	f.Properties["is_empty"] = vp.IsEmpty
	f.Properties["polygon_count"] = len(vp.Geometry)
	return f
}

// NewResponse creates the serializable form of vp.
func NewResponse(vp *VirtualParcel) (*Response, error) {
	b, err := json.Marshal(Feature(vp))
	if err != nil {
		return nil, fmt.Errorf("vparcel: encoding virtual parcel: %v", err)
	}
	return &Response{
		VirtualParcelGeoJSON: string(b),
		NetAreaM2:            vp.NetArea,
		NetAreaSqm:           vp.NetArea,
		IsEmpty:              vp.IsEmpty,
		PolygonCount:         len(vp.Geometry),
		EngineVersion:        Version,
	}, nil
}

// DecodeVirtualParcel parses a GeoJSON feature created by ComputeJSON and
// recalculates its net area.
func DecodeVirtualParcel(feature []byte) (*VirtualParcel, error) {
	f, err := geojson.UnmarshalFeature(feature)
	if err != nil {
		return nil, fmt.Errorf("vparcel: decoding virtual parcel: %v", err)
	}
	if f.Geometry == nil {
		return nil, fmt.Errorf("vparcel: decoding virtual parcel: feature has no geometry")
	}
	polys, err := fromOrb(f.Geometry)
	if err != nil {
		return nil, fmt.Errorf("vparcel: decoding virtual parcel: %v", err)
	}
	mp := make(geom.MultiPolygon, 0, len(polys))
	for _, p := range polys {
		if len(p) > 0 {
			mp = append(mp, p)
		}
	}
	return &VirtualParcel{
		Geometry: mp,
		NetArea:  NetArea(mp),
		IsEmpty:  len(mp) == 0,
	}, nil
}

// EncodeError returns the serialized ErrorResponse for err.
func EncodeError(err error) []byte {
	d := ErrorDetail{Kind: "Internal", Message: err.Error(), Index: -1, Ring: -1}
	var ge *GeometryError
	if errors.As(err, &ge) {
		d.Kind = ge.Kind.String()
		d.Role = string(ge.Role)
		d.Index = ge.Index
		d.Ring = ge.Ring
	}
	b, _ := json.Marshal(ErrorResponse{Error: d}) // ErrorResponse holds only strings and ints.
	return b
}
