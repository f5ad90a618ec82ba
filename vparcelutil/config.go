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

package vparcelutil

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"sort"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/flurpilot/vparcel"
	"github.com/flurpilot/vparcel/internal/hash"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// clippers holds the available boolean-operation backends by name.
var clippers = map[string]func() vparcel.Clipper{
	"polyclip": func() vparcel.Clipper { return vparcel.PolyClip{} },
}

// Clippers returns the names of the available clipping backends.
func Clippers() []string {
	var o []string
	for n := range clippers {
		o = append(o, n)
	}
	sort.Strings(o)
	return o
}

// EngineConfig creates a new engine configuration from the values in cfg.
func EngineConfig(cfg *viper.Viper) (*vparcel.Config, error) {
	c := vparcel.DefaultConfig()
	var err error
	if c.Epsilon, err = cast.ToFloat64E(cfg.Get("Epsilon")); err != nil {
		return nil, fmt.Errorf("Epsilon: %v", err)
	}
	if c.EpsilonGrowth, err = cast.ToFloat64E(cfg.Get("EpsilonGrowth")); err != nil {
		return nil, fmt.Errorf("EpsilonGrowth: %v", err)
	}
	if c.MaxAttempts, err = cast.ToIntE(cfg.Get("MaxAttempts")); err != nil {
		return nil, fmt.Errorf("MaxAttempts: %v", err)
	}
	if c.MinRingArea, err = cast.ToFloat64E(cfg.Get("MinRingArea")); err != nil {
		return nil, fmt.Errorf("MinRingArea: %v", err)
	}
	if c.MaxVertices, err = cast.ToIntE(cfg.Get("MaxVertices")); err != nil {
		return nil, fmt.Errorf("MaxVertices: %v", err)
	}
	if c.MaxObstructions, err = cast.ToIntE(cfg.Get("MaxObstructions")); err != nil {
		return nil, fmt.Errorf("MaxObstructions: %v", err)
	}
	c.InputSR = os.ExpandEnv(cfg.GetString("InputSR"))
	c.WorkingSR = os.ExpandEnv(cfg.GetString("WorkingSR"))

	name := strings.ToLower(cfg.GetString("Clipper"))
	newClipper, ok := clippers[name]
	if !ok {
		return nil, fmt.Errorf("vparcel: invalid Clipper %q; options are %s",
			name, strings.Join(Clippers(), ", "))
	}
	c.Clipper = newClipper()
	c.Log = logrus.StandardLogger()
	return c, nil
}

// readGeoJSONFile reads the polygons in a GeoJSON file. Each polygon of a
// MultiPolygon is returned separately.
func readGeoJSONFile(path string) ([]geom.Polygon, error) {
	b, err := ioutil.ReadFile(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("reading GeoJSON file: %w", err)
	}
	g, err := geojson.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	switch t := g.(type) {
	case geom.Polygon:
		return []geom.Polygon{t}, nil
	case geom.MultiPolygon:
		return []geom.Polygon(t), nil
	default:
		return nil, fmt.Errorf("invalid geometry type %T in %s; must be Polygon or MultiPolygon", g, path)
	}
}

// loadInputs reads the field block from fieldFile and the obstructions
// from buildingFiles.
func loadInputs(fieldFile string, buildingFiles []string) (geom.Polygon, []geom.Polygon, error) {
	if fieldFile == "" {
		return nil, nil, fmt.Errorf("vparcel: either --request or --field must be specified")
	}
	f, err := readGeoJSONFile(fieldFile)
	if err != nil {
		return nil, nil, fmt.Errorf("field: %w", err)
	}
	if len(f) != 1 {
		return nil, nil, fmt.Errorf("field: %s holds %d polygons but should hold 1", fieldFile, len(f))
	}
	var obstructions []geom.Polygon
	for _, bf := range buildingFiles {
		o, err := readGeoJSONFile(bf)
		if err != nil {
			return nil, nil, fmt.Errorf("buildings: %w", err)
		}
		obstructions = append(obstructions, o...)
	}
	return f[0], obstructions, nil
}

// readRequest reads a serialized request from path, or from r if path
// is "-".
func readRequest(path string, r io.Reader) ([]byte, error) {
	if path == "-" {
		return ioutil.ReadAll(r)
	}
	return ioutil.ReadFile(os.ExpandEnv(path))
}

// run computes a virtual parcel and returns the serialized response.
// Input comes from a serialized request if requestFile is set and from
// GeoJSON files otherwise.
func run(e *vparcel.Engine, requestFile, fieldFile string, buildingFiles []string, stdin io.Reader) ([]byte, error) {
	if requestFile != "" {
		req, err := readRequest(requestFile, stdin)
		if err != nil {
			return nil, fmt.Errorf("vparcel: reading request: %v", err)
		}
		return e.ComputeJSON(req)
	}
	field, obstructions, err := loadInputs(fieldFile, buildingFiles)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"input":        hash.Hash(append([]geom.Polygon{field}, obstructions...)),
		"obstructions": len(obstructions),
	}).Debug("vparcel: loaded inputs")
	vp, err := e.Compute(field, obstructions)
	if err != nil {
		return nil, err
	}
	r, err := vparcel.NewResponse(vp)
	if err != nil {
		return nil, err
	}
	return json.Marshal(r)
}
