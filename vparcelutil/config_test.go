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
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/flurpilot/vparcel"
	"github.com/lnashier/viper"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const (
	fieldJSON    = `{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}`
	buildingJSON = `{"type":"Polygon","coordinates":[[[2,2],[4,2],[4,4],[2,4],[2,2]]]}`
	multiJSON    = `{"type":"MultiPolygon","coordinates":[[[[1,1],[2,1],[2,2],[1,2],[1,1]]],[[[6,6],[8,6],[8,8],[6,8],[6,6]]]]}`
)

func TestReadGeoJSONFile(t *testing.T) {
	dir := t.TempDir()
	t.Run("polygon", func(t *testing.T) {
		p, err := readGeoJSONFile(writeFile(t, dir, "p.json", buildingJSON))
		if err != nil {
			t.Fatal(err)
		}
		want := []geom.Polygon{{{{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 2}}}}
		if !reflect.DeepEqual(p, want) {
			t.Errorf("%v != %v", p, want)
		}
	})
	t.Run("multipolygon", func(t *testing.T) {
		p, err := readGeoJSONFile(writeFile(t, dir, "mp.json", multiJSON))
		if err != nil {
			t.Fatal(err)
		}
		if len(p) != 2 {
			t.Errorf("have %d polygons, want 2", len(p))
		}
	})
	t.Run("point", func(t *testing.T) {
		_, err := readGeoJSONFile(writeFile(t, dir, "pt.json", `{"type":"Point","coordinates":[1,1]}`))
		if err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("missing", func(t *testing.T) {
		if _, err := readGeoJSONFile(filepath.Join(dir, "missing.json")); err == nil {
			t.Error("expected an error")
		}
	})
}

func testViper() *viper.Viper {
	cfg := viper.New()
	d := vparcel.DefaultConfig()
	cfg.Set("Epsilon", d.Epsilon)
	cfg.Set("EpsilonGrowth", d.EpsilonGrowth)
	cfg.Set("MaxAttempts", d.MaxAttempts)
	cfg.Set("MinRingArea", d.MinRingArea)
	cfg.Set("MaxVertices", d.MaxVertices)
	cfg.Set("MaxObstructions", d.MaxObstructions)
	cfg.Set("Clipper", "polyclip")
	return cfg
}

func TestEngineConfig(t *testing.T) {
	cfg := testViper()
	cfg.Set("Epsilon", "1e-6")
	cfg.Set("MaxAttempts", "5")
	c, err := EngineConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if c.Epsilon != 1e-6 || c.MaxAttempts != 5 {
		t.Errorf("have Epsilon=%g MaxAttempts=%d", c.Epsilon, c.MaxAttempts)
	}
	if _, ok := c.Clipper.(vparcel.PolyClip); !ok {
		t.Errorf("clipper: have %T", c.Clipper)
	}
	if _, err := vparcel.Initialize(c); err != nil {
		t.Error(err)
	}

	cfg.Set("Clipper", "nonexistent")
	if _, err := EngineConfig(cfg); err == nil || !strings.Contains(err.Error(), "polyclip") {
		t.Errorf("have error %v, want list of clippers", err)
	}

	cfg = testViper()
	cfg.Set("MaxVertices", "many")
	if _, err := EngineConfig(cfg); err == nil {
		t.Error("expected an error")
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	c, err := EngineConfig(testViper())
	if err != nil {
		t.Fatal(err)
	}
	e, err := vparcel.Initialize(c)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("files", func(t *testing.T) {
		out, err := run(e, "", writeFile(t, dir, "field.json", fieldJSON),
			[]string{writeFile(t, dir, "b.json", buildingJSON), writeFile(t, dir, "mp.json", multiJSON)}, nil)
		if err != nil {
			t.Fatal(err)
		}
		var r vparcel.Response
		if err := json.Unmarshal(out, &r); err != nil {
			t.Fatal(err)
		}
		if math.Abs(r.NetAreaM2-91) > 1e-6 {
			t.Errorf("area: have %g, want 91", r.NetAreaM2)
		}
	})
	t.Run("stdin", func(t *testing.T) {
		req := `{"field_block_geometry":` + fieldJSON + `,"building_geometries":[` + buildingJSON + `]}`
		out, err := run(e, "-", "", nil, strings.NewReader(req))
		if err != nil {
			t.Fatal(err)
		}
		var r vparcel.Response
		if err := json.Unmarshal(out, &r); err != nil {
			t.Fatal(err)
		}
		if math.Abs(r.NetAreaM2-96) > 1e-6 {
			t.Errorf("area: have %g, want 96", r.NetAreaM2)
		}
	})
	t.Run("no input", func(t *testing.T) {
		if _, err := run(e, "", "", nil, nil); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("multipolygon field", func(t *testing.T) {
		if _, err := run(e, "", writeFile(t, dir, "mf.json", multiJSON), nil, nil); err == nil {
			t.Error("expected an error")
		}
	})
}
