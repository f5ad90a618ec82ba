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
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/ctessum/geom"
)

const tolerance = 1.e-6

// square returns a closed, counter-clockwise rectangle.
func square(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0},
	}}
}

func different(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance || math.IsNaN(a) || math.IsNaN(b)
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Initialize(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return e
}

var field = square(0, 0, 10, 10)

func TestCompute(t *testing.T) {
	e := testEngine(t)
	tests := []struct {
		name         string
		obstructions []geom.Polygon
		area         float64
		polygons     int
		holes        int
		empty        bool
	}{
		{
			name: "no obstructions",
			area: 100, polygons: 1,
		},
		{
			name:         "inner square",
			obstructions: []geom.Polygon{square(2, 2, 4, 4)},
			area:         96, polygons: 1, holes: 1,
		},
		{
			name:         "overlapping obstructions",
			obstructions: []geom.Polygon{square(1, 1, 4, 3), square(1.5, 1.5, 3.5, 3.5)},
			area:         93, polygons: 1, holes: 1,
		},
		{
			name:         "two separate holes",
			obstructions: []geom.Polygon{square(1, 1, 2, 2), square(6, 6, 8, 8)},
			area:         95, polygons: 1, holes: 2,
		},
		{
			name:         "partly outside",
			obstructions: []geom.Polygon{square(8, 8, 12, 12)},
			area:         96, polygons: 1,
		},
		{
			name:         "split in two",
			obstructions: []geom.Polygon{square(4, -1, 6, 11)},
			area:         80, polygons: 2,
		},
		{
			name:         "entirely outside",
			obstructions: []geom.Polygon{square(20, 20, 30, 30)},
			area:         100, polygons: 1,
		},
		{
			name:         "covers field",
			obstructions: []geom.Polygon{square(-1, -1, 11, 11)},
			empty:        true,
		},
		{
			name:         "equal to field",
			obstructions: []geom.Polygon{square(0, 0, 10, 10)},
			empty:        true,
		},
		{
			name:         "covered by two halves",
			obstructions: []geom.Polygon{square(-1, -1, 6, 11), square(4, -2, 12, 12)},
			empty:        true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			vp, err := e.Compute(field, test.obstructions)
			if err != nil {
				t.Fatal(err)
			}
			if different(vp.NetArea, test.area, tolerance) {
				t.Errorf("area: have %g, want %g", vp.NetArea, test.area)
			}
			if vp.IsEmpty != test.empty {
				t.Errorf("empty: have %v, want %v", vp.IsEmpty, test.empty)
			}
			if len(vp.Geometry) != test.polygons {
				t.Fatalf("polygons: have %d, want %d", len(vp.Geometry), test.polygons)
			}
			holes := 0
			for _, p := range vp.Geometry {
				holes += len(p) - 1
			}
			if holes != test.holes {
				t.Errorf("holes: have %d, want %d", holes, test.holes)
			}
			if a := NetArea(vp.Geometry); different(a, vp.NetArea, tolerance) {
				t.Errorf("geometry area %g does not match net area %g", a, vp.NetArea)
			}
			checkOrientation(t, vp.Geometry)
		})
	}
}

func checkOrientation(t *testing.T, mp geom.MultiPolygon) {
	t.Helper()
	for i, p := range mp {
		for j, r := range p {
			if !r[0].Equals(r[len(r)-1]) {
				t.Errorf("polygon %d ring %d is not closed", i, j)
			}
			a := signedArea(r)
			if j == 0 && a <= 0 {
				t.Errorf("polygon %d exterior is not counter-clockwise", i)
			} else if j > 0 && a >= 0 {
				t.Errorf("polygon %d hole %d is not clockwise", i, j)
			}
		}
		if i > 0 && PolygonArea(mp[i-1]) < PolygonArea(p) {
			t.Errorf("polygon %d is larger than polygon %d", i, i-1)
		}
	}
}

func TestCompute_identity(t *testing.T) {
	e := testEngine(t)
	for _, p := range []geom.Polygon{
		field,
		{{{X: 500, Y: 300}, {X: 510, Y: 300}, {X: 512, Y: 305}, {X: 505, Y: 312}, {X: 498, Y: 306}, {X: 500, Y: 300}}},
	} {
		vp, err := e.Compute(p, nil)
		if err != nil {
			t.Fatal(err)
		}
		if want := (geom.MultiPolygon{p}); !reflect.DeepEqual(vp.Geometry, want) {
			t.Errorf("geometry: have %v, want %v", vp.Geometry, want)
		}
		if want := NetArea(geom.MultiPolygon{p}); vp.NetArea != want {
			t.Errorf("area: have %v, want %v", vp.NetArea, want)
		}
	}
}

func TestCompute_monotonic(t *testing.T) {
	e := testEngine(t)
	all := []geom.Polygon{
		square(1, 1, 3, 3),
		square(2, 2, 5, 4),
		square(7, -2, 8, 12),
		square(20, 20, 21, 21),
		square(8.5, 8.5, 9.5, 9.5),
	}
	last := math.Inf(1)
	for i := 0; i <= len(all); i++ {
		vp, err := e.Compute(field, all[:i])
		if err != nil {
			t.Fatal(err)
		}
		if vp.NetArea > last+tolerance {
			t.Errorf("%d obstructions: area increased from %g to %g", i, last, vp.NetArea)
		}
		if vp.NetArea > 100+tolerance || vp.NetArea < 0 {
			t.Errorf("%d obstructions: area %g out of range", i, vp.NetArea)
		}
		last = vp.NetArea
	}
}

func TestCompute_orderIndependent(t *testing.T) {
	e := testEngine(t)
	a, b := square(1, 1, 4, 3), square(1.5, 1.5, 3.5, 3.5)
	vp1, err := e.Compute(field, []geom.Polygon{a, b})
	if err != nil {
		t.Fatal(err)
	}
	vp2, err := e.Compute(field, []geom.Polygon{b, a})
	if err != nil {
		t.Fatal(err)
	}
	if different(vp1.NetArea, vp2.NetArea, tolerance) {
		t.Errorf("order changes the area: %g != %g", vp1.NetArea, vp2.NetArea)
	}
}

func TestCompute_ringForms(t *testing.T) {
	e := testEngine(t)
	want, err := e.Compute(field, []geom.Polygon{square(2, 2, 4, 4)})
	if err != nil {
		t.Fatal(err)
	}

	open := geom.Polygon{{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}}
	clockwise := geom.Polygon{{{X: 2, Y: 2}, {X: 2, Y: 4}, {X: 4, Y: 4}, {X: 4, Y: 2}, {X: 2, Y: 2}}}
	duplicated := geom.Polygon{{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10},
		{X: 10, Y: 10}, {X: 0, Y: 10}, {X: 0, Y: 0}, {X: 0, Y: 0}}}

	for name, in := range map[string][2]geom.Polygon{
		"unclosed":   {open, square(2, 2, 4, 4)},
		"clockwise":  {field, clockwise},
		"duplicates": {duplicated, clockwise},
	} {
		t.Run(name, func(t *testing.T) {
			vp, err := e.Compute(in[0], []geom.Polygon{in[1]})
			if err != nil {
				t.Fatal(err)
			}
			if different(vp.NetArea, want.NetArea, tolerance) {
				t.Errorf("area: have %g, want %g", vp.NetArea, want.NetArea)
			}
			checkOrientation(t, vp.Geometry)
		})
	}
}

func TestCompute_fieldWithHole(t *testing.T) {
	e := testEngine(t)
	f := geom.Polygon{
		field[0],
		{{X: 6, Y: 6}, {X: 6, Y: 8}, {X: 8, Y: 8}, {X: 8, Y: 6}, {X: 6, Y: 6}},
	}
	vp, err := e.Compute(f, []geom.Polygon{square(1, 1, 3, 3)})
	if err != nil {
		t.Fatal(err)
	}
	if different(vp.NetArea, 92, tolerance) {
		t.Errorf("area: have %g, want 92", vp.NetArea)
	}
}

func TestCompute_obstructionWithHole(t *testing.T) {
	e := testEngine(t)
	o := geom.Polygon{
		square(1, 1, 5, 5)[0],
		{{X: 2, Y: 2}, {X: 2, Y: 4}, {X: 4, Y: 4}, {X: 4, Y: 2}, {X: 2, Y: 2}},
	}
	vp, err := e.Compute(field, []geom.Polygon{o})
	if err != nil {
		t.Fatal(err)
	}
	// The hole of the obstruction remains part of the parcel.
	if different(vp.NetArea, 88, tolerance) {
		t.Errorf("area: have %g, want 88", vp.NetArea)
	}
	if len(vp.Geometry) != 2 {
		t.Errorf("polygons: have %d, want 2", len(vp.Geometry))
	}
}

func TestCompute_bowtie(t *testing.T) {
	e := testEngine(t)
	bowtie := geom.Polygon{{{X: 0, Y: 0}, {X: 2, Y: 2}, {X: 2, Y: 0}, {X: 0, Y: 2}, {X: 0, Y: 0}}}
	vp, err := e.Compute(bowtie, nil)
	if err != nil {
		t.Fatal(err)
	}
	if different(vp.NetArea, 2, tolerance) {
		t.Errorf("area: have %g, want 2", vp.NetArea)
	}
	if len(vp.Geometry) != 2 {
		t.Errorf("polygons: have %d, want 2", len(vp.Geometry))
	}
	checkOrientation(t, vp.Geometry)
}

func TestCompute_ignored(t *testing.T) {
	e := testEngine(t)
	degenerate := geom.Polygon{{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}, {X: 1, Y: 1}}}
	vp, err := e.Compute(field, []geom.Polygon{
		square(50, 50, 60, 60),
		square(2, 2, 4, 4),
		degenerate,
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{0, 2}; !reflect.DeepEqual(vp.ObstructionsIgnored, want) {
		t.Errorf("ignored: have %v, want %v", vp.ObstructionsIgnored, want)
	}
	if vp.ObstructionsUsed != 1 {
		t.Errorf("used: have %d, want 1", vp.ObstructionsUsed)
	}
	if different(vp.NetArea, 96, tolerance) {
		t.Errorf("area: have %g, want 96", vp.NetArea)
	}
	if vp.Attempts != 1 {
		t.Errorf("attempts: have %d, want 1", vp.Attempts)
	}
}

func TestCompute_invalid(t *testing.T) {
	e := testEngine(t)
	tests := []struct {
		name         string
		field        geom.Polygon
		obstructions []geom.Polygon
		role         Role
		index, ring  int
	}{
		{
			name:  "empty field",
			field: geom.Polygon{},
			role:  RoleField, index: -1, ring: -1,
		},
		{
			name:  "NaN in field",
			field: geom.Polygon{{{X: 0, Y: 0}, {X: math.NaN(), Y: 0}, {X: 1, Y: 1}}},
			role:  RoleField, index: -1, ring: 0,
		},
		{
			name:         "infinite obstruction",
			field:        field,
			obstructions: []geom.Polygon{square(1, 1, 2, 2), square(1, 1, math.Inf(1), 2)},
			role:         RoleObstruction, index: 1, ring: 0,
		},
		{
			name:         "two vertices",
			field:        field,
			obstructions: []geom.Polygon{{{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 1, Y: 1}}}},
			role:         RoleObstruction, index: 0, ring: 0,
		},
		{
			name:  "degenerate hole",
			field: geom.Polygon{field[0], {{X: 1, Y: 1}, {X: 1, Y: 1}}},
			role:  RoleField, index: -1, ring: 1,
		},
		{
			name:  "zero area field",
			field: geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 0, Y: 0}}},
			role:  RoleField, index: -1, ring: 0,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := e.Compute(test.field, test.obstructions)
			if !errors.Is(err, ErrInvalidGeometry) {
				t.Fatalf("have error %v, want InvalidGeometry", err)
			}
			var ge *GeometryError
			if !errors.As(err, &ge) {
				t.Fatalf("error %T is not a *GeometryError", err)
			}
			if ge.Role != test.role || ge.Index != test.index || ge.Ring != test.ring {
				t.Errorf("have %s %d ring %d, want %s %d ring %d",
					ge.Role, ge.Index, ge.Ring, test.role, test.index, test.ring)
			}
		})
	}
}

func TestCompute_limits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxObstructions = 2
	cfg.MaxVertices = 12
	e, err := Initialize(cfg)
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.Compute(field, []geom.Polygon{square(1, 1, 2, 2), square(3, 3, 4, 4), square(5, 5, 6, 6)})
	if !errors.Is(err, ErrResourceLimitExceeded) {
		t.Errorf("obstructions: have %v, want ResourceLimitExceeded", err)
	}

	_, err = e.Compute(field, []geom.Polygon{square(1, 1, 2, 2), square(3, 3, 4, 4)})
	var ge *GeometryError
	if !errors.As(err, &ge) || ge.Kind != ResourceLimitExceeded {
		t.Fatalf("vertices: have %v, want ResourceLimitExceeded", err)
	}
	if ge.Role != RoleObstruction || ge.Index != 1 {
		t.Errorf("vertices: have %s %d, want obstruction 1", ge.Role, ge.Index)
	}

	if _, err = e.Compute(field, []geom.Polygon{square(1, 1, 2, 2)}); err != nil {
		t.Errorf("within limits: %v", err)
	}
}

// failClipper fails every boolean operation.
type failClipper struct{ calls int }

func (f *failClipper) Union(a, b geom.Polygonal) (geom.Polygonal, error) {
	f.calls++
	return nil, errors.New("union failed")
}

func (f *failClipper) Difference(a, b geom.Polygonal) (geom.Polygonal, error) {
	f.calls++
	return nil, errors.New("difference failed")
}

func TestCompute_numericInstability(t *testing.T) {
	cfg := DefaultConfig()
	fc := new(failClipper)
	cfg.Clipper = fc
	e, err := Initialize(cfg)
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Compute(field, []geom.Polygon{square(2, 2, 4, 4)})
	if !errors.Is(err, ErrNumericInstability) {
		t.Fatalf("have %v, want NumericInstability", err)
	}
	if fc.calls != cfg.MaxAttempts {
		t.Errorf("clipper calls: have %d, want %d", fc.calls, cfg.MaxAttempts)
	}

	// Inputs that need no clipping do not touch the clipper.
	fc.calls = 0
	vp, err := e.Compute(field, nil)
	if err != nil {
		t.Fatal(err)
	}
	if fc.calls != 0 || different(vp.NetArea, 100, tolerance) {
		t.Errorf("have %d calls and area %g, want 0 calls and area 100", fc.calls, vp.NetArea)
	}
}

func TestCompute_projected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Epsilon = 1e-6
	cfg.InputSR = "+proj=longlat +units=degrees"
	cfg.WorkingSR = "+proj=lcc +lat_1=33.000000 +lat_2=45.000000 +lat_0=40.000000 +lon_0=-97.000000 +x_0=0 +y_0=0 +a=6370997.000000 +b=6370997.000000 +to_meter=1"
	e, err := Initialize(cfg)
	if err != nil {
		t.Fatal(err)
	}
	f := square(-97.001, 40, -97, 40.001)
	vp, err := e.Compute(f, []geom.Polygon{square(-97.0008, 40.0002, -97.0002, 40.0008)})
	if err != nil {
		t.Fatal(err)
	}
	// Roughly 85 m by 111 m, minus 36% of that.
	if vp.NetArea < 0.64*8000 || vp.NetArea > 0.64*11000 {
		t.Errorf("area %g m² is implausible", vp.NetArea)
	}
	b := vp.Geometry.Bounds()
	if different(b.Min.X, -97.001, 1e-7) || different(b.Max.Y, 40.001, 1e-7) {
		t.Errorf("result is not in longitude/latitude: %+v", b)
	}
}

func TestCompute_concurrent(t *testing.T) {
	e := testEngine(t)
	var wg sync.WaitGroup
	errs := make([]error, 16)
	areas := make([]float64, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vp, err := e.Compute(field, []geom.Polygon{square(1, 1, 4, 3), square(1.5, 1.5, 3.5, 3.5)})
			if err != nil {
				errs[i] = err
				return
			}
			areas[i] = vp.NetArea
		}(i)
	}
	wg.Wait()
	for i := range errs {
		if errs[i] != nil {
			t.Fatal(errs[i])
		}
		if different(areas[i], 93, tolerance) {
			t.Errorf("goroutine %d: area %g, want 93", i, areas[i])
		}
	}
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero epsilon", func(c *Config) { c.Epsilon = 0 }},
		{"growth", func(c *Config) { c.EpsilonGrowth = 1 }},
		{"attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"min area", func(c *Config) { c.MinRingArea = -1 }},
		{"vertices", func(c *Config) { c.MaxVertices = -1 }},
		{"obstructions", func(c *Config) { c.MaxObstructions = -1 }},
		{"one SR", func(c *Config) { c.InputSR = "+proj=longlat" }},
		{"bad SR", func(c *Config) { c.InputSR, c.WorkingSR = "+proj=xxx", "+proj=longlat" }},
		{"bad working SR", func(c *Config) { c.InputSR, c.WorkingSR = "+proj=longlat", "+proj=xxx" }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			test.modify(cfg)
			if _, err := Initialize(cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
	e, err := Initialize(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(e.Config().Epsilon, DefaultConfig().Epsilon) {
		t.Errorf("nil config should give defaults")
	}
}
