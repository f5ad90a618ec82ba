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
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"
)

// VirtualParcel is the part of a field block that is not covered by any
// obstruction.
type VirtualParcel struct {
	// Geometry holds the remaining area. Exterior rings are
	// counter-clockwise and holes are clockwise. It has no polygons
	// when the field block is fully obstructed.
	Geometry geom.MultiPolygon

	// NetArea is the area of Geometry in working coordinate units.
	NetArea float64

	// IsEmpty is true when nothing of the field block remains.
	IsEmpty bool

	// Epsilon is the snapping tolerance of the successful attempt and
	// Attempts is the number of attempts that were needed.
	Epsilon  float64
	Attempts int

	// ObstructionsUsed is the number of obstructions that took part in
	// the calculation. ObstructionsIgnored holds the indices of the
	// obstructions that were degenerate or too far away from the field
	// block to matter.
	ObstructionsUsed    int
	ObstructionsIgnored []int
}

// Engine computes virtual parcels. It is immutable after Initialize and
// may be used from multiple goroutines at once.
type Engine struct {
	cfg    Config
	clip   Clipper
	log    logrus.FieldLogger
	fwd    proj.Transformer
	inv    proj.Transformer
	schema *gojsonschema.Schema
}

// Initialize checks cfg and prepares everything an Engine needs, so that
// Compute can run synchronously afterwards.
func Initialize(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: *cfg, clip: cfg.Clipper, log: cfg.Log}
	if e.clip == nil {
		e.clip = PolyClip{}
	}
	if e.log == nil {
		e.log = logrus.StandardLogger()
	}
	if cfg.InputSR != "" {
		in, err := proj.Parse(cfg.InputSR)
		if err != nil {
			return nil, fmt.Errorf("vparcel: parsing InputSR: %v", err)
		}
		work, err := proj.Parse(cfg.WorkingSR)
		if err != nil {
			return nil, fmt.Errorf("vparcel: parsing WorkingSR: %v", err)
		}
		if e.fwd, err = in.NewTransform(work); err != nil {
			return nil, fmt.Errorf("vparcel: creating InputSR to WorkingSR transform: %v", err)
		}
		if e.inv, err = work.NewTransform(in); err != nil {
			return nil, fmt.Errorf("vparcel: creating WorkingSR to InputSR transform: %v", err)
		}
		// Transformers are resolved on first use, so unknown projections
		// only show up here.
		x, y, err := e.fwd(0, 0)
		if err != nil {
			return nil, fmt.Errorf("vparcel: transforming from InputSR to WorkingSR: %v", err)
		}
		if _, _, err = e.inv(x, y); err != nil {
			return nil, fmt.Errorf("vparcel: transforming from WorkingSR to InputSR: %v", err)
		}
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(requestSchema))
	if err != nil {
		return nil, fmt.Errorf("vparcel: compiling request schema: %v", err)
	}
	e.schema = schema
	return e, nil
}

// Config returns a copy of the engine settings.
func (e *Engine) Config() Config { return e.cfg }

// Compute subtracts the union of obstructions from field. Rings do not
// need to be closed and may be wound either way. Obstructions may overlap
// each other and may lie partly or wholly outside of field.
// A fully obstructed field block is not an error: the result is then
// empty with zero net area. All errors are of type *GeometryError.
func (e *Engine) Compute(field geom.Polygon, obstructions []geom.Polygon) (*VirtualParcel, error) {
	if err := e.checkLimits(field, obstructions); err != nil {
		return nil, err
	}

	f, err := cleanPolygon(field, inputRef{role: RoleField, index: -1})
	if err != nil {
		return nil, err
	}
	obs := make([]geom.Polygon, len(obstructions))
	for i, o := range obstructions {
		if obs[i], err = cleanPolygon(o, inputRef{role: RoleObstruction, index: i}); err != nil {
			return nil, err
		}
	}

	if e.fwd != nil {
		if f, err = e.transform(f, e.fwd, inputRef{role: RoleField, index: -1}); err != nil {
			return nil, err
		}
		for i, o := range obs {
			if obs[i], err = e.transform(o, e.fwd, inputRef{role: RoleObstruction, index: i}); err != nil {
				return nil, err
			}
		}
	}

	maxEps := e.cfg.Epsilon * math.Pow(e.cfg.EpsilonGrowth, float64(e.cfg.MaxAttempts-1))
	nearby := nearbyObstructions(f.Bounds(), obs, 2*maxEps)
	var ignored []int
	k := 0
	for i := range obs {
		if k < len(nearby) && nearby[k] == i {
			k++
			continue
		}
		ignored = append(ignored, i)
	}
	if len(ignored) > 0 {
		e.log.WithFields(logrus.Fields{
			"ignored": ignored,
		}).Debug("vparcel: obstructions do not overlap the field block")
	}

	eps := e.cfg.Epsilon
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		c := &computation{
			cfg:  &e.cfg,
			clip: e.clip,
			log:  e.log,
			eps:  eps,
			snap: newSnapper(f.Bounds().Min, eps),
		}
		vp, err := c.run(f, obs, nearby)
		if err == nil {
			vp.Attempts = attempt
			vp.ObstructionsIgnored = append(vp.ObstructionsIgnored, ignored...)
			sort.Ints(vp.ObstructionsIgnored)
			if e.inv != nil {
				if vp.Geometry, err = e.transformResult(vp.Geometry); err != nil {
					return nil, err
				}
			}
			return vp, nil
		}
		var cf *clipFailure
		var ge *GeometryError
		switch {
		case errors.As(err, &cf):
		case attempt > 1 && errors.As(err, &ge) && ge.Kind == InvalidGeometry:
			// The input was valid at a finer tolerance, so it is the
			// coarser snapping that broke it.
		default:
			return nil, err
		}
		e.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"epsilon": eps,
			"error":   err,
		}).Debug("vparcel: clipping attempt failed")
		lastErr = err
		eps *= e.cfg.EpsilonGrowth
	}
	return nil, &GeometryError{
		Kind:   NumericInstability,
		Index:  -1,
		Ring:   -1,
		Reason: fmt.Sprintf("no consistent result after %d attempts (final epsilon %g)", e.cfg.MaxAttempts, eps/e.cfg.EpsilonGrowth),
		Err:    lastErr,
	}
}

func (e *Engine) checkLimits(field geom.Polygon, obstructions []geom.Polygon) error {
	if m := e.cfg.MaxObstructions; m > 0 && len(obstructions) > m {
		return &GeometryError{
			Kind:   ResourceLimitExceeded,
			Role:   RoleObstruction,
			Index:  -1,
			Ring:   -1,
			Reason: fmt.Sprintf("%d obstructions exceeds the limit of %d", len(obstructions), m),
		}
	}
	if m := e.cfg.MaxVertices; m > 0 {
		n := numVertices(field)
		if n > m {
			return &GeometryError{
				Kind:   ResourceLimitExceeded,
				Role:   RoleField,
				Index:  -1,
				Ring:   -1,
				Reason: fmt.Sprintf("%d vertices exceeds the limit of %d", n, m),
			}
		}
		for i, o := range obstructions {
			n += numVertices(o)
			if n > m {
				return &GeometryError{
					Kind:   ResourceLimitExceeded,
					Role:   RoleObstruction,
					Index:  i,
					Ring:   -1,
					Reason: fmt.Sprintf("total vertex count exceeds the limit of %d", m),
				}
			}
		}
	}
	return nil
}

func (e *Engine) transform(p geom.Polygon, t proj.Transformer, ref inputRef) (geom.Polygon, error) {
	g, err := p.Transform(t)
	if err != nil {
		return nil, &GeometryError{Kind: InvalidGeometry, Role: ref.role, Index: ref.index, Ring: -1,
			Reason: "transforming to WorkingSR", Err: err}
	}
	o := g.(geom.Polygon)
	for i, r := range o {
		for _, pt := range r {
			if !finite(pt) {
				return nil, ref.invalid(i, "coordinate outside the domain of WorkingSR")
			}
		}
	}
	return o, nil
}

func (e *Engine) transformResult(mp geom.MultiPolygon) (geom.MultiPolygon, error) {
	if len(mp) == 0 {
		return mp, nil
	}
	g, err := mp.Transform(e.inv)
	if err != nil {
		return nil, &GeometryError{Kind: NumericInstability, Index: -1, Ring: -1,
			Reason: "transforming result to InputSR", Err: err}
	}
	return g.(geom.MultiPolygon), nil
}

// computation holds the state of a single clipping attempt.
type computation struct {
	cfg  *Config
	clip Clipper
	log  logrus.FieldLogger
	eps  float64
	snap snapper
}

// region snaps and repairs every ring of p and returns the area it covers.
// The result is empty if the exterior ring is degenerate.
func (c *computation) region(p geom.Polygon, ref inputRef) (geom.MultiPolygon, error) {
	ext := c.snap.snapRing(p[0])
	if ext == nil {
		return nil, nil
	}
	region, repaired, err := c.repairRing(ext)
	if err != nil {
		return nil, err
	}
	if repaired {
		c.log.WithFields(logrus.Fields{
			"role":  ref.role,
			"index": ref.index,
			"ring":  0,
		}).Debug("vparcel: repaired self-intersecting ring")
	}
	if len(region) == 0 || len(p) == 1 {
		return region, nil
	}

	var holes geom.Polygonal
	for i, h := range p[1:] {
		hs := c.snap.snapRing(h)
		if hs == nil {
			continue
		}
		hr, _, err := c.repairRing(hs)
		if err != nil {
			return nil, err
		}
		if len(hr) == 0 {
			c.log.WithFields(logrus.Fields{
				"role":  ref.role,
				"index": ref.index,
				"ring":  i + 1,
			}).Debug("vparcel: dropped degenerate hole")
			continue
		}
		if holes == nil {
			holes = hr
		} else if holes, err = c.clip.Union(holes, hr); err != nil {
			return nil, &clipFailure{stage: "hole union", err: err}
		}
	}
	if holes == nil {
		return region, nil
	}
	d, err := c.clip.Difference(region, holes)
	if err != nil {
		return nil, &clipFailure{stage: "hole difference", err: err}
	}
	return assemble(d, c.eps, c.cfg.MinRingArea), nil
}

// run performs one clipping attempt at tolerance c.eps.
func (c *computation) run(field geom.Polygon, obs []geom.Polygon, nearby []int) (*VirtualParcel, error) {
	f, err := c.region(field, inputRef{role: RoleField, index: -1})
	if err != nil {
		return nil, err
	}
	if len(f) == 0 {
		return nil, invalidGeometry(RoleField, -1, 0, "exterior ring has no measurable area")
	}
	fieldArea := NetArea(f)
	tol := c.eps*perimeters(f)*2 + 1e-9*fieldArea

	vp := &VirtualParcel{Epsilon: c.eps}
	var union geom.Polygonal
	var sumArea, maxArea float64
	for _, i := range nearby {
		r, err := c.region(obs[i], inputRef{role: RoleObstruction, index: i})
		if err != nil {
			return nil, err
		}
		if len(r) == 0 {
			c.log.WithField("index", i).Debug("vparcel: ignoring degenerate obstruction")
			vp.ObstructionsIgnored = append(vp.ObstructionsIgnored, i)
			continue
		}
		a := NetArea(r)
		sumArea += a
		maxArea = math.Max(maxArea, a)
		tol += c.eps * perimeters(r) * 2
		vp.ObstructionsUsed++
		if union == nil {
			union = r
			continue
		}
		if union, err = c.clip.Union(union, r); err != nil {
			return nil, &clipFailure{stage: "obstruction union", err: err}
		}
	}

	result := f
	if union != nil {
		u := assemble(union, c.eps, c.cfg.MinRingArea)
		unionArea := NetArea(u)
		if unionArea > sumArea+tol || unionArea < maxArea-tol {
			return nil, &clipFailure{stage: "obstruction union", err: fmt.Errorf(
				"union area %g is outside of [%g, %g]", unionArea, maxArea, sumArea)}
		}
		if len(u) > 0 {
			d, err := c.clip.Difference(f, u)
			if err != nil {
				return nil, &clipFailure{stage: "difference", err: err}
			}
			result = assemble(d, c.eps, c.cfg.MinRingArea)
			a := NetArea(result)
			if a > fieldArea+tol || a < fieldArea-unionArea-tol {
				return nil, &clipFailure{stage: "difference", err: fmt.Errorf(
					"result area %g is outside of [%g, %g]", a, fieldArea-unionArea, fieldArea)}
			}
			// By inclusion-exclusion, |F \ U| = |F ∪ U| - |U|.
			all, err := c.clip.Union(f, u)
			if err != nil {
				return nil, &clipFailure{stage: "difference check", err: err}
			}
			want := NetArea(assemble(all, c.eps, c.cfg.MinRingArea)) - unionArea
			if math.Abs(a-want) > tol {
				return nil, &clipFailure{stage: "difference", err: fmt.Errorf(
					"result area %g but field and obstructions imply %g", a, want)}
			}
		}
	}

	vp.NetArea = NetArea(result)
	if vp.NetArea < 0 {
		vp.NetArea = 0
	}
	vp.IsEmpty = len(result) == 0
	vp.Geometry = c.snap.restore(result)
	return vp, nil
}

func perimeters(mp geom.MultiPolygon) float64 {
	l := 0.
	for _, p := range mp {
		for _, r := range p {
			l += perimeter(r)
		}
	}
	return l
}
