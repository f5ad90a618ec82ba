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
	"fmt"

	"github.com/ctessum/geom"
)

// Clipper is the boolean-operation capability the engine is built on.
// Results may be returned as any Polygonal; the engine only relies on the
// set of rings they contain, interpreted with the even-odd rule.
type Clipper interface {
	// Union returns the area covered by a or b.
	Union(a, b geom.Polygonal) (geom.Polygonal, error)

	// Difference returns the area covered by a but not by b.
	Difference(a, b geom.Polygonal) (geom.Polygonal, error)
}

// PolyClip is a Clipper using the Martinez-Rueda sweep-line algorithm
// implemented by github.com/ctessum/polyclip-go.
type PolyClip struct{}

// Union implements Clipper.
func (PolyClip) Union(a, b geom.Polygonal) (o geom.Polygonal, err error) {
	defer recoverClip("union", &err)
	return a.Union(b), nil
}

// Difference implements Clipper.
func (PolyClip) Difference(a, b geom.Polygonal) (o geom.Polygonal, err error) {
	defer recoverClip("difference", &err)
	return a.Difference(b), nil
}

// recoverClip turns a panic inside a boolean operation into an error.
func recoverClip(op string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: %v", op, r)
	}
}

// clipFailure marks an attempt that failed for numerical reasons and
// can be retried with a larger snapping tolerance.
type clipFailure struct {
	stage string
	err   error
}

func (c *clipFailure) Error() string {
	return c.stage + ": " + c.err.Error()
}

func (c *clipFailure) Unwrap() error { return c.err }
