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
	"strings"
)

// Kind classifies a GeometryError.
type Kind int

// These are the kinds of errors a computation can fail with. None of them
// are worth retrying with the same input: the computation is deterministic.
const (
	// InvalidGeometry means the input is malformed or cannot be repaired.
	InvalidGeometry Kind = iota + 1

	// NumericInstability means the boolean operations did not produce a
	// consistent result, even after the snapping tolerance was increased.
	NumericInstability

	// ResourceLimitExceeded means the input is larger than the configured
	// vertex or obstruction ceilings.
	ResourceLimitExceeded

	// InvalidRequest means a serialized request could not be decoded.
	InvalidRequest
)

func (k Kind) String() string {
	switch k {
	case InvalidGeometry:
		return "InvalidGeometry"
	case NumericInstability:
		return "NumericInstability"
	case ResourceLimitExceeded:
		return "ResourceLimitExceeded"
	case InvalidRequest:
		return "InvalidRequest"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Role identifies which input a GeometryError refers to.
type Role string

// These are the input roles.
const (
	RoleField       Role = "field"
	RoleObstruction Role = "obstruction"
	RoleRequest     Role = "request"
)

// Sentinel errors that can be matched with errors.Is against any
// *GeometryError of the same Kind.
var (
	ErrInvalidGeometry       = errors.New("vparcel: invalid geometry")
	ErrNumericInstability    = errors.New("vparcel: numeric instability")
	ErrResourceLimitExceeded = errors.New("vparcel: resource limit exceeded")
	ErrInvalidRequest        = errors.New("vparcel: invalid request")
)

// GeometryError is returned by all failed computations. Index is the
// position of the offending obstruction (or -1 when it does not refer to a
// single obstruction) and Ring is the offending ring within that polygon
// (0 is the exterior, -1 if unknown).
type GeometryError struct {
	Kind   Kind
	Role   Role
	Index  int
	Ring   int
	Reason string
	Err    error
}

func (e *GeometryError) Error() string {
	var b strings.Builder
	b.WriteString("vparcel: ")
	b.WriteString(e.Kind.String())
	if e.Role != "" {
		fmt.Fprintf(&b, " in %s", e.Role)
		if e.Index >= 0 && e.Role == RoleObstruction {
			fmt.Fprintf(&b, " %d", e.Index)
		}
		if e.Ring >= 0 {
			fmt.Fprintf(&b, " ring %d", e.Ring)
		}
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *GeometryError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel error for e's Kind.
func (e *GeometryError) Is(target error) bool {
	switch target {
	case ErrInvalidGeometry:
		return e.Kind == InvalidGeometry
	case ErrNumericInstability:
		return e.Kind == NumericInstability
	case ErrResourceLimitExceeded:
		return e.Kind == ResourceLimitExceeded
	case ErrInvalidRequest:
		return e.Kind == InvalidRequest
	}
	return false
}

func invalidGeometry(role Role, index, ring int, format string, args ...interface{}) *GeometryError {
	return &GeometryError{
		Kind:   InvalidGeometry,
		Role:   role,
		Index:  index,
		Ring:   ring,
		Reason: fmt.Sprintf(format, args...),
	}
}

func invalidRequest(err error, format string, args ...interface{}) *GeometryError {
	return &GeometryError{
		Kind:   InvalidRequest,
		Role:   RoleRequest,
		Index:  -1,
		Ring:   -1,
		Reason: fmt.Sprintf(format, args...),
		Err:    err,
	}
}

// inputRef locates a polygon among the inputs of a computation.
type inputRef struct {
	role  Role
	index int
}

func (r inputRef) invalid(ring int, format string, args ...interface{}) *GeometryError {
	return invalidGeometry(r.role, r.index, ring, format, args...)
}
