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

// Package vparcel computes virtual parcels: the usable part of a field block
// that remains after building footprints and other fixed obstructions are
// subtracted from it.
//
// An Engine is created once with Initialize and can then be used to run any
// number of independent, concurrent computations:
//
//	e, err := vparcel.Initialize(vparcel.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	vp, err := e.Compute(field, buildings)
//
// Coordinates are planar. When the inputs are longitude/latitude, set
// Config.InputSR and Config.WorkingSR so that the clipping and the net area
// are calculated in a projected coordinate system.
package vparcel

// Version gives the version number.
const Version = "1.2.0"
