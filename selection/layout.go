/*
 * layout.go, part of trajslice
 *
 * Copyright 2026 The trajslice authors
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License  as published by
 * the Free Software Foundation; either version 2.1 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 51 Franklin Street, Fifth Floor, Boston,
 * MA 02110-1301, USA.
 */

// Package selection compiles per-axis index selections over a blob layout
// into the byte ranges, or bit windows, that hold the selected elements.
//
// A layout describes a blob as a row-major multi-dimensional array. Its axes
// are listed from the fastest-varying (innermost) to the slowest-varying
// (outermost): for a trajectory those are the coordinate component (3), the
// atom and the frame.
package selection

import (
	"fmt"

	"github.com/rmera/trajslice"
)

// Axis is one dimension of a layout. Aliases are alternative names accepted
// in queries.
type Axis struct {
	Name    string
	Length  uint64
	Aliases []string
}

// Layout describes how the elements of a blob are arranged.
type Layout struct {
	Axes        []Axis //fastest-varying first
	ElementBits uint32
	TotalBytes  uint64 //blob length. 0 means the length implied by the axes.
}

// Names of the axes of a trajectory layout.
const (
	CoordAxis = "coordinate"
	AtomAxis  = "atom"
	FrameAxis = "frame"
)

// TrajectoryLayout returns the layout of a float32 trajectory with the given
// number of frames and atoms per frame.
func TrajectoryLayout(frames, atoms uint64) Layout {
	return Layout{
		Axes: []Axis{
			{Name: CoordAxis, Length: 3, Aliases: []string{"coordinates", "coords"}},
			{Name: AtomAxis, Length: atoms, Aliases: []string{"atoms"}},
			{Name: FrameAxis, Length: frames, Aliases: []string{"frames"}},
		},
		ElementBits: 32,
	}
}

// Elements returns the number of elements in the layout.
func (L Layout) Elements() uint64 {
	n := uint64(1)
	for _, a := range L.Axes {
		n *= a.Length
	}
	return n
}

// Bytes returns the blob length: TotalBytes if set, otherwise the number of
// bytes needed to hold all elements.
func (L Layout) Bytes() uint64 {
	if L.TotalBytes > 0 {
		return L.TotalBytes
	}
	return (L.Elements()*uint64(L.ElementBits) + 7) / 8
}

// Axis returns the position of the named axis, or -1. Aliases are not
// considered.
func (L Layout) Axis(name string) int {
	for i, a := range L.Axes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// Stride returns the distance, in bits, between two consecutive indexes of
// the i-th axis.
func (L Layout) Stride(i int) uint64 {
	s := uint64(L.ElementBits)
	for _, a := range L.Axes[:i] {
		s *= a.Length
	}
	return s
}

// Validate checks that the layout is usable.
func (L Layout) Validate() error {
	if len(L.Axes) == 0 {
		return fmt.Errorf("layout without axes")
	}
	if L.ElementBits == 0 {
		return fmt.Errorf("layout with 0-bit elements")
	}
	seen := make(map[string]bool)
	for _, a := range L.Axes {
		if a.Length == 0 {
			return trajslice.NewSelectionError(trajslice.ErrUnsatisfiable, a.Name, "Layout.Validate")
		}
		for _, n := range append([]string{a.Name}, a.Aliases...) {
			if seen[n] {
				return fmt.Errorf("axis name %q used twice in layout", n)
			}
			seen[n] = true
		}
	}
	need := (L.Elements()*uint64(L.ElementBits) + 7) / 8
	if L.TotalBytes > 0 && L.TotalBytes < need {
		return fmt.Errorf("layout needs %d bytes but the blob has %d", need, L.TotalBytes)
	}
	return nil
}
