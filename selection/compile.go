/*
 * compile.go, part of trajslice
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

package selection

import (
	"fmt"

	"github.com/rmera/trajslice"
	"github.com/rmera/trajslice/rangeexpr"
)

// maxWindowElements bounds the number of elements described by one BitWindow,
// so consumers can decode a window from a bounded buffer.
const maxWindowElements = 1 << 16

// Compiled is a selection compiled against a layout. The range sequences are
// produced lazily by the iterators returned from Ranges and Windows, so a
// selection over a huge trajectory never needs memory proportional to its
// number of ranges.
type Compiled struct {
	Whole      bool   //nothing constrained: the blob is to be streamed as-is
	Raw        bool   //compiled from raw byte ranges
	TotalBytes uint64 //blob length
	NValues    uint64 //selected elements
	Counts     []uint64 //selected indexes per axis, in layout order
	Selected   [][]rangeexpr.Range //selected ranges per axis, whole axes included

	layout   Layout
	inner    int    //innermost (fastest) constrained axis
	block    uint64 //elements per index of the inner axis
	strides  []uint64 //in elements
	byteSize uint64
	sized    bool
}

// Compile compiles sel over layout. It returns an error if sel names axes
// that are not in the layout, or selects indexes outside them.
func Compile(sel Selection, layout Layout) (*Compiled, error) {
	if err := layout.Validate(); err != nil {
		return nil, trajslice.Decorate(err, "Compile")
	}
	for name := range sel {
		if layout.Axis(name) < 0 {
			return nil, trajslice.NewSelectionError(trajslice.ErrBadSyntax, "unknown axis "+name, "Compile")
		}
	}
	n := len(layout.Axes)
	C := &Compiled{
		TotalBytes: layout.Bytes(),
		Counts:     make([]uint64, n),
		Selected:   make([][]rangeexpr.Range, n),
		layout:     layout,
		inner:      -1,
		strides:    make([]uint64, n),
	}
	C.NValues = 1
	stride := uint64(1)
	for i, a := range layout.Axes {
		C.strides[i] = stride
		stride *= a.Length
		r, ok := sel[a.Name]
		if ok {
			if err := checkRanges(r, a); err != nil {
				return nil, trajslice.Decorate(err, "Compile")
			}
		}
		if !ok || rangeexpr.Whole(r, a.Length) {
			r = []rangeexpr.Range{{Start: 0, End: a.Length - 1}}
		} else if C.inner < 0 {
			C.inner = i
		}
		C.Selected[i] = r
		C.Counts[i] = rangeexpr.Count(r)
		C.NValues *= C.Counts[i]
	}
	if C.inner < 0 {
		C.Whole = true
		C.byteSize = C.TotalBytes
		C.sized = true
		return C, nil
	}
	//axes faster than the innermost constrained one are whole, so each
	//index of the inner axis is a contiguous block of all of them.
	C.block = C.strides[C.inner]
	if layout.ElementBits%8 == 0 {
		C.byteSize = C.NValues * uint64(layout.ElementBits) / 8
		C.sized = true
	}
	return C, nil
}

func checkRanges(r []rangeexpr.Range, a Axis) error {
	if len(r) == 0 {
		e := trajslice.NewSelectionError(trajslice.ErrUnsatisfiable, "", "checkRanges")
		e.Axis = a.Name
		return e
	}
	for i, v := range r {
		if v.Start > v.End || v.End >= a.Length {
			e := trajslice.NewSelectionError(trajslice.ErrUnsatisfiable, rangeexpr.Format([]rangeexpr.Range{v}), "checkRanges")
			e.Axis = a.Name
			return e
		}
		if i > 0 && v.Start <= r[i-1].End+1 {
			e := trajslice.NewSelectionError(trajslice.ErrBadSyntax, fmt.Sprintf("ranges not normalized: %s", rangeexpr.Format(r)), "checkRanges")
			e.Axis = a.Name
			return e
		}
	}
	return nil
}

// Layout returns the layout the selection was compiled against.
func (C *Compiled) Layout() Layout {
	return C.layout
}

// Aligned reports whether elements start and end on byte boundaries.
func (C *Compiled) Aligned() bool {
	return C.layout.ElementBits%8 == 0
}

// Count returns the number of selected indexes of the named axis, or 0 if the
// layout has no such axis.
func (C *Compiled) Count(axis string) uint64 {
	i := C.layout.Axis(axis)
	if i < 0 {
		return 0
	}
	return C.Counts[i]
}

// ByteSize returns the number of bytes covered by the merged byte ranges,
// which is the number of bytes a reader emits for this selection. For
// elements that are not byte-aligned it takes one pass over the ranges,
// the first time it is called.
func (C *Compiled) ByteSize() uint64 {
	if C.sized {
		return C.byteSize
	}
	var n uint64
	it := C.Ranges()
	for it.Next() {
		n += it.Range().Len()
	}
	C.byteSize = n
	C.sized = true
	return n
}

// Ranges returns a new iterator over the merged byte ranges of the selection.
// For whole selections it yields a single range covering the blob.
func (C *Compiled) Ranges() *RangeIterator {
	if C.Whole {
		return &RangeIterator{whole: true, cur: trajslice.ByteRange{Start: 0, End: C.TotalBytes - 1}}
	}
	return &RangeIterator{runs: C.runs(), bits: uint64(C.layout.ElementBits)}
}

// Windows returns a new iterator over the bit windows of the selection, one
// per run of consecutive selected elements, split so that no window covers
// more than a bounded number of elements.
func (C *Compiled) Windows() *WindowIterator {
	return &WindowIterator{runs: C.runs(), bits: uint64(C.layout.ElementBits)}
}

func (C *Compiled) runs() *runIterator {
	if C.Whole {
		return &runIterator{whole: true, c: C}
	}
	return &runIterator{c: C, pos: make([]axisPos, len(C.layout.Axes))}
}
