/*
 * iter.go, part of trajslice
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

import "github.com/rmera/trajslice"

type axisPos struct {
	r   int    //current range of the axis
	idx uint64 //current index, inside that range
}

// runIterator walks the runs of consecutive selected elements in ascending
// order. It keeps one position per axis slower than the inner axis, and
// advances them like an odometer, the fastest first. Axes faster than the
// inner one contribute nothing, as they are folded into each run.
type runIterator struct {
	c          *Compiled
	whole      bool
	pos        []axisPos
	ir         int //current range of the inner axis
	started    bool
	done       bool
	start, end uint64 //current run, in elements
}

func (R *runIterator) next() bool {
	if R.done {
		return false
	}
	C := R.c
	if R.whole {
		if R.started {
			R.done = true
			return false
		}
		R.started = true
		R.start, R.end = 0, C.layout.Elements()-1
		return true
	}
	inner := C.Selected[C.inner]
	if !R.started {
		R.started = true
		for j := C.inner + 1; j < len(R.pos); j++ {
			R.pos[j] = axisPos{r: 0, idx: C.Selected[j][0].Start}
		}
	} else {
		R.ir++
		if R.ir == len(inner) {
			R.ir = 0
			if !R.advance() {
				R.done = true
				return false
			}
		}
	}
	var base uint64
	for j := C.inner + 1; j < len(R.pos); j++ {
		base += R.pos[j].idx * C.strides[j]
	}
	r := inner[R.ir]
	R.start = base + r.Start*C.block
	R.end = base + (r.End+1)*C.block - 1
	return true
}

// advance moves the outer axes to the next selected combination. It returns
// false once every combination has been visited.
func (R *runIterator) advance() bool {
	C := R.c
	for j := C.inner + 1; j < len(R.pos); j++ {
		p := &R.pos[j]
		sel := C.Selected[j]
		if p.idx < sel[p.r].End {
			p.idx++
			return true
		}
		if p.r+1 < len(sel) {
			p.r++
			p.idx = sel[p.r].Start
			return true
		}
		//carry to the next slower axis
		p.r = 0
		p.idx = sel[0].Start
	}
	return false
}

// RangeIterator yields the byte ranges of a compiled selection, ascending,
// with ranges that overlap or touch merged together. It follows the
// bufio.Scanner pattern:
//
//	it := compiled.Ranges()
//	for it.Next() {
//		r := it.Range()
//		...
//	}
type RangeIterator struct {
	runs    *runIterator
	bits    uint64
	whole   bool
	cur     trajslice.ByteRange
	nxt     trajslice.ByteRange
	pending bool //nxt holds a range already taken from runs
	done    bool
	count   int
}

func (I *RangeIterator) runBytes() trajslice.ByteRange {
	return trajslice.ByteRange{
		Start: I.runs.start * I.bits / 8,
		End:   ((I.runs.end+1)*I.bits - 1) / 8,
	}
}

// Next advances to the next range. It returns false when there are no more.
func (I *RangeIterator) Next() bool {
	if I.done {
		return false
	}
	if I.whole {
		if I.count > 0 {
			I.done = true
			return false
		}
		I.count++
		return true
	}
	if !I.pending {
		if !I.runs.next() {
			I.done = true
			return false
		}
		I.nxt = I.runBytes()
	}
	I.cur = I.nxt
	I.pending = false
	for I.runs.next() {
		b := I.runBytes()
		if b.Start <= I.cur.End+1 {
			I.cur.End = max(I.cur.End, b.End)
			continue
		}
		I.nxt = b
		I.pending = true
		break
	}
	I.count++
	return true
}

// Range returns the current range. Only valid after Next returned true.
func (I *RangeIterator) Range() trajslice.ByteRange {
	return I.cur
}

// Count returns how many ranges have been yielded so far.
func (I *RangeIterator) Count() int {
	return I.count
}

// WindowIterator yields the bit windows of a compiled selection, ascending.
// Unlike byte ranges, windows are never merged, but two consecutive windows
// may share a byte when elements are not byte-aligned.
type WindowIterator struct {
	runs *runIterator
	bits uint64
	have bool
	s, e uint64 //what's left of the current run, in elements
	cur  trajslice.BitWindow
}

// Next advances to the next window. It returns false when there are no more.
func (I *WindowIterator) Next() bool {
	if !I.have {
		if !I.runs.next() {
			return false
		}
		I.s, I.e = I.runs.start, I.runs.end
		I.have = true
	}
	n := min(I.e-I.s+1, maxWindowElements)
	bitStart := I.s * I.bits
	bitCount := n * I.bits
	I.cur = trajslice.BitWindow{
		ByteStart: bitStart / 8,
		ByteEnd:   (bitStart + bitCount - 1) / 8,
		BitOffset: uint8(bitStart % 8),
		BitCount:  bitCount,
	}
	I.s += n
	if I.s > I.e {
		I.have = false
	}
	return true
}

// Window returns the current window. Only valid after Next returned true.
func (I *WindowIterator) Window() trajslice.BitWindow {
	return I.cur
}

// Elements returns the number of elements in the current window.
func (I *WindowIterator) Elements() uint64 {
	return I.cur.BitCount / I.bits
}
