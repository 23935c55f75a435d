/*
 * batch.go, part of trajslice
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

package chunkread

import "github.com/rmera/trajslice"

// Ranges is a sequence of ascending, disjoint byte ranges, such as the ones
// yielded by selection.RangeIterator.
type Ranges interface {
	Next() bool
	Range() trajslice.ByteRange
}

// Batch is a group of consecutive byte ranges fetched with a single ranged
// read, from Start to End (both included). Batching only bounds the number
// of store requests, it never changes which bytes are emitted.
type Batch struct {
	Index  int
	Start  uint64
	End    uint64
	Ranges []trajslice.ByteRange
}

// Span returns the number of bytes the batch fetches.
func (B Batch) Span() uint64 {
	return B.End - B.Start + 1
}

// Batcher groups a range sequence into batches no wider than MaxSpan bytes.
// A range already wider than MaxSpan gets a batch of its own.
type Batcher struct {
	ranges  Ranges
	maxSpan uint64
	pending trajslice.ByteRange
	hasPend bool
	done    bool
	count   int
}

// NewBatcher returns a Batcher over ranges.
func NewBatcher(ranges Ranges, maxSpan uint64) *Batcher {
	if maxSpan == 0 {
		maxSpan = DefaultMaxSpan
	}
	return &Batcher{ranges: ranges, maxSpan: maxSpan}
}

// Next returns the next batch, and false when there are no more.
func (B *Batcher) Next() (Batch, bool) {
	if B.done {
		return Batch{}, false
	}
	var r trajslice.ByteRange
	switch {
	case B.hasPend:
		r = B.pending
		B.hasPend = false
	case B.ranges.Next():
		r = B.ranges.Range()
	default:
		B.done = true
		return Batch{}, false
	}
	b := Batch{Index: B.count, Start: r.Start, End: r.End, Ranges: []trajslice.ByteRange{r}}
	B.count++
	if r.Len() >= B.maxSpan {
		return b, true
	}
	for B.ranges.Next() {
		r = B.ranges.Range()
		if r.Len() >= B.maxSpan || r.End-b.Start+1 > B.maxSpan {
			B.pending = r
			B.hasPend = true
			break
		}
		b.Ranges = append(b.Ranges, r)
		b.End = r.End
	}
	return b, true
}
