/*
 * ranges.go, part of trajslice
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

package trajslice

import "fmt"

// ByteRange is an end-inclusive extent of a blob, in bytes, starting at 0.
type ByteRange struct {
	Start uint64
	End   uint64
}

// Len returns the number of bytes covered by the range.
func (B ByteRange) Len() uint64 {
	return B.End - B.Start + 1
}

// Contains reports whether offset lies inside the range.
func (B ByteRange) Contains(offset uint64) bool {
	return offset >= B.Start && offset <= B.End
}

func (B ByteRange) String() string {
	return fmt.Sprintf("%d-%d", B.Start, B.End)
}

// BitWindow is the exact bit extent of a run of elements inside a byte range.
// BitOffset counts from the most significant bit of the ByteStart byte, and
// BitCount is the number of bits in the run. The last bit of the window is
// always in the ByteEnd byte.
type BitWindow struct {
	ByteStart uint64
	ByteEnd   uint64
	BitOffset uint8
	BitCount  uint64
}

// LastBit returns the position (0 is the most significant bit) of the last
// bit of the window inside the ByteEnd byte.
func (W BitWindow) LastBit() uint8 {
	return uint8((uint64(W.BitOffset) + W.BitCount - 1) % 8)
}

// Bytes returns the byte range that contains the window.
func (W BitWindow) Bytes() ByteRange {
	return ByteRange{Start: W.ByteStart, End: W.ByteEnd}
}
