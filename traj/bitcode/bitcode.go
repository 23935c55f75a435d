/*
 * bitcode.go, part of trajslice
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

// Package bitcode decodes bit-packed small integer codes into ASCII digits.
//
// Elements are width bits wide, packed most significant bit first, and may
// straddle bytes. Each decoded value becomes one byte, '0'+value, so only
// values 0 to 9 can be represented.
package bitcode

import (
	"fmt"

	"github.com/rmera/trajslice"
)

// MaxWidth is the widest element Decode accepts.
const MaxWidth = 32

// Decode returns the digits of the elements packed in data, starting at bit
// firstBit of data[0] and ending at bit lastBit (included) of the last byte.
// Bits count from the most significant one. A tail too short for a whole
// element is ignored.
func Decode(data []byte, firstBit, lastBit uint8, width int) ([]byte, error) {
	return AppendDecode(nil, data, firstBit, lastBit, width)
}

// AppendDecode is like Decode but appends the digits to dst.
func AppendDecode(dst, data []byte, firstBit, lastBit uint8, width int) ([]byte, error) {
	if width <= 0 || width > MaxWidth {
		return dst, trajslice.NewTranscodeError("bits", fmt.Sprintf("invalid element width %d", width), "AppendDecode")
	}
	if firstBit > 7 || lastBit > 7 {
		return dst, trajslice.NewTranscodeError("bits", fmt.Sprintf("bit offsets %d and %d out of a byte", firstBit, lastBit), "AppendDecode")
	}
	if len(data) == 0 || (len(data) == 1 && lastBit < firstBit) {
		return dst, nil
	}
	total := uint64(len(data)-1)*8 + uint64(lastBit) + 1 - uint64(firstBit)
	n := total / uint64(width)
	var acc uint64
	var accbits int
	pos := uint64(firstBit) //absolute bit position in data
	for i := uint64(0); i < n; i++ {
		for accbits < width {
			b := data[pos/8]
			off := int(pos % 8)
			//take the rest of the byte, or what the element still needs
			take := min(8-off, width-accbits)
			v := (uint64(b) >> (8 - off - take)) & (1<<take - 1)
			acc = acc<<take | v
			accbits += take
			pos += uint64(take)
		}
		if acc > 9 {
			return dst, trajslice.NewTranscodeError("bits", fmt.Sprintf("element %d has value %d, not a digit", i, acc), "AppendDecode")
		}
		dst = append(dst, byte('0'+acc))
		acc, accbits = 0, 0
	}
	return dst, nil
}

// DecodeWindow decodes the elements of w. data holds the bytes w.ByteStart to
// w.ByteEnd.
func DecodeWindow(dst, data []byte, w trajslice.BitWindow, width int) ([]byte, error) {
	if uint64(len(data)) != w.ByteEnd-w.ByteStart+1 {
		return dst, trajslice.NewTranscodeError("bits", fmt.Sprintf("window %d-%d got %d bytes", w.ByteStart, w.ByteEnd, len(data)), "DecodeWindow")
	}
	return AppendDecode(dst, data, w.BitOffset, w.LastBit(), width)
}
