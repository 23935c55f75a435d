/*
 * kernel.go, part of trajslice
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

package mdcrd

import (
	"math"
	"strconv"
)

// FieldWidth is the width of one value field, unless the integer part needs
// more room.
const FieldWidth = 8

// Kernel renders one value as an mdcrd field and appends it to dst. All
// kernels must produce exactly the same bytes for the same value.
type Kernel interface {
	Append(dst []byte, v float32) []byte
}

// Values whose scaled magnitude reaches this are not rendered by the integer
// path.
const maxScaled = 1e17

// scale rounds v*1000 half up, so -0.0004 gives 0 and is printed without a
// sign. ok is false for values the integer path can't render.
func scale(v float32) (neg bool, ip, frac uint64, ok bool) {
	x := float64(v) * 1000
	if math.IsNaN(x) || math.Abs(x) >= maxScaled {
		return false, 0, 0, false
	}
	s := math.Floor(x + 0.5)
	if s < 0 {
		neg = true
		s = -s
	}
	m := uint64(s)
	return neg, m / 1000, m % 1000, true
}

// special renders NaN, the infinities and huge values the way printf's
// %8.3f would.
func special(dst []byte, v float32) []byte {
	var s string
	switch {
	case math.IsNaN(float64(v)):
		s = "nan"
	case math.IsInf(float64(v), 1):
		s = "inf"
	case math.IsInf(float64(v), -1):
		s = "-inf"
	default:
		s = strconv.FormatFloat(float64(v), 'f', 3, 32)
	}
	return pad(dst, len(s), s)
}

func pad(dst []byte, n int, s string) []byte {
	for ; n < FieldWidth; n++ {
		dst = append(dst, ' ')
	}
	return append(dst, s...)
}

// Scalar is the plain digit by digit kernel.
type Scalar struct{}

func (Scalar) Append(dst []byte, v float32) []byte {
	neg, ip, frac, ok := scale(v)
	if !ok {
		return special(dst, v)
	}
	var digits [20]byte
	i := len(digits)
	for {
		i--
		digits[i] = byte('0' + ip%10)
		ip /= 10
		if ip == 0 {
			break
		}
	}
	if neg {
		i--
		digits[i] = '-'
	}
	n := len(digits) - i + 4
	for ; n < FieldWidth; n++ {
		dst = append(dst, ' ')
	}
	dst = append(dst, digits[i:]...)
	return append(dst, '.', byte('0'+frac/100), byte('0'+frac/10%10), byte('0'+frac%10))
}

// Table renders three digits at a time from a lookup table.
type Table struct{}

var triples = func() (t [1000][3]byte) {
	for i := range t {
		t[i] = [3]byte{byte('0' + i/100), byte('0' + i/10%10), byte('0' + i%10)}
	}
	return t
}()

// lead returns the digits of n < 1000 without leading zeros.
func lead(n uint64) []byte {
	t := triples[n][:]
	switch {
	case n >= 100:
		return t
	case n >= 10:
		return t[1:]
	}
	return t[2:]
}

func (Table) Append(dst []byte, v float32) []byte {
	neg, ip, frac, ok := scale(v)
	if !ok {
		return special(dst, v)
	}
	//the common case, |v| < 1000, needs a single lookup
	var groups [7]uint64
	g := 0
	for {
		groups[g] = ip % 1000
		g++
		ip /= 1000
		if ip == 0 {
			break
		}
	}
	head := lead(groups[g-1])
	n := len(head) + 3*(g-1) + 4
	if neg {
		n++
	}
	for ; n < FieldWidth; n++ {
		dst = append(dst, ' ')
	}
	if neg {
		dst = append(dst, '-')
	}
	dst = append(dst, head...)
	for g -= 2; g >= 0; g-- {
		dst = append(dst, triples[groups[g]][:]...)
	}
	dst = append(dst, '.')
	return append(dst, triples[frac][:]...)
}
