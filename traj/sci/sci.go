/*
 * sci.go, part of trajslice
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

// Package sci writes float32 samples as fixed-width scientific notation
// records, such as " 1.234000e+00" or "-4.500000e-03" with a leading space.
//
// The mantissa digits are obtained by repeatedly scaling the remainder by 10
// and truncating, not by strconv, so the output does not depend on the
// formatting routines of any runtime.
package sci

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/rmera/trajslice"
)

// Decimals is the number of mantissa digits after the point.
const Decimals = 6

// RecordWidth is the width of every record, NaN included.
const RecordWidth = Decimals + 8

// AppendFloat appends the record for v to dst.
func AppendFloat(dst []byte, v float32) []byte {
	x := float64(v)
	switch {
	case math.IsNaN(x):
		return token(dst, "NaN")
	case math.IsInf(x, 1):
		return token(dst, "Inf")
	case math.IsInf(x, -1):
		return token(dst, "-Inf")
	}
	dst = append(dst, ' ')
	if x < 0 || (x == 0 && math.Signbit(x)) {
		dst = append(dst, '-')
		x = -x
	} else {
		dst = append(dst, ' ')
	}
	exp := 0
	m := 0.0
	if x != 0 {
		exp = int(math.Floor(math.Log10(x)))
		if exp < 0 {
			m = x * math.Pow10(-exp)
		} else {
			m = x / math.Pow10(exp)
		}
		//log10 can be off by one near powers of ten
		if m >= 10 {
			m /= 10
			exp++
		} else if m < 1 {
			m *= 10
			exp--
		}
	}
	d := math.Trunc(m)
	dst = append(dst, '0'+byte(d), '.')
	r := m - d
	for i := 0; i < Decimals; i++ {
		r *= 10
		d = math.Trunc(r)
		r -= d
		dst = append(dst, '0'+byte(min(d, 9)))
	}
	dst = append(dst, 'e')
	if exp < 0 {
		dst = append(dst, '-')
		exp = -exp
	} else {
		dst = append(dst, '+')
	}
	return append(dst, '0'+byte(exp/10), '0'+byte(exp%10))
}

// token right-aligns s in a record.
func token(dst []byte, s string) []byte {
	for n := len(s); n < RecordWidth; n++ {
		dst = append(dst, ' ')
	}
	return append(dst, s...)
}

// Writer encodes a stream of little-endian float32 values, one record each.
// The input can be split at any byte. Close must be called at the end; it
// does not close the underlying writer.
type Writer struct {
	w       io.Writer
	perLine int
	count   int //records on the current line
	pend    [4]byte
	npend   int
	buf     []byte
	err     error
}

// NewWriter returns a Writer that breaks the line after perLine records.
// With perLine == 0 no line breaks are written.
func NewWriter(w io.Writer, perLine int) *Writer {
	return &Writer{w: w, perLine: max(perLine, 0)}
}

func (W *Writer) put(v float32) {
	W.buf = AppendFloat(W.buf, v)
	if W.perLine == 0 {
		return
	}
	W.count++
	if W.count == W.perLine {
		W.buf = append(W.buf, '\n')
		W.count = 0
	}
}

// Write implements io.Writer.
func (W *Writer) Write(p []byte) (int, error) {
	if W.err != nil {
		return 0, W.err
	}
	n := len(p)
	if W.npend > 0 {
		c := copy(W.pend[W.npend:], p)
		W.npend += c
		p = p[c:]
		if W.npend < 4 {
			return n, nil
		}
		W.put(math.Float32frombits(binary.LittleEndian.Uint32(W.pend[:])))
		W.npend = 0
	}
	for ; len(p) >= 4; p = p[4:] {
		W.put(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	}
	W.npend = copy(W.pend[:], p)
	if len(W.buf) > 0 {
		_, err := W.w.Write(W.buf)
		W.buf = W.buf[:0]
		if err != nil {
			W.err = err
			return 0, err
		}
	}
	return n, nil
}

var errClosed = errors.New("sci: write on closed Writer")

// Close ends the last line. Trailing bytes that do not make a whole value are
// an error.
func (W *Writer) Close() error {
	switch {
	case W.err == errClosed:
		return nil
	case W.err != nil:
		return W.err
	case W.npend > 0:
		W.err = trajslice.NewTranscodeError("sci", fmt.Sprintf("%d trailing bytes do not form a float32", W.npend), "Close")
		return W.err
	}
	W.err = errClosed
	if W.count > 0 {
		_, err := W.w.Write([]byte{'\n'})
		return err
	}
	return nil
}
