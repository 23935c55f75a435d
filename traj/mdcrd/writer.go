/*
 * writer.go, part of trajslice
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

// Package mdcrd writes and reads mdcrd-style coordinate text: fixed 8-column
// values with three decimals, 10 values per line, a blank line after each
// frame.
package mdcrd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/rmera/trajslice"
)

// PerLine is the number of values on a full line.
const PerLine = 10

// State holds the position of the encoder in the output. Each Writer owns
// its own State.
type State struct {
	CountInLine  int
	CountInFrame int
}

// Option configures a Writer.
type Option func(*Writer)

// WithTitle writes title as the first line of the output.
func WithTitle(title string) Option {
	return func(W *Writer) {
		W.title = title
		W.titled = title == ""
	}
}

// WithKernel sets the value renderer. The default is Table.
func WithKernel(k Kernel) Option {
	return func(W *Writer) {
		if k != nil {
			W.kernel = k
		}
	}
}

// Writer encodes a stream of little-endian float32 coordinates, three per
// atom, as mdcrd text. The input can be split at any byte, the output is the
// same. Close must be called once the input is over; it does not close the
// underlying writer.
type Writer struct {
	w      io.Writer
	atoms  int
	kernel Kernel
	title  string
	titled bool
	State  State
	pend   [4]byte
	npend  int
	buf    []byte
	err    error
}

// NewWriter returns a Writer for frames of atoms atoms. With atoms == 0 no
// frame breaks are written.
func NewWriter(w io.Writer, atoms int, opts ...Option) *Writer {
	W := &Writer{w: w, atoms: atoms, kernel: Table{}, titled: true}
	for _, o := range opts {
		o(W)
	}
	return W
}

func (W *Writer) frameValues() int {
	return W.atoms * 3
}

func (W *Writer) put(v float32) {
	W.buf = W.kernel.Append(W.buf, v)
	W.State.CountInLine++
	W.State.CountInFrame++
	if W.State.CountInLine == PerLine {
		W.buf = append(W.buf, '\n')
		W.State.CountInLine = 0
	}
	if W.atoms > 0 && W.State.CountInFrame == W.frameValues() {
		if W.State.CountInLine > 0 {
			W.buf = append(W.buf, '\n')
		}
		W.buf = append(W.buf, '\n')
		W.State = State{}
	}
}

func (W *Writer) flush() error {
	if len(W.buf) == 0 {
		return nil
	}
	_, err := W.w.Write(W.buf)
	W.buf = W.buf[:0]
	if err != nil {
		W.err = err
	}
	return err
}

// Write implements io.Writer.
func (W *Writer) Write(p []byte) (int, error) {
	if W.err != nil {
		return 0, W.err
	}
	if !W.titled {
		W.buf = append(W.buf, W.title...)
		W.buf = append(W.buf, '\n')
		W.titled = true
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
	for len(p) >= 4 {
		W.put(math.Float32frombits(binary.LittleEndian.Uint32(p)))
		p = p[4:]
	}
	W.npend = copy(W.pend[:], p)
	if err := W.flush(); err != nil {
		return 0, err
	}
	return n, nil
}

// Close terminates the last line. A trailing piece of a value is an error.
func (W *Writer) Close() error {
	if W.err == errClosed {
		return nil
	}
	if W.err != nil {
		return W.err
	}
	if !W.titled {
		W.buf = append(W.buf, W.title...)
		W.buf = append(W.buf, '\n')
		W.titled = true
	}
	if W.npend > 0 {
		W.flush()
		W.err = trajslice.NewTranscodeError("mdcrd", fmt.Sprintf("%d trailing bytes do not form a float32", W.npend), "Close")
		return W.err
	}
	if W.State.CountInLine > 0 {
		W.buf = append(W.buf, '\n')
		W.State.CountInLine = 0
	}
	if err := W.flush(); err != nil {
		return err
	}
	W.err = errClosed
	return nil
}

var errClosed = errors.New("mdcrd: write on closed Writer")
