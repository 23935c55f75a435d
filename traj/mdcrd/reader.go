/*
 * reader.go, part of trajslice
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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Reader reads frames back from mdcrd text. Values are read from fixed
// 8-column fields, so fields wider than that (|v| >= 10000) can't be read.
type Reader struct {
	natoms    int
	crd       *bufio.Reader
	remaining []float64
	line      int
	readable  bool
}

// NewReader returns a Reader for frames of atoms atoms. If title is true the
// first line is skipped.
func NewReader(r io.Reader, atoms int, title bool) (*Reader, error) {
	R := &Reader{natoms: atoms, crd: bufio.NewReader(r), readable: true}
	if atoms <= 0 {
		return nil, Error{fmt.Sprintf("invalid number of atoms %d", atoms), 0, []string{"NewReader"}, true}
	}
	if title {
		if _, err := R.crd.ReadString('\n'); err != nil {
			return nil, Error{"unable to read the title line: " + err.Error(), 1, []string{"NewReader"}, true}
		}
		R.line++
	}
	return R, nil
}

// Len returns the number of atoms per frame.
func (R *Reader) Len() int {
	return R.natoms
}

// Next reads the next frame into keep, which must be atoms×3. If keep is nil
// the frame is read and discarded. It returns io.EOF when there are no more
// frames.
func (R *Reader) Next(keep *mat.Dense) error {
	if !R.readable {
		return io.EOF
	}
	if keep != nil {
		if r, c := keep.Dims(); r != R.natoms || c != 3 {
			return Error{fmt.Sprintf("matrix is %dx%d, need %dx3", r, c, R.natoms), R.line, []string{"Next"}, true}
		}
	}
	setter := func(i int, v float64) {}
	if keep != nil {
		setter = func(i int, v float64) { keep.Set(i/3, i%3, v) }
	}
	want := R.natoms * 3
	got := 0
	for _, v := range R.remaining {
		setter(got, v)
		got++
	}
	R.remaining = R.remaining[:0]
	for got < want {
		l, err := R.crd.ReadString('\n')
		if err != nil && l == "" {
			R.readable = false
			if err == io.EOF && got == 0 {
				return io.EOF
			}
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return Error{fmt.Sprintf("frame ends after %d of %d values: %v", got, want, err), R.line, []string{"Next"}, true}
		}
		R.line++
		l = strings.TrimRight(l, "\r\n")
		for ; len(l) > 0; l = l[min(FieldWidth, len(l)):] {
			field := strings.TrimSpace(l[:min(FieldWidth, len(l))])
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return Error{fmt.Sprintf("unable to read value %q", field), R.line, []string{"strconv.ParseFloat", "Next"}, true}
			}
			if got < want {
				setter(got, v)
				got++
				continue
			}
			R.remaining = append(R.remaining, v)
		}
	}
	return nil
}

// Error is the error type for mdcrd reading. It fullfills trajslice.Error.
type Error struct {
	message  string
	line     int //line of the input where the problem is, 0 if none.
	deco     []string
	critical bool
}

func (err Error) Error() string {
	if err.line > 0 {
		return fmt.Sprintf("mdcrd line %d: %s", err.line, err.message)
	}
	return "mdcrd: " + err.message
}

func (E Error) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func (err Error) Format() string { return "mdcrd" }

func (err Error) Critical() bool { return err.critical }
