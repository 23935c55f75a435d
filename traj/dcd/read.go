/*
 * read.go, part of trajslice
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

package dcd

import (
	"encoding/binary"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

// Reader reads little-endian DCD trajectories without fixed atoms, such as
// the ones Writer produces.
type Reader struct {
	r      io.Reader
	natoms int
	frames int
	read   int
	cell   bool
	title  string
	block  []float32
}

// NewReader reads the header from r.
func NewReader(r io.Reader) (*Reader, error) {
	R := &Reader{r: r}
	le := binary.LittleEndian
	var head struct {
		Marker  int32
		Magic   [4]byte
		Icntrl  [20]int32
		EndMark int32
	}
	if err := binary.Read(r, le, &head); err != nil {
		return nil, Error{"reading header: " + err.Error(), []string{"binary.Read", "NewReader"}, true}
	}
	if head.Marker != 84 || string(head.Magic[:]) != "CORD" || head.EndMark != 84 {
		return nil, Error{WrongFormat, []string{"NewReader"}, true}
	}
	//icntrl[8] would be the number of fixed atoms
	if head.Icntrl[8] != 0 {
		return nil, Error{"fixed atoms are not supported", []string{"NewReader"}, true}
	}
	R.frames = int(head.Icntrl[0])
	R.cell = head.Icntrl[10] != 0
	var tsize, ntitle int32
	if err := binary.Read(r, le, &tsize); err != nil {
		return nil, Error{"reading title: " + err.Error(), []string{"binary.Read", "NewReader"}, true}
	}
	if err := binary.Read(r, le, &ntitle); err != nil || tsize != 4+ntitle*mAXTITLE || ntitle < 0 {
		return nil, Error{WrongFormat + ": title block", []string{"NewReader"}, true}
	}
	title := make([]byte, tsize-4)
	if _, err := io.ReadFull(r, title); err != nil {
		return nil, Error{"reading title: " + err.Error(), []string{"io.ReadFull", "NewReader"}, true}
	}
	if len(title) >= mAXTITLE {
		R.title = string(trimTitle(title[:mAXTITLE]))
	}
	var atoms [4]int32 //size title-end, size, natoms, size
	if err := binary.Read(r, le, &atoms); err != nil {
		return nil, Error{"reading atom count: " + err.Error(), []string{"binary.Read", "NewReader"}, true}
	}
	if atoms[0] != tsize || atoms[1] != 4 || atoms[3] != 4 || atoms[2] <= 0 {
		return nil, Error{WrongFormat + ": atom count", []string{"NewReader"}, true}
	}
	R.natoms = int(atoms[2])
	R.block = make([]float32, R.natoms)
	return R, nil
}

func trimTitle(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == 0) {
		b = b[:len(b)-1]
	}
	return b
}

// Len returns the number of atoms per frame.
func (R *Reader) Len() int { return R.natoms }

// Frames returns the number of frames declared in the header.
func (R *Reader) Frames() int { return R.frames }

// Title returns the first title line.
func (R *Reader) Title() string { return R.title }

// Next reads the next frame into keep, which must be natoms×3, or discards
// it if keep is nil. It returns io.EOF after the last frame.
func (R *Reader) Next(keep *mat.Dense) error {
	if keep != nil {
		if r, c := keep.Dims(); r != R.natoms || c != 3 {
			return Error{fmt.Sprintf("matrix is %dx%d, need %dx3", r, c, R.natoms), []string{"Next"}, true}
		}
	}
	if R.read == R.frames {
		return io.EOF
	}
	le := binary.LittleEndian
	if R.cell {
		var cell [2 + 6*2]int32
		if err := binary.Read(R.r, le, &cell); err != nil {
			return Error{"reading unit cell: " + err.Error(), []string{"binary.Read", "Next"}, true}
		}
	}
	for c := 0; c < 3; c++ {
		var pre, post int32
		if err := binary.Read(R.r, le, &pre); err != nil {
			return Error{ReadError + ": " + err.Error(), []string{"binary.Read", "Next"}, true}
		}
		if err := binary.Read(R.r, le, R.block); err != nil {
			return Error{ReadError + ": " + err.Error(), []string{"binary.Read", "Next"}, true}
		}
		if err := binary.Read(R.r, le, &post); err != nil {
			return Error{ReadError + ": " + err.Error(), []string{"binary.Read", "Next"}, true}
		}
		if pre != int32(4*R.natoms) || post != pre {
			return Error{WrongFormat + ": record markers", []string{"Next"}, true}
		}
		if keep != nil {
			for i, v := range R.block {
				keep.Set(i, c, float64(v))
			}
		}
	}
	R.read++
	return nil
}
