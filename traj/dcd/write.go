/*
 * write.go, part of trajslice
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

// Package dcd writes and reads CHARMM/NAMD binary trajectories.
//
// The writer streams: the number of frames goes in the header, so it must
// be known before the first frame, and nothing is ever rewritten.
package dcd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rmera/trajslice"
)

const mAXTITLE = 80

const charmmVersion = 24

// Writer writes a DCD trajectory of a fixed number of frames and atoms to an
// io.Writer. Frames can be given as matrices (WNext), as coordinate slices
// (WNextRaw), or as a raw stream of little-endian float32 x y z triplets
// through Write. Close checks that all the frames were written, it does not
// close the underlying writer.
type Writer struct {
	w       io.Writer
	natoms  int
	frames  int
	written int
	title   string
	fields  [3][]float32
	pend    []byte //raw bytes of the frame being assembled by Write
	out     []byte
	err     error
}

// Option configures a Writer.
type Option func(*Writer)

// WithTitle sets the title stored in the header. It is cut to 80 bytes.
func WithTitle(t string) Option {
	return func(W *Writer) { W.title = t }
}

// NewWriter writes the header of a trajectory of frames frames of natoms atoms
// to w, and returns a Writer for the frames.
func NewWriter(w io.Writer, natoms, frames int, opts ...Option) (*Writer, error) {
	if natoms <= 0 || frames < 0 || natoms > math.MaxInt32/12 || frames > math.MaxInt32 {
		return nil, Error{fmt.Sprintf("can't write %d frames of %d atoms", frames, natoms), []string{"NewWriter"}, true}
	}
	W := &Writer{w: w, natoms: natoms, frames: frames, title: "trajslice export"}
	for _, o := range opts {
		o(W)
	}
	for i := range W.fields {
		W.fields[i] = make([]float32, natoms)
	}
	if err := W.header(); err != nil {
		return nil, errDecorate(err, "NewWriter")
	}
	return W, nil
}

func (W *Writer) header() error {
	var h bytes.Buffer
	le := binary.LittleEndian
	put := func(v any) {
		binary.Write(&h, le, v) //a bytes.Buffer doesn't fail
	}
	put(int32(84))
	put([]byte("CORD"))
	put(int32(W.frames))
	put(int32(0)) //initial step
	put(int32(1)) //step interval
	put(make([]int32, 6))
	put(float32(1)) //time step
	put(int32(0))   //no unit cell
	put(make([]int32, 8))
	put(int32(charmmVersion))
	put(int32(84))
	//one title line, space padded
	title := bytes.Repeat([]byte{' '}, mAXTITLE)
	copy(title, W.title)
	put(int32(4 + mAXTITLE))
	put(int32(1))
	put(title)
	put(int32(4 + mAXTITLE))
	put(int32(4))
	put(int32(W.natoms))
	put(int32(4))
	if _, err := W.w.Write(h.Bytes()); err != nil {
		return Error{err.Error(), []string{"Write", "header"}, true}
	}
	return nil
}

// WNext writes the next frame, an natoms×3 matrix.
func (W *Writer) WNext(frame *mat.Dense) error {
	if W.err != nil {
		return W.err
	}
	if frame == nil {
		return Error{"got nil coordinates", []string{"WNext"}, true}
	}
	if r, c := frame.Dims(); r != W.natoms || c != 3 {
		return Error{fmt.Sprintf("coordinates are %dx%d, the trajectory has %d atoms", r, c, W.natoms), []string{"WNext"}, true}
	}
	for i := 0; i < W.natoms; i++ {
		W.fields[0][i] = float32(frame.At(i, 0))
		W.fields[1][i] = float32(frame.At(i, 1))
		W.fields[2][i] = float32(frame.At(i, 2))
	}
	return W.wnextFields("WNext")
}

// WNextRaw writes the next frame from coords, x y z for each atom.
func (W *Writer) WNextRaw(coords []float32) error {
	if W.err != nil {
		return W.err
	}
	if len(coords) != 3*W.natoms {
		return Error{fmt.Sprintf("got %d coordinates for %d atoms", len(coords), W.natoms), []string{"WNextRaw"}, true}
	}
	for i := 0; i < W.natoms; i++ {
		W.fields[0][i] = coords[3*i]
		W.fields[1][i] = coords[3*i+1]
		W.fields[2][i] = coords[3*i+2]
	}
	return W.wnextFields("WNextRaw")
}

// wnextFields writes the X, Y and Z blocks, each inside Fortran record markers.
func (W *Writer) wnextFields(caller string) error {
	if W.written == W.frames {
		W.err = Error{fmt.Sprintf("more than the %d frames declared", W.frames), []string{caller}, true}
		return W.err
	}
	size := uint32(4 * W.natoms)
	W.out = W.out[:0]
	for _, block := range W.fields {
		W.out = binary.LittleEndian.AppendUint32(W.out, size)
		for _, v := range block {
			W.out = binary.LittleEndian.AppendUint32(W.out, math.Float32bits(v))
		}
		W.out = binary.LittleEndian.AppendUint32(W.out, size)
	}
	if _, err := W.w.Write(W.out); err != nil {
		W.err = Error{err.Error(), []string{"Write", caller}, true}
		return W.err
	}
	W.written++
	return nil
}

// Write implements io.Writer for a raw stream of frames, little-endian
// float32 x y z for each atom. The stream can be split anywhere.
func (W *Writer) Write(p []byte) (int, error) {
	if W.err != nil {
		return 0, W.err
	}
	n := len(p)
	frameBytes := 12 * W.natoms
	for len(p) > 0 {
		take := min(frameBytes-len(W.pend), len(p))
		W.pend = append(W.pend, p[:take]...)
		p = p[take:]
		if len(W.pend) < frameBytes {
			break
		}
		for i := 0; i < W.natoms; i++ {
			for c := 0; c < 3; c++ {
				W.fields[c][i] = math.Float32frombits(binary.LittleEndian.Uint32(W.pend[12*i+4*c:]))
			}
		}
		W.pend = W.pend[:0]
		if err := W.wnextFields("Write"); err != nil {
			return n - len(p), err
		}
	}
	return n, nil
}

// Written returns the number of frames written so far.
func (W *Writer) Written() int {
	return W.written
}

// Close reports an error if the trajectory is shorter than its header says,
// or if a frame was left incomplete.
func (W *Writer) Close() error {
	if W.err != nil {
		return W.err
	}
	if len(W.pend) > 0 {
		W.err = trajslice.NewTranscodeError("dcd", fmt.Sprintf("%d bytes of an incomplete frame", len(W.pend)), "Close")
		return W.err
	}
	if W.written != W.frames {
		W.err = trajslice.NewTranscodeError("dcd", fmt.Sprintf("%d frames written, the header declares %d", W.written, W.frames), "Close")
		return W.err
	}
	W.err = Error{"write on closed trajectory", []string{"Close"}, false}
	return nil
}
