/*
 * stf.go, part of trajslice
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

package stf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"

	"github.com/rmera/trajslice"
)

// Compression codecs.
const (
	Zstd  = "zstd"
	Gzip  = "gzip"
	Flate = "flate"
)

// DefaultPrec is the precision used when the header doesn't set one.
const DefaultPrec = 2

// CodecFor guesses the codec from the last letter of a file name, the way
// stf files are usually named: .stf and .stz for zstd, .stg for gzip and
// .str for raw deflate. Anything else is zstd.
func CodecFor(name string) string {
	if name == "" {
		return Zstd
	}
	switch strings.ToLower(name)[len(name)-1] {
	case 'g':
		return Gzip
	case 'r':
		return Flate
	}
	return Zstd
}

func newCompressor(w io.Writer, codec string) (io.WriteCloser, error) {
	switch codec {
	case Zstd, "":
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	case Gzip:
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	case Flate:
		return flate.NewWriter(w, flate.DefaultCompression)
	}
	return nil, fmt.Errorf("unknown codec %q", codec)
}

// zstdReadCloser lets a zstd decoder be closed as an io.ReadCloser.
type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

func newDecompressor(r io.Reader, codec string) (io.ReadCloser, error) {
	switch codec {
	case Zstd, "":
		d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{d}, nil
	case Gzip:
		return gzip.NewReader(r)
	case Flate:
		return flate.NewReader(r), nil
	}
	return nil, fmt.Errorf("unknown codec %q", codec)
}

// Writer writes an STF trajectory to an io.Writer. Frames are given as
// matrices (WNextDense), coordinate slices (WNextRaw) or as a raw stream of
// little-endian float32 x y z triplets through Write. Close flushes the
// compressor, it does not close the underlying writer.
type Writer struct {
	h      io.WriteCloser
	bw     *bufio.Writer
	natoms int
	prec   int
	mult   float64
	frames int
	coords []float32
	pend   []byte
	line   []byte
	err    error
}

// NewWriter writes the header of an STF trajectory of natoms atoms to w,
// compressed with codec. The header map may include "prec".
func NewWriter(w io.Writer, natoms int, codec string, header map[string]string) (*Writer, error) {
	if natoms <= 0 {
		return nil, Error{fmt.Sprintf("invalid number of atoms %d", natoms), []string{"NewWriter"}, true}
	}
	S := &Writer{natoms: natoms, prec: DefaultPrec}
	if p, ok := header["prec"]; ok {
		prec, err := strconv.Atoi(p)
		if err != nil || prec <= 0 {
			return nil, Error{fmt.Sprintf("invalid precision %q", p), []string{"NewWriter"}, true}
		}
		S.prec = prec
	}
	S.mult = math.Pow(10, float64(S.prec))
	var err error
	S.h, err = newCompressor(w, codec)
	if err != nil {
		return nil, Error{err.Error(), []string{"newCompressor", "NewWriter"}, true}
	}
	S.bw = bufio.NewWriter(S.h)
	keys := make([]string, 0, len(header)+1)
	for k := range header {
		if k != "prec" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	fmt.Fprintf(S.bw, "prec=%d\n", S.prec)
	for _, k := range keys {
		v := header[k]
		if strings.ContainsAny(k, "=\n") || strings.Contains(v, "\n") || strings.HasPrefix(k, "*") {
			return nil, Error{fmt.Sprintf("header entry %q can't be stored", k), []string{"NewWriter"}, true}
		}
		fmt.Fprintf(S.bw, "%s=%s\n", k, v)
	}
	fmt.Fprintf(S.bw, "** %d\n", natoms)
	S.coords = make([]float32, 3*natoms)
	return S, nil
}

// Len returns the number of atoms per frame.
func (S *Writer) Len() int {
	return S.natoms
}

// Frames returns the number of frames written so far.
func (S *Writer) Frames() int {
	return S.frames
}

// WNextDense writes the next frame, an natoms×3 matrix.
func (S *Writer) WNextDense(dcoord *mat.Dense) error {
	if dcoord == nil {
		return Error{NilCoordinates, []string{"WNextDense"}, true}
	}
	if r, c := dcoord.Dims(); r != S.natoms || c != 3 {
		return Error{fmt.Sprintf("%d coordinates given, but %d expected", r, S.natoms), []string{"WNextDense"}, true}
	}
	for i := 0; i < S.natoms; i++ {
		for j := 0; j < 3; j++ {
			S.coords[3*i+j] = float32(dcoord.At(i, j))
		}
	}
	return S.wnext(S.coords, "WNextDense")
}

// WNextRaw writes the next frame from coords, x y z for each atom.
func (S *Writer) WNextRaw(coords []float32) error {
	if len(coords) != 3*S.natoms {
		return Error{fmt.Sprintf("%d coordinates given, but %d expected", len(coords)/3, S.natoms), []string{"WNextRaw"}, true}
	}
	return S.wnext(coords, "WNextRaw")
}

func (S *Writer) wnext(coords []float32, caller string) error {
	if S.err != nil {
		return S.err
	}
	for i := 0; i < S.natoms; i++ {
		S.line = coordsEncode(S.line[:0], coords[3*i:3*i+3], S.mult)
		S.bw.Write(S.line)
	}
	if _, err := S.bw.WriteString("*\n"); err != nil {
		S.err = Error{err.Error(), []string{"Write", caller}, true}
		return S.err
	}
	S.frames++
	return nil
}

// Write implements io.Writer over a raw frame stream.
func (S *Writer) Write(p []byte) (int, error) {
	if S.err != nil {
		return 0, S.err
	}
	n := len(p)
	frameBytes := 12 * S.natoms
	for len(p) > 0 {
		take := min(frameBytes-len(S.pend), len(p))
		S.pend = append(S.pend, p[:take]...)
		p = p[take:]
		if len(S.pend) < frameBytes {
			break
		}
		for i := range S.coords {
			S.coords[i] = math.Float32frombits(binary.LittleEndian.Uint32(S.pend[4*i:]))
		}
		S.pend = S.pend[:0]
		if err := S.wnext(S.coords, "Write"); err != nil {
			return n - len(p), err
		}
	}
	return n, nil
}

// Close ends the compressed stream. An incomplete trailing frame is an error,
// but what was complete is still flushed.
func (S *Writer) Close() error {
	if S.h == nil {
		return nil
	}
	err := S.bw.Flush()
	if cerr := S.h.Close(); err == nil {
		err = cerr
	}
	S.h = nil
	if S.err != nil {
		return S.err
	}
	if err != nil {
		return Error{err.Error(), []string{"Close"}, true}
	}
	if len(S.pend) > 0 {
		return trajslice.NewTranscodeError("stf", fmt.Sprintf("%d bytes of an incomplete frame", len(S.pend)), "Close")
	}
	return nil
}

func coordsEncode(dst []byte, c []float32, mult float64) []byte {
	for i, v := range c {
		if i > 0 {
			dst = append(dst, ' ')
		}
		dst = strconv.AppendInt(dst, int64(math.RoundToEven(float64(v)*mult)), 10)
	}
	return append(dst, '\n')
}

func coordsDecode(str string, temp *[3]float64, mult float64) error {
	s := strings.Fields(str)
	if len(s) < 3 {
		return fmt.Errorf("ill formated coordinates line in stf: too few fields: %s", str)
	}
	if len(s) > 3 {
		return fmt.Errorf("ill formated coordinates line in stf: too many fields: %s", str)
	}
	for i, v := range s {
		f, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("can't parse coordinate %d (%s): %w", i, v, err)
		}
		temp[i] = float64(f) / mult
	}
	return nil
}

// Reader reads an STF trajectory.
type Reader struct {
	dec    io.ReadCloser
	h      *bufio.Reader
	natoms int
	prec   int
	mult   float64
	header map[string]string
	line   int
}

// NewReader reads the header of the STF trajectory in r, compressed with
// codec.
func NewReader(r io.Reader, codec string) (*Reader, error) {
	dec, err := newDecompressor(r, codec)
	if err != nil {
		return nil, Error{"can't read header: " + err.Error(), []string{"newDecompressor", "NewReader"}, true}
	}
	S := &Reader{dec: dec, h: bufio.NewReader(dec), natoms: -1, prec: DefaultPrec, header: map[string]string{}}
	for {
		str, err := S.h.ReadString('\n')
		S.line++
		if err != nil {
			dec.Close()
			return nil, Error{"can't read header: " + err.Error(), []string{"NewReader"}, true}
		}
		str = strings.TrimSuffix(str, "\n")
		if strings.HasPrefix(str, "**") {
			nat := strings.Fields(str)
			if len(nat) < 2 {
				dec.Close()
				return nil, Error{fmt.Sprintf("can't read atom number from '%s'", str), []string{"NewReader"}, true}
			}
			S.natoms, err = strconv.Atoi(nat[1])
			if err != nil || S.natoms <= 0 {
				dec.Close()
				return nil, Error{fmt.Sprintf("can't read atom number from '%s'", nat[1]), []string{"NewReader"}, true}
			}
			break
		}
		k, v, ok := strings.Cut(str, "=")
		if !ok {
			dec.Close()
			return nil, Error{fmt.Sprintf("malformed header line %d: %q", S.line, str), []string{"NewReader"}, true}
		}
		S.header[k] = v
	}
	if p, ok := S.header["prec"]; ok {
		prec, err := strconv.Atoi(p)
		if err != nil || prec <= 0 {
			dec.Close()
			return nil, Error{fmt.Sprintf("invalid precision %q", p), []string{"NewReader"}, true}
		}
		S.prec = prec
	}
	S.mult = math.Pow(10, float64(S.prec))
	return S, nil
}

// Len returns the number of atoms per frame.
func (S *Reader) Len() int { return S.natoms }

// Header returns the header entries, "prec" included.
func (S *Reader) Header() map[string]string { return S.header }

// Next reads the next frame into c, an natoms×3 matrix, or discards it if c
// is nil. The box vectors, when present, are stored in box[0] if given.
// It returns io.EOF after the last frame.
func (S *Reader) Next(c *mat.Dense, box ...[]float64) error {
	if S.h == nil {
		return io.EOF
	}
	if c != nil {
		if r, cols := c.Dims(); r != S.natoms || cols != 3 {
			return Error{fmt.Sprintf("matrix is %dx%d, need %dx3", r, cols, S.natoms), []string{"Next"}, true}
		}
	}
	var temp [3]float64
	for i := 0; i < S.natoms; i++ {
		b, err := S.h.ReadString('\n')
		if err != nil {
			if err == io.EOF && i == 0 && b == "" {
				S.Close()
				return io.EOF
			}
			return Error{fmt.Sprintf("frame cut at atom %d: %v", i, err), []string{"Next"}, true}
		}
		S.line++
		if err := coordsDecode(b, &temp, S.mult); err != nil {
			return Error{fmt.Sprintf("line %d: %v", S.line, err), []string{"coordsDecode", "Next"}, true}
		}
		if c != nil {
			c.Set(i, 0, temp[0])
			c.Set(i, 1, temp[1])
			c.Set(i, 2, temp[2])
		}
	}
	end, err := S.h.ReadString('\n')
	S.line++
	if err != nil && end == "" {
		return Error{"missing frame terminator: " + err.Error(), []string{"Next"}, true}
	}
	if !strings.HasPrefix(end, "*") {
		return Error{fmt.Sprintf("line %d: expected frame terminator, got %q", S.line, strings.TrimSpace(end)), []string{"Next"}, true}
	}
	if len(box) > 0 && box[0] != nil {
		f := strings.Fields(end[1:])
		for i := 0; i < len(f) && i < len(box[0]); i++ {
			v, err := strconv.ParseFloat(f[i], 64)
			if err != nil {
				return Error{fmt.Sprintf("line %d: bad box value %q", S.line, f[i]), []string{"Next"}, true}
			}
			box[0][i] = v
		}
	}
	return nil
}

// Close releases the decompressor.
func (S *Reader) Close() error {
	if S.h == nil {
		return nil
	}
	S.h = nil
	return S.dec.Close()
}

//Error is the general structure for STF trajectory errors. It fullfills trajslice.Error
type Error struct {
	message  string
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("stf trajectory error: %s", err.message)
}

func (E Error) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func (err Error) Format() string { return "stf" }

func (err Error) Critical() bool { return err.critical }

const NilCoordinates = "nil coordinates given"
