/*
 * stf_test.go, part of trajslice
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
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/rmera/trajslice"
)

func TestCodecFor(Te *testing.T) {
	assert.Equal(Te, Zstd, CodecFor("traj.stf"))
	assert.Equal(Te, Zstd, CodecFor("traj.stz"))
	assert.Equal(Te, Gzip, CodecFor("traj.stg"))
	assert.Equal(Te, Flate, CodecFor("traj.STR"))
	assert.Equal(Te, Zstd, CodecFor(""))
}

func TestRoundTrip(Te *testing.T) {
	rng := rand.New(rand.NewSource(2))
	const atoms, frames = 6, 4
	coords := make([]float32, atoms*3*frames)
	for i := range coords {
		coords[i] = float32(rng.NormFloat64() * 20)
	}
	for _, codec := range []string{Zstd, Gzip, Flate} {
		for _, prec := range []string{"", "3"} {
			header := map[string]string{"source": "test"}
			if prec != "" {
				header["prec"] = prec
			}
			var buf bytes.Buffer
			w, err := NewWriter(&buf, atoms, codec, header)
			require.NoError(Te, err)
			require.NoError(Te, w.WNextRaw(coords[:atoms*3]))
			m := mat.NewDense(atoms, 3, nil)
			for i := 0; i < atoms*3; i++ {
				m.Set(i/3, i%3, float64(coords[atoms*3+i]))
			}
			require.NoError(Te, w.WNextDense(m))
			var raw []byte
			for _, v := range coords[2*atoms*3:] {
				raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(v))
			}
			for len(raw) > 0 {
				n := min(len(raw), 5)
				_, err := w.Write(raw[:n])
				require.NoError(Te, err)
				raw = raw[n:]
			}
			require.NoError(Te, w.Close())
			assert.Equal(Te, frames, w.Frames())

			r, err := NewReader(&buf, codec)
			require.NoError(Te, err, codec)
			assert.Equal(Te, atoms, r.Len())
			assert.Equal(Te, "test", r.Header()["source"])
			delta := 0.005
			if prec == "3" {
				delta = 0.0005
			}
			for f := 0; f < frames; f++ {
				require.NoError(Te, r.Next(m))
				for i := 0; i < atoms*3; i++ {
					assert.InDelta(Te, coords[f*atoms*3+i], m.At(i/3, i%3), delta*1.0001)
				}
			}
			assert.Equal(Te, io.EOF, r.Next(m))
			require.NoError(Te, r.Close())
		}
	}
}

func TestWriterErrors(Te *testing.T) {
	_, err := NewWriter(io.Discard, 0, Zstd, nil)
	assert.Error(Te, err)
	_, err = NewWriter(io.Discard, 2, "lz4", nil)
	assert.Error(Te, err)
	_, err = NewWriter(io.Discard, 2, Zstd, map[string]string{"prec": "x"})
	assert.Error(Te, err)
	_, err = NewWriter(io.Discard, 2, Zstd, map[string]string{"a=b": "c"})
	assert.Error(Te, err)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, 2, Gzip, nil)
	require.NoError(Te, err)
	assert.Error(Te, w.WNextRaw(make([]float32, 3)))
	_, err = w.Write(make([]byte, 30))
	require.NoError(Te, err)
	var te *trajslice.TranscodeError
	assert.True(Te, errors.As(w.Close(), &te))
	//the complete frame is still there
	r, err := NewReader(&buf, Gzip)
	require.NoError(Te, err)
	require.NoError(Te, r.Next(nil))
	assert.Equal(Te, io.EOF, r.Next(nil))
}

func TestReaderBox(Te *testing.T) {
	var plain bytes.Buffer
	zw, err := newCompressor(&plain, Zstd)
	require.NoError(Te, err)
	io.WriteString(zw, "prec=1\n** 1\n10 -20 30\n* 1 0 0 0 1 0 0 0 1\n")
	require.NoError(Te, zw.Close())
	r, err := NewReader(&plain, Zstd)
	require.NoError(Te, err)
	m := mat.NewDense(1, 3, nil)
	box := make([]float64, 9)
	require.NoError(Te, r.Next(m, box))
	assert.Equal(Te, []float64{1, -2, 3}, mat.Row(nil, 0, m))
	assert.Equal(Te, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, box)
}

func TestReaderMalformed(Te *testing.T) {
	for _, text := range []string{
		"prec=2\n",
		"prec=2\nnonsense\n** 1\n",
		"prec=2\n** x\n",
		"prec=0\n** 1\n",
	} {
		var b bytes.Buffer
		zw, _ := newCompressor(&b, Zstd)
		io.WriteString(zw, text)
		zw.Close()
		_, err := NewReader(&b, Zstd)
		assert.Error(Te, err, text)
	}
	var b bytes.Buffer
	zw, _ := newCompressor(&b, Zstd)
	io.WriteString(zw, "prec=2\n** 2\n1 2 3\n4 5\n*\n")
	zw.Close()
	r, err := NewReader(&b, Zstd)
	require.NoError(Te, err)
	assert.Error(Te, r.Next(nil))
}
