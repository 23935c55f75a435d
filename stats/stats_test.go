/*
 * stats_test.go, part of trajslice
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

package stats

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/rmera/trajslice"
)

func raw(v []float32) []byte {
	var b []byte
	for _, x := range v {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(x))
	}
	return b
}

func TestCollector(Te *testing.T) {
	rng := rand.New(rand.NewSource(4))
	const frames, atoms = 50, 97 //enough values to span several blocks
	v := make([]float32, frames*atoms*3)
	comp := make([][]float64, 3)
	for i := range v {
		v[i] = float32(rng.NormFloat64()*float64(i%3+1) + float64(i%3))
		comp[i%3] = append(comp[i%3], float64(v[i]))
	}
	c, err := NewCollector([]string{"x", "y", "z"}, atoms*3, WithFrameMeans(), WithHistogram(-10, 10, 20))
	require.NoError(Te, err)
	b := raw(v)
	for len(b) > 0 {
		n := min(len(b), 1+rng.Intn(1000))
		_, err := c.Write(b[:n])
		require.NoError(Te, err)
		b = b[n:]
	}
	s, err := c.Summary()
	require.NoError(Te, err)
	assert.Equal(Te, uint64(frames), s.Frames)
	require.Len(Te, s.Components, 3)
	for i, cm := range s.Components {
		mean, std := stat.MeanStdDev(comp[i], nil)
		assert.Equal(Te, uint64(frames*atoms), cm.Count)
		assert.InDelta(Te, mean, cm.Mean, 1e-9)
		assert.InDelta(Te, std, cm.StdDev, 1e-9)
		h := cm.Histo
		require.NotNil(Te, h)
		total := float64(h.Outside)
		for _, n := range h.Counts {
			total += n
		}
		assert.Equal(Te, float64(cm.Count), total)
		assert.InDelta(Te, 1, sum(h.Normalized()), 1e-12)
	}
	require.Len(Te, s.FrameMeans, frames)
	first, _ := stat.MeanStdDev(comp[1][:atoms], nil)
	assert.InDelta(Te, first, s.FrameMeans[0][1], 1e-9)
}

func sum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}

func TestCollectorNaN(Te *testing.T) {
	c, err := NewCollector([]string{"v"}, 2, WithFrameMeans())
	require.NoError(Te, err)
	nan := float32(math.NaN())
	_, err = c.Write(raw([]float32{1, 3, nan, nan, 5}))
	require.NoError(Te, err)
	s, err := c.Summary()
	require.NoError(Te, err)
	cm := s.Components[0]
	assert.Equal(Te, uint64(3), cm.Count)
	assert.Equal(Te, uint64(2), cm.NaN)
	assert.Equal(Te, 3.0, cm.Mean)
	assert.Equal(Te, 1.0, cm.Min)
	assert.Equal(Te, 5.0, cm.Max)
	assert.Equal(Te, uint64(3), s.Frames)
	require.Len(Te, s.FrameMeans, 3)
	assert.True(Te, math.IsNaN(s.FrameMeans[1][0]))

	var out bytes.Buffer
	require.NoError(Te, s.WriteJSON(&out))
	var back struct {
		Frames     int          `json:"frames"`
		FrameMeans [][]*float64 `json:"frame_means"`
	}
	require.NoError(Te, json.Unmarshal(out.Bytes(), &back))
	assert.Equal(Te, 3, back.Frames)
	assert.Nil(Te, back.FrameMeans[1][0])
	assert.Equal(Te, 2.0, *back.FrameMeans[0][0])
}

func TestCollectorErrors(Te *testing.T) {
	_, err := NewCollector(nil, 3)
	assert.Error(Te, err)
	_, err = NewCollector([]string{"x", "y"}, 3)
	assert.Error(Te, err)
	c, err := NewCollector([]string{"x"}, 1)
	require.NoError(Te, err)
	c.Write([]byte{1, 2})
	_, err = c.Summary()
	var te *trajslice.TranscodeError
	assert.True(Te, errors.As(err, &te))
	_, err = NewHistogram(1, 1, 3)
	assert.Error(Te, err)
}
