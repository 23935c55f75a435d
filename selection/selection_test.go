/*
 * selection_test.go, part of trajslice
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

package selection

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/trajslice"
	"github.com/rmera/trajslice/rangeexpr"
)

func collect(c *Compiled) []trajslice.ByteRange {
	var out []trajslice.ByteRange
	it := c.Ranges()
	for it.Next() {
		out = append(out, it.Range())
	}
	return out
}

func TestCompileAtomAcrossFrames(t *testing.T) {
	layout := TrajectoryLayout(3, 3)
	c, err := Compile(Selection{AtomAxis: {{Start: 1, End: 1}}}, layout)
	require.NoError(t, err)
	assert.False(t, c.Whole)
	assert.Equal(t, []trajslice.ByteRange{{Start: 12, End: 23}, {Start: 48, End: 59}, {Start: 84, End: 95}}, collect(c))
	assert.Equal(t, uint64(9), c.NValues)
	assert.Equal(t, uint64(36), c.ByteSize())
	assert.Equal(t, uint64(1), c.Count(AtomAxis))
	assert.Equal(t, uint64(3), c.Count(FrameAxis))
}

func TestCompileWhole(t *testing.T) {
	layout := TrajectoryLayout(4, 5)
	//a selection covering a whole axis is the same as no selection
	c, err := Compile(Selection{FrameAxis: {{Start: 0, End: 3}}}, layout)
	require.NoError(t, err)
	assert.True(t, c.Whole)
	assert.Equal(t, uint64(4*5*3*4), c.TotalBytes)
	assert.Equal(t, c.TotalBytes, c.ByteSize())
	assert.Equal(t, []trajslice.ByteRange{{Start: 0, End: c.TotalBytes - 1}}, collect(c))

	layout.TotalBytes = 1000
	c, err = Compile(nil, layout)
	require.NoError(t, err)
	assert.Equal(t, []trajslice.ByteRange{{Start: 0, End: 999}}, collect(c))
}

func TestCompileFramesMerge(t *testing.T) {
	layout := TrajectoryLayout(10, 2)
	//frames 2-3 and 5 (0-based 1-2, 4): 24 bytes per frame
	c, err := Compile(Selection{FrameAxis: {{Start: 1, End: 2}, {Start: 4, End: 4}}}, layout)
	require.NoError(t, err)
	assert.Equal(t, []trajslice.ByteRange{{Start: 24, End: 71}, {Start: 96, End: 119}}, collect(c))

	//all atoms of one coordinate would be one range per atom, and adjacent
	//atoms don't touch
	c, err = Compile(Selection{CoordAxis: {{Start: 0, End: 1}}, FrameAxis: {{Start: 0, End: 0}}}, layout)
	require.NoError(t, err)
	assert.Equal(t, []trajslice.ByteRange{{Start: 0, End: 7}, {Start: 12, End: 19}}, collect(c))
	assert.Equal(t, uint64(4), c.NValues)
}

func TestCompileRangesRestart(t *testing.T) {
	c, err := Compile(Selection{AtomAxis: {{Start: 0, End: 0}}}, TrajectoryLayout(5, 4))
	require.NoError(t, err)
	first := collect(c)
	assert.Equal(t, first, collect(c))
	assert.Len(t, first, 5)
}

func TestCompileErrors(t *testing.T) {
	layout := TrajectoryLayout(3, 3)
	_, err := Compile(Selection{AtomAxis: {{Start: 1, End: 3}}}, layout)
	assert.ErrorIs(t, err, trajslice.ErrUnsatisfiable)
	_, err = Compile(Selection{"residue": {{Start: 0, End: 0}}}, layout)
	assert.ErrorIs(t, err, trajslice.ErrBadSyntax)
	_, err = Compile(Selection{AtomAxis: {}}, layout)
	assert.ErrorIs(t, err, trajslice.ErrUnsatisfiable)
	_, err = Compile(Selection{AtomAxis: {{Start: 0, End: 0}, {Start: 1, End: 1}}}, layout)
	assert.ErrorIs(t, err, trajslice.ErrBadSyntax)
	_, err = Compile(nil, Layout{Axes: []Axis{{Name: "x", Length: 0}}, ElementBits: 8})
	assert.Error(t, err)
	_, err = Compile(nil, Layout{Axes: []Axis{{Name: "x", Length: 4}}})
	assert.Error(t, err)
}

//randomSelection picks a random normalized selection for some axes of layout.
func randomSelection(rng *rand.Rand, layout Layout) Selection {
	sel := Selection{}
	for _, a := range layout.Axes {
		if rng.Intn(3) == 0 {
			continue
		}
		var r []rangeexpr.Range
		for k := rng.Intn(4) + 1; k > 0; k-- {
			s := uint64(rng.Int63n(int64(a.Length)))
			e := s + uint64(rng.Int63n(int64(a.Length-s)))
			if rng.Intn(2) == 0 {
				e = s
			}
			r = append(r, rangeexpr.Range{Start: s, End: e})
		}
		sel[a.Name] = rangeexpr.Compact(r)
	}
	return sel
}

//selectedElements brute-forces the set of selected element indexes.
func selectedElements(layout Layout, sel Selection) map[uint64]bool {
	out := map[uint64]bool{}
	n := layout.Elements()
	for e := uint64(0); e < n; e++ {
		rem := e
		ok := true
		for _, a := range layout.Axes {
			idx := rem % a.Length
			rem /= a.Length
			r, constrained := sel[a.Name]
			if !constrained {
				continue
			}
			in := false
			for _, v := range r {
				if idx >= v.Start && idx <= v.End {
					in = true
				}
			}
			ok = ok && in
		}
		if ok {
			out[e] = true
		}
	}
	return out
}

func TestCompileInvariantsRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, bits := range []uint32{8, 32, 64, 2, 3, 5, 12} {
		for n := 0; n < 60; n++ {
			layout := Layout{
				Axes: []Axis{
					{Name: "c", Length: uint64(rng.Intn(3) + 1)},
					{Name: "a", Length: uint64(rng.Intn(6) + 1)},
					{Name: "f", Length: uint64(rng.Intn(5) + 1)},
				},
				ElementBits: bits,
			}
			sel := randomSelection(rng, layout)
			c, err := Compile(sel, layout)
			require.NoError(t, err)
			want := selectedElements(layout, sel)
			require.Equal(t, uint64(len(want)), c.NValues)

			//byte ranges: ascending, disjoint, non-adjacent, sum matches
			ranges := collect(c)
			var sum uint64
			for i, r := range ranges {
				require.LessOrEqual(t, r.Start, r.End)
				if i > 0 {
					require.Greater(t, r.Start, ranges[i-1].End+1)
				}
				sum += r.Len()
			}
			require.Equal(t, c.ByteSize(), sum)

			//windows cover exactly the selected bits, and every window is
			//inside a byte range
			bitsSeen := map[uint64]bool{}
			it := c.Windows()
			var prevEnd uint64
			first := true
			for it.Next() {
				w := it.Window()
				start := w.ByteStart*8 + uint64(w.BitOffset)
				end := start + w.BitCount - 1
				require.Equal(t, w.ByteEnd, end/8)
				require.Equal(t, w.LastBit(), uint8(end%8))
				if !first {
					require.Greater(t, start, prevEnd)
				}
				first, prevEnd = false, end
				for b := start; b <= end; b++ {
					bitsSeen[b] = true
				}
				inside := false
				for _, r := range ranges {
					if r.Start <= w.ByteStart && w.ByteEnd <= r.End {
						inside = true
					}
				}
				require.True(t, inside, "window %+v outside ranges %v", w, ranges)
			}
			if c.Whole {
				continue
			}
			require.Equal(t, len(want)*int(bits), len(bitsSeen))
			for e := range want {
				require.True(t, bitsSeen[e*uint64(bits)])
			}
		}
	}
}

func TestWindowsSplit(t *testing.T) {
	layout := Layout{Axes: []Axis{{Name: "x", Length: 3 * maxWindowElements}}, ElementBits: 2}
	c, err := Compile(Selection{"x": {{Start: 1, End: 2*maxWindowElements + 10}}}, layout)
	require.NoError(t, err)
	it := c.Windows()
	var total uint64
	var n int
	for it.Next() {
		require.LessOrEqual(t, it.Elements(), uint64(maxWindowElements))
		total += it.Elements()
		n++
	}
	assert.Equal(t, 3, n)
	assert.Equal(t, c.NValues, total)
	assert.Equal(t, []trajslice.ByteRange{{Start: 0, End: (2*maxWindowElements + 11) * 2 / 8}}, collect(c))
}

func TestFromQuery(t *testing.T) {
	layout := TrajectoryLayout(10, 4)
	req, err := FromQuery(layout, map[string]string{"frames": "1:9:2", "atom": "2", "format": "mdcrd"})
	require.NoError(t, err)
	assert.Nil(t, req.Bytes)
	assert.Equal(t, []rangeexpr.Range{{Start: 1, End: 1}}, req.Selection[AtomAxis])
	assert.Len(t, req.Selection[FrameAxis], 5)
	_, ok := req.Selection[CoordAxis]
	assert.False(t, ok)

	//agreeing aliases are fine
	req, err = FromQuery(layout, map[string]string{"frame": "1-3", "frames": "3,1,2"})
	require.NoError(t, err)
	assert.Equal(t, []rangeexpr.Range{{Start: 0, End: 2}}, req.Selection[FrameAxis])

	//indexes past the axis are dropped
	req, err = FromQuery(layout, map[string]string{"atoms": "3-8"})
	require.NoError(t, err)
	assert.Equal(t, []rangeexpr.Range{{Start: 2, End: 3}}, req.Selection[AtomAxis])
}

func TestFromQueryErrors(t *testing.T) {
	layout := TrajectoryLayout(10, 4)
	_, err := FromQuery(layout, map[string]string{"frame": "1-3", "frames": "1-4"})
	require.ErrorIs(t, err, trajslice.ErrConflict)
	var se *trajslice.SelectionError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, FrameAxis, se.Axis)

	_, err = FromQuery(layout, map[string]string{"bytes": "1-100", "atom": "1"})
	assert.ErrorIs(t, err, trajslice.ErrConflict)

	_, err = FromQuery(layout, map[string]string{"atom": "0"})
	assert.ErrorIs(t, err, trajslice.ErrZeroIndex)

	_, err = FromQuery(layout, map[string]string{"atom": "x"})
	assert.ErrorIs(t, err, trajslice.ErrBadSyntax)

	_, err = FromQuery(layout, map[string]string{"atom": "9-12"})
	assert.ErrorIs(t, err, trajslice.ErrUnsatisfiable)
}

func TestRawBytes(t *testing.T) {
	layout := TrajectoryLayout(2, 2) //48 bytes
	req, err := FromQuery(layout, map[string]string{"bytes": "1-4,9,47-100"})
	require.NoError(t, err)
	c, err := req.Compile(layout)
	require.NoError(t, err)
	assert.True(t, c.Raw)
	assert.Equal(t, []trajslice.ByteRange{{Start: 0, End: 3}, {Start: 8, End: 8}, {Start: 46, End: 47}}, collect(c))
	assert.Equal(t, uint64(7), c.ByteSize())
}
