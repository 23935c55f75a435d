/*
 * rangeexpr_test.go, part of trajslice
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

package rangeexpr

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/trajslice"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit []uint64
		want  []Range
	}{
		{"single and dash", "1,5-6", nil, []Range{{0, 0}, {4, 5}}},
		{"step", "1:9:2", nil, []Range{{0, 0}, {2, 2}, {4, 4}, {6, 6}, {8, 8}}},
		{"unit step", "3:7", nil, []Range{{2, 6}}},
		{"adjacent merge", "1,2,3,7-8,9", nil, []Range{{0, 2}, {6, 8}}},
		{"unsorted with duplicates", "9,1,5-6,5,2", nil, []Range{{0, 1}, {4, 5}, {8, 8}}},
		{"overlapping dashes", "1-5,3-8", nil, []Range{{0, 7}}},
		{"reversed dash collapses", "7-3", nil, []Range{{6, 6}}},
		{"reversed step collapses", "9:1:2", nil, []Range{{8, 8}}},
		{"whitespace", " 1 , 4 - 5 ", nil, []Range{{0, 0}, {3, 4}}},
		{"step not reaching end", "2:9:3", nil, []Range{{1, 1}, {4, 4}, {7, 7}}},
		{"limit drops", "1,5-6,20", []uint64{5}, []Range{{0, 0}, {4, 4}}},
		{"limit clamps step", "1:100:10", []uint64{25}, []Range{{0, 0}, {10, 10}, {20, 20}}},
		{"huge unit step with limit", "1:18446744073709551615", []uint64{10}, []Range{{0, 9}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text, tt.limit...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit []uint64
		kind  error
	}{
		{"zero", "0", nil, trajslice.ErrZeroIndex},
		{"zero in list", "5,0", nil, trajslice.ErrZeroIndex},
		{"zero in dash", "0-4", nil, trajslice.ErrZeroIndex},
		{"zero step", "1:9:0", nil, trajslice.ErrZeroIndex},
		{"empty", "", nil, trajslice.ErrBadSyntax},
		{"letters", "1,a", nil, trajslice.ErrBadSyntax},
		{"negative", "-3", nil, trajslice.ErrBadSyntax},
		{"signed", "+3", nil, trajslice.ErrBadSyntax},
		{"empty item", "1,,2", nil, trajslice.ErrBadSyntax},
		{"too many colons", "1:2:3:4", nil, trajslice.ErrBadSyntax},
		{"open step", "1:", nil, trajslice.ErrBadSyntax},
		{"double dash", "1-2-3", nil, trajslice.ErrBadSyntax},
		{"step in list", "1,3:9", nil, trajslice.ErrBadSyntax},
		{"list after step", "1:9:2,12", nil, trajslice.ErrBadSyntax},
		{"overflow", "99999999999999999999", nil, trajslice.ErrBadSyntax},
		{"all beyond limit", "10-20", []uint64{5}, trajslice.ErrUnsatisfiable},
		{"unbounded sparse step", "1:18446744073709551615:2", nil, trajslice.ErrUnsatisfiable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text, tt.limit...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			var se *trajslice.SelectionError
			require.True(t, errors.As(err, &se))
			assert.False(t, se.Critical())
		})
	}
}

func TestParseExprAST(t *testing.T) {
	e, err := ParseExpr("1,5-6")
	require.NoError(t, err)
	assert.Equal(t, Expr{Simple{1}, Dash{5, 6}}, e)

	e, err = ParseExpr("1:9:2")
	require.NoError(t, err)
	assert.Equal(t, Expr{Step{1, 9, 2}}, e)
	assert.Equal(t, "1:9:2", e.String())

	e, err = ParseExpr("4:8")
	require.NoError(t, err)
	assert.Equal(t, Expr{Step{4, 8, 1}}, e)
}

func TestFormatRoundTrip(t *testing.T) {
	r, err := Parse("9,1,5-6,5,2,11-15")
	require.NoError(t, err)
	s := Format(r)
	assert.Equal(t, "1-2,5-6,9,11-15", s)
	again, err := Parse(s)
	require.NoError(t, err)
	assert.Equal(t, r, again)
}

// checkNormalized fails unless r is sorted, non-overlapping and non-adjacent.
func checkNormalized(t *testing.T, r []Range) {
	t.Helper()
	for i, v := range r {
		require.LessOrEqual(t, v.Start, v.End)
		if i > 0 {
			require.Greater(t, v.Start, r[i-1].End+1, "ranges %v and %v touch", r[i-1], v)
		}
	}
}

func TestParseRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 0; n < 500; n++ {
		//build a random list expression and the set it should select
		want := map[uint64]bool{}
		var e Expr
		for k := rng.Intn(6) + 1; k > 0; k-- {
			a := uint64(rng.Intn(60) + 1)
			switch rng.Intn(3) {
			case 0:
				e = append(e, Simple{a})
				want[a-1] = true
			case 1:
				b := uint64(rng.Intn(60) + 1)
				e = append(e, Dash{a, b})
				if b < a {
					b = a
				}
				for i := a; i <= b; i++ {
					want[i-1] = true
				}
			case 2:
				e = append(e, Dash{a, a})
				want[a-1] = true
			}
		}
		var lim []uint64
		if rng.Intn(2) == 0 {
			l := uint64(rng.Intn(70) + 1)
			lim = append(lim, l)
			for k := range want {
				if k >= l {
					delete(want, k)
				}
			}
		}
		got, err := Parse(e.String(), lim...)
		if len(want) == 0 {
			require.ErrorIs(t, err, trajslice.ErrUnsatisfiable)
			continue
		}
		require.NoError(t, err, e.String())
		checkNormalized(t, got)
		require.Equal(t, uint64(len(want)), Count(got))
		for _, v := range got {
			for i := v.Start; i <= v.End; i++ {
				require.True(t, want[i], "index %d should not be selected by %s", i, e)
			}
		}
		//the canonical form parses back to the same set
		again, err := Parse(Format(got))
		require.NoError(t, err)
		require.True(t, Equal(got, again))
	}
}

func TestWhole(t *testing.T) {
	r, err := Parse("1-10")
	require.NoError(t, err)
	assert.True(t, Whole(r, 10))
	assert.False(t, Whole(r, 11))
}
