/*
 * normalize.go, part of trajslice
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
	"slices"
	"strconv"
	"strings"

	"github.com/rmera/trajslice"
)

// maxStepPoints bounds how many separate indexes a stepped term may expand
// to, after clamping to the limit.
const maxStepPoints = 1 << 24

// Range is an inclusive, 0-based range of indexes.
type Range struct {
	Start uint64
	End   uint64
}

// Len returns the number of indexes in the range.
func (R Range) Len() uint64 {
	return R.End - R.Start + 1
}

// Parse parses text and returns the normalized set of 0-based ranges it
// selects: sorted, with no two ranges overlapping or touching.
// If a limit is given, indexes beyond it (that is, 0-based indexes equal to
// or larger than the limit) are dropped. Only the first limit is used.
func Parse(text string, limit ...uint64) ([]Range, error) {
	e, err := ParseExpr(text)
	if err != nil {
		return nil, trajslice.Decorate(err, "Parse")
	}
	r, err := e.Normalize(limit...)
	if err != nil {
		if se, ok := err.(*trajslice.SelectionError); ok && se.Fragment == "" {
			se.Fragment = text
		}
		return nil, trajslice.Decorate(err, "Parse")
	}
	return r, nil
}

// Normalize expands the terms of the expression into a normalized range set.
// See Parse.
func (E Expr) Normalize(limit ...uint64) ([]Range, error) {
	var lim uint64
	haslim := len(limit) > 0
	if haslim {
		lim = limit[0]
	}
	//still 1-based here.
	spans := make([]Range, 0, len(E))
	for _, t := range E {
		from, to := t.bounds()
		//1-based from > lim is 0-based from >= lim.
		if haslim {
			if from > lim {
				continue
			}
			to = min(to, lim)
		}
		st, ok := t.(Step)
		if !ok || st.By == 1 {
			spans = append(spans, Range{from, to})
			continue
		}
		if (to-from)/st.By >= maxStepPoints {
			return nil, trajslice.NewSelectionError(trajslice.ErrUnsatisfiable, t.String(), "Normalize")
		}
		for i := from; i <= to; i += st.By {
			spans = append(spans, Range{i, i})
			if to-i < st.By {
				break //the next step would overflow or go past to
			}
		}
	}
	if len(spans) == 0 {
		return nil, trajslice.NewSelectionError(trajslice.ErrUnsatisfiable, "", "Normalize")
	}
	spans = Compact(spans)
	for i := range spans {
		spans[i].Start--
		spans[i].End--
	}
	return spans, nil
}

// Compact sorts r in place and merges overlapping or adjacent ranges.
// The returned slice shares r's backing array.
func Compact(r []Range) []Range {
	if len(r) == 0 {
		return r
	}
	slices.SortFunc(r, func(a, b Range) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})
	out := r[:1]
	for _, v := range r[1:] {
		last := &out[len(out)-1]
		//v.Start-1 can't underflow against End, as End+1 could overflow
		if v.Start == 0 || v.Start-1 <= last.End {
			last.End = max(last.End, v.End)
			continue
		}
		out = append(out, v)
	}
	return out
}

// Count returns the number of indexes in a normalized set.
func Count(r []Range) uint64 {
	var n uint64
	for _, v := range r {
		n += v.Len()
	}
	return n
}

// Format returns the canonical 1-based expression for a normalized set, e.g.
// "1,5-6". Parsing the result gives back r.
func Format(r []Range) string {
	s := make([]string, len(r))
	for i, v := range r {
		if v.Start == v.End {
			s[i] = strconv.FormatUint(v.Start+1, 10)
			continue
		}
		s[i] = strconv.FormatUint(v.Start+1, 10) + "-" + strconv.FormatUint(v.End+1, 10)
	}
	return strings.Join(s, ",")
}

// Equal reports whether two normalized sets select the same indexes.
func Equal(a, b []Range) bool {
	return slices.Equal(a, b)
}

// Whole reports whether the normalized set r covers exactly 0..length-1.
func Whole(r []Range, length uint64) bool {
	return len(r) == 1 && r[0].Start == 0 && r[0].End == length-1
}
