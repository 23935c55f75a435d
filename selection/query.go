/*
 * query.go, part of trajslice
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
	"github.com/rmera/trajslice"
	"github.com/rmera/trajslice/rangeexpr"
)

// BytesKey is the query key for raw byte ranges, which bypass the axes.
const BytesKey = "bytes"

// Selection maps axis names to normalized 0-based index ranges. An axis that
// is absent is selected whole.
type Selection map[string][]rangeexpr.Range

// Request is a parsed query: an axis selection or a set of raw byte ranges,
// never both.
type Request struct {
	Selection Selection
	Bytes     []rangeexpr.Range //0-based byte offsets, nil for axis requests
}

// FromQuery builds a Request from query parameters. Each axis is looked up by
// its name and each of its aliases, parsed with the axis length as limit.
// Two keys for the same axis must select the same indexes. The BytesKey
// parameter can't be combined with any axis parameter. Other keys are ignored.
func FromQuery(layout Layout, params map[string]string) (Request, error) {
	var req Request
	if err := layout.Validate(); err != nil {
		return req, trajslice.Decorate(err, "FromQuery")
	}
	sel := make(Selection)
	used := "" //first axis key found
	for _, a := range layout.Axes {
		var ranges []rangeexpr.Range
		from := ""
		for _, key := range append([]string{a.Name}, a.Aliases...) {
			text, ok := params[key]
			if !ok {
				continue
			}
			r, err := rangeexpr.Parse(text, a.Length)
			if err != nil {
				if se, ok := err.(*trajslice.SelectionError); ok {
					se.Axis = a.Name
				}
				return req, trajslice.Decorate(err, "FromQuery")
			}
			if from != "" && !rangeexpr.Equal(ranges, r) {
				e := trajslice.NewSelectionError(trajslice.ErrConflict, from+"="+params[from]+" vs "+key+"="+text, "FromQuery")
				e.Axis = a.Name
				return req, e
			}
			ranges, from = r, key
			if used == "" {
				used = key
			}
		}
		if ranges != nil {
			sel[a.Name] = ranges
		}
	}
	if text, ok := params[BytesKey]; ok {
		if used != "" {
			return req, trajslice.NewSelectionError(trajslice.ErrConflict, BytesKey+" with "+used, "FromQuery")
		}
		r, err := rangeexpr.Parse(text, layout.Bytes())
		if err != nil {
			return req, trajslice.Decorate(err, "FromQuery")
		}
		req.Bytes = r
		return req, nil
	}
	req.Selection = sel
	return req, nil
}

// Compile compiles the request against layout. Raw byte requests are
// compiled as a selection over a one-axis layout of 8-bit elements.
func (R Request) Compile(layout Layout) (*Compiled, error) {
	if R.Bytes != nil {
		raw := Layout{
			Axes:        []Axis{{Name: BytesKey, Length: layout.Bytes()}},
			ElementBits: 8,
		}
		c, err := Compile(Selection{BytesKey: R.Bytes}, raw)
		if err != nil {
			return nil, trajslice.Decorate(err, "Request.Compile")
		}
		c.Raw = true
		return c, nil
	}
	c, err := Compile(R.Selection, layout)
	if err != nil {
		return nil, trajslice.Decorate(err, "Request.Compile")
	}
	return c, nil
}
