/*
 * expr.go, part of trajslice
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

// Package rangeexpr parses the 1-based range expressions used to select
// frames, atoms and coordinates, into normalized 0-based index ranges.
//
// Two syntaxes are accepted:
//
//	start:end[:step]    an arithmetic progression, e.g. "1:9:2"
//	a,b-c,...           a list of single indexes and dash ranges, e.g. "1,5-6"
//
// All indexes are 1-based and 0 is rejected. A dash or step term whose end
// is smaller than its start collapses to the single index start.
package rangeexpr

import (
	"strconv"
	"strings"

	"github.com/rmera/trajslice"
)

// Term is one element of a range expression. It is one of Simple, Dash or Step.
type Term interface {
	//bounds returns the 1-based first and last index of the term, after
	//collapsing a reversed term to its start.
	bounds() (uint64, uint64)
	String() string
}

// Simple is a single index.
type Simple struct {
	N uint64
}

// Dash is an inclusive range From-To.
type Dash struct {
	From, To uint64
}

// Step is the progression From, From+By, ... up to To.
type Step struct {
	From, To, By uint64
}

func (S Simple) bounds() (uint64, uint64) { return S.N, S.N }

func (S Simple) String() string { return strconv.FormatUint(S.N, 10) }

func (D Dash) bounds() (uint64, uint64) {
	if D.To < D.From {
		return D.From, D.From
	}
	return D.From, D.To
}

func (D Dash) String() string {
	return strconv.FormatUint(D.From, 10) + "-" + strconv.FormatUint(D.To, 10)
}

func (S Step) bounds() (uint64, uint64) {
	if S.To < S.From {
		return S.From, S.From
	}
	//the last index actually reached by the progression
	last := S.From + (S.To-S.From)/S.By*S.By
	return S.From, last
}

func (S Step) String() string {
	return strconv.FormatUint(S.From, 10) + ":" + strconv.FormatUint(S.To, 10) + ":" + strconv.FormatUint(S.By, 10)
}

// Expr is a parsed range expression.
type Expr []Term

func (E Expr) String() string {
	s := make([]string, len(E))
	for i, t := range E {
		s[i] = t.String()
	}
	return strings.Join(s, ",")
}

// ParseExpr parses text into its terms without normalizing them.
func ParseExpr(text string) (Expr, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, trajslice.NewSelectionError(trajslice.ErrBadSyntax, text, "ParseExpr")
	}
	if strings.Contains(text, ":") {
		t, err := parseStep(text)
		if err != nil {
			return nil, trajslice.Decorate(err, "ParseExpr")
		}
		return Expr{t}, nil
	}
	items := strings.Split(text, ",")
	e := make(Expr, 0, len(items))
	for _, item := range items {
		t, err := parseItem(strings.TrimSpace(item))
		if err != nil {
			return nil, trajslice.Decorate(err, "ParseExpr")
		}
		e = append(e, t)
	}
	return e, nil
}

func parseStep(text string) (Term, error) {
	fields := strings.Split(text, ":")
	if len(fields) < 2 || len(fields) > 3 {
		return nil, trajslice.NewSelectionError(trajslice.ErrBadSyntax, text, "parseStep")
	}
	nums := make([]uint64, 3)
	nums[2] = 1
	for i, f := range fields {
		n, err := parseIndex(strings.TrimSpace(f))
		if err != nil {
			return nil, trajslice.Decorate(err, "parseStep")
		}
		nums[i] = n
	}
	return Step{From: nums[0], To: nums[1], By: nums[2]}, nil
}

func parseItem(item string) (Term, error) {
	from, to, dash := strings.Cut(item, "-")
	if !dash {
		n, err := parseIndex(item)
		if err != nil {
			return nil, trajslice.Decorate(err, "parseItem")
		}
		return Simple{N: n}, nil
	}
	f, err := parseIndex(strings.TrimSpace(from))
	if err != nil {
		return nil, trajslice.Decorate(err, "parseItem")
	}
	t, err := parseIndex(strings.TrimSpace(to))
	if err != nil {
		return nil, trajslice.Decorate(err, "parseItem")
	}
	return Dash{From: f, To: t}, nil
}

// parseIndex accepts only unsigned decimal numbers, so "+1", "-1", "0x1" and
// friends are bad syntax. 0 is a ZeroIndex error.
func parseIndex(s string) (uint64, error) {
	if s == "" {
		return 0, trajslice.NewSelectionError(trajslice.ErrBadSyntax, s, "parseIndex")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, trajslice.NewSelectionError(trajslice.ErrBadSyntax, s, "parseIndex")
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, trajslice.NewSelectionError(trajslice.ErrBadSyntax, s, "parseIndex")
	}
	if n == 0 {
		return 0, trajslice.NewSelectionError(trajslice.ErrZeroIndex, s, "parseIndex")
	}
	return n, nil
}
