/*
 * stats.go, part of trajslice
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

// Package stats summarizes the values of a selection: per component count,
// mean, standard deviation, extremes and, optionally, a histogram and the
// mean of every frame.
//
// Values are consumed as a raw little-endian float32 stream, so a Collector
// can stand wherever a transcoder would. Statistics are computed over fixed
// size blocks with gonum and combined, memory use doesn't grow with the
// input.
package stats

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rmera/trajslice"
)

const blockSize = 4096

// Histogram counts values between consecutive dividers. Values outside
// [Dividers[0], Dividers[len-1]) are only counted in Outside.
type Histogram struct {
	Dividers []float64 `json:"dividers"`
	Counts   []float64 `json:"counts"`
	Outside  uint64    `json:"outside"`
}

// NewHistogram returns an empty histogram of n bins of the same width
// spanning lo to hi.
func NewHistogram(lo, hi float64, n int) (*Histogram, error) {
	if n <= 0 || !(hi > lo) {
		return nil, fmt.Errorf("invalid histogram %g to %g in %d bins", lo, hi, n)
	}
	return &Histogram{Dividers: floats.Span(make([]float64, n+1), lo, hi), Counts: make([]float64, n)}, nil
}

func (H *Histogram) add(v ...float64) {
	for _, x := range v {
		if i := floats.Within(H.Dividers, x); i >= 0 {
			H.Counts[i]++
			continue
		}
		H.Outside++
	}
}

// Normalized returns the fraction of the counted values in each bin.
func (H *Histogram) Normalized() []float64 {
	out := make([]float64, len(H.Counts))
	if total := floats.Sum(H.Counts); total > 0 {
		floats.ScaleTo(out, 1/total, H.Counts)
	}
	return out
}

// Component is the summary of one component (such as the x coordinate).
type Component struct {
	Name   string     `json:"name"`
	Count  uint64     `json:"count"`
	NaN    uint64     `json:"nan,omitempty"`
	Mean   float64    `json:"mean"`
	StdDev float64    `json:"stddev"`
	Min    float64    `json:"min"`
	Max    float64    `json:"max"`
	Histo  *Histogram `json:"histogram,omitempty"`
}

// Summary is what a Collector produces.
type Summary struct {
	Object     string      `json:"object,omitempty"`
	Query      string      `json:"query,omitempty"`
	Frames     uint64      `json:"frames"`
	Components []Component `json:"components"`
	//FrameMeans[f][c] is the mean of component c in frame f.
	FrameMeans [][]float64 `json:"frame_means,omitempty"`
}

// WriteJSON writes the summary as indented JSON. NaN frame means are
// written as null.
func (S Summary) WriteJSON(w io.Writer) error {
	type plain Summary
	out := struct {
		plain
		FrameMeans [][]*float64 `json:"frame_means,omitempty"`
	}{plain: plain(S)}
	for _, f := range S.FrameMeans {
		row := make([]*float64, len(f))
		for i := range f {
			if !math.IsNaN(f[i]) {
				row[i] = &f[i]
			}
		}
		out.FrameMeans = append(out.FrameMeans, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// running holds the combined moments of the blocks seen so far.
type running struct {
	n, mean, m2, min, max float64
}

// merge adds a block, with the pairwise update of Chan et al.
func (R *running) merge(block []float64) {
	if len(block) == 0 {
		return
	}
	nb := float64(len(block))
	mb, vb := stat.MeanVariance(block, nil)
	if len(block) == 1 {
		vb = 0
	}
	lo, hi := floats.Min(block), floats.Max(block)
	if R.n == 0 {
		*R = running{n: nb, mean: mb, m2: vb * (nb - 1), min: lo, max: hi}
		return
	}
	n := R.n + nb
	delta := mb - R.mean
	R.mean += delta * nb / n
	R.m2 += vb*(nb-1) + delta*delta*R.n*nb/n
	R.n = n
	R.min = math.Min(R.min, lo)
	R.max = math.Max(R.max, hi)
}

// Option configures a Collector.
type Option func(*Collector)

// WithHistogram adds a histogram of n bins from lo to hi to every component.
// Invalid bounds are ignored.
func WithHistogram(lo, hi float64, n int) Option {
	return func(C *Collector) {
		for i := range C.comps {
			h, err := NewHistogram(lo, hi, n)
			if err != nil {
				return
			}
			C.comps[i].Histo = h
		}
	}
}

// WithFrameMeans records the mean of each component in each frame.
func WithFrameMeans() Option {
	return func(C *Collector) { C.keepFrames = true }
}

// Collector is an io.Writer that gathers the statistics of a value stream.
// Values go round-robin through the components, and every perFrame values
// make a frame.
type Collector struct {
	comps      []Component
	acc        []running
	blocks     [][]float64
	nan        []uint64
	perFrame   int
	inFrame    int
	frames     uint64
	keepFrames bool
	frameSum   []float64
	frameCnt   []float64
	frameMeans [][]float64
	pend       [4]byte
	npend      int
}

// NewCollector returns a Collector for the named components, with perFrame
// values in each frame. perFrame must be a multiple of the number of
// components.
func NewCollector(components []string, perFrame int, opts ...Option) (*Collector, error) {
	k := len(components)
	if k == 0 || perFrame <= 0 || perFrame%k != 0 {
		return nil, fmt.Errorf("can't collect frames of %d values over %d components", perFrame, k)
	}
	C := &Collector{
		comps:    make([]Component, k),
		acc:      make([]running, k),
		blocks:   make([][]float64, k),
		nan:      make([]uint64, k),
		perFrame: perFrame,
		frameSum: make([]float64, k),
		frameCnt: make([]float64, k),
	}
	for i, n := range components {
		C.comps[i].Name = n
		C.blocks[i] = make([]float64, 0, blockSize)
	}
	for _, o := range opts {
		o(C)
	}
	return C, nil
}

func (C *Collector) put(v float32) {
	c := C.inFrame % len(C.comps)
	x := float64(v)
	if math.IsNaN(x) {
		C.nan[c]++
	} else {
		C.blocks[c] = append(C.blocks[c], x)
		if len(C.blocks[c]) == blockSize {
			C.flush(c)
		}
		C.frameSum[c] += x
		C.frameCnt[c]++
	}
	C.inFrame++
	if C.inFrame == C.perFrame {
		C.endFrame()
	}
}

func (C *Collector) flush(c int) {
	C.acc[c].merge(C.blocks[c])
	if h := C.comps[c].Histo; h != nil {
		h.add(C.blocks[c]...)
	}
	C.blocks[c] = C.blocks[c][:0]
}

// frameMean returns the means of the current frame. A component with no
// values in the frame gets NaN.
func (C *Collector) frameMean() []float64 {
	m := make([]float64, len(C.comps))
	for i := range m {
		m[i] = math.NaN()
		if C.frameCnt[i] > 0 {
			m[i] = C.frameSum[i] / C.frameCnt[i]
		}
	}
	return m
}

func (C *Collector) endFrame() {
	if C.keepFrames {
		C.frameMeans = append(C.frameMeans, C.frameMean())
	}
	floats.Scale(0, C.frameSum)
	floats.Scale(0, C.frameCnt)
	C.inFrame = 0
	C.frames++
}

// Write implements io.Writer.
func (C *Collector) Write(p []byte) (int, error) {
	n := len(p)
	if C.npend > 0 {
		c := copy(C.pend[C.npend:], p)
		C.npend += c
		p = p[c:]
		if C.npend < 4 {
			return n, nil
		}
		C.put(math.Float32frombits(binary.LittleEndian.Uint32(C.pend[:])))
		C.npend = 0
	}
	for ; len(p) >= 4; p = p[4:] {
		C.put(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	}
	C.npend = copy(C.pend[:], p)
	return n, nil
}

// Summary returns the statistics of everything written so far. A trailing
// piece of a value is an error; an incomplete last frame counts as a frame.
func (C *Collector) Summary() (Summary, error) {
	if C.npend > 0 {
		return Summary{}, trajslice.NewTranscodeError("stats", fmt.Sprintf("%d trailing bytes do not form a float32", C.npend), "Summary")
	}
	for c := range C.comps {
		C.flush(c)
	}
	s := Summary{Frames: C.frames, Components: make([]Component, len(C.comps))}
	if C.inFrame > 0 {
		s.Frames++
	}
	for i, a := range C.acc {
		comp := C.comps[i]
		comp.Count = uint64(a.n)
		comp.NaN = C.nan[i]
		if a.n > 0 {
			comp.Mean, comp.Min, comp.Max = a.mean, a.min, a.max
		}
		if a.n > 1 {
			comp.StdDev = math.Sqrt(a.m2 / (a.n - 1))
		}
		s.Components[i] = comp
	}
	if C.keepFrames {
		s.FrameMeans = append([][]float64(nil), C.frameMeans...)
		if C.inFrame > 0 {
			s.FrameMeans = append(s.FrameMeans, C.frameMean())
		}
	}
	return s, nil
}
