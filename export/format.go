/*
 * format.go, part of trajslice
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

package export

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/rmera/trajslice"
	"github.com/rmera/trajslice/plotout"
	"github.com/rmera/trajslice/selection"
	"github.com/rmera/trajslice/stats"
	"github.com/rmera/trajslice/traj/bitcode"
	"github.com/rmera/trajslice/traj/dcd"
	"github.com/rmera/trajslice/traj/mdcrd"
	"github.com/rmera/trajslice/traj/sci"
	"github.com/rmera/trajslice/traj/stf"
)

// Output formats. Converter formats are requested as ConvPrefix+name and
// plots as Plot or Plot+":"+image format.
const (
	Raw        = "raw"
	Mdcrd      = "mdcrd"
	Sci        = "sci"
	Bits       = "bits"
	DCD        = "dcd"
	STF        = "stf"
	Stats      = "stats"
	Plot       = "plot"
	ConvPrefix = "conv:"
)

// job is one export being set up.
type job struct {
	object string
	query  string
	arg    string //after the colon in the format name
	c      *selection.Compiled
	opts   *Options
}

// what an encoder can take
const (
	acceptRaw  = 1 << iota //raw byte requests
	needFloats             //32-bit elements
	needTraj               //a float32 trajectory with whole coordinates
)

type encoder struct {
	needs int
	open  func(out io.Writer, j *job) (io.WriteCloser, error)
}

var encoders = map[string]encoder{
	Raw:   {acceptRaw, openRaw},
	Mdcrd: {needFloats | needTraj, openMdcrd},
	Sci:   {needFloats, openSci},
	Bits:  {0, openBits},
	DCD:   {needFloats | needTraj, openDCD},
	STF:   {needFloats | needTraj, openSTF},
	Stats: {needFloats, openStats},
	Plot:  {needFloats, openPlot},
}

// Formats returns the names of the built-in formats, sorted.
func Formats() []string {
	out := make([]string, 0, len(encoders))
	for k := range encoders {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// splitFormat separates "conv:pdb" into "conv:" and "pdb", and "plot:svg"
// into "plot" and "svg".
func splitFormat(format string) (name, arg string) {
	if strings.HasPrefix(format, ConvPrefix) {
		return ConvPrefix, strings.TrimPrefix(format, ConvPrefix)
	}
	name, arg, _ = strings.Cut(format, ":")
	return name, arg
}

func conflict(format, why string) error {
	return trajslice.NewSelectionError(trajslice.ErrConflict, fmt.Sprintf("format %s: %s", format, why), "checkFormat")
}

// checkFormat tells whether the selection can be written in format.
func checkFormat(format string, needs int, c *selection.Compiled) error {
	if c.Raw {
		if needs&acceptRaw == 0 {
			return conflict(format, "raw byte ranges can only be exported raw")
		}
		return nil
	}
	l := c.Layout()
	if needs&needFloats != 0 && l.ElementBits != 32 {
		return conflict(format, fmt.Sprintf("needs float32 elements, not %d-bit", l.ElementBits))
	}
	if needs&needTraj != 0 {
		if !isTrajectory(l) {
			return conflict(format, "needs a trajectory layout")
		}
		if c.Count(selection.CoordAxis) != 3 {
			return conflict(format, "needs all three coordinates of each atom")
		}
	}
	return nil
}

func isTrajectory(l selection.Layout) bool {
	return l.Axis(selection.CoordAxis) == 0 && l.Axis(selection.AtomAxis) == 1 && l.Axis(selection.FrameAxis) == 2
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func openRaw(out io.Writer, j *job) (io.WriteCloser, error) {
	return nopCloser{out}, nil
}

func openMdcrd(out io.Writer, j *job) (io.WriteCloser, error) {
	var opts []mdcrd.Option
	if j.opts.MdcrdTitle != "" {
		opts = append(opts, mdcrd.WithTitle(j.opts.MdcrdTitle))
	}
	if j.opts.MdcrdKernel != nil {
		opts = append(opts, mdcrd.WithKernel(j.opts.MdcrdKernel))
	}
	return mdcrd.NewWriter(out, int(j.c.Count(selection.AtomAxis)), opts...), nil
}

func openSci(out io.Writer, j *job) (io.WriteCloser, error) {
	return sci.NewWriter(out, j.opts.SciPerLine), nil
}

func openBits(out io.Writer, j *job) (io.WriteCloser, error) {
	if w := j.c.Layout().ElementBits; w > bitcode.MaxWidth {
		return nil, conflict(Bits, fmt.Sprintf("%d-bit elements are too wide", w))
	}
	return bitcode.NewExtractor(out, j.c), nil
}

func openDCD(out io.Writer, j *job) (io.WriteCloser, error) {
	return dcd.NewWriter(out, int(j.c.Count(selection.AtomAxis)), int(j.c.Count(selection.FrameAxis)), dcd.WithTitle(j.title()))
}

func openSTF(out io.Writer, j *job) (io.WriteCloser, error) {
	h := map[string]string{"object": j.object}
	if j.query != "" {
		h["selection"] = j.query
	}
	return stf.NewWriter(out, int(j.c.Count(selection.AtomAxis)), stf.Zstd, h)
}

func (j *job) title() string {
	if j.query == "" {
		return j.object
	}
	return j.object + " " + j.query
}

// components names the components a stats summary is split into, and the
// number of values in each frame: the coordinates of a trajectory, or a
// single component for other layouts, whose slowest axis is taken as the
// frame.
func components(c *selection.Compiled) ([]string, int) {
	l := c.Layout()
	if isTrajectory(l) {
		var names []string
		for _, r := range c.Selected[0] {
			for i := r.Start; i <= r.End; i++ {
				names = append(names, string(rune('x'+i)))
			}
		}
		return names, int(c.Counts[0] * c.Counts[1])
	}
	last := len(l.Axes) - 1
	return []string{"value"}, int(c.NValues / c.Counts[last])
}

func (j *job) collector(opts ...stats.Option) (*stats.Collector, error) {
	names, perFrame := components(j.c)
	if h := j.opts.Histogram; h != nil {
		opts = append(opts, stats.WithHistogram(h.Lo, h.Hi, h.Bins))
	}
	return stats.NewCollector(names, perFrame, opts...)
}

type statsWriter struct {
	*stats.Collector
	out   io.Writer
	j     *job
	write func(s stats.Summary, w io.Writer) error
}

func (S *statsWriter) Close() error {
	s, err := S.Summary()
	if err != nil {
		return err
	}
	s.Object, s.Query = S.j.object, S.j.query
	return S.write(s, S.out)
}

func openStats(out io.Writer, j *job) (io.WriteCloser, error) {
	var opts []stats.Option
	if j.arg == "frames" {
		opts = append(opts, stats.WithFrameMeans())
	}
	col, err := j.collector(opts...)
	if err != nil {
		return nil, err
	}
	return &statsWriter{Collector: col, out: out, j: j, write: stats.Summary.WriteJSON}, nil
}

func openPlot(out io.Writer, j *job) (io.WriteCloser, error) {
	img := j.arg
	if img == "" {
		img = "png"
	}
	if !slices.Contains(plotout.Formats, img) {
		return nil, trajslice.NewSelectionError(trajslice.ErrBadSyntax, "format="+Plot+":"+img, "openPlot")
	}
	col, err := j.collector(stats.WithFrameMeans())
	if err != nil {
		return nil, err
	}
	write := func(s stats.Summary, w io.Writer) error {
		return plotout.FrameMeans(s, w, j.title(), img)
	}
	return &statsWriter{Collector: col, out: out, j: j, write: write}, nil
}
