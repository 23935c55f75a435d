/*
 * plotout.go, part of trajslice
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

// Package plotout draws preview charts of selection statistics.
package plotout

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/rmera/trajslice/stats"
)

// Default size of the image.
const (
	DefaultWidth  = 6 * vg.Inch
	DefaultHeight = 4 * vg.Inch
)

// Formats are the image formats FrameMeans can write.
var Formats = []string{"png", "svg", "pdf"}

// FrameMeans draws one line per component with the mean of the component in
// each frame, and writes the image to w in the given format ("png" if empty).
// Frames with no valid value leave a gap.
func FrameMeans(s stats.Summary, w io.Writer, title, format string) error {
	if len(s.FrameMeans) == 0 {
		return fmt.Errorf("no frame means to plot")
	}
	if format == "" {
		format = "png"
	}
	p := plot.New()
	p.Title.Text = title
	p.Title.Padding = 3 * vg.Millimeter
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Mean"
	p.Add(plotter.NewGrid())
	for c, comp := range s.Components {
		for _, pts := range segments(s.FrameMeans, c) {
			l, err := plotter.NewLine(pts)
			if err != nil {
				return fmt.Errorf("component %s: %w", comp.Name, err)
			}
			l.LineStyle.Color = plotutil.Color(c)
			l.LineStyle.Width = vg.Points(1)
			p.Add(l)
			if pts[0].X == firstValid(s.FrameMeans, c) {
				p.Legend.Add(comp.Name, l)
			}
		}
	}
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// segments splits the means of component c in runs without NaN, so the
// lines don't bridge gaps. Frames are numbered from 1.
func segments(means [][]float64, c int) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for f, m := range means {
		if c >= len(m) || math.IsNaN(m[c]) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(f + 1), Y: m[c]})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func firstValid(means [][]float64, c int) float64 {
	for f, m := range means {
		if c < len(m) && !math.IsNaN(m[c]) {
			return float64(f + 1)
		}
	}
	return -1
}
