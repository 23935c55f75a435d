/*
 * extract.go, part of trajslice
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

package bitcode

import (
	"fmt"
	"io"

	"github.com/rmera/trajslice"
	"github.com/rmera/trajslice/selection"
)

// Extractor decodes the selected elements out of the byte stream of a
// compiled selection, as produced by chunkread. The stream is mapped back to
// blob offsets through the compiled byte ranges, and each bit window is
// decoded once all its bytes have arrived. Only the bytes of the current
// window are buffered.
type Extractor struct {
	out     io.Writer
	width   int
	ranges  *selection.RangeIterator
	windows *selection.WindowIterator

	cur      trajslice.ByteRange
	inRange  bool
	pos      uint64 //blob offset of the next stream byte
	buf      []byte
	bufStart uint64 //blob offset of buf[0]
	win      trajslice.BitWindow
	haveWin  bool
	digits   []byte
	err      error
}

// NewExtractor returns an Extractor that writes the digits of c's elements
// to out.
func NewExtractor(out io.Writer, c *selection.Compiled) *Extractor {
	return &Extractor{
		out:     out,
		width:   int(c.Layout().ElementBits),
		ranges:  c.Ranges(),
		windows: c.Windows(),
	}
}

// Write implements io.Writer.
func (E *Extractor) Write(p []byte) (int, error) {
	if E.err != nil {
		return 0, E.err
	}
	n := len(p)
	for len(p) > 0 {
		if !E.inRange {
			if !E.ranges.Next() {
				E.err = trajslice.NewTranscodeError("bits", "more bytes than the selection holds", "Write")
				return n - len(p), E.err
			}
			E.cur = E.ranges.Range()
			E.pos, E.bufStart = E.cur.Start, E.cur.Start
			E.buf = E.buf[:0]
			E.inRange = true
		}
		take := min(uint64(len(p)), E.cur.End-E.pos+1)
		E.buf = append(E.buf, p[:take]...)
		E.pos += take
		p = p[take:]
		if err := E.drain(); err != nil {
			E.err = err
			return n - len(p), err
		}
		if E.pos > E.cur.End {
			E.inRange = false
		}
	}
	if len(E.digits) > 0 {
		_, err := E.out.Write(E.digits)
		E.digits = E.digits[:0]
		if err != nil {
			E.err = err
			return n, err
		}
	}
	return n, nil
}

// drain decodes every window that is complete in buf, then drops the bytes
// no later window needs.
func (E *Extractor) drain() error {
	var err error
	for {
		if !E.haveWin {
			if !E.windows.Next() {
				break
			}
			E.win = E.windows.Window()
			E.haveWin = true
		}
		w := E.win
		if w.ByteStart > E.cur.End || w.ByteEnd >= E.pos {
			break
		}
		if w.ByteStart < E.bufStart {
			return trajslice.NewTranscodeError("bits", fmt.Sprintf("window at byte %d is out of the stream", w.ByteStart), "drain")
		}
		E.digits, err = DecodeWindow(E.digits, E.buf[w.ByteStart-E.bufStart:w.ByteEnd-E.bufStart+1], w, E.width)
		if err != nil {
			return err
		}
		E.haveWin = false
	}
	keep := E.pos
	if E.haveWin && E.win.ByteStart <= E.cur.End {
		keep = max(E.win.ByteStart, E.bufStart)
	}
	if drop := keep - E.bufStart; drop > 0 {
		E.buf = E.buf[:copy(E.buf, E.buf[drop:])]
		E.bufStart = keep
	}
	return nil
}

// Close reports an error if the stream ended before all the selected
// elements arrived. It does not close the underlying writer.
func (E *Extractor) Close() error {
	if E.err != nil {
		return E.err
	}
	if E.haveWin || E.windows.Next() {
		E.err = trajslice.NewTranscodeError("bits", "stream ended before the last selected element", "Close")
		return E.err
	}
	return nil
}
