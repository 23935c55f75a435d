/*
 * export.go, part of trajslice
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

// Package export ties the pieces of trajslice together: it compiles a query
// against the layout of an object, reads the selected bytes from the store
// in order, and encodes them into the requested format on the way to the
// output.
//
// The formats are
//
//	raw        the selected bytes as they are stored
//	mdcrd      Amber mdcrd text
//	sci        scientific notation text
//	bits       decimal digits of bit-packed elements
//	dcd        CHARMM/NAMD DCD
//	stf        compressed STF text
//	stats      JSON statistics per component ("stats:frames" adds frame means)
//	plot       image of the frame means per component ("plot:svg", "plot:pdf")
//	conv:NAME  format NAME, produced by the external converter
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/rmera/trajslice"
	"github.com/rmera/trajslice/chunkread"
	"github.com/rmera/trajslice/convert"
	"github.com/rmera/trajslice/internal/diag"
	"github.com/rmera/trajslice/rangeexpr"
	"github.com/rmera/trajslice/selection"
	"github.com/rmera/trajslice/store"
	"github.com/rmera/trajslice/traj/mdcrd"
)

// FormatKey is the query key for the output format. Raw is the default.
const FormatKey = "format"

// Output compressions.
const (
	NoCompression = ""
	Zstd          = "zstd"
	Gzip          = "gzip"
)

// Histogram asks for a histogram of each component in stats exports.
type Histogram struct {
	Lo, Hi float64
	Bins   int
}

// Options tune the exports. The zero value is usable.
type Options struct {
	MaxSpan     uint64
	ChunkSize   int
	Compression string
	MdcrdTitle  string
	MdcrdKernel mdcrd.Kernel
	SciPerLine  int
	Histogram   *Histogram
	Converter   *convert.Converter
	Log         *slog.Logger
}

// Exporter serves exports from one store.
type Exporter struct {
	Store   trajslice.BlobReader
	Layouts Layouts
	Opts    Options
}

// Request is one export: an object and the query parameters, which hold the
// selection and the format.
type Request struct {
	Object string
	Query  map[string]string
}

// Format returns the requested format.
func (R Request) Format() string {
	if f := strings.TrimSpace(R.Query[FormatKey]); f != "" {
		return f
	}
	return Raw
}

// Result describes a finished export.
type Result struct {
	Format  string
	Values  uint64 //selected elements, or bytes for raw byte requests
	Written int64  //bytes written to the output
	Read    chunkread.Stats
}

func (E *Exporter) log() *slog.Logger {
	if E.Opts.Log != nil {
		return E.Opts.Log
	}
	return diag.Discard()
}

func (E *Exporter) readOptions() []chunkread.Option {
	return []chunkread.Option{
		chunkread.WithMaxSpan(E.Opts.MaxSpan),
		chunkread.WithChunkSize(E.Opts.ChunkSize),
		chunkread.WithLogger(E.Opts.Log),
	}
}

// Compile compiles the selection of req against the layout of its object.
// If the store knows the length of the object, that length bounds raw byte
// requests and is checked against the layout.
func (E *Exporter) Compile(ctx context.Context, req Request) (*selection.Compiled, error) {
	layout, err := E.Layouts.Layout(ctx, req.Object)
	if err != nil {
		return nil, err
	}
	if s, ok := E.Store.(trajslice.Sizer); ok {
		n, err := s.Size(ctx, req.Object)
		if err != nil {
			return nil, err
		}
		layout.TotalBytes = n
	}
	sel, err := selection.FromQuery(layout, req.Query)
	if err != nil {
		return nil, trajslice.Decorate(err, "Compile")
	}
	c, err := sel.Compile(layout)
	if err != nil {
		return nil, trajslice.Decorate(err, "Compile")
	}
	return c, nil
}

// describe gives the canonical 1-based form of the selection, such as
// "atom=1-3 frame=2", with whole axes left out.
func describe(c *selection.Compiled) string {
	l := c.Layout()
	if c.Raw {
		return selection.BytesKey + "=" + rangeexpr.Format(c.Selected[0])
	}
	var parts []string
	for i, a := range l.Axes {
		if !rangeexpr.Whole(c.Selected[i], a.Length) {
			parts = append(parts, a.Name+"="+rangeexpr.Format(c.Selected[i]))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

type countWriter struct {
	w io.Writer
	n int64
}

func (C *countWriter) Write(p []byte) (int, error) {
	n, err := C.w.Write(p)
	C.n += int64(n)
	return n, err
}

func outputCodec(compression string) (string, error) {
	switch compression {
	case NoCompression:
		return store.Raw, nil
	case Zstd:
		return store.Zstd, nil
	case Gzip:
		return store.Gzip, nil
	}
	return "", fmt.Errorf("unknown output compression %q", compression)
}

// Export writes the export req to w. Nothing is read from the store until
// the query and the format have been checked. When ctx is done, or w fails,
// the upstream reads are torn down before Export returns.
func (E *Exporter) Export(ctx context.Context, req Request, w io.Writer) (res Result, err error) {
	res.Format = req.Format()
	t := diag.Start(E.log(), "export", "export", "object", req.Object, "format", res.Format)
	defer func() {
		if err != nil {
			t.Fail(err, "written", res.Written)
			return
		}
		t.Finish("exported", "values", res.Values, "batches", res.Read.Batches, "upstream", res.Read.Upstream, "written", res.Written)
	}()
	c, err := E.Compile(ctx, req)
	if err != nil {
		return res, err
	}
	res.Values = c.NValues
	name, arg := splitFormat(res.Format)
	j := &job{object: req.Object, query: describe(c), arg: arg, c: c, opts: &E.Opts}
	var enc encoder
	if name == ConvPrefix {
		if E.Opts.Converter == nil || !E.Opts.Converter.Supports(arg) {
			return res, trajslice.NewConvertError(arg, "", convert.ErrFormat, "Export")
		}
		err = checkFormat(res.Format, needFloats|needTraj, c)
	} else {
		var ok bool
		if enc, ok = encoders[name]; !ok {
			return res, trajslice.NewSelectionError(trajslice.ErrBadSyntax, FormatKey+"="+res.Format, "Export")
		}
		err = checkFormat(res.Format, enc.needs, c)
	}
	if err != nil {
		return res, err
	}
	codec, err := outputCodec(E.Opts.Compression)
	if err != nil {
		return res, err
	}
	cw := &countWriter{w: w}
	defer func() { res.Written = cw.n }()
	out, err := store.NewCodecWriter(codec, cw)
	if err != nil {
		return res, err
	}
	r := chunkread.New(ctx, E.Store, req.Object, c, E.readOptions()...)
	defer r.Close()
	if name == ConvPrefix {
		err = E.Opts.Converter.Run(ctx, c.Count(selection.AtomAxis), c.Count(selection.FrameAxis), arg, r, out)
	} else {
		err = encode(r, out, enc, j)
	}
	res.Read = r.Stats()
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return res, err
}

// encode copies r through the encoder into out. The encoder is closed even
// after a failure, but the first error wins.
func encode(r *chunkread.Reader, out io.Writer, enc encoder, j *job) error {
	sink, err := enc.open(out, j)
	if err != nil {
		return err
	}
	_, err = r.WriteTo(sink)
	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	return err
}

// Pump streams the raw bytes of req into sink, pausing while the sink is
// saturated. Only raw exports can be pumped.
func (E *Exporter) Pump(ctx context.Context, req Request, sink chunkread.Sink) (res Result, err error) {
	res.Format = req.Format()
	t := diag.Start(E.log(), "export", "pump", "object", req.Object, "format", res.Format)
	defer func() {
		if err != nil {
			t.Fail(err, "written", res.Written)
			return
		}
		t.Finish("pumped", "values", res.Values, "batches", res.Read.Batches, "written", res.Written)
	}()
	if res.Format != Raw {
		return res, conflict(res.Format, "only raw exports can be pumped")
	}
	c, err := E.Compile(ctx, req)
	if err != nil {
		return res, err
	}
	res.Values = c.NValues
	r := chunkread.New(ctx, E.Store, req.Object, c, E.readOptions()...)
	defer r.Close()
	res.Written, err = r.Pump(ctx, sink)
	res.Read = r.Stats()
	return res, err
}
