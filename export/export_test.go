/*
 * export_test.go, part of trajslice
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
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/rmera/trajslice"
	"github.com/rmera/trajslice/convert"
	"github.com/rmera/trajslice/selection"
	"github.com/rmera/trajslice/stats"
	"github.com/rmera/trajslice/store"
	"github.com/rmera/trajslice/traj/dcd"
	"github.com/rmera/trajslice/traj/mdcrd"
	"github.com/rmera/trajslice/traj/sci"
	"github.com/rmera/trajslice/traj/stf"
)

const frames, atoms = 4, 3

// value is the stored value of coordinate c of atom a in frame f, all
// 0-based. Every value has at most two decimals.
func value(f, a, c int) float32 {
	return float32(f*100+a*10+c) * 0.25
}

func blob() []byte {
	var b []byte
	for f := 0; f < frames; f++ {
		for a := 0; a < atoms; a++ {
			for c := 0; c < 3; c++ {
				b = binary.LittleEndian.AppendUint32(b, math.Float32bits(value(f, a, c)))
			}
		}
	}
	return b
}

// selected returns the raw bytes of the given 0-based atoms and frames.
func selected(as, fs []int) []byte {
	var b []byte
	for _, f := range fs {
		for _, a := range as {
			for c := 0; c < 3; c++ {
				b = binary.LittleEndian.AppendUint32(b, math.Float32bits(value(f, a, c)))
			}
		}
	}
	return b
}

func newExporter() *Exporter {
	return &Exporter{
		Store:   store.NewMem(map[string][]byte{"traj": blob()}),
		Layouts: Fixed(selection.TrajectoryLayout(frames, atoms)),
		Opts:    Options{MaxSpan: 40, ChunkSize: 7, SciPerLine: 6},
	}
}

func export(t *testing.T, E *Exporter, query map[string]string) ([]byte, Result) {
	t.Helper()
	var out bytes.Buffer
	res, err := E.Export(context.Background(), Request{Object: "traj", Query: query}, &out)
	require.NoError(t, err)
	assert.Equal(t, int64(out.Len()), res.Written)
	return out.Bytes(), res
}

func TestExportRaw(t *testing.T) {
	E := newExporter()
	got, res := export(t, E, map[string]string{"atoms": "2-3", "frames": "1,3"})
	assert.Equal(t, selected([]int{1, 2}, []int{0, 2}), got)
	assert.Equal(t, Raw, res.Format)
	assert.Equal(t, uint64(12), res.Values)
	assert.Equal(t, uint64(len(got)), res.Read.Forwarded)
	assert.Greater(t, res.Read.Batches, 1)

	got, _ = export(t, E, nil)
	assert.Equal(t, blob(), got)

	got, _ = export(t, E, map[string]string{"bytes": "5-8,13"})
	assert.Equal(t, append(blob()[4:8:8], blob()[12]), got)
}

func TestExportText(t *testing.T) {
	E := newExporter()
	E.Opts.MdcrdTitle = "test frames"
	raw := selected([]int{0, 2}, []int{1, 2, 3})

	var want bytes.Buffer
	w := mdcrd.NewWriter(&want, 2, mdcrd.WithTitle("test frames"))
	_, err := w.Write(raw)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	got, _ := export(t, E, map[string]string{"atoms": "1,3", "frames": "2-4", "format": "mdcrd"})
	assert.Equal(t, want.String(), string(got))

	want.Reset()
	s := sci.NewWriter(&want, 6)
	_, err = s.Write(raw)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	got, _ = export(t, E, map[string]string{"atoms": "1,3", "frames": "2-4", "format": "sci"})
	assert.Equal(t, want.String(), string(got))
}

func TestExportCompressed(t *testing.T) {
	E := newExporter()
	plain, _ := export(t, E, map[string]string{"atom": "2", "format": "sci"})

	E.Opts.Compression = Zstd
	z, _ := export(t, E, map[string]string{"atom": "2", "format": "sci"})
	d, err := zstd.NewReader(bytes.NewReader(z))
	require.NoError(t, err)
	defer d.Close()
	got, err := io.ReadAll(d)
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	E.Opts.Compression = Gzip
	g, _ := export(t, E, map[string]string{"atom": "2", "format": "sci"})
	gr, err := gzip.NewReader(bytes.NewReader(g))
	require.NoError(t, err)
	got, err = io.ReadAll(gr)
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	E.Opts.Compression = "lz4"
	_, err = E.Export(context.Background(), Request{Object: "traj"}, io.Discard)
	assert.Error(t, err)
}

func TestExportDCD(t *testing.T) {
	got, _ := export(t, newExporter(), map[string]string{"atoms": "2-3", "frames": "2-4", "format": "dcd"})
	r, err := dcd.NewReader(bytes.NewReader(got))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 3, r.Frames())
	assert.Equal(t, "traj atom=2-3 frame=2-4", r.Title())
	m := mat.NewDense(2, 3, nil)
	for f := 1; f <= 3; f++ {
		require.NoError(t, r.Next(m))
		for a := 0; a < 2; a++ {
			for c := 0; c < 3; c++ {
				assert.Equal(t, float64(value(f, a+1, c)), m.At(a, c))
			}
		}
	}
	assert.Equal(t, io.EOF, r.Next(nil))
}

func TestExportSTF(t *testing.T) {
	got, _ := export(t, newExporter(), map[string]string{"frames": "1-2", "format": "stf"})
	r, err := stf.NewReader(bytes.NewReader(got), stf.Zstd)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "traj", r.Header()["object"])
	assert.Equal(t, "frame=1-2", r.Header()["selection"])
	m := mat.NewDense(atoms, 3, nil)
	for f := 0; f < 2; f++ {
		require.NoError(t, r.Next(m))
		for a := 0; a < atoms; a++ {
			for c := 0; c < 3; c++ {
				assert.InDelta(t, float64(value(f, a, c)), m.At(a, c), 1e-9)
			}
		}
	}
	assert.Equal(t, io.EOF, r.Next(nil))
}

func TestExportStats(t *testing.T) {
	E := newExporter()
	E.Opts.Histogram = &Histogram{Lo: 0, Hi: 100, Bins: 4}
	got, _ := export(t, E, map[string]string{"coords": "1,3", "frames": "1-2", "format": "stats:frames"})
	var s stats.Summary
	require.NoError(t, json.Unmarshal(got, &s))
	assert.Equal(t, "traj", s.Object)
	assert.Equal(t, "coordinate=1,3 frame=1-2", s.Query)
	assert.Equal(t, uint64(2), s.Frames)
	require.Len(t, s.Components, 2)
	assert.Equal(t, "x", s.Components[0].Name)
	assert.Equal(t, "z", s.Components[1].Name)
	assert.Equal(t, uint64(6), s.Components[0].Count)
	//x of frame 0 is 0, 2.5 and 5; of frame 1, 25, 27.5 and 30
	assert.InDelta(t, 15.0, s.Components[0].Mean, 1e-9)
	assert.InDelta(t, 0.0, s.Components[0].Min, 1e-9)
	assert.InDelta(t, 30.5, s.Components[1].Max, 1e-9)
	require.Len(t, s.FrameMeans, 2)
	assert.InDelta(t, 2.5, s.FrameMeans[0][0], 1e-9)
	assert.InDelta(t, 28, s.FrameMeans[1][1], 1e-9)
	require.NotNil(t, s.Components[0].Histo)
}

func TestExportPlot(t *testing.T) {
	got, _ := export(t, newExporter(), map[string]string{"format": "plot"})
	assert.True(t, bytes.HasPrefix(got, []byte("\x89PNG")))
	got, _ = export(t, newExporter(), map[string]string{"format": "plot:svg"})
	assert.Contains(t, string(got), "<svg")
	_, err := newExporter().Export(context.Background(), Request{Object: "traj", Query: map[string]string{"format": "plot:bmp"}}, io.Discard)
	assert.ErrorIs(t, err, trajslice.ErrBadSyntax)
}

func TestExportBits(t *testing.T) {
	E := &Exporter{
		Store: store.NewMem(map[string][]byte{"traj": {0x12, 0x34, 0x56, 0x78}}),
		Layouts: Fixed(selection.Layout{
			Axes:        []selection.Axis{{Name: "x", Length: 8}},
			ElementBits: 4,
		}),
	}
	got, _ := export(t, E, map[string]string{"x": "2-4,8", "format": "bits"})
	assert.Equal(t, "2348", string(got))
	got, _ = export(t, E, map[string]string{"format": "bits"})
	assert.Equal(t, "12345678", string(got))

	//nibbles can't be written as floats
	_, err := E.Export(context.Background(), Request{Object: "traj", Query: map[string]string{"format": "sci"}}, io.Discard)
	assert.ErrorIs(t, err, trajslice.ErrConflict)
}

func TestExportConverter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conv.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho \"$1 $2 $3\"\nexec cat\n"), 0o755))
	E := newExporter()
	E.Opts.Converter = &convert.Converter{Path: path, Formats: []string{"pdb"}}
	got, _ := export(t, E, map[string]string{"atoms": "1-2", "frames": "3", "format": "conv:pdb"})
	assert.Equal(t, append([]byte("2 1 pdb\n"), selected([]int{0, 1}, []int{2})...), got)

	_, err := E.Export(context.Background(), Request{Object: "traj", Query: map[string]string{"format": "conv:xyz"}}, io.Discard)
	assert.ErrorIs(t, err, convert.ErrFormat)
	var ce *trajslice.ConvertError
	assert.True(t, errors.As(err, &ce))
}

func TestExportErrors(t *testing.T) {
	E := newExporter()
	for _, c := range []struct {
		query map[string]string
		want  error
	}{
		{map[string]string{"format": "xml"}, trajslice.ErrBadSyntax},
		{map[string]string{"format": "mdcrd", "coords": "1-2"}, trajslice.ErrConflict},
		{map[string]string{"format": "dcd", "bytes": "1-12"}, trajslice.ErrConflict},
		{map[string]string{"atom": "0"}, trajslice.ErrZeroIndex},
		{map[string]string{"atom": "7-9"}, trajslice.ErrUnsatisfiable},
		{map[string]string{"atom": "1", "atoms": "2"}, trajslice.ErrConflict},
	} {
		var out bytes.Buffer
		res, err := E.Export(context.Background(), Request{Object: "traj", Query: c.query}, &out)
		assert.ErrorIs(t, err, c.want, "%v", c.query)
		assert.Zero(t, out.Len())
		assert.Zero(t, res.Read.Batches)
	}
	_, err := E.Export(context.Background(), Request{Object: "nope"}, io.Discard)
	assert.ErrorIs(t, err, store.ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = E.Export(ctx, Request{Object: "traj", Query: map[string]string{"format": "sci"}}, io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}

type failWriter struct{ after int }

func (F *failWriter) Write(p []byte) (int, error) {
	if F.after < len(p) {
		return 0, errors.New("client went away")
	}
	F.after -= len(p)
	return len(p), nil
}

func TestExportOutputFailure(t *testing.T) {
	_, err := newExporter().Export(context.Background(), Request{Object: "traj", Query: map[string]string{"format": "sci"}}, &failWriter{after: 100})
	assert.ErrorContains(t, err, "client went away")
}

type bufSink struct {
	bytes.Buffer
	drained chan struct{}
}

func (B *bufSink) Write(p []byte) (bool, error) {
	B.Buffer.Write(p)
	return true, nil
}

func (B *bufSink) Drained() <-chan struct{} { return B.drained }

func TestPump(t *testing.T) {
	E := newExporter()
	sink := &bufSink{drained: make(chan struct{})}
	res, err := E.Pump(context.Background(), Request{Object: "traj", Query: map[string]string{"frames": "2"}}, sink)
	require.NoError(t, err)
	assert.Equal(t, selected([]int{0, 1, 2}, []int{1}), sink.Bytes())
	assert.Equal(t, int64(sink.Len()), res.Written)

	_, err = E.Pump(context.Background(), Request{Object: "traj", Query: map[string]string{"format": "sci"}}, sink)
	assert.ErrorIs(t, err, trajslice.ErrConflict)
}

func TestLayoutFromMeta(t *testing.T) {
	l, err := LayoutFromMeta(map[string]string{MetaFrames: "10", MetaAtoms: "5"})
	require.NoError(t, err)
	assert.Equal(t, selection.TrajectoryLayout(10, 5), l)

	l, err = LayoutFromMeta(map[string]string{MetaAxes: "bit:8, word:3", MetaElementBits: "1"})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), l.ElementBits)
	assert.Equal(t, []selection.Axis{{Name: "bit", Length: 8}, {Name: "word", Length: 3}}, l.Axes)

	for _, m := range []map[string]string{
		{MetaFrames: "10"},
		{MetaFrames: "10", MetaAtoms: "x"},
		{MetaFrames: "0", MetaAtoms: "3"},
		{MetaAxes: "a"},
		{MetaAxes: "a:2,a:3"},
		{MetaAxes: "a:2", MetaElementBits: "-1"},
	} {
		_, err := LayoutFromMeta(m)
		assert.Error(t, err, "%v", m)
	}
}

func TestManifests(t *testing.T) {
	d, err := store.NewDir(t.TempDir())
	require.NoError(t, err)
	_, err = d.Put("traj", bytes.NewReader(blob()), 50, store.Zstd, map[string]string{MetaFrames: "4", MetaAtoms: "3"})
	require.NoError(t, err)
	E := &Exporter{Store: d, Layouts: Manifests{Dir: d}}
	got, _ := export(t, E, map[string]string{"atom": "3", "frames": "2-3"})
	assert.Equal(t, selected([]int{2}, []int{1, 2}), got)

	_, err = E.Export(context.Background(), Request{Object: "missing"}, io.Discard)
	assert.Error(t, err)
}
