/*
 * codec.go, part of trajslice
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

package store

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Chunk codecs. The codec of a chunk file is also its file name suffix.
const (
	Raw   = ""
	Zstd  = "zst"
	Gzip  = "gz"
	Flate = "fl"
)

// zstdReadCloser gives a *zstd.Decoder the io.ReadCloser signature.
type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// NewCodecReader returns a reader decompressing r with codec.
func NewCodecReader(codec string, r io.Reader) (io.ReadCloser, error) {
	switch codec {
	case Raw:
		return io.NopCloser(r), nil
	case Zstd:
		d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{d}, nil
	case Gzip:
		return gzip.NewReader(r)
	case Flate:
		return flate.NewReader(r), nil
	}
	return nil, fmt.Errorf("unknown chunk codec %q", codec)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// NewCodecWriter returns a writer compressing into w with codec. Closing it
// flushes the compressor but doesn't close w.
func NewCodecWriter(codec string, w io.Writer) (io.WriteCloser, error) {
	switch codec {
	case Raw:
		return nopWriteCloser{w}, nil
	case Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	case Gzip:
		return gzip.NewWriterLevel(w, gzip.BestSpeed)
	case Flate:
		return flate.NewWriter(w, flate.DefaultCompression)
	}
	return nil, fmt.Errorf("unknown chunk codec %q", codec)
}
