/*
 * reader.go, part of trajslice
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

// Package chunkread streams the bytes of a compiled selection out of a
// chunked blob store.
//
// The byte ranges of the selection are grouped into bounded download
// batches; each batch is fetched with one ranged read, and only the bytes
// inside the selected ranges are forwarded. Batches are processed strictly
// one after the other, so the output is always in ascending blob order, no
// matter how the store schedules its reads.
//
// The Reader is pull-based: an upstream chunk is only read when the consumer
// asks for more, so at most one chunk is buffered ahead of the consumer.
// Pump adapts that to sinks that signal saturation explicitly.
package chunkread

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/rmera/trajslice"
	"github.com/rmera/trajslice/selection"
)

// Defaults for the reader options.
const (
	DefaultMaxSpan   = 4 << 20
	DefaultChunkSize = 64 << 10
)

type options struct {
	maxSpan   uint64
	chunkSize int
	log       *slog.Logger
}

// Option configures a Reader.
type Option func(*options)

// WithMaxSpan sets the largest number of bytes fetched by one batch.
func WithMaxSpan(n uint64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSpan = n
		}
	}
}

// WithChunkSize sets the size of the buffer used for each upstream read.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithLogger sets the logger for batch-level debug events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Stats counts what a Reader has done so far.
type Stats struct {
	Batches   int    //batches opened
	Upstream  uint64 //bytes received from the store
	Forwarded uint64 //bytes emitted
}

// Reader is the ordered byte stream of a compiled selection. It implements
// io.Reader, io.WriterTo and io.Closer. A Reader is not safe for concurrent
// use, except for Close, which can be called at any time from any goroutine.
type Reader struct {
	ctx   context.Context
	store trajslice.BlobReader
	id    string
	opts  options
	whole bool

	batches *Batcher
	cur     Batch
	sub     int    //current range within cur
	pos     uint64 //blob offset of the next upstream byte
	buf     []byte
	out     []byte //filtered bytes not yet handed to the consumer
	err     error  //terminal
	stats   Stats

	mu     sync.Mutex
	body   io.ReadCloser
	closed bool
	stop   func() bool
}

// New returns a Reader over the selection c of the object id. Cancelling ctx
// tears down the stream as Close does.
func New(ctx context.Context, store trajslice.BlobReader, id string, c *selection.Compiled, opts ...Option) *Reader {
	if c.Whole {
		return newReader(ctx, store, id, nil, opts)
	}
	return newReader(ctx, store, id, c.Ranges(), opts)
}

// NewFromRanges returns a Reader over an arbitrary ascending range sequence.
func NewFromRanges(ctx context.Context, store trajslice.BlobReader, id string, ranges Ranges, opts ...Option) *Reader {
	return newReader(ctx, store, id, ranges, opts)
}

// newReader reads the whole object if ranges is nil.
func newReader(ctx context.Context, store trajslice.BlobReader, id string, ranges Ranges, opts []Option) *Reader {
	o := options{maxSpan: DefaultMaxSpan, chunkSize: DefaultChunkSize, log: slog.New(discardHandler{})}
	for _, f := range opts {
		f(&o)
	}
	R := &Reader{ctx: ctx, store: store, id: id, opts: o, whole: ranges == nil}
	if ranges != nil {
		R.batches = NewBatcher(ranges, o.maxSpan)
	}
	R.mu.Lock()
	R.stop = context.AfterFunc(ctx, func() { R.Close() })
	R.mu.Unlock()
	return R
}

// Stats returns the counters of the reader.
func (R *Reader) Stats() Stats {
	return R.stats
}

// Close closes the upstream read that is open, if any, and ends the stream.
// Bytes already handed out stay handed out.
func (R *Reader) Close() error {
	R.mu.Lock()
	defer R.mu.Unlock()
	if R.closed {
		return nil
	}
	R.closed = true
	if R.stop != nil {
		R.stop()
	}
	if R.body != nil {
		err := R.body.Close()
		R.body = nil
		return err
	}
	return nil
}

var errClosed = errors.New("chunkread: read on closed reader")

// open starts the next batch. It returns false when there are none left.
func (R *Reader) open() (bool, error) {
	var body io.ReadCloser
	var err error
	if R.whole {
		if R.stats.Batches > 0 {
			return false, nil
		}
		R.cur = Batch{Index: -1}
		R.pos = 0
		body, err = R.store.OpenFull(R.ctx, R.id)
		if err != nil {
			return false, trajslice.NewReadError(R.id, -1, 0, err, "open")
		}
	} else {
		b, ok := R.batches.Next()
		if !ok {
			return false, nil
		}
		R.cur, R.sub, R.pos = b, 0, b.Start
		body, err = R.store.OpenRange(R.ctx, R.id, b.Start, b.End)
		if err != nil {
			return false, trajslice.NewReadError(R.id, b.Index, b.Start, err, "open")
		}
		R.opts.log.Debug("batch", "comp", "chunkread", "object", R.id, "batch", b.Index,
			"start", b.Start, "end", b.End, "ranges", len(b.Ranges))
	}
	R.mu.Lock()
	if R.closed {
		R.mu.Unlock()
		body.Close()
		return false, R.closedErr()
	}
	R.body = body
	R.mu.Unlock()
	R.stats.Batches++
	if R.buf == nil {
		R.buf = make([]byte, R.opts.chunkSize)
	}
	return true, nil
}

func (R *Reader) closedErr() error {
	if err := R.ctx.Err(); err != nil {
		return err
	}
	return errClosed
}

// finish closes the body of the current batch.
func (R *Reader) finish() {
	R.mu.Lock()
	if R.body != nil {
		R.body.Close()
		R.body = nil
	}
	R.mu.Unlock()
}

// filter compacts the in-range bytes of chunk, which starts at blob offset
// R.pos, to the front of chunk and returns them. It reports whether the
// current batch has no ranges left.
func (R *Reader) filter(chunk []byte) ([]byte, bool) {
	if R.whole {
		R.pos += uint64(len(chunk))
		return chunk, false
	}
	out := chunk[:0]
	end := R.pos + uint64(len(chunk)) //exclusive
	ranges := R.cur.Ranges
	for R.sub < len(ranges) && ranges[R.sub].Start < end {
		r := ranges[R.sub]
		from := max(r.Start, R.pos)
		to := min(r.End, end-1)
		out = append(out, chunk[from-R.pos:to-R.pos+1]...)
		if to < r.End {
			break
		}
		R.sub++
	}
	R.pos = end
	return out, R.sub == len(ranges)
}

// next returns the next non-empty piece of output. The returned slice is only
// valid until the following call.
func (R *Reader) next() ([]byte, error) {
	for {
		if R.err != nil {
			return nil, R.err
		}
		R.mu.Lock()
		body, closed := R.body, R.closed
		R.mu.Unlock()
		if closed {
			R.err = R.closedErr()
			continue
		}
		if body == nil {
			ok, err := R.open()
			if err != nil {
				R.err = err
				continue
			}
			if !ok {
				R.err = io.EOF
				continue
			}
			continue
		}
		want := len(R.buf)
		if !R.whole {
			want = int(min(uint64(want), R.cur.End-R.pos+1))
		}
		n, err := body.Read(R.buf[:want])
		if n > 0 {
			R.stats.Upstream += uint64(n)
			out, done := R.filter(R.buf[:n])
			if done {
				R.finish()
			}
			if len(out) > 0 {
				R.stats.Forwarded += uint64(len(out))
				return out, nil
			}
			if done {
				continue
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			if !R.whole && R.pos <= R.cur.End {
				R.err = trajslice.NewReadError(R.id, R.cur.Index, R.cur.Start, io.ErrUnexpectedEOF, "next")
				R.finish()
				continue
			}
			R.finish()
		default:
			if R.isClosed() {
				R.err = R.closedErr()
				continue
			}
			R.err = trajslice.NewReadError(R.id, R.cur.Index, R.cur.Start, err, "next")
			R.finish()
		}
	}
}

func (R *Reader) isClosed() bool {
	R.mu.Lock()
	defer R.mu.Unlock()
	return R.closed
}

// Read implements io.Reader.
func (R *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(R.out) == 0 {
		out, err := R.next()
		if err != nil {
			return 0, err
		}
		R.out = out
	}
	n := copy(p, R.out)
	R.out = R.out[n:]
	return n, nil
}

// WriteTo implements io.WriterTo. It stops at the first error of either side.
func (R *Reader) WriteTo(w io.Writer) (int64, error) {
	var total int64
	if len(R.out) > 0 {
		n, err := w.Write(R.out)
		total += int64(n)
		R.out = nil
		if err != nil {
			return total, err
		}
	}
	for {
		out, err := R.next()
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n, err := w.Write(out)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
