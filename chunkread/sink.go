/*
 * sink.go, part of trajslice
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

package chunkread

import (
	"context"
	"io"
)

// Sink is an output that tells its producer when to pause. Write must not
// keep p after returning. When Write reports ready == false the sink has
// taken p but wants no more bytes until a value arrives on Drained.
type Sink interface {
	Write(p []byte) (ready bool, err error)
	Drained() <-chan struct{}
}

// Pump copies the stream into sink, pausing while the sink is saturated.
// While paused no upstream read happens. Cancelling ctx, or an error from
// the sink, tears down the upstream reads. It returns the number of bytes
// written to the sink.
func (R *Reader) Pump(ctx context.Context, sink Sink) (int64, error) {
	var total int64
	for {
		out := R.out
		R.out = nil
		if len(out) == 0 {
			var err error
			out, err = R.next()
			if err != nil {
				if err == io.EOF {
					return total, nil
				}
				return total, err
			}
		}
		ready, err := sink.Write(out)
		if err != nil {
			R.Close()
			return total, err
		}
		total += int64(len(out))
		if ready {
			continue
		}
		select {
		case <-sink.Drained():
		case <-ctx.Done():
			R.Close()
			return total, ctx.Err()
		}
	}
}
