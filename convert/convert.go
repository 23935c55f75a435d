/*
 * convert.go, part of trajslice
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

// Package convert runs the external converter program that turns the raw
// float32 stream of a selection into trajectory formats the core doesn't
// write itself.
//
// The converter is called as
//
//	<path> <atoms> <frames> <format>
//
// reads the raw stream on its standard input and writes the converted file
// to its standard output.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/rmera/trajslice"
)

// ErrFormat is returned for formats the converter is not allowed to produce.
var ErrFormat = errors.New("format not enabled for the converter")

// stderrTail is how much of the converter's standard error is kept.
const stderrTail = 4 << 10

// Converter is the boundary to the external program.
type Converter struct {
	Path    string
	Formats []string //formats that can be requested
	Log     *slog.Logger
	//Grace is how long the process gets to exit once the context is done,
	//before the pipes are closed on it. Zero means one second.
	Grace time.Duration
}

// Supports reports whether format can be requested.
func (C *Converter) Supports(format string) bool {
	return C.Path != "" && slices.Contains(C.Formats, format)
}

// Run converts in, the raw stream of frames frames of atoms atoms, into
// format, writing the result to out. Standard output is relayed as it comes.
// When ctx is done the process is killed. A non-zero exit is reported as a
// *trajslice.ConvertError carrying the end of the standard error.
func (C *Converter) Run(ctx context.Context, atoms, frames uint64, format string, in io.Reader, out io.Writer) error {
	if !C.Supports(format) {
		return trajslice.NewConvertError(format, "", ErrFormat, "Run")
	}
	cmd := exec.CommandContext(ctx, C.Path, strconv.FormatUint(atoms, 10), strconv.FormatUint(frames, 10), format)
	cmd.Stdin = in
	cmd.Stdout = out
	tail := &tailBuffer{max: stderrTail}
	cmd.Stderr = tail
	cmd.WaitDelay = C.Grace
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = time.Second
	}
	log := C.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	t0 := time.Now()
	if err := cmd.Start(); err != nil {
		return trajslice.NewConvertError(format, "", err, "exec.Start")
	}
	log.Debug("converter started", "comp", "convert", "pid", cmd.Process.Pid, "format", format, "atoms", atoms, "frames", frames)
	err := cmd.Wait()
	log.Debug("converter exited", "comp", "convert", "format", format, "dur_ms", time.Since(t0).Milliseconds(), "err", err)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return trajslice.NewConvertError(format, tail.String(), err, "exec.Wait")
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	b   []byte
	cut bool
}

func (T *tailBuffer) Write(p []byte) (int, error) {
	T.mu.Lock()
	defer T.mu.Unlock()
	T.b = append(T.b, p...)
	if over := len(T.b) - T.max; over > 0 {
		T.b = T.b[:copy(T.b, T.b[over:])]
		T.cut = true
	}
	return len(p), nil
}

func (T *tailBuffer) String() string {
	T.mu.Lock()
	defer T.mu.Unlock()
	if T.cut {
		return fmt.Sprintf("...%s", T.b)
	}
	return string(T.b)
}
