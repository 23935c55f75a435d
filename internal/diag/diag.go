/*
 * diag.go, part of trajslice
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

// Package diag sets up structured logging. Events carry a component
// ("comp"), a stage (start, finish or error) and, when finished, the
// duration in milliseconds ("dur_ms").
package diag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rmera/trajslice"
)

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New returns a logger writing to w, one JSON object per line, or
// logfmt-like text if format is "text".
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Code classifies err for the "code" field of error events.
func Code(err error) string {
	var (
		re *trajslice.ReadError
		te *trajslice.TranscodeError
		ce *trajslice.ConvertError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, trajslice.ErrBadSyntax):
		return "bad_syntax"
	case errors.Is(err, trajslice.ErrZeroIndex):
		return "zero_index"
	case errors.Is(err, trajslice.ErrConflict):
		return "conflict"
	case errors.Is(err, trajslice.ErrUnsatisfiable):
		return "unsatisfiable"
	case errors.As(err, &re):
		return "read"
	case errors.As(err, &te):
		return "transcode"
	case errors.As(err, &ce):
		return "convert"
	}
	return "internal"
}

// Timer measures one stage of a component.
type Timer struct {
	l     *slog.Logger
	comp  string
	attrs []any
	t0    time.Time
}

// Start logs the start event of comp and returns a Timer for its end. The
// attributes are repeated in the finish or error event.
func Start(l *slog.Logger, comp, msg string, attrs ...any) *Timer {
	T := &Timer{l: l, comp: comp, attrs: append([]any{"comp", comp}, attrs...), t0: time.Now()}
	l.Info(msg, append([]any{"stage", "start"}, T.attrs...)...)
	return T
}

func (T *Timer) since() int64 {
	return time.Since(T.t0).Milliseconds()
}

// Finish logs the finish event.
func (T *Timer) Finish(msg string, attrs ...any) {
	a := append([]any{"stage", "finish"}, T.attrs...)
	a = append(a, "dur_ms", T.since())
	T.l.Info(msg, append(a, attrs...)...)
}

// Fail logs err as the error event. Cancellations are logged at warn level.
func (T *Timer) Fail(err error, attrs ...any) {
	code := Code(err)
	a := append([]any{"stage", "error"}, T.attrs...)
	a = append(a, "code", code, "dur_ms", T.since(), "err", err.Error())
	a = append(a, attrs...)
	if code == "canceled" {
		T.l.Warn("stopped", a...)
		return
	}
	T.l.Error("failed", a...)
}
