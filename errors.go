/*
 * errors.go, part of trajslice
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

package trajslice

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds of selection errors. A *SelectionError always unwraps to one of them,
// so errors.Is(err, ErrZeroIndex) works through any amount of wrapping.
var (
	ErrBadSyntax     = errors.New("bad range syntax")
	ErrZeroIndex     = errors.New("indexes are 1-based, 0 is not valid")
	ErrConflict      = errors.New("conflicting range specifications")
	ErrUnsatisfiable = errors.New("range is empty or out of domain")
)

// SelectionError reports a problem with the request parameters. It is raised
// before any I/O happens.
type SelectionError struct {
	Kind     error
	Fragment string //the offending piece of the request, if any
	Axis     string
	deco     []string
}

// NewSelectionError returns a SelectionError of the given kind.
func NewSelectionError(kind error, fragment string, caller string) *SelectionError {
	return &SelectionError{Kind: kind, Fragment: fragment, deco: []string{caller}}
}

func (E *SelectionError) Error() string {
	var b strings.Builder
	b.WriteString(E.Kind.Error())
	if E.Axis != "" {
		fmt.Fprintf(&b, " in axis %q", E.Axis)
	}
	if E.Fragment != "" {
		fmt.Fprintf(&b, ": %q", E.Fragment)
	}
	return b.String()
}

func (E *SelectionError) Unwrap() error { return E.Kind }

func (E *SelectionError) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

// Critical is false, the request can be fixed and sent again.
func (E *SelectionError) Critical() bool { return false }

// ReadError is a failure of the backing store in the middle of a stream.
type ReadError struct {
	Object string
	Batch  int    //index of the failed download batch, -1 for whole-object reads
	Offset uint64 //blob offset where the failed read started
	Err    error
	deco   []string
}

// NewReadError wraps err, which happened while reading object at offset.
func NewReadError(object string, batch int, offset uint64, err error, caller string) *ReadError {
	return &ReadError{Object: object, Batch: batch, Offset: offset, Err: err, deco: []string{caller}}
}

func (E *ReadError) Error() string {
	if E.Batch < 0 {
		return fmt.Sprintf("reading object %s: %v", E.Object, E.Err)
	}
	return fmt.Sprintf("reading object %s, batch %d at offset %d: %v", E.Object, E.Batch, E.Offset, E.Err)
}

func (E *ReadError) Unwrap() error { return E.Err }

func (E *ReadError) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func (E *ReadError) Critical() bool { return true }

// TranscodeError is raised by a transcoder that gets input it can't encode,
// such as a truncated trailing element.
type TranscodeError struct {
	Format  string
	Message string
	deco    []string
}

// NewTranscodeError returns a TranscodeError for the given output format.
func NewTranscodeError(format, message, caller string) *TranscodeError {
	return &TranscodeError{Format: format, Message: message, deco: []string{caller}}
}

func (E *TranscodeError) Error() string {
	return fmt.Sprintf("%s encoding: %s", E.Format, E.Message)
}

func (E *TranscodeError) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func (E *TranscodeError) Critical() bool { return true }

// ConvertError is a failure of the external converter process.
type ConvertError struct {
	Format string
	Stderr string //last part of the converter's standard error
	Err    error
	deco   []string
}

// NewConvertError wraps err, returned while running the converter for format.
func NewConvertError(format, stderr string, err error, caller string) *ConvertError {
	return &ConvertError{Format: format, Stderr: stderr, Err: err, deco: []string{caller}}
}

func (E *ConvertError) Error() string {
	if E.Stderr == "" {
		return fmt.Sprintf("converter to %s: %v", E.Format, E.Err)
	}
	return fmt.Sprintf("converter to %s: %v: %s", E.Format, E.Err, E.Stderr)
}

func (E *ConvertError) Unwrap() error { return E.Err }

func (E *ConvertError) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func (E *ConvertError) Critical() bool { return true }
