/*
 * interfaces.go, part of trajslice
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
	"context"
	"io"
)

// BlobReader is the read side of a chunked object store. Implementations must
// be safe for concurrent use, as one store is shared by every export.
type BlobReader interface {

	//OpenRange returns a stream over the bytes start..end (both included)
	//of the object id.
	OpenRange(ctx context.Context, id string, start, end uint64) (io.ReadCloser, error)

	//OpenFull returns a stream over the whole object.
	OpenFull(ctx context.Context, id string) (io.ReadCloser, error)
}

// Sizer is implemented by stores that know the length of their objects
// without reading them.
type Sizer interface {
	Size(ctx context.Context, id string) (uint64, error)
}

//Errors

// Error is the interface for errors that all packages in this module implement.
// Decorate adds the name of a caller (optionally followed by ": extra info")
// to the error without changing its type, and returns the decorations so far.
// An empty string only returns the current decorations.
type Error interface {
	error
	Decorate(string) []string
	//Critical is false only for errors that the caller may reasonably
	//recover from by fixing its request.
	Critical() bool
}

// Decorate adds caller to err if err implements Error. Other errors are
// returned unchanged.
func Decorate(err error, caller string) error {
	if e, ok := err.(Error); ok {
		e.Decorate(caller)
	}
	return err
}
