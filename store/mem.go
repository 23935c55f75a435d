/*
 * mem.go, part of trajslice
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

// Package store provides implementations of trajslice.BlobReader: an
// in-memory store, and a directory of fixed-size, optionally compressed,
// chunk files.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrNotFound is returned for objects that are not in a store.
var ErrNotFound = errors.New("object not found")

// Mem is an in-memory store. The zero value is ready to use.
type Mem struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMem returns a store holding the given objects.
func NewMem(objects map[string][]byte) *Mem {
	m := new(Mem)
	for k, v := range objects {
		m.Put(k, v)
	}
	return m
}

// Put stores data under id. The store keeps data, it doesn't copy it.
func (M *Mem) Put(id string, data []byte) {
	M.mu.Lock()
	defer M.mu.Unlock()
	if M.objects == nil {
		M.objects = make(map[string][]byte)
	}
	M.objects[id] = data
}

func (M *Mem) get(id string) ([]byte, error) {
	M.mu.RLock()
	defer M.mu.RUnlock()
	d, ok := M.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, nil
}

// OpenRange implements trajslice.BlobReader.
func (M *Mem) OpenRange(ctx context.Context, id string, start, end uint64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := M.get(id)
	if err != nil {
		return nil, err
	}
	if start > end || end >= uint64(len(d)) {
		return nil, fmt.Errorf("range %d-%d out of object %s of %d bytes", start, end, id, len(d))
	}
	return io.NopCloser(bytes.NewReader(d[start : end+1])), nil
}

// OpenFull implements trajslice.BlobReader.
func (M *Mem) OpenFull(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := M.get(id)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(d)), nil
}

// Size implements trajslice.Sizer.
func (M *Mem) Size(ctx context.Context, id string) (uint64, error) {
	d, err := M.get(id)
	if err != nil {
		return 0, err
	}
	return uint64(len(d)), nil
}
