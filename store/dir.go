/*
 * dir.go, part of trajslice
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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ManifestName is the name of the manifest file in each object directory.
const ManifestName = "manifest.json"

// DefaultChunkSize is the chunk size used by Put when none is given.
const DefaultChunkSize = 255 << 10

// Manifest describes an object stored in a Dir.
type Manifest struct {
	ID        string            `json:"id"`
	Length    uint64            `json:"length"`
	ChunkSize uint64            `json:"chunk_size"`
	Codec     string            `json:"codec"`
	Meta      map[string]string `json:"meta,omitempty"` //free-form, e.g. the layout of the blob
}

// Chunks returns the number of chunks of the object.
func (M Manifest) Chunks() uint64 {
	return (M.Length + M.ChunkSize - 1) / M.ChunkSize
}

// Dir is a store in a directory. Each object is a sub-directory holding a
// manifest and its chunks, named by their 0-based index and the codec suffix,
// e.g. 00000003.chunk.zst.
type Dir struct {
	Root string
}

// NewDir returns a store rooted at root, which must exist.
func NewDir(root string) (*Dir, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("store root %s is not a directory", root)
	}
	return &Dir{Root: root}, nil
}

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func (D *Dir) objectDir(id string) (string, error) {
	if !validID(id) {
		return "", fmt.Errorf("invalid object id %q", id)
	}
	return filepath.Join(D.Root, id), nil
}

func chunkName(i uint64, codec string) string {
	n := fmt.Sprintf("%08d.chunk", i)
	if codec != Raw {
		n += "." + codec
	}
	return n
}

// Manifest reads the manifest of the object id.
func (D *Dir) Manifest(id string) (Manifest, error) {
	var m Manifest
	dir, err := D.objectDir(id)
	if err != nil {
		return m, err
	}
	b, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if errors.Is(err, os.ErrNotExist) {
		return m, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("manifest of %s: %w", id, err)
	}
	if m.ChunkSize == 0 {
		return m, fmt.Errorf("manifest of %s: chunk size is 0", id)
	}
	return m, nil
}

// Size implements trajslice.Sizer.
func (D *Dir) Size(ctx context.Context, id string) (uint64, error) {
	m, err := D.Manifest(id)
	return m.Length, err
}

// OpenFull implements trajslice.BlobReader.
func (D *Dir) OpenFull(ctx context.Context, id string) (io.ReadCloser, error) {
	m, err := D.Manifest(id)
	if err != nil {
		return nil, err
	}
	if m.Length == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}
	return D.open(ctx, m, 0, m.Length-1), nil
}

// OpenRange implements trajslice.BlobReader.
func (D *Dir) OpenRange(ctx context.Context, id string, start, end uint64) (io.ReadCloser, error) {
	m, err := D.Manifest(id)
	if err != nil {
		return nil, err
	}
	if start > end || end >= m.Length {
		return nil, fmt.Errorf("range %d-%d out of object %s of %d bytes", start, end, id, m.Length)
	}
	return D.open(ctx, m, start, end), nil
}

func (D *Dir) open(ctx context.Context, m Manifest, start, end uint64) *chunkStream {
	dir, _ := D.objectDir(m.ID)
	return &chunkStream{
		ctx:       ctx,
		dir:       dir,
		m:         m,
		chunk:     start / m.ChunkSize,
		skip:      start % m.ChunkSize,
		remaining: end - start + 1,
	}
}

// chunkStream reads a byte range across consecutive chunk files. Only one
// chunk file is open at a time.
type chunkStream struct {
	ctx       context.Context
	dir       string
	m         Manifest
	chunk     uint64 //next chunk to open
	skip      uint64 //bytes to drop at the start of the next chunk
	remaining uint64
	f         *os.File
	r         io.ReadCloser
}

func (C *chunkStream) openChunk() error {
	if err := C.ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(C.dir, chunkName(C.chunk, C.m.Codec)))
	if err != nil {
		return err
	}
	r, err := NewCodecReader(C.m.Codec, bufio.NewReader(f))
	if err != nil {
		f.Close()
		return fmt.Errorf("chunk %d of %s: %w", C.chunk, C.m.ID, err)
	}
	if C.skip > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(C.skip)); err != nil {
			r.Close()
			f.Close()
			return fmt.Errorf("chunk %d of %s: %w", C.chunk, C.m.ID, err)
		}
		C.skip = 0
	}
	C.f, C.r = f, r
	C.chunk++
	return nil
}

func (C *chunkStream) closeChunk() {
	if C.r != nil {
		C.r.Close()
		C.r = nil
	}
	if C.f != nil {
		C.f.Close()
		C.f = nil
	}
}

func (C *chunkStream) Read(p []byte) (int, error) {
	if C.remaining == 0 {
		return 0, io.EOF
	}
	if C.r == nil {
		if err := C.openChunk(); err != nil {
			return 0, err
		}
	}
	if uint64(len(p)) > C.remaining {
		p = p[:C.remaining]
	}
	n, err := C.r.Read(p)
	C.remaining -= uint64(n)
	if errors.Is(err, io.EOF) {
		C.closeChunk()
		if C.remaining > 0 && C.chunk >= C.m.Chunks() {
			return n, fmt.Errorf("object %s ends %d bytes early: %w", C.m.ID, C.remaining, io.ErrUnexpectedEOF)
		}
		err = nil
	}
	if C.remaining == 0 {
		C.closeChunk()
	}
	return n, err
}

func (C *chunkStream) Close() error {
	C.closeChunk()
	C.remaining = 0
	return nil
}
