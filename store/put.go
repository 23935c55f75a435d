/*
 * put.go, part of trajslice
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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Put stores the contents of r as the object id, split in chunks of
// chunkSize bytes (DefaultChunkSize if 0), each compressed with codec.
// The object is written to a temporary directory and renamed into place,
// so readers never see half-written objects. An existing object with the
// same id is an error.
func (D *Dir) Put(id string, r io.Reader, chunkSize uint64, codec string, meta map[string]string) (Manifest, error) {
	m := Manifest{ID: id, ChunkSize: chunkSize, Codec: codec, Meta: meta}
	if m.ChunkSize == 0 {
		m.ChunkSize = DefaultChunkSize
	}
	switch codec {
	case Raw, Zstd, Gzip, Flate:
	default:
		return m, fmt.Errorf("unknown chunk codec %q", codec)
	}
	dir, err := D.objectDir(id)
	if err != nil {
		return m, err
	}
	if _, err := os.Stat(dir); err == nil {
		return m, fmt.Errorf("object %s already exists", id)
	}
	tmp, err := os.MkdirTemp(D.Root, ".put-"+id+"-")
	if err != nil {
		return m, err
	}
	defer os.RemoveAll(tmp) //a no-op after a successful rename
	buf := make([]byte, m.ChunkSize)
	for i := uint64(0); ; i++ {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if werr := writeChunk(filepath.Join(tmp, chunkName(i, codec)), codec, buf[:n]); werr != nil {
				return m, werr
			}
			m.Length += uint64(n)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return m, err
		}
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return m, err
	}
	if err := os.WriteFile(filepath.Join(tmp, ManifestName), b, 0o644); err != nil {
		return m, err
	}
	return m, os.Rename(tmp, dir)
}

func writeChunk(name, codec string, data []byte) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	w, err := NewCodecWriter(codec, f)
	if err != nil {
		f.Close()
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
