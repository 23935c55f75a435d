/*
 * layout.go, part of trajslice
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

package export

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rmera/trajslice/selection"
	"github.com/rmera/trajslice/store"
)

// Layouts tells the Exporter how the elements of an object are arranged.
type Layouts interface {
	Layout(ctx context.Context, id string) (selection.Layout, error)
}

// Fixed gives the same layout for every object.
type Fixed selection.Layout

func (F Fixed) Layout(ctx context.Context, id string) (selection.Layout, error) {
	return selection.Layout(F), nil
}

// Manifests reads the layout from the manifest of each object in a Dir.
type Manifests struct {
	Dir *store.Dir
}

func (M Manifests) Layout(ctx context.Context, id string) (selection.Layout, error) {
	m, err := M.Dir.Manifest(id)
	if err != nil {
		return selection.Layout{}, err
	}
	l, err := LayoutFromMeta(m.Meta)
	if err != nil {
		return l, fmt.Errorf("object %s: %w", id, err)
	}
	l.TotalBytes = m.Length
	return l, nil
}

// Manifest metadata keys describing a layout.
const (
	MetaFrames      = "frames"
	MetaAtoms       = "atoms"
	MetaAxes        = "axes"         //name:length pairs, fastest first, e.g. "x:4,y:10"
	MetaElementBits = "element_bits" //for MetaAxes layouts, 32 if absent
)

// LayoutFromMeta builds a layout from object metadata. Either frames and
// atoms are given, for a float32 trajectory, or a generic axis list.
func LayoutFromMeta(meta map[string]string) (selection.Layout, error) {
	if axes, ok := meta[MetaAxes]; ok {
		return genericLayout(axes, meta[MetaElementBits])
	}
	frames, err := metaUint(meta, MetaFrames)
	if err != nil {
		return selection.Layout{}, err
	}
	atoms, err := metaUint(meta, MetaAtoms)
	if err != nil {
		return selection.Layout{}, err
	}
	l := selection.TrajectoryLayout(frames, atoms)
	return l, l.Validate()
}

func metaUint(meta map[string]string, key string) (uint64, error) {
	v, ok := meta[key]
	if !ok {
		return 0, fmt.Errorf("no %q in metadata", key)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("metadata %s: %w", key, err)
	}
	return n, nil
}

func genericLayout(axes, bits string) (selection.Layout, error) {
	l := selection.Layout{ElementBits: 32}
	if bits != "" {
		b, err := strconv.ParseUint(bits, 10, 32)
		if err != nil {
			return l, fmt.Errorf("metadata %s: %w", MetaElementBits, err)
		}
		l.ElementBits = uint32(b)
	}
	for _, p := range strings.Split(axes, ",") {
		name, length, ok := strings.Cut(strings.TrimSpace(p), ":")
		if !ok || name == "" {
			return l, fmt.Errorf("bad axis %q in metadata", p)
		}
		n, err := strconv.ParseUint(length, 10, 64)
		if err != nil {
			return l, fmt.Errorf("axis %s: %w", name, err)
		}
		l.Axes = append(l.Axes, selection.Axis{Name: name, Length: n})
	}
	return l, l.Validate()
}
