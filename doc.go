/*
 * doc.go, part of trajslice
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

/*
Package trajslice serves selections of large molecular dynamics trajectories
stored as flat binary blobs (frames × atoms × 3 float32 coordinates) in a
chunked object store.

	**trajslice Capabilities**

    Parses 1-based range expressions ("1:9:2", "1,5-6") into normalized
    0-based index ranges (package rangeexpr).

    Compiles per-axis selections over a blob layout into a lazy, merged and
    ascending sequence of byte ranges, or bit windows for element widths
    that are not a multiple of 8 (package selection).

    Streams those ranges from a chunked store in bounded download batches,
    keeping the logical order and honoring consumer backpressure
    (package chunkread). Store implementations are in package store.

    Re-encodes the raw samples as mdcrd text (traj/mdcrd), scientific
    notation text (traj/sci), ASCII digits for bit-packed codes
    (traj/bitcode), DCD binary (traj/dcd) or compressed STF text (traj/stf).
    It can also summarize (stats) and plot (plotout) a selection, or pipe
    it through an external converter program (convert).

    Package export puts all of the above together, and cmd/trajslice
    exposes it on the command line.

This root package holds the types shared by the others: byte ranges, bit
windows, the store interface and the error taxonomy.
*/
package trajslice
