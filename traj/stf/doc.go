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
Package stf writes and reads the simple trajectory format, a compressed
plain-text trajectory format that is easy to produce and parse from any
language.

Format

An STF stream is ASCII text, compressed as a whole (zstd by default; gzip
and raw deflate are accepted too).

The header is a sequence of key=value lines. It always has a "prec" line with
the precision, a positive integer. The header ends with a line made of "**",
one or more spaces and the number of atoms per frame.

Each frame then has one line per atom with three integers, the x, y and z
coordinates multiplied by 10^prec and rounded to even. A frame ends with a
line that starts with "*". That line may carry the nine numbers of the box
vectors after a space.

The "**" sequence only ever terminates the header.

This package uses a precision of 2 when none is given.
*/
package stf
