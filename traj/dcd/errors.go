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

package dcd

import (
	"fmt"

	"github.com/rmera/trajslice"
)

//errDecorate is a helper function that asserts that the error is
//implements trajslice.Error and decorates the error with the caller's name before returning it.
func errDecorate(err error, caller string) error {
	return trajslice.Decorate(err, caller)
}

//Error is the general structure for DCD trajectory errors. It fullfills trajslice.Error
type Error struct {
	message  string
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("dcd trajectory error: %s", err.message)
}

func (E Error) Decorate(deco string) []string {
	//E.deco is a slice, so appending works on the value receiver as long as
	//there is capacity.
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func (err Error) Format() string { return "DCD" }

func (err Error) Critical() bool { return err.critical }

const (
	ReadError   = "Error reading frame"
	WrongFormat = "Wrong format in the trajectory file or frame"
)
