// elPrep: a high-performance tool for analyzing SAM/BAM files.
// Copyright (c) 2017-2020 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elprep/blob/master/LICENSE.txt>.

package sam

import (
	"fmt"
	"strings"
)

// A StringScanner splits a SAM line into its fields. Once an error
// has been recorded, all further reads return zero values and Err
// reports the first error.
//
// The zero StringScanner is empty and ready to use.
type StringScanner struct {
	data  string
	index int
	err   error
}

// Err returns the first error recorded while scanning.
func (sc *StringScanner) Err() error {
	return sc.err
}

// Reset makes the scanner scan s from the start, clearing any error.
func (sc *StringScanner) Reset(s string) {
	*sc = StringScanner{data: s}
}

// Len returns the number of bytes left to scan, or 0 after an error.
func (sc *StringScanner) Len() int {
	if sc.err != nil {
		return 0
	}
	return len(sc.data) - sc.index
}

func (sc *StringScanner) setErr(err error) {
	if sc.err == nil {
		sc.err = err
	}
}

// readByteUntil reads a single byte that must be followed by c or by
// the end of the line. found reports whether c was consumed.
func (sc *StringScanner) readByteUntil(c byte) (b byte, found bool) {
	if sc.err != nil {
		return 0, false
	}
	rest := sc.data[sc.index:]
	switch {
	case len(rest) == 0:
		sc.setErr(fmt.Errorf("unexpected end of line, expected %q", c))
		return 0, false
	case len(rest) == 1:
		sc.index++
		return rest[0], false
	case rest[1] != c:
		sc.setErr(fmt.Errorf("unexpected character %q, expected %q", rest[1], c))
		return 0, false
	default:
		sc.index += 2
		return rest[0], true
	}
}

// readUntil reads up to the next c, or to the end of the line. found
// reports whether c was consumed.
func (sc *StringScanner) readUntil(c byte) (s string, found bool) {
	if sc.err != nil {
		return "", false
	}
	rest := sc.data[sc.index:]
	if end := strings.IndexByte(rest, c); end >= 0 {
		sc.index += end + 1
		return rest[:end], true
	}
	sc.index = len(sc.data)
	return rest, false
}
