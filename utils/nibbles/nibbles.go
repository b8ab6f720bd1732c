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

// Package nibbles stores sequences of 4-bit values, two per byte,
// high nibble first, as used by the BAM encoding of read bases.
package nibbles

import "log"

// Nibbles is a slice-like view of a byte slice that stores
// sequences of 4-bit values.
type Nibbles struct {
	n     int
	bytes []byte
}

// Wrap creates nibbles of the given length on top of the given raw
// byte slice, which must hold at least (n+1)/2 bytes. The bytes are
// shared, not copied.
func Wrap(n int, bytes []byte) Nibbles {
	return Nibbles{n: n, bytes: bytes[:(n+1)>>1]}
}

// Get returns the nibble at the given index.
func (n Nibbles) Get(index int) byte {
	if index >= n.n {
		log.Panic("index out of range")
	}
	return 0xF & (n.bytes[index>>1] >> uint((1^(index&1))<<2))
}

// Set sets the nibble at the given index.
func (n Nibbles) Set(index int, value byte) {
	if index >= n.n {
		log.Panic("index out of range")
	}
	i := index >> 1
	bit := index & 1
	n.bytes[i] = ((0xF << uint(bit<<2)) & n.bytes[i]) | ((0xF & value) << uint((1^bit)<<2))
}
