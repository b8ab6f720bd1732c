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

package internal

import "sync"

var byteBuffers = sync.Pool{New: func() interface{} { return new([]byte) }}

// ReserveByteBuffer returns an empty byte slice from a shared pool. Its
// capacity may be left over from earlier use.
func ReserveByteBuffer() *[]byte {
	buf := byteBuffers.Get().(*[]byte)
	*buf = (*buf)[:0]
	return buf
}

// ReleaseByteBuffer returns buf to the pool used by ReserveByteBuffer.
// buf must not be used afterwards.
func ReleaseByteBuffer(buf *[]byte) {
	byteBuffers.Put(buf)
}
