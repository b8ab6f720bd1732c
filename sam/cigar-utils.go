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

import "github.com/bits-and-blooms/bitset"

var (
	consumesReference = bitset.New(256)
	consumesRead      = bitset.New(256)
)

func init() {
	for _, op := range "MDN=X" {
		consumesReference.Set(uint(op))
	}
	for _, op := range "MIS=X" {
		consumesRead.Set(uint(op))
	}
}

// OperatorConsumesReferenceBases reports whether the given CIGAR
// operation advances along the reference.
func OperatorConsumesReferenceBases(operator byte) bool {
	return consumesReference.Test(uint(operator))
}

// OperatorConsumesReadBases reports whether the given CIGAR operation
// advances along the read.
func OperatorConsumesReadBases(operator byte) bool {
	return consumesRead.Test(uint(operator))
}

// ReferenceLengthFromCigar sums the lengths of all CIGAR operations
// that consume reference bases.
func ReferenceLengthFromCigar(cigar []CigarOperation) int32 {
	var length int32
	for _, op := range cigar {
		if OperatorConsumesReferenceBases(op.Operation) {
			length += op.Length
		}
	}
	return length
}

// ReadLengthFromCigar sums the lengths of all CIGAR operations that
// consume read bases.
func ReadLengthFromCigar(cigar []CigarOperation) int32 {
	var length int32
	for _, op := range cigar {
		if OperatorConsumesReadBases(op.Operation) {
			length += op.Length
		}
	}
	return length
}
