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

package filters

import (
	"github.com/exascience/filter-cigars/sam"
)

// ValidCigar checks whether a CIGAR describes a clean alignment: one
// that contains only M, =, X, I, and D operations, and that does not
// start with an insertion or deletion.
//
// The pileup offset counts the bases consumed by M, = and X
// operations. An I or D operation is rejected while the offset is
// still 0, so a leading indel, or a run of indels before the first
// consumed base, invalidates the CIGAR. Any other operation kind
// invalidates it regardless of position. An empty CIGAR is valid.
func ValidCigar(cigar []sam.CigarOperation) bool {
	var pileupOffset int64
	for _, op := range cigar {
		switch op.Operation {
		case 'M', '=', 'X':
			pileupOffset += int64(op.Length)
		case 'I', 'D':
			if pileupOffset == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// FilterValidCigars is a filter for removing alignments whose CIGAR
// fails ValidCigar.
func FilterValidCigars(_ *sam.Header) sam.AlignmentFilter {
	return func(aln *sam.Alignment) bool { return ValidCigar(aln.CIGAR) }
}
