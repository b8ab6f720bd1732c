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

package cmd

import (
	"compress/flate"
	"fmt"

	"github.com/exascience/filter-cigars/filters"
	"github.com/exascience/filter-cigars/internal"
	"github.com/exascience/filter-cigars/sam"
)

const (
	// ReadThreads is the number of workers that decompress BGZF
	// blocks of the input file.
	ReadThreads = 2

	// WriteThreads is the number of workers that compress BGZF blocks
	// of BAM output files.
	WriteThreads = 5

	// CompressionLevel is the flate level for BAM output files.
	CompressionLevel = flate.DefaultCompression
)

// FilterCigars copies the alignments of fileIn whose CIGAR passes
// filters.ValidCigar to fileOut, in their original order. The header
// of fileIn is copied as is.
//
// The input may be SAM or BAM, regardless of its name. The output
// uses the same format as the input, regardless of its name.
func FilterCigars(fileIn, fileOut string) (err error) {
	input, err := sam.Open(fileIn, ReadThreads)
	if err != nil {
		return fmt.Errorf("%v, while opening input file %v", err, fileIn)
	}
	defer internal.Close(input, &err)

	output, err := sam.Create(fileOut, input.IsBam(), CompressionLevel, WriteThreads)
	if err != nil {
		return fmt.Errorf("%v, while creating output file %v", err, fileOut)
	}
	defer internal.Close(output, &err)

	if err := input.RunPipeline(output, []sam.Filter{filters.FilterValidCigars}); err != nil {
		return fmt.Errorf("%v, while filtering %v", err, fileIn)
	}
	return nil
}
