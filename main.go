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

// filter-cigars copies the alignments of a SAM or BAM file to a new
// file, keeping only those with a clean CIGAR: no clipping, padding,
// skipped regions, or leading insertions and deletions.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/exascience/filter-cigars/cmd"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
		fmt.Fprintln(os.Stderr, cmd.UsageMessage)
		os.Exit(1)
	}
	if err := cmd.FilterCigars(os.Args[1], os.Args[2]); err != nil {
		log.Fatal(err)
	}
}
