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
	"fmt"
	"runtime"

	"github.com/exascience/filter-cigars/utils"
)

// ProgramMessage identifies the filter-cigars binary, its version,
// and the Go release it was compiled with.
var ProgramMessage string

func init() {
	ProgramMessage = fmt.Sprint(
		utils.ProgramName, " version ", utils.ProgramVersion,
		" compiled with ", runtime.Version(),
		" - see ", utils.ProgramURL, " for more information.",
	)
}

// UsageMessage is printed when filter-cigars is called with an
// incorrect number of parameters.
const UsageMessage = "Usage: " + utils.ProgramName + " input.bam output.bam"
