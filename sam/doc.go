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

// Package sam is a library for parsing and representing SAM/BAM
// files, and for streaming their alignments through filters on modern
// multi-core processors.
//
// Decisions about which alignments to keep are expressed as
// filters. A pipeline can be executed with the RunPipeline method of
// an InputFile or of an in-memory Sam value, and writes to any
// PipelineOutput, such as an OutputFile.
//
// Headers are kept as their original text lines plus the reference
// sequence dictionary, so that a header read from an input file is
// written unchanged to an output file of either format.
package sam
