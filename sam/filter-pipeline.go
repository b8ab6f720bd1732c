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

	"github.com/exascience/pargo/pipeline"

	"github.com/exascience/filter-cigars/internal"
)

type (
	// An AlignmentFilter receives an Alignment. It returns true if the
	// alignment should be kept, and false if the alignment should be
	// removed.
	AlignmentFilter func(*Alignment) bool

	// A Filter receives a Header and returns an AlignmentFilter or nil.
	Filter func(*Header) AlignmentFilter

	// A PipelineOutput can add nodes to the given pargo
	// pipeline. AddNodes also receives the header that should be added
	// to the output. AddNodes must preserve the order of the alignments
	// it receives. Any error should be reported to the pipeline by
	// calling p.SetErr(err) with a non-nil error value.
	PipelineOutput interface {
		AddNodes(p *pipeline.Pipeline, header *Header)
	}

	// A PipelineInput arranges for a pargo pipeline to be properly
	// initialized, arrange for the pipeline to run the given filters,
	// call output.AddNodes(...), and eventually run the pipeline. If
	// RunPipeline doesn't encounter an error of its own, it should
	// return the error of its pargo pipeline, if any.
	PipelineInput interface {
		RunPipeline(output PipelineOutput, filters []Filter) error
	}
)

// AlignmentToBytes returns a pargo pipeline.Filter that formats
// slices of Alignment pointers into a single slice of bytes
// representing these alignments according to the SAM/BAM file
// format. The slice of bytes is reserved with
// internal.ReserveByteBuffer and should be released with
// internal.ReleaseByteBuffer once it has been written.
func AlignmentToBytes(writer *OutputFile) pipeline.Filter {
	return func(p *pipeline.Pipeline, _ pipeline.NodeKind, _ *int) (receiver pipeline.Receiver, _ pipeline.Finalizer) {
		receiver = func(_ int, data interface{}) interface{} {
			buf := internal.ReserveByteBuffer()
			for _, aln := range data.([]*Alignment) {
				out, err := writer.FormatAlignment(aln, *buf)
				if err != nil {
					internal.ReleaseByteBuffer(buf)
					p.SetErr(fmt.Errorf("%v, while formatting alignment %v", err, aln.QNAME))
					return (*[]byte)(nil)
				}
				*buf = out
			}
			return buf
		}
		return
	}
}

const (
	minBatchSize = 1024
	maxBatchSize = 65536
)

// BytesToAlignment returns a pargo pipeline.Filter that parses
// slices of bytes representing alignments according to the SAM/BAM file
// format into slices of pointers to freshly allocated Alignment
// values.
func BytesToAlignment(reader *InputFile) pipeline.Filter {
	return func(p *pipeline.Pipeline, _ pipeline.NodeKind, _ *int) (receiver pipeline.Receiver, _ pipeline.Finalizer) {
		receiver = func(_ int, data interface{}) interface{} {
			records := data.([][]byte)
			alns := make([]*Alignment, 0, len(records))
			for _, record := range records {
				aln, err := reader.ParseAlignment(record)
				if err != nil {
					p.SetErr(fmt.Errorf("%v, while parsing an alignment", err))
					return alns
				}
				alns = append(alns, aln)
			}
			return alns
		}
		return
	}
}

// AddNodes implements the PipelineOutput interface for Sam values to
// represent complete SAM/BAM files in memory.
func (sam *Sam) AddNodes(p *pipeline.Pipeline, header *Header) {
	sam.Header = header.Clone()
	sam.Alignments = nil
	p.Add(pipeline.StrictOrd(pipeline.Slice(&sam.Alignments)))
}

// AddNodes implements the PipelineOutput interface for SAM/BAM OutputFile values.
func (f *OutputFile) AddNodes(p *pipeline.Pipeline, header *Header) {
	if err := f.FormatHeader(header); err != nil {
		p.SetErr(fmt.Errorf("%v, while writing a SAM header to output", err))
		return
	}
	p.Add(
		pipeline.LimitedPar(0, AlignmentToBytes(f)),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			buf := data.(*[]byte)
			if buf == nil {
				return nil
			}
			if _, err := f.Write(*buf); err != nil {
				p.SetErr(fmt.Errorf("%v, while writing alignments to output", err))
			}
			internal.ReleaseByteBuffer(buf)
			return nil
		})),
	)
}

// ComposeFilters takes a Header and a slice of Filter functions, and
// successively calls these functions to generate the corresponding
// AlignmentFilter predicates. It then returns a pargo
// pipeline.Receiver that applies these AlignmentFilter predicates on
// the slices of Alignment pointers it receives, keeping the relative
// order of the alignments that pass. ComposeFilters may return nil if
// all AlignmentFilters are nil.
func ComposeFilters(header *Header, hdrFilters []Filter) (receiver pipeline.Receiver) {
	var alnFilters []AlignmentFilter
	for _, f := range hdrFilters {
		if f != nil {
			if alnFilter := f(header); alnFilter != nil {
				alnFilters = append(alnFilters, alnFilter)
			}
		}
	}
	if len(alnFilters) > 0 {
		receiver = func(_ int, data interface{}) interface{} {
			alns := data.([]*Alignment)
			i := 0
		alnLoop:
			for _, aln := range alns {
				for _, alnFilter := range alnFilters {
					if !alnFilter(aln) {
						continue alnLoop
					}
				}
				alns[i] = aln
				i++
			}
			return alns[:i]
		}
	}
	return
}

// RunPipeline implements the PipelineInput interface for Sam values
// that represent complete SAM/BAM files in memory.
func (sam *Sam) RunPipeline(output PipelineOutput, hdrFilters []Filter) error {
	header := sam.Header
	alns := sam.Alignments
	alnFilter := ComposeFilters(header, hdrFilters)
	var p pipeline.Pipeline
	p.Source(append([]*Alignment(nil), alns...))
	if alnFilter != nil {
		p.Add(pipeline.LimitedPar(0, pipeline.Receive(alnFilter)))
	}
	output.AddNodes(&p, header)
	p.Run()
	return p.Err()
}

// RunPipeline implements the PipelineInput interface for SAM/BAM InputFile values.
func (f *InputFile) RunPipeline(output PipelineOutput, hdrFilters []Filter) error {
	header, err := f.ParseHeader()
	if err != nil {
		return fmt.Errorf("%v, while parsing a SAM/BAM header", err)
	}
	alnFilter := ComposeFilters(header, hdrFilters)
	var p pipeline.Pipeline
	p.Source(f)
	p.SetVariableBatchSize(minBatchSize, maxBatchSize)
	p.Add(pipeline.LimitedPar(0, BytesToAlignment(f)))
	if alnFilter != nil {
		p.Add(pipeline.LimitedPar(0, pipeline.Receive(alnFilter)))
	}
	output.AddNodes(&p, header)
	p.Run()
	return p.Err()
}
