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
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/exascience/pargo/pipeline"

	"github.com/exascience/filter-cigars/internal"
	"github.com/exascience/filter-cigars/utils/bgzf"
)

type (
	// alignmentReader is a common interface for reading both SAM and BAM files.
	alignmentReader interface {
		ParseHeader() (*Header, error)
		ParseAlignment([]byte) (*Alignment, error)
		pipeline.Source
		io.Closer
	}

	// InputFile represents a SAM or BAM file for input.
	InputFile struct {
		reader alignmentReader
	}
)

// Close closes the SAM/BAM input file.
func (f *InputFile) Close() error {
	return f.reader.Close()
}

// ParseHeader fetches a header from a SAM or BAM file.
func (f *InputFile) ParseHeader() (*Header, error) {
	return f.reader.ParseHeader()
}

// ParseAlignment parses a block of bytes into an alignment.
// For example in a SAM file, each block of bytes must be
// one line from the alignment section.
func (f *InputFile) ParseAlignment(block []byte) (*Alignment, error) {
	return f.reader.ParseAlignment(block)
}

// Err implements the method of the pipeline.Source interface.
func (f *InputFile) Err() error {
	return f.reader.Err()
}

// Prepare implements the method of the pipeline.Source interface.
func (f *InputFile) Prepare(ctx context.Context) int {
	return f.reader.Prepare(ctx)
}

// Fetch implements the method of the pipeline.Source interface.
func (f *InputFile) Fetch(size int) int {
	return f.reader.Fetch(size)
}

// Data implements the method of the pipeline.Source interface.
func (f *InputFile) Data() interface{} {
	return f.reader.Data()
}

// IsBam reports whether the input file holds BAM data.
func (f *InputFile) IsBam() bool {
	_, ok := f.reader.(*bamReader)
	return ok
}

type (
	// alignmentWriter is a common interface for writing both SAM and BAM files.
	alignmentWriter interface {
		FormatHeader(hdr *Header) error
		FormatAlignment(aln *Alignment, out []byte) ([]byte, error)
		io.WriteCloser
	}

	// OutputFile represents a SAM or BAM file for output.
	OutputFile struct {
		writer alignmentWriter
	}
)

// Close closes a SAM or BAM output file.
func (f *OutputFile) Close() error {
	return f.writer.Close()
}

// FormatHeader writes the header to a SAM or BAM file.
func (f *OutputFile) FormatHeader(hdr *Header) error {
	return f.writer.FormatHeader(hdr)
}

// FormatAlignment formats an alignment into a block of bytes for a SAM or BAM file.
func (f *OutputFile) FormatAlignment(aln *Alignment, out []byte) ([]byte, error) {
	return f.writer.FormatAlignment(aln, out)
}

// Write can be used to write the blocks of bytes from FormatAlignment
// to the underlying SAM or BAM file.
func (f *OutputFile) Write(p []byte) (int, error) {
	return f.writer.Write(p)
}

// Open a SAM or BAM file for input.
//
// The format is determined by the contents of the file: BGZF
// compressed files holding BAM data are read as BAM, everything else
// (including BGZF compressed SAM) is read as SAM. Empty files are
// neither, and are rejected. BGZF blocks are
// decompressed by at most threads concurrent workers; threads <= 0
// means runtime.GOMAXPROCS(0).
//
// If the name is "/dev/stdin", then the input is read from os.Stdin.
func Open(name string, threads int) (*InputFile, error) {
	file, err := internal.OpenMapped(name)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewReader(file)
	isGzip, err := bgzf.IsGzip(buf)
	if err == io.EOF {
		_ = file.Close()
		return nil, fmt.Errorf("empty input file %v", name)
	} else if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%v, while opening %v", err, name)
	}
	if !isGzip {
		return &InputFile{reader: &samReader{rc: file, buf: buf}}, nil
	}
	r, err := bgzf.NewReader(buf, threads)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%v, while opening %v", err, name)
	}
	decompressed := bufio.NewReader(r)
	if magic, err := decompressed.Peek(len(bamMagic)); err == nil && bytes.Equal(magic, []byte(bamMagic)) {
		return &InputFile{reader: &bamReader{rc: file, bgzf: r, buf: decompressed}}, nil
	}
	return &InputFile{reader: &samReader{rc: closers{r, file}, buf: decompressed}}, nil
}

// closers closes all of its elements in order.
type closers []io.Closer

func (cs closers) Close() (err error) {
	for _, c := range cs {
		if internal.IsStdio(c) {
			continue
		}
		if nerr := c.Close(); err == nil {
			err = nerr
		}
	}
	return err
}

// Create a SAM or BAM file for output. The file name does not
// influence the format.
//
// BAM output is compressed at the given flate level by at most
// threads concurrent workers; threads <= 0 means
// runtime.GOMAXPROCS(0).
//
// If the name is "/dev/stdout", then the output is written to
// os.Stdout.
func Create(name string, bam bool, level, threads int) (*OutputFile, error) {
	var file *os.File
	if name == "/dev/stdout" {
		file = os.Stdout
	} else {
		var err error
		if file, err = os.Create(name); err != nil {
			return nil, err
		}
	}
	if bam {
		w, err := bgzf.NewWriter(file, level, threads)
		if err != nil {
			if !internal.IsStdio(file) {
				_ = file.Close()
			}
			return nil, err
		}
		return &OutputFile{writer: &bamWriter{wc: file, bgzf: w}}, nil
	}
	return &OutputFile{writer: &samWriter{wc: file, buf: bufio.NewWriter(file)}}, nil
}
