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

import (
	"bytes"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MappedFile is a read-only view of a file. Regular, non-empty files
// are memory-mapped; anything else (pipes, devices, empty files) is
// read through the underlying os.File.
type MappedFile struct {
	file *os.File
	data mmap.MMap
	r    io.Reader
}

// OpenMapped opens the named file for sequential reading.
//
// If the name is "/dev/stdin", then the input is read from os.Stdin.
func OpenMapped(name string) (*MappedFile, error) {
	if name == "/dev/stdin" {
		return &MappedFile{file: os.Stdin, r: os.Stdin}, nil
	}
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return &MappedFile{file: file, r: file}, nil
	}
	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		// not every file system supports mmap
		return &MappedFile{file: file, r: file}, nil
	}
	_ = adviseSequential(data)
	return &MappedFile{file: file, data: data, r: bytes.NewReader(data)}, nil
}

// Read implements io.Reader.
func (f *MappedFile) Read(p []byte) (int, error) {
	return f.r.Read(p)
}

// Close unmaps and closes the file.
func (f *MappedFile) Close() (err error) {
	if f.data != nil {
		err = f.data.Unmap()
		f.data = nil
	}
	if IsStdio(f.file) {
		return err
	}
	if nerr := f.file.Close(); err == nil {
		err = nerr
	}
	return err
}
