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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/exascience/filter-cigars/utils"
)


// A Reference is an entry in the reference sequence dictionary.
type Reference struct {
	Name   string
	Length int32
}

// A Header holds the header section of a SAM/BAM file.
type Header struct {
	// Lines are the header lines in their original order, without
	// line terminators.
	Lines []string

	// References is the reference sequence dictionary. For SAM input
	// it is derived from the @SQ lines, for BAM input it is the binary
	// dictionary of the file.
	References []Reference
}

// NewHeader allocates and initializes an empty header.
func NewHeader() *Header { return &Header{} }

// Clone returns a deep copy of the header.
func (hdr *Header) Clone() *Header {
	return &Header{
		Lines:      append([]string(nil), hdr.Lines...),
		References: append([]Reference(nil), hdr.References...),
	}
}

// HasSQ reports whether the header text contains @SQ lines.
func (hdr *Header) HasSQ() bool {
	for _, line := range hdr.Lines {
		if strings.HasPrefix(line, "@SQ\t") {
			return true
		}
	}
	return false
}

// SQLN returns the LN entry of a parsed @SQ header line.
func SQLN(record utils.StringMap) (int32, error) {
	ln, found := record["LN"]
	if !found {
		return 0, errors.New("LN entry in a SQ header line missing")
	}
	val, err := strconv.ParseInt(ln, 10, 32)
	return int32(val), err
}

// Alignment represents a SAM alignment line or BAM alignment record.
//
// SEQ and QUAL use their SAM representations, "*" when absent.
type Alignment struct {
	QNAME string
	FLAG  uint16
	RNAME string
	POS   int32
	MAPQ  byte
	CIGAR []CigarOperation
	RNEXT string
	PNEXT int32
	TLEN  int32
	SEQ   string
	QUAL  string
	TAGS  utils.SmallMap

	// raw is the original BAM record, without block size, and rawHeader
	// the header it refers to. A BAM writer for the same header can
	// reuse it as is.
	raw       []byte
	rawHeader *Header
}

// NewAlignment allocates and initializes an empty alignment.
func NewAlignment() *Alignment {
	return &Alignment{
		RNAME: "*",
		RNEXT: "*",
		SEQ:   "*",
		QUAL:  "*",
		TAGS:  make(utils.SmallMap, 0, 8),
	}
}

// Unmapped is the FLAG bit for unmapped segments.
const Unmapped = 0x4

// IsUnmapped checks the FLAG for the Unmapped bit.
func (aln *Alignment) IsUnmapped() bool { return (aln.FLAG & Unmapped) != 0 }

// A Sam holds a complete SAM/BAM file in memory.
type Sam struct {
	Header     *Header
	Alignments []*Alignment
}

// NewSam allocates and initializes an empty Sam value.
func NewSam() *Sam { return &Sam{Header: NewHeader()} }

// ByteArray represents the H type of optional fields.
type ByteArray []byte

// CigarOperations lists the valid CIGAR operation characters, in the
// order of their BAM operation codes.
const CigarOperations = "MIDNSHP=XB"

var cigarOperationsTable [256]byte

func init() {
	for _, c := range CigarOperations {
		cigarOperationsTable[c] = byte(c)
		cigarOperationsTable[strings.ToLower(string(c))[0]] = byte(c)
	}
}

func isDigit(char byte) bool { return ('0' <= char) && (char <= '9') }

// CigarOperation is one (length, operation) pair of a CIGAR.
type CigarOperation struct {
	Length    int32
	Operation byte
}

func newCigarOperation(cigar string, i int) (op CigarOperation, j int, err error) {
	for j = i; j < len(cigar); j++ {
		if char := cigar[j]; !isDigit(char) {
			if j == i {
				return op, j, fmt.Errorf("missing length for CIGAR operation %q", char)
			}
			length, nerr := strconv.ParseInt(cigar[i:j], 10, 32)
			if nerr != nil {
				return op, j, nerr
			}
			operation := cigarOperationsTable[char]
			if operation == 0 {
				return op, j, fmt.Errorf("invalid CIGAR operation %q", char)
			}
			return CigarOperation{int32(length), operation}, j + 1, nil
		}
	}
	return op, j, errors.New("missing CIGAR operation after length")
}

var (
	cigarSliceCache      = map[string][]CigarOperation{"*": {}}
	cigarSliceCacheMutex = sync.RWMutex{}
)

const maxCachedCigarLength = 64

func slowScanCigarString(cigar string) (slice []CigarOperation, err error) {
	slice = []CigarOperation{}
	for i := 0; i < len(cigar); {
		cigarOperation, j, err := newCigarOperation(cigar, i)
		if err != nil {
			return nil, fmt.Errorf("%v, while scanning CIGAR string %v", err, cigar)
		}
		slice = append(slice, cigarOperation)
		i = j
	}
	if len(cigar) > maxCachedCigarLength {
		return slice, nil
	}
	cigarSliceCacheMutex.Lock()
	if value, found := cigarSliceCache[cigar]; found {
		slice = value
	} else {
		cigarSliceCache[cigar] = slice
	}
	cigarSliceCacheMutex.Unlock()
	return slice, nil
}

// ScanCigarString parses a CIGAR string. The string "*" yields an
// empty slice.
//
// Results for short strings are shared across calls and must not be
// modified.
func ScanCigarString(cigar string) ([]CigarOperation, error) {
	cigarSliceCacheMutex.RLock()
	value, found := cigarSliceCache[cigar]
	cigarSliceCacheMutex.RUnlock()
	if found {
		return value, nil
	}
	return slowScanCigarString(cigar)
}

// AppendCigar appends the SAM representation of the given CIGAR to
// out, or "*" if the CIGAR is empty.
func AppendCigar(out []byte, cigar []CigarOperation) []byte {
	if len(cigar) == 0 {
		return append(out, '*')
	}
	for _, op := range cigar {
		out = append(strconv.AppendInt(out, int64(op.Length), 10), op.Operation)
	}
	return out
}
