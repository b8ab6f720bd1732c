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
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/exascience/filter-cigars/internal"
	"github.com/exascience/filter-cigars/utils"
	"github.com/exascience/filter-cigars/utils/bgzf"
	"github.com/exascience/filter-cigars/utils/nibbles"
)

// bamMagic is the magic string for the BAM format. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.
const bamMagic = "BAM\x01"

var errTruncated = errors.New("truncated BAM data")

func readInt32(reader io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(reader, buf[:]); err != nil {
		if err == io.EOF {
			err = errTruncated
		}
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func readBytes(reader io.Reader, n int32) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative length %v in BAM header", n)
	}
	buf := make([]byte, int(n))
	if _, err := io.ReadFull(reader, buf); err != nil {
		if err == io.EOF {
			err = errTruncated
		}
		return nil, err
	}
	return buf, nil
}

func parseBamHeaderReferences(reader io.Reader) (references []Reference, err error) {
	nRef, err := readInt32(reader)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < nRef; i++ {
		lName, err := readInt32(reader)
		if err != nil {
			return nil, err
		}
		if lName < 1 {
			return nil, fmt.Errorf("invalid reference name length %v in BAM header", lName)
		}
		name, err := readBytes(reader, lName)
		if err != nil {
			return nil, err
		}
		lRef, err := readInt32(reader)
		if err != nil {
			return nil, err
		}
		references = append(references, Reference{
			Name:   string(name[:len(name)-1]),
			Length: lRef,
		})
	}
	return references, nil
}

// ParseBamHeader parses a complete header in a BAM file. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.
func ParseBamHeader(reader io.Reader) (*Header, error) {
	magic, err := readBytes(reader, 4)
	if err != nil {
		return nil, err
	}
	if string(magic) != bamMagic {
		return nil, errors.New("invalid BAM file header")
	}
	lText, err := readInt32(reader)
	if err != nil {
		return nil, err
	}
	text, err := readBytes(reader, lText)
	if err != nil {
		return nil, err
	}
	for i, b := range text {
		if b == 0 {
			text = text[:i]
			break
		}
	}
	hdr, err := ParseSamHeaderText(text)
	if err != nil {
		return nil, fmt.Errorf("%v, while parsing BAM header text", err)
	}
	if hdr.References, err = parseBamHeaderReferences(reader); err != nil {
		return nil, fmt.Errorf("%v, while parsing BAM reference sequence dictionary", err)
	}
	return hdr, nil
}

func appendUint16(out []byte, v uint16) []byte {
	return append(out, byte(v), byte(v>>8))
}

func appendUint32(out []byte, v uint32) []byte {
	return append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// FormatBam appends the header section of a BAM file to out. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.
//
// The header text consists of the header lines as they are; the
// reference sequence dictionary is written in binary form.
func (hdr *Header) FormatBam(out []byte) []byte {
	out = append(out, bamMagic...)
	lTextIndex := len(out)
	out = append(out, 0, 0, 0, 0)
	for _, line := range hdr.Lines {
		out = append(append(out, line...), '\n')
	}
	binary.LittleEndian.PutUint32(out[lTextIndex:lTextIndex+4], uint32(len(out)-lTextIndex-4))

	out = appendUint32(out, uint32(len(hdr.References)))
	for _, ref := range hdr.References {
		out = appendUint32(out, uint32(len(ref.Name)+1))
		out = append(append(out, ref.Name...), 0)
		out = appendUint32(out, uint32(ref.Length))
	}
	return out
}

// bamDecoder decodes the fields of a BAM alignment record. The first
// out-of-bounds access is recorded, after which all reads return zero
// values.
type bamDecoder struct {
	record []byte
	index  int
	err    error
}

func (d *bamDecoder) next(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.index+n > len(d.record) {
		d.err = fmt.Errorf("%v: field of %v bytes at offset %v exceeds record size %v", errTruncated, n, d.index, len(d.record))
		return nil
	}
	b := d.record[d.index : d.index+n]
	d.index += n
	return b
}

func (d *bamDecoder) uint8() uint8 {
	if b := d.next(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *bamDecoder) uint16() uint16 {
	if b := d.next(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (d *bamDecoder) uint32() uint32 {
	if b := d.next(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *bamDecoder) cstring() string {
	if d.err != nil {
		return ""
	}
	for end := d.index; end < len(d.record); end++ {
		if d.record[end] == 0 {
			s := string(d.record[d.index:end])
			d.index = end + 1
			return s
		}
	}
	d.err = errors.New("missing NUL byte in an optional string field in a BAM alignment record")
	return ""
}

// numericArray parses the payload of a B optional field and returns it
// as a []int8, []uint8, []int16, []uint16, []int32, []uint32, or
// []float32. See http://samtools.github.io/hts-specs/SAMv1.pdf - Section
// 4.2.4.
func (d *bamDecoder) numericArray() interface{} {
	ntype := d.uint8()
	count := int(int32(d.uint32()))
	if d.err != nil {
		return nil
	}
	if count < 0 || count > len(d.record) {
		d.err = fmt.Errorf("invalid numeric array length %v in a BAM alignment record", count)
		return nil
	}
	switch ntype {
	case 'c':
		result := make([]int8, count)
		for i := range result {
			result[i] = int8(d.uint8())
		}
		return result
	case 'C':
		result := make([]uint8, count)
		copy(result, d.next(count))
		return result
	case 's':
		result := make([]int16, count)
		for i := range result {
			result[i] = int16(d.uint16())
		}
		return result
	case 'S':
		result := make([]uint16, count)
		for i := range result {
			result[i] = d.uint16()
		}
		return result
	case 'i':
		result := make([]int32, count)
		for i := range result {
			result[i] = int32(d.uint32())
		}
		return result
	case 'I':
		result := make([]uint32, count)
		for i := range result {
			result[i] = d.uint32()
		}
		return result
	case 'f':
		result := make([]float32, count)
		for i := range result {
			result[i] = math.Float32frombits(d.uint32())
		}
		return result
	default:
		d.err = fmt.Errorf("invalid subtype %q in a numeric array in a BAM alignment record", ntype)
		return nil
	}
}

// optionalField parses an optional field value of the given type. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.4.
func (d *bamDecoder) optionalField(typebyte byte) interface{} {
	switch typebyte {
	case 'A':
		return d.uint8()
	case 'c':
		return int64(int8(d.uint8()))
	case 'C':
		return int64(d.uint8())
	case 's':
		return int64(int16(d.uint16()))
	case 'S':
		return int64(d.uint16())
	case 'i':
		return int64(int32(d.uint32()))
	case 'I':
		return int64(d.uint32())
	case 'f':
		return math.Float32frombits(d.uint32())
	case 'Z':
		return d.cstring()
	case 'H':
		hex := d.cstring()
		if len(hex)%2 != 0 {
			d.err = fmt.Errorf("odd number of digits in hex array %v", hex)
			return nil
		}
		value, err := parseOptionalValue('H', hex)
		if err != nil && d.err == nil {
			d.err = err
		}
		return value
	case 'B':
		return d.numericArray()
	default:
		if d.err == nil {
			d.err = fmt.Errorf("invalid type %q of an optional field in a BAM alignment record", typebyte)
		}
		return nil
	}
}

var (
	cg             = utils.Intern("CG")
	seqBases       = []byte("=ACMGRSVTWYHKDBN")
	seqBaseIndexes [256]byte
	cigarMap       [256]byte
)

func init() {
	for i := range seqBaseIndexes {
		seqBaseIndexes[i] = 15
	}
	for i, b := range seqBases {
		seqBaseIndexes[b] = byte(i)
		if 'A' <= b && b <= 'Z' {
			seqBaseIndexes[b+'a'-'A'] = byte(i)
		}
	}
	for i := 0; i < len(CigarOperations); i++ {
		cigarMap[CigarOperations[i]] = byte(i)
	}
}

func decodeCigar(encoded uint32) (CigarOperation, error) {
	code := int(encoded & 0xF)
	if code >= len(CigarOperations) {
		return CigarOperation{}, fmt.Errorf("invalid CIGAR operation code %v in a BAM alignment record", code)
	}
	return CigarOperation{Length: int32(encoded >> 4), Operation: CigarOperations[code]}, nil
}

func encodeCigar(op CigarOperation) uint32 {
	return uint32(op.Length)<<4 | uint32(cigarMap[op.Operation])
}

const fixedBamFieldsSize = 32

func referenceName(refID int32, references []Reference) (string, error) {
	switch {
	case refID == -1:
		return "*", nil
	case refID < 0 || int(refID) >= len(references):
		return "", fmt.Errorf("invalid reference id %v in a BAM alignment record", refID)
	default:
		return references[refID].Name, nil
	}
}

// parseBamAlignment parses a read alignment record in a BAM file and
// returns a freshly allocated alignment. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Sections 4.2.
func parseBamAlignment(record []byte, references []Reference) (*Alignment, error) {
	if len(record) < fixedBamFieldsSize {
		return nil, fmt.Errorf("BAM alignment record of %v bytes is too short", len(record))
	}
	d := bamDecoder{record: record}
	aln := new(Alignment)

	refID := int32(d.uint32())
	aln.POS = int32(d.uint32()) + 1
	lReadName := int(d.uint8())
	aln.MAPQ = d.uint8()
	_ = d.uint16() // bin
	nCigarOp := int(d.uint16())
	aln.FLAG = d.uint16()
	lSeq := int(int32(d.uint32()))
	nextRefID := int32(d.uint32())
	aln.PNEXT = int32(d.uint32()) + 1
	aln.TLEN = int32(d.uint32())

	var err error
	if aln.RNAME, err = referenceName(refID, references); err != nil {
		return nil, err
	}
	if nextRefID == refID && refID >= 0 {
		aln.RNEXT = "="
	} else if aln.RNEXT, err = referenceName(nextRefID, references); err != nil {
		return nil, err
	}
	if lReadName < 1 {
		return nil, errors.New("missing read name in a BAM alignment record")
	}
	if lSeq < 0 {
		return nil, fmt.Errorf("negative sequence length %v in a BAM alignment record", lSeq)
	}

	if name := d.next(lReadName); name != nil {
		aln.QNAME = string(name[:lReadName-1])
	}

	aln.CIGAR = make([]CigarOperation, nCigarOp)
	for i := range aln.CIGAR {
		if aln.CIGAR[i], err = decodeCigar(d.uint32()); err != nil {
			return nil, err
		}
	}

	if packed := d.next((lSeq + 1) >> 1); packed != nil {
		if lSeq == 0 {
			aln.SEQ = "*"
		} else {
			seq := make([]byte, lSeq)
			nib := nibbles.Wrap(lSeq, packed)
			for i := range seq {
				seq[i] = seqBases[nib.Get(i)]
			}
			aln.SEQ = string(seq)
		}
	}

	if qual := d.next(lSeq); qual != nil {
		if lSeq == 0 || qual[0] == 0xFF {
			aln.QUAL = "*"
		} else {
			phred := make([]byte, lSeq)
			for i, q := range qual {
				phred[i] = q + 33
			}
			aln.QUAL = string(phred)
		}
	}

	for d.err == nil && d.index < len(record) {
		tagName := d.next(2)
		typebyte := d.uint8()
		value := d.optionalField(typebyte)
		if d.err != nil {
			break
		}
		tag := utils.Intern(string(tagName))
		if tag == cg && typebyte == 'B' {
			if cigars, ok := value.([]uint32); ok && len(aln.CIGAR) > 0 {
				if op := aln.CIGAR[0]; op.Operation == 'S' && int(op.Length) == lSeq {
					aln.CIGAR = aln.CIGAR[:0]
					for _, encoded := range cigars {
						op, err := decodeCigar(encoded)
						if err != nil {
							return nil, err
						}
						aln.CIGAR = append(aln.CIGAR, op)
					}
					continue
				}
			}
		}
		aln.TAGS = append(aln.TAGS, utils.SmallMapEntry{Key: tag, Value: value})
	}
	if d.err != nil {
		return nil, fmt.Errorf("%v, in BAM alignment record %v", d.err, aln.QNAME)
	}

	return aln, nil
}

// reg2bin computes the BAM bin for the zero-based, half-open interval
// [beg, end). See http://samtools.github.io/hts-specs/SAMv1.pdf -
// Section 5.3.
func reg2bin(beg, end int32) uint16 {
	end--
	if beg>>14 == end>>14 {
		return uint16(((1<<15)-1)/7 + (beg >> 14))
	}
	if beg>>17 == end>>17 {
		return uint16(((1<<12)-1)/7 + (beg >> 17))
	}
	if beg>>20 == end>>20 {
		return uint16(((1<<9)-1)/7 + (beg >> 20))
	}
	if beg>>23 == end>>23 {
		return uint16(((1<<6)-1)/7 + (beg >> 23))
	}
	if beg>>26 == end>>26 {
		return uint16(((1<<3)-1)/7 + (beg >> 26))
	}
	return 0
}

func (aln *Alignment) bin() uint16 {
	beg := aln.POS - 1
	end := beg + 1
	if !aln.IsUnmapped() {
		if length := ReferenceLengthFromCigar(aln.CIGAR); length > 0 {
			end = beg + length
		}
	}
	return reg2bin(beg, end)
}

// formatBamTag appends the BAM representation of an optional field
// to out, dispatching on the actual type of the given value. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.4.
//
// The following types are accepted: byte (A), int64 or int32 (c, C,
// s, S, i, I, whichever is smallest), float32 (f), string (Z),
// ByteArray (H), []int8 (B:c), []uint8 (B:C), []int16 (B:s), []uint16
// (B:S), []int32 (B:i), []uint32 (B:I), and []float32 (B:f).
func formatBamTag(out []byte, tag utils.Symbol, value interface{}) ([]byte, error) {
	out = append(out, *tag...)

	switch val := value.(type) {
	case byte:
		out = append(out, 'A', val)
	case int32:
		return formatBamInteger(out, int64(val))
	case int64:
		return formatBamInteger(out, val)
	case float32:
		out = appendUint32(append(out, 'f'), math.Float32bits(val))
	case string:
		out = append(append(append(out, 'Z'), val...), 0)
	case ByteArray:
		out = append(out, 'H')
		for _, b := range val {
			out = append(out, hexDigits[b>>4], hexDigits[b&0xF])
		}
		out = append(out, 0)
	case []int8:
		out = appendUint32(append(out, 'B', 'c'), uint32(len(val)))
		for _, v := range val {
			out = append(out, byte(v))
		}
	case []uint8:
		out = appendUint32(append(out, 'B', 'C'), uint32(len(val)))
		out = append(out, val...)
	case []int16:
		out = appendUint32(append(out, 'B', 's'), uint32(len(val)))
		for _, v := range val {
			out = appendUint16(out, uint16(v))
		}
	case []uint16:
		out = appendUint32(append(out, 'B', 'S'), uint32(len(val)))
		for _, v := range val {
			out = appendUint16(out, v)
		}
	case []int32:
		out = appendUint32(append(out, 'B', 'i'), uint32(len(val)))
		for _, v := range val {
			out = appendUint32(out, uint32(v))
		}
	case []uint32:
		out = appendUint32(append(out, 'B', 'I'), uint32(len(val)))
		for _, v := range val {
			out = appendUint32(out, v)
		}
	case []float32:
		out = appendUint32(append(out, 'B', 'f'), uint32(len(val)))
		for _, v := range val {
			out = appendUint32(out, math.Float32bits(v))
		}
	default:
		return nil, fmt.Errorf("unknown BAM alignment TAG type %T", value)
	}

	return out, nil
}

func formatBamInteger(out []byte, val int64) ([]byte, error) {
	switch {
	case val < math.MinInt32:
		return nil, fmt.Errorf("integer value %v too small in BAM alignment tag", val)
	case val < math.MinInt16:
		return appendUint32(append(out, 'i'), uint32(val)), nil
	case val < math.MinInt8:
		return appendUint16(append(out, 's'), uint16(val)), nil
	case val < 0:
		return append(out, 'c', byte(val)), nil
	case val <= math.MaxUint8:
		return append(out, 'C', byte(val)), nil
	case val <= math.MaxUint16:
		return appendUint16(append(out, 'S'), uint16(val)), nil
	case val <= math.MaxUint32:
		return appendUint32(append(out, 'I'), uint32(val)), nil
	default:
		return nil, fmt.Errorf("integer value %v too large in BAM alignment tag", val)
	}
}

// formatBamAlignment appends a BAM file read alignment record,
// including its block size, to out. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.
func formatBamAlignment(aln *Alignment, out []byte, dictTable map[string]int32) ([]byte, error) {
	blockSizeIndex := len(out)
	out = append(out, 0, 0, 0, 0)

	refID, ok := dictTable[aln.RNAME]
	if !ok {
		return nil, fmt.Errorf("unknown reference name %v for read %v", aln.RNAME, aln.QNAME)
	}
	nextRefID := refID
	if aln.RNEXT != "=" {
		if nextRefID, ok = dictTable[aln.RNEXT]; !ok {
			return nil, fmt.Errorf("unknown mate reference name %v for read %v", aln.RNEXT, aln.QNAME)
		}
	}
	if len(aln.QNAME)+1 > math.MaxUint8 {
		return nil, fmt.Errorf("read name %v too long for BAM", aln.QNAME)
	}

	var seqLength int
	if aln.SEQ != "*" {
		seqLength = len(aln.SEQ)
	}
	if aln.QUAL != "*" && len(aln.QUAL) != seqLength {
		return nil, fmt.Errorf("SEQ and QUAL of read %v are of different length", aln.QNAME)
	}

	cigar := aln.CIGAR
	longCigar := len(cigar) > math.MaxUint16
	if longCigar {
		cigar = []CigarOperation{
			{Length: int32(seqLength), Operation: 'S'},
			{Length: ReferenceLengthFromCigar(aln.CIGAR), Operation: 'N'},
		}
	}

	out = appendUint32(out, uint32(refID))
	out = appendUint32(out, uint32(aln.POS-1))
	out = append(out, uint8(len(aln.QNAME)+1), aln.MAPQ)
	out = appendUint16(out, aln.bin())
	out = appendUint16(out, uint16(len(cigar)))
	out = appendUint16(out, aln.FLAG)
	out = appendUint32(out, uint32(seqLength))
	out = appendUint32(out, uint32(nextRefID))
	out = appendUint32(out, uint32(aln.PNEXT-1))
	out = appendUint32(out, uint32(aln.TLEN))
	out = append(append(out, aln.QNAME...), 0)

	for _, op := range cigar {
		out = appendUint32(out, encodeCigar(op))
	}

	seqIndex := len(out)
	for i := 0; i < (seqLength+1)>>1; i++ {
		out = append(out, 0)
	}
	nib := nibbles.Wrap(seqLength, out[seqIndex:])
	for i := 0; i < seqLength; i++ {
		nib.Set(i, seqBaseIndexes[aln.SEQ[i]])
	}

	if aln.QUAL == "*" {
		for i := 0; i < seqLength; i++ {
			out = append(out, 0xFF)
		}
	} else {
		for i := 0; i < seqLength; i++ {
			out = append(out, aln.QUAL[i]-33)
		}
	}

	var err error
	for _, entry := range aln.TAGS {
		if out, err = formatBamTag(out, entry.Key, entry.Value); err != nil {
			return nil, err
		}
	}

	if longCigar {
		out = appendUint32(append(out, 'C', 'G', 'B', 'I'), uint32(len(aln.CIGAR)))
		for _, op := range aln.CIGAR {
			out = appendUint32(out, encodeCigar(op))
		}
	}

	binary.LittleEndian.PutUint32(out[blockSizeIndex:blockSizeIndex+4], uint32(len(out)-blockSizeIndex-4))
	return out, nil
}

// maxBamRecordSize guards against corrupt block sizes.
const maxBamRecordSize = 1 << 28

// bamReader is an alignmentReader for a BAM InputFile.
type bamReader struct {
	rc     io.Closer
	bgzf   *bgzf.Reader
	buf    *bufio.Reader
	header *Header
	err    error
	data   interface{}
}

// Close the BAM input file.
func (reader *bamReader) Close() error {
	err := reader.bgzf.Close()
	if internal.IsStdio(reader.rc) {
		return err
	}
	if nerr := reader.rc.Close(); err == nil {
		err = nerr
	}
	return err
}

// ParseHeader implements the method of the alignmentReader interface.
func (reader *bamReader) ParseHeader() (hdr *Header, err error) {
	if reader.header, err = ParseBamHeader(reader.buf); err != nil {
		return nil, err
	}
	return reader.header, nil
}

// Err implements the method of the pipeline.Source interface.
func (reader *bamReader) Err() error {
	return reader.err
}

// Prepare implements the method of the pipeline.Source interface.
func (*bamReader) Prepare(_ context.Context) (size int) {
	return -1
}

// Fetch implements the method of the pipeline.Source interface.
func (reader *bamReader) Fetch(size int) (fetched int) {
	var records [][]byte
	var blockSize [4]byte
	for fetched < size && reader.err == nil {
		if _, err := io.ReadFull(reader.buf, blockSize[:]); err != nil {
			if err != io.EOF {
				reader.err = fmt.Errorf("%v, while reading a BAM alignment record", err)
			}
			break
		}
		recordSize := int32(binary.LittleEndian.Uint32(blockSize[:]))
		if recordSize < fixedBamFieldsSize || recordSize > maxBamRecordSize {
			reader.err = fmt.Errorf("invalid BAM alignment record size %v", recordSize)
			break
		}
		record := make([]byte, int(recordSize))
		if _, err := io.ReadFull(reader.buf, record); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			reader.err = fmt.Errorf("%v, while reading a BAM alignment record", err)
			break
		}
		records = append(records, record)
		fetched++
	}
	reader.data = records
	return fetched
}

// Data implements the method of the pipeline.Source interface.
func (reader *bamReader) Data() interface{} {
	return reader.data
}

// ParseAlignment implements the method of the alignmentReader interface.
func (reader *bamReader) ParseAlignment(record []byte) (*Alignment, error) {
	aln, err := parseBamAlignment(record, reader.header.References)
	if err != nil {
		return nil, err
	}
	aln.raw = record
	aln.rawHeader = reader.header
	return aln, nil
}

// bamWriter is an alignmentWriter for a BAM OutputFile.
type bamWriter struct {
	header    *Header
	dictTable map[string]int32
	bgzf      *bgzf.Writer
	wc        io.Closer
}

func (writer *bamWriter) Close() error {
	err := writer.bgzf.Close()
	if internal.IsStdio(writer.wc) {
		return err
	}
	if nerr := writer.wc.Close(); err == nil {
		err = nerr
	}
	return err
}

// FormatHeader implements the method of the alignmentWriter interface.
func (writer *bamWriter) FormatHeader(hdr *Header) error {
	dictTable := map[string]int32{"*": -1}
	for index, ref := range hdr.References {
		dictTable[ref.Name] = int32(index)
	}
	writer.header = hdr
	writer.dictTable = dictTable
	_, err := writer.Write(hdr.FormatBam(nil))
	return err
}

// FormatAlignment implements the method of the alignmentWriter interface.
//
// Alignments read from a BAM file with the same header are copied
// byte for byte.
func (writer *bamWriter) FormatAlignment(aln *Alignment, out []byte) ([]byte, error) {
	if aln.raw != nil && aln.rawHeader == writer.header {
		out = appendUint32(out, uint32(len(aln.raw)))
		return append(out, aln.raw...), nil
	}
	return formatBamAlignment(aln, out, writer.dictTable)
}

func (writer *bamWriter) Write(p []byte) (int, error) {
	return writer.bgzf.Write(p)
}
