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
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/exascience/filter-cigars/internal"
	"github.com/exascience/filter-cigars/utils"
)

// ParseHeaderLine parses the tab-separated TAG:VALUE fields of a
// header line, after the record type code.
func (sc *StringScanner) ParseHeaderLine() utils.StringMap {
	if sc.err != nil {
		return nil
	}
	record := make(utils.StringMap)
	for sc.Len() > 0 {
		field, _ := sc.readUntil('\t')
		if len(field) < 3 || field[2] != ':' {
			sc.setErr(fmt.Errorf("invalid field %v in a SAM header line", field))
			break
		}
		if tag := field[:2]; !record.SetUniqueEntry(tag, field[3:]) {
			sc.setErr(fmt.Errorf("duplicate field tag %v in a SAM header line", tag))
			break
		}
	}
	return record
}

// readLine reads a line, including the line terminator, regardless of
// the size of the bufio.Reader's buffer. Lines longer than that buffer
// are assembled in *buf. The result is only valid until the next read
// from reader.
func readLine(reader *bufio.Reader, buf *[]byte) ([]byte, error) {
	line, err := reader.ReadSlice('\n')
	if err != bufio.ErrBufferFull {
		return line, err
	}
	*buf = append((*buf)[:0], line...)
	for err == bufio.ErrBufferFull {
		line, err = reader.ReadSlice('\n')
		*buf = append(*buf, line...)
	}
	return *buf, err
}

// trimNewline removes the trailing '\n' of a line, if any.
func trimNewline(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		return line[:n-1]
	}
	return line
}

// trimLine removes a trailing "\n" or "\r\n" of a line.
func trimLine(line []byte) []byte {
	line = trimNewline(line)
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}

// addHeaderLine adds a header line to the header as is. When
// withReferences is set, @SQ lines also extend the reference sequence
// dictionary. No other line is interpreted.
func (hdr *Header) addHeaderLine(line string, withReferences bool) error {
	if len(line) == 0 || line[0] != '@' {
		return fmt.Errorf("invalid SAM header line %q", line)
	}
	if withReferences && (line == "@SQ" || strings.HasPrefix(line, "@SQ\t")) {
		var sc StringScanner
		if fields := strings.TrimSuffix(line[3:], "\r"); len(fields) > 1 {
			sc.Reset(fields[1:])
		}
		record := sc.ParseHeaderLine()
		if err := sc.Err(); err != nil {
			return err
		}
		name, found := record["SN"]
		if !found {
			return errors.New("SN entry in a SQ header line missing")
		}
		length, err := SQLN(record)
		if err != nil {
			return fmt.Errorf("%v, in SQ header line for %v", err, name)
		}
		hdr.References = append(hdr.References, Reference{Name: name, Length: length})
	}
	hdr.Lines = append(hdr.Lines, line)
	return nil
}

// parseSamHeaderLines parses all header lines at the beginning of
// reader, leaving reader positioned at the first alignment line.
func parseSamHeaderLines(reader *bufio.Reader, withReferences bool) (*Header, error) {
	hdr := NewHeader()
	var buf []byte
	for {
		switch data, err := reader.Peek(1); {
		case err == io.EOF:
			return hdr, nil
		case err != nil:
			return nil, err
		case data[0] != '@':
			return hdr, nil
		}
		line, err := readLine(reader, &buf)
		if err != nil && err != io.EOF {
			return nil, err
		}
		if err := hdr.addHeaderLine(string(trimNewline(line)), withReferences); err != nil {
			return nil, err
		}
	}
}

// ParseSamHeader parses a complete header in a SAM file.
func ParseSamHeader(reader *bufio.Reader) (*Header, error) {
	return parseSamHeaderLines(reader, true)
}

// FormatSam appends the SAM representation of the header to out.
//
// If the header text lacks @SQ lines but the header has a reference
// sequence dictionary, as is possible for BAM files, @SQ lines are
// generated for it after a leading @HD line.
func (hdr *Header) FormatSam(out []byte) []byte {
	lines := hdr.Lines
	if len(hdr.References) > 0 && !hdr.HasSQ() {
		if len(lines) > 0 && strings.HasPrefix(lines[0], "@HD") {
			out = append(append(out, lines[0]...), '\n')
			lines = lines[1:]
		}
		for _, ref := range hdr.References {
			out = append(append(out, "@SQ\tSN:"...), ref.Name...)
			out = strconv.AppendInt(append(out, "\tLN:"...), int64(ref.Length), 10)
			out = append(out, '\n')
		}
	}
	for _, line := range lines {
		out = append(append(out, line...), '\n')
	}
	return out
}

func parseSamInt(value string) (int64, error) {
	val, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	if val < math.MinInt32 || val > math.MaxUint32 {
		return 0, fmt.Errorf("integer value %v out of range", value)
	}
	return val, nil
}

// parseNumericArray parses the value of a B optional field and
// returns it as a []int8, []uint8, []int16, []uint16, []int32,
// []uint32, or []float32.
func parseNumericArray(value string) (interface{}, error) {
	if len(value) == 0 {
		return nil, errors.New("missing numeric array type")
	}
	ntype := value[0]
	var entries []string
	switch {
	case len(value) == 1:
	case value[1] != ',':
		return nil, fmt.Errorf("invalid numeric array %v", value)
	default:
		entries = strings.Split(value[2:], ",")
	}
	var err error
	parseInt := func(entry string, bitSize int) int64 {
		v, nerr := strconv.ParseInt(entry, 10, bitSize)
		if nerr != nil && err == nil {
			err = nerr
		}
		return v
	}
	parseUint := func(entry string, bitSize int) uint64 {
		v, nerr := strconv.ParseUint(entry, 10, bitSize)
		if nerr != nil && err == nil {
			err = nerr
		}
		return v
	}
	var result interface{}
	switch ntype {
	case 'c':
		r := make([]int8, len(entries))
		for i, e := range entries {
			r[i] = int8(parseInt(e, 8))
		}
		result = r
	case 'C':
		r := make([]uint8, len(entries))
		for i, e := range entries {
			r[i] = uint8(parseUint(e, 8))
		}
		result = r
	case 's':
		r := make([]int16, len(entries))
		for i, e := range entries {
			r[i] = int16(parseInt(e, 16))
		}
		result = r
	case 'S':
		r := make([]uint16, len(entries))
		for i, e := range entries {
			r[i] = uint16(parseUint(e, 16))
		}
		result = r
	case 'i':
		r := make([]int32, len(entries))
		for i, e := range entries {
			r[i] = int32(parseInt(e, 32))
		}
		result = r
	case 'I':
		r := make([]uint32, len(entries))
		for i, e := range entries {
			r[i] = uint32(parseUint(e, 32))
		}
		result = r
	case 'f':
		r := make([]float32, len(entries))
		for i, e := range entries {
			v, nerr := strconv.ParseFloat(e, 32)
			if nerr != nil && err == nil {
				err = nerr
			}
			r[i] = float32(v)
		}
		result = r
	default:
		return nil, fmt.Errorf("invalid numeric array type %q", ntype)
	}
	return result, err
}

// parseOptionalValue parses the value of an optional field of the
// given type. Integers become int64 values, regardless of their size.
func parseOptionalValue(typebyte byte, value string) (interface{}, error) {
	switch typebyte {
	case 'A':
		if len(value) != 1 {
			return nil, fmt.Errorf("invalid character value %q", value)
		}
		return value[0], nil
	case 'i':
		return parseSamInt(value)
	case 'f':
		val, err := strconv.ParseFloat(value, 32)
		return float32(val), err
	case 'Z':
		return value, nil
	case 'H':
		if len(value)%2 != 0 {
			return nil, fmt.Errorf("odd number of digits in hex array %v", value)
		}
		result := make(ByteArray, 0, len(value)>>1)
		for i := 0; i < len(value); i += 2 {
			val, err := strconv.ParseUint(value[i:i+2], 16, 8)
			if err != nil {
				return nil, err
			}
			result = append(result, byte(val))
		}
		return result, nil
	case 'B':
		return parseNumericArray(value)
	default:
		return nil, fmt.Errorf("invalid field type %q", typebyte)
	}
}

// ParseOptionalField parses a TAG:TYPE:VALUE optional field.
func (sc *StringScanner) ParseOptionalField() (tag utils.Symbol, value interface{}) {
	if sc.err != nil {
		return nil, nil
	}
	tagname, ok := sc.readUntil(':')
	if !ok || (len(tagname) != 2) {
		sc.setErr(fmt.Errorf("invalid field tag %v in SAM alignment line", tagname))
		return nil, nil
	}
	typebyte, ok := sc.readByteUntil(':')
	if !ok {
		sc.setErr(fmt.Errorf("invalid field type for tag %v in SAM alignment line", tagname))
		return nil, nil
	}
	str, _ := sc.readUntil('\t')
	value, err := parseOptionalValue(typebyte, str)
	if err != nil {
		sc.setErr(fmt.Errorf("%v, in field %v", err, tagname))
		return nil, nil
	}
	return utils.Intern(tagname), value
}

func (sc *StringScanner) doString() string {
	if sc.err != nil {
		return ""
	}
	value, ok := sc.readUntil('\t')
	if !ok {
		sc.setErr(errors.New("missing tabulator in SAM alignment line"))
		return ""
	}
	return value
}

func (sc *StringScanner) doInt32() int32 {
	if sc.err != nil {
		return 0
	}
	value, err := strconv.ParseInt(sc.doString(), 10, 32)
	if err != nil {
		sc.setErr(err)
	}
	return int32(value)
}

func (sc *StringScanner) doUint(bitSize int) uint64 {
	if sc.err != nil {
		return 0
	}
	value, err := strconv.ParseUint(sc.doString(), 10, bitSize)
	if err != nil {
		sc.setErr(err)
	}
	return value
}

// ParseAlignment parses a SAM alignment line.
func (sc *StringScanner) ParseAlignment() (*Alignment, error) {
	aln := NewAlignment()

	aln.QNAME = sc.doString()
	aln.FLAG = uint16(sc.doUint(16))
	aln.RNAME = sc.doString()
	aln.POS = sc.doInt32()
	aln.MAPQ = byte(sc.doUint(8))
	cigar := sc.doString()
	aln.RNEXT = sc.doString()
	aln.PNEXT = sc.doInt32()
	aln.TLEN = sc.doInt32()
	aln.SEQ = sc.doString()
	aln.QUAL, _ = sc.readUntil('\t')

	for sc.Len() > 0 {
		tag, value := sc.ParseOptionalField()
		if sc.err == nil {
			aln.TAGS.Set(tag, value)
		}
	}
	if sc.err != nil {
		return nil, sc.err
	}

	var err error
	if aln.CIGAR, err = ScanCigarString(cigar); err != nil {
		return nil, err
	}
	if aln.SEQ != "*" {
		if len(aln.CIGAR) > 0 {
			if l := ReadLengthFromCigar(aln.CIGAR); int(l) != len(aln.SEQ) {
				return nil, fmt.Errorf("CIGAR %v and query sequence of read %v are of different length", cigar, aln.QNAME)
			}
		}
		if aln.QUAL != "*" && len(aln.QUAL) != len(aln.SEQ) {
			return nil, fmt.Errorf("SEQ and QUAL of read %v are of different length", aln.QNAME)
		}
	}
	return aln, nil
}

// FormatTag appends the SAM representation of an optional field to
// out, dispatching on the actual type of the given value.
func FormatTag(out []byte, tag utils.Symbol, value interface{}) ([]byte, error) {
	out = append(out, '\t')
	out = append(out, *tag...)

	switch val := value.(type) {
	case byte:
		out = append(append(out, ":A:"...), val)
	case int64:
		out = strconv.AppendInt(append(out, ":i:"...), val, 10)
	case int32:
		out = strconv.AppendInt(append(out, ":i:"...), int64(val), 10)
	case float32:
		out = strconv.AppendFloat(append(out, ":f:"...), float64(val), 'g', -1, 32)
	case string:
		out = append(append(out, ":Z:"...), val...)
	case ByteArray:
		out = append(out, ":H:"...)
		for _, b := range val {
			out = append(out, hexDigits[b>>4], hexDigits[b&0xF])
		}
	case []int8:
		out = append(out, ":B:c"...)
		for _, v := range val {
			out = strconv.AppendInt(append(out, ','), int64(v), 10)
		}
	case []uint8:
		out = append(out, ":B:C"...)
		for _, v := range val {
			out = strconv.AppendUint(append(out, ','), uint64(v), 10)
		}
	case []int16:
		out = append(out, ":B:s"...)
		for _, v := range val {
			out = strconv.AppendInt(append(out, ','), int64(v), 10)
		}
	case []uint16:
		out = append(out, ":B:S"...)
		for _, v := range val {
			out = strconv.AppendUint(append(out, ','), uint64(v), 10)
		}
	case []int32:
		out = append(out, ":B:i"...)
		for _, v := range val {
			out = strconv.AppendInt(append(out, ','), int64(v), 10)
		}
	case []uint32:
		out = append(out, ":B:I"...)
		for _, v := range val {
			out = strconv.AppendUint(append(out, ','), uint64(v), 10)
		}
	case []float32:
		out = append(out, ":B:f"...)
		for _, v := range val {
			out = strconv.AppendFloat(append(out, ','), float64(v), 'g', -1, 32)
		}
	default:
		return nil, fmt.Errorf("unknown SAM alignment TAG type %T", value)
	}

	return out, nil
}

const hexDigits = "0123456789ABCDEF"

// FormatSam appends the SAM representation of the alignment,
// including the line terminator, to out.
func (aln *Alignment) FormatSam(out []byte) ([]byte, error) {
	out = append(append(out, aln.QNAME...), '\t')
	out = append(strconv.AppendUint(out, uint64(aln.FLAG), 10), '\t')
	out = append(append(out, aln.RNAME...), '\t')
	out = append(strconv.AppendInt(out, int64(aln.POS), 10), '\t')
	out = append(strconv.AppendUint(out, uint64(aln.MAPQ), 10), '\t')
	out = append(AppendCigar(out, aln.CIGAR), '\t')
	out = append(append(out, aln.RNEXT...), '\t')
	out = append(strconv.AppendInt(out, int64(aln.PNEXT), 10), '\t')
	out = append(strconv.AppendInt(out, int64(aln.TLEN), 10), '\t')
	out = append(append(out, aln.SEQ...), '\t')
	out = append(out, aln.QUAL...)

	var err error
	for _, entry := range aln.TAGS {
		if out, err = FormatTag(out, entry.Key, entry.Value); err != nil {
			return nil, err
		}
	}

	return append(out, '\n'), nil
}

// samReader is an alignmentReader for a SAM InputFile.
type samReader struct {
	rc   io.Closer
	buf  *bufio.Reader
	line []byte
	err  error
	data interface{}
}

func (reader *samReader) Close() error {
	if internal.IsStdio(reader.rc) {
		return nil
	}
	return reader.rc.Close()
}

// ParseHeader implements the method of the alignmentReader interface.
func (reader *samReader) ParseHeader() (*Header, error) {
	return ParseSamHeader(reader.buf)
}

// Err implements the method of the pipeline.Source interface.
func (reader *samReader) Err() error {
	return reader.err
}

// Prepare implements the method of the pipeline.Source interface.
func (*samReader) Prepare(_ context.Context) (size int) {
	return -1
}

// Fetch implements the method of the pipeline.Source interface.
func (reader *samReader) Fetch(size int) (fetched int) {
	var records [][]byte
	for fetched < size && reader.err == nil {
		line, err := readLine(reader.buf, &reader.line)
		if err != nil && err != io.EOF {
			reader.err = err
			break
		}
		if record := trimLine(line); len(record) > 0 {
			if record[0] == '@' {
				reader.err = fmt.Errorf("unexpected SAM header line %q in alignment section", record)
				break
			}
			records = append(records, append([]byte(nil), record...))
			fetched++
		}
		if err == io.EOF {
			break
		}
	}
	reader.data = records
	return fetched
}

// Data implements the method of the pipeline.Source interface.
func (reader *samReader) Data() interface{} {
	return reader.data
}

// ParseAlignment implements the method of the alignmentReader interface.
func (*samReader) ParseAlignment(record []byte) (*Alignment, error) {
	var sc StringScanner
	sc.Reset(string(record))
	return sc.ParseAlignment()
}

// samWriter is an alignmentWriter for a SAM OutputFile.
type samWriter struct {
	wc  io.Closer
	buf *bufio.Writer
}

func (writer *samWriter) Close() error {
	err := writer.buf.Flush()
	if internal.IsStdio(writer.wc) {
		return err
	}
	if nerr := writer.wc.Close(); err == nil {
		err = nerr
	}
	return err
}

// FormatHeader implements the method of the alignmentWriter interface.
func (writer *samWriter) FormatHeader(hdr *Header) error {
	_, err := writer.buf.Write(hdr.FormatSam(nil))
	return err
}

// FormatAlignment implements the method of the alignmentWriter interface.
func (*samWriter) FormatAlignment(aln *Alignment, out []byte) ([]byte, error) {
	return aln.FormatSam(out)
}

func (writer *samWriter) Write(p []byte) (int, error) {
	return writer.buf.Write(p)
}

// ParseSamHeaderText parses header text embedded in another format,
// such as the text section of a BAM header. The text does not
// contribute to the reference sequence dictionary.
func ParseSamHeaderText(text []byte) (*Header, error) {
	reader := bufio.NewReader(bytes.NewReader(text))
	hdr, err := parseSamHeaderLines(reader, false)
	if err != nil {
		return nil, err
	}
	if _, err := reader.Peek(1); err != io.EOF {
		return nil, errors.New("non-header line in SAM header text")
	}
	return hdr, nil
}
