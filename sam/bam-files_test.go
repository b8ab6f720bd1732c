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
	"compress/flate"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/biogo/hts/bam"

	"github.com/exascience/filter-cigars/utils/bgzf"
)

var testReferences = []Reference{{"chr1", 1000}, {"chr2", 2000}}

func testDictTable() map[string]int32 {
	dictTable := map[string]int32{"*": -1}
	for index, ref := range testReferences {
		dictTable[ref.Name] = int32(index)
	}
	return dictTable
}

func TestBamAlignmentRoundTrip(t *testing.T) {
	lines := []string{
		"read1\t99\tchr1\t100\t60\t3M1I2M\t=\t200\t150\tACGTAC\tIIIIII" +
			"\tNM:i:1\tXA:Z:some text\tXC:A:c\tXF:f:1.5\tXH:H:1AE3\tXB:B:c,1,-2\tXI:B:I,70000\tXN:i:-40000",
		"read2\t147\tchr2\t1\t0\t2S4M\tchr1\t5\t-6\tNNRYAC\t*",
		"read3\t4\t*\t0\t0\t*\t*\t0\t0\t*\t*",
	}
	for _, line := range lines {
		aln := parseSamLine(t, line)
		record, err := formatBamAlignment(aln, nil, testDictTable())
		if err != nil {
			t.Fatal(err)
		}
		if int(record[0])|int(record[1])<<8 != len(record)-4 {
			t.Errorf("invalid block size for %v", aln.QNAME)
		}
		parsed, err := parseBamAlignment(record[4:], testReferences)
		if err != nil {
			t.Fatal(err)
		}
		out, err := parsed.FormatSam(nil)
		if err != nil {
			t.Fatal(err)
		}
		if string(out) != line+"\n" {
			t.Errorf("BAM round trip failed:\n%v\n%v", string(out), line)
		}
	}
}

func TestLongCigar(t *testing.T) {
	aln := NewAlignment()
	aln.QNAME = "long"
	aln.RNAME = "chr1"
	aln.POS = 1
	for i := 0; i < 35000; i++ {
		aln.CIGAR = append(aln.CIGAR, CigarOperation{1, 'M'}, CigarOperation{1, 'I'})
	}
	record, err := formatBamAlignment(aln, nil, testDictTable())
	if err != nil {
		t.Fatal(err)
	}
	if nCigarOp := int(record[4+12]) | int(record[4+13])<<8; nCigarOp != 2 {
		t.Errorf("expected a placeholder CIGAR of 2 operations, got %v", nCigarOp)
	}
	parsed, err := parseBamAlignment(record[4:], testReferences)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed.CIGAR) != len(aln.CIGAR) {
		t.Fatalf("expected %v CIGAR operations, got %v", len(aln.CIGAR), len(parsed.CIGAR))
	}
	if parsed.CIGAR[1] != (CigarOperation{1, 'I'}) {
		t.Errorf("unexpected CIGAR operation %v", parsed.CIGAR[1])
	}
	if len(parsed.TAGS) != 0 {
		t.Errorf("CG tag not consumed: %v", parsed.TAGS)
	}
}

func TestFormatBamAlignmentErrors(t *testing.T) {
	aln := parseSamLine(t, "r\t0\tchr3\t1\t60\t3M\t*\t0\t0\t*\t*")
	if _, err := formatBamAlignment(aln, nil, testDictTable()); err == nil {
		t.Error("expected an error for an unknown reference")
	}
	aln = parseSamLine(t, "r\t0\tchr1\t1\t60\t3M\tchr3\t0\t0\t*\t*")
	if _, err := formatBamAlignment(aln, nil, testDictTable()); err == nil {
		t.Error("expected an error for an unknown mate reference")
	}
}

func TestParseBamAlignmentErrors(t *testing.T) {
	aln := parseSamLine(t, "read1\t0\tchr2\t100\t60\t3M\t*\t0\t0\tACG\tIII\tXA:Z:text")
	record, err := formatBamAlignment(aln, nil, testDictTable())
	if err != nil {
		t.Fatal(err)
	}
	record = record[4:]
	if _, err := parseBamAlignment(record[:20], testReferences); err == nil {
		t.Error("expected an error for a short record")
	}
	if _, err := parseBamAlignment(record[:len(record)-3], testReferences); err == nil {
		t.Error("expected an error for a truncated record")
	}
	if _, err := parseBamAlignment(record, testReferences[:1]); err == nil {
		t.Error("expected an error for an invalid reference id")
	}
	corrupt := append([]byte(nil), record...)
	corrupt[fixedBamFieldsSize+len("read1\x00")] |= 0xF
	if _, err := parseBamAlignment(corrupt, testReferences); err == nil {
		t.Error("expected an error for an invalid CIGAR operation code")
	}
}

func TestBamHeaderRoundTrip(t *testing.T) {
	hdr := &Header{
		Lines:      []string{"@SQ\tSN:chr1\tLN:1000", "@HD\tVN:1.6", "@SQ\tSN:chr2\tLN:2000", "@XY\tAB:custom", "@CO\tcomment\r"},
		References: testReferences,
	}
	parsed, err := ParseBamHeader(bytes.NewReader(hdr.FormatBam(nil)))
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed.Lines) != len(hdr.Lines) {
		t.Fatalf("expected %v header lines, got %v", len(hdr.Lines), len(parsed.Lines))
	}
	for i, line := range hdr.Lines {
		if parsed.Lines[i] != line {
			t.Errorf("header line %v: expected %q, got %q", i, line, parsed.Lines[i])
		}
	}
	if len(parsed.References) != 2 || parsed.References[1] != testReferences[1] {
		t.Errorf("unexpected references %v", parsed.References)
	}
	if _, err := ParseBamHeader(bytes.NewReader([]byte("BAM\x02"))); err == nil {
		t.Error("expected an error for an invalid magic string")
	}
	if _, err := ParseBamHeader(bytes.NewReader(hdr.FormatBam(nil)[:30])); err == nil {
		t.Error("expected an error for a truncated header")
	}
}

const testBamHeader = "@HD\tVN:1.4\tSO:unsorted\n@SQ\tSN:chr1\tLN:1000\n@SQ\tSN:chr2\tLN:2000\n"

var testSamAlignments = []string{
	"r1\t0\tchr1\t10\t60\t5M\t*\t0\t0\t*\t*",
	"r2\t0\tchr1\t20\t60\t2I3M\t*\t0\t0\t*\t*\tNM:i:2",
	"r3\t16\tchr2\t30\t60\t3M2D4M\t*\t0\t0\tACGTACG\tIIIIIII",
	"r4\t4\t*\t0\t0\t*\t*\t0\t0\t*\t*",
}

func writeTestFile(t *testing.T, name string, toBam bool, alignments []string) {
	hdr, err := ParseSamHeader(bufio.NewReader(bytes.NewReader([]byte(testBamHeader))))
	if err != nil {
		t.Fatal(err)
	}
	output, err := Create(name, toBam, flate.DefaultCompression, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := output.FormatHeader(hdr); err != nil {
		t.Fatal(err)
	}
	var buf []byte
	for _, line := range alignments {
		if buf, err = output.FormatAlignment(parseSamLine(t, line), buf); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := output.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := output.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestBamFileReadByOtherTools(t *testing.T) {
	name := filepath.Join(t.TempDir(), "test.bam")
	writeTestFile(t, name, true, testSamAlignments)

	file, err := os.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	reader, err := bam.NewReader(file, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	refs := reader.Header().Refs()
	if len(refs) != 2 || refs[0].Name() != "chr1" || refs[1].Len() != 2000 {
		t.Errorf("unexpected references %v", refs)
	}
	expected := []struct{ name, cigar string }{{"r1", "5M"}, {"r2", "2I3M"}, {"r3", "3M2D4M"}, {"r4", ""}}
	for _, exp := range expected {
		record, err := reader.Read()
		if err != nil {
			t.Fatal(err)
		}
		if record.Name != exp.name {
			t.Errorf("expected read %v, got %v", exp.name, record.Name)
		}
		if exp.cigar != "" && record.Cigar.String() != exp.cigar {
			t.Errorf("read %v: expected CIGAR %v, got %v", exp.name, exp.cigar, record.Cigar.String())
		}
	}
	if _, err := reader.Read(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func readAll(t *testing.T, name string) (*Header, []*Alignment) {
	input, err := Open(name, 2)
	if err != nil {
		t.Fatal(err)
	}
	sam := NewSam()
	if err := input.RunPipeline(sam, nil); err != nil {
		t.Fatal(err)
	}
	if err := input.Close(); err != nil {
		t.Fatal(err)
	}
	return sam.Header, sam.Alignments
}

func TestOpenDetectsFormat(t *testing.T) {
	dir := t.TempDir()
	bamName := filepath.Join(dir, "test.bam")
	writeTestFile(t, bamName, true, testSamAlignments)
	datName := filepath.Join(dir, "test.dat")
	if err := os.Rename(bamName, datName); err != nil {
		t.Fatal(err)
	}
	samName := filepath.Join(dir, "test.sam")
	writeTestFile(t, samName, false, testSamAlignments)
	gzName := filepath.Join(dir, "test.sam.gz")
	samData, err := ioutil.ReadFile(samName)
	if err != nil {
		t.Fatal(err)
	}
	gzFile, err := os.Create(gzName)
	if err != nil {
		t.Fatal(err)
	}
	w, err := bgzf.NewWriter(gzFile, flate.BestSpeed, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(samData); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gzFile.Close(); err != nil {
		t.Fatal(err)
	}

	for _, test := range []struct {
		name string
		bam  bool
	}{{datName, true}, {samName, false}, {gzName, false}} {
		name := test.name
		input, err := Open(name, 1)
		if err != nil {
			t.Fatal(err)
		}
		if input.IsBam() != test.bam {
			t.Errorf("%v: expected IsBam to be %v", name, test.bam)
		}
		if err := input.Close(); err != nil {
			t.Fatal(err)
		}
		hdr, alns := readAll(t, name)
		if len(hdr.Lines) != 3 || len(hdr.References) != 2 {
			t.Errorf("%v: unexpected header %v", name, hdr)
		}
		if len(alns) != len(testSamAlignments) {
			t.Fatalf("%v: expected %v alignments, got %v", name, len(testSamAlignments), len(alns))
		}
		for i, line := range testSamAlignments {
			out, err := alns[i].FormatSam(nil)
			if err != nil {
				t.Fatal(err)
			}
			if string(out) != line+"\n" {
				t.Errorf("%v: expected %q, got %q", name, line, out)
			}
		}
	}
}

func TestOpenEmptyFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "empty.sam")
	if err := ioutil.WriteFile(name, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(name, 1); err == nil {
		t.Error("expected an error for an empty file")
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.bam"), 1); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func decompressFile(t *testing.T, name string) []byte {
	file, err := os.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	r, err := bgzf.NewReader(bufio.NewReader(file), 1)
	if err != nil {
		t.Fatal(err)
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	return data
}

func TestBamPassthrough(t *testing.T) {
	dir := t.TempDir()
	inName := filepath.Join(dir, "in.bam")
	outName := filepath.Join(dir, "out.bam")
	writeTestFile(t, inName, true, testSamAlignments)

	input, err := Open(inName, 2)
	if err != nil {
		t.Fatal(err)
	}
	output, err := Create(outName, input.IsBam(), flate.BestCompression, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := input.RunPipeline(output, nil); err != nil {
		t.Fatal(err)
	}
	if err := input.Close(); err != nil {
		t.Fatal(err)
	}
	if err := output.Close(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressFile(t, inName), decompressFile(t, outName)) {
		t.Error("BAM content not copied byte for byte")
	}
}

func TestTruncatedBamFile(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "test.bam")
	writeTestFile(t, name, true, testSamAlignments)
	data := decompressFile(t, name)

	truncated := filepath.Join(dir, "truncated.bam")
	file, err := os.Create(truncated)
	if err != nil {
		t.Fatal(err)
	}
	w, err := bgzf.NewWriter(file, flate.BestSpeed, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data[:len(data)-5]); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := file.Close(); err != nil {
		t.Fatal(err)
	}

	input, err := Open(truncated, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer input.Close()
	if err := input.RunPipeline(NewSam(), nil); err == nil {
		t.Error("expected an error for a truncated BAM file")
	}
}
