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
	"strings"
	"testing"

	"github.com/exascience/filter-cigars/utils"
)

func TestScanCigarString(t *testing.T) {
	cigar, err := ScanCigarString("5M2I3d1=4X")
	if err != nil {
		t.Fatal(err)
	}
	expected := []CigarOperation{{5, 'M'}, {2, 'I'}, {3, 'D'}, {1, '='}, {4, 'X'}}
	if len(cigar) != len(expected) {
		t.Fatalf("expected %v operations, got %v", len(expected), len(cigar))
	}
	for i, op := range expected {
		if cigar[i] != op {
			t.Errorf("operation %v: expected %v, got %v", i, op, cigar[i])
		}
	}
	if cigar, err := ScanCigarString("*"); err != nil || len(cigar) != 0 {
		t.Errorf("expected empty CIGAR for *, got %v, %v", cigar, err)
	}
	if cigar, err := ScanCigarString("2B3M"); err != nil || len(cigar) != 2 || cigar[0].Operation != 'B' {
		t.Errorf("back operation not scanned: %v, %v", cigar, err)
	}
	for _, invalid := range []string{"5", "M", "5Q", "5M3", "99999999999M"} {
		if _, err := ScanCigarString(invalid); err == nil {
			t.Errorf("expected an error for CIGAR %q", invalid)
		}
	}
	if s := string(AppendCigar(nil, nil)); s != "*" {
		t.Errorf("expected * for an empty CIGAR, got %v", s)
	}
	if s := string(AppendCigar([]byte("x"), expected)); s != "x5M2I3D1=4X" {
		t.Errorf("unexpected CIGAR string %v", s)
	}
}

func TestCigarLengths(t *testing.T) {
	cigar, _ := ScanCigarString("3S5M2I4D1N2=1X6H")
	if l := ReadLengthFromCigar(cigar); l != 3+5+2+2+1 {
		t.Errorf("unexpected read length %v", l)
	}
	if l := ReferenceLengthFromCigar(cigar); l != 5+4+1+2+1 {
		t.Errorf("unexpected reference length %v", l)
	}
}

const testSamHeader = "@HD\tVN:1.6\tSO:unsorted\n" +
	"@SQ\tSN:chr1\tLN:1000\n" +
	"@SQ\tSN:chr2\tLN:2000\n" +
	"@RG\tID:rg1\tSM:sample\n" +
	"@PG\tID:aligner\tPN:aligner\n" +
	"@CO\tfree text, with\ttabs\n"

func TestParseSamHeader(t *testing.T) {
	hdr, err := ParseSamHeader(bufio.NewReader(strings.NewReader(testSamHeader + "r1\t4\t*\t0\t0\t*\t*\t0\t0\t*\t*\n")))
	if err != nil {
		t.Fatal(err)
	}
	if len(hdr.Lines) != 6 {
		t.Fatalf("expected 6 header lines, got %v", len(hdr.Lines))
	}
	if hdr.Lines[5] != "@CO\tfree text, with\ttabs" {
		t.Errorf("comment line not preserved: %q", hdr.Lines[5])
	}
	if len(hdr.References) != 2 || hdr.References[1] != (Reference{"chr2", 2000}) {
		t.Errorf("unexpected references %v", hdr.References)
	}
	if out := string(hdr.FormatSam(nil)); out != testSamHeader {
		t.Errorf("header not reproduced verbatim:\n%v", out)
	}
}

func TestParseSamHeaderErrors(t *testing.T) {
	for _, text := range []string{
		"@SQ\tLN:1000\n",
		"@SQ\tSN:chr1\n",
		"@SQ\tSN:chr1\tLN:x\n",
		"@SQ\tSN:chr1\tSN:chr2\tLN:1\n",
		"@SQ\tSNchr1\tLN:1\n",
	} {
		if _, err := ParseSamHeader(bufio.NewReader(strings.NewReader(text))); err == nil {
			t.Errorf("expected an error for header %q", text)
		}
	}
}

func TestParseSamHeaderKeepsLinesVerbatim(t *testing.T) {
	for _, text := range []string{
		"@SQ\tSN:chr1\tLN:1000\n@HD\tVN:1.6\n",
		"@HD\tVN:1.6\n@XY\tAB:custom\n@SQ\tSN:chr1\tLN:1000\n",
		"@xy\tuser tag\n@HDVN:1.6\n@\n@SQ\tSN:chr1\tLN:1000\n",
		"@HD\tVN:1.6\r\n@SQ\tSN:chr1\tLN:1000\r\n@CO\tcrlf\r\n",
	} {
		hdr, err := ParseSamHeader(bufio.NewReader(strings.NewReader(text + "r1\t4\t*\t0\t0\t*\t*\t0\t0\t*\t*\n")))
		if err != nil {
			t.Errorf("unexpected error for header %q: %v", text, err)
			continue
		}
		if len(hdr.References) != 1 || hdr.References[0] != (Reference{"chr1", 1000}) {
			t.Errorf("unexpected references %v for header %q", hdr.References, text)
		}
		if out := string(hdr.FormatSam(nil)); out != text {
			t.Errorf("header not reproduced verbatim: expected %q, got %q", text, out)
		}
		if out := string(hdr.FormatBam(nil)); !strings.Contains(out, text) {
			t.Errorf("BAM header text differs from %q", text)
		}
	}
}

func TestFormatSamHeaderWithoutSQ(t *testing.T) {
	hdr := &Header{
		Lines:      []string{"@HD\tVN:1.6", "@CO\tc"},
		References: []Reference{{"chr1", 100}},
	}
	expected := "@HD\tVN:1.6\n@SQ\tSN:chr1\tLN:100\n@CO\tc\n"
	if out := string(hdr.FormatSam(nil)); out != expected {
		t.Errorf("expected %q, got %q", expected, out)
	}
}

func parseSamLine(t *testing.T, line string) *Alignment {
	var sc StringScanner
	sc.Reset(line)
	aln, err := sc.ParseAlignment()
	if err != nil {
		t.Fatal(err)
	}
	return aln
}

func TestParseAlignment(t *testing.T) {
	line := "read1\t99\tchr1\t100\t60\t3M1I2M\t=\t200\t150\tACGTAC\tIIIIII" +
		"\tNM:i:1\tXA:Z:some text\tXC:A:c\tXF:f:1.5\tXH:H:1AE3\tXB:B:c,1,-2\tXI:B:I,70000"
	aln := parseSamLine(t, line)
	if aln.QNAME != "read1" || aln.FLAG != 99 || aln.RNAME != "chr1" || aln.POS != 100 || aln.MAPQ != 60 {
		t.Errorf("unexpected mandatory fields %v", aln)
	}
	if aln.RNEXT != "=" || aln.PNEXT != 200 || aln.TLEN != 150 || aln.SEQ != "ACGTAC" || aln.QUAL != "IIIIII" {
		t.Errorf("unexpected mandatory fields %v", aln)
	}
	if cigar := string(AppendCigar(nil, aln.CIGAR)); cigar != "3M1I2M" {
		t.Errorf("unexpected CIGAR %v", cigar)
	}
	if len(aln.TAGS) != 7 {
		t.Fatalf("unexpected tags %v", aln.TAGS)
	}
	if nm := aln.TAGS[0]; nm.Key != utils.Intern("NM") || nm.Value.(int64) != 1 {
		t.Errorf("unexpected NM tag %v", nm)
	}
	if xb := aln.TAGS[5]; xb.Key != utils.Intern("XB") || len(xb.Value.([]int8)) != 2 || xb.Value.([]int8)[1] != -2 {
		t.Errorf("unexpected XB tag %v", xb)
	}
	out, err := aln.FormatSam(nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != line+"\n" {
		t.Errorf("alignment not reproduced:\n%v\n%v", string(out), line)
	}
}

func TestParseAlignmentErrors(t *testing.T) {
	for _, line := range []string{
		"r\t0\tchr1\t1\t60\t5M\t*\t0\t0\tACG\t*",
		"r\t0\tchr1\t1\t60\t3M\t*\t0\t0\tACG\tII",
		"r\t0\tchr1\t1\t60\t3Q\t*\t0\t0\t*\t*",
		"r\tx\tchr1\t1\t60\t3M\t*\t0\t0\t*\t*",
		"r\t0\tchr1\t1\t300\t3M\t*\t0\t0\t*\t*",
		"r\t0\tchr1\t1\t60\t3M\t*\t0\t0\t*\t*\tNM:i",
		"r\t0\tchr1\t1\t60\t3M\t*\t0\t0\t*\t*\tNM:q:1",
		"r\t0\tchr1\t1",
	} {
		var sc StringScanner
		sc.Reset(line)
		if _, err := sc.ParseAlignment(); err == nil {
			t.Errorf("expected an error for %q", line)
		}
	}
}

func TestUnmappedRead(t *testing.T) {
	aln := parseSamLine(t, "r\t4\t*\t0\t0\t*\t*\t0\t0\t*\t*")
	if !aln.IsUnmapped() || len(aln.CIGAR) != 0 {
		t.Errorf("unexpected unmapped read %v", aln)
	}
	out, err := aln.FormatSam(nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "r\t4\t*\t0\t0\t*\t*\t0\t0\t*\t*\n" {
		t.Errorf("unexpected output %q", out)
	}
}
