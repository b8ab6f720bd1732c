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

package utils

import (
	"strconv"
	"testing"

	"github.com/exascience/pargo/parallel"
)

func TestIntern(t *testing.T) {
	const n = 1000
	symbols := make([]Symbol, 4*n)
	parallel.Range(0, len(symbols), 0, func(low, high int) {
		for i := low; i < high; i++ {
			symbols[i] = Intern("tag" + strconv.Itoa(i%n))
		}
	})
	for i, symbol := range symbols {
		if *symbol != "tag"+strconv.Itoa(i%n) {
			t.Fatalf("unexpected symbol %v at %v", *symbol, i)
		}
		if symbol != symbols[i%n] {
			t.Fatalf("symbol %v not unique", *symbol)
		}
	}
	if Intern("NM") == Intern("MD") {
		t.Error("different strings share a symbol")
	}
}

func TestSmallMap(t *testing.T) {
	var m SmallMap
	nm, md := Intern("NM"), Intern("MD")
	m.Set(nm, int64(1))
	m.Set(md, "10A5")
	m.Set(nm, int64(2))
	if len(m) != 2 || m[0].Key != nm || m[1].Key != md {
		t.Fatalf("unexpected entries %v", m)
	}
	if m[0].Value.(int64) != 2 || m[1].Value.(string) != "10A5" {
		t.Errorf("unexpected values %v, %v", m[0].Value, m[1].Value)
	}
}

func TestStringMap(t *testing.T) {
	m := make(StringMap)
	if !m.SetUniqueEntry("SN", "chr1") {
		t.Error("first entry rejected")
	}
	if m.SetUniqueEntry("SN", "chr2") {
		t.Error("duplicate entry accepted")
	}
	if m["SN"] != "chr1" {
		t.Errorf("entry overwritten: %v", m["SN"])
	}
}
