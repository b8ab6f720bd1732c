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
	"github.com/exascience/pargo/sync"

	"github.com/exascience/filter-cigars/internal"
)

// A Symbol is the canonical pointer for a string: two symbols are
// equal if and only if the strings they point to are equal.
type Symbol *string

type symbolKey string

func (key symbolKey) Hash() uint64 {
	return internal.StringHash(string(key))
}

var symbols = sync.NewMap(0)

// Intern returns the Symbol for s. Tags of optional fields are
// interned so that they can be compared by pointer.
//
// Intern is safe for concurrent use.
func Intern(s string) Symbol {
	symbol, _ := symbols.LoadOrStore(symbolKey(s), Symbol(&s))
	return symbol.(Symbol)
}
