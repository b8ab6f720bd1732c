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

// A StringMap holds the TAG:VALUE fields of a SAM header line.
type StringMap map[string]string

// SetUniqueEntry adds the field unless the tag is already present,
// and reports whether it did.
func (m StringMap) SetUniqueEntry(key, value string) bool {
	if _, found := m[key]; found {
		return false
	}
	m[key] = value
	return true
}

// SmallMapEntry is one optional field of an alignment.
type SmallMapEntry struct {
	Key   Symbol
	Value interface{}
}

// A SmallMap holds the optional fields of an alignment in their
// original order.
type SmallMap []SmallMapEntry

// Set replaces the value for the given tag, or appends a new field.
func (m *SmallMap) Set(key Symbol, value interface{}) {
	entries := *m
	for i := range entries {
		if entries[i].Key == key {
			entries[i].Value = value
			return
		}
	}
	*m = append(entries, SmallMapEntry{Key: key, Value: value})
}
