// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package belltower

import (
	"fmt"
	"strings"
)

// bellNames holds the standard single-character bell symbols, indexed by
// 0-based bell index. The treble is "1", the twelfth is "T".
const bellNames = "1234567890ETABCD"

// MaxBell is the largest number of bells a tower can have.
const MaxBell = len(bellNames)

// Bell identifies one rope/position within a tower. The zero value is the
// treble. Bells are comparable with ==; use the constructors rather than
// building indices by hand, so that 0- vs 1-indexing mistakes stay confined
// to this file.
type Bell struct {
	index int
}

// BellFromNumber returns the Bell with the given 1-indexed number, so
// BellFromNumber(1) is the treble.
func BellFromNumber(number int) (Bell, error) {
	return BellFromIndex(number - 1)
}

// BellFromIndex returns the Bell with the given 0-indexed position, so
// BellFromIndex(0) is the treble.
func BellFromIndex(index int) (Bell, error) {
	if index < 0 || index >= MaxBell {
		return Bell{}, fmt.Errorf("bell index %d out of range [0, %d)", index, MaxBell)
	}
	return Bell{index: index}, nil
}

// BellFromName returns the Bell named by a standard bell symbol, so
// BellFromName("1") is the treble and BellFromName("T") the twelfth.
func BellFromName(name string) (Bell, error) {
	idx := strings.Index(bellNames, name)
	if len(name) != 1 || idx < 0 {
		return Bell{}, fmt.Errorf("%q is not a known bell symbol", name)
	}
	return Bell{index: idx}, nil
}

// MustBell returns the Bell with the given 1-indexed number, panicking if it
// is out of range. Intended for constants in examples and tests.
func MustBell(number int) Bell {
	b, err := BellFromNumber(number)
	if err != nil {
		panic(err)
	}
	return b
}

// Number returns the 1-indexed number of this bell.
func (b Bell) Number() int {
	return b.index + 1
}

// Index returns the 0-indexed position of this bell.
func (b Bell) Index() int {
	return b.index
}

// String returns the single-character symbol for this bell.
func (b Bell) String() string {
	return bellNames[b.index : b.index+1]
}
