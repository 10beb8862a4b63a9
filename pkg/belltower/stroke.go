// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package belltower

// Stroke is the ringing phase of a bell: handstroke or backstroke,
// alternating each time the bell rings. The underlying bool matches the wire
// representation used by Ringing Room (true = handstroke).
type Stroke bool

const (
	Handstroke Stroke = true
	Backstroke Stroke = false
)

// StrokeFromIndex returns the stroke of the row at a given index; rows
// alternate starting at handstroke.
func StrokeFromIndex(index int) Stroke {
	return Stroke(index%2 == 0)
}

// IsHand reports whether this stroke is a handstroke.
func (s Stroke) IsHand() bool {
	return bool(s)
}

// IsBack reports whether this stroke is a backstroke.
func (s Stroke) IsBack() bool {
	return !bool(s)
}

// Opposite returns the other stroke.
func (s Stroke) Opposite() Stroke {
	return !s
}

// Char returns "H" or "B".
func (s Stroke) Char() string {
	if s.IsHand() {
		return "H"
	}
	return "B"
}

func (s Stroke) String() string {
	if s.IsHand() {
		return "handstroke"
	}
	return "backstroke"
}
