// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package belltower

import "fmt"

// BellType is the appearance and sound of the bells in a tower: tower bells
// or hand bells. It affects display and audio only, not ringing logic.
type BellType bool

const (
	TowerBells BellType = false
	HandBells  BellType = true
)

// BellTypeFromWireName parses the name Ringing Room uses on the wire
// ("Tower" or "Hand").
func BellTypeFromWireName(name string) (BellType, error) {
	switch name {
	case "Tower":
		return TowerBells, nil
	case "Hand":
		return HandBells, nil
	default:
		return TowerBells, fmt.Errorf("unknown bell type %q", name)
	}
}

// WireName returns the name Ringing Room expects on the wire.
func (bt BellType) WireName() string {
	if bt == HandBells {
		return "Hand"
	}
	return "Tower"
}

// IsHand reports whether the tower is using hand bells.
func (bt BellType) IsHand() bool {
	return bt == HandBells
}

// IsTower reports whether the tower is using tower bells.
func (bt BellType) IsTower() bool {
	return bt == TowerBells
}

func (bt BellType) String() string {
	if bt == HandBells {
		return "handbells"
	}
	return "tower bells"
}
