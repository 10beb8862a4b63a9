// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package belltower

// The standard calls, spelled exactly as Ringing Room displays them.
// MakeCall accepts any string; these are the ones with sounds attached.
const (
	CallBob      = "Bob"
	CallSingle   = "Single"
	CallLookTo   = "Look to"
	CallGo       = "Go"
	CallThatsAll = "That's all"
	CallStand    = "Stand next"
)
