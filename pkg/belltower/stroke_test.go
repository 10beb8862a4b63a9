// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package belltower

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrokeOpposite(t *testing.T) {
	assert.Equal(t, Backstroke, Handstroke.Opposite())
	assert.Equal(t, Handstroke, Backstroke.Opposite())
}

func TestStrokeFromIndex(t *testing.T) {
	assert.Equal(t, Handstroke, StrokeFromIndex(0))
	assert.Equal(t, Backstroke, StrokeFromIndex(1))
	assert.Equal(t, Handstroke, StrokeFromIndex(2))
}

func TestStrokeFormatting(t *testing.T) {
	assert.Equal(t, "H", Handstroke.Char())
	assert.Equal(t, "B", Backstroke.Char())
	assert.Equal(t, "handstroke", Handstroke.String())
	assert.True(t, Handstroke.IsHand())
	assert.True(t, Backstroke.IsBack())
}
