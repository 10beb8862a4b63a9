// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package belltower

import "sync"

// handlerRegistry holds the registered callbacks for each event kind, in
// registration order. Registration is allowed at any time, including after
// Connect, so the slices are snapshotted under the mutex before dispatch.
type handlerRegistry struct {
	mu             sync.Mutex
	bellRung       []func(Bell, Stroke)
	calls          map[string][]func()
	anyCall        []func(string)
	sizeChange     []func(int)
	setAtHand      []func()
	bellTypeChange []func(BellType)
	userEnter      []func(int, string)
	userLeave      []func(int, string)
	assign         []func(int, string, Bell)
	unassign       []func(Bell)
	chat           []func(string, string)
}

// OnBellRung registers a callback for a bell being rung. The stroke passed
// to the callback is the state of the bell *before* it rang, so the first
// blows after setting at hand are reported as handstrokes.
func (t *Tower) OnBellRung(fn func(bell Bell, stroke Stroke)) {
	t.handlers.mu.Lock()
	defer t.handlers.mu.Unlock()
	t.handlers.bellRung = append(t.handlers.bellRung, fn)
}

// OnCall registers a callback for one specific call (for example CallBob).
func (t *Tower) OnCall(call string, fn func()) {
	t.handlers.mu.Lock()
	defer t.handlers.mu.Unlock()
	if t.handlers.calls == nil {
		t.handlers.calls = make(map[string][]func())
	}
	t.handlers.calls[call] = append(t.handlers.calls[call], fn)
}

// OnAnyCall registers a callback invoked for every call, with the call text.
func (t *Tower) OnAnyCall(fn func(call string)) {
	t.handlers.mu.Lock()
	defer t.handlers.mu.Unlock()
	t.handlers.anyCall = append(t.handlers.anyCall, fn)
}

// OnSizeChange registers a callback for the tower size changing. It also
// fires when the initial size is first learned after joining.
func (t *Tower) OnSizeChange(fn func(size int)) {
	t.handlers.mu.Lock()
	defer t.handlers.mu.Unlock()
	t.handlers.sizeChange = append(t.handlers.sizeChange, fn)
}

// OnSetAtHand registers a callback for a user setting all bells at
// handstroke. The initial state snapshot after joining does not fire it.
func (t *Tower) OnSetAtHand(fn func()) {
	t.handlers.mu.Lock()
	defer t.handlers.mu.Unlock()
	t.handlers.setAtHand = append(t.handlers.setAtHand, fn)
}

// OnBellTypeChange registers a callback for the tower switching between
// tower bells and hand bells.
func (t *Tower) OnBellTypeChange(fn func(bt BellType)) {
	t.handlers.mu.Lock()
	defer t.handlers.mu.Unlock()
	t.handlers.bellTypeChange = append(t.handlers.bellTypeChange, fn)
}

// OnUserEnter registers a callback for a user entering the tower, with their
// unique numeric ID and their (non-unique) display name.
func (t *Tower) OnUserEnter(fn func(userID int, name string)) {
	t.handlers.mu.Lock()
	defer t.handlers.mu.Unlock()
	t.handlers.userEnter = append(t.handlers.userEnter, fn)
}

// OnUserLeave registers a callback for a user leaving the tower.
func (t *Tower) OnUserLeave(fn func(userID int, name string)) {
	t.handlers.mu.Lock()
	defer t.handlers.mu.Unlock()
	t.handlers.userLeave = append(t.handlers.userLeave, fn)
}

// OnAssign registers a callback for a user being assigned to a bell.
func (t *Tower) OnAssign(fn func(userID int, name string, bell Bell)) {
	t.handlers.mu.Lock()
	defer t.handlers.mu.Unlock()
	t.handlers.assign = append(t.handlers.assign, fn)
}

// OnUnassign registers a callback for a bell being unassigned.
func (t *Tower) OnUnassign(fn func(bell Bell)) {
	t.handlers.mu.Lock()
	defer t.handlers.mu.Unlock()
	t.handlers.unassign = append(t.handlers.unassign, fn)
}

// OnChat registers a callback for a chat message, with the sender's display
// name and the message text.
func (t *Tower) OnChat(fn func(user, message string)) {
	t.handlers.mu.Lock()
	defer t.handlers.mu.Unlock()
	t.handlers.chat = append(t.handlers.chat, fn)
}

// snapshot copies a callback slice under the registry mutex so dispatch can
// run without holding it.
func snapshot[T any](mu *sync.Mutex, get func() []T) []T {
	mu.Lock()
	defer mu.Unlock()
	slice := get()
	cp := make([]T, len(slice))
	copy(cp, slice)
	return cp
}

func (t *Tower) bellRungHandlers() []func(Bell, Stroke) {
	return snapshot(&t.handlers.mu, func() []func(Bell, Stroke) { return t.handlers.bellRung })
}

func (t *Tower) callHandlers(call string) (specific []func(), catchAll []func(string)) {
	t.handlers.mu.Lock()
	defer t.handlers.mu.Unlock()
	specific = make([]func(), len(t.handlers.calls[call]))
	copy(specific, t.handlers.calls[call])
	catchAll = make([]func(string), len(t.handlers.anyCall))
	copy(catchAll, t.handlers.anyCall)
	return specific, catchAll
}

func (t *Tower) sizeChangeHandlers() []func(int) {
	return snapshot(&t.handlers.mu, func() []func(int) { return t.handlers.sizeChange })
}

func (t *Tower) setAtHandHandlers() []func() {
	return snapshot(&t.handlers.mu, func() []func() { return t.handlers.setAtHand })
}

func (t *Tower) bellTypeChangeHandlers() []func(BellType) {
	return snapshot(&t.handlers.mu, func() []func(BellType) { return t.handlers.bellTypeChange })
}

func (t *Tower) userEnterHandlers() []func(int, string) {
	return snapshot(&t.handlers.mu, func() []func(int, string) { return t.handlers.userEnter })
}

func (t *Tower) userLeaveHandlers() []func(int, string) {
	return snapshot(&t.handlers.mu, func() []func(int, string) { return t.handlers.userLeave })
}

func (t *Tower) assignHandlers() []func(int, string, Bell) {
	return snapshot(&t.handlers.mu, func() []func(int, string, Bell) { return t.handlers.assign })
}

func (t *Tower) unassignHandlers() []func(Bell) {
	return snapshot(&t.handlers.mu, func() []func(Bell) { return t.handlers.unassign })
}

func (t *Tower) chatHandlers() []func(string, string) {
	return snapshot(&t.handlers.mu, func() []func(string, string) { return t.handlers.chat })
}

// invoke runs one callback, recovering panics so a broken callback cannot
// take down the listen loop or suppress later callbacks for the same event.
func (t *Tower) invoke(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error().Interface("panic", r).Str("event", kind).Msg("Callback panicked")
		}
	}()
	fn()
}
