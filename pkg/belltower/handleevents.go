// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package belltower

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ringingbots/belltower/pkg/socketio"
)

// handleEvent dispatches one inbound server event to the appropriate
// handler. Malformed payloads are logged and skipped so one bad message
// cannot take down the stream.
func (t *Tower) handleEvent(evt socketio.Event) {
	switch evt.Name {
	case "s_bell_rung":
		t.handleBellRung(evt.Data)
	case "s_global_state":
		t.handleGlobalState(evt.Data)
	case "s_size_change":
		t.handleSizeChange(evt.Data)
	case "s_audio_change":
		t.handleAudioChange(evt.Data)
	case "s_user_entered":
		t.handleUserEntered(evt.Data)
	case "s_user_left":
		t.handleUserLeft(evt.Data)
	case "s_set_userlist":
		t.handleUserList(evt.Data)
	case "s_assign_user":
		t.handleAssignUser(evt.Data)
	case "s_msg_sent":
		t.handleChat(evt.Data)
	case "s_call":
		t.handleCall(evt.Data)
	default:
		t.log.Trace().Str("event", evt.Name).Msg("Unhandled event type")
	}
}

type bellRungData struct {
	GlobalBellState []bool `json:"global_bell_state"`
	WhoRang         int    `json:"who_rang"`
}

type globalStateData struct {
	GlobalBellState []bool `json:"global_bell_state"`
}

type sizeChangeData struct {
	Size int `json:"size"`
}

type audioChangeData struct {
	NewAudio string `json:"new_audio"`
}

type userEventData struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

type userListData struct {
	UserList []userEventData `json:"user_list"`
}

type assignUserData struct {
	Bell int            `json:"bell"`
	User optionalUserID `json:"user"`
}

type chatEventData struct {
	User string `json:"user"`
	Msg  string `json:"msg"`
}

type callEventData struct {
	Call string `json:"call"`
}

// optionalUserID decodes the "user" field of s_assign_user, which the
// server sends as a number for an assignment and as an empty string, zero,
// or null for an unassignment.
type optionalUserID struct {
	ID int
	OK bool
}

func (u *optionalUserID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "null", `""`, "0":
		*u = optionalUserID{}
		return nil
	}
	raw := string(bytes.Trim(trimmed, `"`))
	id, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("user field %s is neither a user ID nor empty", data)
	}
	*u = optionalUserID{ID: id, OK: true}
	return nil
}

// strokesFromWire converts the wire representation (true = handstroke) into
// the stroke array.
func strokesFromWire(state []bool) []Stroke {
	strokes := make([]Stroke, len(state))
	for i, isHand := range state {
		strokes[i] = Stroke(isHand)
	}
	return strokes
}

// replaceBellState overwrites the stroke array and releases WaitReady once
// the first populated state has been applied.
func (t *Tower) replaceBellState(strokes []Stroke) {
	t.mu.Lock()
	t.bellState = strokes
	t.mu.Unlock()
	if len(strokes) > 0 {
		t.ready.Set()
	}
	chars := ""
	for _, s := range strokes {
		chars += s.Char()
	}
	t.log.Debug().Str("bells", chars).Msg("RECEIVED: Bell state")
}

func (t *Tower) handleBellRung(data json.RawMessage) {
	var payload bellRungData
	if err := json.Unmarshal(data, &payload); err != nil {
		t.log.Warn().Err(err).Msg("Skipping malformed s_bell_rung")
		return
	}
	whoRang, err := BellFromNumber(payload.WhoRang)
	if err != nil {
		t.log.Warn().Err(err).Msg("Skipping s_bell_rung for impossible bell")
		return
	}
	t.replaceBellState(strokesFromWire(payload.GlobalBellState))

	newStroke, ok := t.Stroke(whoRang)
	if !ok {
		t.log.Warn().Int("bell", whoRang.Number()).Int("tower_size", t.NumberOfBells()).
			Msg("Bell rang outside the tower")
		return
	}
	for _, fn := range t.bellRungHandlers() {
		// Report the stroke the bell was at *before* it rang.
		t.invoke("bell_rung", func() { fn(whoRang, newStroke.Opposite()) })
	}
}

func (t *Tower) handleGlobalState(data json.RawMessage) {
	var payload globalStateData
	if err := json.Unmarshal(data, &payload); err != nil {
		t.log.Warn().Err(err).Msg("Skipping malformed s_global_state")
		return
	}

	t.mu.Lock()
	first := !t.seenGlobalState
	t.seenGlobalState = true
	t.mu.Unlock()

	t.replaceBellState(strokesFromWire(payload.GlobalBellState))

	// The first s_global_state is the snapshot the server sends to every
	// new joiner; only later ones mean a user set the bells at hand.
	if first {
		return
	}
	for _, fn := range t.setAtHandHandlers() {
		t.invoke("set_at_hand", func() { fn() })
	}
}

func (t *Tower) handleSizeChange(data json.RawMessage) {
	var payload sizeChangeData
	if err := json.Unmarshal(data, &payload); err != nil {
		t.log.Warn().Err(err).Msg("Skipping malformed s_size_change")
		return
	}
	newSize := payload.Size
	if newSize < 1 || newSize > MaxBell {
		t.log.Warn().Int("size", newSize).Msg("Skipping s_size_change with impossible size")
		return
	}

	t.mu.Lock()
	if newSize == len(t.bellState) {
		t.mu.Unlock()
		return
	}
	// Drop assignments to bells that no longer exist, so returning to a
	// larger stage does not resurrect stale assignments.
	for bell := range t.assignments {
		if bell.Number() > newSize {
			delete(t.assignments, bell)
		}
	}
	t.mu.Unlock()

	// A resize always leaves the bells at handstroke.
	strokes := make([]Stroke, newSize)
	for i := range strokes {
		strokes[i] = Handstroke
	}
	t.replaceBellState(strokes)

	t.log.Info().Int("size", newSize).Msg("RECEIVED: New tower size")
	for _, fn := range t.sizeChangeHandlers() {
		t.invoke("size_change", func() { fn(newSize) })
	}
}

func (t *Tower) handleAudioChange(data json.RawMessage) {
	var payload audioChangeData
	if err := json.Unmarshal(data, &payload); err != nil {
		t.log.Warn().Err(err).Msg("Skipping malformed s_audio_change")
		return
	}
	newType, err := BellTypeFromWireName(payload.NewAudio)
	if err != nil {
		t.log.Warn().Err(err).Msg("Skipping s_audio_change with unknown bell type")
		return
	}

	t.mu.Lock()
	changed := newType != t.bellType
	t.bellType = newType
	t.mu.Unlock()

	// The server re-sends s_audio_change; only a real change fires callbacks.
	if !changed {
		return
	}
	t.log.Info().Stringer("bell_type", newType).Msg("RECEIVED: Bell type changed")
	for _, fn := range t.bellTypeChangeHandlers() {
		t.invoke("bell_type_change", func() { fn(newType) })
	}
}

func (t *Tower) handleUserEntered(data json.RawMessage) {
	var payload userEventData
	if err := json.Unmarshal(data, &payload); err != nil {
		t.log.Warn().Err(err).Msg("Skipping malformed s_user_entered")
		return
	}
	t.applyUserEntered(payload)
}

func (t *Tower) applyUserEntered(user userEventData) {
	t.mu.Lock()
	t.users[user.UserID] = user.Username
	t.mu.Unlock()

	t.log.Debug().Int("user_id", user.UserID).Str("user_name", user.Username).
		Msg("RECEIVED: User entered")
	for _, fn := range t.userEnterHandlers() {
		t.invoke("user_enter", func() { fn(user.UserID, user.Username) })
	}
}

func (t *Tower) handleUserList(data json.RawMessage) {
	var payload userListData
	if err := json.Unmarshal(data, &payload); err != nil {
		t.log.Warn().Err(err).Msg("Skipping malformed s_set_userlist")
		return
	}
	for _, user := range payload.UserList {
		t.applyUserEntered(user)
	}
}

func (t *Tower) handleUserLeft(data json.RawMessage) {
	var payload userEventData
	if err := json.Unmarshal(data, &payload); err != nil {
		t.log.Warn().Err(err).Msg("Skipping malformed s_user_left")
		return
	}

	t.mu.Lock()
	knownName, known := t.users[payload.UserID]
	if !known {
		t.log.Warn().Int("user_id", payload.UserID).Str("user_name", payload.Username).
			Msg("Unknown user left the tower")
	} else if knownName != payload.Username {
		t.log.Warn().Int("user_id", payload.UserID).Str("left_as", payload.Username).
			Str("known_as", knownName).Msg("User left under a different name")
		// The name map is kept monotonic for matching leaves; only a
		// mismatched identity is evicted.
		delete(t.users, payload.UserID)
	}
	var freed []Bell
	for bell, userID := range t.assignments {
		if userID == payload.UserID {
			freed = append(freed, bell)
		}
	}
	for _, bell := range freed {
		delete(t.assignments, bell)
	}
	t.mu.Unlock()

	t.log.Info().Int("user_id", payload.UserID).Str("user_name", payload.Username).
		Int("bells_freed", len(freed)).Msg("RECEIVED: User left")
	for _, fn := range t.userLeaveHandlers() {
		t.invoke("user_leave", func() { fn(payload.UserID, payload.Username) })
	}
}

func (t *Tower) handleAssignUser(data json.RawMessage) {
	var payload assignUserData
	if err := json.Unmarshal(data, &payload); err != nil {
		t.log.Warn().Err(err).Msg("Skipping malformed s_assign_user")
		return
	}
	bell, err := BellFromNumber(payload.Bell)
	if err != nil {
		t.log.Warn().Err(err).Msg("Skipping s_assign_user for impossible bell")
		return
	}

	if !payload.User.OK {
		t.mu.Lock()
		delete(t.assignments, bell)
		t.mu.Unlock()

		t.log.Info().Int("bell", bell.Number()).Msg("RECEIVED: Bell unassigned")
		for _, fn := range t.unassignHandlers() {
			t.invoke("unassign", func() { fn(bell) })
		}
		return
	}

	userID := payload.User.ID
	t.mu.Lock()
	t.assignments[bell] = userID
	name := t.users[userID]
	t.mu.Unlock()

	t.log.Info().Int("bell", bell.Number()).Int("user_id", userID).Str("user_name", name).
		Msg("RECEIVED: Bell assigned")
	for _, fn := range t.assignHandlers() {
		t.invoke("assign", func() { fn(userID, name, bell) })
	}
}

func (t *Tower) handleChat(data json.RawMessage) {
	var payload chatEventData
	if err := json.Unmarshal(data, &payload); err != nil {
		t.log.Warn().Err(err).Msg("Skipping malformed s_msg_sent")
		return
	}
	for _, fn := range t.chatHandlers() {
		t.invoke("chat", func() { fn(payload.User, payload.Msg) })
	}
}

func (t *Tower) handleCall(data json.RawMessage) {
	var payload callEventData
	if err := json.Unmarshal(data, &payload); err != nil {
		t.log.Warn().Err(err).Msg("Skipping malformed s_call")
		return
	}
	t.log.Info().Str("call", payload.Call).Msg("RECEIVED: Call")

	specific, catchAll := t.callHandlers(payload.Call)
	if len(specific) == 0 && len(catchAll) == 0 {
		t.log.Warn().Str("call", payload.Call).Msg("No callback registered for call")
	}
	for _, fn := range specific {
		t.invoke("call", func() { fn() })
	}
	for _, fn := range catchAll {
		t.invoke("call", func() { fn(payload.Call) })
	}
}
