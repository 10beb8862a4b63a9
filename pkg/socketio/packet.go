// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package socketio

import (
	"encoding/json"
	"fmt"
)

// Engine.IO packet types (protocol revision 4). Each websocket text frame
// starts with one of these bytes.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
)

// Socket.IO packet types, carried as the second byte of an Engine.IO
// message frame.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioAck          = '3'
	sioConnectError = '4'
)

// Event is one inbound Socket.IO event. Data is the raw JSON of the first
// event argument, or nil if the event carried none.
type Event struct {
	Name string
	Data json.RawMessage
}

// handshake is the JSON body of the Engine.IO open packet.
type handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// encodeEvent builds the wire frame `42["name",data]` for an outbound event.
// A nil data emits a bare `42["name"]`.
func encodeEvent(name string, data any) ([]byte, error) {
	args := []any{name}
	if data != nil {
		args = append(args, data)
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal event %q: %w", name, err)
	}
	frame := make([]byte, 0, len(payload)+2)
	frame = append(frame, eioMessage, sioEvent)
	return append(frame, payload...), nil
}

// decodeEvent parses the JSON array that follows the `42` prefix of an
// inbound event frame.
func decodeEvent(body []byte) (Event, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(body, &args); err != nil {
		return Event{}, fmt.Errorf("parse event frame: %w", err)
	}
	if len(args) == 0 {
		return Event{}, fmt.Errorf("event frame has no name")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return Event{}, fmt.Errorf("parse event name: %w", err)
	}
	evt := Event{Name: name}
	if len(args) > 1 {
		evt.Data = args[1]
	}
	return evt, nil
}
