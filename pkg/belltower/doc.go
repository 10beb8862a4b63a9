// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package belltower is a client library for Ringing Room
// (https://ringingroom.com), the collaborative online bell-ringing
// platform. It joins a tower, mirrors the tower's state from server events,
// and exposes the same actions a human participant has: ringing bells,
// making calls, assigning ringers, and chatting.
//
// # Core Types
//
// [Tower] is the single entry point: one instance per joined tower. It owns
// the socket connection, the mirrored session state, and the callback
// registry. Callbacks run synchronously on the tower's listen goroutine in
// registration order; a panicking callback is logged and does not disturb
// other callbacks or the connection.
//
// [Bell], [Stroke], and [BellType] are small value types that keep
// 0-vs-1-indexing, stroke phases, and tower/hand bells from being bare ints
// and bools.
//
// # Usage
//
//	tower := belltower.NewTower(765432918, nil)
//	tower.OnBellRung(func(bell belltower.Bell, stroke belltower.Stroke) {
//		fmt.Println(bell, stroke)
//	})
//	if err := tower.Connect(ctx); err != nil {
//		return err
//	}
//	defer tower.Close()
//	if err := tower.WaitReady(ctx); err != nil {
//		return err
//	}
//	return tower.CallLookTo(ctx)
//
// Actions only transmit a request; the resulting state change arrives back
// asynchronously through the event stream, like everyone else's actions.
//
// The wire protocol (Socket.IO events named c_* client-to-server and s_*
// server-to-client) belongs to Ringing Room and is versioned independently
// of this library; Connect checks the server's published protocol version
// before joining.
package belltower
