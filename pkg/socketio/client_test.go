// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package socketio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer speaks just enough Engine.IO to accept one client: it sends
// the open packet, acks the namespace connect, then forwards every raw text
// frame it reads to the frames channel.
type fakeServer struct {
	srv       *httptest.Server
	frames    chan []byte
	connected chan struct{}

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{
		frames:    make(chan []byte, 32),
		connected: make(chan struct{}),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	ctx := r.Context()
	if err := conn.Write(ctx, websocket.MessageText,
		[]byte(`0{"sid":"test-sid","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`)); err != nil {
		return
	}
	_, data, err := conn.Read(ctx)
	if err != nil || string(data) != "40" {
		conn.Close(websocket.StatusProtocolError, "expected namespace connect")
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`40{"sid":"ns-sid"}`)); err != nil {
		return
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	close(f.connected)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		f.frames <- data
	}
}

// push writes one raw text frame to the connected client.
func (f *fakeServer) push(t *testing.T, frame string) {
	t.Helper()
	select {
	case <-f.connected:
	case <-time.After(2 * time.Second):
		t.Fatal("no client connected")
	}
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte(frame)))
}

// nextFrame returns the next raw frame the server read from the client.
func (f *fakeServer) nextFrame(t *testing.T) string {
	t.Helper()
	select {
	case frame := <-f.frames:
		return string(frame)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a client frame")
		return ""
	}
}

func dialFake(t *testing.T, f *fakeServer) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, f.srv.URL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDialHandshake(t *testing.T) {
	f := newFakeServer(t)
	client := dialFake(t, f)
	assert.Equal(t, "test-sid", client.SID())
}

func TestEmit(t *testing.T) {
	f := newFakeServer(t)
	client := dialFake(t, f)

	err := client.Emit(context.Background(), "c_call", map[string]any{"call": "Bob", "tower_id": 1})
	require.NoError(t, err)
	assert.Equal(t, `42["c_call",{"call":"Bob","tower_id":1}]`, f.nextFrame(t))
}

func TestInboundEvent(t *testing.T) {
	f := newFakeServer(t)
	client := dialFake(t, f)

	f.push(t, `42["s_call",{"call":"Bob"}]`)
	select {
	case evt := <-client.Events():
		assert.Equal(t, "s_call", evt.Name)
		assert.JSONEq(t, `{"call":"Bob"}`, string(evt.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPingAnsweredWithPong(t *testing.T) {
	f := newFakeServer(t)
	dialFake(t, f)

	f.push(t, "2")
	assert.Equal(t, "3", f.nextFrame(t))
}

func TestMalformedFrameSkipped(t *testing.T) {
	f := newFakeServer(t)
	client := dialFake(t, f)

	f.push(t, `42{"not":"an array"}`)
	f.push(t, `42["s_call",{"call":"Single"}]`)
	select {
	case evt := <-client.Events():
		assert.Equal(t, "s_call", evt.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event after malformed frame")
	}
}

func TestCloseStopsTheClient(t *testing.T) {
	f := newFakeServer(t)
	client := dialFake(t, f)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	select {
	case _, ok := <-client.Events():
		assert.False(t, ok, "events channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after Close")
	}
	assert.NoError(t, client.Err())
	assert.ErrorIs(t, client.Emit(context.Background(), "c_call", nil), ErrClosed)
}
