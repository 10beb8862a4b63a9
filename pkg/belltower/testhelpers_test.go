// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package belltower

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/ringingbots/belltower/pkg/socketio"
)

const testTowerID = 389217546

// emittedEvent is one client-to-server event recorded by the fake.
type emittedEvent struct {
	Name string
	Data map[string]any
}

// fakeRR simulates enough of a Ringing Room instance for the client: the
// rendered tower page (with the inline server_ip / tower_name / audio
// assignments), the api/version endpoint, and the socket.io websocket
// endpoint. Client emits are recorded on the emits channel; push sends
// server events back.
type fakeRR struct {
	Server *httptest.Server

	TowerName string
	Audio     string
	Version   string

	emits     chan emittedEvent
	connected chan struct{}

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newFakeRR(t *testing.T) *fakeRR {
	t.Helper()
	f := &fakeRR{
		TowerName: "Test Tower",
		Audio:     "Tower",
		Version:   "1.3",
		emits:     make(chan emittedEvent, 32),
		connected: make(chan struct{}),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *fakeRR) handler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/version":
		fmt.Fprintf(w, `{"socketio-version": %q}`, f.Version)
	case strings.HasPrefix(r.URL.Path, "/socket.io/"):
		f.handleSocket(w, r)
	case r.URL.Path == "/"+strconv.Itoa(testTowerID):
		fmt.Fprintf(w, towerPage, f.Server.URL, f.TowerName, f.Audio)
	default:
		http.NotFound(w, r)
	}
}

// towerPage mimics the inline JS of the rendered tower page.
const towerPage = `<!doctype html>
<html><head><script>
window.tower_parameters = {
	server_ip: "%s",
	tower_name: "%s",
	audio: "%s",
};
</script></head><body>Ringing Room</body></html>`

func (f *fakeRR) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	ctx := r.Context()
	if err := conn.Write(ctx, websocket.MessageText,
		[]byte(`0{"sid":"fake","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`)); err != nil {
		return
	}
	_, data, err := conn.Read(ctx)
	if err != nil || string(data) != "40" {
		conn.Close(websocket.StatusProtocolError, "expected namespace connect")
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`40{"sid":"fake-ns"}`)); err != nil {
		return
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	close(f.connected)

	for {
		_, frame, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if len(frame) < 2 || frame[0] != '4' || frame[1] != '2' {
			continue
		}
		var args []json.RawMessage
		if err := json.Unmarshal(frame[2:], &args); err != nil || len(args) == 0 {
			continue
		}
		var evt emittedEvent
		if err := json.Unmarshal(args[0], &evt.Name); err != nil {
			continue
		}
		if len(args) > 1 {
			_ = json.Unmarshal(args[1], &evt.Data)
		}
		f.emits <- evt
	}
}

// push sends a server event to the connected client.
func (f *fakeRR) push(t *testing.T, event string, data any) {
	t.Helper()
	select {
	case <-f.connected:
	case <-time.After(2 * time.Second):
		t.Fatal("no client connected to the fake server")
	}
	payload, err := json.Marshal([]any{event, data})
	require.NoError(t, err)
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText,
		append([]byte("42"), payload...)))
}

// dropConnection closes the websocket from the server side.
func (f *fakeRR) dropConnection(t *testing.T) {
	t.Helper()
	select {
	case <-f.connected:
	case <-time.After(2 * time.Second):
		t.Fatal("no client connected to the fake server")
	}
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	conn.Close(websocket.StatusGoingAway, "server going down")
}

// expectEmit asserts the next recorded client event has the given name.
func (f *fakeRR) expectEmit(t *testing.T, name string) emittedEvent {
	t.Helper()
	select {
	case evt := <-f.emits:
		require.Equal(t, name, evt.Name)
		return evt
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", name)
		return emittedEvent{}
	}
}

// expectNoEmit asserts no client event arrives within the window.
func (f *fakeRR) expectNoEmit(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case evt := <-f.emits:
		t.Fatalf("expected no emit, got %s", evt.Name)
	case <-time.After(within):
	}
}

// newTestTower creates a Tower pointed at the fake server.
func newTestTower(t *testing.T, f *fakeRR) *Tower {
	t.Helper()
	tower := NewTower(testTowerID, &TowerOptions{
		ServerURL:  f.Server.URL,
		HTTPClient: f.Server.Client(),
	})
	t.Cleanup(func() { tower.Close() })
	return tower
}

// connectTower connects and consumes the join handshake emits.
func connectTower(t *testing.T, f *fakeRR, tower *Tower) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tower.Connect(ctx))
	f.expectEmit(t, "c_join")
	f.expectEmit(t, "c_request_global_state")
}

// readyTower connects and delivers an initial state of size bells, all at
// handstroke.
func readyTower(t *testing.T, f *fakeRR, tower *Tower, size int) {
	t.Helper()
	connectTower(t, f, tower)
	state := make([]bool, size)
	for i := range state {
		state[i] = true
	}
	f.push(t, "s_global_state", map[string]any{"global_bell_state": state})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tower.WaitReady(ctx))
}

// event builds an inbound socketio.Event from a JSON literal, for driving
// handleEvent directly in unit tests.
func event(name, data string) socketio.Event {
	return socketio.Event{Name: name, Data: json.RawMessage(data)}
}

// localTower builds an unconnected Tower for unit-testing state handling.
func localTower() *Tower {
	return NewTower(1, nil)
}

// seedSize applies a size-change event so the tower has bells to work with.
func seedSize(t *testing.T, tower *Tower, size int) {
	t.Helper()
	tower.handleEvent(event("s_size_change", fmt.Sprintf(`{"size":%d}`, size)))
	require.Equal(t, size, tower.NumberOfBells())
}
