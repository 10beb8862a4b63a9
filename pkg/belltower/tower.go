// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package belltower

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/util/exsync"

	"github.com/ringingbots/belltower/pkg/socketio"
)

// DefaultServerURL is the public Ringing Room instance.
const DefaultServerURL = "https://ringingroom.com"

// chatEmail identifies this library in outbound chat messages, mirroring
// what the web client sends in the same field.
const chatEmail = "<belltower-go>"

var (
	// ErrNotConnected is returned by actions before Connect has succeeded.
	ErrNotConnected = errors.New("belltower: not connected")
	// ErrClosed is returned by WaitReady after Close.
	ErrClosed = errors.New("belltower: tower closed")
)

// TowerOptions customizes a Tower. The zero value is usable.
type TowerOptions struct {
	// ServerURL is the Ringing Room instance to join. Defaults to
	// DefaultServerURL. A bare host is treated as https.
	ServerURL string
	// HTTPClient is used for the tower page fetch, the version check, and
	// the websocket handshake. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Logger receives the tower's log output. Defaults to a disabled logger.
	Logger *zerolog.Logger
	// SkipVersionCheck disables the api/version compatibility gate.
	SkipVersionCheck bool
}

// Tower is a client connection to one Ringing Room tower. It mirrors the
// tower's state (bell strokes, assignments, users) from server events and
// dispatches registered callbacks as that state changes.
//
// Lifecycle: NewTower, register callbacks, Connect, WaitReady, then act;
// defer Close so the connection is released on every exit path. Close is
// idempotent.
//
// State is mutated only by the listen goroutine; accessors take a read lock
// and are safe from any goroutine, as are all actions.
type Tower struct {
	towerID          int
	serverURL        string
	httpClient       *http.Client
	skipVersionCheck bool
	log              zerolog.Logger

	handlers handlerRegistry

	mu          sync.RWMutex
	sio         *socketio.Client
	bellState   []Stroke
	assignments map[Bell]int
	users       map[int]string
	towerName   string
	bellType    BellType
	// seenGlobalState distinguishes the initial s_global_state snapshot
	// (sent to every joiner) from later ones caused by a user setting the
	// bells at hand. Only the latter fire SetAtHand callbacks.
	seenGlobalState bool

	ready *exsync.Event

	stopOnce sync.Once
	stopChan chan struct{}

	errMu   sync.Mutex
	connErr error
}

// NewTower creates a Tower for the given numeric tower ID. No network
// traffic happens until Connect.
func NewTower(towerID int, opts *TowerOptions) *Tower {
	if opts == nil {
		opts = &TowerOptions{}
	}
	serverURL := opts.ServerURL
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "tower").Int("tower_id", towerID).Logger()
	}
	return &Tower{
		towerID:          towerID,
		serverURL:        normalizeServerURL(serverURL),
		httpClient:       httpClient,
		skipVersionCheck: opts.SkipVersionCheck,
		log:              log,
		assignments:      make(map[Bell]int),
		users:            make(map[int]string),
		ready:            exsync.NewEvent(),
		stopChan:         make(chan struct{}),
	}
}

// Connect joins the tower: it resolves the load-balanced socket server from
// the tower page, checks server compatibility, opens the socket.io
// connection, announces the join, and starts the listen loop. It returns
// before the initial state snapshot arrives; use WaitReady to block until
// the tower is usable. Failures after Connect returns surface from
// WaitReady and from subsequent actions.
func (t *Tower) Connect(ctx context.Context) error {
	t.mu.RLock()
	connected := t.sio != nil
	t.mu.RUnlock()
	if connected {
		return fmt.Errorf("belltower: already connected to tower %d", t.towerID)
	}

	info, err := fetchTowerInfo(ctx, t.httpClient, t.serverURL, t.towerID)
	if err != nil {
		return err
	}
	if !t.skipVersionCheck {
		if err := checkVersion(ctx, t.httpClient, t.serverURL); err != nil {
			return err
		}
	}

	sioLog := t.log.With().Str("component", "socketio").Logger()
	client, err := socketio.Dial(ctx, info.SocketURL, &socketio.DialOptions{
		HTTPClient: t.httpClient,
		Logger:     &sioLog,
	})
	if err != nil {
		return fmt.Errorf("belltower: connect to tower %d: %w", t.towerID, err)
	}

	t.mu.Lock()
	t.sio = client
	t.towerName = info.Name
	t.bellType = info.BellType
	t.mu.Unlock()

	t.log.Info().Str("socket_url", info.SocketURL).Str("tower_name", info.Name).Msg("Joining tower")
	if err := client.Emit(ctx, "c_join", map[string]any{
		"anonymous_user": true,
		"tower_id":       t.towerID,
	}); err != nil {
		client.Close()
		return fmt.Errorf("belltower: join tower %d: %w", t.towerID, err)
	}
	if err := client.Emit(ctx, "c_request_global_state", map[string]any{
		"tower_id": t.towerID,
	}); err != nil {
		client.Close()
		return fmt.Errorf("belltower: request tower state: %w", err)
	}

	go t.listen(client)
	return nil
}

// listen consumes inbound events until the transport ends or Close is
// called. Runs on its own goroutine; all state mutation happens here.
func (t *Tower) listen(client *socketio.Client) {
	for {
		select {
		case <-t.stopChan:
			return
		case evt, ok := <-client.Events():
			if !ok {
				if err := client.Err(); err != nil {
					t.setConnErr(err)
					t.log.Warn().Err(err).Msg("Connection to tower lost")
				}
				t.Close()
				return
			}
			t.handleEvent(evt)
		}
	}
}

// WaitReady blocks until the tower has received its initial bell state, the
// context expires, or the connection is lost.
func (t *Tower) WaitReady(ctx context.Context) error {
	if t.ready.IsSet() {
		return nil
	}
	select {
	case <-t.ready.GetChan():
		return nil
	case <-t.stopChan:
		if err := t.connError(); err != nil {
			return fmt.Errorf("belltower: connection lost: %w", err)
		}
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("belltower: waiting for tower state: %w", ctx.Err())
	}
}

// Close releases the connection and stops the listen loop. Safe to call
// multiple times and from any goroutine.
func (t *Tower) Close() error {
	t.stopOnce.Do(func() {
		close(t.stopChan)
		t.mu.RLock()
		client := t.sio
		t.mu.RUnlock()
		if client != nil {
			t.log.Info().Msg("Disconnecting from tower")
			client.Close()
		}
	})
	return nil
}

func (t *Tower) setConnErr(err error) {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.connErr == nil {
		t.connErr = err
	}
}

func (t *Tower) connError() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.connErr
}

// emit sends one client event to the server.
func (t *Tower) emit(ctx context.Context, event string, data any) error {
	t.mu.RLock()
	client := t.sio
	t.mu.RUnlock()
	if client == nil {
		return ErrNotConnected
	}
	return client.Emit(ctx, event, data)
}

// ===== Read accessors =====

// TowerID returns the numeric ID this tower was created with.
func (t *Tower) TowerID() int {
	return t.towerID
}

// NumberOfBells returns the number of bells currently in the tower, zero
// before the initial state has arrived.
func (t *Tower) NumberOfBells() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.bellState)
}

// BellType returns the current bell type (tower or hand bells).
func (t *Tower) BellType() BellType {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bellType
}

// TowerName returns the human-readable tower name, which may be empty.
func (t *Tower) TowerName() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.towerName
}

// Stroke returns the current stroke of the given bell. The second return is
// false if the bell is not in the tower.
func (t *Tower) Stroke(bell Bell) (Stroke, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if bell.Index() >= len(t.bellState) {
		return Backstroke, false
	}
	return t.bellState[bell.Index()], true
}

// UserName returns the display name for a user ID. The second return is
// false if no such user has been observed in the tower.
func (t *Tower) UserName(userID int) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.users[userID]
	return name, ok
}

// Assignment returns the user ID assigned to the given bell. The second
// return is false if the bell is unassigned or not in the tower.
func (t *Tower) Assignment(bell Bell) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	userID, ok := t.assignments[bell]
	return userID, ok
}

// Users returns a copy of the user ID to display name mapping.
func (t *Tower) Users() map[int]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	users := make(map[int]string, len(t.users))
	for id, name := range t.users {
		users[id] = name
	}
	return users
}

// DumpDebugState logs a full snapshot of the tower state at the given
// level. For debugging only; the format is not a contract.
func (t *Tower) DumpDebugState(level zerolog.Level) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	strokes := ""
	for i, s := range t.bellState {
		if i%4 == 0 && i > 0 {
			strokes += " "
		}
		strokes += s.Char()
	}

	t.log.WithLevel(level).Msg("===== TOWER DEBUG DUMP =====")
	t.log.WithLevel(level).Msgf("Joined tower #%d: %q", t.towerID, t.towerName)
	t.log.WithLevel(level).Msgf("Ringing on %d %s", len(t.bellState), t.bellType)
	t.log.WithLevel(level).Interface("users", t.users).Msg("Users")
	t.log.WithLevel(level).Msgf("Bell strokes: %s", strokes)
	if len(t.assignments) == 0 {
		t.log.WithLevel(level).Msg("No bells assigned")
	} else {
		for bell, userID := range t.assignments {
			t.log.WithLevel(level).Msgf("Bell %s assigned to #%d/%s", bell, userID, t.users[userID])
		}
	}
}

// ===== Actions =====
//
// Actions only transmit a request; the matching state change (and callback)
// arrives asynchronously through the normal inbound event path. A nil error
// means the request was sent, not that it took effect.

// RingBell rings the given bell on whatever stroke it is currently at.
func (t *Tower) RingBell(ctx context.Context, bell Bell) error {
	stroke, ok := t.Stroke(bell)
	if !ok {
		return fmt.Errorf("belltower: bell %s is not in the tower", bell)
	}
	return t.emitRing(ctx, bell, stroke)
}

// RingBellAt rings the given bell only if it is currently at the expected
// stroke, so rhythm bots can detect when they have lost track of the state.
func (t *Tower) RingBellAt(ctx context.Context, bell Bell, expected Stroke) error {
	stroke, ok := t.Stroke(bell)
	if !ok {
		return fmt.Errorf("belltower: bell %s is not in the tower", bell)
	}
	if stroke != expected {
		return fmt.Errorf("belltower: bell %s is at %s, not %s", bell, stroke, expected)
	}
	return t.emitRing(ctx, bell, stroke)
}

func (t *Tower) emitRing(ctx context.Context, bell Bell, stroke Stroke) error {
	return t.emit(ctx, "c_bell_rung", map[string]any{
		"bell":     bell.Number(),
		"stroke":   stroke.IsHand(),
		"tower_id": t.towerID,
	})
}

// SetAtHand sets all the bells at handstroke.
func (t *Tower) SetAtHand(ctx context.Context) error {
	t.log.Info().Msg("(EMIT): Setting bells at handstroke")
	return t.emit(ctx, "c_set_bells", map[string]any{"tower_id": t.towerID})
}

// SetSize requests a change of the number of bells in the tower.
func (t *Tower) SetSize(ctx context.Context, size int) error {
	t.log.Info().Int("size", size).Msg("(EMIT): Setting tower size")
	return t.emit(ctx, "c_size_change", map[string]any{
		"new_size": size,
		"tower_id": t.towerID,
	})
}

// SetBellType switches the tower between tower bells and hand bells.
func (t *Tower) SetBellType(ctx context.Context, bt BellType) error {
	t.log.Info().Stringer("bell_type", bt).Msg("(EMIT): Setting bell type")
	return t.emit(ctx, "c_audio_change", map[string]any{
		"new_audio": bt.WireName(),
		"tower_id":  t.towerID,
	})
}

// Assign assigns a user to a bell. The user must already have been observed
// in the tower and the bell must exist.
func (t *Tower) Assign(ctx context.Context, userID int, bell Bell) error {
	if bell.Number() > t.NumberOfBells() {
		return fmt.Errorf("belltower: bell %d exceeds tower size of %d", bell.Number(), t.NumberOfBells())
	}
	name, ok := t.UserName(userID)
	if !ok {
		return fmt.Errorf("belltower: assigning unknown user #%d to bell %d", userID, bell.Number())
	}
	t.log.Info().Int("user_id", userID).Str("user_name", name).Int("bell", bell.Number()).
		Msg("(EMIT): Assigning user to bell")
	return t.emit(ctx, "c_assign_user", map[string]any{
		"bell":     bell.Number(),
		"user":     userID,
		"tower_id": t.towerID,
	})
}

// Unassign clears the assignment of a bell.
func (t *Tower) Unassign(ctx context.Context, bell Bell) error {
	t.log.Info().Int("bell", bell.Number()).Msg("(EMIT): Unassigning bell")
	// An empty user field means "unassign" on the wire.
	return t.emit(ctx, "c_assign_user", map[string]any{
		"bell":     bell.Number(),
		"user":     "",
		"tower_id": t.towerID,
	})
}

// UnassignAll clears the assignment of every bell in the tower.
func (t *Tower) UnassignAll(ctx context.Context) error {
	for i := 0; i < t.NumberOfBells(); i++ {
		bell, err := BellFromIndex(i)
		if err != nil {
			return err
		}
		if err := t.Unassign(ctx, bell); err != nil {
			return err
		}
	}
	return nil
}

// Chat sends a chat message under the given display name, which does not
// have to belong to a real user.
func (t *Tower) Chat(ctx context.Context, user, message string) error {
	t.log.Info().Str("user", user).Str("message", message).Msg("(EMIT): Sending chat message")
	return t.emit(ctx, "c_msg_sent", map[string]any{
		"user":     user,
		"msg":      message,
		"email":    chatEmail,
		"time":     time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		"tower_id": t.towerID,
	})
}

// MakeCall broadcasts a call to everyone in the tower. The standard calls
// (CallBob, CallLookTo, ...) have sounds attached, but any string will be
// displayed.
func (t *Tower) MakeCall(ctx context.Context, call string) error {
	t.log.Info().Str("call", call).Msg("(EMIT): Making call")
	return t.emit(ctx, "c_call", map[string]any{
		"call":     call,
		"tower_id": t.towerID,
	})
}

// CallBob calls a Bob. Identical to MakeCall(ctx, CallBob).
func (t *Tower) CallBob(ctx context.Context) error { return t.MakeCall(ctx, CallBob) }

// CallSingle calls a Single. Identical to MakeCall(ctx, CallSingle).
func (t *Tower) CallSingle(ctx context.Context) error { return t.MakeCall(ctx, CallSingle) }

// CallLookTo calls Look To. Identical to MakeCall(ctx, CallLookTo).
func (t *Tower) CallLookTo(ctx context.Context) error { return t.MakeCall(ctx, CallLookTo) }

// CallGo calls Go. Identical to MakeCall(ctx, CallGo).
func (t *Tower) CallGo(ctx context.Context) error { return t.MakeCall(ctx, CallGo) }

// CallThatsAll calls That's All. Identical to MakeCall(ctx, CallThatsAll).
func (t *Tower) CallThatsAll(ctx context.Context) error { return t.MakeCall(ctx, CallThatsAll) }

// CallStand calls Stand. Identical to MakeCall(ctx, CallStand).
func (t *Tower) CallStand(ctx context.Context) error { return t.MakeCall(ctx, CallStand) }
