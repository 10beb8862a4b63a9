// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package socketio implements the small slice of the Socket.IO / Engine.IO
// client protocol that Ringing Room uses: a websocket transport, the open
// and namespace-connect handshakes, server ping / client pong keepalive,
// and JSON event frames in both directions. Acks, binary attachments,
// custom namespaces and transport upgrades are not supported.
package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by Emit after Close has been called.
var ErrClosed = errors.New("socketio: client closed")

// endpointPath is the Engine.IO websocket endpoint on the server.
const endpointPath = "/socket.io/?EIO=4&transport=websocket"

// pongTimeout bounds the write of a keepalive pong so a stuck connection
// cannot wedge the read loop.
const pongTimeout = 10 * time.Second

// DialOptions customizes Dial. The zero value is usable.
type DialOptions struct {
	// HTTPClient is used for the websocket handshake. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
	// Logger receives protocol-level debug output. Defaults to a disabled
	// logger.
	Logger *zerolog.Logger
	// EventBuffer is the capacity of the Events channel. Defaults to 64.
	EventBuffer int
}

// Client is a connected Socket.IO client. Emit may be called from any
// goroutine; inbound events are delivered on the Events channel by a single
// read loop.
type Client struct {
	conn *websocket.Conn
	log  zerolog.Logger
	sid  string

	events chan Event

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}

	errMu sync.Mutex
	err   error
}

// Dial connects to the Socket.IO server at serverURL (an http(s) or ws(s)
// URL), performs the Engine.IO open and Socket.IO namespace handshakes, and
// starts the read loop. The returned client is ready to Emit.
func Dial(ctx context.Context, serverURL string, opts *DialOptions) (*Client, error) {
	if opts == nil {
		opts = &DialOptions{}
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	buffer := opts.EventBuffer
	if buffer <= 0 {
		buffer = 64
	}

	conn, _, err := websocket.Dial(ctx, wsURL(serverURL), &websocket.DialOptions{
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverURL, err)
	}
	conn.SetReadLimit(1 << 20)

	c := &Client{
		conn:   conn,
		log:    log,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	if err := c.open(ctx); err != nil {
		conn.Close(websocket.StatusProtocolError, "handshake failed")
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

// wsURL converts an HTTP(S) URL to a WS(S) URL and appends the Engine.IO
// endpoint path.
func wsURL(serverURL string) string {
	u := serverURL
	if strings.HasPrefix(u, "https://") {
		u = "wss://" + strings.TrimPrefix(u, "https://")
	} else if strings.HasPrefix(u, "http://") {
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return strings.TrimSuffix(u, "/") + endpointPath
}

// open consumes the Engine.IO open packet and completes the default
// namespace connect.
func (c *Client) open(ctx context.Context) error {
	frame, err := c.read(ctx)
	if err != nil {
		return fmt.Errorf("read open packet: %w", err)
	}
	if len(frame) < 1 || frame[0] != eioOpen {
		return fmt.Errorf("expected open packet, got %q", frame)
	}
	var hs handshake
	if err := json.Unmarshal(frame[1:], &hs); err != nil {
		return fmt.Errorf("parse open packet: %w", err)
	}
	c.sid = hs.SID
	c.log.Debug().Str("sid", hs.SID).Int("ping_interval_ms", hs.PingInterval).Msg("Engine.IO session open")

	if err := c.write(ctx, []byte{eioMessage, sioConnect}); err != nil {
		return fmt.Errorf("send namespace connect: %w", err)
	}
	// The server may interleave pings with the connect ack.
	for {
		frame, err := c.read(ctx)
		if err != nil {
			return fmt.Errorf("read namespace ack: %w", err)
		}
		if len(frame) == 0 {
			continue
		}
		switch frame[0] {
		case eioPing:
			if err := c.write(ctx, []byte{eioPong}); err != nil {
				return err
			}
		case eioMessage:
			if len(frame) < 2 {
				continue
			}
			switch frame[1] {
			case sioConnect:
				c.log.Debug().Msg("Namespace connected")
				return nil
			case sioConnectError:
				return fmt.Errorf("namespace connect rejected: %s", frame[2:])
			}
		}
	}
}

func (c *Client) read(ctx context.Context) ([]byte, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageText {
		return nil, nil
	}
	return data, nil
}

func (c *Client) write(ctx context.Context, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, frame)
}

// readLoop delivers inbound events until the transport fails or Close is
// called. Malformed frames are logged and skipped; only transport errors
// end the loop.
func (c *Client) readLoop() {
	defer close(c.events)
	ctx := context.Background()
	for {
		frame, err := c.read(ctx)
		if err != nil {
			select {
			case <-c.done:
				// Expected: Close tore down the connection.
			default:
				c.setErr(err)
				c.log.Warn().Err(err).Msg("Socket read failed")
			}
			return
		}
		if len(frame) == 0 {
			continue
		}
		switch frame[0] {
		case eioPing:
			pongCtx, cancel := context.WithTimeout(ctx, pongTimeout)
			err := c.write(pongCtx, []byte{eioPong})
			cancel()
			if err != nil {
				c.setErr(err)
				c.log.Warn().Err(err).Msg("Failed to answer ping")
				return
			}
		case eioClose:
			c.setErr(fmt.Errorf("server closed the session"))
			return
		case eioMessage:
			if len(frame) < 2 || frame[1] != sioEvent {
				c.log.Trace().Bytes("frame", frame).Msg("Ignoring non-event message")
				continue
			}
			evt, err := decodeEvent(frame[2:])
			if err != nil {
				c.log.Warn().Err(err).Bytes("frame", frame).Msg("Skipping malformed event frame")
				continue
			}
			select {
			case c.events <- evt:
			case <-c.done:
				return
			}
		default:
			c.log.Trace().Bytes("frame", frame).Msg("Ignoring unknown Engine.IO packet")
		}
	}
}

// Events returns the channel of inbound events. It is closed when the read
// loop ends, either because the transport failed (see Err) or because Close
// was called.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Emit sends one event to the server. Safe for concurrent use.
func (c *Client) Emit(ctx context.Context, event string, data any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	frame, err := encodeEvent(event, data)
	if err != nil {
		return err
	}
	if err := c.write(ctx, frame); err != nil {
		return fmt.Errorf("emit %q: %w", event, err)
	}
	return nil
}

// SID returns the Engine.IO session ID assigned by the server.
func (c *Client) SID() string {
	return c.sid
}

// Err returns the transport error that ended the read loop, or nil.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// Close shuts down the connection and stops the read loop. Idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close(websocket.StatusNormalClosure, "")
	})
	return nil
}
