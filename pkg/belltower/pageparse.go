// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package belltower

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// The server's socketio-version must have this major version (and at least
// this minor version) for the wire contract to match.
const (
	expectedVersionMajor = 1
	expectedVersionMinor = 0
)

// TowerNotFoundError means the server responded but no tower with the given
// ID exists there.
type TowerNotFoundError struct {
	TowerID int
	URL     string
}

func (e *TowerNotFoundError) Error() string {
	return fmt.Sprintf("tower %d not found at %q", e.TowerID, e.URL)
}

// InvalidURLError means the server could not be reached at all.
type InvalidURLError struct {
	URL string
	Err error
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("unable to connect to %q: %v", e.URL, e.Err)
}

func (e *InvalidURLError) Unwrap() error {
	return e.Err
}

// VersionError means the server speaks an incompatible protocol version.
type VersionError struct {
	Server   string
	Expected string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("server socketio-version %s is incompatible with expected %s", e.Server, e.Expected)
}

// towerInfo is what the tower page provides and the socket protocol does
// not: the load-balanced socket server URL, the display name, and the
// initial bell type.
type towerInfo struct {
	SocketURL string
	Name      string
	BellType  BellType
}

// normalizeServerURL prepends https:// to a bare host.
func normalizeServerURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return strings.TrimSuffix(raw, "/")
	}
	return "https://" + strings.TrimSuffix(raw, "/")
}

// fetchTowerInfo scrapes the tower page. Since the addition of load
// balancing, the socket server is not necessarily at the same URL people
// type into their browsers, and it is only published as an inline JS
// assignment in the rendered page.
func fetchTowerInfo(ctx context.Context, client *http.Client, serverURL string, towerID int) (towerInfo, error) {
	pageURL, err := url.JoinPath(serverURL, strconv.Itoa(towerID))
	if err != nil {
		return towerInfo{}, fmt.Errorf("build tower page URL: %w", err)
	}
	page, err := get(ctx, client, pageURL)
	if err != nil {
		return towerInfo{}, &InvalidURLError{URL: serverURL, Err: err}
	}

	socketURL, ok := scanJSString(page, "server_ip")
	if !ok {
		return towerInfo{}, &TowerNotFoundError{TowerID: towerID, URL: serverURL}
	}
	info := towerInfo{SocketURL: socketURL, BellType: TowerBells}
	// Name and audio type are best-effort; older instances render pages
	// without them.
	info.Name, _ = scanJSString(page, "tower_name")
	if audio, ok := scanJSString(page, "audio"); ok {
		if bt, err := BellTypeFromWireName(audio); err == nil {
			info.BellType = bt
		}
	}
	return info, nil
}

// checkVersion fetches the server's api/version document and rejects
// incompatible socketio protocol versions.
func checkVersion(ctx context.Context, client *http.Client, serverURL string) error {
	versionURL, err := url.JoinPath(serverURL, "api", "version")
	if err != nil {
		return fmt.Errorf("build version URL: %w", err)
	}
	body, err := get(ctx, client, versionURL)
	if err != nil {
		return &InvalidURLError{URL: serverURL, Err: err}
	}

	var versions struct {
		SocketIOVersion string `json:"socketio-version"`
	}
	if err := json.Unmarshal([]byte(body), &versions); err != nil {
		return fmt.Errorf("parse api/version response: %w", err)
	}
	parts := strings.Split(versions.SocketIOVersion, ".")
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("parse socketio-version %q: %w", versions.SocketIOVersion, err)
	}
	minor := 0
	if len(parts) > 1 {
		if minor, err = strconv.Atoi(parts[1]); err != nil {
			return fmt.Errorf("parse socketio-version %q: %w", versions.SocketIOVersion, err)
		}
	}
	if major != expectedVersionMajor || minor < expectedVersionMinor {
		return &VersionError{
			Server:   fmt.Sprintf("%d.%d", major, minor),
			Expected: fmt.Sprintf("%d.%d", expectedVersionMajor, expectedVersionMinor),
		}
	}
	return nil
}

func get(ctx context.Context, client *http.Client, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// scanJSString extracts the value of a `key: "value"` assignment from the
// inline JS of a rendered tower page. The value lives inside script text,
// so a substring scan is all there is to do.
func scanJSString(page, key string) (string, bool) {
	marker := key + `: "`
	start := strings.Index(page, marker)
	if start < 0 {
		return "", false
	}
	rest := page[start+len(marker):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
