// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package belltower

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// BotConfig holds the YAML configuration for bots built on this library
// (see cmd/bellbot). Call PostProcess after unmarshalling.
type BotConfig struct {
	// TowerID is the numeric Ringing Room tower ID to join.
	TowerID int `yaml:"tower_id"`
	// ServerURL is the Ringing Room instance. Defaults to DefaultServerURL.
	ServerURL string `yaml:"server_url"`
	// LogLevel is a zerolog level name ("debug", "info", ...). Defaults to
	// "info".
	LogLevel string `yaml:"log_level"`
	// ChatName is the display name used for chat messages. Defaults to
	// "bellbot".
	ChatName string `yaml:"chat_name"`
	// BellGap is the time between bell strokes, as a Go duration string.
	// Defaults to "300ms".
	BellGap string `yaml:"bell_gap"`
	// HandstrokeGap is how many extra bell gaps to leave before each
	// handstroke row. Defaults to 1.
	HandstrokeGap int `yaml:"handstroke_gap"`

	logLevel zerolog.Level `yaml:"-"`
	bellGap  time.Duration `yaml:"-"`
}

func (c *BotConfig) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig BotConfig
	return node.Decode((*rawConfig)(c))
}

// PostProcess applies defaults and validates the parsed config.
func (c *BotConfig) PostProcess() error {
	if c.TowerID <= 0 {
		return fmt.Errorf("tower_id must be a positive tower ID, got %d", c.TowerID)
	}
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log_level: %w", err)
	}
	c.logLevel = level
	if c.ChatName == "" {
		c.ChatName = "bellbot"
	}
	if c.BellGap == "" {
		c.BellGap = "300ms"
	}
	gap, err := time.ParseDuration(c.BellGap)
	if err != nil {
		return fmt.Errorf("parse bell_gap: %w", err)
	}
	if gap <= 0 {
		return fmt.Errorf("bell_gap must be positive, got %s", gap)
	}
	c.bellGap = gap
	if c.HandstrokeGap < 0 {
		return fmt.Errorf("handstroke_gap must not be negative, got %d", c.HandstrokeGap)
	}
	if c.HandstrokeGap == 0 {
		c.HandstrokeGap = 1
	}
	return nil
}

// Level returns the parsed log level.
func (c *BotConfig) Level() zerolog.Level {
	return c.logLevel
}

// BellGapDuration returns the parsed gap between bell strokes.
func (c *BotConfig) BellGapDuration() time.Duration {
	return c.bellGap
}

// LoadBotConfig reads and validates a YAML bot config file.
func LoadBotConfig(path string) (*BotConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg BotConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
