// Copyright 2025-2026 The belltower-go Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command bellbot joins a Ringing Room tower and rings rounds on all the
// bells until interrupted, logging everything that happens in the tower.
// It is the runnable demonstration of the belltower library.
//
// Configuration comes from a YAML file (see config.example.yaml), with
// BELLTOWER_TOWER_ID and BELLTOWER_SERVER_URL environment overrides; a
// .env file in the working directory is honored.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ringingbots/belltower/pkg/belltower"
)

func main() {
	configPath := flag.String("config", "bellbot.yaml", "path to the bot config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "bellbot:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	_ = godotenv.Load()

	cfg, err := belltower.LoadBotConfig(configPath)
	if err != nil {
		return err
	}
	if raw := os.Getenv("BELLTOWER_TOWER_ID"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse BELLTOWER_TOWER_ID: %w", err)
		}
		cfg.TowerID = id
	}
	if raw := os.Getenv("BELLTOWER_SERVER_URL"); raw != "" {
		cfg.ServerURL = raw
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(cfg.Level()).
		With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tower := belltower.NewTower(cfg.TowerID, &belltower.TowerOptions{
		ServerURL: cfg.ServerURL,
		Logger:    &log,
	})

	tower.OnUserEnter(func(userID int, name string) {
		log.Info().Int("user_id", userID).Str("name", name).Msg("User entered")
	})
	tower.OnUserLeave(func(userID int, name string) {
		log.Info().Int("user_id", userID).Str("name", name).Msg("User left")
	})
	tower.OnChat(func(user, message string) {
		log.Info().Str("from", user).Str("message", message).Msg("Chat")
	})
	tower.OnAnyCall(func(call string) {
		log.Info().Str("call", call).Msg("Call made")
	})
	tower.OnSizeChange(func(size int) {
		log.Info().Int("size", size).Msg("Tower size changed")
	})
	tower.OnBellTypeChange(func(bt belltower.BellType) {
		log.Info().Stringer("bell_type", bt).Msg("Bell type changed")
	})

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := tower.Connect(connectCtx); err != nil {
		return err
	}
	defer tower.Close()
	if err := tower.WaitReady(connectCtx); err != nil {
		return err
	}

	log.Info().Str("tower_name", tower.TowerName()).Int("bells", tower.NumberOfBells()).
		Msg("Tower ready, ringing rounds")

	if err := tower.SetAtHand(ctx); err != nil {
		return err
	}
	if err := tower.CallLookTo(ctx); err != nil {
		return err
	}
	if err := sleep(ctx, 3*time.Second); err != nil {
		return nil
	}

	if err := tower.Chat(ctx, cfg.ChatName, "Ringing rounds, stand me down with Ctrl-C."); err != nil {
		return err
	}
	return ringRounds(ctx, tower, cfg)
}

// ringRounds rings every bell in order, row after row, with an extra gap
// before each handstroke row, until the context is cancelled.
func ringRounds(ctx context.Context, tower *belltower.Tower, cfg *belltower.BotConfig) error {
	gap := cfg.BellGapDuration()
	for row := 0; ; row++ {
		stroke := belltower.StrokeFromIndex(row)
		if stroke.IsHand() {
			if err := sleep(ctx, time.Duration(cfg.HandstrokeGap)*gap); err != nil {
				return nil
			}
		}
		for i := 0; i < tower.NumberOfBells(); i++ {
			bell, err := belltower.BellFromIndex(i)
			if err != nil {
				return err
			}
			if err := tower.RingBellAt(ctx, bell, stroke); err != nil {
				return err
			}
			if err := sleep(ctx, gap); err != nil {
				return nil
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
