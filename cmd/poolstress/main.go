/*
 * Copyright (c) 2023-present unTill Pro, Ltd. and Contributors
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dvir-yona/slotpool/internal/config"
	"github.com/dvir-yona/slotpool/internal/logger"
	"github.com/dvir-yona/slotpool/internal/stress"
)

const (
	exitOK = iota
	exitFailure
	exitViolations
)

func main() {
	os.Exit(start())
}

// start keeps every deferred cleanup inside so it runs before os.Exit()
func start() int {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return exitFailure
	}
	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		log.Error().Err(err).Msg("Invalid log level")
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	return run(ctx, cfg)
}

func run(ctx context.Context, cfg *config.Config) int {
	p, err := stress.NewPool(cfg, log.Logger)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create pool")
		return exitFailure
	}

	log.Info().
		Int("workers", cfg.Workers).
		Int("ops", cfg.Ops).
		Str("allocator", cfg.Allocator).
		Bool("debug", cfg.Debug).
		Msg("Stress run started")

	res, runErr := stress.Run(ctx, cfg, p, log.Logger)
	if err := p.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close pool")
	}

	log.Info().
		Uint64("constructed", res.Constructed).
		Uint64("reused", res.Reused).
		Uint64("released", res.Released).
		Int("length", res.Length).
		Int("capacity", res.Capacity).
		Int("available_capacity", res.AvailableCapacity).
		Dur("elapsed", res.Elapsed).
		Msg("Stress run finished")

	if runErr != nil {
		log.Error().Err(runErr).Msg("Stress run failed")
		return exitFailure
	}
	if res.Violations > 0 {
		log.Error().Uint64("violations", res.Violations).Msg("Slots were handed out twice")
		return exitViolations
	}
	return exitOK
}
