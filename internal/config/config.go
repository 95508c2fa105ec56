/*
 * Copyright (c) 2023-present unTill Pro, Ltd. and Contributors
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	AllocatorHeap = "heap"
	AllocatorPage = "page"
)

// Config is the configuration of the pool stress run.
type Config struct {
	Workers     int
	Ops         int
	MaxHeld     int
	InitialSize int
	ChunkSize   int
	Allocator   string
	Debug       bool
	Seed        int64
	Timeout     time.Duration
	LogLevel    string
}

// NewConfig reads flags from os.Args and lets environment variables override them.
func NewConfig() (*Config, error) {
	cfg := &Config{
		Workers:     8,
		Ops:         100000,
		MaxHeld:     16,
		InitialSize: 64,
		ChunkSize:   64,
		Allocator:   AllocatorHeap,
		Seed:        1,
		Timeout:     time.Minute,
		LogLevel:    "info",
	}

	flag.IntVar(&cfg.Workers, "w", cfg.Workers, "number of concurrent workers")
	flag.IntVar(&cfg.Ops, "n", cfg.Ops, "acquire/release operations per worker")
	flag.IntVar(&cfg.MaxHeld, "hold", cfg.MaxHeld, "max items held by a worker at once")
	flag.IntVar(&cfg.InitialSize, "initial", cfg.InitialSize, "initial pool capacity")
	flag.IntVar(&cfg.ChunkSize, "chunk", cfg.ChunkSize, "pool growth chunk size")
	flag.StringVar(&cfg.Allocator, "alloc", cfg.Allocator, "memory provider: heap or page")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "track slot occupancy and panic on misuse")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "run time limit")
	flag.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")

	flag.Parse()

	envInts := []struct {
		name string
		dst  *int
	}{
		{"POOL_WORKERS", &cfg.Workers},
		{"POOL_OPS", &cfg.Ops},
		{"POOL_HOLD", &cfg.MaxHeld},
		{"POOL_INITIAL", &cfg.InitialSize},
		{"POOL_CHUNK", &cfg.ChunkSize},
	}
	for _, e := range envInts {
		if v := os.Getenv(e.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e.name, err)
			}
			*e.dst = n
		}
	}

	if envAllocator := os.Getenv("POOL_ALLOCATOR"); envAllocator != "" {
		cfg.Allocator = envAllocator
	}

	if envDebug := os.Getenv("POOL_DEBUG"); envDebug != "" {
		debug, err := strconv.ParseBool(envDebug)
		if err != nil {
			return nil, fmt.Errorf("POOL_DEBUG: %w", err)
		}
		cfg.Debug = debug
	}

	if envLogLevel := os.Getenv("POOL_LOG_LEVEL"); envLogLevel != "" {
		cfg.LogLevel = envLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the run can be started with the config.
func (c *Config) Validate() error {
	switch {
	case c.Workers <= 0:
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	case c.Ops < 0:
		return fmt.Errorf("ops must not be negative, got %d", c.Ops)
	case c.MaxHeld <= 0:
		return fmt.Errorf("hold must be positive, got %d", c.MaxHeld)
	case c.ChunkSize <= 0:
		return fmt.Errorf("chunk must be positive, got %d", c.ChunkSize)
	case c.Allocator != AllocatorHeap && c.Allocator != AllocatorPage:
		return fmt.Errorf("unknown allocator %q", c.Allocator)
	}
	return nil
}
