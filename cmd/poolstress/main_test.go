package main

import (
	"context"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dvir-yona/slotpool/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Workers:     4,
		Ops:         500,
		MaxHeld:     4,
		InitialSize: 4,
		ChunkSize:   4,
		Allocator:   config.AllocatorHeap,
		Seed:        3,
		Timeout:     time.Minute,
		LogLevel:    "error",
	}
}

func TestRun(t *testing.T) {
	assert.Equal(t, exitOK, run(context.Background(), testConfig()))
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, exitOK, run(ctx, testConfig()))
}

func withArgs(t *testing.T, args ...string) {
	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	flag.CommandLine = flag.NewFlagSet("cmd", flag.ContinueOnError)
	os.Args = append([]string{"cmd"}, args...)
}

func TestStart(t *testing.T) {
	withArgs(t, "-w", "2", "-n", "100", "-l", "error")
	assert.Equal(t, exitOK, start())
}

func TestStart_InvalidConfig(t *testing.T) {
	withArgs(t, "-chunk", "0")
	assert.Equal(t, exitFailure, start())
}

func TestStart_InvalidLogLevel(t *testing.T) {
	withArgs(t, "-n", "10", "-l", "loud")
	assert.Equal(t, exitFailure, start())
}
