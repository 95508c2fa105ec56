/*
 * Copyright (c) 2023-present unTill Pro, Ltd. and Contributors
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

// Package stress hammers a pool from concurrent workers and checks that
// a slot is never handed to two holders at once.
package stress

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"

	pool "github.com/dvir-yona/slotpool"
	"github.com/dvir-yona/slotpool/internal/config"
)

// Record is the pooled type. It holds no pointers so it can live in mapped pages.
type Record struct {
	// Owner is the worker holding the slot, 0 if the slot is free
	Owner int64
	// Uses counts acquisitions of the slot
	Uses uint64
}

// Result summarizes a run.
type Result struct {
	Constructed uint64
	Reused      uint64
	Released    uint64
	Violations  uint64

	Length            int
	Capacity          int
	AvailableCapacity int
	Elapsed           time.Duration
}

// NewPool creates the pool under test with the configured memory provider.
func NewPool(cfg *config.Config, log zerolog.Logger) (pool.IPool[Record], error) {
	var alloc pool.IAllocator[Record] = pool.HeapAllocator[Record]{}
	if cfg.Allocator == config.AllocatorPage {
		pageAlloc, err := pool.NewPageAllocator[Record]()
		if err != nil {
			return nil, err
		}
		alloc = pageAlloc
	}
	pool.SetDebug(cfg.Debug)
	defer pool.SetDebug(false)
	return pool.NewPool[Record](cfg.InitialSize, cfg.ChunkSize, alloc,
		pool.WithName("stress"),
		pool.WithLogger(log))
}

type runner struct {
	cfg *config.Config
	p   pool.IPool[Record]
	log zerolog.Logger

	constructed atomic.Uint64
	reused      atomic.Uint64
	released    atomic.Uint64
	violations  atomic.Uint64
}

// Run starts cfg.Workers workers each issuing cfg.Ops randomized acquire/release calls.
// Every worker releases all its slots before it stops. Run stops early if ctx is done.
func Run(ctx context.Context, cfg *config.Config, p pool.IPool[Record], log zerolog.Logger) (Result, error) {
	r := &runner{cfg: cfg, p: p, log: log}
	start := time.Now()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for w := 1; w <= cfg.Workers; w++ {
		wg.Add(1)
		go func(w int64) {
			defer wg.Done()
			if err := r.work(ctx, w); err != nil {
				errOnce.Do(func() { firstErr = err })
			}
		}(int64(w))
	}
	wg.Wait()

	return Result{
		Constructed:       r.constructed.Load(),
		Reused:            r.reused.Load(),
		Released:          r.released.Load(),
		Violations:        r.violations.Load(),
		Length:            p.GetLength(),
		Capacity:          p.GetCapacity(),
		AvailableCapacity: p.GetAvailableCapacity(),
		Elapsed:           time.Since(start),
	}, firstErr
}

func (r *runner) work(ctx context.Context, worker int64) error {
	rnd := rand.New(rand.NewSource(r.cfg.Seed + worker))
	held := queue.New()
	var err error
	for i := 0; i < r.cfg.Ops && ctx.Err() == nil; i++ {
		if held.Length() < r.cfg.MaxHeld && (held.Length() == 0 || rnd.Intn(2) == 0) {
			var index int
			if index, err = r.acquire(worker); err != nil {
				break
			}
			held.Add(index)
		} else if err = r.release(worker, held.Remove().(int)); err != nil {
			break
		}
	}
	for held.Length() > 0 {
		if releaseErr := r.release(worker, held.Remove().(int)); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}
	return err
}

func (r *runner) acquire(worker int64) (int, error) {
	constructed := false
	item, err := r.p.RequestItem(func(pool.IPool[Record]) Record {
		constructed = true
		return Record{}
	})
	if err != nil {
		return 0, fmt.Errorf("worker %d: %w", worker, err)
	}
	if constructed {
		r.constructed.Add(1)
	} else {
		r.reused.Add(1)
	}

	var prevOwner int64
	r.p.Update(item.Index, func(rec *Record) {
		prevOwner = rec.Owner
		rec.Owner = worker
		rec.Uses++
	})
	if prevOwner != 0 {
		r.violations.Add(1)
		r.log.Error().Int("index", item.Index).Int64("worker", worker).Int64("holder", prevOwner).Msg("slot handed out while held")
	}
	return item.Index, nil
}

func (r *runner) release(worker int64, index int) error {
	var owner int64
	r.p.Update(index, func(rec *Record) {
		owner = rec.Owner
		if owner == worker {
			rec.Owner = 0
		}
	})
	if owner != worker {
		r.violations.Add(1)
		r.log.Error().Int("index", index).Int64("worker", worker).Int64("holder", owner).Msg("held slot taken over")
	}
	if err := r.p.ReleaseItem(index); err != nil {
		return fmt.Errorf("worker %d: %w", worker, err)
	}
	r.released.Add(1)
	return nil
}
