/*
 * Copyright (c) 2021-present unTill Pro, Ltd.
 */

package pool

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Item is a handle to a slot borrowed from the pool
// Index is stable, Object is valid until the next growth of the storage
type Item[T any] struct {
	Object *T
	Index  int
}

type implPool[T any] struct {
	name      string
	chunkSize int
	log       zerolog.Logger

	storageLog zerolog.Logger
	freeLog    zerolog.Logger

	// storage side
	storageMu sync.Mutex
	storage   []T
	length    atomic.Int64
	capacity  atomic.Int64
	allocator IAllocator[T]

	// free index side
	freeMu            sync.RWMutex
	freeStack         []int
	availableLength   atomic.Int64
	availableCapacity atomic.Int64
	indexAllocator    IAllocator[int]

	counterID uint64
	debug     *debugTracker
}

type options struct {
	name           string
	log            zerolog.Logger
	indexAllocator IAllocator[int]
}

// Option configures NewPool()
type Option func(*options)

// debugTracker keeps occupancy of the slots of a pool created in debug mode
type debugTracker struct {
	mu       sync.Mutex
	inUse    bitset
	borrowed map[int]string // index -> borrow stack trace
}

type bitset []uint64

type stackFrame struct {
	fn   string
	file string
	line int
}

type stackTrace []stackFrame
