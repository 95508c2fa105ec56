/*
 * Copyright (c) 2020-present unTill Pro, Ltd.
 */

package pool

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/fishy/errbatch"
	"github.com/rs/zerolog"
)

var poolSeq atomic.Uint64

// NewPool creates a pool with capacity of initialSize rounded up to a whole number of chunks
// both the storage and the free index stack grow by chunkSize slots
// panics if chunkSize is not positive or allocator is nil
func NewPool[T any](initialSize, chunkSize int, allocator IAllocator[T], opts ...Option) (IPool[T], error) {
	if chunkSize <= 0 {
		panic(fmt.Sprintf("chunk size must be positive, got %d", chunkSize))
	}
	if allocator == nil {
		panic("allocator must not be nil")
	}
	o := options{
		log:            zerolog.Nop(),
		indexAllocator: HeapAllocator[int]{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.name) == 0 {
		o.name = fmt.Sprintf("pool-%d", poolSeq.Add(1))
	}

	log := o.log.With().Str("pool", o.name).Logger()
	res := &implPool[T]{
		name:           o.name,
		chunkSize:      chunkSize,
		log:            log,
		storageLog:     log.With().Str("buffer", "storage").Logger(),
		freeLog:        log.With().Str("buffer", "free").Logger(),
		allocator:      allocator,
		indexAllocator: o.indexAllocator,
	}

	capacity, ok := roundUp(initialSize, chunkSize)
	if !ok {
		return nil, fmt.Errorf("%s: create: %w", o.name, errCapacityOverflow(initialSize))
	}
	storage, err := allocator.Allocate(capacity)
	if err != nil {
		return nil, fmt.Errorf("%s: create storage of %d slots: %w", o.name, capacity, err)
	}
	freeStack, err := o.indexAllocator.Allocate(capacity)
	if err != nil {
		if releaseErr := allocator.Release(storage); releaseErr != nil {
			res.log.Error().Err(releaseErr).Msg("failed to release storage of the pool failed to create")
		}
		return nil, fmt.Errorf("%s: create free index stack of %d slots: %w", o.name, capacity, err)
	}
	res.storage = storage
	res.capacity.Store(int64(len(storage)))
	res.freeStack = freeStack
	res.availableCapacity.Store(int64(len(freeStack)))

	if isDebug.Load() {
		res.debug = newDebugTracker()
	}
	res.counterID = registerCounter(res.objectsInUse)
	return res, nil
}

func (p *implPool[T]) RequestItem(constructor func(p IPool[T]) T) (Item[T], error) {
	if index, ok := p.popAvailable(); ok {
		p.trackAcquire(index)
		p.storageMu.Lock()
		obj := &p.storage[index]
		p.storageMu.Unlock()
		return Item[T]{Object: obj, Index: index}, nil
	}

	p.storageMu.Lock()
	defer p.storageMu.Unlock()
	index := int(p.length.Load())
	if index == len(p.storage) {
		if err := p.growStorage(); err != nil {
			return Item[T]{}, fmt.Errorf("%s: request item: %w", p.name, err)
		}
	}
	p.storage[index] = constructor(p)
	p.length.Store(int64(index + 1))
	p.trackAcquire(index)
	return Item[T]{Object: &p.storage[index], Index: index}, nil
}

// popAvailable takes the top of the free index stack
// the stack could be drained between the shared check and the exclusive pop so the emptiness is checked again
func (p *implPool[T]) popAvailable() (int, bool) {
	p.freeMu.RLock()
	available := p.availableLength.Load() > 0
	p.freeMu.RUnlock()
	if !available {
		return 0, false
	}

	p.freeMu.Lock()
	defer p.freeMu.Unlock()
	top := p.availableLength.Load()
	if top == 0 {
		return 0, false
	}
	top--
	p.availableLength.Store(top)
	return p.freeStack[top], true
}

func (p *implPool[T]) ReleaseItem(index int) error {
	p.freeMu.Lock()
	defer p.freeMu.Unlock()
	top := int(p.availableLength.Load())
	if top == len(p.freeStack) {
		if err := p.growFree(); err != nil {
			return fmt.Errorf("%s: release item %d: %w", p.name, index, err)
		}
	}
	// must be untracked before the index becomes visible to poppers
	p.trackRelease(index)
	p.freeStack[top] = index
	p.availableLength.Store(int64(top + 1))
	return nil
}

func (p *implPool[T]) Reserve(count int) error {
	p.storageMu.Lock()
	defer p.storageMu.Unlock()
	chunks := chunksFor(count, p.chunkSize)
	if _, ok := growTarget(len(p.storage), chunks, p.chunkSize); !ok {
		return fmt.Errorf("%s: reserve %d: %w", p.name, count, errCapacityOverflow(count))
	}
	for i := chunks; i > 0; i-- {
		if err := p.growStorage(); err != nil {
			return fmt.Errorf("%s: reserve %d: %w", p.name, count, err)
		}
	}
	return nil
}

func (p *implPool[T]) ReserveUpTo(count int) error {
	p.storageMu.Lock()
	defer p.storageMu.Unlock()
	target, ok := roundUp(count, p.chunkSize)
	if !ok {
		return fmt.Errorf("%s: reserve up to %d: %w", p.name, count, errCapacityOverflow(count))
	}
	for len(p.storage) < target {
		if err := p.growStorage(); err != nil {
			return fmt.Errorf("%s: reserve up to %d: %w", p.name, count, err)
		}
	}
	return nil
}

func (p *implPool[T]) ReserveAvailable(count int) error {
	p.freeMu.Lock()
	defer p.freeMu.Unlock()
	chunks := chunksFor(count, p.chunkSize)
	if _, ok := growTarget(len(p.freeStack), chunks, p.chunkSize); !ok {
		return fmt.Errorf("%s: reserve available %d: %w", p.name, count, errCapacityOverflow(count))
	}
	for i := chunks; i > 0; i-- {
		if err := p.growFree(); err != nil {
			return fmt.Errorf("%s: reserve available %d: %w", p.name, count, err)
		}
	}
	return nil
}

func (p *implPool[T]) ReserveAvailableUpTo(count int) error {
	p.freeMu.Lock()
	defer p.freeMu.Unlock()
	target, ok := roundUp(count, p.chunkSize)
	if !ok {
		return fmt.Errorf("%s: reserve available up to %d: %w", p.name, count, errCapacityOverflow(count))
	}
	for len(p.freeStack) < target {
		if err := p.growFree(); err != nil {
			return fmt.Errorf("%s: reserve available up to %d: %w", p.name, count, err)
		}
	}
	return nil
}

func (p *implPool[T]) GetCapacity() int {
	return int(p.capacity.Load())
}

func (p *implPool[T]) GetAvailableCapacity() int {
	return int(p.availableCapacity.Load())
}

func (p *implPool[T]) GetLength() int {
	return int(p.length.Load())
}

func (p *implPool[T]) GetAvailableLength() int {
	return int(p.availableLength.Load())
}

func (p *implPool[T]) ItemAt(index int) *T {
	p.storageMu.Lock()
	defer p.storageMu.Unlock()
	p.checkIndex(index)
	return &p.storage[index]
}

func (p *implPool[T]) Update(index int, fn func(obj *T)) {
	p.storageMu.Lock()
	defer p.storageMu.Unlock()
	p.checkIndex(index)
	fn(&p.storage[index])
}

func (p *implPool[T]) Close() error {
	unregisterCounter(p.counterID)
	var errs errbatch.ErrBatch

	p.storageMu.Lock()
	if err := p.allocator.Release(p.storage); err != nil {
		errs.Add(fmt.Errorf("%s: release storage: %w", p.name, err))
	}
	p.storage = nil
	p.length.Store(0)
	p.capacity.Store(0)
	p.storageMu.Unlock()

	p.freeMu.Lock()
	if err := p.indexAllocator.Release(p.freeStack); err != nil {
		errs.Add(fmt.Errorf("%s: release free index stack: %w", p.name, err))
	}
	p.freeStack = nil
	p.availableLength.Store(0)
	p.availableCapacity.Store(0)
	p.freeMu.Unlock()

	if p.debug != nil {
		p.debug.forget()
	}
	p.log.Debug().Msg("pool closed")
	return errs.Compile()
}

// growStorage adds one chunk to the storage. storageMu must be held
func (p *implPool[T]) growStorage() error {
	next, err := regrow(p.allocator, p.storage, int(p.length.Load()), p.chunkSize, p.storageLog)
	if err != nil {
		return err
	}
	p.storage = next
	p.capacity.Store(int64(len(next)))
	return nil
}

// growFree adds one chunk to the free index stack. freeMu must be held
func (p *implPool[T]) growFree() error {
	next, err := regrow(p.indexAllocator, p.freeStack, int(p.availableLength.Load()), p.chunkSize, p.freeLog)
	if err != nil {
		return err
	}
	p.freeStack = next
	p.availableCapacity.Store(int64(len(next)))
	return nil
}

func (p *implPool[T]) checkIndex(index int) {
	if length := int(p.length.Load()); index < 0 || index >= length {
		panic(fmt.Sprintf("%s: index %d out of range [0, %d)", p.name, index, length))
	}
}

func (p *implPool[T]) objectsInUse() uint64 {
	inUse := p.length.Load() - p.availableLength.Load()
	if inUse < 0 {
		// counters are read separately and may be caught mid-update
		return 0
	}
	return uint64(inUse)
}

func (p *implPool[T]) trackAcquire(index int) {
	if p.debug != nil {
		p.debug.acquired(p.name, index, getStackTrace().string())
	}
}

func (p *implPool[T]) trackRelease(index int) {
	if p.debug != nil {
		p.debug.released(p.name, index)
	}
}

// regrow moves the first live elements of buf to a new buffer one chunk larger
// buf is returned back to alloc
func regrow[E any](alloc IAllocator[E], buf []E, live int, chunk int, log zerolog.Logger) ([]E, error) {
	next, err := alloc.Allocate(len(buf) + chunk)
	if err != nil {
		log.Warn().Err(err).Int("capacity", len(buf)).Int("chunk", chunk).Msg("growth failed")
		return buf, err
	}
	copy(next, buf[:live])
	if err := alloc.Release(buf); err != nil {
		log.Error().Err(err).Int("capacity", len(buf)).Msg("failed to release replaced buffer")
	}
	log.Debug().Int("capacity", len(next)).Int("chunk", chunk).Msg("grown")
	return next, nil
}

func chunksFor(count, chunkSize int) int {
	if count <= 0 {
		return 0
	}
	chunks := count / chunkSize
	if count%chunkSize != 0 {
		chunks++
	}
	return chunks
}

// roundUp returns count rounded up to whole chunks, false if that does not fit int
func roundUp(count, chunkSize int) (int, bool) {
	chunks := chunksFor(count, chunkSize)
	if chunks > math.MaxInt/chunkSize {
		return 0, false
	}
	return chunks * chunkSize, true
}

// growTarget returns capacity grown by the given number of chunks, false if that does not fit int
func growTarget(capacity, chunks, chunkSize int) (int, bool) {
	if chunks > (math.MaxInt-capacity)/chunkSize {
		return 0, false
	}
	return capacity + chunks*chunkSize, true
}

func errCapacityOverflow(count int) error {
	return fmt.Errorf("%w: capacity for %d slots does not fit int", ErrAllocation, count)
}
