/*
 * Copyright (c) 2023-present unTill Pro, Ltd. and Contributors
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package pool

// IPool is a growable, thread-safe pool of T slots addressed by index.
// use NewPool()
//
// Caller contract (not checked unless debug mode is on, see SetDebug()):
//   - an index must be released only once per acquisition
//   - only indices obtained from RequestItem() may be released
//   - Item.Object and pointers from ItemAt() are valid only until the next call that may grow storage
//     (RequestItem, Reserve, ReserveUpTo, Close)
type IPool[T any] interface {
	// RequestItem returns a free slot if there is one, otherwise constructs a new one at index GetLength().
	// constructor is called exactly once per fresh slot and never on reuse: reused slots keep their last content.
	// constructor runs under the storage lock and must not call storage-side methods of the same pool
	// (RequestItem, Reserve, ReserveUpTo, ItemAt, Update, Close)
	RequestItem(constructor func(p IPool[T]) T) (Item[T], error)

	// ReleaseItem makes index available for reuse
	// the only possible error is a failure to grow the free index stack, the index is not released then
	ReleaseItem(index int) error

	// Reserve grows storage by ceil(count/chunkSize) chunks even if the capacity is already enough
	Reserve(count int) error
	// ReserveUpTo grows storage until its capacity is at least ceil(count/chunkSize)*chunkSize
	ReserveUpTo(count int) error
	// ReserveAvailable is Reserve() for the free index stack
	ReserveAvailable(count int) error
	// ReserveAvailableUpTo is ReserveUpTo() for the free index stack
	ReserveAvailableUpTo(count int) error

	GetCapacity() int
	GetAvailableCapacity() int
	GetLength() int
	GetAvailableLength() int

	// ItemAt resolves index against the current storage buffer
	ItemAt(index int) *T

	// Update calls fn for the slot under the storage lock so the access can not race with storage growth
	Update(index int, fn func(obj *T))

	// Close returns both buffers to their allocators. No per-object finalization is made
	// the pool must not be used after Close()
	Close() error
}

// IAllocator is the memory provider the pool gets its buffers from
// implementations must be thread-safe if shared between pools
type IAllocator[T any] interface {
	// Allocate returns a buffer of exactly n elements. Errors must wrap ErrAllocation
	Allocate(n int) ([]T, error)
	// Release returns the buffer obtained from Allocate(). buf must not be used after that
	Release(buf []T) error
}
