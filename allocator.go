/*
 * Copyright (c) 2023-present unTill Pro, Ltd. and Contributors
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package pool

import (
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"unsafe"
)

// ErrAllocation is wrapped by every error of a memory provider
var ErrAllocation = errors.New("allocation failed")

// HeapAllocator allocates buffers on the Go heap
type HeapAllocator[T any] struct{}

func (HeapAllocator[T]) Allocate(n int) (buf []T, err error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrAllocation, n)
	}
	defer func() {
		// makeslice panics if n elements of T do not fit the address space
		if r := recover(); r != nil {
			buf = nil
			err = fmt.Errorf("%w: %d elements: %v", ErrAllocation, n, r)
		}
	}()
	return make([]T, n), nil
}

// Release does nothing, the buffer is collected by GC
func (HeapAllocator[T]) Release([]T) error {
	return nil
}

// LimitAllocator refuses to allocate buffers longer than MaxLen elements
// i.e. a pool using it never grows beyond MaxLen slots
type LimitAllocator[T any] struct {
	Next   IAllocator[T]
	MaxLen int
}

func NewLimitAllocator[T any](next IAllocator[T], maxLen int) *LimitAllocator[T] {
	return &LimitAllocator[T]{Next: next, MaxLen: maxLen}
}

func (a *LimitAllocator[T]) Allocate(n int) ([]T, error) {
	if n > a.MaxLen {
		return nil, fmt.Errorf("%w: %d elements requested, limit is %d", ErrAllocation, n, a.MaxLen)
	}
	return a.Next.Allocate(n)
}

func (a *LimitAllocator[T]) Release(buf []T) error {
	return a.Next.Release(buf)
}

// PageAllocator allocates buffers as whole pages of anonymous memory mapped out of the Go heap
// GC does not scan such memory so T must not contain pointers, see NewPageAllocator()
// Item.Object of a pool using PageAllocator must not be touched after storage growth: the old pages are unmapped
type PageAllocator[T any] struct {
	elemSize int
	pageSize int
}

// NewPageAllocator returns error if T contains pointers (incl. strings, slices, maps, interfaces)
// or if memory mapping is not supported on the platform
func NewPageAllocator[T any]() (*PageAllocator[T], error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if containsPointers(t) {
		return nil, fmt.Errorf("page allocator: %s contains pointers", t)
	}
	if !pagesSupported {
		return nil, errors.New("page allocator: memory mapping is not supported on this platform")
	}
	return &PageAllocator[T]{
		elemSize: int(t.Size()),
		pageSize: os.Getpagesize(),
	}, nil
}

func (a *PageAllocator[T]) Allocate(n int) ([]T, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrAllocation, n)
	}
	if n == 0 || a.elemSize == 0 {
		return make([]T, n), nil
	}
	if n > math.MaxInt/a.elemSize {
		return nil, fmt.Errorf("%w: %d elements of %d bytes overflow", ErrAllocation, n, a.elemSize)
	}
	size, ok := roundUp(n*a.elemSize, a.pageSize)
	if !ok {
		return nil, fmt.Errorf("%w: %d elements of %d bytes overflow", ErrAllocation, n, a.elemSize)
	}
	mem, err := mapPages(size)
	if err != nil {
		return nil, fmt.Errorf("%w: map %d bytes: %v", ErrAllocation, size, err)
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&mem[0])), n), nil
}

func (a *PageAllocator[T]) Release(buf []T) error {
	if cap(buf) == 0 || a.elemSize == 0 {
		return nil
	}
	// fits: the same size was mapped by Allocate()
	size, _ := roundUp(cap(buf)*a.elemSize, a.pageSize)
	mem := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(buf))), size)
	if err := unmapPages(mem); err != nil {
		return fmt.Errorf("unmap %d bytes: %w", size, err)
	}
	return nil
}

func containsPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && containsPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if containsPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

var (
	_ IAllocator[int] = HeapAllocator[int]{}
	_ IAllocator[int] = (*LimitAllocator[int])(nil)
	_ IAllocator[int] = (*PageAllocator[int])(nil)
)
