/*
 * Copyright (c) 2023-present unTill Pro, Ltd. and Contributors
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package pool

import (
	"fmt"
	"runtime"

	"github.com/valyala/bytebufferpool"
)

func newDebugTracker() *debugTracker {
	return &debugTracker{borrowed: map[int]string{}}
}

func (d *debugTracker) acquired(poolName string, index int, borrowStackTrace string) {
	d.mu.Lock()
	if d.inUse.test(index) {
		d.mu.Unlock()
		panic(fmt.Sprintf("%s: index %d handed out while in use", poolName, index))
	}
	d.inUse.set(index)
	d.borrowed[index] = borrowStackTrace
	d.mu.Unlock()

	m.Lock()
	objAmounts[borrowStackTrace]++
	m.Unlock()
}

func (d *debugTracker) released(poolName string, index int) {
	d.mu.Lock()
	if !d.inUse.test(index) {
		d.mu.Unlock()
		panic(fmt.Sprintf("%s: index %d released but not in use", poolName, index))
	}
	d.inUse.clear(index)
	st := d.borrowed[index]
	delete(d.borrowed, index)
	d.mu.Unlock()

	m.Lock()
	objAmounts[st]--
	m.Unlock()
}

// forget drops the slots still in use from the global borrow statistics
func (d *debugTracker) forget() {
	d.mu.Lock()
	borrowed := d.borrowed
	d.borrowed = map[int]string{}
	d.inUse = nil
	d.mu.Unlock()

	m.Lock()
	for _, st := range borrowed {
		objAmounts[st]--
	}
	m.Unlock()
}

func (b bitset) test(i int) bool {
	if i < 0 {
		return false
	}
	w := i / 64
	return w < len(b) && b[w]&(1<<(uint(i)%64)) != 0
}

func (b *bitset) set(i int) {
	w := i / 64
	for len(*b) <= w {
		*b = append(*b, 0)
	}
	(*b)[w] |= 1 << (uint(i) % 64)
}

func (b bitset) clear(i int) {
	if w := i / 64; i >= 0 && w < len(b) {
		b[w] &^= 1 << (uint(i) % 64)
	}
}

func (st stackTrace) string() string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	for _, sf := range st {
		fmt.Fprintf(buf, "%s\n\t%s:%d\n", sf.fn, sf.file, sf.line)
	}
	return buf.String()
}

// getStackTrace skips itself, trackAcquire() and RequestItem()
func getStackTrace() stackTrace {
	pc := make([]uintptr, 100) // can't estimate
	n := runtime.Callers(4, pc)
	frames := runtime.CallersFrames(pc[:n])
	st := stackTrace{}
	for {
		frame, more := frames.Next()
		st = append(st, stackFrame{
			fn:   frame.Function,
			file: frame.File,
			line: frame.Line,
		})
		if !more {
			break
		}
	}
	return st
}
