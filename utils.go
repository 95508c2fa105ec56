/*
 * Copyright (c) 2023-present unTill Pro, Ltd. and Contributors
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package pool

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/slices"
)

var (
	m               sync.Mutex
	objectsCounters = map[uint64]func() uint64{}
	lastCounterID   uint64
	isDebug         atomic.Bool
	objAmounts      = map[string]int{}
)

// GetObjectsInUse returns total amount of slots taken from all pools but not released
// useful in tests
func GetObjectsInUse() uint64 {
	res := uint64(0)
	m.Lock()
	for _, oc := range objectsCounters {
		res += oc()
	}
	m.Unlock()
	return res
}

// RegisterObjectsInUseCounter registers objects counter which will be considered by GetObjectsInUse()
// called automatically on each NewPool() to track the new pool, Close() unregisters the pool
// useful if e.g. we have different pool somewhere else it is useful to register its counter here and use pool.GetObjectsInUse() only as a single pooled objects counter
// note: func counter must be thread-safe
func RegisterObjectsInUseCounter(oc func() uint64) {
	registerCounter(oc)
}

// PrintNonReleased prints stacktraces that explains where non-released slots were borrowed
// note: debug mode must be turned on by `pool.SetDebug(true)` call before the pool is created
func PrintNonReleased(w io.Writer) {
	nr := getNonReleased()
	if len(nr) == 0 {
		return
	}
	sites := make([]string, 0, len(nr))
	for st := range nr {
		sites = append(sites, st)
	}
	slices.Sort(sites)
	fmt.Fprintln(w, "slots borrowed from pools but not released:")
	for _, st := range sites {
		amount := nr[st]
		st = "\t" + strings.ReplaceAll(st, "\n", "\n\t")
		st = st[:len(st)-1]
		fmt.Fprintf(w, "%d not released borrowed at:\n%s", amount, st)
	}
}

// SetDebug switches debug mode for pools created after the call. In debug mode a pool tracks which slots are in use
// and where they were borrowed. ReleaseItem() panics on releasing a slot that is not in use
// use PrintNonReleased() to get explanations
// useful for tests and investigations only, decreases performance
func SetDebug(debug bool) {
	isDebug.Store(debug)
}

func registerCounter(oc func() uint64) uint64 {
	m.Lock()
	defer m.Unlock()
	lastCounterID++
	objectsCounters[lastCounterID] = oc
	return lastCounterID
}

func unregisterCounter(id uint64) {
	m.Lock()
	delete(objectsCounters, id)
	m.Unlock()
}

func getNonReleased() map[string]int {
	m.Lock()
	res := map[string]int{}
	for k, v := range objAmounts {
		if v > 0 {
			res[k] = v
		}
	}
	m.Unlock()
	return res
}
