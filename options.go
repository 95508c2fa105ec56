/*
 * Copyright (c) 2023-present unTill Pro, Ltd. and Contributors
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package pool

import "github.com/rs/zerolog"

// WithName names the pool in logs, errors and panics. Default is pool-N
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger buffer growth is reported to. Default is zerolog.Nop()
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithIndexAllocator sets the memory provider of the free index stack. Default is HeapAllocator[int]
func WithIndexAllocator(alloc IAllocator[int]) Option {
	return func(o *options) {
		o.indexAllocator = alloc
	}
}
