//go:build unix

/*
 * Copyright (c) 2023-present unTill Pro, Ltd. and Contributors
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package pool

import "golang.org/x/sys/unix"

const pagesSupported = true

func mapPages(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

// mem must have the same address and capacity as returned by mapPages()
func unmapPages(mem []byte) error {
	return unix.Munmap(mem)
}
