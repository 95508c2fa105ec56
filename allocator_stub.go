//go:build !unix

/*
 * Copyright (c) 2023-present unTill Pro, Ltd. and Contributors
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package pool

import "errors"

const pagesSupported = false

var errNoPages = errors.New("memory mapping is not supported")

func mapPages(int) ([]byte, error) {
	return nil, errNoPages
}

func unmapPages([]byte) error {
	return errNoPages
}
