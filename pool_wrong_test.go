/*
 * Copyright (c) 2023-present unTill Pro, Ltd. and Contributors
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// example of what happens if the caller contract is broken outside of debug mode
func TestPool_WrongExample(t *testing.T) {
	require := require.New(t)
	p := newIntPool(t, 4, 4)

	item, err := p.RequestItem(constant(1))
	require.NoError(err)

	// problem: released twice -> the same index is in the free stack twice
	require.NoError(p.ReleaseItem(item.Index))
	require.NoError(p.ReleaseItem(item.Index))

	new1, err := p.RequestItem(constant(2))
	require.NoError(err)
	new2, err := p.RequestItem(constant(3))
	require.NoError(err)

	// problem: 2 items taken from the pool are actually the same slot
	// problem: there is no error here. Errors will appear as data damages in random parts of the application
	// (solution: SetDebug(true) in tests, see TestDebug_DoubleRelease)
	require.Equal(new1.Index, new2.Index)
	require.Equal(1, p.GetLength())
}
