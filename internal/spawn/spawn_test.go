// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package spawn

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWaitBlocksUntilAllTasksReturn(t *testing.T) {
	var g Group
	var done int32

	for i := 0; i < 10; i++ {
		g.Go(func() {
			atomic.AddInt32(&done, 1)
		})
	}
	g.Wait()

	require.EqualValues(t, 10, atomic.LoadInt32(&done))
}
