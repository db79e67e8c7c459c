// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package watchlist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddScriptIdempotent(t *testing.T) {
	w := New()
	script := []byte{0x00, 0x14, 0x01, 0x02}

	isNew1, _ := w.AddScript(script, -1)
	isNew2, _ := w.AddScript(script, -1)

	require.True(t, isNew1)
	require.False(t, isNew2)
	require.Equal(t, 1, w.Len())
}

func TestAddScriptRewindsToEarlierHeight(t *testing.T) {
	w := New()
	script := []byte{0xaa}
	w.AddScript(script, 300000)

	_, first := w.AddScript(script, 250000)
	require.Equal(t, int32(250000), first)
}

func TestMatchAny(t *testing.T) {
	w := New()
	script := []byte{0x01}
	w.AddScript(script, -1)

	require.True(t, w.MatchAny([][]byte{{0x02}, {0x01}}))
	require.False(t, w.MatchAny([][]byte{{0x02}, {0x03}}))
}

func TestConcurrentReadWrite(t *testing.T) {
	w := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			w.AddScript([]byte{byte(i)}, -1)
		}(i)
		go func() {
			defer wg.Done()
			w.MatchAny([][]byte{{0x01}})
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, w.Len(), 50)
}
