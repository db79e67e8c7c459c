// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package kyotoerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesByKindOnly(t *testing.T) {
	a := Consensusf("merkle root mismatch at height %d", 100)
	b := New(Consensus, "")
	require.True(t, errors.Is(a, b))

	c := New(Protocol, "")
	require.False(t, errors.Is(a, c))
}

func TestWrapPreservesCauseChain(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	wrapped := Wrap(Transport, "reading header", cause)
	require.ErrorIs(t, wrapped, cause)
}

func TestKindOfUnwrapsThroughStdlibWrap(t *testing.T) {
	inner := Resourcef("deadline exceeded")
	outer := fmt.Errorf("fetch filter headers: %w", inner)

	kind, ok := KindOf(outer)
	require.True(t, ok)
	require.Equal(t, Resource, kind)
}

func TestKindOfReportsFalseForPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	require.False(t, ok)
}
