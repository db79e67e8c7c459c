// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kyoto-spv/kyoto/chaincfg"
	"github.com/kyoto-spv/kyoto/wire"
	"github.com/stretchr/testify/require"
)

func minimalTx() *wire.MsgTx {
	return &wire.MsgTx{Version: 1}
}

func testNode(t *testing.T) *Node {
	t.Helper()
	params := chaincfg.RegtestParams
	params.AnchorCheckpoint = chaincfg.Checkpoint{Height: 0, Hash: chainhash.Hash{9}}

	n, err := New(Config{
		Params:            &params,
		TargetConnections: 0,
		TargetDataPeers:   0,
	})
	require.NoError(t, err)

	go n.Run()
	t.Cleanup(n.Shutdown)
	return n
}

func TestAddScriptIsIdempotent(t *testing.T) {
	n := testNode(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, n.AddScript(ctx, []byte{0xaa, 0xbb}, 5))
	require.NoError(t, n.AddScript(ctx, []byte{0xaa, 0xbb}, 5))
	require.Equal(t, 1, n.watchlist.Len())
}

func TestBroadcastTxWithNoPeersReportsNoFetch(t *testing.T) {
	n := testNode(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	outcome, err := n.BroadcastTx(ctx, minimalTx())
	require.NoError(t, err)
	require.Equal(t, "NoPeerFetched", outcome.String())
}

func TestGetFeeEstimateReportsUnavailable(t *testing.T) {
	n := testNode(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := n.GetFeeEstimate(ctx)
	require.Error(t, err)
}

func TestShutdownStopsAcceptingCommands(t *testing.T) {
	n := testNode(t)
	n.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := n.AddScript(ctx, []byte{0x01}, 0)
	require.Error(t, err)
}
