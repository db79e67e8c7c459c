// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package connmgr

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kyoto-spv/kyoto/addrmgr"
	"github.com/kyoto-spv/kyoto/chain"
	"github.com/kyoto-spv/kyoto/chaincfg"
	"github.com/kyoto-spv/kyoto/peer"
	"github.com/kyoto-spv/kyoto/watchlist"
	"github.com/kyoto-spv/kyoto/wire"
	"github.com/stretchr/testify/require"
)

type fakeEngineRequester struct{}

func (fakeEngineRequester) RequestHeaders(string, []*chainhash.Hash, chainhash.Hash) {}
func (fakeEngineRequester) RequestCFHeaders(string, uint32, chainhash.Hash)          {}
func (fakeEngineRequester) RequestCFilters(string, uint32, chainhash.Hash)           {}
func (fakeEngineRequester) RequestBlock(string, chainhash.Hash)                      {}
func (fakeEngineRequester) Ban(string, chain.DisconnectReason)                       {}
func (fakeEngineRequester) PickDataPeer(exclude ...string) string                    { return "" }

func testSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	params := chaincfg.RegtestParams
	am := addrmgr.New()
	engine := chain.New(&params, fakeEngineRequester{}, watchlist.New())
	go engine.Run()
	t.Cleanup(engine.Stop)

	sup := New(Config{
		Params:            &params,
		TargetConnections: 4,
		TargetDataPeers:   1,
		Timeouts:          peer.DefaultTimeouts(),
	}, engine, am)
	t.Cleanup(sup.Stop)
	return sup
}

func minimalTx() *wire.MsgTx {
	return &wire.MsgTx{Version: 1}
}

func TestRecordFailureBacksOffExponentially(t *testing.T) {
	sup := testSupervisor(t)
	sup.recordFailure("1.2.3.4:8333")
	first := sup.backoff["1.2.3.4:8333"]
	require.Equal(t, baseBackoff, first)

	sup.recordFailure("1.2.3.4:8333")
	second := sup.backoff["1.2.3.4:8333"]
	require.Equal(t, first*2, second)
}

func TestRecordFailureCapsAtMaxBackoff(t *testing.T) {
	sup := testSupervisor(t)
	for i := 0; i < 20; i++ {
		sup.recordFailure("1.2.3.4:8333")
	}
	require.Equal(t, maxBackoff, sup.backoff["1.2.3.4:8333"])
}

func TestGroupOfUsesHostOnly(t *testing.T) {
	require.Equal(t, "1.2.3.4", groupOf("1.2.3.4:8333"))
}

func TestBroadcastTxNoPeerFetchedWhenNoGossipPeers(t *testing.T) {
	sup := testSupervisor(t)
	outcome := sup.BroadcastTx(minimalTx())
	require.Equal(t, BroadcastNoPeerFetched, outcome)
}

func TestPickGossipPeerExcludesSeededPeers(t *testing.T) {
	sup := testSupervisor(t)
	sup.peers["1.1.1.1:8333"] = &peerEntry{addr: "1.1.1.1:8333", seeded: true, isDataPeer: false}
	sup.peers["2.2.2.2:8333"] = &peerEntry{addr: "2.2.2.2:8333", seeded: false, isDataPeer: true}

	for i := 0; i < 20; i++ {
		got := sup.pickGossipPeer(nil)
		require.Equal(t, "2.2.2.2:8333", got)
	}
}

func TestPickGossipPeerEmptyWhenOnlySeededPeers(t *testing.T) {
	sup := testSupervisor(t)
	sup.peers["1.1.1.1:8333"] = &peerEntry{addr: "1.1.1.1:8333", seeded: true}

	require.Equal(t, "", sup.pickGossipPeer(nil))
}
