// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kyoto-spv/kyoto/chain"
)

// Event is the unified stream a Node client observes: sync progress,
// watchlist matches, reorgs, and peer lifecycle (§4.7).
type Event interface{ isNodeEvent() }

// SyncProgress reports the header/filter-header/filter sync cursors
// advancing.
type SyncProgress struct {
	HeaderHeight int32
	FilterHeight int32
}

func (SyncProgress) isNodeEvent() {}

// ScriptMatched reports a watched script found in a downloaded block.
type ScriptMatched struct {
	Height    int32
	BlockHash chainhash.Hash
	TxIndices []int
}

func (ScriptMatched) isNodeEvent() {}

// ChainReorg reports the best chain switching to a different branch.
type ChainReorg struct {
	FromHeight int32
	ToHeight   int32
}

func (ChainReorg) isNodeEvent() {}

// PeerDisconnected reports a session leaving, with the reason the
// supervisor recorded.
type PeerDisconnected struct {
	PeerAddr string
	Reason   string
}

func (PeerDisconnected) isNodeEvent() {}

// adaptChainEvent maps the chain engine's internal event taxonomy onto
// the Node's public one, so client code never imports package chain.
func adaptChainEvent(ev chain.Event) Event {
	switch e := ev.(type) {
	case chain.HeadersExtended:
		return SyncProgress{HeaderHeight: e.To}
	case chain.FilterProgress:
		return SyncProgress{FilterHeight: e.Height}
	case chain.BlockMatched:
		return ScriptMatched{Height: e.Height, BlockHash: e.Hash, TxIndices: e.TxIndices}
	case chain.Reorg:
		return ChainReorg{FromHeight: e.FromHeight, ToHeight: e.ToHeight}
	case chain.Disconnect:
		return PeerDisconnected{PeerAddr: e.PeerAddr, Reason: e.Reason.String()}
	case chain.TipUpdated:
		return SyncProgress{HeaderHeight: e.Height}
	default:
		return SyncProgress{}
	}
}
