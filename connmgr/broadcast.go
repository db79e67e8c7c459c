// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package connmgr

import (
	"math/rand"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kyoto-spv/kyoto/wire"
)

// BroadcastOutcome reports how a transaction broadcast concluded (§4.7).
type BroadcastOutcome int

const (
	BroadcastSent BroadcastOutcome = iota
	BroadcastNoPeerFetched
)

func (o BroadcastOutcome) String() string {
	switch o {
	case BroadcastSent:
		return "Sent"
	case BroadcastNoPeerFetched:
		return "NoPeerFetched"
	default:
		return "Unknown"
	}
}

const (
	maxBroadcastRetries  = 3
	broadcastFetchWindow = 2 * time.Second
)

// pendingBroadcast tracks one in-flight announce-then-serve transaction
// broadcast: inv(tx) goes out to a single gossip peer, and if a
// matching getdata doesn't arrive within the fetch window the inv is
// sent to a different peer, up to maxBroadcastRetries peers in all (§4.7).
type pendingBroadcast struct {
	tx      *wire.MsgTx
	fetched chan struct{}
}

// broadcasts indexes in-flight transactions by txid so a getdata from
// any peer can resolve the right one.
type broadcastTable struct {
	mu    sync.Mutex
	items map[chainhash.Hash]*pendingBroadcast
}

func newBroadcastTable() *broadcastTable {
	return &broadcastTable{items: make(map[chainhash.Hash]*pendingBroadcast)}
}

// BroadcastTx announces tx to a randomly chosen gossip (non-seeded) peer
// and serves it on request, retrying against a different peer if
// nothing fetches it inside the window (§4.7).
func (s *Supervisor) BroadcastTx(tx *wire.MsgTx) BroadcastOutcome {
	txid := tx.TxHash()

	pb := &pendingBroadcast{tx: tx, fetched: make(chan struct{})}
	s.broadcasts.mu.Lock()
	s.broadcasts.items[txid] = pb
	s.broadcasts.mu.Unlock()
	defer func() {
		s.broadcasts.mu.Lock()
		delete(s.broadcasts.items, txid)
		s.broadcasts.mu.Unlock()
	}()

	tried := make(map[string]bool)
	for attempt := 0; attempt < maxBroadcastRetries; attempt++ {
		peerID := s.pickGossipPeer(tried)
		if peerID == "" {
			break
		}
		tried[peerID] = true

		inv := wire.NewMsgInv()
		_ = inv.AddInvVect(&wire.InvVect{Type: wire.InvTypeWitnessTx, Hash: txid})
		s.enqueue(peerID, inv, 0)

		select {
		case <-pb.fetched:
			return BroadcastSent
		case <-time.After(broadcastFetchWindow):
		}
	}
	return BroadcastNoPeerFetched
}

// pickGossipPeer chooses a random broadcast target. A gossip peer is
// any valid peer that wasn't dialed from a configured address or a DNS
// seed (§4.7: "a random gossip peer (never a configured/seeded peer)");
// data-peer status is irrelevant to this choice.
func (s *Supervisor) pickGossipPeer(exclude map[string]bool) string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	candidates := make([]string, 0, len(s.peers))
	for key, e := range s.peers {
		if !e.seeded && !exclude[key] {
			candidates = append(candidates, key)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[rand.Intn(len(candidates))]
}

func (s *Supervisor) handleInv(peerID string, inv *wire.MsgInv) {
	// Kyoto never relays unsolicited inventory; it only answers getdata
	// for transactions it itself is broadcasting (§4.7 Non-goals).
}

func (s *Supervisor) handleGetData(peerID string, gd *wire.MsgGetData) {
	for _, iv := range gd.InvList {
		if iv.Type != wire.InvTypeTx && iv.Type != wire.InvTypeWitnessTx {
			continue
		}
		s.broadcasts.mu.Lock()
		pb, ok := s.broadcasts.items[iv.Hash]
		s.broadcasts.mu.Unlock()
		if !ok {
			continue
		}
		s.enqueue(peerID, pb.tx, 0)
		select {
		case <-pb.fetched:
		default:
			close(pb.fetched)
		}
	}
}

func (s *Supervisor) handleTx(peerID string, tx *wire.MsgTx) {
	// Kyoto does not accept unsolicited transactions into a mempool; it
	// only ever sends its own broadcasts (§4.7 Non-goals).
}
