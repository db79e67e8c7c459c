// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package connmgr

import (
	"github.com/kyoto-spv/kyoto/chain"
	"github.com/kyoto-spv/kyoto/peer"
	"github.com/kyoto-spv/kyoto/wire"
)

// sessionInbound adapts one peer session's parsed messages to the
// chain engine's handler methods and notifies the supervisor when the
// session leaves the Ready state.
type sessionInbound struct {
	id   string
	sup  *Supervisor
}

// inboundAdapter returns the peer.Inbound implementation a newly dialed
// session should report into.
func (s *Supervisor) inboundAdapter(id string) peer.Inbound {
	return &sessionInbound{id: id, sup: s}
}

func (a *sessionInbound) OnHeaders(peerID string, headers []*wire.BlockHeader) {
	a.sup.engine.HandleHeaders(peerID, headers)
}

func (a *sessionInbound) OnCFHeaders(peerID string, msg *wire.MsgCFHeaders) {
	a.sup.engine.HandleCFHeaders(peerID, msg, a.stopHeightFor(peerID, msg))
}

func (a *sessionInbound) OnCFilter(peerID string, msg *wire.MsgCFilter) {
	a.sup.engine.HandleCFilter(peerID, msg, a.nextFilterHeightFor(peerID))
}

func (a *sessionInbound) OnBlock(peerID string, blk *wire.MsgBlock) {
	a.sup.engine.HandleBlock(peerID, blk)
}

func (a *sessionInbound) OnAddr(peerID string, addrs []*wire.NetAddress) {
	for _, na := range addrs {
		a.sup.addrMgr.AddAddress(na, a.sourceAddr(peerID))
	}
}

func (a *sessionInbound) OnAddrV2(peerID string, addrs []*wire.NetAddressV2) {
	src := a.sourceAddr(peerID)
	for _, v2 := range addrs {
		if na, ok := v2.ToIPNetAddress(); ok {
			a.sup.addrMgr.AddAddress(&na, src)
		}
	}
}

func (a *sessionInbound) OnInv(peerID string, inv *wire.MsgInv) {
	a.sup.handleInv(peerID, inv)
}

func (a *sessionInbound) OnGetData(peerID string, gd *wire.MsgGetData) {
	a.sup.handleGetData(peerID, gd)
}

func (a *sessionInbound) OnTx(peerID string, tx *wire.MsgTx) {
	a.sup.handleTx(peerID, tx)
}

func (a *sessionInbound) OnStateChange(peerID string, from, to peer.State, reason string) {
	if from != peer.StateReady {
		return
	}
	a.sup.removePeer(peerID)
	a.sup.engine.PeerGone(peerID, chain.DisconnectSocketError)
}

// sourceAddr reports the announcing peer's own endpoint as the address
// book's "heard from" source, as addrmgr's eclipse-resistance rules
// require (§9).
func (a *sessionInbound) sourceAddr(peerID string) *wire.NetAddress {
	a.sup.mtx.Lock()
	defer a.sup.mtx.Unlock()
	e, ok := a.sup.peers[peerID]
	if !ok {
		return &wire.NetAddress{}
	}
	return e.reportedAddr
}

// stopHeightFor recovers the absolute height a cfheaders batch ends at:
// the wire message carries only a stop hash, so the count of filter
// hashes against the recorded request start height gives the height.
func (a *sessionInbound) stopHeightFor(peerID string, msg *wire.MsgCFHeaders) int32 {
	a.sup.mtx.Lock()
	defer a.sup.mtx.Unlock()
	e, ok := a.sup.peers[peerID]
	if !ok || len(msg.FilterHashes) == 0 {
		return 0
	}
	return e.pendingCFHeadersStart + int32(len(msg.FilterHashes)) - 1
}

// nextFilterHeightFor returns and advances the per-peer cfilter stream
// cursor established by the triggering RequestCFilters call.
func (a *sessionInbound) nextFilterHeightFor(peerID string) int32 {
	a.sup.mtx.Lock()
	defer a.sup.mtx.Unlock()
	e, ok := a.sup.peers[peerID]
	if !ok {
		return 0
	}
	height := e.nextCFilterHeight
	e.nextCFilterHeight++
	return height
}
