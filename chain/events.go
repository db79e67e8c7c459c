// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// Event is the sealed set of progress emissions the engine produces
// (§4.6 Emission). The node facade relays these onto the client's event
// stream unchanged.
type Event interface {
	isEvent()
}

// HeadersExtended reports that the best chain grew from From to To
// (inclusive heights).
type HeadersExtended struct {
	From int32
	To   int32
}

// FilterProgress reports the filter cursor has advanced to Height.
type FilterProgress struct {
	Height int32
}

// BlockMatched reports a downloaded block contained a transaction
// touching a watched script.
type BlockMatched struct {
	Height    int32
	Hash      chainhash.Hash
	TxIndices []int
}

// Reorg reports the best chain switched branches.
type Reorg struct {
	FromHeight int32
	ToHeight   int32
}

// TipUpdated reports the new best-chain tip.
type TipUpdated struct {
	Height int32
	Hash   chainhash.Hash
}

// DisconnectReason classifies why a peer session ended, for Disconnect
// events and address-book/ban decisions.
type DisconnectReason int

const (
	DisconnectUnknown DisconnectReason = iota
	DisconnectDialTimeout
	DisconnectHandshakeTimeout
	DisconnectProtocolViolation
	DisconnectConsensusFork
	DisconnectRequestTimeout
	DisconnectSocketError
	DisconnectShutdown
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectDialTimeout:
		return "DialTimeout"
	case DisconnectHandshakeTimeout:
		return "HandshakeTimeout"
	case DisconnectProtocolViolation:
		return "ProtocolViolation"
	case DisconnectConsensusFork:
		return "ConsensusFork"
	case DisconnectRequestTimeout:
		return "RequestTimeout"
	case DisconnectSocketError:
		return "SocketError"
	case DisconnectShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Disconnect reports a peer session ending.
type Disconnect struct {
	PeerAddr string
	Reason   DisconnectReason
}

func (HeadersExtended) isEvent() {}
func (FilterProgress) isEvent()  {}
func (BlockMatched) isEvent()    {}
func (Reorg) isEvent()           {}
func (TipUpdated) isEvent()      {}
func (Disconnect) isEvent()      {}
