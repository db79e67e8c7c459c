// Copyright (c) 2013-2024 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// ProtocolVersion is the latest protocol version this package speaks.
	ProtocolVersion uint32 = 70016

	// MultipleAddressVersion is the protocol version which added multiple
	// addresses per message (pver >= MultipleAddressVersion).
	MultipleAddressVersion uint32 = 209

	// NetAddressTimeVersion is the protocol version which added the
	// timestamp field to net addresses (pver >= NetAddressTimeVersion).
	NetAddressTimeVersion uint32 = 31402

	// BIP0031Version is the protocol version after which a pong message
	// and nonce field in ping were added (pver > BIP0031Version).
	BIP0031Version uint32 = 60000

	// BIP0037Version is the protocol version which extended the version
	// message with a relay flag (pver >= BIP0037Version).
	BIP0037Version uint32 = 70001

	// RejectVersion is the protocol version which added the reject
	// message.
	RejectVersion uint32 = 70002

	// BIP0111Version is the protocol version which added the
	// SFNodeBloom service flag.
	BIP0111Version uint32 = 70011

	// SendHeadersVersion is the protocol version which added the
	// sendheaders message.
	SendHeadersVersion uint32 = 70012

	// FeeFilterVersion is the protocol version which added the
	// feefilter message.
	FeeFilterVersion uint32 = 70013

	// AddrV2Version is the protocol version which added the addrv2 and
	// sendaddrv2 messages.
	AddrV2Version uint32 = 70016
)

// ServiceFlag identifies services supported by a Bitcoin peer.
type ServiceFlag uint64

const (
	// SFNodeNetwork indicates a peer is a full node able to serve
	// complete blocks.
	SFNodeNetwork ServiceFlag = 1 << iota

	// SFNodeGetUTXO indicates support for the getutxos/utxos messages
	// (BIP0064).
	SFNodeGetUTXO

	// SFNodeBloom indicates support for bloom filtering (BIP0037).
	SFNodeBloom

	// SFNodeWitness indicates blocks and transactions including witness
	// data are served (BIP0144).
	SFNodeWitness

	// SFNodeXthin indicates support for xthin blocks.
	SFNodeXthin

	// SFNodeBit5 is reserved for a service defined by bit 5.
	SFNodeBit5

	// SFNodeCF indicates support for committed (compact) filters,
	// BIP0157/BIP0158 — the service bit Kyoto requires of every data
	// peer.
	SFNodeCF

	// SFNode2X is historical (Segwit2X).
	SFNode2X

	// SFNodeNetworkLimited indicates a peer serves only the last 288
	// blocks.
	SFNodeNetworkLimited = 1 << 10

	// SFNodeP2PV2 indicates support for BIP0324 v2 transport.
	SFNodeP2PV2 = 1 << 11
)

var sfStrings = map[ServiceFlag]string{
	SFNodeNetwork:        "SFNodeNetwork",
	SFNodeGetUTXO:        "SFNodeGetUTXO",
	SFNodeBloom:          "SFNodeBloom",
	SFNodeWitness:        "SFNodeWitness",
	SFNodeXthin:          "SFNodeXthin",
	SFNodeBit5:           "SFNodeBit5",
	SFNodeCF:             "SFNodeCF",
	SFNode2X:             "SFNode2X",
	SFNodeNetworkLimited: "SFNodeNetworkLimited",
	SFNodeP2PV2:          "SFNodeP2PV2",
}

var orderedSFStrings = []ServiceFlag{
	SFNodeNetwork, SFNodeGetUTXO, SFNodeBloom, SFNodeWitness, SFNodeXthin,
	SFNodeBit5, SFNodeCF, SFNode2X, SFNodeNetworkLimited, SFNodeP2PV2,
}

// HasFlag reports whether f has every bit set in s.
func (f ServiceFlag) HasFlag(s ServiceFlag) bool {
	return f&s == s
}

// String returns f in human-readable form.
func (f ServiceFlag) String() string {
	if f == 0 {
		return "0x0"
	}
	s := ""
	for _, flag := range orderedSFStrings {
		if f&flag == flag {
			s += sfStrings[flag] + "|"
			f -= flag
		}
	}
	s = strings.TrimRight(s, "|")
	if f != 0 {
		s += "|0x" + strconv.FormatUint(uint64(f), 16)
	}
	return strings.TrimLeft(s, "|")
}

// BitcoinNet identifies which Bitcoin network a message envelope belongs
// to, carried as the envelope's magic value.
type BitcoinNet uint32

const (
	// MainNet represents the main Bitcoin network.
	MainNet BitcoinNet = 0xd9b4bef9

	// TestNet3 represents the public test network (version 3).
	TestNet3 BitcoinNet = 0x0709110b

	// SigNet represents the default public Signet.
	SigNet BitcoinNet = 0x40cf030a

	// RegTest represents a local regression-test network.
	RegTest BitcoinNet = 0xdab5bffa
)

var bnStrings = map[BitcoinNet]string{
	MainNet:  "MainNet",
	TestNet3: "TestNet3",
	SigNet:   "SigNet",
	RegTest:  "RegTest",
}

// String returns n in human-readable form.
func (n BitcoinNet) String() string {
	if s, ok := bnStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown BitcoinNet (%d)", uint32(n))
}
