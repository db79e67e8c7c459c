// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg defines the network parameters Kyoto needs to validate
// header chains and filter-header chains: PoW limits, difficulty-adjustment
// timing, DNS seeds, and the anchor checkpoint a node starts syncing from.
//
// Unlike a full node, Kyoto carries no genesis block: §3 of the spec anchors
// the header DAG at a configured checkpoint rather than height zero, so
// there is no need to special-case block zero during validation.
package chaincfg

import (
	"math/big"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kyoto-spv/kyoto/wire"
)

var bigOne = big.NewInt(1)

// DNSSeed identifies a DNS seed used to bootstrap the address book when both
// address-book tables are empty (§4.4 step 4, §6).
type DNSSeed struct {
	// Host is the hostname to resolve for A/AAAA records.
	Host string

	// HasFiltering reports whether the seed supports filtering results by
	// service bit, via the standard NS-style seed filtering convention.
	HasFiltering bool
}

// Checkpoint is a known-good point in the header chain. Kyoto's header graph
// is rooted at the configured anchor checkpoint rather than genesis (§3).
type Checkpoint struct {
	Height int32
	Hash   chainhash.Hash
}

// Params defines a Bitcoin-protocol network's parameters as Kyoto needs
// them: enough to validate PoW and difficulty retargets on headers, and
// enough to find peers.
type Params struct {
	// Name is a human-readable identifier for the network.
	Name string

	// Net is the P2P magic value exchanged in every message envelope.
	Net wire.BitcoinNet

	// DefaultPort is the default peer-to-peer TCP port for the network.
	DefaultPort string

	// DNSSeeds bootstraps the address book before any handshake has
	// succeeded.
	DNSSeeds []DNSSeed

	// PowLimit is the highest allowed proof-of-work value (lowest
	// difficulty) for a header on this network, as a uint256.
	PowLimit *big.Int

	// PowLimitBits is PowLimit in compact ("nBits") form.
	PowLimitBits uint32

	// PoWNoRetargeting disables difficulty-adjustment-bound checks
	// entirely; set for regtest-like networks per §4.6.
	PoWNoRetargeting bool

	// ReduceMinDifficulty enables the "20 minutes without a block resets
	// difficulty to the network minimum" testnet/signet rule.
	ReduceMinDifficulty bool

	// MinDiffReductionTime is the elapsed-time threshold for the rule
	// above. Only meaningful when ReduceMinDifficulty is true.
	MinDiffReductionTime time.Duration

	// TargetTimespan is the interval over which difficulty is
	// retargeted.
	TargetTimespan time.Duration

	// TargetTimePerBlock is the desired spacing between blocks.
	TargetTimePerBlock time.Duration

	// RetargetAdjustmentFactor bounds how much a single retarget may
	// change the difficulty, in either direction.
	RetargetAdjustmentFactor int64

	// AnchorCheckpoint is the checkpoint the header graph is rooted at
	// (§3); the embedder supplies one matching its own persisted
	// chain-tip checkpoint.
	AnchorCheckpoint Checkpoint
}

// BlocksPerRetarget returns the number of blocks between difficulty
// retargets for this network.
func (p *Params) BlocksPerRetarget() int32 {
	return int32(p.TargetTimespan / p.TargetTimePerBlock)
}

// MinRetargetTimespan is the minimum amount of time a retarget window may
// span after applying RetargetAdjustmentFactor.
func (p *Params) MinRetargetTimespan() int64 {
	return int64(p.TargetTimespan.Seconds()) / p.RetargetAdjustmentFactor
}

// MaxRetargetTimespan is the maximum amount of time a retarget window may
// span after applying RetargetAdjustmentFactor.
func (p *Params) MaxRetargetTimespan() int64 {
	return int64(p.TargetTimespan.Seconds()) * p.RetargetAdjustmentFactor
}

// MainnetParams defines the parameters for the main Bitcoin network.
var MainnetParams = Params{
	Name:        "mainnet",
	Net:         wire.MainNet,
	DefaultPort: "8333",
	DNSSeeds: []DNSSeed{
		{Host: "seed.bitcoin.sipa.be", HasFiltering: true},
		{Host: "dnsseed.bluematt.me", HasFiltering: true},
		{Host: "dnsseed.bitcoin.dashjr.org", HasFiltering: false},
		{Host: "seed.bitcoinstats.com", HasFiltering: true},
		{Host: "seed.btc.petertodd.org", HasFiltering: true},
		{Host: "seed.bitcoin.sprovoost.nl", HasFiltering: true},
		{Host: "dnsseed.emzy.de", HasFiltering: true},
		{Host: "seed.bitcoin.wiz.biz", HasFiltering: true},
	},
	PowLimit:                 new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne),
	PowLimitBits:             0x1d00ffff,
	TargetTimespan:           time.Hour * 24 * 14,
	TargetTimePerBlock:       time.Minute * 10,
	RetargetAdjustmentFactor: 4,
}

// SignetParams defines the parameters for the default public Signet.
var SignetParams = Params{
	Name:        "signet",
	Net:         wire.SigNet,
	DefaultPort: "38333",
	DNSSeeds: []DNSSeed{
		{Host: "seed.signet.bitcoin.sprovoost.nl", HasFiltering: true},
	},
	PowLimit:                 new(big.Int).Lsh(big.NewInt(0x0377ae), 216),
	PowLimitBits:             0x1e0377ae,
	TargetTimespan:           time.Hour * 24 * 14,
	TargetTimePerBlock:       time.Minute * 10,
	RetargetAdjustmentFactor: 4,
}

// RegtestParams defines the parameters for a local regression-test network.
var RegtestParams = Params{
	Name:                     "regtest",
	Net:                      wire.RegTest,
	DefaultPort:              "18444",
	PowLimit:                 new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne),
	PowLimitBits:             0x207fffff,
	PoWNoRetargeting:         true,
	TargetTimespan:           time.Hour * 24 * 14,
	TargetTimePerBlock:       time.Minute * 10,
	RetargetAdjustmentFactor: 4,
}

// ParamsForNetwork returns the built-in Params for a network magic, and
// false if the network isn't one Kyoto ships defaults for.
func ParamsForNetwork(n wire.BitcoinNet) (Params, bool) {
	switch n {
	case wire.MainNet:
		return MainnetParams, true
	case wire.SigNet:
		return SignetParams, true
	case wire.RegTest:
		return RegtestParams, true
	default:
		return Params{}, false
	}
}

// BIP-158 Golomb-Rice coded set parameters (§6): false-positive rate P and
// modulus M, fixed by the basic filter type.
const (
	FilterP = 19
	FilterM = 784931
)
