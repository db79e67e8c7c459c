// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chain implements the header-only blockchain engine (§4.6): a
// checkpoint-rooted header DAG with reorg handling, filter-header chain
// validation, GCS filter matching, and a block-fetch planner, all driven
// as a single actor loop per §5/§9 so the graph never needs locking.
package chain

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kyoto-spv/kyoto/wire"
)

// headerID identifies a node in the header graph by its block hash. Using
// this id rather than an owning pointer for parent/child links avoids
// ownership cycles in the DAG (§9): every lookup goes back through the
// engine's nodes map.
type headerID = chainhash.Hash

var noHeader headerID

// headerNode is one entry in the header graph.
type headerNode struct {
	header    wire.BlockHeader
	hash      chainhash.Hash
	height    int32
	parent    headerID
	chainwork *big.Int
}

// oneLsh256 is 2**256, used by workFromBits.
var oneLsh256 = new(big.Int).Lsh(big.NewInt(1), 256)

// workFromBits returns the expected number of hashes required to produce
// a header with the given compact difficulty bits, i.e. 2**256 / (target+1).
func workFromBits(bits uint32) *big.Int {
	target := compactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	denom := new(big.Int).Add(target, big.NewInt(1))
	return new(big.Int).Div(oneLsh256, denom)
}

// compactToBig expands the compact ("nBits") difficulty representation
// into a full target, mirroring the standard Bitcoin Core encoding: the
// low 23 bits are the mantissa, the high byte is the byte-length.
func compactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	exponent := compact >> 24

	var result *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		result = big.NewInt(int64(mantissa))
	} else {
		result = big.NewInt(int64(mantissa))
		result.Lsh(result, uint(8*(exponent-3)))
	}

	if compact&0x00800000 != 0 {
		result.Neg(result)
	}
	return result
}

// bigToCompact is the inverse of compactToBig, used to compare a
// recomputed retarget bound against a header's declared bits.
func bigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}
	var mantissa uint32
	exponent := uint(len(n.Bytes()))
	if exponent <= 3 {
		mantissa = uint32(n.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		shifted := new(big.Int).Rsh(n, 8*(exponent-3))
		mantissa = uint32(shifted.Int64())
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent)<<24 | mantissa
	if n.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}
