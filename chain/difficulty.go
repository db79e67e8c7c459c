// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"math/big"

	"github.com/kyoto-spv/kyoto/chaincfg"
	"github.com/kyoto-spv/kyoto/kyotoerr"
)

// validatePoW checks that a header's hash satisfies its own declared
// target, and that the declared target itself does not exceed the
// network's PoW limit (§4.6: "PoW meets declared target").
func validatePoW(hashBig *big.Int, bits uint32, params *chaincfg.Params) error {
	target := compactToBig(bits)
	if target.Sign() <= 0 {
		return kyotoerr.Consensusf("header target is non-positive")
	}
	if target.Cmp(params.PowLimit) > 0 {
		return kyotoerr.Consensusf("header target exceeds network PoW limit")
	}
	if hashBig.Cmp(target) > 0 {
		return kyotoerr.Consensusf("header hash does not meet its declared target")
	}
	return nil
}

// retargetBounds computes the [min, max] compact-bits window a header at
// a retarget boundary is allowed to declare, given the timestamps of the
// first and last header in the outgoing window. PoWNoRetargeting
// networks (regtest) skip this check entirely (§4.6).
func retargetBounds(params *chaincfg.Params, firstTimestamp, lastTimestamp int64, prevBits uint32) uint32 {
	actualTimespan := lastTimestamp - firstTimestamp
	minSpan := params.MinRetargetTimespan()
	maxSpan := params.MaxRetargetTimespan()
	if actualTimespan < minSpan {
		actualTimespan = minSpan
	}
	if actualTimespan > maxSpan {
		actualTimespan = maxSpan
	}

	oldTarget := compactToBig(prevBits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(actualTimespan))
	newTarget.Div(newTarget, big.NewInt(int64(params.TargetTimespan.Seconds())))

	if newTarget.Cmp(params.PowLimit) > 0 {
		newTarget.Set(params.PowLimit)
	}
	return bigToCompact(newTarget)
}

// validateDifficultyBound checks that a non-retarget-boundary header
// repeats the previous header's bits exactly (the common case), or, at a
// retarget boundary, that it falls within the recomputed bound (§4.6:
// "target lies within network difficulty-adjustment bounds at that
// height"). firstTimestamp/lastTimestamp identify the retarget window
// this header closes; callers outside a retarget boundary pass bits
// equal to prevBits and any timestamps, since the check degenerates to
// equality.
func validateDifficultyBound(params *chaincfg.Params, height int32, bits, prevBits uint32, firstTimestamp, lastTimestamp int64) error {
	if params.PoWNoRetargeting {
		return nil
	}

	blocksPerRetarget := params.BlocksPerRetarget()
	if height%blocksPerRetarget != 0 {
		if bits != prevBits {
			return kyotoerr.Consensusf("height %d: bits changed outside a retarget boundary", height)
		}
		return nil
	}

	want := retargetBounds(params, firstTimestamp, lastTimestamp, prevBits)
	if bits != want {
		return kyotoerr.Consensusf("height %d: retarget bits %08x do not match expected %08x", height, bits, want)
	}
	return nil
}
