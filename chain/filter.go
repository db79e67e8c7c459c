// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/gcs"
	"github.com/btcsuite/btcd/btcutil/gcs/builder"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kyoto-spv/kyoto/chaincfg"
	"github.com/kyoto-spv/kyoto/wire"
)

// decodeFilter parses raw BIP-158 basic filter bytes for blockHash,
// returning the gcs.Filter used for watchlist membership checks. The
// SipHash key used at match time is derived separately from blockHash
// (see filterMatchesAny), not carried by the filter itself.
func decodeFilter(blockHash chainhash.Hash, data []byte) (*gcs.Filter, error) {
	f, err := gcs.FromNBytes(chaincfg.FilterP, chaincfg.FilterM, data)
	if err != nil {
		return nil, fmt.Errorf("chain: decoding filter for %s: %w", blockHash, err)
	}
	return f, nil
}

// filterMatchesAny reports whether any of candidates is a member of f,
// using blockHash to derive the SipHash key the filter was built with
// (§4.6 Filter fetch and match).
func filterMatchesAny(f *gcs.Filter, blockHash chainhash.Hash, candidates [][]byte) (bool, error) {
	if len(candidates) == 0 {
		return false, nil
	}
	key := builder.DeriveKey(&blockHash)
	matched, err := f.MatchAny(key, candidates)
	if err != nil {
		return false, fmt.Errorf("chain: matching filter for %s: %w", blockHash, err)
	}
	return matched, nil
}

// filterHeaderFor chains a filter hash onto its predecessor, per BIP-157
// and §3: fh(h) = H(filter_hash(h) || fh(h-1)).
func filterHeaderFor(f *gcs.Filter, prevFilterHeader chainhash.Hash) (chainhash.Hash, error) {
	filterHash, err := builder.GetFilterHash(f)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("chain: hashing filter: %w", err)
	}
	return wire.MakeHeaderForFilter(filterHash, prevFilterHeader), nil
}

// foldFilterHeaders folds a run of filter hashes from a cfheaders batch
// onto prevHeader, returning one filter header per hash in order (§3,
// §4.6) so the engine can validate individual cfilter responses against
// their own height's commitment, not just the batch's final one.
func foldFilterHeaders(prevHeader chainhash.Hash, hashes []chainhash.Hash) []chainhash.Hash {
	out := make([]chainhash.Hash, len(hashes))
	fh := prevHeader
	for i, h := range hashes {
		fh = wire.MakeHeaderForFilter(h, fh)
		out[i] = fh
	}
	return out
}
