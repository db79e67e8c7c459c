// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"github.com/btcsuite/btcd/btcutil/gcs"
	"github.com/kyoto-spv/kyoto/chaincfg"
)

// gcsFilterForTest builds raw BIP-158 basic filter bytes over data, for
// use as a wire.MsgCFilter.Data payload in tests.
func gcsFilterForTest(data [][]byte) ([]byte, error) {
	var key [gcs.KeySize]byte
	f, err := gcs.BuildGCSFilter(chaincfg.FilterP, chaincfg.FilterM, key, data)
	if err != nil {
		return nil, err
	}
	return f.NBytes(), nil
}
