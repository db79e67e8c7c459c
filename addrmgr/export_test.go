// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import (
	"time"

	"github.com/kyoto-spv/kyoto/wire"
)

// Exported internals for white-box testing only.

func TstNewKnownAddress(na, src *wire.NetAddress, attempts int, lastattempt, lastsuccess time.Time, tried bool) *KnownAddress {
	return &KnownAddress{
		na:          na,
		srcAddr:     src,
		attempts:    attempts,
		lastattempt: lastattempt,
		lastsuccess: lastsuccess,
		tried:       tried,
	}
}

func TstKnownAddressChance(ka *KnownAddress) float64 { return ka.chance() }

func TstKnownAddressIsBad(ka *KnownAddress) bool { return ka.isBad() }
