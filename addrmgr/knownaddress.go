// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import (
	"math"
	"time"

	"github.com/kyoto-spv/kyoto/wire"
)

// KnownAddress tracks a peer address and the book-keeping the selection
// and eviction policy needs: when it was last seen, how many connection
// attempts have failed since, and whether it lives in the tried table
// (§3 Peer record).
type KnownAddress struct {
	na          *wire.NetAddress
	srcAddr     *wire.NetAddress
	attempts    int
	lastattempt time.Time
	lastsuccess time.Time
	tried       bool
	refs        int // number of new-table buckets that reference this address
}

// NetAddress returns the wrapped address.
func (ka *KnownAddress) NetAddress() *wire.NetAddress { return ka.na }

// LastAttempt returns when a connection to this address was last tried.
func (ka *KnownAddress) LastAttempt() time.Time { return ka.lastattempt }

// chance returns the selection probability [0, 1] for this address,
// weighted toward recently-seen addresses via the exponential decay in
// §4.4 step 2: accept with probability proportional to 1.2^(-age_days),
// bounded below by 0.01.
func (ka *KnownAddress) chance() float64 {
	now := time.Now()
	lastSeen := ka.na.Timestamp
	if lastSeen.IsZero() {
		lastSeen = ka.lastattempt
	}
	ageDays := now.Sub(lastSeen).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}

	c := 1.0
	switch {
	case ka.attempts > 0:
		// Each recorded attempt halves the chance a further attempt is
		// worthwhile, however long ago it was made.
		c /= float64(int64(1) << uint(min(ka.attempts, 30)))
	}

	c *= math.Pow(1.2, -ageDays)
	if c < 0.01 {
		c = 0.01
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}

// isBad reports whether ka is too unreliable to keep offering for
// selection: it has failed many times recently, or hasn't been seen in a
// very long time, or claims a future timestamp.
func (ka *KnownAddress) isBad() bool {
	now := time.Now()
	if ka.lastattempt.After(now.Add(-time.Minute)) && ka.attempts >= 1 {
		// Don't immediately declare a fresh attempt bad.
		return false
	}
	if ka.na.Timestamp.After(now.Add(10 * time.Minute)) {
		return true
	}
	if ka.na.Timestamp.Before(now.Add(-numMissingDays * 24 * time.Hour)) {
		return true
	}
	if ka.lastsuccess.IsZero() && ka.attempts >= maxFailures {
		return true
	}
	if ka.lastsuccess.IsZero() && now.Sub(ka.lastattempt) > minBadDays*24*time.Hour && ka.attempts >= maxFailures {
		return true
	}
	if now.Sub(ka.lastsuccess) > minBadDays*24*time.Hour && ka.attempts >= maxRetries {
		return true
	}
	return false
}

const (
	// numMissingDays is how long an address can go unseen before it's
	// considered stale enough to drop.
	numMissingDays = 30
	// minBadDays is how long an address must go without a success before
	// maxRetries failures write it off. An address with no successes at
	// all is written off at maxFailures regardless of this window.
	minBadDays = 7
	// maxFailures bounds consecutive failures for an address that has
	// never succeeded.
	maxFailures = 10
	// maxRetries bounds failures since the last success.
	maxRetries = 3
)

