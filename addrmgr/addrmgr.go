// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package addrmgr implements the eclipse-resistant bucketed address book
// described in §3/§4.4/§9 of the spec: a deterministic, bounded-memory
// peer address table derived from Bitcoin Core's AddrMan.
package addrmgr

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/kyoto-spv/kyoto/wire"
)

// Table sizes from §3: new is 1024 buckets of 64 slots, tried is 256
// buckets of 64 slots — the Bitcoin Core/btcd defaults, kept as-is per
// DESIGN.md's open-question decision (a).
const (
	newBucketCount   = 1024
	newBucketSize    = 64
	triedBucketCount = 256
	triedBucketSize  = 64

	// newBucketsPerAddress bounds how many new buckets may simultaneously
	// reference one address (mirrors upstream AddrMan; keeps eviction
	// cost bounded).
	newBucketsPerAddress = 8
)

var log btclog.Logger = btclog.Disabled

// UseLogger lets the embedding host supply a concrete logging backend.
func UseLogger(l btclog.Logger) { log = l }

// AddrManager is the address book: new/tried bucketed tables plus the
// selection and eviction policy of §4.4. It is safe for concurrent use; a
// single writer is still the expected caller per §5 (normally the
// connection supervisor, which serializes access behind a message).
type AddrManager struct {
	mtx sync.RWMutex

	key [32]byte // random per-process placement key (§3)

	addrIndex map[string]*KnownAddress // keyed by NetAddress key (ip:port)

	newTable   [newBucketCount][]string // addr keys per new bucket
	triedTable [triedBucketCount][]string

	nNew   int
	nTried int

	rand *mathrand.Rand
}

// New returns an empty AddrManager with a freshly generated placement key.
func New() *AddrManager {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		// crypto/rand failing means the platform RNG is broken; there is
		// nothing useful left to do but fall back to a time-seeded key so
		// the process can still run (placement remains a deterministic
		// function of that key, just not a secret one).
		binary.LittleEndian.PutUint64(key[:8], uint64(time.Now().UnixNano()))
	}
	return &AddrManager{
		key:       key,
		addrIndex: make(map[string]*KnownAddress),
		rand:      mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

func addrKey(na *wire.NetAddress) string {
	return fmt.Sprintf("%s:%d", na.IP.String(), na.Port)
}

func addrGroup(na *wire.NetAddress) string {
	return na.AddrGroup()
}

// hash returns a uint64 taken from the first 8 bytes of
// SHA256(key || parts...); callers reduce it modulo the bucket count or
// bucket size, giving the deterministic bucket/slot placement required by
// §3/§8: the same (addr, source) always places at the same bucket and slot.
func (a *AddrManager) hash(parts ...[]byte) uint64 {
	h := sha256.New()
	h.Write(a.key[:])
	for _, p := range parts {
		h.Write(p)
	}
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

func (a *AddrManager) newBucket(na, srcAddr *wire.NetAddress) int {
	h := a.hash([]byte(addrGroup(srcAddr)), []byte(addrGroup(na)))
	return int(h % newBucketCount)
}

func (a *AddrManager) newBucketSlot(bucket int, na *wire.NetAddress) int {
	h := a.hash([]byte("slot"), []byte(addrKey(na)), []byte{byte(bucket), byte(bucket >> 8)})
	return int(h % newBucketSize)
}

func (a *AddrManager) triedBucket(na *wire.NetAddress) int {
	h := a.hash([]byte(addrGroup(na)), []byte(addrKey(na)))
	return int(h % triedBucketCount)
}

func (a *AddrManager) triedBucketSlot(bucket int, na *wire.NetAddress) int {
	h := a.hash([]byte("slot"), []byte(addrKey(na)), []byte{byte(bucket), byte(bucket >> 8)})
	return int(h % triedBucketSize)
}

// NewBucketAndSlot exposes the deterministic placement computation for the
// new table, for tests verifying the §8 "same (addr, source) always
// produces the same bucket and slot" property.
func (a *AddrManager) NewBucketAndSlot(na, src *wire.NetAddress) (bucket, slot int) {
	bucket = a.newBucket(na, src)
	return bucket, a.newBucketSlot(bucket, na)
}

// TriedBucketAndSlot exposes the deterministic placement computation for
// the tried table.
func (a *AddrManager) TriedBucketAndSlot(na *wire.NetAddress) (bucket, slot int) {
	bucket = a.triedBucket(na)
	return bucket, a.triedBucketSlot(bucket, na)
}

// AddAddress inserts addr, learned from source src, into the new table if
// it isn't already known (§4.4). Addresses already in tried are left
// alone; addresses already in new only gain another bucket reference, up
// to newBucketsPerAddress.
func (a *AddrManager) AddAddress(addr, src *wire.NetAddress) {
	if addr == nil || addr.IP == nil {
		return
	}
	a.mtx.Lock()
	defer a.mtx.Unlock()
	a.addAddress(addr, src)
}

func (a *AddrManager) addAddress(addr, src *wire.NetAddress) {
	key := addrKey(addr)
	if ka, ok := a.addrIndex[key]; ok {
		// Already known. A more recent timestamp refreshes its standing
		// without touching table membership.
		if addr.Timestamp.After(ka.na.Timestamp) {
			ka.na.Timestamp = addr.Timestamp
		}
		if ka.tried {
			return
		}
		if ka.refs >= newBucketsPerAddress {
			return
		}
		bucket := a.newBucket(addr, src)
		if a.insertNew(bucket, key) {
			ka.refs++
		}
		return
	}

	ka := &KnownAddress{na: addr, srcAddr: src}
	a.addrIndex[key] = ka
	bucket := a.newBucket(addr, src)
	if a.insertNew(bucket, key) {
		ka.refs = 1
		a.nNew++
	}
}

// insertNew places key into bucket's slot, evicting a stale incumbent if
// the slot is occupied (§3 invariant: at most one record per bucket/slot).
// It reports whether key now occupies a slot in the bucket.
func (a *AddrManager) insertNew(bucket int, key string) bool {
	na := a.addrIndex[key].na
	slot := a.newBucketSlot(bucket, na)
	if a.newTable[bucket] == nil {
		a.newTable[bucket] = make([]string, newBucketSize)
	}
	existing := a.newTable[bucket][slot]
	if existing == key {
		return false
	}
	if existing != "" {
		if ka, ok := a.addrIndex[existing]; ok && !ka.isBad() {
			// Slot is occupied by a still-good address; the incoming
			// address simply doesn't get a reference in this bucket.
			return false
		}
		a.evictNewSlot(bucket, slot, existing)
	}
	a.newTable[bucket][slot] = key
	return true
}

func (a *AddrManager) evictNewSlot(bucket, slot int, key string) {
	a.newTable[bucket][slot] = ""
	if ka, ok := a.addrIndex[key]; ok {
		ka.refs--
		if ka.refs <= 0 && !ka.tried {
			delete(a.addrIndex, key)
			a.nNew--
		}
	}
}

// Good marks addr as having just completed a successful handshake and
// first useful response, promoting it new→tried (§4.4). On a tried-slot
// collision the incumbent is returned so the caller (the connection
// supervisor) can schedule the feeler connection described in §4.4; the
// challenger is NOT inserted until the feeler resolves — call
// ResolveTriedCollision with the outcome.
func (a *AddrManager) Good(addr *wire.NetAddress) (evicted *wire.NetAddress, collision bool) {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	key := addrKey(addr)
	ka, ok := a.addrIndex[key]
	if !ok {
		ka = &KnownAddress{na: addr}
		a.addrIndex[key] = ka
	}
	ka.lastsuccess = time.Now()
	ka.lastattempt = ka.lastsuccess
	ka.attempts = 0

	if ka.tried {
		return nil, false
	}

	bucket := a.triedBucket(addr)
	slot := a.triedBucketSlot(bucket, addr)
	if a.triedTable[bucket] == nil {
		a.triedTable[bucket] = make([]string, triedBucketSize)
	}
	incumbentKey := a.triedTable[bucket][slot]
	if incumbentKey != "" && incumbentKey != key {
		incumbent := a.addrIndex[incumbentKey]
		return incumbent.na, true
	}

	a.removeFromNew(key, ka)
	ka.tried = true
	a.triedTable[bucket][slot] = key
	a.nTried++
	return nil, false
}

func (a *AddrManager) removeFromNew(key string, ka *KnownAddress) {
	if ka.tried {
		return
	}
	for b := range a.newTable {
		for s, k := range a.newTable[b] {
			if k == key {
				a.newTable[b][s] = ""
			}
		}
	}
	if ka.refs > 0 {
		a.nNew--
	}
	ka.refs = 0
}

// ResolveTriedCollision finishes what Good started: if the feeler to the
// incumbent succeeded, the challenger is dropped back to new; otherwise
// the incumbent is demoted to new (or evicted if its new slot also
// collides) and the challenger takes the tried slot (§4.4).
func (a *AddrManager) ResolveTriedCollision(challenger, incumbent *wire.NetAddress, incumbentFeelerSucceeded bool) {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	chKey := addrKey(challenger)
	chKA, ok := a.addrIndex[chKey]
	if !ok {
		return
	}

	if incumbentFeelerSucceeded {
		// Incumbent stays; challenger returns to being an ordinary new
		// entry (it's already there since it was never removed).
		return
	}

	inKey := addrKey(incumbent)
	inKA, ok := a.addrIndex[inKey]
	if !ok {
		return
	}
	bucket := a.triedBucket(incumbent)
	slot := a.triedBucketSlot(bucket, incumbent)
	inKA.tried = false
	a.nTried--
	newBucket := a.newBucket(incumbent, inKA.srcAddr)
	if !a.insertNew(newBucket, inKey) {
		delete(a.addrIndex, inKey)
	} else {
		inKA.refs = 1
		a.nNew++
	}

	a.removeFromNew(chKey, chKA)
	chKA.tried = true
	a.triedTable[bucket][slot] = chKey
	a.nTried++
}

// Attempt records a failed or in-flight connection attempt against addr,
// per §4.3's "attempt counter bumped" on a request timeout/violation.
func (a *AddrManager) Attempt(addr *wire.NetAddress) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	ka, ok := a.addrIndex[addrKey(addr)]
	if !ok {
		return
	}
	ka.lastattempt = time.Now()
	ka.attempts++
}

// NumAddresses returns the total number of distinct addresses known,
// across both tables.
func (a *AddrManager) NumAddresses() int {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	return len(a.addrIndex)
}

// NumTried returns the number of addresses currently in the tried table.
func (a *AddrManager) NumTried() int {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	return a.nTried
}

// NumNew returns the number of addresses currently in the new table.
func (a *AddrManager) NumNew() int {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	return a.nNew
}

// GetAddress implements §4.4 step 2-3: with probability 0.5 draw from
// tried else new, weighted toward recently-seen entries via rejection
// sampling, never returning an address whose /16 (v4) or /32 (v6) group
// is already present in excludeGroups (the groups of peers already
// connected or mid-dial this session).
func (a *AddrManager) GetAddress(excludeGroups map[string]bool) *wire.NetAddress {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	useTried := a.nTried > 0 && (a.nNew == 0 || a.rand.Float64() < 0.5)

	for attempt := 0; attempt < 100; attempt++ {
		var ka *KnownAddress
		if useTried {
			ka = a.pickFromTable(a.triedTable[:], triedBucketSize)
		} else {
			ka = a.pickFromTable(a.newTable[:], newBucketSize)
		}
		if ka == nil {
			// The preferred table came up empty this draw; fall back to
			// the other one for the rest of the attempts.
			useTried = !useTried
			continue
		}
		if excludeGroups[addrGroup(ka.na)] {
			continue
		}
		if a.rand.Float64() > ka.chance() {
			continue
		}
		return ka.na
	}
	return nil
}

func (a *AddrManager) pickFromTable(table [][]string, bucketSize int) *KnownAddress {
	nonEmpty := make([]int, 0, len(table))
	for i, b := range table {
		if len(b) > 0 {
			nonEmpty = append(nonEmpty, i)
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}
	bucket := table[nonEmpty[a.rand.Intn(len(nonEmpty))]]
	for tries := 0; tries < bucketSize; tries++ {
		key := bucket[a.rand.Intn(bucketSize)]
		if key == "" {
			continue
		}
		if ka, ok := a.addrIndex[key]; ok {
			return ka
		}
	}
	return nil
}
