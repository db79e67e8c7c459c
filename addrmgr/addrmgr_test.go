// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/kyoto-spv/kyoto/wire"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func mustAddr(t *testing.T, ip string, port uint16) *wire.NetAddress {
	t.Helper()
	parsed := net.ParseIP(ip)
	require.NotNil(t, parsed)
	return &wire.NetAddress{IP: parsed, Port: port, Timestamp: time.Now(), Services: wire.SFNodeNetwork}
}

func TestAddAddressGoodPromotesToTried(t *testing.T) {
	am := New()
	src := mustAddr(t, "1.2.3.4", 8333)
	addr := mustAddr(t, "5.6.7.8", 8333)

	am.AddAddress(addr, src)
	require.Equal(t, 1, am.NumNew())
	require.Equal(t, 0, am.NumTried())

	evicted, collision := am.Good(addr)
	require.Nil(t, evicted)
	require.False(t, collision)
	require.Equal(t, 0, am.NumNew())
	require.Equal(t, 1, am.NumTried())
}

func TestNeverBothNewAndTried(t *testing.T) {
	am := New()
	src := mustAddr(t, "1.1.1.1", 8333)

	for i := 0; i < 50; i++ {
		addr := mustAddr(t, fmt.Sprintf("10.0.%d.%d", i/256, i%256), 8333)
		am.AddAddress(addr, src)
		if i%3 == 0 {
			am.Good(addr)
		}
	}

	am.mtx.RLock()
	defer am.mtx.RUnlock()
	for key, ka := range am.addrIndex {
		inNew := false
		for _, bucket := range am.newTable {
			for _, k := range bucket {
				if k == key {
					inNew = true
				}
			}
		}
		if ka.tried {
			require.False(t, inNew, "address %s is both tried and present in new table", key)
		}
	}
}

// TestDeterministicPlacement is the §8 property: placing the same
// (addr, source) twice always yields the same bucket and slot.
func TestDeterministicPlacement(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		am := New()
		a := byte(rapid.IntRange(1, 254).Draw(tt, "a"))
		b := byte(rapid.IntRange(0, 255).Draw(tt, "b"))
		c := byte(rapid.IntRange(0, 255).Draw(tt, "c"))
		d := byte(rapid.IntRange(1, 254).Draw(tt, "d"))
		port := uint16(rapid.IntRange(1024, 65535).Draw(tt, "port"))

		addr := &wire.NetAddress{IP: net.IPv4(a, b, c, d), Port: port}
		src := &wire.NetAddress{IP: net.IPv4(127, 0, 0, 1), Port: 8333}

		b1, s1 := am.NewBucketAndSlot(addr, src)
		b2, s2 := am.NewBucketAndSlot(addr, src)
		require.Equal(tt, b1, b2)
		require.Equal(tt, s1, s2)

		tb1, ts1 := am.TriedBucketAndSlot(addr)
		tb2, ts2 := am.TriedBucketAndSlot(addr)
		require.Equal(tt, tb1, tb2)
		require.Equal(tt, ts1, ts2)
	})
}

func TestBucketSlotInRange(t *testing.T) {
	am := New()
	addr := mustAddr(t, "203.0.113.7", 8333)
	src := mustAddr(t, "198.51.100.1", 8333)

	bucket, slot := am.NewBucketAndSlot(addr, src)
	require.GreaterOrEqual(t, bucket, 0)
	require.Less(t, bucket, newBucketCount)
	require.GreaterOrEqual(t, slot, 0)
	require.Less(t, slot, newBucketSize)

	tbucket, tslot := am.TriedBucketAndSlot(addr)
	require.GreaterOrEqual(t, tbucket, 0)
	require.Less(t, tbucket, triedBucketCount)
	require.GreaterOrEqual(t, tslot, 0)
	require.Less(t, tslot, triedBucketSize)
}

func TestTriedCollisionKeepsBothRecordsTrackable(t *testing.T) {
	am := New()
	src := mustAddr(t, "1.1.1.1", 8333)
	addrA := mustAddr(t, "20.20.20.20", 8333)
	am.AddAddress(addrA, src)
	am.Good(addrA)
	require.Equal(t, 1, am.NumTried())

	// Force a synthetic collision by directly occupying addrA's tried slot
	// with a different key and marking addrA as not yet tried, mimicking
	// two distinct addresses landing on the same bucket/slot.
	bucket, slot := am.TriedBucketAndSlot(addrA)
	addrB := mustAddr(t, "30.30.30.30", 8333)
	am.mtx.Lock()
	am.triedTable[bucket][slot] = addrKey(addrB)
	am.addrIndex[addrKey(addrB)] = &KnownAddress{na: addrB, tried: true}
	am.addrIndex[addrKey(addrA)].tried = false
	am.mtx.Unlock()

	evicted, collision := am.Good(addrA)
	require.True(t, collision)
	require.Equal(t, addrB.IP.String(), evicted.IP.String())
}

func TestGetAddressRespectsExcludeGroups(t *testing.T) {
	am := New()
	src := mustAddr(t, "1.1.1.1", 8333)
	addr := mustAddr(t, "50.60.70.80", 8333)
	am.AddAddress(addr, src)
	am.Good(addr)

	excl := map[string]bool{addr.AddrGroup(): true}
	got := am.GetAddress(excl)
	require.Nil(t, got)
}

func TestGetAddressReturnsKnownAddress(t *testing.T) {
	am := New()
	src := mustAddr(t, "1.1.1.1", 8333)
	addr := mustAddr(t, "90.90.90.90", 8333)
	am.AddAddress(addr, src)
	am.Good(addr)

	got := am.GetAddress(nil)
	require.NotNil(t, got)
	require.Equal(t, addr.IP.String(), got.IP.String())
}

func TestKnownAddressChanceDecaysWithFailures(t *testing.T) {
	now := time.Now()
	na := &wire.NetAddress{IP: net.ParseIP("1.2.3.4"), Timestamp: now}
	fresh := TstNewKnownAddress(na, na, 0, time.Time{}, time.Time{}, false)
	stale := TstNewKnownAddress(na, na, 5, now.Add(-time.Hour), time.Time{}, false)

	require.Greater(t, TstKnownAddressChance(fresh), TstKnownAddressChance(stale))
}

func TestKnownAddressIsBadOnFutureTimestamp(t *testing.T) {
	future := &wire.NetAddress{IP: net.ParseIP("1.2.3.4"), Timestamp: time.Now().Add(time.Hour)}
	ka := TstNewKnownAddress(future, future, 0, time.Time{}, time.Time{}, false)
	require.True(t, TstKnownAddressIsBad(ka))
}

func TestAttemptBumpsCounterAndTimestamp(t *testing.T) {
	am := New()
	src := mustAddr(t, "1.1.1.1", 8333)
	addr := mustAddr(t, "77.77.77.77", 8333)
	am.AddAddress(addr, src)

	am.Attempt(addr)
	am.Attempt(addr)

	am.mtx.RLock()
	ka := am.addrIndex[addrKey(addr)]
	am.mtx.RUnlock()
	require.Equal(t, 2, ka.attempts)
	require.WithinDuration(t, time.Now(), ka.lastattempt, time.Second)
}
