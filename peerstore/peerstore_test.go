// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peerstore

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLevelDBStoreFlushThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenLevelDBStore(dir)
	require.NoError(t, err)
	defer store.Close()

	records := []Record{
		{
			IP:        net.ParseIP("203.0.113.5"),
			Port:      8333,
			Services:  1,
			LastSeen:  time.Unix(1700000000, 0),
			LastTried: time.Unix(1700000100, 0),
			SourceIP:  net.ParseIP("198.51.100.1"),
			Attempts:  2,
			Tried:     true,
			V2Capable: true,
		},
		{
			IP:       net.ParseIP("2001:db8::1"),
			Port:     8333,
			Services: 0,
			Attempts: 0,
		},
	}

	require.NoError(t, store.Flush(NewSliceIterator(records)))

	it, err := store.Load()
	require.NoError(t, err)

	var got []Record
	for it.Next() {
		got = append(got, it.Record())
	}
	require.NoError(t, it.Err())
	require.Len(t, got, 2)

	byPort := make(map[string]Record)
	for _, r := range got {
		byPort[r.IP.String()] = r
	}
	first := byPort["203.0.113.5"]
	require.Equal(t, uint64(1), first.Services)
	require.True(t, first.Tried)
	require.True(t, first.V2Capable)
	require.Equal(t, 2, first.Attempts)
}

func TestFlushReplacesPriorContents(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenLevelDBStore(dir)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Flush(NewSliceIterator([]Record{
		{IP: net.ParseIP("1.1.1.1"), Port: 1},
	})))
	require.NoError(t, store.Flush(NewSliceIterator([]Record{
		{IP: net.ParseIP("2.2.2.2"), Port: 2},
	})))

	it, err := store.Load()
	require.NoError(t, err)
	var count int
	for it.Next() {
		count++
	}
	require.Equal(t, 1, count)
}
