// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kyoto-spv/kyoto/chaincfg"
	"github.com/kyoto-spv/kyoto/watchlist"
	"github.com/kyoto-spv/kyoto/wire"
	"github.com/stretchr/testify/require"
)

type fakeRequester struct {
	banned []string
}

func (f *fakeRequester) RequestHeaders(string, []*chainhash.Hash, chainhash.Hash)    {}
func (f *fakeRequester) RequestCFHeaders(string, uint32, chainhash.Hash)             {}
func (f *fakeRequester) RequestCFilters(string, uint32, chainhash.Hash)              {}
func (f *fakeRequester) RequestBlock(string, chainhash.Hash)                        {}
func (f *fakeRequester) Ban(peerID string, reason DisconnectReason) {
	f.banned = append(f.banned, peerID)
}
func (f *fakeRequester) PickDataPeer(exclude ...string) string { return "peerB" }

func testParams() *chaincfg.Params {
	p := chaincfg.RegtestParams
	p.AnchorCheckpoint = chaincfg.Checkpoint{Height: 0, Hash: chainhash.Hash{1}}
	return &p
}

// mineHeader returns a header atop prev whose hash satisfies the
// network's (trivial, regtest) PoW limit, by brute-forcing the nonce.
func mineHeader(prevHash chainhash.Hash, bits uint32, ts time.Time) *wire.BlockHeader {
	h := &wire.BlockHeader{
		Version:   1,
		PrevBlock: prevHash,
		Bits:      bits,
		Timestamp: ts,
	}
	target := compactToBig(bits)
	for nonce := uint32(0); ; nonce++ {
		h.Nonce = nonce
		hash := h.BlockHash()
		hashBig := new(big.Int).SetBytes(reverseBytes(hash[:]))
		if hashBig.Cmp(target) <= 0 {
			return h
		}
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeRequester) {
	t.Helper()
	req := &fakeRequester{}
	wl := watchlist.New()
	e := New(testParams(), req, wl)
	go e.Run()
	t.Cleanup(e.Stop)
	return e, req
}

func drain(t *testing.T, e *Engine, timeout time.Duration) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-e.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			return events
		}
	}
}

func TestHeadersExtendedOnValidChain(t *testing.T) {
	e, _ := newTestEngine(t)
	params := testParams()

	h1 := mineHeader(params.AnchorCheckpoint.Hash, params.PowLimitBits, time.Now())
	e.HandleHeaders("peerA", []*wire.BlockHeader{h1})

	events := drain(t, e, 200*time.Millisecond)
	require.NotEmpty(t, events)
	ext, ok := events[0].(HeadersExtended)
	require.True(t, ok)
	require.Equal(t, int32(1), ext.From)
	require.Equal(t, int32(1), ext.To)
}

func TestRejectsHeaderWithUnknownParent(t *testing.T) {
	e, req := newTestEngine(t)
	params := testParams()

	orphan := mineHeader(chainhash.Hash{0xff}, params.PowLimitBits, time.Now())
	e.HandleHeaders("peerA", []*wire.BlockHeader{orphan})

	drain(t, e, 100*time.Millisecond)
	require.Contains(t, req.banned, "peerA")
}

func TestFilterProgressEmittedOnCFilter(t *testing.T) {
	e, _ := newTestEngine(t)
	params := testParams()
	h1 := mineHeader(params.AnchorCheckpoint.Hash, params.PowLimitBits, time.Now())
	e.HandleHeaders("peerA", []*wire.BlockHeader{h1})
	drain(t, e, 100*time.Millisecond)

	f, err := gcsFilterForTest([][]byte{})
	require.NoError(t, err)
	decoded, err := decodeFilter(h1.BlockHash(), f)
	require.NoError(t, err)
	var prevHeader chainhash.Hash
	wantHeader, err := filterHeaderFor(decoded, prevHeader)
	require.NoError(t, err)

	e.do(func(st *engineState) {
		st.filterHeaderCursor = 1
		st.filterHeaders[0] = prevHeader
		st.filterHeaders[1] = wantHeader
	})

	e.HandleCFilter("peerB", &wire.MsgCFilter{BlockHash: h1.BlockHash(), Data: f}, 1)

	events := drain(t, e, 200*time.Millisecond)
	var gotProgress bool
	for _, ev := range events {
		if fp, ok := ev.(FilterProgress); ok && fp.Height == 1 {
			gotProgress = true
		}
	}
	require.True(t, gotProgress)
}

func TestHandleCFHeadersBansOnPrevFilterHeaderMismatch(t *testing.T) {
	e, req := newTestEngine(t)

	e.do(func(st *engineState) {
		st.filterHeaders[10] = chainhash.Hash{0xaa}
	})

	msg := &wire.MsgCFHeaders{
		StopHash:         chainhash.Hash{0x01},
		PrevFilterHeader: chainhash.Hash{0xbb}, // contradicts the already-validated header at 10
		FilterHashes:     []chainhash.Hash{{0x02}},
	}
	e.HandleCFHeaders("peerA", msg, 11)

	drain(t, e, 100*time.Millisecond)
	require.Contains(t, req.banned, "peerA")
}

func TestHandleCFHeadersBansOnDisagreement(t *testing.T) {
	e, req := newTestEngine(t)

	msgA := &wire.MsgCFHeaders{
		StopHash:         chainhash.Hash{0x01},
		PrevFilterHeader: chainhash.Hash{},
		FilterHashes:     []chainhash.Hash{{0x02}},
	}
	msgB := &wire.MsgCFHeaders{
		StopHash:         chainhash.Hash{0x01}, // same block hash, conflicting filter data
		PrevFilterHeader: chainhash.Hash{},
		FilterHashes:     []chainhash.Hash{{0x03}},
	}
	e.HandleCFHeaders("peerA", msgA, 1)
	e.HandleCFHeaders("peerB", msgB, 1)

	drain(t, e, 100*time.Millisecond)
	require.Contains(t, req.banned, "peerA")
	require.Contains(t, req.banned, "peerB")
}

func TestHandleCFHeadersAdvancesOnAgreement(t *testing.T) {
	e, req := newTestEngine(t)

	msg := &wire.MsgCFHeaders{
		StopHash:         chainhash.Hash{0x01},
		PrevFilterHeader: chainhash.Hash{},
		FilterHashes:     []chainhash.Hash{{0x02}},
	}
	e.HandleCFHeaders("peerA", msg, 1)
	e.HandleCFHeaders("peerB", msg, 1)

	drain(t, e, 100*time.Millisecond)
	require.Empty(t, req.banned)

	wantHeader := wire.MakeHeaderForFilter(msg.FilterHashes[0], msg.PrevFilterHeader)
	e.do(func(st *engineState) {
		require.Equal(t, wantHeader, st.filterHeaders[1])
		require.Equal(t, int32(1), st.filterHeaderCursor)
	})
}

func TestHandleCFilterBansOnFilterHeaderMismatch(t *testing.T) {
	e, req := newTestEngine(t)
	params := testParams()
	h1 := mineHeader(params.AnchorCheckpoint.Hash, params.PowLimitBits, time.Now())
	e.HandleHeaders("peerA", []*wire.BlockHeader{h1})
	drain(t, e, 100*time.Millisecond)

	e.do(func(st *engineState) {
		st.filterHeaderCursor = 1
		st.filterHeaders[0] = chainhash.Hash{}
		st.filterHeaders[1] = chainhash.Hash{0xde, 0xad} // not what the filter below actually folds to
	})

	f, err := gcsFilterForTest([][]byte{})
	require.NoError(t, err)
	e.HandleCFilter("peerB", &wire.MsgCFilter{BlockHash: h1.BlockHash(), Data: f}, 1)

	drain(t, e, 100*time.Millisecond)
	require.Contains(t, req.banned, "peerB")
}

// TestRetargetWindowSpansBackToBlocksPerRetarget exercises a retarget
// boundary where the anchor's (zero-value) timestamp is far older than
// the parent's, so a window incorrectly anchored at the parent's own
// timestamp computes a materially different bound than one correctly
// walked back BlocksPerRetarget blocks (§4.6).
func TestRetargetWindowSpansBackToBlocksPerRetarget(t *testing.T) {
	params := testParams()
	params.PoWNoRetargeting = false
	params.TargetTimespan = 2 * time.Minute
	params.TargetTimePerBlock = time.Minute // BlocksPerRetarget == 2
	params.RetargetAdjustmentFactor = 4

	oldTarget := compactToBig(bigToCompact(new(big.Int).Rsh(params.PowLimit, 3)))
	bits1 := bigToCompact(oldTarget)

	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(4)) // matches the maxSpan-clamped bound
	bits2 := bigToCompact(newTarget)

	req := &fakeRequester{}
	e := New(params, req, watchlist.New())
	go e.Run()
	t.Cleanup(e.Stop)

	ts1 := time.Unix(2_000_000_000, 0)
	h1 := mineHeader(params.AnchorCheckpoint.Hash, bits1, ts1)
	e.HandleHeaders("peerA", []*wire.BlockHeader{h1})
	drain(t, e, 200*time.Millisecond)

	ts2 := ts1.Add(time.Minute)
	h2 := mineHeader(h1.BlockHash(), bits2, ts2)
	e.HandleHeaders("peerA", []*wire.BlockHeader{h2})

	events := drain(t, e, 200*time.Millisecond)
	var extended bool
	for _, ev := range events {
		if ext, ok := ev.(HeadersExtended); ok && ext.To == 2 {
			extended = true
		}
	}
	require.True(t, extended, "valid retarget header at the boundary must be accepted")
	require.Empty(t, req.banned)
}
