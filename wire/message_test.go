// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// roundTrip writes msg to the wire and reads it back, per the §8 property
// "parse(encode(m)) = m for every supported message type".
func roundTrip(t *testing.T, msg Message) Message {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, msg, ProtocolVersion, MainNet))

	got, _, err := ReadMessage(&buf, ProtocolVersion, MainNet)
	require.NoError(t, err)
	return got
}

func TestRoundTripPingPong(t *testing.T) {
	ping := NewMsgPing(0xdeadbeef)
	got := roundTrip(t, ping).(*MsgPing)
	require.Equal(t, ping.Nonce, got.Nonce)

	pong := NewMsgPong(0xcafebabe)
	gotPong := roundTrip(t, pong).(*MsgPong)
	require.Equal(t, pong.Nonce, gotPong.Nonce)
}

func TestRoundTripVerAck(t *testing.T) {
	roundTrip(t, NewMsgVerAck())
	roundTrip(t, NewMsgSendAddrV2())
}

func TestVersionHidesRealAddress(t *testing.T) {
	them := &NetAddress{IP: net.ParseIP("8.8.8.8"), Port: 8333}
	v := NewMsgVersion(them, 1234, 100, "")
	require.Equal(t, net.ParseIP("127.0.0.1").To16(), v.AddrMe.IP)
	require.Equal(t, them.IP, v.AddrYou.IP)
	require.Contains(t, v.UserAgent, "/Kyoto:")

	got := roundTrip(t, v).(*MsgVersion)
	require.Equal(t, v.ProtocolVersion, got.ProtocolVersion)
	require.Equal(t, v.UserAgent, got.UserAgent)
	require.True(t, got.AddrYou.IP.Equal(them.IP))
}

func TestRoundTripGetHeaders(t *testing.T) {
	gh := NewMsgGetHeaders()
	h1 := chainhash.Hash{1}
	h2 := chainhash.Hash{2}
	require.NoError(t, gh.AddBlockLocatorHash(&h1))
	require.NoError(t, gh.AddBlockLocatorHash(&h2))
	gh.HashStop = chainhash.Hash{0xff}

	got := roundTrip(t, gh).(*MsgGetHeaders)
	require.Len(t, got.BlockLocatorHashes, 2)
	require.Equal(t, h1, *got.BlockLocatorHashes[0])
	require.Equal(t, gh.HashStop, got.HashStop)
}

func TestRoundTripHeaders(t *testing.T) {
	msg := NewMsgHeaders()
	bh := &BlockHeader{
		Version:    2,
		PrevBlock:  chainhash.Hash{1},
		MerkleRoot: chainhash.Hash{2},
		Timestamp:  time.Unix(1700000000, 0),
		Bits:       0x1d00ffff,
		Nonce:      12345,
	}
	require.NoError(t, msg.AddBlockHeader(bh))

	got := roundTrip(t, msg).(*MsgHeaders)
	require.Len(t, got.Headers, 1)
	require.Equal(t, bh.BlockHash(), got.Headers[0].BlockHash())
}

func TestRoundTripCFHeaders(t *testing.T) {
	msg := &MsgCFHeaders{
		FilterType:       FilterTypeBasic,
		StopHash:         chainhash.Hash{1},
		PrevFilterHeader: chainhash.Hash{2},
		FilterHashes:     []chainhash.Hash{{3}, {4}},
	}
	got := roundTrip(t, msg).(*MsgCFHeaders)
	require.Equal(t, msg.FilterHashes, got.FilterHashes)
	require.Equal(t, msg.PrevFilterHeader, got.PrevFilterHeader)
}

func TestRoundTripCFilter(t *testing.T) {
	msg := &MsgCFilter{
		FilterType: FilterTypeBasic,
		BlockHash:  chainhash.Hash{9},
		Data:       []byte{1, 2, 3, 4, 5},
	}
	got := roundTrip(t, msg).(*MsgCFilter)
	require.Equal(t, msg.Data, got.Data)
}

func TestRoundTripTx(t *testing.T) {
	tx := &MsgTx{
		Version: 2,
		TxIn: []*TxIn{{
			PreviousOutPoint: OutPoint{Hash: chainhash.Hash{1}, Index: 0},
			SignatureScript:  []byte{0x01, 0x02},
			Witness:          [][]byte{{0xaa, 0xbb}, {0xcc}},
			Sequence:         0xffffffff,
		}},
		TxOut: []*TxOut{{
			Value:    5000000000,
			PkScript: []byte{0x76, 0xa9, 0x14},
		}},
		LockTime: 0,
	}
	got := roundTrip(t, tx).(*MsgTx)
	require.Equal(t, tx.TxHash(), got.TxHash())
	require.Equal(t, tx.WTxHash(), got.WTxHash())
	require.Len(t, got.TxIn[0].Witness, 2)
}

func TestRoundTripBlock(t *testing.T) {
	tx := &MsgTx{
		Version: 1,
		TxIn: []*TxIn{{
			PreviousOutPoint: OutPoint{Index: 0xffffffff},
			SignatureScript:  []byte("coinbase"),
			Sequence:         0xffffffff,
		}},
		TxOut: []*TxOut{{Value: 0, PkScript: []byte{0x6a}}},
	}
	blk := &MsgBlock{
		Header: BlockHeader{
			Version:    1,
			Timestamp:  time.Unix(1231006505, 0),
			Bits:       0x1d00ffff,
			MerkleRoot: tx.TxHash(),
		},
		Transactions: []*MsgTx{tx},
	}
	require.True(t, blk.CheckMerkleRoot())

	got := roundTrip(t, blk).(*MsgBlock)
	require.Len(t, got.Transactions, 1)
	require.True(t, got.CheckMerkleRoot())
}

func TestUnknownCommandDiscarded(t *testing.T) {
	var buf bytes.Buffer
	var bs binarySerializer
	_ = writeElement(&buf, &bs, uint32(MainNet))
	var cmd [CommandSize]byte
	copy(cmd[:], "notarealcmd")
	_, _ = buf.Write(cmd[:])
	payload := []byte("hello")
	_ = writeElement(&buf, &bs, uint32(len(payload)))
	c := checksum(payload)
	_, _ = buf.Write(c[:])
	_, _ = buf.Write(payload)

	msg, raw, err := ReadMessage(&buf, ProtocolVersion, MainNet)
	require.NoError(t, err)
	require.Nil(t, msg)
	require.Equal(t, payload, raw)
}

func TestOversizedPayloadRejected(t *testing.T) {
	var buf bytes.Buffer
	var bs binarySerializer
	_ = writeElement(&buf, &bs, uint32(MainNet))
	var cmd [CommandSize]byte
	copy(cmd[:], CmdTx)
	_, _ = buf.Write(cmd[:])
	_ = writeElement(&buf, &bs, uint32(MaxMessagePayload+1))
	var zero [4]byte
	_, _ = buf.Write(zero[:])

	_, _, err := ReadMessage(&buf, ProtocolVersion, MainNet)
	require.Error(t, err)
}

func TestBadChecksumRejected(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, NewMsgPing(1), ProtocolVersion, MainNet))
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xff // corrupt the last payload byte
	_, _, err := ReadMessage(bytes.NewReader(raw), ProtocolVersion, MainNet)
	require.Error(t, err)
}

// TestVarIntRoundTrip is a property test for the §8 round-trip invariant,
// exercised directly against the varint codec that underlies every
// message.
func TestVarIntRoundTrip(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		val := rapid.Uint64().Draw(tt, "val")
		var buf bytes.Buffer
		var bs binarySerializer
		require.NoError(tt, WriteVarInt(&buf, &bs, val))
		require.Equal(tt, VarIntSerializeSize(val), buf.Len())

		got, err := ReadVarInt(&buf, &bs)
		require.NoError(tt, err)
		require.Equal(tt, val, got)
	})
}

func TestPingRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		nonce := rapid.Uint64().Draw(tt, "nonce")
		var buf bytes.Buffer
		require.NoError(tt, WriteMessage(&buf, NewMsgPing(nonce), ProtocolVersion, MainNet))
		got, _, err := ReadMessage(&buf, ProtocolVersion, MainNet)
		require.NoError(tt, err)
		require.Equal(tt, nonce, got.(*MsgPing).Nonce)
	})
}
