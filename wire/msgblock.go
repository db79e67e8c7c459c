// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MaxTxPerBlock bounds the number of transactions a single decoded block
// may claim, guarding against a decode-time allocation bomb ahead of the
// 32 MiB envelope cap already enforced by the codec.
const MaxTxPerBlock = (MaxMessagePayload / 60) + 1

// MsgBlock is a full block (§3): header plus transactions. Kyoto retains
// one only long enough to extract and emit the matched transactions
// (§4.6), then discards it.
type MsgBlock struct {
	Header       BlockHeader
	Transactions []*MsgTx
}

func (m *MsgBlock) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	if err := readBlockHeader(r, &bs, &m.Header); err != nil {
		return err
	}
	count, err := ReadVarInt(r, &bs)
	if err != nil {
		return err
	}
	if count > MaxTxPerBlock {
		return fmt.Errorf("too many transactions to fit into a block [count %d, max %d]", count, MaxTxPerBlock)
	}
	m.Transactions = make([]*MsgTx, 0, count)
	for i := uint64(0); i < count; i++ {
		tx := &MsgTx{}
		if err := tx.BtcDecode(r, pver); err != nil {
			return err
		}
		m.Transactions = append(m.Transactions, tx)
	}
	return nil
}

func (m *MsgBlock) BtcEncode(w io.Writer, pver uint32) error {
	var bs binarySerializer
	if err := writeBlockHeader(w, &bs, &m.Header); err != nil {
		return err
	}
	if err := WriteVarInt(w, &bs, uint64(len(m.Transactions))); err != nil {
		return err
	}
	for _, tx := range m.Transactions {
		if err := tx.BtcEncode(w, pver); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgBlock) Command() string                    { return CmdBlock }
func (m *MsgBlock) MaxPayloadLength(pver uint32) uint32 { return MaxMessagePayload }

// BlockHash returns the header's double-SHA256 hash.
func (m *MsgBlock) BlockHash() chainhash.Hash { return m.Header.BlockHash() }

// merkleRoot computes the block's merkle root from its transaction IDs,
// pairing the standard way: duplicate the last hash of an odd-length
// level.
func (m *MsgBlock) merkleRoot() chainhash.Hash {
	if len(m.Transactions) == 0 {
		return chainhash.Hash{}
	}
	level := make([]chainhash.Hash, len(m.Transactions))
	for i, tx := range m.Transactions {
		level[i] = tx.TxHash()
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]chainhash.Hash, len(level)/2)
		for i := range next {
			var buf [chainhash.HashSize * 2]byte
			copy(buf[:chainhash.HashSize], level[2*i][:])
			copy(buf[chainhash.HashSize:], level[2*i+1][:])
			next[i] = chainhash.DoubleHashH(buf[:])
		}
		level = next
	}
	return level[0]
}

// CheckMerkleRoot reports whether the block's computed merkle root matches
// its header, one of the checks run before emitting a matched block
// (§4.6).
func (m *MsgBlock) CheckMerkleRoot() bool {
	return m.merkleRoot() == m.Header.MerkleRoot
}
