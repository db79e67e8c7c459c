// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// witnessMarkerFlag is the sentinel (0x00, 0x01) inserted after the version
// field of a segwit transaction, per BIP0144.
const (
	witnessMarker = 0x00
	witnessFlag   = 0x01
)

// MaxTxInPerMessage / MaxTxOutPerMessage bound a single transaction's
// input/output counts to a size that cannot possibly fit within
// MaxMessagePayload, guarding against a decode-time allocation bomb.
const (
	MaxTxInPerMessage  = (MaxMessagePayload / 41) + 1
	MaxTxOutPerMessage = (MaxMessagePayload / 9) + 1
)

// TxIn defines a transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Witness          [][]byte
	Sequence         uint32
}

// TxOut defines a transaction output: the spendable script and its value.
// Kyoto's watchlist match (§4.6) inspects PkScript only.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// MsgTx implements a Bitcoin transaction. Kyoto decodes transactions from
// tx messages and from the blocks it fetches (§3 Block), and sends the
// client's transactions handed to BroadcastTx as they are (§4.7); it
// never constructs one itself.
type MsgTx struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// hasWitness reports whether any input carries witness data.
func (m *MsgTx) hasWitness() bool {
	for _, in := range m.TxIn {
		if len(in.Witness) > 0 {
			return true
		}
	}
	return false
}

// TxHash returns the txid: the double-SHA256 of the transaction serialized
// WITHOUT witness data, per BIP0141/BIP0144.
func (m *MsgTx) TxHash() chainhash.Hash {
	return chainhash.DoubleHashH(m.serialize(false))
}

// WTxHash returns the wtxid: the double-SHA256 of the transaction
// serialized WITH witness data.
func (m *MsgTx) WTxHash() chainhash.Hash {
	return chainhash.DoubleHashH(m.serialize(true))
}

func (m *MsgTx) serialize(withWitness bool) []byte {
	var buf bytes.Buffer
	var bs binarySerializer
	witness := withWitness && m.hasWitness()

	_ = writeElement(&buf, &bs, m.Version)
	if witness {
		buf.WriteByte(witnessMarker)
		buf.WriteByte(witnessFlag)
	}
	_ = WriteVarInt(&buf, &bs, uint64(len(m.TxIn)))
	for _, ti := range m.TxIn {
		_ = writeOutPoint(&buf, &bs, &ti.PreviousOutPoint)
		_ = WriteVarBytes(&buf, &bs, ti.SignatureScript)
		_ = writeElement(&buf, &bs, ti.Sequence)
	}
	_ = WriteVarInt(&buf, &bs, uint64(len(m.TxOut)))
	for _, to := range m.TxOut {
		_ = writeElement(&buf, &bs, to.Value)
		_ = WriteVarBytes(&buf, &bs, to.PkScript)
	}
	if witness {
		for _, ti := range m.TxIn {
			_ = WriteVarInt(&buf, &bs, uint64(len(ti.Witness)))
			for _, item := range ti.Witness {
				_ = WriteVarBytes(&buf, &bs, item)
			}
		}
	}
	_ = writeElement(&buf, &bs, m.LockTime)
	return buf.Bytes()
}

func (m *MsgTx) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	if err := readElement(r, &bs, &m.Version); err != nil {
		return err
	}

	count, err := ReadVarInt(r, &bs)
	if err != nil {
		return err
	}

	witness := false
	if count == 0 {
		// Witness marker: the next byte is the flag, and the real
		// input count follows.
		flag := make([]byte, 1)
		if _, err := io.ReadFull(r, flag); err != nil {
			return err
		}
		if flag[0] != witnessFlag {
			return fmt.Errorf("unsupported segwit flag %x", flag[0])
		}
		witness = true
		if count, err = ReadVarInt(r, &bs); err != nil {
			return err
		}
	}
	if count > MaxTxInPerMessage {
		return fmt.Errorf("too many input transactions [count %d, max %d]", count, MaxTxInPerMessage)
	}

	m.TxIn = make([]*TxIn, 0, count)
	for i := uint64(0); i < count; i++ {
		ti := &TxIn{}
		if err := readOutPoint(r, &bs, &ti.PreviousOutPoint); err != nil {
			return err
		}
		if ti.SignatureScript, err = ReadVarBytes(r, &bs, MaxMessagePayload, "txin signature script"); err != nil {
			return err
		}
		if err := readElement(r, &bs, &ti.Sequence); err != nil {
			return err
		}
		m.TxIn = append(m.TxIn, ti)
	}

	outCount, err := ReadVarInt(r, &bs)
	if err != nil {
		return err
	}
	if outCount > MaxTxOutPerMessage {
		return fmt.Errorf("too many output transactions [count %d, max %d]", outCount, MaxTxOutPerMessage)
	}
	m.TxOut = make([]*TxOut, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		to := &TxOut{}
		if err := readElement(r, &bs, &to.Value); err != nil {
			return err
		}
		if to.PkScript, err = ReadVarBytes(r, &bs, MaxMessagePayload, "txout pkscript"); err != nil {
			return err
		}
		m.TxOut = append(m.TxOut, to)
	}

	if witness {
		for _, ti := range m.TxIn {
			wCount, err := ReadVarInt(r, &bs)
			if err != nil {
				return err
			}
			ti.Witness = make([][]byte, wCount)
			for j := range ti.Witness {
				if ti.Witness[j], err = ReadVarBytes(r, &bs, MaxMessagePayload, "witness item"); err != nil {
					return err
				}
			}
		}
	}

	return readElement(r, &bs, &m.LockTime)
}

func (m *MsgTx) BtcEncode(w io.Writer, pver uint32) error {
	_, err := w.Write(m.serialize(true))
	return err
}

func (m *MsgTx) Command() string                    { return CmdTx }
func (m *MsgTx) MaxPayloadLength(pver uint32) uint32 { return MaxMessagePayload }
