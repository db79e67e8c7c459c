// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// RejectCode mirrors the reason byte of a reject message.
type RejectCode uint8

const (
	RejectMalformed       RejectCode = 0x01
	RejectInvalid         RejectCode = 0x10
	RejectObsolete        RejectCode = 0x11
	RejectDuplicate       RejectCode = 0x12
	RejectNonstandard     RejectCode = 0x40
	RejectDust            RejectCode = 0x41
	RejectInsufficientFee RejectCode = 0x42
	RejectCheckpoint      RejectCode = 0x43
)

// MsgReject implements the (deprecated since BIP0061 withdrawal, but still
// occasionally seen) reject message, §4.1.
type MsgReject struct {
	Cmd    string
	Code   RejectCode
	Reason string
	Hash   chainhash.Hash
}

func (m *MsgReject) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	var err error
	if m.Cmd, err = ReadVarString(r, &bs); err != nil {
		return err
	}
	code, err := io.ReadAll(io.LimitReader(r, 1))
	if err != nil {
		return err
	}
	if len(code) != 1 {
		return io.ErrUnexpectedEOF
	}
	m.Code = RejectCode(code[0])
	if m.Reason, err = ReadVarString(r, &bs); err != nil {
		return err
	}
	switch m.Cmd {
	case CmdBlock, CmdTx:
		_, err = io.ReadFull(r, m.Hash[:])
		return err
	}
	return nil
}

func (m *MsgReject) BtcEncode(w io.Writer, pver uint32) error {
	var bs binarySerializer
	if err := WriteVarString(w, &bs, m.Cmd); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(m.Code)}); err != nil {
		return err
	}
	if err := WriteVarString(w, &bs, m.Reason); err != nil {
		return err
	}
	switch m.Cmd {
	case CmdBlock, CmdTx:
		_, err := w.Write(m.Hash[:])
		return err
	}
	return nil
}

func (m *MsgReject) Command() string { return CmdReject }

func (m *MsgReject) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(CommandSize)) + CommandSize + 1 +
		uint32(VarIntSerializeSize(MaxMessagePayload)) + MaxMessagePayload + chainhash.HashSize
}
