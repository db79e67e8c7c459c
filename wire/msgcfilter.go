// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MaxGetCFiltersReqRange bounds a single getcfilters batch (§4.6 default
// 500 at a time).
const MaxGetCFiltersReqRange = 1000

// MsgGetCFilters requests BIP0158 filters for [startHeight, stopHash].
type MsgGetCFilters struct {
	FilterType  FilterType
	StartHeight uint32
	StopHash    chainhash.Hash
}

func (m *MsgGetCFilters) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	ft, err := io.ReadAll(io.LimitReader(r, 1))
	if err != nil {
		return err
	}
	if len(ft) != 1 {
		return io.ErrUnexpectedEOF
	}
	m.FilterType = FilterType(ft[0])
	if m.StartHeight, err = bs.Uint32(r, littleEndian); err != nil {
		return err
	}
	_, err = io.ReadFull(r, m.StopHash[:])
	return err
}

func (m *MsgGetCFilters) BtcEncode(w io.Writer, pver uint32) error {
	var bs binarySerializer
	if _, err := w.Write([]byte{byte(m.FilterType)}); err != nil {
		return err
	}
	if err := bs.PutUint32(w, littleEndian, m.StartHeight); err != nil {
		return err
	}
	_, err := w.Write(m.StopHash[:])
	return err
}

func (m *MsgGetCFilters) Command() string                    { return CmdGetCFilters }
func (m *MsgGetCFilters) MaxPayloadLength(pver uint32) uint32 { return 1 + 4 + chainhash.HashSize }

// MaxCFilterDataSize bounds a single filter's encoded GCS payload.
const MaxCFilterDataSize = 1000000

// MsgCFilter carries one block's BIP0158 basic filter (§3, §4.6).
type MsgCFilter struct {
	FilterType FilterType
	BlockHash  chainhash.Hash
	Data       []byte
}

func (m *MsgCFilter) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	ft, err := io.ReadAll(io.LimitReader(r, 1))
	if err != nil {
		return err
	}
	if len(ft) != 1 {
		return io.ErrUnexpectedEOF
	}
	m.FilterType = FilterType(ft[0])
	if _, err := io.ReadFull(r, m.BlockHash[:]); err != nil {
		return err
	}
	m.Data, err = ReadVarBytes(r, &bs, MaxCFilterDataSize, "cfilter data")
	return err
}

func (m *MsgCFilter) BtcEncode(w io.Writer, pver uint32) error {
	var bs binarySerializer
	if _, err := w.Write([]byte{byte(m.FilterType)}); err != nil {
		return err
	}
	if _, err := w.Write(m.BlockHash[:]); err != nil {
		return err
	}
	return WriteVarBytes(w, &bs, m.Data)
}

func (m *MsgCFilter) Command() string { return CmdCFilter }

func (m *MsgCFilter) MaxPayloadLength(pver uint32) uint32 {
	return 1 + chainhash.HashSize + uint32(VarIntSerializeSize(MaxCFilterDataSize)) + MaxCFilterDataSize
}
