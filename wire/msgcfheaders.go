// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// FilterType identifies a BIP0157 filter type. Kyoto only ever requests
// the basic filter (type 0, BIP0158).
type FilterType uint8

const FilterTypeBasic FilterType = 0

// MsgGetCFHeaders requests the filter-header chain for [startHeight,
// stopHash] (§4.1, §4.6).
type MsgGetCFHeaders struct {
	FilterType  FilterType
	StartHeight uint32
	StopHash    chainhash.Hash
}

func (m *MsgGetCFHeaders) BtcDecode(r io.Reader, pver uint32) error {
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

func (m *MsgGetCFHeaders) BtcEncode(w io.Writer, pver uint32) error {
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

func (m *MsgGetCFHeaders) Command() string                    { return CmdGetCFHeaders }
func (m *MsgGetCFHeaders) MaxPayloadLength(pver uint32) uint32 { return 1 + 4 + chainhash.HashSize }

// MsgCFHeaders answers a getcfheaders request: the previous filter header
// plus MaxCFHeadersPerMsg filter hashes, from which the requester
// recomputes and validates the chain of filter headers (§3, §4.6).
type MsgCFHeaders struct {
	FilterType       FilterType
	StopHash         chainhash.Hash
	PrevFilterHeader chainhash.Hash
	FilterHashes     []chainhash.Hash
}

// MaxCFHeadersPerMsg bounds the number of filter hashes in one message.
const MaxCFHeadersPerMsg = 2000

func (m *MsgCFHeaders) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	ft, err := io.ReadAll(io.LimitReader(r, 1))
	if err != nil {
		return err
	}
	if len(ft) != 1 {
		return io.ErrUnexpectedEOF
	}
	m.FilterType = FilterType(ft[0])
	if _, err := io.ReadFull(r, m.StopHash[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, m.PrevFilterHeader[:]); err != nil {
		return err
	}
	count, err := ReadVarInt(r, &bs)
	if err != nil {
		return err
	}
	if count > MaxCFHeadersPerMsg {
		return fmt.Errorf("too many filter hashes for message [count %d, max %d]", count, MaxCFHeadersPerMsg)
	}
	m.FilterHashes = make([]chainhash.Hash, count)
	for i := range m.FilterHashes {
		if _, err := io.ReadFull(r, m.FilterHashes[i][:]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgCFHeaders) BtcEncode(w io.Writer, pver uint32) error {
	var bs binarySerializer
	if _, err := w.Write([]byte{byte(m.FilterType)}); err != nil {
		return err
	}
	if _, err := w.Write(m.StopHash[:]); err != nil {
		return err
	}
	if _, err := w.Write(m.PrevFilterHeader[:]); err != nil {
		return err
	}
	if err := WriteVarInt(w, &bs, uint64(len(m.FilterHashes))); err != nil {
		return err
	}
	for _, h := range m.FilterHashes {
		if _, err := w.Write(h[:]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgCFHeaders) Command() string { return CmdCFHeaders }

func (m *MsgCFHeaders) MaxPayloadLength(pver uint32) uint32 {
	return 1 + 2*chainhash.HashSize + uint32(VarIntSerializeSize(MaxCFHeadersPerMsg)) +
		MaxCFHeadersPerMsg*chainhash.HashSize
}

// MakeHeaderForFilter computes fh(h) = H(filter_hash(h) || fh(h-1)) as
// defined in §3/BIP0157.
func MakeHeaderForFilter(filterHash, prevHeader chainhash.Hash) chainhash.Hash {
	data := make([]byte, 0, chainhash.HashSize*2)
	data = append(data, filterHash[:]...)
	data = append(data, prevHeader[:]...)
	return chainhash.DoubleHashH(data)
}
