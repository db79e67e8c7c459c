// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
)

// MsgAddrV2 is the BIP155 successor to addr, carrying variable-length
// address encodings (Tor v3, etc.) a legacy NetAddress cannot represent
// (§4.1).
type MsgAddrV2 struct {
	AddrList []*NetAddressV2
}

func (m *MsgAddrV2) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	count, err := ReadVarInt(r, &bs)
	if err != nil {
		return err
	}
	if count > MaxAddrPerMsg {
		return fmt.Errorf("too many addresses for message [count %d, max %d]", count, MaxAddrPerMsg)
	}
	m.AddrList = make([]*NetAddressV2, 0, count)
	for i := uint64(0); i < count; i++ {
		na, err := readNetAddressV2(r, &bs)
		if err != nil {
			return err
		}
		m.AddrList = append(m.AddrList, na)
	}
	return nil
}

func (m *MsgAddrV2) BtcEncode(w io.Writer, pver uint32) error {
	var bs binarySerializer
	if len(m.AddrList) > MaxAddrPerMsg {
		return fmt.Errorf("too many addresses for message [count %d, max %d]", len(m.AddrList), MaxAddrPerMsg)
	}
	if err := WriteVarInt(w, &bs, uint64(len(m.AddrList))); err != nil {
		return err
	}
	for _, na := range m.AddrList {
		if err := writeNetAddressV2(w, &bs, na); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgAddrV2) Command() string { return CmdAddrV2 }

func (m *MsgAddrV2) MaxPayloadLength(pver uint32) uint32 {
	// Each record is variable length (addr up to 512 bytes, generously
	// bounding Tor v3 and any future network id); bound the whole message
	// accordingly rather than assume a fixed per-record size.
	const maxRecord = 4 + 9 + 1 + 9 + 512 + 2
	return uint32(VarIntSerializeSize(MaxAddrPerMsg)) + MaxAddrPerMsg*maxRecord
}

// NewMsgAddrV2 returns a new empty addrv2 message.
func NewMsgAddrV2() *MsgAddrV2 { return &MsgAddrV2{AddrList: make([]*NetAddressV2, 0, 64)} }
