// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
)

// MaxAddrPerMsg is the maximum number of addresses a single addr message
// may carry.
const MaxAddrPerMsg = 1000

// MsgAddr announces known peer addresses, used by the address book to
// learn new *new*-table candidates (§4.4).
type MsgAddr struct {
	AddrList []*NetAddress
}

func (m *MsgAddr) AddAddress(na *NetAddress) error {
	if len(m.AddrList)+1 > MaxAddrPerMsg {
		return fmt.Errorf("too many addresses in message [max %d]", MaxAddrPerMsg)
	}
	m.AddrList = append(m.AddrList, na)
	return nil
}

func (m *MsgAddr) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	count, err := ReadVarInt(r, &bs)
	if err != nil {
		return err
	}
	if count > MaxAddrPerMsg {
		return fmt.Errorf("too many addresses for message [count %d, max %d]", count, MaxAddrPerMsg)
	}
	addrList := make([]NetAddress, count)
	m.AddrList = make([]*NetAddress, 0, count)
	for i := range addrList {
		na := &addrList[i]
		if err := readNetAddress(r, &bs, na, true); err != nil {
			return err
		}
		m.AddrList = append(m.AddrList, na)
	}
	return nil
}

func (m *MsgAddr) BtcEncode(w io.Writer, pver uint32) error {
	var bs binarySerializer
	count := len(m.AddrList)
	if count > MaxAddrPerMsg {
		return fmt.Errorf("too many addresses for message [count %d, max %d]", count, MaxAddrPerMsg)
	}
	if err := WriteVarInt(w, &bs, uint64(count)); err != nil {
		return err
	}
	for _, na := range m.AddrList {
		if err := writeNetAddress(w, &bs, na, true); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgAddr) Command() string { return CmdAddr }

func (m *MsgAddr) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxAddrPerMsg)) + MaxAddrPerMsg*MaxNetAddressPayload(pver)
}

// NewMsgAddr returns a new empty addr message.
func NewMsgAddr() *MsgAddr { return &MsgAddr{AddrList: make([]*NetAddress, 0, 64)} }
