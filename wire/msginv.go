// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
)

// MaxInvPerMsg is the maximum number of inventory vectors per message.
const MaxInvPerMsg = 50000

// MsgInv announces objects (transactions/blocks) the sender has, or (from
// Kyoto, on broadcast) wishes to announce (§4.7).
type MsgInv struct {
	InvList []*InvVect
}

func (m *MsgInv) AddInvVect(iv *InvVect) error {
	if len(m.InvList)+1 > MaxInvPerMsg {
		return fmt.Errorf("too many invvect in message [max %d]", MaxInvPerMsg)
	}
	m.InvList = append(m.InvList, iv)
	return nil
}

func (m *MsgInv) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	count, err := ReadVarInt(r, &bs)
	if err != nil {
		return err
	}
	if count > MaxInvPerMsg {
		return fmt.Errorf("too many invvect in message [count %d, max %d]", count, MaxInvPerMsg)
	}
	invList := make([]InvVect, count)
	m.InvList = make([]*InvVect, 0, count)
	for i := range invList {
		iv := &invList[i]
		if err := readInvVect(r, &bs, iv); err != nil {
			return err
		}
		m.InvList = append(m.InvList, iv)
	}
	return nil
}

func (m *MsgInv) BtcEncode(w io.Writer, pver uint32) error {
	var bs binarySerializer
	count := len(m.InvList)
	if count > MaxInvPerMsg {
		return fmt.Errorf("too many invvect in message [count %d, max %d]", count, MaxInvPerMsg)
	}
	if err := WriteVarInt(w, &bs, uint64(count)); err != nil {
		return err
	}
	for _, iv := range m.InvList {
		if err := writeInvVect(w, &bs, iv); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgInv) Command() string { return CmdInv }

func (m *MsgInv) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxInvPerMsg)) + MaxInvPerMsg*(4+32)
}

// NewMsgInv returns a new empty inv message.
func NewMsgInv() *MsgInv { return &MsgInv{InvList: make([]*InvVect, 0, 1)} }
