// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
)

// MsgGetData requests the full objects (blocks or transactions) named by
// an earlier inv, or that Kyoto wants directly (block-fetch planner,
// broadcast's expected getdata(tx), §4.6/§4.7).
type MsgGetData struct {
	InvList []*InvVect
}

func (m *MsgGetData) AddInvVect(iv *InvVect) error {
	if len(m.InvList)+1 > MaxInvPerMsg {
		return fmt.Errorf("too many invvect in message [max %d]", MaxInvPerMsg)
	}
	m.InvList = append(m.InvList, iv)
	return nil
}

func (m *MsgGetData) BtcDecode(r io.Reader, pver uint32) error {
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

func (m *MsgGetData) BtcEncode(w io.Writer, pver uint32) error {
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

func (m *MsgGetData) Command() string { return CmdGetData }

func (m *MsgGetData) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxInvPerMsg)) + MaxInvPerMsg*(4+32)
}

// NewMsgGetData returns a new empty getdata message.
func NewMsgGetData() *MsgGetData { return &MsgGetData{InvList: make([]*InvVect, 0, 1)} }
