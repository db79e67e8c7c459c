// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgPong replies to a ping, echoing its nonce (§4.3).
type MsgPong struct {
	Nonce uint64
}

func (m *MsgPong) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	return readElement(r, &bs, &m.Nonce)
}

func (m *MsgPong) BtcEncode(w io.Writer, pver uint32) error {
	var bs binarySerializer
	return writeElement(w, &bs, m.Nonce)
}

func (m *MsgPong) Command() string                    { return CmdPong }
func (m *MsgPong) MaxPayloadLength(pver uint32) uint32 { return 8 }

// NewMsgPong returns a new pong message echoing nonce.
func NewMsgPong(nonce uint64) *MsgPong { return &MsgPong{Nonce: nonce} }
