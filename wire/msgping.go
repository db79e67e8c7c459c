// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgPing is used to confirm a connection is still alive (§4.3 keepalive).
type MsgPing struct {
	Nonce uint64
}

func (m *MsgPing) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	return readElement(r, &bs, &m.Nonce)
}

func (m *MsgPing) BtcEncode(w io.Writer, pver uint32) error {
	var bs binarySerializer
	return writeElement(w, &bs, m.Nonce)
}

func (m *MsgPing) Command() string                    { return CmdPing }
func (m *MsgPing) MaxPayloadLength(pver uint32) uint32 { return 8 }

// NewMsgPing returns a new ping message with the given nonce.
func NewMsgPing(nonce uint64) *MsgPing { return &MsgPing{Nonce: nonce} }
