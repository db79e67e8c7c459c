// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgSendCmpct implements the sendcmpct message (BIP0152). Kyoto never
// announces compact-block support of its own, but a data peer may send
// this unsolicited during handshake and the codec must still decode it
// rather than treat it as a protocol violation (§4.1).
type MsgSendCmpct struct {
	Announce bool
	Version  uint64
}

func (m *MsgSendCmpct) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	if err := readElement(r, &bs, &m.Announce); err != nil {
		return err
	}
	return readElement(r, &bs, &m.Version)
}

func (m *MsgSendCmpct) BtcEncode(w io.Writer, pver uint32) error {
	var bs binarySerializer
	if err := writeElement(w, &bs, m.Announce); err != nil {
		return err
	}
	return writeElement(w, &bs, m.Version)
}

func (m *MsgSendCmpct) Command() string                    { return CmdSendCmpct }
func (m *MsgSendCmpct) MaxPayloadLength(pver uint32) uint32 { return 9 }
