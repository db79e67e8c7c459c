// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgSendAddrV2 announces, before verack, that the sender understands
// addrv2 and wants to receive it instead of the legacy addr message (§4.1).
type MsgSendAddrV2 struct{}

func (m *MsgSendAddrV2) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (m *MsgSendAddrV2) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (m *MsgSendAddrV2) Command() string                         { return CmdSendAddrV2 }
func (m *MsgSendAddrV2) MaxPayloadLength(pver uint32) uint32      { return 0 }

// NewMsgSendAddrV2 returns a new sendaddrv2 message.
func NewMsgSendAddrV2() *MsgSendAddrV2 { return &MsgSendAddrV2{} }
