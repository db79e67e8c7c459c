// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgVerAck defines a message which is sent in response to a version
// message ("verack").  It carries no payload; its presence alone completes
// the handshake half (§4.3).
type MsgVerAck struct{}

func (m *MsgVerAck) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (m *MsgVerAck) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (m *MsgVerAck) Command() string                         { return CmdVerAck }
func (m *MsgVerAck) MaxPayloadLength(pver uint32) uint32      { return 0 }

// NewMsgVerAck returns a new verack message.
func NewMsgVerAck() *MsgVerAck { return &MsgVerAck{} }
