// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgFeeFilter implements the feefilter message: the minimum fee rate
// (satoshis/kvB) the sender wants to be notified of via inv. Kyoto decodes
// it so the message is not a protocol error, but does not use the value
// and never relays transactions to anyone itself.
type MsgFeeFilter struct {
	MinFee int64
}

func (m *MsgFeeFilter) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	return readElement(r, &bs, &m.MinFee)
}

func (m *MsgFeeFilter) BtcEncode(w io.Writer, pver uint32) error {
	var bs binarySerializer
	return writeElement(w, &bs, m.MinFee)
}

func (m *MsgFeeFilter) Command() string                    { return CmdFeeFilter }
func (m *MsgFeeFilter) MaxPayloadLength(pver uint32) uint32 { return 8 }

// NewMsgFeeFilter returns a new feefilter message.
func NewMsgFeeFilter(minFee int64) *MsgFeeFilter { return &MsgFeeFilter{MinFee: minFee} }
