// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
)

// MaxBlockHeadersPerMsg is the maximum number of headers a single headers
// message may carry.
const MaxBlockHeadersPerMsg = 2000

// MsgHeaders answers a getheaders request with up to MaxBlockHeadersPerMsg
// headers (§4.6).
type MsgHeaders struct {
	Headers []*BlockHeader
}

func (m *MsgHeaders) AddBlockHeader(bh *BlockHeader) error {
	if len(m.Headers)+1 > MaxBlockHeadersPerMsg {
		return fmt.Errorf("too many block headers for message [max %d]", MaxBlockHeadersPerMsg)
	}
	m.Headers = append(m.Headers, bh)
	return nil
}

func (m *MsgHeaders) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	count, err := ReadVarInt(r, &bs)
	if err != nil {
		return err
	}
	if count > MaxBlockHeadersPerMsg {
		return fmt.Errorf("too many headers for message [count %d, max %d]", count, MaxBlockHeadersPerMsg)
	}
	headers := make([]BlockHeader, count)
	m.Headers = make([]*BlockHeader, 0, count)
	for i := range headers {
		bh := &headers[i]
		if err := readBlockHeader(r, &bs, bh); err != nil {
			return err
		}
		txCount, err := ReadVarInt(r, &bs)
		if err != nil {
			return err
		}
		if txCount != 0 {
			return fmt.Errorf("headers message header claims %d transactions", txCount)
		}
		m.Headers = append(m.Headers, bh)
	}
	return nil
}

func (m *MsgHeaders) BtcEncode(w io.Writer, pver uint32) error {
	count := len(m.Headers)
	if count > MaxBlockHeadersPerMsg {
		return fmt.Errorf("too many headers for message [count %d, max %d]", count, MaxBlockHeadersPerMsg)
	}
	var bs binarySerializer
	if err := WriteVarInt(w, &bs, uint64(count)); err != nil {
		return err
	}
	for _, bh := range m.Headers {
		if err := writeBlockHeader(w, &bs, bh); err != nil {
			return err
		}
		if err := WriteVarInt(w, &bs, 0); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgHeaders) Command() string { return CmdHeaders }

func (m *MsgHeaders) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxBlockHeadersPerMsg)) +
		(MaxBlockHeadersPerMsg * (MaxBlockHeaderPayload + 1))
}

// NewMsgHeaders returns a new empty headers message.
func NewMsgHeaders() *MsgHeaders {
	return &MsgHeaders{Headers: make([]*BlockHeader, 0, MaxBlockHeadersPerMsg)}
}
