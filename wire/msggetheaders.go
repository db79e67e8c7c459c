// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MaxBlockLocatorsPerMsg is the maximum number of block locator hashes
// allowed per message.
const MaxBlockLocatorsPerMsg = 500

// MsgGetHeaders requests headers starting from a locator's most recent
// common ancestor, up to HashStop or 2000 headers, whichever comes first
// (§4.6). The locator is built exponentially sparser with each ancestor,
// per §4.6.
type MsgGetHeaders struct {
	ProtocolVersion    uint32
	BlockLocatorHashes []*chainhash.Hash
	HashStop           chainhash.Hash
}

func (m *MsgGetHeaders) AddBlockLocatorHash(hash *chainhash.Hash) error {
	if len(m.BlockLocatorHashes)+1 > MaxBlockLocatorsPerMsg {
		return fmt.Errorf("too many block locator hashes for message [max %d]", MaxBlockLocatorsPerMsg)
	}
	m.BlockLocatorHashes = append(m.BlockLocatorHashes, hash)
	return nil
}

func (m *MsgGetHeaders) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	if err := readElement(r, &bs, &m.ProtocolVersion); err != nil {
		return err
	}
	count, err := ReadVarInt(r, &bs)
	if err != nil {
		return err
	}
	if count > MaxBlockLocatorsPerMsg {
		return fmt.Errorf("too many block locator hashes for message [count %d, max %d]", count, MaxBlockLocatorsPerMsg)
	}
	locatorHashes := make([]chainhash.Hash, count)
	m.BlockLocatorHashes = make([]*chainhash.Hash, 0, count)
	for i := range locatorHashes {
		hash := &locatorHashes[i]
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return err
		}
		m.BlockLocatorHashes = append(m.BlockLocatorHashes, hash)
	}
	_, err = io.ReadFull(r, m.HashStop[:])
	return err
}

func (m *MsgGetHeaders) BtcEncode(w io.Writer, pver uint32) error {
	count := len(m.BlockLocatorHashes)
	if count > MaxBlockLocatorsPerMsg {
		return fmt.Errorf("too many block locator hashes for message [count %d, max %d]", count, MaxBlockLocatorsPerMsg)
	}
	var bs binarySerializer
	if err := writeElement(w, &bs, m.ProtocolVersion); err != nil {
		return err
	}
	if err := WriteVarInt(w, &bs, uint64(count)); err != nil {
		return err
	}
	for _, hash := range m.BlockLocatorHashes {
		if _, err := w.Write(hash[:]); err != nil {
			return err
		}
	}
	_, err := w.Write(m.HashStop[:])
	return err
}

func (m *MsgGetHeaders) Command() string { return CmdGetHeaders }

func (m *MsgGetHeaders) MaxPayloadLength(pver uint32) uint32 {
	return 4 + uint32(VarIntSerializeSize(MaxBlockLocatorsPerMsg)) +
		(MaxBlockLocatorsPerMsg * chainhash.HashSize) + chainhash.HashSize
}

// NewMsgGetHeaders returns an empty getheaders message at ProtocolVersion;
// callers add the locator with AddBlockLocatorHash and set HashStop (the
// zero hash requests as many as the peer will send).
func NewMsgGetHeaders() *MsgGetHeaders {
	return &MsgGetHeaders{
		ProtocolVersion:    ProtocolVersion,
		BlockLocatorHashes: make([]*chainhash.Hash, 0, MaxBlockLocatorsPerMsg),
	}
}
