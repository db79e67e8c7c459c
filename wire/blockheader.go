// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MaxBlockHeaderPayload is the number of bytes a serialized block header
// occupies: version (4) + prev hash (32) + merkle root (32) + timestamp
// (4) + bits (4) + nonce (4), plus one byte for the (always zero) embedded
// transaction count used only when headers are serialized standalone.
const MaxBlockHeaderPayload = 16 + (chainhash.HashSize * 2) + 1

// BlockHeader is the reference serialization of a Bitcoin block header
// (§3). Kyoto never materializes full blocks except transiently during a
// match (§4.6), but headers are retained for the process lifetime.
type BlockHeader struct {
	Version    int32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  time.Time
	Bits       uint32
	Nonce      uint32
}

// BlockHash returns the double-SHA256 hash of the serialized header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	var buf bytes.Buffer
	_ = writeBlockHeader(&buf, &binarySerializer{}, h)
	return chainhash.DoubleHashH(buf.Bytes())
}

func readBlockHeader(r io.Reader, buf *binarySerializer, h *BlockHeader) error {
	if err := readElement(r, buf, &h.Version); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, h.PrevBlock[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, h.MerkleRoot[:]); err != nil {
		return err
	}
	secs, err := buf.Uint32(r, littleEndian)
	if err != nil {
		return err
	}
	h.Timestamp = time.Unix(int64(secs), 0)
	if err := readElement(r, buf, &h.Bits); err != nil {
		return err
	}
	return readElement(r, buf, &h.Nonce)
}

func writeBlockHeader(w io.Writer, buf *binarySerializer, h *BlockHeader) error {
	if err := writeElement(w, buf, h.Version); err != nil {
		return err
	}
	if _, err := w.Write(h.PrevBlock[:]); err != nil {
		return err
	}
	if _, err := w.Write(h.MerkleRoot[:]); err != nil {
		return err
	}
	if err := buf.PutUint32(w, littleEndian, uint32(h.Timestamp.Unix())); err != nil {
		return err
	}
	if err := writeElement(w, buf, h.Bits); err != nil {
		return err
	}
	return writeElement(w, buf, h.Nonce)
}

// BtcDecode reads a BlockHeader with its trailing transaction-count varint
// (always zero on the wire for a standalone header) and discards the
// count.
func (h *BlockHeader) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	if err := readBlockHeader(r, &bs, h); err != nil {
		return err
	}
	_, err := ReadVarInt(r, &bs)
	if err == io.EOF {
		// headers message strips the trailing count itself.
		return nil
	}
	return err
}

// BtcEncode writes a BlockHeader followed by a zero transaction count.
func (h *BlockHeader) BtcEncode(w io.Writer, pver uint32) error {
	var bs binarySerializer
	if err := writeBlockHeader(w, &bs, h); err != nil {
		return err
	}
	return WriteVarInt(w, &bs, 0)
}
