// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// OutPoint identifies a spent output: the transaction containing it and its
// output index within that transaction.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

func readOutPoint(r io.Reader, buf *binarySerializer, op *OutPoint) error {
	if _, err := io.ReadFull(r, op.Hash[:]); err != nil {
		return err
	}
	idx, err := buf.Uint32(r, littleEndian)
	if err != nil {
		return err
	}
	op.Index = idx
	return nil
}

func writeOutPoint(w io.Writer, buf *binarySerializer, op *OutPoint) error {
	if _, err := w.Write(op.Hash[:]); err != nil {
		return err
	}
	return buf.PutUint32(w, littleEndian, op.Index)
}

// InvType represents the type of item referenced by an InvVect.
type InvType uint32

const (
	InvTypeError InvType = 0
	InvTypeTx    InvType = 1
	InvTypeBlock InvType = 2
	// InvTypeFilteredBlock follows BIP0037; Kyoto never requests it (it
	// fetches whole blocks, §4.6) but must still parse it out of a peer's
	// unsolicited inv. The witness types follow BIP0144: the block fetcher
	// requests InvTypeWitnessBlock and broadcast announces InvTypeWitnessTx.
	InvTypeFilteredBlock InvType = 3
	InvTypeWitnessBlock  InvType = InvTypeBlock | 1<<30
	InvTypeWitnessTx     InvType = InvTypeTx | 1<<30
)

// InvVect identifies an object (transaction or block) another peer may
// wish to share, or that Kyoto requests via getdata.
type InvVect struct {
	Type InvType
	Hash chainhash.Hash
}

func readInvVect(r io.Reader, buf *binarySerializer, iv *InvVect) error {
	t, err := buf.Uint32(r, littleEndian)
	if err != nil {
		return err
	}
	iv.Type = InvType(t)
	_, err = io.ReadFull(r, iv.Hash[:])
	return err
}

func writeInvVect(w io.Writer, buf *binarySerializer, iv *InvVect) error {
	if err := buf.PutUint32(w, littleEndian, uint32(iv.Type)); err != nil {
		return err
	}
	_, err := w.Write(iv.Hash[:])
	return err
}
