// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peerstore defines the pluggable persistence boundary for peer
// records (§6) and a goleveldb-backed reference Store. node.Node opens a
// LevelDBStore at its configured path and loads the records once at
// startup; it never calls Flush, so nothing is written back at shutdown
// or on a timer. Kyoto itself carries no owned on-disk state (§1
// Non-goals).
package peerstore

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var log btclog.Logger = btclog.Disabled

// UseLogger lets the embedding host supply a concrete logging backend.
func UseLogger(l btclog.Logger) { log = l }

// Record is the external representation of a peer record (§3 Peer
// record), independent of the in-memory addrmgr.KnownAddress shape so
// the store interface doesn't leak internal bucket placement details.
type Record struct {
	IP          net.IP
	Port        uint16
	Services    uint64
	LastSeen    time.Time
	LastTried   time.Time
	SourceIP    net.IP
	SourcePort  uint16
	Attempts    int
	Tried       bool
	V2Capable   bool
}

// Store is the persistence boundary: Load returns the stored records and
// Flush replaces them with a full snapshot. node.Node calls Load at
// startup and does not call Flush.
type Store interface {
	Load() (RecordIterator, error)
	Flush(RecordIterator) error
	Close() error
}

// RecordIterator yields Records one at a time; Next reports whether a
// further call to Record() will succeed.
type RecordIterator interface {
	Next() bool
	Record() Record
	Err() error
}

// sliceIterator adapts an in-memory []Record to RecordIterator, used by
// Flush callers that already have a materialized snapshot.
type sliceIterator struct {
	records []Record
	idx     int
}

// NewSliceIterator wraps records for use with Store.Flush.
func NewSliceIterator(records []Record) RecordIterator {
	return &sliceIterator{records: records, idx: -1}
}

func (s *sliceIterator) Next() bool {
	s.idx++
	return s.idx < len(s.records)
}

func (s *sliceIterator) Record() Record {
	return s.records[s.idx]
}

func (s *sliceIterator) Err() error { return nil }

// LevelDBStore is the reference Store implementation, backed by
// goleveldb. It is not required: any embedding host may supply its own
// Store and skip this package entirely.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDBStore opens (creating if absent) a LevelDB-backed peer
// store at path.
func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("peerstore: opening %s: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Close() error { return s.db.Close() }

var recordPrefix = []byte("peer/")

func recordKeyFor(ip net.IP, port uint16) []byte {
	key := make([]byte, 0, len(recordPrefix)+net.IPv6len+2)
	key = append(key, recordPrefix...)
	key = append(key, ip.To16()...)
	key = binary.BigEndian.AppendUint16(key, port)
	return key
}

// Load returns an iterator over every stored record.
func (s *LevelDBStore) Load() (RecordIterator, error) {
	it := s.db.NewIterator(util.BytesPrefix(recordPrefix), nil)
	return &levelDBIterator{it: it}, nil
}

type levelDBIterator struct {
	it  iterator.Iterator
	cur Record
	err error
}

func (l *levelDBIterator) Next() bool {
	if !l.it.Next() {
		l.err = l.it.Error()
		return false
	}
	rec, err := decodeRecord(l.it.Value())
	if err != nil {
		l.err = err
		return false
	}
	l.cur = rec
	return true
}

func (l *levelDBIterator) Record() Record { return l.cur }
func (l *levelDBIterator) Err() error     { return l.err }

// Flush writes every record yielded by it, replacing the prior contents
// of the store entirely (§6: flush is a full snapshot, not a diff).
func (s *LevelDBStore) Flush(it RecordIterator) error {
	batch := new(leveldb.Batch)

	existing := s.db.NewIterator(util.BytesPrefix(recordPrefix), nil)
	for existing.Next() {
		batch.Delete(append([]byte(nil), existing.Key()...))
	}
	existing.Release()

	for it.Next() {
		rec := it.Record()
		batch.Put(recordKeyFor(rec.IP, rec.Port), encodeRecord(rec))
	}
	if it.Err() != nil {
		return fmt.Errorf("peerstore: flush source iterator: %w", it.Err())
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("peerstore: writing flush batch: %w", err)
	}
	log.Debugf("peerstore: flushed peer records")
	return nil
}

// encodeRecord/decodeRecord use a small fixed-width layout rather than a
// general-purpose serialization library: the record shape is simple,
// stable, and internal to this store, so gob/json would only add a
// dependency with no benefit over a direct binary.Write-style layout.
func encodeRecord(r Record) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, r.IP.To16()...)
	buf = binary.BigEndian.AppendUint16(buf, r.Port)
	buf = binary.BigEndian.AppendUint64(buf, r.Services)
	buf = binary.BigEndian.AppendUint64(buf, uint64(r.LastSeen.Unix()))
	buf = binary.BigEndian.AppendUint64(buf, uint64(r.LastTried.Unix()))
	srcIP := r.SourceIP
	if srcIP == nil {
		srcIP = net.IPv6zero
	}
	buf = append(buf, srcIP.To16()...)
	buf = binary.BigEndian.AppendUint16(buf, r.SourcePort)
	buf = binary.BigEndian.AppendUint32(buf, uint32(r.Attempts))
	var flags byte
	if r.Tried {
		flags |= 1
	}
	if r.V2Capable {
		flags |= 2
	}
	buf = append(buf, flags)
	return buf
}

func decodeRecord(b []byte) (Record, error) {
	const fixedLen = 16 + 2 + 8 + 8 + 8 + 16 + 2 + 4 + 1
	if len(b) < fixedLen {
		return Record{}, fmt.Errorf("peerstore: short record (%d bytes)", len(b))
	}
	r := Record{}
	r.IP = net.IP(append([]byte(nil), b[0:16]...))
	b = b[16:]
	r.Port = binary.BigEndian.Uint16(b)
	b = b[2:]
	r.Services = binary.BigEndian.Uint64(b)
	b = b[8:]
	r.LastSeen = time.Unix(int64(binary.BigEndian.Uint64(b)), 0)
	b = b[8:]
	r.LastTried = time.Unix(int64(binary.BigEndian.Uint64(b)), 0)
	b = b[8:]
	r.SourceIP = net.IP(append([]byte(nil), b[0:16]...))
	b = b[16:]
	r.SourcePort = binary.BigEndian.Uint16(b)
	b = b[2:]
	r.Attempts = int(binary.BigEndian.Uint32(b))
	b = b[4:]
	flags := b[0]
	r.Tried = flags&1 != 0
	r.V2Capable = flags&2 != 0
	return r, nil
}
