// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	kyotochaincfg "github.com/kyoto-spv/kyoto/chaincfg"
	"github.com/kyoto-spv/kyoto/kyotoerr"
	"github.com/kyoto-spv/kyoto/watchlist"
	"github.com/kyoto-spv/kyoto/wire"
)

var log btclog.Logger = btclog.Disabled

// UseLogger lets the embedding host supply a concrete logging backend.
func UseLogger(l btclog.Logger) { log = l }

// MaxBlocksInFlight bounds global concurrent block downloads (§4.6,
// §9 open question (c)): conservative default, not currently exposed as
// a Config field per the open-question decision recorded in DESIGN.md.
const MaxBlocksInFlight = 4

// CFHeadersBatchSize / CFiltersBatchSize bound how many heights a single
// cfheaders/cfilter request spans: 2000 per cfheaders request, 500 per
// cfilter batch (§4.6 "default 500 at a time").
const (
	CFHeadersBatchSize = 2000
	CFiltersBatchSize  = 500
)

// Requester is the engine's outbound seam to the connection supervisor:
// the actor never touches a socket directly, only issues typed requests
// against a peer id (§9 Actor-style chain engine).
type Requester interface {
	RequestHeaders(peerID string, locator []*chainhash.Hash, hashStop chainhash.Hash)
	RequestCFHeaders(peerID string, startHeight uint32, stopHash chainhash.Hash)
	RequestCFilters(peerID string, startHeight uint32, stopHash chainhash.Hash)
	RequestBlock(peerID string, hash chainhash.Hash)
	Ban(peerID string, reason DisconnectReason)
	// PickDataPeer returns a data-capable peer id, excluding any ids in
	// exclude, or "" if none is available.
	PickDataPeer(exclude ...string) string
}

// Engine is the header/filter/block chain actor. All mutating access to
// its graph happens inside run's single goroutine; every other method is
// a channel send into that loop.
type Engine struct {
	params    *kyotochaincfg.Params
	requester Requester
	watchlist *watchlist.Watchlist

	inbox  chan func(*engineState)
	events chan Event
	quit   chan struct{}
}

// engineState is the mutable graph, touched only from inside run.
type engineState struct {
	nodes map[chainhash.Hash]*headerNode
	tip   chainhash.Hash

	headersPeer string // peer currently supplying headers, preferred distinct from cfheaders peer

	filterCursor       int32 // highest height with a validated filter
	filterHeaderCursor int32 // highest height with a validated filter header
	filterHeaders      map[int32]chainhash.Hash

	cfheaderAnswers map[int32]map[chainhash.Hash][]string

	blocksInFlight map[chainhash.Hash]string // hash -> peer id
}

// New creates an Engine rooted at params.AnchorCheckpoint. Call Run in a
// goroutine to start the actor loop, and Events to receive progress.
func New(params *kyotochaincfg.Params, requester Requester, wl *watchlist.Watchlist) *Engine {
	return &Engine{
		params:    params,
		requester: requester,
		watchlist: wl,
		inbox:     make(chan func(*engineState), 256),
		events:    make(chan Event, 256),
		quit:      make(chan struct{}),
	}
}

// Events returns the channel the node facade relays onto the client.
func (e *Engine) Events() <-chan Event { return e.events }

// SetRequester wires the engine's outbound seam after construction, for
// callers whose Requester implementation itself depends on the engine
// (the connection supervisor is constructed with a reference to the
// engine it reports into). Must be called before Run.
func (e *Engine) SetRequester(r Requester) { e.requester = r }

// Run is the actor loop: every mutation to the header/filter graph is
// processed here, one at a time, eliminating read-write races on the
// graph without broad locking (§5, §9).
func (e *Engine) Run() {
	st := &engineState{
		nodes:           make(map[chainhash.Hash]*headerNode),
		filterHeaders:   make(map[int32]chainhash.Hash),
		cfheaderAnswers: make(map[int32]map[chainhash.Hash][]string),
		blocksInFlight:  make(map[chainhash.Hash]string),
	}
	anchor := &headerNode{
		hash:      e.params.AnchorCheckpoint.Hash,
		height:    e.params.AnchorCheckpoint.Height,
		parent:    chainhash.Hash{},
		chainwork: big.NewInt(0),
	}
	st.nodes[anchor.hash] = anchor
	st.tip = anchor.hash
	st.filterCursor = anchor.height
	st.filterHeaderCursor = anchor.height

	for {
		select {
		case fn := <-e.inbox:
			fn(st)
		case <-e.quit:
			close(e.events)
			return
		}
	}
}

// Stop ends the actor loop. Safe to call once.
func (e *Engine) Stop() { close(e.quit) }

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	case <-e.quit:
	}
}

func (e *Engine) do(fn func(*engineState)) {
	select {
	case e.inbox <- fn:
	case <-e.quit:
	}
}

// PeerReady notifies the engine a data peer completed its handshake and
// should be used to drive header sync (§4.6 "On first Ready of a data
// peer").
func (e *Engine) PeerReady(peerID string) {
	e.do(func(st *engineState) {
		if st.headersPeer == "" {
			st.headersPeer = peerID
		}
		e.requestHeaders(st, peerID)
	})
}

// locatorFor builds a block locator from the current tip: the tip
// itself, then exponentially sparser ancestors, per §4.6 Header sync.
func (e *Engine) locatorFor(st *engineState) []*chainhash.Hash {
	var locator []*chainhash.Hash
	cur := st.nodes[st.tip]
	step := 1
	for cur != nil {
		h := cur.hash
		locator = append(locator, &h)
		if cur.parent == noHeader {
			break
		}
		for i := 0; i < step; i++ {
			parent := e.findByID(st, cur.parent)
			if parent == nil {
				return locator
			}
			cur = parent
			if cur.parent == noHeader {
				break
			}
		}
		if len(locator) > 10 {
			step *= 2
		}
	}
	return locator
}

// findByID looks up a node by its block hash (§9: ids, not owning
// pointers, link the graph).
func (e *Engine) findByID(st *engineState, id headerID) *headerNode {
	return st.nodes[id]
}

func (e *Engine) requestHeaders(st *engineState, peerID string) {
	locator := e.locatorFor(st)
	e.requester.RequestHeaders(peerID, locator, chainhash.Hash{})
}

// HandleHeaders processes a headers message from peerID (§4.6 Header
// sync).
func (e *Engine) HandleHeaders(peerID string, headers []*wire.BlockHeader) {
	e.do(func(st *engineState) {
		if len(headers) == 0 {
			return
		}
		prevTip := st.nodes[st.tip]
		fromHeight := prevTip.height + 1

		var lastAccepted *headerNode
		for _, h := range headers {
			node, err := e.validateAndInsert(st, h)
			if err != nil {
				log.Warnf("chain: rejecting header from %s: %v", peerID, err)
				e.requester.Ban(peerID, DisconnectConsensusFork)
				return
			}
			if node != nil {
				lastAccepted = node
			}
		}
		if lastAccepted == nil {
			return
		}

		e.maybeReorg(st, lastAccepted)
		e.emit(HeadersExtended{From: fromHeight, To: lastAccepted.height})
		e.emit(TipUpdated{Height: lastAccepted.height, Hash: lastAccepted.hash})

		if len(headers) == wire.MaxBlockHeadersPerMsg {
			e.requestHeaders(st, peerID)
		} else {
			e.advanceFilterSync(st)
		}
	})
}

// validateAndInsert checks a single header against §4.6's rules and, if
// valid, inserts it into the graph. Returns (nil, nil) for a header
// that's already known.
func (e *Engine) validateAndInsert(st *engineState, h *wire.BlockHeader) (*headerNode, error) {
	hash := h.BlockHash()
	if _, exists := st.nodes[hash]; exists {
		return nil, nil
	}
	parent, ok := st.nodes[h.PrevBlock]
	if !ok {
		return nil, kyotoerr.Consensusf("header %s: prev-hash %s not known", hash, h.PrevBlock)
	}

	hashBig := new(big.Int).SetBytes(reverseBytes(hash[:]))
	if err := validatePoW(hashBig, h.Bits, e.params); err != nil {
		return nil, fmt.Errorf("header %s: %w", hash, err)
	}

	height := parent.height + 1
	firstTimestamp := parent.header.Timestamp.Unix()
	if !e.params.PoWNoRetargeting {
		blocksPerRetarget := e.params.BlocksPerRetarget()
		if height%blocksPerRetarget == 0 {
			// The retarget window runs from the block BlocksPerRetarget
			// back from parent through parent itself, not just parent's
			// own timestamp (§4.6).
			if first := e.ancestorAtHeight(st, parent, height-blocksPerRetarget); first != nil {
				firstTimestamp = first.header.Timestamp.Unix()
			}
		}
	}
	// The anchor checkpoint carries no header, so the first header after
	// it has no prior bits to be bounded against.
	if parent.header.Bits != 0 {
		if err := validateDifficultyBound(e.params, height, h.Bits, parent.header.Bits, firstTimestamp, h.Timestamp.Unix()); err != nil {
			return nil, err
		}
	}

	work := new(big.Int).Add(parent.chainwork, workFromBits(h.Bits))
	node := &headerNode{
		header:    *h,
		hash:      hash,
		height:    height,
		parent:    parent.hash,
		chainwork: work,
	}
	st.nodes[hash] = node
	return node, nil
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// maybeReorg switches the best tip to candidate if it has strictly
// greater chainwork, emitting Reorg and rolling back filter/block state
// for the disconnected segment (§4.6).
func (e *Engine) maybeReorg(st *engineState, candidate *headerNode) {
	current := st.nodes[st.tip]
	if candidate.chainwork.Cmp(current.chainwork) <= 0 {
		return
	}
	if candidate.hash == st.tip {
		return
	}

	ancestorHeight := e.commonAncestorHeight(st, current, candidate)
	if ancestorHeight == current.height {
		// candidate extends the current tip: nothing is disconnected.
		st.tip = candidate.hash
		return
	}
	if ancestorHeight < st.filterHeaderCursor {
		for h := range st.filterHeaders {
			if h > ancestorHeight {
				delete(st.filterHeaders, h)
			}
		}
		st.filterHeaderCursor = ancestorHeight
	}
	if ancestorHeight < st.filterCursor {
		st.filterCursor = ancestorHeight
	}

	fromHeight := current.height
	st.tip = candidate.hash
	e.emit(Reorg{FromHeight: ancestorHeight, ToHeight: candidate.height})
	_ = fromHeight
}

// commonAncestorHeight walks both branches back through their parent ids
// (looked up in the hash-keyed node map) until they meet.
func (e *Engine) commonAncestorHeight(st *engineState, a, b *headerNode) int32 {
	ah, bh := a, b
	for ah.height > bh.height {
		ah = e.findByID(st, ah.parent)
	}
	for bh.height > ah.height {
		bh = e.findByID(st, bh.parent)
	}
	for ah.hash != bh.hash {
		ah = e.findByID(st, ah.parent)
		bh = e.findByID(st, bh.parent)
	}
	return ah.height
}

// advanceFilterSync requests the next batch of filter headers from a
// data peer distinct from the headers-supplying peer when possible
// (§4.6 Filter-header sync).
func (e *Engine) advanceFilterSync(st *engineState) {
	tip := st.nodes[st.tip]
	if st.filterHeaderCursor >= tip.height {
		return
	}
	stopHeight := st.filterHeaderCursor + CFHeadersBatchSize
	if stopHeight > tip.height {
		stopHeight = tip.height
	}
	stopNode := e.ancestorAtHeight(st, tip, stopHeight)
	if stopNode == nil {
		return
	}

	peer := e.requester.PickDataPeer(st.headersPeer)
	if peer == "" {
		peer = e.requester.PickDataPeer()
	}
	if peer == "" {
		return
	}
	e.requester.RequestCFHeaders(peer, uint32(st.filterHeaderCursor+1), stopNode.hash)
}

func (e *Engine) ancestorAtHeight(st *engineState, from *headerNode, height int32) *headerNode {
	cur := from
	for cur != nil && cur.height > height {
		cur = e.findByID(st, cur.parent)
	}
	if cur != nil && cur.height == height {
		return cur
	}
	return nil
}

// HandleCFHeaders processes a cfheaders response (§4.6). It recomputes
// the filter-header chain locally from PrevFilterHeader and
// FilterHashes, rejects a batch whose PrevFilterHeader contradicts an
// already-validated filter header, and verifies agreement across peers
// on the recomputed filter header before advancing the cursor — here it
// records the peer's claim for the batch's final height and, once seen,
// checks that a previously recorded claim (if any) at that height
// agrees.
func (e *Engine) HandleCFHeaders(peerID string, msg *wire.MsgCFHeaders, stopHeight int32) {
	e.do(func(st *engineState) {
		startHeight := stopHeight - int32(len(msg.FilterHashes)) + 1
		if prev, ok := st.filterHeaders[startHeight-1]; ok && prev != msg.PrevFilterHeader {
			e.requester.Ban(peerID, DisconnectConsensusFork)
			e.emit(Disconnect{PeerAddr: peerID, Reason: DisconnectConsensusFork})
			return
		}
		folded := foldFilterHeaders(msg.PrevFilterHeader, msg.FilterHashes)
		filterHeader := folded[len(folded)-1]

		claims := st.cfheaderAnswers[stopHeight]
		if claims == nil {
			claims = make(map[chainhash.Hash][]string)
			st.cfheaderAnswers[stopHeight] = claims
		}
		claims[filterHeader] = append(claims[filterHeader], peerID)

		if len(claims) > 1 {
			for hash, peers := range claims {
				if hash != filterHeader {
					for _, p := range append(peers, peerID) {
						e.requester.Ban(p, DisconnectConsensusFork)
						e.emit(Disconnect{PeerAddr: p, Reason: DisconnectConsensusFork})
					}
				}
			}
			delete(st.cfheaderAnswers, stopHeight)
			return
		}
		if len(claims[filterHeader]) < 2 {
			// Wait for a second peer's agreement before trusting it.
			return
		}

		for i, fh := range folded {
			st.filterHeaders[startHeight+int32(i)] = fh
		}
		st.filterHeaderCursor = stopHeight
		delete(st.cfheaderAnswers, stopHeight)
		e.advanceFilterSync(st)
		e.advanceFilterFetch(st)
	})
}

func (e *Engine) advanceFilterFetch(st *engineState) {
	if st.filterCursor >= st.filterHeaderCursor {
		return
	}
	stop := st.filterCursor + CFiltersBatchSize
	if stop > st.filterHeaderCursor {
		stop = st.filterHeaderCursor
	}
	tip := st.nodes[st.tip]
	stopNode := e.ancestorAtHeight(st, tip, stop)
	if stopNode == nil {
		return
	}
	peer := e.requester.PickDataPeer()
	if peer == "" {
		return
	}
	e.requester.RequestCFilters(peer, uint32(st.filterCursor+1), stopNode.hash)
}

// HandleCFilter processes a single filter response, chaining it onto
// the previously validated filter header before trusting it (§4.6
// "Each filter is verified against its previously validated
// filter-header"), matching it against the watchlist, and scheduling a
// block fetch on match.
func (e *Engine) HandleCFilter(peerID string, msg *wire.MsgCFilter, height int32) {
	e.do(func(st *engineState) {
		f, err := decodeFilter(msg.BlockHash, msg.Data)
		if err != nil {
			log.Warnf("chain: %v", err)
			e.requester.Ban(peerID, DisconnectConsensusFork)
			return
		}

		prevHeader, ok := st.filterHeaders[height-1]
		if !ok {
			log.Warnf("chain: cfilter at height %d from %s: no validated prior filter header", height, peerID)
			return
		}
		computed, err := filterHeaderFor(f, prevHeader)
		if err != nil {
			log.Warnf("chain: %v", err)
			e.requester.Ban(peerID, DisconnectConsensusFork)
			return
		}
		want, ok := st.filterHeaders[height]
		if !ok || computed != want {
			log.Warnf("chain: cfilter at height %d from %s: filter header mismatch", height, peerID)
			e.requester.Ban(peerID, DisconnectConsensusFork)
			return
		}

		candidates := e.watchlist.Snapshot()
		matched, err := filterMatchesAny(f, msg.BlockHash, candidates)
		if err != nil {
			log.Warnf("chain: %v", err)
			return
		}

		st.filterCursor = height
		e.emit(FilterProgress{Height: height})

		if matched && len(st.blocksInFlight) < MaxBlocksInFlight {
			fetchPeer := e.requester.PickDataPeer()
			if fetchPeer != "" {
				st.blocksInFlight[msg.BlockHash] = fetchPeer
				e.requester.RequestBlock(fetchPeer, msg.BlockHash)
			}
		}
		e.advanceFilterFetch(st)
	})
}

// HandleBlock processes a fetched block, verifying it against the
// requested height before emitting matched transactions (§4.6 Block
// fetch).
func (e *Engine) HandleBlock(peerID string, blk *wire.MsgBlock) {
	e.do(func(st *engineState) {
		hash := blk.BlockHash()
		if _, inFlight := st.blocksInFlight[hash]; !inFlight {
			return
		}
		delete(st.blocksInFlight, hash)

		node, ok := st.nodes[hash]
		if !ok {
			e.requester.Ban(peerID, DisconnectProtocolViolation)
			return
		}
		if !blk.CheckMerkleRoot() {
			e.requester.Ban(peerID, DisconnectConsensusFork)
			return
		}

		candidates := e.watchlist.Snapshot()
		var indices []int
		for i, tx := range blk.Transactions {
			for _, out := range tx.TxOut {
				if matchesAny(candidates, out.PkScript) {
					indices = append(indices, i)
					break
				}
			}
		}
		if len(indices) > 0 {
			e.emit(BlockMatched{Height: node.height, Hash: hash, TxIndices: indices})
		}
	})
}

func matchesAny(candidates [][]byte, script []byte) bool {
	for _, c := range candidates {
		if string(c) == string(script) {
			return true
		}
	}
	return false
}

// Rescan rewinds the filter cursor (never the header cursor) to
// earliestHeight so filters are re-fetched and re-matched from there,
// per §4.6 Rescan and §8 scenario 2.
func (e *Engine) Rescan(earliestHeight int32) {
	e.do(func(st *engineState) {
		if earliestHeight >= st.filterCursor {
			return
		}
		st.filterCursor = earliestHeight
		e.advanceFilterFetch(st)
	})
}

// PeerGone notifies the engine a session ended, so any in-flight
// requests attributed to it are considered lost and retried elsewhere.
func (e *Engine) PeerGone(peerID string, reason DisconnectReason) {
	e.do(func(st *engineState) {
		if st.headersPeer == peerID {
			st.headersPeer = ""
		}
		for hash, p := range st.blocksInFlight {
			if p == peerID {
				delete(st.blocksInFlight, hash)
			}
		}
		e.emit(Disconnect{PeerAddr: peerID, Reason: reason})
	})
}
