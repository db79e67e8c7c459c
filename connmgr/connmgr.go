// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package connmgr supervises peer connections: it maintains a target
// connection count, guarantees at least one filter-capable data peer,
// classifies peers as data or gossip, resolves DNS seeds and consults
// the address book when the tables are otherwise empty, dials directly
// or through a SOCKS5 proxy, and applies exponential backoff and ban
// policy to misbehaving addresses (§4.5).
package connmgr

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/go-socks/socks"
	"github.com/decred/dcrd/lru"
	"github.com/kyoto-spv/kyoto/addrmgr"
	"github.com/kyoto-spv/kyoto/chain"
	"github.com/kyoto-spv/kyoto/chaincfg"
	"github.com/kyoto-spv/kyoto/peer"
	"github.com/kyoto-spv/kyoto/wire"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var log btclog.Logger = btclog.Disabled

// UseLogger lets the embedding host supply a concrete logging backend.
func UseLogger(l btclog.Logger) { log = l }

const (
	// maxBackoff bounds the exponential reconnect delay applied to a
	// misbehaving or unreachable address (§4.5).
	maxBackoff = time.Hour

	// baseBackoff is the delay after the first failed attempt.
	baseBackoff = time.Second

	// recentRejectCacheSize bounds the banned-address LRU.
	recentRejectCacheSize = 2048
)

// Config controls the supervisor's target connection shape.
type Config struct {
	Params            *chaincfg.Params
	TargetConnections int
	TargetDataPeers   int
	ConfiguredPeers   []string // host:port, dialed before any addrmgr candidate (§4.4 step 1)
	ProxyAddr         string   // empty disables proxying
	ProxyUsername     string
	ProxyPassword     string
	Timeouts          peer.Timeouts
	Nonce             uint64
	LastBlock         int32
}

// peerEntry tracks one live or recently-live connection, plus the
// bookkeeping needed to translate streamed cfheaders/cfilter responses
// back into the absolute heights the engine expects (the wire messages
// themselves only carry a stop hash and an implicit ordering).
type peerEntry struct {
	session      *peer.Session
	isDataPeer   bool
	seeded       bool // dialed from ConfiguredPeers or a DNS seed; never a broadcast gossip target (§4.7)
	addr         string
	reportedAddr *wire.NetAddress

	pendingCFHeadersStart int32
	nextCFilterHeight     int32
}

// Supervisor owns the address book and all live peer sessions. The
// address book is consulted only through the supervisor's own methods
// (§5: "the address book is held by the supervisor and consulted via a
// message"), keeping addrmgr single-threaded in practice even though it
// has its own internal lock.
type Supervisor struct {
	cfg     Config
	engine  *chain.Engine
	addrMgr *addrmgr.AddrManager

	mtx         sync.Mutex
	peers       map[string]*peerEntry
	backoff     map[string]time.Duration
	nextAttempt map[string]time.Time
	banned      *lru.Cache[string]
	broadcasts  *broadcastTable

	// configuredQueue holds ConfiguredPeers not yet dialed this session
	// (§4.4 step 1); seededAddrs is the full set of addresses sourced
	// from ConfiguredPeers or a DNS seed, consulted at dial time to mark
	// a peerEntry as ineligible for broadcast (§4.7: "never a
	// configured/seeded peer").
	configuredQueue []string
	seededAddrs     map[string]bool

	quit chan struct{}
	wg   sync.WaitGroup
}

// New builds a supervisor around engine, which receives all parsed
// protocol messages, and am, the address book consulted for dial
// candidates.
func New(cfg Config, engine *chain.Engine, am *addrmgr.AddrManager) *Supervisor {
	return &Supervisor{
		cfg:             cfg,
		engine:          engine,
		addrMgr:         am,
		peers:           make(map[string]*peerEntry),
		backoff:         make(map[string]time.Duration),
		nextAttempt:     make(map[string]time.Time),
		banned:          lru.NewCache[string](recentRejectCacheSize),
		broadcasts:      newBroadcastTable(),
		configuredQueue: append([]string(nil), cfg.ConfiguredPeers...),
		seededAddrs:     make(map[string]bool),
		quit:            make(chan struct{}),
	}
}

// Run drives the connection loop until Stop is called, seeding the
// address book from DNS seeds when both its tables are empty (§4.4 step
// 4, §6) and otherwise maintaining the target connection count.
func (s *Supervisor) Run() {
	if s.addrMgr.NumAddresses() == 0 {
		s.seedFromDNS()
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	s.maintainConnections()
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			s.maintainConnections()
		}
	}
}

// Stop signals the loop to exit and closes every live session, flushing
// each with a one-second cap (§5 Cancellation).
func (s *Supervisor) Stop() {
	close(s.quit)
	s.mtx.Lock()
	entries := make([]*peerEntry, 0, len(s.peers))
	for _, e := range s.peers {
		entries = append(entries, e)
	}
	s.mtx.Unlock()

	for _, e := range entries {
		e.session.Shutdown(time.Second)
	}
	s.wg.Wait()
}

func (s *Supervisor) seedFromDNS() {
	for _, seed := range s.cfg.Params.DNSSeeds {
		ips, err := net.LookupIP(seed.Host)
		if err != nil {
			log.Debugf("connmgr: DNS seed %s failed: %v", seed.Host, err)
			continue
		}
		for _, ip := range ips {
			na := &wire.NetAddress{
				IP:        ip,
				Port:      defaultPort(s.cfg.Params),
				Services:  wire.SFNodeNetwork | wire.SFNodeCF,
				Timestamp: time.Now(),
			}
			s.addrMgr.AddAddress(na, na)

			key := net.JoinHostPort(na.IP.String(), fmt.Sprintf("%d", na.Port))
			s.mtx.Lock()
			s.seededAddrs[key] = true
			s.mtx.Unlock()
		}
	}
}

func defaultPort(p *chaincfg.Params) uint16 {
	var port uint16
	_, err := fmt.Sscanf(p.DefaultPort, "%d", &port)
	if err != nil {
		return 8333
	}
	return port
}

func (s *Supervisor) maintainConnections() {
	s.mtx.Lock()
	total := len(s.peers)
	dataPeers := 0
	for _, e := range s.peers {
		if e.isDataPeer {
			dataPeers++
		}
	}
	s.mtx.Unlock()

	needData := dataPeers < s.cfg.TargetDataPeers
	for total < s.cfg.TargetConnections || needData {
		wantData := needData
		if total >= s.cfg.TargetConnections && !needData {
			break
		}
		na := s.nextConfiguredPeer()
		if na == nil {
			na = s.pickCandidate()
		}
		if na == nil {
			break
		}
		s.dialOne(na, wantData)
		total++
		if wantData {
			needData = false
		}
		if total >= s.cfg.TargetConnections && dataPeers+1 >= s.cfg.TargetDataPeers {
			break
		}
	}
}

// nextConfiguredPeer pops and resolves the next not-yet-dialed
// configured peer, if any remain (§4.4 step 1: "If configured peers
// remain unused in this session, use one").
func (s *Supervisor) nextConfiguredPeer() *wire.NetAddress {
	s.mtx.Lock()
	if len(s.configuredQueue) == 0 {
		s.mtx.Unlock()
		return nil
	}
	addr := s.configuredQueue[0]
	s.configuredQueue = s.configuredQueue[1:]
	s.mtx.Unlock()

	na, err := resolveAddr(addr, s.cfg.Params)
	if err != nil {
		log.Warnf("connmgr: configured peer %s: %v", addr, err)
		return s.nextConfiguredPeer()
	}

	key := net.JoinHostPort(na.IP.String(), fmt.Sprintf("%d", na.Port))
	s.mtx.Lock()
	s.seededAddrs[key] = true
	s.mtx.Unlock()
	return na
}

// resolveAddr resolves a host:port string (as supplied via
// Config.ConfiguredPeers) into a wire.NetAddress.
func resolveAddr(addr string, params *chaincfg.Params) (*wire.NetAddress, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ip, err := net.ResolveIPAddr("ip", host)
	if err != nil {
		return nil, err
	}
	port := defaultPort(params)
	if portStr != "" {
		if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
			return nil, fmt.Errorf("connmgr: parsing port in %q: %w", addr, err)
		}
	}
	return &wire.NetAddress{
		IP:        ip.IP,
		Port:      port,
		Services:  wire.SFNodeNetwork | wire.SFNodeCF,
		Timestamp: time.Now(),
	}, nil
}

func (s *Supervisor) pickCandidate() *wire.NetAddress {
	s.mtx.Lock()
	exclude := make(map[string]bool, len(s.peers))
	for _, e := range s.peers {
		if e.reportedAddr != nil {
			exclude[e.reportedAddr.AddrGroup()] = true
		}
	}
	s.mtx.Unlock()

	for attempts := 0; attempts < 50; attempts++ {
		na := s.addrMgr.GetAddress(exclude)
		if na == nil {
			return nil
		}
		key := net.JoinHostPort(na.IP.String(), fmt.Sprintf("%d", na.Port))
		if s.banned.Contains(key) {
			continue
		}
		s.mtx.Lock()
		next, ok := s.nextAttempt[key]
		if ok && time.Now().Before(next) {
			s.mtx.Unlock()
			continue
		}
		// Stamp a short in-flight lockout immediately so a concurrent
		// maintainConnections pass can't hand out the same candidate
		// again before dialOne's own goroutine gets to run.
		s.nextAttempt[key] = time.Now().Add(s.cfg.Timeouts.Dial)
		s.mtx.Unlock()
		return na
	}
	return nil
}

func groupOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// dialOne dials na (directly or via the configured SOCKS5 proxy),
// performs the handshake, and registers the resulting session.
func (s *Supervisor) dialOne(na *wire.NetAddress, isDataPeer bool) {
	key := net.JoinHostPort(na.IP.String(), fmt.Sprintf("%d", na.Port))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.addrMgr.Attempt(na)
		conn, err := s.dial(key)
		if err != nil {
			log.Debugf("connmgr: dial %s failed: %v", key, err)
			s.recordFailure(key)
			return
		}

		cfg := peer.Config{
			Net:              s.cfg.Params.Net,
			ProtocolVersion: 70016,
			UserAgentSuffix:  "/kyoto:0.1/",
			RequiredServices: requiredServicesFor(isDataPeer),
			IsDataPeer:       isDataPeer,
			PreferV2:         true,
			Timeouts:         s.cfg.Timeouts,
		}
		sess := peer.New(key, conn, cfg, s.inboundAdapter(key))

		if err := sess.Start(na, s.cfg.Nonce, s.cfg.LastBlock); err != nil {
			log.Debugf("connmgr: handshake with %s failed: %v", key, err)
			_ = conn.Close()
			s.recordFailure(key)
			return
		}

		s.mtx.Lock()
		seeded := s.seededAddrs[key]
		s.peers[key] = &peerEntry{session: sess, isDataPeer: isDataPeer, seeded: seeded, addr: key, reportedAddr: na}
		delete(s.backoff, key)
		s.mtx.Unlock()

		s.addrMgr.Good(na)
		s.engine.PeerReady(key)
	}()
}

func requiredServicesFor(isDataPeer bool) wire.ServiceFlag {
	if isDataPeer {
		return wire.SFNodeNetwork | wire.SFNodeCF
	}
	return wire.SFNodeNetwork
}

func (s *Supervisor) dial(addr string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeouts.Dial)
	defer cancel()

	if s.cfg.ProxyAddr == "" {
		d := net.Dialer{}
		return d.DialContext(ctx, "tcp", addr)
	}

	proxy := &socks.Proxy{
		Addr:     s.cfg.ProxyAddr,
		Username: s.cfg.ProxyUsername,
		Password: s.cfg.ProxyPassword,
	}
	return proxy.Dial("tcp", addr)
}

func (s *Supervisor) recordFailure(key string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	cur := s.backoff[key]
	if cur == 0 {
		cur = baseBackoff
	} else {
		cur *= 2
		if cur > maxBackoff {
			cur = maxBackoff
		}
	}
	s.backoff[key] = cur
	s.nextAttempt[key] = time.Now().Add(cur)
}

func (s *Supervisor) removePeer(key string) {
	s.mtx.Lock()
	delete(s.peers, key)
	s.mtx.Unlock()
}

// Ban implements chain.Requester: it adds the address to the banned LRU
// cache (no expiry; entries leave only when the cache evicts them), drops
// the session if live, and logs the reason.
func (s *Supervisor) Ban(peerID string, reason chain.DisconnectReason) {
	s.banned.Add(peerID)
	s.mtx.Lock()
	e, ok := s.peers[peerID]
	s.mtx.Unlock()
	if ok {
		e.session.Shutdown(time.Second)
		s.removePeer(peerID)
	}
	log.Warnf("connmgr: banned %s: %s", peerID, reason)
}

// PickDataPeer implements chain.Requester.
func (s *Supervisor) PickDataPeer(exclude ...string) string {
	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[e] = true
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for key, e := range s.peers {
		if e.isDataPeer && !excluded[key] {
			return key
		}
	}
	return ""
}

// RequestHeaders implements chain.Requester.
func (s *Supervisor) RequestHeaders(peerID string, locator []*chainhash.Hash, hashStop chainhash.Hash) {
	s.enqueue(peerID, &wire.MsgGetHeaders{BlockLocatorHashes: locator, HashStop: hashStop}, s.cfg.Timeouts.RequestHeaders)
}

// RequestCFHeaders implements chain.Requester. The batch's stop height
// is not carried on the wire, so it is recovered from the response's
// filter-hash count against this recorded start height.
func (s *Supervisor) RequestCFHeaders(peerID string, startHeight uint32, stopHash chainhash.Hash) {
	s.mtx.Lock()
	if e, ok := s.peers[peerID]; ok {
		e.pendingCFHeadersStart = int32(startHeight)
	}
	s.mtx.Unlock()
	s.enqueue(peerID, &wire.MsgGetCFHeaders{FilterType: wire.FilterTypeBasic, StartHeight: startHeight, StopHash: stopHash}, s.cfg.Timeouts.RequestCFHeaders)
}

// RequestCFilters implements chain.Requester. Individual cfilter
// messages stream back in height order starting at startHeight; the
// supervisor tracks the running cursor per peer.
func (s *Supervisor) RequestCFilters(peerID string, startHeight uint32, stopHash chainhash.Hash) {
	s.mtx.Lock()
	if e, ok := s.peers[peerID]; ok {
		e.nextCFilterHeight = int32(startHeight)
	}
	s.mtx.Unlock()
	s.enqueue(peerID, &wire.MsgGetCFilters{FilterType: wire.FilterTypeBasic, StartHeight: startHeight, StopHash: stopHash}, s.cfg.Timeouts.RequestCFilters)
}

// RequestBlock implements chain.Requester.
func (s *Supervisor) RequestBlock(peerID string, hash chainhash.Hash) {
	gd := wire.NewMsgGetData()
	_ = gd.AddInvVect(&wire.InvVect{Type: wire.InvTypeWitnessBlock, Hash: hash})
	s.enqueue(peerID, gd, s.cfg.Timeouts.RequestBlock)
}

func (s *Supervisor) enqueue(peerID string, msg wire.Message, deadline time.Duration) {
	s.mtx.Lock()
	e, ok := s.peers[peerID]
	s.mtx.Unlock()
	if !ok {
		return
	}
	e.session.Enqueue(msg, deadline)
}
