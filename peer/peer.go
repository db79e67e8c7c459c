// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peer implements a single connection's session protocol (§4.3):
// a state machine driven by a reader task and a writer task sharing a
// handle, framing messages through the v1 wire codec or, opportunistically,
// the BIP-324 v2 transport.
package peer

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/kyoto-spv/kyoto/bip324"
	"github.com/kyoto-spv/kyoto/wire"
)

var log btclog.Logger = btclog.Disabled

// UseLogger lets the embedding host supply a concrete logging backend.
func UseLogger(l btclog.Logger) { log = l }

// State is the session's lifecycle stage (§4.3).
type State int

const (
	StateConnecting State = iota
	StateHandshaking
	StateReady
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateHandshaking:
		return "Handshaking"
	case StateReady:
		return "Ready"
	case StateDraining:
		return "Draining"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Timeouts bundles the per-phase and per-request deadlines of §4.3.
type Timeouts struct {
	Dial              time.Duration
	Handshake         time.Duration
	RequestHeaders    time.Duration
	RequestCFHeaders  time.Duration
	RequestCFilters   time.Duration
	RequestBlock      time.Duration
	Keepalive         time.Duration
}

// DefaultTimeouts returns the §4.3 defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Dial:             5 * time.Second,
		Handshake:        10 * time.Second,
		RequestHeaders:   10 * time.Second,
		RequestCFHeaders: 10 * time.Second,
		RequestCFilters:  30 * time.Second,
		RequestBlock:     30 * time.Second,
		Keepalive:        2 * time.Minute,
	}
}

// Config describes how to establish and run one session.
type Config struct {
	Net              wire.BitcoinNet
	ProtocolVersion  uint32
	UserAgentSuffix  string
	RequiredServices wire.ServiceFlag
	IsDataPeer       bool // opened specifically as a filter-capable peer (§4.3)
	PreferV2         bool
	Timeouts         Timeouts
}

// Inbound is the set of callbacks the chain engine (via the supervisor)
// registers to receive parsed messages and lifecycle transitions.
// Implementations must not block.
type Inbound interface {
	OnHeaders(peerID string, headers []*wire.BlockHeader)
	OnCFHeaders(peerID string, msg *wire.MsgCFHeaders)
	OnCFilter(peerID string, msg *wire.MsgCFilter)
	OnBlock(peerID string, blk *wire.MsgBlock)
	OnAddr(peerID string, addrs []*wire.NetAddress)
	OnAddrV2(peerID string, addrs []*wire.NetAddressV2)
	OnInv(peerID string, inv *wire.MsgInv)
	OnGetData(peerID string, gd *wire.MsgGetData)
	OnTx(peerID string, tx *wire.MsgTx)
	OnStateChange(peerID string, from, to State, reason string)
}

// outboundRequest is one queued message, paired with the response
// deadline its caller asked for. The writer does not track or enforce
// the deadline.
type outboundRequest struct {
	msg      wire.Message
	deadline time.Duration // zero for fire-and-forget messages
}

// Session is one peer connection: reader and writer tasks sharing state
// under mtx, communicating with the rest of the node only through the
// Inbound callbacks and the outbound queue.
type Session struct {
	id   string
	cfg  Config
	conn net.Conn
	in   Inbound

	v2 *bip324.Session // nil until/unless the v2 handshake succeeds

	mtx   sync.Mutex
	state State

	outq chan outboundRequest
	quit chan struct{}
	wg   sync.WaitGroup

	lastPong time.Time
}

// New wraps an already-dialed conn as a session identified by id (the
// supervisor owns dialing and banning policy; Session owns only framing
// and the handshake).
func New(id string, conn net.Conn, cfg Config, in Inbound) *Session {
	return &Session{
		id:    id,
		cfg:   cfg,
		conn:  conn,
		in:    in,
		state: StateConnecting,
		outq:  make(chan outboundRequest, 64),
		quit:  make(chan struct{}),
	}
}

// ID returns the session's supervisor-assigned identifier (typically the
// remote address).
func (s *Session) ID() string { return s.id }

func (s *Session) setState(to State, reason string) {
	s.mtx.Lock()
	from := s.state
	s.state = to
	s.mtx.Unlock()
	if from != to {
		s.in.OnStateChange(s.id, from, to, reason)
	}
}

// State returns the session's current lifecycle stage.
func (s *Session) State() State {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.state
}

// Start performs the handshake and, on success, launches the reader and
// writer tasks. It blocks until the handshake completes or times out.
func (s *Session) Start(theirAddr *wire.NetAddress, nonce uint64, lastBlock int32) error {
	s.setState(StateHandshaking, "")

	if s.cfg.PreferV2 {
		if err := s.attemptV2Handshake(); err != nil {
			log.Debugf("peer %s: v2 handshake unavailable, using v1: %v", s.id, err)
			s.v2 = nil
		}
	}

	if err := s.conn.SetDeadline(time.Now().Add(s.cfg.Timeouts.Handshake)); err != nil {
		return fmt.Errorf("peer %s: setting handshake deadline: %w", s.id, err)
	}
	defer s.conn.SetDeadline(time.Time{})

	if err := s.handshake(theirAddr, nonce, lastBlock); err != nil {
		s.setState(StateClosed, "handshake failed: "+err.Error())
		return err
	}

	s.setState(StateReady, "")
	s.wg.Add(2)
	go s.readerLoop()
	go s.writerLoop()
	return nil
}

func (s *Session) attemptV2Handshake() error {
	garbage := make([]byte, 32)
	session, err := bip324.Handshake(s.conn, true, garbage)
	if err != nil {
		return err
	}
	s.v2 = session
	return nil
}

func (s *Session) handshake(theirAddr *wire.NetAddress, nonce uint64, lastBlock int32) error {
	version := wire.NewMsgVersion(theirAddr, nonce, lastBlock, s.cfg.UserAgentSuffix)
	version.ProtocolVersion = int32(s.cfg.ProtocolVersion)
	if err := s.writeMessage(version); err != nil {
		return fmt.Errorf("sending version: %w", err)
	}

	var gotVersion, gotVerAck bool
	var theirServices wire.ServiceFlag
	for !gotVersion || !gotVerAck {
		msg, err := s.readOne()
		if err != nil {
			return fmt.Errorf("reading handshake message: %w", err)
		}
		switch m := msg.(type) {
		case *wire.MsgVersion:
			gotVersion = true
			theirServices = m.Services
			if err := s.writeMessage(wire.NewMsgVerAck()); err != nil {
				return fmt.Errorf("sending verack: %w", err)
			}
		case *wire.MsgVerAck:
			gotVerAck = true
		case *wire.MsgSendAddrV2, *wire.MsgSendCmpct:
			// Optional announcements a peer may send before verack.
			continue
		case nil:
			// Unknown command during handshake; per §4.1 log and discard.
			continue
		default:
			return fmt.Errorf("unexpected message %T during handshake", m)
		}
	}

	if s.cfg.IsDataPeer && s.cfg.RequiredServices != 0 && !theirServices.HasFlag(s.cfg.RequiredServices) {
		return fmt.Errorf("peer lacks required services %s", s.cfg.RequiredServices)
	}
	return nil
}

func (s *Session) writeMessage(msg wire.Message) error {
	if s.v2 != nil {
		return s.writeV2(msg)
	}
	return wire.WriteMessage(s.conn, msg, s.cfg.ProtocolVersion, s.cfg.Net)
}

func (s *Session) writeV2(msg wire.Message) error {
	// Content type 1 is reserved here for command-prefixed message bodies
	// (encodeMessageBody: no v1 magic, length or checksum), letting the v2
	// transport carry the wire codec payloads (§4.2: "the content type
	// byte routes the payload to the wire codec").
	plain, err := encodeMessageBody(msg, s.cfg.ProtocolVersion)
	if err != nil {
		return err
	}
	return s.v2.WritePacket(s.conn, 0x01, plain)
}

// readerLoop drains the socket, emitting parsed messages on the inbound
// callbacks (§4.3 Reader). No per-request timers exist to cancel.
func (s *Session) readerLoop() {
	defer s.wg.Done()
	defer s.transitionToDraining("reader exited")

	for {
		select {
		case <-s.quit:
			return
		default:
		}

		msg, err := s.readOne()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			log.Debugf("peer %s: read error: %v", s.id, err)
			return
		}
		if msg == nil {
			continue // unknown command, already logged/discarded
		}
		s.dispatch(msg)
	}
}

func (s *Session) readOne() (wire.Message, error) {
	if s.v2 != nil {
		contentType, payload, isDecoy, err := s.v2.ReadPacket(s.conn)
		if err != nil {
			return nil, err
		}
		if isDecoy || contentType != 0x01 {
			return nil, nil
		}
		return decodeMessageBody(payload, s.cfg.ProtocolVersion, s.cfg.Net)
	}
	msg, _, err := wire.ReadMessage(s.conn, s.cfg.ProtocolVersion, s.cfg.Net)
	return msg, err
}

func (s *Session) dispatch(msg wire.Message) {
	switch m := msg.(type) {
	case *wire.MsgHeaders:
		hs := make([]*wire.BlockHeader, len(m.Headers))
		copy(hs, m.Headers)
		s.in.OnHeaders(s.id, hs)
	case *wire.MsgCFHeaders:
		s.in.OnCFHeaders(s.id, m)
	case *wire.MsgCFilter:
		s.in.OnCFilter(s.id, m)
	case *wire.MsgBlock:
		s.in.OnBlock(s.id, m)
	case *wire.MsgAddr:
		s.in.OnAddr(s.id, m.AddrList)
	case *wire.MsgAddrV2:
		s.in.OnAddrV2(s.id, m.AddrList)
	case *wire.MsgInv:
		s.in.OnInv(s.id, m)
	case *wire.MsgGetData:
		s.in.OnGetData(s.id, m)
	case *wire.MsgTx:
		s.in.OnTx(s.id, m)
	case *wire.MsgPing:
		s.Enqueue(wire.NewMsgPong(m.Nonce), 0)
	case *wire.MsgPong:
		s.mtx.Lock()
		s.lastPong = time.Now()
		s.mtx.Unlock()
	default:
		// Reject/sendcmpct/feefilter/version-after-handshake and anything
		// else Kyoto parses but doesn't act on are silently accepted.
	}
}

// Enqueue queues msg for the writer task. deadline is stored with the
// queued request but is not enforced: a peer that never answers is not
// timed out or marked unreliable by the session.
func (s *Session) Enqueue(msg wire.Message, deadline time.Duration) {
	select {
	case s.outq <- outboundRequest{msg: msg, deadline: deadline}:
	case <-s.quit:
	}
}

// writerLoop serves the outbound queue in order and sends a keepalive
// ping every Keepalive interval, whether or not other traffic was sent
// (§4.3 Writer).
func (s *Session) writerLoop() {
	defer s.wg.Done()
	defer s.transitionToDraining("writer exited")

	ticker := time.NewTicker(s.cfg.Timeouts.Keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case req := <-s.outq:
			if err := s.writeMessage(req.msg); err != nil {
				log.Debugf("peer %s: write error: %v", s.id, err)
				return
			}
		case <-ticker.C:
			if err := s.writeMessage(wire.NewMsgPing(pingNonce())); err != nil {
				log.Debugf("peer %s: keepalive write error: %v", s.id, err)
				return
			}
		}
	}
}

func pingNonce() uint64 {
	return uint64(time.Now().UnixNano())
}

func (s *Session) transitionToDraining(reason string) {
	s.mtx.Lock()
	if s.state == StateDraining || s.state == StateClosed {
		s.mtx.Unlock()
		return
	}
	s.state = StateDraining
	s.mtx.Unlock()
	s.in.OnStateChange(s.id, StateReady, StateDraining, reason)
}

// Shutdown signals both tasks to stop, flushes pending work with a hard
// cap, and closes the socket (§5 Cancellation, §4.3 Draining→Closed).
func (s *Session) Shutdown(flushCap time.Duration) {
	s.setState(StateDraining, "shutdown requested")
	close(s.quit)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(flushCap):
	}

	_ = s.conn.Close()
	s.setState(StateClosed, "shutdown complete")
}
