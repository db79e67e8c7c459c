// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/kyoto-spv/kyoto/wire"
	"github.com/stretchr/testify/require"
)

type recordingInbound struct {
	mu           sync.Mutex
	headers      [][]*wire.BlockHeader
	stateChanges []string
}

func (r *recordingInbound) OnHeaders(peerID string, headers []*wire.BlockHeader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.headers = append(r.headers, headers)
}
func (r *recordingInbound) OnCFHeaders(string, *wire.MsgCFHeaders) {}
func (r *recordingInbound) OnCFilter(string, *wire.MsgCFilter)     {}
func (r *recordingInbound) OnBlock(string, *wire.MsgBlock)         {}
func (r *recordingInbound) OnAddr(string, []*wire.NetAddress)      {}
func (r *recordingInbound) OnAddrV2(string, []*wire.NetAddressV2)  {}
func (r *recordingInbound) OnInv(string, *wire.MsgInv)             {}
func (r *recordingInbound) OnGetData(string, *wire.MsgGetData)     {}
func (r *recordingInbound) OnTx(string, *wire.MsgTx)               {}
func (r *recordingInbound) OnStateChange(peerID string, from, to State, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateChanges = append(r.stateChanges, to.String())
}

func (r *recordingInbound) headerBatches() [][]*wire.BlockHeader {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]*wire.BlockHeader, len(r.headers))
	copy(out, r.headers)
	return out
}

func testConfig() Config {
	return Config{
		Net:             wire.RegTest,
		ProtocolVersion: 70016,
		UserAgentSuffix: "/kyoto-test:0.1/",
		Timeouts:        DefaultTimeouts(),
	}
}

func localAddr() *wire.NetAddress {
	return &wire.NetAddress{IP: net.ParseIP("127.0.0.1"), Port: 8333}
}

// remoteV1Handshake plays the other end of the v1 handshake manually on
// conn, so the Session under test runs its real handshake() path.
func remoteV1Handshake(t *testing.T, conn net.Conn, pver uint32, net_ wire.BitcoinNet) {
	t.Helper()
	msg, _, err := wire.ReadMessage(conn, pver, net_)
	require.NoError(t, err)
	_, ok := msg.(*wire.MsgVersion)
	require.True(t, ok)

	require.NoError(t, wire.WriteMessage(conn, wire.NewMsgVersion(localAddr(), 1, 0, "/remote:0.1/"), pver, net_))
	require.NoError(t, wire.WriteMessage(conn, wire.NewMsgVerAck(), pver, net_))

	msg, _, err = wire.ReadMessage(conn, pver, net_)
	require.NoError(t, err)
	_, ok = msg.(*wire.MsgVerAck)
	require.True(t, ok)
}

// tcpPipe returns the two ends of a loopback TCP connection. Unlike
// net.Pipe it buffers writes, so both ends may write before either reads,
// as the v1 handshake does.
func tcpPipe(t *testing.T) (client, remote net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()
	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	remote = <-accepted
	if remote == nil {
		t.Fatal("accept failed")
	}
	return client, remote
}

func TestV1HandshakeReachesReady(t *testing.T) {
	client, remote := tcpPipe(t)
	defer client.Close()
	defer remote.Close()

	cfg := testConfig()
	in := &recordingInbound{}
	s := New("remote:8333", client, cfg, in)

	done := make(chan error, 1)
	go func() { done <- s.Start(localAddr(), 42, 0) }()

	remoteV1Handshake(t, remote, cfg.ProtocolVersion, cfg.Net)

	require.NoError(t, <-done)
	require.Equal(t, StateReady, s.State())
	s.Shutdown(time.Second)
	require.Equal(t, StateClosed, s.State())
}

func TestHeadersMessageDispatchedToInbound(t *testing.T) {
	client, remote := tcpPipe(t)
	defer client.Close()
	defer remote.Close()

	cfg := testConfig()
	in := &recordingInbound{}
	s := New("remote:8333", client, cfg, in)

	done := make(chan error, 1)
	go func() { done <- s.Start(localAddr(), 42, 0) }()
	remoteV1Handshake(t, remote, cfg.ProtocolVersion, cfg.Net)
	require.NoError(t, <-done)

	hmsg := wire.NewMsgHeaders()
	require.NoError(t, hmsg.AddBlockHeader(&wire.BlockHeader{Version: 1}))
	require.NoError(t, wire.WriteMessage(remote, hmsg, cfg.ProtocolVersion, cfg.Net))

	require.Eventually(t, func() bool {
		return len(in.headerBatches()) == 1
	}, time.Second, 10*time.Millisecond)

	s.Shutdown(time.Second)
}

func TestPingAnsweredWithPong(t *testing.T) {
	client, remote := tcpPipe(t)
	defer client.Close()
	defer remote.Close()

	cfg := testConfig()
	in := &recordingInbound{}
	s := New("remote:8333", client, cfg, in)

	done := make(chan error, 1)
	go func() { done <- s.Start(localAddr(), 42, 0) }()
	remoteV1Handshake(t, remote, cfg.ProtocolVersion, cfg.Net)
	require.NoError(t, <-done)

	require.NoError(t, wire.WriteMessage(remote, wire.NewMsgPing(7), cfg.ProtocolVersion, cfg.Net))

	_ = remote.SetReadDeadline(time.Now().Add(time.Second))
	msg, _, err := wire.ReadMessage(remote, cfg.ProtocolVersion, cfg.Net)
	require.NoError(t, err)
	pong, ok := msg.(*wire.MsgPong)
	require.True(t, ok)
	require.Equal(t, uint64(7), pong.Nonce)

	s.Shutdown(time.Second)
}

func TestEncodeDecodeMessageBodyRoundTrip(t *testing.T) {
	hmsg := wire.NewMsgHeaders()
	require.NoError(t, hmsg.AddBlockHeader(&wire.BlockHeader{Version: 2, Nonce: 99}))

	data, err := encodeMessageBody(hmsg, 70016)
	require.NoError(t, err)

	decoded, err := decodeMessageBody(data, 70016, wire.RegTest)
	require.NoError(t, err)
	got, ok := decoded.(*wire.MsgHeaders)
	require.True(t, ok)
	require.Len(t, got.Headers, 1)
	require.Equal(t, uint32(99), got.Headers[0].Nonce)
}
