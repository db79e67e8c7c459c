// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bip324

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// pipe returns the two ends of a loopback TCP connection, giving each
// side of a Handshake call the buffered full-duplex stream a real peer
// socket provides (both sides write their key before reading, which an
// unbuffered net.Pipe cannot carry).
func pipe() (a, b io.ReadWriter) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()
	c1, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		panic(err)
	}
	return c1, <-accepted
}

func handshakeBothSides(t *testing.T) (initiatorSession, responderSession *Session) {
	t.Helper()
	connA, connB := pipe()

	type result struct {
		sess *Session
		err  error
	}
	initCh := make(chan result, 1)
	respCh := make(chan result, 1)

	go func() {
		s, err := Handshake(connA, true, []byte("garbage-init"))
		initCh <- result{s, err}
	}()
	go func() {
		s, err := Handshake(connB, false, []byte("garbage-resp"))
		respCh <- result{s, err}
	}()

	initRes := <-initCh
	respRes := <-respCh
	require.NoError(t, initRes.err)
	require.NoError(t, respRes.err)
	return initRes.sess, respRes.sess
}

func TestHandshakeEstablishesMatchingKeys(t *testing.T) {
	initiator, responder := handshakeBothSides(t)
	require.NotNil(t, initiator)
	require.NotNil(t, responder)

	var buf bytes.Buffer
	require.NoError(t, initiator.WritePacket(&buf, 0x01, []byte("hello")))

	contentType, plaintext, isDecoy, err := responder.ReadPacket(&buf)
	require.NoError(t, err)
	require.False(t, isDecoy)
	require.Equal(t, byte(0x01), contentType)
	require.Equal(t, []byte("hello"), plaintext)
}

func TestDecoyPacketsIdentified(t *testing.T) {
	initiator, responder := handshakeBothSides(t)

	var buf bytes.Buffer
	require.NoError(t, initiator.WritePacket(&buf, contentTypeDecoy, []byte("ignored")))

	_, _, isDecoy, err := responder.ReadPacket(&buf)
	require.NoError(t, err)
	require.True(t, isDecoy)
}

func TestSequenceNumbersAreIndependentPerDirection(t *testing.T) {
	initiator, responder := handshakeBothSides(t)

	var toResponder bytes.Buffer
	require.NoError(t, initiator.WritePacket(&toResponder, 0x01, []byte("a")))
	require.NoError(t, initiator.WritePacket(&toResponder, 0x01, []byte("b")))

	var toInitiator bytes.Buffer
	require.NoError(t, responder.WritePacket(&toInitiator, 0x01, []byte("x")))

	_, p1, _, err := responder.ReadPacket(&toResponder)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), p1)

	_, px, _, err := initiator.ReadPacket(&toInitiator)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), px)

	_, p2, _, err := responder.ReadPacket(&toResponder)
	require.NoError(t, err)
	require.Equal(t, []byte("b"), p2)
}

func TestTamperedCiphertextRejected(t *testing.T) {
	initiator, responder := handshakeBothSides(t)

	var buf bytes.Buffer
	require.NoError(t, initiator.WritePacket(&buf, 0x01, []byte("hello")))
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xff

	_, _, _, err := responder.ReadPacket(bytes.NewReader(raw))
	require.Error(t, err)
}

// TestPacketRoundTripProperty exercises the §8 round-trip property against
// randomized payloads and content types over an established session.
func TestPacketRoundTripProperty(t *testing.T) {
	initiator, responder := handshakeBothSides(t)

	rapid.Check(t, func(tt *rapid.T) {
		ct := byte(rapid.IntRange(1, 255).Draw(tt, "contentType"))
		payload := rapid.SliceOfN(rapid.Byte(), 0, 256).Draw(tt, "payload")

		var buf bytes.Buffer
		require.NoError(tt, initiator.WritePacket(&buf, ct, payload))

		gotCT, gotPayload, isDecoy, err := responder.ReadPacket(&buf)
		require.NoError(tt, err)
		require.False(tt, isDecoy)
		require.Equal(tt, ct, gotCT)
		require.Equal(tt, payload, gotPayload)
	})
}

func TestGarbageOverLimitRejected(t *testing.T) {
	connA, _ := pipe()
	_, err := Handshake(connA, true, make([]byte, garbageMaxLen+1))
	require.Error(t, err)
}
