// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
	"net"
	"time"
)

// loopbackIP is the sender address Kyoto always advertises in AddrMe,
// never the host's real address (§1).
var loopbackIP = net.ParseIP("127.0.0.1").To16()

// MaxUserAgentLen is the maximum allowed length for the user agent field
// carried in a version message.
const MaxUserAgentLen = 256

// DefaultUserAgentName is the name component of Kyoto's user agent string.
const DefaultUserAgentName = "Kyoto"

// DefaultUserAgentVersion is the version component of Kyoto's user agent
// string; callers seeking a different display string should append a
// suffix via NewMsgVersion's userAgentSuffix rather than override this.
const DefaultUserAgentVersion = "0.1.0"

// MsgVersion implements the Message interface and represents a Bitcoin
// version message. It is the first message sent when a connection is
// handshaking (§4.3).
//
// Kyoto never reveals the host's real network identity: AddrYou is the
// peer's own observed endpoint and AddrMe is always loopback (§1, §4.1).
type MsgVersion struct {
	ProtocolVersion int32
	Services        ServiceFlag
	Timestamp       time.Time
	AddrYou         NetAddress
	AddrMe          NetAddress
	Nonce           uint64
	UserAgent       string
	LastBlock       int32
	DisableRelayTx  bool
}

func (m *MsgVersion) HasService(s ServiceFlag) bool { return m.Services.HasFlag(s) }
func (m *MsgVersion) AddService(s ServiceFlag)      { m.Services |= s }

func (m *MsgVersion) BtcDecode(r io.Reader, pver uint32) error {
	var bs binarySerializer
	if err := readElement(r, &bs, &m.ProtocolVersion); err != nil {
		return err
	}
	if err := readElement(r, &bs, &m.Services); err != nil {
		return err
	}
	secs, err := bs.Uint64(r, littleEndian)
	if err != nil {
		return err
	}
	m.Timestamp = time.Unix(int64(secs), 0)

	if err := readNetAddress(r, &bs, &m.AddrYou, false); err != nil {
		return err
	}

	if pver >= MultipleAddressVersion {
		if err := readNetAddress(r, &bs, &m.AddrMe, false); err != nil {
			return err
		}
		nonce, err := bs.Uint64(r, littleEndian)
		if err != nil {
			return err
		}
		m.Nonce = nonce
	}

	if pver >= MultipleAddressVersion {
		ua, err := ReadVarString(r, &bs)
		if err != nil {
			return err
		}
		if len(ua) > MaxUserAgentLen {
			return fmt.Errorf("user agent too long [%d]", len(ua))
		}
		m.UserAgent = ua
	}

	if pver >= MultipleAddressVersion {
		if err := readElement(r, &bs, &m.LastBlock); err != nil {
			return err
		}
	}

	if pver >= BIP0037Version {
		var relay bool
		if err := readElement(r, &bs, &relay); err != nil {
			// Trailing relay flag is optional: older peers omit it.
			return nil
		}
		m.DisableRelayTx = !relay
	}
	return nil
}

func (m *MsgVersion) BtcEncode(w io.Writer, pver uint32) error {
	var bs binarySerializer
	if err := writeElement(w, &bs, m.ProtocolVersion); err != nil {
		return err
	}
	if err := writeElement(w, &bs, m.Services); err != nil {
		return err
	}
	if err := bs.PutUint64(w, littleEndian, uint64(m.Timestamp.Unix())); err != nil {
		return err
	}
	if err := writeNetAddress(w, &bs, &m.AddrYou, false); err != nil {
		return err
	}
	if err := writeNetAddress(w, &bs, &m.AddrMe, false); err != nil {
		return err
	}
	if err := bs.PutUint64(w, littleEndian, m.Nonce); err != nil {
		return err
	}
	if err := WriteVarString(w, &bs, m.UserAgent); err != nil {
		return err
	}
	if err := writeElement(w, &bs, m.LastBlock); err != nil {
		return err
	}
	return writeElement(w, &bs, !m.DisableRelayTx)
}

func (m *MsgVersion) Command() string { return CmdVersion }

func (m *MsgVersion) MaxPayloadLength(pver uint32) uint32 {
	return 4 + 8 + 8 + 26 + 26 + 8 + uint32(VarIntSerializeSize(MaxUserAgentLen)) + MaxUserAgentLen + 4 + 1
}

// NewMsgVersion returns a version message advertising loopback as the
// sender address and theirAddr (the remote's own observed endpoint) as
// AddrYou, per Kyoto's identity-hiding policy (§1).
func NewMsgVersion(theirAddr *NetAddress, nonce uint64, lastBlock int32, userAgentSuffix string) *MsgVersion {
	ua := fmt.Sprintf("/%s:%s/", DefaultUserAgentName, DefaultUserAgentVersion)
	if userAgentSuffix != "" {
		ua = fmt.Sprintf("/%s:%s%s/", DefaultUserAgentName, DefaultUserAgentVersion, userAgentSuffix)
	}
	return &MsgVersion{
		ProtocolVersion: int32(ProtocolVersion),
		Services:        0,
		Timestamp:       time.Now(),
		AddrYou:         *theirAddr,
		AddrMe: NetAddress{
			Timestamp: time.Now(),
			IP:        loopbackIP,
			Port:      0,
		},
		Nonce:     nonce,
		UserAgent: ua,
		LastBlock: lastBlock,
	}
}
