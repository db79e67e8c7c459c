// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// MaxNetAddressPayload returns the max payload size for a NetAddress based
// on the protocol version.
func MaxNetAddressPayload(pver uint32) uint32 {
	plen := uint32(26)
	if pver >= NetAddressTimeVersion {
		plen += 4
	}
	return plen
}

// NetAddress represents legacy ("addr") peer address information: the
// services a peer offers and its IP/port.
type NetAddress struct {
	// Timestamp is the last time the address was seen active. Omitted on
	// the wire for pre-NetAddressTimeVersion peers and the version
	// message's own addresses.
	Timestamp time.Time

	// Services is the bitmask of services supported by the peer.
	Services ServiceFlag

	// IP is the peer's IP address, as a 16-byte (v4-in-v6 mapped or
	// native v6) address.
	IP net.IP

	// Port is the peer's P2P port, host byte order.
	Port uint16
}

// AddrGroup returns the network-grouping key used by the address book's
// eclipse-resistance rules (§9): the /16 for IPv4, the /32 for IPv6.
func (na *NetAddress) AddrGroup() string {
	ip := na.IP
	if v4 := ip.To4(); v4 != nil {
		return fmt.Sprintf("4:%d.%d", v4[0], v4[1])
	}
	if len(ip) == net.IPv6len {
		return fmt.Sprintf("6:%x:%x", ip[0:2], ip[2:4])
	}
	return "0:" + ip.String()
}

func readNetAddress(r io.Reader, buf *binarySerializer, na *NetAddress, ts bool) error {
	var ip [16]byte
	if ts {
		secs, err := buf.Uint32(r, littleEndian)
		if err != nil {
			return err
		}
		na.Timestamp = time.Unix(int64(secs), 0)
	}
	services, err := buf.Uint64(r, littleEndian)
	if err != nil {
		return err
	}
	na.Services = ServiceFlag(services)

	if _, err := io.ReadFull(r, ip[:]); err != nil {
		return err
	}
	na.IP = net.IP(ip[:]).To16()

	port, err := buf.Uint16(r, binary.BigEndian)
	if err != nil {
		return err
	}
	na.Port = port
	return nil
}

func writeNetAddress(w io.Writer, buf *binarySerializer, na *NetAddress, ts bool) error {
	if ts {
		if err := buf.PutUint32(w, littleEndian, uint32(na.Timestamp.Unix())); err != nil {
			return err
		}
	}
	if err := buf.PutUint64(w, littleEndian, uint64(na.Services)); err != nil {
		return err
	}
	var ip [16]byte
	if na.IP != nil {
		copy(ip[:], na.IP.To16())
	}
	if _, err := w.Write(ip[:]); err != nil {
		return err
	}
	return buf.PutUint16(w, binary.BigEndian, na.Port)
}

// BIP155 network identifiers used by addrv2 (only the families Kyoto's
// dialer can reach: IPv4, IPv6, and Tor v3 when a proxy is configured).
const (
	NetIPv4  = 1
	NetIPv6  = 2
	NetTorV3 = 4
)

// NetAddressV2 is the BIP155 address record carried by addrv2 (§4.1),
// which generalizes NetAddress to variable-length address encodings (e.g.
// 32-byte Tor v3 onion keys) instead of a fixed 16-byte IP.
type NetAddressV2 struct {
	Timestamp time.Time
	Services  ServiceFlag
	Network   uint8
	Addr      []byte
	Port      uint16
}

// ToIPNetAddress converts an IPv4/IPv6 NetAddressV2 to the legacy
// NetAddress shape used internally by the address book; it returns false
// for address families (e.g. Tor) that have no net.IP representation.
func (nav2 *NetAddressV2) ToIPNetAddress() (NetAddress, bool) {
	switch nav2.Network {
	case NetIPv4, NetIPv6:
		return NetAddress{
			Timestamp: nav2.Timestamp,
			Services:  nav2.Services,
			IP:        net.IP(nav2.Addr).To16(),
			Port:      nav2.Port,
		}, true
	default:
		return NetAddress{}, false
	}
}

func readNetAddressV2(r io.Reader, buf *binarySerializer) (*NetAddressV2, error) {
	secs, err := buf.Uint32(r, littleEndian)
	if err != nil {
		return nil, err
	}
	services, err := ReadVarInt(r, buf)
	if err != nil {
		return nil, err
	}
	netID, err := io.ReadAll(io.LimitReader(r, 1))
	if err != nil {
		return nil, err
	}
	if len(netID) != 1 {
		return nil, io.ErrUnexpectedEOF
	}
	addr, err := ReadVarBytes(r, buf, 512, "addrv2 address")
	if err != nil {
		return nil, err
	}
	port, err := buf.Uint16(r, binary.BigEndian)
	if err != nil {
		return nil, err
	}
	return &NetAddressV2{
		Timestamp: time.Unix(int64(secs), 0),
		Services:  ServiceFlag(services),
		Network:   netID[0],
		Addr:      addr,
		Port:      port,
	}, nil
}

func writeNetAddressV2(w io.Writer, buf *binarySerializer, nav2 *NetAddressV2) error {
	if err := buf.PutUint32(w, littleEndian, uint32(nav2.Timestamp.Unix())); err != nil {
		return err
	}
	if err := WriteVarInt(w, buf, uint64(nav2.Services)); err != nil {
		return err
	}
	if _, err := w.Write([]byte{nav2.Network}); err != nil {
		return err
	}
	if err := WriteVarBytes(w, buf, nav2.Addr); err != nil {
		return err
	}
	return buf.PutUint16(w, binary.BigEndian, nav2.Port)
}
