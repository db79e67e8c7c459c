// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// MessageHeaderSize is the number of bytes in a message envelope
	// header: 4 magic + 12 command + 4 length + 4 checksum.
	MessageHeaderSize = 24

	// CommandSize is the fixed width of the command field, NUL-padded.
	CommandSize = 12

	// MaxMessagePayload is the maximum size, in bytes, any single
	// message payload may declare (§4.1).
	MaxMessagePayload = 32 * 1024 * 1024
)

// Command strings for every message type Kyoto's wire codec knows, per
// §4.1.
const (
	CmdVersion      = "version"
	CmdVerAck       = "verack"
	CmdPing         = "ping"
	CmdPong         = "pong"
	CmdAddr         = "addr"
	CmdAddrV2       = "addrv2"
	CmdSendAddrV2   = "sendaddrv2"
	CmdGetHeaders   = "getheaders"
	CmdHeaders      = "headers"
	CmdGetCFHeaders = "getcfheaders"
	CmdCFHeaders    = "cfheaders"
	CmdGetCFilters  = "getcfilters"
	CmdCFilter      = "cfilter"
	CmdGetData      = "getdata"
	CmdBlock        = "block"
	CmdTx           = "tx"
	CmdInv          = "inv"
	CmdFeeFilter    = "feefilter"
	CmdReject       = "reject"
	CmdSendCmpct    = "sendcmpct"
)

// Message is implemented by every Bitcoin P2P message Kyoto can encode or
// decode.
type Message interface {
	// BtcDecode reads the wire-format payload of the message from r.
	BtcDecode(r io.Reader, pver uint32) error

	// BtcEncode writes the wire-format payload of the message to w.
	BtcEncode(w io.Writer, pver uint32) error

	// Command returns the message's command string.
	Command() string

	// MaxPayloadLength returns the maximum allowed payload size for the
	// protocol version in effect.
	MaxPayloadLength(pver uint32) uint32
}

// makeEmptyMessage returns a zero-value Message for the given command, or
// an error if command is not one the codec understands. Unknown commands
// are the caller's cue to log and discard, per §4.1.
func makeEmptyMessage(command string) (Message, error) {
	switch command {
	case CmdVersion:
		return &MsgVersion{}, nil
	case CmdVerAck:
		return &MsgVerAck{}, nil
	case CmdPing:
		return &MsgPing{}, nil
	case CmdPong:
		return &MsgPong{}, nil
	case CmdAddr:
		return &MsgAddr{}, nil
	case CmdAddrV2:
		return &MsgAddrV2{}, nil
	case CmdSendAddrV2:
		return &MsgSendAddrV2{}, nil
	case CmdGetHeaders:
		return &MsgGetHeaders{}, nil
	case CmdHeaders:
		return &MsgHeaders{}, nil
	case CmdGetCFHeaders:
		return &MsgGetCFHeaders{}, nil
	case CmdCFHeaders:
		return &MsgCFHeaders{}, nil
	case CmdGetCFilters:
		return &MsgGetCFilters{}, nil
	case CmdCFilter:
		return &MsgCFilter{}, nil
	case CmdGetData:
		return &MsgGetData{}, nil
	case CmdBlock:
		return &MsgBlock{}, nil
	case CmdTx:
		return &MsgTx{}, nil
	case CmdInv:
		return &MsgInv{}, nil
	case CmdFeeFilter:
		return &MsgFeeFilter{}, nil
	case CmdReject:
		return &MsgReject{}, nil
	case CmdSendCmpct:
		return &MsgSendCmpct{}, nil
	default:
		return nil, fmt.Errorf("unhandled command %q", command)
	}
}

// messageHeader is the 24-byte envelope prefix described in §4.1.
type messageHeader struct {
	magic    BitcoinNet
	command  string
	length   uint32
	checksum [4]byte
}

func readMessageHeader(r io.Reader) (int, *messageHeader, error) {
	var headerBytes [MessageHeaderSize]byte
	n, err := io.ReadFull(r, headerBytes[:])
	if err != nil {
		return n, nil, err
	}

	buf := bytes.NewReader(headerBytes[:])
	var bs binarySerializer
	var hdr messageHeader
	var magic uint32
	if err := readElement(buf, &bs, &magic); err != nil {
		return n, nil, err
	}
	hdr.magic = BitcoinNet(magic)

	var command [CommandSize]byte
	if _, err := io.ReadFull(buf, command[:]); err != nil {
		return n, nil, err
	}
	hdr.command = string(bytes.TrimRight(command[:], "\x00"))

	if err := readElement(buf, &bs, &hdr.length); err != nil {
		return n, nil, err
	}
	if _, err := io.ReadFull(buf, hdr.checksum[:]); err != nil {
		return n, nil, err
	}
	return n, &hdr, nil
}

// WriteMessage writes a complete message envelope (header + payload) for
// msg to w, under network magic btcnet and protocol version pver.
func WriteMessage(w io.Writer, msg Message, pver uint32, btcnet BitcoinNet) error {
	var bw bytes.Buffer
	if err := msg.BtcEncode(&bw, pver); err != nil {
		return err
	}
	payload := bw.Bytes()
	lenp := len(payload)

	cmd := msg.Command()
	if len(cmd) > CommandSize {
		return fmt.Errorf("command %q is too long", cmd)
	}

	mpl := msg.MaxPayloadLength(pver)
	if uint32(lenp) > mpl {
		return fmt.Errorf("message payload is too large - encoded %d bytes, but maximum message payload is %d bytes", lenp, mpl)
	}
	if uint32(lenp) > MaxMessagePayload {
		return fmt.Errorf("message payload is too large - encoded %d bytes, but maximum message payload is %d bytes", lenp, MaxMessagePayload)
	}

	var hdrBuf bytes.Buffer
	var bs binarySerializer
	if err := writeElement(&hdrBuf, &bs, uint32(btcnet)); err != nil {
		return err
	}
	var command [CommandSize]byte
	copy(command[:], cmd)
	if _, err := hdrBuf.Write(command[:]); err != nil {
		return err
	}
	if err := writeElement(&hdrBuf, &bs, uint32(lenp)); err != nil {
		return err
	}
	chksum := checksum(payload)
	if _, err := hdrBuf.Write(chksum[:]); err != nil {
		return err
	}

	if _, err := w.Write(hdrBuf.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadMessage reads a complete message envelope from r, rejecting
// oversized payloads and bad checksums per §4.1. Unknown commands are
// returned as (nil, rawPayload, nil) so the caller may log and discard
// instead of erroring the connection.
func ReadMessage(r io.Reader, pver uint32, btcnet BitcoinNet) (Message, []byte, error) {
	n, hdr, err := readMessageHeader(r)
	if err != nil {
		return nil, nil, err
	}
	_ = n

	if hdr.magic != btcnet {
		return nil, nil, fmt.Errorf("message from other network [%v]", hdr.magic)
	}
	for _, b := range []byte(hdr.command) {
		if b < 0x20 || b > 0x7e {
			return nil, nil, fmt.Errorf("invalid command byte: %v", b)
		}
	}
	if hdr.length > MaxMessagePayload {
		return nil, nil, fmt.Errorf("message payload is too large - header indicates %d bytes, but max message payload is %d bytes", hdr.length, MaxMessagePayload)
	}

	payload := make([]byte, hdr.length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, nil, err
	}

	checksum := checksum(payload)
	if !bytes.Equal(checksum[:], hdr.checksum[:]) {
		return nil, nil, fmt.Errorf("payload checksum failed - header indicates %x, but actual checksum is %x", hdr.checksum, checksum)
	}

	msg, err := makeEmptyMessage(hdr.command)
	if err != nil {
		// Unknown command: logged and discarded by the caller, not a
		// transport error.
		return nil, payload, nil
	}

	mpl := msg.MaxPayloadLength(pver)
	if hdr.length > mpl {
		return nil, nil, fmt.Errorf("payload exceeds max length for command %q: %d > %d", hdr.command, hdr.length, mpl)
	}

	if err := msg.BtcDecode(bytes.NewReader(payload), pver); err != nil {
		return nil, nil, err
	}
	return msg, payload, nil
}

func checksum(payload []byte) [4]byte {
	first := chainhash.DoubleHashB(payload)
	var out [4]byte
	copy(out[:], first[:4])
	return out
}
