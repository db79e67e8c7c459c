// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/kyoto-spv/kyoto/wire"
)

// encodeMessageBody serializes msg as a command string (NUL-padded to
// wire.CommandSize) followed by its BtcEncode payload. The v1 envelope's
// magic and checksum exist to delimit messages on a plain TCP stream;
// the v2 transport's AEAD framing already does both, so carrying them
// again would be redundant (§4.2).
func encodeMessageBody(msg wire.Message, pver uint32) ([]byte, error) {
	var buf bytes.Buffer
	var cmd [wire.CommandSize]byte
	command := msg.Command()
	if len(command) > wire.CommandSize {
		return nil, fmt.Errorf("command %q exceeds %d bytes", command, wire.CommandSize)
	}
	copy(cmd[:], command)
	if _, err := buf.Write(cmd[:]); err != nil {
		return nil, err
	}
	if err := msg.BtcEncode(&buf, pver); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeMessageBody is the inverse of encodeMessageBody.
func decodeMessageBody(data []byte, pver uint32, btcnet wire.BitcoinNet) (wire.Message, error) {
	_ = btcnet
	if len(data) < wire.CommandSize {
		return nil, io.ErrUnexpectedEOF
	}
	command := commandFromBytes(data[:wire.CommandSize])
	msg, err := emptyMessageFor(command)
	if err != nil {
		return nil, err
	}
	if err := msg.BtcDecode(bytes.NewReader(data[wire.CommandSize:]), pver); err != nil {
		return nil, err
	}
	return msg, nil
}

func commandFromBytes(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		i = len(b)
	}
	return string(b[:i])
}

// emptyMessageFor mirrors the v1 codec's command dispatch (wire's
// unexported makeEmptyMessage) and covers the same commands.
func emptyMessageFor(command string) (wire.Message, error) {
	switch command {
	case wire.CmdVersion:
		return &wire.MsgVersion{}, nil
	case wire.CmdVerAck:
		return &wire.MsgVerAck{}, nil
	case wire.CmdPing:
		return &wire.MsgPing{}, nil
	case wire.CmdPong:
		return &wire.MsgPong{}, nil
	case wire.CmdAddr:
		return &wire.MsgAddr{}, nil
	case wire.CmdAddrV2:
		return &wire.MsgAddrV2{}, nil
	case wire.CmdSendAddrV2:
		return &wire.MsgSendAddrV2{}, nil
	case wire.CmdGetHeaders:
		return &wire.MsgGetHeaders{}, nil
	case wire.CmdHeaders:
		return &wire.MsgHeaders{}, nil
	case wire.CmdGetCFHeaders:
		return &wire.MsgGetCFHeaders{}, nil
	case wire.CmdCFHeaders:
		return &wire.MsgCFHeaders{}, nil
	case wire.CmdGetCFilters:
		return &wire.MsgGetCFilters{}, nil
	case wire.CmdCFilter:
		return &wire.MsgCFilter{}, nil
	case wire.CmdGetData:
		return &wire.MsgGetData{}, nil
	case wire.CmdBlock:
		return &wire.MsgBlock{}, nil
	case wire.CmdTx:
		return &wire.MsgTx{}, nil
	case wire.CmdInv:
		return &wire.MsgInv{}, nil
	case wire.CmdFeeFilter:
		return &wire.MsgFeeFilter{}, nil
	case wire.CmdReject:
		return &wire.MsgReject{}, nil
	case wire.CmdSendCmpct:
		return &wire.MsgSendCmpct{}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", command)
	}
}
