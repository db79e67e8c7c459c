// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxVarIntPayload is the maximum payload size for a variable length
// integer.
const MaxVarIntPayload = 9

// errNonCanonicalVarInt is returned when a variable length integer is
// encoded in a non-canonical (over-long) form.
var errNonCanonicalVarInt = fmt.Errorf("non-canonical varint")

// binarySerializer is reused across calls to avoid per-call allocation of
// the small scratch buffer every integer read/write needs.
type binarySerializer [8]byte

func (b *binarySerializer) Uint16(r io.Reader, order binary.ByteOrder) (uint16, error) {
	if _, err := io.ReadFull(r, b[:2]); err != nil {
		return 0, err
	}
	return order.Uint16(b[:2]), nil
}

func (b *binarySerializer) Uint32(r io.Reader, order binary.ByteOrder) (uint32, error) {
	if _, err := io.ReadFull(r, b[:4]); err != nil {
		return 0, err
	}
	return order.Uint32(b[:4]), nil
}

func (b *binarySerializer) Uint64(r io.Reader, order binary.ByteOrder) (uint64, error) {
	if _, err := io.ReadFull(r, b[:8]); err != nil {
		return 0, err
	}
	return order.Uint64(b[:8]), nil
}

func (b *binarySerializer) PutUint16(w io.Writer, order binary.ByteOrder, v uint16) error {
	order.PutUint16(b[:2], v)
	_, err := w.Write(b[:2])
	return err
}

func (b *binarySerializer) PutUint32(w io.Writer, order binary.ByteOrder, v uint32) error {
	order.PutUint32(b[:4], v)
	_, err := w.Write(b[:4])
	return err
}

func (b *binarySerializer) PutUint64(w io.Writer, order binary.ByteOrder, v uint64) error {
	order.PutUint64(b[:8], v)
	_, err := w.Write(b[:8])
	return err
}

var littleEndian = binary.LittleEndian

func readElement(r io.Reader, buf *binarySerializer, element interface{}) error {
	switch e := element.(type) {
	case *bool:
		if _, err := io.ReadFull(r, buf[:1]); err != nil {
			return err
		}
		*e = buf[0] != 0
		return nil
	case *int32:
		v, err := buf.Uint32(r, littleEndian)
		if err != nil {
			return err
		}
		*e = int32(v)
		return nil
	case *uint32:
		v, err := buf.Uint32(r, littleEndian)
		if err != nil {
			return err
		}
		*e = v
		return nil
	case *int64:
		v, err := buf.Uint64(r, littleEndian)
		if err != nil {
			return err
		}
		*e = int64(v)
		return nil
	case *uint64:
		v, err := buf.Uint64(r, littleEndian)
		if err != nil {
			return err
		}
		*e = v
		return nil
	case *ServiceFlag:
		v, err := buf.Uint64(r, littleEndian)
		if err != nil {
			return err
		}
		*e = ServiceFlag(v)
		return nil
	case *BitcoinNet:
		v, err := buf.Uint32(r, littleEndian)
		if err != nil {
			return err
		}
		*e = BitcoinNet(v)
		return nil
	}
	return binary.Read(r, littleEndian, element)
}

func writeElement(w io.Writer, buf *binarySerializer, element interface{}) error {
	switch e := element.(type) {
	case bool:
		buf[0] = 0
		if e {
			buf[0] = 1
		}
		_, err := w.Write(buf[:1])
		return err
	case int32:
		return buf.PutUint32(w, littleEndian, uint32(e))
	case uint32:
		return buf.PutUint32(w, littleEndian, e)
	case int64:
		return buf.PutUint64(w, littleEndian, uint64(e))
	case uint64:
		return buf.PutUint64(w, littleEndian, e)
	case ServiceFlag:
		return buf.PutUint64(w, littleEndian, uint64(e))
	case BitcoinNet:
		return buf.PutUint32(w, littleEndian, uint32(e))
	}
	return binary.Write(w, littleEndian, element)
}

// ReadVarInt reads a variable length integer from r and returns it as a
// uint64, rejecting non-canonical (over-long) encodings.
func ReadVarInt(r io.Reader, buf *binarySerializer) (uint64, error) {
	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return 0, err
	}
	discriminant := buf[0]

	var rv uint64
	switch discriminant {
	case 0xff:
		sv, err := buf.Uint64(r, littleEndian)
		if err != nil {
			return 0, err
		}
		rv = sv
		if rv < 0x100000000 {
			return 0, errNonCanonicalVarInt
		}
	case 0xfe:
		sv, err := buf.Uint32(r, littleEndian)
		if err != nil {
			return 0, err
		}
		rv = uint64(sv)
		if rv < 0x10000 {
			return 0, errNonCanonicalVarInt
		}
	case 0xfd:
		sv, err := buf.Uint16(r, littleEndian)
		if err != nil {
			return 0, err
		}
		rv = uint64(sv)
		if rv < 0xfd {
			return 0, errNonCanonicalVarInt
		}
	default:
		rv = uint64(discriminant)
	}
	return rv, nil
}

// WriteVarInt writes val to w using the minimal canonical encoding.
func WriteVarInt(w io.Writer, buf *binarySerializer, val uint64) error {
	if val < 0xfd {
		_, err := w.Write([]byte{uint8(val)})
		return err
	}
	if val <= 0xffff {
		buf[0] = 0xfd
		if _, err := w.Write(buf[:1]); err != nil {
			return err
		}
		return buf.PutUint16(w, littleEndian, uint16(val))
	}
	if val <= 0xffffffff {
		buf[0] = 0xfe
		if _, err := w.Write(buf[:1]); err != nil {
			return err
		}
		return buf.PutUint32(w, littleEndian, uint32(val))
	}
	buf[0] = 0xff
	if _, err := w.Write(buf[:1]); err != nil {
		return err
	}
	return buf.PutUint64(w, littleEndian, val)
}

// VarIntSerializeSize returns the number of bytes val would occupy when
// serialized as a variable length integer.
func VarIntSerializeSize(val uint64) int {
	switch {
	case val < 0xfd:
		return 1
	case val <= 0xffff:
		return 3
	case val <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// ReadVarString reads a variable length string: a varint length prefix
// followed by that many bytes of UTF-8-ish text.
func ReadVarString(r io.Reader, buf *binarySerializer) (string, error) {
	n, err := ReadVarInt(r, buf)
	if err != nil {
		return "", err
	}
	if n > MaxMessagePayload {
		return "", fmt.Errorf("varstring too long: %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteVarString writes s as a variable length string.
func WriteVarString(w io.Writer, buf *binarySerializer, s string) error {
	if err := WriteVarInt(w, buf, uint64(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

// ReadVarBytes reads a variable length byte slice, rejecting anything
// larger than maxAllowed (the caller knows the message-specific cap).
func ReadVarBytes(r io.Reader, buf *binarySerializer, maxAllowed uint32, fieldName string) ([]byte, error) {
	n, err := ReadVarInt(r, buf)
	if err != nil {
		return nil, err
	}
	if n > uint64(maxAllowed) {
		return nil, fmt.Errorf("%s is larger than the max allowed size [count %d, max %d]", fieldName, n, maxAllowed)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteVarBytes writes b as a variable length byte slice.
func WriteVarBytes(w io.Writer, buf *binarySerializer, b []byte) error {
	if err := WriteVarInt(w, buf, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}
