// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MessageError describes a malformed wire message: an unexpected command,
// a truncated field, or a value outside its protocol-defined range. Peers
// that produce one are dropped by the caller.
type MessageError struct {
	Func        string
	Description string
}

func (e *MessageError) Error() string {
	if e.Func != "" {
		return fmt.Sprintf("%s: %s", e.Func, e.Description)
	}
	return e.Description
}

func messageError(f, desc string) *MessageError {
	return &MessageError{Func: f, Description: desc}
}

// ReadVarInt reads a variable-length integer from r and returns it as a
// uint64: a single byte below 0xfd encodes
// itself; 0xfd, 0xfe, 0xff introduce a 2, 4, or 8-byte little-endian value
// respectively. The canonical-encoding check rejects a value that could have
// been encoded more compactly, matching the reference implementation's
// anti-malleability rule.
func ReadVarInt(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, messageError("ReadVarInt", "unexpected EOF reading prefix")
	}

	var rv uint64
	var minVal uint64
	switch prefix[0] {
	case 0xff:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, messageError("ReadVarInt", "unexpected EOF reading 8-byte value")
		}
		rv = binary.LittleEndian.Uint64(buf[:])
		minVal = 0x100000000
	case 0xfe:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, messageError("ReadVarInt", "unexpected EOF reading 4-byte value")
		}
		rv = uint64(binary.LittleEndian.Uint32(buf[:]))
		minVal = 0x10000
	case 0xfd:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, messageError("ReadVarInt", "unexpected EOF reading 2-byte value")
		}
		rv = uint64(binary.LittleEndian.Uint16(buf[:]))
		minVal = 0xfd
	default:
		return uint64(prefix[0]), nil
	}

	if rv < minVal {
		return 0, messageError("ReadVarInt", "non-canonical varint encoding")
	}
	return rv, nil
}

// WriteVarInt writes val to w using the shortest applicable varint encoding.
func WriteVarInt(w io.Writer, val uint64) error {
	if val < 0xfd {
		_, err := w.Write([]byte{byte(val)})
		return err
	}
	if val <= 0xffff {
		buf := make([]byte, 3)
		buf[0] = 0xfd
		binary.LittleEndian.PutUint16(buf[1:], uint16(val))
		_, err := w.Write(buf)
		return err
	}
	if val <= 0xffffffff {
		buf := make([]byte, 5)
		buf[0] = 0xfe
		binary.LittleEndian.PutUint32(buf[1:], uint32(val))
		_, err := w.Write(buf)
		return err
	}
	buf := make([]byte, 9)
	buf[0] = 0xff
	binary.LittleEndian.PutUint64(buf[1:], val)
	_, err := w.Write(buf)
	return err
}

// VarIntSerializeSize returns the number of bytes WriteVarInt would write
// for val, used to size-prefix payloads before allocating their buffers.
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

// ReadVarBytes reads a varint-prefixed byte slice, rejecting a declared
// length beyond maxAllowed to bound allocation from a hostile peer.
func ReadVarBytes(r io.Reader, maxAllowed uint64, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > maxAllowed {
		return nil, messageError("ReadVarBytes", fmt.Sprintf(
			"%s length %d exceeds max allowed %d", fieldName, count, maxAllowed))
	}
	b := make([]byte, count)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, messageError("ReadVarBytes", fmt.Sprintf("unexpected EOF reading %s", fieldName))
	}
	return b, nil
}

// WriteVarBytes writes a varint length prefix followed by b.
func WriteVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadVarString reads a varint-prefixed string, as used for user agents and
// reject messages.
func ReadVarString(r io.Reader, maxAllowed uint64) (string, error) {
	b, err := ReadVarBytes(r, maxAllowed, "varstring")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteVarString writes a varint-prefixed string.
func WriteVarString(w io.Writer, s string) error {
	return WriteVarBytes(w, []byte(s))
}
