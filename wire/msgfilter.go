// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"
)

// MaxFilterLoadFilterSize and MaxFilterAddDataSize are BIP37's hard caps on
// bloom filter and element sizes, enforced here so a hostile filterload or
// filteradd cannot force an unbounded allocation.
const (
	MaxFilterLoadFilterSize = 36000
	MaxFilterAddDataSize    = 520
)

// BloomUpdateType describes how a filter is updated when a transaction
// output matches it, per BIP37.
type BloomUpdateType uint8

const (
	BloomUpdateNone BloomUpdateType = iota
	BloomUpdateAll
	BloomUpdateP2PubkeyOnly
)

// MsgFilterLoad implements the Message interface and installs a bloom
// filter on the connection, restricting which transactions and blocks the
// peer will subsequently relay.
type MsgFilterLoad struct {
	Filter    []byte
	HashFuncs uint32
	Tweak     uint32
	Flags     BloomUpdateType
}

func (m *MsgFilterLoad) BtcDecode(r io.Reader, pver uint32) error {
	filter, err := ReadVarBytes(r, MaxFilterLoadFilterSize, "filter")
	if err != nil {
		return err
	}
	m.Filter = filter

	var buf [9]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return messageError("MsgFilterLoad.BtcDecode", "unexpected EOF")
	}
	m.HashFuncs = binary.LittleEndian.Uint32(buf[0:4])
	m.Tweak = binary.LittleEndian.Uint32(buf[4:8])
	m.Flags = BloomUpdateType(buf[8])
	return nil
}

func (m *MsgFilterLoad) BtcEncode(w io.Writer, pver uint32) error {
	if len(m.Filter) > MaxFilterLoadFilterSize {
		return messageError("MsgFilterLoad.BtcEncode", "filter too large")
	}
	if err := WriteVarBytes(w, m.Filter); err != nil {
		return err
	}

	var buf [9]byte
	binary.LittleEndian.PutUint32(buf[0:4], m.HashFuncs)
	binary.LittleEndian.PutUint32(buf[4:8], m.Tweak)
	buf[8] = byte(m.Flags)
	_, err := w.Write(buf[:])
	return err
}

func (m *MsgFilterLoad) Command() string { return CmdFilterLoad }

func (m *MsgFilterLoad) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxFilterLoadFilterSize)) + MaxFilterLoadFilterSize + 9
}

// MsgFilterAdd implements the Message interface and adds a single element
// to an already-installed bloom filter.
type MsgFilterAdd struct {
	Data []byte
}

func (m *MsgFilterAdd) BtcDecode(r io.Reader, pver uint32) error {
	data, err := ReadVarBytes(r, MaxFilterAddDataSize, "data")
	if err != nil {
		return err
	}
	m.Data = data
	return nil
}

func (m *MsgFilterAdd) BtcEncode(w io.Writer, pver uint32) error {
	if len(m.Data) > MaxFilterAddDataSize {
		return messageError("MsgFilterAdd.BtcEncode", "data too large")
	}
	return WriteVarBytes(w, m.Data)
}

func (m *MsgFilterAdd) Command() string { return CmdFilterAdd }

func (m *MsgFilterAdd) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxFilterAddDataSize)) + MaxFilterAddDataSize
}

// MsgFilterClear implements the Message interface and removes any
// previously installed bloom filter, reverting the peer to unfiltered
// relay.
type MsgFilterClear struct{}

func (m *MsgFilterClear) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (m *MsgFilterClear) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (m *MsgFilterClear) Command() string                          { return CmdFilterClear }
func (m *MsgFilterClear) MaxPayloadLength(pver uint32) uint32       { return 0 }
