// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"
)

// MsgPing implements the Message interface and is used to measure a peer's
// latency and confirm its liveness.
type MsgPing struct {
	Nonce uint64
}

func NewMsgPing(nonce uint64) *MsgPing {
	return &MsgPing{Nonce: nonce}
}

func (m *MsgPing) BtcDecode(r io.Reader, pver uint32) error {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return messageError("MsgPing.BtcDecode", "unexpected EOF")
	}
	m.Nonce = binary.LittleEndian.Uint64(buf[:])
	return nil
}

func (m *MsgPing) BtcEncode(w io.Writer, pver uint32) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], m.Nonce)
	_, err := w.Write(buf[:])
	return err
}

func (m *MsgPing) Command() string                    { return CmdPing }
func (m *MsgPing) MaxPayloadLength(pver uint32) uint32 { return 8 }

// MsgPong implements the Message interface and echoes the nonce from a
// received MsgPing.
type MsgPong struct {
	Nonce uint64
}

func NewMsgPong(nonce uint64) *MsgPong {
	return &MsgPong{Nonce: nonce}
}

func (m *MsgPong) BtcDecode(r io.Reader, pver uint32) error {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return messageError("MsgPong.BtcDecode", "unexpected EOF")
	}
	m.Nonce = binary.LittleEndian.Uint64(buf[:])
	return nil
}

func (m *MsgPong) BtcEncode(w io.Writer, pver uint32) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], m.Nonce)
	_, err := w.Write(buf[:])
	return err
}

func (m *MsgPong) Command() string                    { return CmdPong }
func (m *MsgPong) MaxPayloadLength(pver uint32) uint32 { return 8 }
