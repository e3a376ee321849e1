// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"
	"time"
)

// MaxUserAgentLen is the maximum allowed length for the user agent field in
// a version message.
const MaxUserAgentLen = 256

// DefaultUserAgent is this implementation's advertised user agent.
const DefaultUserAgent = "/corenode:0.1.0/"

// MsgVersion implements the Message interface and is exchanged as the first
// message of the connection handshake.
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

// NewMsgVersion returns a version message populated with the given fields
// and this package's default protocol version and user agent.
func NewMsgVersion(me, you *NetAddress, nonce uint64, lastBlock int32) *MsgVersion {
	return &MsgVersion{
		ProtocolVersion: int32(ProtocolVersion),
		Services:        0,
		Timestamp:       time.Unix(time.Now().Unix(), 0),
		AddrYou:         *you,
		AddrMe:          *me,
		Nonce:           nonce,
		UserAgent:       DefaultUserAgent,
		LastBlock:       lastBlock,
		DisableRelayTx:  false,
	}
}

// AddUserAgent appends a component to the message's user agent string in
// the conventional "/name:version/" form.
func (m *MsgVersion) AddUserAgent(name, version string) {
	m.UserAgent = m.UserAgent[:len(m.UserAgent)-1] + "/" + name + ":" + version + "/"
	if m.UserAgent[0] != '/' {
		m.UserAgent = "/" + m.UserAgent
	}
}

func (m *MsgVersion) BtcDecode(r io.Reader, pver uint32) error {
	var buf [4 + 8 + 8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return messageError("MsgVersion.BtcDecode", "unexpected EOF")
	}
	m.ProtocolVersion = int32(binary.LittleEndian.Uint32(buf[0:4]))
	m.Services = ServiceFlag(binary.LittleEndian.Uint64(buf[4:12]))
	m.Timestamp = time.Unix(int64(binary.LittleEndian.Uint64(buf[12:20])), 0)

	if err := readNetAddress(r, &m.AddrYou, false); err != nil {
		return err
	}

	// Only present from version 106 onward; this implementation always
	// speaks a protocol version newer than that, so it is unconditional.
	if err := readNetAddress(r, &m.AddrMe, false); err != nil {
		return err
	}

	var nonceBuf [8]byte
	if _, err := io.ReadFull(r, nonceBuf[:]); err != nil {
		return messageError("MsgVersion.BtcDecode", "unexpected EOF reading nonce")
	}
	m.Nonce = binary.LittleEndian.Uint64(nonceBuf[:])

	userAgent, err := ReadVarString(r, MaxUserAgentLen)
	if err != nil {
		return err
	}
	m.UserAgent = userAgent

	var lastBlockBuf [4]byte
	if _, err := io.ReadFull(r, lastBlockBuf[:]); err != nil {
		return messageError("MsgVersion.BtcDecode", "unexpected EOF reading last block")
	}
	m.LastBlock = int32(binary.LittleEndian.Uint32(lastBlockBuf[:]))

	if m.ProtocolVersion >= int32(BIP0037Version) {
		var relay [1]byte
		if _, err := io.ReadFull(r, relay[:]); err == nil {
			m.DisableRelayTx = relay[0] == 0
		}
	}

	return nil
}

func (m *MsgVersion) BtcEncode(w io.Writer, pver uint32) error {
	var buf [4 + 8 + 8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.ProtocolVersion))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(m.Services))
	binary.LittleEndian.PutUint64(buf[12:20], uint64(m.Timestamp.Unix()))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}

	if err := writeNetAddress(w, &m.AddrYou, false); err != nil {
		return err
	}
	if err := writeNetAddress(w, &m.AddrMe, false); err != nil {
		return err
	}

	var nonceBuf [8]byte
	binary.LittleEndian.PutUint64(nonceBuf[:], m.Nonce)
	if _, err := w.Write(nonceBuf[:]); err != nil {
		return err
	}

	if len(m.UserAgent) > MaxUserAgentLen {
		return messageError("MsgVersion.BtcEncode", "user agent too long")
	}
	if err := WriteVarString(w, m.UserAgent); err != nil {
		return err
	}

	var lastBlockBuf [4]byte
	binary.LittleEndian.PutUint32(lastBlockBuf[:], uint32(m.LastBlock))
	if _, err := w.Write(lastBlockBuf[:]); err != nil {
		return err
	}

	relay := byte(1)
	if m.DisableRelayTx {
		relay = 0
	}
	_, err := w.Write([]byte{relay})
	return err
}

func (m *MsgVersion) Command() string { return CmdVersion }

func (m *MsgVersion) MaxPayloadLength(pver uint32) uint32 {
	return 4 + 8 + 8 + MaxNetAddressPayload(pver)*2 + 8 + uint32(VarIntSerializeSize(MaxUserAgentLen)) + MaxUserAgentLen + 4 + 1
}

// MsgVerAck implements the Message interface and acknowledges receipt and
// acceptance of a peer's version message.
type MsgVerAck struct{}

func (m *MsgVerAck) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (m *MsgVerAck) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (m *MsgVerAck) Command() string                          { return CmdVerAck }
func (m *MsgVerAck) MaxPayloadLength(pver uint32) uint32       { return 0 }

// MsgGetAddr implements the Message interface and requests a list of known
// active peers.
type MsgGetAddr struct{}

func (m *MsgGetAddr) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (m *MsgGetAddr) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (m *MsgGetAddr) Command() string                          { return CmdGetAddr }
func (m *MsgGetAddr) MaxPayloadLength(pver uint32) uint32       { return 0 }
