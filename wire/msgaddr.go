// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
)

// MaxAddrPerMsg is the maximum number of addresses the reference
// implementation permits in a single addr message.
const MaxAddrPerMsg = 1000

// MsgAddr implements the Message interface and carries a batch of known
// peer addresses, gossiped in response to getaddr or broadcast
// periodically.
type MsgAddr struct {
	AddrList []*NetAddress
}

// NewMsgAddr returns a new, empty MsgAddr ready to have addresses added.
func NewMsgAddr() *MsgAddr {
	return &MsgAddr{AddrList: make([]*NetAddress, 0, MaxAddrPerMsg)}
}

// AddAddress adds a single address to the message, enforcing the per-message
// cap.
func (m *MsgAddr) AddAddress(na *NetAddress) error {
	if len(m.AddrList)+1 > MaxAddrPerMsg {
		return messageError("MsgAddr.AddAddress", "too many addresses")
	}
	m.AddrList = append(m.AddrList, na)
	return nil
}

func (m *MsgAddr) BtcDecode(r io.Reader, pver uint32) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxAddrPerMsg {
		return messageError("MsgAddr.BtcDecode", "too many addresses")
	}
	m.AddrList = make([]*NetAddress, 0, count)
	for i := uint64(0); i < count; i++ {
		na := &NetAddress{}
		if err := readNetAddress(r, na, true); err != nil {
			return err
		}
		m.AddrList = append(m.AddrList, na)
	}
	return nil
}

func (m *MsgAddr) BtcEncode(w io.Writer, pver uint32) error {
	if len(m.AddrList) > MaxAddrPerMsg {
		return messageError("MsgAddr.BtcEncode", "too many addresses")
	}
	if err := WriteVarInt(w, uint64(len(m.AddrList))); err != nil {
		return err
	}
	for _, na := range m.AddrList {
		if err := writeNetAddress(w, na, true); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgAddr) Command() string { return CmdAddr }

func (m *MsgAddr) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxAddrPerMsg)) + MaxAddrPerMsg*MaxNetAddressPayload(pver)
}
