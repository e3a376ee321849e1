// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgInv implements the Message interface and announces objects a peer has
// or is relaying.
type MsgInv struct {
	InvList []*InvVect
}

func NewMsgInv() *MsgInv {
	return &MsgInv{InvList: make([]*InvVect, 0, defaultInvListAlloc)}
}

func (m *MsgInv) AddInvVect(iv *InvVect) error {
	if len(m.InvList)+1 > MaxInvPerMsg {
		return messageError("MsgInv.AddInvVect", "too many inventory vectors")
	}
	m.InvList = append(m.InvList, iv)
	return nil
}

func (m *MsgInv) BtcDecode(r io.Reader, pver uint32) error {
	list, err := readInvList(r)
	if err != nil {
		return err
	}
	m.InvList = list
	return nil
}

func (m *MsgInv) BtcEncode(w io.Writer, pver uint32) error {
	return writeInvList(w, m.InvList)
}

func (m *MsgInv) Command() string                    { return CmdInv }
func (m *MsgInv) MaxPayloadLength(pver uint32) uint32 { return invListMaxPayload() }

const defaultInvListAlloc = 1000

// MsgGetData implements the Message interface and requests the full
// objects (blocks, filtered blocks, transactions) named by an inv.
type MsgGetData struct {
	InvList []*InvVect
}

func NewMsgGetData() *MsgGetData {
	return &MsgGetData{InvList: make([]*InvVect, 0, defaultInvListAlloc)}
}

func (m *MsgGetData) AddInvVect(iv *InvVect) error {
	if len(m.InvList)+1 > MaxInvPerMsg {
		return messageError("MsgGetData.AddInvVect", "too many inventory vectors")
	}
	m.InvList = append(m.InvList, iv)
	return nil
}

func (m *MsgGetData) BtcDecode(r io.Reader, pver uint32) error {
	list, err := readInvList(r)
	if err != nil {
		return err
	}
	m.InvList = list
	return nil
}

func (m *MsgGetData) BtcEncode(w io.Writer, pver uint32) error {
	return writeInvList(w, m.InvList)
}

func (m *MsgGetData) Command() string                    { return CmdGetData }
func (m *MsgGetData) MaxPayloadLength(pver uint32) uint32 { return invListMaxPayload() }

// MsgNotFound implements the Message interface and is the response to a
// getdata request for an object the peer no longer has.
type MsgNotFound struct {
	InvList []*InvVect
}

func NewMsgNotFound() *MsgNotFound {
	return &MsgNotFound{InvList: make([]*InvVect, 0, defaultInvListAlloc)}
}

func (m *MsgNotFound) AddInvVect(iv *InvVect) error {
	if len(m.InvList)+1 > MaxInvPerMsg {
		return messageError("MsgNotFound.AddInvVect", "too many inventory vectors")
	}
	m.InvList = append(m.InvList, iv)
	return nil
}

func (m *MsgNotFound) BtcDecode(r io.Reader, pver uint32) error {
	list, err := readInvList(r)
	if err != nil {
		return err
	}
	m.InvList = list
	return nil
}

func (m *MsgNotFound) BtcEncode(w io.Writer, pver uint32) error {
	return writeInvList(w, m.InvList)
}

func (m *MsgNotFound) Command() string                    { return CmdNotFound }
func (m *MsgNotFound) MaxPayloadLength(pver uint32) uint32 { return invListMaxPayload() }
