// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"
)

// MsgMemPool implements the Message interface and requests an inv of the
// peer's mempool contents (BIP35).
type MsgMemPool struct{}

func (m *MsgMemPool) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (m *MsgMemPool) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (m *MsgMemPool) Command() string                          { return CmdMemPool }
func (m *MsgMemPool) MaxPayloadLength(pver uint32) uint32       { return 0 }

// MsgSendHeaders implements the Message interface. Sending it asks the
// peer to announce new blocks via a headers message instead of an inv,
// saving a getheaders round trip.
type MsgSendHeaders struct{}

func (m *MsgSendHeaders) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (m *MsgSendHeaders) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (m *MsgSendHeaders) Command() string                          { return CmdSendHeaders }
func (m *MsgSendHeaders) MaxPayloadLength(pver uint32) uint32       { return 0 }

// MsgFeeFilter implements the Message interface and asks the peer not to
// announce transactions below MinFee (in satoshis per kilobyte).
type MsgFeeFilter struct {
	MinFee int64
}

func (m *MsgFeeFilter) BtcDecode(r io.Reader, pver uint32) error {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return messageError("MsgFeeFilter.BtcDecode", "unexpected EOF")
	}
	m.MinFee = int64(binary.LittleEndian.Uint64(buf[:]))
	return nil
}

func (m *MsgFeeFilter) BtcEncode(w io.Writer, pver uint32) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(m.MinFee))
	_, err := w.Write(buf[:])
	return err
}

func (m *MsgFeeFilter) Command() string                    { return CmdFeeFilter }
func (m *MsgFeeFilter) MaxPayloadLength(pver uint32) uint32 { return 8 }

// RejectCode represents a reason a peer rejected a message, per the
// now-deprecated but still-implemented reject message.
type RejectCode uint8

const (
	RejectMalformed       RejectCode = 0x01
	RejectInvalid         RejectCode = 0x10
	RejectObsolete        RejectCode = 0x11
	RejectDuplicate       RejectCode = 0x12
	RejectNonstandard     RejectCode = 0x40
	RejectDust            RejectCode = 0x41
	RejectInsufficientFee RejectCode = 0x42
	RejectCheckpoint      RejectCode = 0x43
)

// MaxRejectReasonLen bounds the human-readable reason string in a reject
// message.
const MaxRejectReasonLen = 250

// MsgReject implements the Message interface and tells a peer why a prior
// message of theirs was rejected.
type MsgReject struct {
	Cmd    string
	Code   RejectCode
	Reason string
	Hash   [32]byte
}

func (m *MsgReject) BtcDecode(r io.Reader, pver uint32) error {
	cmd, err := ReadVarString(r, CommandSize*4)
	if err != nil {
		return err
	}
	m.Cmd = cmd

	var code [1]byte
	if _, err := io.ReadFull(r, code[:]); err != nil {
		return messageError("MsgReject.BtcDecode", "unexpected EOF reading code")
	}
	m.Code = RejectCode(code[0])

	reason, err := ReadVarString(r, MaxRejectReasonLen)
	if err != nil {
		return err
	}
	m.Reason = reason

	if m.Cmd == CmdBlock || m.Cmd == CmdTx {
		if _, err := io.ReadFull(r, m.Hash[:]); err != nil {
			return messageError("MsgReject.BtcDecode", "unexpected EOF reading hash")
		}
	}
	return nil
}

func (m *MsgReject) BtcEncode(w io.Writer, pver uint32) error {
	if err := WriteVarString(w, m.Cmd); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(m.Code)}); err != nil {
		return err
	}
	if err := WriteVarString(w, m.Reason); err != nil {
		return err
	}
	if m.Cmd == CmdBlock || m.Cmd == CmdTx {
		if _, err := w.Write(m.Hash[:]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgReject) Command() string { return CmdReject }

func (m *MsgReject) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(CommandSize*4)) + CommandSize*4 + 1 +
		uint32(VarIntSerializeSize(MaxRejectReasonLen)) + MaxRejectReasonLen + 32
}
