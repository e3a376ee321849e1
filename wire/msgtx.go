// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/btcrelay/corenode/chainutil"
)

// MaxTxInPerMessage and MaxTxOutPerMessage bound the number of inputs and
// outputs a single transaction can declare, sized so that even the minimum
// possible per-entry encoding could not exceed MaxMessagePayload.
const (
	MaxTxInPerMessage  = MaxMessagePayload/41 + 1
	MaxTxOutPerMessage = MaxMessagePayload/9 + 1
)

// MaxScriptSize is the largest script (signature or public key) this
// package will read. Script interpretation itself is out of scope; this
// package only carries scripts as opaque bytes far enough to compute
// transaction hashes and relay them unmodified.
const MaxScriptSize = 10000

// OutPoint identifies a specific output of a specific previous transaction.
type OutPoint struct {
	Hash  chainutil.Hash256
	Index uint32
}

// NewOutPoint returns a new OutPoint for the given hash and index.
func NewOutPoint(hash *chainutil.Hash256, index uint32) *OutPoint {
	return &OutPoint{Hash: *hash, Index: index}
}

func (o OutPoint) String() string {
	return o.Hash.String()
}

// TxIn defines a transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
}

// SerializeSize returns the number of bytes TxIn occupies on the wire.
func (t *TxIn) SerializeSize() int {
	return chainutil.HashSize + 4 + VarIntSerializeSize(uint64(len(t.SignatureScript))) +
		len(t.SignatureScript) + 4
}

// TxOut defines a transaction output.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// SerializeSize returns the number of bytes TxOut occupies on the wire.
func (t *TxOut) SerializeSize() int {
	return 8 + VarIntSerializeSize(uint64(len(t.PkScript))) + len(t.PkScript)
}

// NewTxOut returns a new TxOut for the given value and pubkey script.
func NewTxOut(value int64, pkScript []byte) *TxOut {
	return &TxOut{Value: value, PkScript: pkScript}
}

// MsgTx implements the Message interface and represents a transaction.
// Scripts are carried as opaque byte slices: this package validates neither
// signatures nor script semantics, only wire shape and the hashes derived
// from it; script interpretation is out of scope for this package.
type MsgTx struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// NewMsgTx returns a new, empty transaction with the given version.
func NewMsgTx(version int32) *MsgTx {
	return &MsgTx{Version: version}
}

func (msg *MsgTx) AddTxIn(ti *TxIn)   { msg.TxIn = append(msg.TxIn, ti) }
func (msg *MsgTx) AddTxOut(to *TxOut) { msg.TxOut = append(msg.TxOut, to) }

// TxHash computes the double-SHA256 identifier of the serialized
// transaction.
func (msg *MsgTx) TxHash() chainutil.Hash256 {
	var buf bytes.Buffer
	_ = msg.BtcEncode(&buf, ProtocolVersion)
	return chainutil.DoubleSHA256(buf.Bytes())
}

func readOutPoint(r io.Reader, op *OutPoint) error {
	if _, err := io.ReadFull(r, op.Hash[:]); err != nil {
		return messageError("readOutPoint", "unexpected EOF reading hash")
	}
	var idx [4]byte
	if _, err := io.ReadFull(r, idx[:]); err != nil {
		return messageError("readOutPoint", "unexpected EOF reading index")
	}
	op.Index = binary.LittleEndian.Uint32(idx[:])
	return nil
}

func writeOutPoint(w io.Writer, op *OutPoint) error {
	if _, err := w.Write(op.Hash[:]); err != nil {
		return err
	}
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], op.Index)
	_, err := w.Write(idx[:])
	return err
}

func readTxIn(r io.Reader, ti *TxIn) error {
	if err := readOutPoint(r, &ti.PreviousOutPoint); err != nil {
		return err
	}
	script, err := ReadVarBytes(r, MaxScriptSize, "signature script")
	if err != nil {
		return err
	}
	ti.SignatureScript = script

	var seq [4]byte
	if _, err := io.ReadFull(r, seq[:]); err != nil {
		return messageError("readTxIn", "unexpected EOF reading sequence")
	}
	ti.Sequence = binary.LittleEndian.Uint32(seq[:])
	return nil
}

func writeTxIn(w io.Writer, ti *TxIn) error {
	if err := writeOutPoint(w, &ti.PreviousOutPoint); err != nil {
		return err
	}
	if err := WriteVarBytes(w, ti.SignatureScript); err != nil {
		return err
	}
	var seq [4]byte
	binary.LittleEndian.PutUint32(seq[:], ti.Sequence)
	_, err := w.Write(seq[:])
	return err
}

func readTxOut(r io.Reader, to *TxOut) error {
	var val [8]byte
	if _, err := io.ReadFull(r, val[:]); err != nil {
		return messageError("readTxOut", "unexpected EOF reading value")
	}
	to.Value = int64(binary.LittleEndian.Uint64(val[:]))

	script, err := ReadVarBytes(r, MaxScriptSize, "pubkey script")
	if err != nil {
		return err
	}
	to.PkScript = script
	return nil
}

func writeTxOut(w io.Writer, to *TxOut) error {
	var val [8]byte
	binary.LittleEndian.PutUint64(val[:], uint64(to.Value))
	if _, err := w.Write(val[:]); err != nil {
		return err
	}
	return WriteVarBytes(w, to.PkScript)
}

func (msg *MsgTx) BtcDecode(r io.Reader, pver uint32) error {
	var verBuf [4]byte
	if _, err := io.ReadFull(r, verBuf[:]); err != nil {
		return messageError("MsgTx.BtcDecode", "unexpected EOF reading version")
	}
	msg.Version = int32(binary.LittleEndian.Uint32(verBuf[:]))

	inCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if inCount > MaxTxInPerMessage {
		return messageError("MsgTx.BtcDecode", "too many transaction inputs")
	}
	msg.TxIn = make([]*TxIn, inCount)
	for i := uint64(0); i < inCount; i++ {
		ti := &TxIn{}
		if err := readTxIn(r, ti); err != nil {
			return err
		}
		msg.TxIn[i] = ti
	}

	outCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if outCount > MaxTxOutPerMessage {
		return messageError("MsgTx.BtcDecode", "too many transaction outputs")
	}
	msg.TxOut = make([]*TxOut, outCount)
	for i := uint64(0); i < outCount; i++ {
		to := &TxOut{}
		if err := readTxOut(r, to); err != nil {
			return err
		}
		msg.TxOut[i] = to
	}

	var lockBuf [4]byte
	if _, err := io.ReadFull(r, lockBuf[:]); err != nil {
		return messageError("MsgTx.BtcDecode", "unexpected EOF reading locktime")
	}
	msg.LockTime = binary.LittleEndian.Uint32(lockBuf[:])
	return nil
}

func (msg *MsgTx) BtcEncode(w io.Writer, pver uint32) error {
	var verBuf [4]byte
	binary.LittleEndian.PutUint32(verBuf[:], uint32(msg.Version))
	if _, err := w.Write(verBuf[:]); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(msg.TxIn))); err != nil {
		return err
	}
	for _, ti := range msg.TxIn {
		if err := writeTxIn(w, ti); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, uint64(len(msg.TxOut))); err != nil {
		return err
	}
	for _, to := range msg.TxOut {
		if err := writeTxOut(w, to); err != nil {
			return err
		}
	}

	var lockBuf [4]byte
	binary.LittleEndian.PutUint32(lockBuf[:], msg.LockTime)
	_, err := w.Write(lockBuf[:])
	return err
}

func (msg *MsgTx) Command() string { return CmdTx }

func (msg *MsgTx) MaxPayloadLength(pver uint32) uint32 {
	return MaxMessagePayload
}
