// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/btcrelay/corenode/chainutil"
)

// MaxBlockPayload is the largest a serialized block this package will
// accept can be. It bounds allocation when reading a block message from an
// untrusted peer.
const MaxBlockPayload = 4 * 1024 * 1024

// MsgBlock implements the Message interface and represents a full block:
// a header plus every transaction it commits to via MerkleRoot.
type MsgBlock struct {
	Header       BlockHeader
	Transactions []*MsgTx
}

// NewMsgBlock returns a new block built around the given header.
func NewMsgBlock(header *BlockHeader) *MsgBlock {
	return &MsgBlock{Header: *header}
}

func (msg *MsgBlock) AddTransaction(tx *MsgTx) {
	msg.Transactions = append(msg.Transactions, tx)
}

// BlockHash returns the double-SHA256 identifier of the block's header.
func (msg *MsgBlock) BlockHash() chainutil.Hash256 {
	return msg.Header.BlockHash()
}

// TxHashes returns the hash of every transaction in the block, in order.
func (msg *MsgBlock) TxHashes() []chainutil.Hash256 {
	hashes := make([]chainutil.Hash256, len(msg.Transactions))
	for i, tx := range msg.Transactions {
		hashes[i] = tx.TxHash()
	}
	return hashes
}

func (msg *MsgBlock) BtcDecode(r io.Reader, pver uint32) error {
	if err := readBlockHeader(r, &msg.Header); err != nil {
		return err
	}

	txCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if txCount > MaxTxInPerMessage {
		return messageError("MsgBlock.BtcDecode", "too many transactions")
	}

	msg.Transactions = make([]*MsgTx, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		tx := &MsgTx{}
		if err := tx.BtcDecode(r, pver); err != nil {
			return err
		}
		msg.Transactions = append(msg.Transactions, tx)
	}
	return nil
}

func (msg *MsgBlock) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeBlockHeader(w, &msg.Header); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(msg.Transactions))); err != nil {
		return err
	}
	for _, tx := range msg.Transactions {
		if err := tx.BtcEncode(w, pver); err != nil {
			return err
		}
	}
	return nil
}

// Serialize encodes the full block for storage or relay.
func (msg *MsgBlock) Serialize(w io.Writer) error {
	return msg.BtcEncode(w, ProtocolVersion)
}

// SerializeSize returns the number of bytes the block occupies on the wire.
func (msg *MsgBlock) SerializeSize() int {
	var buf bytes.Buffer
	_ = msg.Serialize(&buf)
	return buf.Len()
}

func (msg *MsgBlock) Command() string { return CmdBlock }

func (msg *MsgBlock) MaxPayloadLength(pver uint32) uint32 {
	return MaxBlockPayload
}
