// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"

	"github.com/btcrelay/corenode/chainutil"
)

// MaxFlagsPerMerkleBlock bounds the flag bitmap carried in a merkleblock
// message; one bit per tree node visited, which cannot exceed roughly
// 2*txCount bits even for a maximally unbalanced tree.
const MaxFlagsPerMerkleBlock = MaxBlockPayload / 8

// MsgMerkleBlock implements the Message interface and carries a block
// header plus a BIP37 partial Merkle tree proving which of the block's
// transactions matched a peer's bloom filter.
// Matching and tree construction live in the bloom package; this type
// only carries the wire encoding of the result.
type MsgMerkleBlock struct {
	Header       BlockHeader
	Transactions uint32
	Hashes       []chainutil.Hash256
	Flags        []byte
}

func NewMsgMerkleBlock(header *BlockHeader) *MsgMerkleBlock {
	return &MsgMerkleBlock{Header: *header}
}

func (m *MsgMerkleBlock) AddTxHash(hash chainutil.Hash256) error {
	if len(m.Hashes)+1 > MaxHeadersPerMsg*2 {
		return messageError("MsgMerkleBlock.AddTxHash", "too many hashes")
	}
	m.Hashes = append(m.Hashes, hash)
	return nil
}

func (m *MsgMerkleBlock) BtcDecode(r io.Reader, pver uint32) error {
	if err := readBlockHeader(r, &m.Header); err != nil {
		return err
	}

	var txBuf [4]byte
	if _, err := io.ReadFull(r, txBuf[:]); err != nil {
		return messageError("MsgMerkleBlock.BtcDecode", "unexpected EOF reading tx count")
	}
	m.Transactions = binary.LittleEndian.Uint32(txBuf[:])

	hashCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if hashCount > uint64(MaxHeadersPerMsg*2) {
		return messageError("MsgMerkleBlock.BtcDecode", "too many hashes")
	}
	m.Hashes = make([]chainutil.Hash256, hashCount)
	for i := uint64(0); i < hashCount; i++ {
		if _, err := io.ReadFull(r, m.Hashes[i][:]); err != nil {
			return messageError("MsgMerkleBlock.BtcDecode", "unexpected EOF reading hash")
		}
	}

	flags, err := ReadVarBytes(r, MaxFlagsPerMerkleBlock, "flags")
	if err != nil {
		return err
	}
	m.Flags = flags
	return nil
}

func (m *MsgMerkleBlock) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeBlockHeader(w, &m.Header); err != nil {
		return err
	}

	var txBuf [4]byte
	binary.LittleEndian.PutUint32(txBuf[:], m.Transactions)
	if _, err := w.Write(txBuf[:]); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(m.Hashes))); err != nil {
		return err
	}
	for _, h := range m.Hashes {
		if _, err := w.Write(h[:]); err != nil {
			return err
		}
	}

	return WriteVarBytes(w, m.Flags)
}

func (m *MsgMerkleBlock) Command() string { return CmdMerkleBlock }

func (m *MsgMerkleBlock) MaxPayloadLength(pver uint32) uint32 {
	return MaxBlockPayload
}
