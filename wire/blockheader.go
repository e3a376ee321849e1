// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"time"

	"github.com/btcrelay/corenode/chainutil"
)

// BlockHeaderLen is the number of bytes in a serialized block header: 4
// (version) + 32 (prev block) + 32 (merkle root) + 4 (time) + 4 (bits) + 4
// (nonce).
const BlockHeaderLen = 80

// BlockHeader defines the 80-byte header shared by every block and carried
// alone in headers-first synchronization.
type BlockHeader struct {
	// Version is the block version, interpreted bitwise for BIP9 deployment
	// signaling when its top 3 bits read 001.
	Version int32

	// PrevBlock is the hash of the previous block in the chain.
	PrevBlock chainutil.Hash256

	// MerkleRoot commits to every transaction in the block.
	MerkleRoot chainutil.Hash256

	// Timestamp is the block's creation time, encoded on the wire as a
	// uint32 Unix time and therefore limited to the year 2106.
	Timestamp time.Time

	// Bits is the compact-encoded proof-of-work target this block had to
	// satisfy.
	Bits uint32

	// Nonce is the value miners vary to find a header hash under Bits.
	Nonce uint32
}

// BlockHash returns the double-SHA256 identifier of the header.
func (h *BlockHeader) BlockHash() chainutil.Hash256 {
	buf := bytes.NewBuffer(make([]byte, 0, BlockHeaderLen))
	_ = writeBlockHeader(buf, h)
	return chainutil.DoubleSHA256(buf.Bytes())
}

// Serialize encodes the header to w in the canonical 80-byte wire format.
func (h *BlockHeader) Serialize(w io.Writer) error {
	return writeBlockHeader(w, h)
}

// Deserialize decodes a header from r.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	return readBlockHeader(r, h)
}

// CompactTarget returns Bits as a chainutil.CompactTarget for use by the
// validator.
func (h *BlockHeader) CompactTarget() chainutil.CompactTarget {
	return chainutil.CompactTarget(h.Bits)
}

func readBlockHeader(r io.Reader, h *BlockHeader) error {
	var buf [BlockHeaderLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return messageError("readBlockHeader", "unexpected EOF")
	}

	h.Version = int32(littleEndianUint32(buf[0:4]))
	copy(h.PrevBlock[:], buf[4:36])
	copy(h.MerkleRoot[:], buf[36:68])
	h.Timestamp = time.Unix(int64(littleEndianUint32(buf[68:72])), 0)
	h.Bits = littleEndianUint32(buf[72:76])
	h.Nonce = littleEndianUint32(buf[76:80])
	return nil
}

func writeBlockHeader(w io.Writer, h *BlockHeader) error {
	var buf [BlockHeaderLen]byte
	putLittleEndianUint32(buf[0:4], uint32(h.Version))
	copy(buf[4:36], h.PrevBlock[:])
	copy(buf[36:68], h.MerkleRoot[:])
	putLittleEndianUint32(buf[68:72], uint32(h.Timestamp.Unix()))
	putLittleEndianUint32(buf[72:76], h.Bits)
	putLittleEndianUint32(buf[76:80], h.Nonce)
	_, err := w.Write(buf[:])
	return err
}

func littleEndianUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLittleEndianUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// NewBlockHeader returns a BlockHeader built from the given fields with the
// timestamp truncated to one-second precision, as the wire format demands.
func NewBlockHeader(version int32, prevBlock, merkleRoot chainutil.Hash256, bits, nonce uint32) *BlockHeader {
	return &BlockHeader{
		Version:    version,
		PrevBlock:  prevBlock,
		MerkleRoot: merkleRoot,
		Timestamp:  time.Unix(time.Now().Unix(), 0),
		Bits:       bits,
		Nonce:      nonce,
	}
}
