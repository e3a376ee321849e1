// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"

	"github.com/btcrelay/corenode/chainutil"
)

// MaxBlockLocatorsPerMsg is the maximum number of block locator hashes the
// reference implementation permits in a single getblocks or getheaders
// message. The one-per-step-then-doubling geometry of BuildLocator never
// approaches this even for chains many millions of blocks tall.
const MaxBlockLocatorsPerMsg = 500

func readLocatorHashes(r io.Reader) ([]chainutil.Hash256, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > MaxBlockLocatorsPerMsg {
		return nil, messageError("readLocatorHashes", "too many locator hashes")
	}
	hashes := make([]chainutil.Hash256, count)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(r, hashes[i][:]); err != nil {
			return nil, messageError("readLocatorHashes", "unexpected EOF")
		}
	}
	return hashes, nil
}

func writeLocatorHashes(w io.Writer, hashes []chainutil.Hash256) error {
	if len(hashes) > MaxBlockLocatorsPerMsg {
		return messageError("writeLocatorHashes", "too many locator hashes")
	}
	if err := WriteVarInt(w, uint64(len(hashes))); err != nil {
		return err
	}
	for _, h := range hashes {
		if _, err := w.Write(h[:]); err != nil {
			return err
		}
	}
	return nil
}

// MsgGetBlocks implements the Message interface and requests inv messages
// for the blocks following the highest hash in BlockLocatorHashes found on
// the receiver's best chain, up to HashStop.
type MsgGetBlocks struct {
	ProtocolVersion    uint32
	BlockLocatorHashes []chainutil.Hash256
	HashStop           chainutil.Hash256
}

func NewMsgGetBlocks(hashStop chainutil.Hash256) *MsgGetBlocks {
	return &MsgGetBlocks{
		ProtocolVersion:    ProtocolVersion,
		BlockLocatorHashes: make([]chainutil.Hash256, 0, MaxBlockLocatorsPerMsg),
		HashStop:           hashStop,
	}
}

func (m *MsgGetBlocks) AddBlockLocatorHash(h chainutil.Hash256) error {
	if len(m.BlockLocatorHashes)+1 > MaxBlockLocatorsPerMsg {
		return messageError("MsgGetBlocks.AddBlockLocatorHash", "too many locator hashes")
	}
	m.BlockLocatorHashes = append(m.BlockLocatorHashes, h)
	return nil
}

func (m *MsgGetBlocks) BtcDecode(r io.Reader, pver uint32) error {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return messageError("MsgGetBlocks.BtcDecode", "unexpected EOF")
	}
	m.ProtocolVersion = binary.LittleEndian.Uint32(buf[:])

	hashes, err := readLocatorHashes(r)
	if err != nil {
		return err
	}
	m.BlockLocatorHashes = hashes

	if _, err := io.ReadFull(r, m.HashStop[:]); err != nil {
		return messageError("MsgGetBlocks.BtcDecode", "unexpected EOF reading stop hash")
	}
	return nil
}

func (m *MsgGetBlocks) BtcEncode(w io.Writer, pver uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], m.ProtocolVersion)
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if err := writeLocatorHashes(w, m.BlockLocatorHashes); err != nil {
		return err
	}
	_, err := w.Write(m.HashStop[:])
	return err
}

func (m *MsgGetBlocks) Command() string { return CmdGetBlocks }

func (m *MsgGetBlocks) MaxPayloadLength(pver uint32) uint32 {
	return 4 + uint32(VarIntSerializeSize(MaxBlockLocatorsPerMsg)) +
		MaxBlockLocatorsPerMsg*chainutil.HashSize + chainutil.HashSize
}

// MsgGetHeaders implements the Message interface. It has the same payload
// layout as MsgGetBlocks but asks for a headers response instead of an inv.
type MsgGetHeaders struct {
	ProtocolVersion    uint32
	BlockLocatorHashes []chainutil.Hash256
	HashStop           chainutil.Hash256
}

func NewMsgGetHeaders() *MsgGetHeaders {
	return &MsgGetHeaders{
		ProtocolVersion:    ProtocolVersion,
		BlockLocatorHashes: make([]chainutil.Hash256, 0, MaxBlockLocatorsPerMsg),
	}
}

func (m *MsgGetHeaders) AddBlockLocatorHash(h chainutil.Hash256) error {
	if len(m.BlockLocatorHashes)+1 > MaxBlockLocatorsPerMsg {
		return messageError("MsgGetHeaders.AddBlockLocatorHash", "too many locator hashes")
	}
	m.BlockLocatorHashes = append(m.BlockLocatorHashes, h)
	return nil
}

func (m *MsgGetHeaders) BtcDecode(r io.Reader, pver uint32) error {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return messageError("MsgGetHeaders.BtcDecode", "unexpected EOF")
	}
	m.ProtocolVersion = binary.LittleEndian.Uint32(buf[:])

	hashes, err := readLocatorHashes(r)
	if err != nil {
		return err
	}
	m.BlockLocatorHashes = hashes

	if _, err := io.ReadFull(r, m.HashStop[:]); err != nil {
		return messageError("MsgGetHeaders.BtcDecode", "unexpected EOF reading stop hash")
	}
	return nil
}

func (m *MsgGetHeaders) BtcEncode(w io.Writer, pver uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], m.ProtocolVersion)
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if err := writeLocatorHashes(w, m.BlockLocatorHashes); err != nil {
		return err
	}
	_, err := w.Write(m.HashStop[:])
	return err
}

func (m *MsgGetHeaders) Command() string { return CmdGetHeaders }

func (m *MsgGetHeaders) MaxPayloadLength(pver uint32) uint32 {
	return 4 + uint32(VarIntSerializeSize(MaxBlockLocatorsPerMsg)) +
		MaxBlockLocatorsPerMsg*chainutil.HashSize + chainutil.HashSize
}

// MaxHeadersPerMsg is the maximum number of headers the reference
// implementation permits — and always sends — per headers message.
const MaxHeadersPerMsg = 2000

// MsgHeaders implements the Message interface and carries a batch of block
// headers with no transaction bodies, each followed by a zero transaction
// count per the wire convention inherited from the block message.
type MsgHeaders struct {
	Headers []*BlockHeader
}

func NewMsgHeaders() *MsgHeaders {
	return &MsgHeaders{Headers: make([]*BlockHeader, 0, MaxHeadersPerMsg)}
}

func (m *MsgHeaders) AddBlockHeader(h *BlockHeader) error {
	if len(m.Headers)+1 > MaxHeadersPerMsg {
		return messageError("MsgHeaders.AddBlockHeader", "too many headers")
	}
	m.Headers = append(m.Headers, h)
	return nil
}

func (m *MsgHeaders) BtcDecode(r io.Reader, pver uint32) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxHeadersPerMsg {
		return messageError("MsgHeaders.BtcDecode", "too many headers")
	}
	m.Headers = make([]*BlockHeader, 0, count)
	for i := uint64(0); i < count; i++ {
		bh := &BlockHeader{}
		if err := readBlockHeader(r, bh); err != nil {
			return err
		}
		txCount, err := ReadVarInt(r)
		if err != nil {
			return err
		}
		if txCount != 0 {
			return messageError("MsgHeaders.BtcDecode", "headers message carried a non-zero tx count")
		}
		m.Headers = append(m.Headers, bh)
	}
	return nil
}

func (m *MsgHeaders) BtcEncode(w io.Writer, pver uint32) error {
	if len(m.Headers) > MaxHeadersPerMsg {
		return messageError("MsgHeaders.BtcEncode", "too many headers")
	}
	if err := WriteVarInt(w, uint64(len(m.Headers))); err != nil {
		return err
	}
	for _, bh := range m.Headers {
		if err := writeBlockHeader(w, bh); err != nil {
			return err
		}
		if err := WriteVarInt(w, 0); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgHeaders) Command() string { return CmdHeaders }

func (m *MsgHeaders) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxHeadersPerMsg)) + MaxHeadersPerMsg*(BlockHeaderLen+1)
}
