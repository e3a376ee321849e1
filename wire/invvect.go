// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/btcrelay/corenode/chainutil"
)

// InvType identifies the kind of object an InvVect refers to.
type InvType uint32

const (
	InvTypeError InvType = iota
	InvTypeTx
	InvTypeBlock
	InvTypeFilteredBlock
	InvTypeWitnessBlock
	InvTypeWitnessTx
)

var ivStrings = map[InvType]string{
	InvTypeError:         "ERROR",
	InvTypeTx:            "MSG_TX",
	InvTypeBlock:         "MSG_BLOCK",
	InvTypeFilteredBlock: "MSG_FILTERED_BLOCK",
	InvTypeWitnessBlock:  "MSG_WITNESS_BLOCK",
	InvTypeWitnessTx:     "MSG_WITNESS_TX",
}

func (i InvType) String() string {
	if s, ok := ivStrings[i]; ok {
		return s
	}
	return fmt.Sprintf("Unknown InvType (%d)", uint32(i))
}

// InvVectSize is the serialized size of a single inventory vector: 4 bytes
// of type plus a 32-byte hash.
const InvVectSize = 4 + chainutil.HashSize

// InvVect is a single entry in an inv, getdata, or notfound message: a type
// tag plus the hash of the object it names.
type InvVect struct {
	Type InvType
	Hash chainutil.Hash256
}

// NewInvVect returns a new InvVect for the given type and hash.
func NewInvVect(typ InvType, hash *chainutil.Hash256) *InvVect {
	return &InvVect{Type: typ, Hash: *hash}
}

func readInvVect(r io.Reader, iv *InvVect) error {
	var buf [InvVectSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return messageError("readInvVect", "unexpected EOF")
	}
	iv.Type = InvType(littleEndianUint32(buf[0:4]))
	copy(iv.Hash[:], buf[4:])
	return nil
}

func writeInvVect(w io.Writer, iv *InvVect) error {
	var buf [InvVectSize]byte
	putLittleEndianUint32(buf[0:4], uint32(iv.Type))
	copy(buf[4:], iv.Hash[:])
	_, err := w.Write(buf[:])
	return err
}

// MaxInvPerMsg is the maximum number of inventory vectors the reference
// implementation permits in a single inv, getdata, or notfound message.
const MaxInvPerMsg = 50000

func readInvList(r io.Reader) ([]*InvVect, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > MaxInvPerMsg {
		return nil, messageError("readInvList", "too many inventory vectors")
	}
	list := make([]*InvVect, 0, count)
	for i := uint64(0); i < count; i++ {
		iv := &InvVect{}
		if err := readInvVect(r, iv); err != nil {
			return nil, err
		}
		list = append(list, iv)
	}
	return list, nil
}

func writeInvList(w io.Writer, list []*InvVect) error {
	if len(list) > MaxInvPerMsg {
		return messageError("writeInvList", "too many inventory vectors")
	}
	if err := WriteVarInt(w, uint64(len(list))); err != nil {
		return err
	}
	for _, iv := range list {
		if err := writeInvVect(w, iv); err != nil {
			return err
		}
	}
	return nil
}

func invListMaxPayload() uint32 {
	return uint32(VarIntSerializeSize(MaxInvPerMsg)) + MaxInvPerMsg*InvVectSize
}
