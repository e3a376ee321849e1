// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math"

	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/wire"
)

// nextPowerOfTwo returns the next highest power of two from n, or n itself
// if it is already a power of two. A helper for sizing the merkle tree's
// backing array.
func nextPowerOfTwo(n int) int {
	if n == 0 {
		return 0
	}
	if n&(n-1) == 0 {
		return n
	}
	exponent := uint(math.Log2(float64(n))) + 1
	return 1 << exponent
}

// HashMerkleBranches hashes the concatenation of two tree nodes, producing
// their parent.
func HashMerkleBranches(left, right *chainutil.Hash256) chainutil.Hash256 {
	var buf [chainutil.HashSize * 2]byte
	copy(buf[:chainutil.HashSize], left[:])
	copy(buf[chainutil.HashSize:], right[:])
	return chainutil.DoubleSHA256(buf[:])
}

// BuildMerkleTreeStore builds a merkle tree over the given transactions and
// returns it as a linear array: leaves first, interior nodes following,
// root last. A node with no right sibling is paired with itself per the
// standard odd-count convention.
func BuildMerkleTreeStore(transactions []*wire.MsgTx) []*chainutil.Hash256 {
	nextPoT := nextPowerOfTwo(len(transactions))
	arraySize := nextPoT*2 - 1
	merkles := make([]*chainutil.Hash256, arraySize)

	for i, tx := range transactions {
		h := tx.TxHash()
		merkles[i] = &h
	}

	offset := nextPoT
	for i := 0; i < arraySize-1; i += 2 {
		switch {
		case merkles[i] == nil:
			merkles[offset] = nil
		case merkles[i+1] == nil:
			h := HashMerkleBranches(merkles[i], merkles[i])
			merkles[offset] = &h
		default:
			h := HashMerkleBranches(merkles[i], merkles[i+1])
			merkles[offset] = &h
		}
		offset++
	}

	return merkles
}

// CalcMerkleRoot computes the merkle root over transactions by building
// the full tree with BuildMerkleTreeStore and returning its last node. An
// empty transaction list yields the zero hash.
func CalcMerkleRoot(transactions []*wire.MsgTx) chainutil.Hash256 {
	if len(transactions) == 0 {
		return chainutil.Hash256{}
	}
	tree := BuildMerkleTreeStore(transactions)
	return *tree[len(tree)-1]
}
