// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloom

import (
	"errors"

	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/wire"
)

// ErrMerkleRootMismatch is returned by ExtractMatches when a MsgMerkleBlock's
// partial tree does not recompute to the root its header commits to — either
// a malformed message or a peer lying about the block's contents.
var ErrMerkleRootMismatch = errors.New("bloom: merkle block root does not match header")

// ErrMerkleBlockMalformed is returned by ExtractMatches when the partial
// merkle tree's flag bits or hash list weren't fully consumed by the
// traversal, or when the tree contains a duplicated right-hand branch (the
// classic CVE-2012-2459 shape: a non-padding right child whose extracted
// hash equals its left sibling's, letting an attacker present a different
// tree for the same root).
var ErrMerkleBlockMalformed = errors.New("bloom: merkle block malformed")

// ExtractMatches verifies a received MsgMerkleBlock's partial merkle tree
// against its header's merkle root and returns the transaction hashes it
// claims matched the filter that was sent to the peer serving it. The
// reassembly that follows treats the peer as untrusted: every matched
// hash returned here still needs its MsgTx fetched and independently
// checked against the filter before it is treated as confirmed.
func ExtractMatches(mBlock *wire.MsgMerkleBlock) ([]chainutil.Hash256, error) {
	if mBlock.Transactions == 0 {
		return nil, errors.New("bloom: merkle block commits to zero transactions")
	}

	d := &merkleDecoder{numTx: mBlock.Transactions, hashes: mBlock.Hashes, flags: mBlock.Flags}
	height := (&partialMerkleTree{numTx: mBlock.Transactions}).calcTreeHeight()
	root, err := d.traverseAndExtract(height, 0)
	if err != nil {
		return nil, err
	}
	if d.badTree {
		return nil, ErrMerkleBlockMalformed
	}
	// Every flag bit (modulo byte padding) and every hash offered must have
	// been consumed by the traversal; anything left over means the peer
	// padded the message with data the tree shape never called for.
	if (d.bitPos+7)/8 != len(d.flags) || d.hashPos != len(d.hashes) {
		return nil, ErrMerkleBlockMalformed
	}
	if root != mBlock.Header.MerkleRoot {
		return nil, ErrMerkleRootMismatch
	}
	return d.matched, nil
}

// merkleDecoder replays a partialMerkleTree's depth-first traversal in
// reverse: where traverseAndBuild computes a flag bit and hash per node
// from known leaves, traverseAndExtract consumes a flag bit and (for
// leaves/pruned subtrees) a hash from the wire message, recomputing the
// same hashes traverseAndBuild would have produced.
type merkleDecoder struct {
	numTx   uint32
	hashes  []chainutil.Hash256
	flags   []byte
	bitPos  int
	hashPos int
	matched []chainutil.Hash256
	badTree bool
}

func (d *merkleDecoder) nextBit() (bool, error) {
	idx := d.bitPos / 8
	if idx >= len(d.flags) {
		return false, errors.New("bloom: merkle block ran out of flag bits")
	}
	bit := d.flags[idx]&(1<<uint(d.bitPos%8)) != 0
	d.bitPos++
	return bit, nil
}

func (d *merkleDecoder) nextHash() (chainutil.Hash256, error) {
	if d.hashPos >= len(d.hashes) {
		return chainutil.Hash256{}, errors.New("bloom: merkle block ran out of hashes")
	}
	h := d.hashes[d.hashPos]
	d.hashPos++
	return h, nil
}

func (d *merkleDecoder) treeWidth(height uint32) uint32 {
	return (d.numTx + (1 << height) - 1) >> height
}

func (d *merkleDecoder) traverseAndExtract(height, pos uint32) (chainutil.Hash256, error) {
	parentOfMatch, err := d.nextBit()
	if err != nil {
		return chainutil.Hash256{}, err
	}

	if height == 0 || !parentOfMatch {
		h, err := d.nextHash()
		if err != nil {
			return chainutil.Hash256{}, err
		}
		if height == 0 && parentOfMatch {
			d.matched = append(d.matched, h)
		}
		return h, nil
	}

	left, err := d.traverseAndExtract(height-1, pos*2)
	if err != nil {
		return chainutil.Hash256{}, err
	}
	right := left
	if pos*2+1 < d.treeWidth(height-1) {
		right, err = d.traverseAndExtract(height-1, pos*2+1)
		if err != nil {
			return chainutil.Hash256{}, err
		}
		// The right child was genuinely present on the wire, not the
		// implicit odd-leaf duplication above — it should never equal
		// its sibling. A peer can otherwise craft a tree that re-uses
		// one transaction's hash as if it were two distinct leaves
		// without changing the recomputed root (CVE-2012-2459).
		if right == left {
			d.badTree = true
		}
	}
	return hashPair(left, right), nil
}

// NewMerkleBlock returns a MsgMerkleBlock for block containing the
// partial merkle tree proof for every transaction matching filter,
// together with the list of matched transaction hashes, mirroring BIP37's
// merkleblock construction.
//
// filter may be nil, in which case the returned block matches no
// transactions (its PMT degenerates to just the merkle root).
func NewMerkleBlock(block *wire.MsgBlock, filter *Filter) (*wire.MsgMerkleBlock, []chainutil.Hash256) {
	leafHashes := make([]chainutil.Hash256, len(block.Transactions))
	matches := make([]bool, len(block.Transactions))
	var matchedHashes []chainutil.Hash256

	for i, tx := range block.Transactions {
		leafHashes[i] = tx.TxHash()

		if filter != nil {
			outputScripts := make([][]byte, len(tx.TxOut))
			for j, out := range tx.TxOut {
				outputScripts[j] = out.PkScript
			}
			matches[i] = filter.MatchTxAndUpdate(tx, leafHashes[i], outputScripts)
		}
		if matches[i] {
			matchedHashes = append(matchedHashes, leafHashes[i])
		}
	}

	tree := newPartialMerkleTree(leafHashes, matches)
	hashes, flags := tree.serialize()

	mBlock := &wire.MsgMerkleBlock{
		Header:       block.Header,
		Transactions: uint32(len(block.Transactions)),
		Hashes:       hashes,
		Flags:        flags,
	}
	return mBlock, matchedHashes
}

// partialMerkleTree builds the compact proof BIP37 transmits: a
// depth-first traversal of the merkle tree, recording one flag bit per
// visited node (descend vs. hash-and-stop) and one hash per leaf reached
// or per subtree pruned because it contains no match.
type partialMerkleTree struct {
	numTx   uint32
	leaves  []chainutil.Hash256
	matches []bool
	hashes  []chainutil.Hash256
	bits    []bool
}

func newPartialMerkleTree(leaves []chainutil.Hash256, matches []bool) *partialMerkleTree {
	t := &partialMerkleTree{
		numTx:   uint32(len(leaves)),
		leaves:  leaves,
		matches: matches,
	}
	if t.numTx > 0 {
		t.traverseAndBuild(t.calcTreeHeight(), 0)
	}
	return t
}

func (t *partialMerkleTree) calcTreeHeight() uint32 {
	height := uint32(0)
	for t.calcTreeWidth(height) > 1 {
		height++
	}
	return height
}

func (t *partialMerkleTree) calcTreeWidth(height uint32) uint32 {
	return (t.numTx + (1 << height) - 1) >> height
}

func (t *partialMerkleTree) traverseAndBuild(height, pos uint32) {
	anyMatch := false
	from := pos << height
	to := minU32((pos+1)<<height, t.numTx)
	for i := from; i < to; i++ {
		anyMatch = anyMatch || t.matches[i]
	}
	t.bits = append(t.bits, anyMatch)

	if height == 0 || !anyMatch {
		t.hashes = append(t.hashes, t.calcHash(height, pos))
		return
	}

	t.traverseAndBuild(height-1, pos*2)
	if pos*2+1 < t.calcTreeWidth(height-1) {
		t.traverseAndBuild(height-1, pos*2+1)
	}
}

func (t *partialMerkleTree) calcHash(height, pos uint32) chainutil.Hash256 {
	if height == 0 {
		return t.leaves[pos]
	}

	left := t.calcHash(height-1, pos*2)
	width := t.calcTreeWidth(height - 1)
	right := left
	if pos*2+1 < width {
		right = t.calcHash(height-1, pos*2+1)
	}
	return hashPair(left, right)
}

func hashPair(left, right chainutil.Hash256) chainutil.Hash256 {
	buf := make([]byte, 64)
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return chainutil.DoubleSHA256(buf)
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func (t *partialMerkleTree) serialize() ([]chainutil.Hash256, []byte) {
	flags := make([]byte, (len(t.bits)+7)/8)
	for i, bit := range t.bits {
		if bit {
			flags[i/8] |= 1 << uint(i%8)
		}
	}
	return t.hashes, flags
}
