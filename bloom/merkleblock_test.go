// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloom

import (
	"testing"

	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/wire"
	"github.com/stretchr/testify/require"
)

func buildTestBlock(n int) *wire.MsgBlock {
	header := wire.NewBlockHeader(1, chainutil.Hash256{}, chainutil.Hash256{}, 0x207fffff, 0)
	block := wire.NewMsgBlock(header)
	for i := 0; i < n; i++ {
		tx := &wire.MsgTx{
			Version: 1,
			TxOut:   []*wire.TxOut{wire.NewTxOut(int64(i), []byte{byte(i)})},
		}
		block.AddTransaction(tx)
	}
	return block
}

func TestNewMerkleBlockNoFilterMatchesNothing(t *testing.T) {
	block := buildTestBlock(4)
	mBlock, matched := NewMerkleBlock(block, nil)
	require.Empty(t, matched)
	require.Equal(t, uint32(4), mBlock.Transactions)
	require.NotEmpty(t, mBlock.Hashes)
}

func TestNewMerkleBlockMatchesFilteredTx(t *testing.T) {
	block := buildTestBlock(4)
	target := block.Transactions[2]

	f := NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	f.Add(target.TxOut[0].PkScript)

	mBlock, matched := NewMerkleBlock(block, f)
	require.Len(t, matched, 1)
	require.Equal(t, target.TxHash(), matched[0])
	require.Equal(t, uint32(4), mBlock.Transactions)
}

func TestNewMerkleBlockSingleTxDegenerateTree(t *testing.T) {
	block := buildTestBlock(1)
	mBlock, matched := NewMerkleBlock(block, nil)
	require.Empty(t, matched)
	require.Len(t, mBlock.Hashes, 1)
	require.Equal(t, block.Transactions[0].TxHash(), mBlock.Hashes[0])
}

func TestExtractMatchesRoundTripsWithNewMerkleBlock(t *testing.T) {
	block := buildTestBlock(7)
	target := block.Transactions[5]

	f := NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	f.Add(target.TxOut[0].PkScript)

	mBlock, built := NewMerkleBlock(block, f)
	mBlock.Header.MerkleRoot = merkleRootForTest(block)

	extracted, err := ExtractMatches(mBlock)
	require.NoError(t, err)
	require.Equal(t, built, extracted)
}

// merkleRootForTest recomputes a block's merkle root the same way
// NewMerkleBlock's partial tree would, independent of any filter.
func merkleRootForTest(block *wire.MsgBlock) chainutil.Hash256 {
	leaves := make([]chainutil.Hash256, len(block.Transactions))
	for i, tx := range block.Transactions {
		leaves[i] = tx.TxHash()
	}
	tree := newPartialMerkleTree(leaves, make([]bool, len(leaves)))
	return tree.calcHash(tree.calcTreeHeight(), 0)
}

func TestExtractMatchesRejectsTamperedRoot(t *testing.T) {
	block := buildTestBlock(3)
	mBlock, _ := NewMerkleBlock(block, nil)
	mBlock.Header.MerkleRoot = chainutil.Hash256{0xff}

	_, err := ExtractMatches(mBlock)
	require.ErrorIs(t, err, ErrMerkleRootMismatch)
}

func TestExtractMatchesRejectsUnconsumedHash(t *testing.T) {
	block := buildTestBlock(3)
	mBlock, _ := NewMerkleBlock(block, nil)
	mBlock.Header.MerkleRoot = merkleRootForTest(block)
	mBlock.Hashes = append(mBlock.Hashes, chainutil.Hash256{0x01})

	_, err := ExtractMatches(mBlock)
	require.ErrorIs(t, err, ErrMerkleBlockMalformed)
}

func TestExtractMatchesRejectsUnconsumedFlagBits(t *testing.T) {
	block := buildTestBlock(3)
	mBlock, _ := NewMerkleBlock(block, nil)
	mBlock.Header.MerkleRoot = merkleRootForTest(block)
	mBlock.Flags = append(mBlock.Flags, 0xff)

	_, err := ExtractMatches(mBlock)
	require.ErrorIs(t, err, ErrMerkleBlockMalformed)
}

func TestExtractMatchesRejectsDuplicatedRightBranch(t *testing.T) {
	dup := chainutil.Hash256{0xab}
	mBlock := &wire.MsgMerkleBlock{
		Header:       *wire.NewBlockHeader(1, chainutil.Hash256{}, chainutil.Hash256{}, 0x207fffff, 0),
		Transactions: 2,
		Hashes:       []chainutil.Hash256{dup, dup},
		Flags:        []byte{0x01},
	}

	_, err := ExtractMatches(mBlock)
	require.ErrorIs(t, err, ErrMerkleBlockMalformed)
}
