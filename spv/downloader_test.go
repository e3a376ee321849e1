// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package spv_test

import (
	"testing"
	"time"

	"github.com/btcrelay/corenode/blockchain"
	"github.com/btcrelay/corenode/bloom"
	"github.com/btcrelay/corenode/chaincfg"
	"github.com/btcrelay/corenode/chainstore"
	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/peer"
	"github.com/btcrelay/corenode/spv"
	"github.com/btcrelay/corenode/wire"
	"github.com/stretchr/testify/require"
)

// mineHeader searches nonces until header satisfies its own declared Bits,
// mirroring blockchain's own test helper (unexported there, so repeated
// here) — this keeps tests independent of any particular hand-picked nonce.
func mineHeader(t *testing.T, h *wire.BlockHeader, powLimit chainutil.Uint256) {
	t.Helper()
	for nonce := uint32(0); nonce < 1<<20; nonce++ {
		h.Nonce = nonce
		if blockchain.CheckProofOfWork(h.BlockHash(), h.Bits, powLimit) == nil {
			return
		}
	}
	t.Fatal("mineHeader: no satisfying nonce found within search bound")
}

func coinbaseTx(n int64) *wire.MsgTx {
	return &wire.MsgTx{
		Version: 1,
		TxOut:   []*wire.TxOut{wire.NewTxOut(n, []byte{byte(n)})},
	}
}

func testPeer(params *chaincfg.Params) *peer.Peer {
	return peer.NewOutboundPeer(&peer.Config{ChainParams: params}, "test:1")
}

func TestHandleBlockConnectsGenesisThenExtends(t *testing.T) {
	params := chaincfg.RegressionNetParams
	store := chainstore.NewMemStore()
	validator := blockchain.NewValidator(store, &params)
	d := spv.New(spv.Config{Store: store, Validator: validator})
	p := testPeer(&params)

	genesisTxs := []*wire.MsgTx{coinbaseTx(1)}
	genesis := wire.NewBlockHeader(1, chainutil.Hash256{}, blockchain.CalcMerkleRoot(genesisTxs), params.PowLimitBits, 0)
	genesis.Timestamp = time.Now().Add(-20 * time.Minute)
	mineHeader(t, genesis, params.PowLimit)
	genesisBlock := wire.NewMsgBlock(genesis)
	genesisBlock.Transactions = genesisTxs

	d.HandleBlock(p, genesisBlock)

	select {
	case ev := <-d.Events():
		require.Equal(t, spv.EventBlockConnected, ev.Type)
		require.Equal(t, int32(0), ev.Entry.Height)
	case <-time.After(time.Second):
		t.Fatal("expected an EventBlockConnected for genesis")
	}
	require.Equal(t, int32(0), store.Height())

	childTxs := []*wire.MsgTx{coinbaseTx(2)}
	child := wire.NewBlockHeader(1, genesis.BlockHash(), blockchain.CalcMerkleRoot(childTxs), params.PowLimitBits, 0)
	child.Timestamp = time.Now().Add(-10 * time.Minute)
	mineHeader(t, child, params.PowLimit)
	childBlock := wire.NewMsgBlock(child)
	childBlock.Transactions = childTxs

	d.HandleBlock(p, childBlock)

	select {
	case ev := <-d.Events():
		require.Equal(t, spv.EventBlockConnected, ev.Type)
		require.Equal(t, int32(1), ev.Entry.Height)
	case <-time.After(time.Second):
		t.Fatal("expected an EventBlockConnected for the child block")
	}
	require.Equal(t, int32(1), store.Height())
}

func TestHandleBlockRejectsBadMerkleRoot(t *testing.T) {
	params := chaincfg.RegressionNetParams
	store := chainstore.NewMemStore()
	validator := blockchain.NewValidator(store, &params)
	d := spv.New(spv.Config{Store: store, Validator: validator})
	p := testPeer(&params)

	genesis := wire.NewBlockHeader(1, chainutil.Hash256{}, chainutil.Hash256{0xaa}, params.PowLimitBits, 0)
	genesis.Timestamp = time.Now().Add(-time.Minute)
	mineHeader(t, genesis, params.PowLimit)
	block := wire.NewMsgBlock(genesis)
	block.AddTransaction(coinbaseTx(1))

	d.HandleBlock(p, block)

	select {
	case ev := <-d.Events():
		require.Equal(t, spv.EventPeerRejected, ev.Type)
		require.ErrorIs(t, ev.Err, spv.ErrBlockMerkleMismatch)
	case <-time.After(time.Second):
		t.Fatal("expected an EventPeerRejected for the bad merkle root")
	}
	require.Equal(t, int32(-1), store.Height())
	require.Equal(t, peer.StateDisconnected, p.State())
}

func TestHandleMerkleBlockWaitsForMatchedTxThenConnects(t *testing.T) {
	params := chaincfg.RegressionNetParams
	store := chainstore.NewMemStore()
	validator := blockchain.NewValidator(store, &params)
	d := spv.New(spv.Config{Store: store, Validator: validator})
	p := testPeer(&params)

	genesisTxs := []*wire.MsgTx{coinbaseTx(1)}
	genesis := wire.NewBlockHeader(1, chainutil.Hash256{}, blockchain.CalcMerkleRoot(genesisTxs), params.PowLimitBits, 0)
	genesis.Timestamp = time.Now().Add(-time.Minute)
	mineHeader(t, genesis, params.PowLimit)
	genesisBlock := wire.NewMsgBlock(genesis)
	genesisBlock.Transactions = genesisTxs
	d.HandleBlock(p, genesisBlock)
	<-d.Events()

	target := coinbaseTx(7)
	blockTxs := []*wire.MsgTx{coinbaseTx(6), target}
	header := wire.NewBlockHeader(1, genesis.BlockHash(), blockchain.CalcMerkleRoot(blockTxs), params.PowLimitBits, 0)
	header.Timestamp = time.Now()
	mineHeader(t, header, params.PowLimit)
	block := wire.NewMsgBlock(header)
	block.Transactions = blockTxs

	filter := bloom.NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	filter.Add(target.TxOut[0].PkScript)
	mBlock, matched := bloom.NewMerkleBlock(block, filter)
	require.Len(t, matched, 1)

	d.HandleMerkleBlock(p, mBlock)

	// The block isn't connected yet: its one matched transaction hasn't
	// arrived.
	select {
	case <-d.Events():
		t.Fatal("filtered block should not connect before its matched tx arrives")
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, int32(0), store.Height())

	d.HandleTx(p, target)

	select {
	case ev := <-d.Events():
		require.Equal(t, spv.EventFilteredBlockConnected, ev.Type)
		require.Equal(t, int32(1), ev.Entry.Height)
		require.Len(t, ev.Matched, 1)
		require.Equal(t, target.TxHash(), ev.Matched[0].TxHash())
	case <-time.After(time.Second):
		t.Fatal("expected EventFilteredBlockConnected once the matched tx arrived")
	}
	require.Equal(t, int32(1), store.Height())
}

func TestHandleMessageTerminatesMatchedTxStream(t *testing.T) {
	params := chaincfg.RegressionNetParams
	store := chainstore.NewMemStore()
	validator := blockchain.NewValidator(store, &params)
	d := spv.New(spv.Config{Store: store, Validator: validator})
	p := testPeer(&params)

	genesisTxs := []*wire.MsgTx{coinbaseTx(1)}
	genesis := wire.NewBlockHeader(1, chainutil.Hash256{}, blockchain.CalcMerkleRoot(genesisTxs), params.PowLimitBits, 0)
	genesis.Timestamp = time.Now().Add(-time.Minute)
	mineHeader(t, genesis, params.PowLimit)
	genesisBlock := wire.NewMsgBlock(genesis)
	genesisBlock.Transactions = genesisTxs
	d.HandleBlock(p, genesisBlock)
	<-d.Events()

	target := coinbaseTx(9)
	blockTxs := []*wire.MsgTx{target}
	header := wire.NewBlockHeader(1, genesis.BlockHash(), blockchain.CalcMerkleRoot(blockTxs), params.PowLimitBits, 0)
	header.Timestamp = time.Now()
	mineHeader(t, header, params.PowLimit)
	block := wire.NewMsgBlock(header)
	block.Transactions = blockTxs

	filter := bloom.NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	filter.Add(target.TxOut[0].PkScript)
	mBlock, _ := bloom.NewMerkleBlock(block, filter)

	d.HandleMerkleBlock(p, mBlock)
	// A non-tx message (e.g. a ping) arrives before the matched tx does.
	d.HandleMessage(p, &wire.MsgPing{Nonce: 1})

	select {
	case ev := <-d.Events():
		require.Equal(t, spv.EventFilteredBlockConnected, ev.Type)
		require.Empty(t, ev.Matched)
	case <-time.After(time.Second):
		t.Fatal("expected the block to connect (with no matches) once the stream was terminated")
	}
}

func TestKeyExhaustionDiscardsAndResumes(t *testing.T) {
	params := chaincfg.RegressionNetParams
	store := chainstore.NewMemStore()
	validator := blockchain.NewValidator(store, &params)

	newFilterCalls := 0
	d := spv.New(spv.Config{
		Store:     store,
		Validator: validator,
		OnMatchedTx: func(tx *wire.MsgTx) bool {
			return true // every matched tx is treated as exhausting for this test
		},
		NewFilter: func() *bloom.Filter {
			newFilterCalls++
			return bloom.NewFilter(10, 1, 0.0001, wire.BloomUpdateAll)
		},
	})
	p := testPeer(&params)

	genesisTxs := []*wire.MsgTx{coinbaseTx(1)}
	genesis := wire.NewBlockHeader(1, chainutil.Hash256{}, blockchain.CalcMerkleRoot(genesisTxs), params.PowLimitBits, 0)
	genesis.Timestamp = time.Now().Add(-time.Minute)
	mineHeader(t, genesis, params.PowLimit)
	genesisBlock := wire.NewMsgBlock(genesis)
	genesisBlock.Transactions = genesisTxs
	d.HandleBlock(p, genesisBlock)
	<-d.Events()

	target := coinbaseTx(3)
	blockTxs := []*wire.MsgTx{target}
	header := wire.NewBlockHeader(1, genesis.BlockHash(), blockchain.CalcMerkleRoot(blockTxs), params.PowLimitBits, 0)
	header.Timestamp = time.Now()
	mineHeader(t, header, params.PowLimit)
	block := wire.NewMsgBlock(header)
	block.Transactions = blockTxs

	filter := bloom.NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	filter.Add(target.TxOut[0].PkScript)
	mBlock, _ := bloom.NewMerkleBlock(block, filter)

	d.HandleMerkleBlock(p, mBlock)
	d.HandleTx(p, target)

	select {
	case ev := <-d.Events():
		require.Equal(t, spv.EventFilterRecomputed, ev.Type)
		require.Equal(t, genesis.BlockHash(), ev.ResumeFrom)
	case <-time.After(time.Second):
		t.Fatal("expected EventFilterRecomputed after key exhaustion")
	}
	require.Equal(t, 1, newFilterCalls)
	// The exhausting block must not have been connected.
	require.Equal(t, int32(0), store.Height())
}
