// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"
	"time"

	"github.com/btcrelay/corenode/chaincfg"
	"github.com/btcrelay/corenode/chainstore"
	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/wire"
	"github.com/stretchr/testify/require"
)

// testParams starts from RegressionNetParams for its very loose PowLimit
// (bits 0x207fffff, a target of about 2^255, which roughly half of all
// header hashes satisfy),
// then overrides PoWNoRetargeting and the retarget constants so these
// tests can exercise CalcNextRequiredDifficulty directly.
func testParams(policy chaincfg.DifficultyPolicy) *chaincfg.Params {
	p := chaincfg.RegressionNetParams
	p.PoWNoRetargeting = false
	p.RetargetInterval = 6
	p.TargetTimePerBlock = 10 * time.Minute
	p.TargetTimespan = 6 * 10 * time.Minute
	p.RetargetAdjustmentFactor = 4
	p.DifficultyPolicy = policy
	p.MinDiffReductionTime = 20 * time.Minute
	return &p
}

func mustPutChain(t *testing.T, s chainstore.Store, params *chaincfg.Params, n int, startTime time.Time, step time.Duration, bits uint32) []*chainstore.Entry {
	t.Helper()
	entries := make([]*chainstore.Entry, 0, n)
	var prev chainutil.Hash256
	ts := startTime
	for i := 0; i < n; i++ {
		h := wire.NewBlockHeader(1, prev, chainutil.Hash256{}, bits, uint32(i))
		h.Timestamp = ts
		e := &chainstore.Entry{Header: *h, Height: int32(i), ChainWork: workForBits(bits).MulUint64(uint64(i) + 1)}
		require.NoError(t, s.Put(e))
		require.NoError(t, s.SetTip(e.Hash()))
		entries = append(entries, e)
		prev = e.Hash()
		ts = ts.Add(step)
	}
	return entries
}

func TestCalcNextRequiredDifficultyNoRetarget(t *testing.T) {
	params := testParams(chaincfg.PolicyStandard)
	s := chainstore.NewMemStore()
	base := time.Unix(1600000000, 0)
	entries := mustPutChain(t, s, params, 3, base, params.TargetTimePerBlock, params.PowLimitBits)

	bits, err := CalcNextRequiredDifficulty(s, params, entries[2], entries[2].Header.Timestamp.Add(params.TargetTimePerBlock))
	require.NoError(t, err)
	require.Equal(t, entries[2].Header.Bits, bits)
}

func TestCalcNextRequiredDifficultyRetargetsFaster(t *testing.T) {
	params := testParams(chaincfg.PolicyStandard)
	s := chainstore.NewMemStore()
	base := time.Unix(1600000000, 0)
	// Blocks mined twice as fast as the target spacing; the window is 6
	// blocks (heights 0..5), so height 6 is the retarget boundary.
	entries := mustPutChain(t, s, params, 6, base, params.TargetTimePerBlock/2, params.PowLimitBits)

	bits, err := CalcNextRequiredDifficulty(s, params, entries[5], entries[5].Header.Timestamp.Add(params.TargetTimePerBlock/2))
	require.NoError(t, err)

	oldTarget := chainutil.CompactTarget(params.PowLimitBits).Uint256()
	newTarget := chainutil.CompactTarget(bits).Uint256()
	// Faster-than-target blocks tighten (lower) the next target.
	require.Equal(t, -1, newTarget.Cmp(oldTarget))
}

func TestCalcNextRequiredDifficultyTestnetMinRule(t *testing.T) {
	params := testParams(chaincfg.PolicyTestnetMinDifficulty)
	s := chainstore.NewMemStore()
	base := time.Unix(1600000000, 0)
	tighterBits := uint32(0x1d00ffff)
	entries := mustPutChain(t, s, params, 2, base, params.TargetTimePerBlock, tighterBits)

	// A block arriving well past MinDiffReductionTime after its parent may
	// be mined at the network minimum difficulty.
	late := entries[1].Header.Timestamp.Add(params.MinDiffReductionTime + time.Minute)
	bits, err := CalcNextRequiredDifficulty(s, params, entries[1], late)
	require.NoError(t, err)
	require.Equal(t, params.PowLimitBits, bits)
}

func TestFindPrevTestNetDifficultySkipsExceptionBlocks(t *testing.T) {
	params := testParams(chaincfg.PolicyTestnetMinDifficulty)
	s := chainstore.NewMemStore()
	base := time.Unix(1600000000, 0)
	tighterBits := uint32(0x1d00ffff)

	// Height 0 at the real difficulty, height 1 minted at the minimum (as
	// if the 20-minute rule applied) and not a retarget boundary, so the
	// backward scan skips it.
	var prev chainutil.Hash256
	ts := base
	h0 := wire.NewBlockHeader(1, prev, chainutil.Hash256{}, tighterBits, 0)
	h0.Timestamp = ts
	e0 := &chainstore.Entry{Header: *h0, Height: 0, ChainWork: workForBits(tighterBits)}
	require.NoError(t, s.Put(e0))
	require.NoError(t, s.SetTip(e0.Hash()))

	ts = ts.Add(params.MinDiffReductionTime + time.Minute)
	h1 := wire.NewBlockHeader(1, e0.Hash(), chainutil.Hash256{}, params.PowLimitBits, 1)
	h1.Timestamp = ts
	e1 := &chainstore.Entry{Header: *h1, Height: 1, ChainWork: e0.ChainWork.Add(workForBits(params.PowLimitBits))}
	require.NoError(t, s.Put(e1))
	require.NoError(t, s.SetTip(e1.Hash()))

	got, err := findPrevTestNetDifficulty(s, params, e1)
	require.NoError(t, err)
	require.Equal(t, tighterBits, got)
}

func TestCheckProofOfWorkRejectsTargetAboveLimit(t *testing.T) {
	limit := chainutil.CompactTarget(0x1d00ffff).Uint256()
	looseBits := uint32(0x1f00ffff) // decodes to a target far above a tight limit
	err := CheckProofOfWork(chainutil.Hash256{}, looseBits, limit)
	require.Error(t, err)

	var re RuleError
	require.ErrorAs(t, err, &re)
	require.Equal(t, ErrHighHash, re.ErrorCode)
}
