// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"time"

	"github.com/btcrelay/corenode/chaincfg"
	"github.com/btcrelay/corenode/chainstore"
	"github.com/btcrelay/corenode/chainutil"
)

// CalcNextRequiredDifficulty computes the Bits value the block following
// prevEntry must satisfy, per the classic retarget algorithm: outside a
// retarget boundary the target is unchanged; at a
// boundary, the actual time taken to mine the last RetargetInterval
// blocks is clamped to [TargetTimespan/factor, TargetTimespan*factor] and
// applied multiplicatively to the previous target, then re-masked to the
// precision a compact encoding can represent and capped at PowLimit.
//
// A nil prevEntry means the next block is genesis itself, whose Bits is
// fixed by the network parameters rather than computed.
func CalcNextRequiredDifficulty(store chainstore.Store, params *chaincfg.Params, prevEntry *chainstore.Entry, newBlockTime time.Time) (uint32, error) {
	if prevEntry == nil {
		return params.PowLimitBits, nil
	}

	if params.PoWNoRetargeting {
		return prevEntry.Header.Bits, nil
	}

	nextHeight := prevEntry.Height + 1

	if nextHeight%params.RetargetInterval != 0 {
		if params.DifficultyPolicy == chaincfg.PolicyTestnetMinDifficulty {
			maxGap := time.Duration(2) * params.TargetTimePerBlock
			if params.MinDiffReductionTime > 0 {
				maxGap = params.MinDiffReductionTime
			}
			if newBlockTime.After(prevEntry.Header.Timestamp.Add(maxGap)) {
				return params.PowLimitBits, nil
			}
			return findPrevTestNetDifficulty(store, params, prevEntry)
		}
		return prevEntry.Header.Bits, nil
	}

	firstHeight := nextHeight - params.RetargetInterval
	firstEntry, err := findAncestorByHeight(store, prevEntry, firstHeight)
	if err != nil {
		return 0, err
	}

	actualTimespan := prevEntry.Header.Timestamp.Sub(firstEntry.Header.Timestamp)
	minTimespan := params.TargetTimespan / time.Duration(params.RetargetAdjustmentFactor)
	maxTimespan := params.TargetTimespan * time.Duration(params.RetargetAdjustmentFactor)
	if actualTimespan < minTimespan {
		actualTimespan = minTimespan
	}
	if actualTimespan > maxTimespan {
		actualTimespan = maxTimespan
	}

	oldTarget := chainutil.CompactTarget(prevEntry.Header.Bits).Uint256()
	newTarget := oldTarget.MulUint64(uint64(actualTimespan.Seconds())).DivUint64(uint64(params.TargetTimespan.Seconds()))

	if newTarget.Cmp(params.PowLimit) > 0 {
		newTarget = params.PowLimit
	}

	return uint32(chainutil.ChainWorkToCompact(newTarget)), nil
}

// findPrevTestNetDifficulty walks backward from prevEntry along its parent
// chain for the most recent block that either was not mined at the testnet
// minimum difficulty or itself falls on a retarget boundary (genesis
// included), and returns that block's Bits, mirroring the exception-skipping traversal classic testnets use to
// recover the "real" difficulty after a burst of minimum-difficulty
// blocks.
func findPrevTestNetDifficulty(store chainstore.Store, params *chaincfg.Params, prevEntry *chainstore.Entry) (uint32, error) {
	cur := prevEntry
	for cur.Height%params.RetargetInterval != 0 && cur.Header.Bits == params.PowLimitBits {
		if cur.Height == 0 {
			break
		}
		parent, err := store.GetByHash(cur.Header.PrevBlock)
		if err != nil {
			break
		}
		cur = parent
	}
	return cur.Header.Bits, nil
}

// findAncestorByHeight walks backward from start (inclusive) along parent
// pointers until it reaches targetHeight. It does not trust the store's
// height index, since start may be on a branch not yet committed as the
// best chain.
func findAncestorByHeight(store chainstore.Store, start *chainstore.Entry, targetHeight int32) (*chainstore.Entry, error) {
	cur := start
	for cur.Height > targetHeight {
		parent, err := store.GetByHash(cur.Header.PrevBlock)
		if err != nil {
			return nil, err
		}
		cur = parent
	}
	return cur, nil
}

// CheckProofOfWork reports whether hash satisfies the target encoded by
// bits, and that bits itself does not exceed the network's PowLimit
// ceiling.
func CheckProofOfWork(hash chainutil.Hash256, bits uint32, powLimit chainutil.Uint256) error {
	target := chainutil.CompactTarget(bits).Uint256()

	if target.IsZero() {
		return ruleError(ErrHighHash, "proof-of-work target is zero")
	}
	if target.Cmp(powLimit) > 0 {
		return ruleError(ErrHighHash, "proof-of-work target exceeds network limit")
	}

	var hashNum chainutil.Uint256
	hashNum.SetBytes(reverseHash(hash))
	if hashNum.Cmp(target) > 0 {
		return ruleError(ErrHighHash, "block hash does not satisfy proof-of-work target")
	}
	return nil
}

// reverseHash returns hash's bytes reversed, converting its internal
// little-endian storage order into the big-endian order Uint256.SetBytes
// expects for numeric comparison against a target.
func reverseHash(hash chainutil.Hash256) []byte {
	out := make([]byte, chainutil.HashSize)
	for i := 0; i < chainutil.HashSize; i++ {
		out[i] = hash[chainutil.HashSize-1-i]
	}
	return out
}
