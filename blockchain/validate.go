// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"time"

	"github.com/btcrelay/corenode/chaincfg"
	"github.com/btcrelay/corenode/chainstore"
	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/wire"
)

// medianTimeBlocks is the number of preceding blocks whose timestamps are
// sorted to produce a past median time, below which a new header's
// timestamp must not fall.
const medianTimeBlocks = 11

// maxFutureBlockTime is how far into the future (relative to the
// validator's own clock) a header's timestamp may claim to be.
const maxFutureBlockTime = 2 * time.Hour

// Validator checks candidate headers against a network's consensus rules
// before they are admitted to a chainstore.Store, tying together
// proof-of-work, timestamp, difficulty-retarget, and checkpoint checks.
type Validator struct {
	store  chainstore.Store
	params *chaincfg.Params

	// now is the validator's clock, overridable in tests.
	now func() time.Time
}

// NewValidator returns a Validator that checks headers against params
// before recording them in store.
func NewValidator(store chainstore.Store, params *chaincfg.Params) *Validator {
	return &Validator{store: store, params: params, now: time.Now}
}

// AcceptHeader validates header against the chain currently recorded in
// the store and, if it passes, stores it (without changing the best-chain
// tip — callers decide reorg policy via chainstore.Store.SetTip once they
// have compared cumulative work across competing branches).
//
// It returns the new entry's computed height and cumulative chain work on
// success.
func (v *Validator) AcceptHeader(header *wire.BlockHeader) (*chainstore.Entry, error) {
	hash := header.BlockHash()

	if _, err := v.store.GetByHash(hash); err == nil {
		return nil, ruleError(ErrDuplicateBlock, "header already accepted")
	}

	// Genesis is accepted unconditionally; it has no parent to validate
	// against.
	if header.PrevBlock.IsZero() {
		entry := &chainstore.Entry{
			Header:    *header,
			Height:    0,
			ChainWork: workForBits(header.Bits),
		}
		if err := v.store.Put(entry); err != nil {
			return nil, err
		}
		return entry, nil
	}

	prevEntry, err := v.store.GetByHash(header.PrevBlock)
	if err != nil {
		return nil, ruleError(ErrMissingParent, "previous block not found")
	}

	if err := v.checkBlockHeaderSanity(header, prevEntry); err != nil {
		return nil, err
	}

	height := prevEntry.Height + 1
	if err := v.checkCheckpoint(height, hash); err != nil {
		return nil, err
	}

	entry := &chainstore.Entry{
		Header:    *header,
		Height:    height,
		ChainWork: prevEntry.ChainWork.Add(workForBits(header.Bits)),
	}
	if err := v.store.Put(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (v *Validator) checkBlockHeaderSanity(header *wire.BlockHeader, prevEntry *chainstore.Entry) error {
	if err := CheckProofOfWork(header.BlockHash(), header.Bits, v.params.PowLimit); err != nil {
		return err
	}

	medianTime, err := v.calcPastMedianTime(prevEntry)
	if err != nil {
		return err
	}
	if header.Timestamp.Before(medianTime) || header.Timestamp.Equal(medianTime) {
		return ruleError(ErrInvalidTimestamp, "header timestamp is not after median of last 11 blocks")
	}
	if header.Timestamp.After(v.now().Add(maxFutureBlockTime)) {
		return ruleError(ErrInvalidTimestamp, "header timestamp too far in the future")
	}

	wantBits, err := CalcNextRequiredDifficulty(v.store, v.params, prevEntry, header.Timestamp)
	if err != nil {
		return err
	}
	if header.Bits != wantBits {
		return ruleError(ErrUnexpectedDifficulty, "header bits does not match required difficulty")
	}

	return nil
}

// calcPastMedianTime returns the median timestamp of up to the last
// medianTimeBlocks entries ending at prevEntry, inclusive.
func (v *Validator) calcPastMedianTime(prevEntry *chainstore.Entry) (time.Time, error) {
	timestamps := make([]time.Time, 0, medianTimeBlocks)
	cur := prevEntry
	for {
		timestamps = append(timestamps, cur.Header.Timestamp)
		if len(timestamps) == medianTimeBlocks || cur.Height == 0 {
			break
		}
		parent, err := v.store.GetByHash(cur.Header.PrevBlock)
		if err != nil {
			break
		}
		cur = parent
	}

	sorted := make([]time.Time, len(timestamps))
	copy(sorted, timestamps)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Before(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted[len(sorted)/2], nil
}

func (v *Validator) checkCheckpoint(height int32, hash chainutil.Hash256) error {
	for _, cp := range v.params.Checkpoints {
		if cp.Height == height && cp.Hash != hash {
			return ruleError(ErrBadCheckpoint, "header at checkpointed height does not match checkpoint hash")
		}
	}
	return nil
}

// workForBits returns the amount of work a block satisfying bits
// contributes to cumulative chain work: 2^256 / (target+1).
func workForBits(bits uint32) chainutil.Uint256 {
	target := chainutil.CompactTarget(bits).Uint256()
	if target.IsZero() {
		return chainutil.Uint256{}
	}
	// (~target / (target+1)) + 1 computes floor(2^256 / (target+1))
	// without requiring a value wider than 256 bits.
	denom := target.AddUint64(1)
	complement := chainutil.Uint256FromUint64(0).Sub(target).Sub(chainutil.Uint256FromUint64(1))
	return divUint256(complement, denom).AddUint64(1)
}

// divUint256 performs long division of a 256-bit dividend by a 256-bit
// divisor using repeated shift-and-subtract, sufficient for the rare,
// non-performance-critical chain-work calculation.
func divUint256(num, den chainutil.Uint256) chainutil.Uint256 {
	if den.IsZero() {
		return chainutil.Uint256{}
	}
	var quotient, remainder chainutil.Uint256
	for bit := 255; bit >= 0; bit-- {
		remainder = remainder.Lsh(1)
		if bitSet(num, bit) {
			remainder = remainder.AddUint64(1)
		}
		if remainder.Cmp(den) >= 0 {
			remainder = remainder.Sub(den)
			quotient = setBit(quotient, bit)
		}
	}
	return quotient
}

func bitSet(u chainutil.Uint256, bit int) bool {
	b := u.Bytes()
	byteIdx := 31 - bit/8
	return b[byteIdx]&(1<<uint(bit%8)) != 0
}

func setBit(u chainutil.Uint256, bit int) chainutil.Uint256 {
	return u.Add(chainutil.Uint256FromUint64(1).Lsh(uint(bit)))
}
