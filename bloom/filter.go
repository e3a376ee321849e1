// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bloom implements the BIP37 bloom filter peers use to ask for
// only the transactions matching their wallet, and the merkle block
// construction that answers such a request.
package bloom

import (
	"math"
	"sync"

	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/wire"
	"github.com/spaolacci/murmur3"
)

const (
	// ln2Squared is used when sizing a filter from the desired false
	// positive rate.
	ln2Squared = math.Ln2 * math.Ln2

	// maxFilterLoadHashFuncs is BIP37's cap on hash functions (wire's
	// MsgFilterLoad does not check HashFuncs itself): beyond this many a
	// filter offers no further benefit and only costs CPU per lookup.
	maxFilterLoadHashFuncs = 50
)

// Filter is a BIP37 bloom filter: a bit array tested (and set) by
// hashing each inserted element with HashFuncs independently seeded
// murmur3 hashes.
type Filter struct {
	mu        sync.Mutex
	bits      []byte
	hashFuncs uint32
	tweak     uint32
	update    wire.BloomUpdateType
}

// NewFilter returns an empty filter sized for elements items at the
// given false positive rate fp, using tweak to derive per-filter hash
// seeds (so two filters with the same element set don't look identical
// on the wire).
func NewFilter(elements uint32, tweak uint32, fp float64, update wire.BloomUpdateType) *Filter {
	dataLen, hashFuncs := idealFilterParams(elements, fp)
	return &Filter{
		bits:      make([]byte, dataLen),
		hashFuncs: hashFuncs,
		tweak:     tweak,
		update:    update,
	}
}

// LoadFilter reconstructs a Filter from a received MsgFilterLoad.
func LoadFilter(msg *wire.MsgFilterLoad) *Filter {
	return &Filter{
		bits:      append([]byte(nil), msg.Filter...),
		hashFuncs: msg.HashFuncs,
		tweak:     msg.Tweak,
		update:    msg.Flags,
	}
}

// MsgFilterLoad encodes the filter as a MsgFilterLoad for sending to a peer.
func (f *Filter) MsgFilterLoad() *wire.MsgFilterLoad {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &wire.MsgFilterLoad{
		Filter:    append([]byte(nil), f.bits...),
		HashFuncs: f.hashFuncs,
		Tweak:     f.tweak,
		Flags:     f.update,
	}
}

func idealFilterParams(elements uint32, fp float64) (dataLen uint32, hashFuncs uint32) {
	dataLen = uint32(-1 * float64(elements) * math.Log(fp) / ln2Squared / 8)
	if dataLen > wire.MaxFilterLoadFilterSize {
		dataLen = wire.MaxFilterLoadFilterSize
	}
	if dataLen == 0 {
		dataLen = 1
	}

	hashFuncs = uint32(float64(dataLen*8) / float64(elements) * math.Ln2)
	if hashFuncs > maxFilterLoadHashFuncs {
		hashFuncs = maxFilterLoadHashFuncs
	}
	if hashFuncs == 0 {
		hashFuncs = 1
	}
	return dataLen, hashFuncs
}

// hash returns the bit index data maps to under the i'th hash function.
func (f *Filter) hash(i uint32, data []byte) uint32 {
	seed := i*0xfba4c795 + f.tweak
	return murmur3.Sum32WithSeed(data, seed) % (uint32(len(f.bits)) * 8)
}

// matches reports whether data is (or might be, with false-positive
// probability determined by the filter's sizing) a member.
func (f *Filter) matches(data []byte) bool {
	if len(f.bits) == 0 {
		return false
	}
	for i := uint32(0); i < f.hashFuncs; i++ {
		idx := f.hash(i, data)
		if f.bits[idx/8]&(1<<(idx%8)) == 0 {
			return false
		}
	}
	return true
}

// Matches reports whether data matches the filter.
func (f *Filter) Matches(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matches(data)
}

// add inserts data's bit positions under every hash function.
func (f *Filter) add(data []byte) {
	if len(f.bits) == 0 {
		return
	}
	for i := uint32(0); i < f.hashFuncs; i++ {
		idx := f.hash(i, data)
		f.bits[idx/8] |= 1 << (idx % 8)
	}
}

// Add inserts data into the filter.
func (f *Filter) Add(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.add(data)
}

// AddHash inserts a hash's raw bytes into the filter.
func (f *Filter) AddHash(hash *chainutil.Hash256) {
	f.Add(hash[:])
}

// MatchTxAndUpdate reports whether tx matches the filter (by txid, by
// any output script, or by any input's previous outpoint), and — for
// BloomUpdateAll filters, per BIP37's auto-update rule — adds the
// outpoints of matching outputs so a later spend of them is also matched
// without the client needing to reload the filter. BloomUpdateP2PubkeyOnly
// and BloomUpdateNone filters are never updated.
func (f *Filter) MatchTxAndUpdate(tx *wire.MsgTx, txHash chainutil.Hash256, outputScripts [][]byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := f.matches(txHash[:])

	for i, pkScript := range outputScripts {
		if f.matches(pkScript) {
			matched = true
			if f.update == wire.BloomUpdateAll {
				op := wire.NewOutPoint(&txHash, uint32(i))
				f.add(serializeOutPoint(op))
			}
		}
	}

	for _, txIn := range tx.TxIn {
		if f.matches(serializeOutPoint(&txIn.PreviousOutPoint)) {
			matched = true
		}
	}

	return matched
}

func serializeOutPoint(op *wire.OutPoint) []byte {
	b := make([]byte, 36)
	copy(b[:32], op.Hash[:])
	b[32] = byte(op.Index)
	b[33] = byte(op.Index >> 8)
	b[34] = byte(op.Index >> 16)
	b[35] = byte(op.Index >> 24)
	return b
}

// FilterAdd inserts the data carried by a received MsgFilterAdd.
func (f *Filter) FilterAdd(msg *wire.MsgFilterAdd) {
	f.Add(msg.Data)
}
