// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainstore persists the header chain: one entry per accepted
// header, its height, and its cumulative chain work, with lookups by hash
// or by height along the best chain.
package chainstore

import (
	"errors"

	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/wire"
)

// ErrNotFound is returned when a lookup finds no matching entry.
var ErrNotFound = errors.New("chainstore: not found")

// Entry is a single stored header together with the chain-relative
// metadata the validator and downloader need: its height and the
// cumulative proof-of-work of the chain ending at it.
type Entry struct {
	Header    wire.BlockHeader
	Height    int32
	ChainWork chainutil.Uint256
}

// Hash returns the entry's block hash.
func (e *Entry) Hash() chainutil.Hash256 {
	return e.Header.BlockHash()
}

// Store is the persistence contract for the header chain. It is the
// one pluggable boundary — the validator and downloader are agnostic
// to whether entries live in memory or on disk — so implementations
// need only support this interface.
type Store interface {
	// Tip returns the entry at the head of the best chain, or ErrNotFound
	// if the store is empty.
	Tip() (*Entry, error)

	// GetByHash returns the entry for hash, or ErrNotFound.
	GetByHash(hash chainutil.Hash256) (*Entry, error)

	// GetByHeight returns the entry at height on the current best chain,
	// or ErrNotFound if height is out of range.
	GetByHeight(height int32) (*Entry, error)

	// Put stores entry, indexed by its header's hash. It does not alter
	// the best chain; call SetTip to do that once the caller has decided
	// entry extends (or replaces) it.
	Put(entry *Entry) error

	// SetTip marks hash as the head of the best chain. hash must already
	// have been stored via Put. SetTip also rebuilds the height index
	// along the chain ending at hash, which handles reorgs: heights that
	// pointed at the abandoned branch are overwritten.
	SetTip(hash chainutil.Hash256) error

	// Height returns the height of the current best chain tip, or -1 if
	// the store is empty.
	Height() int32
}

// BuildLocator returns a block locator starting at the entry for hash and
// walking backward with exponentially increasing gaps (10 consecutive
// heights, then doubling). The genesis hash is always the final (or
// only) entry.
func BuildLocator(s Store, hash chainutil.Hash256) ([]chainutil.Hash256, error) {
	start, err := s.GetByHash(hash)
	if err != nil {
		return nil, err
	}

	var locator []chainutil.Hash256
	step := int32(1)
	height := start.Height
	cur := start

	for {
		locator = append(locator, cur.Hash())

		if height == 0 {
			break
		}
		if len(locator) >= 10 {
			step *= 2
		}
		height -= step
		if height < 0 {
			height = 0
		}

		cur, err = s.GetByHeight(height)
		if err != nil {
			// The requested height fell off the locally stored chain
			// (e.g. hash is on an abandoned branch below the current
			// height index); stop here rather than error the whole
			// locator.
			break
		}
	}

	return locator, nil
}
