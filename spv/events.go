// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package spv

import (
	"github.com/btcrelay/corenode/chainstore"
	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/wire"
)

// EventType discriminates the variants carried by Event, a typed event
// stream used in place of per-outcome listener callbacks.
type EventType int

const (
	// EventBlockConnected fires when a full block has been validated and
	// connected to the best chain.
	EventBlockConnected EventType = iota

	// EventFilteredBlockConnected fires when a filtered (merkleblock) block
	// has been validated, every matched transaction has arrived (or the
	// stream was terminated early by a non-tx message), and the block has
	// been connected to the best chain.
	EventFilteredBlockConnected

	// EventFilterRecomputed fires whenever key exhaustion forces a new
	// Bloom filter and a resumed download from the exhausting block's
	// parent.
	EventFilterRecomputed

	// EventPeerRejected fires when a peer is disconnected for delivering
	// a header the validator rejects (for example failing proof-of-work or
	// with an unknown parent), an invalid PMT, or a full block whose
	// transactions do not match its merkle root.
	EventPeerRejected
)

// Event is the single channel type Downloader.Events emits.
type Event struct {
	Type EventType

	// Entry is set for EventBlockConnected and EventFilteredBlockConnected.
	Entry *chainstore.Entry

	// Block is set for EventBlockConnected.
	Block *wire.MsgBlock

	// Matched is set for EventFilteredBlockConnected: the transactions
	// the Bloom filter matched (and that arrived) for this block.
	Matched []*wire.MsgTx

	// ResumeFrom is set for EventFilterRecomputed: the hash download
	// resumed from after the new filter was sent.
	ResumeFrom chainutil.Hash256

	// PeerAddr and Err are set for EventPeerRejected.
	PeerAddr string
	Err      error
}
