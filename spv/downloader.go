// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package spv drives the download peer through the GetBlocks → Inv →
// GetData → Block/MerkleBlock exchange that brings a header chain and
// (optionally, filtered) transaction set up to date.
// PeerGroup already turns an Inv into the right GetData for the
// currently elected download peer; Downloader is what issues the
// GetBlocks that starts each round, validates and connects what comes
// back, and reassembles a filtered block's matched transactions before
// treating it as complete.
package spv

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/btcrelay/corenode/blockchain"
	"github.com/btcrelay/corenode/bloom"
	"github.com/btcrelay/corenode/chainstore"
	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/peer"
	"github.com/btcrelay/corenode/peergroup"
	"github.com/btcrelay/corenode/wire"
)

// ErrBlockMerkleMismatch is returned (via an EventPeerRejected event, not
// as a Go error return — Downloader has no caller-facing error-returning
// entry point once running) when a full block's transactions don't hash
// to the merkle root its header commits to.
var ErrBlockMerkleMismatch = errors.New("spv: block transactions do not match header merkle root")

// Config bundles everything a Downloader needs. Group is attached
// separately via Attach, after construction, since a PeerGroup's own
// Config must in turn reference the Downloader's handler methods — see
// Attach for the order this implies.
type Config struct {
	Store     chainstore.Store
	Validator *blockchain.Validator

	// Filter is the Bloom filter currently in effect; nil means full
	// blocks are requested instead of filtered ones. Downloader does not
	// install it: the caller passes it to PeerGroup.SetFilter, which is
	// what decides whether subsequent Inv replies request Block or
	// FilteredBlock (peergroup.go's handleInv); after key exhaustion
	// Downloader installs the NewFilter result there itself.
	Filter *bloom.Filter

	// RequestInterval is how often Downloader reissues GetBlocks from
	// the current tip to the download peer. Real-world link latency and
	// peer churn make "stop when the last inv was empty" unreliable to
	// detect directly over the wire; periodic reissue is simpler and
	// converges to the same steady state.
	RequestInterval time.Duration

	// EventBuffer sizes the channel returned by Events.
	EventBuffer int

	// OnMatchedTx is called once a filtered block's matched transaction
	// has fully arrived. It returns whether receiving tx crossed the
	// wallet's key lookahead threshold — key derivation and lookahead
	// tracking are a wallet concern this module does not implement, so
	// the caller decides; Downloader only implements what happens once
	// that's signalled: discard the batch, recompute the filter, and
	// resume.
	OnMatchedTx func(tx *wire.MsgTx) bool

	// NewFilter recomputes the Bloom filter after key exhaustion. Its
	// result is installed via PeerGroup.SetFilter (which rebroadcasts it
	// with a trailing MemPool).
	NewFilter func() *bloom.Filter
}

// pendingMerkle tracks a filtered block whose PMT has been verified but
// whose matched transactions haven't all arrived yet.
type pendingMerkle struct {
	entry  *chainstore.Entry
	peerID int64
	want   map[chainutil.Hash256]bool
	got    map[chainutil.Hash256]*wire.MsgTx
}

// Downloader is the chain downloader: it drives the download peer
// through GetBlocks/Inv/GetData/Block exchanges and reassembles
// filtered blocks before treating them as complete.
type Downloader struct {
	cfg    Config
	events chan Event
	ctx    context.Context

	mu           sync.Mutex
	group        *peergroup.PeerGroup
	pending      map[chainutil.Hash256]*pendingMerkle
	awaitingPeer map[int64]chainutil.Hash256
}

// New returns a Downloader. Call Attach once its PeerGroup exists, then
// Start to begin issuing GetBlocks.
func New(cfg Config) *Downloader {
	if cfg.RequestInterval <= 0 {
		cfg.RequestInterval = 5 * time.Second
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	return &Downloader{
		cfg:          cfg,
		events:       make(chan Event, cfg.EventBuffer),
		ctx:          context.Background(),
		pending:      make(map[chainutil.Hash256]*pendingMerkle),
		awaitingPeer: make(map[int64]chainutil.Hash256),
	}
}

// Attach wires the PeerGroup Downloader issues GetBlocks/SetFilter
// through. It does not itself register Downloader's handlers with g —
// the caller does that by passing HandleBlock/HandleMerkleBlock/
// HandleTx/HandleMessage into peergroup.Config before constructing g,
// since g must exist before Attach can be called but its Config must be
// set at construction.
func (d *Downloader) Attach(g *peergroup.PeerGroup) {
	d.mu.Lock()
	d.group = g
	d.mu.Unlock()
}

// Events returns the channel every connected/rejected/recomputed
// notification is delivered on.
func (d *Downloader) Events() <-chan Event {
	return d.events
}

// Start begins the periodic GetBlocks loop. It returns immediately; the
// loop runs until ctx is cancelled.
func (d *Downloader) Start(ctx context.Context) {
	d.ctx = ctx
	go d.syncLoop(ctx)
}

func (d *Downloader) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.RequestInterval)
	defer ticker.Stop()

	d.requestNext()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.requestNext()
		}
	}
}

func (d *Downloader) requestNext() {
	tip, err := d.cfg.Store.Tip()
	if err != nil {
		log.Debugf("spv: store has no tip yet, not requesting blocks: %v", err)
		return
	}
	d.requestFrom(tip.Hash())
}

// requestFrom issues GetBlocks(locator(hash), ZERO_HASH) to the current
// download peer.
func (d *Downloader) requestFrom(hash chainutil.Hash256) {
	d.mu.Lock()
	g := d.group
	d.mu.Unlock()
	if g == nil {
		return
	}
	dp := g.DownloadPeer()
	if dp == nil {
		return
	}

	locator, err := chainstore.BuildLocator(d.cfg.Store, hash)
	if err != nil {
		log.Warnf("spv: build locator from %s: %v", hash, err)
		return
	}

	msg := wire.NewMsgGetBlocks(chainutil.Hash256{})
	for _, h := range locator {
		if err := msg.AddBlockLocatorHash(h); err != nil {
			log.Warnf("spv: locator truncated: %v", err)
			break
		}
	}
	if err := dp.QueueMessage(msg); err != nil {
		log.Debugf("spv: queue getblocks to %s: %v", dp.Addr(), err)
	}
}

// HandleBlock processes a full block received in response to a GetData
// (non-filtered mode).
func (d *Downloader) HandleBlock(p *peer.Peer, block *wire.MsgBlock) {
	entry, err := d.cfg.Validator.AcceptHeader(&block.Header)
	if err != nil {
		d.reject(p, err)
		return
	}
	if root := blockchain.CalcMerkleRoot(block.Transactions); root != block.Header.MerkleRoot {
		d.reject(p, ErrBlockMerkleMismatch)
		return
	}
	d.connect(entry, block, nil)
}

// HandleMerkleBlock verifies a filtered block's PMT and either connects
// it immediately (no matches) or registers it to wait for its matched
// transactions.
func (d *Downloader) HandleMerkleBlock(p *peer.Peer, mb *wire.MsgMerkleBlock) {
	// A new MerkleBlock ends the peer's previous matched-tx stream.
	d.mu.Lock()
	prev, open := d.awaitingPeer[p.ID()]
	delete(d.awaitingPeer, p.ID())
	d.mu.Unlock()
	if open {
		d.finalizePending(prev)
	}

	entry, err := d.cfg.Validator.AcceptHeader(&mb.Header)
	if err != nil {
		d.reject(p, err)
		return
	}

	matched, err := bloom.ExtractMatches(mb)
	if err != nil {
		d.reject(p, err)
		return
	}
	if len(matched) == 0 {
		d.connect(entry, nil, nil)
		return
	}

	want := make(map[chainutil.Hash256]bool, len(matched))
	for _, h := range matched {
		want[h] = true
	}

	hash := entry.Hash()
	d.mu.Lock()
	d.pending[hash] = &pendingMerkle{entry: entry, peerID: p.ID(), want: want, got: make(map[chainutil.Hash256]*wire.MsgTx)}
	d.awaitingPeer[p.ID()] = hash
	d.mu.Unlock()
}

// HandleTx records a matched transaction against its block's pending
// set, finalizing the block once every match has arrived, and runs the
// key-exhaustion discard-and-resume policy if the caller's wallet
// signals the filter is now stale.
func (d *Downloader) HandleTx(p *peer.Peer, tx *wire.MsgTx) {
	hash := tx.TxHash()

	d.mu.Lock()
	blockHash, ok := d.awaitingPeer[p.ID()]
	if !ok {
		d.mu.Unlock()
		return
	}
	pm, ok := d.pending[blockHash]
	if !ok || !pm.want[hash] || pm.got[hash] != nil {
		d.mu.Unlock()
		return
	}
	pm.got[hash] = tx
	complete := len(pm.got) == len(pm.want)
	if complete {
		delete(d.awaitingPeer, p.ID())
	}
	d.mu.Unlock()

	var exhausted bool
	if d.cfg.OnMatchedTx != nil {
		exhausted = d.cfg.OnMatchedTx(tx)
	}
	if exhausted {
		d.handleKeyExhaustion(pm)
		return
	}
	if complete {
		d.finalizePending(blockHash)
	}
}

// HandleMessage terminates a peer's in-flight matched-tx stream on any
// non-Tx message: a non-tx message from the peer after the
// MerkleBlock terminates the matched-tx stream for that block, which
// is then connected with whatever matches arrived. A MerkleBlock is
// skipped here, since it is also delivered to HandleMerkleBlock, which
// ends the peer's previous stream itself.
func (d *Downloader) HandleMessage(p *peer.Peer, msg wire.Message) {
	switch msg.(type) {
	case *wire.MsgTx, *wire.MsgMerkleBlock:
		return
	}

	d.mu.Lock()
	hash, ok := d.awaitingPeer[p.ID()]
	if ok {
		delete(d.awaitingPeer, p.ID())
	}
	d.mu.Unlock()

	if ok {
		d.finalizePending(hash)
	}
}

func (d *Downloader) finalizePending(hash chainutil.Hash256) {
	d.mu.Lock()
	pm, ok := d.pending[hash]
	if ok {
		delete(d.pending, hash)
	}
	d.mu.Unlock()
	if !ok {
		return
	}

	matched := make([]*wire.MsgTx, 0, len(pm.got))
	for _, tx := range pm.got {
		matched = append(matched, tx)
	}
	d.connect(pm.entry, nil, matched)
}

// handleKeyExhaustion discards every currently pending filtered block —
// the exhausting one and whatever else was in flight in the same
// batch — recomputes and rebroadcasts the filter, and restarts the
// download from the exhausting block's parent.
func (d *Downloader) handleKeyExhaustion(exhausting *pendingMerkle) {
	d.mu.Lock()
	d.pending = make(map[chainutil.Hash256]*pendingMerkle)
	d.awaitingPeer = make(map[int64]chainutil.Hash256)
	g := d.group
	d.mu.Unlock()

	if d.cfg.NewFilter != nil && g != nil {
		if f := d.cfg.NewFilter(); f != nil {
			d.cfg.Filter = f
			g.SetFilter(f)
		}
	}

	resumeFrom := exhausting.entry.Header.PrevBlock
	d.requestFrom(resumeFrom)
	d.emit(Event{Type: EventFilterRecomputed, ResumeFrom: resumeFrom})
}

// connect stores entry (already persisted by AcceptHeader) as the new
// best-chain tip if its cumulative work advances past the current one,
// and emits the corresponding connected event.
func (d *Downloader) connect(entry *chainstore.Entry, block *wire.MsgBlock, matched []*wire.MsgTx) {
	tip, err := d.cfg.Store.Tip()
	extends := err != nil || entry.ChainWork.Cmp(tip.ChainWork) > 0
	if !extends {
		return
	}
	if err := d.cfg.Store.SetTip(entry.Hash()); err != nil {
		log.Warnf("spv: set tip to %s: %v", entry.Hash(), err)
		return
	}

	evt := Event{Entry: entry, Block: block, Matched: matched}
	if block != nil {
		evt.Type = EventBlockConnected
	} else {
		evt.Type = EventFilteredBlockConnected
	}
	d.emit(evt)
}

// reject disconnects the offending peer (PeerGroup's disconnect
// watcher re-elects the download peer and the next tick resumes from
// the current head) and notifies.
func (d *Downloader) reject(p *peer.Peer, err error) {
	log.Warnf("spv: disconnecting %s: %v", p.Addr(), err)
	p.Disconnect()
	d.emit(Event{Type: EventPeerRejected, PeerAddr: p.Addr(), Err: err})
}

func (d *Downloader) emit(ev Event) {
	select {
	case d.events <- ev:
	case <-d.ctx.Done():
	}
}
