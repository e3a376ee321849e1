// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peergroup is the fleet manager: it maintains up to MaxConnections
// peer connections, elects a single download peer, distributes Bloom
// filters, tracks transaction confidence, and fans out broadcasts. All
// state is owned by a single "network thread" goroutine reached only
// through a command channel — nothing outside that goroutine ever
// touches the peer table, the download-peer election, or the
// confidence map directly.
package peergroup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/btcrelay/corenode/addrmgr"
	"github.com/btcrelay/corenode/bloom"
	"github.com/btcrelay/corenode/chaincfg"
	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/peer"
	"github.com/btcrelay/corenode/wire"
	"github.com/decred/dcrd/lru"
	"github.com/google/uuid"
)

const (
	defaultMaxConnections = 8
	minBackoff            = 10 * time.Second
	maxBackoff            = 30 * time.Minute
	rejectCacheSize       = 5000
	broadcastEchoTimeout  = 30 * time.Second
	cmdQueueLen           = 256
)

var (
	// ErrFull is returned by Connect when MaxConnections peers are
	// already connected.
	ErrFull = errors.New("peergroup: connection pool full")

	// ErrNoDownloadPeer is returned by operations that require an
	// elected download peer when none is currently connected.
	ErrNoDownloadPeer = errors.New("peergroup: no download peer")
)

// Dial opens a connection to addr; the default is net.Dial, but callers may
// substitute a SOCKS5 proxy dialer (github.com/btcsuite/go-socks) for Tor
// support.
type Dial func(network, addr string) (net.Conn, error)

// Config bundles everything a PeerGroup needs to create and manage peers.
type Config struct {
	ChainParams    *chaincfg.Params
	MaxConnections int
	UserAgent      string
	Services       wire.ServiceFlag
	BestHeight     func() int32
	AddrMgr        *addrmgr.AddrManager
	Dial           Dial

	// OnHeaders, OnBlock, OnMerkleBlock, and OnTx forward downloader-bound
	// messages; peergroup itself only handles Inv/GetData routing and the
	// handshake/filter/confidence bookkeeping.
	OnHeaders     func(p *peer.Peer, msg *wire.MsgHeaders)
	OnBlock       func(p *peer.Peer, msg *wire.MsgBlock)
	OnMerkleBlock func(p *peer.Peer, msg *wire.MsgMerkleBlock)
	OnTx          func(p *peer.Peer, msg *wire.MsgTx)
	OnNotFound    func(p *peer.Peer, msg *wire.MsgNotFound)

	// OnMessage fires for every post-handshake message from every peer,
	// regardless of type — the downloader's matched-tx reassembly needs
	// this to notice any non-tx message after a MerkleBlock, which no
	// type-specific callback can observe on its own.
	OnMessage func(p *peer.Peer, msg wire.Message)

	// OnConfidenceChange fires whenever a transaction's broadcast-peer
	// count strictly increases.
	OnConfidenceChange func(hash chainutil.Hash256, numBroadcastPeers int)
}

// member is a connected peer plus the bookkeeping the election and
// confidence logic need.
type member struct {
	p             *peer.Peer
	bestHeight    int32
	firstAnnounce time.Time
}

// TxConfidence tracks how many distinct peers have announced a transaction.
type TxConfidence struct {
	Hash   chainutil.Hash256
	SeenBy map[int64]bool
	Count  int
}

type broadcastWaiter struct {
	hash chainutil.Hash256
	done chan error
}

// PeerGroup is the fleet manager.
type PeerGroup struct {
	cfg Config

	cmd chan func()

	peers        map[int64]*member
	downloadPeer int64 // 0 means none elected
	backoff      map[string]time.Time

	filter *bloom.Filter

	confidences map[chainutil.Hash256]*TxConfidence
	rejectCache *lru.Cache[chainutil.Hash256]

	broadcasts map[uuid.UUID]*broadcastWaiter

	// stopped is closed by Run when the network thread exits, so enqueue
	// never blocks forever on a PeerGroup that has already shut down.
	stopped chan struct{}

	runMu  sync.Mutex
	cancel context.CancelFunc
}

// New returns a PeerGroup ready to have Run started on it.
func New(cfg Config) *PeerGroup {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaultMaxConnections
	}
	if cfg.Dial == nil {
		cfg.Dial = net.Dial
	}
	return &PeerGroup{
		cfg:         cfg,
		cmd:         make(chan func(), cmdQueueLen),
		peers:       make(map[int64]*member),
		backoff:     make(map[string]time.Time),
		confidences: make(map[chainutil.Hash256]*TxConfidence),
		rejectCache: lru.NewCache[chainutil.Hash256](rejectCacheSize),
		broadcasts:  make(map[uuid.UUID]*broadcastWaiter),
		stopped:     make(chan struct{}),
	}
}

// Run starts the network thread: the single goroutine that owns all
// PeerGroup state. It returns once ctx is cancelled, after disconnecting
// every peer. Run must only be called once.
func (g *PeerGroup) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g.runMu.Lock()
	g.cancel = cancel
	g.runMu.Unlock()

	defer close(g.stopped)
	defer g.disconnectAll()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-g.cmd:
			fn()
		}
	}
}

// Stop cancels the network thread. It is a no-op if Run has not been
// started yet.
func (g *PeerGroup) Stop() {
	g.runMu.Lock()
	cancel := g.cancel
	g.runMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// enqueue schedules fn to run on the network thread, blocking until it has
// (so callers observe a consistent view of PeerGroup state afterward). It
// returns early, without running fn, once the network thread has stopped
// (g.stopped is only closed by Run on exit). Before Run starts, fn waits in
// the command queue until Run picks it up.
func (g *PeerGroup) enqueue(fn func()) {
	done := make(chan struct{})
	select {
	case g.cmd <- func() { fn(); close(done) }:
		select {
		case <-done:
		case <-g.stopped:
		}
	case <-g.stopped:
	}
}

// Connect dials addr (subject to per-address backoff) and, on a successful
// handshake, adds the new peer to the fleet from the network thread.
func (g *PeerGroup) Connect(ctx context.Context, addr string) error {
	var full, tooSoon bool
	g.enqueue(func() {
		if len(g.peers) >= g.cfg.MaxConnections {
			full = true
			return
		}
		if until, ok := g.backoff[addr]; ok && time.Now().Before(until) {
			tooSoon = true
		}
	})
	if full {
		return ErrFull
	}
	if tooSoon {
		return fmt.Errorf("peergroup: %s is in reconnect backoff", addr)
	}

	conn, err := g.cfg.Dial("tcp", addr)
	if err != nil {
		log.Debugf("peergroup: dial %s: %v", addr, err)
		g.recordFailure(addr)
		return fmt.Errorf("peergroup: dial %s: %w", addr, err)
	}

	p := peer.NewOutboundPeerWithConn(g.peerConfig(), addr, conn)
	if err := p.Start(ctx); err != nil {
		log.Debugf("peergroup: handshake with %s: %v", addr, err)
		g.recordFailure(addr)
		return err
	}

	log.Infof("peergroup: connected to %s", addr)
	g.enqueue(func() {
		g.addMember(p)
		delete(g.backoff, addr)
	})
	return nil
}

// AcceptInbound wraps an already-accepted connection as an inbound peer and
// adds it to the fleet once its handshake completes.
func (g *PeerGroup) AcceptInbound(ctx context.Context, conn net.Conn) error {
	var full bool
	g.enqueue(func() { full = len(g.peers) >= g.cfg.MaxConnections })
	if full {
		conn.Close()
		return ErrFull
	}

	p := peer.NewInboundPeer(g.peerConfig(), conn)
	if err := p.Start(ctx); err != nil {
		return err
	}
	g.enqueue(func() { g.addMember(p) })
	return nil
}

func (g *PeerGroup) recordFailure(addr string) {
	g.enqueue(func() {
		cur := g.backoff[addr]
		next := minBackoff
		if !cur.IsZero() {
			next = time.Until(cur) * 2
			if next < minBackoff {
				next = minBackoff
			}
		}
		if next > maxBackoff {
			next = maxBackoff
		}
		g.backoff[addr] = time.Now().Add(next)
		if g.cfg.AddrMgr != nil {
			if na := parseNetAddress(addr); na != nil {
				g.cfg.AddrMgr.Attempt(na)
			}
		}
	})
}

// addMember registers a freshly handshaken peer, sends it the current
// filter (if any) followed by MemPool, and re-runs download-peer
// election.
func (g *PeerGroup) addMember(p *peer.Peer) {
	g.peers[p.ID()] = &member{p: p, bestHeight: p.LastBlock(), firstAnnounce: time.Now()}

	if g.cfg.AddrMgr != nil {
		if na := parseNetAddress(p.Addr()); na != nil {
			g.cfg.AddrMgr.Good(na)
		}
	}

	if g.filter != nil {
		p.QueueMessage(g.filter.MsgFilterLoad())
		p.QueueMessage(&wire.MsgMemPool{})
	}

	g.electDownloadPeer()

	// watchDisconnect notices the peer leaving for any reason (read/write
	// error, ping timeout, remote hangup) and re-elects a download peer if
	// it was the one that left. Queued through enqueue like everything else
	// touching g.peers.
	go func(id int64) {
		p.WaitForDisconnect()
		g.enqueue(func() { g.removeMember(id) })
	}(p.ID())
}

// removeMember drops a disconnected peer and re-elects the download peer if
// it was the one that left.
func (g *PeerGroup) removeMember(id int64) {
	if m, ok := g.peers[id]; ok {
		log.Infof("peergroup: %s disconnected", m.p.Addr())
	}
	delete(g.peers, id)
	if g.downloadPeer == id {
		g.downloadPeer = 0
		g.electDownloadPeer()
	}
}

// Disconnect removes and tears down the peer with the given ID.
func (g *PeerGroup) Disconnect(id int64) {
	g.enqueue(func() {
		m, ok := g.peers[id]
		if !ok {
			return
		}
		m.p.Disconnect()
		g.removeMember(id)
	})
}

func (g *PeerGroup) disconnectAll() {
	for id, m := range g.peers {
		m.p.Disconnect()
		delete(g.peers, id)
	}
}

// electDownloadPeer elects the connected peer with the highest
// declared best_height, ties resolved by first-to-announce.
// Must run on the network thread.
func (g *PeerGroup) electDownloadPeer() {
	var best *member
	var bestID int64
	for id, m := range g.peers {
		if m.p.State() != peer.StateReady {
			continue
		}
		switch {
		case best == nil:
			best, bestID = m, id
		case m.bestHeight > best.bestHeight:
			best, bestID = m, id
		case m.bestHeight == best.bestHeight && m.firstAnnounce.Before(best.firstAnnounce):
			best, bestID = m, id
		}
	}
	if best != nil && bestID != g.downloadPeer {
		g.downloadPeer = bestID
		log.Infof("peergroup: %s elected download peer at height %d", best.p.Addr(), best.bestHeight)
	}
}

// DownloadPeer returns the currently elected download peer, or nil if none.
func (g *PeerGroup) DownloadPeer() *peer.Peer {
	var p *peer.Peer
	g.enqueue(func() {
		if m, ok := g.peers[g.downloadPeer]; ok {
			p = m.p
		}
	})
	return p
}

// Peers returns a snapshot of currently connected peers.
func (g *PeerGroup) Peers() []*peer.Peer {
	var out []*peer.Peer
	g.enqueue(func() {
		out = make([]*peer.Peer, 0, len(g.peers))
		for _, m := range g.peers {
			out = append(out, m.p)
		}
	})
	return out
}

// SetFilter recomputes and broadcasts the Bloom filter to every
// connected peer, e.g. once a key lookahead threshold is crossed.
func (g *PeerGroup) SetFilter(f *bloom.Filter) {
	g.enqueue(func() {
		g.filter = f
		for _, m := range g.peers {
			if m.p.State() != peer.StateReady {
				continue
			}
			m.p.QueueMessage(f.MsgFilterLoad())
			m.p.QueueMessage(&wire.MsgMemPool{})
		}
	})
}

// SetFilterSilent updates the filter used for future peer connections
// without rebroadcasting to existing ones — useful for a newly
// discovered outgoing pay-to-pubkey output, since existing peers
// already track the same derivation locally.
func (g *PeerGroup) SetFilterSilent(f *bloom.Filter) {
	g.enqueue(func() { g.filter = f })
}

// Broadcast publishes tx to at least ceil(peers/2) ready peers and waits
// for any of them to echo it back (an Inv or Tx announcing the same hash),
// or for ctx/timeout to expire.
func (g *PeerGroup) Broadcast(ctx context.Context, tx *wire.MsgTx) error {
	txHash := tx.TxHash()
	id := uuid.New()
	waiter := &broadcastWaiter{hash: txHash, done: make(chan error, 1)}

	var sent int
	g.enqueue(func() {
		g.broadcasts[id] = waiter
		ready := make([]*member, 0, len(g.peers))
		for _, m := range g.peers {
			if m.p.State() == peer.StateReady {
				ready = append(ready, m)
			}
		}
		want := (len(ready) + 1) / 2
		for i, m := range ready {
			if i >= want {
				break
			}
			if m.p.QueueMessage(tx) == nil {
				sent++
			}
		}
	})

	if sent == 0 {
		g.enqueue(func() { delete(g.broadcasts, id) })
		return errors.New("peergroup: no peers available to broadcast to")
	}

	tctx, cancel := context.WithTimeout(ctx, broadcastEchoTimeout)
	defer cancel()

	select {
	case err := <-waiter.done:
		return err
	case <-tctx.Done():
		g.enqueue(func() { delete(g.broadcasts, id) })
		return tctx.Err()
	}
}

// ConfidenceCount returns the current numBroadcastPeers for hash.
func (g *PeerGroup) ConfidenceCount(hash chainutil.Hash256) int {
	var n int
	g.enqueue(func() {
		if c, ok := g.confidences[hash]; ok {
			n = c.Count
		}
	})
	return n
}

// recordAnnounce increments numBroadcastPeers(hash) the first time peerID
// announces it, firing OnConfidenceChange on the resulting strict increase,
// and completes any pending Broadcast future waiting on an echo of hash.
// Must run on the network thread.
func (g *PeerGroup) recordAnnounce(peerID int64, hash chainutil.Hash256) {
	c, ok := g.confidences[hash]
	if !ok {
		c = &TxConfidence{Hash: hash, SeenBy: make(map[int64]bool)}
		g.confidences[hash] = c
	}
	if c.SeenBy[peerID] {
		return
	}
	c.SeenBy[peerID] = true
	c.Count++
	if g.cfg.OnConfidenceChange != nil {
		g.cfg.OnConfidenceChange(hash, c.Count)
	}

	for id, w := range g.broadcasts {
		if w.hash == hash {
			w.done <- nil
			delete(g.broadcasts, id)
		}
	}
}

func (g *PeerGroup) peerConfig() *peer.Config {
	return &peer.Config{
		ChainParams: g.cfg.ChainParams,
		UserAgent:   g.cfg.UserAgent,
		Services:    g.cfg.Services,
		BestHeight:  g.cfg.BestHeight,
		Listeners:   g.listeners(),
	}
}

// listeners wires every per-peer callback back into commands on the
// network thread, so nothing outside it ever touches PeerGroup state.
func (g *PeerGroup) listeners() peer.MessageListeners {
	return peer.MessageListeners{
		OnVersion: func(p *peer.Peer, msg *wire.MsgVersion) {
			g.enqueue(func() {
				if m, ok := g.peers[p.ID()]; ok {
					advanced := msg.LastBlock > m.bestHeight
					m.bestHeight = msg.LastBlock
					if advanced {
						g.electDownloadPeer()
					}
				}
			})
		},
		OnInv: func(p *peer.Peer, msg *wire.MsgInv) {
			g.enqueue(func() {
				g.handleInv(p, msg)
			})
		},
		OnTx: func(p *peer.Peer, msg *wire.MsgTx) {
			g.enqueue(func() {
				g.recordAnnounce(p.ID(), msg.TxHash())
			})
			if g.cfg.OnTx != nil {
				g.cfg.OnTx(p, msg)
			}
		},
		OnHeaders: func(p *peer.Peer, msg *wire.MsgHeaders) {
			if g.cfg.OnHeaders != nil {
				g.cfg.OnHeaders(p, msg)
			}
		},
		OnBlock: func(p *peer.Peer, msg *wire.MsgBlock, _ []byte) {
			if g.cfg.OnBlock != nil {
				g.cfg.OnBlock(p, msg)
			}
		},
		OnMerkleBlock: func(p *peer.Peer, msg *wire.MsgMerkleBlock) {
			if g.cfg.OnMerkleBlock != nil {
				g.cfg.OnMerkleBlock(p, msg)
			}
		},
		OnNotFound: func(p *peer.Peer, msg *wire.MsgNotFound) {
			if g.cfg.OnNotFound != nil {
				g.cfg.OnNotFound(p, msg)
			}
		},
		OnFilterLoad: func(p *peer.Peer, msg *wire.MsgFilterLoad) {},
		OnFilterAdd:  func(p *peer.Peer, msg *wire.MsgFilterAdd) {},
		OnRead: func(p *peer.Peer, msg wire.Message, _ []byte) {
			if g.cfg.OnMessage != nil {
				g.cfg.OnMessage(p, msg)
			}
		},
	}
}

// handleInv records transaction confidence for tx items, fetches via
// GetData the tx items not in the reject cache, and fetches only the
// download peer's block invs. Block invs from other peers are ignored and
// do not change any peer's best-height estimate. Must run on the network
// thread.
func (g *PeerGroup) handleInv(p *peer.Peer, msg *wire.MsgInv) {
	if _, ok := g.peers[p.ID()]; !ok {
		return
	}

	var wanted *wire.MsgGetData
	for _, item := range msg.InvList {
		switch item.Type {
		case wire.InvTypeTx:
			g.recordAnnounce(p.ID(), item.Hash)
			if g.rejectCache.Contains(item.Hash) {
				continue
			}
			if wanted == nil {
				wanted = wire.NewMsgGetData()
			}
			wanted.AddInvVect(item)
		case wire.InvTypeBlock:
			if p.ID() != g.downloadPeer {
				continue
			}
			if wanted == nil {
				wanted = wire.NewMsgGetData()
			}
			// Ask for a filtered block when a Bloom filter is loaded, a full
			// block otherwise — the peer announced InvTypeBlock either way.
			wantType := item.Type
			if g.filter != nil {
				wantType = wire.InvTypeFilteredBlock
			}
			wanted.AddInvVect(wire.NewInvVect(wantType, &item.Hash))
		}
	}
	if wanted != nil && len(wanted.InvList) > 0 {
		p.QueueMessage(wanted)
	}
}

// RejectTx marks hash as recently rejected so a subsequent Inv for it is
// not re-requested in a tight loop.
func (g *PeerGroup) RejectTx(hash chainutil.Hash256) {
	g.enqueue(func() { g.rejectCache.Add(hash) })
}

// parseNetAddress turns a "host:port" string into a wire.NetAddress for
// AddrManager bookkeeping, or nil if it cannot be parsed (e.g. a pipe or
// in-process test address with no resolvable host:port form).
func parseNetAddress(addr string) *wire.NetAddress {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	var port uint16
	fmt.Sscanf(portStr, "%d", &port)
	return wire.NewNetAddressIPPort(ip, port, 0)
}
