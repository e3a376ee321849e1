// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peer implements one end of a connection to a remote node: the
// version/verack handshake, ping/pong keepalive, and inbound message
// dispatch via a single reader goroutine and a single writer goroutine
// per peer, never sharing the connection between callers.
package peer

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcrelay/corenode/chaincfg"
	"github.com/btcrelay/corenode/wire"
)

// State is the lifecycle stage of a Peer's connection.
type State int32

const (
	StateNew State = iota
	StateConnecting
	StateHandshaking
	StateReady
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Default timing parameters for the handshake and keepalive.
const (
	handshakeTimeout = 30 * time.Second
	pingInterval     = 2 * time.Minute
	pingTimeout      = 30 * time.Second
	idleTimeout      = 5 * time.Minute
	outQueueLen      = 50
	trickleInterval  = 200 * time.Millisecond
)

var (
	// ErrAlreadyConnected is returned by Connect if called more than once.
	ErrAlreadyConnected = errors.New("peer: already connected")

	// ErrNotReady is returned when QueueMessage is called before the
	// handshake has completed.
	ErrNotReady = errors.New("peer: not ready")
)

// Config bundles the fixed parameters a Peer needs at construction: which
// network it speaks, how it identifies itself, and which callbacks to
// invoke for inbound messages.
type Config struct {
	ChainParams *chaincfg.Params
	UserAgent   string
	Services    wire.ServiceFlag
	// BestHeight reports this node's current chain height for the
	// version handshake; may be nil, in which case 0 is advertised.
	BestHeight func() int32
	Listeners  MessageListeners
}

// Peer manages a single connection to a remote node: the handshake, a
// single reader goroutine decoding inbound wire.Message values and
// dispatching them to cfg.Listeners, a single writer goroutine draining an
// outbound queue, and a ping/pong keepalive loop. The read and ping loops
// also share the outstanding-ping fields, guarded by pingMu, and Disconnect
// may be called from any goroutine to move the state to StateDisconnected.
type Peer struct {
	cfg    *Config
	conn   net.Conn
	inbound bool

	id   int64
	addr string

	state atomic.Int32

	versionSent atomic.Bool

	userAgent       string
	services        wire.ServiceFlag
	lastBlock       atomic.Int32
	protocolVersion uint32

	outQueue chan wire.Message

	pingMu      sync.Mutex
	pingNonce   uint64
	pingSent    time.Time
	lastPingMicros atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	quitOnce sync.Once
}

var peerIDCounter int64

func nextPeerID() int64 {
	return atomic.AddInt64(&peerIDCounter, 1)
}

// NewOutboundPeer returns a Peer that will dial addr once Connect is called.
func NewOutboundPeer(cfg *Config, addr string) *Peer {
	p := newPeer(cfg, false)
	p.addr = addr
	return p
}

// NewInboundPeer returns a Peer wrapping an already-accepted connection.
func NewInboundPeer(cfg *Config, conn net.Conn) *Peer {
	p := newPeer(cfg, true)
	p.conn = conn
	p.addr = conn.RemoteAddr().String()
	return p
}

// NewOutboundPeerWithConn returns an outbound Peer over a connection the
// caller already established (e.g. through a SOCKS proxy dialer), skipping
// Connect's own net.Dial.
func NewOutboundPeerWithConn(cfg *Config, addr string, conn net.Conn) *Peer {
	p := newPeer(cfg, false)
	p.addr = addr
	p.conn = conn
	p.state.Store(int32(StateConnecting))
	return p
}

func newPeer(cfg *Config, inbound bool) *Peer {
	p := &Peer{
		cfg:      cfg,
		inbound:  inbound,
		id:       nextPeerID(),
		outQueue: make(chan wire.Message, outQueueLen),
	}
	p.state.Store(int32(StateNew))
	return p
}

func (p *Peer) ID() int64      { return p.id }
func (p *Peer) Addr() string   { return p.addr }
func (p *Peer) Inbound() bool  { return p.inbound }
func (p *Peer) State() State   { return State(p.state.Load()) }
func (p *Peer) UserAgent() string { return p.userAgent }
func (p *Peer) Services() wire.ServiceFlag { return p.services }
func (p *Peer) LastBlock() int32 { return p.lastBlock.Load() }

// LastPingDuration returns the round-trip time of the most recently
// completed ping, or zero if none has completed yet.
func (p *Peer) LastPingDuration() time.Duration {
	return time.Duration(p.lastPingMicros.Load()) * time.Microsecond
}

// Connect dials the peer's address (outbound only), performs the
// version/verack handshake, and starts the read, write, and ping loops.
// It blocks until the handshake completes or ctx is done.
func (p *Peer) Connect(ctx context.Context) error {
	if p.inbound {
		return p.Start(ctx)
	}
	if !p.state.CompareAndSwap(int32(StateNew), int32(StateConnecting)) {
		return ErrAlreadyConnected
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		p.state.Store(int32(StateDisconnected))
		return fmt.Errorf("peer: dial %s: %w", p.addr, err)
	}
	p.conn = conn
	return p.Start(ctx)
}

// Start begins the handshake and background loops for a Peer that already
// has a live connection (used directly for inbound peers, and internally
// by Connect for outbound ones).
func (p *Peer) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.state.Store(int32(StateHandshaking))

	hctx, hcancel := context.WithTimeout(p.ctx, handshakeTimeout)
	defer hcancel()

	if err := p.handshake(hctx); err != nil {
		p.Disconnect()
		return err
	}

	p.state.Store(int32(StateReady))

	p.wg.Add(3)
	go p.readLoop()
	go p.writeLoop()
	go p.pingLoop()

	return nil
}

func (p *Peer) handshake(ctx context.Context) error {
	bnet := p.cfg.ChainParams.Net

	if !p.inbound {
		if err := p.sendVersion(bnet); err != nil {
			return err
		}
	}

	deadline, _ := ctx.Deadline()
	p.conn.SetReadDeadline(deadline)
	defer p.conn.SetReadDeadline(time.Time{})

	var gotVersion, gotVerAck bool
	var verackDone chan error
	for !gotVersion || !gotVerAck {
		msg, _, err := wire.ReadMessage(p.conn, p.negotiatedVersion(), bnet)
		if err != nil {
			return fmt.Errorf("peer: handshake read: %w", err)
		}

		switch m := msg.(type) {
		case *wire.MsgVersion:
			if gotVersion {
				return errors.New("peer: duplicate version message")
			}
			p.applyVersion(m)
			gotVersion = true
			if p.inbound {
				if err := p.sendVersion(bnet); err != nil {
					return err
				}
			}
			// The remote may be writing its own verack at the same moment;
			// write ours concurrently so an unbuffered conn cannot deadlock.
			ch := make(chan error, 1)
			verackDone = ch
			go func(pver uint32) {
				ch <- wire.WriteMessage(p.conn, &wire.MsgVerAck{}, pver, bnet)
			}(p.negotiatedVersion())
		case *wire.MsgVerAck:
			gotVerAck = true
			if p.cfg.Listeners.OnVerAck != nil {
				p.cfg.Listeners.OnVerAck(p)
			}
		default:
			return fmt.Errorf("peer: unexpected message %q during handshake", msg.Command())
		}
	}
	select {
	case err := <-verackDone:
		if err != nil {
			return fmt.Errorf("peer: write verack: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("peer: write verack: %w", ctx.Err())
	}
	return nil
}

func (p *Peer) negotiatedVersion() uint32 {
	if p.protocolVersion != 0 && p.protocolVersion < wire.ProtocolVersion {
		return p.protocolVersion
	}
	return wire.ProtocolVersion
}

func (p *Peer) sendVersion(bnet wire.BitcoinNet) error {
	nonce, err := randomUint64()
	if err != nil {
		return err
	}
	me := wire.NewNetAddressIPPort(localIP(p.conn), 0, p.cfg.Services)
	you := wire.NewNetAddressIPPort(remoteIP(p.conn), remotePort(p.conn), 0)

	var height int32
	if p.cfg.BestHeight != nil {
		height = p.cfg.BestHeight()
	}

	msg := wire.NewMsgVersion(me, you, nonce, height)
	msg.Services = p.cfg.Services
	if p.cfg.UserAgent != "" {
		msg.UserAgent = p.cfg.UserAgent
	}

	if err := wire.WriteMessage(p.conn, msg, wire.ProtocolVersion, bnet); err != nil {
		return fmt.Errorf("peer: write version: %w", err)
	}
	p.versionSent.Store(true)
	return nil
}

func (p *Peer) applyVersion(m *wire.MsgVersion) {
	p.userAgent = m.UserAgent
	p.services = m.Services
	p.lastBlock.Store(m.LastBlock)
	if uint32(m.ProtocolVersion) < wire.ProtocolVersion {
		p.protocolVersion = uint32(m.ProtocolVersion)
	}
	if p.cfg.Listeners.OnVersion != nil {
		p.cfg.Listeners.OnVersion(p, m)
	}
}

// readLoop decodes inbound messages one at a time and dispatches each to
// its listener. It is the only goroutine that ever reads from the
// connection once the handshake completes.
func (p *Peer) readLoop() {
	defer p.wg.Done()
	defer p.Disconnect()

	reader := bufio.NewReader(p.conn)
	for {
		p.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		msg, buf, err := wire.ReadMessage(reader, p.negotiatedVersion(), p.cfg.ChainParams.Net)
		if err != nil {
			if errors.Is(err, wire.ErrUnknownCommand) {
				log.Debugf("peer %d: ignoring %v", p.id, err)
				continue
			}
			select {
			case <-p.ctx.Done():
			default:
				log.Debugf("peer %d: read error: %v", p.id, err)
			}
			return
		}
		p.dispatch(msg, buf)
	}
}

func (p *Peer) dispatch(msg wire.Message, buf []byte) {
	l := p.cfg.Listeners
	switch m := msg.(type) {
	case *wire.MsgPing:
		p.QueueMessage(wire.NewMsgPong(m.Nonce))
	case *wire.MsgPong:
		p.handlePong(m)
	case *wire.MsgVersion:
		// Already handled during the handshake; a second one is a
		// protocol violation but not worth tearing the connection down
		// over on its own.
	case *wire.MsgVerAck:
	case *wire.MsgGetAddr:
		if l.OnGetAddr != nil {
			l.OnGetAddr(p, m)
		}
	case *wire.MsgAddr:
		if l.OnAddr != nil {
			l.OnAddr(p, m)
		}
	case *wire.MsgInv:
		if l.OnInv != nil {
			l.OnInv(p, m)
		}
	case *wire.MsgGetData:
		if l.OnGetData != nil {
			l.OnGetData(p, m)
		}
	case *wire.MsgNotFound:
		if l.OnNotFound != nil {
			l.OnNotFound(p, m)
		}
	case *wire.MsgGetBlocks:
		if l.OnGetBlocks != nil {
			l.OnGetBlocks(p, m)
		}
	case *wire.MsgGetHeaders:
		if l.OnGetHeaders != nil {
			l.OnGetHeaders(p, m)
		}
	case *wire.MsgHeaders:
		if l.OnHeaders != nil {
			l.OnHeaders(p, m)
		}
	case *wire.MsgBlock:
		if l.OnBlock != nil {
			l.OnBlock(p, m, buf)
		}
	case *wire.MsgTx:
		if l.OnTx != nil {
			l.OnTx(p, m)
		}
	case *wire.MsgMerkleBlock:
		if l.OnMerkleBlock != nil {
			l.OnMerkleBlock(p, m)
		}
	case *wire.MsgFilterLoad:
		if l.OnFilterLoad != nil {
			l.OnFilterLoad(p, m)
		}
	case *wire.MsgFilterAdd:
		if l.OnFilterAdd != nil {
			l.OnFilterAdd(p, m)
		}
	case *wire.MsgFilterClear:
		if l.OnFilterClear != nil {
			l.OnFilterClear(p)
		}
	case *wire.MsgReject:
		if l.OnReject != nil {
			l.OnReject(p, m)
		}
	}
	if l.OnRead != nil {
		l.OnRead(p, msg, buf)
	}
}

// writeLoop is the only goroutine that ever writes to the connection once
// the handshake completes; every other goroutine must go through
// QueueMessage.
func (p *Peer) writeLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case msg := <-p.outQueue:
			if err := wire.WriteMessage(p.conn, msg, p.negotiatedVersion(), p.cfg.ChainParams.Net); err != nil {
				log.Debugf("peer %d: write error: %v", p.id, err)
				p.Disconnect()
				return
			}
		}
	}
}

// QueueMessage enqueues msg for delivery by the write loop. It never
// blocks the caller on the network; if the outbound queue is full the
// connection is judged unhealthy and torn down.
func (p *Peer) QueueMessage(msg wire.Message) error {
	if p.State() != StateReady {
		return ErrNotReady
	}
	select {
	case p.outQueue <- msg:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	default:
		log.Warnf("peer %d: outbound queue full, disconnecting", p.id)
		p.Disconnect()
		return errors.New("peer: outbound queue full")
	}
}

func (p *Peer) pingLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.sendPing()
		}
	}
}

func (p *Peer) sendPing() {
	p.pingMu.Lock()
	if !p.pingSent.IsZero() && time.Since(p.pingSent) > pingTimeout {
		p.pingMu.Unlock()
		log.Warnf("peer %d: ping timed out, disconnecting", p.id)
		p.Disconnect()
		return
	}
	p.pingMu.Unlock()

	nonce, err := randomUint64()
	if err != nil {
		return
	}
	p.pingMu.Lock()
	p.pingNonce = nonce
	p.pingSent = time.Now()
	p.pingMu.Unlock()

	_ = p.QueueMessage(wire.NewMsgPing(nonce))
}

func (p *Peer) handlePong(m *wire.MsgPong) {
	p.pingMu.Lock()
	defer p.pingMu.Unlock()
	if m.Nonce != p.pingNonce || p.pingSent.IsZero() {
		return
	}
	p.lastPingMicros.Store(time.Since(p.pingSent).Microseconds())
	p.pingSent = time.Time{}
}

// Disconnect tears down the connection and stops all background loops. It
// is safe to call more than once and from any goroutine.
func (p *Peer) Disconnect() {
	p.quitOnce.Do(func() {
		p.state.Store(int32(StateDisconnected))
		if p.cancel != nil {
			p.cancel()
		}
		if p.conn != nil {
			p.conn.Close()
		}
	})
}

// WaitForDisconnect blocks until the peer's background loops have exited.
func (p *Peer) WaitForDisconnect() {
	p.wg.Wait()
}

func randomUint64() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func remoteIP(conn net.Conn) net.IP {
	if conn == nil {
		return net.IPv4zero
	}
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return net.IPv4zero
	}
	return net.ParseIP(host)
}

func remotePort(conn net.Conn) uint16 {
	if conn == nil {
		return 0
	}
	_, portStr, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return 0
	}
	var port uint16
	fmt.Sscanf(portStr, "%d", &port)
	return port
}

func localIP(conn net.Conn) net.IP {
	if conn == nil {
		return net.IPv4zero
	}
	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return net.IPv4zero
	}
	return net.ParseIP(host)
}
