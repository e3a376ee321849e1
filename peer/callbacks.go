// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import "github.com/btcrelay/corenode/wire"

// MessageListeners defines the callback surface a caller hooks into a Peer.
// Every listener is optional; a nil listener simply means the Peer drops
// that message type on the floor once its own bookkeeping is done.
type MessageListeners struct {
	OnVersion     func(p *Peer, msg *wire.MsgVersion)
	OnVerAck      func(p *Peer)
	OnGetAddr     func(p *Peer, msg *wire.MsgGetAddr)
	OnAddr        func(p *Peer, msg *wire.MsgAddr)
	OnInv         func(p *Peer, msg *wire.MsgInv)
	OnGetData     func(p *Peer, msg *wire.MsgGetData)
	OnNotFound    func(p *Peer, msg *wire.MsgNotFound)
	OnGetBlocks   func(p *Peer, msg *wire.MsgGetBlocks)
	OnGetHeaders  func(p *Peer, msg *wire.MsgGetHeaders)
	OnHeaders     func(p *Peer, msg *wire.MsgHeaders)
	OnBlock       func(p *Peer, msg *wire.MsgBlock, buf []byte)
	OnTx          func(p *Peer, msg *wire.MsgTx)
	OnMerkleBlock func(p *Peer, msg *wire.MsgMerkleBlock)
	OnFilterLoad  func(p *Peer, msg *wire.MsgFilterLoad)
	OnFilterAdd   func(p *Peer, msg *wire.MsgFilterAdd)
	OnFilterClear func(p *Peer)
	OnReject      func(p *Peer, msg *wire.MsgReject)

	// OnRead, if set, is invoked for every message after it has been
	// decoded and dispatched to its specific listener above, regardless
	// of command. Useful for metrics or generic tracing.
	OnRead func(p *Peer, msg wire.Message, buf []byte)
}
