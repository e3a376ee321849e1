// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peergroup_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/btcrelay/corenode/bloom"
	"github.com/btcrelay/corenode/chaincfg"
	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/peer"
	"github.com/btcrelay/corenode/peergroup"
	"github.com/btcrelay/corenode/wire"
	"github.com/stretchr/testify/require"
)

// newStubDial returns a Dial that, for any addr present in heights, spins up
// an in-process inbound peer over a net.Pipe and reports the given height in
// its version message. extra lets a test attach listeners to the remote side.
func newStubDial(t *testing.T, heights map[string]int32, extra func(addr string) peer.MessageListeners) (peergroup.Dial, map[string]*peer.Peer) {
	t.Helper()
	remotes := make(map[string]*peer.Peer)
	var mu sync.Mutex

	dial := func(network, addr string) (net.Conn, error) {
		connA, connB := net.Pipe()
		height := heights[addr]
		var listeners peer.MessageListeners
		if extra != nil {
			listeners = extra(addr)
		}
		cfg := &peer.Config{
			ChainParams: &chaincfg.RegressionNetParams,
			UserAgent:   "/corenode-remote:0.1.0/",
			Services:    wire.SFNodeNetwork,
			BestHeight:  func() int32 { return height },
			Listeners:   listeners,
		}
		b := peer.NewInboundPeer(cfg, connB)
		mu.Lock()
		remotes[addr] = b
		mu.Unlock()
		go b.Start(context.Background())
		return connA, nil
	}
	return dial, remotes
}

func newTestGroup(t *testing.T, cfg peergroup.Config) (*peergroup.PeerGroup, context.Context) {
	t.Helper()
	if cfg.ChainParams == nil {
		cfg.ChainParams = &chaincfg.RegressionNetParams
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "/corenode-test:0.1.0/"
	}
	if cfg.Services == 0 {
		cfg.Services = wire.SFNodeNetwork
	}
	if cfg.BestHeight == nil {
		cfg.BestHeight = func() int32 { return 0 }
	}
	g := peergroup.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go g.Run(ctx)
	return g, ctx
}

func TestConnectAddsMemberAndElectsDownloadPeer(t *testing.T) {
	dial, _ := newStubDial(t, map[string]int32{"a:1": 10}, nil)
	g, ctx := newTestGroup(t, peergroup.Config{Dial: dial})

	require.NoError(t, g.Connect(ctx, "a:1"))

	dp := g.DownloadPeer()
	require.NotNil(t, dp)
	require.Equal(t, "a:1", dp.Addr())
	require.Len(t, g.Peers(), 1)
}

func TestDownloadPeerElectionPrefersHighestHeight(t *testing.T) {
	heights := map[string]int32{"a:1": 10, "b:1": 20, "c:1": 15}
	dial, _ := newStubDial(t, heights, nil)
	g, ctx := newTestGroup(t, peergroup.Config{Dial: dial})

	require.NoError(t, g.Connect(ctx, "a:1"))
	require.NoError(t, g.Connect(ctx, "b:1"))
	require.NoError(t, g.Connect(ctx, "c:1"))

	dp := g.DownloadPeer()
	require.NotNil(t, dp)
	require.Equal(t, "b:1", dp.Addr())
}

func TestDownloadPeerElectionTiesBreakByFirstAnnounce(t *testing.T) {
	heights := map[string]int32{"a:1": 20, "b:1": 20}
	dial, _ := newStubDial(t, heights, nil)
	g, ctx := newTestGroup(t, peergroup.Config{Dial: dial})

	require.NoError(t, g.Connect(ctx, "a:1"))
	require.NoError(t, g.Connect(ctx, "b:1"))

	dp := g.DownloadPeer()
	require.NotNil(t, dp)
	require.Equal(t, "a:1", dp.Addr())
}

func TestDownloadPeerReelectsOnDisconnect(t *testing.T) {
	heights := map[string]int32{"a:1": 10, "b:1": 20}
	dial, _ := newStubDial(t, heights, nil)
	g, ctx := newTestGroup(t, peergroup.Config{Dial: dial})

	require.NoError(t, g.Connect(ctx, "a:1"))
	require.NoError(t, g.Connect(ctx, "b:1"))

	dp := g.DownloadPeer()
	require.Equal(t, "b:1", dp.Addr())

	g.Disconnect(dp.ID())

	require.Eventually(t, func() bool {
		dp := g.DownloadPeer()
		return dp != nil && dp.Addr() == "a:1"
	}, time.Second, 10*time.Millisecond)
}

func TestConfidenceAccountingCountsDistinctPeersOnce(t *testing.T) {
	heights := map[string]int32{"a:1": 0, "b:1": 0}
	dial, remotes := newStubDial(t, heights, nil)

	var mu sync.Mutex
	var changes []int
	g, ctx := newTestGroup(t, peergroup.Config{
		Dial: dial,
		OnConfidenceChange: func(hash chainutil.Hash256, n int) {
			mu.Lock()
			changes = append(changes, n)
			mu.Unlock()
		},
	})

	require.NoError(t, g.Connect(ctx, "a:1"))
	require.NoError(t, g.Connect(ctx, "b:1"))

	tx := wire.NewMsgTx(1)
	hash := tx.TxHash()

	require.NoError(t, remotes["a:1"].QueueMessage(tx))
	require.NoError(t, remotes["b:1"].QueueMessage(tx))
	// A duplicate announce from the same peer must not double-count.
	require.NoError(t, remotes["a:1"].QueueMessage(tx))

	require.Eventually(t, func() bool {
		return g.ConfidenceCount(hash) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 2}, changes)
}

func TestSetFilterRebroadcastsToReadyPeers(t *testing.T) {
	loaded := make(chan *wire.MsgFilterLoad, 1)
	dial, _ := newStubDial(t, map[string]int32{"a:1": 0}, func(addr string) peer.MessageListeners {
		return peer.MessageListeners{
			OnFilterLoad: func(p *peer.Peer, msg *wire.MsgFilterLoad) { loaded <- msg },
		}
	})
	g, ctx := newTestGroup(t, peergroup.Config{Dial: dial})
	require.NoError(t, g.Connect(ctx, "a:1"))

	f := bloom.NewFilter(10, 0, 0.001, wire.BloomUpdateAll)
	g.SetFilter(f)

	select {
	case <-loaded:
	case <-time.After(time.Second):
		t.Fatal("filter was not rebroadcast to existing peer")
	}
}

func TestSetFilterSilentDoesNotRebroadcast(t *testing.T) {
	loaded := make(chan *wire.MsgFilterLoad, 1)
	dial, _ := newStubDial(t, map[string]int32{"a:1": 0}, func(addr string) peer.MessageListeners {
		return peer.MessageListeners{
			OnFilterLoad: func(p *peer.Peer, msg *wire.MsgFilterLoad) { loaded <- msg },
		}
	})
	g, ctx := newTestGroup(t, peergroup.Config{Dial: dial})
	require.NoError(t, g.Connect(ctx, "a:1"))

	f := bloom.NewFilter(10, 0, 0.001, wire.BloomUpdateAll)
	g.SetFilterSilent(f)

	select {
	case <-loaded:
		t.Fatal("SetFilterSilent must not rebroadcast to existing peers")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestInvRoutingSkipsRejectedTx(t *testing.T) {
	getData := make(chan *wire.MsgGetData, 4)
	dial, remotes := newStubDial(t, map[string]int32{"a:1": 0}, func(addr string) peer.MessageListeners {
		return peer.MessageListeners{
			OnGetData: func(p *peer.Peer, msg *wire.MsgGetData) { getData <- msg },
		}
	})
	g, ctx := newTestGroup(t, peergroup.Config{Dial: dial})
	require.NoError(t, g.Connect(ctx, "a:1"))

	rejected := chainutil.Hash256{0x01}
	wanted := chainutil.Hash256{0x02}
	g.RejectTx(rejected)

	inv := wire.NewMsgInv()
	require.NoError(t, inv.AddInvVect(wire.NewInvVect(wire.InvTypeTx, &rejected)))
	require.NoError(t, inv.AddInvVect(wire.NewInvVect(wire.InvTypeTx, &wanted)))
	require.NoError(t, remotes["a:1"].QueueMessage(inv))

	select {
	case msg := <-getData:
		require.Len(t, msg.InvList, 1)
		require.Equal(t, wanted, msg.InvList[0].Hash)
	case <-time.After(time.Second):
		t.Fatal("expected a GetData for the non-rejected hash")
	}
}

func TestInvRoutingOnlyFetchesBlocksFromDownloadPeer(t *testing.T) {
	getDataA := make(chan *wire.MsgGetData, 4)
	getDataB := make(chan *wire.MsgGetData, 4)
	heights := map[string]int32{"a:1": 20, "b:1": 10}
	dial, remotes := newStubDial(t, heights, func(addr string) peer.MessageListeners {
		switch addr {
		case "a:1":
			return peer.MessageListeners{OnGetData: func(p *peer.Peer, msg *wire.MsgGetData) { getDataA <- msg }}
		default:
			return peer.MessageListeners{OnGetData: func(p *peer.Peer, msg *wire.MsgGetData) { getDataB <- msg }}
		}
	})
	g, ctx := newTestGroup(t, peergroup.Config{Dial: dial})
	require.NoError(t, g.Connect(ctx, "a:1"))
	require.NoError(t, g.Connect(ctx, "b:1"))

	dp := g.DownloadPeer()
	require.Equal(t, "a:1", dp.Addr())

	blockHash := chainutil.Hash256{0x03}
	inv := wire.NewMsgInv()
	require.NoError(t, inv.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &blockHash)))

	// b:1 is not the download peer; its block inv must be ignored.
	require.NoError(t, remotes["b:1"].QueueMessage(inv))
	select {
	case <-getDataB:
		t.Fatal("non-download peer's block inv should not trigger GetData")
	case <-time.After(100 * time.Millisecond):
	}

	// a:1 is the download peer; its block inv should be fetched.
	require.NoError(t, remotes["a:1"].QueueMessage(inv))
	select {
	case msg := <-getDataA:
		require.Len(t, msg.InvList, 1)
		require.Equal(t, blockHash, msg.InvList[0].Hash)
	case <-time.After(time.Second):
		t.Fatal("download peer's block inv should trigger GetData")
	}
}

func TestBroadcastCompletesOnEcho(t *testing.T) {
	dial, _ := newStubDial(t, map[string]int32{"a:1": 0}, func(addr string) peer.MessageListeners {
		return peer.MessageListeners{
			// The remote simply echoes back whatever it is sent, simulating
			// a peer relaying our own transaction back to us.
			OnTx: func(p *peer.Peer, msg *wire.MsgTx) { p.QueueMessage(msg) },
		}
	})
	g, ctx := newTestGroup(t, peergroup.Config{Dial: dial})
	require.NoError(t, g.Connect(ctx, "a:1"))

	tx := wire.NewMsgTx(1)
	errCh := make(chan error, 1)
	go func() { errCh <- g.Broadcast(ctx, tx) }()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("broadcast did not complete after echo")
	}
}

func TestBroadcastFailsWithNoPeers(t *testing.T) {
	g, ctx := newTestGroup(t, peergroup.Config{})
	err := g.Broadcast(ctx, wire.NewMsgTx(1))
	require.Error(t, err)
}
