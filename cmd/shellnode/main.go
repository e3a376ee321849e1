// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command shellnode runs a header-chain and (optionally filtered)
// transaction-fetching peer-to-peer node: it validates incoming block
// headers and difficulty transitions, maintains a fleet of peer
// connections, and drives the GetBlocks/GetData download loop. Wallet key
// management, the script interpreter, and RPC/GUI surfaces are someone
// else's concern; this binary is the networking and consensus core they
// sit on top of.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/btcrelay/corenode/addrmgr"
	"github.com/btcrelay/corenode/blockchain"
	"github.com/btcrelay/corenode/bloom"
	"github.com/btcrelay/corenode/chainstore"
	"github.com/btcrelay/corenode/peergroup"
	"github.com/btcrelay/corenode/spv"
	"github.com/btcrelay/corenode/wire"
	"github.com/btcsuite/go-socks/socks"
)

const (
	userAgentName    = "shellnode"
	userAgentVersion = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename)); err != nil {
		return err
	}
	useLoggers()
	if err := setLogLevels(cfg.Debuglevel); err != nil {
		return err
	}

	store, err := chainstore.OpenLevelStore(filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return fmt.Errorf("shellnode: open chain store: %w", err)
	}
	defer store.Close()

	validator := blockchain.NewValidator(store, cfg.chainParams)
	if err := seedGenesis(store, validator, cfg); err != nil {
		return err
	}

	addrManager := addrmgr.New()
	seedAddresses(addrManager, cfg)

	filter := buildWatchFilter(cfg)

	downloader := spv.New(spv.Config{
		Store:     store,
		Validator: validator,
		Filter:    filter,
	})

	dial := net.Dial
	if cfg.Proxy != "" {
		proxy := &socks.Proxy{
			Addr:     cfg.Proxy,
			Username: cfg.ProxyUser,
			Password: cfg.ProxyPass,
		}
		dial = proxy.Dial
	}

	group := peergroup.New(peergroup.Config{
		ChainParams:    cfg.chainParams,
		MaxConnections: cfg.MaxPeers,
		UserAgent:      buildUserAgent(cfg),
		Services:       wire.SFNodeNetwork,
		BestHeight: func() int32 {
			tip, err := store.Tip()
			if err != nil {
				return 0
			}
			return tip.Height
		},
		AddrMgr:       addrManager,
		Dial:          dial,
		OnBlock:       downloader.HandleBlock,
		OnMerkleBlock: downloader.HandleMerkleBlock,
		OnTx:          downloader.HandleTx,
		OnMessage:     downloader.HandleMessage,
	})
	downloader.Attach(group)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	go group.Run(ctx)
	defer group.Stop()
	if filter != nil {
		group.SetFilter(filter)
	}

	listeners, err := startListeners(ctx, cfg, group)
	if err != nil {
		return err
	}
	defer closeListeners(listeners)

	go dialOutbound(ctx, cfg, group, addrManager)
	go logEvents(ctx, downloader)

	downloader.Start(ctx)

	mainLog.Infof("shellnode listening on %v, network %s", cfg.Listeners, cfg.chainParams.Name)
	<-ctx.Done()
	mainLog.Info("shutting down")
	return nil
}

// seedGenesis records the active network's genesis header the first time
// the store is opened; AcceptHeader reports ErrDuplicateBlock on every
// subsequent run, which is expected and not an error here.
func seedGenesis(store chainstore.Store, validator *blockchain.Validator, cfg *config) error {
	genesis := cfg.chainParams.GenesisBlock
	_, err := validator.AcceptHeader(&genesis.Header)
	if err != nil {
		if re, ok := err.(blockchain.RuleError); ok && re.ErrorCode == blockchain.ErrDuplicateBlock {
			return nil
		}
		return fmt.Errorf("shellnode: seed genesis: %w", err)
	}
	if _, err := store.Tip(); err != nil {
		if err := store.SetTip(cfg.chainParams.GenesisHash); err != nil {
			return fmt.Errorf("shellnode: set genesis tip: %w", err)
		}
	}
	return nil
}

// seedAddresses primes the address manager from the configured DNS seeds
// (unless disabled) and any explicitly configured peers.
func seedAddresses(addrManager *addrmgr.AddrManager, cfg *config) {
	if !cfg.DisableDNSSeed {
		for _, seed := range cfg.chainParams.DNSSeeds {
			ips, err := net.LookupHost(seed.Host)
			if err != nil {
				mainLog.Debugf("dns seed %s: %v", seed.Host, err)
				continue
			}
			var addrs []*wire.NetAddress
			for _, ip := range ips {
				parsed := net.ParseIP(ip)
				if parsed == nil {
					continue
				}
				port := defaultPortNum(cfg)
				addrs = append(addrs, wire.NewNetAddressIPPort(parsed, port, wire.SFNodeNetwork))
			}
			if len(addrs) > 0 {
				addrManager.AddAddresses(addrs, addrs[0])
			}
		}
	}

	for _, addr := range cfg.AddPeers {
		if na := resolveNetAddress(addr, cfg); na != nil {
			addrManager.AddAddress(na, na)
		}
	}
}

func defaultPortNum(cfg *config) uint16 {
	var port uint16
	fmt.Sscanf(cfg.chainParams.DefaultPort, "%d", &port)
	return port
}

func resolveNetAddress(addr string, cfg *config) *wire.NetAddress {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		portStr = cfg.chainParams.DefaultPort
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupHost(host)
		if err != nil || len(ips) == 0 {
			return nil
		}
		ip = net.ParseIP(ips[0])
	}
	var port uint16
	fmt.Sscanf(portStr, "%d", &port)
	return wire.NewNetAddressIPPort(ip, port, wire.SFNodeNetwork)
}

// buildWatchFilter constructs a Bloom filter over cfg.WatchScripts so the
// node operates in SPV mode. Deriving the scripts themselves (HD keys,
// lookahead windows) is a wallet concern handled entirely by the caller
// that populates this config value; shellnode only turns the resulting
// script list into a filter.
func buildWatchFilter(cfg *config) *bloom.Filter {
	if len(cfg.WatchScripts) == 0 {
		return nil
	}
	filter := bloom.NewFilter(uint32(len(cfg.WatchScripts)), 0, 0.0001, wire.BloomUpdateAll)
	for _, s := range cfg.WatchScripts {
		script, err := hex.DecodeString(s)
		if err != nil {
			mainLog.Warnf("shellnode: skipping malformed --watchscript %q: %v", s, err)
			continue
		}
		filter.Add(script)
	}
	return filter
}

func buildUserAgent(cfg *config) string {
	ua := fmt.Sprintf("/%s:%s/", userAgentName, userAgentVersion)
	if cfg.UserAgentComment != "" {
		ua = fmt.Sprintf("/%s:%s(%s)/", userAgentName, userAgentVersion, cfg.UserAgentComment)
	}
	return ua
}

func startListeners(ctx context.Context, cfg *config, group *peergroup.PeerGroup) ([]net.Listener, error) {
	var listeners []net.Listener
	for _, addr := range cfg.Listeners {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			closeListeners(listeners)
			return nil, fmt.Errorf("shellnode: listen on %s: %w", addr, err)
		}
		listeners = append(listeners, ln)
		go acceptLoop(ctx, ln, group)
	}
	return listeners, nil
}

func acceptLoop(ctx context.Context, ln net.Listener, group *peergroup.PeerGroup) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				mainLog.Warnf("shellnode: accept on %s: %v", ln.Addr(), err)
				continue
			}
		}
		go func() {
			if err := group.AcceptInbound(ctx, conn); err != nil {
				mainLog.Debugf("shellnode: inbound handshake from %s: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

func closeListeners(listeners []net.Listener) {
	for _, ln := range listeners {
		ln.Close()
	}
}

// dialOutbound keeps the fleet topped up: explicit --connect peers are
// dialed exclusively and repeatedly; otherwise --addpeer entries and
// addrManager candidates are dialed until MaxPeers connections are held.
func dialOutbound(ctx context.Context, cfg *config, group *peergroup.PeerGroup, addrManager *addrmgr.AddrManager) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	dialOne := func(addr string) {
		if err := group.Connect(ctx, addr); err != nil {
			mainLog.Debugf("shellnode: connect %s: %v", addr, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if len(cfg.ConnectPeers) > 0 {
			for _, addr := range cfg.ConnectPeers {
				dialOne(addr)
			}
			continue
		}

		for _, addr := range cfg.AddPeers {
			dialOne(addr)
		}
		if len(group.Peers()) >= cfg.MaxPeers {
			continue
		}
		if na := addrManager.GetAddress(); na != nil {
			dialOne(net.JoinHostPort(na.IP.String(), fmt.Sprintf("%d", na.Port)))
		}
	}
}

func logEvents(ctx context.Context, downloader *spv.Downloader) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-downloader.Events():
			switch ev.Type {
			case spv.EventBlockConnected, spv.EventFilteredBlockConnected:
				mainLog.Infof("connected block %s at height %d (%d matched tx)",
					ev.Entry.Hash(), ev.Entry.Height, len(ev.Matched))
			case spv.EventFilterRecomputed:
				mainLog.Infof("filter recomputed, resuming from %s", ev.ResumeFrom)
			case spv.EventPeerRejected:
				mainLog.Warnf("rejected peer %s: %v", ev.PeerAddr, ev.Err)
			}
		}
	}
}
