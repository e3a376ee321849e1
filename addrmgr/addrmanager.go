// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package addrmgr tracks peer addresses learned from DNS seeds and from
// other peers, and picks candidates for outbound connection with a
// preference for addresses with a good connection history.
package addrmgr

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/btcrelay/corenode/wire"
)

// key returns the map key identifying an address: its IP and port. Two
// NetAddress values for the same endpoint always collapse to one entry.
func key(na *wire.NetAddress) string {
	return net.JoinHostPort(na.IP.String(), fmt.Sprintf("%d", na.Port))
}

// AddrManager stores known peer addresses and selects candidates for
// outbound connection attempts. It is safe for concurrent use.
type AddrManager struct {
	mu      sync.Mutex
	rand    *rand.Rand
	addrs   map[string]*KnownAddress
	started bool
}

// New returns an empty AddrManager.
func New() *AddrManager {
	return &AddrManager{
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
		addrs: make(map[string]*KnownAddress),
	}
}

// AddAddress records na as learned from src (the peer that reported it,
// or na itself for a DNS seed result). For an address already known, only
// its reference count is bumped and its last-seen timestamp advanced if
// na carries a newer one.
func (m *AddrManager) AddAddress(na, src *wire.NetAddress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addAddress(na, src)
}

// AddAddresses records every address in addrs, all sourced from src (a
// single peer, typically, after an addr message).
func (m *AddrManager) AddAddresses(addrs []*wire.NetAddress, src *wire.NetAddress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, na := range addrs {
		m.addAddress(na, src)
	}
}

func (m *AddrManager) addAddress(na, src *wire.NetAddress) {
	k := key(na)
	if ka, ok := m.addrs[k]; ok {
		ka.refs++
		if na.Timestamp.After(ka.na.Timestamp) {
			ka.na.Timestamp = na.Timestamp
		}
		return
	}
	m.addrs[k] = &KnownAddress{na: na, srcAddr: src, refs: 1}
}

// Attempt records that a connection attempt to addr was just made,
// whether or not it succeeded.
func (m *AddrManager) Attempt(addr *wire.NetAddress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ka, ok := m.addrs[key(addr)]
	if !ok {
		return
	}
	ka.attempts++
	ka.lastattempt = time.Now()
}

// Good records that a connection to addr completed the handshake
// successfully, resetting its failure count and marking it tried.
func (m *AddrManager) Good(addr *wire.NetAddress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ka, ok := m.addrs[key(addr)]
	if !ok {
		return
	}
	ka.lastsuccess = time.Now()
	ka.lastattempt = ka.lastsuccess
	ka.attempts = 0
	ka.tried = true
}

// NumAddresses returns the number of addresses currently known, including
// ones isBad has flagged.
func (m *AddrManager) NumAddresses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.addrs)
}

// GetAddress returns a candidate address for an outbound connection
// attempt, chosen with probability weighted by KnownAddress.chance(), or
// nil if no usable address is known.
func (m *AddrManager) GetAddress() *wire.NetAddress {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *KnownAddress
	var totalChance float64
	for _, ka := range m.addrs {
		if ka.isBad() {
			continue
		}
		c := ka.chance()
		totalChance += c
		// Weighted-random selection in a single pass: each candidate
		// replaces the current best with probability proportional to
		// its own chance relative to the running total.
		if best == nil || m.rand.Float64() < c/totalChance {
			best = ka
		}
	}
	if best == nil {
		return nil
	}
	return best.na
}

// AddressCache returns every known address not flagged as bad, for
// answering a peer's getaddr request.
func (m *AddrManager) AddressCache() []*wire.NetAddress {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*wire.NetAddress, 0, len(m.addrs))
	for _, ka := range m.addrs {
		if ka.isBad() {
			continue
		}
		out = append(out, ka.na)
	}
	return out
}
