// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import (
	"net"
	"testing"
	"time"

	"github.com/btcrelay/corenode/wire"
	"github.com/stretchr/testify/require"
)

func mkNetAddress(ip string, port uint16) *wire.NetAddress {
	return &wire.NetAddress{
		Timestamp: time.Now(),
		IP:        net.ParseIP(ip),
		Port:      port,
	}
}

func TestAddAddressDedupes(t *testing.T) {
	m := New()
	src := mkNetAddress("1.2.3.4", 8333)
	m.AddAddress(mkNetAddress("5.6.7.8", 8333), src)
	m.AddAddress(mkNetAddress("5.6.7.8", 8333), src)
	require.Equal(t, 1, m.NumAddresses())
}

func TestGoodResetsFailureState(t *testing.T) {
	m := New()
	src := mkNetAddress("1.2.3.4", 8333)
	addr := mkNetAddress("5.6.7.8", 8333)
	m.AddAddress(addr, src)

	m.Attempt(addr)
	m.Attempt(addr)
	ka := m.addrs[key(addr)]
	require.Equal(t, 2, ka.attempts)

	m.Good(addr)
	require.Equal(t, 0, ka.attempts)
	require.True(t, ka.tried)
	require.False(t, ka.lastsuccess.IsZero())
}

func TestIsBadAfterRepeatedFailureWithoutSuccess(t *testing.T) {
	ka := TstNewKnownAddress(mkNetAddress("5.6.7.8", 8333), retriesThreshold,
		time.Now().Add(-2*time.Minute), time.Time{}, false, 1)
	require.True(t, TstKnownAddressIsBad(ka))
}

func TestIsNotBadWithRecentAttempt(t *testing.T) {
	ka := TstNewKnownAddress(mkNetAddress("5.6.7.8", 8333), retriesThreshold,
		time.Now(), time.Time{}, false, 1)
	require.False(t, TstKnownAddressIsBad(ka))
}

func TestChanceDecreasesWithAttempts(t *testing.T) {
	fresh := TstNewKnownAddress(mkNetAddress("5.6.7.8", 8333), 0,
		time.Now().Add(-time.Hour), time.Time{}, false, 1)
	tried := TstNewKnownAddress(mkNetAddress("5.6.7.8", 8333), 5,
		time.Now().Add(-time.Hour), time.Time{}, false, 1)
	require.Greater(t, TstKnownAddressChance(fresh), TstKnownAddressChance(tried))
}

func TestGetAddressSkipsBad(t *testing.T) {
	m := New()
	src := mkNetAddress("1.2.3.4", 8333)
	bad := mkNetAddress("5.6.7.8", 8333)
	bad.Timestamp = time.Now().Add(-40 * 24 * time.Hour)
	m.AddAddress(bad, src)

	require.Nil(t, m.GetAddress())

	good := mkNetAddress("9.9.9.9", 8333)
	m.AddAddress(good, src)
	got := m.GetAddress()
	require.NotNil(t, got)
	require.Equal(t, "9.9.9.9", got.IP.String())
}
