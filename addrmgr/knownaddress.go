// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import (
	"time"

	"github.com/btcrelay/corenode/wire"
)

// missingDaysThreshold, retriesThreshold, and maxFailureDays mirror the
// classic btcd addrmgr "bad address" heuristic: an address that has been
// tried repeatedly without success, or not seen in a long time, drops out
// of rotation.
const (
	missingDaysThreshold = 30
	retriesThreshold     = 3
	maxFailureDays       = 10
)

// KnownAddress tracks one peer address the manager has learned about,
// together with the bookkeeping needed to prefer addresses with a good
// connection history.
type KnownAddress struct {
	na          *wire.NetAddress
	srcAddr     *wire.NetAddress
	attempts    int
	lastattempt time.Time
	lastsuccess time.Time
	tried       bool
	refs        int
}

// NetAddress returns the address itself.
func (ka *KnownAddress) NetAddress() *wire.NetAddress {
	return ka.na
}

// isBad reports whether the address has failed enough recent connection
// attempts that it should stop being offered to callers.
func (ka *KnownAddress) isBad() bool {
	if ka.lastattempt.After(time.Now().Add(-time.Minute)) {
		return false
	}

	// A timestamp from the future is not judged.
	if ka.na.Timestamp.After(time.Now().Add(30 * time.Second)) {
		return false
	}

	// Over a month since it was last seen at all.
	if ka.na.Timestamp.Before(time.Now().Add(-missingDaysThreshold * 24 * time.Hour)) {
		return true
	}

	// Too many failures in too short a window.
	if ka.lastsuccess.IsZero() && ka.attempts >= retriesThreshold {
		return true
	}

	// Hasn't succeeded in too long, despite retries.
	if !ka.lastsuccess.IsZero() &&
		ka.lastsuccess.Before(time.Now().Add(-maxFailureDays*24*time.Hour)) &&
		ka.attempts >= retriesThreshold {
		return true
	}

	return false
}

// chance returns the probability, in [0,1], that this address should be
// selected over one with a perfect history. It decays with each failed
// attempt, and is cut to 1% while the last attempt is under ten minutes
// old.
func (ka *KnownAddress) chance() float64 {
	c := 1.0

	lastAttempt := time.Since(ka.lastattempt)
	if lastAttempt < 0 {
		lastAttempt = 0
	}
	if lastAttempt < 10*time.Minute {
		c *= 0.01
	}

	// Failed attempts multiply the chance down geometrically, same as
	// btcd's addrmgr: each recorded attempt costs a 1.5x factor.
	for i := 0; i < ka.attempts; i++ {
		c /= 1.5
	}

	return c
}
