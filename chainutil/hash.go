// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainutil provides the low-level consensus primitives shared by
// the wire codec, the chain store, and the chain validator: double-SHA256
// hashes and the fixed-width 256-bit integer arithmetic proof-of-work
// targets and cumulative chain work require.
package chainutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// HashSize is the number of bytes in a double-SHA256 hash.
const HashSize = 32

// Hash256 is a double-SHA256 digest, stored internally in the same
// little-endian byte order produced by the hash functions. String() renders
// it big-endian, matching how block and transaction hashes are shown by
// every Bitcoin-family tool.
type Hash256 [HashSize]byte

// String returns the big-endian hex representation of the hash.
func (h Hash256) String() string {
	var reversed Hash256
	for i := 0; i < HashSize/2; i++ {
		reversed[i], reversed[HashSize-1-i] = h[HashSize-1-i], h[i]
	}
	return hex.EncodeToString(reversed[:])
}

// IsEqual returns whether h and other represent the same hash. A nil other
// is never equal to a non-nil receiver.
func (h *Hash256) IsEqual(other *Hash256) bool {
	if h == nil || other == nil {
		return h == other
	}
	return *h == *other
}

// IsZero reports whether the hash is the all-zero hash (used as the
// "no stop hash" sentinel in getblocks/getheaders and as the prev-hash of
// genesis).
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

// NewHash256FromStr parses a big-endian hex string into a Hash256, as
// produced by String(). It exists primarily for hard-coded genesis hashes
// and checkpoints.
func NewHash256FromStr(s string) (*Hash256, error) {
	if len(s) != HashSize*2 {
		return nil, fmt.Errorf("chainutil: invalid hash string length %d", len(s))
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	var h Hash256
	for i := 0; i < HashSize; i++ {
		h[i] = decoded[HashSize-1-i]
	}
	return &h, nil
}

// DoubleSHA256 computes SHA256(SHA256(b)) and returns it as a Hash256.
func DoubleSHA256(b []byte) Hash256 {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return Hash256(second)
}

// ErrHashTruncated is returned when fewer than HashSize bytes remain to be
// decoded where a hash was expected.
var ErrHashTruncated = errors.New("chainutil: truncated hash")
