// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainutil

import (
	"encoding/hex"
	"math/bits"
)

// Uint256 is a fixed-width, unsigned 256-bit integer stored as four
// little-endian 64-bit words (w[0] is the least-significant word). It backs
// both proof-of-work targets and cumulative chain work.
//
// The pack's EXCCoin-exccd checkout references github.com/decred/dcrd/math/uint256
// for exactly this purpose, but only its go.mod replace line was retrieved —
// no source establishing its method surface — so this type is hand-rolled in
// the same spirit (see DESIGN.md) rather than guessed at.
type Uint256 struct {
	w [4]uint64
}

// Uint256FromUint64 returns a Uint256 with the given value in its low word.
func Uint256FromUint64(v uint64) Uint256 {
	return Uint256{w: [4]uint64{v, 0, 0, 0}}
}

// SetBytes interprets b as a big-endian 256-bit integer, left-padding with
// zeros if shorter than 32 bytes and truncating leading bytes if longer.
func (u *Uint256) SetBytes(b []byte) {
	var buf [32]byte
	if len(b) >= 32 {
		copy(buf[:], b[len(b)-32:])
	} else {
		copy(buf[32-len(b):], b)
	}
	for i := 0; i < 4; i++ {
		word := uint64(0)
		for j := 0; j < 8; j++ {
			word = word<<8 | uint64(buf[i*8+j])
		}
		u.w[3-i] = word
	}
}

// Bytes returns the big-endian 32-byte encoding of u.
func (u Uint256) Bytes() [32]byte {
	var out [32]byte
	for i := 0; i < 4; i++ {
		word := u.w[3-i]
		for j := 0; j < 8; j++ {
			out[i*8+j] = byte(word >> (56 - 8*j))
		}
	}
	return out
}

// String returns the big-endian hex encoding of u.
func (u Uint256) String() string {
	b := u.Bytes()
	return hex.EncodeToString(b[:])
}

// IsZero reports whether u is zero.
func (u Uint256) IsZero() bool {
	return u.w[0] == 0 && u.w[1] == 0 && u.w[2] == 0 && u.w[3] == 0
}

// Cmp returns -1, 0, or 1 as u is less than, equal to, or greater than v.
func (u Uint256) Cmp(v Uint256) int {
	for i := 3; i >= 0; i-- {
		if u.w[i] != v.w[i] {
			if u.w[i] < v.w[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Add returns u+v. Overflow past 2^256 wraps, which never legitimately
// happens for targets or chain work at any realistic block height.
func (u Uint256) Add(v Uint256) Uint256 {
	var out Uint256
	var carry uint64
	for i := 0; i < 4; i++ {
		sum, c1 := bits.Add64(u.w[i], v.w[i], carry)
		out.w[i] = sum
		carry = c1
	}
	return out
}

// AddUint64 returns u+v for a scalar v.
func (u Uint256) AddUint64(v uint64) Uint256 {
	return u.Add(Uint256FromUint64(v))
}

// Sub returns u-v, assuming u >= v (the only case this package ever needs).
func (u Uint256) Sub(v Uint256) Uint256 {
	var out Uint256
	var borrow uint64
	for i := 0; i < 4; i++ {
		diff, b1 := bits.Sub64(u.w[i], v.w[i], borrow)
		out.w[i] = diff
		borrow = b1
	}
	return out
}

// Lsh returns u shifted left by n bits (0 <= n <= 256). Bits shifted past
// the top are discarded.
func (u Uint256) Lsh(n uint) Uint256 {
	if n >= 256 {
		return Uint256{}
	}
	wordShift := n / 64
	bitShift := n % 64
	var out Uint256
	for i := 3; i >= 0; i-- {
		srcIdx := i - int(wordShift)
		if srcIdx < 0 {
			continue
		}
		var v uint64
		v = u.w[srcIdx] << bitShift
		if bitShift != 0 && srcIdx-1 >= 0 {
			v |= u.w[srcIdx-1] >> (64 - bitShift)
		}
		out.w[i] = v
	}
	return out
}

// Rsh returns u shifted right by n bits (0 <= n <= 256).
func (u Uint256) Rsh(n uint) Uint256 {
	if n >= 256 {
		return Uint256{}
	}
	wordShift := n / 64
	bitShift := n % 64
	var out Uint256
	for i := 0; i < 4; i++ {
		srcIdx := i + int(wordShift)
		if srcIdx > 3 {
			continue
		}
		var v uint64
		v = u.w[srcIdx] >> bitShift
		if bitShift != 0 && srcIdx+1 <= 3 {
			v |= u.w[srcIdx+1] << (64 - bitShift)
		}
		out.w[i] = v
	}
	return out
}

// And returns the bitwise AND of u and v, used to mask a target down to the
// precision carried by a compact encoding's mantissa.
func (u Uint256) And(v Uint256) Uint256 {
	var out Uint256
	for i := 0; i < 4; i++ {
		out.w[i] = u.w[i] & v.w[i]
	}
	return out
}

// MulUint64 returns u*v for a scalar v. Used for target*timespan during
// retarget, where timespan fits comfortably in a uint64 of seconds.
func (u Uint256) MulUint64(v uint64) Uint256 {
	var out Uint256
	var carry uint64
	for i := 0; i < 4; i++ {
		hi, lo := bits.Mul64(u.w[i], v)
		sum, c := bits.Add64(lo, carry, 0)
		out.w[i] = sum
		carry = hi + c
	}
	return out
}

// DivUint64 returns u/v for a scalar v > 0, discarding the remainder. Used
// for target/TARGET_TIMESPAN during retarget.
func (u Uint256) DivUint64(v uint64) Uint256 {
	if v == 0 {
		return Uint256{}
	}
	var quotient Uint256
	var remainder uint64
	for i := 3; i >= 0; i-- {
		hi := remainder
		lo := u.w[i]
		q, r := bits.Div64(hi, lo, v)
		quotient.w[i] = q
		remainder = r
	}
	return quotient
}

// Min returns the smaller of u and v.
func Min(u, v Uint256) Uint256 {
	if u.Cmp(v) <= 0 {
		return u
	}
	return v
}

// Max returns the larger of u and v.
func Max(u, v Uint256) Uint256 {
	if u.Cmp(v) >= 0 {
		return u
	}
	return v
}
