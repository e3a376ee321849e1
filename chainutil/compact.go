// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainutil

// CompactTarget is the 32-bit "bits" encoding of a 256-bit proof-of-work
// target: the high byte is a base-256 exponent and the low three bytes are
// the mantissa, i.e. target = mantissa << (8*(exponent-3)).
type CompactTarget uint32

// Uint256 decodes c into its represented 256-bit target. A set 0x00800000
// bit marks a negative mantissa in the reference implementation; such
// targets are invalid and decode to zero, which the proof-of-work check
// rejects as a zero target.
func (c CompactTarget) Uint256() Uint256 {
	if c&0x00800000 != 0 {
		return Uint256{}
	}

	exponent := uint(c >> 24)
	mantissa := uint64(c & 0x007fffff)

	if exponent <= 3 {
		return Uint256FromUint64(mantissa).Rsh(8 * (3 - exponent))
	}
	return Uint256FromUint64(mantissa).Lsh(8 * (exponent - 3))
}

// ChainWorkToCompact encodes target as its canonical compact ("bits") form.
// Canonical means the smallest exponent such that the mantissa still fits in
// 23 bits without its sign bit set, matching the reference encoder so that
// encode(decode(c)) == c for every c ever produced by a retarget.
func ChainWorkToCompact(target Uint256) CompactTarget {
	if target.IsZero() {
		return 0
	}

	// size is the number of bytes needed to hold target's big-endian
	// representation without leading zero bytes.
	b := target.Bytes()
	start := 0
	for start < 32 && b[start] == 0 {
		start++
	}
	size := 32 - start

	// Reposition target so its significant bytes land in the low 3 bytes
	// of the working value: pad left when shorter than 3 bytes, truncate
	// low-order bytes when longer.
	var aligned Uint256
	if size <= 3 {
		aligned = target.Lsh(8 * uint(3-size))
	} else {
		aligned = target.Rsh(8 * uint(size-3))
	}
	ab := aligned.Bytes()
	mantissa := uint32(ab[29])<<16 | uint32(ab[30])<<8 | uint32(ab[31])

	// A set bit 0x00800000 would read as a sign bit in the compact
	// encoding; shift it out and bump the exponent to compensate.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		size++
	}

	return CompactTarget(uint32(size)<<24 | mantissa)
}

// MaskToPrecision reduces target to the precision implied by exponent's
// mantissa width (24 bits positioned at 8*(exponent-3)), mirroring the loss
// of precision inherent in the compact encoding. The validator does not
// call it: CalcNextRequiredDifficulty gets the same precision loss from
// ChainWorkToCompact's truncation.
func MaskToPrecision(target Uint256, exponent uint) Uint256 {
	var mask Uint256
	if exponent <= 3 {
		mask = Uint256FromUint64(0x00ffffff).Rsh(8 * (3 - exponent))
	} else {
		mask = Uint256FromUint64(0x00ffffff).Lsh(8 * (exponent - 3))
	}
	return target.And(mask)
}
