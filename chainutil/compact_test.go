// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCompactRoundTripKnownValues(t *testing.T) {
	tests := []struct {
		name string
		bits CompactTarget
	}{
		{"mainnet genesis", 0x1d00ffff},
		{"high difficulty", 0x1b0404cb},
		{"near-minimum exponent", 0x03123456},
		{"zero", 0x00000000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := tc.bits.Uint256()
			got := ChainWorkToCompact(target)
			require.Equal(t, tc.bits, got, "round trip through Uint256()/ChainWorkToCompact")
		})
	}
}

// TestCompactRoundTripProperty exercises the round-trip law
// encode_compact(decode_compact(c)) == c for every c the retarget algorithm
// could actually produce (i.e. a canonical, non-negative compact value:
// a zero mantissa, or one of at least 0x008000 so no shorter encoding of
// the same target exists).
func TestCompactRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		exponent := rapid.IntRange(3, 32).Draw(t, "exponent")
		mantissa := rapid.OneOf(rapid.Just(uint32(0)), rapid.Uint32Range(0x00008000, 0x007fffff)).Draw(t, "mantissa")
		c := CompactTarget(uint32(exponent)<<24 | mantissa)

		target := c.Uint256()
		got := ChainWorkToCompact(target)

		if mantissa == 0 {
			// A zero mantissa decodes to the zero target regardless of
			// exponent, and re-encodes canonically to 0.
			require.Equal(t, CompactTarget(0), got)
			return
		}
		require.Equal(t, c, got)
	})
}

func TestUint256ShiftsAndArithmetic(t *testing.T) {
	one := Uint256FromUint64(1)
	shifted := one.Lsh(255)
	require.False(t, shifted.IsZero())
	require.True(t, shifted.Rsh(255).Cmp(one) == 0)

	a := Uint256FromUint64(1000)
	b := a.MulUint64(7).DivUint64(7)
	require.Equal(t, 0, a.Cmp(b))

	sum := Uint256FromUint64(5).Add(Uint256FromUint64(10))
	require.Equal(t, 0, sum.Cmp(Uint256FromUint64(15)))
}

func TestMaskToPrecisionIdempotent(t *testing.T) {
	bits := CompactTarget(0x1d00ffff)
	target := bits.Uint256()
	masked := MaskToPrecision(target, uint(bits>>24))
	require.Equal(t, 0, target.Cmp(masked))
}
