// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"testing"

	"github.com/btcrelay/corenode/chainutil"
	"github.com/stretchr/testify/require"
)

func TestGenesisHashesAreStable(t *testing.T) {
	require.Equal(t, genesisHash, MainNetParams.GenesisBlock.Header.BlockHash())
	require.Equal(t, testNet3GenesisHash, TestNet3Params.GenesisBlock.Header.BlockHash())
	require.Equal(t, sigNetGenesisHash, SigNetParams.GenesisBlock.Header.BlockHash())
	require.Equal(t, regTestGenesisHash, RegressionNetParams.GenesisBlock.Header.BlockHash())
}

func TestMainNetPowLimitMatchesBits(t *testing.T) {
	decoded := chainutil.CompactTarget(MainNetParams.PowLimitBits).Uint256()
	require.Equal(t, 0, MainNetParams.PowLimit.Cmp(decoded))
}

func TestRegisteredAddressIDsAreDistinct(t *testing.T) {
	require.True(t, IsPubKeyHashAddrID(MainNetParams.PubKeyHashAddrID))
	require.True(t, IsScriptHashAddrID(MainNetParams.ScriptHashAddrID))
	require.True(t, IsBech32SegwitPrefix(MainNetParams.Bech32HRPSegwit+"1"))
}

func TestRegisterRejectsDuplicateNetwork(t *testing.T) {
	err := Register(&MainNetParams)
	require.ErrorIs(t, err, ErrDuplicateNet)
}
