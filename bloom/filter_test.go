// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloom

import (
	"testing"

	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/wire"
	"github.com/stretchr/testify/require"
)

func TestFilterMatchesInsertedElement(t *testing.T) {
	f := NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	data := []byte("some pubkey script bytes")
	require.False(t, f.Matches(data))
	f.Add(data)
	require.True(t, f.Matches(data))
}

func TestFilterAddHash(t *testing.T) {
	f := NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	hash := chainutil.DoubleSHA256([]byte("some transaction bytes"))
	require.False(t, f.Matches(hash[:]))
	f.AddHash(&hash)
	require.True(t, f.Matches(hash[:]))
}

func TestLoadFilterRoundTrip(t *testing.T) {
	f := NewFilter(5, 123, 0.001, wire.BloomUpdateP2PubkeyOnly)
	data := []byte("abc")
	f.Add(data)

	msg := &wire.MsgFilterLoad{
		Filter:    append([]byte(nil), f.bits...),
		HashFuncs: f.hashFuncs,
		Tweak:     f.tweak,
		Flags:     f.update,
	}
	loaded := LoadFilter(msg)
	require.True(t, loaded.Matches(data))
}

func TestMatchTxAndUpdateAddsOutpointOnMatch(t *testing.T) {
	pkScript := []byte("output script")
	tx := &wire.MsgTx{
		Version: 1,
		TxOut:   []*wire.TxOut{wire.NewTxOut(1000, pkScript)},
	}
	txHash := tx.TxHash()

	f := NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	f.Add(pkScript)

	matched := f.MatchTxAndUpdate(tx, txHash, [][]byte{pkScript})
	require.True(t, matched)

	op := wire.NewOutPoint(&txHash, 0)
	require.True(t, f.Matches(serializeOutPoint(op)))
}

func TestMatchTxAndUpdateMatchesSpendingInput(t *testing.T) {
	prevHash := chainutil.DoubleSHA256([]byte("prev tx"))
	prevOut := wire.NewOutPoint(&prevHash, 0)

	f := NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	f.Add(serializeOutPoint(prevOut))

	tx := &wire.MsgTx{
		Version: 1,
		TxIn:    []*wire.TxIn{{PreviousOutPoint: *prevOut}},
		TxOut:   []*wire.TxOut{wire.NewTxOut(1000, []byte("unrelated"))},
	}
	txHash := tx.TxHash()

	require.True(t, f.MatchTxAndUpdate(tx, txHash, [][]byte{[]byte("unrelated")}))
}
