// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"time"

	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/wire"
)

// genesisCoinbaseTx is the coinbase transaction shared by the mainnet,
// testnet3, and regtest genesis blocks.
var genesisCoinbaseTx = wire.MsgTx{
	Version: 1,
	TxIn: []*wire.TxIn{
		{
			PreviousOutPoint: wire.OutPoint{
				Hash:  chainutil.Hash256{},
				Index: 0xffffffff,
			},
			SignatureScript: []byte{
				0x04, 0xff, 0xff, 0x00, 0x1d, 0x01, 0x04, 0x45,
				0x54, 0x68, 0x65, 0x20, 0x54, 0x69, 0x6d, 0x65,
				0x73, 0x20, 0x30, 0x33, 0x2f, 0x4a, 0x61, 0x6e,
				0x2f, 0x32, 0x30, 0x30, 0x39, 0x20, 0x43, 0x68,
				0x61, 0x6e, 0x63, 0x65, 0x6c, 0x6c, 0x6f, 0x72,
				0x20, 0x6f, 0x6e, 0x20, 0x62, 0x72, 0x69, 0x6e,
				0x6b, 0x20, 0x6f, 0x66, 0x20, 0x73, 0x65, 0x63,
				0x6f, 0x6e, 0x64, 0x20, 0x62, 0x61, 0x69, 0x6c,
				0x6f, 0x75, 0x74, 0x20, 0x66, 0x6f, 0x72, 0x20,
				0x62, 0x61, 0x6e, 0x6b, 0x73,
			},
			Sequence: 0xffffffff,
		},
	},
	TxOut: []*wire.TxOut{
		{
			Value: 0x12a05f200,
			PkScript: []byte{
				0x41, 0x04, 0x67, 0x8a, 0xfd, 0xb0, 0xfe, 0x55,
				0x48, 0x27, 0x19, 0x67, 0xf1, 0xa6, 0x71, 0x30,
				0xb7, 0x10, 0x5c, 0xd6, 0xa8, 0x28, 0xe0, 0x39,
				0x09, 0xa6, 0x79, 0x62, 0xe0, 0xea, 0x1f, 0x61,
				0xde, 0xb6, 0x49, 0xf6, 0xbc, 0x3f, 0x4c, 0xef,
				0x38, 0xc4, 0xf3, 0x55, 0x04, 0xe5, 0x1e, 0xc1,
				0x12, 0xde, 0x5c, 0x38, 0x4d, 0xf7, 0xba, 0x0b,
				0x8d, 0x57, 0x8a, 0x4c, 0x70, 0x2b, 0x6b, 0xf1,
				0x1d, 0x5f, 0xac,
			},
		},
	},
	LockTime: 0,
}

var genesisMerkleRoot = chainutil.Hash256{
	0x3b, 0xa3, 0xed, 0xfd, 0x7a, 0x7b, 0x12, 0xb2,
	0x7a, 0xc7, 0x2c, 0x3e, 0x67, 0x76, 0x8f, 0x61,
	0x7f, 0xc8, 0x1b, 0xc3, 0x88, 0x8a, 0x51, 0x32,
	0x3a, 0x9f, 0xb8, 0xaa, 0x4b, 0x1e, 0x5e, 0x4a,
}

// genesisBlock is the mainnet genesis block.
var genesisBlock = wire.MsgBlock{
	Header: wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainutil.Hash256{},
		MerkleRoot: genesisMerkleRoot,
		Timestamp:  time.Unix(0x495fab29, 0),
		Bits:       0x1d00ffff,
		Nonce:      0x7c2bac1d,
	},
	Transactions: []*wire.MsgTx{&genesisCoinbaseTx},
}

var genesisHash = mustBlockHash(&genesisBlock)

// regTestGenesisBlock is the regression-test genesis block.
var regTestGenesisBlock = wire.MsgBlock{
	Header: wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainutil.Hash256{},
		MerkleRoot: genesisMerkleRoot,
		Timestamp:  time.Unix(1296688602, 0),
		Bits:       0x207fffff,
		Nonce:      2,
	},
	Transactions: []*wire.MsgTx{&genesisCoinbaseTx},
}

var regTestGenesisHash = mustBlockHash(&regTestGenesisBlock)

// testNet3GenesisBlock is the testnet3 genesis block.
var testNet3GenesisBlock = wire.MsgBlock{
	Header: wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainutil.Hash256{},
		MerkleRoot: genesisMerkleRoot,
		Timestamp:  time.Unix(1296688602, 0),
		Bits:       0x1d00ffff,
		Nonce:      0x18aea41a,
	},
	Transactions: []*wire.MsgTx{&genesisCoinbaseTx},
}

var testNet3GenesisHash = mustBlockHash(&testNet3GenesisBlock)

// sigNetGenesisBlock is the default public signet genesis block.
var sigNetGenesisBlock = wire.MsgBlock{
	Header: wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainutil.Hash256{},
		MerkleRoot: genesisMerkleRoot,
		Timestamp:  time.Unix(1598918400, 0),
		Bits:       0x1e0377ae,
		Nonce:      52613770,
	},
	Transactions: []*wire.MsgTx{&genesisCoinbaseTx},
}

var sigNetGenesisHash = mustBlockHash(&sigNetGenesisBlock)

func mustBlockHash(b *wire.MsgBlock) chainutil.Hash256 {
	return b.Header.BlockHash()
}
