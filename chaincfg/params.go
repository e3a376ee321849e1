// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"errors"
	"strings"
	"time"

	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/wire"
)

// DifficultyPolicy selects which retarget behavior a Validator applies on
// top of the shared classic-retarget arithmetic.
type DifficultyPolicy int

const (
	// PolicyStandard applies the unmodified classic retarget: recompute
	// every RetargetInterval blocks, no exceptions.
	PolicyStandard DifficultyPolicy = iota

	// PolicyTestnetMinDifficulty additionally allows the "20-minute rule":
	// a block more than 2*TargetTimePerBlock after its predecessor may be
	// mined at the network's minimum difficulty, and the next block after
	// that searches backward for the most recent non-exception block to
	// resume from.
	PolicyTestnetMinDifficulty
)

// mainPowLimit is the highest proof-of-work target permitted on mainnet:
// 2^224 - 1.
var mainPowLimit = chainutil.Uint256FromUint64(1).Lsh(224).Sub(chainutil.Uint256FromUint64(1))

// regressionPowLimit is the highest target permitted on regtest: 2^255 - 1.
var regressionPowLimit = chainutil.Uint256FromUint64(1).Lsh(255).Sub(chainutil.Uint256FromUint64(1))

// testNet3PowLimit mirrors mainPowLimit; testnet3 shares mainnet's ceiling
// but relaxes it via PolicyTestnetMinDifficulty.
var testNet3PowLimit = mainPowLimit

// sigNetPowLimit is signet's default target ceiling: 0x0377ae << 216, the
// target its PowLimitBits (0x1e0377ae) encodes.
var sigNetPowLimit = chainutil.Uint256FromUint64(0x0377ae).Lsh(216)

// Checkpoint identifies a known-good block by height, used to reject a
// peer's alternate history below that point outright rather than run full
// validation over it.
type Checkpoint struct {
	Height int32
	Hash   chainutil.Hash256
}

// DNSSeed identifies a DNS seed that addrmgr queries for bootstrap peer
// addresses.
type DNSSeed struct {
	Host         string
	HasFiltering bool
}

// Params defines the network-specific parameters a node needs: the genesis
// block, difficulty retarget constants, address/DNS bootstrap info, and
// message framing values.
type Params struct {
	Name        string
	Net         wire.BitcoinNet
	DefaultPort string
	DNSSeeds    []DNSSeed

	GenesisBlock *wire.MsgBlock
	GenesisHash  chainutil.Hash256

	PowLimit         chainutil.Uint256
	PowLimitBits     uint32
	PoWNoRetargeting bool

	CoinbaseMaturity int32

	// TargetTimespan is the desired amount of time it should take for the
	// chain to retarget, in seconds. For the classic algorithm this is
	// RetargetInterval * TargetTimePerBlock.
	TargetTimespan time.Duration

	// TargetTimePerBlock is the desired average time between blocks, in
	// seconds.
	TargetTimePerBlock time.Duration

	// RetargetInterval is the number of blocks between difficulty
	// recalculations, derived from TargetTimespan/TargetTimePerBlock.
	RetargetInterval int32

	// RetargetAdjustmentFactor clamps the actual timespan to
	// [TargetTimespan/factor, TargetTimespan*factor] before it is applied.
	RetargetAdjustmentFactor int64

	// DifficultyPolicy selects the testnet-exception behavior, if any.
	DifficultyPolicy DifficultyPolicy

	// MinDiffReductionTime is the span (normally 2*TargetTimePerBlock)
	// after which PolicyTestnetMinDifficulty permits a minimum-difficulty
	// block.
	MinDiffReductionTime time.Duration

	Checkpoints []Checkpoint

	RuleChangeActivationThreshold uint32
	MinerConfirmationWindow       uint32

	RelayNonStdTxs bool

	Bech32HRPSegwit string

	PubKeyHashAddrID        byte
	ScriptHashAddrID        byte
	PrivateKeyID            byte
	WitnessPubKeyHashAddrID byte
	WitnessScriptHashAddrID byte

	HDPrivateKeyID [4]byte
	HDPublicKeyID  [4]byte

	HDCoinType uint32
}

// MainNetParams defines the parameters for the main network.
var MainNetParams = Params{
	Name:        "mainnet",
	Net:         wire.MainNet,
	DefaultPort: "8333",
	DNSSeeds: []DNSSeed{
		{"seed.corenode.example", true},
		{"seed2.corenode.example", true},
	},

	GenesisBlock: &genesisBlock,
	GenesisHash:  genesisHash,

	PowLimit:         mainPowLimit,
	PowLimitBits:     0x1d00ffff,
	PoWNoRetargeting: false,

	CoinbaseMaturity: 100,

	TargetTimespan:           time.Hour * 24 * 14, // 14 days
	TargetTimePerBlock:       time.Minute * 10,
	RetargetInterval:         2016,
	RetargetAdjustmentFactor: 4,
	DifficultyPolicy:         PolicyStandard,

	RuleChangeActivationThreshold: 1916, // 95%
	MinerConfirmationWindow:       2016,

	RelayNonStdTxs: false,

	Bech32HRPSegwit: "bc",

	PubKeyHashAddrID: 0x00,
	ScriptHashAddrID: 0x05,
	PrivateKeyID:     0x80,

	HDPrivateKeyID: [4]byte{0x04, 0x88, 0xad, 0xe4},
	HDPublicKeyID:  [4]byte{0x04, 0x88, 0xb2, 0x1e},

	HDCoinType: 0,
}

// TestNet3Params defines the parameters for the test network (version 3).
var TestNet3Params = Params{
	Name:        "testnet3",
	Net:         wire.TestNet3,
	DefaultPort: "18333",
	DNSSeeds: []DNSSeed{
		{"testnet-seed.corenode.example", true},
	},

	GenesisBlock: &testNet3GenesisBlock,
	GenesisHash:  testNet3GenesisHash,

	PowLimit:         testNet3PowLimit,
	PowLimitBits:     0x1d00ffff,
	PoWNoRetargeting: false,

	CoinbaseMaturity: 100,

	TargetTimespan:           time.Hour * 24 * 14,
	TargetTimePerBlock:       time.Minute * 10,
	RetargetInterval:         2016,
	RetargetAdjustmentFactor: 4,
	DifficultyPolicy:         PolicyTestnetMinDifficulty,
	MinDiffReductionTime:     time.Minute * 20,

	RuleChangeActivationThreshold: 1512, // 75%
	MinerConfirmationWindow:       2016,

	RelayNonStdTxs: true,

	Bech32HRPSegwit: "tb",

	PubKeyHashAddrID: 0x6f,
	ScriptHashAddrID: 0xc4,
	PrivateKeyID:     0xef,

	HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94},
	HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf},

	HDCoinType: 1,
}

// SigNetParams defines the parameters for the default public signet. Full
// signet block-validity challenge-script checking is out of scope (no
// script interpreter); SigNetParams is carried for its genesis, magic, and
// retarget constants, which a headers-only validator still needs.
var SigNetParams = Params{
	Name:        "signet",
	Net:         wire.SigNet,
	DefaultPort: "38333",
	DNSSeeds: []DNSSeed{
		{"signet-seed.corenode.example", false},
	},

	GenesisBlock: &sigNetGenesisBlock,
	GenesisHash:  sigNetGenesisHash,

	PowLimit:         sigNetPowLimit,
	PowLimitBits:     0x1e0377ae,
	PoWNoRetargeting: false,

	CoinbaseMaturity: 100,

	TargetTimespan:           time.Hour * 24 * 14,
	TargetTimePerBlock:       time.Minute * 10,
	RetargetInterval:         2016,
	RetargetAdjustmentFactor: 4,
	DifficultyPolicy:         PolicyStandard,

	RuleChangeActivationThreshold: 1815, // 90%
	MinerConfirmationWindow:       2016,

	RelayNonStdTxs: true,

	Bech32HRPSegwit: "tb",

	PubKeyHashAddrID: 0x6f,
	ScriptHashAddrID: 0xc4,
	PrivateKeyID:     0xef,

	HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94},
	HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf},

	HDCoinType: 1,
}

// RegressionNetParams defines the parameters for the regression test
// network, used by local integration tests where retargeting would
// otherwise stall a fast test chain for weeks of simulated time.
var RegressionNetParams = Params{
	Name:        "regtest",
	Net:         wire.TestNet,
	DefaultPort: "18444",

	GenesisBlock: &regTestGenesisBlock,
	GenesisHash:  regTestGenesisHash,

	PowLimit:         regressionPowLimit,
	PowLimitBits:     0x207fffff,
	PoWNoRetargeting: true,

	CoinbaseMaturity: 100,

	TargetTimespan:           time.Hour * 24 * 14,
	TargetTimePerBlock:       time.Minute * 10,
	RetargetInterval:         2016,
	RetargetAdjustmentFactor: 4,
	DifficultyPolicy:         PolicyStandard,

	RuleChangeActivationThreshold: 108, // 75%
	MinerConfirmationWindow:       144,

	RelayNonStdTxs: true,

	Bech32HRPSegwit: "bcrt",

	PubKeyHashAddrID: 0x6f,
	ScriptHashAddrID: 0xc4,
	PrivateKeyID:     0xef,

	HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94},
	HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf},

	HDCoinType: 1,
}

var (
	registeredNets       = make(map[wire.BitcoinNet]struct{})
	pubKeyHashAddrIDs    = make(map[byte]struct{})
	scriptHashAddrIDs    = make(map[byte]struct{})
	bech32SegwitPrefixes = make(map[string]struct{})
	hdPrivToPubKeyIDs    = make(map[[4]byte][]byte)
)

// ErrDuplicateNet is returned by Register when the network has already
// been registered.
var ErrDuplicateNet = errors.New("chaincfg: duplicate network")

// Register makes the network parameters described by params available to
// the rest of the node (addrmgr's address-version byte checks, the
// validator's genesis/checkpoint lookups) for use with CLI configuration
// flags.
func Register(params *Params) error {
	if _, ok := registeredNets[params.Net]; ok {
		return ErrDuplicateNet
	}
	registeredNets[params.Net] = struct{}{}
	pubKeyHashAddrIDs[params.PubKeyHashAddrID] = struct{}{}
	scriptHashAddrIDs[params.ScriptHashAddrID] = struct{}{}
	bech32SegwitPrefixes[params.Bech32HRPSegwit+"1"] = struct{}{}
	hdPrivToPubKeyIDs[params.HDPrivateKeyID] = params.HDPublicKeyID[:]
	return nil
}

func mustRegister(params *Params) {
	if err := Register(params); err != nil {
		panic("chaincfg: failed to register default network: " + err.Error())
	}
}

// IsPubKeyHashAddrID returns whether id is a registered pay-to-pubkey-hash
// address version byte for any network.
func IsPubKeyHashAddrID(id byte) bool {
	_, ok := pubKeyHashAddrIDs[id]
	return ok
}

// IsScriptHashAddrID returns whether id is a registered pay-to-script-hash
// address version byte for any network.
func IsScriptHashAddrID(id byte) bool {
	_, ok := scriptHashAddrIDs[id]
	return ok
}

// IsBech32SegwitPrefix returns whether prefix (including its "1" separator)
// matches a registered network's bech32 HRP.
func IsBech32SegwitPrefix(prefix string) bool {
	prefix = strings.ToLower(prefix)
	_, ok := bech32SegwitPrefixes[prefix]
	return ok
}

func init() {
	mustRegister(&MainNetParams)
	mustRegister(&TestNet3Params)
	mustRegister(&SigNetParams)
	mustRegister(&RegressionNetParams)
}
