// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import "fmt"

// ErrorCode identifies a specific kind of header or chain-level validation
// failure.
type ErrorCode int

const (
	// ErrDuplicateBlock indicates a header that has already been
	// accepted into the store.
	ErrDuplicateBlock ErrorCode = iota

	// ErrMissingParent indicates a header whose PrevBlock is not in the
	// store, so it cannot yet be connected.
	ErrMissingParent

	// ErrInvalidTimestamp indicates a header timestamp that is not
	// greater than the median of the preceding 11 blocks, or that is
	// too far in the future.
	ErrInvalidTimestamp

	// ErrHighHash indicates a header whose hash does not satisfy the
	// proof-of-work target declared in its own Bits field.
	ErrHighHash

	// ErrUnexpectedDifficulty indicates a header whose Bits field does
	// not match what CalcNextRequiredDifficulty computed for its
	// height.
	ErrUnexpectedDifficulty

	// ErrBadMerkleRoot indicates a block whose transactions do not hash
	// to the MerkleRoot declared in its header.
	ErrBadMerkleRoot

	// ErrNoTransactions indicates a block with zero transactions, which
	// is always invalid since every block must at least have a
	// coinbase.
	ErrNoTransactions

	// ErrBadCheckpoint indicates a header at a checkpointed height whose
	// hash does not match the checkpoint.
	ErrBadCheckpoint

	// ErrForksBelowCheckpoint indicates a reorganization attempting to
	// replace a block at or below the most recent checkpoint.
	ErrForksBelowCheckpoint
)

var errorCodeStrings = map[ErrorCode]string{
	ErrDuplicateBlock:       "ErrDuplicateBlock",
	ErrMissingParent:        "ErrMissingParent",
	ErrInvalidTimestamp:     "ErrInvalidTimestamp",
	ErrHighHash:             "ErrHighHash",
	ErrUnexpectedDifficulty: "ErrUnexpectedDifficulty",
	ErrBadMerkleRoot:        "ErrBadMerkleRoot",
	ErrNoTransactions:       "ErrNoTransactions",
	ErrBadCheckpoint:        "ErrBadCheckpoint",
	ErrForksBelowCheckpoint: "ErrForksBelowCheckpoint",
}

func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a violation of a consensus rule. Callers should use
// errors.As to recover the ErrorCode rather than comparing strings.
type RuleError struct {
	ErrorCode   ErrorCode
	Description string
}

func (e RuleError) Error() string {
	return e.Description
}

// ruleError creates a RuleError given a set of arguments.
func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}
