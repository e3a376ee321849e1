// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrUnknownCommand indicates ReadMessage decoded a header naming a command
// this package has no Message implementation for. By the time it's
// returned, the declared payload has already been read and discarded, so
// the stream stays correctly framed and the caller may keep reading
// messages rather than treating this as fatal — a forward-compatible peer
// routinely sends commands (sendcmpct, wtxidrelay, addrv2, ...) this
// package doesn't model.
var ErrUnknownCommand = errors.New("unknown command")

// CommandSize is the fixed width, in bytes, of a message's command field.
// Shorter commands are zero-padded; there is no room for anything longer.
const CommandSize = 12

// MessageHeaderSize is the number of bytes in a message header: 4 (magic) +
// 12 (command) + 4 (payload length) + 4 (checksum).
const MessageHeaderSize = 4 + CommandSize + 4 + 4

// MaxMessagePayload is the default maximum payload size this package will
// read for any single message, guarding against a peer that claims an
// absurd length and never sends it.
const MaxMessagePayload = 32 * 1024 * 1024

// Command name constants for every message type this package implements.
const (
	CmdVersion     = "version"
	CmdVerAck      = "verack"
	CmdPing        = "ping"
	CmdPong        = "pong"
	CmdGetAddr     = "getaddr"
	CmdAddr        = "addr"
	CmdInv         = "inv"
	CmdGetData     = "getdata"
	CmdNotFound    = "notfound"
	CmdGetBlocks   = "getblocks"
	CmdGetHeaders  = "getheaders"
	CmdHeaders     = "headers"
	CmdBlock       = "block"
	CmdTx          = "tx"
	CmdMerkleBlock = "merkleblock"
	CmdFilterLoad  = "filterload"
	CmdFilterAdd   = "filteradd"
	CmdFilterClear = "filterclear"
	CmdMemPool     = "mempool"
	CmdSendHeaders = "sendheaders"
	CmdFeeFilter   = "feefilter"
	CmdReject      = "reject"
)

// Message is implemented by every concrete wire message type.
type Message interface {
	BtcDecode(r io.Reader, pver uint32) error
	BtcEncode(w io.Writer, pver uint32) error
	Command() string
	MaxPayloadLength(pver uint32) uint32
}

// messageHeader is the fixed-size preamble that precedes every message
// payload on the wire.
type messageHeader struct {
	magic    BitcoinNet
	command  string
	length   uint32
	checksum [4]byte
}

// makeEmptyMessage returns a new, zero-valued Message for the given command
// string, or ErrUnknownCommand if the command is not recognized.
func makeEmptyMessage(command string) (Message, error) {
	switch command {
	case CmdVersion:
		return &MsgVersion{}, nil
	case CmdVerAck:
		return &MsgVerAck{}, nil
	case CmdPing:
		return &MsgPing{}, nil
	case CmdPong:
		return &MsgPong{}, nil
	case CmdGetAddr:
		return &MsgGetAddr{}, nil
	case CmdAddr:
		return &MsgAddr{}, nil
	case CmdInv:
		return &MsgInv{}, nil
	case CmdGetData:
		return &MsgGetData{}, nil
	case CmdNotFound:
		return &MsgNotFound{}, nil
	case CmdGetBlocks:
		return &MsgGetBlocks{}, nil
	case CmdGetHeaders:
		return &MsgGetHeaders{}, nil
	case CmdHeaders:
		return &MsgHeaders{}, nil
	case CmdBlock:
		return &MsgBlock{}, nil
	case CmdTx:
		return &MsgTx{}, nil
	case CmdMerkleBlock:
		return &MsgMerkleBlock{}, nil
	case CmdFilterLoad:
		return &MsgFilterLoad{}, nil
	case CmdFilterAdd:
		return &MsgFilterAdd{}, nil
	case CmdFilterClear:
		return &MsgFilterClear{}, nil
	case CmdMemPool:
		return &MsgMemPool{}, nil
	case CmdSendHeaders:
		return &MsgSendHeaders{}, nil
	case CmdFeeFilter:
		return &MsgFeeFilter{}, nil
	case CmdReject:
		return &MsgReject{}, nil
	}
	return nil, ErrUnknownCommand
}

func checksum(payload []byte) [4]byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	var out [4]byte
	copy(out[:], second[:4])
	return out
}

// WriteMessage writes the full wire encoding of msg — header plus payload —
// to w, using net to select the magic bytes and pver to select the encoding
// rules each message's BtcEncode applies.
func WriteMessage(w io.Writer, msg Message, pver uint32, net BitcoinNet) error {
	command := msg.Command()
	if len(command) > CommandSize {
		return messageError("WriteMessage",
			fmt.Sprintf("command %q too long", command))
	}

	var payloadBuf bytes.Buffer
	if err := msg.BtcEncode(&payloadBuf, pver); err != nil {
		return err
	}
	payload := payloadBuf.Bytes()

	maxPayload := msg.MaxPayloadLength(pver)
	if uint32(len(payload)) > maxPayload {
		return messageError("WriteMessage", fmt.Sprintf(
			"message payload for %q is %d bytes, exceeds max of %d",
			command, len(payload), maxPayload))
	}

	var header [MessageHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(net))
	copy(header[4:4+CommandSize], command)
	binary.LittleEndian.PutUint32(header[16:20], uint32(len(payload)))
	sum := checksum(payload)
	copy(header[20:24], sum[:])

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	// An empty payload is not written: a zero-length Write on a synchronous
	// conn such as net.Pipe blocks until the peer calls Read, which
	// ReadMessage never does for a zero declared length.
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// ReadMessage reads a single wire message from r: a header, validated
// against net's magic, the declared length and the checksum, followed by
// its payload, decoded via the matching Message implementation. It returns
// the decoded message and, separately, the raw header+payload bytes (used
// by callers that need to compute an inventory hash without re-encoding).
func ReadMessage(r io.Reader, pver uint32, net BitcoinNet) (Message, []byte, error) {
	var headerBytes [MessageHeaderSize]byte
	if _, err := io.ReadFull(r, headerBytes[:]); err != nil {
		return nil, nil, messageError("ReadMessage", "unexpected EOF reading header")
	}

	gotMagic := BitcoinNet(binary.LittleEndian.Uint32(headerBytes[0:4]))
	if gotMagic != net {
		return nil, nil, messageError("ReadMessage",
			fmt.Sprintf("unexpected network magic %v, want %v", gotMagic, net))
	}

	commandBytes := headerBytes[4 : 4+CommandSize]
	zeroIdx := bytes.IndexByte(commandBytes, 0)
	var command string
	if zeroIdx == -1 {
		command = string(commandBytes)
	} else {
		command = string(commandBytes[:zeroIdx])
	}

	length := binary.LittleEndian.Uint32(headerBytes[16:20])
	if length > MaxMessagePayload {
		return nil, nil, messageError("ReadMessage", fmt.Sprintf(
			"declared payload length %d exceeds max of %d", length, MaxMessagePayload))
	}

	msg, err := makeEmptyMessage(command)
	if err != nil {
		if errors.Is(err, ErrUnknownCommand) {
			if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
				return nil, nil, messageError("ReadMessage",
					"unexpected EOF discarding unknown command payload")
			}
			return nil, nil, fmt.Errorf("%s: %w", command, ErrUnknownCommand)
		}
		return nil, nil, err
	}
	if length > msg.MaxPayloadLength(pver) {
		return nil, nil, messageError("ReadMessage", fmt.Sprintf(
			"declared payload length %d for command %q exceeds its max of %d",
			length, command, msg.MaxPayloadLength(pver)))
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, nil, messageError("ReadMessage", "unexpected EOF reading payload")
	}

	gotSum := checksum(payload)
	wantSum := headerBytes[20:24]
	if !bytes.Equal(gotSum[:], wantSum) {
		return nil, nil, messageError("ReadMessage", "checksum mismatch")
	}

	if err := msg.BtcDecode(bytes.NewReader(payload), pver); err != nil {
		return nil, nil, err
	}

	full := make([]byte, 0, MessageHeaderSize+len(payload))
	full = append(full, headerBytes[:]...)
	full = append(full, payload...)
	return msg, full, nil
}
