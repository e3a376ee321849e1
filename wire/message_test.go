// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/btcrelay/corenode/chainutil"
	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 0xfc, 0xfd, 0xffff, 0x10000, 0xffffffff, 0x100000000, ^uint64(0)}
	for _, v := range values {
		var buf bytes.Buffer
		require.NoError(t, WriteVarInt(&buf, v))
		got, err := ReadVarInt(&buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestVarIntRejectsNonCanonical(t *testing.T) {
	// 0xfd followed by a 2-byte value under 0xfd is non-canonical.
	buf := bytes.NewReader([]byte{0xfd, 0x01, 0x00})
	_, err := ReadVarInt(buf)
	require.Error(t, err)
}

func TestMessageRoundTrip(t *testing.T) {
	me := NewNetAddressIPPort(net.ParseIP("127.0.0.1"), 8333, SFNodeNetwork)
	you := NewNetAddressIPPort(net.ParseIP("127.0.0.2"), 8333, SFNodeNetwork)
	ver := NewMsgVersion(me, you, 123456789, 0)

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, ver, ProtocolVersion, MainNet))

	msg, raw, err := ReadMessage(&buf, ProtocolVersion, MainNet)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	got, ok := msg.(*MsgVersion)
	require.True(t, ok)
	require.Equal(t, ver.Nonce, got.Nonce)
	require.Equal(t, ver.UserAgent, got.UserAgent)
}

func TestMessageRejectsWrongMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, &MsgVerAck{}, ProtocolVersion, MainNet))
	_, _, err := ReadMessage(&buf, ProtocolVersion, TestNet3)
	require.Error(t, err)
}

func TestMessageRejectsBadChecksum(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, &MsgPing{Nonce: 42}, ProtocolVersion, MainNet))
	b := buf.Bytes()
	b[len(b)-1] ^= 0xff // corrupt the payload without updating the checksum
	_, _, err := ReadMessage(bytes.NewReader(b), ProtocolVersion, MainNet)
	require.Error(t, err)
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	h := NewBlockHeader(1, chainutil.Hash256{}, chainutil.Hash256{0x01}, 0x1d00ffff, 0)
	var buf bytes.Buffer
	require.NoError(t, h.Serialize(&buf))
	require.Equal(t, BlockHeaderLen, buf.Len())

	var got BlockHeader
	require.NoError(t, got.Deserialize(&buf))
	require.Equal(t, h.Version, got.Version)
	require.Equal(t, h.Bits, got.Bits)
	require.WithinDuration(t, h.Timestamp, got.Timestamp, time.Second)
	require.Equal(t, h.BlockHash(), got.BlockHash())
}

func TestTxRoundTrip(t *testing.T) {
	tx := NewMsgTx(1)
	tx.AddTxIn(&TxIn{
		PreviousOutPoint: *NewOutPoint(&chainutil.Hash256{0x01}, 0),
		SignatureScript:  []byte{0x01, 0x02},
		Sequence:         0xffffffff,
	})
	tx.AddTxOut(NewTxOut(5000000000, []byte{0x76, 0xa9}))

	var buf bytes.Buffer
	require.NoError(t, tx.BtcEncode(&buf, ProtocolVersion))

	var got MsgTx
	require.NoError(t, got.BtcDecode(&buf, ProtocolVersion))
	require.Equal(t, tx.TxHash(), got.TxHash())
}

// rawMessage hand-assembles a wire frame for a command ReadMessage's
// Message set may not recognize, so the unknown-command path can be
// exercised without a Message implementation to encode it.
func rawMessage(command string, payload []byte, net BitcoinNet) []byte {
	var header [MessageHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(net))
	copy(header[4:4+CommandSize], command)
	binary.LittleEndian.PutUint32(header[16:20], uint32(len(payload)))
	sum := checksum(payload)
	copy(header[20:24], sum[:])
	return append(header[:], payload...)
}

func TestMessageSkipsUnknownCommandAndStaysFramed(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(rawMessage("sendcmpct", []byte{0x01, 0x02, 0x03}, MainNet))
	require.NoError(t, WriteMessage(&buf, &MsgPing{Nonce: 7}, ProtocolVersion, MainNet))

	_, _, err := ReadMessage(&buf, ProtocolVersion, MainNet)
	require.True(t, errors.Is(err, ErrUnknownCommand))

	msg, _, err := ReadMessage(&buf, ProtocolVersion, MainNet)
	require.NoError(t, err)
	ping, ok := msg.(*MsgPing)
	require.True(t, ok)
	require.Equal(t, uint64(7), ping.Nonce)
}

func TestHeadersMessageRejectsNonZeroTxCount(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVarInt(&buf, 1))
	h := NewBlockHeader(1, chainutil.Hash256{}, chainutil.Hash256{}, 0x1d00ffff, 0)
	require.NoError(t, writeBlockHeader(&buf, h))
	require.NoError(t, WriteVarInt(&buf, 1)) // non-zero tx count

	var headers MsgHeaders
	err := headers.BtcDecode(&buf, ProtocolVersion)
	require.Error(t, err)
}
