// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"
	"net"
	"time"
)

// MaxNetAddressPayload returns the maximum number of bytes a single
// NetAddress can occupy at the given protocol version: 4 (time, present
// from NetAddressTimeVersion on) + 8 (services) + 16 (IP) + 2 (port).
func MaxNetAddressPayload(pver uint32) uint32 {
	plen := uint32(26)
	if pver >= NetAddressTimeVersion {
		plen += 4
	}
	return plen
}

// NetAddress describes a peer on the network: its advertised services,
// IP (stored as 16 bytes, v4 addresses mapped per net.IP), and port.
type NetAddress struct {
	// Timestamp is the last time the address was seen valid. It is only
	// present on the wire from NetAddressTimeVersion on, and never present
	// inside a version message's embedded addresses.
	Timestamp time.Time

	Services ServiceFlag
	IP       net.IP
	Port     uint16
}

// NewNetAddressIPPort returns a new NetAddress from an IP, port, and service
// flags, with the timestamp set to now.
func NewNetAddressIPPort(ip net.IP, port uint16, services ServiceFlag) *NetAddress {
	return &NetAddress{
		Timestamp: time.Unix(time.Now().Unix(), 0),
		Services:  services,
		IP:        ip,
		Port:      port,
	}
}

func readNetAddress(r io.Reader, na *NetAddress, hasTimestamp bool) error {
	if hasTimestamp {
		var ts [4]byte
		if _, err := io.ReadFull(r, ts[:]); err != nil {
			return messageError("readNetAddress", "unexpected EOF reading timestamp")
		}
		na.Timestamp = time.Unix(int64(binary.LittleEndian.Uint32(ts[:])), 0)
	}

	var svc [8]byte
	if _, err := io.ReadFull(r, svc[:]); err != nil {
		return messageError("readNetAddress", "unexpected EOF reading services")
	}
	na.Services = ServiceFlag(binary.LittleEndian.Uint64(svc[:]))

	var ip [16]byte
	if _, err := io.ReadFull(r, ip[:]); err != nil {
		return messageError("readNetAddress", "unexpected EOF reading IP")
	}
	na.IP = net.IP(append([]byte(nil), ip[:]...))

	var port [2]byte
	if _, err := io.ReadFull(r, port[:]); err != nil {
		return messageError("readNetAddress", "unexpected EOF reading port")
	}
	na.Port = binary.BigEndian.Uint16(port[:])

	return nil
}

func writeNetAddress(w io.Writer, na *NetAddress, hasTimestamp bool) error {
	if hasTimestamp {
		var ts [4]byte
		binary.LittleEndian.PutUint32(ts[:], uint32(na.Timestamp.Unix()))
		if _, err := w.Write(ts[:]); err != nil {
			return err
		}
	}

	var svc [8]byte
	binary.LittleEndian.PutUint64(svc[:], uint64(na.Services))
	if _, err := w.Write(svc[:]); err != nil {
		return err
	}

	var ip [16]byte
	if ipv4 := na.IP.To4(); ipv4 != nil {
		copy(ip[:], []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff})
		copy(ip[12:], ipv4)
	} else if na.IP != nil {
		copy(ip[:], na.IP.To16())
	}
	if _, err := w.Write(ip[:]); err != nil {
		return err
	}

	var port [2]byte
	binary.BigEndian.PutUint16(port[:], na.Port)
	_, err := w.Write(port[:])
	return err
}
