// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainstore

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/btcrelay/corenode/chainutil"
	"github.com/btcrelay/corenode/wire"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// Key prefixes partition the single leveldb keyspace between the two
// indexes this store maintains: header records keyed by hash, and a
// height-to-hash index along the current best chain.
const (
	prefixHeader byte = 'h'
	prefixHeight byte = 'i'
	keyTip       byte = 't'
)

// recordLen is the on-disk size of a single header record: an 80-byte
// header, a 4-byte little-endian height, and the 32-byte big-endian chain
// work total.
const recordLen = wire.BlockHeaderLen + 4 + 32

// errCorruptRecord is returned when a stored record is not recordLen bytes,
// which should only happen if the database was written by a different
// version of this store.
var errCorruptRecord = errors.New("chainstore: corrupt header record")

// LevelStore is a Store backed by a goleveldb database on disk, for nodes
// that need the header chain to survive a restart without re-downloading
// it.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens (creating if necessary) a LevelStore at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &LevelStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *LevelStore) Close() error {
	return s.db.Close()
}

func headerKey(hash chainutil.Hash256) []byte {
	key := make([]byte, 1+chainutil.HashSize)
	key[0] = prefixHeader
	copy(key[1:], hash[:])
	return key
}

func heightKey(height int32) []byte {
	key := make([]byte, 5)
	key[0] = prefixHeight
	binary.BigEndian.PutUint32(key[1:], uint32(height))
	return key
}

func encodeEntry(e *Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Header.Serialize(&buf); err != nil {
		return nil, err
	}
	var tail [4 + 32]byte
	binary.LittleEndian.PutUint32(tail[:4], uint32(e.Height))
	work := e.ChainWork.Bytes()
	copy(tail[4:], work[:])
	buf.Write(tail[:])
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (*Entry, error) {
	if len(data) != recordLen {
		return nil, errCorruptRecord
	}
	var e Entry
	if err := e.Header.Deserialize(bytes.NewReader(data[:wire.BlockHeaderLen])); err != nil {
		return nil, err
	}
	e.Height = int32(binary.LittleEndian.Uint32(data[wire.BlockHeaderLen : wire.BlockHeaderLen+4]))
	e.ChainWork.SetBytes(data[wire.BlockHeaderLen+4:])
	return &e, nil
}

func (s *LevelStore) Tip() (*Entry, error) {
	data, err := s.db.Get([]byte{keyTip}, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var hash chainutil.Hash256
	copy(hash[:], data)
	return s.GetByHash(hash)
}

func (s *LevelStore) GetByHash(hash chainutil.Hash256) (*Entry, error) {
	data, err := s.db.Get(headerKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeEntry(data)
}

func (s *LevelStore) GetByHeight(height int32) (*Entry, error) {
	data, err := s.db.Get(heightKey(height), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var hash chainutil.Hash256
	copy(hash[:], data)
	return s.GetByHash(hash)
}

func (s *LevelStore) Put(entry *Entry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	return s.db.Put(headerKey(entry.Hash()), data, nil)
}

func (s *LevelStore) SetTip(hash chainutil.Hash256) error {
	entry, err := s.GetByHash(hash)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	cur := entry
	for {
		h := cur.Hash()
		batch.Put(heightKey(cur.Height), h[:])
		if cur.Height == 0 {
			break
		}
		parent, err := s.GetByHash(cur.Header.PrevBlock)
		if err != nil {
			break
		}
		if existing, err := s.db.Get(heightKey(parent.Height), nil); err == nil {
			var existingHash chainutil.Hash256
			copy(existingHash[:], existing)
			if existingHash == parent.Hash() {
				break
			}
		}
		cur = parent
	}
	batch.Put([]byte{keyTip}, hash[:])

	return s.db.Write(batch, nil)
}

func (s *LevelStore) Height() int32 {
	e, err := s.Tip()
	if err != nil {
		return -1
	}
	return e.Height
}
