// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainstore

import (
	"sync"

	"github.com/btcrelay/corenode/chainutil"
)

// MemStore is an in-memory Store, suitable for tests and for nodes that do
// not need the chain to survive a restart.
type MemStore struct {
	mu       sync.RWMutex
	byHash   map[chainutil.Hash256]*Entry
	byHeight map[int32]chainutil.Hash256
	tip      chainutil.Hash256
	height   int32
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		byHash:   make(map[chainutil.Hash256]*Entry),
		byHeight: make(map[int32]chainutil.Hash256),
		height:   -1,
	}
}

func (s *MemStore) Tip() (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.height < 0 {
		return nil, ErrNotFound
	}
	e, ok := s.byHash[s.tip]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *MemStore) GetByHash(hash chainutil.Hash256) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *MemStore) GetByHeight(height int32) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hash, ok := s.byHeight[height]
	if !ok {
		return nil, ErrNotFound
	}
	return s.byHash[hash], nil
}

func (s *MemStore) Put(entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.byHash[cp.Hash()] = &cp
	return nil
}

func (s *MemStore) SetTip(hash chainutil.Hash256) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byHash[hash]
	if !ok {
		return ErrNotFound
	}

	// Rebuild the height index by walking backward from the new tip. This
	// overwrites any stale heights left by an abandoned branch.
	cur := entry
	for {
		s.byHeight[cur.Height] = cur.Hash()
		if cur.Height == 0 {
			break
		}
		parent, ok := s.byHash[cur.Header.PrevBlock]
		if !ok {
			break
		}
		if existing, ok := s.byHeight[parent.Height]; ok && existing == parent.Hash() {
			// The rest of the index already agrees with this branch.
			break
		}
		cur = parent
	}

	s.tip = hash
	s.height = entry.Height
	return nil
}

func (s *MemStore) Height() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}
