// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindb

import (
	"container/list"
	"sync"

	"github.com/daglabs/halfnode/chainhash"
	"github.com/daglabs/halfnode/wire"
)

// blockCache is a bounded, size-limited LRU of recently decoded blocks,
// keyed by hash. It is populated on every getblock disk hit and evicted in
// LRU order at capacity, mirroring the source's Cache helper.
type blockCache struct {
	mtx      sync.Mutex
	capacity int
	entries  map[chainhash.Hash]*list.Element
	order    *list.List
}

type cacheEntry struct {
	hash  chainhash.Hash
	block *wire.MsgBlock
}

func newBlockCache(capacity int) *blockCache {
	return &blockCache{
		capacity: capacity,
		entries:  make(map[chainhash.Hash]*list.Element),
		order:    list.New(),
	}
}

func (c *blockCache) get(hash chainhash.Hash) (*wire.MsgBlock, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	elem, ok := c.entries[hash]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).block, true
}

func (c *blockCache) put(hash chainhash.Hash, block *wire.MsgBlock) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if elem, ok := c.entries[hash]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).block = block
		return
	}

	elem := c.order.PushFront(&cacheEntry{hash: hash, block: block})
	c.entries[hash] = elem

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).hash)
	}
}

func (c *blockCache) has(hash chainhash.Hash) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	_, ok := c.entries[hash]
	return ok
}
