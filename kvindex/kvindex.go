// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package kvindex implements the ordered, persistent, string-keyed index
// used for transaction, block, height and misc metadata: tx:, blocks:,
// blkmeta:, height:, misc:. It is backed by goleveldb and protected by a
// single mutex so concurrent callers are linearized, matching the
// ChainDb/KV lock nesting order the rest of the core relies on.
package kvindex

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kvindex: key not found")

// Index is the ordered key-value store.
type Index struct {
	mtx sync.Mutex
	db  *leveldb.DB
}

// Open opens (creating if necessary) the leveldb database at path.
func Open(path string) (*Index, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "kvindex: open")
	}
	return &Index{db: db}, nil
}

// Get returns the value stored at key, or ErrNotFound if it does not exist.
func (idx *Index) Get(key string) ([]byte, error) {
	idx.mtx.Lock()
	defer idx.mtx.Unlock()

	val, err := idx.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "kvindex: get %q", key)
	}
	return val, nil
}

// Put writes a single key/value pair.
func (idx *Index) Put(key string, value []byte) error {
	idx.mtx.Lock()
	defer idx.mtx.Unlock()

	if err := idx.db.Put([]byte(key), value, nil); err != nil {
		return errors.Wrapf(err, "kvindex: put %q", key)
	}
	return nil
}

// Delete removes a single key. Deleting an absent key is not an error.
func (idx *Index) Delete(key string) error {
	idx.mtx.Lock()
	defer idx.mtx.Unlock()

	if err := idx.db.Delete([]byte(key), nil); err != nil {
		return errors.Wrapf(err, "kvindex: delete %q", key)
	}
	return nil
}

// Batch is an ordered set of put/delete operations applied atomically by
// Write.
type Batch struct {
	raw leveldb.Batch
}

// Put stages a key/value write in the batch.
func (b *Batch) Put(key string, value []byte) {
	b.raw.Put([]byte(key), value)
}

// Delete stages a key deletion in the batch.
func (b *Batch) Delete(key string) {
	b.raw.Delete([]byte(key))
}

// NewBatch returns an empty write batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Write applies the batch atomically.
func (idx *Index) Write(batch *Batch) error {
	idx.mtx.Lock()
	defer idx.mtx.Unlock()

	if err := idx.db.Write(&batch.raw, nil); err != nil {
		return errors.Wrap(err, "kvindex: write batch")
	}
	return nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	idx.mtx.Lock()
	defer idx.mtx.Unlock()
	return idx.db.Close()
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
