// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mempool holds the set of transactions seen but not yet confirmed
// on the best chain. It performs structural validation only: no UTXO
// lookups, no signature checks, no fee policy. chaindb draws candidate
// block transactions from it and reconciles membership on every connect
// and disconnect.
package mempool

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/daglabs/halfnode/chainhash"
	"github.com/daglabs/halfnode/wire"
)

// ErrInvalidTx is returned by Add when tx fails structural validation.
var ErrInvalidTx = errors.New("mempool: invalid transaction")

// Pool is a mutex-guarded set of pending transactions keyed by hash.
type Pool struct {
	mtx  sync.Mutex
	pool map[chainhash.Hash]*wire.MsgTx
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{pool: make(map[chainhash.Hash]*wire.MsgTx)}
}

// Add admits tx to the pool after a structural check, matching the
// reference CheckTransaction. It returns nil, leaving the pool unchanged,
// when tx is already known, and an error when tx fails validation.
func (p *Pool) Add(tx *wire.MsgTx) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	hash := tx.TxHash()
	if _, ok := p.pool[hash]; ok {
		log.Debugf("MemPool.add(%s): already known", hash)
		return nil
	}

	if err := checkTransaction(tx); err != nil {
		log.Debugf("MemPool.add(%s): invalid tx: %s", hash, err)
		return errors.Wrap(ErrInvalidTx, err.Error())
	}

	p.pool[hash] = tx
	log.Debugf("MemPool.add(%s), poolsz %d", hash, len(p.pool))
	return nil
}

// Remove discards hash from the pool, reporting whether it was present.
func (p *Pool) Remove(hash chainhash.Hash) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if _, ok := p.pool[hash]; !ok {
		return false
	}
	delete(p.pool, hash)
	return true
}

// Contains reports whether hash is currently pooled.
func (p *Pool) Contains(hash chainhash.Hash) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	_, ok := p.pool[hash]
	return ok
}

// Get returns the pooled transaction for hash, if any.
func (p *Pool) Get(hash chainhash.Hash) (*wire.MsgTx, bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	tx, ok := p.pool[hash]
	return tx, ok
}

// Size returns the number of pooled transactions.
func (p *Pool) Size() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return len(p.pool)
}

// All returns a snapshot slice of every pooled transaction, in no
// particular order. Callers (chaindb.newblockTxs) sort it themselves.
func (p *Pool) All() []*wire.MsgTx {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	txs := make([]*wire.MsgTx, 0, len(p.pool))
	for _, tx := range p.pool {
		txs = append(txs, tx)
	}
	return txs
}

// checkTransaction is the structural-only validation every pooled
// transaction must pass: non-empty input/output vectors, in-range output
// values, no duplicate inputs, and (for coinbases) a scriptSig of sane
// length.
func checkTransaction(tx *wire.MsgTx) error {
	if len(tx.TxIn) == 0 {
		return errors.New("no inputs")
	}
	if len(tx.TxOut) == 0 {
		return errors.New("no outputs")
	}

	var total int64
	for _, out := range tx.TxOut {
		if out.Value < 0 || out.Value > wire.MaxSatoshi {
			return errors.New("output value out of range")
		}
		total += out.Value
		if total > wire.MaxSatoshi {
			return errors.New("total output value out of range")
		}
	}

	if tx.IsCoinBase() {
		sigLen := len(tx.TxIn[0].SignatureScript)
		if sigLen < 2 || sigLen > 100 {
			return errors.New("coinbase scriptSig out of range")
		}
		return nil
	}

	seen := make(map[wire.OutPoint]bool, len(tx.TxIn))
	for _, in := range tx.TxIn {
		if in.PreviousOutPoint.IsNull() {
			return errors.New("non-coinbase input has null previous outpoint")
		}
		if seen[in.PreviousOutPoint] {
			return errors.New("duplicate input")
		}
		seen[in.PreviousOutPoint] = true
	}

	return nil
}
