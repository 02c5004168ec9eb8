// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaindb is the consensus engine: it ingests candidate blocks,
// maintains best-chain state, performs connects/disconnects, drains
// orphans, runs reorganizations, and assembles new block templates. It is
// the brain the rest of halfnode is built around.
package chaindb

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/daglabs/halfnode/blockstore"
	"github.com/daglabs/halfnode/chaincfg"
	"github.com/daglabs/halfnode/chainhash"
	"github.com/daglabs/halfnode/kvindex"
	"github.com/daglabs/halfnode/txverify"
	"github.com/daglabs/halfnode/wire"
)

const defaultCacheSize = 500

// maxFutureBlockTime bounds how far into the future a block's timestamp may
// claim to be before it is rejected as structurally invalid.
const maxFutureBlockTime = 2 * time.Hour

const (
	bodyBudget        = 900 * 1000
	freeBudget        = 50 * 1000
	freeFeeFloorPerKB = 50000
)

// MemPool is the subset of mempool.Pool's behavior ChainDb depends on:
// confirmed transactions are removed on connect and reinstated on
// disconnect; newblock draws its candidate list from All.
type MemPool interface {
	Add(tx *wire.MsgTx) error
	Remove(hash chainhash.Hash) bool
	Get(hash chainhash.Hash) (*wire.MsgTx, bool)
	Size() int
	All() []*wire.MsgTx
}

// ChainDb is the mutex-guarded consensus engine. Every exported method
// acquires the lock for its entire duration, so a fork detector sampling
// across several ChainDb handles never observes an intermediate state of
// any one of them (§5's nesting order: ChainDb lock outer, KV lock inner).
type ChainDb struct {
	mtx   sync.Mutex
	inner *chainDb
}

// chainDb is the unlocked implementation; every method here assumes the
// caller already holds ChainDb.mtx, mirroring the outer-lock/inner-no-lock
// method pairing the rest of the core follows.
type chainDb struct {
	store    *blockstore.Store
	index    *kvindex.Index
	cache    *blockCache
	mempool  MemPool
	verifier txverify.Verifier
	noSig    bool
	params   *chaincfg.Params

	orphans    map[chainhash.Hash]*wire.MsgBlock
	orphanDeps map[chainhash.Hash][]*wire.MsgBlock
}

// New opens (or creates) the block file and key-value index under dataDir
// and returns a ready-to-use ChainDb for the given network.
func New(dataDir string, params *chaincfg.Params, mempool MemPool, verifier txverify.Verifier, noSig bool) (*ChainDb, error) {
	store, err := blockstore.Open(filepath.Join(dataDir, "blocks.dat"), params.Net)
	if err != nil {
		return nil, errors.Wrap(err, "chaindb: open block store")
	}

	index, err := kvindex.Open(filepath.Join(dataDir, "leveldb"))
	if err != nil {
		return nil, errors.Wrap(err, "chaindb: open index")
	}

	inner := &chainDb{
		store:      store,
		index:      index,
		cache:      newBlockCache(defaultCacheSize),
		mempool:    mempool,
		verifier:   verifier,
		noSig:      noSig,
		params:     params,
		orphans:    make(map[chainhash.Hash]*wire.MsgBlock),
		orphanDeps: make(map[chainhash.Hash][]*wire.MsgBlock),
	}

	if err := inner.initDb(); err != nil {
		return nil, err
	}

	return &ChainDb{inner: inner}, nil
}

func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// initDb lays down the initial misc: records on a fresh database, and
// verifies the stored network magic otherwise, matching the reference
// source's startup guard.
func (c *chainDb) initDb() error {
	if _, err := c.index.Get("misc:height"); err != nil {
		if !kvindex.IsNotFound(err) {
			return err
		}

		log.Infof("INITIALIZING EMPTY BLOCKCHAIN DATABASE")
		batch := kvindex.NewBatch()
		batch.Put("misc:height", []byte("-1"))
		batch.Put("misc:msg_start", append([]byte(nil), c.params.Net[:]...))
		batch.Put("misc:tophash", []byte(chainhash.ZeroHash.String()))
		batch.Put("misc:total_work", []byte("0"))
		if err := c.index.Write(batch); err != nil {
			return errors.Wrap(err, "chaindb: initialize")
		}
	}

	start, err := c.index.Get("misc:msg_start")
	if err != nil {
		return errors.Wrap(err, "chaindb: read msg_start")
	}
	if len(start) != 4 || start[0] != c.params.Net[0] || start[1] != c.params.Net[1] ||
		start[2] != c.params.Net[2] || start[3] != c.params.Net[3] {
		return errors.Wrap(ErrCorruptStore, "network magic mismatch: data corruption or wrong network")
	}
	return nil
}

// PutBlock is the sole entry point for block ingestion.
func (c *ChainDb) PutBlock(ctx context.Context, block *wire.MsgBlock) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := checkCtx(ctx); err != nil {
		return err
	}
	return c.inner.putblock(block)
}

func (c *chainDb) putblock(block *wire.MsgBlock) error {
	hash := block.BlockHash()
	if c.haveBlock(hash, true) {
		log.Warnf("Duplicate block %s submitted", hash)
		return errors.Wrapf(ErrDuplicate, "block %s", hash)
	}

	if err := c.checkBlock(block); err != nil {
		log.Warnf("Invalid block %s: %s", hash, err)
		return err
	}

	if !c.havePrevBlock(block) {
		c.orphans[hash] = block
		c.orphanDeps[block.Header.HashPrevBlock] = append(c.orphanDeps[block.Header.HashPrevBlock], block)
		log.Infof("Orphan block %s (%d orphans)", hash, len(c.orphans))
		return nil
	}

	if err := c.putoneblock(block); err != nil {
		return err
	}

	// Drain every orphan now reachable, breadth-first, so a parent with
	// several waiting children releases all of them rather than just one.
	queue := []chainhash.Hash{hash}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		deps, ok := c.orphanDeps[parent]
		if !ok {
			continue
		}
		delete(c.orphanDeps, parent)

		for _, orphanBlock := range deps {
			childHash := orphanBlock.BlockHash()
			delete(c.orphans, childHash)
			if err := c.putoneblock(orphanBlock); err != nil {
				log.Warnf("orphan drain: block %s failed to connect: %s", childHash, err)
				continue
			}
			queue = append(queue, childHash)
		}
	}

	return nil
}

// checkBlock performs the context-free structural validation every block
// must pass before putoneblock ever touches the store: non-empty tx
// vector, exactly one coinbase and it is first, merkle root match,
// proof-of-work below target, and a sane timestamp.
func (c *chainDb) checkBlock(block *wire.MsgBlock) error {
	if len(block.Transactions) == 0 {
		return errors.Wrap(ErrStructuralInvalid, "block has no transactions")
	}
	if !block.Transactions[0].IsCoinBase() {
		return errors.Wrap(ErrStructuralInvalid, "first transaction is not a coinbase")
	}
	for _, tx := range block.Transactions[1:] {
		if tx.IsCoinBase() {
			return errors.Wrap(ErrStructuralInvalid, "multiple coinbase transactions")
		}
	}

	if wire.BlockMerkleRoot(block.Transactions) != block.Header.HashMerkleRoot {
		return errors.Wrap(ErrStructuralInvalid, "merkle root mismatch")
	}

	target := compactToBig(block.Header.Bits)
	if target.Sign() <= 0 || target.Cmp(oneLsh256) >= 0 {
		return errors.Wrap(ErrStructuralInvalid, "target out of range")
	}
	hash := block.BlockHash()
	if hashToBig(hash).Cmp(target) > 0 {
		return errors.Wrap(ErrStructuralInvalid, "block hash does not meet its target")
	}

	if time.Unix(int64(block.Header.Timestamp), 0).After(time.Now().Add(maxFutureBlockTime)) {
		return errors.Wrap(ErrStructuralInvalid, "timestamp too far in the future")
	}

	return nil
}

// putoneblock persists a single block whose parent is already known,
// updates its metadata and height roster, and promotes it to the best
// chain if its cumulative work now exceeds the current tip's.
func (c *chainDb) putoneblock(block *wire.MsgBlock) error {
	topHeight, err := c.getHeight()
	if err != nil {
		return err
	}

	var prevMeta *BlkMeta
	if topHeight >= 0 {
		prevMeta, err = c.getBlockMeta(block.Header.HashPrevBlock)
		if err != nil {
			return errors.Wrap(err, "putoneblock: missing parent metadata")
		}
	} else {
		prevMeta = &BlkMeta{Height: -1, Work: big.NewInt(0)}
	}

	topWork, err := c.getTotalWork()
	if err != nil {
		return err
	}

	fpos, err := c.store.Append(block)
	if err != nil {
		return errors.Wrap(err, "putoneblock: append to block store")
	}

	hash := block.BlockHash()
	meta := &BlkMeta{
		Height: prevMeta.Height + 1,
		Work:   new(big.Int).Add(prevMeta.Work, calcWork(block.Header.Bits)),
	}

	batch := kvindex.NewBatch()
	batch.Put("blocks:"+hash.String(), []byte(strconv.FormatInt(fpos, 10)))
	batch.Put("blkmeta:"+hash.String(), []byte(meta.serialize()))

	heightIdx, err := c.getHeightIdx(meta.Height)
	if err != nil {
		return err
	}
	heightIdx.Blocks = append(heightIdx.Blocks, hash)
	batch.Put("height:"+strconv.Itoa(int(meta.Height)), []byte(heightIdx.serialize()))

	if err := c.index.Write(batch); err != nil {
		return errors.Wrap(err, "putoneblock: commit batch")
	}

	if meta.Work.Cmp(topWork) <= 0 {
		log.Infof("ChainDb: height %d (weak), block %s", meta.Height, hash)
		return nil
	}

	return c.setBestChain(block, hash, meta)
}

func (c *chainDb) setBestChain(block *wire.MsgBlock, hash chainhash.Hash, meta *BlkMeta) error {
	if meta.Height == 0 {
		return c.connectBlock(hash, block, meta)
	}

	topHash, err := c.getTopHash()
	if err != nil {
		return err
	}
	if topHash == block.Header.HashPrevBlock {
		return c.connectBlock(hash, block, meta)
	}

	return c.reorganize(hash)
}

// connectBlock makes block the new best-chain tip: it validates spend
// connectivity and signatures, then commits the tx index and the best-chain
// pointers in a single batch.
func (c *chainDb) connectBlock(hash chainhash.Hash, block *wire.MsgBlock, meta *BlkMeta) error {
	outs, err := c.spentOutpts(block)
	if err != nil {
		log.Warnf("Unconnectable block %s: %s", hash, err)
		return err
	}

	if !c.noSig {
		if err := c.checkBlockSignatures(block); err != nil {
			log.Warnf("Invalid signature in block %s: %s", hash, err)
			return err
		}
	}

	batch := kvindex.NewBatch()
	batch.Put("misc:total_work", []byte(meta.Work.Text(16)))
	batch.Put("misc:height", []byte(strconv.Itoa(int(meta.Height))))
	batch.Put("misc:tophash", []byte(hash.String()))

	log.Infof("ChainDb: height %d, block %s", meta.Height, hash)

	// Pending tx index records, keyed by tx hash. Starting every block
	// transaction here (rather than writing it straight to the batch) lets
	// an outpoint spent within the same block mark its bit on the pending
	// record instead of missing a not-yet-committed index entry.
	pending := make(map[chainhash.Hash]*TxIdx, len(block.Transactions))
	for _, tx := range block.Transactions {
		pending[tx.TxHash()] = newTxIdx(hash)
	}

	neverSeen := 0
	for _, tx := range block.Transactions {
		if !c.mempool.Remove(tx.TxHash()) {
			neverSeen++
		}
	}

	for op := range outs {
		idx, ok := pending[op.Hash]
		if !ok {
			var err error
			idx, err = c.getTxIdx(op.Hash)
			if err != nil {
				return errors.Wrapf(err, "connect: spent outpoint %s has no prior index", op.Hash)
			}
			pending[op.Hash] = idx
		}
		idx.setSpent(op.Index)
	}

	for txHash, idx := range pending {
		batch.Put("tx:"+txHash.String(), []byte(idx.serialize()))
	}

	if err := c.index.Write(batch); err != nil {
		return errors.Wrap(err, "connect: commit batch")
	}

	log.Debugf("MemPool: blk.vtx.sz %d, neverseen %d, poolsz %d", len(block.Transactions), neverSeen, c.mempool.Size())
	return nil
}

// disconnectBlock rolls block back off the best chain: it clears the spend
// bits it had set, deletes its own tx index entries, reinstates its
// non-coinbase transactions to the mempool, and rewinds the best-chain
// pointers to its parent.
func (c *chainDb) disconnectBlock(block *wire.MsgBlock) error {
	prevHash := block.Header.HashPrevBlock
	prevMeta, err := c.getBlockMeta(prevHash)
	if err != nil {
		return errors.Wrap(err, "disconnect: missing parent metadata")
	}

	outs, _, err := c.uniqueOutpts(block)
	if err != nil {
		return err
	}

	ownHashes := make(map[chainhash.Hash]bool, len(block.Transactions))
	for _, tx := range block.Transactions {
		ownHashes[tx.TxHash()] = true
	}

	batch := kvindex.NewBatch()
	for op := range outs {
		if ownHashes[op.Hash] {
			// That tx's own index entry is being deleted below.
			continue
		}
		idx, err := c.getTxIdx(op.Hash)
		if err != nil {
			continue
		}
		idx.clearSpent(op.Index)
		batch.Put("tx:"+op.Hash.String(), []byte(idx.serialize()))
	}

	for _, tx := range block.Transactions {
		batch.Delete("tx:" + tx.TxHash().String())
		if !tx.IsCoinBase() {
			if err := c.mempool.Add(tx); err != nil {
				log.Warnf("disconnect: failed to re-add tx %s to mempool: %s", tx.TxHash(), err)
			}
		}
	}

	batch.Put("misc:total_work", []byte(prevMeta.Work.Text(16)))
	batch.Put("misc:height", []byte(strconv.Itoa(int(prevMeta.Height))))
	batch.Put("misc:tophash", []byte(prevHash.String()))

	if err := c.index.Write(batch); err != nil {
		return errors.Wrap(err, "disconnect: commit batch")
	}

	log.Infof("ChainDb(disconn): height %d, block %s", prevMeta.Height, prevHash)
	return nil
}

// reorganize switches the best chain to newBestHash's chain: it walks both
// tips back to their common ancestor, disconnects the old side from its
// tip toward the fork, then connects the new side from the fork toward its
// tip. A failure partway through is logged and left applied (§7's
// ReorgPartialFailure; recovery is out of scope).
func (c *chainDb) reorganize(newBestHash chainhash.Hash) error {
	log.Infof("REORGANIZE")

	oldBestHash, err := c.getTopHash()
	if err != nil {
		return err
	}

	var conn []*wire.MsgBlock // collected new-tip-first; reversed before applying
	var disconn []*wire.MsgBlock

	fork := oldBestHash
	longer := newBestHash
	for fork != longer {
		forkHeight, err := c.getBlockHeight(fork)
		if err != nil {
			return err
		}
		longerHeight, err := c.getBlockHeight(longer)
		if err != nil {
			return err
		}

		for longerHeight > forkHeight {
			block, err := c.getBlock(longer)
			if err != nil {
				return err
			}
			conn = append(conn, block)

			longer = block.Header.HashPrevBlock
			if longer.IsZero() {
				return errors.New("reorganize: reached genesis without finding the fork point")
			}
			longerHeight, err = c.getBlockHeight(longer)
			if err != nil {
				return err
			}
		}

		if fork == longer {
			break
		}

		block, err := c.getBlock(fork)
		if err != nil {
			return err
		}
		disconn = append(disconn, block)

		fork = block.Header.HashPrevBlock
		if fork.IsZero() {
			return errors.New("reorganize: reached genesis without finding the fork point")
		}
	}

	for i, j := 0, len(conn)-1; i < j; i, j = i+1, j-1 {
		conn[i], conn[j] = conn[j], conn[i]
	}

	log.Infof("REORG disconnecting top hash %s", oldBestHash)
	log.Infof("REORG connecting new top hash %s", newBestHash)
	log.Infof("REORG chain union point %s", fork)
	log.Infof("REORG disconnecting %d blocks, connecting %d blocks", len(disconn), len(conn))

	for _, block := range disconn {
		if err := c.disconnectBlock(block); err != nil {
			log.Errorf("REORG partial failure disconnecting %s: %s (database left partially applied)", block.BlockHash(), err)
			return errors.Wrap(err, "reorganize: disconnect")
		}
	}

	for _, block := range conn {
		hash := block.BlockHash()
		meta, err := c.getBlockMeta(hash)
		if err != nil {
			return err
		}
		if err := c.connectBlock(hash, block, meta); err != nil {
			log.Errorf("REORG partial failure connecting %s: %s (database left partially applied)", hash, err)
			return errors.Wrap(err, "reorganize: connect")
		}
	}

	log.Infof("REORGANIZE DONE")
	return nil
}

// uniqueOutpts collects the set of outpoints every non-coinbase
// transaction in block spends, and a map from tx hash to transaction for
// the block's own non-coinbase transactions. A duplicate outpoint spent twice
// within the block is a structural failure (the fixed form of the
// reference source's undefined-name bug in this routine).
func (c *chainDb) uniqueOutpts(block *wire.MsgBlock) (map[wire.OutPoint]bool, map[chainhash.Hash]*wire.MsgTx, error) {
	outpts := make(map[wire.OutPoint]bool)
	txmap := make(map[chainhash.Hash]*wire.MsgTx)

	for _, tx := range block.Transactions {
		if tx.IsCoinBase() {
			continue
		}
		txmap[tx.TxHash()] = tx
		for _, txin := range tx.TxIn {
			op := txin.PreviousOutPoint
			if _, exists := outpts[op]; exists {
				return nil, nil, errors.Wrap(ErrStructuralInvalid, "duplicate outpoint spent within block")
			}
			outpts[op] = false
		}
	}

	return outpts, txmap, nil
}

// txoutSpent reports whether op is already marked spent in the index.
// known is false when op is out of the sanity bound, or not yet indexed
// (either never seen, or produced by a transaction still in the block
// currently being validated).
func (c *chainDb) txoutSpent(op wire.OutPoint) (spent bool, known bool) {
	if op.Index >= wire.MaxOutpointIndex {
		return false, false
	}
	idx, err := c.getTxIdx(op.Hash)
	if err != nil {
		return false, false
	}
	return idx.isSpent(op.Index), true
}

// spentOutpts validates and returns the outpoints block wants to spend:
// each must be either unspent in the existing index, or produced earlier
// in this same block at a valid output index.
func (c *chainDb) spentOutpts(block *wire.MsgBlock) (map[wire.OutPoint]bool, error) {
	outpts, txmap, err := c.uniqueOutpts(block)
	if err != nil {
		return nil, err
	}

	for op := range outpts {
		spent, known := c.txoutSpent(op)
		if !known {
			continue
		}
		if spent {
			return nil, errors.Wrapf(ErrStructuralInvalid, "outpoint %s:%d already spent", op.Hash, op.Index)
		}
		outpts[op] = true // resolved against the existing index; skip below
	}

	// An in-block source must come before the transaction that spends it.
	earlier := make(map[chainhash.Hash]bool, len(block.Transactions))
	for _, spender := range block.Transactions {
		if !spender.IsCoinBase() {
			for _, txin := range spender.TxIn {
				op := txin.PreviousOutPoint
				if outpts[op] {
					continue
				}
				tx, ok := txmap[op.Hash]
				if !ok || !earlier[op.Hash] {
					return nil, errors.Wrapf(ErrStructuralInvalid, "outpoint %s:%d has no source", op.Hash, op.Index)
				}
				if int(op.Index) >= len(tx.TxOut) {
					return nil, errors.Wrapf(ErrStructuralInvalid, "outpoint %s:%d out of range", op.Hash, op.Index)
				}
			}
		}
		earlier[spender.TxHash()] = true
	}

	return outpts, nil
}

// checkBlockSignatures verifies every non-coinbase input's signature
// against the transaction it spends, resolved first from the chain and
// then from earlier in the same block.
func (c *chainDb) checkBlockSignatures(block *wire.MsgBlock) error {
	for _, tx := range block.Transactions {
		if tx.IsCoinBase() {
			continue
		}
		for i, txin := range tx.TxIn {
			txfrom, err := c.resolveInputSource(txin.PreviousOutPoint.Hash, block)
			if err != nil {
				return errors.Wrapf(ErrStructuralInvalid, "tx %s input %d: %s", tx.TxHash(), i, err)
			}
			if !c.verifier.Verify(txfrom, tx, i) {
				return errors.Wrapf(ErrStructuralInvalid, "tx %s input %d: signature failure", tx.TxHash(), i)
			}
		}
	}
	return nil
}

func (c *chainDb) resolveInputSource(hash chainhash.Hash, block *wire.MsgBlock) (*wire.MsgTx, error) {
	if tx, err := c.gettx(hash); err == nil {
		return tx, nil
	}
	for _, tx := range block.Transactions {
		if tx.TxHash() == hash {
			return tx, nil
		}
	}
	if tx, ok := c.mempool.Get(hash); ok {
		return tx, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "dependent tx %s", hash)
}

// GetHeight returns the best-chain height, or -1 for a fresh database.
func (c *ChainDb) GetHeight(ctx context.Context) (int32, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	return c.inner.getHeight()
}

func (c *chainDb) getHeight() (int32, error) {
	raw, err := c.index.Get("misc:height")
	if err != nil {
		return 0, err
	}
	h, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, errors.Wrap(ErrCorruptStore, "misc:height")
	}
	return int32(h), nil
}

// GetTopHash returns the best-chain tip.
func (c *ChainDb) GetTopHash(ctx context.Context) (chainhash.Hash, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := checkCtx(ctx); err != nil {
		return chainhash.ZeroHash, err
	}
	return c.inner.getTopHash()
}

func (c *chainDb) getTopHash() (chainhash.Hash, error) {
	raw, err := c.index.Get("misc:tophash")
	if err != nil {
		return chainhash.ZeroHash, err
	}
	var hash chainhash.Hash
	if err := chainhash.Decode(&hash, string(raw)); err != nil {
		return chainhash.ZeroHash, errors.Wrap(ErrCorruptStore, "misc:tophash")
	}
	return hash, nil
}

func (c *chainDb) getTotalWork() (*big.Int, error) {
	raw, err := c.index.Get("misc:total_work")
	if err != nil {
		return nil, err
	}
	work, ok := new(big.Int).SetString(string(raw), 16)
	if !ok {
		return nil, errors.Wrap(ErrCorruptStore, "misc:total_work")
	}
	return work, nil
}

// GetBlock returns the decoded block for hash, via the cache then the index.
func (c *ChainDb) GetBlock(ctx context.Context, hash chainhash.Hash) (*wire.MsgBlock, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return c.inner.getBlock(hash)
}

func (c *chainDb) getBlock(hash chainhash.Hash) (*wire.MsgBlock, error) {
	if block, ok := c.cache.get(hash); ok {
		return block, nil
	}

	raw, err := c.index.Get("blocks:" + hash.String())
	if err != nil {
		if kvindex.IsNotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "block %s", hash)
		}
		return nil, err
	}

	fpos, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return nil, errors.Wrap(ErrCorruptStore, "block offset")
	}
	block, err := c.store.ReadAt(fpos)
	if err != nil {
		return nil, errors.Wrap(ErrCorruptStore, err.Error())
	}

	c.cache.put(hash, block)
	return block, nil
}

// GetTx returns the transaction identified by hash, resolved via the index
// and the body of the block it was confirmed in.
func (c *ChainDb) GetTx(ctx context.Context, hash chainhash.Hash) (*wire.MsgTx, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return c.inner.gettx(hash)
}

func (c *chainDb) gettx(hash chainhash.Hash) (*wire.MsgTx, error) {
	idx, err := c.getTxIdx(hash)
	if err != nil {
		return nil, err
	}

	block, err := c.getBlock(idx.BlockHash)
	if err != nil {
		return nil, err
	}
	for _, tx := range block.Transactions {
		if tx.TxHash() == hash {
			return tx, nil
		}
	}

	log.Errorf("Missing TX %s in block %s", hash, idx.BlockHash)
	return nil, errors.Wrapf(ErrCorruptStore, "tx %s indexed in block %s but absent from it", hash, idx.BlockHash)
}

func (c *chainDb) getTxIdx(hash chainhash.Hash) (*TxIdx, error) {
	raw, err := c.index.Get("tx:" + hash.String())
	if err != nil {
		if kvindex.IsNotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "tx %s", hash)
		}
		return nil, err
	}
	return deserializeTxIdx(string(raw))
}

// HaveBlock reports whether hash is known: cached, on disk, or (if
// checkOrphans) parked in the orphan table.
func (c *ChainDb) HaveBlock(ctx context.Context, hash chainhash.Hash, checkOrphans bool) (bool, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := checkCtx(ctx); err != nil {
		return false, err
	}
	return c.inner.haveBlock(hash, checkOrphans), nil
}

func (c *chainDb) haveBlock(hash chainhash.Hash, checkOrphans bool) bool {
	if c.cache.has(hash) {
		return true
	}
	if checkOrphans {
		if _, ok := c.orphans[hash]; ok {
			return true
		}
	}
	_, err := c.index.Get("blocks:" + hash.String())
	return err == nil
}

// HavePrevBlock reports whether block's parent is known (or block is the
// configured genesis block of an empty chain).
func (c *ChainDb) HavePrevBlock(ctx context.Context, block *wire.MsgBlock) (bool, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := checkCtx(ctx); err != nil {
		return false, err
	}
	return c.inner.havePrevBlock(block), nil
}

func (c *chainDb) havePrevBlock(block *wire.MsgBlock) bool {
	if height, err := c.getHeight(); err == nil && height < 0 && block.BlockHash() == c.params.GenesisHash {
		return true
	}
	return c.haveBlock(block.Header.HashPrevBlock, false)
}

func (c *chainDb) getBlockMeta(hash chainhash.Hash) (*BlkMeta, error) {
	raw, err := c.index.Get("blkmeta:" + hash.String())
	if err != nil {
		if kvindex.IsNotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "block meta %s", hash)
		}
		return nil, err
	}
	return deserializeBlkMeta(string(raw))
}

// GetBlockMeta returns the height/work metadata recorded for hash.
func (c *ChainDb) GetBlockMeta(ctx context.Context, hash chainhash.Hash) (*BlkMeta, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return c.inner.getBlockMeta(hash)
}

func (c *chainDb) getBlockHeight(hash chainhash.Hash) (int32, error) {
	meta, err := c.getBlockMeta(hash)
	if err != nil {
		if IsNotFound(err) {
			return -1, nil
		}
		return -1, err
	}
	return meta.Height, nil
}

// GetBlockHeight returns the height of hash, or -1 if it is unknown.
func (c *ChainDb) GetBlockHeight(ctx context.Context, hash chainhash.Hash) (int32, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := checkCtx(ctx); err != nil {
		return -1, err
	}
	return c.inner.getBlockHeight(hash)
}

func (c *chainDb) getHeightIdx(height int32) (*HeightIdx, error) {
	raw, err := c.index.Get("height:" + strconv.Itoa(int(height)))
	if err != nil {
		if kvindex.IsNotFound(err) {
			return &HeightIdx{}, nil
		}
		return nil, err
	}
	return deserializeHeightIdx(string(raw))
}

// GetBlockHash returns the first block hash recorded at height.
func (c *ChainDb) GetBlockHash(ctx context.Context, height int32) (chainhash.Hash, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := checkCtx(ctx); err != nil {
		return chainhash.ZeroHash, err
	}
	return c.inner.getBlockHash(height)
}

func (c *chainDb) getBlockHash(height int32) (chainhash.Hash, error) {
	idx, err := c.getHeightIdx(height)
	if err != nil {
		return chainhash.ZeroHash, err
	}
	if len(idx.Blocks) == 0 {
		return chainhash.ZeroHash, errors.Wrapf(ErrNotFound, "height %d", height)
	}
	return idx.Blocks[0], nil
}

// Locate returns the BlkMeta of the first hash in locator that this
// database knows, or a zero-height meta meaning "start from genesis".
func (c *ChainDb) Locate(ctx context.Context, locator wire.BlockLocator) (*BlkMeta, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return c.inner.locate(locator)
}

func (c *chainDb) locate(locator wire.BlockLocator) (*BlkMeta, error) {
	for _, hash := range locator {
		if meta, err := c.getBlockMeta(hash); err == nil {
			return meta, nil
		}
	}
	return &BlkMeta{Height: 0, Work: big.NewInt(0)}, nil
}

// LoadFile bulk-imports the block messages concatenated in the file at
// path, scanning forward for the network magic and resyncing by one byte
// on framing corruption.
func (c *ChainDb) LoadFile(ctx context.Context, path string) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := checkCtx(ctx); err != nil {
		return err
	}
	return c.inner.loadFile(path)
}

func (c *chainDb) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "loadfile: open")
	}
	defer f.Close()

	log.Infof("IMPORTING DATA FROM %s", path)

	data, err := io.ReadAll(f)
	if err != nil {
		return errors.Wrap(err, "loadfile: read")
	}

	magic := c.params.Net
	pos := 0
	for pos < len(data) {
		idx := bytes.Index(data[pos:], magic[:])
		if idx < 0 {
			break
		}
		start := pos + idx
		if start+8 > len(data) {
			break
		}

		size := binary.LittleEndian.Uint32(data[start+4 : start+8])
		blkStart := start + 8
		blkEnd := blkStart + int(size)
		if blkEnd > len(data) || blkEnd < blkStart {
			pos = start + 1
			continue
		}

		block := &wire.MsgBlock{}
		if err := block.BtcDecode(bytes.NewReader(data[blkStart:blkEnd])); err != nil {
			log.Warnf("loadfile: corrupt block framing at offset %d: %s", start, err)
			pos = start + 1
			continue
		}

		if err := c.putblock(block); err != nil && !errors.Is(err, ErrDuplicate) {
			log.Warnf("loadfile: block %s rejected: %s", block.BlockHash(), err)
		}

		pos = blkEnd
	}

	return nil
}

// candidateTx carries the derived fee/priority figures newblockTxs needs
// to sort and pack a transaction, computed once with exact integer
// arithmetic (no binary floating point, per the fee-math requirement).
type candidateTx struct {
	tx          *wire.MsgTx
	size        int64
	feesPaid    int64
	feePerKB    int64
	priorityNum int64
}

func isFinal(tx *wire.MsgTx, height int32) bool {
	if tx.LockTime == 0 {
		return true
	}

	allFinal := true
	for _, in := range tx.TxIn {
		if in.Sequence != 0xffffffff {
			allFinal = false
			break
		}
	}
	if allFinal {
		return true
	}

	const lockTimeThreshold = 500000000
	if tx.LockTime < lockTimeThreshold {
		return int64(tx.LockTime) < int64(height)
	}
	return int64(tx.LockTime) < time.Now().Unix()
}

// newblockTxs selects and orders the mempool transactions eligible for the
// next block template: resolved inputs, non-negative fees, sorted by
// (fee-per-kB desc, priority desc), then packed greedily within the body
// and free-transaction sub-budgets.
func (c *chainDb) newblockTxs(nextHeight int32) ([]*wire.MsgTx, int64, error) {
	var candidates []*candidateTx

	for _, tx := range c.mempool.All() {
		if tx.IsCoinBase() || !isFinal(tx, nextHeight) {
			continue
		}

		valid := true
		var valueIn int64
		for _, in := range tx.TxIn {
			prevTx, err := c.gettx(in.PreviousOutPoint.Hash)
			if err != nil || int(in.PreviousOutPoint.Index) >= len(prevTx.TxOut) {
				valid = false
				break
			}
			valueIn += prevTx.TxOut[in.PreviousOutPoint.Index].Value
		}
		if !valid {
			continue
		}

		var valueOut int64
		for _, out := range tx.TxOut {
			valueOut += out.Value
		}

		feesPaid := valueIn - valueOut
		if feesPaid < 0 {
			continue
		}

		size := int64(tx.SerializeSize())
		feePerKB := (feesPaid * 1000) / size
		if feePerKB < freeFeeFloorPerKB {
			feePerKB = 0
		}

		candidates = append(candidates, &candidateTx{
			tx:          tx,
			size:        size,
			feesPaid:    feesPaid,
			feePerKB:    feePerKB,
			priorityNum: valueIn,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].feePerKB != candidates[j].feePerKB {
			return candidates[i].feePerKB > candidates[j].feePerKB
		}
		// priority[i] > priority[j]  <=>  valueIn[i]/size[i] > valueIn[j]/size[j]
		return candidates[i].priorityNum*candidates[j].size > candidates[j].priorityNum*candidates[i].size
	})

	var included []*wire.MsgTx
	var totalFees int64
	var bodyUsed, freeUsed int64
	for _, cand := range candidates {
		if bodyUsed+cand.size > bodyBudget {
			continue
		}
		if cand.feePerKB > 0 {
			included = append(included, cand.tx)
			bodyUsed += cand.size
			totalFees += cand.feesPaid
		} else if freeBudget-freeUsed >= cand.size {
			included = append(included, cand.tx)
			bodyUsed += cand.size
			freeUsed += cand.size
			totalFees += cand.feesPaid
		}
	}

	return included, totalFees, nil
}

// blockValue is the block subsidy at height h: 50 BTC, halving every
// 210,000 blocks.
func blockValue(height int32) int64 {
	const coin = 100000000
	subsidy := int64(50 * coin)
	shift := uint(height / 210000)
	if shift >= 63 {
		return 0
	}
	return subsidy >> shift
}

// NewBlock assembles a candidate next block from the current tip and the
// eligible mempool transactions. Nonce grinding is the caller's job.
func (c *ChainDb) NewBlock(ctx context.Context) (*wire.MsgBlock, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return c.inner.newblock()
}

func (c *chainDb) newblock() (*wire.MsgBlock, error) {
	tophash, err := c.getTopHash()
	if err != nil {
		return nil, err
	}
	prevBlock, err := c.getBlock(tophash)
	if err != nil {
		return nil, err
	}

	height, err := c.getHeight()
	if err != nil {
		return nil, err
	}
	nextHeight := height + 1

	included, totalFees, err := c.newblockTxs(nextHeight)
	if err != nil {
		return nil, err
	}

	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0xffffffff}})
	coinbase.AddTxOut(&wire.TxOut{Value: blockValue(nextHeight) + totalFees})

	header := wire.NewBlockHeader(1, tophash, chainhash.ZeroHash, prevBlock.Header.Bits, 0, uint32(time.Now().Unix()))
	block := wire.NewMsgBlock(header)
	block.AddTransaction(coinbase)
	for _, tx := range included {
		block.AddTransaction(tx)
	}

	block.Header.HashMerkleRoot = wire.BlockMerkleRoot(block.Transactions)

	return block, nil
}

// Close releases the block file and index handles, in that order, as the
// shutdown sequence requires.
func (c *ChainDb) Close() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	storeErr := c.inner.store.Close()
	indexErr := c.inner.index.Close()
	if storeErr != nil {
		return errors.Wrap(storeErr, "chaindb: close block store")
	}
	if indexErr != nil {
		return errors.Wrap(indexErr, "chaindb: close index")
	}
	return nil
}
