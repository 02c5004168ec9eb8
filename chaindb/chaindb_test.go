// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindb

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/daglabs/halfnode/chaincfg"
	"github.com/daglabs/halfnode/chainhash"
	"github.com/daglabs/halfnode/mempool"
	"github.com/daglabs/halfnode/txverify"
	"github.com/daglabs/halfnode/wire"
)

// easyBits is a trivial-difficulty target, the same family of value
// regression-test networks use: its target is 0x7fffff<<232, just below
// 2^255, so about half of all block hashes meet it. solveBlock grinds the
// nonce of every block built in these tests until its hash does.
const easyBits = 0x207fffff

// solveBlock increments block's nonce until its hash meets its target.
func solveBlock(block *wire.MsgBlock) {
	target := compactToBig(block.Header.Bits)
	for hashToBig(block.BlockHash()).Cmp(target) > 0 {
		block.Header.Nonce++
	}
}

func newTestBlock(prevHash chainhash.Hash, distinguisher byte) *wire.MsgBlock {
	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		SignatureScript:  []byte{distinguisher, 0x01},
		Sequence:         0xffffffff,
	})
	coinbase.AddTxOut(&wire.TxOut{Value: 50 * 100000000, PkScript: []byte{0x51}})

	header := wire.NewBlockHeader(1, prevHash, chainhash.ZeroHash, easyBits, 0, uint32(time.Now().Unix()))
	block := wire.NewMsgBlock(header)
	block.AddTransaction(coinbase)
	block.Header.HashMerkleRoot = wire.BlockMerkleRoot(block.Transactions)
	solveBlock(block)
	return block
}

func newTestChainDb(t *testing.T) (*ChainDb, chainhash.Hash) {
	t.Helper()

	genesis := newTestBlock(chainhash.ZeroHash, 0)
	params := &chaincfg.Params{
		Name:         "test",
		Net:          [4]byte{0x01, 0x02, 0x03, 0x04},
		GenesisBlock: genesis,
		GenesisHash:  genesis.BlockHash(),
	}

	cdb, err := New(t.TempDir(), params, mempool.New(), txverify.NopVerifier{}, true)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	t.Cleanup(func() { cdb.Close() })

	return cdb, genesis.BlockHash()
}

func TestEmptyDatabaseHeight(t *testing.T) {
	cdb, _ := newTestChainDb(t)
	ctx := context.Background()

	height, err := cdb.GetHeight(ctx)
	if err != nil {
		t.Fatalf("GetHeight: %s", err)
	}
	if height != -1 {
		t.Fatalf("GetHeight = %d, want -1", height)
	}
}

func TestGenesisAcceptance(t *testing.T) {
	cdb, _ := newTestChainDb(t)
	ctx := context.Background()

	genesis := newTestBlock(chainhash.ZeroHash, 0)
	if err := cdb.PutBlock(ctx, genesis); err != nil {
		t.Fatalf("PutBlock(genesis): %s", err)
	}

	height, err := cdb.GetHeight(ctx)
	if err != nil {
		t.Fatalf("GetHeight: %s", err)
	}
	if height != 0 {
		t.Fatalf("GetHeight = %d, want 0", height)
	}

	top, err := cdb.GetTopHash(ctx)
	if err != nil {
		t.Fatalf("GetTopHash: %s", err)
	}
	if top != genesis.BlockHash() {
		t.Fatalf("GetTopHash = %s, want %s", top, genesis.BlockHash())
	}
}

func TestLinearExtension(t *testing.T) {
	cdb, genesisHash := newTestChainDb(t)
	ctx := context.Background()

	genesis := newTestBlock(chainhash.ZeroHash, 0)
	if err := cdb.PutBlock(ctx, genesis); err != nil {
		t.Fatalf("PutBlock(genesis): %s", err)
	}

	b1 := newTestBlock(genesisHash, 1)
	if err := cdb.PutBlock(ctx, b1); err != nil {
		t.Fatalf("PutBlock(b1): %s", err)
	}

	height, err := cdb.GetHeight(ctx)
	if err != nil {
		t.Fatalf("GetHeight: %s", err)
	}
	if height != 1 {
		t.Fatalf("GetHeight = %d, want 1", height)
	}

	top, err := cdb.GetTopHash(ctx)
	if err != nil {
		t.Fatalf("GetTopHash: %s", err)
	}
	if top != b1.BlockHash() {
		t.Fatalf("GetTopHash = %s, want %s", top, b1.BlockHash())
	}
}

func TestOrphanThenAttach(t *testing.T) {
	cdb, genesisHash := newTestChainDb(t)
	ctx := context.Background()

	genesis := newTestBlock(chainhash.ZeroHash, 0)
	if err := cdb.PutBlock(ctx, genesis); err != nil {
		t.Fatalf("PutBlock(genesis): %s", err)
	}

	b1 := newTestBlock(genesisHash, 1)
	b2 := newTestBlock(b1.BlockHash(), 2)

	// b2 arrives before its parent b1: it must be parked, not rejected,
	// and must not move the tip.
	if err := cdb.PutBlock(ctx, b2); err != nil {
		t.Fatalf("PutBlock(b2, orphan): %s", err)
	}
	height, err := cdb.GetHeight(ctx)
	if err != nil {
		t.Fatalf("GetHeight: %s", err)
	}
	if height != 0 {
		t.Fatalf("GetHeight after orphan = %d, want 0", height)
	}

	known, err := cdb.HaveBlock(ctx, b2.BlockHash(), true)
	if err != nil {
		t.Fatalf("HaveBlock: %s", err)
	}
	if !known {
		t.Fatal("HaveBlock(b2, checkOrphans) = false, want true")
	}

	// Submitting b1 must drain b2 out of the orphan table and connect
	// both, landing the tip on b2.
	if err := cdb.PutBlock(ctx, b1); err != nil {
		t.Fatalf("PutBlock(b1): %s", err)
	}

	height, err = cdb.GetHeight(ctx)
	if err != nil {
		t.Fatalf("GetHeight: %s", err)
	}
	if height != 2 {
		t.Fatalf("GetHeight after drain = %d, want 2", height)
	}

	top, err := cdb.GetTopHash(ctx)
	if err != nil {
		t.Fatalf("GetTopHash: %s", err)
	}
	if top != b2.BlockHash() {
		t.Fatalf("GetTopHash = %s, want %s", top, b2.BlockHash())
	}
}

func TestSideChainStaysWeak(t *testing.T) {
	cdb, genesisHash := newTestChainDb(t)
	ctx := context.Background()

	genesis := newTestBlock(chainhash.ZeroHash, 0)
	if err := cdb.PutBlock(ctx, genesis); err != nil {
		t.Fatalf("PutBlock(genesis): %s", err)
	}

	b1 := newTestBlock(genesisHash, 1)
	if err := cdb.PutBlock(ctx, b1); err != nil {
		t.Fatalf("PutBlock(b1): %s", err)
	}

	// a1 has equal work to b1 at the same height: it must be accepted as
	// known but must not move the tip.
	a1 := newTestBlock(genesisHash, 0xaa)
	if err := cdb.PutBlock(ctx, a1); err != nil {
		t.Fatalf("PutBlock(a1, side chain): %s", err)
	}

	top, err := cdb.GetTopHash(ctx)
	if err != nil {
		t.Fatalf("GetTopHash: %s", err)
	}
	if top != b1.BlockHash() {
		t.Fatalf("GetTopHash = %s, want %s (side chain must not win a tie)", top, b1.BlockHash())
	}

	known, err := cdb.HaveBlock(ctx, a1.BlockHash(), false)
	if err != nil {
		t.Fatalf("HaveBlock: %s", err)
	}
	if !known {
		t.Fatal("HaveBlock(a1) = false, want true")
	}
}

func TestReorganize(t *testing.T) {
	cdb, genesisHash := newTestChainDb(t)
	ctx := context.Background()

	genesis := newTestBlock(chainhash.ZeroHash, 0)
	if err := cdb.PutBlock(ctx, genesis); err != nil {
		t.Fatalf("PutBlock(genesis): %s", err)
	}

	b1 := newTestBlock(genesisHash, 1)
	b2 := newTestBlock(b1.BlockHash(), 2)
	b3 := newTestBlock(b2.BlockHash(), 3)
	for _, b := range []*wire.MsgBlock{b1, b2, b3} {
		if err := cdb.PutBlock(ctx, b); err != nil {
			t.Fatalf("PutBlock(main chain): %s", err)
		}
	}

	// An alternate, longer chain should take over the tip once its
	// cumulative work exceeds the main chain's.
	a1 := newTestBlock(genesisHash, 0x11)
	a2 := newTestBlock(a1.BlockHash(), 0x12)
	a3 := newTestBlock(a2.BlockHash(), 0x13)
	a4 := newTestBlock(a3.BlockHash(), 0x14)
	for _, a := range []*wire.MsgBlock{a1, a2, a3, a4} {
		if err := cdb.PutBlock(ctx, a); err != nil {
			t.Fatalf("PutBlock(alt chain): %s", err)
		}
	}

	top, err := cdb.GetTopHash(ctx)
	if err != nil {
		t.Fatalf("GetTopHash: %s", err)
	}
	if top != a4.BlockHash() {
		t.Fatalf("GetTopHash = %s, want %s (reorg to the longer chain)", top, a4.BlockHash())
	}

	height, err := cdb.GetHeight(ctx)
	if err != nil {
		t.Fatalf("GetHeight: %s", err)
	}
	if height != 4 {
		t.Fatalf("GetHeight = %d, want 4", height)
	}

	// b1..b3 are off the best chain now. Their blkmeta records survive
	// disconnection, so their heights must still resolve.
	for i, b := range []*wire.MsgBlock{b1, b2, b3} {
		h, err := cdb.GetBlockHeight(ctx, b.BlockHash())
		if err != nil {
			t.Fatalf("GetBlockHeight(b%d): %s", i+1, err)
		}
		if h != int32(i+1) {
			t.Fatalf("GetBlockHeight(b%d) = %d, want %d", i+1, h, i+1)
		}
	}
}

func TestConnectDisconnectSpendLifecycle(t *testing.T) {
	ctx := context.Background()

	pool := mempool.New()
	genesis := newTestBlock(chainhash.ZeroHash, 0)
	params := &chaincfg.Params{
		Name:         "test",
		Net:          [4]byte{0x01, 0x02, 0x03, 0x04},
		GenesisBlock: genesis,
		GenesisHash:  genesis.BlockHash(),
	}

	cdb, err := New(t.TempDir(), params, pool, txverify.NopVerifier{}, true)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	t.Cleanup(func() { cdb.Close() })

	if err := cdb.PutBlock(ctx, genesis); err != nil {
		t.Fatalf("PutBlock(genesis): %s", err)
	}
	genesisHash := genesis.BlockHash()

	// txA spends the genesis coinbase output; txB spends txA's output
	// within the same block, so connecting b1 must set the spent bit on
	// txA's not-yet-committed index record rather than missing it.
	genesisCoinbaseHash := genesis.Transactions[0].TxHash()
	txA := wire.NewMsgTx(1)
	txA.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: genesisCoinbaseHash, Index: 0}, Sequence: 0xffffffff})
	txA.AddTxOut(&wire.TxOut{Value: 40 * 100000000, PkScript: []byte{0x51}})

	txB := wire.NewMsgTx(1)
	txB.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: txA.TxHash(), Index: 0}, Sequence: 0xffffffff})
	txB.AddTxOut(&wire.TxOut{Value: 30 * 100000000, PkScript: []byte{0x51}})

	// Both sit unconfirmed in the mempool before b1 mines them.
	if err := pool.Add(txA); err != nil {
		t.Fatalf("pool.Add(txA): %s", err)
	}
	if err := pool.Add(txB); err != nil {
		t.Fatalf("pool.Add(txB): %s", err)
	}
	if pool.Size() != 2 {
		t.Fatalf("pool.Size() = %d, want 2 before b1 connects", pool.Size())
	}

	b1 := newTestBlock(genesisHash, 1)
	b1.AddTransaction(txA)
	b1.AddTransaction(txB)
	b1.Header.HashMerkleRoot = wire.BlockMerkleRoot(b1.Transactions)
	solveBlock(b1)
	if err := cdb.PutBlock(ctx, b1); err != nil {
		t.Fatalf("PutBlock(b1): %s", err)
	}

	if pool.Contains(txA.TxHash()) || pool.Contains(txB.TxHash()) {
		t.Fatal("txA/txB should have been removed from the mempool once b1 confirmed them")
	}
	if pool.Size() != 0 {
		t.Fatalf("pool.Size() = %d, want 0 once b1 connects", pool.Size())
	}

	genesisIdx, err := cdb.inner.getTxIdx(genesisCoinbaseHash)
	if err != nil {
		t.Fatalf("getTxIdx(genesis): %s", err)
	}
	if !genesisIdx.isSpent(0) {
		t.Fatal("genesis coinbase output should be marked spent after b1 connects")
	}

	txAIdx, err := cdb.inner.getTxIdx(txA.TxHash())
	if err != nil {
		t.Fatalf("getTxIdx(txA): %s", err)
	}
	if !txAIdx.isSpent(0) {
		t.Fatal("txA's output should be marked spent by txB within the same block")
	}

	// A heavier alternate chain forces b1 back off the best chain.
	a1 := newTestBlock(genesisHash, 0x11)
	a2 := newTestBlock(a1.BlockHash(), 0x12)
	for _, a := range []*wire.MsgBlock{a1, a2} {
		if err := cdb.PutBlock(ctx, a); err != nil {
			t.Fatalf("PutBlock(alt chain): %s", err)
		}
	}

	top, err := cdb.GetTopHash(ctx)
	if err != nil {
		t.Fatalf("GetTopHash: %s", err)
	}
	if top != a2.BlockHash() {
		t.Fatalf("GetTopHash = %s, want %s (b1 should have been disconnected)", top, a2.BlockHash())
	}

	genesisIdx, err = cdb.inner.getTxIdx(genesisCoinbaseHash)
	if err != nil {
		t.Fatalf("getTxIdx(genesis) after disconnect: %s", err)
	}
	if genesisIdx.isSpent(0) {
		t.Fatal("genesis coinbase output should no longer be marked spent once b1 disconnects")
	}

	if _, err := cdb.inner.getTxIdx(txA.TxHash()); !IsNotFound(err) {
		t.Fatalf("getTxIdx(txA) after disconnect = %v, want ErrNotFound", err)
	}
	if _, err := cdb.inner.getTxIdx(txB.TxHash()); !IsNotFound(err) {
		t.Fatalf("getTxIdx(txB) after disconnect = %v, want ErrNotFound", err)
	}

	if !pool.Contains(txA.TxHash()) || !pool.Contains(txB.TxHash()) {
		t.Fatal("txA/txB should have been reinstated to the mempool once b1 disconnects")
	}
}

func TestResolveInputSourceMempoolFallback(t *testing.T) {
	pool := mempool.New()
	genesis := newTestBlock(chainhash.ZeroHash, 0)
	params := &chaincfg.Params{
		Name:         "test",
		Net:          [4]byte{0x01, 0x02, 0x03, 0x04},
		GenesisBlock: genesis,
		GenesisHash:  genesis.BlockHash(),
	}

	cdb, err := New(t.TempDir(), params, pool, txverify.NopVerifier{}, true)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	t.Cleanup(func() { cdb.Close() })

	// txA is unconfirmed: no tx: index entry, and not part of the block
	// being checked, so only the mempool tier can resolve it.
	txA := wire.NewMsgTx(1)
	txA.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: genesis.BlockHash(), Index: 0}, Sequence: 0xffffffff})
	txA.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x51}})
	if err := pool.Add(txA); err != nil {
		t.Fatalf("pool.Add(txA): %s", err)
	}

	empty := wire.NewMsgBlock(wire.NewBlockHeader(1, chainhash.ZeroHash, chainhash.ZeroHash, easyBits, 0, 0))
	resolved, err := cdb.inner.resolveInputSource(txA.TxHash(), empty)
	if err != nil {
		t.Fatalf("resolveInputSource: %s, want resolution via the mempool fallback", err)
	}
	if resolved.TxHash() != txA.TxHash() {
		t.Fatal("resolveInputSource returned the wrong transaction")
	}
}

func TestDuplicateBlockRejected(t *testing.T) {
	cdb, _ := newTestChainDb(t)
	ctx := context.Background()

	genesis := newTestBlock(chainhash.ZeroHash, 0)
	if err := cdb.PutBlock(ctx, genesis); err != nil {
		t.Fatalf("PutBlock(genesis): %s", err)
	}
	if err := cdb.PutBlock(ctx, genesis); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("PutBlock(genesis again) = %v, want ErrDuplicate", err)
	}
}
