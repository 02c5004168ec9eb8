// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package forkdetector

import (
	"context"
	"testing"
	"time"

	"github.com/daglabs/halfnode/chaincfg"
	"github.com/daglabs/halfnode/chaindb"
	"github.com/daglabs/halfnode/chainhash"
	"github.com/daglabs/halfnode/mempool"
	"github.com/daglabs/halfnode/txverify"
	"github.com/daglabs/halfnode/wire"
)

const easyBits = 0x207fffff

func newBlock(prevHash chainhash.Hash, distinguisher byte) *wire.MsgBlock {
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
	// The hash's last byte is the top byte of its proof-of-work value;
	// below 0x7f it is under easyBits' target of 0x7fffff<<232.
	for block.BlockHash()[31] >= 0x7f {
		block.Header.Nonce++
	}
	return block
}

func newHandle(t *testing.T, name string, genesis *wire.MsgBlock) Handle {
	t.Helper()

	params := &chaincfg.Params{
		Name:         "test",
		Net:          [4]byte{0x01, 0x02, 0x03, 0x04},
		GenesisBlock: genesis,
		GenesisHash:  genesis.BlockHash(),
	}
	cdb, err := chaindb.New(t.TempDir(), params, mempool.New(), txverify.NopVerifier{}, true)
	if err != nil {
		t.Fatalf("chaindb.New(%s): %s", name, err)
	}
	t.Cleanup(func() { cdb.Close() })

	return Handle{Name: name, ChainDb: cdb}
}

func TestCheckChainsAgreeingTip(t *testing.T) {
	ctx := context.Background()
	genesis := newBlock(chainhash.ZeroHash, 0)

	a := newHandle(t, "a", genesis)
	b := newHandle(t, "b", genesis)

	if err := a.ChainDb.PutBlock(ctx, genesis); err != nil {
		t.Fatalf("PutBlock(a, genesis): %s", err)
	}
	if err := b.ChainDb.PutBlock(ctx, genesis); err != nil {
		t.Fatalf("PutBlock(b, genesis): %s", err)
	}

	d := New(time.Minute, []Handle{a, b})
	groups, err := d.CheckChains(ctx)
	if err != nil {
		t.Fatalf("CheckChains: %s", err)
	}
	if len(groups) != 1 {
		t.Fatalf("CheckChains: got %d groups, want 1", len(groups))
	}
	if len(groups[0].Peers) != 2 {
		t.Fatalf("CheckChains: got %d peers, want 2", len(groups[0].Peers))
	}
}

func TestCheckChainsSameChainDifferentTips(t *testing.T) {
	ctx := context.Background()
	genesis := newBlock(chainhash.ZeroHash, 0)

	a := newHandle(t, "a", genesis)
	b := newHandle(t, "b", genesis)

	for _, h := range []Handle{a, b} {
		if err := h.ChainDb.PutBlock(ctx, genesis); err != nil {
			t.Fatalf("PutBlock(%s, genesis): %s", h.Name, err)
		}
	}

	b1 := newBlock(genesis.BlockHash(), 1)
	if err := a.ChainDb.PutBlock(ctx, b1); err != nil {
		t.Fatalf("PutBlock(a, b1): %s", err)
	}

	d := New(time.Minute, []Handle{a, b})
	groups, err := d.CheckChains(ctx)
	if err != nil {
		t.Fatalf("CheckChains: %s", err)
	}
	if len(groups) != 1 {
		t.Fatalf("CheckChains: got %d groups, want 1 (same chain, different tips)", len(groups))
	}
	if len(groups[0].Peers) != 2 {
		t.Fatalf("CheckChains: got %d peers, want 2", len(groups[0].Peers))
	}
}

func TestCheckChainsDivergedChains(t *testing.T) {
	ctx := context.Background()
	genesis := newBlock(chainhash.ZeroHash, 0)

	a := newHandle(t, "a", genesis)
	b := newHandle(t, "b", genesis)

	for _, h := range []Handle{a, b} {
		if err := h.ChainDb.PutBlock(ctx, genesis); err != nil {
			t.Fatalf("PutBlock(%s, genesis): %s", h.Name, err)
		}
	}

	aTip := newBlock(genesis.BlockHash(), 0xaa)
	bTip := newBlock(genesis.BlockHash(), 0xbb)
	if err := a.ChainDb.PutBlock(ctx, aTip); err != nil {
		t.Fatalf("PutBlock(a, aTip): %s", err)
	}
	if err := b.ChainDb.PutBlock(ctx, bTip); err != nil {
		t.Fatalf("PutBlock(b, bTip): %s", err)
	}

	d := New(time.Minute, []Handle{a, b})
	groups, err := d.CheckChains(ctx)
	if err != nil {
		t.Fatalf("CheckChains: %s", err)
	}
	if len(groups) != 2 {
		t.Fatalf("CheckChains: got %d groups, want 2 (diverged chains)", len(groups))
	}
}
