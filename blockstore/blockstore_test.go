package blockstore

import (
	"path/filepath"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/daglabs/halfnode/chainhash"
	"github.com/daglabs/halfnode/wire"
)

var testMagic = [4]byte{0xf9, 0xbe, 0xb4, 0xd9}

func newTestBlock() *wire.MsgBlock {
	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0xffffffff}})
	coinbase.AddTxOut(&wire.TxOut{Value: 5000000000, PkScript: []byte{0x51}})
	header := wire.NewBlockHeader(1, chainhash.ZeroHash, wire.BlockMerkleRoot([]*wire.MsgTx{coinbase}), 0x207fffff, 0, 1231006505)
	block := wire.NewMsgBlock(header)
	block.AddTransaction(coinbase)
	return block
}

func TestAppendReadAtRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "blocks.dat"), testMagic)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	block1 := newTestBlock()
	offset1, err := store.Append(block1)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if offset1 != 0 {
		t.Fatalf("expected first offset to be 0, got %d", offset1)
	}

	block2 := newTestBlock()
	block2.Header.Nonce = 1
	offset2, err := store.Append(block2)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if offset2 <= offset1 {
		t.Fatalf("expected second offset to advance past the first")
	}

	got1, err := store.ReadAt(offset1)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if got1.BlockHash() != block1.BlockHash() {
		t.Fatalf("round trip of first block mismatched:\nwant %s\ngot  %s", spew.Sdump(block1), spew.Sdump(got1))
	}

	got2, err := store.ReadAt(offset2)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if got2.BlockHash() != block2.BlockHash() {
		t.Fatalf("round trip of second block mismatched:\nwant %s\ngot  %s", spew.Sdump(block2), spew.Sdump(got2))
	}
}

func TestReadAtCorruptStore(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "blocks.dat"), testMagic)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if _, err := store.Append(newTestBlock()); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if _, err := store.ReadAt(3); err == nil {
		t.Fatal("expected a corrupt-store error reading from a misaligned offset")
	}
}
