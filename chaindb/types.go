// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindb

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/daglabs/halfnode/chainhash"
)

// TxIdx is the per-transaction index record: the hash of the block the
// transaction was confirmed in, and a bitmap of which of its outputs have
// since been spent on the best chain.
//
// Serialized as "<hex-block-hash> <hex-spent-mask>", hashes in the standard
// byte-reversed display order.
type TxIdx struct {
	BlockHash chainhash.Hash
	SpentMask *big.Int
}

func newTxIdx(blockHash chainhash.Hash) *TxIdx {
	return &TxIdx{BlockHash: blockHash, SpentMask: new(big.Int)}
}

func (idx *TxIdx) serialize() string {
	return idx.BlockHash.String() + " " + idx.SpentMask.Text(16)
}

func deserializeTxIdx(s string) (*TxIdx, error) {
	pos := strings.IndexByte(s, ' ')
	if pos < 0 {
		return nil, errors.Errorf("chaindb: malformed tx index record %q", s)
	}

	var blockHash chainhash.Hash
	if err := chainhash.Decode(&blockHash, s[:pos]); err != nil {
		return nil, errors.Wrap(err, "chaindb: tx index block hash")
	}

	mask, ok := new(big.Int).SetString(s[pos+1:], 16)
	if !ok {
		return nil, errors.Errorf("chaindb: malformed spent mask %q", s[pos+1:])
	}

	return &TxIdx{BlockHash: blockHash, SpentMask: mask}, nil
}

func (idx *TxIdx) isSpent(n uint32) bool {
	return idx.SpentMask.Bit(int(n)) == 1
}

func (idx *TxIdx) setSpent(n uint32) {
	idx.SpentMask.SetBit(idx.SpentMask, int(n), 1)
}

func (idx *TxIdx) clearSpent(n uint32) {
	idx.SpentMask.SetBit(idx.SpentMask, int(n), 0)
}

// BlkMeta is the per-block metadata record: its height in the chain that
// contains it, and the cumulative proof-of-work from genesis through it.
//
// Serialized as "<decimal-height> <hex-work>".
type BlkMeta struct {
	Height int32
	Work   *big.Int
}

func (m *BlkMeta) serialize() string {
	return strconv.Itoa(int(m.Height)) + " " + m.Work.Text(16)
}

func deserializeBlkMeta(s string) (*BlkMeta, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return nil, errors.Errorf("chaindb: malformed block meta record %q", s)
	}

	height, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, errors.Wrap(err, "chaindb: block meta height")
	}

	work, ok := new(big.Int).SetString(fields[1], 16)
	if !ok {
		return nil, errors.Errorf("chaindb: malformed work %q", fields[1])
	}

	return &BlkMeta{Height: int32(height), Work: work}, nil
}

// HeightIdx is the per-height roster: every block hash known at a given
// height, including orphans-turned-sidechains and losing forks.
//
// Serialized as space-separated, byte-reversed hex hashes.
type HeightIdx struct {
	Blocks []chainhash.Hash
}

func (h *HeightIdx) serialize() string {
	parts := make([]string, len(h.Blocks))
	for i, hash := range h.Blocks {
		parts[i] = hash.String()
	}
	return strings.Join(parts, " ")
}

func deserializeHeightIdx(s string) (*HeightIdx, error) {
	h := &HeightIdx{}
	if s == "" {
		return h, nil
	}
	for _, field := range strings.Fields(s) {
		var hash chainhash.Hash
		if err := chainhash.Decode(&hash, field); err != nil {
			return nil, errors.Wrap(err, "chaindb: height index entry")
		}
		h.Blocks = append(h.Blocks, hash)
	}
	return h, nil
}
