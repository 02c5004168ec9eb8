// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mining assembles unsolved block templates on top of a ChainDb's
// current best chain, ready for a miner to grind a nonce into. Transaction
// selection, ordering, and the body/free-transaction budgets all live in
// ChainDb.NewBlock; this package's job is the generator lifecycle and
// template bookkeeping around it (matching the teacher's BlkTmplGenerator
// split between a generator type and the policy it assembles against).
package mining

import (
	"context"

	"github.com/daglabs/halfnode/chaindb"
	"github.com/daglabs/halfnode/wire"
)

// BlockTemplate is a block that is ready to be solved by a miner: fully
// valid except for its proof-of-work.
type BlockTemplate struct {
	// Block is the unsolved candidate block.
	Block *wire.MsgBlock

	// Height is the height the block connects at.
	Height int32
}

// Generator produces block templates from a ChainDb's current tip and
// mempool contents.
type Generator struct {
	chainDb *chaindb.ChainDb
}

// NewBlkTmplGenerator returns a generator that builds templates against db.
func NewBlkTmplGenerator(db *chaindb.ChainDb) *Generator {
	return &Generator{chainDb: db}
}

// NewBlockTemplate assembles a new block template from the current best
// chain and the eligible mempool transactions.
func (g *Generator) NewBlockTemplate(ctx context.Context) (*BlockTemplate, error) {
	height, err := g.chainDb.GetHeight(ctx)
	if err != nil {
		return nil, err
	}

	block, err := g.chainDb.NewBlock(ctx)
	if err != nil {
		return nil, err
	}

	log.Debugf("Created new block template (%d transactions) at height %d",
		len(block.Transactions), height+1)

	return &BlockTemplate{Block: block, Height: height + 1}, nil
}
