// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg defines network-specific parameters: the wire magic
// used to sanity-check misc:msg_start, default ports, and each network's
// genesis block.
package chaincfg

import (
	"github.com/daglabs/halfnode/chainhash"
	"github.com/daglabs/halfnode/wire"
)

// Params defines a Bitcoin network by its genesis block and magic.
type Params struct {
	// Name is a human-readable identifier for the network.
	Name string

	// Net is the magic 4 bytes used to identify the network on the wire
	// and persisted at misc:msg_start.
	Net [4]byte

	// DefaultPort is the default peer-to-peer port for the network.
	DefaultPort string

	// GenesisBlock is the first block of the chain.
	GenesisBlock *wire.MsgBlock

	// GenesisHash is the genesis block's hash, cached to avoid
	// recomputing it on every genesis comparison.
	GenesisHash chainhash.Hash
}

var genesisCoinbaseTx = func() *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		SignatureScript: []byte{
			0x04, 0xff, 0xff, 0x00, 0x1d, 0x01, 0x04, 0x45,
			0x54, 0x68, 0x65, 0x20, 0x54, 0x69, 0x6d, 0x65,
			0x73, 0x20, 0x30, 0x33, 0x2f, 0x4a, 0x61, 0x6e,
			0x2f, 0x32, 0x30, 0x30, 0x39,
		},
		Sequence: 0xffffffff,
	})
	tx.AddTxOut(&wire.TxOut{
		Value:    50 * 100000000,
		PkScript: []byte{0x41, 0x04, 0x67, 0x8a, 0xfd, 0xb0},
	})
	return tx
}()

var genesisMerkleRoot = wire.BlockMerkleRoot([]*wire.MsgTx{genesisCoinbaseTx})

var genesisBlock = func() *wire.MsgBlock {
	header := wire.NewBlockHeader(1, chainhash.ZeroHash, genesisMerkleRoot, 0x1d00ffff, 2083236893, 1231006505)
	block := wire.NewMsgBlock(header)
	block.AddTransaction(genesisCoinbaseTx)
	return block
}()

// MainNetParams defines the network parameters for the main network.
var MainNetParams = Params{
	Name:         "mainnet",
	Net:          [4]byte{0xf9, 0xbe, 0xb4, 0xd9},
	DefaultPort:  "8333",
	GenesisBlock: genesisBlock,
	GenesisHash:  genesisBlock.BlockHash(),
}

var regTestGenesisBlock = func() *wire.MsgBlock {
	header := wire.NewBlockHeader(1, chainhash.ZeroHash, genesisMerkleRoot, 0x207fffff, 0, 1296688602)
	block := wire.NewMsgBlock(header)
	block.AddTransaction(genesisCoinbaseTx)
	return block
}()

// RegressionNetParams defines the network parameters for the regression
// test network.
var RegressionNetParams = Params{
	Name:         "regtest",
	Net:          [4]byte{0xfa, 0xbf, 0xb5, 0xda},
	DefaultPort:  "18444",
	GenesisBlock: regTestGenesisBlock,
	GenesisHash:  regTestGenesisBlock.BlockHash(),
}

// registeredNets indexes the known networks by name for lookup from
// configuration (the "chain" setting, §9).
var registeredNets = map[string]*Params{
	MainNetParams.Name:      &MainNetParams,
	RegressionNetParams.Name: &RegressionNetParams,
}

// ParamsForNet returns the registered Params for a network name, or false
// if the name is unrecognized.
func ParamsForNet(name string) (*Params, bool) {
	p, ok := registeredNets[name]
	return p, ok
}
