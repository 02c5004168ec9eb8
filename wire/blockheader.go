// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/daglabs/halfnode/chainhash"
)

// BlockHeaderPayload is the number of bytes a block header occupies on the
// wire: version (4) + prev hash (32) + merkle root (32) + time (4) +
// bits (4) + nonce (4).
const BlockHeaderPayload = 4 + chainhash.HashSize + chainhash.HashSize + 4 + 4 + 4

// BlockHeader defines information about a block and is used in the block
// (MsgBlock) message.
type BlockHeader struct {
	// Version of the block.
	Version int32

	// HashPrevBlock is the hash of the previous block in the chain. The
	// all-zero hash signals this is the genesis block.
	HashPrevBlock chainhash.Hash

	// HashMerkleRoot is the merkle tree reference to the hash of all
	// transactions in the block.
	HashMerkleRoot chainhash.Hash

	// Timestamp is the time the block was created.
	Timestamp uint32

	// Bits is the compact representation of the proof-of-work target.
	Bits uint32

	// Nonce is used to generate the block's proof-of-work.
	Nonce uint32
}

// BlockHash computes the block identifier for the header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	var buf bytes.Buffer
	_ = h.Serialize(&buf)
	return doubleSha256(buf.Bytes())
}

// Serialize encodes the header in the format used to compute the block
// hash and to persist the block to the block file store.
func (h *BlockHeader) Serialize(w io.Writer) error {
	return writeElements(w, h.Version, h.HashPrevBlock, h.HashMerkleRoot,
		h.Timestamp, h.Bits, h.Nonce)
}

// Deserialize decodes a header as encoded by Serialize.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	return readElements(r, &h.Version, &h.HashPrevBlock, &h.HashMerkleRoot,
		&h.Timestamp, &h.Bits, &h.Nonce)
}

// NewBlockHeader returns a new BlockHeader with the given fields.
func NewBlockHeader(version int32, prevHash, merkleRoot chainhash.Hash, bits, nonce uint32, timestamp uint32) *BlockHeader {
	return &BlockHeader{
		Version:        version,
		HashPrevBlock:  prevHash,
		HashMerkleRoot: merkleRoot,
		Timestamp:      timestamp,
		Bits:           bits,
		Nonce:          nonce,
	}
}
