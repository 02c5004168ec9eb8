// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"

	"github.com/daglabs/halfnode/chainhash"
)

// CalcMerkleRoot computes the Bitcoin merkle root over the given
// transaction hashes. An empty input yields the zero hash.
func CalcMerkleRoot(txHashes []chainhash.Hash) chainhash.Hash {
	if len(txHashes) == 0 {
		return chainhash.ZeroHash
	}

	level := make([]chainhash.Hash, len(txHashes))
	copy(level, txHashes)

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]chainhash.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			var buf bytes.Buffer
			buf.Write(level[i][:])
			buf.Write(level[i+1][:])
			next = append(next, doubleSha256(buf.Bytes()))
		}
		level = next
	}
	return level[0]
}

func hashTx(tx *MsgTx) chainhash.Hash {
	return tx.TxHash()
}

// BlockMerkleRoot computes the merkle root for every transaction currently
// in a block, in order.
func BlockMerkleRoot(txs []*MsgTx) chainhash.Hash {
	hashes := make([]chainhash.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = hashTx(tx)
	}
	return CalcMerkleRoot(hashes)
}
